package frame

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/customer"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/threads"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/widgets"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/widgeterr"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/messaging"
)

const (
	hostOrigin  = "http://localhost:3000"
	frameOrigin = "http://localhost:3005"
)

type fakeBackend struct {
	mu       sync.Mutex
	calls    int
	requests []customer.InitRequest
	gate     chan struct{}
	initErr  error
	profile  customer.Profile
}

func (b *fakeBackend) InitWidget(ctx context.Context, widgetID string, req customer.InitRequest) (customer.InitResponse, error) {
	b.mu.Lock()
	b.calls++
	b.requests = append(b.requests, req)
	gate, initErr := b.gate, b.initErr
	b.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return customer.InitResponse{}, ctx.Err()
		}
	}
	if initErr != nil {
		return customer.InitResponse{}, initErr
	}
	return customer.InitResponse{
		JWT:    "tok",
		Create: true,
		Profile: customer.Profile{
			CustomerID: "c1",
			Name:       "Anonymous",
			Role:       "visitor",
		},
	}, nil
}

func (b *fakeBackend) GetMe(ctx context.Context, widgetID, token string) (customer.Profile, error) {
	if token != "tok" {
		return customer.Profile{}, errors.New("bad token")
	}
	return b.profile, nil
}

func (b *fakeBackend) AddEmailIdentity(ctx context.Context, widgetID, token, email string) (customer.Profile, error) {
	p := b.profile
	p.Email = &email
	return p, nil
}

func (b *fakeBackend) ListThreads(ctx context.Context, widgetID, token string) ([]threads.Thread, error) {
	return []threads.Thread{}, nil
}

func (b *fakeBackend) CreateThread(ctx context.Context, widgetID, token, message string) (threads.CreateThreadResponse, error) {
	return threads.CreateThreadResponse{}, nil
}

func (b *fakeBackend) ListMessages(ctx context.Context, widgetID, token, threadID string) ([]threads.Chat, error) {
	return []threads.Chat{}, nil
}

func (b *fakeBackend) SendMessage(ctx context.Context, widgetID, token, threadID, message string) (threads.Chat, error) {
	return threads.Chat{ThreadID: threadID, Body: message}, nil
}

func (b *fakeBackend) callCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.calls
}

type harness struct {
	host     *messaging.Window
	frame    *messaging.Window
	toFrame  *messaging.Link
	ctrl     *Controller
	backend  *fakeBackend
	mu       sync.Mutex
	received []string
}

func newHarness(t *testing.T, backend *fakeBackend, timeout time.Duration) *harness {
	t.Helper()
	return newHarnessWithParent(t, backend, timeout, nil)
}

// newHarnessWithParent lets wrap intercept what the frame posts to the host.
func newHarnessWithParent(t *testing.T, backend *fakeBackend, timeout time.Duration, wrap func(messaging.Port) messaging.Port) *harness {
	t.Helper()
	h := &harness{
		host:    messaging.NewWindow(hostOrigin),
		frame:   messaging.NewWindow(frameOrigin),
		backend: backend,
	}
	t.Cleanup(h.host.Close)
	t.Cleanup(h.frame.Close)

	h.host.AddMessageListener(func(ev messaging.MessageEvent) {
		h.mu.Lock()
		h.received = append(h.received, ev.Data)
		h.mu.Unlock()
	})
	h.toFrame = messaging.NewLink(h.frame, hostOrigin)

	var parent messaging.Port = messaging.NewLink(h.host, frameOrigin)
	if wrap != nil {
		parent = wrap(parent)
	}
	ctrl, err := New(Options{
		Window:      h.frame,
		Parent:      parent,
		HostOrigin:  hostOrigin,
		Backend:     backend,
		InitTimeout: timeout,
	})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(ctrl.Close)
	h.ctrl = ctrl
	return h
}

func (h *harness) signals() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]string(nil), h.received...)
}

func (h *harness) send(t *testing.T, kind messaging.Kind, payload any) {
	t.Helper()
	raw, err := messaging.Encode(kind, payload)
	if err != nil {
		t.Fatal(err)
	}
	if err := h.toFrame.PostMessage(raw, frameOrigin); err != nil {
		t.Fatal(err)
	}
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met before deadline")
}

func lastSignal(h *harness) string {
	s := h.signals()
	if len(s) == 0 {
		return ""
	}
	return s[len(s)-1]
}

func TestMountPostsReadyOnce(t *testing.T) {
	h := newHarness(t, &fakeBackend{}, 0)
	h.ctrl.Mount()
	h.ctrl.Mount()
	h.host.Sync()

	if got := h.signals(); len(got) != 1 || got[0] != messaging.SignalReady {
		t.Fatalf("host received %v", got)
	}
	if h.ctrl.State() != StateMounted {
		t.Fatalf("state = %v", h.ctrl.State())
	}
}

func TestHandshakeAnonymousFlow(t *testing.T) {
	h := newHarness(t, &fakeBackend{}, 0)
	h.ctrl.Mount()

	var snaps []Snapshot
	var snapMu sync.Mutex
	h.ctrl.Subscribe(func(s Snapshot) {
		snapMu.Lock()
		snaps = append(snaps, s)
		snapMu.Unlock()
	})

	layout := widgets.DefaultLayout()
	layout.Title = "Hi there"
	h.send(t, messaging.KindLayout, layout)
	h.send(t, messaging.KindCustomer, customer.NewPayload("wd-1", "sess-1", customer.Customer{}))

	waitFor(t, func() bool { return lastSignal(h) == messaging.SignalAck })
	if h.ctrl.State() != StateAcknowledged {
		t.Fatalf("state = %v", h.ctrl.State())
	}
	if _, err := h.ctrl.AccessToken(); !errors.Is(err, widgeterr.ErrSessionNotLive) {
		t.Fatalf("token available before start: %v", err)
	}

	h.send(t, messaging.KindStart, nil)
	h.frame.Sync()

	if h.ctrl.State() != StateLive || h.ctrl.Loading() {
		t.Fatalf("state = %v loading = %v", h.ctrl.State(), h.ctrl.Loading())
	}
	tok, err := h.ctrl.AccessToken()
	if err != nil || tok != "tok" {
		t.Fatalf("AccessToken = %q, %v", tok, err)
	}
	if h.ctrl.Layout().Title != "Hi there" {
		t.Fatalf("layout title = %q", h.ctrl.Layout().Title)
	}

	auth, ok := h.ctrl.Customer()
	if !ok || auth.WidgetID != "wd-1" || auth.SessionID != "sess-1" || auth.CustomerID != "c1" {
		t.Fatalf("customer = %+v", auth)
	}

	req := h.backend.requests[0]
	if req.SessionID == nil || *req.SessionID != "sess-1" || req.CustomerHash != nil {
		t.Fatalf("init request = %+v", req)
	}

	snapMu.Lock()
	defer snapMu.Unlock()
	if len(snaps) == 0 || snaps[len(snaps)-1].State != StateLive {
		t.Fatalf("subscribers not notified of live state: %+v", snaps)
	}
}

func TestDuplicateCustomerIgnored(t *testing.T) {
	b := &fakeBackend{gate: make(chan struct{})}
	h := newHarness(t, b, 0)
	h.ctrl.Mount()

	p := customer.NewPayload("wd-1", "sess-1", customer.Customer{})
	h.send(t, messaging.KindCustomer, p)
	h.send(t, messaging.KindCustomer, p)
	h.frame.Sync()
	close(b.gate)

	waitFor(t, func() bool { return lastSignal(h) == messaging.SignalAck })
	h.send(t, messaging.KindCustomer, p)
	h.frame.Sync()

	if b.callCount() != 1 {
		t.Fatalf("init exchange ran %d times", b.callCount())
	}
}

func TestInitFailurePostsError(t *testing.T) {
	h := newHarness(t, &fakeBackend{initErr: &widgeterr.NetworkError{Op: "init widget", Status: 500}}, 0)
	h.ctrl.Mount()
	h.send(t, messaging.KindCustomer, customer.NewPayload("wd-1", "sess-1", customer.Customer{}))

	waitFor(t, func() bool { return lastSignal(h) == messaging.SignalError })
	if !h.ctrl.HasError() || !widgeterr.IsNetwork(h.ctrl.Err()) {
		t.Fatalf("state = %v err = %v", h.ctrl.State(), h.ctrl.Err())
	}

	h.send(t, messaging.KindStart, nil)
	h.frame.Sync()
	if h.ctrl.State() != StateFailed {
		t.Fatal("start after failure must be ignored")
	}
}

func TestInitTimeoutIsNetworkError(t *testing.T) {
	h := newHarness(t, &fakeBackend{gate: make(chan struct{})}, 30*time.Millisecond)
	h.ctrl.Mount()
	h.send(t, messaging.KindCustomer, customer.NewPayload("wd-1", "sess-1", customer.Customer{}))

	waitFor(t, func() bool { return lastSignal(h) == messaging.SignalError })
	if !widgeterr.IsNetwork(h.ctrl.Err()) || !errors.Is(h.ctrl.Err(), context.DeadlineExceeded) {
		t.Fatalf("err = %v", h.ctrl.Err())
	}
}

func TestForeignOriginDropped(t *testing.T) {
	h := newHarness(t, &fakeBackend{}, 0)
	h.ctrl.Mount()

	raw, _ := messaging.Encode(messaging.KindCustomer, customer.NewPayload("wd-1", "sess-1", customer.Customer{}))
	evil := messaging.NewLink(h.frame, "https://evil.example")
	evil.PostMessage(raw, "*")
	h.frame.Deliver(messaging.MessageEvent{Data: "not json", Origin: hostOrigin})
	h.frame.Sync()

	if h.backend.callCount() != 0 || h.ctrl.State() != StateMounted {
		t.Fatalf("foreign message was processed: state %v", h.ctrl.State())
	}
}

func TestStartBeforeAckIsQueued(t *testing.T) {
	b := &fakeBackend{gate: make(chan struct{})}
	h := newHarness(t, b, 0)
	h.ctrl.Mount()

	h.send(t, messaging.KindCustomer, customer.NewPayload("wd-1", "sess-1", customer.Customer{}))
	h.send(t, messaging.KindStart, nil)
	h.frame.Sync()
	if h.ctrl.State() != StateInitializing {
		t.Fatalf("state = %v", h.ctrl.State())
	}

	close(b.gate)
	waitFor(t, func() bool { return h.ctrl.State() == StateLive })
	if lastSignal(h) != messaging.SignalAck {
		t.Fatalf("ack not posted: %v", h.signals())
	}
}

// refusingPort fails every post of one signal and forwards the rest.
type refusingPort struct {
	messaging.Port
	refuse string
}

func (p refusingPort) PostMessage(data, targetOrigin string) error {
	if data == p.refuse {
		return errors.New("port closed")
	}
	return p.Port.PostMessage(data, targetOrigin)
}

func TestUnsentAckFailsSession(t *testing.T) {
	b := &fakeBackend{gate: make(chan struct{})}
	h := newHarnessWithParent(t, b, 0, func(p messaging.Port) messaging.Port {
		return refusingPort{Port: p, refuse: messaging.SignalAck}
	})
	h.ctrl.Mount()

	h.send(t, messaging.KindCustomer, customer.NewPayload("wd-1", "sess-1", customer.Customer{}))
	h.send(t, messaging.KindStart, nil)
	h.frame.Sync()
	close(b.gate)

	waitFor(t, func() bool { return h.ctrl.State() == StateFailed })
	waitFor(t, func() bool { return lastSignal(h) == messaging.SignalError })
	if h.ctrl.Err() == nil {
		t.Fatal("failed session carries no error")
	}
	if _, ok := h.ctrl.Customer(); ok {
		t.Fatal("customer exposed without an ack")
	}
	if _, err := h.ctrl.AccessToken(); !errors.Is(err, widgeterr.ErrSessionNotLive) {
		t.Fatalf("token available after failed ack: %v", err)
	}
}

func TestLegacyConfigMessage(t *testing.T) {
	h := newHarness(t, &fakeBackend{}, 0)
	h.ctrl.Mount()

	layout := widgets.DefaultLayout()
	layout.Title = "Legacy"
	session := "sess-9"
	h.send(t, messaging.KindConfig, messaging.ConfigPayload{
		WidgetID:  "wd-1",
		SessionID: &session,
		Layout:    layout,
	})

	waitFor(t, func() bool { return lastSignal(h) == messaging.SignalAck })
	if h.ctrl.Layout().Title != "Legacy" {
		t.Fatalf("layout = %+v", h.ctrl.Layout())
	}
	if req := h.backend.requests[0]; req.SessionID == nil || *req.SessionID != "sess-9" {
		t.Fatalf("init request = %+v", req)
	}
}

func TestTokenOperationsRequireLiveSession(t *testing.T) {
	h := newHarness(t, &fakeBackend{}, 0)
	h.ctrl.Mount()
	ctx := context.Background()

	if _, err := h.ctrl.ListThreads(ctx); !errors.Is(err, widgeterr.ErrSessionNotLive) {
		t.Fatalf("ListThreads err = %v", err)
	}
	if _, err := h.ctrl.SendMessage(ctx, "t1", "hi"); !errors.Is(err, widgeterr.ErrSessionNotLive) {
		t.Fatalf("SendMessage err = %v", err)
	}
	if _, err := h.ctrl.RefreshCustomer(ctx); !errors.Is(err, widgeterr.ErrSessionNotLive) {
		t.Fatalf("RefreshCustomer err = %v", err)
	}
}

func TestRefreshAndDisplayName(t *testing.T) {
	email := "a@b.com"
	b := &fakeBackend{profile: customer.Profile{CustomerID: "c1", Name: "Server Name", Email: &email, IsEmailVerified: true}}
	h := newHarness(t, b, 0)
	h.ctrl.Mount()

	c := customer.Customer{Email: email, CustomerHash: "h", FirstName: "Ada", LastName: "Lovelace"}
	h.send(t, messaging.KindCustomer, customer.NewPayload("wd-1", "", c))
	waitFor(t, func() bool { return lastSignal(h) == messaging.SignalAck })
	h.send(t, messaging.KindStart, nil)
	h.frame.Sync()

	if got := h.ctrl.DisplayName(); got != "Ada Lovelace" {
		t.Fatalf("DisplayName = %q", got)
	}

	auth, err := h.ctrl.RefreshCustomer(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if auth.JWT != "tok" || !auth.IsEmailVerified || auth.Name != "Server Name" {
		t.Fatalf("refreshed customer = %+v", auth)
	}
}

func TestRequestClose(t *testing.T) {
	h := newHarness(t, &fakeBackend{}, 0)
	h.ctrl.Mount()
	if err := h.ctrl.RequestClose(); err != nil {
		t.Fatal(err)
	}
	h.host.Sync()
	if lastSignal(h) != messaging.SignalClose {
		t.Fatalf("host received %v", h.signals())
	}
}
