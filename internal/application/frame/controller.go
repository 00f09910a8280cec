// Package frame implements the iframe side of the widget handshake. It receives the layout
// and customer payload from the host, performs the init exchange with the backend and holds
// the authenticated customer consumed by the chat UI.
package frame

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/customer"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/threads"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/widgets"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/widgeterr"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/performance"
)

const DefaultInitTimeout = 10 * time.Second

// Backend is the part of the widget API the iframe consumes.
type Backend interface {
	InitWidget(ctx context.Context, widgetID string, req customer.InitRequest) (customer.InitResponse, error)
	GetMe(ctx context.Context, widgetID, token string) (customer.Profile, error)
	AddEmailIdentity(ctx context.Context, widgetID, token, email string) (customer.Profile, error)
	ListThreads(ctx context.Context, widgetID, token string) ([]threads.Thread, error)
	CreateThread(ctx context.Context, widgetID, token, message string) (threads.CreateThreadResponse, error)
	ListMessages(ctx context.Context, widgetID, token, threadID string) ([]threads.Chat, error)
	SendMessage(ctx context.Context, widgetID, token, threadID, message string) (threads.Chat, error)
}

// State of the iframe session. Failed is terminal.
type State int

const (
	StateIdle State = iota
	StateMounted
	StateInitializing
	StateAcknowledged
	StateLive
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateMounted:
		return "mounted"
	case StateInitializing:
		return "initializing"
	case StateAcknowledged:
		return "acknowledged"
	case StateLive:
		return "live"
	case StateFailed:
		return "failed"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Options struct {
	Window      *messaging.Window
	Parent      messaging.Port
	HostOrigin  string
	Backend     Backend
	InitTimeout time.Duration
	Logger      *logging.ChanneledLogger
	PerfTracker *performance.Tracker
}

// Snapshot is what UI subscribers see after every state change.
type Snapshot struct {
	State    State
	Loading  bool
	Err      error
	Customer *customer.Authenticated
	Layout   widgets.Layout
}

type Controller struct {
	win         *messaging.Window
	parent      messaging.Port
	hostOrigin  string
	backend     Backend
	initTimeout time.Duration
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker

	ctx    context.Context
	cancel context.CancelFunc

	mu             sync.Mutex
	state          State
	layout         widgets.Layout
	payload        *customer.Payload
	auth           *customer.Authenticated
	err            error
	startPending   bool
	removeListener func()
	subs           map[uint64]func(Snapshot)
	nextSub        uint64
}

// New validates options. The controller does nothing until Mount.
func New(opts Options) (*Controller, error) {
	if opts.Window == nil || opts.Parent == nil || opts.Backend == nil {
		return nil, widgeterr.Configuration("frame controller needs a window, a parent port and a backend")
	}
	hostOrigin, err := messaging.OriginOf(opts.HostOrigin)
	if err != nil {
		return nil, widgeterr.Configuration("invalid host origin: %v", err)
	}
	if opts.InitTimeout <= 0 {
		opts.InitTimeout = DefaultInitTimeout
	}
	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Controller{
		win:         opts.Window,
		parent:      opts.Parent,
		hostOrigin:  hostOrigin,
		backend:     opts.Backend,
		initTimeout: opts.InitTimeout,
		logger:      opts.Logger,
		perfTracker: opts.PerfTracker,
		ctx:         ctx,
		cancel:      cancel,
		layout:      widgets.DefaultLayout(),
		subs:        make(map[uint64]func(Snapshot)),
	}, nil
}

// Mount attaches the message listener and announces readiness to the host. Only the
// first call has any effect.
func (c *Controller) Mount() error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return nil
	}
	c.state = StateMounted
	c.removeListener = c.win.AddMessageListener(c.handleMessage)
	c.mu.Unlock()

	c.logger.Frame().Info("Widget frame mounted", "hostOrigin", c.hostOrigin)
	if err := c.parent.PostMessage(messaging.SignalReady, c.hostOrigin); err != nil {
		return fmt.Errorf("post ready: %w", err)
	}
	return nil
}

// Close detaches from the window and abandons any exchange in flight.
func (c *Controller) Close() {
	c.cancel()
	c.mu.Lock()
	remove := c.removeListener
	c.removeListener = nil
	c.mu.Unlock()
	if remove != nil {
		remove()
	}
}

func (c *Controller) handleMessage(ev messaging.MessageEvent) {
	if !messaging.SameOrigin(ev.Origin, c.hostOrigin) {
		c.drop(&widgeterr.ProtocolError{Reason: "unexpected origin", Origin: ev.Origin})
		return
	}
	msg, err := messaging.Decode(ev.Data)
	if err != nil {
		c.drop(err)
		return
	}
	if msg.IsSignal() {
		c.drop(&widgeterr.ProtocolError{Reason: "unexpected signal " + msg.Signal, Origin: ev.Origin})
		return
	}

	switch msg.Envelope.Type {
	case messaging.KindLayout:
		var layout widgets.Layout
		if err := msg.Envelope.Unmarshal(&layout); err != nil {
			c.drop(err)
			return
		}
		c.setLayout(layout)

	case messaging.KindCustomer:
		var p customer.Payload
		if err := msg.Envelope.Unmarshal(&p); err != nil {
			c.drop(err)
			return
		}
		c.beginInit(p)

	case messaging.KindConfig:
		var cfg messaging.ConfigPayload
		if err := msg.Envelope.Unmarshal(&cfg); err != nil {
			c.drop(err)
			return
		}
		c.setLayout(cfg.Layout)
		c.beginInit(cfg.Payload())

	case messaging.KindStart:
		c.handleStart()
	}
}

func (c *Controller) drop(err error) {
	c.logger.Protocol().Debug("Dropped message", "error", err)
}

func (c *Controller) setLayout(layout widgets.Layout) {
	if layout.HomeLinks == nil {
		layout.HomeLinks = []widgets.HomeLink{}
	}
	c.mu.Lock()
	c.layout = layout
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) beginInit(p customer.Payload) {
	c.mu.Lock()
	if c.state != StateMounted {
		state := c.state
		c.mu.Unlock()
		c.logger.Frame().Warn("Ignoring duplicate customer payload", "widgetId", p.WidgetID, "state", state.String())
		return
	}
	c.state = StateInitializing
	c.payload = &p
	c.mu.Unlock()
	c.notify()

	go c.exchange(p)
}

func (c *Controller) exchange(p customer.Payload) {
	marker := c.perfTracker.StartOperation("frame:init_exchange", p.WidgetID)

	ctx, cancel := context.WithTimeout(c.ctx, c.initTimeout)
	defer cancel()

	resp, err := c.backend.InitWidget(ctx, p.WidgetID, customer.NewInitRequest(p))
	if err != nil && !widgeterr.IsNetwork(err) && !widgeterr.IsSchema(err) {
		// timeouts and cancellation surface on the same path as transport failures
		err = &widgeterr.NetworkError{Op: "init widget", URL: "/widgets/" + p.WidgetID + "/init/", Err: err}
	}
	marker.SetSuccess(err == nil)
	marker.SetError(err)
	marker.Complete()
	c.logger.Perf().Info("Performance for init exchange", "duration", marker.Duration,
		"widgetId", p.WidgetID, "success", err == nil)

	c.win.Enqueue(func() { c.finishInit(p, resp, err) })
}

func (c *Controller) finishInit(p customer.Payload, resp customer.InitResponse, err error) {
	if err != nil {
		c.failInit(p.WidgetID, err)
		return
	}

	// the session only counts as acknowledged once the ack has actually left
	if postErr := c.parent.PostMessage(messaging.SignalAck, c.hostOrigin); postErr != nil {
		c.failInit(p.WidgetID, fmt.Errorf("post ack: %w", postErr))
		return
	}

	auth := customer.Authenticated{WidgetID: p.WidgetID, SessionID: p.Session(), InitResponse: resp}
	c.mu.Lock()
	c.auth = &auth
	c.state = StateAcknowledged
	if c.startPending {
		c.startPending = false
		c.state = StateLive
	}
	state := c.state
	c.mu.Unlock()

	c.logger.Frame().Info("Init exchange completed", "widgetId", p.WidgetID,
		"customerId", resp.CustomerID, "create", resp.Create, "state", state.String())
	c.notify()
}

func (c *Controller) failInit(widgetID string, err error) {
	c.mu.Lock()
	c.state = StateFailed
	c.err = err
	c.startPending = false
	c.mu.Unlock()

	c.logger.LogError(logging.ChannelFrame, "init_exchange", err, widgetID, nil)
	if postErr := c.parent.PostMessage(messaging.SignalError, c.hostOrigin); postErr != nil {
		c.logger.Frame().Warn("Failed to post error signal", "error", postErr)
	}
	c.notify()
}

func (c *Controller) handleStart() {
	c.mu.Lock()
	switch c.state {
	case StateAcknowledged:
		c.state = StateLive
	case StateMounted, StateInitializing:
		c.startPending = true
		c.mu.Unlock()
		c.logger.Frame().Debug("Start received before ack, queued")
		return
	default:
		state := c.state
		c.mu.Unlock()
		c.logger.Frame().Debug("Ignoring start", "state", state.String())
		return
	}
	c.mu.Unlock()

	c.logger.Frame().Info("Widget session live")
	c.notify()
}

// Subscribe registers fn for every snapshot change and returns its removal func.
func (c *Controller) Subscribe(fn func(Snapshot)) func() {
	c.mu.Lock()
	c.nextSub++
	id := c.nextSub
	c.subs[id] = fn
	c.mu.Unlock()

	return func() {
		c.mu.Lock()
		delete(c.subs, id)
		c.mu.Unlock()
	}
}

func (c *Controller) notify() {
	c.mu.Lock()
	snap := c.snapshotLocked()
	subs := make([]func(Snapshot), 0, len(c.subs))
	for _, fn := range c.subs {
		subs = append(subs, fn)
	}
	c.mu.Unlock()

	for _, fn := range subs {
		fn(snap)
	}
}

func (c *Controller) snapshotLocked() Snapshot {
	snap := Snapshot{
		State:   c.state,
		Loading: c.loadingLocked(),
		Err:     c.err,
		Layout:  c.layout,
	}
	if c.auth != nil {
		a := *c.auth
		snap.Customer = &a
	}
	return snap
}

func (c *Controller) loadingLocked() bool {
	return c.state != StateLive && c.state != StateFailed
}

func (c *Controller) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Controller) Layout() widgets.Layout {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.layout
}

// Customer returns the authenticated customer once the init exchange succeeded.
func (c *Controller) Customer() (customer.Authenticated, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.auth == nil {
		return customer.Authenticated{}, false
	}
	return *c.auth, true
}

func (c *Controller) Loading() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.loadingLocked()
}

func (c *Controller) HasError() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state == StateFailed
}

func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

// DisplayName joins first and last name traits, falling back to the customer name.
func (c *Controller) DisplayName() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.auth == nil {
		return ""
	}
	var traits map[string]string
	if c.payload != nil {
		traits = c.payload.Customer().MakeTraits()
	}
	return customer.DisplayName(traits, c.auth.Name)
}

// AccessToken returns the customer jwt once the session is live.
func (c *Controller) AccessToken() (string, error) {
	_, token, err := c.liveSession()
	return token, err
}

func (c *Controller) liveSession() (widgetID, token string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateLive || c.auth == nil {
		return "", "", widgeterr.ErrSessionNotLive
	}
	return c.auth.WidgetID, c.auth.JWT, nil
}

// RequestClose asks the host to hide the widget.
func (c *Controller) RequestClose() error {
	return c.parent.PostMessage(messaging.SignalClose, c.hostOrigin)
}

// RefreshCustomer reloads the profile from /me/ and merges it into the customer.
func (c *Controller) RefreshCustomer(ctx context.Context) (customer.Authenticated, error) {
	widgetID, token, err := c.liveSession()
	if err != nil {
		return customer.Authenticated{}, err
	}
	p, err := c.backend.GetMe(ctx, widgetID, token)
	if err != nil {
		return customer.Authenticated{}, err
	}
	return c.mergeProfile(p), nil
}

// AddEmailIdentity attaches an email to an anonymous customer.
func (c *Controller) AddEmailIdentity(ctx context.Context, email string) (customer.Authenticated, error) {
	widgetID, token, err := c.liveSession()
	if err != nil {
		return customer.Authenticated{}, err
	}
	p, err := c.backend.AddEmailIdentity(ctx, widgetID, token, email)
	if err != nil {
		return customer.Authenticated{}, err
	}
	return c.mergeProfile(p), nil
}

func (c *Controller) mergeProfile(p customer.Profile) customer.Authenticated {
	c.mu.Lock()
	merged := c.auth.WithProfile(p)
	c.auth = &merged
	c.mu.Unlock()
	c.win.Enqueue(c.notify)
	return merged
}

func (c *Controller) ListThreads(ctx context.Context) ([]threads.Thread, error) {
	widgetID, token, err := c.liveSession()
	if err != nil {
		return nil, err
	}
	return c.backend.ListThreads(ctx, widgetID, token)
}

func (c *Controller) CreateThread(ctx context.Context, message string) (threads.CreateThreadResponse, error) {
	widgetID, token, err := c.liveSession()
	if err != nil {
		return threads.CreateThreadResponse{}, err
	}
	if message == "" {
		return threads.CreateThreadResponse{}, errors.New("message is required")
	}
	return c.backend.CreateThread(ctx, widgetID, token, message)
}

func (c *Controller) ListMessages(ctx context.Context, threadID string) ([]threads.Chat, error) {
	widgetID, token, err := c.liveSession()
	if err != nil {
		return nil, err
	}
	return c.backend.ListMessages(ctx, widgetID, token, threadID)
}

func (c *Controller) SendMessage(ctx context.Context, threadID, message string) (threads.Chat, error) {
	widgetID, token, err := c.liveSession()
	if err != nil {
		return threads.Chat{}, err
	}
	if message == "" {
		return threads.Chat{}, errors.New("message is required")
	}
	return c.backend.SendMessage(ctx, widgetID, token, threadID, message)
}
