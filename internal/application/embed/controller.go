// Package embed implements the host-page side of the widget: bootstrap, iframe mounting,
// visibility and the host half of the handshake.
package embed

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/AtRiskMedia/supportwidget-go/internal/application/identity"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/customer"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/session"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/widgets"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/events"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/widgeterr"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/backend"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/messaging"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/performance"
	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/storage"
	"github.com/AtRiskMedia/supportwidget-go/pkg/config"
)

const (
	GlobalName  = "Zyg"
	LoadedEvent = "zyg:loaded"
)

var (
	ErrDomainNotAllowed = errors.New("domain not allowed")
	ErrFrameInit        = errors.New("widget frame failed to initialize")
)

// InitConfig is what the integrator passes to the init entry point.
type InitConfig struct {
	WidgetID string
	Customer *customer.Customer

	Title                string
	CTASearchButtonText  string
	CTAMessageButtonText string
	Tabs                 []string
	DefaultTab           string
	HomeLinks            []widgets.HomeLink

	Style widgets.Overrides

	BaseURL             string
	APIURL              string
	LegacyConfigMessage bool
}

// ConfigSource provides the remote widget display configuration.
type ConfigSource interface {
	FetchWidgetConfig(ctx context.Context, widgetID string) (widgets.Overrides, error)
}

// Clock schedules delayed work such as the bubble reveal.
type Clock interface {
	AfterFunc(d time.Duration, f func()) (stop func() bool)
}

type realClock struct{}

func (realClock) AfterFunc(d time.Duration, f func()) func() bool {
	return time.AfterFunc(d, f).Stop
}

type Options struct {
	Document     Document
	ConfigSource ConfigSource
	Store        storage.SessionStore
	Logger       *logging.ChanneledLogger
	PerfTracker  *performance.Tracker
	Clock        Clock
	RevealDelay  time.Duration
	NewSessionID func() string
}

// State of the host half of the handshake.
type State int

const (
	StateBootstrapping State = iota
	StateAwaitingReady
	StateAwaitingAck
	StateLive
	StateFailed
	StateAborted
)

func (s State) String() string {
	switch s {
	case StateBootstrapping:
		return "bootstrapping"
	case StateAwaitingReady:
		return "awaiting_ready"
	case StateAwaitingAck:
		return "awaiting_ack"
	case StateLive:
		return "live"
	case StateFailed:
		return "failed"
	case StateAborted:
		return "aborted"
	}
	return fmt.Sprintf("state(%d)", int(s))
}

type Controller struct {
	widgetID    string
	customer    customer.Customer
	layout      widgets.Layout
	local       widgets.Overrides
	baseURL     string
	frameOrigin string
	legacy      bool

	doc         Document
	source      ConfigSource
	resolver    *identity.Resolver
	logger      *logging.ChanneledLogger
	perfTracker *performance.Tracker
	clock       Clock
	revealDelay time.Duration
	emitter     *events.Emitter

	startOnce sync.Once
	done      chan struct{}

	mu             sync.Mutex
	state          State
	cfg            widgets.Config
	resolution     session.Resolution
	frame          FrameHandle
	hidden         bool
	buttonAttached bool
	revealed       bool
	buttonVisible  bool
	err            error
	removeMessage  func()
	removeResize   func()
	stopReveal     func() bool
}

// New validates cfg synchronously. Configuration errors are returned here, before any
// network call is made.
func New(cfg InitConfig, opts Options) (*Controller, error) {
	var c customer.Customer
	if cfg.Customer != nil {
		c = *cfg.Customer
	}
	if err := identity.Validate(cfg.WidgetID, c); err != nil {
		return nil, err
	}
	if opts.Document == nil {
		return nil, widgeterr.Configuration("a document is required")
	}

	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.WidgetBaseURL
	}
	frameOrigin, err := messaging.OriginOf(baseURL)
	if err != nil {
		return nil, widgeterr.Configuration("invalid baseUrl: %v", err)
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = config.APIURL
	}

	if opts.Logger == nil {
		opts.Logger = logging.NewNopLogger()
	}
	if opts.ConfigSource == nil {
		opts.ConfigSource = backend.NewClient(apiURL, nil, opts.Logger)
	}
	if opts.Store == nil {
		opts.Store = storage.DisabledStore{}
	}
	if opts.Clock == nil {
		opts.Clock = realClock{}
	}
	if opts.RevealDelay <= 0 {
		opts.RevealDelay = config.ButtonRevealWait
	}

	return &Controller{
		widgetID: cfg.WidgetID,
		customer: c,
		layout: widgets.LayoutFrom(widgets.LayoutOverrides{
			Title:                cfg.Title,
			CTASearchButtonText:  cfg.CTASearchButtonText,
			CTAMessageButtonText: cfg.CTAMessageButtonText,
			Tabs:                 cfg.Tabs,
			DefaultTab:           cfg.DefaultTab,
			HomeLinks:            cfg.HomeLinks,
		}),
		local:       cfg.Style,
		baseURL:     baseURL,
		frameOrigin: frameOrigin,
		legacy:      cfg.LegacyConfigMessage,
		doc:         opts.Document,
		source:      opts.ConfigSource,
		resolver:    identity.NewResolver(opts.Store, opts.NewSessionID, opts.Logger),
		logger:      opts.Logger,
		perfTracker: opts.PerfTracker,
		clock:       opts.Clock,
		revealDelay: opts.RevealDelay,
		emitter:     events.NewEmitter(events.Ready, events.Error),
		done:        make(chan struct{}),
		cfg:         widgets.DefaultConfig(),
		hidden:      true,
	}, nil
}

// InitWidgetScript is the page-level entry point: it creates and starts the controller,
// exposes it as the global handle and announces that the script has loaded.
func InitWidgetScript(cfg InitConfig, opts Options) (*Controller, error) {
	c, err := New(cfg, opts)
	if err != nil {
		return nil, err
	}
	c.Start(context.Background())
	opts.Document.Expose(GlobalName, c)
	opts.Document.Dispatch(LoadedEvent)
	return c, nil
}

// Start launches the bootstrap and returns immediately. Failures are reported through
// the error event and Err, never returned.
func (c *Controller) Start(ctx context.Context) {
	c.startOnce.Do(func() {
		go c.bootstrap(ctx)
	})
}

// Done is closed when the bootstrap has mounted the widget or given up.
func (c *Controller) Done() <-chan struct{} { return c.done }

// Err returns the bootstrap or handshake failure, if any.
func (c *Controller) Err() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.err
}

func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Config returns the effective display configuration.
func (c *Controller) Config() widgets.Config {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.cfg
}

// Session returns the session resolved during bootstrap.
func (c *Controller) Session() session.Resolution {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.resolution
}

func (c *Controller) On(name events.Name, fn events.Handler) events.Subscription {
	return c.emitter.On(name, fn)
}

func (c *Controller) Off(sub events.Subscription) {
	c.emitter.Off(sub)
}

func (c *Controller) bootstrap(ctx context.Context) {
	marker := c.perfTracker.StartOperation("embed:fetch_config", c.widgetID)
	remote, err := c.source.FetchWidgetConfig(ctx, c.widgetID)
	marker.SetSuccess(err == nil)
	marker.SetError(err)
	marker.Complete()
	c.logger.Perf().Info("Performance for widget config fetch", "duration", marker.Duration,
		"widgetId", c.widgetID, "success", err == nil)

	if err != nil {
		c.fail(StateFailed, fmt.Errorf("fetch widget config: %w", err))
		close(c.done)
		return
	}

	if !c.doc.Window().Enqueue(func() {
		defer close(c.done)
		c.afterConfig(remote)
	}) {
		c.fail(StateAborted, errors.New("document closed before widget mounted"))
		close(c.done)
	}
}

// afterConfig runs the remaining bootstrap stages on the page loop.
func (c *Controller) afterConfig(remote widgets.Overrides) {
	cfg := widgets.Merge(widgets.DefaultConfig(), remote, c.local)

	res, err := c.resolver.Resolve(c.widgetID, c.customer)
	if err != nil {
		c.fail(StateFailed, err)
		return
	}

	c.mu.Lock()
	c.cfg = cfg
	c.resolution = res
	c.mu.Unlock()

	if !cfg.DomainAllowed(c.doc.Hostname()) {
		c.logger.Embed().Error("Domain not allowed", "widgetId", c.widgetID, "hostname", c.doc.Hostname())
		c.fail(StateAborted, ErrDomainNotAllowed)
		return
	}

	if err := c.mount(); err != nil {
		c.fail(StateFailed, err)
	}
}

func (c *Controller) mount() error {
	win := c.doc.Window()

	c.mu.Lock()
	c.removeMessage = win.AddMessageListener(c.handleMessage)
	c.removeResize = c.doc.OnResize(func(int) { c.render() })
	c.state = StateAwaitingReady
	c.mu.Unlock()

	frame, err := c.doc.MountFrame(FrameID, c.baseURL)
	if err != nil {
		return fmt.Errorf("mount widget frame: %w", err)
	}

	c.mu.Lock()
	c.frame = frame
	c.mu.Unlock()
	c.render()

	frame.OnLoad(c.attachButton)
	c.logger.Embed().Info("Widget frame mounted", "widgetId", c.widgetID, "src", c.baseURL)
	return nil
}

func (c *Controller) attachButton() {
	c.mu.Lock()
	c.buttonAttached = true
	c.buttonVisible = true
	c.stopReveal = c.clock.AfterFunc(c.revealDelay, func() {
		c.doc.Window().Enqueue(c.reveal)
	})
	c.mu.Unlock()
	c.render()
}

func (c *Controller) reveal() {
	c.mu.Lock()
	c.revealed = true
	c.mu.Unlock()
	c.render()
}

func (c *Controller) fail(state State, err error) {
	c.mu.Lock()
	c.state = state
	c.err = err
	c.mu.Unlock()

	c.logger.LogError(logging.ChannelEmbed, "bootstrap", err, c.widgetID, map[string]any{"state": state.String()})
	c.emitter.Trigger(events.Error, err)
}

func (c *Controller) handleMessage(ev messaging.MessageEvent) {
	if !messaging.SameOrigin(ev.Origin, c.frameOrigin) {
		c.drop(&widgeterr.ProtocolError{Reason: "unexpected origin", Origin: ev.Origin})
		return
	}
	msg, err := messaging.Decode(ev.Data)
	if err != nil {
		c.drop(err)
		return
	}
	if !msg.IsSignal() {
		c.drop(&widgeterr.ProtocolError{Reason: "unexpected envelope " + string(msg.Envelope.Type), Origin: ev.Origin})
		return
	}

	switch msg.Signal {
	case messaging.SignalReady:
		c.handleReady()
	case messaging.SignalAck:
		c.handleAck()
	case messaging.SignalError:
		c.handleFrameError()
	case messaging.SignalClose:
		c.Hide()
	}
}

func (c *Controller) drop(err error) {
	c.logger.Protocol().Debug("Dropped message", "widgetId", c.widgetID, "error", err)
}

func (c *Controller) handleReady() {
	c.mu.Lock()
	if c.state != StateAwaitingReady {
		state := c.state
		c.mu.Unlock()
		c.logger.Embed().Debug("Ignoring ready", "state", state.String())
		return
	}
	c.state = StateAwaitingAck
	port := c.frame.Port()
	sessionID := c.resolution.SessionID
	c.mu.Unlock()

	if c.legacy {
		var sid *string
		if sessionID != "" {
			sid = &sessionID
		}
		c.post(port, messaging.KindConfig, messaging.ConfigPayload{
			WidgetID:  c.widgetID,
			SessionID: sid,
			Customer:  c.customer,
			Layout:    c.layout,
		})
		return
	}
	c.post(port, messaging.KindLayout, c.layout)
	c.post(port, messaging.KindCustomer, customer.NewPayload(c.widgetID, sessionID, c.customer))
}

func (c *Controller) handleAck() {
	c.mu.Lock()
	if c.state != StateAwaitingAck {
		state := c.state
		c.mu.Unlock()
		c.logger.Embed().Debug("Ignoring ack", "state", state.String())
		return
	}
	c.state = StateLive
	port := c.frame.Port()
	c.mu.Unlock()

	c.post(port, messaging.KindStart, nil)
	c.logger.Embed().Info("Widget session live", "widgetId", c.widgetID)
	c.emitter.Trigger(events.Ready, nil)
}

func (c *Controller) handleFrameError() {
	c.mu.Lock()
	if c.state == StateFailed || c.state == StateAborted {
		c.mu.Unlock()
		return
	}
	c.state = StateFailed
	c.err = ErrFrameInit
	c.mu.Unlock()

	c.logger.Embed().Warn("Widget frame reported an init failure", "widgetId", c.widgetID)
	c.emitter.Trigger(events.Error, ErrFrameInit)
}

func (c *Controller) post(port messaging.Port, kind messaging.Kind, payload any) {
	raw, err := messaging.Encode(kind, payload)
	if err != nil {
		c.logger.LogError(logging.ChannelEmbed, "encode_"+string(kind), err, c.widgetID, nil)
		return
	}
	if err := port.PostMessage(raw, c.baseURL); err != nil {
		c.logger.LogError(logging.ChannelEmbed, "post_"+string(kind), err, c.widgetID, nil)
	}
}

// Toggle flips the panel, as a click on the bubble does.
func (c *Controller) Toggle() {
	c.mu.Lock()
	hidden := c.hidden
	c.mu.Unlock()
	if hidden {
		c.Show()
	} else {
		c.Hide()
	}
}

// Show opens the panel. Below the breakpoint the bubble is hidden behind it.
func (c *Controller) Show() {
	covered := CoversButton(c.doc.ViewportWidth())
	c.mu.Lock()
	c.hidden = false
	if covered {
		c.buttonVisible = false
	}
	c.mu.Unlock()
	c.render()
}

// Hide closes the panel and brings the bubble back.
func (c *Controller) Hide() {
	c.mu.Lock()
	c.hidden = true
	c.buttonVisible = c.buttonAttached
	c.mu.Unlock()
	c.render()
}

// View computes the current page view.
func (c *Controller) View() View {
	narrow := IsNarrow(c.doc.ViewportWidth())
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.viewLocked(narrow)
}

func (c *Controller) viewLocked(narrow bool) View {
	v := View{
		Mounted:        c.frame != nil,
		Narrow:         narrow,
		FrameDisplayed: c.revealed,
		FrameVisible:   c.frame != nil && !c.hidden,
		ButtonAttached: c.buttonAttached,
		ButtonRevealed: c.revealed,
		ButtonVisible:  c.buttonAttached && c.buttonVisible,
	}
	if !v.Mounted {
		return v
	}
	v.FrameStyle = FrameStyle(c.cfg, narrow, c.revealed, !c.hidden)
	v.IframeAttribute = IframeAttributes(c.baseURL)
	if c.buttonAttached {
		v.ButtonStyle = ButtonStyle(c.cfg, c.revealed, v.ButtonVisible)
		v.ButtonMarkup = ButtonMarkup(c.cfg)
	}
	return v
}

func (c *Controller) render() {
	narrow := IsNarrow(c.doc.ViewportWidth())
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doc.Render(c.viewLocked(narrow))
}

// Close removes listeners and stops pending timers.
func (c *Controller) Close() {
	c.mu.Lock()
	removeMessage, removeResize, stopReveal := c.removeMessage, c.removeResize, c.stopReveal
	c.removeMessage, c.removeResize, c.stopReveal = nil, nil, nil
	c.mu.Unlock()

	if removeMessage != nil {
		removeMessage()
	}
	if removeResize != nil {
		removeResize()
	}
	if stopReveal != nil {
		stopReveal()
	}
}
