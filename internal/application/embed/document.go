package embed

import (
	"fmt"
	"net/url"
	"sync"

	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/messaging"
)

// Document is the host page as seen by the embed controller.
type Document interface {
	Hostname() string
	ViewportWidth() int
	Window() *messaging.Window
	MountFrame(id, src string) (FrameHandle, error)
	Render(v View)
	OnResize(fn func(width int)) (remove func())
	Expose(name string, v any)
	Dispatch(event string)
}

// FrameHandle is a mounted iframe.
type FrameHandle interface {
	// Port posts into the iframe document.
	Port() messaging.Port
	// OnLoad runs fn on the host loop once the iframe document has loaded.
	OnLoad(fn func())
}

// ConnectFunc opens the channel to the iframe application served at src.
type ConnectFunc func(src string) (messaging.Port, error)

// HeadlessDocument is an in-memory Document for tests and the simulator.
type HeadlessDocument struct {
	win      *messaging.Window
	hostname string
	connect  ConnectFunc

	mu         sync.Mutex
	width      int
	frames     map[string]*headlessFrame
	view       View
	renders    int
	exposed    map[string]any
	dispatched []string
	resize     map[uint64]func(int)
	nextResize uint64
}

// NewHeadlessDocument creates a page served from pageURL with the given viewport width.
func NewHeadlessDocument(pageURL string, width int, connect ConnectFunc) (*HeadlessDocument, error) {
	u, err := url.Parse(pageURL)
	if err != nil || u.Hostname() == "" {
		return nil, fmt.Errorf("invalid page url %q", pageURL)
	}
	return &HeadlessDocument{
		win:      messaging.NewWindow(pageURL),
		hostname: u.Hostname(),
		connect:  connect,
		width:    width,
		frames:   make(map[string]*headlessFrame),
		exposed:  make(map[string]any),
		resize:   make(map[uint64]func(int)),
	}, nil
}

func (d *HeadlessDocument) Hostname() string          { return d.hostname }
func (d *HeadlessDocument) Window() *messaging.Window { return d.win }

func (d *HeadlessDocument) ViewportWidth() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.width
}

// MountFrame connects to src and fires the frame's load event on the next loop turn.
func (d *HeadlessDocument) MountFrame(id, src string) (FrameHandle, error) {
	if d.connect == nil {
		return nil, fmt.Errorf("document cannot load %s", src)
	}
	d.mu.Lock()
	if _, exists := d.frames[id]; exists {
		d.mu.Unlock()
		return nil, fmt.Errorf("element %s already exists", id)
	}
	d.mu.Unlock()

	port, err := d.connect(src)
	if err != nil {
		return nil, fmt.Errorf("load frame %s: %w", src, err)
	}
	f := &headlessFrame{win: d.win, id: id, src: src, port: port}

	d.mu.Lock()
	d.frames[id] = f
	d.mu.Unlock()

	d.win.Enqueue(f.load)
	return f, nil
}

// Frame returns a mounted frame's source url.
func (d *HeadlessDocument) Frame(id string) (src string, ok bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	f, ok := d.frames[id]
	if !ok {
		return "", false
	}
	return f.src, true
}

func (d *HeadlessDocument) Render(v View) {
	d.mu.Lock()
	d.view = v
	d.renders++
	d.mu.Unlock()
}

// View returns the last rendered view.
func (d *HeadlessDocument) View() View {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.view
}

func (d *HeadlessDocument) OnResize(fn func(width int)) func() {
	d.mu.Lock()
	d.nextResize++
	id := d.nextResize
	d.resize[id] = fn
	d.mu.Unlock()

	return func() {
		d.mu.Lock()
		delete(d.resize, id)
		d.mu.Unlock()
	}
}

// Resize changes the viewport and fires resize listeners on the loop.
func (d *HeadlessDocument) Resize(width int) {
	d.mu.Lock()
	d.width = width
	listeners := make([]func(int), 0, len(d.resize))
	for _, fn := range d.resize {
		listeners = append(listeners, fn)
	}
	d.mu.Unlock()

	d.win.Enqueue(func() {
		for _, fn := range listeners {
			fn(width)
		}
	})
}

func (d *HeadlessDocument) Expose(name string, v any) {
	d.mu.Lock()
	d.exposed[name] = v
	d.mu.Unlock()
}

// Global returns a value exposed on the page.
func (d *HeadlessDocument) Global(name string) (any, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	v, ok := d.exposed[name]
	return v, ok
}

func (d *HeadlessDocument) Dispatch(event string) {
	d.mu.Lock()
	d.dispatched = append(d.dispatched, event)
	d.mu.Unlock()
}

// Dispatched returns the page-level events fired so far.
func (d *HeadlessDocument) Dispatched() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.dispatched...)
}

// Close stops the page's event loop.
func (d *HeadlessDocument) Close() {
	d.win.Close()
}

type headlessFrame struct {
	win  *messaging.Window
	id   string
	src  string
	port messaging.Port

	mu     sync.Mutex
	loaded bool
	onLoad []func()
}

func (f *headlessFrame) Port() messaging.Port { return f.port }

func (f *headlessFrame) OnLoad(fn func()) {
	f.mu.Lock()
	if f.loaded {
		f.mu.Unlock()
		f.win.Enqueue(fn)
		return
	}
	f.onLoad = append(f.onLoad, fn)
	f.mu.Unlock()
}

func (f *headlessFrame) load() {
	f.mu.Lock()
	f.loaded = true
	callbacks := f.onLoad
	f.onLoad = nil
	f.mu.Unlock()

	for _, fn := range callbacks {
		fn()
	}
}
