package messaging

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	writeWait = 10 * time.Second
	pongWait  = 60 * time.Second
	maxFrame  = 64 * 1024
)

// Frame is the websocket framing of one postMessage call. Origin is stamped by the
// relay from the sender's handshake and is ignored when a client sets it.
type Frame struct {
	Origin       string `json:"origin,omitempty"`
	TargetOrigin string `json:"targetOrigin"`
	Data         string `json:"data"`
}

// WSPort carries postMessage calls over a relay connection and delivers inbound
// frames to the local window.
type WSPort struct {
	conn    *websocket.Conn
	local   *Window
	writeMu sync.Mutex
	done    chan struct{}
	once    sync.Once
}

// DialWSPort connects to a relay endpoint, presenting origin as the document origin.
func DialWSPort(ctx context.Context, url, origin string, local *Window) (*WSPort, error) {
	header := http.Header{}
	header.Set("Origin", origin)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, url, header)
	if err != nil {
		return nil, fmt.Errorf("dial relay %s: %w", url, err)
	}
	return NewWSPort(conn, local), nil
}

// NewWSPort wraps an open connection and starts its read pump.
func NewWSPort(conn *websocket.Conn, local *Window) *WSPort {
	p := &WSPort{conn: conn, local: local, done: make(chan struct{})}
	go p.readPump()
	return p
}

func (p *WSPort) PostMessage(data, targetOrigin string) error {
	p.writeMu.Lock()
	defer p.writeMu.Unlock()

	select {
	case <-p.done:
		return ErrWindowClosed
	default:
	}
	p.conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := p.conn.WriteJSON(Frame{TargetOrigin: targetOrigin, Data: data}); err != nil {
		return fmt.Errorf("post over relay: %w", err)
	}
	return nil
}

// Done is closed once the connection ends.
func (p *WSPort) Done() <-chan struct{} { return p.done }

func (p *WSPort) Close() error {
	p.writeMu.Lock()
	p.conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), time.Now().Add(writeWait))
	p.writeMu.Unlock()
	err := p.conn.Close()
	p.shutdown()
	return err
}

func (p *WSPort) shutdown() {
	p.once.Do(func() { close(p.done) })
}

func (p *WSPort) readPump() {
	defer p.shutdown()
	p.conn.SetReadLimit(maxFrame)
	for {
		var f Frame
		if err := p.conn.ReadJSON(&f); err != nil {
			return
		}
		if p.local != nil {
			p.local.Deliver(MessageEvent{Data: f.Data, Origin: f.Origin})
		}
	}
}
