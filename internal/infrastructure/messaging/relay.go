package messaging

import (
	"fmt"
	"sync"
	"time"

	"github.com/AtRiskMedia/supportwidget-go/internal/infrastructure/observability/logging"
	"github.com/gorilla/websocket"
)

// Role identifies which side of a channel a relay peer is.
type Role string

const (
	RoleHost  Role = "host"
	RoleFrame Role = "frame"
)

func (r Role) Valid() bool { return r == RoleHost || r == RoleFrame }

func (r Role) peer() Role {
	if r == RoleHost {
		return RoleFrame
	}
	return RoleHost
}

const (
	peerBuffer    = 64
	maxHeldFrames = 32
)

// Relay pairs a host connection with a frame connection per widget and channel key,
// and forwards frames between them with postMessage origin semantics.
type Relay struct {
	mu       sync.Mutex
	channels map[string]map[string]*relayChannel // widgetID -> key -> channel
	logger   *logging.ChanneledLogger

	pongWait   time.Duration
	pingPeriod time.Duration
}

type relayChannel struct {
	peers map[Role]*relayPeer
	held  map[Role][]Frame // frames for a side that has not joined yet
}

type relayPeer struct {
	conn   *websocket.Conn
	origin string
	send   chan Frame
}

func NewRelay(logger *logging.ChanneledLogger) *Relay {
	if logger == nil {
		logger = logging.NewNopLogger()
	}
	r := &Relay{
		channels: make(map[string]map[string]*relayChannel),
		logger:   logger,
	}
	r.setKeepalive(pongWait)
	return r
}

// setKeepalive sets how long a silent peer keeps its slot. Pings go out at 90% of it.
func (r *Relay) setKeepalive(wait time.Duration) {
	r.pongWait = wait
	r.pingPeriod = (wait * 9) / 10
}

// Serve runs one peer until its connection closes. origin is the handshake Origin
// header and becomes the origin every receiver sees for this peer's frames.
func (r *Relay) Serve(conn *websocket.Conn, widgetID, key string, role Role, origin string) error {
	if !role.Valid() {
		conn.Close()
		return fmt.Errorf("invalid relay role %q", role)
	}
	if o, err := OriginOf(origin); err == nil {
		origin = o
	}

	p := &relayPeer{conn: conn, origin: origin, send: make(chan Frame, peerBuffer)}
	if err := r.join(widgetID, key, role, p); err != nil {
		conn.Close()
		return err
	}
	defer r.leave(widgetID, key, role, p)

	go r.writePump(p)

	conn.SetReadLimit(maxFrame)
	conn.SetReadDeadline(time.Now().Add(r.pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(r.pongWait))
	})
	for {
		var f Frame
		if err := conn.ReadJSON(&f); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				r.logger.Relay().Warn("Relay peer read failed", "widgetId", widgetID, "role", role, "error", err)
			} else {
				r.logger.Relay().Debug("Relay peer disconnected", "widgetId", widgetID, "role", role, "error", err)
			}
			return nil
		}
		f.Origin = origin
		r.forward(widgetID, key, role, f)
	}
}

func (r *Relay) join(widgetID, key string, role Role, p *relayPeer) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	byKey, exists := r.channels[widgetID]
	if !exists {
		byKey = make(map[string]*relayChannel)
		r.channels[widgetID] = byKey
	}
	ch, exists := byKey[key]
	if !exists {
		ch = &relayChannel{peers: make(map[Role]*relayPeer), held: make(map[Role][]Frame)}
		byKey[key] = ch
	}
	if _, taken := ch.peers[role]; taken {
		return fmt.Errorf("relay channel %s/%s already has a %s peer", widgetID, key, role)
	}
	ch.peers[role] = p

	for _, f := range ch.held[role] {
		r.deliverLocked(p, f, widgetID)
	}
	delete(ch.held, role)

	r.logger.Relay().Debug("Relay peer joined", "widgetId", widgetID, "role", role, "origin", p.origin)
	return nil
}

func (r *Relay) leave(widgetID, key string, role Role, p *relayPeer) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if byKey, exists := r.channels[widgetID]; exists {
		if ch, exists := byKey[key]; exists && ch.peers[role] == p {
			delete(ch.peers, role)
			close(p.send)
			if len(ch.peers) == 0 {
				delete(byKey, key)
			}
		}
		if len(byKey) == 0 {
			delete(r.channels, widgetID)
		}
	}
	r.logger.Relay().Debug("Relay peer left", "widgetId", widgetID, "role", role)
}

func (r *Relay) forward(widgetID, key string, from Role, f Frame) {
	r.mu.Lock()
	defer r.mu.Unlock()

	ch, exists := r.channels[widgetID][key]
	if !exists {
		return
	}
	to := from.peer()
	target, present := ch.peers[to]
	if !present {
		if len(ch.held[to]) < maxHeldFrames {
			ch.held[to] = append(ch.held[to], f)
		}
		return
	}
	r.deliverLocked(target, f, widgetID)
}

func (r *Relay) deliverLocked(target *relayPeer, f Frame, widgetID string) {
	if !TargetMatches(f.TargetOrigin, target.origin) {
		r.logger.Protocol().Debug("Relay dropped frame for mismatched target origin",
			"widgetId", widgetID, "targetOrigin", f.TargetOrigin, "peerOrigin", target.origin)
		return
	}
	select {
	case target.send <- f:
	default:
		r.logger.Relay().Warn("Relay peer buffer full, frame dropped", "widgetId", widgetID)
	}
}

func (r *Relay) writePump(p *relayPeer) {
	ticker := time.NewTicker(r.pingPeriod)
	defer func() {
		ticker.Stop()
		p.conn.Close()
	}()

	for {
		select {
		case f, ok := <-p.send:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				p.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := p.conn.WriteJSON(f); err != nil {
				return
			}
		case <-ticker.C:
			p.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := p.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// PeerCount returns the number of connected peers on one channel.
func (r *Relay) PeerCount(widgetID, key string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	if ch, exists := r.channels[widgetID][key]; exists {
		return len(ch.peers)
	}
	return 0
}
