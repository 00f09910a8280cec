// Package messaging implements the cross-frame message channel: the handshake vocabulary,
// its double-encoded wire format, origin normalization, the per-side event loop and the
// ports that carry messages between host and iframe, in process or over a websocket.
package messaging

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/customer"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/widgets"
	"github.com/AtRiskMedia/supportwidget-go/internal/domain/widgeterr"
)

// Bare string signals. They are posted as-is, never wrapped in an envelope.
const (
	SignalReady = "ifc:ready" // iframe -> host: document loaded, listener attached
	SignalAck   = "ifc:ack"   // iframe -> host: init exchange succeeded
	SignalError = "ifc:error" // iframe -> host: init exchange failed
	SignalClose = "close"     // iframe -> host: hide the widget
)

// Kind tags a host -> iframe envelope
type Kind string

const (
	KindLayout   Kind = "layout"
	KindCustomer Kind = "customer"
	KindConfig   Kind = "config" // legacy single-message handshake
	KindStart    Kind = "start"
)

// Envelope is the typed message shape. Data holds the JSON encoding of the payload,
// and the envelope itself is JSON encoded again on the wire.
type Envelope struct {
	Type Kind   `json:"type"`
	Data string `json:"data"`
}

// Message is a decoded channel message: either a bare signal or an envelope.
type Message struct {
	Signal   string
	Envelope Envelope
}

// IsSignal reports whether the message was a bare string signal.
func (m Message) IsSignal() bool { return m.Signal != "" }

// ConfigPayload is the legacy `config` message carrying identity and layout together.
type ConfigPayload struct {
	WidgetID  string            `json:"widgetId"`
	SessionID *string           `json:"sessionId,omitempty"`
	Customer  customer.Customer `json:"customer"`
	Layout    widgets.Layout    `json:"layout"`
}

// Payload converts the legacy message into the flattened customer payload.
func (c ConfigPayload) Payload() customer.Payload {
	session := ""
	if c.SessionID != nil {
		session = *c.SessionID
	}
	return customer.NewPayload(c.WidgetID, session, c.Customer)
}

// Encode builds the wire string for a typed message.
func Encode(kind Kind, payload any) (string, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("encode %s payload: %w", kind, err)
	}
	raw, err := json.Marshal(Envelope{Type: kind, Data: string(data)})
	if err != nil {
		return "", fmt.Errorf("encode %s envelope: %w", kind, err)
	}
	return string(raw), nil
}

// Decode parses a wire string. Unparseable or untyped input yields a ProtocolError.
func Decode(raw string) (Message, error) {
	switch raw {
	case SignalReady, SignalAck, SignalError, SignalClose:
		return Message{Signal: raw}, nil
	}

	var env Envelope
	if err := json.Unmarshal([]byte(raw), &env); err != nil {
		return Message{}, &widgeterr.ProtocolError{Reason: "unparseable message"}
	}
	switch env.Type {
	case KindLayout, KindCustomer, KindConfig, KindStart:
		return Message{Envelope: env}, nil
	case "":
		return Message{}, &widgeterr.ProtocolError{Reason: "message has no type"}
	default:
		return Message{}, &widgeterr.ProtocolError{Reason: fmt.Sprintf("unknown message type %q", env.Type)}
	}
}

// Unmarshal decodes the inner payload into v.
func (e Envelope) Unmarshal(v any) error {
	if err := json.Unmarshal([]byte(e.Data), v); err != nil {
		return &widgeterr.ProtocolError{Reason: fmt.Sprintf("bad %s payload: %v", e.Type, err)}
	}
	return nil
}

// OriginOf normalizes a URL to scheme://host[:port], dropping default ports.
func OriginOf(rawURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil {
		return "", fmt.Errorf("parse origin %q: %w", rawURL, err)
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("origin %q needs a scheme and host", rawURL)
	}

	scheme := strings.ToLower(u.Scheme)
	host := strings.ToLower(u.Hostname())
	port := u.Port()
	if (scheme == "http" && port == "80") || (scheme == "https" && port == "443") {
		port = ""
	}
	if strings.Contains(host, ":") {
		host = "[" + host + "]"
	}
	if port != "" {
		return scheme + "://" + host + ":" + port, nil
	}
	return scheme + "://" + host, nil
}

// SameOrigin compares two URLs or origins after normalization.
func SameOrigin(a, b string) bool {
	oa, errA := OriginOf(a)
	ob, errB := OriginOf(b)
	return errA == nil && errB == nil && oa == ob
}
