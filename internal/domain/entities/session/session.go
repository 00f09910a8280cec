// Package session provides domain entities for widget session resolution.
// A session is either bound to a host-asserted customer hash or tracked through an
// anonymous id persisted in the local store under the widget id.
package session

// Mode tells how the widget identifies the customer to the backend
type Mode string

const (
	// ModeAnonymous uses a locally persisted opaque session id.
	ModeAnonymous Mode = "anonymous"
	// ModeHashed relies on the host-asserted customer hash; no session id is read or created.
	ModeHashed Mode = "hashed"
)

// Resolution is the outcome of session resolution for one pageview
type Resolution struct {
	Mode      Mode   `json:"mode"`
	SessionID string `json:"sessionId,omitempty"`
	Reused    bool   `json:"reused"`    // read back from the store
	Persisted bool   `json:"persisted"` // stored now or earlier; false means in-memory only
}

// Anonymous reports whether the resolution carries an anonymous session id.
func (r Resolution) Anonymous() bool {
	return r.Mode == ModeAnonymous
}
