// Package widgets provides domain entities for widget display configuration and layout.
// The remote configuration is fetched once per embed session and merged with the
// integrator's local overrides; the layout is delivered to the iframe once per handshake.
package widgets

import "slices"

// BubblePosition places the trigger bubble and the panel on one side of the page.
type BubblePosition string

const (
	BubbleLeft  BubblePosition = "left"
	BubbleRight BubblePosition = "right"
)

// Config represents the effective display configuration of a widget instance
type Config struct {
	DomainsOnly    bool           `json:"domainsOnly"`
	Domains        []string       `json:"domains"`
	BubblePosition BubblePosition `json:"bubblePosition"`
	HeaderColor    string         `json:"headerColor"`
	ProfilePicture *string        `json:"profilePicture"`
	IconColor      string         `json:"iconColor"`
}

// Overrides is a partial Config. Nil fields leave the underlying value untouched.
// Both the remote payload and the integrator's init options decode into it.
type Overrides struct {
	DomainsOnly    *bool           `json:"domainsOnly,omitempty"`
	Domains        []string        `json:"domains,omitempty"`
	BubblePosition *BubblePosition `json:"bubblePosition,omitempty"`
	HeaderColor    *string         `json:"headerColor,omitempty"`
	ProfilePicture *string         `json:"profilePicture,omitempty"`
	IconColor      *string         `json:"iconColor,omitempty"`
}

// DefaultConfig returns the built-in configuration used before any merge
func DefaultConfig() Config {
	return Config{
		DomainsOnly:    false,
		Domains:        nil,
		BubblePosition: BubbleRight,
		HeaderColor:    "#9370DB",
		ProfilePicture: nil,
		IconColor:      "#ffff",
	}
}

// Merge applies remote over base, then local over the result. The merge is shallow:
// a provided list replaces the previous list wholesale.
func Merge(base Config, remote, local Overrides) Config {
	return local.Apply(remote.Apply(base))
}

// Apply returns a copy of c with every non-nil override field set.
func (o Overrides) Apply(c Config) Config {
	out := c
	out.Domains = slices.Clone(c.Domains)
	if o.DomainsOnly != nil {
		out.DomainsOnly = *o.DomainsOnly
	}
	if o.Domains != nil {
		out.Domains = slices.Clone(o.Domains)
	}
	if o.BubblePosition != nil && *o.BubblePosition != "" {
		out.BubblePosition = *o.BubblePosition
	}
	if o.HeaderColor != nil && *o.HeaderColor != "" {
		out.HeaderColor = *o.HeaderColor
	}
	if o.ProfilePicture != nil {
		pic := *o.ProfilePicture
		out.ProfilePicture = &pic
	}
	if o.IconColor != nil && *o.IconColor != "" {
		out.IconColor = *o.IconColor
	}
	return out
}

// DomainAllowed reports whether the widget may mount on a page served from host.
// The allowlist is only enforced when DomainsOnly is set and a list is configured.
func (c Config) DomainAllowed(host string) bool {
	if !c.DomainsOnly || c.Domains == nil {
		return true
	}
	return slices.Contains(c.Domains, host)
}

// OnRight reports whether the bubble sits on the right edge.
func (c Config) OnRight() bool {
	return c.BubblePosition == BubbleRight
}
