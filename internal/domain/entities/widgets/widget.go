package widgets

import "time"

// Widget is a widget instance as stored by the backend. Config is the remote part of the
// display configuration served to the embed.
type Widget struct {
	ID        string
	Name      string
	Config    Overrides
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Effective returns the widget's configuration merged over the defaults.
func (w *Widget) Effective() Config {
	return w.Config.Apply(DefaultConfig())
}
