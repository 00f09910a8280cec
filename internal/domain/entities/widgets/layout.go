package widgets

import "strconv"

const (
	DefaultTitle                = "Hey! How can we help?"
	DefaultCTASearchButtonText  = "Search for articles, help docs and more..."
	DefaultCTAMessageButtonText = "Send us a message"
	DefaultTab                  = "home"
)

// HomeLink is a link rendered on the home tab of the iframe app
type HomeLink struct {
	ID          string `json:"id,omitempty"`
	Title       string `json:"title"`
	Href        string `json:"href"`
	PreviewText string `json:"previewText,omitempty"`
}

// Layout holds the presentational copy and navigation sent to the iframe
type Layout struct {
	Title                string     `json:"title"`
	CTASearchButtonText  string     `json:"ctaSearchButtonText"`
	CTAMessageButtonText string     `json:"ctaMessageButtonText"`
	Tabs                 []string   `json:"tabs"`
	DefaultTab           string     `json:"defaultTab"`
	HomeLinks            []HomeLink `json:"homeLinks"`
}

// LayoutOverrides carries the integrator-supplied layout values; zero values fall back to defaults.
type LayoutOverrides struct {
	Title                string
	CTASearchButtonText  string
	CTAMessageButtonText string
	Tabs                 []string
	DefaultTab           string
	HomeLinks            []HomeLink
}

// DefaultLayout returns the layout used when the integrator supplies nothing
func DefaultLayout() Layout {
	return Layout{
		Title:                DefaultTitle,
		CTASearchButtonText:  DefaultCTASearchButtonText,
		CTAMessageButtonText: DefaultCTAMessageButtonText,
		Tabs:                 []string{"home", "conversations"},
		DefaultTab:           DefaultTab,
		HomeLinks:            []HomeLink{},
	}
}

// LayoutFrom fills o with defaults and renumbers home links so each id is its index.
func LayoutFrom(o LayoutOverrides) Layout {
	l := DefaultLayout()
	if o.Title != "" {
		l.Title = o.Title
	}
	if o.CTASearchButtonText != "" {
		l.CTASearchButtonText = o.CTASearchButtonText
	}
	if o.CTAMessageButtonText != "" {
		l.CTAMessageButtonText = o.CTAMessageButtonText
	}
	if o.Tabs != nil {
		l.Tabs = append([]string(nil), o.Tabs...)
	}
	if o.DefaultTab != "" {
		l.DefaultTab = o.DefaultTab
	}

	links := make([]HomeLink, 0, len(o.HomeLinks))
	for i, link := range o.HomeLinks {
		links = append(links, HomeLink{
			ID:          strconv.Itoa(i),
			Title:       link.Title,
			Href:        link.Href,
			PreviewText: link.PreviewText,
		})
	}
	l.HomeLinks = links
	return l
}
