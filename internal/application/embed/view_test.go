package embed

import (
	"strings"
	"testing"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/widgets"
)

func TestIsNarrow(t *testing.T) {
	cases := map[int]bool{375: true, 768: true, 769: false, 1280: false}
	for width, want := range cases {
		if got := IsNarrow(width); got != want {
			t.Errorf("IsNarrow(%d) = %v, want %v", width, got, want)
		}
	}
}

func TestCoversButton(t *testing.T) {
	cases := map[int]bool{375: true, 767: true, 768: false, 1280: false}
	for width, want := range cases {
		if got := CoversButton(width); got != want {
			t.Errorf("CoversButton(%d) = %v, want %v", width, got, want)
		}
	}
}

func TestFrameStyle(t *testing.T) {
	right := widgets.DefaultConfig()
	left := right
	left.BubblePosition = widgets.BubbleLeft

	tests := []struct {
		name     string
		cfg      widgets.Config
		narrow   bool
		visible  bool
		contains []string
	}{
		{"wide right hidden", right, false, false, []string{"width: 448px", "right: 16px", "scale(0)"}},
		{"wide left shown", left, false, true, []string{"left: 16px", "transform-origin: left bottom", "scale(1)"}},
		{"narrow fills viewport", right, true, true, []string{"width: 100%", "top: 0px"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := FrameStyle(tt.cfg, tt.narrow, true, tt.visible)
			for _, want := range tt.contains {
				if !strings.Contains(got, want) {
					t.Errorf("style missing %q: %s", want, got)
				}
			}
		})
	}

	if !strings.Contains(FrameStyle(right, false, false, false), "display: none") {
		t.Error("frame should not be displayed before load")
	}
}

func TestButtonStyleUsesHeaderColor(t *testing.T) {
	cfg := widgets.DefaultConfig()
	cfg.HeaderColor = "#123456"

	got := ButtonStyle(cfg, false, true)
	if !strings.Contains(got, "background-color:#123456") || !strings.Contains(got, "opacity: 0") {
		t.Fatalf("unexpected style %s", got)
	}
	if !strings.Contains(ButtonStyle(cfg, true, false), "display: none") {
		t.Fatal("hidden button should not display")
	}
}

func TestButtonMarkup(t *testing.T) {
	cfg := widgets.DefaultConfig()
	cfg.IconColor = `"><script>`

	svg := ButtonMarkup(cfg)
	if !strings.Contains(svg, "<svg") || strings.Contains(svg, "<script>") {
		t.Fatalf("icon markup not escaped: %s", svg)
	}

	pic := "https://cdn.example/avatar.png"
	cfg.ProfilePicture = &pic
	img := ButtonMarkup(cfg)
	if !strings.Contains(img, `<img src="https://cdn.example/avatar.png"`) || strings.Contains(img, "<svg") {
		t.Fatalf("profile picture markup = %s", img)
	}
}

func TestIframeAttributes(t *testing.T) {
	attrs := IframeAttributes("http://localhost:3005")
	if attrs["id"] != IframeID || attrs["title"] != "Zyg Widget" || attrs["src"] != "http://localhost:3005" {
		t.Fatalf("attributes = %v", attrs)
	}
}
