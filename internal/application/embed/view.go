package embed

import (
	"html"
	"strings"

	"github.com/AtRiskMedia/supportwidget-go/internal/domain/entities/widgets"
)

const (
	FrameID  = "zyg-frame"
	IframeID = "zyg-iframe"
	ButtonID = "zyg-button"

	// NarrowBreakpoint is the widest viewport that still gets the full-screen panel.
	NarrowBreakpoint = 768
)

// View is a snapshot of everything the embed draws on the host page.
type View struct {
	Mounted         bool
	Narrow          bool
	FrameDisplayed  bool // container revealed after the iframe loaded
	FrameVisible    bool // panel open
	ButtonAttached  bool
	ButtonRevealed  bool
	ButtonVisible   bool
	FrameStyle      string
	ButtonStyle     string
	ButtonMarkup    string
	IframeAttribute map[string]string
}

// IsNarrow applies the responsive breakpoint.
func IsNarrow(width int) bool {
	return width <= NarrowBreakpoint
}

// CoversButton reports whether the open panel hides the bubble. At exactly the
// breakpoint the panel is full screen but the bubble stays.
func CoversButton(width int) bool {
	return width < NarrowBreakpoint
}

const (
	frameBase = "position: fixed !important; " +
		"box-shadow: rgba(150, 150, 150, 0.2) 0px 10px 30px 0px, rgba(150, 150, 150, 0.2) 0px 0px 0px 1px; " +
		"overflow: hidden !important; " +
		"border: none !important; " +
		"z-index: 2147483645 !important; " +
		"border-radius: 0.75rem; " +
		"bottom: 96px; " +
		"transition: scale 200ms ease-out 0ms, opacity 200ms ease-out 0ms; "

	frameWide   = "width: 448px; height: 72vh; max-height: 720px; "
	frameNarrow = "width: 100%; height: 100%; max-height: 100%; min-height: 100%; " +
		"left: 0px; right: 0px; bottom: 0px; top: 0px; "

	frameRight = "right: 16px; left: unset; transform-origin: right bottom; "
	frameLeft  = "left: 16px; right: unset; transform-origin: left bottom; "

	frameShown  = "opacity: 1 !important; transform: scale(1) !important;"
	frameHidden = "opacity: 0 !important; transform: scale(0) !important;"

	iframeStyle = "border: 0px !important; width: 100% !important; height: 100% !important; " +
		"display: block !important; opacity: 1 !important;"

	chatIconPath = "M4.848 2.771A49.144 49.144 0 0112 2.25c2.43 0 4.817.178 7.152.52 1.978.292 3.348 2.024 " +
		"3.348 3.97v6.02c0 1.946-1.37 3.678-3.348 3.97a48.901 48.901 0 01-3.476.383.39.39 0 00-.297.17l-2.755 " +
		"4.133a.75.75 0 01-1.248 0l-2.755-4.133a.39.39 0 00-.297-.17 48.9 48.9 0 01-3.476-.384c-1.978-.29-3.348-2.024-" +
		"3.348-3.97V6.741c0-1.946 1.37-3.68 3.348-3.97zM6.75 8.25a.75.75 0 01.75-.75h9a.75.75 0 010 1.5h-9a.75.75 0 " +
		"01-.75-.75zm.75 2.25a.75.75 0 000 1.5H12a.75.75 0 000-1.5H7.5z"
)

// FrameStyle computes the css of the frame container. The size follows the viewport,
// the anchor follows the bubble side and the transform follows visibility.
func FrameStyle(cfg widgets.Config, narrow, displayed, visible bool) string {
	var b strings.Builder
	b.WriteString(frameBase)
	if displayed {
		b.WriteString("display: block !important; ")
	} else {
		b.WriteString("display: none !important; ")
	}
	if cfg.OnRight() {
		b.WriteString(frameRight)
	} else {
		b.WriteString(frameLeft)
	}
	if narrow {
		b.WriteString(frameNarrow)
	} else {
		b.WriteString(frameWide)
	}
	if visible {
		b.WriteString(frameShown)
	} else {
		b.WriteString(frameHidden)
	}
	return b.String()
}

// ButtonStyle computes the css of the trigger bubble.
func ButtonStyle(cfg widgets.Config, revealed, visible bool) string {
	var b strings.Builder
	b.WriteString("background-color:" + cfg.HeaderColor + ";")
	b.WriteString("position: fixed; bottom: 1rem;")
	if cfg.OnRight() {
		b.WriteString("right: 16px; left: unset;")
	} else {
		b.WriteString("left: 16px; right: unset;")
	}
	b.WriteString("width: 50px; height: 50px; border-radius: 25px; cursor: pointer; z-index: 2147483645;")
	b.WriteString("transition: transform 0.2s ease-in-out, opacity 0.2s ease-in-out;")
	if revealed {
		b.WriteString("transform: scale(1); opacity: 1;")
	} else {
		b.WriteString("transform: scale(0); opacity: 0;")
	}
	if visible {
		b.WriteString("display: block;")
	} else {
		b.WriteString("display: none;")
	}
	return b.String()
}

// ButtonMarkup renders the bubble content: the profile picture when configured,
// otherwise the chat icon filled with the icon color.
func ButtonMarkup(cfg widgets.Config) string {
	var b strings.Builder
	b.WriteString(`<div style="display: flex; align-items: center; justify-content: center; width: 100%; height: 100%; z-index: 2147483646;">`)
	if cfg.ProfilePicture != nil && *cfg.ProfilePicture != "" {
		b.WriteString(`<img src="` + html.EscapeString(*cfg.ProfilePicture) + `" style="width: 100%; height: 100%; border-radius: 100px;" />`)
	} else {
		b.WriteString(`<svg xmlns="http://www.w3.org/2000/svg" viewBox="0 0 24 24" fill="` + html.EscapeString(cfg.IconColor) +
			`" style="width: 60%; height: 60%;"><path fill-rule="evenodd" d="` + chatIconPath + `" clip-rule="evenodd" /></svg>`)
	}
	b.WriteString("</div>")
	return b.String()
}

// IframeAttributes are set on the iframe element pointing at the widget app.
func IframeAttributes(src string) map[string]string {
	return map[string]string{
		"id":          IframeID,
		"title":       "Zyg Widget",
		"src":         src,
		"frameborder": "0",
		"scrolling":   "no",
		"style":       iframeStyle,
	}
}
