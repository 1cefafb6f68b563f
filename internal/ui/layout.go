package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/phoenix-warmup/internal/theme"
)

// Layout manages the terminal frame dimensions.
type Layout struct {
	Width           int
	Height          int
	HeaderHeight    int
	StatusBarHeight int
}

// NewLayout creates a Layout with the given terminal dimensions.
// HeaderHeight and StatusBarHeight default to 1.
func NewLayout(width, height int) Layout {
	return Layout{
		Width:           width,
		Height:          height,
		HeaderHeight:    1,
		StatusBarHeight: 1,
	}
}

// ContentWidth returns the full available width.
func (l Layout) ContentWidth() int {
	return l.Width
}

// ContentHeight returns the height left between the header and the
// status bar.
func (l Layout) ContentHeight() int {
	return max(0, l.Height-l.HeaderHeight-l.StatusBarHeight)
}

// bar renders left and right on one line of style, padding the middle
// so the bar spans the full width.
func (l Layout) bar(style lipgloss.Style, left, right string) string {
	l1 := style.Render(left)
	r1 := ""
	if right != "" {
		r1 = style.Render(right)
	}
	gap := max(0, l.Width-lipgloss.Width(l1)-lipgloss.Width(r1))
	filler := lipgloss.NewStyle().
		Width(gap).
		Background(style.GetBackground()).
		Render("")
	return lipgloss.JoinHorizontal(lipgloss.Top, l1, filler, r1)
}

// RenderHeader renders the title bar with status text on the right.
func (l Layout) RenderHeader(title, status string) string {
	return l.bar(theme.HeaderStyle, title, status)
}

// RenderStatusBar renders the bottom bar with key hints and an optional
// notice on the right.
func (l Layout) RenderStatusBar(hints, notice string) string {
	return l.bar(theme.StatusBarStyle, hints, notice)
}

// RenderWithFrame joins the header, content area and status bar.
func (l Layout) RenderWithFrame(header, content, statusBar string) string {
	content = lipgloss.NewStyle().
		Height(l.ContentHeight()).
		MaxHeight(l.ContentHeight()).
		Render(content)
	return lipgloss.JoinVertical(lipgloss.Left, header, content, statusBar)
}

// Center places s in the middle of the content area.
func (l Layout) Center(s string) string {
	return lipgloss.Place(l.Width, l.ContentHeight(), lipgloss.Center, lipgloss.Center, s)
}
