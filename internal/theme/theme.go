package theme

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/nhle/phoenix-warmup/internal/model"
)

// Adaptive color pairs (dark terminal value, light terminal value).
var (
	ColorOrange  = lipgloss.AdaptiveColor{Dark: "#FF7A3D", Light: "#C2410C"}
	ColorBlue    = lipgloss.AdaptiveColor{Dark: "#5B9BD5", Light: "#2B6CB0"}
	ColorGreen   = lipgloss.AdaptiveColor{Dark: "#6BCB77", Light: "#2F855A"}
	ColorYellow  = lipgloss.AdaptiveColor{Dark: "#FFD93D", Light: "#B7791F"}
	ColorRed     = lipgloss.AdaptiveColor{Dark: "#FF6B6B", Light: "#C53030"}
	ColorMagenta = lipgloss.AdaptiveColor{Dark: "#CC5DE8", Light: "#805AD5"}
	ColorGray    = lipgloss.AdaptiveColor{Dark: "#868E96", Light: "#718096"}
	ColorWhite   = lipgloss.AdaptiveColor{Dark: "#F8F9FA", Light: "#1A202C"}
	ColorSubtle  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#CBD5E0"}
	ColorBorder  = lipgloss.AdaptiveColor{Dark: "#495057", Light: "#E2E8F0"}
)

// HeaderStyle is used for the title bar.
var HeaderStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite).
	Background(ColorOrange).
	Padding(0, 1)

// StatusBarStyle is used for the bottom key hint bar.
var StatusBarStyle = lipgloss.NewStyle().
	Foreground(ColorWhite).
	Background(ColorSubtle).
	Padding(0, 1)

// DetailPanelStyle wraps overlays and the inbox detail view.
var DetailPanelStyle = lipgloss.NewStyle().
	Padding(1, 2).
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// ListItemStyle is the base style for items in a list.
var ListItemStyle = lipgloss.NewStyle().
	PaddingLeft(2)

// SelectedItemStyle highlights the focused list item.
var SelectedItemStyle = lipgloss.NewStyle().
	PaddingLeft(1).
	Bold(true).
	Foreground(ColorOrange).
	Border(lipgloss.NormalBorder(), false, false, false, true).
	BorderForeground(ColorOrange)

// HelpStyle is used for hints and secondary text.
var HelpStyle = lipgloss.NewStyle().
	Foreground(ColorGray).
	Italic(true)

// BorderStyle provides a standard rounded border for panels.
var BorderStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder)

// SectionTitleStyle labels a dashboard panel.
var SectionTitleStyle = lipgloss.NewStyle().
	Bold(true).
	Foreground(ColorWhite)

// CardStyle frames one stat card.
var CardStyle = lipgloss.NewStyle().
	Border(lipgloss.RoundedBorder()).
	BorderForeground(ColorBorder).
	Padding(0, 1).
	Align(lipgloss.Center)

// CardLabelStyle is the caption under a stat card value.
var CardLabelStyle = lipgloss.NewStyle().Foreground(ColorGray)

// ErrorTextStyle renders inline error messages.
var ErrorTextStyle = lipgloss.NewStyle().Foreground(ColorRed)

// SuccessTextStyle renders inline confirmations.
var SuccessTextStyle = lipgloss.NewStyle().Foreground(ColorGreen)

// CardValueStyle renders a stat value in c.
func CardValueStyle(c lipgloss.TerminalColor) lipgloss.Style {
	return lipgloss.NewStyle().Bold(true).Foreground(c)
}

// RunningBadge renders the scheduler state for the header.
func RunningBadge(running bool) string {
	base := lipgloss.NewStyle().Bold(true).Padding(0, 1)
	if running {
		return base.Foreground(ColorWhite).Background(ColorGreen).Render("RUNNING")
	}
	return base.Foreground(ColorWhite).Background(ColorRed).Render("STOPPED")
}

// InboxStatusStyle returns a color-coded style for an inbox status.
func InboxStatusStyle(status model.InboxStatus) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch status {
	case model.InboxActive:
		return base.Foreground(ColorGreen)
	case model.InboxPaused:
		return base.Foreground(ColorYellow)
	case model.InboxError:
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}

// StageStyle colors the ramp stage from cold to fully warm.
func StageStyle(stage int) lipgloss.Style {
	base := lipgloss.NewStyle().Bold(true)

	switch stage {
	case 1:
		return base.Foreground(ColorBlue)
	case 2:
		return base.Foreground(ColorYellow)
	case 3:
		return base.Foreground(ColorOrange)
	case 4:
		return base.Foreground(ColorRed)
	default:
		return base.Foreground(ColorGray)
	}
}

// EventStyle returns the feed color for an event kind.
func EventStyle(kind model.EventKind) lipgloss.Style {
	base := lipgloss.NewStyle()

	switch kind {
	case model.EventSend:
		return base.Foreground(ColorGreen)
	case model.EventReply:
		return base.Foreground(ColorBlue)
	case model.EventBounce, model.EventError:
		return base.Foreground(ColorRed)
	case model.EventPause, model.EventWarning:
		return base.Foreground(ColorYellow)
	case model.EventResume:
		return base.Foreground(ColorGreen)
	case model.EventStageAdvance:
		return base.Foreground(ColorMagenta).Bold(true)
	default:
		return base.Foreground(ColorGray)
	}
}

// EventIcon is the short tag printed before a feed line.
func EventIcon(kind model.EventKind) string {
	switch kind {
	case model.EventSend:
		return "SEND "
	case model.EventReply:
		return "REPLY"
	case model.EventBounce:
		return "BOUNC"
	case model.EventError:
		return "ERROR"
	case model.EventPause:
		return "PAUSE"
	case model.EventResume:
		return "RESUM"
	case model.EventStageAdvance:
		return "STAGE"
	case model.EventWarning:
		return "WARN "
	default:
		return "INFO "
	}
}
