package ui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/five82/melinda/pkg/melinda"
)

// Theme defines colors for the watch view.
type Theme struct {
	Name string

	Background string
	Surface    string
	Border     string

	Text    string
	Muted   string
	Faint   string
	Accent  string
	Success string
	Warning string
	Danger  string

	// StateColors maps queue states to badge backgrounds.
	StateColors map[melinda.QueueItemState]string
}

// Styles contains pre-built Lipgloss styles for the theme.
type Styles struct {
	Text        lipgloss.Style
	MutedText   lipgloss.Style
	FaintText   lipgloss.Style
	AccentText  lipgloss.Style
	SuccessText lipgloss.Style
	WarningText lipgloss.Style
	DangerText  lipgloss.Style

	Header lipgloss.Style
	Panel  lipgloss.Style
	Label  lipgloss.Style

	stateColors map[melinda.QueueItemState]string
	background  string
	muted       string
}

// Styles returns Lipgloss styles for this theme.
func (t Theme) Styles() Styles {
	return Styles{
		Text: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Text)),

		MutedText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)),

		FaintText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Faint)),

		AccentText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Accent)).
			Bold(true),

		SuccessText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Success)).
			Bold(true),

		WarningText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Warning)),

		DangerText: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Danger)).
			Bold(true),

		Header: lipgloss.NewStyle().
			Background(lipgloss.Color(t.Surface)).
			Foreground(lipgloss.Color(t.Text)).
			Padding(0, 1),

		Panel: lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color(t.Border)).
			Padding(0, 1),

		Label: lipgloss.NewStyle().
			Foreground(lipgloss.Color(t.Muted)).
			Width(14),

		stateColors: t.StateColors,
		background:  t.Background,
		muted:       t.Muted,
	}
}

// StateBadge renders state as a colored badge. An empty state renders as
// "UNKNOWN".
func (s Styles) StateBadge(state melinda.QueueItemState) string {
	color := s.stateColors[state]
	if color == "" {
		color = s.muted
	}
	label := string(state)
	if label == "" {
		label = "UNKNOWN"
	}
	return lipgloss.NewStyle().
		Foreground(lipgloss.Color(s.background)).
		Background(lipgloss.Color(color)).
		Bold(true).
		Padding(0, 1).
		Render(label)
}

var themes = map[string]Theme{
	"Dracula": draculaTheme(),
	"Slate":   slateTheme(),
}

var themeOrder = []string{"Dracula", "Slate"}

// DefaultTheme is used when no preference is stored.
const DefaultTheme = "Dracula"

// GetTheme returns a theme by name.
func GetTheme(name string) Theme {
	if t, ok := themes[name]; ok {
		return t
	}
	return draculaTheme()
}

// NextTheme returns the next theme name in the cycle.
func NextTheme(current string) string {
	for i, name := range themeOrder {
		if name == current {
			return themeOrder[(i+1)%len(themeOrder)]
		}
	}
	return themeOrder[0]
}

// ThemeNames returns available theme names.
func ThemeNames() []string {
	return themeOrder
}

func draculaTheme() Theme {
	// https://draculatheme.com/spec
	return Theme{
		Name: "Dracula",

		Background: "#191A21",
		Surface:    "#282A36",
		Border:     "#44475A",

		Text:    "#F8F8F2",
		Muted:   "#6272A4",
		Faint:   "#44475A",
		Accent:  "#BD93F9",
		Success: "#50FA7B",
		Warning: "#FFB86C",
		Danger:  "#FF5555",

		StateColors: map[melinda.QueueItemState]string{
			melinda.StateWaitingForRecords: "#6272A4", // waiting
			melinda.StateUploading:         "#8BE9FD",
			melinda.StatePendingQueuing:    "#6272A4",
			melinda.StateQueuingInProgress: "#8BE9FD",
			melinda.StatePendingValidation: "#6272A4",
			melinda.StateValidating:        "#BD93F9",
			melinda.StateInQueue:           "#F1FA8C",
			melinda.StateImporting:         "#FF79C6",
			melinda.StateInProcess:         "#FF79C6",
			melinda.StateDone:              "#50FA7B",
			melinda.StateError:             "#FF5555",
			melinda.StateAbort:             "#FFB86C",
		},
	}
}

func slateTheme() Theme {
	// Tailwind CSS Slate/Sky palette: https://tailwindcss.com/docs/colors
	return Theme{
		Name: "Slate",

		Background: "#020617", // slate-950
		Surface:    "#0f172a", // slate-900
		Border:     "#334155", // slate-700

		Text:    "#f1f5f9", // slate-100
		Muted:   "#94a3b8", // slate-400
		Faint:   "#64748b", // slate-500
		Accent:  "#38bdf8", // sky-400
		Success: "#22c55e", // green-500
		Warning: "#f59e0b", // amber-500
		Danger:  "#ef4444", // red-500

		StateColors: map[melinda.QueueItemState]string{
			melinda.StateWaitingForRecords: "#64748b",
			melinda.StateUploading:         "#38bdf8",
			melinda.StatePendingQueuing:    "#64748b",
			melinda.StateQueuingInProgress: "#0284c7",
			melinda.StatePendingValidation: "#64748b",
			melinda.StateValidating:        "#8b5cf6",
			melinda.StateInQueue:           "#eab308",
			melinda.StateImporting:         "#ec4899",
			melinda.StateInProcess:         "#ec4899",
			melinda.StateDone:              "#16a34a",
			melinda.StateError:             "#dc2626",
			melinda.StateAbort:             "#ea580c",
		},
	}
}
