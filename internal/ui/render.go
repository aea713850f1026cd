package ui

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/five82/melinda/internal/state"
)

func (m Model) render() string {
	styles := m.theme.Styles()
	snap := m.snapshot

	var b strings.Builder
	b.WriteString(m.renderHeader(styles, snap))
	b.WriteString("\n")
	b.WriteString(styles.Panel.Render(m.renderStatus(styles, snap)))
	b.WriteString("\n")
	if history := renderHistory(styles, snap); history != "" {
		b.WriteString(history)
		b.WriteString("\n")
	}
	b.WriteString(m.renderFooter(styles, snap))
	b.WriteString("\n\n")
	b.WriteString(m.help.View(m.keys))
	b.WriteString("\n")
	return b.String()
}

func (m Model) renderHeader(styles Styles, snap state.Snapshot) string {
	title := styles.AccentText.Render("melinda")
	id := snap.CorrelationID
	if id == "" {
		id = "bulk job"
	}
	elapsed := styles.MutedText.Render(formatElapsed(snap.Elapsed(m.now)))
	return styles.Header.Render(title + " " + styles.Text.Render(id) + "  " + elapsed)
}

func (m Model) renderStatus(styles Styles, snap state.Snapshot) string {
	if !snap.HasStatus {
		return styles.MutedText.Render("waiting for first status…")
	}
	rows := [][2]string{
		{"State", styles.StateBadge(snap.Status.QueueItemState)},
		{"Modified", valueOrDash(snap.Status.ModificationTime)},
		{"Records", recordCount(snap.Status.HandledRecords())},
		{"Checks", strconv.Itoa(snap.Polls)},
	}
	lines := make([]string, 0, len(rows))
	for _, row := range rows {
		lines = append(lines, lipgloss.JoinHorizontal(lipgloss.Top, styles.Label.Render(row[0]), styles.Text.Render(row[1])))
	}
	return strings.Join(lines, "\n")
}

func renderHistory(styles Styles, snap state.Snapshot) string {
	if len(snap.History) < 2 {
		return ""
	}
	var b strings.Builder
	b.WriteString(styles.MutedText.Render("History"))
	for i, tr := range snap.History {
		b.WriteString("\n  ")
		b.WriteString(styles.FaintText.Render(tr.At.Format("15:04:05")))
		b.WriteString(" ")
		b.WriteString(styles.Text.Render(string(tr.State)))
		if i+1 < len(snap.History) {
			spent := snap.History[i+1].At.Sub(tr.At)
			b.WriteString(styles.MutedText.Render(" (" + formatElapsed(spent) + ")"))
		}
	}
	return b.String()
}

func (m Model) renderFooter(styles Styles, snap state.Snapshot) string {
	switch {
	case !snap.Finished:
		return m.spinner.View() + " " + styles.MutedText.Render("polling")
	case snap.Err != nil:
		return styles.DangerText.Render("poll failed: ") + styles.Text.Render(snap.Err.Error())
	}

	res := snap.Result
	summary := fmt.Sprintf("finished %s: %d handled, %d rejected", valueOrDash(string(res.QueueItemState)), len(res.HandledIDs), len(res.RejectedIDs))
	line := styles.SuccessText.Render(summary)
	if res.ErrorMessage != "" {
		line += "\n" + styles.WarningText.Render(res.ErrorMessage)
	}
	return line
}

func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	return d.Round(time.Second).String()
}

func recordCount(n int) string {
	if n < 0 {
		return "-"
	}
	return strconv.Itoa(n)
}

func valueOrDash(s string) string {
	if strings.TrimSpace(s) == "" {
		return "-"
	}
	return s
}
