package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/unklstewy/flightwx/internal/collector"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("86")).
			Background(lipgloss.Color("235")).
			Padding(0, 1)
	labelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Width(20)
	valueStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39")).Bold(true)
	errStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	boxStyle   = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("240")).
			Padding(0, 1)
)

// renderSummary formats the end-of-run report.
func renderSummary(snap collector.Snapshot, runErr error) string {
	rows := []struct {
		label string
		value string
	}{
		{"Run", snap.RunID},
		{"Started", humanize.Time(snap.StartedAt)},
		{"Windows", fmt.Sprintf("%d/%d (%d skipped)", snap.WindowsProcessed, snap.WindowsTotal, snap.WindowsSkipped)},
		{"Flights", fmt.Sprintf("%s (%s skipped)", humanize.Comma(int64(snap.FlightsProcessed)), humanize.Comma(int64(snap.FlightsSkipped)))},
		{"Datapoints", humanize.Comma(int64(snap.DatapointsWritten))},
		{"Missing weather", humanize.Comma(int64(snap.MissingWeather))},
	}
	if !snap.CurrentWindowEnd.IsZero() {
		rows = append(rows, struct {
			label string
			value string
		}{"Last window", snap.CurrentWindowEnd.Format(time.RFC3339)})
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("FLIGHT WEATHER COLLECTOR"))
	b.WriteString("\n\n")
	for _, r := range rows {
		b.WriteString(labelStyle.Render(r.label))
		b.WriteString(valueStyle.Render(r.value))
		b.WriteString("\n")
	}
	if runErr != nil {
		b.WriteString("\n")
		b.WriteString(errStyle.Render("Error: " + runErr.Error()))
	}
	return boxStyle.Render(strings.TrimRight(b.String(), "\n"))
}
