package cliui

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"charm.land/lipgloss/v2"
	"github.com/charmbracelet/x/ansi"

	"github.com/papercomputeco/cspr/pkg/events"
)

var (
	headerStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("214"))
	mutedStyle  = DimStyle
	labelStyle  = KeyStyle
	valueStyle  = ValueStyle
)

// RecordHeader returns the one-line summary of a record:
// "Event #<idx> :: <channel> :: <type> :: <id>".
func RecordHeader(rec events.Record) string {
	return fmt.Sprintf("Event #%d :: %s :: %s :: %d", rec.Idx, rec.Channel, rec.Name, rec.ID)
}

// FormatRecord renders a record header followed by its indented JSON payload.
func FormatRecord(rec events.Record) string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(RecordHeader(rec)))
	b.WriteString("\n")
	b.WriteString(IndentJSON(rec.Payload))
	b.WriteString("\n")
	return b.String()
}

// FormatRecordCompact renders a record on one line, truncating the payload
// so the line fits width cells.
func FormatRecordCompact(rec events.Record, width int) string {
	header := RecordHeader(rec)
	rest := width - lipgloss.Width(header) - 1
	if rest < 4 {
		return headerStyle.Render(header)
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, rec.Payload); err != nil {
		compact.Reset()
		compact.Write(rec.Payload)
	}

	return headerStyle.Render(header) + " " + mutedStyle.Render(ansi.Truncate(compact.String(), rest, "…"))
}

// IndentJSON pretty prints raw JSON with two-space indentation. Invalid JSON
// is returned unchanged.
func IndentJSON(raw []byte) string {
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return string(raw)
	}
	return out.String()
}

// PrintRecord writes a record to w, downsampling colors to what w supports.
func PrintRecord(w io.Writer, rec events.Record, compact bool, width int) error {
	var s string
	if compact {
		s = FormatRecordCompact(rec, width) + "\n"
	} else {
		s = FormatRecord(rec)
	}
	_, err := lipgloss.Fprint(w, s)
	return err
}

// Field is a label and value printed by PrintFields.
type Field struct {
	Label string
	Value string
}

// PrintFields writes aligned "label  value" rows.
func PrintFields(w io.Writer, fields []Field) error {
	labelWidth := 0
	for _, f := range fields {
		labelWidth = max(labelWidth, lipgloss.Width(f.Label))
	}

	for _, f := range fields {
		pad := strings.Repeat(" ", labelWidth-lipgloss.Width(f.Label))
		if _, err := lipgloss.Fprintf(w, "%s%s  %s\n", labelStyle.Render(f.Label), pad, valueStyle.Render(f.Value)); err != nil {
			return err
		}
	}
	return nil
}
