// Package report prints decoded partition tables for humans and scripts.
package report

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/charmbracelet/lipgloss"
	"github.com/dustin/go-humanize"

	"github.com/bigbag/papyrix-bringup/internal/partition"
	"github.com/bigbag/papyrix-bringup/internal/sizefmt"
)

// Output formats
const (
	FormatText = "text"
	FormatJSON = "json"
)

var (
	headerStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF79C6")).Bold(true)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4"))
)

// Line is one report row.
type Line struct {
	Label     string `json:"label"`
	Kind      string `json:"kind"`
	SubKind   string `json:"subkind"`
	Address   uint32 `json:"address"`
	Size      uint32 `json:"size"`
	HumanSize string `json:"human_size"`
	Slot      *int   `json:"ota_slot,omitempty"`
	Encrypted bool   `json:"encrypted,omitempty"`
}

// NewLine formats a decoded record. The size is rendered here, the record
// itself keeps the raw byte count.
func NewLine(r partition.Record) Line {
	l := Line{
		Label:     r.Label,
		Kind:      r.Kind.String(),
		SubKind:   r.SubKind.String(),
		Address:   r.Address,
		Size:      r.Size,
		HumanSize: sizefmt.Format(uint64(r.Size)),
		Encrypted: r.Encrypted,
	}
	if slot, ok := r.SubKind.Slot(); ok {
		l.Slot = &slot
	}
	return l
}

// Writer renders report lines as they are produced by a partition walk.
type Writer struct {
	out    io.Writer
	format string
	styled bool

	count int
	total uint64
}

// NewWriter creates a report writer. Styled enables terminal colors for the
// text format.
func NewWriter(out io.Writer, format string, styled bool) (*Writer, error) {
	switch format {
	case FormatText, FormatJSON:
	default:
		return nil, fmt.Errorf("unknown report format %q", format)
	}
	return &Writer{out: out, format: format, styled: styled}, nil
}

// Header prints the column titles (text format only).
func (w *Writer) Header() error {
	if w.format != FormatText {
		return nil
	}
	header := fmt.Sprintf("%-16s %-12s %-18s %-10s %s", "Label", "Kind", "Subkind", "Address", "Size")
	if w.styled {
		header = headerStyle.Render(header)
	}
	_, err := fmt.Fprintln(w.out, header)
	return err
}

// Record prints one decoded partition.
func (w *Writer) Record(r partition.Record) error {
	l := NewLine(r)
	w.count++
	w.total += uint64(r.Size)

	if w.format == FormatJSON {
		data, err := json.Marshal(l)
		if err != nil {
			return fmt.Errorf("failed to encode partition %q: %w", l.Label, err)
		}
		_, err = fmt.Fprintln(w.out, string(data))
		return err
	}

	_, err := fmt.Fprintf(w.out, "%-16s %-12s %-18s 0x%08X %s\n", l.Label, l.Kind, l.SubKind, l.Address, l.HumanSize)
	return err
}

// Summary prints the number of partitions and the bytes they cover.
func (w *Writer) Summary() error {
	if w.format != FormatText {
		return nil
	}
	summary := fmt.Sprintf("%d partition(s), %s bytes (%s)", w.count, humanize.Comma(int64(w.total)), sizefmt.Format(w.total))
	if w.count == 0 {
		summary = "No partitions found"
	}
	if w.styled {
		summary = dimStyle.Render(summary)
	}
	_, err := fmt.Fprintln(w.out, summary)
	return err
}

// Count returns the number of records written so far.
func (w *Writer) Count() int {
	return w.count
}

// Print walks t and writes the complete report. It returns the number of
// partitions reported.
func Print(w *Writer, t partition.Table) (int, error) {
	if err := w.Header(); err != nil {
		return 0, err
	}

	for r := range partition.All(t) {
		if err := w.Record(r); err != nil {
			return w.Count(), err
		}
	}

	return w.Count(), w.Summary()
}
