// package formatter renders pages, queues and renderer state as text tables, JSON or CSV, and
// exports queues to files.
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/desertthunder/renderkit/internal/models"
	"github.com/desertthunder/renderkit/internal/shared"
)

// Format selects how results are written.
type Format string

const (
	Table Format = "table"
	JSON  Format = "json"
	CSV   Format = "csv"
)

// ParseFormat maps a --format value onto a [Format]. The empty string means [Table].
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case "":
		return Table, nil
	case Table, JSON, CSV:
		return f, nil
	default:
		return "", fmt.Errorf("%w: format %q (want table, json or csv)", shared.ErrInvalidFlag, s)
	}
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// renderTable draws rows under headers with a rounded border.
func renderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.RoundedBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			return cellStyle
		}).
		Headers(headers...).
		Rows(rows...)
	return t.String()
}

func writeCSV(w io.Writer, headers []string, rows [][]string) error {
	writer := csv.NewWriter(w)
	if err := writer.Write(headers); err != nil {
		return fmt.Errorf("failed to write CSV headers: %w", err)
	}
	for _, row := range rows {
		if err := writer.Write(row); err != nil {
			return fmt.Errorf("failed to write CSV record: %w", err)
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return fmt.Errorf("CSV writer error: %w", err)
	}
	return nil
}

func writeJSON(w io.Writer, v any) error {
	data, err := shared.MarshalJSON(v, true)
	if err != nil {
		return fmt.Errorf("failed to marshal JSON: %w", err)
	}
	if _, err := w.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("failed to write output: %w", err)
	}
	return nil
}

func write(w io.Writer, f Format, v any, headers []string, rows [][]string, footer string) error {
	switch f {
	case JSON:
		return writeJSON(w, v)
	case CSV:
		return writeCSV(w, headers, rows)
	default:
		out := renderTable(headers, rows)
		if footer != "" {
			out += "\n" + footer
		}
		if _, err := fmt.Fprintln(w, out); err != nil {
			return fmt.Errorf("failed to write output: %w", err)
		}
		return nil
	}
}

// WritePage writes a page of items whose first item sits at index offset.
func WritePage(w io.Writer, page models.ItemPage, offset int, f Format) error {
	headers := []string{"#", "ID", "Kind", "Title", "Subtitle", "Flags"}
	rows := make([][]string, len(page.Items))
	for i, item := range page.Items {
		rows[i] = []string{strconv.Itoa(offset + i), item.ID, string(item.Kind), item.Title, item.Subtitle, itemFlags(item)}
	}

	footer := fmt.Sprintf("%d items", len(page.Items))
	if page.Total != nil {
		footer = fmt.Sprintf("%d-%d of %d", offset, offset+len(page.Items)-1, *page.Total)
		if len(page.Items) == 0 {
			footer = fmt.Sprintf("0 of %d", *page.Total)
		}
	}
	return write(w, f, page, headers, rows, footer)
}

func itemFlags(item models.Item) string {
	var flags []string
	if !item.IsAvailable() {
		flags = append(flags, "unavailable")
	} else if item.IsQueueable() {
		flags = append(flags, "queueable")
	}
	if item.Kind.IsContainer() {
		flags = append(flags, "browsable")
	}
	return strings.Join(flags, ",")
}

// WriteNode writes a node's description and criteria.
func WriteNode(w io.Writer, node models.CatalogNode, f Format) error {
	criteria := make([]string, len(node.SearchCriteria))
	for i, c := range node.SearchCriteria {
		criteria[i] = c.Key()
	}
	headers := []string{"ID", "Title", "Active", "Search"}
	rows := [][]string{{node.ID, node.Title, node.IsActiveContainer.String(), strings.Join(criteria, ",")}}
	return write(w, f, node, headers, rows, "")
}

// QueueRows returns the table rows for entries, marking the entry playing with "▶".
func QueueRows(entries []models.QueueEntry, playing string) [][]string {
	rows := make([][]string, len(entries))
	for i, e := range entries {
		mark := ""
		if playing != "" && e.ItemID == playing {
			mark = "▶"
		}
		rows[i] = []string{mark, strconv.Itoa(i + 1), e.ID, e.Title, e.Artist, e.Album}
	}
	return rows
}

// WriteQueue writes entries in order. playing is the item ID of the current track, if known.
func WriteQueue(w io.Writer, entries []models.QueueEntry, playing string, f Format) error {
	headers := []string{"", "#", "Entry", "Title", "Artist", "Album"}
	return write(w, f, entries, headers, QueueRows(entries, playing), fmt.Sprintf("%d entries", len(entries)))
}

// WriteRenderers writes one line per renderer.
func WriteRenderers(w io.Writer, states []models.RendererState, f Format) error {
	headers := []string{"ID", "Name", "Model", "State", "Volume", "Group", "Reachable"}
	rows := make([][]string, len(states))
	for i, s := range states {
		group := ""
		if s.Group != nil {
			group = s.Group.Name
			if role, ok := s.Group.Role(s.ID); ok && role == models.RoleLeader {
				group += " (leader)"
			}
		}
		rows[i] = []string{s.ID, s.Name, s.Model, string(s.PlayState), volumeString(s), group, strconv.FormatBool(!s.Unreachable)}
	}
	return write(w, f, states, headers, rows, "")
}

func volumeString(s models.RendererState) string {
	v := strconv.Itoa(s.Volume)
	if s.Mute {
		v += " (muted)"
	}
	return v
}

// WriteRenderer writes the full state of one renderer as field/value pairs.
func WriteRenderer(w io.Writer, s models.RendererState, f Format) error {
	rows := [][]string{
		{"ID", s.ID},
		{"Name", s.Name},
		{"Model", s.Model},
		{"State", string(s.PlayState)},
		{"Volume", fmt.Sprintf("%s [%d-%d]", volumeString(s), s.MinVolume, s.MaxVolume)},
		{"Repeat", s.RepeatMode.DisplayString()},
		{"Shuffle", s.ShuffleMode.DisplayString()},
	}
	if s.PowerState != "" {
		rows = append(rows, []string{"Power", string(s.PowerState)})
	}
	if s.CurrentTrack != nil {
		rows = append(rows, []string{"Track", s.CurrentTrack.Label()})
	}
	if s.Progress != nil {
		rows = append(rows, []string{"Progress", ProgressString(*s.Progress)})
	}
	if s.Group != nil {
		rows = append(rows,
			[]string{"Group", s.Group.Name},
			[]string{"Members", strings.Join(memberNames(*s.Group), ", ")},
			[]string{"Zone Volume", fmt.Sprintf("%d%s", s.ZoneVolume, mutedSuffix(s.ZoneMute))},
		)
	}
	for _, setting := range s.SpeakerSettings {
		rows = append(rows, []string{setting.Name, setting.ValueString()})
	}
	if len(s.AvailableActions) > 0 {
		actions := make([]string, len(s.AvailableActions))
		for i, a := range s.AvailableActions {
			actions[i] = string(a)
		}
		rows = append(rows, []string{"Actions", strings.Join(actions, ",")})
	}
	if s.Unreachable {
		rows = append(rows, []string{"Reachable", "false"})
	}
	return write(w, f, s, []string{"Field", "Value"}, rows, "")
}

// ProgressString renders elapsed/total with the percentage played.
func ProgressString(p models.PlaybackProgress) string {
	return fmt.Sprintf("%s / %s (%.0f%%)", shared.FormatDuration(p.Current), shared.FormatDuration(p.Total), p.Ratio()*100)
}

func mutedSuffix(m bool) string {
	if m {
		return " (muted)"
	}
	return ""
}

func memberNames(g models.Group) []string {
	names := make([]string, len(g.Members))
	for i, m := range g.Members {
		names[i] = m.Name
		if names[i] == "" {
			names[i] = m.ID
		}
		if m.Role == models.RoleLeader {
			names[i] += "*"
		}
	}
	return names
}

// WriteGroups writes one line per group; the leader is marked with "*".
func WriteGroups(w io.Writer, groups []models.Group, f Format) error {
	headers := []string{"ID", "Name", "Members"}
	rows := make([][]string, len(groups))
	for i, g := range groups {
		rows[i] = []string{g.ID, g.Name, strings.Join(memberNames(g), ", ")}
	}
	return write(w, f, groups, headers, rows, "")
}

// QueueToCSV converts queue entries to CSV with columns: Position, Entry, Item, Title, Artist, Album
func QueueToCSV(entries []models.QueueEntry) ([]byte, error) {
	var buf bytes.Buffer
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{strconv.Itoa(i + 1), e.ID, e.ItemID, e.Title, e.Artist, e.Album}
	}
	if err := writeCSV(&buf, []string{"Position", "Entry", "Item", "Title", "Artist", "Album"}, rows); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// QueueToMarkdown converts queue entries to a numbered Markdown list under a title.
func QueueToMarkdown(title string, entries []models.QueueEntry) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("# %s\n\n", title))
	buf.WriteString(fmt.Sprintf("**Entries**: %d\n\n", len(entries)))

	for i, e := range entries {
		albumPart := ""
		if e.Album != "" {
			albumPart = fmt.Sprintf(" (%s)", e.Album)
		}
		if e.Artist != "" {
			buf.WriteString(fmt.Sprintf("%d. %s - %s%s\n", i+1, e.Artist, e.Title, albumPart))
		} else {
			buf.WriteString(fmt.Sprintf("%d. %s%s\n", i+1, e.Title, albumPart))
		}
	}
	return buf.Bytes()
}

// QueueToText converts queue entries to plain text
func QueueToText(title string, entries []models.QueueEntry) []byte {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Queue: %s\n", title))
	buf.WriteString(fmt.Sprintf("Entries: %d\n\n", len(entries)))

	for i, e := range entries {
		if e.Artist != "" {
			buf.WriteString(fmt.Sprintf("%d. %s - %s\n", i+1, e.Artist, e.Title))
		} else {
			buf.WriteString(fmt.Sprintf("%d. %s\n", i+1, e.Title))
		}
	}
	return buf.Bytes()
}

// WriteQueueExport writes entries to path as json, csv, markdown or txt.
func WriteQueueExport(title string, entries []models.QueueEntry, format, path string) error {
	var (
		data []byte
		err  error
	)
	switch format {
	case "csv":
		data, err = QueueToCSV(entries)
	case "markdown", "md":
		data = QueueToMarkdown(title, entries)
	case "txt":
		data = QueueToText(title, entries)
	case "json", "":
		data, err = shared.MarshalJSON(entries, true)
	default:
		return fmt.Errorf("%w: export format %q", shared.ErrInvalidFlag, format)
	}
	if err != nil {
		return fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create export directory: %w", err)
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write export file: %w", err)
	}
	return nil
}
