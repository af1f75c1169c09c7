package output

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/tanq16/porygon/internal/history"
	"github.com/tanq16/porygon/internal/ytdlp"
)

// HistoryRow is a record with its display row, the number the history
// subcommands accept.
type HistoryRow struct {
	Row    int
	Record history.Record
}

// HistoryTable renders rows in the order given.
func HistoryTable(records []HistoryRow) string {
	if len(records) == 0 {
		return debugStyle.Render("No downloads yet")
	}
	width, _ := getTerminalSize()
	titleWidth := max(width-60, 20)

	rows := make([][]string, 0, len(records))
	for _, hr := range records {
		r := hr.Record
		kind := "video"
		if ytdlp.IsAudioOnly(r.Format) {
			kind = "audio"
		}
		thumb := ""
		if r.Thumbnail != "" {
			thumb = StyleSymbols["pass"]
		}
		rows = append(rows, []string{fmt.Sprint(hr.Row), truncate(r.Title, titleWidth), kind, r.Date, thumb})
	}

	cell := lipgloss.NewStyle().Padding(0, 1)
	return table.New().
		Border(lipgloss.RoundedBorder()).
		BorderStyle(streamStyle).
		Headers("ROW", "TITLE", "TYPE", "DATE", "THUMB").
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return cell.Inherit(headerStyle)
			}
			if col == 0 {
				return cell.Inherit(detailStyle)
			}
			return cell.Inherit(debugStyle)
		}).
		String()
}

// RecordDetail lists every field of r, one per line.
func RecordDetail(row int, r history.Record) string {
	var b strings.Builder
	field := func(name, value string) {
		if value == "" {
			value = "-"
		}
		fmt.Fprintf(&b, "  %s %s\n", detailStyle.Render(fmt.Sprintf("%-10s", name)), value)
	}
	b.WriteString(headerStyle.Render(fmt.Sprintf("Row %d", row)) + "\n")
	field("Title", r.Title)
	field("URL", r.URL)
	field("Date", r.Date)
	field("Format", r.Format)
	field("Folder", r.Path)
	field("Thumbnail", r.Thumbnail)
	return b.String()
}
