package cmd

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/porygon/internal/history"
	"github.com/tanq16/porygon/internal/locate"
	"github.com/tanq16/porygon/internal/orchestrator"
	"github.com/tanq16/porygon/internal/output"
	"github.com/tanq16/porygon/internal/platform"
)

func newHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "history",
		Short:   "List past downloads and act on them; rows count from the most recent (0)",
		Aliases: []string{"hist"},
	}
	cmd.AddCommand(newHistoryListCmd())
	cmd.AddCommand(newHistoryShowCmd())
	cmd.AddCommand(newHistoryThumbnailCmd())
	cmd.AddCommand(newHistoryRevealCmd())
	cmd.AddCommand(newHistoryPlayCmd())
	cmd.AddCommand(newHistoryOpenURLCmd())
	return cmd
}

func parseRow(arg string) (int, error) {
	row, err := strconv.Atoi(arg)
	if err != nil || row < 0 {
		return 0, fmt.Errorf("invalid row %q", arg)
	}
	return row, nil
}

func parseBound(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, nil
	}
	t, err := history.ParseDate(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", value, err)
	}
	return t, nil
}

// withRow opens a session without requiring the tool and runs fn for the row
// given as the only argument.
func withRow(fn func(s *session, row int) error) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		row, err := parseRow(args[0])
		if err != nil {
			return err
		}
		s, err := newSession(orchestrator.Hooks{}, false)
		if err != nil {
			return err
		}
		defer s.close()
		return fn(s, row)
	}
}

// historyRows keeps the display-ordered records dated within [from, to],
// numbered by their unfiltered row.
func historyRows(records []history.Record, from, to time.Time) []output.HistoryRow {
	var rows []output.HistoryRow
	for _, i := range history.Filter(records, from, to) {
		rows = append(rows, output.HistoryRow{Row: i, Record: records[i]})
	}
	return rows
}

func newHistoryListCmd() *cobra.Command {
	var since, until string
	cmd := &cobra.Command{
		Use:   "list [--since DATE] [--until DATE]",
		Short: "Show the download history, most recent first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			from, err := parseBound(since)
			if err != nil {
				return err
			}
			to, err := parseBound(until)
			if err != nil {
				return err
			}
			s, err := newSession(orchestrator.Hooks{}, false)
			if err != nil {
				return err
			}
			defer s.close()
			records, err := s.ctrl.History()
			if err != nil {
				return err
			}
			fmt.Println(output.HistoryTable(historyRows(records, from, to)))
			return nil
		},
	}
	cmd.Flags().StringVar(&since, "since", "", "Only downloads on or after this date (eg. 2024-01-31, \"March 3 2024\")")
	cmd.Flags().StringVar(&until, "until", "", "Only downloads on or before this date")
	return cmd
}

func newHistoryShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show [ROW]",
		Short: "Show every field of a history row",
		Args:  cobra.ExactArgs(1),
		RunE: withRow(func(s *session, row int) error {
			rec, err := s.ctrl.Record(row)
			if err != nil {
				return err
			}
			fmt.Print(output.RecordDetail(row, rec))
			return nil
		}),
	}
}

func newHistoryThumbnailCmd() *cobra.Command {
	var open bool
	cmd := &cobra.Command{
		Use:   "thumbnail [ROW] [--open]",
		Short: "Print the thumbnail of a row, fetching it first when missing",
		Args:  cobra.ExactArgs(1),
		RunE: withRow(func(s *session, row int) error {
			path, err := s.ctrl.FetchHistoryThumbnail(s.ctx, row)
			if err != nil {
				return err
			}
			fmt.Println(path)
			if open {
				return platform.Open(path)
			}
			return nil
		}),
	}
	cmd.Flags().BoolVar(&open, "open", false, "Open the image in the default viewer")
	return cmd
}

func newHistoryRevealCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "reveal [ROW]",
		Short:   "Show the downloaded file in the file manager",
		Aliases: []string{"finder"},
		Args:    cobra.ExactArgs(1),
		RunE: withRow(func(s *session, row int) error {
			rec, path, err := s.ctrl.ResolveFile(row)
			if errors.Is(err, locate.ErrNotFound) {
				log.Debug().Str("op", "cmd/reveal").Err(err).Msg("opening folder instead")
				output.PrintWarning(fmt.Sprintf("File for %q not found, opening its folder", rec.Title))
				return platform.Reveal(rec.Path)
			}
			if err != nil {
				return err
			}
			return platform.Reveal(path)
		}),
	}
}

func newHistoryPlayCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "play [ROW]",
		Short: "Open the downloaded file in the default application",
		Args:  cobra.ExactArgs(1),
		RunE: withRow(func(s *session, row int) error {
			_, path, err := s.ctrl.ResolveFile(row)
			if err != nil {
				return err
			}
			output.PrintInfo("Playing " + path)
			return platform.Open(path)
		}),
	}
}

func newHistoryOpenURLCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "open-url [ROW]",
		Short: "Open the source URL of a row in the browser",
		Args:  cobra.ExactArgs(1),
		RunE: withRow(func(s *session, row int) error {
			rec, err := s.ctrl.Record(row)
			if err != nil {
				return err
			}
			return platform.Open(rec.URL)
		}),
	}
}
