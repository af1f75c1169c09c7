package cmd

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"github.com/tanq16/porygon/internal/orchestrator"
	"github.com/tanq16/porygon/internal/output"
)

func printPreview(p orchestrator.Preview) {
	title := p.Title
	if title == "" {
		title = "(no title)"
	}
	output.PrintHeader(title)
	output.PrintDetail("  " + p.URL)
	if p.ThumbnailPath != "" {
		fmt.Println("  " + output.FDebug("thumbnail "+p.ThumbnailPath))
	} else {
		fmt.Println("  " + output.FWarning("no thumbnail"))
	}
}

func newPreviewCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "preview [URL]",
		Short: "Fetch the title and thumbnail of a URL without downloading it",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			done := make(chan orchestrator.Preview, 1)
			s, err := newSession(orchestrator.Hooks{
				OnPreview: func(p orchestrator.Preview) { done <- p },
			}, true)
			if err != nil {
				return err
			}
			defer s.close()

			id, err := s.ctrl.StartPreview(args[0])
			if err != nil {
				return err
			}
			log.Debug().Str("op", "cmd/preview").Msgf("preview %s started", id)
			select {
			case p := <-done:
				printPreview(p)
				return nil
			case <-s.ctx.Done():
				return s.ctx.Err()
			}
		},
	}
}
