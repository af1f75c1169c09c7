package cmd

import (
	"bufio"
	"os"
	"time"

	"github.com/spf13/cobra"
	"github.com/tanq16/porygon/internal/orchestrator"
	"github.com/tanq16/porygon/internal/output"
)

const settleInterval = 100 * time.Millisecond

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Preview URLs read from stdin once input settles",
		Long: "Each line read from stdin is handled like an edit of the URL field: a preview " +
			"is fetched once a YouTube URL has been stable for the debounce delay, and a newer " +
			"line cancels a pending or running preview. Enter \"download\" to fetch the last URL.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			previews := make(chan orchestrator.Preview, 4)
			s, err := newSession(orchestrator.Hooks{
				OnPreview: func(p orchestrator.Preview) { previews <- p },
			}, true)
			if err != nil {
				return err
			}

			lines := make(chan string)
			go func() {
				defer close(lines)
				scanner := bufio.NewScanner(os.Stdin)
				for scanner.Scan() {
					lines <- scanner.Text()
				}
			}()

			// settle ticks once stdin is exhausted, until no preview is pending.
			var settle <-chan time.Time
			var last string
			for {
				select {
				case p := <-previews:
					printPreview(p)
					last = p.URL
				case <-settle:
					pending, err := s.ctrl.PreviewPending()
					if err == nil && pending {
						continue
					}
					for len(previews) > 0 {
						printPreview(<-previews)
					}
					s.close()
					return nil
				case line, ok := <-lines:
					if !ok {
						lines = nil
						ticker := time.NewTicker(settleInterval)
						defer ticker.Stop()
						settle = ticker.C
						continue
					}
					if line == "download" && last != "" {
						s.close()
						return runJobs(singleJob(last))
					}
					if err := s.ctrl.InputChanged(line); err != nil {
						s.close()
						return err
					}
				case <-s.ctx.Done():
					s.close()
					output.PrintWarning("Interrupted")
					return nil
				}
			}
		},
	}
}
