package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tanq16/porygon/internal/output"
	"github.com/tanq16/porygon/internal/scheduler"
)

func newDownloadCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "download [URL] [--format FORMAT] [--output-dir DIR]",
		Short:   "Download a video or its audio",
		Aliases: []string{"dl", "get"},
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runJobs(singleJob(args[0]))
		},
	}
	return cmd
}

func singleJob(url string) []scheduler.Job {
	return []scheduler.Job{{URL: url, OutputDir: cfg.OutputDir, Format: cfg.Format}}
}

// runJobs downloads jobs one at a time with live progress.
func runJobs(jobs []scheduler.Job) error {
	sched := scheduler.New(output.NewManager())
	s, err := newSession(sched.Hooks(), true)
	if err != nil {
		return err
	}
	defer s.close()
	_, err = sched.Run(s.ctx, s.ctrl, jobs)
	return err
}
