package cmd

import (
	"context"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"github.com/tanq16/porygon/internal/output"
	"github.com/tanq16/porygon/internal/ytdlp"
)

func newSetupCmd() *cobra.Command {
	var dir string
	var force bool
	cmd := &cobra.Command{
		Use:   "setup [--dir DIR] [--force]",
		Short: "Download the yt-dlp release binary for this platform",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !force {
				if path, err := ytdlp.Locate(cfg.Tool); err == nil {
					output.PrintSuccess("yt-dlp already available at " + path)
					return nil
				}
			}
			if dir == "" {
				execPath, err := os.Executable()
				if err != nil {
					return err
				}
				dir = filepath.Dir(execPath)
			}
			output.PrintInfo("Downloading yt-dlp into " + dir)
			path, err := ytdlp.Install(context.Background(), httpClient(), dir)
			if err != nil {
				return err
			}
			output.PrintSuccess("Installed yt-dlp at " + path)
			return nil
		},
	}
	cmd.Flags().StringVar(&dir, "dir", "", "Install directory (default: next to the porygon executable)")
	cmd.Flags().BoolVar(&force, "force", false, "Download even when yt-dlp is already available")
	return cmd
}
