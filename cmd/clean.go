package cmd

import (
	"github.com/spf13/cobra"
	"github.com/tanq16/porygon/internal/output"
	"github.com/tanq16/porygon/internal/utils"
)

func newCleanCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "clean",
		Short: "Remove cached preview and history thumbnails",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := utils.CleanTemp(cfg.TempDir); err != nil {
				return err
			}
			output.PrintSuccess("Removed " + cfg.TempDir)
			return nil
		},
	}
}
