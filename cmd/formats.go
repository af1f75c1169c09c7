package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
	"github.com/tanq16/porygon/internal/output"
	"github.com/tanq16/porygon/internal/ytdlp"
)

func newFormatsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "formats",
		Short: "List the format options and the yt-dlp arguments they map to",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			for _, option := range ytdlp.Formats() {
				fa, _ := ytdlp.FormatArgs(option)
				marker := " "
				if option == cfg.Format {
					marker = output.FSuccess(output.StyleSymbols["arrow"])
				}
				fmt.Printf("%s %s\n", marker, output.FInfo(option))
				fmt.Printf("    %s\n", output.FDebug(strings.Join(fa, " ")))
			}
		},
	}
}
