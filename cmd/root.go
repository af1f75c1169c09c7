package cmd

import (
	"io"
	"os"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"github.com/tanq16/porygon/internal/config"
	"github.com/tanq16/porygon/internal/output"
	"github.com/tanq16/porygon/internal/ytdlp"
)

var PorygonVersion = "dev"

var (
	cfgFile   string
	cfg       config.Config
	logCloser io.Closer
)

var rootCmd = &cobra.Command{
	Use:           "porygon",
	Short:         "Porygon downloads YouTube videos and audio through yt-dlp and keeps a history",
	Version:       PorygonVersion,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		loaded, err := config.Load(viper.GetViper(), cfgFile)
		if err != nil {
			return err
		}
		cfg = loaded
		logCloser, err = initLogger(cfg.Debug, cfg.LogFile)
		return err
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if logCloser != nil {
			logCloser.Close()
		}
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		output.PrintError(err.Error())
		os.Exit(1)
	}
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&cfgFile, "config", "", "Config file (default $XDG_CONFIG_HOME/porygon/config.yaml)")
	flags.String(config.KeyTool, "", "Path to the yt-dlp binary (default: PATH, then next to porygon)")
	flags.String(config.KeyHistoryFile, "", "Download history JSON file")
	flags.String(config.KeyTempDir, "", "Directory for preview and history thumbnails")
	flags.StringP(config.KeyOutputDir, "o", "", "Directory downloads are written to")
	flags.StringP(config.KeyFormat, "f", ytdlp.FormatHigh, "Format option (see `porygon formats`)")
	flags.Duration(config.KeyDebounce, 0, "Delay before a typed URL is previewed (eg. 800ms)")
	flags.StringSlice(config.KeyHosts, nil, "URL substrings that make an input worth previewing")
	flags.DurationP(config.KeyTimeout, "t", 0, "HTTP timeout for thumbnail and tool downloads (eg. 30s)")
	flags.StringP(config.KeyUserAgent, "a", "", "User agent for thumbnail requests")
	flags.StringP(config.KeyProxy, "p", "", "HTTP/HTTPS proxy URL for thumbnail requests")
	flags.String(config.KeyProxyUser, "", "Proxy username")
	flags.String(config.KeyProxyPass, "", "Proxy password")
	flags.StringArrayP(config.KeyHeaders, "H", nil, "Custom header for thumbnail requests (like 'Cookie: a=b'); can be specified multiple times")
	flags.Bool(config.KeyDebug, false, "Enable debug logging")
	flags.String(config.KeyLogFile, "", "Also write logs as JSON to this file")

	for _, key := range []string{
		config.KeyTool, config.KeyHistoryFile, config.KeyTempDir, config.KeyOutputDir, config.KeyFormat,
		config.KeyDebounce, config.KeyHosts, config.KeyTimeout, config.KeyUserAgent, config.KeyProxy,
		config.KeyProxyUser, config.KeyProxyPass, config.KeyHeaders, config.KeyDebug, config.KeyLogFile,
	} {
		if err := viper.BindPFlag(key, flags.Lookup(key)); err != nil {
			panic(err)
		}
	}

	rootCmd.AddCommand(newDownloadCmd())
	rootCmd.AddCommand(newPreviewCmd())
	rootCmd.AddCommand(newWatchCmd())
	rootCmd.AddCommand(newBatchCmd())
	rootCmd.AddCommand(newHistoryCmd())
	rootCmd.AddCommand(newFormatsCmd())
	rootCmd.AddCommand(newSetupCmd())
	rootCmd.AddCommand(newCleanCmd())
}
