// Package config resolves settings from flags, PORYGON_* environment
// variables and an optional YAML file, in that order of precedence.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/tanq16/porygon/internal/utils"
	"github.com/tanq16/porygon/internal/ytdlp"
)

const (
	KeyTool        = "tool"
	KeyHistoryFile = "history-file"
	KeyTempDir     = "temp-dir"
	KeyOutputDir   = "output-dir"
	KeyFormat      = "format"
	KeyDebounce    = "debounce"
	KeyHosts       = "hosts"
	KeyTimeout     = "timeout"
	KeyUserAgent   = "user-agent"
	KeyProxy       = "proxy"
	KeyProxyUser   = "proxy-username"
	KeyProxyPass   = "proxy-password"
	KeyHeaders     = "header"
	KeyDebug       = "debug"
	KeyLogFile     = "log-file"
)

const EnvPrefix = "PORYGON"

type Config struct {
	Tool        string
	HistoryFile string
	TempDir     string
	OutputDir   string
	Format      string
	Debounce    time.Duration
	Hosts       []string
	Timeout     time.Duration
	UserAgent   string
	Proxy       string
	ProxyUser   string
	ProxyPass   string
	// Headers are "Key: Value" pairs sent with thumbnail requests.
	Headers     []string
	Debug       bool
	LogFile     string
	// File is the config file that was read, if any.
	File string
}

func SetDefaults(v *viper.Viper) {
	v.SetDefault(KeyHistoryFile, utils.DefaultHistoryFile())
	v.SetDefault(KeyTempDir, utils.DefaultTempDir())
	v.SetDefault(KeyOutputDir, utils.DefaultOutputDir())
	v.SetDefault(KeyFormat, ytdlp.FormatHigh)
	v.SetDefault(KeyDebounce, utils.DefaultDebounce)
	v.SetDefault(KeyHosts, utils.DefaultHosts)
	v.SetDefault(KeyTimeout, utils.DefaultHTTPTimeout)
	v.SetDefault(KeyUserAgent, utils.ToolUserAgent)
}

// DefaultFile is $XDG_CONFIG_HOME/porygon/config.yaml or its platform
// equivalent.
func DefaultFile() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ""
	}
	return filepath.Join(dir, utils.AppDirName, "config.yaml")
}

// Load reads file (or the default location when empty) into v and returns
// the validated settings. A missing default file is not an error.
func Load(v *viper.Viper, file string) (Config, error) {
	SetDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	explicit := file != ""
	if !explicit {
		file = DefaultFile()
	}
	if file != "" {
		v.SetConfigFile(file)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			missing := errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist)
			if explicit || !missing {
				return Config{}, fmt.Errorf("error reading config %s: %w", file, err)
			}
		}
	}

	cfg := Config{
		Tool:        v.GetString(KeyTool),
		HistoryFile: utils.AbsPath(v.GetString(KeyHistoryFile)),
		TempDir:     utils.AbsPath(v.GetString(KeyTempDir)),
		OutputDir:   utils.AbsPath(v.GetString(KeyOutputDir)),
		Format:      v.GetString(KeyFormat),
		Debounce:    v.GetDuration(KeyDebounce),
		Hosts:       v.GetStringSlice(KeyHosts),
		Timeout:     v.GetDuration(KeyTimeout),
		UserAgent:   v.GetString(KeyUserAgent),
		Proxy:       v.GetString(KeyProxy),
		ProxyUser:   v.GetString(KeyProxyUser),
		ProxyPass:   v.GetString(KeyProxyPass),
		Headers:     v.GetStringSlice(KeyHeaders),
		Debug:       v.GetBool(KeyDebug),
		LogFile:     utils.AbsPath(v.GetString(KeyLogFile)),
		File:        v.ConfigFileUsed(),
	}
	return cfg, cfg.Validate()
}

func (c Config) Validate() error {
	if !ytdlp.IsKnownFormat(c.Format) {
		return fmt.Errorf("unknown format %q, expected one of: %s", c.Format, strings.Join(ytdlp.Formats(), ", "))
	}
	if c.Debounce <= 0 {
		return fmt.Errorf("debounce must be positive, got %s", c.Debounce)
	}
	if len(c.Hosts) == 0 {
		return errors.New("at least one preview host is required")
	}
	if c.HistoryFile == "" || c.TempDir == "" {
		return errors.New("history file and temp dir must be set")
	}
	return nil
}

