package utils

import "time"

const ToolUserAgent = "porygon/1.0"

const (
	DefaultDebounce    = 800 * time.Millisecond
	DefaultHTTPTimeout = 60 * time.Second
)

const (
	HistoryFileName = "download_history.json"
	TempDirName     = "temp"
	AppDirName      = "porygon"
)

// DefaultHosts are the URL substrings that make an input worth previewing.
var DefaultHosts = []string{"youtube.com", "youtu.be"}
