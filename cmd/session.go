package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog/log"
	"github.com/tanq16/porygon/internal/history"
	"github.com/tanq16/porygon/internal/orchestrator"
	"github.com/tanq16/porygon/internal/thumbnail"
	"github.com/tanq16/porygon/internal/utils"
	"github.com/tanq16/porygon/internal/worker"
	"github.com/tanq16/porygon/internal/ytdlp"
)

// session is the wiring shared by every command that talks to the controller.
type session struct {
	ctx    context.Context
	store  *history.Store
	worker *worker.Worker
	ctrl   *orchestrator.Controller

	stop    context.CancelFunc
	stopped chan struct{}
}

func httpClient() *utils.PorygonHTTPClient {
	return utils.NewPorygonHTTPClient(utils.HTTPClientConfig{
		Timeout:       cfg.Timeout,
		ProxyURL:      cfg.Proxy,
		ProxyUsername: cfg.ProxyUser,
		ProxyPassword: cfg.ProxyPass,
		UserAgent:     cfg.UserAgent,
		Headers:       utils.ParseHeaderArgs(cfg.Headers),
	})
}

// newSession starts a controller loop that stops on SIGINT/SIGTERM or close.
// Hooks run on the loop goroutine. Without requireTool a missing yt-dlp only
// fails the operations that run it.
func newSession(hooks orchestrator.Hooks, requireTool bool) (*session, error) {
	toolPath, err := ytdlp.Locate(cfg.Tool)
	if err != nil {
		if requireTool {
			return nil, err
		}
		log.Debug().Str("op", "cmd/session").Err(err).Msg("continuing without yt-dlp")
		toolPath = ytdlp.ToolName
	}
	log.Debug().Str("op", "cmd/session").Msgf("using %s", toolPath)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	s := &session{
		ctx:     ctx,
		store:   history.Open(cfg.HistoryFile),
		worker:  worker.New(ytdlp.NewExec(toolPath), thumbnail.NewHTTPFetcher(httpClient())),
		stop:    stop,
		stopped: make(chan struct{}),
	}
	s.ctrl = orchestrator.New(orchestrator.Options{
		Store:    s.store,
		Worker:   s.worker,
		TempDir:  cfg.TempDir,
		Debounce: cfg.Debounce,
		Hosts:    cfg.Hosts,
		Hooks:    hooks,
	})
	go func() {
		defer close(s.stopped)
		s.ctrl.Run(ctx)
	}()
	return s, nil
}

func (s *session) close() {
	s.stop()
	<-s.stopped
}
