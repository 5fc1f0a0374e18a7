// Package runtime bootstraps a voicelink process: configuration, logging,
// the voice session, and the optional local control API.
package runtime

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"go.uber.org/zap"

	"github.com/huisuda/voicelink/internal/capture"
	appconfig "github.com/huisuda/voicelink/internal/config"
	apphttp "github.com/huisuda/voicelink/internal/http"
	applogger "github.com/huisuda/voicelink/internal/logger"
	"github.com/huisuda/voicelink/internal/playback"
	"github.com/huisuda/voicelink/pkg/voiceclient"
)

// App is an assembled voicelink process.
type App struct {
	cfg     appconfig.Config
	logger  *zap.Logger
	session *voiceclient.Session
	server  *http.Server
}

// New loads configuration and wires a session from the given platform ports.
func New(configPath string, recorder capture.Recorder, player playback.Player, haptics capture.Haptics, events voiceclient.Events) (*App, error) {
	cfg, err := appconfig.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("load voicelink config: %w", err)
	}

	logger, err := applogger.New(cfg.Log)
	if err != nil {
		logger, _ = zap.NewProduction()
	}
	logger.Info("voicelink config loaded",
		zap.String("config_path", configPath),
		zap.String("root_dir", cfg.RootDir),
		zap.String("server_url", cfg.ServerURL),
		zap.String("device_id", cfg.DeviceID),
	)

	session, err := voiceclient.NewSession(cfg, recorder, player, haptics, events, logger)
	if err != nil {
		return nil, err
	}

	app := &App{
		cfg:     cfg,
		logger:  logger,
		session: session,
	}
	if cfg.HTTPEnabled {
		app.server = &http.Server{
			Addr:    cfg.HTTPAddr,
			Handler: apphttp.NewRouter(session, logger),
		}
	}
	return app, nil
}

// Session returns the wired voice session.
func (a *App) Session() *voiceclient.Session {
	return a.session
}

// Logger returns the process logger.
func (a *App) Logger() *zap.Logger {
	return a.logger
}

// Config returns the loaded configuration.
func (a *App) Config() appconfig.Config {
	return a.cfg
}

// Start connects the voice session and, when enabled, starts the control
// API. It does not block.
func (a *App) Start(ctx context.Context) error {
	if err := a.session.Connect(ctx); err != nil {
		return err
	}
	if a.server != nil {
		go func() {
			a.logger.Info("starting control api", zap.String("addr", a.server.Addr))
			if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				a.logger.Error("control api error", zap.Error(err))
			}
		}()
	}
	return nil
}

// Shutdown stops the control API and closes the session.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	if a.server != nil {
		if shutdownErr := a.server.Shutdown(ctx); shutdownErr != nil && !errors.Is(shutdownErr, http.ErrServerClosed) {
			err = shutdownErr
		}
	}
	a.session.Close()
	_ = a.logger.Sync()
	return err
}
