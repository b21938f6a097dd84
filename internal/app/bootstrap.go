package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"os"
	"strconv"

	"github.com/coreos/go-systemd/v22/daemon"
	"golang.org/x/sync/errgroup"

	"github.com/0xchamin/agent-security-and-identity/internal/config"
	"github.com/0xchamin/agent-security-and-identity/internal/server"
	"github.com/0xchamin/agent-security-and-identity/pkg/logging"
)

// Application bootstraps and runs agentgate.
//
// Example usage:
//
//	app, err := app.NewApplication(ctx, app.NewConfig(false, false, ""))
//	if err != nil {
//	    return fmt.Errorf("failed to create application: %w", err)
//	}
//	defer app.Close()
//	return app.Serve(ctx)
type Application struct {
	config   *Config
	services *Services
	logFile  io.Closer
}

// NewApplication loads the configuration, initializes logging and builds
// the services.
func NewApplication(ctx context.Context, cfg *Config, opts ...ServiceOption) (*Application, error) {
	// Console logging until the configuration says otherwise.
	initLogging(cfg, config.LoggingConfig{Level: "info"}, nil)

	appCfg, err := config.Load(cfg.ConfigPath)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to load configuration")
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	var logFile io.WriteCloser
	if appCfg.Logging.File != "" {
		logFile = logging.NewFileWriter(logging.FileOptions{
			Path:       appCfg.Logging.File,
			MaxSizeMB:  appCfg.Logging.MaxSizeMB,
			MaxBackups: appCfg.Logging.MaxBackups,
			MaxAgeDays: appCfg.Logging.MaxAgeDays,
			Compress:   appCfg.Logging.Compress,
		})
	}
	initLogging(cfg, appCfg.Logging, logFile)

	services, err := InitializeServices(ctx, appCfg, opts...)
	if err != nil {
		logging.Error("Bootstrap", err, "Failed to initialize services")
		if logFile != nil {
			logFile.Close()
		}
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}

	a := &Application{config: cfg, services: services}
	if logFile != nil {
		a.logFile = logFile
	}
	return a, nil
}

func initLogging(cfg *Config, lc config.LoggingConfig, file io.Writer) {
	level := logging.ParseLevel(lc.Level)
	if cfg.Debug {
		level = logging.LevelDebug
	}

	var out io.Writer = os.Stderr
	switch {
	case file != nil:
		out = file
	case cfg.Quiet:
		out = io.Discard
	}
	logging.Init(logging.Options{Level: level, Format: lc.Format, Output: out})
}

// Services returns the assembled components.
func (a *Application) Services() *Services {
	return a.services
}

// Close releases every resource held by the application.
func (a *Application) Close() error {
	err := a.services.Close()
	if a.logFile != nil {
		err = errors.Join(err, a.logFile.Close())
	}
	return err
}

// Serve listens on the configured address and serves HTTP until ctx is
// cancelled.
func (a *Application) Serve(ctx context.Context) error {
	sc := a.services.Config.Server
	addr := net.JoinHostPort(sc.Host, strconv.Itoa(sc.Port))
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to listen on %s: %w", addr, err)
	}
	return a.ServeListener(ctx, ln)
}

// ServeListener serves HTTP on ln until ctx is cancelled, then shuts the
// server down within the configured timeout.
func (a *Application) ServeListener(ctx context.Context, ln net.Listener) error {
	sc := a.services.Config.Server
	srv := &http.Server{
		Handler: server.New(
			a.services.Flow,
			a.services.Credentials,
			a.services.Dispatcher,
			a.services.Audit,
		).Handler(),
		ReadHeaderTimeout: sc.ReadHeaderTimeout,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logging.Info("Server", "Listening on http://%s", ln.Addr())
		notifySystemd(daemon.SdNotifyReady)
		if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server failed: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		notifySystemd(daemon.SdNotifyStopping)
		logging.Info("Server", "Shutting down")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), sc.ShutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})
	return g.Wait()
}

func notifySystemd(state string) {
	sent, err := daemon.SdNotify(false, state)
	if err != nil {
		logging.Warn("Server", "sd_notify %s failed: %v", state, err)
		return
	}
	if sent {
		logging.Debug("Server", "Sent %s to systemd", state)
	}
}
