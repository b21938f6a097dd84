package app

import (
	"context"
	"errors"
	"fmt"

	"github.com/0xchamin/agent-security-and-identity/internal/audit"
	"github.com/0xchamin/agent-security-and-identity/internal/config"
	"github.com/0xchamin/agent-security-and-identity/internal/credentials"
	"github.com/0xchamin/agent-security-and-identity/internal/dispatch"
	"github.com/0xchamin/agent-security-and-identity/internal/llm"
	"github.com/0xchamin/agent-security-and-identity/internal/oauth"
	"github.com/0xchamin/agent-security-and-identity/internal/selector"
	"github.com/0xchamin/agent-security-and-identity/internal/toolsession"
	"github.com/0xchamin/agent-security-and-identity/pkg/logging"
)

// Services holds all initialized components used by the application.
type Services struct {
	Config      config.Config
	Credentials *credentials.FileStore
	Sessions    oauth.SessionStore
	Flow        *oauth.Flow
	Tools       *toolsession.Manager
	Model       llm.Completer
	Selector    *selector.Selector
	Audit       audit.Sink
	Dispatcher  *dispatch.Dispatcher
}

// ServiceOption adjusts service construction, mainly for tests.
type ServiceOption func(*serviceOptions)

type serviceOptions struct {
	clientFactory toolsession.ClientFactory
	model         llm.Completer
}

// WithClientFactory replaces the stdio launcher of tool servers.
func WithClientFactory(f toolsession.ClientFactory) ServiceOption {
	return func(o *serviceOptions) {
		o.clientFactory = f
	}
}

// WithModel replaces the configured language model.
func WithModel(m llm.Completer) ServiceOption {
	return func(o *serviceOptions) {
		o.model = m
	}
}

// InitializeServices creates every component from cfg. On failure the
// components created so far are closed.
func InitializeServices(ctx context.Context, cfg config.Config, opts ...ServiceOption) (_ *Services, err error) {
	var o serviceOptions
	for _, opt := range opts {
		opt(&o)
	}

	s := &Services{Config: cfg}
	defer func() {
		if err != nil {
			if cerr := s.Close(); cerr != nil {
				logging.Warn("Services", "Cleanup after failed initialization: %v", cerr)
			}
		}
	}()

	s.Credentials, err = credentials.NewFileStore(cfg.Credentials.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open credential store: %w", err)
	}

	sessions, err := newSessionStore(ctx, cfg.Sessions)
	if err != nil {
		return nil, fmt.Errorf("failed to create session store: %w", err)
	}
	s.Sessions = sessions

	s.Flow, err = oauth.NewFlow(cfg.Providers, s.Sessions, s.Credentials)
	if err != nil {
		return nil, fmt.Errorf("failed to create authorization flow: %w", err)
	}

	var toolOpts []toolsession.Option
	if o.clientFactory != nil {
		toolOpts = append(toolOpts, toolsession.WithClientFactory(o.clientFactory))
	}
	s.Tools, err = toolsession.NewManager(s.Credentials, cfg.ToolServers, toolOpts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create tool session manager: %w", err)
	}

	s.Model = o.model
	if s.Model == nil {
		s.Model, err = llm.New(cfg.LLM)
		if err != nil {
			return nil, fmt.Errorf("failed to create language model: %w", err)
		}
	}
	s.Selector = selector.New(s.Model)

	sink, err := audit.New(cfg.Audit)
	if err != nil {
		return nil, fmt.Errorf("failed to open audit sink: %w", err)
	}
	s.Audit = sink

	s.Dispatcher = dispatch.New(s.Tools, s.Selector, s.Audit,
		dispatch.WithService(cfg.Dispatch.Service),
		dispatch.WithPreviewLength(cfg.Audit.PreviewLength),
	)

	logging.Info("Services", "Initialized: %d provider(s), tool services %v, audit driver %s, session driver %s",
		len(cfg.Providers), s.Tools.Services(), cfg.Audit.Driver, cfg.Sessions.Driver)
	return s, nil
}

func newSessionStore(ctx context.Context, cfg config.SessionsConfig) (oauth.SessionStore, error) {
	switch cfg.Driver {
	case config.SessionDriverRedis:
		store, err := oauth.NewRedisSessionStore(ctx, cfg.Redis, cfg.TTL)
		if err != nil {
			return nil, err
		}
		return store, nil
	default:
		return oauth.NewMemorySessionStore(cfg.TTL), nil
	}
}

// Close releases the session table and the audit sink.
func (s *Services) Close() error {
	var errs []error
	if s.Sessions != nil {
		errs = append(errs, s.Sessions.Close())
	}
	if s.Audit != nil {
		errs = append(errs, s.Audit.Close())
	}
	return errors.Join(errs...)
}
