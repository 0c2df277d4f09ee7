// ABOUTME: Composition root: builds the engine, probe, domain services,
// ABOUTME: tool packs, auth, and MCP transports from configuration.

package bridge

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"tailscale.com/tsnet"

	"github.com/2389/grimoire/internal/auth"
	"github.com/2389/grimoire/internal/backend"
	"github.com/2389/grimoire/internal/builtins"
	"github.com/2389/grimoire/internal/calendar"
	"github.com/2389/grimoire/internal/config"
	"github.com/2389/grimoire/internal/contacts"
	"github.com/2389/grimoire/internal/mail"
	"github.com/2389/grimoire/internal/mcp"
	"github.com/2389/grimoire/internal/messages"
	"github.com/2389/grimoire/internal/notes"
	"github.com/2389/grimoire/internal/osa"
	"github.com/2389/grimoire/internal/packs"
	"github.com/2389/grimoire/internal/reminders"
	"github.com/2389/grimoire/internal/tcc"
)

// Bridge owns every long-lived component of a running server.
type Bridge struct {
	cfg      *config.Config
	logger   *slog.Logger
	version  string
	engine   *osa.Engine
	probe    *tcc.Probe
	registry *packs.Registry
	tokens   *auth.StaticTokenStore
	verifier auth.TokenVerifier

	services    domainServices
	enabledCaps []string

	mcpServer   *mcp.Server
	httpServer  *http.Server
	tsnetServer *tsnet.Server
}

// domainServices holds whichever domain services are enabled; disabled
// domains stay nil.
type domainServices struct {
	messages  messages.Service
	notes     notes.Service
	contacts  contacts.Service
	calendar  calendar.Service
	reminders reminders.Service
	mail      mail.Service
}

// New composes a Bridge from cfg. version is advertised to MCP clients.
func New(cfg *config.Config, logger *slog.Logger, version string) (*Bridge, error) {
	if logger == nil {
		logger = slog.Default()
	}

	b := &Bridge{
		cfg:     cfg,
		logger:  logger.With("component", "bridge"),
		version: version,
		probe:   tcc.New(),
		engine: osa.New(osa.Config{
			Runner:             &osa.ExecRunner{Path: cfg.Engine.OsascriptPath},
			Logger:             logger.With("component", "engine"),
			Timeout:            cfg.Engine.Timeout,
			QueueWarnThreshold: cfg.Engine.QueueWarnThreshold,
		}),
		registry: packs.NewRegistry(logger.With("component", "registry")),
	}

	if err := b.buildDomains(); err != nil {
		return nil, err
	}
	if err := b.buildAuth(); err != nil {
		return nil, err
	}

	mcpServer, err := mcp.NewServer(mcp.Config{
		Registry:    b.registry,
		Logger:      logger.With("component", "mcp"),
		Verifier:    b.verifier,
		RequireAuth: cfg.Auth.Require,
		CapsFor:     b.capsFor,
		DefaultCaps: b.enabledCaps,
		Version:     version,
	})
	if err != nil {
		return nil, fmt.Errorf("creating MCP server: %w", err)
	}
	b.mcpServer = mcpServer

	mux := http.NewServeMux()
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	// Bearer credentials are verified once, at the outer middleware, which
	// injects the subject for the MCP layer to consume. require stays false
	// here: path and query tokens bypass the Authorization header, so the
	// MCP layer enforces the auth requirement itself at initialize.
	mcpMux := http.NewServeMux()
	mcpServer.RegisterRoutes(mcpMux)
	var mcpHandler http.Handler = mcpMux
	if b.verifier != nil {
		mcpHandler = auth.Middleware(b.verifier, false)(mcpHandler)
	}
	mux.Handle("/mcp", mcpHandler)
	mux.Handle("/mcp/", mcpHandler)

	b.httpServer = &http.Server{
		Addr:              cfg.Server.HTTPAddr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return b, nil
}

// buildDomains composes every enabled domain service behind its merged
// assignment and registers the matching tool pack.
func (b *Bridge) buildDomains() error {
	fda := b.probe.FullDiskAccess

	type domain struct {
		name     string
		defaults backend.Assignment
		compose  func(dc config.DomainConfig, assign backend.Assignment) *packs.BuiltinPack
	}
	domains := []domain{
		{messages.Domain, messages.DefaultAssignment(), func(dc config.DomainConfig, assign backend.Assignment) *packs.BuiltinPack {
			svc := messages.New(messages.Config{
				DBPath: dc.DBPath, Probe: fda, Engine: b.engine, Assignment: assign, Logger: b.logger,
			})
			b.services.messages = svc
			return builtins.MessagesPack(svc)
		}},
		{notes.Domain, notes.DefaultAssignment(), func(dc config.DomainConfig, assign backend.Assignment) *packs.BuiltinPack {
			svc := notes.New(notes.Config{
				DBPath: dc.DBPath, Probe: fda, Engine: b.engine, Assignment: assign, Logger: b.logger,
			})
			b.services.notes = svc
			return builtins.NotesPack(svc)
		}},
		{contacts.Domain, contacts.DefaultAssignment(), func(dc config.DomainConfig, assign backend.Assignment) *packs.BuiltinPack {
			svc := contacts.New(contacts.Config{
				DBPath: dc.DBPath, Probe: fda, Assignment: assign, Logger: b.logger,
			})
			b.services.contacts = svc
			return builtins.ContactsPack(svc)
		}},
		{calendar.Domain, calendar.DefaultAssignment(), func(dc config.DomainConfig, assign backend.Assignment) *packs.BuiltinPack {
			svc := calendar.New(calendar.Config{
				DBPath: dc.DBPath, Probe: fda, Engine: b.engine, Assignment: assign, Logger: b.logger,
			})
			b.services.calendar = svc
			return builtins.CalendarPack(svc)
		}},
		{reminders.Domain, reminders.DefaultAssignment(), func(dc config.DomainConfig, assign backend.Assignment) *packs.BuiltinPack {
			svc := reminders.New(reminders.Config{
				DBPath: dc.DBPath, Probe: fda, Engine: b.engine, Assignment: assign, Logger: b.logger,
			})
			b.services.reminders = svc
			return builtins.RemindersPack(svc)
		}},
		{mail.Domain, mail.DefaultAssignment(), func(dc config.DomainConfig, assign backend.Assignment) *packs.BuiltinPack {
			svc := mail.New(mail.Config{
				DBPath: dc.DBPath, Probe: fda, Engine: b.engine, Assignment: assign, Logger: b.logger,
			})
			b.services.mail = svc
			return builtins.MailPack(svc)
		}},
	}

	for _, d := range domains {
		dc := b.cfg.Domain(d.name)
		if !dc.IsEnabled() {
			b.logger.Info("domain disabled", "domain", d.name)
			continue
		}
		assign, err := backend.Merge(d.defaults, dc.Backends)
		if err != nil {
			return fmt.Errorf("domain %s: %w", d.name, err)
		}
		if err := b.registry.Register(d.compose(dc, assign)); err != nil {
			return fmt.Errorf("registering %s pack: %w", d.name, err)
		}
		b.enabledCaps = append(b.enabledCaps, d.name)
	}
	if len(b.enabledCaps) == 0 {
		return errors.New("every domain is disabled; nothing to serve")
	}
	return nil
}

func (b *Bridge) buildAuth() error {
	var chain auth.Chain
	if b.cfg.Auth.JWTSecret != "" {
		chain = append(chain, auth.NewJWTVerifier([]byte(b.cfg.Auth.JWTSecret)))
	}
	if b.cfg.Auth.TokensFile != "" {
		tokens, err := auth.OpenStaticTokenStore(b.cfg.Auth.TokensFile)
		if err != nil {
			return fmt.Errorf("opening token store: %w", err)
		}
		b.tokens = tokens
		chain = append(chain, tokens)
	}
	if len(chain) > 0 {
		b.verifier = chain
	}
	return nil
}

// capsFor narrows a verified subject to its token's capability set.
// Subjects without a restriction get the full enabled set.
func (b *Bridge) capsFor(subject string) []string {
	if b.tokens == nil {
		return nil
	}
	return b.tokens.CapabilitiesFor(subject)
}

// Registry exposes the tool registry for listing commands.
func (b *Bridge) Registry() *packs.Registry { return b.registry }

// Engine exposes the shared automation engine.
func (b *Bridge) Engine() *osa.Engine { return b.engine }

// Probe exposes the privacy-grant probe.
func (b *Bridge) Probe() *tcc.Probe { return b.probe }

// TokenStore returns the static token store, or nil when not configured.
func (b *Bridge) TokenStore() *auth.StaticTokenStore { return b.tokens }

// EnabledDomains lists the composed domains in registration order.
func (b *Bridge) EnabledDomains() []string {
	return append([]string(nil), b.enabledCaps...)
}

// DomainCheck is one doctor-style health check: a cheap read through the
// domain's default read path, surfacing the same fault a tool call would.
type DomainCheck struct {
	Name  string
	Check func(ctx context.Context) error
}

// Checks returns one check per enabled domain.
func (b *Bridge) Checks() []DomainCheck {
	var checks []DomainCheck
	add := func(name string, fn func(ctx context.Context) error) {
		checks = append(checks, DomainCheck{Name: name, Check: fn})
	}
	if svc := b.services.messages; svc != nil {
		add(messages.Domain, func(ctx context.Context) error {
			_, err := svc.ListChats(ctx, 1, "")
			return err
		})
	}
	if svc := b.services.notes; svc != nil {
		add(notes.Domain, func(ctx context.Context) error {
			_, err := svc.List(ctx, 1, "")
			return err
		})
	}
	if svc := b.services.contacts; svc != nil {
		add(contacts.Domain, func(ctx context.Context) error {
			_, err := svc.List(ctx, 1, "")
			return err
		})
	}
	if svc := b.services.calendar; svc != nil {
		add(calendar.Domain, func(ctx context.Context) error {
			_, err := svc.ListEvents(ctx, calendar.EventQuery{Limit: 1})
			return err
		})
	}
	if svc := b.services.reminders; svc != nil {
		add(reminders.Domain, func(ctx context.Context) error {
			_, err := svc.ListReminders(ctx, reminders.ReminderQuery{Limit: 1})
			return err
		})
	}
	if svc := b.services.mail; svc != nil {
		add(mail.Domain, func(ctx context.Context) error {
			_, err := svc.ListMessages(ctx, mail.MessageQuery{Limit: 1})
			return err
		})
	}
	return checks
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (b *Bridge) Run(ctx context.Context) error {
	ln, err := b.listen(ctx)
	if err != nil {
		return err
	}

	errCh := make(chan error, 1)
	go func() {
		b.logger.Info("http server listening", "addr", ln.Addr().String())
		if serveErr := b.httpServer.Serve(ln); serveErr != nil && !errors.Is(serveErr, http.ErrServerClosed) {
			errCh <- fmt.Errorf("http server: %w", serveErr)
		}
	}()

	var serverErr error
	select {
	case <-ctx.Done():
		b.logger.Info("context cancelled, shutting down")
	case serverErr = <-errCh:
		b.logger.Error("server error", "error", serverErr)
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	shutdownErr := b.httpServer.Shutdown(shutdownCtx)
	if b.tsnetServer != nil {
		if closeErr := b.tsnetServer.Close(); closeErr != nil && shutdownErr == nil {
			shutdownErr = closeErr
		}
	}
	if serverErr != nil {
		return serverErr
	}
	return shutdownErr
}

// RunStdio drives the stdio transport on the process pipes until EOF.
func (b *Bridge) RunStdio(ctx context.Context) error {
	srv, err := mcp.NewStdioServer(mcp.StdioConfig{
		Registry: b.registry,
		Logger:   b.logger.With("component", "mcp-stdio"),
		Caps:     b.enabledCaps,
		Version:  b.version,
	})
	if err != nil {
		return err
	}
	return srv.Serve(ctx, os.Stdin, os.Stdout)
}

func (b *Bridge) listen(ctx context.Context) (net.Listener, error) {
	if b.cfg.Tailscale.Enabled {
		return b.listenTailscale(ctx)
	}
	return net.Listen("tcp", b.cfg.Server.HTTPAddr)
}

func resolveTailscaleStateDir(configured string) (string, error) {
	if configured != "" {
		return configured, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory for tailscale state (set tailscale.state_dir explicitly): %w", err)
	}
	return filepath.Join(home, ".local", "share", "grimoire", "tailscale"), nil
}

func resolveTailscaleAuthKey(configured string) (string, error) {
	key := configured
	if key == "" {
		key = os.Getenv("TS_AUTHKEY")
	}
	if key == "" {
		return "", errors.New("tailscale auth key required: set auth_key in config or the TS_AUTHKEY environment variable")
	}
	return key, nil
}

func (b *Bridge) listenTailscale(ctx context.Context) (net.Listener, error) {
	tsCfg := b.cfg.Tailscale

	stateDir, err := resolveTailscaleStateDir(tsCfg.StateDir)
	if err != nil {
		return nil, err
	}
	if err := os.MkdirAll(stateDir, 0o700); err != nil {
		return nil, fmt.Errorf("creating tailscale state dir: %w", err)
	}
	authKey, err := resolveTailscaleAuthKey(tsCfg.AuthKey)
	if err != nil {
		return nil, err
	}

	b.tsnetServer = &tsnet.Server{
		Hostname:  tsCfg.Hostname,
		Dir:       stateDir,
		Ephemeral: tsCfg.Ephemeral,
		AuthKey:   authKey,
	}

	b.logger.Info("starting tailscale node",
		"hostname", tsCfg.Hostname,
		"state_dir", stateDir,
		"ephemeral", tsCfg.Ephemeral,
	)
	status, err := b.tsnetServer.Up(ctx)
	if err != nil {
		_ = b.tsnetServer.Close()
		return nil, fmt.Errorf("starting tailscale: %w", err)
	}
	if status.Self != nil {
		b.logger.Info("tailscale node ready", "dns_name", status.Self.DNSName)
	}

	switch {
	case tsCfg.Funnel:
		b.logger.Info("enabling tailscale funnel (public HTTPS) on :443")
		ln, err := b.tsnetServer.ListenFunnel("tcp", ":443")
		if err != nil {
			_ = b.tsnetServer.Close()
			return nil, fmt.Errorf("listening on funnel port: %w", err)
		}
		return ln, nil
	case tsCfg.HTTPS:
		b.logger.Info("enabling HTTPS with tailscale certs on :443")
		ln, err := b.tsnetServer.Listen("tcp", ":443")
		if err != nil {
			_ = b.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTPS port: %w", err)
		}
		lc, err := b.tsnetServer.LocalClient()
		if err != nil {
			_ = ln.Close()
			_ = b.tsnetServer.Close()
			return nil, fmt.Errorf("getting tailscale local client: %w", err)
		}
		return tls.NewListener(ln, &tls.Config{
			GetCertificate: lc.GetCertificate,
			MinVersion:     tls.VersionTLS12,
		}), nil
	default:
		ln, err := b.tsnetServer.Listen("tcp", ":80")
		if err != nil {
			_ = b.tsnetServer.Close()
			return nil, fmt.Errorf("listening on tailscale HTTP port: %w", err)
		}
		return ln, nil
	}
}
