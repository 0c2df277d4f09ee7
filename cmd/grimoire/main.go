// ABOUTME: Entry point for the grimoire MCP server
// ABOUTME: Bridges model tool calls to local personal-data stores

package main

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"sync"
	"syscall"

	"github.com/fatih/color"

	"github.com/2389/grimoire/internal/bridge"
	"github.com/2389/grimoire/internal/config"
)

// Version is set by goreleaser at build time.
var version = "dev"

const banner = `
            _                 _
  __ _ _ __(_)_ __ ___   ___ (_)_ __ ___
 / _' | '__| | '_ ' _ \ / _ \| | '__/ _ \
| (_| | |  | | | | | | | (_) | | | |  __/
 \__, |_|  |_|_| |_| |_|\___/|_|_|  \___|
 |___/
`

func usage() {
	fmt.Println("Usage: grimoire <command>")
	fmt.Println()
	fmt.Println("Commands:")
	fmt.Println("  serve [--stdio] [--config PATH] [--http ADDR]")
	fmt.Println("                         Start the MCP server")
	fmt.Println("  init [--force]         Write a commented default config file")
	fmt.Println("  token new|list|revoke  Manage static access tokens")
	fmt.Println("  doctor                 Check storage, automation, and privacy grants")
	fmt.Println("  tools                  List the registered tools")
	fmt.Println("  version                Print the version")
}

// getConfigPath returns the config file path.
// Priority: GRIMOIRE_CONFIG env var > XDG default.
func getConfigPath() string {
	if envPath := os.Getenv("GRIMOIRE_CONFIG"); envPath != "" {
		return envPath
	}
	if p := config.DefaultPath(); p != "" {
		return p
	}
	return "config.yaml" // fallback
}

// getDataPath returns the data directory.
// Priority: XDG_DATA_HOME/grimoire > ~/.local/share/grimoire
func getDataPath() string {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "data" // fallback
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}
	return filepath.Join(dataDir, "grimoire")
}

func main() {
	if len(os.Args) < 2 {
		usage()
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	var err error
	switch os.Args[1] {
	case "serve":
		err = runServe(ctx, os.Args[2:])
	case "init":
		err = runInit(os.Args[2:])
	case "token":
		err = runToken(os.Args[2:])
	case "doctor":
		err = runDoctor(ctx, os.Args[2:])
	case "tools":
		err = runTools(os.Args[2:])
	case "version":
		fmt.Println(version)
	case "help", "--help", "-h":
		usage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n", os.Args[1])
		os.Exit(1)
	}

	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// serveFlags holds the serve command's parsed flags.
type serveFlags struct {
	configPath string
	httpAddr   string
	stdio      bool
}

func parseServeFlags(args []string) (serveFlags, error) {
	f := serveFlags{configPath: getConfigPath()}
	for i := 0; i < len(args); i++ {
		arg := args[i]
		switch {
		case arg == "--stdio":
			f.stdio = true
		case arg == "--config":
			if i+1 >= len(args) {
				return f, fmt.Errorf("--config requires a value")
			}
			f.configPath = args[i+1]
			i++
		case strings.HasPrefix(arg, "--config="):
			f.configPath = strings.TrimPrefix(arg, "--config=")
		case arg == "--http":
			if i+1 >= len(args) {
				return f, fmt.Errorf("--http requires a value")
			}
			f.httpAddr = args[i+1]
			i++
		case strings.HasPrefix(arg, "--http="):
			f.httpAddr = strings.TrimPrefix(arg, "--http=")
		default:
			return f, fmt.Errorf("unknown flag: %s", arg)
		}
	}
	return f, nil
}

func runServe(ctx context.Context, args []string) error {
	flags, err := parseServeFlags(args)
	if err != nil {
		return err
	}

	cfg, err := loadOrDefault(flags.configPath)
	if err != nil {
		return err
	}
	if flags.httpAddr != "" {
		cfg.Server.HTTPAddr = flags.httpAddr
	}
	if flags.stdio {
		cfg.Server.Transport = "stdio"
	}
	stdio := cfg.Server.Transport == "stdio"

	// On stdio, stdout belongs to the protocol; everything human goes to
	// stderr and the banner is skipped.
	logOut := io.Writer(os.Stdout)
	if stdio {
		logOut = os.Stderr
	}
	logger := setupLogger(cfg.Logging, logOut)

	if !stdio {
		cyan := color.New(color.FgCyan)
		gray := color.New(color.FgHiBlack)
		green := color.New(color.FgGreen)
		yellow := color.New(color.FgYellow)

		cyan.Print(banner)
		gray.Printf("    version: %s\n\n", version)

		green.Print("    ▶ ")
		fmt.Printf("Config:    %s\n", flags.configPath)
		green.Print("    ▶ ")
		fmt.Printf("HTTP:      %s\n", cfg.Server.HTTPAddr)
		if cfg.Tailscale.Enabled {
			green.Print("    ▶ ")
			fmt.Printf("Tailscale: ")
			cyan.Print(cfg.Tailscale.Hostname)
			if cfg.Tailscale.Funnel {
				yellow.Print(" [funnel]")
			}
			if cfg.Tailscale.Ephemeral {
				gray.Print(" (ephemeral)")
			}
			fmt.Println()
		}
		fmt.Println()
	}

	b, err := bridge.New(cfg, logger, version)
	if err != nil {
		return fmt.Errorf("creating bridge: %w", err)
	}

	logger.Info("starting grimoire",
		"config", flags.configPath,
		"transport", cfg.Server.Transport,
		"domains", strings.Join(b.EnabledDomains(), ","),
	)

	if stdio {
		return b.RunStdio(ctx)
	}
	return b.Run(ctx)
}

// loadOrDefault loads the config file, or falls back to defaults when the
// default-path file simply does not exist. An explicitly broken file is
// still an error.
func loadOrDefault(path string) (*config.Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	return cfg, nil
}

func runInit(args []string) error {
	force := false
	for _, arg := range args {
		switch arg {
		case "--force", "-f":
			force = true
		default:
			return fmt.Errorf("unknown flag: %s", arg)
		}
	}

	configPath := getConfigPath()
	if _, err := os.Stat(configPath); err == nil && !force {
		return fmt.Errorf("%s already exists (use --force to overwrite)", configPath)
	}

	secretBytes := make([]byte, 32)
	if _, err := rand.Read(secretBytes); err != nil {
		return fmt.Errorf("generating JWT secret: %w", err)
	}
	jwtSecret := base64.StdEncoding.EncodeToString(secretBytes)
	tokensFile := filepath.Join(getDataPath(), "tokens.yaml")

	content := fmt.Sprintf(`# grimoire configuration
# Generated by grimoire init

server:
  http_addr: "127.0.0.1:8787"
  transport: "http"        # or "stdio"

auth:
  require: false
  jwt_secret: "%s"
  tokens_file: "%s"

engine:
  osascript_path: "/usr/bin/osascript"
  timeout: "30s"
  queue_warn_threshold: 8

tailscale:
  enabled: false
  hostname: "grimoire"
  # auth_key: "${TS_AUTHKEY}"
  # https: true
  # funnel: false

# Each domain is enabled unless switched off. db_path overrides the
# default store location; backends reroutes individual operations.
domains:
  messages:
    enabled: true
  notes:
    enabled: true
  contacts:
    enabled: true
  calendar:
    enabled: true
  reminders:
    enabled: true
  mail:
    enabled: true

logging:
  level: "info"   # debug, info, warn, error
  format: "text"  # text, json
`, jwtSecret, tokensFile)

	if err := os.MkdirAll(filepath.Dir(configPath), 0o755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}
	if err := os.WriteFile(configPath, []byte(content), 0o600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	green := color.New(color.FgGreen)
	green.Printf("  ✓ Created config: %s\n", configPath)
	fmt.Println()
	fmt.Println("To start the server:")
	fmt.Println("  grimoire serve")
	return nil
}

func setupLogger(cfg config.LoggingConfig, out io.Writer) *slog.Logger {
	var level slog.Level
	switch cfg.Level {
	case "debug":
		level = slog.LevelDebug
	case "info":
		level = slog.LevelInfo
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	var handler slog.Handler
	if cfg.Format == "json" {
		handler = slog.NewJSONHandler(out, &slog.HandlerOptions{Level: level})
	} else {
		handler = &colorHandler{level: level, out: out}
	}
	return slog.New(handler)
}

// colorHandler provides colorized log output with thread-safe writes.
type colorHandler struct {
	mu     sync.Mutex
	out    io.Writer
	level  slog.Level
	attrs  []slog.Attr
	groups []string
}

func (h *colorHandler) Enabled(_ context.Context, level slog.Level) bool {
	return level >= h.level
}

func (h *colorHandler) Handle(_ context.Context, r slog.Record) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	var buf strings.Builder
	buf.WriteString(color.HiBlackString(r.Time.Format("15:04:05") + " "))

	switch r.Level {
	case slog.LevelDebug:
		buf.WriteString(color.MagentaString("DBG "))
	case slog.LevelInfo:
		buf.WriteString(color.CyanString("INF "))
	case slog.LevelWarn:
		buf.WriteString(color.YellowString("WRN "))
	case slog.LevelError:
		buf.WriteString(color.New(color.FgRed, color.Bold).Sprint("ERR "))
	default:
		buf.WriteString("??? ")
	}

	buf.WriteString(r.Message)

	for _, a := range h.attrs {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
	}
	r.Attrs(func(a slog.Attr) bool {
		buf.WriteString(color.HiBlackString(" " + a.Key + "="))
		buf.WriteString(a.Value.String())
		return true
	})

	buf.WriteString("\n")
	_, err := io.WriteString(h.out, buf.String())
	return err
}

func (h *colorHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	newAttrs := make([]slog.Attr, len(h.attrs), len(h.attrs)+len(attrs))
	copy(newAttrs, h.attrs)
	newAttrs = append(newAttrs, attrs...)
	return &colorHandler{out: h.out, level: h.level, attrs: newAttrs, groups: h.groups}
}

func (h *colorHandler) WithGroup(name string) slog.Handler {
	newGroups := make([]string, len(h.groups), len(h.groups)+1)
	copy(newGroups, h.groups)
	newGroups = append(newGroups, name)
	return &colorHandler{out: h.out, level: h.level, attrs: h.attrs, groups: newGroups}
}

// quietLogger is used by one-shot commands that should not narrate.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
