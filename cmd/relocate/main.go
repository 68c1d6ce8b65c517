// Command relocate finds recorded UI elements again in live pages.
//
// Usage:
//
//	relocate -target step.yaml -html page.html     # resolve against a saved page
//	relocate -target step.json -url https://...    # resolve against a live page
//	relocate -describe 'button.save' -html page.html
//	relocate -serve -config relocate.yaml          # HTTP + MCP server
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/andybalholm/cascadia"
	"github.com/go-chi/chi/v5"
	"github.com/modelcontextprotocol/go-sdk/mcp"
	"golang.org/x/net/html"

	"github.com/hazyhaar/relocate/audit"
	"github.com/hazyhaar/relocate/auth"
	"github.com/hazyhaar/relocate/browser"
	"github.com/hazyhaar/relocate/guide"
	"github.com/hazyhaar/relocate/internal/config"
	"github.com/hazyhaar/relocate/locator"
	"github.com/hazyhaar/relocate/locator/htmltree"
	"github.com/hazyhaar/relocate/locator/rodtree"
	"github.com/hazyhaar/relocate/safe"
)

var version = "dev"

type options struct {
	configPath string
	target     string
	htmlPath   string
	href       string
	pageURL    string
	describe   string
	serve      bool
	dbPath     string
	addr       string
}

func main() {
	var o options
	flag.StringVar(&o.configPath, "config", "", "path to relocate.yaml")
	flag.StringVar(&o.target, "target", "", "target descriptor file (json or yaml)")
	flag.StringVar(&o.htmlPath, "html", "", "saved HTML page to search")
	flag.StringVar(&o.href, "href", "", "address the saved page was captured from")
	flag.StringVar(&o.pageURL, "url", "", "live page to search")
	flag.StringVar(&o.describe, "describe", "", "print the descriptor of the first element matching this css selector")
	flag.BoolVar(&o.serve, "serve", false, "run the HTTP and MCP server")
	flag.StringVar(&o.dbPath, "db", "", "guide database (overrides config)")
	flag.StringVar(&o.addr, "addr", "", "listen address (overrides config)")
	logLevel := flag.String("log-level", "info", "log level: debug, info, warn, error")
	flag.Parse()

	var level slog.Level
	switch *logLevel {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}
	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, logger, o); err != nil {
		logger.Error("relocate: fatal", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, logger *slog.Logger, o options) error {
	cfg := config.Default()
	if o.configPath != "" {
		var err error
		if cfg, err = config.LoadFile(o.configPath); err != nil {
			return fmt.Errorf("load config: %w", err)
		}
	}
	if o.dbPath != "" {
		cfg.Store.Path = o.dbPath
	}
	if o.addr != "" {
		cfg.Server.Addr = o.addr
	}

	switch {
	case o.serve:
		return runServe(ctx, logger, cfg)
	case o.describe != "":
		return runDescribe(ctx, logger, cfg, o)
	case o.target != "":
		return runResolve(ctx, logger, cfg, o)
	}
	fmt.Fprintln(os.Stderr, "usage: relocate -target <file> (-html <file> | -url <url>) | -describe <css> (-html <file> | -url <url>) | -serve")
	os.Exit(2)
	return nil
}

func resolverConfig(cfg *config.Config, logger *slog.Logger) locator.Config {
	return locator.Config{
		Timeout:     cfg.Resolve.Timeout,
		Retries:     cfg.Resolve.Retries,
		StableLimit: cfg.Resolve.StableLimit,
		Logger:      logger,
	}
}

func newManager(cfg *config.Config, logger *slog.Logger) (*browser.Manager, error) {
	mode, err := browser.ParseMode(cfg.Browser.Mode)
	if err != nil {
		return nil, err
	}
	return browser.NewManager(browser.Config{
		RemoteURL:       cfg.Browser.Remote,
		Mode:            mode,
		XvfbDisplay:     cfg.Browser.XvfbDisplay,
		BlockResources:  cfg.Browser.ResourceBlocking,
		NavigateTimeout: cfg.Browser.NavigateTimeout,
		Logger:          logger,
	}), nil
}

// openLive opens pageURL in a fresh browser. The returned func releases
// both.
func openLive(ctx context.Context, cfg *config.Config, logger *slog.Logger, pageURL string) (*browser.Tab, func(), error) {
	if err := safe.CheckURL(pageURL, true); err != nil {
		return nil, nil, err
	}
	mgr, err := newManager(cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	if _, err := mgr.Start(ctx); err != nil {
		_ = mgr.Close()
		return nil, nil, fmt.Errorf("start browser: %w", err)
	}
	tab, err := mgr.OpenTab(ctx, pageURL)
	if err != nil {
		_ = mgr.Close()
		return nil, nil, err
	}
	return tab, func() {
		_ = tab.Close()
		_ = mgr.Close()
	}, nil
}

func runResolve(ctx context.Context, logger *slog.Logger, cfg *config.Config, o options) error {
	data, err := os.ReadFile(o.target)
	if err != nil {
		return err
	}
	target, err := locator.DecodeDescriptor(data)
	if err != nil {
		return err
	}

	rc := resolverConfig(cfg, logger)
	pageHref := o.href
	switch {
	case o.htmlPath != "":
		doc, err := os.ReadFile(o.htmlPath)
		if err != nil {
			return err
		}
		rc.Source = htmltree.New(string(doc), htmltree.Config{
			Href:   o.href,
			Loader: htmltree.DirLoader(filepath.Dir(o.htmlPath)),
			Logger: logger,
		})
	case o.pageURL != "":
		tab, release, err := openLive(ctx, cfg, logger, o.pageURL)
		if err != nil {
			return err
		}
		defer release()
		pageHref = o.pageURL
		rc.Source = rodtree.New(tab.Page, rodtree.Config{Logger: logger})
		rc.Stability = &rodtree.Waiter{Page: tab.Page, Quiet: cfg.Resolve.QuietWindow}
	default:
		return errors.New("-target needs -html or -url")
	}

	res := locator.NewResolver(rc).ResolveTarget(ctx, target)
	out := &guide.Resolved{Resolution: guide.NewResolution(res)}
	if res.OK() {
		href := pageHref
		if res.Frame.Href != "" {
			href = res.Frame.Href
		}
		out.Preview = guide.NewPreviewer().Render(res.Node, href)
	}
	if err := printJSON(out); err != nil {
		return err
	}
	if !res.OK() {
		return fmt.Errorf("not found after %d attempts: %s", res.Attempts, res.Error)
	}
	return nil
}

func runDescribe(ctx context.Context, logger *slog.Logger, cfg *config.Config, o options) error {
	sel, err := cascadia.Compile(o.describe)
	if err != nil {
		return fmt.Errorf("describe: %w", err)
	}

	var markup, href string
	switch {
	case o.htmlPath != "":
		b, err := os.ReadFile(o.htmlPath)
		if err != nil {
			return err
		}
		markup, href = string(b), o.href
	case o.pageURL != "":
		tab, release, err := openLive(ctx, cfg, logger, o.pageURL)
		if err != nil {
			return err
		}
		defer release()
		if markup, err = tab.HTML(ctx); err != nil {
			return err
		}
		href = o.pageURL
	default:
		return errors.New("-describe needs -html or -url")
	}

	doc, err := html.Parse(strings.NewReader(markup))
	if err != nil {
		return fmt.Errorf("describe: parse: %w", err)
	}
	n := sel.MatchFirst(doc)
	if n == nil {
		return fmt.Errorf("describe: nothing matches %q", o.describe)
	}
	return printJSON(locator.BuildDescriptor(n, href))
}

func runServe(ctx context.Context, logger *slog.Logger, cfg *config.Config) error {
	store, err := guide.OpenStore(cfg.Store.Path)
	if err != nil {
		return err
	}
	defer store.Close()

	mgr, err := newManager(cfg, logger)
	if err != nil {
		return err
	}
	defer mgr.Close()

	player := guide.NewPlayer(store, guide.PlayerConfig{
		Resolve: resolverConfig(cfg, logger),
		Opener: &guide.BrowserOpener{
			Manager:      mgr,
			Quiet:        cfg.Resolve.QuietWindow,
			AllowPrivate: cfg.Browser.AllowPrivate,
			Logger:       logger,
		},
		SessionTTL: cfg.Playback.SessionTTL,
		Logger:     logger,
	})
	defer player.Close()
	svc := guide.NewService(store, player, logger)

	trail, err := audit.New(store.DB, audit.Config{Logger: logger})
	if err != nil {
		return err
	}
	defer trail.Close()
	if n, err := trail.Cleanup(ctx, cfg.Store.AuditRetention); err != nil {
		logger.Warn("relocate: audit cleanup", "error", err)
	} else if n > 0 {
		logger.Info("relocate: audit cleanup", "deleted", n)
	}
	svc.Use(audit.Middleware(trail))

	var secret []byte
	if cfg.Server.JWTSecret != "" {
		secret = []byte(cfg.Server.JWTSecret)
		if err := safe.ValidateSecret(secret); err != nil {
			return fmt.Errorf("jwt secret: %w", err)
		}
	} else {
		logger.Warn("relocate: no JWT secret configured, API is unauthenticated", "env", config.EnvJWTSecret)
	}

	mcpSrv := mcp.NewServer(&mcp.Implementation{Name: "relocate", Version: version}, nil)
	svc.RegisterMCP(mcpSrv)

	r := guide.NewRouter(svc, secret)
	r.Group(func(r chi.Router) {
		if secret != nil {
			r.Use(auth.RequireAuth)
		}
		r.Get("/api/audit", auditHandler(trail, logger))
		r.Handle("/mcp", mcp.NewStreamableHTTPHandler(func(*http.Request) *mcp.Server { return mcpSrv }, &mcp.StreamableHTTPOptions{Logger: logger}))
	})

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      2 * time.Minute,
		IdleTimeout:       2 * time.Minute,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("relocate: listening", "addr", cfg.Server.Addr, "db", cfg.Store.Path)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	logger.Info("relocate: shutting down")
	return srv.Shutdown(shutdownCtx)
}

// auditHandler lists recent audit entries. Query: op, limit.
func auditHandler(trail *audit.Logger, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
		entries, err := trail.Recent(r.Context(), r.URL.Query().Get("op"), limit)
		w.Header().Set("Content-Type", "application/json")
		if err != nil {
			logger.Error("relocate: audit query", "error", err)
			w.WriteHeader(http.StatusInternalServerError)
			_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
			return
		}
		_ = json.NewEncoder(w).Encode(entries)
	}
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
