package cmd

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/gorilla/mux"

	"github.com/ruaan-deysel/mcp-runtime/config"
	"github.com/ruaan-deysel/mcp-runtime/logger"
	"github.com/ruaan-deysel/mcp-runtime/mcp"
)

// configReloadDebounce coalesces the write+rename pairs some editors emit
// for a single logical save into one reload.
const configReloadDebounce = 500 * time.Millisecond

// Serve runs the MCP server behind the Streamable HTTP transport,
// one process serving many concurrent sessions over a single MCP
// endpoint plus /metrics and /healthz.
type Serve struct{}

// Run starts the listener and blocks until it exits or the process is
// interrupted.
func (s *Serve) Run(ctx *Context) error {
	metrics := mcp.NewMetrics()

	newPeer := func() *mcp.Peer {
		server := mcp.NewServer(ctx.ServerInfo, ctx.Capabilities, ctx.Instructions, ctx.StrictMode, nil)
		installDemoTools(server)
		server.Peer().SetDispatchHook(metrics.DispatchHook())
		server.Peer().SetLogger(func(format string, args ...any) { logger.Debug(format, args...) })
		return server.Peer()
	}

	transport := mcp.NewHTTPServerTransport(mcp.HTTPServerTransportConfig{
		Path:        ctx.Path,
		Stateless:   ctx.Stateless,
		MaxSessions: ctx.MaxSessions,
		HostPolicy:  ctx.HostPolicy,
		Metrics:     metrics,
	}, newPeer)

	router := mux.NewRouter()
	router.PathPrefix(ctx.Path).Handler(transport.Handler())
	router.HandleFunc("/healthz", handleHealthz).Methods(http.MethodGet)
	if ctx.MetricsEnabled {
		router.Handle(ctx.MetricsPath, metrics.Handler()).Methods(http.MethodGet)
	}

	runCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go transport.Run(runCtx)

	if watcher := startConfigWatcher(runCtx, ctx, transport); watcher != nil {
		defer watcher.Close()
	}

	addr := fmt.Sprintf("%s:%d", ctx.BindHost, ctx.Port)
	httpServer := &http.Server{Addr: addr, Handler: router}

	logger.Info("mcp-runtime: serving on %s%s (stateless=%v, maxSessions=%d)", addr, ctx.Path, ctx.Stateless, ctx.MaxSessions)
	if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func handleHealthz(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("ok"))
}

// startConfigWatcher, when ctx.ConfigPath names an existing file, watches it
// and hot-swaps the running listener's DNS-rebinding policy and session cap
// on change, without a restart. One watcher for the whole server config
// file. Returns nil if there's nothing to watch.
func startConfigWatcher(ctx context.Context, appCtx *Context, transport *mcp.HTTPServerTransport) *config.FileWatcher {
	if appCtx.ConfigPath == "" {
		return nil
	}
	if _, err := os.Stat(appCtx.ConfigPath); err != nil {
		return nil
	}
	watcher, err := config.NewFileWatcher(configReloadDebounce)
	if err != nil {
		logger.Warning("mcp-runtime: config watcher unavailable: %v", err)
		return nil
	}
	if err := watcher.WatchFile(appCtx.ConfigPath); err != nil {
		logger.Warning("mcp-runtime: could not watch config file %s: %v", appCtx.ConfigPath, err)
		_ = watcher.Close()
		return nil
	}

	reload := func() {
		cfg, err := config.LoadConfigFile(appCtx.ConfigPath)
		if err != nil || cfg == nil {
			if err != nil {
				logger.Warning("mcp-runtime: config reload failed: %v", err)
			}
			return
		}
		if cfg.HostPolicy != nil {
			var hp mcp.HostPolicy
			switch strings.ToLower(*cfg.HostPolicy) {
			case "none":
				hp = mcp.NoHostPolicy()
			case "custom":
				hp = mcp.CustomHostPolicy(cfg.AllowedHosts, cfg.AllowedOrigins)
			default:
				hp = mcp.AutomaticHostPolicy(appCtx.BindHost)
			}
			transport.SetHostPolicy(hp)
			logger.Info("mcp-runtime: reloaded host policy from %s", appCtx.ConfigPath)
		}
		if cfg.MaxSessions != nil {
			transport.SetMaxSessions(*cfg.MaxSessions)
			logger.Info("mcp-runtime: reloaded max sessions (%d) from %s", *cfg.MaxSessions, appCtx.ConfigPath)
		}
	}
	go watcher.Run(ctx, appCtx.ConfigPath, reload)
	return watcher
}
