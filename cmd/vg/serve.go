package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/matsen/vulngraph/internal/console"
	"github.com/matsen/vulngraph/internal/graph"
	"github.com/matsen/vulngraph/internal/viewport"
)

var (
	serveAddr      string
	serveWatch     string
	serveOffline   bool
	serveFrameRate float64
)

func init() {
	serveCmd.Flags().StringVar(&serveAddr, "addr", "", "Listen address (default: serve.addr from config)")
	serveCmd.Flags().StringVar(&serveWatch, "watch", "", "Reload the result set whenever this file changes")
	serveCmd.Flags().BoolVar(&serveOffline, "offline", false, "Do not connect to Neo4j; queries are disabled")
	serveCmd.Flags().Float64Var(&serveFrameRate, "frame-rate", console.DefaultFrameRate, "Maximum frames per second per browser")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve [input]",
	Short: "Serve the interactive graph console",
	Long: `Serve the interactive console: a browser canvas showing the force layout,
with click-to-inspect details and a Cypher/similarity query bar.

The initial result set comes from input, or from the --watch file, which is
reloaded on every change. Unless --offline is set, queries typed in the
browser run against the configured Neo4j database.

Endpoints:
  GET  /            console page
  GET  /ws          websocket used by the page
  GET  /api/graph   current shared result set
  POST /api/query   {"cypher": "...", "params": {...}} replaces it
  GET  /healthz     liveness
  GET  /metrics     Prometheus metrics

Examples:
  vg serve
  vg serve results.json --offline
  vg serve --watch results.json --addr 0.0.0.0:8080`,
	Args: cobra.MaximumNArgs(1),
	RunE: runServe,
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := mustLoadConfig()
	addr := cfg.Serve.Addr
	if serveAddr != "" {
		addr = serveAddr
	}

	data := graph.GraphData{Nodes: []graph.GraphNode{}, Links: []graph.GraphLink{}}
	switch {
	case len(args) == 1:
		data = mustReadGraph(args[0])
	case serveWatch != "":
		data = mustReadGraph(serveWatch)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	opts := []console.Option{
		console.WithLogger(logger),
		console.WithFrameRate(serveFrameRate),
		console.WithInitialSize(viewport.Size{
			Width:  float64(cfg.Viewport.Width),
			Height: float64(cfg.Viewport.Height),
		}),
	}
	if !serveOffline {
		connectCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		runner, client, err := connect(connectCtx, cfg)
		cancel()
		if err != nil {
			styleWarn.Fprintf(os.Stderr, "neo4j unavailable, queries disabled: %v\n", err)
		} else {
			defer runner.Close(context.Background())
			opts = append(opts, console.WithQuerier(client), console.WithSearcher(client))
		}
	}

	srv, err := console.NewServer(data, opts...)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	defer srv.Close()

	if serveWatch != "" {
		if err := srv.Watch(ctx, serveWatch, 0); err != nil {
			exitWithError(ExitError, "%v", err)
		}
	}

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("console listening", zap.String("addr", addr))
		errCh <- httpServer.ListenAndServe()
	}()
	if humanOutput {
		outputHuman("%s http://%s\n", styleTitle.Sprint("console at"), addr)
	} else {
		outputJSON(map[string]string{"status": "listening", "addr": addr})
	}

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			exitWithError(ExitError, "server failed: %v", err)
		}
	case <-ctx.Done():
	}

	logger.Info("shutting down console")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	srv.Close()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("shutdown", zap.Error(err))
	}
	return nil
}
