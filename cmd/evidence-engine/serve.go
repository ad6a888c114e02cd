// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/pdiddy/evidence-engine/internal/server"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the pipeline over HTTP",
	Long: `Serve exposes the pipeline as a JSON API:

  POST /v1/ask            {"question": "..."} -> session record
  GET  /v1/status         whether a query is in flight
  GET  /v1/passages/{id}  passage context (knowledge backend only)
  GET  /healthz

The server admits one query at a time; a request arriving while another is
in flight gets 409 Conflict.`,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().String("addr", "", "listen address (overrides config)")
	serveCmd.Flags().Bool("export", false, "write a session record for every answered query")

	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(viper.GetViper())
	if err != nil {
		return err
	}
	if addr, _ := cmd.Flags().GetString("addr"); addr != "" {
		cfg.Server.Addr = addr
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c, err := buildComponents(ctx, cfg, nil)
	if err != nil {
		return err
	}
	defer c.Close()

	opts := []server.Option{server.WithLogger(logger)}
	if c.store != nil {
		opts = append(opts, server.WithTracer(c.store))
	}
	if doExport, _ := cmd.Flags().GetBool("export"); doExport {
		opts = append(opts, server.WithExport(cfg.Export))
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.New(c.engine, opts...),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("listening", slog.String("addr", srv.Addr), slog.String("backend", string(cfg.Search.Backend)))
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

	logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
