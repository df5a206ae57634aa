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

	"github.com/jacentio/grove/api"
	"github.com/jacentio/grove/board"
	"github.com/jacentio/grove/store"
)

func init() {
	serveCmd.Flags().String("listen", "", "address to listen on (overrides listen)")
	serveCmd.Flags().String("backend", "", "backend kind: memory, badger or dynamodb")
	serveCmd.Flags().String("log-level", "", "log level: debug, info, warn or error")
	serveCmd.Flags().String("root-id", "", "id of the root post to ensure on start")
	rootCmd.AddCommand(serveCmd)
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the JSON API",
	Args:  cobra.NoArgs,
	RunE:  serve,
}

func serve(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	e, err := setup(ctx, cmd, cmd.ErrOrStderr())
	if err != nil {
		return err
	}
	defer e.close()

	b := board.New(store.New(e.backend, e.config.StoreConfig(e.logger)), e.logger)
	if e.config.RootID != "" {
		if _, err := b.EnsureRoot(ctx, e.config.RootID, e.config.RootContent); err != nil {
			return err
		}
	}

	server := &http.Server{
		Handler:           api.NewHandler(b, e.logger).Router(),
		Addr:              e.config.Listen,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errs := make(chan error, 1)
	go func() {
		e.logger.Info("server starting", "listen", e.config.Listen, "backend", e.config.Backend.Kind)
		errs <- server.ListenAndServe()
	}()

	select {
	case err := <-errs:
		return err
	case <-ctx.Done():
	}

	e.logger.Info("server stopping")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
