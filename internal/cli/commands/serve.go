package commands

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

	"github.com/danielbwilkinson/jargon-rag/internal/api/handlers"
	"github.com/danielbwilkinson/jargon-rag/internal/server"
)

const shutdownTimeout = 30 * time.Second

func ServeCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API",
		Long: `Serve retrieval and answers over HTTP. The server is stateless: clients send
the conversation history with every request.`,
		Args: cobra.NoArgs,
		RunE: runServe,
	}

	cmd.Flags().StringP("port", "p", "", "Port to listen on (default: JARGONRAG_PORT or 8080)")
	cmd.Flags().Bool("no-migrate", false, "Skip automatic database migrations on startup")

	return cmd
}

func runServe(cmd *cobra.Command, args []string) error {
	noMigrate, _ := cmd.Flags().GetBool("no-migrate")

	a, err := newApp(cmd, appOptions{migrate: !noMigrate})
	if err != nil {
		return err
	}
	defer a.Close()

	port := a.cfg.Port
	if p, _ := cmd.Flags().GetString("port"); p != "" {
		port = p
	}

	router := server.NewRouter(server.RouterConfig{
		QueryHandler: handlers.NewQueryHandler(a.pipeline, a.logger),
		Logger:       a.logger,
	})

	srv := &http.Server{
		Addr:              ":" + port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("starting server", zap.String("port", port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	a.logger.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}

	a.logger.Info("server exited")
	return nil
}
