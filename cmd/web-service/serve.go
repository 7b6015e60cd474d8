package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-extras/cobraflags"
	"github.com/spf13/cobra"

	"github.com/r2r72/x-mkt-v1/cmd/web-service/handlers"
	"github.com/r2r72/x-mkt-v1/internal/access"
	"github.com/r2r72/x-mkt-v1/internal/config"
	"github.com/r2r72/x-mkt-v1/internal/logging"
)

func newServeCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP server",
		RunE:  serveCommand,
	}
	cobraflags.RegisterMap(cmd, newCommonFlags())
	return cmd
}

func serveCommand(cmd *cobra.Command, _ []string) error {
	// === Configuration ===
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	log := logging.New(os.Stdout, cfg.Log.Level, cfg.Log.Format)
	slog.SetDefault(log)

	// === Dependencies ===
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApp(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer app.Close()

	// === HTTP server ===
	server := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newRouter(cfg, app, log),
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("web service started", "addr", cfg.Addr, "driver", cfg.Database.Driver, "base_url", cfg.BaseURL)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	// === Graceful shutdown ===
	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}
	log.Info("web service stopped")
	return nil
}

func newRouter(cfg config.Config, app *app, log *slog.Logger) http.Handler {
	mux := chi.NewRouter()
	mux.Use(middleware.RequestID)
	mux.Use(middleware.RealIP)
	mux.Use(logging.Requests(log))
	mux.Use(middleware.Recoverer)

	origins := cfg.CORS.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{cfg.BaseURL}
	}
	mux.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"Refresh", "Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	handlers.Register(mux, handlers.Deps{
		Sessions:      app.sessions,
		Campaigns:     app.campaigns,
		Tasks:         app.tasks,
		Routes:        access.DefaultRoutes(),
		Limiter:       app.limiter,
		LimitPolicy:   app.limitPolicy,
		Log:           log,
		SecureCookies: cfg.Session.CookieSecure,
		Ready:         app.ping,
	})
	return mux
}
