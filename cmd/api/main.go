package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	gfshutdown "github.com/gelmium/graceful-shutdown"
	_ "github.com/jackc/pgx/v5/stdlib"

	"notes-serverless/internal/app"
	"notes-serverless/internal/observability"
)

func main() {
	runtime, err := app.Build(app.Options{
		LoadDotEnv:     true,
		RunMigrations:  app.EnvBoolOrDefault("RUN_MIGRATIONS_ON_STARTUP", true),
		StartScheduler: true,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
		os.Exit(1)
	}
	logger := runtime.Logger

	server := &http.Server{
		Addr:              fmt.Sprintf(":%s", runtime.Config.Port),
		Handler:           runtime.Handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	go func() {
		logger.Info("server_start", map[string]any{"addr": server.Addr, "env": runtime.Config.Env})
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server_failed", map[string]any{"error": err.Error()})
			os.Exit(1)
		}
	}()

	wait := gfshutdown.GracefulShutdown(
		context.Background(),
		runtime.Config.ShutdownTimeout,
		map[string]gfshutdown.Operation{
			"api": shutdownOperation(server, runtime, logger),
		},
	)

	exitCode := <-wait
	logger.Info("server_exit", map[string]any{"code": exitCode})
	os.Exit(exitCode)
}

type shutdowner interface {
	Shutdown(ctx context.Context) error
}

type closer interface {
	Close(ctx context.Context) error
}

// shutdownOperation drains the server before closing the runtime, so
// in-flight requests still have a database.
func shutdownOperation(server shutdowner, runtime closer, logger *observability.Logger) gfshutdown.Operation {
	return func(ctx context.Context) error {
		logger.Info("server_shutdown", nil)
		serverErr := server.Shutdown(ctx)
		if serverErr != nil {
			serverErr = fmt.Errorf("shutdown http server: %w", serverErr)
		}
		return errors.Join(serverErr, runtime.Close(ctx))
	}
}
