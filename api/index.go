package api

import (
	"fmt"
	"net/http"
	"os"
	"sync"

	_ "github.com/jackc/pgx/v5/stdlib"

	"notes-serverless/internal/app"
	"notes-serverless/internal/respond"
)

var (
	runtimeMu  sync.Mutex
	apiRuntime *app.Runtime
	build      = app.Build
)

// Handler is the serverless entry point. The sweep runs through the cron
// endpoint here, never through the in-process scheduler.
func Handler(w http.ResponseWriter, r *http.Request) {
	runtime, err := loadRuntime()
	if err != nil {
		respond.Error(w, http.StatusInternalServerError, "application bootstrap failed")
		return
	}

	runtime.Handler.ServeHTTP(w, r)
}

// loadRuntime keeps a built runtime for the life of the instance. A failed
// build is not cached, so the next invocation tries again.
func loadRuntime() (*app.Runtime, error) {
	runtimeMu.Lock()
	defer runtimeMu.Unlock()

	if apiRuntime != nil {
		return apiRuntime, nil
	}

	runtime, err := build(app.Options{
		LoadDotEnv:     false,
		RunMigrations:  app.EnvBoolOrDefault("RUN_MIGRATIONS_ON_STARTUP", false),
		StartScheduler: false,
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "bootstrap failed: %v\n", err)
		return nil, err
	}

	apiRuntime = runtime
	return apiRuntime, nil
}
