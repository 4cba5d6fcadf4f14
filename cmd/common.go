package cmd

import (
	"errors"
	"fmt"
	"os"

	"github.com/taseen/securelock/internal/engine"
	"github.com/taseen/securelock/internal/errs"
	logger "github.com/taseen/securelock/internal/logging"
	"github.com/taseen/securelock/internal/master"
	"github.com/taseen/securelock/internal/registry"
	"github.com/taseen/securelock/internal/storage"
)

// App wires the store, master manager, engine, and registry for one
// command invocation.
type App struct {
	Log      logger.Logger
	Store    *storage.Store
	Master   *master.Manager
	Engine   *engine.Engine
	Registry *registry.Registry
}

// OpenApp opens the registry database and composes the service stack.
func OpenApp(log logger.Logger) (*App, error) {
	path, err := storage.DefaultPath()
	if err != nil {
		return nil, err
	}
	store, err := storage.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open registry: %w", err)
	}

	m := master.NewManager(store)
	eng := engine.New(log, m)
	return &App{
		Log:      log,
		Store:    store,
		Master:   m,
		Engine:   eng,
		Registry: registry.New(log, store, eng, m),
	}, nil
}

// OpenAppOrExit is like OpenApp but exits on error
func OpenAppOrExit(log logger.Logger) *App {
	app, err := OpenApp(log)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
	return app
}

// Close clears the master session and releases the database.
func (a *App) Close() {
	a.Master.Lock()
	if err := a.Store.Close(); err != nil {
		a.Log.Warnf("failed to close registry: %v", err)
	}
}

// HandleError prints errors consistently and exits
func HandleError(err error) {
	if err == nil {
		return
	}

	var partial *errs.Partial
	if errors.As(err, &partial) {
		fmt.Fprintf(os.Stderr, "Error: %s finished with failures\n", partial.Op)
		for _, path := range partial.Succeeded {
			fmt.Fprintf(os.Stderr, "  restored: %s\n", path)
		}
		for _, path := range partial.Failed {
			fmt.Fprintf(os.Stderr, "  FAILED:   %s\n", path)
		}
		if partial.Cause != nil {
			fmt.Fprintf(os.Stderr, "First cause: %s\n", partial.Cause)
		}
		fmt.Fprintf(os.Stderr, "The folder stays locked so the failed files remain recoverable\n")
		os.Exit(1)
	}

	fmt.Fprintf(os.Stderr, "Error: %s\n", err)
	switch errs.KindOf(err) {
	case errs.KindNotTracked:
		fmt.Fprintf(os.Stderr, "Run 'securelock add <path>' first\n")
	case errs.KindMasterNotConfigured:
		fmt.Fprintf(os.Stderr, "Run 'securelock master setup' first\n")
	case errs.KindMasterNotUnlocked:
		fmt.Fprintf(os.Stderr, "Run 'securelock master verify' first\n")
	case errs.KindAlreadyLocked:
		fmt.Fprintf(os.Stderr, "Use 'securelock status' to see tracked folders\n")
	case errs.KindCorruptMetadata:
		fmt.Fprintf(os.Stderr, "Run 'securelock doctor <path>' to inspect the folder\n")
	}
	os.Exit(1)
}
