package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"

	eventdesk "github.com/EventDesk/eventdesk-go"
)

// getClient creates an API client from the stored configuration.
func getClient() *eventdesk.Client {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	var opts []eventdesk.ClientOption
	if cfg.Default.ServerURL != "" {
		opts = append(opts, eventdesk.WithBaseURL(cfg.Default.ServerURL))
	}
	return eventdesk.NewClient(opts...)
}

// getCoordinator builds a sync coordinator backed by file storage under
// the configured storage directory (default ~/.eventdesk/data) and
// probes the server once so the first command sees a fresh snapshot.
func getCoordinator() *eventdesk.SyncCoordinator {
	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	dir := cfg.Default.StorageDir
	if dir == "" {
		base, err := configDir()
		if err != nil {
			fmt.Fprintf(os.Stderr, "%v\n", err)
			os.Exit(1)
		}
		dir = filepath.Join(base, "data")
	}

	storage, err := eventdesk.NewFileStorage(dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to open storage: %v\n", err)
		os.Exit(1)
	}

	var monitorOpts *eventdesk.MonitorOptions
	if cfg.Monitor.ProbeIntervalSeconds > 0 || cfg.Monitor.ProbeTimeoutSeconds > 0 {
		monitorOpts = &eventdesk.MonitorOptions{
			ProbeInterval: time.Duration(cfg.Monitor.ProbeIntervalSeconds) * time.Second,
			ProbeTimeout:  time.Duration(cfg.Monitor.ProbeTimeoutSeconds) * time.Second,
		}
	}

	coord := eventdesk.NewSyncCoordinator(getClient(), storage, &eventdesk.CoordinatorOptions{
		Monitor: monitorOpts,
	})
	coord.Monitor().CheckNow(context.Background())
	return coord
}

// printEvent renders one event, marking records awaiting sync.
func printEvent(ev eventdesk.Event) {
	queued := ""
	if ev.Queued {
		queued = "  (queued)"
	}
	fmt.Printf("  [%s] %s%s\n", ev.ID, ev.Title, queued)
	fmt.Printf("      %s  %s-%s  %s\n", ev.Date, ev.StartTime, ev.EndTime, ev.Group)
	if ev.Description != "" {
		fmt.Printf("      %s\n", ev.Description)
	}
}
