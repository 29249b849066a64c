package main

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(syncCmd)
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show configuration, connectivity and pending operations",
	Long:  "Display the current configuration, probe the server once, and list any\nwrite operations still waiting to be synchronized.",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return fmt.Errorf("failed to load config: %w", err)
		}

		fmt.Println("Configuration:")
		fmt.Printf("  Server URL:  %s\n", valueOrDefault(cfg.Default.ServerURL, "(default)"))
		fmt.Printf("  Storage Dir: %s\n", valueOrDefault(cfg.Default.StorageDir, "(default)"))

		coord := getCoordinator()
		status := coord.Monitor().Status()

		fmt.Println()
		fmt.Println("Connectivity:")
		if status.Available() {
			fmt.Println("  Server:      reachable")
		} else {
			fmt.Println("  Server:      UNREACHABLE")
		}

		ops := coord.Queue().Operations()
		fmt.Println()
		fmt.Printf("Pending operations: %d\n", len(ops))
		for _, op := range ops {
			target := string(op.TargetID)
			if target == "" && op.Payload != nil {
				target = op.Payload.Title
			}
			fmt.Printf("  %s  %-6s  %s  (queued %s)\n",
				op.ID, op.Kind, target, op.CreatedAt.Format(time.RFC3339))
			if op.Err != "" {
				fmt.Printf("      last error: %s\n", op.Err)
			}
		}
		return nil
	},
}

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay queued operations against the server",
	RunE: func(cmd *cobra.Command, args []string) error {
		coord := getCoordinator()

		pending := coord.Queue().Len()
		if pending == 0 {
			fmt.Println("Nothing to sync.")
			return nil
		}
		if !coord.Monitor().Status().Available() {
			fmt.Printf("Server unreachable; %d operation(s) remain queued.\n", pending)
			return nil
		}

		ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
		defer cancel()
		coord.Queue().ProcessQueue(ctx)

		remaining := coord.Queue().Len()
		fmt.Printf("Synced %d operation(s); %d remaining.\n", pending-remaining, remaining)
		if remaining > 0 {
			ops := coord.Queue().Operations()
			if ops[0].Err != "" {
				fmt.Printf("Sync halted: %s\n", ops[0].Err)
			}
		}
		return nil
	},
}

func valueOrDefault(val, def string) string {
	if val == "" {
		return def
	}
	return val
}
