package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"time"

	eventdesk "github.com/EventDesk/eventdesk-go"
	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(watchCmd)
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream newly created events from the server",
	Long:  "Subscribe to the server's push channel and print each new event as it is\nannounced. Press Ctrl-C to stop.",
	RunE: func(cmd *cobra.Command, args []string) error {
		client := getClient()
		coord := getCoordinator()

		bc := eventdesk.NewBroadcastClient(client.BaseURL(), nil)
		bc.OnNewEntity(func(ev eventdesk.Event) {
			coord.ApplyBroadcast(ev, eventdesk.Filters{})
			fmt.Printf("[%s] new event:\n", time.Now().Format("15:04:05"))
			printEvent(ev)
		})
		bc.OnDisconnected(func(reason string) {
			fmt.Printf("Disconnected: %s\n", reason)
		})
		bc.OnReconnecting(func(attempt int, delay time.Duration) {
			fmt.Printf("Reconnecting (attempt %d) in %s...\n", attempt, delay)
		})

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		err := bc.Connect(ctx)
		cancel()
		if err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		defer bc.Disconnect()

		fmt.Println("Watching for new events. Press Ctrl-C to stop.")

		sig := make(chan os.Signal, 1)
		signal.Notify(sig, os.Interrupt)
		<-sig
		fmt.Println()
		return nil
	},
}
