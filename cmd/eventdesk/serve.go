package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"time"

	eventdesk "github.com/EventDesk/eventdesk-go"
	"github.com/spf13/cobra"
)

var (
	serveAddr     string
	serveDataFile string
	serveSeed     int
	serveGenerate bool
)

func init() {
	rootCmd.AddCommand(serveCmd)
	serveCmd.Flags().StringVar(&serveAddr, "addr", ":5000", "listen address")
	serveCmd.Flags().StringVar(&serveDataFile, "data-file", "", "JSON file to persist events to")
	serveCmd.Flags().IntVar(&serveSeed, "seed", 20, "number of random events to seed when starting fresh")
	serveCmd.Flags().BoolVar(&serveGenerate, "generate", false, "periodically generate random events and broadcast them")
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the reference calendar server",
	Long:  "Run the EventDesk reference server: event CRUD endpoints, health check,\nand a WebSocket channel announcing new events.",
	RunE: func(cmd *cobra.Command, args []string) error {
		server := eventdesk.NewEventServer(&eventdesk.ServerOptions{
			DataFile:  serveDataFile,
			SeedCount: serveSeed,
		})

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		if serveGenerate {
			server.StartGenerator(ctx)
			defer server.StopGenerator()
		}

		httpServer := &http.Server{
			Addr:    serveAddr,
			Handler: server.Handler(),
		}

		errCh := make(chan error, 1)
		go func() {
			fmt.Printf("EventDesk server listening on %s\n", serveAddr)
			errCh <- httpServer.ListenAndServe()
		}()

		select {
		case err := <-errCh:
			return err
		case <-ctx.Done():
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return httpServer.Shutdown(shutdownCtx)
	},
}
