package main

import (
	"context"
	"fmt"
	"time"

	eventdesk "github.com/EventDesk/eventdesk-go"
	"github.com/spf13/cobra"
)

var (
	listPage  int
	listLimit int
	listTitle string
	listGroup string
	listMonth int
	listYear  int
	listSort  string

	eventTitle       string
	eventGroup       string
	eventDate        string
	eventStart       string
	eventEnd         string
	eventDescription string
)

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().IntVar(&listPage, "page", 1, "page number")
	listCmd.Flags().IntVar(&listLimit, "limit", 10, "events per page")
	listCmd.Flags().StringVar(&listTitle, "title", "", "filter by title substring")
	listCmd.Flags().StringVar(&listGroup, "group", "", "filter by category")
	listCmd.Flags().IntVar(&listMonth, "month", 0, "filter by month (1-12)")
	listCmd.Flags().IntVar(&listYear, "year", 0, "filter by year")
	listCmd.Flags().StringVar(&listSort, "sort", "", "sort by title, date or start_time")

	rootCmd.AddCommand(createCmd)
	addEventFlags(createCmd)

	rootCmd.AddCommand(updateCmd)
	addEventFlags(updateCmd)

	rootCmd.AddCommand(deleteCmd)
}

func addEventFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&eventTitle, "title", "", "event title")
	cmd.Flags().StringVar(&eventGroup, "group", "", "event category")
	cmd.Flags().StringVar(&eventDate, "date", "", "event date (YYYY-MM-DD)")
	cmd.Flags().StringVar(&eventStart, "start", "", "start time (HH:MM)")
	cmd.Flags().StringVar(&eventEnd, "end", "", "end time (HH:MM)")
	cmd.Flags().StringVar(&eventDescription, "description", "", "event description")
}

func eventInputFromFlags() *eventdesk.EventInput {
	return &eventdesk.EventInput{
		Title:       eventTitle,
		Group:       eventGroup,
		Date:        eventDate,
		StartTime:   eventStart,
		EndTime:     eventEnd,
		Description: eventDescription,
	}
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List calendar events",
	Long:  "List events with optional filtering, sorting and pagination.\nWorks offline against the local mirror when the server is unreachable.",
	RunE: func(cmd *cobra.Command, args []string) error {
		coord := getCoordinator()

		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		page := coord.GetEvents(ctx, listPage, listLimit, eventdesk.Filters{
			Title:  listTitle,
			Group:  listGroup,
			Month:  listMonth,
			Year:   listYear,
			SortBy: listSort,
		})

		if !coord.Monitor().Status().Available() {
			fmt.Println("Offline: showing locally cached events.")
		}
		if len(page.Data) == 0 {
			fmt.Println("No events found.")
			return nil
		}

		for _, ev := range page.Data {
			printEvent(ev)
		}
		fmt.Printf("\nPage %d of %d (%d events total)\n",
			page.Metadata.CurrentPage, page.Metadata.TotalPages, page.Metadata.TotalItems)
		return nil
	},
}

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a calendar event",
	Long:  "Create a new event. If the server is unreachable the event is stored locally\nand synchronized automatically once the connection returns.",
	RunE: func(cmd *cobra.Command, args []string) error {
		in := eventInputFromFlags()
		if err := in.Validate(); err != nil {
			return err
		}

		coord := getCoordinator()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		result := coord.CreateEvent(ctx, in)
		if result.Queued {
			fmt.Printf("Server unreachable; event stored locally as %s and queued for sync.\n", result.Event.ID)
		} else {
			fmt.Printf("Created event %s.\n", result.Event.ID)
		}
		printEvent(result.Event)
		return nil
	},
}

var updateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Update a calendar event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := eventInputFromFlags()
		if err := in.Validate(); err != nil {
			return err
		}

		coord := getCoordinator()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		result := coord.UpdateEvent(ctx, eventdesk.EventID(args[0]), in)
		if result.Queued {
			fmt.Printf("Server unreachable; update to %s stored locally and queued for sync.\n", result.Event.ID)
		} else {
			fmt.Printf("Updated event %s.\n", result.Event.ID)
		}
		printEvent(result.Event)
		return nil
	},
}

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete a calendar event",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		coord := getCoordinator()
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()

		result := coord.DeleteEvent(ctx, eventdesk.EventID(args[0]))
		if result.Queued {
			fmt.Printf("Server unreachable; delete of %s queued for sync.\n", result.ID)
		} else {
			fmt.Printf("Deleted event %s.\n", result.ID)
		}
		return nil
	},
}
