package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/sbenjam1n/annotate/internal/queue"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Annotation event stream",
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the event stream length and unacknowledged events",
	RunE: func(cmd *cobra.Command, args []string) error {
		rdb, err := connectRedis()
		if err != nil {
			return err
		}
		defer rdb.Close()

		ctx := context.Background()
		q := queue.New(rdb)

		length, pending, err := q.Status(ctx)
		if err != nil {
			return fmt.Errorf("queue status: %w", err)
		}

		fmt.Printf("Queue Status:\n")
		fmt.Printf("  %s: %d events\n", queue.StreamEvents, length)
		fmt.Printf("  %s: %d pending\n", queue.GroupFollowers, pending)
		return nil
	},
}

var queueFollowCmd = &cobra.Command{
	Use:   "follow",
	Short: "Print annotation events as sessions publish them",
	RunE: func(cmd *cobra.Command, args []string) error {
		consumer, _ := cmd.Flags().GetString("consumer")
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()

		rdb, err := connectRedis()
		if err != nil {
			return err
		}
		defer rdb.Close()

		q := queue.New(rdb)
		if err := q.EnsureStream(ctx); err != nil {
			return err
		}

		for ctx.Err() == nil {
			e, id, err := q.Read(ctx, consumer)
			if err != nil {
				if errors.Is(ctx.Err(), context.Canceled) {
					return nil
				}
				return err
			}
			if e == nil {
				continue
			}
			fmt.Println(formatEvent(e))
			if err := q.Ack(ctx, id); err != nil {
				return fmt.Errorf("ack %s: %w", id, err)
			}
		}
		return nil
	},
}

func formatEvent(e *queue.Event) string {
	at := e.At.Format("15:04:05")
	who := e.Annotator
	if e.User != "" {
		who += "/" + e.User
	}
	switch e.Type {
	case queue.EventCommit:
		return fmt.Sprintf("%s %s %s %s = %s", at, who, color.GreenString("commit  "), e.RecordID, taskValue(e))
	case queue.EventAutoFill:
		return fmt.Sprintf("%s %s %s %s = %s", at, who, color.CyanString("autofill"), e.RecordID, taskValue(e))
	case queue.EventDrop:
		return fmt.Sprintf("%s %s %s %s", at, who, color.RedString("drop    "), e.RecordID)
	case queue.EventRestore:
		return fmt.Sprintf("%s %s %s %s", at, who, color.YellowString("restore "), e.RecordID)
	default:
		return fmt.Sprintf("%s %s %s %s", at, who, color.HiBlackString("%-8s", e.Type), e.RecordID)
	}
}

func taskValue(e *queue.Event) string {
	if e.Value == "" {
		return e.Task + " (null)"
	}
	return e.Task + " " + e.Value
}

func init() {
	queueFollowCmd.Flags().String("consumer", "annotate-follow", "Consumer name within the follower group")
	queueCmd.AddCommand(queueStatusCmd)
	queueCmd.AddCommand(queueFollowCmd)
}
