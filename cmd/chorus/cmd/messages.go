package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/nfrund/chorus/cmd/chorus/internal/output"
	"github.com/nfrund/chorus/internal/app"
	"github.com/nfrund/chorus/internal/domain"
	"github.com/nfrund/chorus/internal/messagesync"
	"github.com/nfrund/chorus/internal/pubsub"
	"github.com/spf13/cobra"
)

var historyLimit int

var messagesCmd = &cobra.Command{
	Use:   "messages",
	Short: "Read and write messages in a channel or conversation",
	Long: `Read and write messages. A scope names where messages live, either
channel:ID or conversation:ID.

Examples:
  chorus messages tail channel:general
  chorus messages send conversation:c1 "see you at 5"
  chorus messages edit m1 "see you at 6"`,
}

var messagesListCmd = &cobra.Command{
	Use:   "list SCOPE",
	Short: "Print the newest messages of a scope",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := domain.ParseScope(args[0])
		if err != nil {
			return err
		}
		return withServices(cmd.Context(), func(s *app.Services) error {
			messages, err := s.Messages.ListRecent(cmd.Context(), scope, historyLimit)
			if err != nil {
				return err
			}
			table := &output.Table{Headers: []string{"ID", "AUTHOR", "SENT", "CONTENT"}}
			for _, m := range messages {
				table.AddRow(m.ID, m.UserID, formatTime(m.CreatedAt), output.Truncate(m.Content, 60))
			}
			return render(cmd, messages, table)
		})
	},
}

var messagesTailCmd = &cobra.Command{
	Use:   "tail SCOPE",
	Short: "Follow a scope's messages live until interrupted",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := domain.ParseScope(args[0])
		if err != nil {
			return err
		}
		return withServices(cmd.Context(), func(s *app.Services) error {
			return tail(cmd.Context(), s, scope, newTailPrinter(cmd.OutOrStdout(), outputFormat == output.FormatJSON))
		})
	},
}

var messagesSendCmd = &cobra.Command{
	Use:   "send SCOPE TEXT...",
	Short: "Send a message",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		scope, err := domain.ParseScope(args[0])
		if err != nil {
			return err
		}
		content, ok := domain.NormalizeContent(strings.Join(args[1:], " "))
		if !ok {
			return &domain.ValidationError{Field: "content", Reason: "must not be empty"}
		}
		return withServices(cmd.Context(), func(s *app.Services) error {
			in := domain.NewMessage{Scope: scope, UserID: s.Identity.UserID, Content: content}
			if err := in.Validate(); err != nil {
				return err
			}
			msg, err := s.Messages.Insert(cmd.Context(), in)
			if err != nil {
				return err
			}
			return render(cmd, msg, messageTable(*msg))
		})
	},
}

var messagesEditCmd = &cobra.Command{
	Use:   "edit MESSAGE_ID TEXT...",
	Short: "Edit one of your messages",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		content, ok := domain.NormalizeContent(strings.Join(args[1:], " "))
		if !ok {
			return &domain.ValidationError{Field: "content", Reason: "must not be empty"}
		}
		return withServices(cmd.Context(), func(s *app.Services) error {
			msg, err := s.Messages.UpdateContent(cmd.Context(), args[0], s.Identity.UserID, content)
			if err != nil {
				return err
			}
			return render(cmd, msg, messageTable(*msg))
		})
	},
}

var messagesDeleteCmd = &cobra.Command{
	Use:   "delete MESSAGE_ID",
	Short: "Delete one of your messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(s *app.Services) error {
			if err := s.Messages.Delete(cmd.Context(), args[0], s.Identity.UserID); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		})
	},
}

// tail binds a synchronizer to scope and prints its views until ctx ends.
func tail(ctx context.Context, s *app.Services, scope domain.Scope, printer *tailPrinter) error {
	syncer := s.NewSynchronizer()
	defer syncer.Close()

	err := pubsub.On(ctx, s.Bus(), messagesync.TopicViewChanged,
		func(_ context.Context, v messagesync.View, msg pubsub.Message) error {
			if msg.Metadata[messagesync.MetaSyncID] != syncer.ID() {
				return nil
			}
			return printer.Print(v)
		})
	if err != nil {
		return fmt.Errorf("subscribe to views: %w", err)
	}

	if err := syncer.Rebind(ctx, &scope); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	<-ctx.Done()
	return nil
}

func messageTable(m domain.Message) *output.Table {
	table := &output.Table{Headers: []string{"ID", "SENT", "CONTENT"}}
	table.AddRow(m.ID, formatTime(m.CreatedAt), output.Truncate(m.Content, 60))
	return table
}

func init() {
	messagesListCmd.Flags().IntVarP(&historyLimit, "limit", "n", 50, "Number of messages")

	messagesCmd.AddCommand(messagesListCmd, messagesTailCmd, messagesSendCmd, messagesEditCmd, messagesDeleteCmd)
	rootCmd.AddCommand(messagesCmd)
}
