package cmd

import (
	"fmt"
	"strings"

	"github.com/nfrund/chorus/cmd/chorus/internal/output"
	"github.com/nfrund/chorus/internal/app"
	"github.com/nfrund/chorus/internal/domain"
	"github.com/spf13/cobra"
)

var dmName string

var dmCmd = &cobra.Command{
	Use:     "dm",
	Aliases: []string{"conversations"},
	Short:   "Manage direct and group conversations",
}

var dmListCmd = &cobra.Command{
	Use:   "list",
	Short: "List your conversations, most recently active first",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(s *app.Services) error {
			conversations, err := s.Conversations.List(cmd.Context())
			if err != nil {
				return err
			}
			table := &output.Table{Headers: []string{"ID", "TYPE", "NAME", "WITH", "LAST MESSAGE"}}
			for _, c := range conversations {
				last := ""
				if c.LastMessage != nil {
					last = output.Truncate(c.LastMessage.Content, 40)
				}
				table.AddRow(c.ID, string(c.Type), output.Deref(c.Name), participantNames(c.Participants, s.Identity.UserID), last)
			}
			return render(cmd, conversations, table)
		})
	},
}

var dmCreateCmd = &cobra.Command{
	Use:   "create USER_ID...",
	Short: "Start a conversation",
	Long: `Start a conversation with one or more users. A conversation with exactly
one other user is direct, and an existing direct conversation with that user
is reused.`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := domain.CreateConversationInput{ParticipantIDs: args}
		if cmd.Flags().Changed("name") {
			in.Name = &dmName
		}
		return withServices(cmd.Context(), func(s *app.Services) error {
			conversation, err := s.Conversations.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			return render(cmd, conversation, conversationTable(*conversation))
		})
	},
}

var dmRenameCmd = &cobra.Command{
	Use:   "rename CONVERSATION_ID [NAME]",
	Short: "Rename a conversation, or clear its name when NAME is omitted",
	Args:  cobra.RangeArgs(1, 2),
	RunE: func(cmd *cobra.Command, args []string) error {
		var name *string
		if len(args) == 2 {
			name = &args[1]
		}
		return withServices(cmd.Context(), func(s *app.Services) error {
			conversation, err := s.Conversations.Rename(cmd.Context(), args[0], name)
			if err != nil {
				return err
			}
			return render(cmd, conversation, conversationTable(*conversation))
		})
	},
}

var dmLeaveCmd = &cobra.Command{
	Use:   "leave CONVERSATION_ID",
	Short: "Leave a conversation",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(s *app.Services) error {
			if err := s.Conversations.Leave(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Left %s\n", args[0])
			return nil
		})
	},
}

func conversationTable(c domain.Conversation) *output.Table {
	table := &output.Table{Headers: []string{"ID", "TYPE", "NAME", "UPDATED"}}
	table.AddRow(c.ID, string(c.Type), output.Deref(c.Name), formatTime(c.UpdatedAt))
	return table
}

// participantNames lists everyone but self, by display name when set.
func participantNames(participants []domain.ParticipantWithUser, self string) string {
	var names []string
	for _, p := range participants {
		if p.UserID == self {
			continue
		}
		names = append(names, displayName(p.User))
	}
	return strings.Join(names, ", ")
}

func displayName(a domain.Author) string {
	if a.DisplayName != nil && *a.DisplayName != "" {
		return *a.DisplayName
	}
	return a.ID
}

func init() {
	dmCreateCmd.Flags().StringVarP(&dmName, "name", "n", "", "Conversation name")

	dmCmd.AddCommand(dmListCmd, dmCreateCmd, dmRenameCmd, dmLeaveCmd)
	rootCmd.AddCommand(dmCmd)
}
