package cmd

import (
	"fmt"
	"strings"

	"github.com/nfrund/chorus/cmd/chorus/internal/output"
	"github.com/nfrund/chorus/internal/pubsub"
	"github.com/samber/lo"
	"github.com/spf13/cobra"

	// Declare their topics.
	_ "github.com/nfrund/chorus/internal/community"
	_ "github.com/nfrund/chorus/internal/messagesync"
)

var topicsModuleFilter string

var topicsCmd = &cobra.Command{
	Use:   "topics",
	Short: "Inspect the event bus topics",
}

var topicsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List every declared topic",
	Long: `List every topic declared on the event bus, with the payload fields it
carries.

Examples:
  chorus topics list
  chorus topics list --module community
  chorus topics list --format json`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		topics := pubsub.Topics()
		if topicsModuleFilter != "" {
			topics = lo.Filter(topics, func(t pubsub.TopicInfo, _ int) bool {
				return t.Module == topicsModuleFilter
			})
		}
		if len(topics) == 0 {
			fmt.Fprintln(cmd.OutOrStdout(), "No topics found")
			return nil
		}

		table := &output.Table{Headers: []string{"NAME", "MODULE", "FIELDS", "DESCRIPTION"}}
		for _, t := range topics {
			table.AddRow(t.Name, t.Module, strings.Join(t.Fields, ","), output.Truncate(t.Description, 50))
		}
		return render(cmd, topics, table)
	},
}

func init() {
	topicsListCmd.Flags().StringVarP(&topicsModuleFilter, "module", "m", "", "Only topics of this module")

	topicsCmd.AddCommand(topicsListCmd)
	rootCmd.AddCommand(topicsCmd)
}
