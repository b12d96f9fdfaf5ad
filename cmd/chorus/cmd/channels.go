package cmd

import (
	"fmt"
	"strconv"

	"github.com/nfrund/chorus/cmd/chorus/internal/output"
	"github.com/nfrund/chorus/internal/app"
	"github.com/nfrund/chorus/internal/domain"
	"github.com/spf13/cobra"
)

var (
	channelType        string
	channelDescription string
	channelPosition    int
)

var channelsCmd = &cobra.Command{
	Use:   "channels",
	Short: "Manage a server's channels",
}

var channelsListCmd = &cobra.Command{
	Use:   "list SERVER_ID",
	Short: "List a server's channels in display order",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(s *app.Services) error {
			channels, err := s.Channels.List(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return render(cmd, channels, channelTable(channels...))
		})
	},
}

var channelsCreateCmd = &cobra.Command{
	Use:   "create SERVER_ID NAME",
	Short: "Create a channel",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := domain.CreateChannelInput{Name: args[1], Type: domain.ChannelType(channelType)}
		if cmd.Flags().Changed("description") {
			in.Description = &channelDescription
		}
		if cmd.Flags().Changed("position") {
			in.Position = &channelPosition
		}
		return withServices(cmd.Context(), func(s *app.Services) error {
			channel, err := s.Channels.Create(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			return render(cmd, channel, channelTable(*channel))
		})
	},
}

var channelsRenameCmd = &cobra.Command{
	Use:   "rename CHANNEL_ID NAME",
	Short: "Rename a channel",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		name := args[1]
		return withServices(cmd.Context(), func(s *app.Services) error {
			channel, err := s.Channels.Update(cmd.Context(), args[0], domain.UpdateChannelInput{Name: &name})
			if err != nil {
				return err
			}
			return render(cmd, channel, channelTable(*channel))
		})
	},
}

var channelsDeleteCmd = &cobra.Command{
	Use:   "delete CHANNEL_ID",
	Short: "Delete a channel and its messages",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(s *app.Services) error {
			if err := s.Channels.Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
			return nil
		})
	},
}

func channelTable(channels ...domain.Channel) *output.Table {
	table := &output.Table{Headers: []string{"ID", "NAME", "TYPE", "POSITION", "DESCRIPTION"}}
	for _, ch := range channels {
		table.AddRow(ch.ID, ch.Name, string(ch.Type), strconv.Itoa(ch.Position),
			output.Truncate(output.Deref(ch.Description), 40))
	}
	return table
}

func init() {
	channelsCreateCmd.Flags().StringVarP(&channelType, "type", "t", string(domain.ChannelText), "Channel type (text, voice, video)")
	channelsCreateCmd.Flags().StringVarP(&channelDescription, "description", "d", "", "Channel description")
	channelsCreateCmd.Flags().IntVar(&channelPosition, "position", 0, "Display position (defaults to last)")

	channelsCmd.AddCommand(channelsListCmd, channelsCreateCmd, channelsRenameCmd, channelsDeleteCmd)
	rootCmd.AddCommand(channelsCmd)
}
