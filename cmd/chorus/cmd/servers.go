package cmd

import (
	"fmt"
	"strconv"
	"time"

	"github.com/nfrund/chorus/cmd/chorus/internal/output"
	"github.com/nfrund/chorus/internal/app"
	"github.com/nfrund/chorus/internal/domain"
	"github.com/spf13/cobra"
)

const timeLayout = "2006-01-02 15:04"

var (
	serverDescription string
	serverPublic      bool
)

var serversCmd = &cobra.Command{
	Use:   "servers",
	Short: "Browse, create, join and leave servers",
}

var serversListCmd = &cobra.Command{
	Use:   "list",
	Short: "List public servers",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(s *app.Services) error {
			servers, err := s.Servers.ListPublic(cmd.Context())
			if err != nil {
				return err
			}
			table := &output.Table{Headers: []string{"ID", "NAME", "MEMBERS", "JOINED", "DESCRIPTION"}}
			for _, srv := range servers {
				joined := "no"
				if srv.Member != nil {
					joined = string(srv.Member.Role)
				}
				table.AddRow(srv.ID, srv.Name, strconv.Itoa(srv.MemberCount), joined,
					output.Truncate(output.Deref(srv.Description), 40))
			}
			return render(cmd, servers, table)
		})
	},
}

var serversMineCmd = &cobra.Command{
	Use:   "mine",
	Short: "List the servers you belong to",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(s *app.Services) error {
			servers, err := s.Servers.ListMine(cmd.Context())
			if err != nil {
				return err
			}
			table := &output.Table{Headers: []string{"ID", "NAME", "ROLE", "JOINED"}}
			for _, srv := range servers {
				table.AddRow(srv.ID, srv.Name, string(srv.Member.Role), formatTime(srv.Member.JoinedAt))
			}
			return render(cmd, servers, table)
		})
	},
}

var serversCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a server you own",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		in := domain.CreateServerInput{Name: args[0]}
		if cmd.Flags().Changed("description") {
			in.Description = &serverDescription
		}
		if cmd.Flags().Changed("public") {
			in.IsPublic = &serverPublic
		}
		return withServices(cmd.Context(), func(s *app.Services) error {
			srv, err := s.Servers.Create(cmd.Context(), in)
			if err != nil {
				return err
			}
			table := &output.Table{Headers: []string{"ID", "NAME", "PUBLIC"}}
			table.AddRow(srv.ID, srv.Name, strconv.FormatBool(srv.IsPublic))
			return render(cmd, srv, table)
		})
	},
}

var serversJoinCmd = &cobra.Command{
	Use:   "join SERVER_ID",
	Short: "Join a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(s *app.Services) error {
			member, err := s.Servers.Join(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Joined %s as %s\n", member.ServerID, member.Role)
			return nil
		})
	},
}

var serversLeaveCmd = &cobra.Command{
	Use:   "leave SERVER_ID",
	Short: "Leave a server",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(s *app.Services) error {
			if err := s.Servers.Leave(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Left %s\n", args[0])
			return nil
		})
	},
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Local().Format(timeLayout)
}

func init() {
	serversCreateCmd.Flags().StringVarP(&serverDescription, "description", "d", "", "Server description")
	serversCreateCmd.Flags().BoolVar(&serverPublic, "public", true, "List the server publicly")

	serversCmd.AddCommand(serversListCmd, serversMineCmd, serversCreateCmd, serversJoinCmd, serversLeaveCmd)
	rootCmd.AddCommand(serversCmd)
}
