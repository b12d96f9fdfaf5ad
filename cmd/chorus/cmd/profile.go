package cmd

import (
	"fmt"
	"io"
	"path/filepath"

	"github.com/gabriel-vasile/mimetype"
	"github.com/nfrund/chorus/cmd/chorus/internal/output"
	"github.com/nfrund/chorus/internal/app"
	"github.com/nfrund/chorus/internal/domain"
	"github.com/spf13/cobra"
)

var (
	profileDisplayName string
	profileStatus      string
	avatarRemove       bool
	searchLimit        int
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Show and edit profiles",
}

var profileShowCmd = &cobra.Command{
	Use:   "show [USER_ID]",
	Short: "Show a profile, your own by default",
	Args:  cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(s *app.Services) error {
			id := s.Identity.UserID
			if len(args) == 1 {
				id = args[0]
			}
			profile, err := s.Profiles.Get(cmd.Context(), id)
			if err != nil {
				return err
			}
			return render(cmd, profile, profileTable(*profile))
		})
	},
}

var profileUpdateCmd = &cobra.Command{
	Use:   "update",
	Short: "Change your display name or status message",
	Long: `Change your display name or status message. Only the flags given are
changed; pass an empty value to clear a field.

Examples:
  chorus profile update --name "Ada"
  chorus profile update --status ""`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var patch domain.ProfileUpdate
		if cmd.Flags().Changed("name") {
			patch.DisplayName = &profileDisplayName
		}
		if cmd.Flags().Changed("status") {
			patch.StatusMessage = &profileStatus
		}
		if patch.DisplayName == nil && patch.StatusMessage == nil {
			return fmt.Errorf("nothing to update, pass --name or --status")
		}
		return withServices(cmd.Context(), func(s *app.Services) error {
			profile, err := s.Profiles.Update(cmd.Context(), patch)
			if err != nil {
				return err
			}
			return render(cmd, profile, profileTable(*profile))
		})
	},
}

var profileAvatarCmd = &cobra.Command{
	Use:   "avatar [FILE]",
	Short: "Upload a profile picture, or remove it with --remove",
	Args: func(cmd *cobra.Command, args []string) error {
		if avatarRemove {
			return cobra.NoArgs(cmd, args)
		}
		return cobra.ExactArgs(1)(cmd, args)
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(s *app.Services) error {
			var (
				profile *domain.Profile
				err     error
			)
			if avatarRemove {
				profile, err = s.Profiles.RemoveAvatar(cmd.Context())
			} else {
				profile, err = uploadAvatar(cmd, s, args[0])
			}
			if err != nil {
				return err
			}
			return render(cmd, profile, profileTable(*profile))
		})
	},
}

var profileSearchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Find other users by display name",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withServices(cmd.Context(), func(s *app.Services) error {
			profiles, err := s.Profiles.Search(cmd.Context(), domain.ProfileSearch{
				Query: args[0],
				Limit: searchLimit,
			})
			if err != nil {
				return err
			}
			return render(cmd, profiles, profileTable(profiles...))
		})
	},
}

// uploadAvatar sniffs the file's type from its content and uploads it.
func uploadAvatar(cmd *cobra.Command, s *app.Services, path string) (*domain.Profile, error) {
	f, err := fs.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, err
	}
	mime, err := mimetype.DetectReader(f)
	if err != nil {
		return nil, fmt.Errorf("detect file type: %w", err)
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	logger.Debug("Uploading avatar", "path", path, "mime", mime.String(), "size", info.Size())
	return s.Profiles.UploadAvatar(cmd.Context(), filepath.Base(path), mime.String(), info.Size(), f)
}

func profileTable(profiles ...domain.Profile) *output.Table {
	table := &output.Table{Headers: []string{"ID", "NAME", "STATUS", "AVATAR"}}
	for _, p := range profiles {
		table.AddRow(p.ID, output.Deref(p.DisplayName), output.Truncate(output.Deref(p.StatusMessage), 40), output.Deref(p.AvatarURL))
	}
	return table
}

func init() {
	profileUpdateCmd.Flags().StringVar(&profileDisplayName, "name", "", "Display name (at most 50 characters)")
	profileUpdateCmd.Flags().StringVar(&profileStatus, "status", "", "Status message (at most 200 characters)")
	profileAvatarCmd.Flags().BoolVar(&avatarRemove, "remove", false, "Remove the current picture")
	profileSearchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 10, "Maximum results")

	profileCmd.AddCommand(profileShowCmd, profileUpdateCmd, profileAvatarCmd, profileSearchCmd)
	rootCmd.AddCommand(profileCmd)
}
