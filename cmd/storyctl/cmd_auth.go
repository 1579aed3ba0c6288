package main

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"story-server/internal/models"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

const passwordEnv = "STORYCTL_PASSWORD"

var (
	authPassword string
	registerMail string

	profileDisplayName string
	profileSignature   string
	profileAvatarURL   string
)

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in and store the session locally",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}
		session, err := cli.api.Login(cmd.Context(), args[0], password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", session.Username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Revoke the session and forget stored tokens",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := cli.api.Logout(cmd.Context()); err != nil {
			cli.logger.Warn().Err(err).Msg("Server did not confirm logout")
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

var registerCmd = &cobra.Command{
	Use:   "register <username>",
	Short: "Create an account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if strings.TrimSpace(registerMail) == "" {
			return errors.New("--email is required")
		}
		password, err := readPassword(cmd)
		if err != nil {
			return err
		}
		acc, err := cli.api.Register(cmd.Context(), args[0], registerMail, password)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Registered %s (%s)\n", acc.Username, acc.ID)
		return nil
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the current user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		me, err := cli.api.Me(cmd.Context())
		if err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "%s (%s)\n", me.Username, me.ID)
		if me.DisplayName != "" {
			fmt.Fprintf(out, "Name:      %s\n", me.DisplayName)
		}
		fmt.Fprintf(out, "Email:     %s\n", me.Email)
		if me.Signature != "" {
			fmt.Fprintf(out, "Signature: %s\n", me.Signature)
		}
		return nil
	},
}

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage your public profile",
}

var profileSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Update display name, signature or avatar",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		var update models.ProfileUpdate
		flags := cmd.Flags()
		if flags.Changed("name") {
			update.DisplayName = &profileDisplayName
		}
		if flags.Changed("signature") {
			update.Signature = &profileSignature
		}
		if flags.Changed("avatar") {
			update.AvatarURL = &profileAvatarURL
		}
		if update.DisplayName == nil && update.Signature == nil && update.AvatarURL == nil {
			return errors.New("nothing to update: pass --name, --signature or --avatar")
		}
		me, err := cli.api.UpdateProfile(cmd.Context(), update)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Profile of %s updated\n", me.Username)
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&authPassword, "password", "", "Password (or set "+passwordEnv+", otherwise prompted)")
	registerCmd.Flags().StringVar(&authPassword, "password", "", "Password (or set "+passwordEnv+", otherwise prompted)")
	registerCmd.Flags().StringVar(&registerMail, "email", "", "Email address")

	profileSetCmd.Flags().StringVar(&profileDisplayName, "name", "", "Display name")
	profileSetCmd.Flags().StringVar(&profileSignature, "signature", "", "Signature shown under reviews")
	profileSetCmd.Flags().StringVar(&profileAvatarURL, "avatar", "", "Avatar URL")
	profileCmd.AddCommand(profileSetCmd)
}

func readPassword(cmd *cobra.Command) (string, error) {
	if authPassword != "" {
		return authPassword, nil
	}
	if p := os.Getenv(passwordEnv); p != "" {
		return p, nil
	}
	return promptPassword(cmd.InOrStdin(), cmd.ErrOrStderr())
}

// promptPassword читает пароль без эха, если in - терминал; иначе берет
// первую строку ввода.
func promptPassword(in io.Reader, out io.Writer) (string, error) {
	fmt.Fprint(out, "Password: ")
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		p, err := term.ReadPassword(int(f.Fd()))
		fmt.Fprintln(out)
		if err != nil {
			return "", fmt.Errorf("read password: %w", err)
		}
		return string(p), nil
	}
	return readLine(bufio.NewReader(in))
}

func readLine(r *bufio.Reader) (string, error) {
	line, err := r.ReadString('\n')
	if err != nil && !(errors.Is(err, io.EOF) && line != "") {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
