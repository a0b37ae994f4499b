package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"
)

var (
	loginPassword string
	loginSave     bool
)

var loginCmd = &cobra.Command{
	Use:   "login <email>",
	Short: "Sign in and remember the token",
	Long: `Login exchanges an email and password for a token. The password is read
from the terminal unless --password is given. The token is saved under
~/.unifield/token for later commands.`,
	Args: cobra.ExactArgs(1),
	RunE: runLogin,
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Forget the saved token",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := client.Logout(cmd.Context()); err != nil {
			fmt.Fprintln(cmd.ErrOrStderr(), "server logout failed:", err)
		}
		path, err := tokenPath()
		if err != nil {
			return err
		}
		if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
		return nil
	},
}

func init() {
	loginCmd.Flags().StringVar(&loginPassword, "password", "", "password (prompted when empty)")
	loginCmd.Flags().BoolVar(&loginSave, "save", true, "save the token for later commands")
}

func runLogin(cmd *cobra.Command, args []string) error {
	email := strings.TrimSpace(args[0])
	password := loginPassword
	if password == "" {
		var err error
		password, err = readPassword(cmd)
		if err != nil {
			return fmt.Errorf("read password: %w", err)
		}
	}

	resp, err := client.Login(cmd.Context(), email, password)
	if err != nil {
		return describeError(err)
	}
	if loginSave {
		if err := writeToken(resp.Token); err != nil {
			return fmt.Errorf("save token: %w", err)
		}
	}

	if flagJSON {
		return printJSON(cmd.OutOrStdout(), resp.User)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s)\n", resp.User.Email, resp.User.Role)
	return nil
}

func readPassword(cmd *cobra.Command) (string, error) {
	fmt.Fprint(cmd.ErrOrStderr(), "Password: ")
	fd := int(os.Stdin.Fd())
	if term.IsTerminal(fd) {
		b, err := term.ReadPassword(fd)
		fmt.Fprintln(cmd.ErrOrStderr())
		return string(b), err
	}
	line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
	if err != nil && line == "" {
		return "", err
	}
	return strings.TrimRight(line, "\r\n"), nil
}
