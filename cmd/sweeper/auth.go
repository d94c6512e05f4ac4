package main

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/artpar/sweeper/internal/shell/credentials"
)

var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the API token in the OS keyring",
	Long: `Store or remove the Cloudflare API token in the operating system
keyring. A stored token is used whenever CF_API_TOKEN is not set, so
workstation usage does not need the token in the environment or in files.`,
}

var authSetTokenFlags struct {
	token string
}

var authSetTokenCmd = &cobra.Command{
	Use:   "set-token",
	Short: "Store the API token in the OS keyring",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		token := authSetTokenFlags.token
		if token == "" {
			fmt.Fprint(os.Stderr, "API token: ")
			line, err := bufio.NewReader(os.Stdin).ReadString('\n')
			if err != nil && line == "" {
				return newExitError(ExitConfigError, "failed to read token: %v", err)
			}
			token = strings.TrimSpace(line)
		}
		if token == "" {
			return newExitError(ExitConfigError, "no token provided")
		}

		if err := credentials.SetToken(token); err != nil {
			return newExitError(ExitConfigError, "failed to store token: %v", err)
		}
		fmt.Println("token stored in keyring")
		return nil
	},
}

var authClearTokenCmd = &cobra.Command{
	Use:   "clear-token",
	Short: "Remove the API token from the OS keyring",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := credentials.ClearToken(); err != nil {
			return newExitError(ExitConfigError, "failed to remove token: %v", err)
		}
		fmt.Println("token removed from keyring")
		return nil
	},
}

var authShowCmd = &cobra.Command{
	Use:   "status",
	Short: "Report whether a token is stored in the OS keyring",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := credentials.GetToken()
		if errors.Is(err, credentials.ErrTokenNotFound) {
			fmt.Println("no token stored")
			return nil
		}
		if err != nil {
			return newExitError(ExitConfigError, "keyring lookup failed: %v", err)
		}
		fmt.Println("token stored")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(authCmd)
	authCmd.AddCommand(authSetTokenCmd)
	authCmd.AddCommand(authClearTokenCmd)
	authCmd.AddCommand(authShowCmd)

	authSetTokenCmd.Flags().StringVar(&authSetTokenFlags.token, "token", "", "token value (prompted for when omitted)")
}
