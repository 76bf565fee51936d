package main

import (
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var usersCmd = &cobra.Command{
	Use:   "users",
	Short: "Manages admin api users",
}

var (
	userPassword    string
	userDisplayName string
)

var usersAddCmd = &cobra.Command{
	Use:   "add USERNAME",
	Short: "Adds an admin api user",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if len(userPassword) < 8 {
			return errors.New("password must have at least 8 characters")
		}
		user, err := loadStorage(loadConfig()).Backends().Users.Create(args[0], userPassword, userDisplayName)
		if err != nil {
			return err
		}
		return printJSON(user)
	},
}

var usersListCmd = &cobra.Command{
	Use:   "list",
	Short: "Lists admin api users",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		users, err := loadStorage(loadConfig()).Backends().Users.List()
		if err != nil {
			return err
		}
		return printJSON(users)
	},
}

func init() {
	usersAddCmd.Flags().StringVarP(&userPassword, "password", "p", "", "the password of the new user")
	usersAddCmd.Flags().StringVar(&userDisplayName, "display-name", "", "an optional display name")
	_ = usersAddCmd.MarkFlagRequired("password")
	usersCmd.AddCommand(usersAddCmd, usersListCmd)
}
