package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/entrhq/bunyip/pkg/agentfarm"
	"github.com/entrhq/bunyip/pkg/config"
)

func authCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage access keys stored in the OS keyring",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "set",
		Short: "Store the access key for --farm and --user",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, account, err := authAccount()
			if err != nil {
				return err
			}
			key := pass
			if key == "" {
				if key, err = promptPassword(fmt.Sprintf("%s access key for %s: ", kind, account), os.Stdin, os.Stderr); err != nil {
					return err
				}
			}
			if err := config.StorePassword(string(kind), account, key); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Stored %s access key for %s\n", kind, account)
			return nil
		},
	})

	cmd.AddCommand(&cobra.Command{
		Use:   "delete",
		Short: "Remove the access key for --farm and --user",
		RunE: func(cmd *cobra.Command, args []string) error {
			kind, account, err := authAccount()
			if err != nil {
				return err
			}
			return config.DeletePassword(string(kind), account)
		},
	})

	return cmd
}

func authAccount() (agentfarm.Kind, string, error) {
	kind, err := agentfarm.ParseKind(farmName)
	if err != nil {
		return "", "", err
	}
	account := user
	if account == "" {
		account = os.Getenv(config.EnvUser)
	}
	if account == "" {
		return "", "", fmt.Errorf("--user is required")
	}
	return kind, account, nil
}
