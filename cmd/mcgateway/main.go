package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"golang.org/x/crypto/bcrypt"
)

func main() {
	root := &cobra.Command{
		Use:   "mcgateway",
		Short: "Nickloop MC gateway for Instagram DMs",
	}

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the webhook server",
		Run: func(cmd *cobra.Command, args []string) {
			runServe()
		},
	}

	hashCmd := &cobra.Command{
		Use:   "hash-password [password]",
		Short: "Generate a bcrypt hash for the admin password config field",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hash, err := bcrypt.GenerateFromPassword([]byte(args[0]), bcrypt.DefaultCost)
			if err != nil {
				return err
			}
			fmt.Println(string(hash))
			return nil
		},
	}

	root.AddCommand(serveCmd, hashCmd)
	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}
