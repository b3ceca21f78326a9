package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/replyforge/replyforge/internal/cli/admin"
)

func main() {
	rootCmd := &cobra.Command{
		Use:   "replyforged",
		Short: "Replyforge daemon and admin CLI",
		Long:  "Replyforge daemon for running the support answer API and managing tenants and API keys",
	}

	rootCmd.AddCommand(admin.ServeCmd())
	rootCmd.AddCommand(admin.TenantCmd())
	rootCmd.AddCommand(admin.APIKeyCmd())

	if len(os.Args) == 1 {
		os.Args = append(os.Args, "serve")
	}

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
