// Package app implements the main application commands.
package app

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "tenantauth",
	Short: "tenantauth is a multi-tenant identity and access service",
	Long: `tenantauth is a multi-tenant identity and access service providing
credential validation, token issuance, refresh rotation, TOTP MFA and
role-based access control with strict tenant isolation.`,
	Args: cobra.OnlyValidArgs,
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}
