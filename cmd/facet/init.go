// Init command creates a tenant database.
package main

import (
	"github.com/spf13/cobra"
)

var initCmd = &cobra.Command{
	Use:   "init [database]",
	Short: "Create a tenant database with the built-in types",
	Long: `Init creates the named tenant database (or the configured default)
inside the data directory, seeds the built-in basic types, and is safe
to run repeatedly.

Example:
  facet init
  facet init acme`,
	Args: cobra.MaximumNArgs(1),
	RunE: runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	db := resolveDB()
	if len(args) == 1 {
		db = args[0]
	}

	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.close()

	if err := svc.store.CreateTenant(cmd.Context(), db); err != nil {
		return err
	}
	cmd.Printf("database %q initialized\n", db)
	return nil
}
