// Setid command moves an object to an explicit id.
package main

import (
	"github.com/spf13/cobra"
)

var setIDCmd = &cobra.Command{
	Use:   "setid <id> <new-id>",
	Short: "Move an object to an explicit id",
	Long: `Setid reassigns an object's id, carrying every parent and type
reference along. The target id must be free.

Example:
  facet setid 100 5000`,
	Args: cobra.ExactArgs(2),
	RunE: runSetID,
}

func runSetID(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}
	newID, err := parseID(args[1])
	if err != nil {
		return err
	}

	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.close()

	if err := svc.objects.SetID(cmd.Context(), resolveDB(), id, newID); err != nil {
		return err
	}
	cmd.Printf("object %d moved to id %d\n", id, newID)
	return nil
}
