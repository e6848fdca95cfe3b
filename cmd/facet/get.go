// Get command retrieves an object by id.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var getCmd = &cobra.Command{
	Use:   "get <id>",
	Short: "Get an object by id",
	Long: `Get retrieves an object and its requisite values by id.

Example:
  facet get 100`,
	Args: cobra.ExactArgs(1),
	RunE: runGet,
}

func runGet(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.close()

	obj, err := svc.objects.GetByID(cmd.Context(), resolveDB(), id)
	if err != nil {
		return err
	}
	if obj == nil {
		return fmt.Errorf("object %d not found", id)
	}
	return printResult(cmd, obj, func() {
		cmd.Printf("%d\t%s\t(type %d, parent %d, ord %d)\n", obj.ID, obj.Value, obj.TypeID, obj.ParentID, obj.Order)
		for slotID, refs := range obj.Requisites {
			for _, ref := range refs {
				cmd.Printf("  slot %d\t%s\n", slotID, ref.Value)
			}
		}
	})
}
