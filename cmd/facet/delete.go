// Delete command removes an object and its subtree.
package main

import (
	"github.com/spf13/cobra"
)

var flagDeleteChildren bool

var deleteCmd = &cobra.Command{
	Use:   "delete <id>",
	Short: "Delete an object and everything under it",
	Long: `Delete removes an object together with its attribute values and
child objects. With --children-only the object itself survives.

Example:
  facet delete 100
  facet delete 100 --children-only`,
	Args: cobra.ExactArgs(1),
	RunE: runDelete,
}

func init() {
	deleteCmd.Flags().BoolVar(&flagDeleteChildren, "children-only", false, "delete only the object's children")
}

func runDelete(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.close()

	db := resolveDB()
	var removed int64
	if flagDeleteChildren {
		removed, err = svc.objects.DeleteChildren(cmd.Context(), db, id, true)
	} else {
		removed, err = svc.objects.Delete(cmd.Context(), db, id, true)
	}
	if err != nil {
		return err
	}
	cmd.Printf("%d rows deleted\n", removed)
	return nil
}
