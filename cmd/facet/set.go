// Set command updates an object's value and requisites.
package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var flagSetValue string

var setCmd = &cobra.Command{
	Use:   "set <id> [name=value...]",
	Short: "Update an object",
	Long: `Set rewrites an object's requisite values, and its own value when
--value is given. Slots absent from the arguments keep their values.

Example:
  facet set 100 age=31
  facet set 100 --value alice2 name=Alicia`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSet,
}

func init() {
	setCmd.Flags().StringVar(&flagSetValue, "value", "", "new object value")
}

func runSet(cmd *cobra.Command, args []string) error {
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
	obj, err := svc.objects.GetByID(cmd.Context(), db, id)
	if err != nil {
		return err
	}
	if obj == nil {
		return fmt.Errorf("object %d not found", id)
	}

	slots, err := slotIndex(svc, cmd, db, obj.TypeID)
	if err != nil {
		return err
	}
	requisites, err := parseRequisiteArgs(args[1:], slots)
	if err != nil {
		return err
	}

	var value *string
	if cmd.Flags().Changed("value") {
		value = &flagSetValue
	}
	if err := svc.objects.Update(cmd.Context(), db, id, value, requisites); err != nil {
		return err
	}
	cmd.Printf("object %d updated\n", id)
	return nil
}
