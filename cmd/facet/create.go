// Create command inserts an object with its requisite values.
package main

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/facet/internal/object"
)

var flagCreateParent int64

var createCmd = &cobra.Command{
	Use:   "create <type> <value> [name=value...]",
	Short: "Create an object",
	Long: `Create inserts an object of the given type. Trailing name=value
arguments fill its requisite slots; names may be slot names or aliases.

Example:
  facet create Person alice name=Alice age=30`,
	Args: cobra.MinimumNArgs(2),
	RunE: runCreate,
}

func init() {
	createCmd.Flags().Int64Var(&flagCreateParent, "parent", 0, "parent object id")
}

func runCreate(cmd *cobra.Command, args []string) error {
	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.close()

	db := resolveDB()
	typeID, err := svc.schemas.ResolveTypeID(cmd.Context(), db, args[0])
	if err != nil {
		return err
	}
	slots, err := slotIndex(svc, cmd, db, typeID)
	if err != nil {
		return err
	}
	requisites, err := parseRequisiteArgs(args[2:], slots)
	if err != nil {
		return err
	}

	id, err := svc.objects.Create(cmd.Context(), db, object.Def{
		TypeID:     typeID,
		ParentID:   flagCreateParent,
		Value:      args[1],
		Requisites: requisites,
	})
	if err != nil {
		return err
	}
	cmd.Printf("object created with id %d\n", id)
	return nil
}
