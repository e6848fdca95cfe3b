// Type commands manage Type definitions and their requisites.
package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/facet/internal/schema"
	"github.com/mesh-intelligence/facet/pkg/types"
)

var typeCmd = &cobra.Command{
	Use:   "type",
	Short: "Manage type definitions",
}

var typeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the tenant's types",
	Args:  cobra.NoArgs,
	RunE:  runTypeList,
}

var typeCreateCmd = &cobra.Command{
	Use:   "create <name> [requisite...]",
	Short: "Create a type with optional requisites",
	Long: `Create defines a new type. Each trailing argument declares one
requisite as name:BASETYPE with optional flags appended:

  name:SHORT!      required
  emails:SHORT+    multi-valued
  age:SIGNED

Example:
  facet type create Person name:SHORT! age:SIGNED emails:SHORT+`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTypeCreate,
}

var typeShowCmd = &cobra.Command{
	Use:   "show <type>",
	Short: "Show a type's schema",
	Args:  cobra.ExactArgs(1),
	RunE:  runTypeShow,
}

var typeDeleteCmd = &cobra.Command{
	Use:   "delete <type>",
	Short: "Delete a type",
	Args:  cobra.ExactArgs(1),
	RunE:  runTypeDelete,
}

var flagTypeCascade bool

func init() {
	typeDeleteCmd.Flags().BoolVar(&flagTypeCascade, "cascade", false, "also delete the type's objects")
	typeCmd.AddCommand(typeListCmd)
	typeCmd.AddCommand(typeCreateCmd)
	typeCmd.AddCommand(typeShowCmd)
	typeCmd.AddCommand(typeDeleteCmd)
}

func runTypeList(cmd *cobra.Command, args []string) error {
	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.close()

	entities, err := svc.schemas.GetAllTypes(cmd.Context(), resolveDB(), false)
	if err != nil {
		return err
	}
	return printResult(cmd, entities, func() {
		for _, e := range entities {
			cmd.Printf("%d\t%s\n", e.ID, e.Value)
		}
	})
}

func runTypeCreate(cmd *cobra.Command, args []string) error {
	defs, err := parseRequisiteDefs(args[1:])
	if err != nil {
		return err
	}

	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.close()

	typeID, err := svc.schemas.CreateType(cmd.Context(), resolveDB(), schema.TypeDef{
		Name:       args[0],
		Requisites: defs,
	})
	if err != nil {
		return err
	}
	cmd.Printf("type %q created with id %d\n", args[0], typeID)
	return nil
}

func runTypeShow(cmd *cobra.Command, args []string) error {
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
	sch, err := svc.schemas.GetSchema(cmd.Context(), db, typeID)
	if err != nil {
		return err
	}
	return printResult(cmd, sch, func() {
		cmd.Printf("%d\t%s\n", sch.Type.ID, sch.Type.Value)
		for _, req := range sch.Requisites {
			var flags []string
			if req.Modifiers.Required {
				flags = append(flags, "required")
			}
			if req.Modifiers.Multi {
				flags = append(flags, "multi")
			}
			if req.Modifiers.Alias != "" {
				flags = append(flags, "alias="+req.Modifiers.Alias)
			}
			cmd.Printf("  %d\t%s\t%s\t%s\n", req.ID, req.Modifiers.Name, basicTypeName(req.TypeID), strings.Join(flags, ","))
		}
	})
}

func runTypeDelete(cmd *cobra.Command, args []string) error {
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
	if err := svc.schemas.DeleteType(cmd.Context(), db, typeID, flagTypeCascade); err != nil {
		return err
	}
	cmd.Printf("type %d deleted\n", typeID)
	return nil
}

// parseRequisiteDefs parses name:BASETYPE declarations with optional
// trailing ! (required) and + (multi) flags.
func parseRequisiteDefs(args []string) ([]schema.RequisiteDef, error) {
	defs := make([]schema.RequisiteDef, 0, len(args))
	for _, arg := range args {
		name, spec, ok := strings.Cut(arg, ":")
		if !ok {
			return nil, fmt.Errorf("expected name:BASETYPE, got %q", arg)
		}
		def := schema.RequisiteDef{Name: name}
		for strings.HasSuffix(spec, "!") || strings.HasSuffix(spec, "+") {
			switch spec[len(spec)-1] {
			case '!':
				def.Required = true
			case '+':
				def.Multi = true
			}
			spec = spec[:len(spec)-1]
		}
		def.BaseType = spec
		defs = append(defs, def)
	}
	return defs, nil
}

// basicTypeName renders a basic type id for human output.
func basicTypeName(id int64) string {
	for _, bt := range types.BasicTypes {
		if bt.ID == id {
			return bt.Name
		}
	}
	return fmt.Sprintf("type(%d)", id)
}
