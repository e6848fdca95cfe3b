// List command pages through the objects of a type.
package main

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/facet/pkg/types"
)

var (
	flagListLimit   int64
	flagListOffset  int64
	flagListOrderBy string
	flagListDesc    bool
	flagListSearch  string
	flagListFull    bool
)

var listCmd = &cobra.Command{
	Use:   "list <type>",
	Short: "List the objects of a type",
	Long: `List pages through the objects of a type, optionally filtered by a
value substring.

Example:
  facet list Person
  facet list Person --search ali --limit 10 --full`,
	Args: cobra.ExactArgs(1),
	RunE: runList,
}

func init() {
	listCmd.Flags().Int64Var(&flagListLimit, "limit", 0, "page size (default: service default)")
	listCmd.Flags().Int64Var(&flagListOffset, "offset", 0, "rows to skip")
	listCmd.Flags().StringVar(&flagListOrderBy, "order-by", "", "sort column")
	listCmd.Flags().BoolVar(&flagListDesc, "desc", false, "sort descending")
	listCmd.Flags().StringVar(&flagListSearch, "search", "", "value substring filter")
	listCmd.Flags().BoolVar(&flagListFull, "full", false, "include requisite values")
}

func runList(cmd *cobra.Command, args []string) error {
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

	f := types.Filters{
		ValueLike: flagListSearch,
		Limit:     flagListLimit,
		Offset:    flagListOffset,
		OrderBy:   flagListOrderBy,
	}
	if flagListDesc {
		f.SortDir = "DESC"
	}

	if flagListFull {
		objects, err := svc.queries.QueryObjectsWithRequisites(cmd.Context(), db, typeID, f)
		if err != nil {
			return err
		}
		return printResult(cmd, objects, func() {
			for _, obj := range objects {
				cmd.Printf("%d\t%s\n", obj.ID, obj.Value)
				for slotID, refs := range obj.Requisites {
					for _, ref := range refs {
						cmd.Printf("  slot %d\t%s\n", slotID, ref.Value)
					}
				}
			}
		})
	}

	var entities []types.Entity
	if flagListSearch != "" {
		f.ValueLike = ""
		entities, err = svc.queries.SearchObjects(cmd.Context(), db, typeID, flagListSearch, f)
	} else {
		entities, err = svc.queries.QueryObjects(cmd.Context(), db, typeID, f)
	}
	if err != nil {
		return err
	}
	return printResult(cmd, entities, func() {
		for _, e := range entities {
			cmd.Printf("%d\t%s\n", e.ID, e.Value)
		}
	})
}
