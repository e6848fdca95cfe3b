// Tree command renders an object's subtree.
package main

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/facet/internal/query"
	"github.com/mesh-intelligence/facet/pkg/types"
)

var flagTreeDepth int

var treeCmd = &cobra.Command{
	Use:   "tree <id>",
	Short: "Show the subtree under an object",
	Long: `Tree expands an object's children recursively, depth-limited.

Example:
  facet tree 100 --depth 3`,
	Args: cobra.ExactArgs(1),
	RunE: runTree,
}

func init() {
	treeCmd.Flags().IntVar(&flagTreeDepth, "depth", 0, "expansion depth (default: service default)")
}

func runTree(cmd *cobra.Command, args []string) error {
	id, err := parseID(args[0])
	if err != nil {
		return err
	}

	svc, err := openServices()
	if err != nil {
		return err
	}
	defer svc.close()

	node, err := svc.queries.GetTree(cmd.Context(), resolveDB(), id, flagTreeDepth)
	if err != nil {
		return err
	}
	if node == nil {
		return &types.NotFoundError{Kind: "object", ID: id}
	}
	return printResult(cmd, node, func() {
		printTree(cmd, node, 0)
	})
}

func printTree(cmd *cobra.Command, node *query.TreeNode, indent int) {
	marker := ""
	if node.Truncated {
		marker = " ..."
	}
	cmd.Printf("%s%d\t%s%s\n", strings.Repeat("  ", indent), node.ID, node.Value, marker)
	for _, child := range node.Children {
		printTree(cmd, child, indent+1)
	}
}
