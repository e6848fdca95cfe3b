package query

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/mesh-intelligence/facet/internal/validate"
	"github.com/mesh-intelligence/facet/pkg/types"
)

// DefaultMaxDepth bounds tree expansion when the caller does not.
const DefaultMaxDepth = 10

// TreeNode is one entity with its expanded children.
type TreeNode struct {
	types.Entity
	Children  []*TreeNode `json:"children,omitempty"`
	Truncated bool        `json:"truncated,omitempty"`
}

// GetTree expands the subtree under an object, breadth-limited by
// maxDepth levels of children. Nodes whose children were cut off by the
// depth limit are marked truncated. A missing root yields (nil, nil),
// matching GetByID's nil-on-absent contract.
func (s *Service) GetTree(ctx context.Context, db string, id int64, maxDepth int) (*TreeNode, error) {
	if err := validate.Database(db); err != nil {
		return nil, err
	}
	if maxDepth <= 0 {
		maxDepth = DefaultMaxDepth
	}

	label := uuid.NewString()
	rows, err := s.store.Select(ctx, s.store.Query(db).WhereID(id), label)
	if err != nil {
		return nil, fmt.Errorf("fetching tree root %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, nil
	}

	root := &TreeNode{Entity: rows[0]}
	if err := s.expand(ctx, db, root, 1, maxDepth, label); err != nil {
		return nil, err
	}
	return root, nil
}

// expand fills node.Children at the given depth, recursing while the
// depth limit allows.
func (s *Service) expand(ctx context.Context, db string, node *TreeNode, depth, maxDepth int, label string) error {
	children, err := s.store.Select(ctx,
		s.store.Query(db).WhereParent(node.ID).OrderBy("ord", "ASC").OrderBy("id", "ASC"), label)
	if err != nil {
		return fmt.Errorf("fetching children of %d: %w", node.ID, err)
	}
	if len(children) == 0 {
		return nil
	}
	if depth > maxDepth {
		node.Truncated = true
		return nil
	}
	for _, child := range children {
		childNode := &TreeNode{Entity: child}
		if err := s.expand(ctx, db, childNode, depth+1, maxDepth, label); err != nil {
			return err
		}
		node.Children = append(node.Children, childNode)
	}
	return nil
}

// GetAncestors walks the parent chain from an object up to the root and
// returns it nearest first. A reference cycle ends the walk with a
// warning instead of spinning.
func (s *Service) GetAncestors(ctx context.Context, db string, id int64) ([]types.Entity, error) {
	if err := validate.Database(db); err != nil {
		return nil, err
	}
	label := uuid.NewString()
	rows, err := s.store.Select(ctx, s.store.Query(db).WhereID(id), label)
	if err != nil {
		return nil, fmt.Errorf("fetching object %d: %w", id, err)
	}
	if len(rows) == 0 {
		return nil, &types.NotFoundError{Kind: "object", ID: id}
	}

	visited := map[int64]struct{}{id: {}}
	ancestors := []types.Entity{}
	current := rows[0]
	for current.ParentID != 0 {
		if _, seen := visited[current.ParentID]; seen {
			s.log.Warn("ancestor cycle detected", "db", db, "id", id, "at", current.ParentID)
			break
		}
		parents, err := s.store.Select(ctx, s.store.Query(db).WhereID(current.ParentID), label)
		if err != nil {
			return nil, fmt.Errorf("fetching ancestor %d: %w", current.ParentID, err)
		}
		if len(parents) == 0 {
			// Dangling parent reference; the chain ends here.
			break
		}
		current = parents[0]
		visited[current.ID] = struct{}{}
		ancestors = append(ancestors, current)
	}
	return ancestors, nil
}
