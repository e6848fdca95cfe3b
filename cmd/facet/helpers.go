// Shared helpers for facet CLI commands.
package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/facet/internal/logging"
	"github.com/mesh-intelligence/facet/internal/object"
	"github.com/mesh-intelligence/facet/internal/query"
	"github.com/mesh-intelligence/facet/internal/schema"
	"github.com/mesh-intelligence/facet/internal/storage/sqlite"
)

// services bundles the wired service layer for one CLI invocation. The
// caller must defer close.
type services struct {
	store   *sqlite.Store
	log     *logging.Logger
	schemas *schema.Service
	objects *object.Service
	queries *query.Service
}

func (s *services) close() {
	s.log.Sync()
	s.store.Close()
}

// openServices resolves the data directory, opens the SQLite store, and
// wires the service layer on top of it.
func openServices() (*services, error) {
	dataDir, err := resolveDataDir()
	if err != nil {
		return nil, fmt.Errorf("resolve data dir: %w", err)
	}
	log, err := logging.New(configLogMode)
	if err != nil {
		return nil, fmt.Errorf("build logger: %w", err)
	}
	store, err := sqlite.Open(dataDir, log)
	if err != nil {
		return nil, fmt.Errorf("open store: %w", err)
	}

	schemas := schema.New(store, nil, log)
	return &services{
		store:   store,
		log:     log,
		schemas: schemas,
		objects: object.New(store, schemas, log),
		queries: query.New(store, schemas, log),
	}, nil
}

// printResult renders a value as indented JSON when --json is set, or
// hands it to plain for human output otherwise.
func printResult(cmd *cobra.Command, v any, plain func()) error {
	if !flagJSON {
		plain()
		return nil
	}
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal output: %w", err)
	}
	cmd.Println(string(out))
	return nil
}

// parseID parses a numeric id argument.
func parseID(arg string) (int64, error) {
	id, err := strconv.ParseInt(arg, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid id %q", arg)
	}
	return id, nil
}

// parseRequisiteArgs turns trailing name=value arguments into the raw
// requisite map keyed by slot id, resolving names through the type's
// schema.
func parseRequisiteArgs(args []string, slots map[string]int64) (map[string]any, error) {
	out := make(map[string]any, len(args))
	for _, arg := range args {
		name, value, ok := strings.Cut(arg, "=")
		if !ok {
			return nil, fmt.Errorf("expected name=value, got %q", arg)
		}
		id, ok := slots[name]
		if !ok {
			return nil, fmt.Errorf("unknown requisite %q", name)
		}
		out[strconv.FormatInt(id, 10)] = value
	}
	return out, nil
}

// slotIndex maps requisite names and aliases to slot ids for a type.
func slotIndex(svc *services, cmd *cobra.Command, db string, typeID int64) (map[string]int64, error) {
	reqs, err := svc.schemas.GetRequisites(cmd.Context(), db, typeID)
	if err != nil {
		return nil, err
	}
	slots := make(map[string]int64, len(reqs))
	for _, req := range reqs {
		slots[req.Modifiers.Name] = req.ID
		if req.Modifiers.Alias != "" {
			slots[req.Modifiers.Alias] = req.ID
		}
	}
	return slots, nil
}
