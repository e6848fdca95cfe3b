// Root command for the facet CLI.
package main

import (
	"github.com/spf13/cobra"

	"github.com/mesh-intelligence/facet/internal/paths"
	"github.com/mesh-intelligence/facet/pkg/facet"
	"github.com/mesh-intelligence/facet/pkg/types"
)

// Exit codes.
const (
	exitSuccess   = 0
	exitUserError = 1
	exitSysError  = 2
)

// Global flag values.
var (
	flagConfigDir string
	flagDataDir   string
	flagDB        string
	flagJSON      bool
)

// Config values loaded by PersistentPreRunE so all subcommands can use
// them.
var (
	configDataDir string
	configDB      string
	configLogMode string
)

var rootCmd = &cobra.Command{
	Use:     "facet",
	Short:   "Facet is a schema-on-read entity store",
	Version: facet.Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		configDir, err := resolveConfigDir()
		if err != nil {
			return err
		}

		cfg, err := loadConfig(configDir)
		if err != nil {
			return err
		}

		configDataDir = cfg.GetString(cfgKeyDataDir)
		configDB = cfg.GetString(cfgKeyDatabase)
		configLogMode = cfg.GetString(cfgKeyLogMode)
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfigDir, "config-dir", "", "configuration directory (default: platform config dir)")
	rootCmd.PersistentFlags().StringVar(&flagDataDir, "data-dir", "", "data directory (default: $(CWD)/.facet-db)")
	rootCmd.PersistentFlags().StringVar(&flagDB, "db", "", "tenant database name (default: from config)")
	rootCmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output as JSON")

	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(typeCmd)
	rootCmd.AddCommand(createCmd)
	rootCmd.AddCommand(getCmd)
	rootCmd.AddCommand(setCmd)
	rootCmd.AddCommand(listCmd)
	rootCmd.AddCommand(deleteCmd)
	rootCmd.AddCommand(treeCmd)
	rootCmd.AddCommand(setIDCmd)
}

// resolveDataDir returns the data directory path following the
// precedence chain: --data-dir flag > config data_dir > FACET_DATA_DIR
// env > default $(CWD)/.facet-db.
func resolveDataDir() (string, error) {
	return paths.ResolveDataDir(flagDataDir, configDataDir)
}

// resolveConfigDir returns the configuration directory following the
// precedence chain: --config-dir flag > FACET_CONFIG_DIR env >
// DefaultConfigDir().
func resolveConfigDir() (string, error) {
	return paths.ResolveConfigDir(flagConfigDir)
}

// resolveDB returns the tenant name: --db flag > config database key >
// built-in default.
func resolveDB() string {
	if flagDB != "" {
		return flagDB
	}
	if configDB != "" {
		return configDB
	}
	return defaultDatabase
}

// exitCode maps error kinds onto CLI exit codes: user mistakes and
// system failures exit differently.
func exitCode(err error) int {
	if err == nil {
		return exitSuccess
	}
	if types.IsValidation(err) || types.IsNotFound(err) || types.IsConflict(err) || types.IsInjection(err) {
		return exitUserError
	}
	return exitSysError
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the facet version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Println("facet", facet.Version)
	},
}
