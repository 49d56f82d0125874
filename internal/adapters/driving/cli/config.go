package cli

import (
	"errors"
	"fmt"
	"sort"
	"strconv"

	"github.com/spf13/cobra"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage vectra configuration",
	Long: `View and change configuration values.

Keys use dot notation, e.g. retrieval.top_k or backend.primary.
Values are typed: integers, floats, and booleans are stored as such,
everything else as a string.`,
	RunE: runConfigShow,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show all configuration values",
	RunE:  runConfigShow,
}

var configGetCmd = &cobra.Command{
	Use:   "get [key]",
	Short: "Print one configuration value",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigGet,
}

var configSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a configuration value",
	Args:  cobra.ExactArgs(2),
	RunE:  runConfigSet,
}

func init() {
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configGetCmd)
	configCmd.AddCommand(configSetCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigShow(cmd *cobra.Command, _ []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	keys := knownConfigKeys()
	cmd.Printf("Configuration (%s)\n\n", configStore.Path())
	for _, key := range keys {
		value, ok := configStore.Get(key)
		if !ok {
			cmd.Printf("  %-32s (not set)\n", key)
			continue
		}
		cmd.Printf("  %-32s %v\n", key, value)
	}
	return nil
}

func runConfigGet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	value, ok := configStore.Get(args[0])
	if !ok {
		return fmt.Errorf("key %q is not set", args[0])
	}
	cmd.Printf("%v\n", value)
	return nil
}

func runConfigSet(cmd *cobra.Command, args []string) error {
	if configStore == nil {
		return errors.New("config store not configured")
	}

	key, raw := args[0], args[1]
	if err := configStore.Set(key, parseConfigValue(raw)); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	cmd.Printf("%s = %s\n", key, raw)
	return nil
}

// parseConfigValue types the raw string: int, then float, then bool,
// falling back to string.
func parseConfigValue(raw string) any {
	if v, err := strconv.ParseInt(raw, 10, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseFloat(raw, 64); err == nil {
		return v
	}
	if v, err := strconv.ParseBool(raw); err == nil {
		return v
	}
	return raw
}

// knownConfigKeys lists the keys the show command prints, sorted.
func knownConfigKeys() []string {
	keys := []string{
		"retrieval.top_k",
		"retrieval.score_threshold",
		"retrieval.rerank_enabled",
		"retrieval.rerank_top_n",
		"backend.primary",
		"backend.secondary",
		"backend.qdrant_url",
		"backend.qdrant_collection",
		"embedding.model",
		"embedding.dimensions",
		"migration.score_epsilon",
		"migration.verify_samples",
		"migration.grace_hours",
		"migration.backfill_batch",
	}
	sort.Strings(keys)
	return keys
}
