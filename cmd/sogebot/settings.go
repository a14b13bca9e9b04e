package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage module settings",
	Long: `Inspect and change persisted module settings.

Values are given as JSON, so strings need quoting.

Examples:
  sogebot settings get systems/cooldown
  sogebot settings set systems/cooldown defaultCooldownOfCommandsInSeconds 60
  sogebot settings set systems/points pointsName '"coins"'`,
}

var settingsGetCmd = &cobra.Command{
	Use:   "get <area/name>",
	Short: "Print a module's settings snapshot",
	Args:  cobra.ExactArgs(1),
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set <area/name> <key> <json-value>",
	Short: "Set a single settings value",
	Args:  cobra.ExactArgs(3),
	RunE:  runSettingsSet,
}

var settingsRaw bool

func init() {
	rootCmd.AddCommand(settingsCmd)

	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)

	settingsGetCmd.Flags().BoolVar(&settingsRaw, "raw", false, "show stored values without default fill-in")
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	m, err := findModule(a, args[0])
	if err != nil {
		return err
	}

	snap, _, err := a.Settings.Snapshot(ctx, m, !settingsRaw)
	if err != nil {
		return fmt.Errorf("snapshot %s: %w", m.ID(), err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(snap)
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	m, err := findModule(a, args[0])
	if err != nil {
		return err
	}

	var v any
	if err := json.Unmarshal([]byte(args[2]), &v); err != nil {
		return fmt.Errorf("value must be valid JSON: %w", err)
	}

	if err := a.Settings.SetValue(ctx, m, args[1], v); err != nil {
		return err
	}
	fmt.Printf("%s %s updated\n", m.ID(), args[1])
	return nil
}
