package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/msmafra/sogeBot/app"
	"github.com/msmafra/sogeBot/bootstrap"
)

var modulesCmd = &cobra.Command{
	Use:   "modules",
	Short: "Manage modules",
	Long: `Inspect and toggle the modules registered in this installation.

Modules are addressed as area/name, for example systems/cooldown.

Examples:
  sogebot modules list
  sogebot modules enable systems/points
  sogebot modules disable systems/top`,
}

var modulesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List all modules",
	RunE:  runModulesList,
}

var modulesEnableCmd = &cobra.Command{
	Use:   "enable <area/name>",
	Short: "Enable a module",
	Args:  cobra.ExactArgs(1),
	RunE:  runModulesEnable,
}

var modulesDisableCmd = &cobra.Command{
	Use:   "disable <area/name>",
	Short: "Disable a module",
	Args:  cobra.ExactArgs(1),
	RunE:  runModulesDisable,
}

func init() {
	rootCmd.AddCommand(modulesCmd)

	modulesCmd.AddCommand(modulesListCmd)
	modulesCmd.AddCommand(modulesEnableCmd)
	modulesCmd.AddCommand(modulesDisableCmd)
}

// openApp assembles the application without starting the HTTP server,
// resolves dependencies and loads persisted module state.
func openApp(ctx context.Context) (*bootstrap.App, error) {
	a, err := bootstrap.NewFromConfigFile(cfgFile, false)
	if err != nil {
		return nil, err
	}
	if err := a.Registry.ResolveDependencies(ctx); err != nil {
		a.Shutdown()
		return nil, fmt.Errorf("resolve module dependencies: %w", err)
	}
	for _, m := range a.Registry.List() {
		if err := m.LoadPersisted(ctx); err != nil {
			a.Shutdown()
			return nil, fmt.Errorf("load %s: %w", m.ID(), err)
		}
	}
	return a, nil
}

func findModule(a *bootstrap.App, id string) (*app.Module, error) {
	if !strings.Contains(id, "/") {
		return nil, fmt.Errorf("module id must be area/name, got %q", id)
	}
	m, ok := a.Registry.Get(id)
	if !ok {
		return nil, fmt.Errorf("unknown module %q", id)
	}
	return m, nil
}

func runModulesList(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "MODULE\tENABLED\tHEALTHY\tALWAYS-ON")
	fmt.Fprintln(w, "------\t-------\t-------\t---------")
	for _, m := range a.Registry.List() {
		fmt.Fprintf(w, "%s\t%v\t%v\t%v\n", m.ID(), m.Enabled(), m.DependenciesHealthy(), m.AlwaysOn())
	}
	return w.Flush()
}

func runModulesEnable(cmd *cobra.Command, args []string) error {
	return setModuleEnabled(args[0], true)
}

func runModulesDisable(cmd *cobra.Command, args []string) error {
	return setModuleEnabled(args[0], false)
}

func setModuleEnabled(id string, v bool) error {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	a, err := openApp(ctx)
	if err != nil {
		return err
	}
	defer a.Shutdown()

	m, err := findModule(a, id)
	if err != nil {
		return err
	}
	if err := m.SetEnabled(ctx, v); err != nil {
		return err
	}
	fmt.Printf("%s enabled=%v (effective: %v)\n", m.ID(), v, m.Enabled())
	return nil
}
