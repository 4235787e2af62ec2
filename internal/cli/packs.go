package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/gzhole/rulebench/internal/rule"
)

var packsRuleMaps string

var packsCmd = &cobra.Command{
	Use:   "packs",
	Short: "List and manage check-to-rule mapping packs",
	Long: `List the rule-map packs that translate analyzer check identifiers into
standard rule codes.

Rule maps are YAML files in the rulemaps directory (default: ./rulemaps),
one per analyzer rule pack. A file whose name starts with an underscore is
disabled.

Examples:
  rulebench packs                      # List rule maps
  rulebench packs disable vendor-misra # Disable a rule map
  rulebench packs enable vendor-misra  # Enable it again
  rulebench packs show vendor-misra    # Print a rule map`,
	Args: cobra.NoArgs,
	RunE: packsList,
}

var packsEnableCmd = &cobra.Command{
	Use:   "enable <name>",
	Short: "Enable a disabled rule map",
	Args:  cobra.ExactArgs(1),
	RunE:  packsEnable,
}

var packsDisableCmd = &cobra.Command{
	Use:   "disable <name>",
	Short: "Disable a rule map (prefix with underscore)",
	Args:  cobra.ExactArgs(1),
	RunE:  packsDisable,
}

var packsShowCmd = &cobra.Command{
	Use:   "show <name>",
	Short: "Print a rule map",
	Args:  cobra.ExactArgs(1),
	RunE:  packsShow,
}

func init() {
	packsCmd.PersistentFlags().StringVar(&packsRuleMaps, "rulemaps", "", "Directory of rule-map packs (default: ./rulemaps)")
	packsCmd.AddCommand(packsEnableCmd)
	packsCmd.AddCommand(packsDisableCmd)
	packsCmd.AddCommand(packsShowCmd)
	rootCmd.AddCommand(packsCmd)
}

func ruleMapsDir(cmd *cobra.Command) (string, error) {
	if cmd.Flags().Changed("rulemaps") {
		return packsRuleMaps, nil
	}
	cfg, err := loadConfig()
	if err != nil {
		return "", err
	}
	return cfg.RuleMaps, nil
}

func packsList(cmd *cobra.Command, args []string) error {
	dir, err := ruleMapsDir(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	// Broken packs are shown with their error instead of failing the
	// listing.
	_, infos, _ := rule.LoadPacks(dir)
	if len(infos) == 0 {
		fmt.Fprintln(out, "No rule maps installed; only built-in check recognizers are used.")
		fmt.Fprintf(out, "\nTo add rule maps, copy YAML files to: %s\n", dir)
		return nil
	}

	fmt.Fprintln(out, "Rule maps:")
	fmt.Fprintln(out, strings.Repeat("─", 60))
	for _, info := range infos {
		status := "enabled "
		if !info.Enabled {
			status = "disabled"
		}
		fmt.Fprintf(out, "  %s  %-25s %-10s %d checks\n", status, info.Name, info.Standard, info.CheckCount)
		if info.Analyzer != "" || info.Version != "" {
			fmt.Fprintf(out, "            analyzer %s %s\n", info.Analyzer, info.Version)
		}
		if info.Err != nil {
			fmt.Fprintf(out, "            error: %v\n", info.Err)
		}
	}
	fmt.Fprintln(out, strings.Repeat("─", 60))
	fmt.Fprintf(out, "\nRule maps directory: %s\n", dir)
	return nil
}

func packsEnable(cmd *cobra.Command, args []string) error {
	dir, err := ruleMapsDir(cmd)
	if err != nil {
		return err
	}

	name := args[0]
	disabledPath := findPackFile(dir, "_"+name)
	enabledPath := findPackFile(dir, name)

	if disabledPath != "" {
		target := filepath.Join(dir, name+filepath.Ext(disabledPath))
		if err := os.Rename(disabledPath, target); err != nil {
			return fmt.Errorf("failed to enable rule map: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Rule map '%s' enabled.\n", name)
		return nil
	}
	if enabledPath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Rule map '%s' is already enabled.\n", name)
		return nil
	}
	return fmt.Errorf("rule map '%s' not found in %s", name, dir)
}

func packsDisable(cmd *cobra.Command, args []string) error {
	dir, err := ruleMapsDir(cmd)
	if err != nil {
		return err
	}

	name := args[0]
	enabledPath := findPackFile(dir, name)
	disabledPath := findPackFile(dir, "_"+name)

	if enabledPath != "" {
		target := filepath.Join(dir, "_"+name+filepath.Ext(enabledPath))
		if err := os.Rename(enabledPath, target); err != nil {
			return fmt.Errorf("failed to disable rule map: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Rule map '%s' disabled.\n", name)
		return nil
	}
	if disabledPath != "" {
		fmt.Fprintf(cmd.OutOrStdout(), "Rule map '%s' is already disabled.\n", name)
		return nil
	}
	return fmt.Errorf("rule map '%s' not found in %s", name, dir)
}

func packsShow(cmd *cobra.Command, args []string) error {
	dir, err := ruleMapsDir(cmd)
	if err != nil {
		return err
	}

	name := args[0]
	path := findPackFile(dir, name)
	if path == "" {
		path = findPackFile(dir, "_"+name)
	}
	if path == "" {
		return fmt.Errorf("rule map '%s' not found in %s", name, dir)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fmt.Fprint(cmd.OutOrStdout(), string(data))
	return nil
}

// findPackFile returns the .yaml or .yml file for base in dir, or "".
func findPackFile(dir, base string) string {
	for _, ext := range []string{".yaml", ".yml"} {
		path := filepath.Join(dir, base+ext)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}
