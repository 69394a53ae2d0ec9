package cli

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/OpenClaudeAgent/opencode-monitor/internal/config"
	"github.com/OpenClaudeAgent/opencode-monitor/internal/risk"
)

var packCmd = &cobra.Command{
	Use:   "pack",
	Short: "Manage pattern packs",
	Long: `Manage opencode-monitor pattern packs.

Pattern packs are YAML files that add dangerous command, safe command, file
and URL patterns to the built-in tables. Packs are stored in
~/.opencode-monitor/packs/ and merged with the defaults at startup. A pack
whose file name starts with "_" is disabled.

Examples:
  opencode-monitor pack list               # List installed packs
  opencode-monitor pack enable infra       # Enable a pack
  opencode-monitor pack disable infra      # Disable a pack
  opencode-monitor pack show infra         # Show pack details`,
}

var packListCmd = &cobra.Command{
	Use:   "list",
	Short: "List installed pattern packs",
	RunE:  packList,
}

var packEnableCmd = &cobra.Command{
	Use:   "enable <pack-name>",
	Short: "Enable a disabled pattern pack",
	Args:  cobra.ExactArgs(1),
	RunE:  packEnable,
}

var packDisableCmd = &cobra.Command{
	Use:   "disable <pack-name>",
	Short: "Disable a pattern pack (prefix with underscore)",
	Args:  cobra.ExactArgs(1),
	RunE:  packDisable,
}

var packShowCmd = &cobra.Command{
	Use:   "show <pack-name>",
	Short: "Show details of a pattern pack",
	Args:  cobra.ExactArgs(1),
	RunE:  packShow,
}

func init() {
	packCmd.AddCommand(packListCmd)
	packCmd.AddCommand(packEnableCmd)
	packCmd.AddCommand(packDisableCmd)
	packCmd.AddCommand(packShowCmd)
	rootCmd.AddCommand(packCmd)
}

func packsDir() (string, error) {
	cfg, err := config.Load(configPath, logPath)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(cfg.PacksDir, 0700); err != nil {
		return "", err
	}
	return cfg.PacksDir, nil
}

func packList(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	dir, err := packsDir()
	if err != nil {
		return err
	}

	_, infos, err := risk.LoadPacks(dir, risk.DefaultPatterns())
	if err != nil {
		return fmt.Errorf("failed to load packs: %w", err)
	}

	if len(infos) == 0 {
		fmt.Fprintf(out, "No pattern packs in %s.\n", dir)
		fmt.Fprintln(out, "Add a .yaml file there to extend the built-in patterns.")
		return nil
	}

	fmt.Fprintln(out, "Pattern packs:")
	fmt.Fprintln(out, strings.Repeat("─", 60))
	for _, info := range infos {
		fmt.Fprintf(out, "  %s  %-25s %s\n", passIcon(out, info.Enabled && info.Error == ""), info.Name, info.Description)
		meta := fmt.Sprintf("%d patterns", info.PatternCount)
		if info.Version != "" {
			meta = fmt.Sprintf("v%s, %s, %s", info.Version, info.Author, meta)
		}
		fmt.Fprintf(out, "       %s\n", meta)
		if info.Error != "" {
			fmt.Fprintf(out, "       Error: %s\n", info.Error)
		}
	}
	fmt.Fprintln(out, strings.Repeat("─", 60))
	fmt.Fprintf(out, "\n%s\n", dir)
	return nil
}

func packEnable(cmd *cobra.Command, args []string) error {
	return setPackEnabled(cmd, args[0], true)
}

func packDisable(cmd *cobra.Command, args []string) error {
	return setPackEnabled(cmd, args[0], false)
}

// setPackEnabled renames <name>.yaml to _<name>.yaml or back.
func setPackEnabled(cmd *cobra.Command, name string, enable bool) error {
	dir, err := packsDir()
	if err != nil {
		return err
	}

	on := filepath.Join(dir, name+".yaml")
	off := filepath.Join(dir, "_"+name+".yaml")
	from, to, state := off, on, "enabled"
	if !enable {
		from, to, state = on, off, "disabled"
	}

	if _, err := os.Stat(to); err == nil {
		fmt.Fprintf(cmd.OutOrStdout(), "Pack %q is already %s.\n", name, state)
		return nil
	}
	if _, err := os.Stat(from); err != nil {
		return fmt.Errorf("pack %q not found in %s", name, dir)
	}
	if err := os.Rename(from, to); err != nil {
		return fmt.Errorf("renaming pack %q: %w", name, err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Pack %q %s.\n", name, state)
	return nil
}

// packFile returns the pack's file whether or not it is enabled.
func packFile(dir, name string) (string, error) {
	for _, candidate := range []string{name + ".yaml", "_" + name + ".yaml"} {
		path := filepath.Join(dir, candidate)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("pack %q not found in %s", name, dir)
}

func packShow(cmd *cobra.Command, args []string) error {
	out := cmd.OutOrStdout()
	dir, err := packsDir()
	if err != nil {
		return err
	}

	path, err := packFile(dir, args[0])
	if err != nil {
		return err
	}

	_, infos, err := risk.LoadPacks(dir, risk.DefaultPatterns())
	if err != nil {
		return fmt.Errorf("failed to load packs: %w", err)
	}
	for _, info := range infos {
		if info.Path != path {
			continue
		}
		fmt.Fprintf(out, "# %s (%d patterns, enabled=%t)\n", info.Name, info.PatternCount, info.Enabled)
		if info.Error != "" {
			fmt.Fprintf(out, "# error: %s\n", info.Error)
		}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	fmt.Fprintln(out, string(data))
	return nil
}
