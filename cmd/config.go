package cmd

import (
	"fmt"
	"os"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"

	"github.com/samhoang/silk/internal/config"
)

var configForce bool

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage silk.toml",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a silk.toml with the default settings",
	Args:  cobra.NoArgs,
	RunE:  runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Long: `Print the configuration after applying, in order of precedence, command
line flags, SILK_* environment variables, silk.toml and the defaults.`,
	Args: cobra.NoArgs,
	RunE: runConfigShow,
}

func init() {
	rootCmd.AddCommand(configCmd)
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	configInitCmd.Flags().BoolVarP(&configForce, "force", "f", false, "overwrite an existing silk.toml")
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	paths, err := config.ResolvePaths()
	if err != nil {
		return err
	}

	if _, err := os.Stat(paths.ConfigFile()); err == nil && !configForce {
		return fmt.Errorf("%s already exists (use --force to overwrite)", paths.ConfigFile())
	}

	if err := config.DefaultConfig().Save(paths.ConfigDir); err != nil {
		return err
	}
	fmt.Printf("Wrote %s\n", paths.ConfigFile())
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	paths, cfg, err := loadSettings()
	if err != nil {
		return err
	}

	effective := *cfg
	effective.CacheDir = paths.CacheDir
	effective.SkillsDir = paths.SkillsDir

	data, err := toml.Marshal(&effective)
	if err != nil {
		return err
	}

	fmt.Printf("# %s\n", paths.ConfigFile())
	fmt.Print(string(data))
	return nil
}
