package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
)

var Version = "dev"

var (
	flagCacheDir  string
	flagSkillsDir string
	flagLogLevel  string
)

var rootCmd = &cobra.Command{
	Use:   "silk",
	Short: "Skill manager for Claude Code",
	Long: `silk clones plugin repositories into a local cache, discovers the
skills (directories holding a SKILL.md) inside them, and activates skills by
linking them into the skills directory.

Run without arguments in a terminal to open the interactive manager.`,
	Version:      Version,
	SilenceUsage: true,
	RunE:         runRoot,
}

func runRoot(cmd *cobra.Command, args []string) error {
	if !interactive() {
		return cmd.Help()
	}
	return runTUI(cmd.Context())
}

func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.CompletionOptions.HiddenDefaultCmd = true
	rootCmd.SilenceErrors = true

	rootCmd.PersistentFlags().StringVar(&flagCacheDir, "cache-dir", "", "plugin cache root (overrides SILK_CACHE_DIR and cache_dir)")
	rootCmd.PersistentFlags().StringVar(&flagSkillsDir, "skills-dir", "", "skills directory to link into (overrides SILK_SKILLS_DIR and skills_dir)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "debug, info, warn or error")
}
