package cmd

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/samhoang/silk/internal/config"
	"github.com/samhoang/silk/internal/engine"
)

var doctorFix bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Diagnose and fix common issues",
	Long: `Check for common silk issues and optionally fix them.

Checks:
- Does silk.toml parse?
- Is the git binary available?
- Do the cache and skills directories exist?
- Are there broken skill links?
- Do two plugins claim the same skill name?`,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
	doctorCmd.Flags().BoolVar(&doctorFix, "fix", false, "remove broken skill links")
}

func runDoctor(cmd *cobra.Command, args []string) error {
	fmt.Println("=== silk doctor ===")
	fmt.Println()

	issues := 0

	fmt.Print("Checking config... ")
	paths, cfg, err := loadSettings()
	if err != nil {
		fmt.Println("FAIL")
		fmt.Printf("  → %v\n", err)
		fmt.Println("  → Fix the file or run 'silk config init --force'")
		if paths, err = config.ResolvePaths(); err != nil {
			return err
		}
		cfg = config.DefaultConfig()
		issues++
	} else if _, statErr := os.Stat(paths.ConfigFile()); os.IsNotExist(statErr) {
		fmt.Println("OK (defaults)")
	} else {
		fmt.Printf("OK → %s\n", paths.ConfigFile())
	}

	fmt.Print("Checking git... ")
	if gitPath, err := exec.LookPath(cfg.Git.Binary); err != nil {
		fmt.Println("FAIL")
		fmt.Printf("  → %q not found in PATH\n", cfg.Git.Binary)
		issues++
	} else {
		fmt.Printf("OK → %s\n", gitPath)
	}

	fmt.Print("Checking cache directory... ")
	if !paths.CacheDirExists() {
		fmt.Println("WARN (missing)")
		fmt.Printf("  → %s is created by the first 'silk install'\n", paths.CacheDir)
	} else {
		fmt.Printf("OK → %s\n", paths.CacheDir)
	}

	fmt.Print("Checking skills directory... ")
	info, err := os.Stat(paths.SkillsDir)
	switch {
	case os.IsNotExist(err):
		fmt.Println("WARN (missing)")
		fmt.Printf("  → %s is created by the first 'silk link'\n", paths.SkillsDir)
	case err != nil:
		fmt.Println("FAIL")
		fmt.Printf("  → %v\n", err)
		issues++
	case !info.IsDir():
		fmt.Println("FAIL")
		fmt.Printf("  → %s is not a directory\n", paths.SkillsDir)
		issues++
	case paths.SkillsDirIsSymlink():
		target, _ := filepath.EvalSymlinks(paths.SkillsDir)
		fmt.Printf("OK → %s (symlink to %s)\n", paths.SkillsDir, target)
	default:
		fmt.Printf("OK → %s\n", paths.SkillsDir)
	}

	eng := engine.Open(paths, cfg, newLogger(os.Stderr, cfg))

	fmt.Print("Checking for broken links... ")
	entries, err := eng.Links().Entries()
	if err != nil {
		fmt.Println("FAIL")
		fmt.Printf("  → %v\n", err)
		issues++
	} else {
		var broken []string
		for _, e := range entries {
			if e.IsBroken {
				broken = append(broken, e.Name)
			}
		}
		switch {
		case len(broken) == 0:
			fmt.Println("OK")
		case doctorFix:
			pruned, err := eng.Links().PruneBroken()
			if err != nil {
				fmt.Println("FAIL")
				fmt.Printf("  → %v\n", err)
				issues++
			} else {
				fmt.Printf("FIXED (removed %d)\n", len(pruned))
			}
		default:
			fmt.Printf("WARN (%d broken)\n", len(broken))
			for _, name := range broken[:min(5, len(broken))] {
				fmt.Printf("  → %s\n", name)
			}
			if len(broken) > 5 {
				fmt.Printf("  → ... and %d more\n", len(broken)-5)
			}
			fmt.Println("  → Run 'silk doctor --fix' to remove them")
			issues += len(broken)
		}
	}

	fmt.Print("Checking skill names... ")
	if err := eng.Refresh(cmd.Context()); err != nil {
		fmt.Println("FAIL")
		fmt.Printf("  → %v\n", err)
		issues++
	} else if conflicts := eng.Snapshot().Conflicts; len(conflicts) > 0 {
		fmt.Printf("WARN (%d claimed twice)\n", len(conflicts))
		fmt.Printf("  → %s\n", strings.Join(conflicts, ", "))
		fmt.Println("  → The same owner/repo is cached under two hosts; remove one with 'silk remove'")
		issues += len(conflicts)
	} else {
		fmt.Printf("OK (%d plugins, %d skills)\n", len(eng.ListPlugins()), len(eng.Snapshot().Skills))
	}

	fmt.Println()
	if issues == 0 {
		fmt.Println("All checks passed!")
	} else {
		fmt.Printf("Found %d issue(s)\n", issues)
	}

	return nil
}
