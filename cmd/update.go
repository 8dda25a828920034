package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samhoang/silk/internal/engine"
	"github.com/samhoang/silk/internal/plugin"
)

var updateAll bool

var updateCmd = &cobra.Command{
	Use:   "update [ref]",
	Short: "Pull the latest changes of installed plugins",
	Long: `Fast-forward a cached plugin and keep its active links pointing at the
right skill directories. Skills that moved are relinked; skills that vanished
upstream are unlinked.

Without a reference, a picker opens (in a terminal). Use --all to update
every installed plugin.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runUpdate,
}

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().BoolVarP(&updateAll, "all", "a", false, "update every installed plugin")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}

	var targets []plugin.Plugin
	switch {
	case updateAll:
		if len(args) > 0 {
			return errors.New("--all takes no reference")
		}
		targets = eng.ListPlugins()
		if len(targets) == 0 {
			fmt.Println("No plugins installed")
			return nil
		}
	case len(args) == 1:
		p, err := eng.FindPlugin(args[0])
		if err != nil {
			return err
		}
		targets = append(targets, p)
	default:
		p, ok, err := pickPlugin(eng, "Update plugin")
		if err != nil || !ok {
			return err
		}
		targets = append(targets, p)
	}

	var errs []error
	for _, p := range targets {
		report, err := eng.Update(cmd.Context(), p.Ref)
		if err != nil {
			fmt.Printf("✗ %s: %v\n", p.ID(), err)
			errs = append(errs, err)
			continue
		}
		printUpdateReport(p.ID(), report)
	}

	if len(errs) > 0 {
		return fmt.Errorf("%d of %d update(s) failed", len(errs), len(targets))
	}
	return nil
}

func printUpdateReport(id string, r engine.UpdateReport) {
	if !r.Changed() {
		fmt.Printf("✓ %s is up to date\n", id)
	} else {
		fmt.Printf("✓ %s %s..%s\n", id, engine.ShortRevision(r.OldRevision), engine.ShortRevision(r.NewRevision))
	}
	for _, name := range r.Relinked {
		fmt.Printf("  relinked %s\n", name)
	}
	for _, name := range r.Unlinked {
		fmt.Printf("  unlinked %s (removed upstream)\n", name)
	}
	for _, err := range r.LinkErrors {
		fmt.Printf("  ! %v\n", err)
	}
}
