package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samhoang/silk/internal/plugin"
)

var removeCmd = &cobra.Command{
	Use:     "remove [ref]",
	Aliases: []string{"rm"},
	Short:   "Unlink a plugin's skills and delete it from the cache",
	Args:    cobra.MaximumNArgs(1),
	RunE:    runRemove,
}

func init() {
	rootCmd.AddCommand(removeCmd)
}

func runRemove(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}

	var p plugin.Plugin
	if len(args) == 1 {
		if p, err = eng.FindPlugin(args[0]); err != nil {
			return err
		}
	} else {
		var ok bool
		p, ok, err = pickPlugin(eng, "Remove plugin")
		if err != nil || !ok {
			return err
		}
	}

	linked := p.LinkedCount()
	if err := eng.Delete(p.Ref); err != nil {
		return err
	}

	fmt.Printf("Removed %s", p.ID())
	if linked > 0 {
		fmt.Printf(" (unlinked %d skills)", linked)
	}
	fmt.Println()
	return nil
}
