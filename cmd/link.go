package cmd

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/samhoang/silk/internal/engine"
	"github.com/samhoang/silk/internal/picker"
)

var linkCmd = &cobra.Command{
	Use:   "link [skill]...",
	Short: "Activate skills",
	Long: `Link skills into the skills directory by qualified name (owner:repo:name).

Without arguments, a picker lists every skill with the linked ones checked;
confirming links what was checked and unlinks what was cleared.`,
	RunE: runLink,
}

var unlinkCmd = &cobra.Command{
	Use:   "unlink <skill>...",
	Short: "Deactivate skills",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runUnlink,
}

var toggleCmd = &cobra.Command{
	Use:   "toggle <skill>",
	Short: "Link a skill if unlinked, unlink it otherwise",
	Args:  cobra.ExactArgs(1),
	RunE:  runToggle,
}

func init() {
	rootCmd.AddCommand(linkCmd)
	rootCmd.AddCommand(unlinkCmd)
	rootCmd.AddCommand(toggleCmd)
}

func runLink(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}

	if len(args) > 0 {
		return eachSkill(args, "Linked", eng.Link)
	}

	if !interactive() {
		return errors.New("skill name required")
	}
	skills := eng.Snapshot().Skills
	if len(skills) == 0 {
		return errors.New("no skills found; install a plugin first")
	}

	items := make([]picker.Item, 0, len(skills))
	for _, s := range skills {
		items = append(items, picker.Item{
			ID:       s.QualifiedName,
			Label:    s.QualifiedName,
			Detail:   truncate(s.Description, 50),
			Selected: s.IsLinked,
		})
	}

	added, removed, err := picker.Run("Link skills", items)
	if err != nil {
		return err
	}
	if len(added)+len(removed) == 0 {
		fmt.Println("No changes")
		return nil
	}

	return errors.Join(
		eachSkill(added, "Linked", eng.Link),
		eachSkill(removed, "Unlinked", eng.Unlink),
	)
}

func runUnlink(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	return eachSkill(args, "Unlinked", eng.Unlink)
}

func runToggle(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}

	s, err := eng.ToggleLink(args[0])
	if err != nil {
		return err
	}
	if s.IsLinked {
		fmt.Printf("Linked %s\n", s.QualifiedName)
	} else {
		fmt.Printf("Unlinked %s\n", s.QualifiedName)
	}
	return nil
}

// eachSkill applies fn to every name, reporting each result and continuing
// past failures
func eachSkill(names []string, verb string, fn func(string) error) error {
	var errs []error
	for _, name := range names {
		if err := fn(name); err != nil {
			fmt.Printf("✗ %s: %v\n", name, err)
			if errors.Is(err, engine.ErrUnknownSkill) {
				fmt.Println("  → Run 'silk skills' to see qualified names")
			}
			errs = append(errs, err)
			continue
		}
		fmt.Printf("%s %s\n", verb, name)
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d skill(s) failed", len(errs), len(names))
	}
	return nil
}
