package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var installLinkAll bool

var installCmd = &cobra.Command{
	Use:   "install <ref>...",
	Short: "Clone plugins into the cache",
	Long: `Clone one or more plugin repositories into the cache and list their skills.

A reference is owner/repo (GitHub), an https URL or an ssh remote
(git@host:owner/repo.git).

Examples:
  silk install anthropics/skills
  silk install https://gitlab.com/team/tools --link
  silk install git@github.com:acme/kit.git`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstall,
}

func init() {
	rootCmd.AddCommand(installCmd)
	installCmd.Flags().BoolVarP(&installLinkAll, "link", "l", false, "link every discovered skill")
}

func runInstall(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}

	for _, input := range args {
		fmt.Printf("Installing %s...\n", input)
		p, err := eng.Install(cmd.Context(), input)
		if err != nil {
			return err
		}
		fmt.Printf("Installed %s (%d skills)\n", p.ID(), len(p.Skills))

		for _, s := range p.Skills {
			if installLinkAll {
				if err := eng.Link(s.QualifiedName); err != nil {
					return err
				}
				fmt.Printf("  ✓ %s\n", s.QualifiedName)
				continue
			}
			fmt.Printf("  %s\n", s.QualifiedName)
		}
	}

	if !installLinkAll {
		fmt.Println()
		fmt.Println("Activate skills with 'silk link'")
	}
	return nil
}
