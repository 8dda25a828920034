package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/samhoang/silk/internal/plugin"
)

var (
	skillsJSON   bool
	skillsLinked bool
)

var skillsCmd = &cobra.Command{
	Use:   "skills [ref]",
	Short: "List discovered skills",
	Long: `List the skills of every installed plugin, or of one plugin when a
reference is given. Skills are named owner:repo:name.`,
	Args: cobra.MaximumNArgs(1),
	RunE: runSkills,
}

func init() {
	rootCmd.AddCommand(skillsCmd)
	skillsCmd.Flags().BoolVarP(&skillsJSON, "json", "j", false, "output as JSON")
	skillsCmd.Flags().BoolVarP(&skillsLinked, "linked", "l", false, "only show linked skills")
}

type skillJSON struct {
	Name        string `json:"name"`
	Qualified   string `json:"qualified_name"`
	Plugin      string `json:"plugin"`
	Path        string `json:"path"`
	Description string `json:"description,omitempty"`
	Linked      bool   `json:"linked"`
}

func runSkills(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}

	var skills []plugin.Skill
	if len(args) == 1 {
		p, err := eng.FindPlugin(args[0])
		if err != nil {
			return err
		}
		skills = p.Skills
	} else {
		skills = eng.Snapshot().Skills
	}

	if skillsLinked {
		var linked []plugin.Skill
		for _, s := range skills {
			if s.IsLinked {
				linked = append(linked, s)
			}
		}
		skills = linked
	}

	if skillsJSON {
		out := make([]skillJSON, 0, len(skills))
		for _, s := range skills {
			out = append(out, skillJSON{
				Name:        s.Name,
				Qualified:   s.QualifiedName,
				Plugin:      s.Plugin.String(),
				Path:        s.SourceDir,
				Description: s.Description,
				Linked:      s.IsLinked,
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(skills) == 0 {
		fmt.Println("No skills found")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SKILL\tLINKED\tDESCRIPTION")
	for _, s := range skills {
		linked := ""
		if s.IsLinked {
			linked = "✓"
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", s.QualifiedName, linked, truncate(s.Description, 60))
	}
	return w.Flush()
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n-1]) + "…"
}
