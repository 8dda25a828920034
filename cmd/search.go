package cmd

import (
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var searchLimit int

var searchCmd = &cobra.Command{
	Use:   "search <query>",
	Short: "Fuzzy-search installed skills",
	Long: `Rank installed skills by how well the query matches their name, best
match first. Characters must appear in order but need not be adjacent, so
"rvw" finds "review".`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	rootCmd.AddCommand(searchCmd)
	searchCmd.Flags().IntVarP(&searchLimit, "limit", "n", 20, "maximum results (0 for all)")
}

func runSearch(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}

	matches := eng.Search(strings.Join(args, " "))
	if len(matches) == 0 {
		fmt.Println("No matching skills")
		return nil
	}
	if searchLimit > 0 && len(matches) > searchLimit {
		matches = matches[:searchLimit]
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	for _, m := range matches {
		linked := " "
		if m.Skill.IsLinked {
			linked = "✓"
		}
		fmt.Fprintf(w, "%s %s\t%s\n", linked, m.Skill.QualifiedName, truncate(m.Skill.Description, 60))
	}
	return w.Flush()
}
