package cmd

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listJSON bool

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List installed plugins",
	RunE:    runList,
}

func init() {
	rootCmd.AddCommand(listCmd)
	listCmd.Flags().BoolVarP(&listJSON, "json", "j", false, "output as JSON")
}

type pluginJSON struct {
	ID     string `json:"id"`
	Host   string `json:"host"`
	Owner  string `json:"owner"`
	Repo   string `json:"repo"`
	Path   string `json:"path"`
	Skills int    `json:"skills"`
	Linked int    `json:"linked"`
}

func runList(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}

	plugins := eng.ListPlugins()

	if listJSON {
		out := make([]pluginJSON, 0, len(plugins))
		for _, p := range plugins {
			out = append(out, pluginJSON{
				ID:     p.ID(),
				Host:   p.Ref.Host,
				Owner:  p.Ref.Owner,
				Repo:   p.Ref.Repo,
				Path:   p.CachePath,
				Skills: len(p.Skills),
				Linked: p.LinkedCount(),
			})
		}
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(out)
	}

	if len(plugins) == 0 {
		fmt.Println("No plugins installed")
		fmt.Println()
		fmt.Println("Install one with: silk install <owner/repo>")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "PLUGIN\tSKILLS\tLINKED\tPATH")
	for _, p := range plugins {
		fmt.Fprintf(w, "%s\t%d\t%d\t%s\n", p.ID(), len(p.Skills), p.LinkedCount(), p.CachePath)
	}
	return w.Flush()
}
