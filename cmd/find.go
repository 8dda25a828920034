package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/samhoang/silk/internal/catalog"
	"github.com/samhoang/silk/internal/picker"
)

var (
	findLimit   int
	findInstall bool
	findTopic   string
)

var findCmd = &cobra.Command{
	Use:   "find <query>",
	Short: "Search GitHub for plugins to install",
	Long: `Search GitHub for repositories tagged with a skills topic.

Set GITHUB_TOKEN to raise the API rate limit. With --install, a picker
opens over the results and the chosen repository is installed.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runFind,
}

func init() {
	rootCmd.AddCommand(findCmd)
	findCmd.Flags().IntVarP(&findLimit, "limit", "n", 20, "maximum results")
	findCmd.Flags().BoolVarP(&findInstall, "install", "i", false, "pick a result and install it")
	findCmd.Flags().StringVar(&findTopic, "topic", catalog.DefaultTopic, "GitHub topic to filter by (empty for none)")
}

func runFind(cmd *cobra.Command, args []string) error {
	_, cfg, err := loadSettings()
	if err != nil {
		return err
	}

	gh := catalog.NewGitHub(os.Getenv("GITHUB_TOKEN"), newLogger(os.Stderr, cfg))
	gh.Topic = findTopic

	entries, err := gh.Search(cmd.Context(), strings.Join(args, " "), findLimit)
	if err != nil {
		return err
	}
	if len(entries) == 0 {
		fmt.Println("No repositories found")
		return nil
	}

	if !findInstall {
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "REPOSITORY\tSTARS\tDESCRIPTION")
		for _, e := range entries {
			fmt.Fprintf(w, "%s/%s\t%d\t%s\n", e.Ref.Owner, e.Ref.Repo, e.Stars, truncate(e.Description, 60))
		}
		return w.Flush()
	}

	if !interactive() {
		return errors.New("--install needs a terminal")
	}
	items := make([]picker.Item, 0, len(entries))
	for _, e := range entries {
		items = append(items, picker.Item{
			ID:     e.Ref.HTTPSURL(),
			Label:  e.Ref.Owner + "/" + e.Ref.Repo,
			Detail: fmt.Sprintf("★%d %s", e.Stars, truncate(e.Description, 50)),
		})
	}
	id, err := picker.RunSingle("Install plugin", items)
	if err != nil || id == "" {
		return err
	}

	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}
	fmt.Printf("Installing %s...\n", id)
	p, err := eng.Install(cmd.Context(), id)
	if err != nil {
		return err
	}
	fmt.Printf("Installed %s (%d skills)\n", p.ID(), len(p.Skills))
	return nil
}
