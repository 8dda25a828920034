package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/charmbracelet/glamour"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/samhoang/silk/internal/plugin"
)

var showRaw bool

var showCmd = &cobra.Command{
	Use:   "show <skill>",
	Short: "Render a skill's SKILL.md",
	Args:  cobra.ExactArgs(1),
	RunE:  runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
	showCmd.Flags().BoolVar(&showRaw, "raw", false, "print the file without rendering")
}

func runShow(cmd *cobra.Command, args []string) error {
	eng, err := openEngine(cmd.Context())
	if err != nil {
		return err
	}

	s, ok := eng.Snapshot().Skill(args[0])
	if !ok {
		return fmt.Errorf("skill not found: %s", args[0])
	}

	data, err := os.ReadFile(filepath.Join(s.SourceDir, plugin.ManifestFile))
	if err != nil {
		return err
	}

	if showRaw || !term.IsTerminal(int(os.Stdout.Fd())) {
		_, err := os.Stdout.Write(data)
		return err
	}

	status := "not linked"
	if s.IsLinked {
		status = "linked → " + eng.Links().Path(s)
	}
	fmt.Printf("%s (%s)\n%s\n", s.QualifiedName, status, s.SourceDir)

	width := 80
	if w, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && w > 0 {
		width = min(w, 120)
	}
	r, err := glamour.NewTermRenderer(glamour.WithAutoStyle(), glamour.WithWordWrap(width))
	if err != nil {
		return err
	}
	out, err := r.Render(string(plugin.Body(data)))
	if err != nil {
		return err
	}
	fmt.Print(out)
	return nil
}
