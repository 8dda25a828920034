package cmd

import (
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/samhoang/silk/internal/engine"
	"github.com/samhoang/silk/internal/plugin"
)

// completionEngine opens an engine that never logs, since anything written
// during completion ends up in the shell
func completionEngine(cmd *cobra.Command) (*engine.Engine, bool) {
	paths, cfg, err := loadSettings()
	if err != nil {
		return nil, false
	}
	eng := engine.Open(paths, cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	if err := eng.Refresh(cmd.Context()); err != nil {
		return nil, false
	}
	return eng, true
}

// completePluginIDs lists installed plugins as owner/repo
func completePluginIDs(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	eng, ok := completionEngine(cmd)
	if !ok {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}

	var ids []string
	for _, p := range eng.ListPlugins() {
		ids = append(ids, p.Ref.Owner+"/"+p.Ref.Repo)
	}
	return ids, cobra.ShellCompDirectiveNoFileComp
}

// completeSkills returns a completion function over qualified skill names
// that keep (nil keeps all) and are not already on the command line
func completeSkills(keep func(plugin.Skill) bool) func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
	return func(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
		eng, ok := completionEngine(cmd)
		if !ok {
			return nil, cobra.ShellCompDirectiveNoFileComp
		}

		given := make(map[string]bool, len(args))
		for _, a := range args {
			given[a] = true
		}

		var names []string
		for _, s := range eng.Snapshot().Skills {
			if given[s.QualifiedName] || (keep != nil && !keep(s)) {
				continue
			}
			if s.Description != "" {
				names = append(names, s.QualifiedName+"\t"+s.Description)
			} else {
				names = append(names, s.QualifiedName)
			}
		}
		return names, cobra.ShellCompDirectiveNoFileComp
	}
}

func isLinked(s plugin.Skill) bool  { return s.IsLinked }
func notLinked(s plugin.Skill) bool { return !s.IsLinked }

func init() {
	updateCmd.ValidArgsFunction = completePluginIDs
	removeCmd.ValidArgsFunction = completePluginIDs
	skillsCmd.ValidArgsFunction = completePluginIDs
	linkCmd.ValidArgsFunction = completeSkills(notLinked)
	unlinkCmd.ValidArgsFunction = completeSkills(isLinked)
	toggleCmd.ValidArgsFunction = completeSkills(nil)
	showCmd.ValidArgsFunction = completeSkills(nil)
}
