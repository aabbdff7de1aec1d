package cmd

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/solatis/trapmapper/internal/rules"
	"github.com/spf13/cobra"
)

var rulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Inspect and maintain rule documents",
}

var rulesValidateCmd = &cobra.Command{
	Use:   "validate <file>",
	Short: "Load a rule document and compile every condition",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return validateRules(cmd.OutOrStdout(), args[0])
	},
}

var rulesNormalizeCmd = &cobra.Command{
	Use:   "normalize <in> <out>",
	Short: "Rewrite a rule document with every default spelled out",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := rules.Load(args[0])
		if err != nil {
			return err
		}
		if err := rules.Save(cfg, args[1]); err != nil {
			return fmt.Errorf("failed to write %s: %w", args[1], err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", args[1])
		return nil
	},
}

func init() {
	rootCmd.AddCommand(rulesCmd)
	rulesCmd.AddCommand(rulesValidateCmd)
	rulesCmd.AddCommand(rulesNormalizeCmd)
}

// validateRules reports per-source mapping counts, duplicate communities and
// conditions that fail to compile. It fails if any condition is invalid.
func validateRules(w io.Writer, path string) error {
	cfg, err := rules.Load(path)
	if err != nil {
		return err
	}

	seen := make(map[string]int)
	invalid := 0
	for _, src := range cfg.Sources {
		key := strings.ToLower(src.Community)
		seen[key]++
		fmt.Fprintf(w, "source %q: %d mappings, %d OIDs\n", src.Community, len(src.Mappings), src.OIDs())

		for _, rule := range src.Mappings {
			if _, err := rule.Compiled(); err != nil {
				invalid++
				fmt.Fprintf(w, "  %s (%s): %v\n", rule.OID, rule.Flow, err)
			}
		}
	}

	dups := make([]string, 0)
	for community, n := range seen {
		if n > 1 {
			dups = append(dups, community)
		}
	}
	sort.Strings(dups)
	for _, community := range dups {
		fmt.Fprintf(w, "warning: community %q is defined %d times, the last definition wins\n", community, seen[community])
	}

	if invalid > 0 {
		return fmt.Errorf("%d invalid condition(s) in %s", invalid, path)
	}
	fmt.Fprintln(w, "ok")
	return nil
}
