package rules

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/endorses/colorcat/internal/pkg/cmdutil"
	"github.com/endorses/colorcat/internal/pkg/colorfilter"
	"github.com/endorses/colorcat/internal/pkg/filtering"
)

var (
	selectNames []string
	selectFile  string
)

var exportCmd = &cobra.Command{
	Use:   "export <path>",
	Short: "Write the active rules (or a selection) to a file",
	Long: `Write the active rules to a file in the rules file format. With --select
or --select-file only the rules whose names match one of the patterns are
written. Patterns ignore case and may use * as a wildcard.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		patterns := selectNames
		if selectFile != "" {
			fromFile, err := filtering.LoadPatterns(selectFile)
			if err != nil {
				return err
			}
			patterns = append(patterns, fromFile...)
		}

		e, err := cmdutil.LoadEngine()
		if err != nil {
			return err
		}
		defer e.Cleanup()

		n, err := exportRules(e, args[0], filtering.NewMatcher(patterns))
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Exported %d rules to %s\n", n, args[0])
		return nil
	},
}

func init() {
	exportCmd.Flags().StringArrayVar(&selectNames, "select", nil, "export only rules whose name matches this pattern (repeatable)")
	exportCmd.Flags().StringVar(&selectFile, "select-file", "", "read name patterns from a file, one per line")
}

// exportRules writes the rules selected by m, or all rules when m is empty
func exportRules(e *colorfilter.Engine, path string, m *filtering.Matcher) (int, error) {
	rules := e.Rules()
	if m.Empty() {
		return len(rules), e.Export(path, rules, false)
	}

	selected := 0
	for _, r := range rules {
		if m.Match(r.Name) {
			r.Selected = true
			selected++
		}
	}
	if selected == 0 {
		return 0, fmt.Errorf("no rule matches the selection")
	}
	return selected, e.Export(path, rules, true)
}
