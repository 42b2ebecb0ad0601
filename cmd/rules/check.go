package rules

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/endorses/colorcat/internal/pkg/cmdutil"
	"github.com/endorses/colorcat/internal/pkg/colorfilter"
)

var checkCmd = &cobra.Command{
	Use:   "check [file]",
	Short: "Validate a rules file without changing anything",
	Long: `Parse and compile every rule of a rules file and report all problems.
Without an argument the active rules file is checked.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := cmdutil.NewEngine(colorfilter.WithImportPolicy(colorfilter.ImportSkipInvalid))
		if err != nil {
			return err
		}

		path := ""
		if len(args) == 1 {
			path = args[0]
		} else if p, ok := colorfilter.ResolveActiveRulesFile(e.Paths(), nil); ok {
			path = p
		} else {
			fmt.Fprintln(cmd.OutOrStdout(), "No rules file to check.")
			return nil
		}

		n, err := checkFile(e, path)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "%s: %d rules OK\n", path, n)
		return nil
	},
}

// checkFile compiles every rule of path, returning the number of good rules
// and every problem found
func checkFile(e *colorfilter.Engine, path string) (int, error) {
	var good []*colorfilter.ColorRule
	err := e.Import(path, func(r *colorfilter.ColorRule) { good = append(good, r) })
	colorfilter.DeleteRules(good)
	return len(good), err
}
