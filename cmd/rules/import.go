package rules

import (
	"fmt"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/endorses/colorcat/internal/pkg/cmdutil"
	"github.com/endorses/colorcat/internal/pkg/colorfilter"
	"github.com/endorses/colorcat/internal/pkg/logger"
)

var importPolicy string

var importCmd = &cobra.Command{
	Use:   "import <path>",
	Short: "Merge rules from a file into the user rules file",
	Long: `Read the rules of a file and save them ahead of the current rules in the
user rules file. With --policy abort (the default) a single bad line
rejects the whole import; with --policy skip the good rules are imported
and every bad line is reported.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		policy, err := cmdutil.ImportPolicy(importPolicy)
		if err != nil {
			return err
		}
		e, err := cmdutil.LoadEngine(colorfilter.WithImportPolicy(policy))
		if err != nil {
			return err
		}
		defer e.Cleanup()

		n, err := importInto(e, args[0])
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Imported %d rules into %s\n", n, e.Paths().User)
		return nil
	},
}

func init() {
	importCmd.Flags().StringVar(&importPolicy, "policy", "", "what to do with bad lines: abort or skip")
}

// importInto merges the rules of path ahead of the engine's rules, applies
// and saves the result. Skipped lines are logged, not fatal.
func importInto(e *colorfilter.Engine, path string) (int, error) {
	var imported []*colorfilter.ColorRule
	importErr := e.Import(path, func(r *colorfilter.ColorRule) { imported = append(imported, r) })
	defer colorfilter.DeleteRules(imported)

	if importErr != nil {
		merr, ok := importErr.(*multierror.Error)
		if !ok {
			return 0, importErr
		}
		for _, err := range merr.Errors {
			logger.Warn("Skipped color rule", "error", err)
		}
	}

	edited := make([]*colorfilter.ColorRule, 0, len(imported))
	for _, r := range imported {
		edited = append(edited, r.Clone())
	}
	edited = append(edited, e.Rules()...)

	if err := e.Apply(e.CloneTmp(), edited); err != nil {
		return 0, err
	}
	if err := e.Write(e.Rules()); err != nil {
		return 0, err
	}
	return len(imported), nil
}
