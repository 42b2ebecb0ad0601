package rules

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/endorses/colorcat/internal/pkg/cmdutil"
	"github.com/endorses/colorcat/internal/pkg/colorfilter"
)

var defaultsCmd = &cobra.Command{
	Use:   "defaults",
	Short: "Replace the user rules with the global defaults",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := cmdutil.LoadEngine()
		if err != nil {
			return err
		}
		defer e.Cleanup()

		n, err := restoreDefaults(e)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Restored %d default rules into %s\n", n, e.Paths().User)
		return nil
	},
}

func restoreDefaults(e *colorfilter.Engine) (int, error) {
	var globals []*colorfilter.ColorRule
	if err := e.ReadGlobals(func(r *colorfilter.ColorRule) { globals = append(globals, r) }); err != nil {
		return 0, err
	}
	defer colorfilter.DeleteRules(globals)

	edited := make([]*colorfilter.ColorRule, 0, len(globals))
	for _, r := range globals {
		edited = append(edited, r.Clone())
	}
	if err := e.Apply(e.CloneTmp(), edited); err != nil {
		return 0, err
	}
	if err := e.Write(e.Rules()); err != nil {
		return 0, err
	}
	return len(globals), nil
}
