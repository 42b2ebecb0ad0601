package rules

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/endorses/colorcat/internal/pkg/cmdutil"
	"github.com/endorses/colorcat/internal/pkg/colorfilter"
	"github.com/endorses/colorcat/internal/pkg/output"
	"github.com/endorses/colorcat/internal/pkg/render"
)

var (
	listNoColor bool
	listJSON    bool
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the active rules in priority order",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		e, err := cmdutil.LoadEngine()
		if err != nil {
			return err
		}
		defer e.Cleanup()

		if listJSON {
			return output.WriteJSON(cmd.OutOrStdout(), ruleEntries(e))
		}

		var opts []render.Option
		if listNoColor {
			opts = append(opts, render.WithNoColor())
		}
		printRules(cmd.OutOrStdout(), e, render.NewRenderer(cmd.OutOrStdout(), opts...))
		return nil
	},
}

func init() {
	listCmd.Flags().BoolVar(&listNoColor, "no-color", false, "print color values instead of swatches")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print the rules as JSON")
}

func printRules(out io.Writer, e *colorfilter.Engine, r *render.Renderer) {
	source := e.ActivePath()
	if source == "" {
		source = "(no rules file)"
	}
	fmt.Fprintf(out, "Rules from %s\n", source)

	rules := e.Rules()
	if len(rules) == 0 {
		fmt.Fprintln(out, "  No color rules defined.")
	}
	for i, rule := range rules {
		state := " "
		if rule.Disabled {
			state = "!"
		}
		fmt.Fprintf(out, "  %3d %s %s %-24s %s\n", i+1, state, r.Swatch(rule), rule.Name, rule.FilterText)
	}

	for _, tmp := range e.CloneTmp() {
		if tmp.FilterText == "" {
			continue
		}
		state := " "
		if tmp.Disabled {
			state = "!"
		}
		fmt.Fprintf(out, "  tmp %s %s %-24s %s\n", state, r.Swatch(tmp), render.DisplayName(tmp), tmp.FilterText)
	}
}

// RuleEntry is the JSON form of a listed rule
type RuleEntry struct {
	Name       string `json:"name"`
	Filter     string `json:"filter"`
	Foreground string `json:"foreground"`
	Background string `json:"background"`
	Disabled   bool   `json:"disabled"`
	Temporary  bool   `json:"temporary,omitempty"`
}

func ruleEntries(e *colorfilter.Engine) []RuleEntry {
	entries := []RuleEntry{}
	add := func(r *colorfilter.ColorRule, name string, tmp bool) {
		entries = append(entries, RuleEntry{
			Name:       name,
			Filter:     r.FilterText,
			Foreground: r.Foreground.HTML(),
			Background: r.Background.HTML(),
			Disabled:   r.Disabled,
			Temporary:  tmp,
		})
	}
	for _, tmp := range e.CloneTmp() {
		if tmp.FilterText != "" {
			add(tmp, render.DisplayName(tmp), true)
		}
	}
	for _, r := range e.Rules() {
		add(r, r.Name, false)
	}
	return entries
}
