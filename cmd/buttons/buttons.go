package buttons

import (
	"errors"
	"fmt"
	"io"

	"github.com/hashicorp/go-multierror"
	"github.com/spf13/cobra"

	"github.com/endorses/colorcat/internal/pkg/cmdutil"
	"github.com/endorses/colorcat/internal/pkg/filterexpr"
	"github.com/endorses/colorcat/internal/pkg/logger"
)

var buttonsFile string

// ButtonsCmd is the base command for the quick filter buttons
var ButtonsCmd = &cobra.Command{
	Use:   "buttons",
	Short: "Manage quick filter buttons",
	Long: `List and add the labeled display filter expressions offered as quick
filter buttons.

Examples:
  cc buttons list
  cc buttons add "No ARP" "!arp" --comment "hide address resolution"`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// Cobra only runs the nearest persistent hook
		if root := cmd.Root(); root.PersistentPreRunE != nil {
			if err := root.PersistentPreRunE(cmd, args); err != nil {
				return err
			}
		}
		return loadButtons(cmdutil.ButtonsFile(buttonsFile))
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		filterexpr.FreeList()
	},
}

func init() {
	ButtonsCmd.PersistentFlags().StringVar(&buttonsFile, "file", "", "filter buttons file (default ~/.config/colorcat/dfilter_buttons.yaml)")

	ButtonsCmd.AddCommand(listCmd)
	ButtonsCmd.AddCommand(addCmd)
}

// loadButtons fills the process-wide list; invalid entries are logged and skipped
func loadButtons(path string) error {
	filterexpr.FreeList()
	err := filterexpr.LoadFile(path, filterexpr.Default())
	var merr *multierror.Error
	if errors.As(err, &merr) {
		logger.Warn("Skipped invalid filter buttons", "path", path, "count", len(merr.Errors), "error", err)
		return nil
	}
	return err
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "Show the filter buttons in order",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		printButtons(cmd.OutOrStdout())
	},
}

func printButtons(out io.Writer) {
	if filterexpr.Default().Len() == 0 {
		fmt.Fprintln(out, "No filter buttons defined.")
		return
	}
	filterexpr.Iterate(func(f *filterexpr.FilterExpression) bool {
		state := " "
		if !f.Enabled {
			state = "!"
		}
		fmt.Fprintf(out, "%3d %s %-20s %s", f.Number+1, state, f.Label, f.Expression)
		if f.Comment != "" {
			fmt.Fprintf(out, "  # %s", f.Comment)
		}
		fmt.Fprintln(out)
		return true
	})
}

var (
	addComment  string
	addDisabled bool
)

var addCmd = &cobra.Command{
	Use:   "add <label> <expression>",
	Short: "Append a filter button",
	Long:  "Append a filter button. The expression must compile as a display filter.",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := addButton(cmdutil.ButtonsFile(buttonsFile), args[0], args[1], addComment, !addDisabled)
		if err != nil {
			return err
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Added button %d %q\n", f.Number+1, f.Label)
		return nil
	},
}

func init() {
	addCmd.Flags().StringVar(&addComment, "comment", "", "description shown with the button")
	addCmd.Flags().BoolVar(&addDisabled, "disabled", false, "add the button disabled")
}

// addButton validates expr, appends it to the process-wide list and saves the list to path
func addButton(path, label, expr, comment string, enabled bool) (*filterexpr.FilterExpression, error) {
	if label == "" {
		return nil, fmt.Errorf("a button label is required")
	}
	f := &filterexpr.FilterExpression{Label: label, Expression: expr}
	pred, err := f.Compile(cmdutil.DisplayFilterCompiler)
	if err != nil {
		return nil, err
	}
	pred.Free()

	f = filterexpr.New(label, expr, comment, enabled)
	if err := filterexpr.WriteFile(path, filterexpr.Default()); err != nil {
		return nil, err
	}
	return f, nil
}
