package rules

import (
	"github.com/spf13/cobra"
)

// RulesCmd is the base command for managing color rules
var RulesCmd = &cobra.Command{
	Use:   "rules",
	Short: "Manage color rules",
	Long: `Inspect, validate, import and export color rules.

Subcommands:
  list      - Show the active rules in priority order
  check     - Validate a rules file without changing anything
  export    - Write the active rules (or a selection) to a file
  import    - Merge rules from a file into the user rules file
  defaults  - Replace the user rules with the global defaults
  watch     - Reload the rules whenever a rules file changes

Examples:
  cc rules list
  cc rules check ~/Downloads/colorfilters
  cc rules export mine.colorfilters --select "Bad TCP" --select HSRP
  cc rules import team.colorfilters`,
	// No Run function - requires a subcommand
}

func init() {
	RulesCmd.AddCommand(listCmd)
	RulesCmd.AddCommand(checkCmd)
	RulesCmd.AddCommand(exportCmd)
	RulesCmd.AddCommand(importCmd)
	RulesCmd.AddCommand(defaultsCmd)
	RulesCmd.AddCommand(watchCmd)
}
