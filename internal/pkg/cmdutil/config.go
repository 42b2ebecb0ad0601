// Package cmdutil provides shared utilities for CLI command implementations.
package cmdutil

import (
	"fmt"

	"github.com/spf13/viper"

	"github.com/endorses/colorcat/internal/pkg/colorfilter"
	"github.com/endorses/colorcat/internal/pkg/constants"
	"github.com/endorses/colorcat/internal/pkg/filterexpr"
)

// GetStringConfig returns flagValue if set, otherwise the config value for key.
// Flag values take precedence over config file values.
func GetStringConfig(key, flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	return viper.GetString(key)
}

// GetStringSliceConfig returns flagValue if set, otherwise the config value for key.
func GetStringSliceConfig(key string, flagValue []string) []string {
	if len(flagValue) > 0 {
		return flagValue
	}
	// Check actual config value instead of viper.IsSet() which returns true
	// for bound flags even when config file doesn't define them
	if configValue := viper.GetStringSlice(key); len(configValue) > 0 {
		return configValue
	}
	return flagValue
}

// RulesPaths resolves the rules file locations: flags, then config, then
// the defaults under the home directory and the system data directory
func RulesPaths(userFlag, globalFlag string) (colorfilter.Paths, error) {
	p, err := colorfilter.DefaultPaths()
	if err != nil {
		return p, fmt.Errorf("failed to determine default color filters location: %w", err)
	}
	if v := GetStringConfig("rules.user_file", userFlag); v != "" {
		p.User = v
	}
	if v := GetStringConfig("rules.global_file", globalFlag); v != "" {
		p.Global = v
	}
	return p, nil
}

// ImportPolicy reads rules.import_policy, defaulting to abort
func ImportPolicy(flagValue string) (colorfilter.ImportPolicy, error) {
	return colorfilter.ParseImportPolicy(GetStringConfig("rules.import_policy", flagValue))
}

// TmpColors reads the temporary slot palette from colorize.tmp_fg and
// colorize.tmp_bg. Unset entries keep the default palette.
func TmpColors() (colorfilter.Color, [constants.TmpColorSlots]colorfilter.Color, error) {
	fg := colorfilter.DefaultTmpForeground
	bg := colorfilter.DefaultTmpBackgrounds

	if s := viper.GetString("colorize.tmp_fg"); s != "" {
		c, err := colorfilter.ParseColor(s)
		if err != nil {
			return fg, bg, fmt.Errorf("colorize.tmp_fg: %w", err)
		}
		fg = c
	}

	bgs := viper.GetStringSlice("colorize.tmp_bg")
	if len(bgs) > constants.TmpColorSlots {
		return fg, bg, fmt.Errorf("colorize.tmp_bg: got %d colors, at most %d are used", len(bgs), constants.TmpColorSlots)
	}
	for i, s := range bgs {
		c, err := colorfilter.ParseColor(s)
		if err != nil {
			return fg, bg, fmt.Errorf("colorize.tmp_bg[%d]: %w", i, err)
		}
		bg[i] = c
	}
	return fg, bg, nil
}

// ButtonsFile returns the filter buttons file from flag or config, or the default
func ButtonsFile(flagValue string) string {
	if v := GetStringConfig("buttons.file", flagValue); v != "" {
		return v
	}
	return filterexpr.DefaultFilePath()
}
