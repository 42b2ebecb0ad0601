// Package constants provides shared constants used across colorcat components.
package constants

import "time"

// Color rules
const (
	// ConversationColorPrefix marks machine-generated conversation rules.
	// Rules carrying it are matched but never written to a rules file or
	// handed to an editor.
	ConversationColorPrefix = "___conversation_color_filter___"

	// TmpColorSlots is the number of temporary (session-only) color slots
	TmpColorSlots = 10

	// RulesFileName is the base name of both the global and the user rules file
	RulesFileName = "colorfilters"

	// ButtonsFileName is the base name of the quick filter button list
	ButtonsFileName = "dfilter_buttons.yaml"
)

// Default locations
const (
	// UserConfigDir is the per-user configuration directory, relative to $HOME
	UserConfigDir = ".config/colorcat"

	// GlobalDataDir holds read-only defaults shipped with the package
	GlobalDataDir = "/usr/share/colorcat"
)

// File permissions
const (
	// ConfigDirMode is used when creating the user configuration directory
	ConfigDirMode = 0750

	// ConfigFileMode is used for rules and button files
	ConfigFileMode = 0600
)

// Watcher timing
const (
	// ReloadDebounce coalesces bursts of file events (editors often write,
	// truncate and rename in quick succession) into one reload
	ReloadDebounce = 200 * time.Millisecond

	// SignalChannelBuffer is the buffer size for OS signal channels
	SignalChannelBuffer = 1

	// WatchEventBuffer is the buffer size for reload notifications
	WatchEventBuffer = 10
)
