package colorfilter

import (
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/endorses/colorcat/internal/pkg/constants"
)

// Paths locates the two rules files
type Paths struct {
	// Global is the read-only default rules file
	Global string
	// User is the per-user, writable rules file
	User string
}

// DefaultPaths returns ~/.config/colorcat/colorfilters and
// /usr/share/colorcat/colorfilters
func DefaultPaths() (Paths, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return Paths{}, err
	}
	return Paths{
		Global: filepath.Join(constants.GlobalDataDir, constants.RulesFileName),
		User:   filepath.Join(home, constants.UserConfigDir, constants.RulesFileName),
	}, nil
}

// StatFunc reports file information; os.Stat in production
type StatFunc func(name string) (fs.FileInfo, error)

// ResolveActiveRulesFile picks the file a load reads: the user file if it
// exists, otherwise the global file if it exists. ok is false when neither
// exists.
func ResolveActiveRulesFile(p Paths, stat StatFunc) (path string, ok bool) {
	if stat == nil {
		stat = os.Stat
	}
	for _, candidate := range []string{p.User, p.Global} {
		if candidate == "" {
			continue
		}
		fi, err := stat(candidate)
		if err == nil && !fi.IsDir() {
			return candidate, true
		}
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			// Unreadable but present: let the load report the real error
			return candidate, true
		}
	}
	return "", false
}
