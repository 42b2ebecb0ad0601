package filterexpr

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/hashicorp/go-multierror"
	"gopkg.in/yaml.v3"

	"github.com/endorses/colorcat/internal/pkg/constants"
)

var (
	// fileLock protects atomic file writes
	fileLock sync.Mutex
)

// ButtonYAML is the on-disk form of one filter button
type ButtonYAML struct {
	Label      string `yaml:"label"`
	Expression string `yaml:"expression"`
	Comment    string `yaml:"comment,omitempty"`
	Enabled    *bool  `yaml:"enabled,omitempty"`
}

// ButtonConfig is the root of the buttons file
type ButtonConfig struct {
	Buttons []ButtonYAML `yaml:"buttons"`
}

// LoadFile appends the buttons of a YAML file to l. A missing file adds
// nothing. Entries without a label or expression are skipped and reported
// together in the returned error; the valid ones are still appended.
func LoadFile(path string, l *List) error {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	// #nosec G304 -- Path is from configuration, not user input
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read filter buttons file: %w", err)
	}

	var config ButtonConfig
	if err := yaml.Unmarshal(data, &config); err != nil {
		return fmt.Errorf("failed to parse filter buttons YAML: %w", err)
	}

	var errs *multierror.Error
	for i, b := range config.Buttons {
		if strings.TrimSpace(b.Label) == "" || strings.TrimSpace(b.Expression) == "" {
			errs = multierror.Append(errs, fmt.Errorf("%s: button %d: label and expression are required", path, i+1))
			continue
		}
		enabled := true
		if b.Enabled != nil {
			enabled = *b.Enabled
		}
		l.New(b.Label, b.Expression, b.Comment, enabled)
	}
	return errs.ErrorOrNil()
}

// WriteFile writes the list to a YAML file with atomic write
func WriteFile(path string, l *List) error {
	fileLock.Lock()
	defer fileLock.Unlock()

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, constants.ConfigDirMode); err != nil {
		return fmt.Errorf("failed to create filter buttons directory: %w", err)
	}

	config := ButtonConfig{Buttons: make([]ButtonYAML, 0, l.Len())}
	l.Iterate(func(f *FilterExpression) bool {
		enabled := f.Enabled
		config.Buttons = append(config.Buttons, ButtonYAML{
			Label:      f.Label,
			Expression: f.Expression,
			Comment:    f.Comment,
			Enabled:    &enabled,
		})
		return true
	})

	data, err := yaml.Marshal(&config)
	if err != nil {
		return fmt.Errorf("failed to marshal filter buttons to YAML: %w", err)
	}

	tempFile := path + ".tmp"
	if err := os.WriteFile(tempFile, data, constants.ConfigFileMode); err != nil {
		return fmt.Errorf("failed to write temp filter buttons file: %w", err)
	}
	if err := os.Rename(tempFile, path); err != nil {
		_ = os.Remove(tempFile)
		return fmt.Errorf("failed to rename temp filter buttons file: %w", err)
	}
	return nil
}

// DefaultFilePath returns ~/.config/colorcat/dfilter_buttons.yaml
func DefaultFilePath() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return constants.ButtonsFileName
	}
	return filepath.Join(homeDir, constants.UserConfigDir, constants.ButtonsFileName)
}
