package cmdutil

import (
	"github.com/endorses/colorcat/internal/pkg/colorfilter"
	"github.com/endorses/colorcat/internal/pkg/dfilter"
)

// DisplayFilterCompiler compiles color rules with the display filter engine
var DisplayFilterCompiler colorfilter.Compiler = colorfilter.CompilerFunc(func(text string) (colorfilter.Predicate, error) {
	p, err := dfilter.Compile(text)
	if err != nil {
		return nil, err
	}
	return p, nil
})

// NewEngine builds an unloaded engine from the rules.* and colorize.* config
// keys; opts are applied last
func NewEngine(opts ...colorfilter.Option) (*colorfilter.Engine, error) {
	paths, err := RulesPaths("", "")
	if err != nil {
		return nil, err
	}
	policy, err := ImportPolicy("")
	if err != nil {
		return nil, err
	}
	fg, bg, err := TmpColors()
	if err != nil {
		return nil, err
	}
	base := []colorfilter.Option{
		colorfilter.WithPaths(paths),
		colorfilter.WithImportPolicy(policy),
		colorfilter.WithTmpColors(fg, bg),
	}
	return colorfilter.NewEngine(DisplayFilterCompiler, append(base, opts...)...), nil
}

// LoadEngine builds and loads an engine
func LoadEngine(opts ...colorfilter.Option) (*colorfilter.Engine, error) {
	e, err := NewEngine(opts...)
	if err != nil {
		return nil, err
	}
	if err := e.Load(); err != nil {
		return nil, err
	}
	return e, nil
}
