package harness

import (
	"errors"
	"strings"

	"github.com/roach88/twinshot/internal/engine"
)

// Overrides are caller-supplied settings that win over the scenario file.
// Empty hosts and nil options inherit.
type Overrides struct {
	BaseHost string
	TestHost string
	Options  OptionsOverride
}

// Settings are the fully resolved hosts and options for one scenario.
type Settings struct {
	BaseHost string
	TestHost string
	Options  engine.Options
}

// Settings layers engine defaults, the scenario file and o, then
// validates the result.
func (s *Scenario) Settings(o Overrides) (Settings, error) {
	opts := s.Options.Apply(engine.DefaultOptions())
	opts = o.Options.Apply(opts)

	st := Settings{
		BaseHost: pickHost(o.BaseHost, s.Base),
		TestHost: pickHost(o.TestHost, s.Test),
		Options:  opts,
	}

	if st.BaseHost == "" {
		return Settings{}, errors.New("base host is required (scenario base: or --base)")
	}
	if st.TestHost == "" {
		return Settings{}, errors.New("test host is required (scenario test: or --test)")
	}
	if err := opts.Validate(); err != nil {
		return Settings{}, err
	}

	return st, nil
}

// pickHost returns the first argument that is not blank, trimmed of
// a trailing slash so hosts join cleanly with absolute paths.
func pickHost(values ...string) string {
	for _, v := range values {
		if v = strings.TrimSpace(v); v != "" {
			return strings.TrimSuffix(v, "/")
		}
	}
	return ""
}
