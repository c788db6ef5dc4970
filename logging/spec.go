package logging

import (
	"fmt"
	"sort"
	"strings"
)

// Spec is a verbosity specification: a base level plus per-component
// overrides, written "<base>[,<component>=<level>]...". For example
// "warn,dispatch=debug" keeps everything quiet except identifier
// resolution.
type Spec struct {
	Base      Level
	Overrides map[string]Level
}

// ParseSpec parses a verbosity spec. The empty string means info with
// no overrides. A bare level is only accepted as the first element.
func ParseSpec(s string) (Spec, error) {
	spec := Spec{
		Base:      LevelInfo,
		Overrides: make(map[string]Level),
	}

	s = strings.TrimSpace(s)
	if s == "" {
		return spec, nil
	}

	for i, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}

		component, levelStr, isOverride := strings.Cut(part, "=")
		if !isOverride {
			if i != 0 {
				return spec, fmt.Errorf("base level %q must come first", part)
			}
			level, err := ParseLevel(part)
			if err != nil {
				return spec, err
			}
			spec.Base = level
			continue
		}

		component = strings.TrimSpace(component)
		if component == "" {
			return spec, fmt.Errorf("empty component name in %q", part)
		}
		level, err := ParseLevel(levelStr)
		if err != nil {
			return spec, fmt.Errorf("component %q: %w", component, err)
		}
		spec.Overrides[component] = level
	}

	return spec, nil
}

// LevelFor returns the effective level for a component.
func (s *Spec) LevelFor(component string) Level {
	if level, ok := s.Overrides[component]; ok {
		return level
	}
	return s.Base
}

// String renders the spec back in parseable form, overrides sorted for
// stable output.
func (s *Spec) String() string {
	parts := []string{s.Base.String()}

	components := make([]string, 0, len(s.Overrides))
	for component := range s.Overrides {
		components = append(components, component)
	}
	sort.Strings(components)

	for _, component := range components {
		parts = append(parts, fmt.Sprintf("%s=%s", component, s.Overrides[component]))
	}
	return strings.Join(parts, ",")
}
