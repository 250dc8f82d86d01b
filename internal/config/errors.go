package config

import (
	"fmt"
	"strings"
)

// ConfigurationError lists everything wrong with a configuration. It is
// fatal: the supervisor never starts on an invalid model.
type ConfigurationError struct {
	Source   string
	Problems []string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid configuration %s: %s", e.Source, strings.Join(e.Problems, "; "))
}

type problems []string

func (p *problems) add(field, msg string) {
	*p = append(*p, field+": "+msg)
}

func (p *problems) min(field string, v, min int) {
	if v < min {
		p.add(field, fmt.Sprintf("%d is below %d", v, min))
	}
}

func (p *problems) oneOf(field, v string, allowed []string) {
	for _, a := range allowed {
		if v == a {
			return
		}
	}
	p.add(field, fmt.Sprintf("%q is not one of %s", v, strings.Join(allowed, ", ")))
}

func (p problems) err(source string) error {
	if len(p) == 0 {
		return nil
	}
	return &ConfigurationError{Source: source, Problems: p}
}
