package validation

import (
	"fmt"
	"sort"

	"go.uber.org/zap"
)

// Catalog maps rule names to constructors so rules can be re-enabled over
// the management surface after removal.
type Catalog struct {
	builders map[string]func(logger *zap.Logger) Rule
}

// NewCatalog registers every built-in rule.
func NewCatalog() *Catalog {
	return &Catalog{
		builders: map[string]func(logger *zap.Logger) Rule{
			"confidence": func(_ *zap.Logger) Rule { return NewConfidenceRule() },
			"pii":        func(logger *zap.Logger) Rule { return NewPIIRule(logger) },
		},
	}
}

// Build constructs the named rule, or errors for an unknown name.
func (c *Catalog) Build(name string, logger *zap.Logger) (Rule, error) {
	builder, ok := c.builders[name]
	if !ok {
		return nil, fmt.Errorf("unknown rule %q", name)
	}
	return builder(logger), nil
}

// Names lists the available rule names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.builders))
	for name := range c.builders {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
