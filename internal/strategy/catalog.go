package strategy

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrDuplicateStrategy = errors.New("duplicate strategy name")
	ErrUnknownStrategy   = errors.New("unknown strategy")
	ErrMultipleLive      = errors.New("more than one live strategy")
)

// Catalog is an immutable, ordered set of strategy configs. It is built once
// and handed to the orchestrator; nothing in the process mutates it.
type Catalog struct {
	order  []string
	byName map[string]Config
}

// NewCatalog validates configs and keeps their order. Names are unique
// (case-sensitive) and at most one config may be live.
func NewCatalog(configs ...Config) (*Catalog, error) {
	c := &Catalog{byName: make(map[string]Config, len(configs))}
	live := ""
	for _, cfg := range configs {
		cfg.Name = strings.TrimSpace(cfg.Name)
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
		if _, ok := c.byName[cfg.Name]; ok {
			return nil, fmt.Errorf("%w: %s", ErrDuplicateStrategy, cfg.Name)
		}
		if cfg.IsLive {
			if live != "" {
				return nil, fmt.Errorf("%w: %s and %s", ErrMultipleLive, live, cfg.Name)
			}
			live = cfg.Name
		}
		c.byName[cfg.Name] = cfg.Clone()
		c.order = append(c.order, cfg.Name)
	}
	return c, nil
}

// MustCatalog panics on an invalid preset list. Only used for compiled-in data.
func MustCatalog(configs ...Config) *Catalog {
	c, err := NewCatalog(configs...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) Len() int { return len(c.order) }

func (c *Catalog) Names() []string {
	return append([]string(nil), c.order...)
}

func (c *Catalog) Get(name string) (Config, error) {
	cfg, ok := c.byName[strings.TrimSpace(name)]
	if !ok {
		return Config{}, fmt.Errorf("%w: %s", ErrUnknownStrategy, name)
	}
	return cfg.Clone(), nil
}

// Live returns the real-money policy, if any.
func (c *Catalog) Live() (Config, bool) {
	for _, name := range c.order {
		if cfg := c.byName[name]; cfg.IsLive {
			return cfg.Clone(), true
		}
	}
	return Config{}, false
}

// Shadow returns every non-live config in catalog order.
func (c *Catalog) Shadow() []Config {
	out := make([]Config, 0, len(c.order))
	for _, name := range c.order {
		if cfg := c.byName[name]; !cfg.IsLive {
			out = append(out, cfg.Clone())
		}
	}
	return out
}

// Select narrows the catalog to names, keeping catalog order.
func (c *Catalog) Select(names ...string) (*Catalog, error) {
	if len(names) == 0 {
		return c, nil
	}
	want := make(map[string]bool, len(names))
	for _, n := range names {
		n = strings.TrimSpace(n)
		if _, ok := c.byName[n]; !ok {
			return nil, fmt.Errorf("%w: %s", ErrUnknownStrategy, n)
		}
		want[n] = true
	}
	picked := make([]Config, 0, len(want))
	for _, name := range c.order {
		if want[name] {
			picked = append(picked, c.byName[name])
		}
	}
	return NewCatalog(picked...)
}
