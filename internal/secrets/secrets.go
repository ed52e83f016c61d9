// Package secrets resolves a single credential from an ordered list of
// providers. The first provider holding a non-empty value wins.
package secrets

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/BurntSushi/toml"
)

// ErrNotFound indicates no provider holds the requested key.
var ErrNotFound = errors.New("secret not found")

// GeneralTable is the secrets-file table consulted before top-level keys.
const GeneralTable = "general"

// Provider is one configuration source.
type Provider interface {
	Name() string
	Lookup(key string) (string, bool, error)
}

// Chain tries providers in order.
type Chain []Provider

// Resolve returns the first non-empty value for key and the provider name.
// A provider that fails (an unreadable or malformed secrets file) is skipped
// like one that lacks the key; its error is reported only when no later
// provider has the value.
func (c Chain) Resolve(key string) (value, source string, err error) {
	var tried []string
	var failures []error
	for _, p := range c {
		v, ok, err := p.Lookup(key)
		if err != nil {
			failures = append(failures, fmt.Errorf("%s: %w", p.Name(), err))
		} else if ok && strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v), p.Name(), nil
		}
		tried = append(tried, p.Name())
	}
	notFound := fmt.Errorf("%w: %s (looked in %s)", ErrNotFound, key, strings.Join(tried, ", "))
	return "", "", errors.Join(append([]error{notFound}, failures...)...)
}

// Default returns the standard chain: the TOML secrets file at path, then the
// process environment.
func Default(path string) Chain {
	var c Chain
	if path != "" {
		c = append(c, TOMLFile{Path: path})
	}
	return append(c, Env{})
}

// TOMLFile reads keys from a TOML secrets file, checking the [general] table
// before top-level keys. A missing file holds nothing.
type TOMLFile struct {
	Path string
}

// Name implements Provider.
func (f TOMLFile) Name() string { return "secrets file " + f.Path }

// Lookup implements Provider.
func (f TOMLFile) Lookup(key string) (string, bool, error) {
	data, err := os.ReadFile(f.Path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return "", false, nil
		}
		return "", false, fmt.Errorf("reading secrets: %w", err)
	}

	var doc map[string]any
	if err := toml.Unmarshal(data, &doc); err != nil {
		return "", false, fmt.Errorf("parsing secrets: %w", err)
	}

	if general, ok := doc[GeneralTable].(map[string]any); ok {
		if v, ok := general[key].(string); ok && v != "" {
			return v, true, nil
		}
	}
	if v, ok := doc[key].(string); ok && v != "" {
		return v, true, nil
	}
	return "", false, nil
}

// Env reads a key from the process environment.
type Env struct{}

// Name implements Provider.
func (Env) Name() string { return "environment" }

// Lookup implements Provider.
func (Env) Lookup(key string) (string, bool, error) {
	v, ok := os.LookupEnv(key)
	return v, ok, nil
}
