// Package secrets resolves literal secret values from pluggable
// providers before planning. External ARN references are never resolved
// here; they pass through to the task definition untouched.
package secrets

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/davidthor/shipctl/pkg/descriptor"
)

// ErrSecretNotFound is returned when no provider holds the key.
var ErrSecretNotFound = fmt.Errorf("secret not found")

// Provider supplies secret values from one backing store.
type Provider interface {
	// Name returns the provider's registration name.
	Name() string

	// Get returns the value for key, or ErrSecretNotFound.
	Get(ctx context.Context, key string) (string, error)

	// GetBatch returns values for the keys that exist.
	GetBatch(ctx context.Context, keys []string) (map[string]string, error)
}

// Manager resolves secrets across providers in priority order, caching
// resolved values for the lifetime of the manager.
type Manager struct {
	providers map[string]Provider
	priority  []string
	cache     *cache
}

// NewManager creates an empty manager.
func NewManager() *Manager {
	return &Manager{
		providers: make(map[string]Provider),
		priority:  []string{},
		cache:     newCache(),
	}
}

// DefaultManager creates a manager with the env provider registered.
func DefaultManager() *Manager {
	m := NewManager()
	m.RegisterProvider(NewEnvProvider())
	return m
}

// RegisterProvider adds a provider at the end of the priority order.
func (m *Manager) RegisterProvider(p Provider) {
	m.providers[p.Name()] = p
	m.priority = append(m.priority, p.Name())
}

// SetPriority replaces the provider lookup order.
func (m *Manager) SetPriority(order []string) {
	m.priority = order
}

// Get resolves key against the providers in priority order.
func (m *Manager) Get(ctx context.Context, key string) (string, error) {
	if v, ok := m.cache.get(key); ok {
		return v, nil
	}

	for _, name := range m.priority {
		p, ok := m.providers[name]
		if !ok {
			continue
		}
		v, err := p.Get(ctx, key)
		if err == nil {
			m.cache.set(key, v)
			return v, nil
		}
	}
	return "", fmt.Errorf("secret %q: %w", key, ErrSecretNotFound)
}

// GetFromProvider resolves key against one named provider, bypassing
// the priority order.
func (m *Manager) GetFromProvider(ctx context.Context, provider, key string) (string, error) {
	p, ok := m.providers[provider]
	if !ok {
		return "", fmt.Errorf("unknown secret provider %q", provider)
	}
	return p.Get(ctx, key)
}

// ClearCache drops all cached values.
func (m *Manager) ClearCache() {
	m.cache.clear()
}

// ResolveDescriptor expands ${secret:...} and ${secret:provider:...}
// references in the literal values of the descriptor's secrets. Entries
// with an external reference are returned as-is.
func (m *Manager) ResolveDescriptor(ctx context.Context, in []descriptor.Secret) ([]descriptor.Secret, error) {
	out := make([]descriptor.Secret, len(in))
	for i, s := range in {
		out[i] = s
		if s.External() {
			continue
		}
		resolved, err := m.expand(ctx, s.Value)
		if err != nil {
			return nil, fmt.Errorf("resolving secret %q: %w", s.Name, err)
		}
		out[i].Value = resolved
	}
	return out, nil
}

// expand replaces every ${secret:...} reference inside s, leaving the
// rest of the string intact.
func (m *Manager) expand(ctx context.Context, s string) (string, error) {
	const marker = "${secret:"

	var b strings.Builder
	for {
		start := strings.Index(s, marker)
		if start < 0 {
			b.WriteString(s)
			return b.String(), nil
		}
		end := strings.Index(s[start:], "}")
		if end < 0 {
			return "", fmt.Errorf("unclosed secret reference in %q", s)
		}
		end += start

		b.WriteString(s[:start])
		ref := s[start+len(marker) : end]

		var value string
		var err error
		if provider, key, ok := strings.Cut(ref, ":"); ok {
			value, err = m.GetFromProvider(ctx, provider, key)
		} else {
			value, err = m.Get(ctx, ref)
		}
		if err != nil {
			return "", err
		}

		b.WriteString(value)
		s = s[end+1:]
	}
}

type cache struct {
	mu     sync.RWMutex
	values map[string]string
}

func newCache() *cache {
	return &cache{values: make(map[string]string)}
}

func (c *cache) get(key string) (string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	v, ok := c.values[key]
	return v, ok
}

func (c *cache) set(key, value string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values[key] = value
}

func (c *cache) clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.values = make(map[string]string)
}
