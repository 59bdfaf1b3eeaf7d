package secrets

import (
	"context"
	"os"
	"strings"
)

const defaultEnvPrefix = "SHIPCTL_SECRET_"

// EnvProvider reads secrets from environment variables. A key like
// "db-password" maps to SHIPCTL_SECRET_DB_PASSWORD; keys that already
// look like environment variable names are also tried verbatim.
type EnvProvider struct {
	prefix string
}

// NewEnvProvider creates an env provider with the default prefix.
func NewEnvProvider() *EnvProvider {
	return &EnvProvider{prefix: defaultEnvPrefix}
}

// NewEnvProviderWithPrefix creates an env provider with a custom prefix.
func NewEnvProviderWithPrefix(prefix string) *EnvProvider {
	return &EnvProvider{prefix: prefix}
}

func (p *EnvProvider) Name() string { return "env" }

func (p *EnvProvider) Get(ctx context.Context, key string) (string, error) {
	if v, ok := os.LookupEnv(p.envName(key)); ok {
		return v, nil
	}
	if v, ok := os.LookupEnv(key); ok {
		return v, nil
	}
	return "", ErrSecretNotFound
}

func (p *EnvProvider) GetBatch(ctx context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string)
	for _, k := range keys {
		if v, err := p.Get(ctx, k); err == nil {
			result[k] = v
		}
	}
	return result, nil
}

func (p *EnvProvider) envName(key string) string {
	name := strings.ToUpper(key)
	name = strings.ReplaceAll(name, "-", "_")
	return p.prefix + name
}

// FileProvider serves secrets from an in-memory map, typically loaded
// from a local secrets file.
type FileProvider struct {
	secrets map[string]string
}

// NewFileProvider creates a file provider over the given values.
func NewFileProvider(secrets map[string]string) *FileProvider {
	if secrets == nil {
		secrets = make(map[string]string)
	}
	return &FileProvider{secrets: secrets}
}

func (p *FileProvider) Name() string { return "file" }

func (p *FileProvider) Get(ctx context.Context, key string) (string, error) {
	if v, ok := p.secrets[key]; ok {
		return v, nil
	}
	return "", ErrSecretNotFound
}

func (p *FileProvider) GetBatch(ctx context.Context, keys []string) (map[string]string, error) {
	result := make(map[string]string)
	for _, k := range keys {
		if v, ok := p.secrets[k]; ok {
			result[k] = v
		}
	}
	return result, nil
}
