// Package resolver resolves a descriptor's build context to a local
// directory containing a Dockerfile.
package resolver

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
)

// ContextType indicates where a build context comes from.
type ContextType string

const (
	// ContextTypeLocal is a local filesystem path
	ContextTypeLocal ContextType = "local"

	// ContextTypeGit is a git repository URL
	ContextTypeGit ContextType = "git"
)

// ResolvedContext is a build context made usable on the local disk.
type ResolvedContext struct {
	// Reference is the original build context string
	Reference string

	// Type is the context type
	Type ContextType

	// Path is the local directory holding the context
	Path string

	// Version is the resolved git ref, if any
	Version string
}

// Resolver resolves build context references.
type Resolver struct {
	cacheDir string
}

// Options configures the resolver.
type Options struct {
	// CacheDir is the directory for cloned git contexts
	CacheDir string
}

// New creates a build context resolver.
func New(opts Options) *Resolver {
	cacheDir := opts.CacheDir
	if cacheDir == "" {
		homeDir, _ := os.UserHomeDir()
		cacheDir = filepath.Join(homeDir, ".shipctl", "cache", "contexts")
	}
	return &Resolver{cacheDir: cacheDir}
}

// Resolve makes the build context available locally and verifies it
// contains a Dockerfile.
func (r *Resolver) Resolve(ctx context.Context, ref string) (ResolvedContext, error) {
	switch DetectContextType(ref) {
	case ContextTypeGit:
		return r.resolveGit(ctx, ref)
	default:
		return r.resolveLocal(ref)
	}
}

func (r *Resolver) resolveLocal(ref string) (ResolvedContext, error) {
	absPath, err := filepath.Abs(ref)
	if err != nil {
		return ResolvedContext{}, fmt.Errorf("failed to resolve path: %w", err)
	}

	info, err := os.Stat(absPath)
	if err != nil {
		return ResolvedContext{}, fmt.Errorf("build context not found: %w", err)
	}
	if !info.IsDir() {
		return ResolvedContext{}, fmt.Errorf("build context %s is not a directory", absPath)
	}

	if err := requireDockerfile(absPath); err != nil {
		return ResolvedContext{}, err
	}

	return ResolvedContext{
		Reference: ref,
		Type:      ContextTypeLocal,
		Path:      absPath,
	}, nil
}

func (r *Resolver) resolveGit(ctx context.Context, ref string) (ResolvedContext, error) {
	gitURL := ref
	gitRef := "main"
	if url, fragment, ok := strings.Cut(ref, "#"); ok {
		gitURL = url
		gitRef = fragment
	}

	cacheKey := strings.NewReplacer("/", "_", ":", "_", ".", "_").Replace(gitURL)
	repoDir := filepath.Join(r.cacheDir, "git", cacheKey, gitRef)

	if _, err := os.Stat(repoDir); os.IsNotExist(err) {
		if err := r.gitClone(ctx, gitURL, gitRef, repoDir); err != nil {
			return ResolvedContext{}, fmt.Errorf("failed to clone repository: %w", err)
		}
	}

	if err := requireDockerfile(repoDir); err != nil {
		return ResolvedContext{}, err
	}

	return ResolvedContext{
		Reference: ref,
		Type:      ContextTypeGit,
		Path:      repoDir,
		Version:   gitRef,
	}, nil
}

func (r *Resolver) gitClone(ctx context.Context, url, ref, dest string) error {
	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return err
	}

	cloneOpts := &git.CloneOptions{
		URL:           url,
		Depth:         1,
		SingleBranch:  true,
		ReferenceName: plumbing.NewBranchReferenceName(ref),
	}

	// Try cloning as a branch first, then as a tag
	_, err := git.PlainCloneContext(ctx, dest, false, cloneOpts)
	if err != nil {
		cloneOpts.ReferenceName = plumbing.NewTagReferenceName(ref)
		_, err = git.PlainCloneContext(ctx, dest, false, cloneOpts)
		if err != nil {
			return fmt.Errorf("git clone failed: %w", err)
		}
	}
	return nil
}

func requireDockerfile(dir string) error {
	if _, err := os.Stat(filepath.Join(dir, "Dockerfile")); err != nil {
		return fmt.Errorf("no Dockerfile found in %s", dir)
	}
	return nil
}

// DetectContextType determines where a build context reference points.
func DetectContextType(ref string) ContextType {
	if strings.HasPrefix(ref, "https://") || strings.HasPrefix(ref, "git@") || strings.HasPrefix(ref, "git::") {
		return ContextTypeGit
	}
	return ContextTypeLocal
}
