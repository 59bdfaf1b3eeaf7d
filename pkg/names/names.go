// Package names generates deterministic resource names for a deployment.
package names

import (
	"fmt"
	"strings"
)

// maxLength matches the tightest cloud-side limit among the resources we
// name (load balancer names are capped at 32 characters).
const maxLength = 32

// Sanitize lowercases s and replaces any character outside [a-z0-9-]
// with a hyphen, collapsing runs and trimming the ends.
func Sanitize(s string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(s) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		default:
			b.WriteRune('-')
		}
	}

	out := b.String()
	for strings.Contains(out, "--") {
		out = strings.ReplaceAll(out, "--", "-")
	}
	return strings.Trim(out, "-")
}

// Resource returns "<app>-<suffix>", sanitized and truncated.
func Resource(app, suffix string) string {
	return truncate(fmt.Sprintf("%s-%s", Sanitize(app), suffix))
}

// Indexed returns "<app>-<suffix>-<n>" for per-zone resources like
// subnets, numbered from 1.
func Indexed(app, suffix string, n int) string {
	return truncate(fmt.Sprintf("%s-%s-%d", Sanitize(app), suffix, n))
}

func truncate(s string) string {
	if len(s) <= maxLength {
		return s
	}
	return strings.TrimRight(s[:maxLength], "-")
}
