// Package provision defines the capability surface of the external
// provisioning engine. The engine owns all low-level cloud interaction,
// retries, and lifecycle persistence; the planner and executor only ever
// see opaque handles whose fields resolve asynchronously.
package provision

import (
	"context"

	"github.com/davidthor/shipctl/pkg/plan"
)

// Credentials is the raw registry credential material returned by the
// engine. The authorization token is base64("user:password"); decoding
// is the executor's job so a malformed token surfaces as a
// credential-exchange failure, not an engine error.
type Credentials struct {
	// ProxyEndpoint is the registry address to authenticate against
	ProxyEndpoint string

	// AuthorizationToken is the base64-encoded "user:password" pair
	AuthorizationToken string
}

// Engine provisions resources of a given kind and returns their concrete
// attributes. Implementations must be safe for concurrent use: the
// executor issues independent requests in parallel.
type Engine interface {
	// CreateResource provisions one resource and returns its named
	// output attributes (IDs, ARNs, DNS names, digests).
	CreateResource(ctx context.Context, kind plan.Kind, name string, params map[string]interface{}) (map[string]string, error)

	// GetCredentials exchanges a registry ID for push credentials.
	GetCredentials(ctx context.Context, registryID string) (*Credentials, error)

	// GetAvailabilityZones returns the ordered zone names for a region.
	GetAvailabilityZones(ctx context.Context, region string) ([]string, error)
}
