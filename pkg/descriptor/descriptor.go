// Package descriptor defines the declarative deployment request for a
// containerized web service.
package descriptor

import (
	"fmt"
	"strings"

	"github.com/google/go-containerregistry/pkg/name"

	"github.com/davidthor/shipctl/pkg/errors"
)

// Defaults applied by ApplyDefaults.
const (
	DefaultCPUUnits         = 256
	DefaultMemoryMiB        = 512
	DefaultDesiredCount     = 2
	DefaultHealthCheckPath  = "/"
	DefaultLogRetentionDays = 7
)

// EnvVar is one environment variable. Env entries keep their insertion
// order all the way into the container payload.
type EnvVar struct {
	Name  string
	Value string
}

// Secret is one secret entry. Value and ValueFrom are mutually
// exclusive: Value holds a literal secret string to be stored by the
// deployment, ValueFrom an externally supplied secret reference (ARN).
type Secret struct {
	Name      string
	Value     string
	ValueFrom string
}

// External reports whether the entry references an existing secret
// instead of supplying a literal value.
func (s Secret) External() bool {
	return s.ValueFrom != ""
}

// Network identifies an existing network to bind to. Both fields must be
// supplied for the deployment to reuse the network; otherwise a new one
// is created.
type Network struct {
	VPCID     string   `yaml:"vpcId"`
	SubnetIDs []string `yaml:"subnetIds"`
}

// Complete reports whether the reference is usable as-is.
func (n *Network) Complete() bool {
	return n != nil && n.VPCID != "" && len(n.SubnetIDs) > 0
}

// Autoscaling configures optional service autoscaling.
type Autoscaling struct {
	Enabled  bool `yaml:"enabled"`
	MinCount int  `yaml:"min"`
	MaxCount int  `yaml:"max"`
}

// Descriptor is the deployment request. Source is exactly one of
// BuildContext or ImageRef; violating this is a construction-time error.
type Descriptor struct {
	// Name of the service; prefixes every resource name
	Name string

	// BuildContext is a path (or git URL) to build an image from
	BuildContext string

	// ImageRef is a prebuilt image reference
	ImageRef string

	// ListenPort is the container port the service listens on
	ListenPort int

	// CPUUnits (256 = 0.25 vCPU)
	CPUUnits int

	// MemoryMiB is memory in MiB
	MemoryMiB int

	// DesiredCount is the number of tasks to run
	DesiredCount int

	// Network optionally binds to an existing VPC and subnets
	Network *Network

	// TLSCertificateRef optionally enables HTTPS on the load balancer
	TLSCertificateRef string

	// Env holds plain environment variables, insertion-ordered
	Env []EnvVar

	// Secrets holds secret entries, insertion-ordered, keys disjoint
	// from Env
	Secrets []Secret

	// OwnerTag is an optional label applied to created resources
	OwnerTag string

	// Autoscaling is only acted on when explicitly enabled
	Autoscaling Autoscaling

	// HealthCheckPath is the target group health check path
	HealthCheckPath string

	// LogRetentionDays is the log group retention
	LogRetentionDays int
}

// ApplyDefaults fills unset numeric fields with their defaults.
func (d *Descriptor) ApplyDefaults() {
	if d.CPUUnits == 0 {
		d.CPUUnits = DefaultCPUUnits
	}
	if d.MemoryMiB == 0 {
		d.MemoryMiB = DefaultMemoryMiB
	}
	if d.DesiredCount == 0 {
		d.DesiredCount = DefaultDesiredCount
	}
	if d.HealthCheckPath == "" {
		d.HealthCheckPath = DefaultHealthCheckPath
	}
	if d.LogRetentionDays == 0 {
		d.LogRetentionDays = DefaultLogRetentionDays
	}
	if d.Autoscaling.Enabled {
		if d.Autoscaling.MinCount == 0 {
			d.Autoscaling.MinCount = 1
		}
		if d.Autoscaling.MaxCount == 0 {
			d.Autoscaling.MaxCount = d.DesiredCount * 2
		}
	}
}

// HasTLS reports whether an HTTPS listener should be created.
func (d *Descriptor) HasTLS() bool {
	return d.TLSCertificateRef != ""
}

// Validate checks every construction-time invariant. It is called before
// any resource request exists, so a failed validation never leaves a
// partial graph behind.
func (d *Descriptor) Validate() error {
	if d.Name == "" {
		return errors.InvalidDescriptor("name is required")
	}

	// Source XOR
	if d.BuildContext != "" && d.ImageRef != "" {
		return errors.InvalidDescriptor("source must set exactly one of buildContext or image, got both")
	}
	if d.BuildContext == "" && d.ImageRef == "" {
		return errors.InvalidDescriptor("source must set exactly one of buildContext or image, got neither")
	}

	if d.ImageRef != "" {
		if _, err := name.ParseReference(d.ImageRef); err != nil {
			return errors.InvalidDescriptor(fmt.Sprintf("invalid image reference %q: %v", d.ImageRef, err))
		}
	}

	if d.ListenPort <= 0 {
		return errors.InvalidDescriptor(fmt.Sprintf("port must be positive, got %d", d.ListenPort))
	}
	if d.CPUUnits <= 0 {
		return errors.InvalidDescriptor(fmt.Sprintf("cpu must be positive, got %d", d.CPUUnits))
	}
	if d.MemoryMiB <= 0 {
		return errors.InvalidDescriptor(fmt.Sprintf("memory must be positive, got %d", d.MemoryMiB))
	}
	if d.DesiredCount <= 0 {
		return errors.InvalidDescriptor(fmt.Sprintf("desiredCount must be positive, got %d", d.DesiredCount))
	}
	if d.Autoscaling.Enabled && d.Autoscaling.MaxCount < d.Autoscaling.MinCount {
		return errors.InvalidDescriptor("autoscaling max must be >= min")
	}

	envKeys := make(map[string]bool)
	for _, e := range d.Env {
		if e.Name == "" {
			return errors.InvalidDescriptor("env entries must be named")
		}
		if envKeys[e.Name] {
			return errors.InvalidDescriptor(fmt.Sprintf("duplicate env key %q", e.Name))
		}
		envKeys[e.Name] = true
	}

	secretKeys := make(map[string]bool)
	for _, s := range d.Secrets {
		if s.Name == "" {
			return errors.InvalidDescriptor("secret entries must be named")
		}
		if secretKeys[s.Name] {
			return errors.InvalidDescriptor(fmt.Sprintf("duplicate secret key %q", s.Name))
		}
		secretKeys[s.Name] = true

		if s.Value != "" && s.ValueFrom != "" {
			return errors.InvalidDescriptor(fmt.Sprintf("secret %q sets both a literal value and a reference", s.Name))
		}
		if s.Value == "" && s.ValueFrom == "" {
			return errors.InvalidDescriptor(fmt.Sprintf("secret %q has no value", s.Name))
		}

		if envKeys[s.Name] {
			return errors.KeyCollision(s.Name)
		}
	}

	return nil
}

// classifySecretValue turns a raw secret string from a descriptor file
// into a Secret. Values that look like ARNs are externally supplied
// references; everything else is a literal. The loaders' object form
// sets Value or ValueFrom explicitly and bypasses this heuristic.
func classifySecretValue(key, raw string) Secret {
	if strings.HasPrefix(raw, "arn:") {
		return Secret{Name: key, ValueFrom: raw}
	}
	return Secret{Name: key, Value: raw}
}
