// Package engine orchestrates a deployment end to end: validate the
// descriptor, assemble the request graph, execute it, and compose the
// user-facing outputs from deferred resource attributes.
package engine

import (
	"context"
	"fmt"
	"io"

	"github.com/davidthor/shipctl/pkg/deferred"
	"github.com/davidthor/shipctl/pkg/descriptor"
	"github.com/davidthor/shipctl/pkg/executor"
	"github.com/davidthor/shipctl/pkg/plan"
	"github.com/davidthor/shipctl/pkg/planner"
	"github.com/davidthor/shipctl/pkg/provision"
)

// Options configures the engine.
type Options struct {
	// Region the deployment targets
	Region string

	// Parallelism is the max number of concurrent resource requests
	Parallelism int

	// Output writer for progress
	Output io.Writer
}

// DeploymentResult exposes the composed outputs of a deployment. The
// URL handles are derived before execution starts, so they settle (or
// reject) exactly when their underlying resources do.
type DeploymentResult struct {
	// ServiceURL is the public address of the service, scheme chosen by
	// the TLS decision
	ServiceURL *deferred.Value[string]

	// MetricsURL points at the service metrics console page
	MetricsURL *deferred.Value[string]

	// ImageURI is the concrete image reference the service runs
	ImageURI *deferred.Value[string]

	// Execution carries per-request states and errors
	Execution *executor.Result
}

// Wait blocks until both URLs have settled, returning the first
// rejection encountered.
func (r *DeploymentResult) Wait(ctx context.Context) error {
	if _, err := r.ServiceURL.Wait(ctx); err != nil {
		return err
	}
	if _, err := r.MetricsURL.Wait(ctx); err != nil {
		return err
	}
	return nil
}

// Engine deploys descriptors against a provisioning engine.
type Engine struct {
	provisioner provision.Engine
	options     Options
}

// New creates a deployment engine.
func New(provisioner provision.Engine, options Options) *Engine {
	return &Engine{provisioner: provisioner, options: options}
}

// Plan assembles the request graph without executing it.
func (e *Engine) Plan(ctx context.Context, desc *descriptor.Descriptor) (*plan.Graph, error) {
	p, err := e.planner(ctx)
	if err != nil {
		return nil, err
	}
	g, _, err := p.Plan(desc)
	return g, err
}

// Deploy runs the full deployment. The returned result is non-nil
// whenever planning succeeded, even if execution failed: its handles
// reject with the underlying failure instead of blocking.
func (e *Engine) Deploy(ctx context.Context, desc *descriptor.Descriptor) (*DeploymentResult, error) {
	p, err := e.planner(ctx)
	if err != nil {
		return nil, err
	}

	g, planned, err := p.Plan(desc)
	if err != nil {
		return nil, err
	}

	// Compose outputs before anything executes
	scheme := "http"
	if desc.HasTLS() {
		scheme = "https"
	}
	serviceURL := deferred.Map(planned.LoadBalancerDNS, func(dns string) string {
		return fmt.Sprintf("%s://%s", scheme, dns)
	})
	metricsURL := deferred.Combine2(planned.ClusterName, planned.ServiceName,
		func(cluster, service string) string {
			return fmt.Sprintf("https://%s.console.aws.amazon.com/ecs/v2/clusters/%s/services/%s/metrics?region=%s",
				e.options.Region, cluster, service, e.options.Region)
		})

	exec := executor.New(e.provisioner, executor.Options{
		Parallelism: e.options.Parallelism,
		Output:      e.options.Output,
	})
	execResult, err := exec.Execute(ctx, g)
	if err != nil {
		return nil, err
	}

	result := &DeploymentResult{
		ServiceURL: serviceURL,
		MetricsURL: metricsURL,
		ImageURI:   planned.ImageURI,
		Execution:  execResult,
	}

	if !execResult.Success {
		incomplete := execResult.Failed + execResult.Skipped
		if len(execResult.Errors) > 0 {
			return result, fmt.Errorf("deployment failed (%d of %d requests did not complete): %w",
				incomplete, g.Len(), execResult.Errors[0])
		}
		return result, fmt.Errorf("deployment failed: %d of %d requests did not complete",
			incomplete, g.Len())
	}
	return result, nil
}

func (e *Engine) planner(ctx context.Context) (*planner.Planner, error) {
	zones, err := e.provisioner.GetAvailabilityZones(ctx, e.options.Region)
	if err != nil {
		return nil, fmt.Errorf("listing availability zones in %s: %w", e.options.Region, err)
	}
	return planner.New(planner.Config{
		Region:            e.options.Region,
		AvailabilityZones: zones,
	}), nil
}
