// Package plan provides the resource-request graph assembled for one
// deployment operation.
package plan

import (
	"fmt"

	"github.com/davidthor/shipctl/pkg/deferred"
)

// Kind identifies the type of resource a request provisions.
type Kind string

const (
	KindNetwork             Kind = "network"
	KindSubnet              Kind = "subnet"
	KindInternetGateway     Kind = "internetGateway"
	KindRouteTable          Kind = "routeTable"
	KindRouteAssociation    Kind = "routeAssociation"
	KindSecurityGroup       Kind = "securityGroup"
	KindCluster             Kind = "cluster"
	KindLoadBalancer        Kind = "loadBalancer"
	KindTargetGroup         Kind = "targetGroup"
	KindListener            Kind = "listener"
	KindIamRole             Kind = "iamRole"
	KindIamPolicy           Kind = "iamPolicy"
	KindLogGroup            Kind = "logGroup"
	KindRepository          Kind = "repository"
	KindRegistryCredentials Kind = "registryCredentials"
	KindImageBuild          Kind = "imageBuild"
	KindSecret              Kind = "secret"
	KindSecretVersion       Kind = "secretVersion"
	KindTaskDefinition      Kind = "taskDefinition"
	KindService             Kind = "service"
	KindAutoscalingTarget   Kind = "autoscalingTarget"
	KindAutoscalingPolicy   Kind = "autoscalingPolicy"
)

// State tracks the execution state of a request.
type State string

const (
	StatePending   State = "pending"
	StateRunning   State = "running"
	StateCompleted State = "completed"
	StateFailed    State = "failed"
	StateSkipped   State = "skipped"
)

// Request represents one unit of infrastructure to be provisioned.
// Params may embed deferred values produced by other requests; the
// executor issues a request only after every request it depends on has
// resolved its outputs.
type Request struct {
	// Unique identifier within the graph
	ID string

	// Type of resource
	Kind Kind

	// Name of the resource (used by the engine for tagging/naming)
	Name string

	// Input parameters. Values may be literals, *deferred.Value[string],
	// []interface{}, or nested map[string]interface{}.
	Params map[string]interface{}

	// Dependencies - IDs of requests this request depends on
	DependsOn []string

	// Dependents - IDs of requests that depend on this request
	DependedOnBy []string

	// State tracking
	State State

	// Outputs produced by this request, registered at plan time and
	// resolved by the executor when the request completes.
	Outputs map[string]*deferred.Value[string]
}

// NewRequest creates a new pending request.
func NewRequest(kind Kind, app, name string) *Request {
	return &Request{
		ID:      fmt.Sprintf("%s/%s/%s", app, kind, name),
		Kind:    kind,
		Name:    name,
		Params:  make(map[string]interface{}),
		State:   StatePending,
		Outputs: make(map[string]*deferred.Value[string]),
	}
}

// SetParam sets an input parameter.
func (r *Request) SetParam(key string, value interface{}) {
	r.Params[key] = value
}

// Output returns the deferred value for a named output, registering it
// if it does not exist yet.
func (r *Request) Output(name string) *deferred.Value[string] {
	if d, ok := r.Outputs[name]; ok {
		return d
	}
	d := deferred.New[string]()
	r.Outputs[name] = d
	return d
}

// AddDependency adds a dependency to this request.
func (r *Request) AddDependency(requestID string) {
	for _, dep := range r.DependsOn {
		if dep == requestID {
			return // Already exists
		}
	}
	r.DependsOn = append(r.DependsOn, requestID)
}

// AddDependent adds a dependent to this request.
func (r *Request) AddDependent(requestID string) {
	for _, dep := range r.DependedOnBy {
		if dep == requestID {
			return // Already exists
		}
	}
	r.DependedOnBy = append(r.DependedOnBy, requestID)
}

// Fail rejects every registered output so derived values observe the
// failure instead of blocking forever.
func (r *Request) Fail(err error) {
	r.State = StateFailed
	for _, d := range r.Outputs {
		_ = d.Reject(err)
	}
}
