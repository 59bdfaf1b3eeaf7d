// Package taskdef renders the container definition payload consumed by
// the compute resource. The JSON shape is wire format: a single-element
// array whose object must round-trip losslessly.
package taskdef

import (
	"encoding/json"

	"github.com/davidthor/shipctl/pkg/deferred"
	"github.com/davidthor/shipctl/pkg/descriptor"
	"github.com/davidthor/shipctl/pkg/errors"
)

// ContainerName must match the service's load balancer container name.
const ContainerName = "app"

const streamPrefix = "app"

// KeyValue is one environment entry on the wire.
type KeyValue struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// SecretRef is one secret entry on the wire.
type SecretRef struct {
	Name      string `json:"name"`
	ValueFrom string `json:"valueFrom"`
}

// PortMapping maps the listen port on both container and host side.
type PortMapping struct {
	ContainerPort int    `json:"containerPort"`
	HostPort      int    `json:"hostPort"`
	Protocol      string `json:"protocol"`
}

// LogConfiguration configures the awslogs driver.
type LogConfiguration struct {
	LogDriver string            `json:"logDriver"`
	Options   map[string]string `json:"options"`
}

// ContainerDefinition is the single container spec in the payload array.
type ContainerDefinition struct {
	Name             string           `json:"name"`
	Image            string           `json:"image"`
	Essential        bool             `json:"essential"`
	PortMappings     []PortMapping    `json:"portMappings"`
	Environment      []KeyValue       `json:"environment"`
	Secrets          []SecretRef      `json:"secrets"`
	LogConfiguration LogConfiguration `json:"logConfiguration"`
}

// Spec is the resolved input to Render.
type Spec struct {
	// Image is the concrete image reference
	Image string

	// Port is the descriptor's listen port
	Port int

	// Env entries in insertion order
	Env []descriptor.EnvVar

	// Secrets entries in insertion order, already resolved to ARNs
	Secrets []SecretRef

	// LogGroup is the resolved log group name
	LogGroup string

	// Region for the awslogs driver
	Region string
}

// Render produces the container definition JSON. The env/secret key
// disjointness is checked at planning time, but the injector re-validates
// since it receives already-resolved values.
func Render(spec Spec) (string, error) {
	envKeys := make(map[string]bool, len(spec.Env))
	for _, e := range spec.Env {
		envKeys[e.Name] = true
	}
	for _, s := range spec.Secrets {
		if envKeys[s.Name] {
			return "", errors.KeyCollision(s.Name)
		}
	}

	env := make([]KeyValue, 0, len(spec.Env))
	for _, e := range spec.Env {
		env = append(env, KeyValue{Name: e.Name, Value: e.Value})
	}

	secrets := spec.Secrets
	if secrets == nil {
		secrets = make([]SecretRef, 0)
	}

	def := ContainerDefinition{
		Name:      ContainerName,
		Image:     spec.Image,
		Essential: true,
		PortMappings: []PortMapping{
			{ContainerPort: spec.Port, HostPort: spec.Port, Protocol: "tcp"},
		},
		Environment: env,
		Secrets:     secrets,
		LogConfiguration: LogConfiguration{
			LogDriver: "awslogs",
			Options: map[string]string{
				"awslogs-group":         spec.LogGroup,
				"awslogs-region":        spec.Region,
				"awslogs-stream-prefix": streamPrefix,
			},
		},
	}

	out, err := json.Marshal([]ContainerDefinition{def})
	if err != nil {
		return "", err
	}
	return string(out), nil
}

// Compose lifts Render over deferred inputs: the payload resolves only
// once the image URI, log group name, and every secret ARN have resolved.
func Compose(
	env []descriptor.EnvVar,
	secretNames []string,
	secretARNs *deferred.Value[[]string],
	image *deferred.Value[string],
	logGroup *deferred.Value[string],
	region string,
	port int,
) *deferred.Value[string] {
	type inputs struct {
		image    string
		logGroup string
		arns     []string
	}

	combined := deferred.Combine3(image, logGroup, secretARNs,
		func(img, lg string, arns []string) inputs {
			return inputs{image: img, logGroup: lg, arns: arns}
		})

	out := deferred.New[string]()
	combined.Subscribe(func(in inputs, err error) {
		if err != nil {
			_ = out.Reject(err)
			return
		}

		refs := make([]SecretRef, 0, len(secretNames))
		for i, name := range secretNames {
			refs = append(refs, SecretRef{Name: name, ValueFrom: in.arns[i]})
		}

		payload, rerr := Render(Spec{
			Image:    in.image,
			Port:     port,
			Env:      env,
			Secrets:  refs,
			LogGroup: in.logGroup,
			Region:   region,
		})
		if rerr != nil {
			_ = out.Reject(rerr)
			return
		}
		_ = out.Resolve(payload)
	})
	return out
}
