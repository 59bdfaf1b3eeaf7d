// Package docker provides a local-development provisioning engine. The
// image build and the service run against the local Docker daemon; the
// cloud-only kinds are fabricated so the rest of the pipeline behaves
// exactly as it does against a real engine.
package docker

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/docker/docker/api/types/build"
	"github.com/docker/docker/api/types/container"
	"github.com/docker/docker/api/types/image"
	"github.com/docker/docker/client"
	"github.com/docker/go-connections/nat"
	"github.com/google/uuid"
	"github.com/moby/go-archive"

	"github.com/davidthor/shipctl/pkg/plan"
	"github.com/davidthor/shipctl/pkg/provision"
	"github.com/davidthor/shipctl/pkg/taskdef"
)

// Engine is a provision.Engine backed by the local Docker daemon.
type Engine struct {
	cli *client.Client
	out io.Writer

	mu sync.Mutex

	// taskDefs maps task definition ARNs to their container payloads so
	// the service request can start the right container.
	taskDefs map[string]string
}

// NewEngine creates a docker engine using the ambient daemon config.
func NewEngine(out io.Writer) (*Engine, error) {
	cli, err := client.NewClientWithOpts(client.FromEnv, client.WithAPIVersionNegotiation())
	if err != nil {
		return nil, fmt.Errorf("failed to create docker client: %w", err)
	}
	return &Engine{cli: cli, out: out, taskDefs: make(map[string]string)}, nil
}

// CreateResource handles ImageBuild, TaskDefinition, and Service against
// the daemon; everything else gets fabricated local attributes.
func (e *Engine) CreateResource(ctx context.Context, kind plan.Kind, name string, params map[string]interface{}) (map[string]string, error) {
	switch kind {
	case plan.KindImageBuild:
		return e.buildImage(ctx, name, params)
	case plan.KindTaskDefinition:
		return e.registerTaskDefinition(name, params)
	case plan.KindService:
		return e.runService(ctx, name, params)
	case plan.KindRepository:
		return map[string]string{
			"registryId":    "local",
			"repositoryUrl": "localhost/" + name,
		}, nil
	case plan.KindLoadBalancer:
		return map[string]string{
			"arn":     "local:loadbalancer/" + name,
			"dnsName": "localhost",
		}, nil
	case plan.KindLogGroup:
		return map[string]string{"name": "/local/" + name}, nil
	case plan.KindCluster:
		return map[string]string{"name": name, "arn": "local:cluster/" + name}, nil
	case plan.KindSecret:
		return map[string]string{
			"id":  name,
			"arn": "local:secret/" + name,
		}, nil
	default:
		return map[string]string{
			"id":   fmt.Sprintf("local-%s-%s", kind, shortID()),
			"arn":  fmt.Sprintf("local:%s/%s", kind, name),
			"name": name,
		}, nil
	}
}

// GetCredentials returns a placeholder pair; the local daemon needs no
// registry auth.
func (e *Engine) GetCredentials(ctx context.Context, registryID string) (*provision.Credentials, error) {
	return &provision.Credentials{
		ProxyEndpoint:      "http://localhost",
		AuthorizationToken: base64.StdEncoding.EncodeToString([]byte("local:unused")),
	}, nil
}

// GetAvailabilityZones fabricates two zones so network planning behaves
// as it does remotely.
func (e *Engine) GetAvailabilityZones(ctx context.Context, region string) ([]string, error) {
	return []string{region + "a", region + "b"}, nil
}

func (e *Engine) buildImage(ctx context.Context, name string, params map[string]interface{}) (map[string]string, error) {
	contextPath, _ := params["context"].(string)
	if contextPath == "" {
		return nil, fmt.Errorf("image build %s has no context", name)
	}

	repositoryURL, _ := params["repositoryUrl"].(string)
	tag := repositoryURL + ":latest"
	if repositoryURL == "" {
		tag = name + ":latest"
	}

	contextTar, err := archive.TarWithOptions(contextPath, &archive.TarOptions{
		ExcludePatterns: []string{".git", "node_modules", "__pycache__", ".venv"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create build context: %w", err)
	}
	defer contextTar.Close()

	response, err := e.cli.ImageBuild(ctx, contextTar, build.ImageBuildOptions{
		Dockerfile:  "Dockerfile",
		Tags:        []string{tag},
		Remove:      true,
		ForceRemove: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to start build: %w", err)
	}
	defer response.Body.Close()

	imageID, err := decodeBuildOutput(response.Body, e.out)
	if err != nil {
		return nil, fmt.Errorf("build failed: %w", err)
	}

	digest := imageID
	if !strings.HasPrefix(digest, "sha256:") {
		digest = "sha256:" + digest
	}
	return map[string]string{"digest": digest, "imageId": imageID, "tag": tag}, nil
}

func (e *Engine) registerTaskDefinition(name string, params map[string]interface{}) (map[string]string, error) {
	payload, _ := params["containerDefinitions"].(string)
	if payload == "" {
		return nil, fmt.Errorf("task definition %s has no container definitions", name)
	}

	arn := "local:taskdef/" + name + "/" + shortID()
	e.mu.Lock()
	e.taskDefs[arn] = payload
	e.mu.Unlock()

	return map[string]string{"arn": arn}, nil
}

func (e *Engine) runService(ctx context.Context, name string, params map[string]interface{}) (map[string]string, error) {
	taskDefARN, _ := params["taskDefinition"].(string)

	e.mu.Lock()
	payload, ok := e.taskDefs[taskDefARN]
	e.mu.Unlock()
	if !ok {
		return nil, fmt.Errorf("service %s references unknown task definition %q", name, taskDefARN)
	}

	def, err := parseContainerDefinition(payload)
	if err != nil {
		return nil, err
	}

	config, hostConfig, err := containerConfig(def)
	if err != nil {
		return nil, err
	}

	if err := e.ensureImage(ctx, def.Image); err != nil {
		return nil, err
	}

	created, err := e.cli.ContainerCreate(ctx, config, hostConfig, nil, nil, name)
	if err != nil {
		return nil, fmt.Errorf("failed to create container: %w", err)
	}
	if err := e.cli.ContainerStart(ctx, created.ID, container.StartOptions{}); err != nil {
		return nil, fmt.Errorf("failed to start container: %w", err)
	}

	return map[string]string{
		"name": name,
		"id":   created.ID,
	}, nil
}

func (e *Engine) ensureImage(ctx context.Context, ref string) error {
	if _, err := e.cli.ImageInspect(ctx, ref); err == nil {
		return nil
	}
	reader, err := e.cli.ImagePull(ctx, ref, image.PullOptions{})
	if err != nil {
		return fmt.Errorf("failed to pull image %s: %w", ref, err)
	}
	defer reader.Close()
	_, _ = io.Copy(io.Discard, reader)
	return nil
}

// parseContainerDefinition decodes the single-element container payload
// produced by the task definition renderer.
func parseContainerDefinition(payload string) (*taskdef.ContainerDefinition, error) {
	var defs []taskdef.ContainerDefinition
	if err := json.Unmarshal([]byte(payload), &defs); err != nil {
		return nil, fmt.Errorf("invalid container definitions payload: %w", err)
	}
	if len(defs) != 1 {
		return nil, fmt.Errorf("expected exactly one container definition, got %d", len(defs))
	}
	return &defs[0], nil
}

// containerConfig translates a container definition into the daemon's
// create request, publishing the container port on the same host port.
func containerConfig(def *taskdef.ContainerDefinition) (*container.Config, *container.HostConfig, error) {
	env := make([]string, 0, len(def.Environment))
	for _, kv := range def.Environment {
		env = append(env, fmt.Sprintf("%s=%s", kv.Name, kv.Value))
	}

	exposedPorts := nat.PortSet{}
	portBindings := nat.PortMap{}
	for _, pm := range def.PortMappings {
		port := nat.Port(fmt.Sprintf("%d/%s", pm.ContainerPort, pm.Protocol))
		exposedPorts[port] = struct{}{}
		portBindings[port] = []nat.PortBinding{{HostPort: fmt.Sprintf("%d", pm.HostPort)}}
	}

	config := &container.Config{
		Image:        def.Image,
		Env:          env,
		ExposedPorts: exposedPorts,
	}
	hostConfig := &container.HostConfig{
		PortBindings: portBindings,
	}
	return config, hostConfig, nil
}

// decodeBuildOutput streams the daemon's build messages and extracts the
// resulting image ID.
func decodeBuildOutput(reader io.Reader, out io.Writer) (string, error) {
	var imageID string
	decoder := json.NewDecoder(reader)

	for {
		var msg struct {
			Stream      string `json:"stream"`
			Error       string `json:"error"`
			ErrorDetail struct {
				Message string `json:"message"`
			} `json:"errorDetail"`
			Aux struct {
				ID string `json:"ID"`
			} `json:"aux"`
		}

		if err := decoder.Decode(&msg); err != nil {
			if err == io.EOF {
				break
			}
			return "", err
		}

		if msg.Error != "" {
			errMsg := msg.Error
			if msg.ErrorDetail.Message != "" {
				errMsg = msg.ErrorDetail.Message
			}
			return "", fmt.Errorf("%s", errMsg)
		}

		if msg.Stream != "" && out != nil {
			out.Write([]byte(msg.Stream))
		}

		if msg.Aux.ID != "" {
			imageID = msg.Aux.ID
		}
		if strings.HasPrefix(msg.Stream, "Successfully built ") {
			imageID = strings.TrimSpace(strings.TrimPrefix(msg.Stream, "Successfully built "))
		}
	}

	if imageID == "" {
		return "", fmt.Errorf("build completed but no image ID found")
	}
	return imageID, nil
}

func shortID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
