package docker

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidthor/shipctl/pkg/plan"
	"github.com/davidthor/shipctl/pkg/taskdef"
)

func TestCreateResource_FabricatedKinds(t *testing.T) {
	e := &Engine{taskDefs: make(map[string]string)}
	ctx := context.Background()

	outputs, err := e.CreateResource(ctx, plan.KindRepository, "chat-app-repo", nil)
	require.NoError(t, err)
	assert.Equal(t, "local", outputs["registryId"])
	assert.Equal(t, "localhost/chat-app-repo", outputs["repositoryUrl"])

	outputs, err = e.CreateResource(ctx, plan.KindLoadBalancer, "chat-app-lb", nil)
	require.NoError(t, err)
	assert.Equal(t, "localhost", outputs["dnsName"])

	outputs, err = e.CreateResource(ctx, plan.KindNetwork, "chat-app-vpc", nil)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(outputs["id"], "local-network-"))
}

func TestCreateResource_TaskDefinitionRoundTrip(t *testing.T) {
	e := &Engine{taskDefs: make(map[string]string)}

	payload, err := taskdef.Render(taskdef.Spec{
		Image:    "nginx:latest",
		Port:     8080,
		LogGroup: "/local/chat-app-logs",
		Region:   "local",
	})
	require.NoError(t, err)

	outputs, err := e.CreateResource(context.Background(), plan.KindTaskDefinition, "chat-app-task",
		map[string]interface{}{"containerDefinitions": payload})
	require.NoError(t, err)
	require.NotEmpty(t, outputs["arn"])

	stored, ok := e.taskDefs[outputs["arn"]]
	require.True(t, ok)
	assert.Equal(t, payload, stored)
}

func TestCreateResource_TaskDefinitionMissingPayload(t *testing.T) {
	e := &Engine{taskDefs: make(map[string]string)}
	_, err := e.CreateResource(context.Background(), plan.KindTaskDefinition, "chat-app-task", nil)
	require.Error(t, err)
}

func TestContainerConfig(t *testing.T) {
	def := &taskdef.ContainerDefinition{
		Image: "nginx:latest",
		Environment: []taskdef.KeyValue{
			{Name: "MODEL", Value: "gpt-4o"},
		},
		PortMappings: []taskdef.PortMapping{
			{ContainerPort: 8080, HostPort: 8080, Protocol: "tcp"},
		},
	}

	config, hostConfig, err := containerConfig(def)
	require.NoError(t, err)

	assert.Equal(t, "nginx:latest", config.Image)
	assert.Contains(t, config.Env, "MODEL=gpt-4o")
	_, exposed := config.ExposedPorts["8080/tcp"]
	assert.True(t, exposed)
	require.Len(t, hostConfig.PortBindings["8080/tcp"], 1)
	assert.Equal(t, "8080", hostConfig.PortBindings["8080/tcp"][0].HostPort)
}

func TestParseContainerDefinition(t *testing.T) {
	payload, err := taskdef.Render(taskdef.Spec{
		Image: "nginx:latest", Port: 80, LogGroup: "/local/logs", Region: "local",
	})
	require.NoError(t, err)

	def, err := parseContainerDefinition(payload)
	require.NoError(t, err)
	assert.Equal(t, "nginx:latest", def.Image)

	_, err = parseContainerDefinition("[]")
	require.Error(t, err)
	_, err = parseContainerDefinition("not json")
	require.Error(t, err)
}

func TestDecodeBuildOutput(t *testing.T) {
	var stream bytes.Buffer
	enc := json.NewEncoder(&stream)
	require.NoError(t, enc.Encode(map[string]string{"stream": "Step 1/2 : FROM scratch\n"}))
	require.NoError(t, enc.Encode(map[string]interface{}{"aux": map[string]string{"ID": "sha256:abc123"}}))

	var logs bytes.Buffer
	imageID, err := decodeBuildOutput(&stream, &logs)
	require.NoError(t, err)
	assert.Equal(t, "sha256:abc123", imageID)
	assert.Contains(t, logs.String(), "Step 1/2")
}

func TestDecodeBuildOutput_Error(t *testing.T) {
	var stream bytes.Buffer
	enc := json.NewEncoder(&stream)
	require.NoError(t, enc.Encode(map[string]interface{}{
		"error":       "build broke",
		"errorDetail": map[string]string{"message": "missing Dockerfile"},
	}))

	_, err := decodeBuildOutput(&stream, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "missing Dockerfile")
}

func TestGetCredentials_Local(t *testing.T) {
	e := &Engine{taskDefs: make(map[string]string)}
	creds, err := e.GetCredentials(context.Background(), "local")
	require.NoError(t, err)
	assert.NotEmpty(t, creds.AuthorizationToken)
	assert.Equal(t, "http://localhost", creds.ProxyEndpoint)
}
