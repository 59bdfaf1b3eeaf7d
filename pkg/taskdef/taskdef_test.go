package taskdef

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidthor/shipctl/pkg/deferred"
	"github.com/davidthor/shipctl/pkg/descriptor"
	"github.com/davidthor/shipctl/pkg/errors"
)

func TestRender_RoundTrip(t *testing.T) {
	payload, err := Render(Spec{
		Image:    "repo@sha256:deadbeef",
		Port:     8080,
		Env:      []descriptor.EnvVar{{Name: "MODEL", Value: "gpt-4o"}},
		Secrets:  []SecretRef{{Name: "OPENAI_API_KEY", ValueFrom: "arn:secret:1"}},
		LogGroup: "/ecs/chat-app",
		Region:   "us-west-2",
	})
	require.NoError(t, err)

	var defs []ContainerDefinition
	require.NoError(t, json.Unmarshal([]byte(payload), &defs))
	require.Len(t, defs, 1)

	def := defs[0]
	assert.Equal(t, "app", def.Name)
	assert.Equal(t, "repo@sha256:deadbeef", def.Image)
	assert.True(t, def.Essential)

	require.Len(t, def.PortMappings, 1)
	assert.Equal(t, PortMapping{ContainerPort: 8080, HostPort: 8080, Protocol: "tcp"}, def.PortMappings[0])

	require.Len(t, def.Environment, 1)
	assert.Equal(t, KeyValue{Name: "MODEL", Value: "gpt-4o"}, def.Environment[0])

	require.Len(t, def.Secrets, 1)
	assert.Equal(t, SecretRef{Name: "OPENAI_API_KEY", ValueFrom: "arn:secret:1"}, def.Secrets[0])

	assert.Equal(t, "awslogs", def.LogConfiguration.LogDriver)
	assert.Equal(t, "/ecs/chat-app", def.LogConfiguration.Options["awslogs-group"])
	assert.Equal(t, "us-west-2", def.LogConfiguration.Options["awslogs-region"])
	assert.Equal(t, "app", def.LogConfiguration.Options["awslogs-stream-prefix"])
}

func TestRender_PreservesInsertionOrder(t *testing.T) {
	payload, err := Render(Spec{
		Image: "nginx:latest",
		Port:  80,
		Env: []descriptor.EnvVar{
			{Name: "Z_LAST", Value: "1"},
			{Name: "A_FIRST", Value: "2"},
		},
		LogGroup: "/ecs/app",
		Region:   "us-west-2",
	})
	require.NoError(t, err)

	var defs []ContainerDefinition
	require.NoError(t, json.Unmarshal([]byte(payload), &defs))
	require.Len(t, defs[0].Environment, 2)
	assert.Equal(t, "Z_LAST", defs[0].Environment[0].Name)
	assert.Equal(t, "A_FIRST", defs[0].Environment[1].Name)
}

func TestRender_EmptyListsNotNull(t *testing.T) {
	payload, err := Render(Spec{Image: "nginx:latest", Port: 80, LogGroup: "/ecs/app", Region: "us-west-2"})
	require.NoError(t, err)

	assert.Contains(t, payload, `"environment":[]`)
	assert.Contains(t, payload, `"secrets":[]`)
}

func TestRender_KeyCollision(t *testing.T) {
	_, err := Render(Spec{
		Image:    "nginx:latest",
		Port:     80,
		Env:      []descriptor.EnvVar{{Name: "API_KEY", Value: "plain"}},
		Secrets:  []SecretRef{{Name: "API_KEY", ValueFrom: "arn:secret:1"}},
		LogGroup: "/ecs/app",
		Region:   "us-west-2",
	})
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeKeyCollision))
}

func TestCompose_ResolvesAfterAllInputs(t *testing.T) {
	image := deferred.New[string]()
	logGroup := deferred.New[string]()
	arn := deferred.New[string]()

	payload := Compose(
		[]descriptor.EnvVar{{Name: "MODEL", Value: "gpt-4o"}},
		[]string{"OPENAI_API_KEY"},
		deferred.All(arn),
		image, logGroup,
		"us-west-2", 8080,
	)

	_ = image.Resolve("repo@sha256:deadbeef")
	_ = logGroup.Resolve("/ecs/chat-app")
	if _, ok := payload.Get(); ok {
		t.Fatal("payload resolved before secret ARN")
	}

	_ = arn.Resolve("arn:secret:1")

	v, ok := payload.Get()
	require.True(t, ok)

	var defs []ContainerDefinition
	require.NoError(t, json.Unmarshal([]byte(v), &defs))
	assert.Equal(t, "arn:secret:1", defs[0].Secrets[0].ValueFrom)
}
