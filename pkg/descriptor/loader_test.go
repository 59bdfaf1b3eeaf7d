package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const yamlDescriptorDoc = `
name: chat-app
source:
  buildContext: ../app
port: 8080
network:
  vpcId: vpc-0123
  subnetIds:
    - subnet-a
    - subnet-b
tlsCertificateArn: arn:aws:acm:us-west-2:1:certificate/abc
env:
  MODEL: gpt-4o
  TEMPERATURE: "0.2"
secrets:
  OPENAI_API_KEY: arn:aws:secretsmanager:us-west-2:1:secret:openai
  SESSION_KEY: super-secret
owner: platform-team
autoscaling:
  enabled: true
  min: 1
  max: 5
`

func TestLoadFromBytes_YAML(t *testing.T) {
	loader := NewLoader()

	desc, err := loader.LoadFromBytes([]byte(yamlDescriptorDoc), "service.yaml")
	require.NoError(t, err)

	assert.Equal(t, "chat-app", desc.Name)
	assert.Equal(t, "../app", desc.BuildContext)
	assert.Empty(t, desc.ImageRef)
	assert.Equal(t, 8080, desc.ListenPort)
	assert.Equal(t, "arn:aws:acm:us-west-2:1:certificate/abc", desc.TLSCertificateRef)
	assert.Equal(t, "platform-team", desc.OwnerTag)

	// Defaults filled in
	assert.Equal(t, DefaultCPUUnits, desc.CPUUnits)
	assert.Equal(t, DefaultMemoryMiB, desc.MemoryMiB)
	assert.Equal(t, DefaultDesiredCount, desc.DesiredCount)

	require.True(t, desc.Network.Complete())
	assert.Equal(t, []string{"subnet-a", "subnet-b"}, desc.Network.SubnetIDs)

	// Env keeps file order
	require.Len(t, desc.Env, 2)
	assert.Equal(t, EnvVar{Name: "MODEL", Value: "gpt-4o"}, desc.Env[0])
	assert.Equal(t, EnvVar{Name: "TEMPERATURE", Value: "0.2"}, desc.Env[1])

	// ARN values become external references, everything else is literal
	require.Len(t, desc.Secrets, 2)
	assert.True(t, desc.Secrets[0].External())
	assert.Equal(t, "arn:aws:secretsmanager:us-west-2:1:secret:openai", desc.Secrets[0].ValueFrom)
	assert.False(t, desc.Secrets[1].External())
	assert.Equal(t, "super-secret", desc.Secrets[1].Value)

	assert.True(t, desc.Autoscaling.Enabled)
	assert.Equal(t, 1, desc.Autoscaling.MinCount)
	assert.Equal(t, 5, desc.Autoscaling.MaxCount)
}

func TestLoadFromBytes_YAML_SourceShorthand(t *testing.T) {
	doc := `
name: chat-app
source: ../app
port: 80
`
	desc, err := NewLoader().LoadFromBytes([]byte(doc), "service.yml")
	require.NoError(t, err)
	assert.Equal(t, "../app", desc.BuildContext)
}

func TestLoadFromBytes_YAML_SecretObjectForm(t *testing.T) {
	doc := `
name: chat-app
source: ../app
port: 8080
secrets:
  SESSION_KEY: super-secret
  ODD_LITERAL:
    value: "arn:prefixed-but-literal"
  OPENAI_API_KEY:
    valueFrom: arn:aws:secretsmanager:us-west-2:1:secret:openai
`
	desc, err := NewLoader().LoadFromBytes([]byte(doc), "service.yaml")
	require.NoError(t, err)

	require.Len(t, desc.Secrets, 3)
	assert.Equal(t, "super-secret", desc.Secrets[0].Value)

	// Explicit value wins over the arn: prefix heuristic
	assert.False(t, desc.Secrets[1].External())
	assert.Equal(t, "arn:prefixed-but-literal", desc.Secrets[1].Value)

	assert.True(t, desc.Secrets[2].External())
	assert.Equal(t, "arn:aws:secretsmanager:us-west-2:1:secret:openai", desc.Secrets[2].ValueFrom)
}

func TestLoadFromBytes_YAML_Invalid(t *testing.T) {
	doc := `
name: chat-app
source:
  image: nginx:latest
  buildContext: ../app
port: 80
`
	_, err := NewLoader().LoadFromBytes([]byte(doc), "service.yaml")
	require.Error(t, err)
}

const hclDescriptorDoc = `
name = "chat-app"
port = 8080
cpu  = 512

source {
  image = "nginx:latest"
}

env {
  MODEL       = "gpt-4o"
  TEMPERATURE = "0.2"
}

secrets {
  OPENAI_API_KEY = "arn:aws:secretsmanager:us-west-2:1:secret:openai"
}

autoscaling {
  enabled = true
  min     = 2
  max     = 6
}
`

func TestLoadFromBytes_HCL(t *testing.T) {
	desc, err := NewLoader().LoadFromBytes([]byte(hclDescriptorDoc), "service.hcl")
	require.NoError(t, err)

	assert.Equal(t, "chat-app", desc.Name)
	assert.Equal(t, "nginx:latest", desc.ImageRef)
	assert.Equal(t, 8080, desc.ListenPort)
	assert.Equal(t, 512, desc.CPUUnits)
	assert.Equal(t, DefaultMemoryMiB, desc.MemoryMiB)

	require.Len(t, desc.Env, 2)
	assert.Equal(t, "MODEL", desc.Env[0].Name)
	assert.Equal(t, "TEMPERATURE", desc.Env[1].Name)

	require.Len(t, desc.Secrets, 1)
	assert.True(t, desc.Secrets[0].External())

	assert.True(t, desc.Autoscaling.Enabled)
	assert.Equal(t, 2, desc.Autoscaling.MinCount)
	assert.Equal(t, 6, desc.Autoscaling.MaxCount)
}

func TestLoadFromBytes_HCL_SecretObjectForm(t *testing.T) {
	doc := `
name = "chat-app"
port = 8080

source {
  image = "nginx:latest"
}

secrets {
  ODD_LITERAL    = { value = "arn:prefixed-but-literal" }
  OPENAI_API_KEY = { value_from = "arn:aws:secretsmanager:us-west-2:1:secret:openai" }
}
`
	desc, err := NewLoader().LoadFromBytes([]byte(doc), "service.hcl")
	require.NoError(t, err)

	require.Len(t, desc.Secrets, 2)
	assert.False(t, desc.Secrets[0].External())
	assert.Equal(t, "arn:prefixed-but-literal", desc.Secrets[0].Value)
	assert.True(t, desc.Secrets[1].External())
}

func TestLoadFromBytes_HCL_ParseError(t *testing.T) {
	_, err := NewLoader().LoadFromBytes([]byte(`name = `), "service.hcl")
	require.Error(t, err)
}
