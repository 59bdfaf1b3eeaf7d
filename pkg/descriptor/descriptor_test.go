package descriptor

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidthor/shipctl/pkg/errors"
)

func validDescriptor() *Descriptor {
	d := &Descriptor{
		Name:       "chat-app",
		ImageRef:   "nginx:latest",
		ListenPort: 8080,
	}
	d.ApplyDefaults()
	return d
}

func TestValidate_SourceXOR_Both(t *testing.T) {
	d := validDescriptor()
	d.BuildContext = "../app"

	err := d.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidDescriptor))
}

func TestValidate_SourceXOR_Neither(t *testing.T) {
	d := validDescriptor()
	d.ImageRef = ""

	err := d.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidDescriptor))
}

func TestValidate_InvalidImageRef(t *testing.T) {
	d := validDescriptor()
	d.ImageRef = "UPPER CASE NOT ALLOWED"

	err := d.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidDescriptor))
}

func TestValidate_NonPositiveNumerics(t *testing.T) {
	for _, mutate := range []func(*Descriptor){
		func(d *Descriptor) { d.ListenPort = 0 },
		func(d *Descriptor) { d.CPUUnits = -1 },
		func(d *Descriptor) { d.MemoryMiB = 0 },
		func(d *Descriptor) { d.DesiredCount = -2 },
	} {
		d := validDescriptor()
		mutate(d)
		err := d.Validate()
		assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidDescriptor), "expected INVALID_DESCRIPTOR, got %v", err)
	}
}

func TestValidate_KeyCollision(t *testing.T) {
	d := validDescriptor()
	d.Env = []EnvVar{{Name: "OPENAI_API_KEY", Value: "plaintext"}}
	d.Secrets = []Secret{{Name: "OPENAI_API_KEY", ValueFrom: "arn:aws:secretsmanager:us-west-2:1:secret:x"}}

	err := d.Validate()
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeKeyCollision))
}

func TestValidate_DuplicateEnvKeys(t *testing.T) {
	d := validDescriptor()
	d.Env = []EnvVar{{Name: "MODEL", Value: "a"}, {Name: "MODEL", Value: "b"}}

	err := d.Validate()
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidDescriptor))
}

func TestValidate_SecretValueXOR(t *testing.T) {
	d := validDescriptor()
	d.Secrets = []Secret{{Name: "KEY", Value: "literal", ValueFrom: "arn:x"}}
	assert.True(t, errors.IsCode(d.Validate(), errors.ErrCodeInvalidDescriptor))

	d.Secrets = []Secret{{Name: "KEY"}}
	assert.True(t, errors.IsCode(d.Validate(), errors.ErrCodeInvalidDescriptor))
}

func TestApplyDefaults(t *testing.T) {
	d := &Descriptor{Name: "app", ImageRef: "nginx:latest", ListenPort: 80}
	d.ApplyDefaults()

	assert.Equal(t, DefaultCPUUnits, d.CPUUnits)
	assert.Equal(t, DefaultMemoryMiB, d.MemoryMiB)
	assert.Equal(t, DefaultDesiredCount, d.DesiredCount)
	assert.Equal(t, DefaultHealthCheckPath, d.HealthCheckPath)
	assert.Equal(t, DefaultLogRetentionDays, d.LogRetentionDays)
}

func TestApplyDefaults_Autoscaling(t *testing.T) {
	d := &Descriptor{Name: "app", ImageRef: "nginx:latest", ListenPort: 80}
	d.Autoscaling.Enabled = true
	d.ApplyDefaults()

	assert.Equal(t, 1, d.Autoscaling.MinCount)
	assert.Equal(t, d.DesiredCount*2, d.Autoscaling.MaxCount)
}

func TestNetwork_Complete(t *testing.T) {
	var n *Network
	assert.False(t, n.Complete())
	assert.False(t, (&Network{VPCID: "vpc-1"}).Complete())
	assert.False(t, (&Network{SubnetIDs: []string{"subnet-a"}}).Complete())
	assert.True(t, (&Network{VPCID: "vpc-1", SubnetIDs: []string{"subnet-a", "subnet-b"}}).Complete())
}
