package engine

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/davidthor/shipctl/pkg/descriptor"
	"github.com/davidthor/shipctl/pkg/errors"
	"github.com/davidthor/shipctl/pkg/provision/sim"
)

func testEngine(provisioner *sim.Engine) *Engine {
	return New(provisioner, Options{Region: "us-west-2", Parallelism: 4})
}

func testDescriptor() *descriptor.Descriptor {
	return &descriptor.Descriptor{
		Name:       "chat-app",
		ImageRef:   "nginx:latest",
		ListenPort: 8080,
	}
}

func TestDeploy_ServiceURLSchemeFollowsTLS(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := testEngine(sim.NewEngine()).Deploy(ctx, testDescriptor())
	require.NoError(t, err)

	url, err := result.ServiceURL.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "http://"), "got %q", url)

	withTLS := testDescriptor()
	withTLS.TLSCertificateRef = "arn:aws:acm:us-west-2:1:certificate/abc"
	result, err = testEngine(sim.NewEngine()).Deploy(ctx, withTLS)
	require.NoError(t, err)

	url, err = result.ServiceURL.Wait(ctx)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(url, "https://"), "got %q", url)
}

func TestDeploy_MetricsURL(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	result, err := testEngine(sim.NewEngine()).Deploy(ctx, testDescriptor())
	require.NoError(t, err)
	require.NoError(t, result.Wait(ctx))

	url, ok := result.MetricsURL.Get()
	require.True(t, ok)
	assert.Equal(t,
		"https://us-west-2.console.aws.amazon.com/ecs/v2/clusters/chat-app-cluster/services/chat-app-svc/metrics?region=us-west-2",
		url)
}

func TestDeploy_InvalidDescriptor(t *testing.T) {
	desc := testDescriptor()
	desc.ListenPort = 0

	result, err := testEngine(sim.NewEngine()).Deploy(context.Background(), desc)
	require.Error(t, err)
	assert.True(t, errors.IsCode(err, errors.ErrCodeInvalidDescriptor))
	assert.Nil(t, result)
}

func TestDeploy_ExecutionFailureRejectsOutputs(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provisioner := sim.NewEngine()
	provisioner.FailOn("chat-app-lb", fmt.Errorf("quota exceeded"))

	result, err := testEngine(provisioner).Deploy(ctx, testDescriptor())
	require.Error(t, err)
	require.NotNil(t, result)

	_, werr := result.ServiceURL.Wait(ctx)
	require.Error(t, werr)
	assert.True(t, errors.IsCode(werr, errors.ErrCodeProvisioning))
}

func TestDeploy_FailureReportsRequestID(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	provisioner := sim.NewEngine()
	provisioner.FailOn("chat-app-lb", fmt.Errorf("quota exceeded"))

	_, err := testEngine(provisioner).Deploy(ctx, testDescriptor())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "chat-app/loadBalancer/chat-app-lb")

	var perr *errors.Error
	require.True(t, stderrors.As(err, &perr))
	assert.Equal(t, "chat-app/loadBalancer/chat-app-lb", errors.RequestID(perr))
}

func TestPlan_DoesNotProvision(t *testing.T) {
	provisioner := sim.NewEngine()
	g, err := testEngine(provisioner).Plan(context.Background(), testDescriptor())
	require.NoError(t, err)
	assert.Greater(t, g.Len(), 0)
	assert.Empty(t, provisioner.IssuedNames())
}
