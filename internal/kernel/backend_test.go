package kernel

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"fleetd/internal/deployment"
)

func TestKernel_ListComponentsEmpty(t *testing.T) {
	k := newTestKernel(t)
	out, err := k.ListComponents(context.Background())
	require.NoError(t, err)
	assert.Empty(t, out)
}

func TestKernel_GetComponentDetailsUnknownErrors(t *testing.T) {
	k := newTestKernel(t)
	_, err := k.GetComponentDetails(context.Background(), "NoSuchComponent")
	assert.Error(t, err)
}

func TestKernel_RestartAndStopUnknownComponentErrors(t *testing.T) {
	k := newTestKernel(t)

	err := k.RestartComponent(context.Background(), "NoSuchComponent")
	assert.Error(t, err)

	err = k.StopComponent(context.Background(), "NoSuchComponent")
	assert.Error(t, err)
}

func TestKernel_UpdateRecipesAndArtifactsOnEmptyStore(t *testing.T) {
	k := newTestKernel(t)
	// Nothing has ever been fetched; pruning against an empty topology
	// over directories that don't exist yet must be a no-op, not an error.
	err := k.UpdateRecipesAndArtifacts(context.Background())
	require.NoError(t, err)
}

func TestKernel_CreateLocalDeploymentEnqueuesAndIsPending(t *testing.T) {
	k := newTestKernel(t)

	doc := deployment.Document{GroupName: "TestGroup"}
	id, err := k.CreateLocalDeployment(context.Background(), doc)
	require.NoError(t, err)
	assert.NotEmpty(t, id)

	assert.Equal(t, 1, k.orch.Len())

	// No worker is consuming the queue in this test, so the task has not
	// reached a terminal status yet.
	res, err := k.GetLocalDeploymentStatus(context.Background(), id)
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestKernel_GetLocalDeploymentStatusUnknownID(t *testing.T) {
	k := newTestKernel(t)
	res, err := k.GetLocalDeploymentStatus(context.Background(), "does-not-exist")
	require.NoError(t, err)
	assert.Nil(t, res)
}

func TestKernel_ListLocalDeploymentsReflectsRecordedResults(t *testing.T) {
	k := newTestKernel(t)
	assert.Empty(t, k.ListLocalDeployments(context.Background()))

	k.recordResult(deployment.DeploymentResult{DeploymentID: "d1", GroupName: "G", Status: "SUCCESSFUL"})

	out := k.ListLocalDeployments(context.Background())
	require.Len(t, out, 1)
	assert.Equal(t, "d1", out[0].DeploymentID)
}
