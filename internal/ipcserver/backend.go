package ipcserver

import (
	"context"

	"fleetd/internal/deployment"
)

// ComponentSummary is one ListComponents entry.
type ComponentSummary struct {
	Name    string `json:"name"`
	Version string `json:"version"`
	State   string `json:"state"`
}

// ComponentDetails is the GetComponentDetails response.
type ComponentDetails struct {
	ComponentSummary
	Dependencies  []string    `json:"dependencies"`
	Configuration interface{} `json:"configuration,omitempty"`
	LastError     string      `json:"lastError,omitempty"`
}

// Backend is what the kernel wires ipcserver against: the running
// supervisor's view of components and deployments. One method per §6 RPC.
type Backend interface {
	ListComponents(ctx context.Context) ([]ComponentSummary, error)
	GetComponentDetails(ctx context.Context, name string) (ComponentDetails, error)
	RestartComponent(ctx context.Context, name string) error
	StopComponent(ctx context.Context, name string) error
	UpdateRecipesAndArtifacts(ctx context.Context) error
	CreateLocalDeployment(ctx context.Context, doc deployment.Document) (string, error)
	GetLocalDeploymentStatus(ctx context.Context, id string) (*deployment.DeploymentResult, error)
	ListLocalDeployments(ctx context.Context) []deployment.DeploymentResult
}
