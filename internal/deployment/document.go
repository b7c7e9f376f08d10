package deployment

import (
	"time"

	"fleetd/internal/configresolve"
	"fleetd/internal/lifecycle"
)

// RootComponentVersion is one entry of a deployment document's
// rootComponents map (§6).
type RootComponentVersion struct {
	Version string `json:"version"`
}

// Document is the parsed §6 deployment document: what groupName must run,
// at which root versions, with which per-component configuration
// updates, under which failure-handling and update-check policies.
type Document struct {
	GroupName                     string                                        `json:"groupName"`
	Timestamp                     int64                                         `json:"timestamp"`
	RootComponents                map[string]RootComponentVersion               `json:"rootComponents"`
	ComponentConfigurationUpdates map[string]configresolve.ConfigurationUpdate  `json:"componentConfigurationUpdates"`
	FailureHandlingPolicy         lifecycle.FailureHandlingPolicy               `json:"failureHandlingPolicy"`
	ComponentUpdatePolicy         lifecycle.ComponentUpdatePolicy               `json:"componentUpdatePolicy"`
}

// Task is one unit of work accepted by the Orchestrator: a deployment ID
// (the "testFleetConfigArn<N>" analogue of §4.5 step 1) plus the document
// to apply and the overall deadline the lifecycle merger budgets its
// suspension points against (§5).
type Task struct {
	ID       string
	Document Document
	Deadline time.Time
}

func (t Task) key() string { return t.ID }

// DeploymentResult is what the orchestrator emits once a task reaches a
// terminal §4.5 status.
type DeploymentResult struct {
	DeploymentID string
	GroupName    string
	Status       lifecycle.Status
	Err          error
}
