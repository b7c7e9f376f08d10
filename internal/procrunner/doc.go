// Package procrunner implements lifecycle.ServiceRunner by shelling out to
// a component recipe's lifecycle stage scripts, generalizing
// internal/containerizer.DockerRuntime's process-execution shape (an
// overridable exec.CommandContext variable for tests, CombinedOutput
// capture, and a logging.Info/Debug call bracketing every external
// command) from container lifecycle management to recipe stage scripts.
//
// Start runs the install and startup stages synchronously (if declared and
// not skipped), then either launches the run stage as a long-lived
// background process or, for install/startup-only recipes, transitions
// straight to FINISHED. Stop runs the shutdown stage and terminates any
// tracked background process.
//
// Runner.SubscribeUpdateCheck wires a component's declared update-check stage as
// an events.Bus subscriber, so a plain recipe-described component can vote
// to defer a pending update (§4.4 phase 3) without implementing its own
// IPC client.
package procrunner
