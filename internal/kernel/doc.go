// Package kernel is fleetd's composition root, grounded on
// internal/app.Application/NewApplication/Run's two-phase bootstrap
// pattern (load config, wire services; then run until shutdown). Where the
// teacher wires config.MusterConfig and orchestrator.Manager, Kernel wires
// internal/store, internal/resolver, internal/configresolve,
// internal/registry, internal/events, internal/deploydir,
// internal/procrunner, internal/lifecycle, internal/deployment, and
// internal/ipcserver into the single deployment.PipelineFunc §4.1-§4.4
// describe end to end.
package kernel
