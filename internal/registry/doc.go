// Package registry tracks the running topology: for each component name,
// the identifier currently installed and its position in the six-state
// lifecycle machine of spec §3 (NEW -> INSTALLED -> STARTING -> RUNNING ->
// STOPPING -> FINISHED, with BROKEN/ERRORED sinks).
//
// Instance generalizes internal/services.BaseService: state mutates under
// a lock, the state-change callback fires outside it to avoid deadlocking
// a caller that itself touches the registry. Registry generalizes
// internal/services.ServiceRegistry's RWMutex-guarded map from a bare
// service name key to a full component.Identifier, since spec §3's
// invariant ("no two components may run under the same name at different
// versions simultaneously") is exactly what the teacher's by-name registry
// already enforces by construction — replacing an entry for a name retires
// whatever version was there before.
package registry
