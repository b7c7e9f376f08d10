// Package events implements the update-check deferral protocol of spec
// §4.4 phase 3: before the lifecycle merger stops or reconfigures a
// component, it publishes a PreComponentUpdate event and collects
// DeferComponentUpdate votes from subscribed components within a bounded
// timeout.
//
// The mechanism is grounded on
// internal/reconciler.StateChangeBridge.processEvents: a goroutine reads a
// channel under a cancellable context and a sync.WaitGroup tracks
// in-flight work, generalized here from one-way state-change broadcast to
// a request/response deferral vote. Deferral is a hint, not a veto — a
// subscriber that never replies, or that the bus has no record of, is
// simply absent from the collected votes.
package events
