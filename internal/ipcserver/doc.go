// Package ipcserver implements the local IPC surface of spec §6: a Unix
// domain socket, framed as newline-delimited JSON, that fleetd's own cobra
// commands (and nothing else — there is no remote transport) use to drive
// the supervisor.
//
// The socket itself is opened the way the teacher's own aggregator server
// supports systemd socket activation (coreos/go-systemd/v22/activation),
// generalized from the teacher's MCP/stdio and HTTP transports to a single
// long-lived Unix listener: prefer an inherited activation socket, fall
// back to binding socketPath directly. The request/response framing is
// written directly against net.Conn rather than forced through
// mark3labs/mcp-go, since this surface is a small fixed RPC set, not
// dynamic tool-calling.
package ipcserver
