// Package client is the cobra-command-side half of internal/ipcserver's
// Unix-socket protocol: a thin synchronous RPC client, grounded on
// internal/cli.ToolExecutor's role (the one object cmd/ commands dial
// through to reach the running server) without that executor's MCP
// transport, OAuth, or remote-endpoint machinery, none of which apply to a
// connection that never leaves the local machine.
package client
