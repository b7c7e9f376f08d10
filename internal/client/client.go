package client

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"os"
	"sync/atomic"
	"time"

	"fleetd/internal/deployment"
	"fleetd/internal/ipcserver"
)

// Client dials a running fleetd kernel's local IPC socket and issues
// request/response calls against it, one in flight at a time per
// connection — cmd/'s commands are short-lived processes that make a
// handful of calls and exit, so no multiplexing is needed.
type Client struct {
	conn   net.Conn
	reader *bufio.Reader
	enc    *json.Encoder
	nextID int64
}

// Dial connects to the Unix domain socket at socketPath. A missing socket
// usually means no fleetd daemon is running locally.
func Dial(socketPath string) (*Client, error) {
	conn, err := net.Dial("unix", socketPath)
	if err != nil {
		if os.IsNotExist(unwrapPathErr(err)) {
			return nil, fmt.Errorf("client: no fleetd daemon listening at %s (is it running?)", socketPath)
		}
		return nil, fmt.Errorf("client: dial %s: %w", socketPath, err)
	}
	return &Client{
		conn:   conn,
		reader: bufio.NewReader(conn),
		enc:    json.NewEncoder(conn),
	}, nil
}

func unwrapPathErr(err error) error {
	if pe, ok := err.(*net.OpError); ok {
		return pe.Err
	}
	return err
}

func (c *Client) Close() error {
	return c.conn.Close()
}

// call sends a request for method with params and decodes result into out.
// out may be nil for a method with no meaningful result.
func (c *Client) call(method string, params interface{}, out interface{}) error {
	id := fmt.Sprintf("%d", atomic.AddInt64(&c.nextID, 1))

	var raw json.RawMessage
	if params != nil {
		b, err := json.Marshal(params)
		if err != nil {
			return fmt.Errorf("client: marshal %s params: %w", method, err)
		}
		raw = b
	}

	if err := c.enc.Encode(ipcserver.Request{ID: id, Method: method, Params: raw}); err != nil {
		return fmt.Errorf("client: send %s: %w", method, err)
	}

	line, err := c.reader.ReadBytes('\n')
	if len(line) == 0 && err != nil {
		return fmt.Errorf("client: read %s response: %w", method, err)
	}

	var resp ipcserver.Response
	if err := json.Unmarshal(line, &resp); err != nil {
		return fmt.Errorf("client: decode %s response: %w", method, err)
	}
	if resp.Error != "" {
		return fmt.Errorf("%s", resp.Error)
	}
	if out == nil || len(resp.Result) == 0 {
		return nil
	}
	return json.Unmarshal(resp.Result, out)
}

func (c *Client) ListComponents() ([]ipcserver.ComponentSummary, error) {
	var out []ipcserver.ComponentSummary
	err := c.call(ipcserver.MethodListComponents, nil, &out)
	return out, err
}

func (c *Client) GetComponentDetails(name string) (ipcserver.ComponentDetails, error) {
	var out ipcserver.ComponentDetails
	err := c.call(ipcserver.MethodGetComponentDetails, map[string]string{"name": name}, &out)
	return out, err
}

func (c *Client) RestartComponent(name string) error {
	return c.call(ipcserver.MethodRestartComponent, map[string]string{"name": name}, nil)
}

func (c *Client) StopComponent(name string) error {
	return c.call(ipcserver.MethodStopComponent, map[string]string{"name": name}, nil)
}

func (c *Client) UpdateRecipesAndArtifacts() error {
	return c.call(ipcserver.MethodUpdateRecipesAndArtifacts, nil, nil)
}

// CreateLocalDeployment submits doc and returns the new deployment's ID.
func (c *Client) CreateLocalDeployment(doc deployment.Document) (string, error) {
	var out struct {
		DeploymentID string `json:"deploymentId"`
	}
	err := c.call(ipcserver.MethodCreateLocalDeployment, map[string]interface{}{"document": doc}, &out)
	return out.DeploymentID, err
}

func (c *Client) GetLocalDeploymentStatus(id string) (*deployment.DeploymentResult, error) {
	var out deployment.DeploymentResult
	err := c.call(ipcserver.MethodGetLocalDeploymentStatus, map[string]string{"deploymentId": id}, &out)
	if err != nil {
		return nil, err
	}
	if out.DeploymentID == "" {
		return nil, nil
	}
	return &out, nil
}

func (c *Client) ListLocalDeployments() ([]deployment.DeploymentResult, error) {
	var out []deployment.DeploymentResult
	err := c.call(ipcserver.MethodListLocalDeployments, nil, &out)
	return out, err
}

// AwaitDeployment polls GetLocalDeploymentStatus at interval until the
// deployment reaches a terminal status or timeout elapses, the local analogue of watching a cloud job's shadow document.
func (c *Client) AwaitDeployment(id string, interval, timeout time.Duration) (*deployment.DeploymentResult, error) {
	deadline := time.Now().Add(timeout)
	for {
		res, err := c.GetLocalDeploymentStatus(id)
		if err != nil {
			return nil, err
		}
		if res != nil {
			return res, nil
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("client: deployment %s did not complete within %s", id, timeout)
		}
		time.Sleep(interval)
	}
}
