package ipc

import (
	"net"
	"net/rpc"
	"net/rpc/jsonrpc"
	"time"
)

// Client provides RPC access to the daemon.
type Client struct {
	conn   net.Conn
	client *rpc.Client
}

// Dial connects to the IPC server at the given socket path.
func Dial(path string) (*Client, error) {
	conn, err := net.DialTimeout("unix", path, 2*time.Second)
	if err != nil {
		return nil, err
	}
	rpcClient := rpc.NewClientWithCodec(jsonrpc.NewClientCodec(conn))
	return &Client{conn: conn, client: rpcClient}, nil
}

// Close closes the underlying connection.
func (c *Client) Close() error {
	if c.client != nil {
		return c.client.Close()
	}
	return nil
}

func call[Resp any](c *Client, method string, req any) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(ServiceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusResponse](c, "Status", StatusRequest{})
}

// JobList returns active jobs, optionally filtered by phase.
func (c *Client) JobList(phases ...string) (*JobListResponse, error) {
	return call[JobListResponse](c, "JobList", JobListRequest{Phases: phases})
}

// JobAdd admits a torrent and waits for it to start.
func (c *Client) JobAdd(req JobAddRequest) (*JobAddResponse, error) {
	return call[JobAddResponse](c, "JobAdd", req)
}

// JobRemove removes a job by key.
func (c *Client) JobRemove(key string, deleteFiles bool) (*JobRemoveResponse, error) {
	return call[JobRemoveResponse](c, "JobRemove", JobRemoveRequest{Key: key, DeleteFiles: deleteFiles})
}

// SetLimits applies global rate caps in kB/s.
func (c *Client) SetLimits(downKBps, upKBps int) (*SetLimitsResponse, error) {
	return call[SetLimitsResponse](c, "SetLimits", SetLimitsRequest{DownloadKBps: downKBps, UploadKBps: upKBps})
}

// LogTail returns log lines from the daemon.
func (c *Client) LogTail(req LogTailRequest) (*LogTailResponse, error) {
	return call[LogTailResponse](c, "LogTail", req)
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}
