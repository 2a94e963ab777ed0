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
	if c.conn != nil {
		return c.conn.Close()
	}
	return nil
}

func call[Req, Resp any](c *Client, method string, req Req) (*Resp, error) {
	var resp Resp
	if err := c.client.Call(ServiceName+"."+method, req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Status retrieves the daemon status.
func (c *Client) Status() (*StatusResponse, error) {
	return call[StatusRequest, StatusResponse](c, "Status", StatusRequest{})
}

// Sync queues a session, or runs one and waits when wait is set.
func (c *Client) Sync(trigger string, wait bool) (*SyncResponse, error) {
	return call[SyncRequest, SyncResponse](c, "Sync", SyncRequest{Trigger: trigger, Wait: wait})
}

// OpenURI hands a launch URI to the lifecycle tracker.
func (c *Client) OpenURI(uri string) (*OpenURIResponse, error) {
	return call[OpenURIRequest, OpenURIResponse](c, "OpenURI", OpenURIRequest{URI: uri})
}

// Launch starts or installs a game by ID.
func (c *Client) Launch(gameID string) (*OpenURIResponse, error) {
	return call[OpenURIRequest, OpenURIResponse](c, "OpenURI", OpenURIRequest{GameID: gameID})
}

// GameEvent forwards a stopped or installed event.
func (c *Client) GameEvent(event, gameID string) (*GameEventResponse, error) {
	return call[GameEventRequest, GameEventResponse](c, "GameEvent", GameEventRequest{Event: event, GameID: gameID})
}

// Games lists library games.
func (c *Client) Games(query string) (*GamesResponse, error) {
	return call[GamesRequest, GamesResponse](c, "Games", GamesRequest{Query: query})
}

// History lists recent sessions.
func (c *Client) History(limit int) (*HistoryResponse, error) {
	return call[HistoryRequest, HistoryResponse](c, "History", HistoryRequest{Limit: limit})
}

// TestNotification triggers a notification test via the daemon.
func (c *Client) TestNotification() (*TestNotificationResponse, error) {
	return call[TestNotificationRequest, TestNotificationResponse](c, "TestNotification", TestNotificationRequest{})
}

// Shutdown asks the daemon process to exit.
func (c *Client) Shutdown() (*ShutdownResponse, error) {
	return call[ShutdownRequest, ShutdownResponse](c, "Shutdown", ShutdownRequest{})
}
