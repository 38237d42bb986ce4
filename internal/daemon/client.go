package daemon

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/andlab/doctas/internal/bus"
)

// Client talks to a running daemon over the control socket.
type Client struct {
	send func(cmd byte, arg string) (string, error)
}

func NewClient() *Client {
	return &Client{send: bus.Send}
}

// Do runs one command. An ERR reply becomes an error; otherwise the reply
// body is returned.
func (c *Client) Do(cmd byte, arg string) (string, error) {
	line, err := c.send(cmd, arg)
	if err != nil {
		return "", fmt.Errorf("daemon not reachable: %w", err)
	}
	kind, body := bus.ParseReply(line)
	switch kind {
	case "OK", "STATUS":
		return body, nil
	case "ERR":
		return "", errors.New(body)
	default:
		return "", fmt.Errorf("unexpected reply %q", line)
	}
}

func (c *Client) Status() (Status, error) {
	body, err := c.Do(bus.CmdStatus, "")
	if err != nil {
		return Status{}, err
	}
	var s Status
	if err := json.Unmarshal([]byte(body), &s); err != nil {
		return Status{}, fmt.Errorf("decode status: %w", err)
	}
	return s, nil
}
