// Package remote drives a running wfpath server over Socket.IO.
package remote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"time"

	"github.com/zishang520/engine.io-client-go/transports"
	"github.com/zishang520/engine.io/v2/types"
	"github.com/zishang520/socket.io-client-go/socket"
	"go.uber.org/zap"

	"github.com/joshharrison/wfpath/internal/server"
)

const defaultTimeout = 15 * time.Second

// Client connects to the server's Socket.IO endpoint for one exchange at a
// time.
type Client struct {
	URL     string        // e.g. http://127.0.0.1:7842
	Timeout time.Duration // whole exchange, connect included
	Logger  *zap.Logger
}

// New creates a Client for baseURL.
func New(baseURL string, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{URL: baseURL, Timeout: defaultTimeout, Logger: logger}
}

// Select asks the server to select taskID ("" clears the selection) and
// returns the path the server broadcasts in answer.
func (c *Client) Select(ctx context.Context, taskID string) (*server.PathPayload, error) {
	timeout := c.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	answers := make(chan server.PathPayload, 8)
	io, err := c.connect(ctx, func(io *socket.Socket) {
		// Another client may change the selection meanwhile, so only a
		// payload for the requested task counts as the answer.
		io.On(types.EventName(server.EventSelection), func(args ...any) {
			if len(args) == 0 {
				return
			}
			p, err := DecodePath(args[0])
			if err != nil {
				c.Logger.Warn("undecodable selection event", zap.Error(err))
				return
			}
			select {
			case answers <- p:
			default:
			}
		})
	})
	if err != nil {
		return nil, err
	}
	defer io.Disconnect()

	if taskID == "" {
		err = io.Emit(server.EventClear)
	} else {
		err = io.Emit(server.EventSelect, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("emit selection: %w", err)
	}

	for {
		select {
		case p := <-answers:
			if p.Selected == taskID {
				return &p, nil
			}
		case <-ctx.Done():
			return nil, fmt.Errorf("waiting for selection answer: %w", ctx.Err())
		}
	}
}

// connect opens a websocket connection. setup runs before connecting so
// no event sent on connect is missed.
func (c *Client) connect(ctx context.Context, setup func(*socket.Socket)) (*socket.Socket, error) {
	parsed, err := url.Parse(c.URL)
	if err != nil {
		return nil, fmt.Errorf("parse server URL: %w", err)
	}
	if parsed.Scheme == "" || parsed.Host == "" {
		return nil, fmt.Errorf("server URL %q needs scheme and host", c.URL)
	}

	opts := socket.DefaultOptions()
	opts.SetPath("/socket.io")
	opts.SetTransports(types.NewSet(transports.WebSocket))
	opts.SetReconnection(false)

	baseURL := fmt.Sprintf("%s://%s", parsed.Scheme, parsed.Host)
	manager := socket.NewManager(baseURL, opts)
	io := manager.Socket("/", opts)
	io.OnAny(func(args ...any) {
		if len(args) > 0 {
			name, _ := args[0].(string)
			c.Logger.Debug("event received", zap.String("event", name))
		}
	})
	if setup != nil {
		setup(io)
	}

	connected := make(chan error, 1)
	io.Once(types.EventName("connect"), func(...any) {
		c.Logger.Debug("connected", zap.String("sid", io.Id()))
		connected <- nil
	})
	io.Once(types.EventName("connect_error"), func(errs ...any) {
		err := errors.New("connect error")
		if len(errs) > 0 {
			if e, ok := errs[0].(error); ok {
				err = e
			}
		}
		select {
		case connected <- err:
		default:
		}
	})

	io.Connect()

	select {
	case err := <-connected:
		if err != nil {
			io.Disconnect()
			return nil, fmt.Errorf("socket.io connection failed: %w", err)
		}
		return io, nil
	case <-ctx.Done():
		io.Disconnect()
		return nil, fmt.Errorf("waiting for socket.io connection: %w", ctx.Err())
	}
}

// DecodePath converts a decoded event argument back into a PathPayload.
func DecodePath(arg any) (server.PathPayload, error) {
	var p server.PathPayload
	raw, err := json.Marshal(arg)
	if err != nil {
		return p, fmt.Errorf("re-encode payload: %w", err)
	}
	if err := json.Unmarshal(raw, &p); err != nil {
		return p, fmt.Errorf("decode payload: %w", err)
	}
	return p, nil
}
