package remote

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sony/gobreaker/v2"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/status"

	"github.com/banshee-data/fallwatch/internal/inference"
	"github.com/banshee-data/fallwatch/internal/monitoring"
)

// ClientConfig tunes the remote engine client.
type ClientConfig struct {
	// Timeout bounds each call; zero leaves the caller's deadline alone.
	Timeout time.Duration

	// The breaker opens after MaxConsecutiveFailures server-side failures
	// and probes again after OpenTimeout.
	BreakerName            string
	MaxConsecutiveFailures uint32
	OpenTimeout            time.Duration

	// MaxMessageSize caps each request and response; zero sizes it from
	// the server's input spec.
	MaxMessageSize int
}

// DefaultClientConfig returns a 5s timeout and a breaker that trips after
// five consecutive failures.
func DefaultClientConfig() ClientConfig {
	return ClientConfig{
		Timeout:                5 * time.Second,
		BreakerName:            "remote-inference",
		MaxConsecutiveFailures: 5,
		OpenTimeout:            30 * time.Second,
	}
}

// Client is an inference.Engine backed by a remote Server.
type Client struct {
	conn    *grpc.ClientConn
	owned   bool
	spec    inference.TensorSpec
	timeout time.Duration
	maxMsg  int
	breaker *gobreaker.CircuitBreaker[*InvokeResponse]
}

var _ inference.Engine = (*Client)(nil)

// Dial connects to target and fetches the engine's input spec.
func Dial(ctx context.Context, target string, cfg ClientConfig, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(target, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create grpc client for %s: %w", target, err)
	}
	c, err := NewClient(ctx, conn, cfg)
	if err != nil {
		conn.Close()
		return nil, err
	}
	c.owned = true
	return c, nil
}

// NewClient uses an existing connection. The caller keeps ownership of conn.
func NewClient(ctx context.Context, conn *grpc.ClientConn, cfg ClientConfig) (*Client, error) {
	c := &Client{conn: conn, timeout: cfg.Timeout}
	if cfg.MaxConsecutiveFailures == 0 {
		cfg.MaxConsecutiveFailures = DefaultClientConfig().MaxConsecutiveFailures
	}
	c.breaker = gobreaker.NewCircuitBreaker[*InvokeResponse](gobreaker.Settings{
		Name:        cfg.BreakerName,
		MaxRequests: 1,
		Timeout:     cfg.OpenTimeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= cfg.MaxConsecutiveFailures
		},
		// Bad input and caller cancellation say nothing about server health.
		IsExcluded: func(err error) bool {
			switch status.Code(err) {
			case codes.InvalidArgument, codes.Canceled:
				return true
			}
			return errors.Is(err, context.Canceled)
		},
		OnStateChange: func(name string, from, to gobreaker.State) {
			monitoring.Logf("remote: breaker %s %s -> %s", name, from, to)
		},
	})

	callCtx, cancel := c.callContext(ctx)
	defer cancel()
	var spec inference.TensorSpec
	if err := conn.Invoke(callCtx, methodInputSpec, &InputSpecRequest{}, &spec, grpc.ForceCodec(jsonCodec{})); err != nil {
		return nil, fmt.Errorf("failed to fetch remote input spec: %w", err)
	}
	if err := spec.Validate(); err != nil {
		return nil, fmt.Errorf("remote input spec: %w", err)
	}
	c.spec = spec
	c.maxMsg = cfg.MaxMessageSize
	if c.maxMsg <= 0 {
		c.maxMsg = MaxMessageSize(spec)
	}
	return c, nil
}

// InputSpec implements inference.Engine.
func (c *Client) InputSpec() inference.TensorSpec {
	return c.spec
}

// Invoke implements inference.Engine.
func (c *Client) Invoke(ctx context.Context, input *inference.Tensor) ([]*inference.Tensor, error) {
	resp, err := c.breaker.Execute(func() (*InvokeResponse, error) {
		callCtx, cancel := c.callContext(ctx)
		defer cancel()
		var resp InvokeResponse
		err := c.conn.Invoke(callCtx, methodInvoke, &InvokeRequest{Input: input}, &resp,
			grpc.ForceCodec(jsonCodec{}),
			grpc.MaxCallSendMsgSize(c.maxMsg),
			grpc.MaxCallRecvMsgSize(c.maxMsg))
		if err != nil {
			return nil, err
		}
		return &resp, nil
	})
	if err != nil {
		return nil, fmt.Errorf("remote invoke: %w", err)
	}
	for i, out := range resp.Outputs {
		if err := out.Validate(); err != nil {
			return nil, fmt.Errorf("remote output %d: %w", i, err)
		}
	}
	return resp.Outputs, nil
}

// BreakerState reports the circuit breaker state.
func (c *Client) BreakerState() gobreaker.State {
	return c.breaker.State()
}

// Close closes the connection if Dial created it.
func (c *Client) Close() error {
	if !c.owned {
		return nil
	}
	return c.conn.Close()
}

func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if c.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, c.timeout)
}
