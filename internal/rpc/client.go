package rpc

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/keepalive"

	apperrors "github.com/GriffinCanCode/handwriting-tutor/platform/internal/errors"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/resilience"
	"github.com/GriffinCanCode/handwriting-tutor/platform/internal/trace"
)

// Client calls a remote Scorer with retries behind a circuit breaker.
type Client struct {
	conn    *grpc.ClientConn
	breaker *resilience.Breaker
	retry   resilience.RetryConfig
	timeout time.Duration
}

type clientOptions struct {
	dialOpts []grpc.DialOption
	breaker  resilience.Config
	retry    resilience.RetryConfig
	timeout  time.Duration
}

// Option configures a Client.
type Option func(*clientOptions)

// WithDialOptions appends gRPC dial options.
func WithDialOptions(opts ...grpc.DialOption) Option {
	return func(o *clientOptions) { o.dialOpts = append(o.dialOpts, opts...) }
}

// WithRetry overrides the retry policy.
func WithRetry(cfg resilience.RetryConfig) Option {
	return func(o *clientOptions) { o.retry = cfg }
}

// WithBreaker overrides the circuit breaker settings.
func WithBreaker(cfg resilience.Config) Option {
	return func(o *clientOptions) { o.breaker = cfg }
}

// WithTimeout sets the per-attempt deadline.
func WithTimeout(d time.Duration) Option {
	return func(o *clientOptions) { o.timeout = d }
}

// Dial creates a client for the Scorer at addr. The connection is established
// lazily on the first call.
func Dial(addr string, opts ...Option) (*Client, error) {
	o := clientOptions{
		breaker: resilience.DefaultConfig("scorer"),
		retry:   resilience.DefaultRetryConfig(),
		timeout: DefaultCallTimeout,
	}
	for _, opt := range opts {
		opt(&o)
	}
	if o.breaker.IsFailure == nil {
		// Bad captures are the caller's problem, not the remote's.
		o.breaker.IsFailure = resilience.IsRetryable
	}

	dialOpts := []grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithDefaultCallOptions(
			grpc.CallContentSubtype(CodecName),
			grpc.MaxCallRecvMsgSize(DefaultMaxResponseBytes),
		),
		grpc.WithChainUnaryInterceptor(trace.UnaryClientInterceptor()),
		grpc.WithKeepaliveParams(keepalive.ClientParameters{
			Time:    DefaultKeepaliveTime,
			Timeout: DefaultKeepaliveTimeout,
		}),
	}
	conn, err := grpc.NewClient(addr, append(dialOpts, o.dialOpts...)...)
	if err != nil {
		return nil, apperrors.Wrapf(err, apperrors.Unavailable, "dial scorer %s", addr)
	}

	return &Client{
		conn:    conn,
		breaker: resilience.New(o.breaker),
		retry:   o.retry,
		timeout: o.timeout,
	}, nil
}

// Close closes the gRPC connection
func (c *Client) Close() error {
	return c.conn.Close()
}

// Breaker exposes the client's circuit breaker.
func (c *Client) Breaker() *resilience.Breaker {
	return c.breaker
}

// Score sends a capture for scoring.
func (c *Client) Score(ctx context.Context, req *ScoreRequest) (*ScoreResponse, error) {
	resp := new(ScoreResponse)
	if err := c.invoke(ctx, ScoreMethod, req, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Letters lists the alphabet and supported letters.
func (c *Client) Letters(ctx context.Context) (*LettersResponse, error) {
	resp := new(LettersResponse)
	if err := c.invoke(ctx, LettersMethod, &LettersRequest{}, resp); err != nil {
		return nil, err
	}
	return resp, nil
}

func (c *Client) invoke(ctx context.Context, method string, req, resp any) error {
	ctx, span := trace.StartSpan(ctx, "rpc_client")
	defer span.End()
	span.SetAttr("method", method)

	err := resilience.Retry(ctx, c.retry, func() error {
		return c.breaker.Execute(func() error {
			callCtx, cancel := context.WithTimeout(ctx, c.timeout)
			defer cancel()
			return c.conn.Invoke(callCtx, method, req, resp)
		})
	})
	if err == nil {
		return nil
	}

	span.SetAttr("error", err.Error())
	switch {
	case errors.Is(err, resilience.ErrOpen):
		return apperrors.Wrap(err, apperrors.Unavailable, "scorer unavailable: circuit open")
	case ctx.Err() != nil:
		return apperrors.From(ctx.Err())
	}
	return apperrors.FromGRPCError(err)
}
