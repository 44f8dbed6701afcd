// Package modelclient owns a model.Provider on behalf of exactly one agent.
// It serializes requests (an agent never has two completions in flight),
// drains each streamed response into a flat result, and stays safe to
// abandon mid-call: cancel the context and nothing leaks.
package modelclient

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"

	"github.com/casualjim/athene/model"
	"github.com/casualjim/athene/pkg/slogx"
	"github.com/casualjim/athene/pkg/uuidx"
)

// ErrClosed is returned by SendRequest after Close.
var ErrClosed = errors.New("model client is closed")

// Response is a fully drained model reply.
type Response struct {
	// Text is the complete assistant message, all deltas joined.
	Text string
	// Deltas keeps the message fragments in arrival order so observers can
	// replay the stream the way it happened.
	Deltas []string
	// ToolCalls the model asked for, in emission order.
	ToolCalls []model.ToolCallRequest
	// FinishReason reported by the Completed event.
	FinishReason model.FinishReason
	// Opaque is the provider-native assistant turn, when one was offered.
	Opaque    model.OpaqueMessage
	HasOpaque bool
}

type request struct {
	ctx context.Context
	req model.Request
	out chan outcome
}

type outcome struct {
	resp *Response
	err  error
}

// Client serializes access to a provider. All requests funnel through one
// serving goroutine; concurrent callers queue up in Send order.
type Client struct {
	provider model.Provider

	reqs   chan request
	base   context.Context
	cancel context.CancelFunc
	done   chan struct{}
	once   sync.Once
}

// New wraps the provider and starts the serving goroutine.
func New(p model.Provider) *Client {
	base, cancel := context.WithCancel(context.Background())
	c := &Client{
		provider: p,
		reqs:     make(chan request),
		base:     base,
		cancel:   cancel,
		done:     make(chan struct{}),
	}
	go c.serve()
	return c
}

// SendRequest performs one completion and blocks until the response has been
// drained to its terminal outcome. If ctx ends first the call returns
// ctx.Err() and the in-flight drain is abandoned; the client remains usable
// for the next request.
func (c *Client) SendRequest(ctx context.Context, req model.Request) (*Response, error) {
	rc := request{ctx: ctx, req: req, out: make(chan outcome, 1)}

	select {
	case c.reqs <- rc:
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-c.done:
		return nil, ErrClosed
	}

	// Once accepted, the serving goroutine always delivers exactly one
	// outcome; the buffered channel lets it do so even after we left.
	select {
	case oc := <-rc.out:
		return oc.resp, oc.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close aborts any in-flight request, stops the serving goroutine and closes
// the provider when it wants closing. Idempotent.
func (c *Client) Close() {
	c.once.Do(func() {
		c.cancel()
		<-c.done
		if closer, ok := c.provider.(io.Closer); ok {
			if err := closer.Close(); err != nil {
				slog.Warn("closing model provider", slogx.Error(err))
			}
		}
	})
}

func (c *Client) serve() {
	defer close(c.done)
	for {
		select {
		case <-c.base.Done():
			return
		case rc := <-c.reqs:
			rc.out <- c.handle(rc)
		}
	}
}

func (c *Client) handle(rc request) outcome {
	// The provider call dies with either the caller's context or the client.
	ctx, cancel := context.WithCancel(rc.ctx)
	defer cancel()
	stop := context.AfterFunc(c.base, cancel)
	defer stop()

	log := slog.With(slog.String("request", uuidx.NewString()))
	log.Debug("sending model request",
		slog.Int("messages", len(rc.req.Messages)),
		slog.Int("tools", len(rc.req.Tools)))

	resp, err := c.provider.SendRequest(ctx, rc.req)
	if err != nil {
		log.Debug("model request failed", slogx.Error(err))
		return outcome{err: fmt.Errorf("send request: %w", err)}
	}

	drained, err := drain(ctx, resp)
	if err != nil {
		log.Debug("model response failed mid-stream", slogx.Error(err))
		return outcome{err: fmt.Errorf("drain response: %w", err)}
	}

	log.Debug("model response complete",
		slogx.Stringer("finish", drained.FinishReason),
		slog.Int("deltas", len(drained.Deltas)),
		slog.Int("tool_calls", len(drained.ToolCalls)))
	return outcome{resp: drained}
}

// drain pulls the response to its terminal outcome and flattens it.
func drain(ctx context.Context, resp model.Response) (*Response, error) {
	out := &Response{}
	var text strings.Builder

	for {
		ev, err := resp.NextEvent(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}

		switch e := ev.(type) {
		case model.MessageDelta:
			out.Deltas = append(out.Deltas, e.Text)
			text.WriteString(e.Text)
		case model.ToolCall:
			out.ToolCalls = append(out.ToolCalls, e.Call)
		case model.Completed:
			out.FinishReason = e.Reason
		}
	}

	out.Text = text.String()
	if msg, ok := resp.OpaqueMessage(); ok {
		out.Opaque = msg
		out.HasOpaque = true
	}
	return out, nil
}
