package parser

import (
	"context"
	"errors"
	"time"

	"github.com/smixs/t-tasker/internal/retryutil"
	"github.com/smixs/t-tasker/llm"
)

// scriptedClient returns canned replies in order. An entry with a non-nil
// err simulates a provider failure for that call.
type scriptedClient struct {
	replies []scriptedReply
	calls   []llm.Request
}

type scriptedReply struct {
	text string
	err  error
}

var errScriptExhausted = errors.New("scripted client: no replies left")

func (c *scriptedClient) Chat(_ context.Context, req llm.Request) (llm.Result, error) {
	c.calls = append(c.calls, req)
	if len(c.replies) == 0 {
		return llm.Result{}, errScriptExhausted
	}
	next := c.replies[0]
	c.replies = c.replies[1:]
	if next.err != nil {
		return llm.Result{}, next.err
	}
	return llm.Result{Text: next.text}, nil
}

func testRetryPolicy() retryutil.Policy {
	p := retryutil.Default()
	p.Sleep = func(ctx context.Context, d time.Duration) error { return nil }
	return p
}
