// Package channel carries blocking calls between agents. A call delivers one
// message to a peer's message endpoint and waits for the peer's task to reach
// a terminal state, bounded by the configured timeout.
package channel

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/parley-agents/parley/internal/directory"
	"github.com/parley-agents/parley/pkg/api"
)

// DefaultTimeout bounds how long a caller waits for the remote agent's reply.
const DefaultTimeout = 180 * time.Second

// Channel resolves peers through the directory and performs blocking calls
// on their behalf. It satisfies tools.AgentCaller.
type Channel struct {
	dir     *directory.Directory
	sender  string
	timeout time.Duration
	logger  *slog.Logger

	// newClient is swappable for tests.
	newClient func(baseURL string) *api.Client
}

func New(dir *directory.Directory, sender string, timeout time.Duration, logger *slog.Logger) *Channel {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Channel{
		dir:       dir,
		sender:    sender,
		timeout:   timeout,
		logger:    logger,
		newClient: api.NewClient,
	}
}

// Call sends message to the named agent and blocks until the remote task
// completes or the timeout elapses. The returned string is the remote
// agent's reply text.
func (c *Channel) Call(ctx context.Context, target, message string) (string, error) {
	url, err := c.dir.Resolve(target)
	if err != nil {
		return "", err
	}

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	c.logger.Info("calling agent", "target", target, "url", url)
	start := time.Now()

	client := c.newClient(url)
	client.SetTimeout(c.timeout)
	task, err := client.SendMessage(callCtx, message, c.sender)
	if err != nil {
		c.logger.Warn("agent call failed", "target", target, "error", err, "elapsed", time.Since(start))
		return "", fmt.Errorf("call to %s: %w", target, err)
	}

	c.logger.Info("agent call completed", "target", target, "task_id", task.TaskID, "elapsed", time.Since(start))
	return task.Result, nil
}
