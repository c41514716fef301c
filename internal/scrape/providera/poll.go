package providera

import (
	"context"
	"time"

	"github.com/aivisible/prompt-pipeline/internal/apierr"
)

// PollUntilComplete polls at a fixed 10s interval until the batch is
// ready or reports failure, following the teacher's
// BrightDataClient.PollUntilComplete ticker loop. Per §5, provider
// polling has no wall-clock timeout — callers bound it via ctx if
// operator policy requires one.
func (c *Client) PollUntilComplete(ctx context.Context, snapshotID string) error {
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return apierr.Wrap(apierr.UpstreamUnavailable, "context cancelled while polling", ctx.Err())
		case <-ticker.C:
			ready, err := c.Poll(ctx, snapshotID)
			if err != nil {
				if apierr.Retryable(err) {
					continue
				}
				return err
			}
			if ready {
				return nil
			}
		}
	}
}
