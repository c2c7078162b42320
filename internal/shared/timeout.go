package shared

import (
	"context"
	"time"
)

// DefaultCallTimeout bounds a collaborator call when no timeout is configured.
const DefaultCallTimeout = 10 * time.Second

// WithCallTimeout derives a context for a single collaborator call. A non-positive d falls back
// to [DefaultCallTimeout]. The parent's own deadline still applies when it is sooner.
func WithCallTimeout(ctx context.Context, d time.Duration) (context.Context, context.CancelFunc) {
	if d <= 0 {
		d = DefaultCallTimeout
	}
	return context.WithTimeout(ctx, d)
}
