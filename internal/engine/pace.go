package engine

import (
	"context"
	"time"
)

// Pauses between remote calls. A zero value disables the pause.
type Pauses struct {
	Login      time.Duration
	Create     time.Duration
	Comment    time.Duration
	ArticleMin time.Duration
	ArticleMax time.Duration
}

func DefaultPauses() Pauses {
	return Pauses{
		Login:      500 * time.Millisecond,
		Create:     50 * time.Millisecond,
		Comment:    20 * time.Millisecond,
		ArticleMin: 20 * time.Millisecond,
		ArticleMax: 80 * time.Millisecond,
	}
}

// pause waits for d or until ctx is done.
func pause(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
