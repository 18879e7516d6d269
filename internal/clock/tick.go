package clock

import (
	"context"
	"time"
)

// TickWithCtx works like time.Tick but stops the ticker and closes the
// channel once ctx is done. Ticks are dropped while the receiver is busy.
func TickWithCtx(ctx context.Context, interval time.Duration) <-chan time.Time {
	ch := make(chan time.Time)
	ticker := time.NewTicker(interval)

	go func() {
		defer close(ch)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case v := <-ticker.C:
				select {
				case ch <- v:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch
}
