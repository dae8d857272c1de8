package isotp

import (
	"context"

	"golang.org/x/time/rate"
)

// rateLimiter paces aggregate outbound bytes across a Network. It is purely
// a bus-governance knob: it can only add delay on top of whatever STmin
// already demands, never remove it, since each Connection's own STmin timer
// still gates how soon it offers the next frame in the first place.
type rateLimiter struct {
	limiter *rate.Limiter
}

func newRateLimiter(bytesPerSecond float64, burst int) *rateLimiter {
	if bytesPerSecond <= 0 {
		return nil
	}
	return &rateLimiter{limiter: rate.NewLimiter(rate.Limit(bytesPerSecond), burst)}
}

func (r *rateLimiter) wait(frameLen int) {
	if r == nil || r.limiter == nil {
		return
	}
	// WaitN blocks the writer goroutine only; it never touches per-connection
	// state, so it cannot desynchronize any STmin or N_Bs/N_Cr timer.
	_ = r.limiter.WaitN(context.Background(), frameLen)
}
