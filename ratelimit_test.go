package isotp

import "testing"

func TestNewRateLimiterDisabledByDefault(t *testing.T) {
	if newRateLimiter(0, 0) != nil {
		t.Fatalf("zero bytesPerSecond should disable the limiter")
	}
}

func TestRateLimiterNilIsSafeToWait(t *testing.T) {
	var r *rateLimiter
	r.wait(8) // must not panic
}
