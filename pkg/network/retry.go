package network

import (
	"context"
	"time"
)

const (
	retry    = 2 * time.Second
	retryMax = 30 * time.Second
)

// Retry is a reconnect backoff.
// Each failure waits the current delay and doubles it up to a cap.
type Retry struct {
	t    time.Duration
	fail bool
}

func NewRetry() Retry { return Retry{t: retry} }

// Fail waits the current delay unless ctx is done first.
// It returns false if the wait was cut short.
func (r *Retry) Fail(ctx context.Context) bool {
	r.fail = true
	timer := time.NewTimer(r.t)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
	}
	r.backoff()
	return true
}

func (r *Retry) backoff() {
	r.t *= 2
	if r.t > retryMax {
		r.t = retryMax
	}
}

func (r *Retry) Success()            { r.t = retry; r.fail = false }
func (r *Retry) Failed() bool        { return r.fail }
func (r *Retry) Time() time.Duration { return r.t }
