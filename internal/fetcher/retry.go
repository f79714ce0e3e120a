package fetcher

import (
	"context"
	"errors"
	"math/rand"
	"net/http"
	"time"

	"github.com/sirupsen/logrus"

	"pagevault/internal/profile"
)

// Delay bands in seconds. The courtesy delay is paid before every
// attempt, including the first; the others are backoffs between
// attempts, chosen by error class.
var (
	courtesyBand   = band{1 * time.Second, 3 * time.Second}
	timeoutBand    = band{2 * time.Second, 5 * time.Second}
	connectionBand = band{3 * time.Second, 7 * time.Second}
	throttleBand   = band{10 * time.Second, 20 * time.Second}
)

type band struct {
	min time.Duration
	max time.Duration
}

// Doer is the single-attempt fetch contract the retrier drives.
// *Client satisfies it; tests substitute stubs.
type Doer interface {
	Fetch(ctx context.Context, url string, p profile.Profile) (*RawResult, error)
}

// ProfileSource supplies a fresh header profile per attempt.
type ProfileSource interface {
	Generate() profile.Profile
}

// SleepFunc suspends for d or until ctx is done. Injectable so tests
// can record requested delays instead of waiting them out.
type SleepFunc func(ctx context.Context, d time.Duration)

// Sleep is the production SleepFunc.
func Sleep(ctx context.Context, d time.Duration) {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}

// Retrier wraps a Doer in the bounded retry loop. Attempts are strictly
// sequential; every attempt gets a new profile and pays a randomized
// courtesy delay to avoid request-rate fingerprinting.
type Retrier struct {
	fetcher  Doer
	profiles ProfileSource
	sleep    SleepFunc
	rnd      *rand.Rand
	log      logrus.FieldLogger
}

// NewRetrier builds a Retrier. sleep may be nil, in which case the real
// Sleep is used.
func NewRetrier(fetcher Doer, profiles ProfileSource, rnd *rand.Rand, sleep SleepFunc, logger logrus.FieldLogger) *Retrier {
	if sleep == nil {
		sleep = Sleep
	}
	return &Retrier{
		fetcher:  fetcher,
		profiles: profiles,
		sleep:    sleep,
		rnd:      rnd,
		log:      logger.WithField("component", "retrier"),
	}
}

// Execute runs up to maxAttempts fetches of url. It returns the first
// response with a status outside the retryable set: statuses in
// [200,400) are success, 429 is retried with a long backoff, and any
// other terminal status is returned immediately for the caller to
// interpret. Transport failures are retried with a backoff chosen by
// error class; once attempts are exhausted the last transport failure
// is wrapped in *ExhaustedError. If the attempts were exhausted by 429
// responses, the last 429 result is returned as data with no error.
func (r *Retrier) Execute(ctx context.Context, url string, maxAttempts int) (*RawResult, error) {
	log := r.log.WithField("url", url)

	var lastErr error
	var lastThrottled *RawResult

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		r.sleep(ctx, r.pick(courtesyBand))
		if err := ctx.Err(); err != nil {
			return nil, &ExhaustedError{Attempts: attempt, LastErr: err}
		}

		p := r.profiles.Generate()
		res, err := r.fetcher.Fetch(ctx, url, p)

		if err != nil {
			lastErr = err
			lastThrottled = nil
			log.WithError(err).WithField("attempt", attempt).Warn("Attempt failed")
			if attempt < maxAttempts {
				r.sleep(ctx, r.pick(backoffBandFor(err)))
			}
			continue
		}

		if res.StatusCode == http.StatusTooManyRequests {
			lastErr = nil
			lastThrottled = res
			log.WithField("attempt", attempt).Warn("Rate limited (429), backing off")
			if attempt < maxAttempts {
				r.sleep(ctx, r.pick(throttleBand))
			}
			continue
		}

		// 2xx/3xx succeed; any other terminal status is data for the
		// caller, never retried.
		if res.StatusCode >= 200 && res.StatusCode < 400 {
			log.WithFields(logrus.Fields{
				"attempt": attempt,
				"status":  res.StatusCode,
			}).Info("Fetch succeeded")
		} else {
			log.WithFields(logrus.Fields{
				"attempt": attempt,
				"status":  res.StatusCode,
			}).Info("Terminal status, not retrying")
		}
		return res, nil
	}

	if lastThrottled != nil {
		log.WithField("attempts", maxAttempts).Warn("Still rate limited after final attempt")
		return lastThrottled, nil
	}
	return nil, &ExhaustedError{Attempts: maxAttempts, LastErr: lastErr}
}

// pick draws a uniform random duration from a band.
func (r *Retrier) pick(b band) time.Duration {
	spread := b.max - b.min
	return b.min + time.Duration(r.rnd.Float64()*float64(spread))
}

// backoffBandFor selects the delay band for a transport failure.
// Redirect loops and unclassified failures share the connection band.
func backoffBandFor(err error) band {
	var ne *NetError
	if errors.As(err, &ne) && ne.Kind == KindTimeout {
		return timeoutBand
	}
	return connectionBand
}
