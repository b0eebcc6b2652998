package service

import (
	"context"
	"strconv"
	"time"

	perr "opscreen/internal/platform/errors"
	"opscreen/internal/platform/logger"
)

// Sliding-window login backoff: repeated failures inside the window impose a
// soft delay before the next attempt is considered
const (
	backoffWindow = 15 * time.Minute

	backoffTier1Failures = 5
	backoffTier1Delay    = 30 * time.Second
	backoffTier2Failures = 8
	backoffTier2Delay    = 2 * time.Minute
	backoffTier3Failures = 10
	backoffTier3Delay    = 10 * time.Minute
)

// backoffDelay maps a failure count to the imposed delay
func backoffDelay(failures int) time.Duration {
	switch {
	case failures >= backoffTier3Failures:
		return backoffTier3Delay
	case failures >= backoffTier2Failures:
		return backoffTier2Delay
	case failures >= backoffTier1Failures:
		return backoffTier1Delay
	default:
		return 0
	}
}

// checkBackoff returns RateLimited with a retry hint when the account is in a
// backoff period. The shared counter is consulted first when configured so
// multiple instances see the same failure count
func (s *Service) checkBackoff(ctx context.Context, email string, now time.Time) error {
	failures, last, err := s.failureState(ctx, email, now)
	if err != nil {
		// the governor must not block logins when its own storage hiccups
		logger.C(ctx).Warn().Err(err).Msg("login backoff state unavailable")
		return nil
	}
	delay := backoffDelay(failures)
	if delay == 0 || last == nil {
		return nil
	}
	until := last.Add(delay)
	if now.Before(until) {
		retry := int(until.Sub(now).Seconds()) + 1
		return perr.TooManyRequestsf(retry, "too many failed logins, retry in %ds", retry)
	}
	return nil
}

func (s *Service) failureState(ctx context.Context, email string, now time.Time) (int, *time.Time, error) {
	if s.rds != nil {
		n, err := s.rds.Get(ctx, failCountKey(email)).Int()
		if err == nil {
			var last *time.Time
			if ms, err := s.rds.Get(ctx, failLastKey(email)).Int64(); err == nil {
				t := time.UnixMilli(ms).UTC()
				last = &t
			}
			return n, last, nil
		}
		// fall through to Postgres on miss or error
	}
	return s.users.Bind(s.tx).FailedAttemptsSince(ctx, email, now.Add(-backoffWindow))
}

// noteFailure bumps the shared counter; the durable row is written separately
func (s *Service) noteFailure(ctx context.Context, email string, now time.Time) {
	if s.rds == nil {
		return
	}
	key := failCountKey(email)
	if err := s.rds.Incr(ctx, key).Err(); err != nil {
		logger.C(ctx).Warn().Err(err).Msg("login backoff counter unavailable")
		return
	}
	s.rds.Expire(ctx, key, backoffWindow)
	s.rds.Set(ctx, failLastKey(email), strconv.FormatInt(now.UnixMilli(), 10), backoffWindow)
}

// clearFailures resets the shared counter after a successful login
func (s *Service) clearFailures(ctx context.Context, email string) {
	if s.rds == nil {
		return
	}
	s.rds.Del(ctx, failCountKey(email), failLastKey(email))
}

func failCountKey(email string) string { return "auth:failcount:" + email }
func failLastKey(email string) string  { return "auth:faillast:" + email }
