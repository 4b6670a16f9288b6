package resolver

import (
	"context"
	"errors"
	"math/rand/v2"

	retry "github.com/avast/retry-go/v4"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"github.com/R167/ipwatch/common"
	"github.com/R167/ipwatch/fetcher"
	"github.com/R167/ipwatch/internal/output"
	"github.com/R167/ipwatch/internal/security"
)

// ErrAttemptsExhausted means no attempt produced an acceptable address. It is
// a warning: the record returned with it is the last attempt's.
var ErrAttemptsExhausted = errors.New("no acceptable address within the attempt budget")

var (
	errMalformed   = errors.New("malformed address")
	errBlacklisted = errors.New("blacklisted address")
)

type Resolver struct {
	fetcher fetcher.Fetcher
	rng     *rand.Rand
	out     output.Output
	workers int
	limiter *rate.Limiter
}

type Option func(*Resolver)

// WithRand sets the source used to pick servers. Tests pass a seeded source.
func WithRand(rng *rand.Rand) Option {
	return func(r *Resolver) { r.rng = rng }
}

func WithOutput(out output.Output) Option {
	return func(r *Resolver) { r.out = out }
}

// WithSurveyWorkers bounds how many servers Survey queries at once.
func WithSurveyWorkers(n int) Option {
	return func(r *Resolver) { r.workers = n }
}

// WithSurveyLimiter paces Survey requests.
func WithSurveyLimiter(l *rate.Limiter) Option {
	return func(r *Resolver) { r.limiter = l }
}

func New(f fetcher.Fetcher, opts ...Option) *Resolver {
	r := &Resolver{
		fetcher: f,
		out:     output.NewNoOpOutput(),
		workers: 1,
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.rng == nil {
		r.rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	if r.workers < 1 {
		r.workers = 1
	}
	return r
}

// Resolve asks up to tryCount randomly chosen servers for the external
// address and returns the first valid, non-blacklisted answer. tryCount below
// one is treated as one.
func (r *Resolver) Resolve(ctx context.Context, servers []string, tryCount int, blacklist common.Blacklist) (common.AddressRecord, error) {
	if err := ctx.Err(); err != nil {
		return common.AddressRecord{}, err
	}
	if len(servers) == 0 {
		r.out.Error("GetIP: no servers available")
		return common.AddressRecord{}, ErrAttemptsExhausted
	}
	if tryCount < 1 {
		tryCount = 1
	}
	log.Debug().Int("servers", len(servers)).Int("tries", tryCount).Int("blacklisted", blacklist.Len()).Msg("resolving")

	var (
		last    common.AddressRecord
		attempt int
	)
	err := retry.Do(
		func() error {
			attempt++
			last = common.AddressRecord{Server: servers[r.rng.IntN(len(servers))]}
			last.IP = r.fetcher.Fetch(ctx, last.Server)

			switch {
			case !security.IsValidIP(last.IP):
				r.out.Warning("GetIP: Try %d:  Bad IP    (malformed): %s", attempt, last.IP)
				return errMalformed
			case blacklist.Contains(last.IP):
				r.out.Warning("GetIP: Try %d:  Bad IP (in Blacklist): %s", attempt, last.IP)
				return errBlacklisted
			}
			r.out.Success("GetIP: Try %d: Good IP               : %s", attempt, last.IP)
			return nil
		},
		retry.Attempts(uint(tryCount)),
		retry.Delay(0),
		retry.DelayType(retry.FixedDelay),
		retry.LastErrorOnly(true),
		retry.Context(ctx),
	)
	if err != nil {
		log.Debug().Err(err).Int("attempts", attempt).Str("ip", last.IP).Msg("resolution exhausted")
		if ctxErr := ctx.Err(); ctxErr != nil {
			return last, ctxErr
		}
		return last, ErrAttemptsExhausted
	}
	return last, nil
}
