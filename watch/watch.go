package watch

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog/log"

	"github.com/R167/ipwatch/catalog"
	"github.com/R167/ipwatch/common"
	"github.com/R167/ipwatch/internal/output"
	"github.com/R167/ipwatch/notify"
	"github.com/R167/ipwatch/resolver"
)

type RecordStore interface {
	Load() common.AddressRecord
	Save(common.AddressRecord) error
}

type PoolSource interface {
	Servers(ctx context.Context) (*catalog.Pool, error)
}

type AddressResolver interface {
	Resolve(ctx context.Context, servers []string, tryCount int, blacklist common.Blacklist) (common.AddressRecord, error)
}

type State int

const (
	Unchanged State = iota
	Changed
)

func (s State) String() string {
	if s == Changed {
		return "changed"
	}
	return "unchanged"
}

// Result summarizes a cycle. NotifyErr and SaveErr are reported, not fatal.
type Result struct {
	State     State
	Old       common.AddressRecord
	New       common.AddressRecord
	PoolSize  int
	Exhausted bool
	Persisted bool
	NotifyErr error
	SaveErr   error
}

type Options struct {
	Machine   string
	TryCount  int
	Blacklist common.Blacklist
}

type Detector struct {
	store    RecordStore
	pool     PoolSource
	resolver AddressResolver
	notifier notify.Notifier
	opts     Options
	out      output.Output
}

func NewDetector(store RecordStore, pool PoolSource, res AddressResolver, n notify.Notifier, opts Options, out output.Output) *Detector {
	if out == nil {
		out = output.NewNoOpOutput()
	}
	return &Detector{
		store:    store,
		pool:     pool,
		resolver: res,
		notifier: n,
		opts:     opts,
		out:      out,
	}
}

// Run performs one cycle. Only a server list failure or cancellation is
// returned as an error.
func (d *Detector) Run(ctx context.Context) (Result, error) {
	res := Result{Old: d.store.Load()}
	log.Debug().Stringer("saved", res.Old).Msg("loaded saved address")

	pool, err := d.pool.Servers(ctx)
	if err != nil {
		return res, fmt.Errorf("server list: %w", err)
	}
	res.PoolSize = len(pool.Servers)

	current, err := d.resolver.Resolve(ctx, pool.Servers, d.opts.TryCount, d.opts.Blacklist)
	switch {
	case errors.Is(err, resolver.ErrAttemptsExhausted):
		res.Exhausted = true
		d.out.Warning("No acceptable IP after %d attempts, using last answer %q", d.opts.TryCount, current.IP)
	case err != nil:
		return res, err
	}
	res.New = current

	// An interrupted cycle must not replace the saved address.
	if err := ctx.Err(); err != nil {
		return res, err
	}

	if current.IP == res.Old.IP {
		d.out.Info("Current IP = Old IP.  No need to send email.")
		return res, nil
	}

	res.State = Changed
	d.out.Info("Current IP differs from old IP.")

	if d.notifier != nil {
		change := notify.Change{Machine: d.opts.Machine, Old: res.Old, New: current}
		if err := d.notifier.Notify(ctx, change); err != nil {
			res.NotifyErr = err
			d.out.Error("Unable to send notification: %v", err)
			log.Error().Err(err).Msg("notify failed")
		}
	}

	if err := d.store.Save(current); err != nil {
		res.SaveErr = err
		d.out.Error("Unable to save new IP: %v", err)
		log.Error().Err(err).Msg("save failed")
		return res, nil
	}
	res.Persisted = true
	log.Info().Stringer("address", current).Msg("saved new address")
	return res, nil
}
