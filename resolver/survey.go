package resolver

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/R167/ipwatch/internal/parallel"
)

// Tally is the number of servers that returned the same answer.
type Tally struct {
	IP    string `json:"ip"`
	Count int    `json:"count"`
}

// Label is the IP, or "broken server" for servers that returned nothing.
func (t Tally) Label() string {
	if t.IP == "" {
		return "broken server"
	}
	return t.IP
}

// Consensus is the outcome of a Survey.
type Consensus struct {
	Servers int               `json:"servers"`
	Results map[string]string `json:"results"`
	Tallies []Tally           `json:"tallies"`
	// Skipped counts distinct servers never queried because the sweep was
	// cancelled. They appear in neither Results nor Tallies.
	Skipped int `json:"skipped"`
}

// Majority returns the most common non-empty answer, or "" when every server
// was broken.
func (c Consensus) Majority() string {
	for _, t := range c.Tallies {
		if t.IP != "" {
			return t.IP
		}
	}
	return ""
}

// Survey queries every server once and groups the answers. Duplicate URLs in
// the pool are queried once. Servers are queried one at a time unless
// WithSurveyWorkers allows more. Persisted state is not touched.
func (r *Resolver) Survey(ctx context.Context, servers []string) Consensus {
	results := make(map[string]string, len(servers))
	var mu sync.Mutex

	distinct := uniq(servers)
	pe := parallel.NewExecutor(ctx, r.workers)
	for _, server := range distinct {
		pe.Execute(func(ctx context.Context) error {
			if r.limiter != nil {
				if err := r.limiter.Wait(ctx); err != nil {
					return err
				}
			}
			ip := r.fetcher.Fetch(ctx, server)
			mu.Lock()
			results[server] = ip
			mu.Unlock()
			r.out.Debug("%s -> %q", server, ip)
			return nil
		})
	}
	pe.Wait()
	if errs := pe.Errors(); len(errs) > 0 {
		log.Debug().Int("skipped", len(errs)).Err(errs[0]).Msg("survey interrupted")
	}

	c := Consensus{
		Servers: len(servers),
		Results: results,
		Tallies: tally(results),
		Skipped: len(distinct) - len(results),
	}
	r.report(c)
	return c
}

func uniq(servers []string) []string {
	seen := make(map[string]struct{}, len(servers))
	out := make([]string, 0, len(servers))
	for _, s := range servers {
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

// tally groups results by answer, most frequent first, ties by IP.
func tally(results map[string]string) []Tally {
	counts := make(map[string]int)
	for _, ip := range results {
		counts[ip]++
	}
	tallies := make([]Tally, 0, len(counts))
	for ip, n := range counts {
		tallies = append(tallies, Tally{IP: ip, Count: n})
	}
	sort.Slice(tallies, func(i, j int) bool {
		if tallies[i].Count != tallies[j].Count {
			return tallies[i].Count > tallies[j].Count
		}
		return tallies[i].IP < tallies[j].IP
	})
	return tallies
}

func (r *Resolver) report(c Consensus) {
	r.out.Header("Server consensus")
	r.out.Info("Number of servers: %d", c.Servers)
	r.out.Info("IP's :")
	for _, t := range c.Tallies {
		suffix := "ies"
		if t.Count == 1 {
			suffix = "y"
		}
		r.out.Detail("%s = %d occurrenc%s", t.Label(), t.Count, suffix)
	}
	if c.Skipped > 0 {
		r.out.Warning("Sweep interrupted: %d servers not queried", c.Skipped)
	}

	servers := make([]string, 0, len(c.Results))
	for s := range c.Results {
		servers = append(servers, s)
	}
	sort.Strings(servers)
	for _, s := range servers {
		ip := c.Results[s]
		if ip == "" {
			r.out.Error("%s: no answer", s)
			continue
		}
		r.out.Info("%s: %s", s, ip)
	}
}
