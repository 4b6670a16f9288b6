package cli

import (
	"context"
	"errors"

	"github.com/R167/ipwatch/internal/config"
	"github.com/R167/ipwatch/internal/mcp"
	"github.com/R167/ipwatch/internal/output"
	"github.com/R167/ipwatch/resolver"
)

func serveMCP(ctx context.Context, cfg config.Config) error {
	return mcp.RunServer(ctx, mcpTools(cfg), Version)
}

// mcpTools adapts the resolver to MCP tools. Each call gets its own buffered
// output so progress lines become the tool's text report.
func mcpTools(cfg config.Config) mcp.Tools {
	return mcp.Tools{
		Resolve: func(ctx context.Context, in mcp.ResolveInput) (*mcp.ResolveOutput, error) {
			out := output.NewBufferedOutput()
			comp := newComponents(cfg, out)

			tryCount := in.TryCount
			if tryCount <= 0 {
				tryCount = cfg.TryCount
			}
			pool, err := comp.catalog.Servers(ctx)
			if err != nil {
				return nil, err
			}
			rec, err := comp.resolver.Resolve(ctx, pool.Servers, tryCount, cfg.Blacklist())
			exhausted := errors.Is(err, resolver.ErrAttemptsExhausted)
			if err != nil && !exhausted {
				return nil, err
			}
			return &mcp.ResolveOutput{
				IP:        rec.IP,
				Server:    rec.Server,
				Exhausted: exhausted,
				Report:    out.String(),
			}, nil
		},
		Survey: func(ctx context.Context, in mcp.SurveyInput) (*mcp.SurveyOutput, error) {
			out := output.NewBufferedOutput()
			comp := newComponents(cfg, out)

			pool, err := comp.catalog.Servers(ctx)
			if err != nil {
				return nil, err
			}
			c := comp.resolver.Survey(ctx, pool.Servers)

			tallies := make([]mcp.Tally, len(c.Tallies))
			for i, t := range c.Tallies {
				tallies[i] = mcp.Tally{IP: t.IP, Count: t.Count}
			}
			return &mcp.SurveyOutput{
				Servers:  c.Servers,
				Majority: c.Majority(),
				Tallies:  tallies,
				Results:  c.Results,
				Skipped:  c.Skipped,
				Report:   out.String(),
			}, nil
		},
	}
}
