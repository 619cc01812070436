package eventjs

import (
	"context"
	"strings"

	"github.com/go-go-golems/dltctl/pkg/events"
	"github.com/go-go-golems/dltctl/pkg/monitor"
	"github.com/pkg/errors"
)

// Chain applies several modules in order. An event dropped by one module is
// not shown to the ones after it.
type Chain struct {
	Modules []*Module
}

var _ monitor.Filter = (*Chain)(nil)

func LoadChainFromFiles(ctx context.Context, scriptPaths []string, opts Options) (*Chain, error) {
	out := &Chain{Modules: make([]*Module, 0, len(scriptPaths))}
	for _, p := range scriptPaths {
		if strings.TrimSpace(p) == "" {
			continue
		}
		m, err := LoadFromFile(ctx, p, opts)
		if err != nil {
			_ = out.Close(ctx)
			return nil, errors.Wrapf(err, "load %s", p)
		}
		out.Modules = append(out.Modules, m)
	}
	if len(out.Modules) == 0 {
		return nil, errors.New("eventjs: at least one script is required")
	}
	return out, nil
}

func (c *Chain) Apply(ctx context.Context, ev events.Event) (events.Event, bool, error) {
	for _, m := range c.Modules {
		next, keep, err := m.Apply(ctx, ev)
		if err != nil {
			return ev, true, err
		}
		if !keep {
			return ev, false, nil
		}
		ev = next
	}
	return ev, true, nil
}

func (c *Chain) Close(ctx context.Context) error {
	var firstErr error
	for _, m := range c.Modules {
		if err := m.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
