// Package engine executes canonical queries against the in-memory store.
//
// The executor is front-end agnostic: QueryExpression graphs, Builder
// trees and FetchXML documents all lower to the same query.IR, and
// Execute is the single evaluation path for all of them. The pipeline is
// scan, join, filter, then either aggregate or project, then order and
// truncate. Results are always detached copies; mutating a result never
// touches stored state.
package engine

import (
	"github.com/benbjohnson/clock"
	"go.uber.org/zap"

	"github.com/rnwood/Fake4Dataverse-sub000/config"
	"github.com/rnwood/Fake4Dataverse-sub000/errors"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/fetchxml"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/fiscal"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/hierarchy"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/metadata"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/query"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/store"
	"github.com/rnwood/Fake4Dataverse-sub000/xrm/types"
)

// Options configures an Executor beyond its store and registry.
type Options struct {
	// Calendar is the fiscal calendar consulted by fiscal operators.
	// The zero value means calendar-year quarters.
	Calendar fiscal.Calendar

	// Clock supplies "now" for the relative fiscal operators. Defaults
	// to the wall clock; tests inject clock.NewMock().
	Clock clock.Clock

	// Logger receives per-query debug output. Defaults to the global
	// logger, which is a nop until logger.Initialize runs.
	Logger *zap.SugaredLogger

	// MaxGroupCardinality caps the number of distinct groups one
	// aggregation may produce. Zero means the configured default.
	MaxGroupCardinality int
}

// Executor evaluates queries against one store and one metadata registry.
type Executor struct {
	store     *store.Store
	registry  *metadata.Registry
	resolver  *hierarchy.Resolver
	calendar  fiscal.Calendar
	clock     clock.Clock
	logger    *zap.SugaredLogger
	maxGroups int
}

// New builds an Executor with the configured fiscal calendar and engine
// limits. Configuration load failures fall back to the defaults.
func New(s *store.Store, r *metadata.Registry) *Executor {
	opts := Options{}
	if cfg, err := config.Load(); err == nil {
		if cal, err := fiscal.FromConfig(cfg.Fiscal); err == nil {
			opts.Calendar = cal
		}
		opts.MaxGroupCardinality = cfg.Engine.MaxGroupCardinality
	}
	return NewWithOptions(s, r, opts)
}

// NewWithOptions builds an Executor with explicit options.
func NewWithOptions(s *store.Store, r *metadata.Registry, opts Options) *Executor {
	cal := opts.Calendar
	if cal == (fiscal.Calendar{}) {
		cal = fiscal.Default()
	}
	clk := opts.Clock
	if clk == nil {
		clk = clock.New()
	}
	maxGroups := opts.MaxGroupCardinality
	if maxGroups <= 0 {
		maxGroups = 50_000
	}
	return &Executor{
		store:     s,
		registry:  r,
		resolver:  hierarchy.NewResolver(s, r),
		calendar:  cal,
		clock:     clk,
		logger:    opts.Logger,
		maxGroups: maxGroups,
	}
}

// Execute evaluates a canonical query. The IR is normalized and
// validated first, so partially-filled hand-built IRs are acceptable.
func (ex *Executor) Execute(ir *query.IR) ([]*types.Entity, error) {
	if ir == nil {
		return nil, errors.New("nil query")
	}
	ir.Normalize()
	if err := ir.Validate(); err != nil {
		return nil, err
	}
	if _, err := ex.registry.Metadata(ir.Entity); err != nil {
		return nil, err
	}

	if ex.logger != nil {
		ex.logger.Debugw("executing query",
			"entity", ir.Entity,
			"links", len(ir.Links),
			"aggregates", len(ir.Aggregates))
	}

	rows, err := ex.buildRows(ir)
	if err != nil {
		return nil, err
	}

	ev, err := ex.newEvaluator(ir)
	if err != nil {
		return nil, err
	}
	if err := checkOrders(ir, ev); err != nil {
		return nil, err
	}
	rows, err = ev.filterRows(rows, effectiveFilter(ir))
	if err != nil {
		return nil, err
	}

	// Aggregated queries order by output aliases, so they sort after
	// materializing. Plain queries sort rows first: an order key does
	// not have to appear in the column set.
	var results []*types.Entity
	if len(ir.Aggregates) > 0 {
		results, err = ex.aggregate(ir, ev, rows)
		if err != nil {
			return nil, err
		}
		if err := orderResults(results, ir.Orders); err != nil {
			return nil, err
		}
	} else {
		if err := orderRows(rows, ir.Orders); err != nil {
			return nil, err
		}
		results, err = ex.project(ir, rows)
		if err != nil {
			return nil, err
		}
	}
	if ir.Top > 0 && len(results) > ir.Top {
		results = results[:ir.Top]
	}

	if ex.logger != nil {
		ex.logger.Debugw("query complete", "entity", ir.Entity, "results", len(results))
	}
	return results, nil
}

// ExecuteQuery evaluates a structured QueryExpression.
func (ex *Executor) ExecuteQuery(q *query.QueryExpression) ([]*types.Entity, error) {
	if q == nil {
		return nil, errors.New("nil query expression")
	}
	ir, err := q.Translate()
	if err != nil {
		return nil, err
	}
	return ex.Execute(ir)
}

// ExecuteBuilder evaluates a Builder query.
func (ex *Executor) ExecuteBuilder(b *query.Builder) ([]*types.Entity, error) {
	if b == nil {
		return nil, errors.New("nil query builder")
	}
	ir, err := b.Translate()
	if err != nil {
		return nil, err
	}
	return ex.Execute(ir)
}

// ExecuteFetch parses and evaluates a FetchXML document.
func (ex *Executor) ExecuteFetch(doc string) ([]*types.Entity, error) {
	ir, err := fetchxml.Parse(doc)
	if err != nil {
		return nil, err
	}
	return ex.Execute(ir)
}

// effectiveFilter combines the root filter with every link filter,
// qualifying link conditions with the link's alias so one evaluation
// pass covers the whole tree.
func effectiveFilter(ir *query.IR) *query.Filter {
	parts := make([]*query.Filter, 0, 1+len(ir.Links))
	if ir.Filter != nil {
		parts = append(parts, ir.Filter)
	}
	collectLinkFilters(ir.Links, &parts)
	switch len(parts) {
	case 0:
		return nil
	case 1:
		return parts[0]
	default:
		return &query.Filter{Operator: query.And, Filters: parts}
	}
}

func collectLinkFilters(links []query.Link, parts *[]*query.Filter) {
	for i := range links {
		l := &links[i]
		if l.Filter != nil {
			*parts = append(*parts, qualifyFilter(l.Filter, l.Alias))
		}
		collectLinkFilters(l.Links, parts)
	}
}

// qualifyFilter returns a copy of f where conditions without an explicit
// alias address the given link alias.
func qualifyFilter(f *query.Filter, alias string) *query.Filter {
	out := &query.Filter{Operator: f.Operator}
	out.Conditions = make([]query.Condition, len(f.Conditions))
	for i, c := range f.Conditions {
		if c.EntityAlias == "" {
			c.EntityAlias = alias
		}
		out.Conditions[i] = c
	}
	for _, child := range f.Filters {
		out.Filters = append(out.Filters, qualifyFilter(child, alias))
	}
	return out
}
