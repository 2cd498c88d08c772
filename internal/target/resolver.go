// Package target turns a search query, or an explicit host list, into the
// ordered set of machines a command runs on.
package target

import (
	"context"
	"fmt"
	"strings"

	"github.com/andrej220/wexec/internal/attrpath"
	"github.com/andrej220/wexec/internal/inventory"
	"github.com/andrej220/wexec/internal/lg"
	"github.com/andrej220/wexec/pkg/models"
)

// Request describes what to resolve. In manual mode Query is a whitespace
// separated host list; otherwise it is an inventory query.
type Request struct {
	Query     string
	Manual    bool
	Attribute string
}

type Resolver struct {
	searcher inventory.Searcher
}

// NewResolver returns a resolver. searcher may be nil when only manual mode
// is used.
func NewResolver(searcher inventory.Searcher) *Resolver {
	return &Resolver{searcher: searcher}
}

// Resolve returns the targets in order. Search mode fails as a whole if any
// matched record lacks a value at the attribute path; no partial list is
// ever returned.
func (r *Resolver) Resolve(ctx context.Context, req Request) ([]models.TargetDescriptor, error) {
	logger := lg.FromContext(ctx)
	if req.Manual {
		targets := manualTargets(req.Query)
		if len(targets) == 0 {
			return nil, ErrNoHosts
		}
		logger.Debug("manual target list", lg.Int("hosts", len(targets)))
		return targets, nil
	}

	path, err := attrpath.Parse(req.Attribute)
	if err != nil {
		return nil, fmt.Errorf("connection attribute: %w", err)
	}
	if r.searcher == nil {
		return nil, fmt.Errorf("search mode requires an inventory")
	}

	records, err := r.searcher.Search(ctx, req.Query)
	if err != nil {
		return nil, fmt.Errorf("search %q: %w", req.Query, err)
	}
	if len(records) == 0 {
		return nil, &NoMatchError{Query: req.Query}
	}

	var (
		targets []models.TargetDescriptor
		missing []string
		seen    = make(map[string]bool, len(records))
	)
	for i, rec := range records {
		addr, ok := path.LookupString(rec.Attrs)
		if !ok {
			missing = append(missing, recordLabel(rec, i))
			continue
		}
		if seen[addr] {
			continue
		}
		seen[addr] = true
		host := rec.Name
		if host == "" {
			host = addr
		}
		targets = append(targets, models.TargetDescriptor{HostIdentifier: host, ResolvedAddress: addr})
	}
	if len(missing) > 0 {
		return nil, &MissingAttributeError{Attribute: path.String(), Hosts: missing, Matched: len(records)}
	}

	logger.Debug("search resolved",
		lg.String("query", req.Query),
		lg.String("attribute", path.String()),
		lg.Int("hosts", len(targets)))
	return targets, nil
}

func manualTargets(list string) []models.TargetDescriptor {
	var out []models.TargetDescriptor
	seen := make(map[string]bool)
	for _, host := range strings.Fields(list) {
		if seen[host] {
			continue
		}
		seen[host] = true
		out = append(out, models.TargetDescriptor{HostIdentifier: host, ResolvedAddress: host})
	}
	return out
}

func recordLabel(rec inventory.Record, i int) string {
	if rec.Name != "" {
		return rec.Name
	}
	return fmt.Sprintf("record #%d", i)
}
