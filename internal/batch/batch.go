// Package batch fans a single mutation out over a set of selected
// documents and reports the outcome of each call.
package batch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/abelbrown/docfeed/internal/catalog"
	"github.com/abelbrown/docfeed/internal/logging"
)

// DefaultConcurrency caps in-flight calls per batch.
const DefaultConcurrency = 4

// Kind is a batch mutation type.
type Kind int

const (
	Delete Kind = iota
	Reprocess
	AddTag
	RemoveTag
)

func (k Kind) String() string {
	switch k {
	case Delete:
		return "delete"
	case Reprocess:
		return "reprocess"
	case AddTag:
		return "add-tag"
	case RemoveTag:
		return "remove-tag"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// ParseKind accepts the names printed by String.
func ParseKind(s string) (Kind, error) {
	for _, k := range []Kind{Delete, Reprocess, AddTag, RemoveTag} {
		if strings.EqualFold(s, k.String()) {
			return k, nil
		}
	}
	return 0, fmt.Errorf("unknown mutation %q", s)
}

// Mutation is one mutation applied to every selected document.
type Mutation struct {
	Kind     Kind
	Tag      catalog.TagID // AddTag and RemoveTag
	ForceOCR bool          // Reprocess
}

// ErrNoTag is returned by Validate for a tag mutation without a tag.
var ErrNoTag = errors.New("tag mutation needs a tag")

// Validate checks that the mutation carries the arguments its kind needs.
func (m Mutation) Validate() error {
	switch m.Kind {
	case Delete, Reprocess:
		return nil
	case AddTag, RemoveTag:
		if m.Tag == 0 {
			return ErrNoTag
		}
		return nil
	}
	return fmt.Errorf("unknown mutation kind %d", int(m.Kind))
}

// Mutator performs single-document mutations. *catalog.Client implements it.
type Mutator interface {
	DeleteDocument(ctx context.Context, id catalog.DocID) error
	ReprocessDocument(ctx context.Context, id catalog.DocID, forceOCR bool) error
	AddTag(ctx context.Context, id catalog.DocID, tag catalog.TagID) error
	RemoveTag(ctx context.Context, id catalog.DocID, tag catalog.TagID) error
}

// Outcome is the result of the call for one document.
type Outcome struct {
	ID  catalog.DocID
	Err error
}

// OK reports whether the call succeeded.
func (o Outcome) OK() bool { return o.Err == nil }

// Report collects per-document outcomes in input order.
type Report struct {
	Mutation Mutation
	Outcomes []Outcome
}

// Succeeded returns the IDs whose call succeeded.
func (r Report) Succeeded() []catalog.DocID {
	var ids []catalog.DocID
	for _, o := range r.Outcomes {
		if o.OK() {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// Failed returns the IDs whose call failed.
func (r Report) Failed() []catalog.DocID {
	var ids []catalog.DocID
	for _, o := range r.Outcomes {
		if !o.OK() {
			ids = append(ids, o.ID)
		}
	}
	return ids
}

// Err returns nil when every call succeeded, otherwise a *PartialFailure.
func (r Report) Err() error {
	var pf PartialFailure
	pf.Mutation = r.Mutation
	pf.Total = len(r.Outcomes)
	for _, o := range r.Outcomes {
		if !o.OK() {
			pf.IDs = append(pf.IDs, o.ID)
			pf.Errs = append(pf.Errs, o.Err)
		}
	}
	if len(pf.IDs) == 0 {
		return nil
	}
	return &pf
}

// PartialFailure reports the documents a batch could not mutate. The
// others were mutated and stay that way.
type PartialFailure struct {
	Mutation Mutation
	Total    int
	IDs      []catalog.DocID
	Errs     []error
}

func (e *PartialFailure) Error() string {
	msg := fmt.Sprintf("%s failed for %d of %d documents", e.Mutation.Kind, len(e.IDs), e.Total)
	if len(e.Errs) > 0 {
		msg += ": " + e.Errs[0].Error()
	}
	return msg
}

func (e *PartialFailure) Unwrap() []error { return e.Errs }

// Dispatcher issues one independent call per document.
type Dispatcher struct {
	mutator     Mutator
	concurrency int
}

// NewDispatcher creates a dispatcher. concurrency <= 0 uses DefaultConcurrency.
func NewDispatcher(m Mutator, concurrency int) *Dispatcher {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}
	return &Dispatcher{mutator: m, concurrency: concurrency}
}

// Apply runs m for every id. A failed call never cancels the others and
// successful calls are never rolled back. An invalid mutation fails every
// outcome without touching the server.
func (d *Dispatcher) Apply(ctx context.Context, m Mutation, ids []catalog.DocID) Report {
	report := Report{Mutation: m, Outcomes: make([]Outcome, len(ids))}
	for i, id := range ids {
		report.Outcomes[i].ID = id
	}

	if err := m.Validate(); err != nil {
		for i := range report.Outcomes {
			report.Outcomes[i].Err = err
		}
		return report
	}

	var g errgroup.Group
	g.SetLimit(d.concurrency)

	for i, id := range ids {
		g.Go(func() error {
			// Each goroutine owns index i; no lock needed.
			report.Outcomes[i].Err = d.call(ctx, m, id)
			return nil
		})
	}
	_ = g.Wait()

	log := logging.WithPrefix("batch")
	failed := len(report.Failed())
	if failed > 0 {
		log.Warn("batch finished with failures", "kind", m.Kind, "total", len(ids), "failed", failed)
	} else {
		log.Info("batch finished", "kind", m.Kind, "total", len(ids))
	}
	return report
}

func (d *Dispatcher) call(ctx context.Context, m Mutation, id catalog.DocID) error {
	if err := ctx.Err(); err != nil {
		return &catalog.TransportError{Op: m.Kind.String(), Err: err}
	}
	switch m.Kind {
	case Delete:
		return d.mutator.DeleteDocument(ctx, id)
	case Reprocess:
		return d.mutator.ReprocessDocument(ctx, id, m.ForceOCR)
	case AddTag:
		return d.mutator.AddTag(ctx, id, m.Tag)
	case RemoveTag:
		return d.mutator.RemoveTag(ctx, id, m.Tag)
	}
	return fmt.Errorf("unknown mutation kind %d", int(m.Kind))
}
