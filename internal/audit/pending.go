package audit

import (
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/calvinalkan/confdb/pkg/confdb"
)

// Pending holds mutations until the transaction that produced them
// commits, so a rolled-back change never reaches the journal. It plugs into
// [confdb.WithJournal] in place of the [Journal] it flushes to.
//
// All methods are safe on a nil *Pending and do nothing.
type Pending struct {
	journal *Journal

	mu        sync.Mutex
	mutations []confdb.Mutation
}

var _ confdb.Journal = (*Pending)(nil)

// NewPending returns an empty buffer in front of j.
func NewPending(j *Journal) *Pending {
	return &Pending{journal: j}
}

// Record buffers m. It never fails.
func (p *Pending) Record(_ context.Context, m confdb.Mutation) error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.mutations = append(p.mutations, m)

	return nil
}

// Len returns the number of buffered mutations.
func (p *Pending) Len() int {
	if p == nil {
		return 0
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	return len(p.mutations)
}

// Flush writes the buffered mutations to the journal in one transaction
// and empties the buffer. The buffer is emptied even when the write fails.
func (p *Pending) Flush(ctx context.Context) error {
	if p == nil {
		return nil
	}

	p.mu.Lock()
	ms := slices.Clone(p.mutations)
	p.mutations = p.mutations[:0]
	p.mu.Unlock()

	err := p.journal.RecordAll(ctx, ms)
	if err != nil {
		return fmt.Errorf("%w: %w", confdb.ErrJournal, err)
	}

	return nil
}

// Discard drops the buffered mutations.
func (p *Pending) Discard() {
	if p == nil {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.mutations = p.mutations[:0]
}
