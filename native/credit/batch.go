package credit

import (
	"github.com/google/uuid"
)

// BatchContext defers the cash deposit cap check across a sequence of actions
// so a caller can move funds through the market in one atomic burst without
// tripping the cap on an intermediate step. The cap is re-validated at batch
// end against the final aggregate.
type BatchContext struct {
	ID        uuid.UUID
	StartedAt uint64
}

// BeginBatch opens a batch context. Only one batch may be open at a time.
func (e *Engine) BeginBatch() (uuid.UUID, error) {
	if e == nil || e.state == nil {
		return uuid.Nil, errNilState
	}
	if e.batch != nil {
		return uuid.Nil, errBatchAlreadyOpen
	}
	e.batch = &BatchContext{ID: uuid.New(), StartedAt: e.timestamp}
	return e.batch.ID, nil
}

// EndBatch closes the open batch and enforces the deposit cap against the
// final state. A cap breach fails the close and leaves the batch open so the
// caller can unwind.
func (e *Engine) EndBatch(id uuid.UUID) error {
	if e == nil || e.state == nil {
		return errNilState
	}
	if e.batch == nil || e.batch.ID != id {
		return errNoBatchOpen
	}
	globals, err := e.ensureGlobals()
	if err != nil {
		return err
	}
	batch := e.batch
	e.batch = nil
	if err := e.validateCashDepositCap(globals); err != nil {
		e.batch = batch
		return err
	}
	return nil
}
