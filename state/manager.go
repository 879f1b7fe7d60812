package state

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"tenorbook/core/types"
	"tenorbook/crypto"
	"tenorbook/native/credit"
	"tenorbook/storage"
)

// Key layout. Addresses are keyed by their bech32 form, positions by their
// numeric id.
const (
	prefixAccount  = "credit/account/"
	prefixUser     = "credit/user/"
	prefixDebt     = "credit/debt/"
	prefixCredit   = "credit/credit/"
	keyGlobals     = "credit/globals"
	keyDebtSeq     = "credit/seq/debt"
	keyCreditSeq   = "credit/seq/credit"
	debtSeqStart   = uint64(1)
	creditSeqStart = uint64(1) << 32
)

// Manager persists the market state through a key-value database, JSON
// encoded per record. It implements the engine's persistence surface; the
// position id counters are held in memory and flushed by Commit.
type Manager struct {
	mu        sync.Mutex
	db        storage.Database
	debtSeq   uint64
	creditSeq uint64
}

// NewManager opens the market state over the given database, restoring the
// position id counters.
func NewManager(db storage.Database) (*Manager, error) {
	m := &Manager{db: db, debtSeq: debtSeqStart, creditSeq: creditSeqStart}
	if seq, ok, err := m.readSeq(keyDebtSeq); err != nil {
		return nil, err
	} else if ok {
		m.debtSeq = seq
	}
	if seq, ok, err := m.readSeq(keyCreditSeq); err != nil {
		return nil, err
	} else if ok {
		m.creditSeq = seq
	}
	return m, nil
}

func (m *Manager) readSeq(key string) (uint64, bool, error) {
	raw, err := m.db.Get([]byte(key))
	if errors.Is(err, storage.ErrNotFound) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	if len(raw) != 8 {
		return 0, false, fmt.Errorf("state: corrupt sequence at %s", key)
	}
	return binary.BigEndian.Uint64(raw), true, nil
}

func (m *Manager) writeSeq(key string, value uint64) error {
	raw := make([]byte, 8)
	binary.BigEndian.PutUint64(raw, value)
	return m.db.Put([]byte(key), raw)
}

// Commit flushes the in-memory id counters. Record writes go straight to the
// database, so after a commit the store is self-contained.
func (m *Manager) Commit() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.writeSeq(keyDebtSeq, m.debtSeq); err != nil {
		return err
	}
	return m.writeSeq(keyCreditSeq, m.creditSeq)
}

func (m *Manager) getJSON(key string, out any) (bool, error) {
	raw, err := m.db.Get([]byte(key))
	if errors.Is(err, storage.ErrNotFound) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return false, fmt.Errorf("state: decoding %s: %w", key, err)
	}
	return true, nil
}

func (m *Manager) putJSON(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("state: encoding %s: %w", key, err)
	}
	return m.db.Put([]byte(key), raw)
}

// GetAccount loads a ledger account; absent accounts return nil.
func (m *Manager) GetAccount(addr crypto.Address) (*types.Account, error) {
	var account types.Account
	ok, err := m.getJSON(prefixAccount+addr.String(), &account)
	if err != nil || !ok {
		return nil, err
	}
	return &account, nil
}

// PutAccount stores a ledger account.
func (m *Manager) PutAccount(addr crypto.Address, account *types.Account) error {
	return m.putJSON(prefixAccount+addr.String(), account)
}

// GetUser loads a per-account market record; absent users return nil.
func (m *Manager) GetUser(addr crypto.Address) (*credit.User, error) {
	var user credit.User
	ok, err := m.getJSON(prefixUser+addr.String(), &user)
	if err != nil || !ok {
		return nil, err
	}
	return &user, nil
}

// PutUser stores a per-account market record.
func (m *Manager) PutUser(user *credit.User) error {
	return m.putJSON(prefixUser+user.Address.String(), user)
}

// GetDebtPosition loads a debt position; absent positions return nil.
func (m *Manager) GetDebtPosition(id uint64) (*credit.DebtPosition, error) {
	var position credit.DebtPosition
	ok, err := m.getJSON(fmt.Sprintf("%s%d", prefixDebt, id), &position)
	if err != nil || !ok {
		return nil, err
	}
	return &position, nil
}

// PutDebtPosition stores a debt position.
func (m *Manager) PutDebtPosition(position *credit.DebtPosition) error {
	return m.putJSON(fmt.Sprintf("%s%d", prefixDebt, position.ID), position)
}

// GetCreditPosition loads a credit position; absent positions return nil.
func (m *Manager) GetCreditPosition(id uint64) (*credit.CreditPosition, error) {
	var position credit.CreditPosition
	ok, err := m.getJSON(fmt.Sprintf("%s%d", prefixCredit, id), &position)
	if err != nil || !ok {
		return nil, err
	}
	return &position, nil
}

// PutCreditPosition stores a credit position.
func (m *Manager) PutCreditPosition(position *credit.CreditPosition) error {
	return m.putJSON(fmt.Sprintf("%s%d", prefixCredit, position.ID), position)
}

// GetGlobals loads the market aggregates; an empty store returns nil.
func (m *Manager) GetGlobals() (*credit.Globals, error) {
	var globals credit.Globals
	ok, err := m.getJSON(keyGlobals, &globals)
	if err != nil || !ok {
		return nil, err
	}
	return &globals, nil
}

// PutGlobals stores the market aggregates.
func (m *Manager) PutGlobals(globals *credit.Globals) error {
	return m.putJSON(keyGlobals, globals)
}

// NextDebtPositionID hands out the next debt position identifier.
func (m *Manager) NextDebtPositionID() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.debtSeq
	m.debtSeq++
	return id
}

// NextCreditPositionID hands out the next credit position identifier.
func (m *Manager) NextCreditPositionID() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	id := m.creditSeq
	m.creditSeq++
	return id
}
