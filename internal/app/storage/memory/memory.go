// Package memory is the in-process ledger implementation used by the test
// harness. A single mutex serializes transactions, standing in for the
// host's per-address write locks; staged writes swap in only on commit.
package memory

import (
	"context"
	"sync"

	"github.com/solji-labs/solji-program-sub000/internal/app/domain/record"
	"github.com/solji-labs/solji-program-sub000/internal/app/storage"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
)

// Ledger is an in-memory storage.Ledger. Safe for concurrent use.
type Ledger struct {
	mu       sync.Mutex
	records  map[pda.Address]record.Record
	balances map[pda.Address]uint64
}

var _ storage.Ledger = (*Ledger)(nil)

// New creates an empty ledger.
func New() *Ledger {
	return &Ledger{
		records:  make(map[pda.Address]record.Record),
		balances: make(map[pda.Address]uint64),
	}
}

// Transact runs fn against a staging area and commits it atomically when fn
// returns nil. Any error discards the staging area untouched.
func (l *Ledger) Transact(ctx context.Context, fn func(tx storage.Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	tx := &memTx{
		ledger:   l,
		writes:   make(map[pda.Address]record.Record),
		deletes:  make(map[pda.Address]struct{}),
		balances: make(map[pda.Address]uint64),
	}
	if err := fn(tx); err != nil {
		return err
	}

	for addr := range tx.deletes {
		delete(l.records, addr)
	}
	for addr, rec := range tx.writes {
		l.records[addr] = rec
	}
	for key, balance := range tx.balances {
		l.balances[key] = balance
	}
	return nil
}

// Get returns a copy of a committed record.
func (l *Ledger) Get(_ context.Context, addr pda.Address) (record.Record, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	rec, ok := l.records[addr]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return rec.Clone(), nil
}

// BalanceOf returns a committed balance.
func (l *Ledger) BalanceOf(_ context.Context, key pda.Address) uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[key]
}

// Fund credits a key outside any instruction. Harness-only.
func (l *Ledger) Fund(key pda.Address, lamports uint64) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.balances[key] += lamports
}

// memTx stages writes on top of the committed maps. The ledger mutex is held
// for the whole transaction, so reads of the committed maps are safe.
type memTx struct {
	ledger   *Ledger
	writes   map[pda.Address]record.Record
	deletes  map[pda.Address]struct{}
	balances map[pda.Address]uint64
}

var _ storage.Tx = (*memTx)(nil)

func (t *memTx) exists(addr pda.Address) bool {
	if _, gone := t.deletes[addr]; gone {
		return false
	}
	if _, ok := t.writes[addr]; ok {
		return true
	}
	_, ok := t.ledger.records[addr]
	return ok
}

func (t *memTx) Initialize(addr pda.Address, rec record.Record) error {
	if t.exists(addr) {
		return storage.ErrAlreadyExists
	}
	delete(t.deletes, addr)
	t.writes[addr] = rec.Clone()
	return nil
}

func (t *memTx) Fetch(addr pda.Address) (record.Record, error) {
	if _, gone := t.deletes[addr]; gone {
		return nil, storage.ErrNotFound
	}
	if rec, ok := t.writes[addr]; ok {
		return rec.Clone(), nil
	}
	if rec, ok := t.ledger.records[addr]; ok {
		return rec.Clone(), nil
	}
	return nil, storage.ErrNotFound
}

func (t *memTx) FetchOrNil(addr pda.Address) record.Record {
	rec, err := t.Fetch(addr)
	if err != nil {
		return nil
	}
	return rec
}

func (t *memTx) Update(addr pda.Address, rec record.Record) error {
	if !t.exists(addr) {
		return storage.ErrNotFound
	}
	t.writes[addr] = rec.Clone()
	return nil
}

func (t *memTx) Delete(addr pda.Address) error {
	if !t.exists(addr) {
		return storage.ErrNotFound
	}
	delete(t.writes, addr)
	t.deletes[addr] = struct{}{}
	return nil
}

func (t *memTx) Balance(key pda.Address) uint64 {
	if b, ok := t.balances[key]; ok {
		return b
	}
	return t.ledger.balances[key]
}

func (t *memTx) Credit(key pda.Address, lamports uint64) {
	t.balances[key] = t.Balance(key) + lamports
}

func (t *memTx) Debit(key pda.Address, lamports uint64) error {
	current := t.Balance(key)
	if current < lamports {
		return storage.ErrInsufficientFunds
	}
	t.balances[key] = current - lamports
	return nil
}
