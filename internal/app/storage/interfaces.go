// Package storage defines the ledger boundary: typed records held at derived
// addresses, native balances, and atomic per-instruction transactions. The
// ledger is the sole source of truth; no record is read from or written to
// any other location.
package storage

import (
	"context"
	"errors"

	"github.com/solji-labs/solji-program-sub000/internal/app/domain/record"
	"github.com/solji-labs/solji-program-sub000/internal/pda"
)

var (
	// ErrNotFound means the referenced record was never initialized.
	ErrNotFound = errors.New("record not found")
	// ErrAlreadyExists means the address already holds a record.
	ErrAlreadyExists = errors.New("record already exists")
	// ErrInsufficientFunds means a debit exceeds the key's balance.
	ErrInsufficientFunds = errors.New("insufficient funds")
)

// Tx is the ledger view inside one instruction. Reads observe writes staged
// earlier in the same transaction. Nothing becomes visible to other callers
// until the transaction commits; returning an error discards every staged
// write.
type Tx interface {
	// Initialize stages a new record. Fails with ErrAlreadyExists when the
	// address is occupied.
	Initialize(addr pda.Address, rec record.Record) error
	// Fetch returns a private copy of the record. Mutations only persist
	// through Update.
	Fetch(addr pda.Address) (record.Record, error)
	// FetchOrNil is Fetch returning nil instead of ErrNotFound.
	FetchOrNil(addr pda.Address) record.Record
	// Update stages a replacement for an existing record. Fails with
	// ErrNotFound when the address is empty.
	Update(addr pda.Address, rec record.Record) error
	// Delete stages removal of an existing record.
	Delete(addr pda.Address) error

	// Balance returns the key's native balance as staged.
	Balance(key pda.Address) uint64
	// Credit stages a balance increase.
	Credit(key pda.Address, lamports uint64)
	// Debit stages a balance decrease, failing with ErrInsufficientFunds.
	Debit(key pda.Address, lamports uint64) error
}

// Ledger executes instruction transactions and serves committed reads.
type Ledger interface {
	// Transact runs fn atomically: all staged writes commit together, or
	// none do when fn returns an error.
	Transact(ctx context.Context, fn func(tx Tx) error) error
	// Get returns a copy of a committed record.
	Get(ctx context.Context, addr pda.Address) (record.Record, error)
	// BalanceOf returns a committed balance.
	BalanceOf(ctx context.Context, key pda.Address) uint64
}
