// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wtxmgr

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/zecsuite/zecwallet/waddrmgr"
)

// OutPoint identifies a transparent transaction output: the hash of the
// creating transaction and the output index within it.
type OutPoint = wire.OutPoint

// Utxo is a transparent output received by the wallet.
type Utxo struct {
	OutPoint OutPoint
	Account  waddrmgr.AccountID

	// Address is the encoded transparent address the output pays to.
	Address string

	Value    btcutil.Amount
	PkScript []byte

	// MaxObservedUnspent is the highest block height at which the output
	// was observed to still be unspent.
	MaxObservedUnspent fn.Option[int32]

	// MinedHeight is the height of the block containing the creating
	// transaction, once known.
	MinedHeight fn.Option[int32]
}

// clone returns a deep copy of the utxo.
func (u *Utxo) clone() *Utxo {
	dup := *u
	dup.PkScript = append([]byte(nil), u.PkScript...)
	return &dup
}

// PutUtxo inserts or updates a received transparent output. Re-insertion
// merges newly known fields into the existing record.
func (s *Store) PutUtxo(utxo *Utxo) {
	existing, ok := s.utxos[utxo.OutPoint]
	if !ok {
		s.utxos[utxo.OutPoint] = utxo.clone()
		return
	}
	existing.MaxObservedUnspent =
		utxo.MaxObservedUnspent.Alt(existing.MaxObservedUnspent)
	existing.MinedHeight = utxo.MinedHeight.Alt(existing.MinedHeight)
	if len(utxo.PkScript) > 0 {
		existing.PkScript = append([]byte(nil), utxo.PkScript...)
	}
}

// Utxo returns a copy of the output record for the given outpoint.
func (s *Store) Utxo(op OutPoint) (*Utxo, error) {
	utxo, ok := s.utxos[op]
	if !ok {
		str := fmt.Sprintf("output %v not found", op)
		return nil, storeError(ErrUnknownOutput, str, nil)
	}
	return utxo.clone(), nil
}

// Utxos returns all transparent output records in a deterministic order.
func (s *Store) Utxos() []*Utxo {
	utxos := make([]*Utxo, 0, len(s.utxos))
	for _, utxo := range s.utxos {
		utxos = append(utxos, utxo.clone())
	}
	sort.Slice(utxos, func(i, j int) bool {
		a, b := &utxos[i].OutPoint, &utxos[j].OutPoint
		if a.Hash != b.Hash {
			return hashLess(&a.Hash, &b.Hash)
		}
		return a.Index < b.Index
	})
	return utxos
}

// SpendUtxo records that the output is consumed by the given transaction.
// A duplicate record for the same spender is a no-op; a conflicting spender
// fails with ErrAlreadySpent and leaves the original record intact.
func (s *Store) SpendUtxo(op OutPoint, spender chainhash.Hash) error {
	if _, ok := s.utxos[op]; !ok {
		str := fmt.Sprintf("output %v not found", op)
		return storeError(ErrUnknownOutput, str, nil)
	}
	if existing, ok := s.utxoSpends[op]; ok {
		if existing == spender {
			return nil
		}
		str := fmt.Sprintf("output %v already spent by %v", op,
			existing)
		return storeError(ErrAlreadySpent, str, nil)
	}
	s.utxoSpends[op] = spender
	s.spendLocations[spender] = op
	return nil
}

// UtxoSpender returns the transaction spending the output, or None.
func (s *Store) UtxoSpender(op OutPoint) fn.Option[chainhash.Hash] {
	spender, ok := s.utxoSpends[op]
	if !ok {
		return fn.None[chainhash.Hash]()
	}
	return fn.Some(spender)
}

// SpendLocation returns the outpoint consumed by the given transaction from
// the reverse-lookup cache, or None. The cache exists so reorg handling can
// unwind spends without scanning the spend table.
func (s *Store) SpendLocation(txid chainhash.Hash) fn.Option[OutPoint] {
	op, ok := s.spendLocations[txid]
	if !ok {
		return fn.None[OutPoint]()
	}
	return fn.Some(op)
}

// UtxoSpend is a single transparent spend record.
type UtxoSpend struct {
	OutPoint OutPoint
	Spender  chainhash.Hash
}

// UtxoSpends returns all spend records in a deterministic order.
func (s *Store) UtxoSpends() []UtxoSpend {
	spends := make([]UtxoSpend, 0, len(s.utxoSpends))
	for op, spender := range s.utxoSpends {
		spends = append(spends, UtxoSpend{OutPoint: op, Spender: spender})
	}
	sort.Slice(spends, func(i, j int) bool {
		a, b := &spends[i].OutPoint, &spends[j].OutPoint
		if a.Hash != b.Hash {
			return hashLess(&a.Hash, &b.Hash)
		}
		return a.Index < b.Index
	})
	return spends
}

// UnspentUtxos returns the account's unspent outputs whose creating
// transactions are mined at or below the anchor height. Outputs with an
// unmined spender are excluded; expiry of the spender is the note store's
// concern, not tracked for transparent funds.
func (s *Store) UnspentUtxos(account waddrmgr.AccountID,
	anchor int32) []*Utxo {

	var unspent []*Utxo
	for op, utxo := range s.utxos {
		if utxo.Account != account {
			continue
		}
		if _, spent := s.utxoSpends[op]; spent {
			continue
		}
		mined, err := utxo.MinedHeight.UnwrapOrErr(errNone)
		if err != nil || mined > anchor {
			continue
		}
		unspent = append(unspent, utxo.clone())
	}
	sort.Slice(unspent, func(i, j int) bool {
		a, b := &unspent[i].OutPoint, &unspent[j].OutPoint
		if a.Hash != b.Hash {
			return hashLess(&a.Hash, &b.Hash)
		}
		return a.Index < b.Index
	})
	return unspent
}

// MarkUtxoUnspentAt raises the height at which the output was last observed
// unspent.
func (s *Store) MarkUtxoUnspentAt(op OutPoint, height int32) error {
	utxo, ok := s.utxos[op]
	if !ok {
		str := fmt.Sprintf("output %v not found", op)
		return storeError(ErrUnknownOutput, str, nil)
	}
	if utxo.MaxObservedUnspent.UnwrapOr(-1) < height {
		utxo.MaxObservedUnspent = fn.Some(height)
	}
	return nil
}

// RestoreStore reassembles a store from decoded snapshot tables. Locator
// entries must be supplied in their original insertion order.
func RestoreStore(blocks []*BlockRecord, txs []*TxRecord,
	locator []LocatorEntry, utxos []*Utxo, spends []UtxoSpend,
	spendLocations map[chainhash.Hash]OutPoint) *Store {

	s := NewStore()
	for _, block := range blocks {
		s.blocks[block.Height] = block.clone()
	}
	for _, rec := range txs {
		s.txs[rec.TxID] = rec.clone()
	}
	for _, entry := range locator {
		s.locator[entry.BlockIndex] = entry.TxID
		s.locatorOrder = append(s.locatorOrder, entry.BlockIndex)
	}
	for _, utxo := range utxos {
		s.utxos[utxo.OutPoint] = utxo.clone()
	}
	for _, spend := range spends {
		s.utxoSpends[spend.OutPoint] = spend.Spender
	}
	for txid, op := range spendLocations {
		s.spendLocations[txid] = op
	}
	return s
}
