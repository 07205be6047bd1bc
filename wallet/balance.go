// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/zecsuite/zecwallet/waddrmgr"
	"github.com/zecsuite/zecwallet/wnotemgr"
	"github.com/zecsuite/zecwallet/wtxmgr"
)

// Balance summarizes an account's funds. Spendable counts only the shielded
// notes the wallet could prove and spend right now against the given anchor;
// Total additionally counts immature notes, dust, notes pending spentness
// confirmation, and transparent funds.
type Balance struct {
	Spendable   btcutil.Amount
	Total       btcutil.Amount
	Transparent btcutil.Amount
}

// SpendableNotes returns the account's shielded notes that can be spent in a
// transaction anchored at the given height. A note is spendable when the
// account holds a full viewing key, the note's nullifier and witness
// position are known, its creating transaction is mined at or below the
// anchor, its value exceeds the dust threshold, and no unexpired
// transaction spends it.
func (w *Wallet) SpendableNotes(account waddrmgr.AccountID,
	anchor int32) ([]*wnotemgr.ReceivedNote, error) {

	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.spendableNotesLocked(account, anchor)
}

func (w *Wallet) spendableNotesLocked(account waddrmgr.AccountID,
	anchor int32) ([]*wnotemgr.ReceivedNote, error) {

	hasFVK, err := w.accounts.HasFullViewingKey(account)
	if err != nil {
		return nil, err
	}
	if !hasFVK {
		return nil, nil
	}

	var spendable []*wnotemgr.ReceivedNote
	for _, note := range w.notes.NotesForAccount(account) {
		if note.Nullifier.IsNone() || note.Position.IsNone() {
			continue
		}
		if note.Note.Value <= w.cfg.DustThreshold {
			continue
		}
		mined, err := w.noteMinedHeightLocked(note)
		if err != nil || mined > anchor {
			continue
		}
		if w.noteSpentLocked(note) {
			continue
		}
		spendable = append(spendable, note)
	}
	return spendable, nil
}

// noteMinedHeightLocked returns the height the note's creating transaction
// is mined at, or an error when it is unmined.
func (w *Wallet) noteMinedHeightLocked(
	note *wnotemgr.ReceivedNote) (int32, error) {

	rec, err := w.txs.Tx(note.ID.TxID)
	if err != nil {
		return 0, err
	}
	return rec.MinedHeight().UnwrapOrErr(errNoValue)
}

// noteSpentLocked reports whether the note is consumed by a transaction that
// can still confirm. A spend whose transaction has provably expired below
// the wallet's scanned height releases the note.
func (w *Wallet) noteSpentLocked(note *wnotemgr.ReceivedNote) bool {
	spender, err := w.notes.SpenderOf(note.ID).UnwrapOrErr(errNoValue)
	if err != nil {
		return false
	}

	rec, err := w.txs.Tx(spender)
	if err != nil {
		// The spender is known only by id; assume it can confirm.
		return true
	}
	switch rec.Status {
	case wtxmgr.StatusMined:
		return true
	case wtxmgr.StatusNotInMainChain, wtxmgr.StatusUnrecognized:
		expiry, err := rec.Expiry.UnwrapOrErr(errNoValue)
		if err != nil || expiry == 0 {
			return true
		}
		scanned, err := w.txs.MaxScannedHeight().
			UnwrapOrErr(errNoValue)
		if err != nil {
			return true
		}
		return scanned <= expiry
	}
	return true
}

// AccountBalance computes the account's balance against the given anchor
// height.
func (w *Wallet) AccountBalance(account waddrmgr.AccountID,
	anchor int32) (Balance, error) {

	w.mu.RLock()
	defer w.mu.RUnlock()

	var bal Balance

	spendable, err := w.spendableNotesLocked(account, anchor)
	if err != nil {
		return Balance{}, err
	}
	for _, note := range spendable {
		bal.Spendable += note.Note.Value
	}

	for _, note := range w.notes.NotesForAccount(account) {
		if w.noteSpentLocked(note) {
			continue
		}
		bal.Total += note.Note.Value
	}

	for _, utxo := range w.txs.UnspentUtxos(account, anchor) {
		bal.Transparent += utxo.Value
	}
	bal.Total += bal.Transparent

	return bal, nil
}
