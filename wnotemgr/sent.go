// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wnotemgr

import (
	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/btcsuite/btcd/wire"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/zecsuite/zecwallet/waddrmgr"
	"github.com/zecsuite/zecwallet/zutil"
)

// RecipientKind discriminates the destinations an outgoing output can pay.
type RecipientKind uint8

const (
	// RecipientExternal is an address outside the wallet.
	RecipientExternal RecipientKind = iota

	// RecipientEphemeralTransparent is a wallet-owned single-use
	// transparent output, used when shielding across pools.
	RecipientEphemeralTransparent

	// RecipientInternalAccount is a transfer to another account in this
	// wallet, carrying the received note directly.
	RecipientInternalAccount
)

// Recipient is the destination of a sent output. The populated fields
// depend on Kind: external recipients carry an address and pool, ephemeral
// transparent recipients carry the receiving account and outpoint, and
// internal transfers additionally carry the note itself.
type Recipient struct {
	Kind RecipientKind

	// Address and Pool are set for RecipientExternal.
	Address string
	Pool    zutil.Pool

	// Account is set for ephemeral and internal recipients.
	Account waddrmgr.AccountID

	// OutPoint is set for ephemeral transparent recipients.
	OutPoint fn.Option[wire.OutPoint]

	// Note is set for internal account transfers.
	Note fn.Option[Note]
}

// SentNote records a single output of a transaction authored by this
// wallet. Sent notes are immutable once created.
type SentNote struct {
	TxID        chainhash.Hash
	Pool        zutil.Pool
	OutputIndex uint16

	From      waddrmgr.AccountID
	Recipient Recipient
	Value     btcutil.Amount
	Memo      []byte
}

// clone returns a deep copy of the sent note.
func (n *SentNote) clone() *SentNote {
	dup := *n
	dup.Memo = append([]byte(nil), n.Memo...)
	dup.Recipient.Note = fn.MapOption(func(note Note) Note {
		return note.clone()
	})(n.Recipient.Note)
	return &dup
}

// PutSentNote appends a sent note record.
func (s *Store) PutSentNote(note *SentNote) {
	s.sent = append(s.sent, note.clone())
}

// SentNotes returns all sent notes in insertion order.
func (s *Store) SentNotes() []*SentNote {
	notes := make([]*SentNote, 0, len(s.sent))
	for _, note := range s.sent {
		notes = append(notes, note.clone())
	}
	return notes
}

// SentNotesFrom returns the sent notes authored by the given account, in
// insertion order.
func (s *Store) SentNotesFrom(account waddrmgr.AccountID) []*SentNote {
	var notes []*SentNote
	for _, note := range s.sent {
		if note.From == account {
			notes = append(notes, note.clone())
		}
	}
	return notes
}
