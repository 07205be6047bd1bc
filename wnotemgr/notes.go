// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wnotemgr

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/zecsuite/zecwallet/waddrmgr"
	"github.com/zecsuite/zecwallet/zutil"
)

// SeedKind distinguishes the two note plaintext randomness encodings, which
// changed at the ZIP 212 protocol upgrade boundary.
type SeedKind uint8

const (
	// SeedBeforeZip212 is the pre-upgrade encoding carrying the
	// commitment randomness directly.
	SeedBeforeZip212 SeedKind = iota

	// SeedAfterZip212 is the post-upgrade encoding carrying a seed from
	// which the randomness is derived.
	SeedAfterZip212
)

// RandomSeed is the typed note randomness.
type RandomSeed struct {
	Kind  SeedKind
	Bytes [32]byte
}

// KeyScope identifies which branch of an account's viewing capability
// received a note.
type KeyScope uint8

const (
	// ScopeExternal covers externally visible addresses.
	ScopeExternal KeyScope = iota

	// ScopeInternal covers change and other internal addresses.
	ScopeInternal
)

// Note is the protocol-level payload of a shielded note.
type Note struct {
	Protocol zutil.ShieldedProtocol

	// Recipient is the raw diversified address the note pays to.
	Recipient []byte

	Value btcutil.Amount

	// Rho is only present for Orchard notes.
	Rho fn.Option[[32]byte]

	Rseed RandomSeed
}

// clone returns a deep copy of the note.
func (n *Note) clone() Note {
	dup := *n
	dup.Recipient = append([]byte(nil), n.Recipient...)
	return dup
}

// ReceivedNote is a shielded note received by one of the wallet's accounts,
// together with the wallet-side bookkeeping that accumulates as the chain
// view advances.
type ReceivedNote struct {
	ID      zutil.NoteID
	Account waddrmgr.AccountID
	Note    Note

	// Nullifier is absent until the owning account's full viewing key
	// has been used to compute it. View-only accounts never populate it.
	Nullifier fn.Option[zutil.Nullifier]

	// IsChange marks notes the wallet sent to itself.
	IsChange bool

	Memo []byte

	// Position is the note commitment's position in the protocol's
	// commitment tree, absent until the creating transaction is mined
	// and the tree has advanced past it.
	Position fn.Option[uint64]

	// Scope records which key branch recognized the note.
	Scope fn.Option[KeyScope]
}

// clone returns a deep copy of the received note.
func (n *ReceivedNote) clone() *ReceivedNote {
	dup := *n
	dup.Note = n.Note.clone()
	dup.Memo = append([]byte(nil), n.Memo...)
	return &dup
}

// SpendObservation records where a nullifier was observed spent on-chain:
// the block height and the index of the revealing transaction within that
// block. Observations exist so spends can be detected from compact block
// data before the spending transaction's full data is known.
type SpendObservation struct {
	Nullifier zutil.Nullifier
	Height    int32
	Index     uint32
}

// Store implements the shielded note store: received notes, the nullifier
// index, spend records, pending spend observations and sent notes.
//
// The store performs no locking of its own; the wallet facade serializes
// all access.
type Store struct {
	notes     map[zutil.NoteID]*ReceivedNote
	noteOrder []zutil.NoteID

	// byNullifier indexes notes by their computed nullifier. At most one
	// note of a protocol may own a given nullifier.
	byNullifier map[zutil.Nullifier]zutil.NoteID

	// spends links a note to the transaction that consumes it.
	spends map[zutil.NoteID]chainhash.Hash

	// observations buffers nullifier spend sightings, including
	// speculative ones whose owning note has not been discovered yet.
	observations map[zutil.Nullifier]SpendObservation

	sent []*SentNote
}

// NewStore creates an empty shielded note store.
func NewStore() *Store {
	return &Store{
		notes:        make(map[zutil.NoteID]*ReceivedNote),
		byNullifier:  make(map[zutil.Nullifier]zutil.NoteID),
		spends:       make(map[zutil.NoteID]chainhash.Hash),
		observations: make(map[zutil.Nullifier]SpendObservation),
	}
}

// PutNote inserts a received note, or merges newly known fields into an
// existing record with the same note id. Fields already known are never
// erased by an absent incoming value.
//
// When the note (now or already) carries a nullifier that has a buffered
// spend observation, the observation is returned so the caller can resolve
// the spending transaction against its locator.
func (s *Store) PutNote(note *ReceivedNote) (fn.Option[SpendObservation],
	error) {

	none := fn.None[SpendObservation]()

	existing, ok := s.notes[note.ID]
	if !ok {
		if err := s.bindNullifier(note.ID, note.Nullifier); err != nil {
			return none, err
		}
		s.notes[note.ID] = note.clone()
		s.noteOrder = append(s.noteOrder, note.ID)
		log.Tracef("Inserted note %v for account %d", note.ID,
			note.Account)
		return s.pendingObservation(note.Nullifier), nil
	}

	if err := s.bindNullifier(note.ID, note.Nullifier); err != nil {
		return none, err
	}

	existing.Nullifier = note.Nullifier.Alt(existing.Nullifier)
	existing.Position = note.Position.Alt(existing.Position)
	existing.Scope = note.Scope.Alt(existing.Scope)
	existing.IsChange = existing.IsChange || note.IsChange
	if len(note.Memo) > 0 {
		existing.Memo = append([]byte(nil), note.Memo...)
	}

	return s.pendingObservation(existing.Nullifier), nil
}

// bindNullifier enforces global nullifier uniqueness before recording the
// index entry.
func (s *Store) bindNullifier(id zutil.NoteID,
	nf fn.Option[zutil.Nullifier]) error {

	value, err := nf.UnwrapOrErr(errAbsent)
	if err != nil {
		return nil
	}
	if owner, ok := s.byNullifier[value]; ok && owner != id {
		str := fmt.Sprintf("nullifier %v already bound to note %v",
			value, owner)
		return noteStoreError(ErrNullifierConflict, str, nil)
	}
	s.byNullifier[value] = id
	return nil
}

// pendingObservation returns the buffered spend observation for the
// nullifier, if any.
func (s *Store) pendingObservation(
	nf fn.Option[zutil.Nullifier]) fn.Option[SpendObservation] {

	none := fn.None[SpendObservation]()
	value, err := nf.UnwrapOrErr(errAbsent)
	if err != nil {
		return none
	}
	obs, ok := s.observations[value]
	if !ok {
		return none
	}
	return fn.Some(obs)
}

// SetNullifier records a freshly computed nullifier for an existing note.
// Binding a nullifier already owned by a different note fails with
// ErrNullifierConflict and leaves the previous binding unchanged.
func (s *Store) SetNullifier(id zutil.NoteID, nf zutil.Nullifier) (
	fn.Option[SpendObservation], error) {

	none := fn.None[SpendObservation]()
	note, ok := s.notes[id]
	if !ok {
		str := fmt.Sprintf("note %v not found", id)
		return none, noteStoreError(ErrUnknownNote, str, nil)
	}
	if err := s.bindNullifier(id, fn.Some(nf)); err != nil {
		return none, err
	}
	note.Nullifier = fn.Some(nf)
	return s.pendingObservation(note.Nullifier), nil
}

// NullifierOwner returns the note id bound to the nullifier, failing with
// ErrUnknownNullifier when no note owns it.
func (s *Store) NullifierOwner(nf zutil.Nullifier) (zutil.NoteID, error) {
	id, ok := s.byNullifier[nf]
	if !ok {
		str := fmt.Sprintf("no note owns nullifier %v", nf)
		return zutil.NoteID{}, noteStoreError(ErrUnknownNullifier, str,
			nil)
	}
	return id, nil
}

// ObserveSpend buffers a sighting of the nullifier being revealed at the
// given chain location. The owning note need not be known yet: speculative
// observations are retained and resolved lazily when the note is later
// discovered. The owner, when already known, is returned.
func (s *Store) ObserveSpend(nf zutil.Nullifier, height int32,
	index uint32) fn.Option[zutil.NoteID] {

	s.observations[nf] = SpendObservation{
		Nullifier: nf,
		Height:    height,
		Index:     index,
	}
	id, ok := s.byNullifier[nf]
	if !ok {
		log.Tracef("Buffered speculative spend of %v at height %d",
			nf, height)
		return fn.None[zutil.NoteID]()
	}
	return fn.Some(id)
}

// RecordSpend links a note to the transaction that spends it. Recording the
// same spender twice is a no-op; a different spender fails with
// ErrAlreadySpent and the original record is retained.
func (s *Store) RecordSpend(id zutil.NoteID, spender chainhash.Hash) error {
	if _, ok := s.notes[id]; !ok {
		str := fmt.Sprintf("note %v not found", id)
		return noteStoreError(ErrUnknownNote, str, nil)
	}
	if existing, ok := s.spends[id]; ok {
		if existing == spender {
			return nil
		}
		str := fmt.Sprintf("note %v already spent by %v", id, existing)
		return noteStoreError(ErrAlreadySpent, str, nil)
	}
	s.spends[id] = spender
	return nil
}

// SpenderOf returns the transaction spending the note, or None.
func (s *Store) SpenderOf(id zutil.NoteID) fn.Option[chainhash.Hash] {
	spender, ok := s.spends[id]
	if !ok {
		return fn.None[chainhash.Hash]()
	}
	return fn.Some(spender)
}

// Note returns a copy of the received note record.
func (s *Store) Note(id zutil.NoteID) (*ReceivedNote, error) {
	note, ok := s.notes[id]
	if !ok {
		str := fmt.Sprintf("note %v not found", id)
		return nil, noteStoreError(ErrUnknownNote, str, nil)
	}
	return note.clone(), nil
}

// Memo returns the memo attached to a note.
func (s *Store) Memo(id zutil.NoteID) ([]byte, error) {
	note, ok := s.notes[id]
	if !ok {
		str := fmt.Sprintf("note %v not found", id)
		return nil, noteStoreError(ErrUnknownNote, str, nil)
	}
	return append([]byte(nil), note.Memo...), nil
}

// Notes returns all received notes in insertion order.
func (s *Store) Notes() []*ReceivedNote {
	notes := make([]*ReceivedNote, 0, len(s.noteOrder))
	for _, id := range s.noteOrder {
		notes = append(notes, s.notes[id].clone())
	}
	return notes
}

// NotesForAccount returns the account's received notes in insertion order.
func (s *Store) NotesForAccount(
	account waddrmgr.AccountID) []*ReceivedNote {

	var notes []*ReceivedNote
	for _, id := range s.noteOrder {
		if note := s.notes[id]; note.Account == account {
			notes = append(notes, note.clone())
		}
	}
	return notes
}

// UnspentNotes returns the account's notes that carry no spend record.
// Whether a note with an unmined spender still counts as spent is a joint
// judgment with the transaction store, made by the facade.
func (s *Store) UnspentNotes(account waddrmgr.AccountID) []*ReceivedNote {
	var notes []*ReceivedNote
	for _, id := range s.noteOrder {
		note := s.notes[id]
		if note.Account != account {
			continue
		}
		if _, spent := s.spends[id]; spent {
			continue
		}
		notes = append(notes, note.clone())
	}
	return notes
}

// NoteSpend is a single note spend record.
type NoteSpend struct {
	NoteID  zutil.NoteID
	Spender chainhash.Hash
}

// Spends returns all spend records in a deterministic order.
func (s *Store) Spends() []NoteSpend {
	spends := make([]NoteSpend, 0, len(s.spends))
	for id, spender := range s.spends {
		spends = append(spends, NoteSpend{NoteID: id, Spender: spender})
	}
	sort.Slice(spends, func(i, j int) bool {
		return spends[i].NoteID.String() < spends[j].NoteID.String()
	})
	return spends
}

// Observations returns all buffered spend observations in a deterministic
// order.
func (s *Store) Observations() []SpendObservation {
	obs := make([]SpendObservation, 0, len(s.observations))
	for _, o := range s.observations {
		obs = append(obs, o)
	}
	sort.Slice(obs, func(i, j int) bool {
		return obs[i].Nullifier.String() < obs[j].Nullifier.String()
	})
	return obs
}

// Rollback clears the chain-derived state invalidated by a reorg at the
// fork height: tree positions of notes created by demoted transactions and
// every spend observation at or above the fork. Spend records whose
// spending transaction was merely demoted are retained, since the spender
// may be re-mined.
func (s *Store) Rollback(fork int32,
	demoted map[chainhash.Hash]struct{}) {

	for _, note := range s.notes {
		if _, ok := demoted[note.ID.TxID]; ok {
			note.Position = fn.None[uint64]()
		}
	}
	for nf, obs := range s.observations {
		if obs.Height >= fork {
			delete(s.observations, nf)
		}
	}
	log.Debugf("Rolled note store back to height %d (%d demoted txs)",
		fork, len(demoted))
}

// Clone returns a deep copy of the store, used by the facade to stage
// multi-store mutations.
func (s *Store) Clone() *Store {
	dup := NewStore()
	for id, note := range s.notes {
		dup.notes[id] = note.clone()
	}
	dup.noteOrder = append([]zutil.NoteID(nil), s.noteOrder...)
	for nf, id := range s.byNullifier {
		dup.byNullifier[nf] = id
	}
	for id, spender := range s.spends {
		dup.spends[id] = spender
	}
	for nf, obs := range s.observations {
		dup.observations[nf] = obs
	}
	for _, sn := range s.sent {
		dup.sent = append(dup.sent, sn.clone())
	}
	return dup
}

// RestoreStore reassembles a store from decoded snapshot tables, rebuilding
// the nullifier index from the note records. It fails with
// ErrNullifierConflict if two notes claim the same nullifier.
func RestoreStore(notes []*ReceivedNote, spends []NoteSpend,
	observations []SpendObservation, sent []*SentNote) (*Store, error) {

	s := NewStore()
	for _, note := range notes {
		if _, err := s.PutNote(note); err != nil {
			return nil, err
		}
	}
	for _, spend := range spends {
		if err := s.RecordSpend(spend.NoteID, spend.Spender); err != nil {
			return nil, err
		}
	}
	for _, obs := range observations {
		s.observations[obs.Nullifier] = obs
	}
	for _, sn := range sent {
		s.sent = append(s.sent, sn.clone())
	}
	return s, nil
}

// errAbsent is used with Option.UnwrapOrErr when only presence matters.
var errAbsent = fmt.Errorf("value absent")
