// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

// Package wallet composes the individual stores into the wallet's
// authoritative in-memory view of the chain and its funds. The facade owns
// the single write lock: sub-stores never lock on their own, every mutation
// runs to completion under the exclusive lock, and multi-store mutations are
// staged on deep copies and committed with a pointer swap so that a failing
// operation leaves no partial state behind.
package wallet

import (
	"fmt"
	"io"
	"sync"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/zecsuite/zecwallet/scanmgr"
	"github.com/zecsuite/zecwallet/shardtree"
	"github.com/zecsuite/zecwallet/snapshot"
	"github.com/zecsuite/zecwallet/waddrmgr"
	"github.com/zecsuite/zecwallet/wnotemgr"
	"github.com/zecsuite/zecwallet/wtxmgr"
	"github.com/zecsuite/zecwallet/zutil"
)

const (
	// DefaultPruningDepth is the number of blocks below the chain tip
	// beyond which blocks are considered stable and tree checkpoints may
	// be discarded.
	DefaultPruningDepth = 100

	// DefaultVerifyLookahead is the number of blocks above the prior
	// max-scanned height that are re-fetched at verify priority to detect
	// a reorg before continuing toward the chain tip.
	DefaultVerifyLookahead = 10

	// DefaultDustThreshold is the value at or below which a note is not
	// worth selecting as an input.
	DefaultDustThreshold = btcutil.Amount(5000)
)

// Config holds the immutable wallet parameters supplied at construction.
type Config struct {
	// ActivationHeight is the height at which the earliest shielded
	// protocol activated on the target network. Chain state below it is
	// never scanned.
	ActivationHeight int32

	// PruningDepth overrides DefaultPruningDepth when positive.
	PruningDepth int32

	// VerifyLookahead overrides DefaultVerifyLookahead when positive.
	VerifyLookahead int32

	// DustThreshold overrides DefaultDustThreshold when positive.
	DustThreshold btcutil.Amount

	// SaplingEngine and OrchardEngine provide the tree algebra for the
	// per-protocol commitment trees. Both are required.
	SaplingEngine shardtree.TreeEngine
	OrchardEngine shardtree.TreeEngine
}

// normalize applies defaults and validates the configuration.
func (cfg *Config) normalize() error {
	if cfg.SaplingEngine == nil || cfg.OrchardEngine == nil {
		str := "both protocol tree engines are required"
		return walletError(ErrInvalidConfig, str, nil)
	}
	if cfg.ActivationHeight < 0 {
		str := fmt.Sprintf("invalid activation height %d",
			cfg.ActivationHeight)
		return walletError(ErrInvalidConfig, str, nil)
	}
	if cfg.PruningDepth <= 0 {
		cfg.PruningDepth = DefaultPruningDepth
	}
	if cfg.VerifyLookahead <= 0 {
		cfg.VerifyLookahead = DefaultVerifyLookahead
	}
	if cfg.DustThreshold <= 0 {
		cfg.DustThreshold = DefaultDustThreshold
	}
	return nil
}

// Wallet is the store facade. All access to the sub-stores flows through it
// under a single-writer/many-readers lock.
type Wallet struct {
	cfg Config

	mu sync.RWMutex

	// reorgInProgress is set when a rollback fails partway. Until a
	// rollback succeeds, all writes other than rollback retries are
	// refused with ErrReorgInProgress.
	reorgInProgress bool

	accounts  *waddrmgr.Manager
	txs       *wtxmgr.Store
	notes     *wnotemgr.Store
	sapling   *shardtree.Adapter
	orchard   *shardtree.Adapter
	scanQueue *scanmgr.ScanQueue
	requests  *scanmgr.RequestQueue
}

// New creates an empty wallet store.
func New(cfg Config) (*Wallet, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &Wallet{
		cfg:      cfg,
		accounts: waddrmgr.NewManager(),
		txs:      wtxmgr.NewStore(),
		notes:    wnotemgr.NewStore(),
		sapling: shardtree.NewAdapter(
			zutil.Sapling, cfg.SaplingEngine,
		),
		orchard: shardtree.NewAdapter(
			zutil.Orchard, cfg.OrchardEngine,
		),
		scanQueue: scanmgr.NewScanQueue(),
		requests:  scanmgr.NewRequestQueue(),
	}, nil
}

// staged is a deep copy of every sub-store, used as the unit of work for
// multi-store mutations. Mutations apply to the copies; commit swaps them in.
type staged struct {
	accounts  *waddrmgr.Manager
	txs       *wtxmgr.Store
	notes     *wnotemgr.Store
	sapling   *shardtree.Adapter
	orchard   *shardtree.Adapter
	scanQueue *scanmgr.ScanQueue
	requests  *scanmgr.RequestQueue
}

// stageLocked clones the sub-stores. The write lock must be held.
func (w *Wallet) stageLocked() *staged {
	return &staged{
		accounts:  w.accounts.Clone(),
		txs:       w.txs.Clone(),
		notes:     w.notes.Clone(),
		sapling:   w.sapling.Clone(),
		orchard:   w.orchard.Clone(),
		scanQueue: w.scanQueue.Clone(),
		requests:  w.requests.Clone(),
	}
}

// commitLocked swaps the staged sub-stores in. The write lock must be held.
func (w *Wallet) commitLocked(st *staged) {
	w.accounts = st.accounts
	w.txs = st.txs
	w.notes = st.notes
	w.sapling = st.sapling
	w.orchard = st.orchard
	w.scanQueue = st.scanQueue
	w.requests = st.requests
}

// checkWritableLocked refuses writes while a failed rollback is outstanding.
func (w *Wallet) checkWritableLocked() error {
	if w.reorgInProgress {
		str := "rollback incomplete; retry after RollbackToHeight " +
			"succeeds"
		return walletError(ErrReorgInProgress, str, nil)
	}
	return nil
}

// CreateAccountReq describes a derived account to add to the wallet.
type CreateAccountReq struct {
	Derivation waddrmgr.HDDerivation
	Purpose    waddrmgr.AccountPurpose
	ViewingKey string
	Birthday   waddrmgr.Birthday
}

// CreateAccount adds a seed-derived account. The birthday height must be at
// or above the network activation height; scanning for the account is queued
// from its birthday up to the known chain tip.
func (w *Wallet) CreateAccount(req CreateAccountReq) (*waddrmgr.Account,
	error) {

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkWritableLocked(); err != nil {
		return nil, err
	}
	return w.addAccountLocked(waddrmgr.NewAccountReq{
		Kind:       waddrmgr.AccountDerived,
		Derivation: fn.Some(req.Derivation),
		Purpose:    req.Purpose,
		ViewingKey: req.ViewingKey,
		Birthday:   req.Birthday,
	})
}

// ImportAccount adds an account backed by a bare viewing key.
func (w *Wallet) ImportAccount(viewingKey string,
	purpose waddrmgr.AccountPurpose, birthday waddrmgr.Birthday) (
	*waddrmgr.Account, error) {

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkWritableLocked(); err != nil {
		return nil, err
	}
	return w.addAccountLocked(waddrmgr.NewAccountReq{
		Kind:       waddrmgr.AccountImported,
		Purpose:    purpose,
		ViewingKey: viewingKey,
		Birthday:   birthday,
	})
}

func (w *Wallet) addAccountLocked(req waddrmgr.NewAccountReq) (
	*waddrmgr.Account, error) {

	if req.Birthday.Height < w.cfg.ActivationHeight {
		str := fmt.Sprintf("birthday height %d precedes activation "+
			"height %d", req.Birthday.Height,
			w.cfg.ActivationHeight)
		return nil, waddrmgr.ManagerError{
			ErrorCode:   waddrmgr.ErrInvalidBirthday,
			Description: str,
		}
	}

	account, err := w.accounts.NewAccount(req)
	if err != nil {
		return nil, err
	}

	// Recovering the account requires scanning from its birthday; the
	// range is only known once a chain tip has been observed. The insert
	// is forced: adding an account is the explicit opt-in that lifts
	// heights an account-less wallet marked ignored.
	chainEnd, err := w.chainEndLocked().UnwrapOrErr(errNoValue)
	if err == nil && account.Birthday.Height < chainEnd {
		w.scanQueue.InsertForce(scanmgr.ScanRange{
			Start:    account.Birthday.Height,
			End:      chainEnd,
			Priority: scanmgr.PriorityHistoric,
		})
	}
	return account, nil
}

// Account returns the account record for the given id.
func (w *Wallet) Account(id waddrmgr.AccountID) (*waddrmgr.Account, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.accounts.Account(id)
}

// Accounts returns all account records ordered by id.
func (w *Wallet) Accounts() []*waddrmgr.Account {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.accounts.Accounts()
}

// RecordAddress records a newly generated diversified address for an
// account. Address generation itself is an external collaborator.
func (w *Wallet) RecordAddress(id waddrmgr.AccountID, address string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkWritableLocked(); err != nil {
		return err
	}
	return w.accounts.AppendAddress(id, address)
}

// ReserveEphemeralAddress allocates the next ephemeral address index for the
// account, subject to the gap limit.
func (w *Wallet) ReserveEphemeralAddress(id waddrmgr.AccountID,
	address string) (uint32, error) {

	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkWritableLocked(); err != nil {
		return 0, err
	}
	return w.accounts.ReserveEphemeral(id, address)
}

// SetRecoverUntil records the upper bound of an account's recovery window.
func (w *Wallet) SetRecoverUntil(id waddrmgr.AccountID, height int32) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if err := w.checkWritableLocked(); err != nil {
		return err
	}
	return w.accounts.SetRecoverUntil(id, height)
}

// chainEndLocked returns the exclusive upper bound of the wallet's view of
// the chain, derived from the scan queue span and the scanned blocks.
func (w *Wallet) chainEndLocked() fn.Option[int32] {
	end := fn.None[int32]()
	w.scanQueue.Span().WhenSome(func(r scanmgr.ScanRange) {
		end = fn.Some(r.End)
	})
	w.txs.MaxScannedHeight().WhenSome(func(h int32) {
		if end.UnwrapOr(h) <= h {
			end = fn.Some(h + 1)
		}
	})
	return end
}

// Summary is a point-in-time view of the wallet's sync state.
type Summary struct {
	// ChainTip is the highest chain height the wallet knows of.
	ChainTip fn.Option[int32]

	// MaxScanned is the height of the highest scanned block.
	MaxScanned fn.Option[int32]

	// Birthday is the minimum birthday height across all accounts.
	Birthday fn.Option[int32]

	NumAccounts int
}

// Summary reports the wallet's sync state.
func (w *Wallet) Summary() Summary {
	w.mu.RLock()
	defer w.mu.RUnlock()

	tip := fn.None[int32]()
	w.chainEndLocked().WhenSome(func(end int32) {
		tip = fn.Some(end - 1)
	})
	return Summary{
		ChainTip:    tip,
		MaxScanned:  w.txs.MaxScannedHeight(),
		Birthday:    w.accounts.WalletBirthday(),
		NumAccounts: w.accounts.NumAccounts(),
	}
}

// Snapshot serializes the complete wallet state to w.
func (w *Wallet) Snapshot(out io.Writer) error {
	w.mu.RLock()
	defer w.mu.RUnlock()

	state := &snapshot.WalletState{
		Version:       snapshot.Version,
		NextAccountID: w.accounts.NextAccountID(),
		Accounts:      w.accounts.Accounts(),
		Blocks:        w.txs.Blocks(),
		Txs:           w.txs.Txs(),
		Locator:       w.txs.LocatorEntries(),
		Utxos:         w.txs.Utxos(),
		UtxoSpends:    w.txs.UtxoSpends(),
		Notes:         w.notes.Notes(),
		NoteSpends:    w.notes.Spends(),
		Observations:  w.notes.Observations(),
		SentNotes:     w.notes.SentNotes(),
		SaplingTree:   snapshot.NewTreeRecord(w.sapling),
		OrchardTree:   snapshot.NewTreeRecord(w.orchard),
		ScanRanges:    w.scanQueue.Ranges(),
		Requests:      w.requests.Pending(),
	}
	return snapshot.Encode(out, state)
}

// Restore reconstructs a wallet from a snapshot produced by Snapshot. No
// partial wallet is returned on failure.
func Restore(in io.Reader, cfg Config) (*Wallet, error) {
	if err := cfg.normalize(); err != nil {
		return nil, err
	}

	state, err := snapshot.Decode(in)
	if err != nil {
		return nil, err
	}

	notes, err := wnotemgr.RestoreStore(
		state.Notes, state.NoteSpends, state.Observations,
		state.SentNotes,
	)
	if err != nil {
		return nil, snapshot.SnapshotError{
			ErrorCode:   snapshot.ErrCorruptSnapshot,
			Description: "inconsistent note tables",
			Err:         err,
		}
	}

	// The spend-location cache is the inverse of the utxo spend table.
	spendLocations := make(map[chainhash.Hash]wtxmgr.OutPoint,
		len(state.UtxoSpends))
	for _, spend := range state.UtxoSpends {
		spendLocations[spend.Spender] = spend.OutPoint
	}

	sapling, orchard := state.RestoreTrees(
		cfg.SaplingEngine, cfg.OrchardEngine,
	)

	w := &Wallet{
		cfg: cfg,
		accounts: waddrmgr.RestoreManager(
			state.NextAccountID, state.Accounts,
		),
		txs: wtxmgr.RestoreStore(
			state.Blocks, state.Txs, state.Locator, state.Utxos,
			state.UtxoSpends, spendLocations,
		),
		notes:     notes,
		sapling:   sapling,
		orchard:   orchard,
		scanQueue: scanmgr.RestoreScanQueue(state.ScanRanges),
		requests:  scanmgr.RestoreRequestQueue(state.Requests),
	}

	log.Infof("Restored wallet snapshot: %d %s, %d blocks, %d notes",
		len(state.Accounts),
		pickNoun(len(state.Accounts), "account", "accounts"),
		len(state.Blocks), len(state.Notes))

	return w, nil
}

// errNoValue is used with Option.UnwrapOrErr when only presence matters.
var errNoValue = fmt.Errorf("value absent")
