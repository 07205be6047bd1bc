// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package waddrmgr

import (
	"fmt"
	"sort"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
)

const (
	// EphemeralGapLimit is the maximum number of consecutive unused
	// ephemeral address indexes that may be reserved ahead of the highest
	// index observed in a mined transaction.
	EphemeralGapLimit = 20
)

// AccountID uniquely identifies an account within the wallet. Identifiers
// are assigned from a monotonically increasing counter owned by the Manager
// and are never reused.
type AccountID uint32

// AccountKind describes how the wallet obtained an account.
type AccountKind uint8

const (
	// AccountDerived is an account derived from the wallet seed. Derived
	// accounts always carry an HD derivation record.
	AccountDerived AccountKind = iota

	// AccountImported is an account imported from a bare viewing key.
	// Imported accounts never carry an HD derivation record.
	AccountImported
)

// String returns the AccountKind as a human-readable name.
func (k AccountKind) String() string {
	if k == AccountImported {
		return "imported"
	}
	return "derived"
}

// AccountPurpose describes what an account's viewing capability allows.
type AccountPurpose uint8

const (
	// PurposeSpending denotes an account backed by a full viewing key,
	// able to compute nullifiers and therefore maintain an accurate
	// balance.
	PurposeSpending AccountPurpose = iota

	// PurposeViewOnly denotes an account backed by an incoming viewing
	// key only.
	PurposeViewOnly
)

// HDDerivation records the provenance of a derived account: the fingerprint
// of the seed it was derived from and the hardened ZIP 32 account index.
type HDDerivation struct {
	SeedFingerprint [32]byte
	AccountIndex    uint32
}

// Birthday is a snapshot of chain state before which an account is assumed
// to have no relevant activity. RecoverUntil, when present, marks the upper
// bound of a recovery window during which historic scanning is still
// outstanding.
type Birthday struct {
	Height       int32
	Hash         chainhash.Hash
	RecoverUntil fn.Option[int32]
}

// EphemeralAddress is the state of a single-use transparent address
// allocated for interop with transparent-only counterparties.
type EphemeralAddress struct {
	// Address is the encoded transparent address.
	Address string

	// UsedIn is the transaction the wallet spent this address's funds
	// in, if any.
	UsedIn fn.Option[chainhash.Hash]

	// SeenIn is the mined transaction this address was observed in, if
	// any. Observation advances the gap limit window.
	SeenIn fn.Option[chainhash.Hash]
}

// Account is a single wallet account record. The identity is immutable;
// mutation is limited to appending addresses and ephemeral entries and to
// advancing birthday metadata.
type Account struct {
	ID         AccountID
	Kind       AccountKind
	Derivation fn.Option[HDDerivation]
	Purpose    AccountPurpose

	// ViewingKey is the encoded unified viewing key. Key material is
	// opaque to the store; derivation and decryption are external
	// collaborators.
	ViewingKey string

	Birthday Birthday

	// Addresses holds the diversified addresses generated for the
	// account, in generation order.
	Addresses []string

	// Ephemeral maps an ephemeral-address index to its state.
	Ephemeral map[uint32]EphemeralAddress
}

// clone returns a deep copy of the account.
func (a *Account) clone() *Account {
	dup := *a
	dup.Addresses = append([]string(nil), a.Addresses...)
	dup.Ephemeral = make(map[uint32]EphemeralAddress, len(a.Ephemeral))
	for idx, e := range a.Ephemeral {
		dup.Ephemeral[idx] = e
	}
	return &dup
}

// Manager is the account store. It owns the account table and the
// next-account-id allocation counter.
//
// The manager performs no locking of its own. It is always accessed under
// the wallet-level lock, mirroring how every sub-store in this module is
// synchronized by the facade.
type Manager struct {
	accounts map[AccountID]*Account
	nextID   AccountID
}

// NewManager creates an empty account store.
func NewManager() *Manager {
	return &Manager{
		accounts: make(map[AccountID]*Account),
	}
}

// NewAccountReq describes a request to add an account to the store.
type NewAccountReq struct {
	Kind       AccountKind
	Derivation fn.Option[HDDerivation]
	Purpose    AccountPurpose
	ViewingKey string
	Birthday   Birthday
}

// NewAccount validates the request, assigns the next account id and inserts
// the record. Derived accounts must carry an HD derivation; imported
// accounts must not.
func (m *Manager) NewAccount(req NewAccountReq) (*Account, error) {
	switch req.Kind {
	case AccountDerived:
		if req.Derivation.IsNone() {
			str := "derived account requires a seed fingerprint " +
				"and account index"
			return nil, managerError(ErrDerivationRequired, str, nil)
		}
	case AccountImported:
		if req.Derivation.IsSome() {
			str := "imported account must not carry an HD " +
				"derivation"
			return nil, managerError(ErrDerivationRequired, str, nil)
		}
	}
	if req.Birthday.Height < 0 {
		str := fmt.Sprintf("invalid birthday height %d",
			req.Birthday.Height)
		return nil, managerError(ErrInvalidBirthday, str, nil)
	}

	account := &Account{
		ID:         m.nextID,
		Kind:       req.Kind,
		Derivation: req.Derivation,
		Purpose:    req.Purpose,
		ViewingKey: req.ViewingKey,
		Birthday:   req.Birthday,
		Ephemeral:  make(map[uint32]EphemeralAddress),
	}
	m.accounts[account.ID] = account
	m.nextID++

	log.Debugf("Created %v account %d with birthday height %d",
		account.Kind, account.ID, account.Birthday.Height)

	return account.clone(), nil
}

// Account returns a copy of the account record for the given id.
func (m *Manager) Account(id AccountID) (*Account, error) {
	account, ok := m.accounts[id]
	if !ok {
		str := fmt.Sprintf("account %d not found", id)
		return nil, managerError(ErrUnknownAccount, str, nil)
	}
	return account.clone(), nil
}

// Accounts returns copies of all account records ordered by id.
func (m *Manager) Accounts() []*Account {
	ids := make([]AccountID, 0, len(m.accounts))
	for id := range m.accounts {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	accounts := make([]*Account, 0, len(ids))
	for _, id := range ids {
		accounts = append(accounts, m.accounts[id].clone())
	}
	return accounts
}

// NumAccounts returns the number of accounts in the store.
func (m *Manager) NumAccounts() int {
	return len(m.accounts)
}

// HasFullViewingKey reports whether the account can compute nullifiers for
// its notes.
func (m *Manager) HasFullViewingKey(id AccountID) (bool, error) {
	account, ok := m.accounts[id]
	if !ok {
		str := fmt.Sprintf("account %d not found", id)
		return false, managerError(ErrUnknownAccount, str, nil)
	}
	return account.Purpose == PurposeSpending, nil
}

// AppendAddress records a newly generated diversified address for the
// account.
func (m *Manager) AppendAddress(id AccountID, address string) error {
	account, ok := m.accounts[id]
	if !ok {
		str := fmt.Sprintf("account %d not found", id)
		return managerError(ErrUnknownAccount, str, nil)
	}
	account.Addresses = append(account.Addresses, address)
	return nil
}

// SetRecoverUntil advances the account's birthday metadata by recording the
// upper bound of its recovery window.
func (m *Manager) SetRecoverUntil(id AccountID, height int32) error {
	account, ok := m.accounts[id]
	if !ok {
		str := fmt.Sprintf("account %d not found", id)
		return managerError(ErrUnknownAccount, str, nil)
	}
	account.Birthday.RecoverUntil = fn.Some(height)
	return nil
}

// ReserveEphemeral allocates the next unused ephemeral address index for the
// account and records the given address under it. Allocation fails with
// ErrGapLimit once the next index would sit more than EphemeralGapLimit
// slots past the highest index seen in a mined transaction.
func (m *Manager) ReserveEphemeral(id AccountID, address string) (uint32,
	error) {

	account, ok := m.accounts[id]
	if !ok {
		str := fmt.Sprintf("account %d not found", id)
		return 0, managerError(ErrUnknownAccount, str, nil)
	}

	var next uint32
	haveSeen := false
	var maxSeen uint32
	for idx, e := range account.Ephemeral {
		if idx >= next {
			next = idx + 1
		}
		if e.SeenIn.IsSome() && (!haveSeen || idx > maxSeen) {
			haveSeen = true
			maxSeen = idx
		}
	}

	limit := uint32(EphemeralGapLimit)
	if haveSeen {
		limit = maxSeen + 1 + EphemeralGapLimit
	}
	if next >= limit {
		str := fmt.Sprintf("ephemeral index %d for account %d "+
			"exceeds gap limit %d", next, id, EphemeralGapLimit)
		return 0, managerError(ErrGapLimit, str, nil)
	}

	account.Ephemeral[next] = EphemeralAddress{Address: address}
	return next, nil
}

// PutEphemeral inserts an ephemeral address at an explicit index, used when
// restoring from a snapshot. The index must be vacant.
func (m *Manager) PutEphemeral(id AccountID, index uint32,
	addr EphemeralAddress) error {

	account, ok := m.accounts[id]
	if !ok {
		str := fmt.Sprintf("account %d not found", id)
		return managerError(ErrUnknownAccount, str, nil)
	}
	if _, ok := account.Ephemeral[index]; ok {
		str := fmt.Sprintf("ephemeral index %d already populated "+
			"for account %d", index, id)
		return managerError(ErrDuplicateEphemeralIndex, str, nil)
	}
	account.Ephemeral[index] = addr
	return nil
}

// MarkEphemeralUsed records the transaction the wallet spent the ephemeral
// address's funds in.
func (m *Manager) MarkEphemeralUsed(id AccountID, index uint32,
	txid chainhash.Hash) error {

	return m.updateEphemeral(id, index, func(e *EphemeralAddress) {
		e.UsedIn = fn.Some(txid)
	})
}

// MarkEphemeralSeen records a mined transaction the ephemeral address was
// observed in.
func (m *Manager) MarkEphemeralSeen(id AccountID, index uint32,
	txid chainhash.Hash) error {

	return m.updateEphemeral(id, index, func(e *EphemeralAddress) {
		e.SeenIn = fn.Some(txid)
	})
}

func (m *Manager) updateEphemeral(id AccountID, index uint32,
	f func(*EphemeralAddress)) error {

	account, ok := m.accounts[id]
	if !ok {
		str := fmt.Sprintf("account %d not found", id)
		return managerError(ErrUnknownAccount, str, nil)
	}
	e, ok := account.Ephemeral[index]
	if !ok {
		str := fmt.Sprintf("ephemeral index %d not reserved for "+
			"account %d", index, id)
		return managerError(ErrUnknownAccount, str, nil)
	}
	f(&e)
	account.Ephemeral[index] = e
	return nil
}

// EphemeralRef locates an ephemeral address within the store.
type EphemeralRef struct {
	Account AccountID
	Index   uint32
}

// EphemeralByAddress returns the location of the ephemeral address with the
// given encoding, or None. The store is small enough that a linear scan
// suffices.
func (m *Manager) EphemeralByAddress(address string) fn.Option[EphemeralRef] {
	for id, account := range m.accounts {
		for idx, e := range account.Ephemeral {
			if e.Address == address {
				return fn.Some(EphemeralRef{
					Account: id,
					Index:   idx,
				})
			}
		}
	}
	return fn.None[EphemeralRef]()
}

// WalletBirthday returns the minimum birthday height across all accounts, or
// None when the store is empty. Scanning never needs to reach below this
// height.
func (m *Manager) WalletBirthday() fn.Option[int32] {
	var (
		have   bool
		lowest int32
	)
	for _, account := range m.accounts {
		if !have || account.Birthday.Height < lowest {
			have = true
			lowest = account.Birthday.Height
		}
	}
	if !have {
		return fn.None[int32]()
	}
	return fn.Some(lowest)
}

// NextAccountID returns the value of the allocation counter. It is exported
// for snapshot encoding only; NewAccount is the sole writer.
func (m *Manager) NextAccountID() AccountID {
	return m.nextID
}

// Clone returns a deep copy of the manager, used by the facade to stage
// multi-store mutations.
func (m *Manager) Clone() *Manager {
	dup := &Manager{
		accounts: make(map[AccountID]*Account, len(m.accounts)),
		nextID:   m.nextID,
	}
	for id, account := range m.accounts {
		dup.accounts[id] = account.clone()
	}
	return dup
}

// RestoreManager reassembles a manager from decoded snapshot tables. The
// caller is responsible for having validated the records.
func RestoreManager(nextID AccountID, accounts []*Account) *Manager {
	m := NewManager()
	m.nextID = nextID
	for _, account := range accounts {
		m.accounts[account.ID] = account.clone()
	}
	return m
}
