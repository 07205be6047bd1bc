// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package waddrmgr

import (
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
)

func testDerivation() fn.Option[HDDerivation] {
	return fn.Some(HDDerivation{
		SeedFingerprint: [32]byte{1, 2, 3},
		AccountIndex:    0,
	})
}

// TestNewAccountValidation exercises the kind/derivation pairing rules and
// birthday validation.
func TestNewAccountValidation(t *testing.T) {
	tests := []struct {
		name string
		req  NewAccountReq
		code ErrorCode
		ok   bool
	}{
		{
			name: "derived with derivation",
			req: NewAccountReq{
				Kind:       AccountDerived,
				Derivation: testDerivation(),
				ViewingKey: "uview1derived",
			},
			ok: true,
		},
		{
			name: "derived without derivation",
			req: NewAccountReq{
				Kind:       AccountDerived,
				ViewingKey: "uview1derived",
			},
			code: ErrDerivationRequired,
		},
		{
			name: "imported without derivation",
			req: NewAccountReq{
				Kind:       AccountImported,
				Purpose:    PurposeViewOnly,
				ViewingKey: "uview1imported",
			},
			ok: true,
		},
		{
			name: "imported with derivation",
			req: NewAccountReq{
				Kind:       AccountImported,
				Derivation: testDerivation(),
				ViewingKey: "uview1imported",
			},
			code: ErrDerivationRequired,
		},
		{
			name: "negative birthday",
			req: NewAccountReq{
				Kind:       AccountDerived,
				Derivation: testDerivation(),
				ViewingKey: "uview1derived",
				Birthday:   Birthday{Height: -1},
			},
			code: ErrInvalidBirthday,
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			m := NewManager()
			account, err := m.NewAccount(test.req)
			if !test.ok {
				require.Error(t, err)
				require.True(t, IsError(err, test.code))
				return
			}
			require.NoError(t, err)
			require.Equal(t, AccountID(0), account.ID)
			require.Equal(t, test.req.ViewingKey,
				account.ViewingKey)
		})
	}
}

// TestAccountIDsNeverReused verifies that the allocation counter is
// monotonic regardless of account churn.
func TestAccountIDsNeverReused(t *testing.T) {
	m := NewManager()
	for i := 0; i < 3; i++ {
		account, err := m.NewAccount(NewAccountReq{
			Kind:       AccountImported,
			Purpose:    PurposeViewOnly,
			ViewingKey: fmt.Sprintf("uview1imported%d", i),
			Birthday:   Birthday{Height: int32(100 + i)},
		})
		require.NoError(t, err)
		require.Equal(t, AccountID(i), account.ID)
	}
	require.Equal(t, 3, m.NumAccounts())
	require.Equal(t, AccountID(3), m.NextAccountID())
}

// TestWalletBirthday verifies the wallet birthday is the minimum across
// accounts and absent for an empty store.
func TestWalletBirthday(t *testing.T) {
	m := NewManager()
	require.True(t, m.WalletBirthday().IsNone())

	for _, height := range []int32{500, 200, 300} {
		_, err := m.NewAccount(NewAccountReq{
			Kind:       AccountImported,
			Purpose:    PurposeViewOnly,
			ViewingKey: fmt.Sprintf("uview1h%d", height),
			Birthday:   Birthday{Height: height},
		})
		require.NoError(t, err)
	}
	require.Equal(t, int32(200), m.WalletBirthday().UnwrapOr(-1))
}

// TestEphemeralGapLimit verifies that reservations stop once the window past
// the highest seen index is exhausted, and resume after an observation
// advances the window.
func TestEphemeralGapLimit(t *testing.T) {
	m := NewManager()
	account, err := m.NewAccount(NewAccountReq{
		Kind:       AccountDerived,
		Derivation: testDerivation(),
		ViewingKey: "uview1gap",
	})
	require.NoError(t, err)

	// With nothing seen, exactly EphemeralGapLimit indexes may be
	// reserved.
	for i := 0; i < EphemeralGapLimit; i++ {
		idx, err := m.ReserveEphemeral(
			account.ID, fmt.Sprintf("t1addr%d", i),
		)
		require.NoError(t, err)
		require.Equal(t, uint32(i), idx)
	}
	_, err = m.ReserveEphemeral(account.ID, "t1addroverflow")
	require.Error(t, err)
	require.True(t, IsError(err, ErrGapLimit))

	// Observing index 4 mined lets the window slide to 4+1+gap.
	txid := chainhash.Hash{0xaa}
	require.NoError(t, m.MarkEphemeralSeen(account.ID, 4, txid))
	for i := EphemeralGapLimit; i < 5+EphemeralGapLimit; i++ {
		idx, err := m.ReserveEphemeral(
			account.ID, fmt.Sprintf("t1addr%d", i),
		)
		require.NoError(t, err)
		require.Equal(t, uint32(i), idx)
	}
	_, err = m.ReserveEphemeral(account.ID, "t1addroverflow2")
	require.True(t, IsError(err, ErrGapLimit))
}

// TestEphemeralByAddress verifies reverse lookup over reserved addresses.
func TestEphemeralByAddress(t *testing.T) {
	m := NewManager()
	account, err := m.NewAccount(NewAccountReq{
		Kind:       AccountDerived,
		Derivation: testDerivation(),
		ViewingKey: "uview1lookup",
	})
	require.NoError(t, err)

	idx, err := m.ReserveEphemeral(account.ID, "t1lookup")
	require.NoError(t, err)

	ref := m.EphemeralByAddress("t1lookup")
	require.True(t, ref.IsSome())
	require.Equal(t, EphemeralRef{Account: account.ID, Index: idx},
		ref.UnwrapOr(EphemeralRef{Index: 99}))

	require.True(t, m.EphemeralByAddress("t1unknown").IsNone())
}

// TestEphemeralUsedAndSeen verifies the per-index state transitions.
func TestEphemeralUsedAndSeen(t *testing.T) {
	m := NewManager()
	account, err := m.NewAccount(NewAccountReq{
		Kind:       AccountDerived,
		Derivation: testDerivation(),
		ViewingKey: "uview1state",
	})
	require.NoError(t, err)

	_, err = m.ReserveEphemeral(account.ID, "t1state")
	require.NoError(t, err)

	used := chainhash.Hash{0x01}
	seen := chainhash.Hash{0x02}
	require.NoError(t, m.MarkEphemeralUsed(account.ID, 0, used))
	require.NoError(t, m.MarkEphemeralSeen(account.ID, 0, seen))

	got, err := m.Account(account.ID)
	require.NoError(t, err)
	e := got.Ephemeral[0]
	require.Equal(t, used, e.UsedIn.UnwrapOr(chainhash.Hash{}))
	require.Equal(t, seen, e.SeenIn.UnwrapOr(chainhash.Hash{}))

	// Unreserved index.
	err = m.MarkEphemeralUsed(account.ID, 7, used)
	require.True(t, IsError(err, ErrUnknownAccount))
}

// TestManagerClone verifies staged clones do not alias the original.
func TestManagerClone(t *testing.T) {
	m := NewManager()
	account, err := m.NewAccount(NewAccountReq{
		Kind:       AccountDerived,
		Derivation: testDerivation(),
		ViewingKey: "uview1clone",
		Birthday:   Birthday{Height: 10},
	})
	require.NoError(t, err)

	dup := m.Clone()
	_, err = dup.NewAccount(NewAccountReq{
		Kind:       AccountImported,
		Purpose:    PurposeViewOnly,
		ViewingKey: "uview1clone2",
	})
	require.NoError(t, err)
	require.NoError(t, dup.AppendAddress(account.ID, "u1divers"))

	require.Equal(t, 1, m.NumAccounts())
	orig, err := m.Account(account.ID)
	require.NoError(t, err)
	require.Empty(t, orig.Addresses)
}
