// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"context"
	"fmt"
	"sync"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/stretchr/testify/require"
	"github.com/zecsuite/zecwallet/waddrmgr"
)

// fakeDecryptor reports a single note at noteHeight and empty results
// everywhere else. It records the viewing keys it was handed.
type fakeDecryptor struct {
	account    waddrmgr.AccountID
	noteHeight int32
	noteTxID   chainhash.Hash

	mu   sync.Mutex
	keys []string
}

func (d *fakeDecryptor) ScanBlock(_ context.Context, viewingKeys []string,
	block *CompactBlock) (*ScannedBlock, error) {

	d.mu.Lock()
	d.keys = viewingKeys
	d.mu.Unlock()

	if block.Height == d.noteHeight {
		return receivedBlock(block.Height, d.noteTxID, d.account,
			nullifierN(1), 20000), nil
	}
	return emptyBlock(block.Height), nil
}

// failingDecryptor fails on one height, for exercising batch abortion.
type failingDecryptor struct {
	failHeight int32
}

func (d *failingDecryptor) ScanBlock(_ context.Context, _ []string,
	block *CompactBlock) (*ScannedBlock, error) {

	if block.Height == d.failHeight {
		return nil, fmt.Errorf("decrypt failed at %d", block.Height)
	}
	return emptyBlock(block.Height), nil
}

func compactRange(start, end int32) []*CompactBlock {
	blocks := make([]*CompactBlock, 0, end-start+1)
	for h := start; h <= end; h++ {
		blocks = append(blocks, &CompactBlock{
			Height: h,
			Hash:   chainhash.Hash{byte(h), byte(h >> 8), 0xcb},
			Time:   uint32(1700000000 + h),
			Data:   []byte{0x01},
		})
	}
	return blocks
}

// TestScanBlocksIngestsResults verifies scanned content lands in the store
// in height order regardless of per-block scan scheduling.
func TestScanBlocksIngestsResults(t *testing.T) {
	w := testWallet(t)
	account := addSpendingAccount(t, w, 1500)
	require.NoError(t, w.UpdateChainTip(1520))

	dec := &fakeDecryptor{
		account:    account.ID,
		noteHeight: 1507,
		noteTxID:   chainhash.Hash{0x61},
	}
	err := w.ScanBlocks(context.Background(), dec, compactRange(1500, 1520))
	require.NoError(t, err)

	require.Equal(t, []string{"uview1spending"}, dec.keys)
	require.Equal(t, int32(1520), w.Summary().MaxScanned.UnwrapOr(-1))
	require.True(t, w.NextScanRange().IsNone())

	bal, err := w.AccountBalance(account.ID, 1520)
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(20000), bal.Spendable)
}

// TestScanBlocksFailureIngestsNothing verifies one failed block aborts the
// whole batch before ingestion.
func TestScanBlocksFailureIngestsNothing(t *testing.T) {
	w := testWallet(t)
	addSpendingAccount(t, w, 1500)
	require.NoError(t, w.UpdateChainTip(1510))

	dec := &failingDecryptor{failHeight: 1505}
	err := w.ScanBlocks(context.Background(), dec, compactRange(1500, 1510))
	require.Error(t, err)

	require.True(t, w.Summary().MaxScanned.IsNone())
}

// TestScanBlocksEmptyBatch verifies a no-op call.
func TestScanBlocksEmptyBatch(t *testing.T) {
	w := testWallet(t)
	require.NoError(t, w.ScanBlocks(context.Background(), nil, nil))
}
