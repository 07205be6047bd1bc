// Copyright (c) 2025 The zecsuite developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package wallet

import (
	"bytes"
	"fmt"
	"testing"

	"github.com/btcsuite/btcd/btcutil"
	"github.com/btcsuite/btcd/chaincfg/chainhash"
	"github.com/lightningnetwork/lnd/fn/v2"
	"github.com/stretchr/testify/require"
	"github.com/zecsuite/zecwallet/scanmgr"
	"github.com/zecsuite/zecwallet/shardtree"
	"github.com/zecsuite/zecwallet/waddrmgr"
	"github.com/zecsuite/zecwallet/wnotemgr"
	"github.com/zecsuite/zecwallet/wtxmgr"
	"github.com/zecsuite/zecwallet/zutil"
)

const testActivation int32 = 1000

// fakeEngine is a minimal TreeEngine backing the facade tests. Leaves are
// stored raw in four-leaf shards, so shard completion is observable with tiny
// batches.
type fakeEngine struct {
	// failRewind, when set and true, makes Rewind fail. It is a pointer
	// so staged clones of the wallet share the toggle.
	failRewind *bool
}

func leafCount(state *shardtree.TreeState) uint64 {
	var n uint64
	for _, shard := range state.Shards {
		n += uint64(len(shard) / 32)
	}
	return n
}

func (fakeEngine) Append(state *shardtree.TreeState,
	batch []shardtree.Commitment) (*shardtree.TreeState,
	[]shardtree.NodeAddress, error) {

	next := state.Clone()
	before := leafCount(next)
	for i, c := range batch {
		if c.Position != before+uint64(i) {
			return nil, nil, fmt.Errorf("append out of order at "+
				"position %d", c.Position)
		}
		shard := c.Position / 4
		next.Shards[shard] = append(next.Shards[shard], c.Hash[:]...)
	}

	var completed []shardtree.NodeAddress
	after := before + uint64(len(batch))
	for shard := before / 4; shard <= after/4; shard++ {
		if len(next.Shards[shard]) == 4*32 {
			completed = append(completed, shardtree.NodeAddress{
				Level: 2,
				Index: shard,
			})
		}
	}
	return next, completed, nil
}

func (fakeEngine) Checkpoint(state *shardtree.TreeState, id int32,
	position uint64) (*shardtree.TreeState, error) {

	next := state.Clone()
	next.Checkpoints[id] = position
	return next, nil
}

func (e fakeEngine) Rewind(state *shardtree.TreeState, id int32) (
	*shardtree.TreeState, error) {

	if e.failRewind != nil && *e.failRewind {
		return nil, fmt.Errorf("rewind unavailable")
	}
	position, ok := state.Checkpoints[id]
	if !ok {
		return nil, fmt.Errorf("no checkpoint %d", id)
	}

	next := state.Clone()
	for shard := range next.Shards {
		start := shard * 4
		switch {
		case start >= position:
			delete(next.Shards, shard)
		case start+4 > position:
			next.Shards[shard] = next.Shards[shard][:(position-start)*32]
		}
	}
	for ckpt := range next.Checkpoints {
		if ckpt > id {
			delete(next.Checkpoints, ckpt)
		}
	}
	return next, nil
}

func (fakeEngine) PruneCheckpoints(state *shardtree.TreeState,
	before int32) (*shardtree.TreeState, error) {

	next := state.Clone()
	for id := range next.Checkpoints {
		if id < before {
			delete(next.Checkpoints, id)
		}
	}
	return next, nil
}

func (fakeEngine) Witness(state *shardtree.TreeState, position uint64,
	asOf int32) ([][32]byte, error) {

	anchor, ok := state.Checkpoints[asOf]
	if !ok {
		return nil, fmt.Errorf("no checkpoint %d", asOf)
	}
	if position >= anchor {
		return nil, fmt.Errorf("position %d not anchored at "+
			"checkpoint %d", position, asOf)
	}
	return [][32]byte{{byte(position)}}, nil
}

func testConfig() Config {
	return Config{
		ActivationHeight: testActivation,
		SaplingEngine:    fakeEngine{},
		OrchardEngine:    fakeEngine{},
	}
}

func testWallet(t *testing.T) *Wallet {
	t.Helper()
	w, err := New(testConfig())
	require.NoError(t, err)
	return w
}

func addSpendingAccount(t *testing.T, w *Wallet,
	birthday int32) *waddrmgr.Account {

	t.Helper()
	account, err := w.CreateAccount(CreateAccountReq{
		Derivation: waddrmgr.HDDerivation{
			SeedFingerprint: [32]byte{0x01},
		},
		Purpose:    waddrmgr.PurposeSpending,
		ViewingKey: "uview1spending",
		Birthday:   waddrmgr.Birthday{Height: birthday},
	})
	require.NoError(t, err)
	return account
}

func nullifierN(n byte) zutil.Nullifier {
	return zutil.Nullifier{
		Protocol: zutil.Sapling,
		Value:    [32]byte{n},
	}
}

func saplingNote(value btcutil.Amount) wnotemgr.Note {
	return wnotemgr.Note{
		Protocol:  zutil.Sapling,
		Recipient: []byte{0xaa},
		Value:     value,
		Rseed: wnotemgr.RandomSeed{
			Kind:  wnotemgr.SeedAfterZip212,
			Bytes: [32]byte{0x99},
		},
	}
}

func emptyBlock(height int32) *ScannedBlock {
	return &ScannedBlock{
		Height: height,
		Hash:   chainhash.Hash{byte(height), byte(height >> 8), 0xb1},
		Time:   uint32(1700000000 + height),
	}
}

// receivedBlock builds a scanned block whose single transaction pays the
// account one note.
func receivedBlock(height int32, txid chainhash.Hash,
	account waddrmgr.AccountID, nf zutil.Nullifier,
	value btcutil.Amount) *ScannedBlock {

	block := emptyBlock(height)
	block.Txs = []ScannedTx{{
		TxID: txid,
		Outputs: []ScannedOutput{{
			Account:   account,
			Index:     0,
			Note:      saplingNote(value),
			Nullifier: fn.Some(nf),
			Position:  fn.Some(uint64(0)),
		}},
	}}
	return block
}

func saplingCommitments(start uint64, n int) []shardtree.Commitment {
	batch := make([]shardtree.Commitment, n)
	for i := range batch {
		batch[i] = shardtree.Commitment{
			Position: start + uint64(i),
			Hash:     [32]byte{byte(start) + byte(i)},
		}
	}
	return batch
}

func ingestEmptyRange(t *testing.T, w *Wallet, start, end int32) {
	t.Helper()
	blocks := make([]*ScannedBlock, 0, end-start+1)
	for h := start; h <= end; h++ {
		blocks = append(blocks, emptyBlock(h))
	}
	require.NoError(t, w.IngestBlocks(blocks))
}

// TestNewRequiresEngines verifies construction fails without tree engines.
func TestNewRequiresEngines(t *testing.T) {
	_, err := New(Config{ActivationHeight: testActivation})
	require.Error(t, err)
	require.True(t, IsError(err, ErrInvalidConfig))
}

// TestCreateAccountBirthdayBeforeActivation verifies the facade-level
// birthday floor.
func TestCreateAccountBirthdayBeforeActivation(t *testing.T) {
	w := testWallet(t)
	_, err := w.CreateAccount(CreateAccountReq{
		ViewingKey: "uview1early",
		Birthday:   waddrmgr.Birthday{Height: testActivation - 1},
	})
	require.Error(t, err)
	require.True(t, waddrmgr.IsError(err, waddrmgr.ErrInvalidBirthday))
}

// TestCreateAccountQueuesRecovery verifies adding an account to a synced
// wallet queues a historic scan from the account birthday.
func TestCreateAccountQueuesRecovery(t *testing.T) {
	w := testWallet(t)
	addSpendingAccount(t, w, 1500)
	require.NoError(t, w.UpdateChainTip(1600))
	ingestEmptyRange(t, w, 1500, 1600)
	require.True(t, w.NextScanRange().IsNone())

	_, err := w.ImportAccount("uview1late", waddrmgr.PurposeSpending,
		waddrmgr.Birthday{Height: 1520})
	require.NoError(t, err)

	next := w.NextScanRange().UnwrapOr(scanmgr.ScanRange{})
	require.Equal(t, scanmgr.ScanRange{
		Start:    1520,
		End:      1601,
		Priority: scanmgr.PriorityHistoric,
	}, next)
}

// TestFirstAccountLiftsIgnoredSpan verifies account creation queues its
// recovery scan even over heights an account-less wallet marked ignored.
func TestFirstAccountLiftsIgnoredSpan(t *testing.T) {
	w := testWallet(t)
	require.NoError(t, w.UpdateChainTip(2000))
	require.True(t, w.NextScanRange().IsNone())

	addSpendingAccount(t, w, 1500)

	require.Equal(t, []scanmgr.ScanRange{
		{
			Start:    testActivation,
			End:      1500,
			Priority: scanmgr.PriorityIgnored,
		},
		{
			Start:    1500,
			End:      2001,
			Priority: scanmgr.PriorityHistoric,
		},
	}, w.ScanRanges())

	next := w.NextScanRange().UnwrapOr(scanmgr.ScanRange{})
	require.Equal(t, scanmgr.ScanRange{
		Start:    1500,
		End:      2001,
		Priority: scanmgr.PriorityHistoric,
	}, next)
}

// TestUpdateChainTipNoAccounts verifies an account-less wallet marks the
// whole chain ignored.
func TestUpdateChainTipNoAccounts(t *testing.T) {
	w := testWallet(t)
	require.NoError(t, w.UpdateChainTip(2000))

	require.Equal(t, []scanmgr.ScanRange{{
		Start:    testActivation,
		End:      2001,
		Priority: scanmgr.PriorityIgnored,
	}}, w.ScanRanges())
	require.True(t, w.NextScanRange().IsNone())
}

// TestUpdateChainTipFirstSync verifies a fresh wallet with an account queues
// a historic recovery range from its birthday.
func TestUpdateChainTipFirstSync(t *testing.T) {
	w := testWallet(t)
	addSpendingAccount(t, w, 1500)
	require.NoError(t, w.UpdateChainTip(2000))

	next := w.NextScanRange()
	require.True(t, next.IsSome())
	require.Equal(t, scanmgr.ScanRange{
		Start:    1500,
		End:      2001,
		Priority: scanmgr.PriorityHistoric,
	}, next.UnwrapOr(scanmgr.ScanRange{}))
}

// TestUpdateChainTipWithoutTreeData verifies a wallet with no commitment
// tree metadata continues scanning linearly at historic priority.
func TestUpdateChainTipWithoutTreeData(t *testing.T) {
	w := testWallet(t)
	addSpendingAccount(t, w, 1500)
	require.NoError(t, w.UpdateChainTip(1510))
	ingestEmptyRange(t, w, 1500, 1510)
	require.True(t, w.NextScanRange().IsNone())

	require.NoError(t, w.UpdateChainTip(1520))
	next := w.NextScanRange().UnwrapOr(scanmgr.ScanRange{})
	require.Equal(t, scanmgr.ScanRange{
		Start:    1511,
		End:      1521,
		Priority: scanmgr.PriorityHistoric,
	}, next)
}

// TestUpdateChainTipSteadyState verifies a wallet synced near the tip, with
// complete tree data, queues a chain-tip range.
func TestUpdateChainTipSteadyState(t *testing.T) {
	w := testWallet(t)
	addSpendingAccount(t, w, 1500)
	require.NoError(t, w.UpdateChainTip(1510))

	blocks := make([]*ScannedBlock, 0, 11)
	for h := int32(1500); h < 1510; h++ {
		blocks = append(blocks, emptyBlock(h))
	}
	// The final block completes a shard, establishing the tree tip.
	last := emptyBlock(1510)
	last.SaplingCommitments = saplingCommitments(0, 4)
	blocks = append(blocks, last)

	require.NoError(t, w.IngestBlocks(blocks))
	require.True(t, w.NextScanRange().IsNone())

	require.NoError(t, w.UpdateChainTip(1520))
	next := w.NextScanRange().UnwrapOr(scanmgr.ScanRange{})
	require.Equal(t, scanmgr.ScanRange{
		Start:    1510,
		End:      1521,
		Priority: scanmgr.PriorityChainTip,
	}, next)
}

// TestUpdateChainTipStaleWallet verifies a long-offline wallet re-verifies a
// lookahead window above its last scanned block before anything else.
func TestUpdateChainTipStaleWallet(t *testing.T) {
	w := testWallet(t)
	addSpendingAccount(t, w, 1500)
	require.NoError(t, w.UpdateChainTip(1502))

	last := emptyBlock(1502)
	last.SaplingCommitments = saplingCommitments(0, 4)
	require.NoError(t, w.IngestBlocks([]*ScannedBlock{
		emptyBlock(1500), emptyBlock(1501), last,
	}))

	// The tip moves far past the pruning depth.
	require.NoError(t, w.UpdateChainTip(1502 + 2*DefaultPruningDepth))

	next := w.NextScanRange().UnwrapOr(scanmgr.ScanRange{})
	require.Equal(t, scanmgr.ScanRange{
		Start:    1503,
		End:      1503 + DefaultVerifyLookahead,
		Priority: scanmgr.PriorityVerify,
	}, next)
}

// TestUpdateChainTipBelowScanned verifies a tip below the scanned height is
// ignored as a mid-reorg artifact.
func TestUpdateChainTipBelowScanned(t *testing.T) {
	w := testWallet(t)
	addSpendingAccount(t, w, 1500)
	require.NoError(t, w.UpdateChainTip(1502))
	ingestEmptyRange(t, w, 1500, 1502)
	before := w.ScanRanges()

	require.NoError(t, w.UpdateChainTip(1501))
	require.Equal(t, before, w.ScanRanges())
}

// TestIngestBlocksNonSequential verifies a gappy batch is rejected whole.
func TestIngestBlocksNonSequential(t *testing.T) {
	w := testWallet(t)
	addSpendingAccount(t, w, 1500)

	err := w.IngestBlocks([]*ScannedBlock{
		emptyBlock(1500), emptyBlock(1502),
	})
	require.Error(t, err)
	require.True(t, IsError(err, ErrNonSequentialBlocks))

	// Nothing was committed.
	require.True(t, w.Summary().MaxScanned.IsNone())
}

// TestIngestBlocksReceivesNote verifies the full receive path: transaction
// record, note insertion, balance visibility and scan queue completion.
func TestIngestBlocksReceivesNote(t *testing.T) {
	w := testWallet(t)
	account := addSpendingAccount(t, w, 1500)
	require.NoError(t, w.UpdateChainTip(1501))

	txid := chainhash.Hash{0x77}
	require.NoError(t, w.IngestBlocks([]*ScannedBlock{
		receivedBlock(1500, txid, account.ID, nullifierN(1), 20000),
		emptyBlock(1501),
	}))

	summary := w.Summary()
	require.Equal(t, int32(1501), summary.MaxScanned.UnwrapOr(-1))
	require.True(t, w.NextScanRange().IsNone())

	notes, err := w.SpendableNotes(account.ID, 1501)
	require.NoError(t, err)
	require.Len(t, notes, 1)
	require.Equal(t, txid, notes[0].ID.TxID)

	bal, err := w.AccountBalance(account.ID, 1501)
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(20000), bal.Spendable)
	require.Equal(t, btcutil.Amount(20000), bal.Total)
}

// TestForeignCommitmentsStayScanned verifies commitments belonging to other
// wallets advance the tree without re-queueing the heights that carried
// them: re-scanning those heights would re-append their commitments and
// corrupt the tree.
func TestForeignCommitmentsStayScanned(t *testing.T) {
	w := testWallet(t)
	addSpendingAccount(t, w, 1500)
	require.NoError(t, w.UpdateChainTip(1507))

	block := emptyBlock(1501)
	block.SaplingCommitments = saplingCommitments(0, 5)
	require.NoError(t, w.IngestBlocks([]*ScannedBlock{
		emptyBlock(1500), block,
	}))

	maxScanned := w.Summary().MaxScanned.UnwrapOr(-1)
	require.Equal(t, int32(1501), maxScanned)
	for _, r := range w.ScanRanges() {
		if r.Start <= maxScanned {
			require.LessOrEqual(t, r.Priority,
				scanmgr.PriorityScanned)
		}
	}

	next := w.NextScanRange().UnwrapOr(scanmgr.ScanRange{})
	require.Equal(t, scanmgr.ScanRange{
		Start:    1502,
		End:      1508,
		Priority: scanmgr.PriorityHistoric,
	}, next)
}

// TestFoundNoteRaisesRemainingSpan verifies a batch containing wallet notes
// raises the unscanned span above it so the affected shards complete, while
// the scanned span stays scanned.
func TestFoundNoteRaisesRemainingSpan(t *testing.T) {
	w := testWallet(t)
	account := addSpendingAccount(t, w, 1500)
	require.NoError(t, w.UpdateChainTip(1507))

	block := receivedBlock(1500, chainhash.Hash{0x71}, account.ID,
		nullifierN(1), 20000)
	block.SaplingCommitments = saplingCommitments(0, 1)
	require.NoError(t, w.IngestBlocks([]*ScannedBlock{
		block, emptyBlock(1501),
	}))

	require.Equal(t, []scanmgr.ScanRange{
		{
			Start:    1500,
			End:      1502,
			Priority: scanmgr.PriorityScanned,
		},
		{
			Start:    1502,
			End:      1508,
			Priority: scanmgr.PriorityFoundNote,
		},
	}, w.ScanRanges())
}

// TestSetTransactionStatusMinedNeedsLocation verifies a mined report without
// a chain location is rejected before any state changes.
func TestSetTransactionStatusMinedNeedsLocation(t *testing.T) {
	w := testWallet(t)

	err := w.SetTransactionStatus(chainhash.Hash{0x85},
		wtxmgr.StatusMined, fn.None[wtxmgr.BlockIndex]())
	require.Error(t, err)
	require.True(t, wtxmgr.IsError(err, wtxmgr.ErrInvalidStatus))
	require.Empty(t, w.PendingRequests())
}

// TestNullifierObservedBeforeNote verifies two-phase spend detection across
// out-of-order batches: the spending block is scanned before the block that
// created the note.
func TestNullifierObservedBeforeNote(t *testing.T) {
	w := testWallet(t)
	account := addSpendingAccount(t, w, 1500)
	require.NoError(t, w.UpdateChainTip(1502))

	nf := nullifierN(2)
	spender := chainhash.Hash{0x88}

	// The spend is seen first; no note owns the nullifier yet.
	block := emptyBlock(1502)
	block.Txs = []ScannedTx{{
		TxID:            spender,
		Index:           0,
		SpentNullifiers: []zutil.Nullifier{nf},
	}}
	require.NoError(t, w.IngestBlocks([]*ScannedBlock{block}))

	// Backfilling the earlier range discovers the note, which must come
	// out already spent by the observed transaction.
	creating := chainhash.Hash{0x79}
	require.NoError(t, w.IngestBlocks([]*ScannedBlock{
		receivedBlock(1500, creating, account.ID, nf, 20000),
	}))

	notes, err := w.SpendableNotes(account.ID, 1502)
	require.NoError(t, err)
	require.Empty(t, notes)

	bal, err := w.AccountBalance(account.ID, 1502)
	require.NoError(t, err)
	require.Zero(t, bal.Total)
}

// TestDustExcludedFromSpendable verifies notes at or below the dust
// threshold count toward the total but are never selected as spendable.
func TestDustExcludedFromSpendable(t *testing.T) {
	w := testWallet(t)
	account := addSpendingAccount(t, w, 1500)
	require.NoError(t, w.UpdateChainTip(1500))

	block := emptyBlock(1500)
	block.Txs = []ScannedTx{{
		TxID: chainhash.Hash{0x81},
		Outputs: []ScannedOutput{
			{
				Account:   account.ID,
				Index:     0,
				Note:      saplingNote(DefaultDustThreshold),
				Nullifier: fn.Some(nullifierN(1)),
				Position:  fn.Some(uint64(0)),
			},
			{
				Account:   account.ID,
				Index:     1,
				Note:      saplingNote(20000),
				Nullifier: fn.Some(nullifierN(2)),
				Position:  fn.Some(uint64(1)),
			},
		},
	}}
	require.NoError(t, w.IngestBlocks([]*ScannedBlock{block}))

	bal, err := w.AccountBalance(account.ID, 1500)
	require.NoError(t, err)
	require.Equal(t, btcutil.Amount(20000), bal.Spendable)
	require.Equal(t, btcutil.Amount(20000)+DefaultDustThreshold, bal.Total)
}

// TestViewOnlyAccountHasNoSpendableNotes verifies an account without a full
// viewing key reports funds but never spendable notes.
func TestViewOnlyAccountHasNoSpendableNotes(t *testing.T) {
	w := testWallet(t)
	account, err := w.ImportAccount("uview1watch",
		waddrmgr.PurposeViewOnly, waddrmgr.Birthday{Height: 1500})
	require.NoError(t, err)
	require.NoError(t, w.UpdateChainTip(1500))

	block := emptyBlock(1500)
	block.Txs = []ScannedTx{{
		TxID: chainhash.Hash{0x82},
		Outputs: []ScannedOutput{{
			Account: account.ID,
			Index:   0,
			Note:    saplingNote(30000),
		}},
	}}
	require.NoError(t, w.IngestBlocks([]*ScannedBlock{block}))

	notes, err := w.SpendableNotes(account.ID, 1500)
	require.NoError(t, err)
	require.Empty(t, notes)

	bal, err := w.AccountBalance(account.ID, 1500)
	require.NoError(t, err)
	require.Zero(t, bal.Spendable)
	require.Equal(t, btcutil.Amount(30000), bal.Total)
}

// TestSpendRequestLifecycle verifies an externally learned spend creates a
// placeholder spender with the requests needed to identify it, that an
// expired spender releases the note, and that mining the spender consumes it
// for good.
func TestSpendRequestLifecycle(t *testing.T) {
	w := testWallet(t)
	account := addSpendingAccount(t, w, 1500)
	require.NoError(t, w.UpdateChainTip(1600))

	txid := chainhash.Hash{0x83}
	require.NoError(t, w.IngestBlocks([]*ScannedBlock{
		receivedBlock(1500, txid, account.ID, nullifierN(1), 20000),
	}))
	ingestEmptyRange(t, w, 1501, 1600)

	id := zutil.NoteID{
		TxID:        txid,
		Protocol:    zutil.Sapling,
		OutputIndex: 0,
	}
	spender := chainhash.Hash{0x84}
	require.NoError(t, w.RecordNoteSpend(id, spender))

	// An unidentified spender needs both its status and its raw bytes.
	require.Equal(t, []scanmgr.TxDataRequest{
		scanmgr.StatusRequest(spender),
		scanmgr.EnhanceRequest(spender),
	}, w.PendingRequests())

	// With nothing known about the spender the note is held as spent.
	notes, err := w.SpendableNotes(account.ID, 1600)
	require.NoError(t, err)
	require.Empty(t, notes)

	// Enhancement brings the raw bytes and an expiry below the scanned
	// height: the spend can no longer confirm and the note is released.
	require.NoError(t, w.IngestTransaction(&TransactionData{
		TxID:   spender,
		Raw:    []byte{0x05, 0x00, 0x00, 0x80},
		Expiry: fn.Some(int32(1550)),
	}))
	require.Equal(t, []scanmgr.TxDataRequest{
		scanmgr.StatusRequest(spender),
	}, w.PendingRequests())

	notes, err = w.SpendableNotes(account.ID, 1600)
	require.NoError(t, err)
	require.Len(t, notes, 1)

	// The status response places the spender in a block after all: the
	// note is spent and the request queue drains.
	require.NoError(t, w.SetTransactionStatus(
		spender, wtxmgr.StatusMined,
		fn.Some(wtxmgr.BlockIndex{Height: 1540, Index: 1}),
	))
	require.Empty(t, w.PendingRequests())

	notes, err = w.SpendableNotes(account.ID, 1600)
	require.NoError(t, err)
	require.Empty(t, notes)
}

// TestRollbackRestoresVerifyRange verifies rollback demotes reorged state
// atomically and queues the rolled-back span for verification.
func TestRollbackRestoresVerifyRange(t *testing.T) {
	w := testWallet(t)
	account := addSpendingAccount(t, w, 1500)
	require.NoError(t, w.UpdateChainTip(1502))

	txid := chainhash.Hash{0x91}
	require.NoError(t, w.IngestBlocks([]*ScannedBlock{
		emptyBlock(1500),
		emptyBlock(1501),
		receivedBlock(1502, txid, account.ID, nullifierN(3), 20000),
	}))

	require.NoError(t, w.RollbackToHeight(1502))

	// The note's transaction lost its chain position; the note itself
	// survives but is no longer spendable.
	summary := w.Summary()
	require.Equal(t, int32(1501), summary.MaxScanned.UnwrapOr(-1))

	notes, err := w.SpendableNotes(account.ID, 1502)
	require.NoError(t, err)
	require.Empty(t, notes)

	next := w.NextScanRange().UnwrapOr(scanmgr.ScanRange{})
	require.Equal(t, scanmgr.ScanRange{
		Start:    1502,
		End:      1503,
		Priority: scanmgr.PriorityVerify,
	}, next)
}

// TestFailedRollbackBlocksWrites verifies the reorg-in-progress gate: after
// a failed rollback only rollback retries are accepted.
func TestFailedRollbackBlocksWrites(t *testing.T) {
	failRewind := false
	cfg := testConfig()
	cfg.SaplingEngine = fakeEngine{failRewind: &failRewind}

	w, err := New(cfg)
	require.NoError(t, err)
	account := addSpendingAccount(t, w, 1500)
	require.NoError(t, w.UpdateChainTip(1501))

	// Sapling commitments force the rollback through the engine rewind.
	block := receivedBlock(1500, chainhash.Hash{0x93}, account.ID,
		nullifierN(4), 20000)
	block.SaplingCommitments = saplingCommitments(0, 1)
	require.NoError(t, w.IngestBlocks([]*ScannedBlock{
		block, emptyBlock(1501),
	}))

	failRewind = true
	require.Error(t, w.RollbackToHeight(1501))

	// Writes are refused until a rollback succeeds.
	err = w.UpdateChainTip(1502)
	require.True(t, IsError(err, ErrReorgInProgress))
	err = w.MarkScanned(scanmgr.ScanRange{Start: 1500, End: 1501})
	require.True(t, IsError(err, ErrReorgInProgress))

	// The retry succeeds once the engine recovers, clearing the gate.
	failRewind = false
	require.NoError(t, w.RollbackToHeight(1501))
	require.NoError(t, w.UpdateChainTip(1502))
}

// TestSnapshotRestore verifies a wallet round-trips through its snapshot.
func TestSnapshotRestore(t *testing.T) {
	w := testWallet(t)
	account := addSpendingAccount(t, w, 1500)
	require.NoError(t, w.UpdateChainTip(1501))

	txid := chainhash.Hash{0x95}
	require.NoError(t, w.IngestBlocks([]*ScannedBlock{
		receivedBlock(1500, txid, account.ID, nullifierN(5), 20000),
		emptyBlock(1501),
	}))
	require.NoError(t, w.RecordNoteSpend(zutil.NoteID{
		TxID:        txid,
		Protocol:    zutil.Sapling,
		OutputIndex: 0,
	}, chainhash.Hash{0x96}))

	var buf bytes.Buffer
	require.NoError(t, w.Snapshot(&buf))

	restored, err := Restore(&buf, testConfig())
	require.NoError(t, err)

	require.Equal(t, w.Summary(), restored.Summary())
	require.Equal(t, w.ScanRanges(), restored.ScanRanges())
	require.Equal(t, w.PendingRequests(), restored.PendingRequests())

	origBal, err := w.AccountBalance(account.ID, 1501)
	require.NoError(t, err)
	restBal, err := restored.AccountBalance(account.ID, 1501)
	require.NoError(t, err)
	require.Equal(t, origBal, restBal)
}

// TestRestoreRejectsGarbage verifies restoration fails cleanly on malformed
// input.
func TestRestoreRejectsGarbage(t *testing.T) {
	_, err := Restore(bytes.NewReader([]byte{0x00, 0x01}), testConfig())
	require.Error(t, err)
}
