package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) Store {
	t.Helper()

	s, err := Open(DefaultConfig(":memory:"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRecord(id, address string) *DepositRecord {
	now := time.Now().Truncate(time.Second)
	return &DepositRecord{
		ID:             id,
		TaprootAddress: address,
		Commitment:     "ab" + fixedHex(62),
		AmountSats:     100000,
		Status:         StatusPending,
		LeafIndex:      -1,
		CreatedAt:      now,
		UpdatedAt:      now,
	}
}

func fixedHex(n int) string {
	out := make([]byte, n)
	for i := range out {
		out[i] = "0123456789abcdef"[i%16]
	}
	return string(out)
}

func TestStore_InsertAndGetByID(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("dep-1", "bc1qaddr1")
	require.NoError(t, s.Insert(ctx, rec))

	got, err := s.GetByID(ctx, "dep-1")
	require.NoError(t, err)
	require.Equal(t, rec.TaprootAddress, got.TaprootAddress)
	require.Equal(t, StatusPending, got.Status)
	require.Equal(t, int64(-1), got.LeafIndex)
}

func TestStore_InsertDuplicateID(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("dep-1", "bc1qaddr1")
	require.NoError(t, s.Insert(ctx, rec))

	dup := sampleRecord("dep-1", "bc1qaddr2")
	err := s.Insert(ctx, dup)
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestStore_InsertDuplicateAddress(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("dep-1", "bc1qaddr1")
	require.NoError(t, s.Insert(ctx, rec))

	dup := sampleRecord("dep-2", "bc1qaddr1")
	err := s.Insert(ctx, dup)
	require.ErrorIs(t, err, ErrDuplicate)
}

func TestStore_InsertInvalidCommitment(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("dep-1", "bc1qaddr1")
	rec.Commitment = "tooShort"
	err := s.Insert(ctx, rec)
	require.ErrorIs(t, err, ErrInvalidCommitment)
}

func TestStore_UpdateNotFound(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("missing", "bc1qaddr1")
	err := s.Update(ctx, rec)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_UpdateRoundTrip(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("dep-1", "bc1qaddr1")
	require.NoError(t, s.Insert(ctx, rec))

	rec.Status = StatusConfirmed
	rec.DepositTxID = "txid123"
	rec.DepositVout = 1
	rec.AmountSats = 99999
	require.NoError(t, s.Update(ctx, rec))

	got, err := s.GetByID(ctx, "dep-1")
	require.NoError(t, err)
	require.Equal(t, StatusConfirmed, got.Status)
	require.Equal(t, "txid123", got.DepositTxID)
	require.Equal(t, uint32(1), got.DepositVout)
	require.Equal(t, int64(99999), got.AmountSats)
}

func TestStore_GetByAddress(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	rec := sampleRecord("dep-1", "bc1qaddr1")
	require.NoError(t, s.Insert(ctx, rec))

	got, err := s.GetByAddress(ctx, "bc1qaddr1")
	require.NoError(t, err)
	require.Equal(t, "dep-1", got.ID)

	_, err = s.GetByAddress(ctx, "bc1qnonexistent")
	require.ErrorIs(t, err, ErrNotFound)
}

func TestStore_GetActive(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	active := sampleRecord("dep-1", "bc1qaddr1")
	active.Status = StatusConfirming
	require.NoError(t, s.Insert(ctx, active))

	ready := sampleRecord("dep-2", "bc1qaddr2")
	ready.Status = StatusReady
	require.NoError(t, s.Insert(ctx, ready))

	failed := sampleRecord("dep-3", "bc1qaddr3")
	failed.Status = StatusFailed
	require.NoError(t, s.Insert(ctx, failed))

	got, err := s.GetActive(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "dep-1", got[0].ID)
}

func TestStore_GetFailedForRetry(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	noRetryYet := sampleRecord("dep-1", "bc1qaddr1")
	noRetryYet.Status = StatusFailed
	require.NoError(t, s.Insert(ctx, noRetryYet))

	oldRetry := sampleRecord("dep-2", "bc1qaddr2")
	oldRetry.Status = StatusFailed
	oldTime := time.Now().Add(-time.Hour)
	oldRetry.LastRetryAt = &oldTime
	require.NoError(t, s.Insert(ctx, oldRetry))

	exhausted := sampleRecord("dep-3", "bc1qaddr3")
	exhausted.Status = StatusFailed
	exhausted.RetryCount = 10
	require.NoError(t, s.Insert(ctx, exhausted))

	got, err := s.GetFailedForRetry(ctx, 5)
	require.NoError(t, err)
	require.Len(t, got, 2)
	// NULL last_retry_at sorts first.
	require.Equal(t, "dep-1", got[0].ID)
	require.Equal(t, "dep-2", got[1].ID)
}

func TestStore_CountByStatusAndTotalSats(t *testing.T) {
	t.Parallel()

	s := newTestStore(t)
	ctx := context.Background()

	r1 := sampleRecord("dep-1", "bc1qaddr1")
	r1.Status = StatusReady
	r1.AmountSats = 10000
	require.NoError(t, s.Insert(ctx, r1))

	r2 := sampleRecord("dep-2", "bc1qaddr2")
	r2.Status = StatusClaimed
	r2.AmountSats = 20000
	require.NoError(t, s.Insert(ctx, r2))

	r3 := sampleRecord("dep-3", "bc1qaddr3")
	r3.Status = StatusPending
	r3.AmountSats = 5000
	require.NoError(t, s.Insert(ctx, r3))

	counts, err := s.CountByStatus(ctx)
	require.NoError(t, err)
	require.Equal(t, 1, counts[StatusReady])
	require.Equal(t, 1, counts[StatusClaimed])
	require.Equal(t, 1, counts[StatusPending])

	total, err := s.TotalSatsReceived(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(30000), total)
}

func TestStatus_ActiveAndTerminal(t *testing.T) {
	t.Parallel()

	require.True(t, StatusConfirming.Active())
	require.False(t, StatusConfirming.Terminal())

	require.False(t, StatusReady.Active())
	require.True(t, StatusReady.Terminal())

	require.True(t, StatusFailed.Terminal())
}
