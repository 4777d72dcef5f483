package store

import "context"

// Store is the durable, keyed deposit store described in spec.md §4.2: a
// single-writer/many-reader table indexed by id and by taproot address.
type Store interface {
	// Insert adds a new record. Fails with ErrDuplicate if id or
	// TaprootAddress already exist.
	Insert(ctx context.Context, record *DepositRecord) error

	// Update persists record in place. Fails with ErrNotFound if no
	// record with this id exists.
	Update(ctx context.Context, record *DepositRecord) error

	GetByID(ctx context.Context, id string) (*DepositRecord, error)
	GetByAddress(ctx context.Context, address string) (*DepositRecord, error)
	GetAll(ctx context.Context) ([]*DepositRecord, error)
	GetByStatus(ctx context.Context, status Status) ([]*DepositRecord, error)

	// GetActive returns every record whose status is not in
	// {Ready, Claimed, Failed}.
	GetActive(ctx context.Context) ([]*DepositRecord, error)

	// GetFailedForRetry returns records with status Failed and
	// retry_count < max, ordered oldest-retry-first with NULL
	// last_retry_at sorting first.
	GetFailedForRetry(ctx context.Context, max int) ([]*DepositRecord, error)

	CountByStatus(ctx context.Context) (map[Status]int, error)

	// TotalSatsReceived sums amount_sats across {Ready, Claimed}.
	TotalSatsReceived(ctx context.Context) (int64, error)

	Close() error
}
