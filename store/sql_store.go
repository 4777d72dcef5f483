package store

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"
)

// dialect abstracts the placeholder syntax difference between SQLite
// (positional "?") and Postgres (numbered "$1", "$2", ...). Every other
// part of the query set is portable SQL.
type dialect struct {
	name            string
	placeholder     func(n int) string
	upsertNotSupported bool
}

var sqliteDialect = dialect{
	name:        "sqlite",
	placeholder: func(n int) string { return "?" },
}

var postgresDialect = dialect{
	name:        "postgres",
	placeholder: func(n int) string { return fmt.Sprintf("$%d", n) },
}

// sqlStore is a database/sql-backed implementation of Store shared by the
// SQLite and Postgres backends; the only behavioral difference between
// them is placeholder syntax, handled via dialect.
type sqlStore struct {
	db *sql.DB
	d  dialect
}

func newSQLStore(db *sql.DB, d dialect, schema string) (*sqlStore, error) {
	if _, err := db.Exec(schema); err != nil {
		return nil, fmt.Errorf("store: running schema migration: %w", err)
	}
	return &sqlStore{db: db, d: d}, nil
}

func (s *sqlStore) Close() error {
	return s.db.Close()
}

// ph builds a comma-joined placeholder list starting at argument index 1,
// e.g. "?, ?, ?" for sqlite or "$1, $2, $3" for postgres.
func (s *sqlStore) ph(count int) string {
	parts := make([]string, count)
	for i := 0; i < count; i++ {
		parts[i] = s.d.placeholder(i + 1)
	}
	return strings.Join(parts, ", ")
}

func unixOrNil(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return t.Unix()
}

func nullableInt64(v int64, zeroIsNull bool) interface{} {
	if zeroIsNull && v == 0 {
		return nil
	}
	return v
}

func (s *sqlStore) Insert(ctx context.Context, r *DepositRecord) error {
	if len(r.Commitment) != 64 {
		return ErrInvalidCommitment
	}

	query := fmt.Sprintf(`INSERT INTO deposits (%s) VALUES (%s)`, depositColumns, s.ph(20))

	_, err := s.db.ExecContext(ctx, query,
		r.ID, r.TaprootAddress, r.Commitment, r.AmountSats, string(r.Status), r.Confirmations,
		nullString(r.DepositTxID), nullableInt64(int64(r.DepositVout), r.DepositTxID == ""), nullableInt64(r.DepositBlockHeight, r.DepositTxID == ""),
		nullString(r.SweepTxID), r.SweepConfirmations, nullableInt64(r.SweepBlockHeight, r.SweepTxID == ""), nullString(r.PoolAddress),
		nullString(r.SolanaTx), nullableInt64(r.LeafIndex, r.LeafIndex < 0),
		r.CreatedAt.Unix(), r.UpdatedAt.Unix(),
		nullString(r.Error), r.RetryCount, unixOrNil(r.LastRetryAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("store: insert: %w", err)
	}
	return nil
}

func (s *sqlStore) Update(ctx context.Context, r *DepositRecord) error {
	if len(r.Commitment) != 64 {
		return ErrInvalidCommitment
	}

	query := fmt.Sprintf(`UPDATE deposits SET
		taproot_address=%s, commitment=%s, amount_sats=%s, status=%s, confirmations=%s,
		deposit_txid=%s, deposit_vout=%s, deposit_block_height=%s,
		sweep_txid=%s, sweep_confirmations=%s, sweep_block_height=%s, pool_address=%s,
		solana_tx=%s, leaf_index=%s, updated_at=%s,
		error=%s, retry_count=%s, last_retry_at=%s
		WHERE id=%s`,
		s.d.placeholder(1), s.d.placeholder(2), s.d.placeholder(3), s.d.placeholder(4), s.d.placeholder(5),
		s.d.placeholder(6), s.d.placeholder(7), s.d.placeholder(8),
		s.d.placeholder(9), s.d.placeholder(10), s.d.placeholder(11), s.d.placeholder(12),
		s.d.placeholder(13), s.d.placeholder(14), s.d.placeholder(15),
		s.d.placeholder(16), s.d.placeholder(17), s.d.placeholder(18),
		s.d.placeholder(19),
	)

	r.UpdatedAt = time.Now()

	res, err := s.db.ExecContext(ctx, query,
		r.TaprootAddress, r.Commitment, r.AmountSats, string(r.Status), r.Confirmations,
		nullString(r.DepositTxID), nullableInt64(int64(r.DepositVout), r.DepositTxID == ""), nullableInt64(r.DepositBlockHeight, r.DepositTxID == ""),
		nullString(r.SweepTxID), r.SweepConfirmations, nullableInt64(r.SweepBlockHeight, r.SweepTxID == ""), nullString(r.PoolAddress),
		nullString(r.SolanaTx), nullableInt64(r.LeafIndex, r.LeafIndex < 0), r.UpdatedAt.Unix(),
		nullString(r.Error), r.RetryCount, unixOrNil(r.LastRetryAt),
		r.ID,
	)
	if err != nil {
		return fmt.Errorf("store: update: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("store: update: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqlStore) GetByID(ctx context.Context, id string) (*DepositRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM deposits WHERE id=%s`, depositColumns, s.d.placeholder(1))
	row := s.db.QueryRowContext(ctx, query, id)
	return scanDepositRecord(row)
}

func (s *sqlStore) GetByAddress(ctx context.Context, address string) (*DepositRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM deposits WHERE taproot_address=%s`, depositColumns, s.d.placeholder(1))
	row := s.db.QueryRowContext(ctx, query, address)
	return scanDepositRecord(row)
}

func (s *sqlStore) GetAll(ctx context.Context) ([]*DepositRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM deposits ORDER BY created_at ASC`, depositColumns)
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("store: get all: %w", err)
	}
	defer rows.Close()
	return scanDepositRecords(rows)
}

func (s *sqlStore) GetByStatus(ctx context.Context, status Status) ([]*DepositRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM deposits WHERE status=%s ORDER BY created_at ASC`, depositColumns, s.d.placeholder(1))
	rows, err := s.db.QueryContext(ctx, query, string(status))
	if err != nil {
		return nil, fmt.Errorf("store: get by status: %w", err)
	}
	defer rows.Close()
	return scanDepositRecords(rows)
}

func (s *sqlStore) GetActive(ctx context.Context) ([]*DepositRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM deposits WHERE status NOT IN (%s, %s, %s) ORDER BY created_at ASC`,
		depositColumns, s.d.placeholder(1), s.d.placeholder(2), s.d.placeholder(3))
	rows, err := s.db.QueryContext(ctx, query, string(StatusReady), string(StatusClaimed), string(StatusFailed))
	if err != nil {
		return nil, fmt.Errorf("store: get active: %w", err)
	}
	defer rows.Close()
	return scanDepositRecords(rows)
}

// GetFailedForRetry implements spec.md §4.2: status=Failed, retry_count <
// max, ordered oldest-retry-first with NULL last_retry_at sorting first.
func (s *sqlStore) GetFailedForRetry(ctx context.Context, max int) ([]*DepositRecord, error) {
	query := fmt.Sprintf(`SELECT %s FROM deposits
		WHERE status=%s AND retry_count < %s
		ORDER BY (last_retry_at IS NULL) DESC, last_retry_at ASC`,
		depositColumns, s.d.placeholder(1), s.d.placeholder(2))
	rows, err := s.db.QueryContext(ctx, query, string(StatusFailed), max)
	if err != nil {
		return nil, fmt.Errorf("store: get failed for retry: %w", err)
	}
	defer rows.Close()
	return scanDepositRecords(rows)
}

func (s *sqlStore) CountByStatus(ctx context.Context) (map[Status]int, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT status, COUNT(*) FROM deposits GROUP BY status`)
	if err != nil {
		return nil, fmt.Errorf("store: count by status: %w", err)
	}
	defer rows.Close()

	counts := make(map[Status]int)
	for rows.Next() {
		var status string
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("store: count by status: scanning: %w", err)
		}
		counts[Status(status)] = count
	}
	return counts, rows.Err()
}

func (s *sqlStore) TotalSatsReceived(ctx context.Context) (int64, error) {
	query := fmt.Sprintf(`SELECT COALESCE(SUM(amount_sats), 0) FROM deposits WHERE status IN (%s, %s)`,
		s.d.placeholder(1), s.d.placeholder(2))
	var total int64
	err := s.db.QueryRowContext(ctx, query, string(StatusReady), string(StatusClaimed)).Scan(&total)
	if err != nil {
		return 0, fmt.Errorf("store: total sats received: %w", err)
	}
	return total, nil
}

func nullString(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// rowScanner is satisfied by both *sql.Row and *sql.Rows.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanDepositRecord(row rowScanner) (*DepositRecord, error) {
	var r DepositRecord
	var status string
	var depositTxID, sweepTxID, poolAddress, solanaTx, errMsg sql.NullString
	var depositVout, depositBlockHeight, sweepBlockHeight, leafIndex sql.NullInt64
	var createdAt, updatedAt int64
	var lastRetryAt sql.NullInt64

	err := row.Scan(
		&r.ID, &r.TaprootAddress, &r.Commitment, &r.AmountSats, &status, &r.Confirmations,
		&depositTxID, &depositVout, &depositBlockHeight,
		&sweepTxID, &r.SweepConfirmations, &sweepBlockHeight, &poolAddress,
		&solanaTx, &leafIndex, &createdAt, &updatedAt,
		&errMsg, &r.RetryCount, &lastRetryAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("store: scanning record: %w", err)
	}

	r.Status = Status(status)
	r.DepositTxID = depositTxID.String
	r.DepositVout = uint32(depositVout.Int64)
	r.DepositBlockHeight = depositBlockHeight.Int64
	r.SweepTxID = sweepTxID.String
	r.SweepBlockHeight = sweepBlockHeight.Int64
	r.PoolAddress = poolAddress.String
	r.SolanaTx = solanaTx.String
	if leafIndex.Valid {
		r.LeafIndex = leafIndex.Int64
	} else {
		r.LeafIndex = -1
	}
	r.CreatedAt = time.Unix(createdAt, 0).UTC()
	r.UpdatedAt = time.Unix(updatedAt, 0).UTC()
	r.Error = errMsg.String
	if lastRetryAt.Valid {
		t := time.Unix(lastRetryAt.Int64, 0).UTC()
		r.LastRetryAt = &t
	}

	return &r, nil
}

func scanDepositRecords(rows *sql.Rows) ([]*DepositRecord, error) {
	var out []*DepositRecord
	for rows.Next() {
		r, err := scanDepositRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

func isUniqueViolation(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint") || // sqlite
		strings.Contains(msg, "unique constraint") || // postgres lowercase
		strings.Contains(msg, "duplicate key value") // postgres
}
