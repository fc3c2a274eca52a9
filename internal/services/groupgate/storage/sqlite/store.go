package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	apperrors "github.com/louisbranch/groupgate/internal/platform/errors"
	sqlitemigrate "github.com/louisbranch/groupgate/internal/platform/storage/sqlitemigrate"
	"github.com/louisbranch/groupgate/internal/services/groupgate/storage"
	"github.com/louisbranch/groupgate/internal/services/groupgate/storage/sqlite/migrations"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

const (
	insertMembershipSQL = `INSERT INTO group_memberships (account_id, state) VALUES (?, ?)`
	updateMembershipSQL = `UPDATE group_memberships SET state = ? WHERE account_id = ?`
	selectMembershipSQL = `SELECT account_id, state FROM group_memberships WHERE account_id = ?`
)

// Store persists last known group membership in SQLite.
type Store struct {
	mu sync.Mutex

	sqlDB      *sql.DB
	insertStmt *sql.Stmt
	updateStmt *sql.Stmt
	selectStmt *sql.Stmt

	logger *zap.Logger
}

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for lifecycle messages.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// Open opens a SQLite membership store, creates the table if absent and
// prepares its statements. Every failure is a STORE_INIT error and leaves
// nothing open.
func Open(path string, opts ...Option) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, apperrors.New(apperrors.CodeStoreInit, "storage path is required")
	}

	s := &Store{logger: zap.NewNop()}
	for _, opt := range opts {
		opt(s)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dsn := filepath.Clean(path) + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"
	sqlDB, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, apperrors.Wrap(apperrors.CodeStoreInit, "open sqlite db", err)
	}
	// One shared connection; the mutex serializes its use.
	sqlDB.SetMaxOpenConns(1)
	s.sqlDB = sqlDB

	if err := s.init(context.Background()); err != nil {
		_ = s.closeLocked()
		return nil, err
	}
	return s, nil
}

func (s *Store) init(ctx context.Context) error {
	if err := s.sqlDB.PingContext(ctx); err != nil {
		return apperrors.Wrap(apperrors.CodeStoreInit, "ping sqlite db", err)
	}

	applied, err := sqlitemigrate.ApplyMigrations(ctx, s.sqlDB, migrations.FS, "")
	if err != nil {
		return apperrors.Wrap(apperrors.CodeStoreInit, "run migrations", err)
	}
	for _, name := range applied {
		s.logger.Info("applied migration", zap.String("migration", name))
	}

	if s.insertStmt, err = s.sqlDB.PrepareContext(ctx, insertMembershipSQL); err != nil {
		return apperrors.Wrap(apperrors.CodeStoreInit, "prepare insert", err)
	}
	if s.updateStmt, err = s.sqlDB.PrepareContext(ctx, updateMembershipSQL); err != nil {
		return apperrors.Wrap(apperrors.CodeStoreInit, "prepare update", err)
	}
	if s.selectStmt, err = s.sqlDB.PrepareContext(ctx, selectMembershipSQL); err != nil {
		return apperrors.Wrap(apperrors.CodeStoreInit, "prepare select", err)
	}
	return nil
}

// Close releases the prepared statements and the SQLite handle.
func (s *Store) Close() error {
	if s == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closeLocked()
}

func (s *Store) closeLocked() error {
	var firstErr error
	for _, stmt := range []*sql.Stmt{s.insertStmt, s.updateStmt, s.selectStmt} {
		if stmt == nil {
			continue
		}
		if err := stmt.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close statement: %w", err)
		}
	}
	s.insertStmt, s.updateStmt, s.selectStmt = nil, nil, nil

	if s.sqlDB != nil {
		if err := s.sqlDB.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close sqlite db: %w", err)
		}
		s.sqlDB = nil
	}
	return firstErr
}

// UpsertMembership updates the account's record, inserting it when no row
// was updated. More than one updated row, or an insert that does not affect
// exactly one row, breaks the one-record-per-account invariant and is
// reported as a STORE_WRITE error.
func (s *Store) UpsertMembership(ctx context.Context, accountID int64, inGroup bool) (storage.Change, error) {
	md := metadata(accountID, "upsert")
	if err := ctx.Err(); err != nil {
		return 0, apperrors.WrapWithMetadata(apperrors.CodeStoreWrite, "upsert membership", md, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sqlDB == nil {
		return 0, apperrors.WrapWithMetadata(apperrors.CodeStoreWrite, "upsert membership: store is closed", md, nil)
	}

	state := stateValue(inGroup)
	res, err := s.updateStmt.ExecContext(ctx, state, accountID)
	if err != nil {
		return 0, apperrors.WrapWithMetadata(apperrors.CodeStoreWrite, "update membership", md, err)
	}
	updated, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.WrapWithMetadata(apperrors.CodeStoreWrite, "update membership rows affected", md, err)
	}

	switch {
	case updated == 1:
		return storage.ChangeUpdated, nil
	case updated > 1:
		return 0, apperrors.WrapWithMetadata(apperrors.CodeStoreWrite,
			fmt.Sprintf("updated %d rows for one account", updated), md, nil)
	}

	res, err = s.insertStmt.ExecContext(ctx, accountID, state)
	if err != nil {
		return 0, apperrors.WrapWithMetadata(apperrors.CodeStoreWrite, "insert membership", md, err)
	}
	inserted, err := res.RowsAffected()
	if err != nil {
		return 0, apperrors.WrapWithMetadata(apperrors.CodeStoreWrite, "insert membership rows affected", md, err)
	}
	if inserted != 1 {
		return 0, apperrors.WrapWithMetadata(apperrors.CodeStoreWrite,
			fmt.Sprintf("inserted %d rows for one account", inserted), md, nil)
	}
	return storage.ChangeInserted, nil
}

// GetMembership returns the account's record, or storage.ErrNotFound.
// More than one matching row is a STORE_READ error.
func (s *Store) GetMembership(ctx context.Context, accountID int64) (storage.Membership, error) {
	md := metadata(accountID, "lookup")
	if err := ctx.Err(); err != nil {
		return storage.Membership{}, apperrors.WrapWithMetadata(apperrors.CodeStoreRead, "get membership", md, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.sqlDB == nil {
		return storage.Membership{}, apperrors.WrapWithMetadata(apperrors.CodeStoreRead, "get membership: store is closed", md, nil)
	}

	rows, err := s.selectStmt.QueryContext(ctx, accountID)
	if err != nil {
		return storage.Membership{}, apperrors.WrapWithMetadata(apperrors.CodeStoreRead, "get membership", md, err)
	}
	defer rows.Close()

	var found []storage.Membership
	for rows.Next() {
		var record storage.Membership
		var state int64
		if err := rows.Scan(&record.AccountID, &state); err != nil {
			return storage.Membership{}, apperrors.WrapWithMetadata(apperrors.CodeStoreRead, "scan membership", md, err)
		}
		record.InGroup = state != 0
		found = append(found, record)
	}
	if err := rows.Err(); err != nil {
		return storage.Membership{}, apperrors.WrapWithMetadata(apperrors.CodeStoreRead, "get membership", md, err)
	}

	switch len(found) {
	case 0:
		return storage.Membership{}, storage.ErrNotFound
	case 1:
		return found[0], nil
	default:
		return storage.Membership{}, apperrors.WrapWithMetadata(apperrors.CodeStoreRead,
			fmt.Sprintf("found %d rows for one account", len(found)), md, nil)
	}
}

func stateValue(inGroup bool) int {
	if inGroup {
		return 1
	}
	return 0
}

func metadata(accountID int64, operation string) map[string]string {
	return map[string]string{
		"account_id": strconv.FormatInt(accountID, 10),
		"operation":  operation,
	}
}

var _ storage.MembershipStore = (*Store)(nil)
