package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"testing"

	apperrors "github.com/louisbranch/groupgate/internal/platform/errors"
	"github.com/louisbranch/groupgate/internal/services/groupgate/storage"
)

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	_, err := Open("")
	if err == nil {
		t.Fatal("expected empty path error")
	}
	if !apperrors.HasCode(err, apperrors.CodeStoreInit) {
		t.Fatalf("err = %v, want STORE_INIT", err)
	}
}

func TestOpenFailsForUnwritableLocation(t *testing.T) {
	t.Parallel()

	_, err := Open(filepath.Join(t.TempDir(), "missing-dir", "groupgate.db"))
	if !apperrors.HasCode(err, apperrors.CodeStoreInit) {
		t.Fatalf("err = %v, want STORE_INIT", err)
	}
}

func TestGetMembershipReturnsNotFoundForUnseenAccount(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	for _, id := range []int64{1, 123456, 9007199254740993} {
		_, err := store.GetMembership(context.Background(), id)
		if !errors.Is(err, storage.ErrNotFound) {
			t.Fatalf("get membership %d: err = %v, want %v", id, err, storage.ErrNotFound)
		}
	}
}

func TestUpsertMembershipInsertsThenUpdates(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	change, err := store.UpsertMembership(ctx, 123456, true)
	if err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if change != storage.ChangeInserted {
		t.Fatalf("first upsert change = %s, want inserted", change)
	}
	got, err := store.GetMembership(ctx, 123456)
	if err != nil {
		t.Fatalf("get after insert: %v", err)
	}
	if got != (storage.Membership{AccountID: 123456, InGroup: true}) {
		t.Fatalf("record = %+v, want in group", got)
	}

	change, err = store.UpsertMembership(ctx, 123456, false)
	if err != nil {
		t.Fatalf("second upsert: %v", err)
	}
	if change != storage.ChangeUpdated {
		t.Fatalf("second upsert change = %s, want updated", change)
	}
	got, err = store.GetMembership(ctx, 123456)
	if err != nil {
		t.Fatalf("get after update: %v", err)
	}
	if got.InGroup {
		t.Fatalf("record = %+v, want not in group", got)
	}
	if n := countRows(t, store, 123456); n != 1 {
		t.Fatalf("rows for account = %d, want 1", n)
	}
}

func TestUpsertMembershipSameValueReportsUpdated(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	for i, want := range []storage.Change{storage.ChangeInserted, storage.ChangeUpdated, storage.ChangeUpdated} {
		change, err := store.UpsertMembership(ctx, 42, true)
		if err != nil {
			t.Fatalf("upsert %d: %v", i, err)
		}
		if change != want {
			t.Fatalf("upsert %d change = %s, want %s", i, change, want)
		}
	}
	got, err := store.GetMembership(ctx, 42)
	if err != nil {
		t.Fatalf("get membership: %v", err)
	}
	if !got.InGroup {
		t.Fatal("expected record to stay in group")
	}
}

func TestUpsertMembershipKeepsAccountsSeparate(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	if _, err := store.UpsertMembership(ctx, 1, true); err != nil {
		t.Fatalf("upsert 1: %v", err)
	}
	if _, err := store.UpsertMembership(ctx, 2, false); err != nil {
		t.Fatalf("upsert 2: %v", err)
	}

	one, err := store.GetMembership(ctx, 1)
	if err != nil || !one.InGroup {
		t.Fatalf("account 1 = %+v, %v", one, err)
	}
	two, err := store.GetMembership(ctx, 2)
	if err != nil || two.InGroup {
		t.Fatalf("account 2 = %+v, %v", two, err)
	}
}

func TestDuplicateRowsAreInvariantViolations(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()
	for i := 0; i < 2; i++ {
		if _, err := store.sqlDB.ExecContext(ctx, `INSERT INTO group_memberships (account_id, state) VALUES (?, ?)`, 777, 1); err != nil {
			t.Fatalf("seed duplicate row: %v", err)
		}
	}

	_, err := store.GetMembership(ctx, 777)
	if !apperrors.HasCode(err, apperrors.CodeStoreRead) {
		t.Fatalf("get err = %v, want STORE_READ", err)
	}

	_, err = store.UpsertMembership(ctx, 777, false)
	if !apperrors.HasCode(err, apperrors.CodeStoreWrite) {
		t.Fatalf("upsert err = %v, want STORE_WRITE", err)
	}
	var domainErr *apperrors.Error
	if !errors.As(err, &domainErr) {
		t.Fatalf("expected domain error, got %T", err)
	}
	if domainErr.Metadata["account_id"] != "777" || domainErr.Metadata["operation"] != "upsert" {
		t.Fatalf("metadata = %v", domainErr.Metadata)
	}
}

func TestOperationsFailAfterClose(t *testing.T) {
	t.Parallel()

	store, err := Open(filepath.Join(t.TempDir(), "groupgate.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close store: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("second close should be a no-op: %v", err)
	}

	if _, err := store.GetMembership(context.Background(), 1); !apperrors.HasCode(err, apperrors.CodeStoreRead) {
		t.Fatalf("get after close err = %v, want STORE_READ", err)
	}
	if _, err := store.UpsertMembership(context.Background(), 1, true); !apperrors.HasCode(err, apperrors.CodeStoreWrite) {
		t.Fatalf("upsert after close err = %v, want STORE_WRITE", err)
	}
}

func TestOperationsRespectCancelledContext(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := store.UpsertMembership(ctx, 1, true); !errors.Is(err, context.Canceled) {
		t.Fatalf("upsert err = %v, want context.Canceled", err)
	}
	if _, err := store.GetMembership(ctx, 1); !errors.Is(err, context.Canceled) {
		t.Fatalf("get err = %v, want context.Canceled", err)
	}
}

func TestReopenKeepsRecords(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "groupgate.db")
	store, err := Open(path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	if _, err := store.UpsertMembership(context.Background(), 5150, true); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := store.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen store: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	got, err := reopened.GetMembership(context.Background(), 5150)
	if err != nil {
		t.Fatalf("get after reopen: %v", err)
	}
	if !got.InGroup {
		t.Fatal("expected persisted in-group record")
	}
}

func TestConcurrentUpsertsKeepOneRowPerAccount(t *testing.T) {
	t.Parallel()

	store := openTempStore(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make(chan error, 32)
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if _, err := store.UpsertMembership(ctx, int64(100+i%4), i%2 == 0); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent upsert: %v", err)
	}

	for id := int64(100); id < 104; id++ {
		if n := countRows(t, store, id); n != 1 {
			t.Fatalf("rows for account %d = %d, want 1", id, n)
		}
	}
}

func openTempStore(t *testing.T) *Store {
	t.Helper()

	store, err := Open(filepath.Join(t.TempDir(), "groupgate.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func countRows(t *testing.T, store *Store, accountID int64) int {
	t.Helper()

	var n int
	row := store.sqlDB.QueryRowContext(context.Background(), `SELECT COUNT(*) FROM group_memberships WHERE account_id = ?`, accountID)
	if err := row.Scan(&n); err != nil {
		t.Fatalf("count rows: %v", err)
	}
	return n
}
