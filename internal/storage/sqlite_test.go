package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/hyperjump/compilatio/internal/models"
)

func newTestStore(t *testing.T) *SQLiteStorage {
	t.Helper()
	store, err := NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func seed(t *testing.T, store *SQLiteStorage, subs ...*models.Submission) {
	t.Helper()
	for _, sub := range subs {
		if err := store.CreateSubmission(context.Background(), sub); err != nil {
			t.Fatal(err)
		}
	}
}

func TestSQLiteStorage_CRUD(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sub := &models.Submission{
		CM:         10,
		UserID:     3,
		Identifier: "abc",
		Filename:   "essay.txt",
		StatusCode: "ANALYSE_NOT_STARTED",
		ExternalID: "ext1",
		Attempt:    1,
	}
	if err := store.CreateSubmission(ctx, sub); err != nil {
		t.Fatal(err)
	}
	if sub.ID == 0 {
		t.Error("ID should be set")
	}
	if sub.TimeSubmitted.IsZero() {
		t.Error("TimeSubmitted should be set")
	}

	got, err := store.GetSubmission(ctx, sub.ID)
	if err != nil {
		t.Fatal(err)
	}
	if got.Filename != "essay.txt" || got.CM != 10 || got.UserID != 3 {
		t.Errorf("got %+v", got)
	}
	if got.TimeSubmitted.Unix() != sub.TimeSubmitted.Unix() {
		t.Errorf("TimeSubmitted = %v, want %v", got.TimeSubmitted, sub.TimeSubmitted)
	}

	sub.StatusCode = "ANALYSE_COMPLETE"
	sub.SimilarityScore = 12.5
	sub.ReportURL = "https://example.test/report"
	if err := store.UpdateSubmission(ctx, sub); err != nil {
		t.Fatal(err)
	}
	got, _ = store.GetSubmissionByExternalID(ctx, "ext1")
	if got.StatusCode != "ANALYSE_COMPLETE" || got.SimilarityScore != 12.5 || got.ReportURL == "" {
		t.Errorf("after update got %+v", got)
	}

	_, err = store.GetSubmission(ctx, 999)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	_, err = store.GetSubmissionByExternalID(ctx, "missing")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
	if err := store.UpdateSubmission(ctx, &models.Submission{ID: 999}); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound on update, got %v", err)
	}
}

func TestSQLiteStorage_ListAndPending(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seed(t, store,
		&models.Submission{CM: 1, UserID: 1, ExternalID: "a", StatusCode: "ANALYSE_IN_QUEUE"},
		&models.Submission{CM: 1, UserID: 2, ExternalID: "b", StatusCode: "ANALYSE_COMPLETE"},
		&models.Submission{CM: 2, UserID: 1, ExternalID: "c", StatusCode: "ANALYSE_PROCESSING"},
		&models.Submission{CM: 2, UserID: 1, ExternalID: "d", StatusCode: "ANALYSE_CRASHED"},
		&models.Submission{CM: 2, UserID: 2, StatusCode: "ANALYSE_NOT_STARTED"},
	)

	all, err := store.ListSubmissions(ctx, Filter{}, 0, 100)
	if err != nil {
		t.Fatal(err)
	}
	if len(all) != 5 {
		t.Errorf("expected 5 submissions, got %d", len(all))
	}
	if all[0].ID < all[len(all)-1].ID {
		t.Error("expected newest first")
	}

	mine, _ := store.ListSubmissions(ctx, Filter{CM: 2, UserID: 1}, 0, 100)
	if len(mine) != 2 {
		t.Errorf("expected 2 submissions for cm 2 user 1, got %d", len(mine))
	}
	complete, _ := store.ListSubmissions(ctx, Filter{StatusCode: "ANALYSE_COMPLETE"}, 0, 100)
	if len(complete) != 1 || complete[0].ExternalID != "b" {
		t.Errorf("status filter got %+v", complete)
	}

	pending, err := store.ListPending(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(pending) != 2 || pending[0].ExternalID != "a" || pending[1].ExternalID != "c" {
		t.Errorf("pending = %+v", pending)
	}
}

func TestSQLiteStorage_PrivacyLookups(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	seed(t, store,
		&models.Submission{CM: 5, UserID: 7, ExternalID: "x1"},
		&models.Submission{CM: 5, UserID: 7, ExternalID: "x2"},
		&models.Submission{CM: 5, UserID: 8, ExternalID: "x3"},
		&models.Submission{CM: 6, UserID: 7, ExternalID: "x4"},
		&models.Submission{CM: 6, UserID: 9},
	)

	cms, err := store.ModulesForUser(ctx, 7)
	if err != nil {
		t.Fatal(err)
	}
	if len(cms) != 2 || cms[0] != 5 || cms[1] != 6 {
		t.Errorf("ModulesForUser = %v", cms)
	}

	users, err := store.UsersInModule(ctx, 5)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 || users[0] != 7 || users[1] != 8 {
		t.Errorf("UsersInModule = %v", users)
	}

	ids, _ := store.ExternalIDs(ctx, 5, nil)
	if len(ids) != 3 {
		t.Errorf("ExternalIDs(cm 5) = %v", ids)
	}
	ids, _ = store.ExternalIDs(ctx, 5, []int64{8})
	if len(ids) != 1 || ids[0] != "x3" {
		t.Errorf("ExternalIDs(cm 5, user 8) = %v", ids)
	}
	ids, _ = store.ExternalIDs(ctx, 6, []int64{9})
	if len(ids) != 0 {
		t.Errorf("records without external id should be skipped, got %v", ids)
	}

	n, err := store.DeleteSubmissions(ctx, 5, []int64{7, 8})
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("deleted %d, want 3", n)
	}
	n, _ = store.DeleteSubmissions(ctx, 6, nil)
	if n != 2 {
		t.Errorf("deleted %d, want 2", n)
	}
	total, _ := store.CountSubmissions(ctx)
	if total != 0 {
		t.Errorf("expected empty ledger, got %d", total)
	}
}

func TestSQLiteStorage_Counts(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	n, err := store.CountSubmissions(ctx)
	if err != nil || n != 0 {
		t.Errorf("CountSubmissions: %v, %d", err, n)
	}
	when := time.Date(2019, 4, 10, 9, 0, 0, 0, time.UTC)
	seed(t, store,
		&models.Submission{CM: 1, UserID: 1, Identifier: "h", StatusCode: "ANALYSE_COMPLETE", TimeSubmitted: when},
		&models.Submission{CM: 1, UserID: 1, Identifier: "h", StatusCode: "ANALYSE_IN_QUEUE"},
		&models.Submission{CM: 1, UserID: 2, Identifier: "h", StatusCode: "ANALYSE_IN_QUEUE"},
	)
	n, _ = store.CountSubmissions(ctx)
	if n != 3 {
		t.Errorf("expected 3 submissions, got %d", n)
	}
	byStatus, err := store.CountByStatus(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if byStatus["ANALYSE_IN_QUEUE"] != 2 || byStatus["ANALYSE_COMPLETE"] != 1 {
		t.Errorf("CountByStatus = %v", byStatus)
	}
	attempts, _ := store.CountAttempts(ctx, 1, 1, "h")
	if attempts != 2 {
		t.Errorf("CountAttempts = %d, want 2", attempts)
	}
	first, _ := store.GetSubmission(ctx, 1)
	if !first.TimeSubmitted.Equal(when) {
		t.Errorf("TimeSubmitted = %v, want %v", first.TimeSubmitted, when)
	}
}
