// Package storage defines the persistence interface for the submission ledger.
package storage

import (
	"context"
	"errors"

	"github.com/hyperjump/compilatio/internal/models"
)

// ErrNotFound is returned when a submission does not exist.
var ErrNotFound = errors.New("submission not found")

// Filter narrows submission listings. Zero fields match everything.
type Filter struct {
	CM         int64
	UserID     int64
	StatusCode string
}

// Storage defines submission ledger operations.
type Storage interface {
	// Submission operations
	CreateSubmission(ctx context.Context, sub *models.Submission) error
	GetSubmission(ctx context.Context, id int64) (*models.Submission, error)
	GetSubmissionByExternalID(ctx context.Context, externalID string) (*models.Submission, error)
	UpdateSubmission(ctx context.Context, sub *models.Submission) error
	ListSubmissions(ctx context.Context, filter Filter, offset, limit int) ([]*models.Submission, error)
	ListPending(ctx context.Context) ([]*models.Submission, error)
	CountAttempts(ctx context.Context, cm, userID int64, identifier string) (int, error)

	// Privacy lookups
	ModulesForUser(ctx context.Context, userID int64) ([]int64, error)
	UsersInModule(ctx context.Context, cm int64) ([]int64, error)
	ExternalIDs(ctx context.Context, cm int64, userIDs []int64) ([]string, error)
	DeleteSubmissions(ctx context.Context, cm int64, userIDs []int64) (int64, error)

	// Stats
	CountSubmissions(ctx context.Context) (int64, error)
	CountByStatus(ctx context.Context) (map[string]int64, error)

	Close() error
}
