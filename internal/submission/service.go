// Package submission uploads files to Compilatio and keeps the local ledger in step
// with the remote analysis state.
package submission

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/compilatio/internal/compilatio"
	"github.com/hyperjump/compilatio/internal/fileid"
	"github.com/hyperjump/compilatio/internal/models"
	"github.com/hyperjump/compilatio/internal/storage"
)

var (
	// ErrUnsupportedType is returned for files whose extension the service does not accept.
	ErrUnsupportedType = errors.New("file type not accepted")
	// ErrTooLarge is returned for files above the service upload limit.
	ErrTooLarge = errors.New("file exceeds maximum upload size")
	// ErrNotUploaded is returned when a ledger record has no remote document.
	ErrNotUploaded = errors.New("submission was not uploaded")
)

// Service submits files and tracks their analyses.
type Service struct {
	client    compilatio.Service
	store     storage.Storage
	autoStart bool
	fileTypes []compilatio.FileType
	logger    *zap.Logger
}

// Option configures a Service.
type Option func(*Service)

// WithLogger sets a logger for submission events.
func WithLogger(l *zap.Logger) Option {
	return func(s *Service) { s.logger = l }
}

// WithAutoStart queues an analysis right after each upload.
func WithAutoStart(enabled bool) Option {
	return func(s *Service) { s.autoStart = enabled }
}

// WithFileTypes restricts uploads to the given accepted types.
func WithFileTypes(types []compilatio.FileType) Option {
	return func(s *Service) { s.fileTypes = types }
}

// NewService creates a submission service.
func NewService(client compilatio.Service, store storage.Storage, opts ...Option) *Service {
	s := &Service{
		client: client,
		store:  store,
		logger: zap.NewNop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Submit uploads a file and records it. When the upload fails after validation the
// failure is still recorded, with the service message in ErrorResponse.
func (s *Service) Submit(ctx context.Context, in models.SubmissionInput) (*models.Submission, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if len(s.fileTypes) > 0 && !compilatio.AllowsExtension(s.fileTypes, filepath.Ext(in.Filename)) {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedType, in.Filename)
	}
	if limit := s.client.GetAllowedFileMaxSize().Octets; int64(len(in.Content)) > limit {
		return nil, fmt.Errorf("%w: %d > %d bytes", ErrTooLarge, len(in.Content), limit)
	}

	identifier := fileid.ContentID([]byte(in.Content))
	previous, err := s.store.CountAttempts(ctx, in.CM, in.UserID, identifier)
	if err != nil {
		return nil, fmt.Errorf("count attempts: %w", err)
	}
	sub := &models.Submission{
		CM:         in.CM,
		UserID:     in.UserID,
		Identifier: identifier,
		Filename:   in.Filename,
		StatusCode: string(compilatio.StatusNotStarted),
		Attempt:    previous + 1,
	}

	externalID, sendErr := s.client.SendDoc(ctx, in.Title, in.Filename, in.Content)
	if sendErr != nil {
		if compilatio.IsParamError(sendErr) {
			return nil, sendErr
		}
		sub.ErrorResponse = sendErr.Error()
	}
	sub.ExternalID = externalID

	if sendErr == nil && s.autoStart {
		if err := s.client.StartAnalysis(ctx, externalID); err != nil {
			sub.ErrorResponse = err.Error()
			s.logger.Warn("failed to start analysis", zap.String("externalid", externalID), zap.Error(err))
		} else {
			sub.StatusCode = string(compilatio.StatusInQueue)
		}
	}

	if err := s.store.CreateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to record submission: %w", err)
	}
	if sendErr != nil {
		return sub, fmt.Errorf("upload %s: %w", in.Filename, sendErr)
	}
	s.logger.Info("file submitted",
		zap.Int64("id", sub.ID),
		zap.Int64("cm", sub.CM),
		zap.Int64("userid", sub.UserID),
		zap.String("externalid", sub.ExternalID),
		zap.Int("attempt", sub.Attempt),
	)
	return sub, nil
}

// SubmitFile reads path and submits it. If allowedExts is non-empty, the file's extension
// must be in the list (case-insensitive).
func (s *Service) SubmitFile(ctx context.Context, path string, cm, userID int64, allowedExts []string) (*models.Submission, error) {
	ext := strings.ToLower(filepath.Ext(path))
	if len(allowedExts) > 0 && !extensionAllowed(ext, allowedExts) {
		return nil, fmt.Errorf("%w: extension %q not in allowed list", ErrUnsupportedType, ext)
	}
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("stat file: %w", err)
	}
	if !info.Mode().IsRegular() {
		return nil, fmt.Errorf("not a regular file: %s", path)
	}
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	name := filepath.Base(path)
	return s.Submit(ctx, models.SubmissionInput{
		CM:       cm,
		UserID:   userID,
		Filename: name,
		Title:    name,
		Content:  string(content),
	})
}

// Refresh pulls the remote state of a submission into the ledger. Remote errors are
// stored in ErrorResponse and returned.
func (s *Service) Refresh(ctx context.Context, id int64) (*models.Submission, error) {
	sub, err := s.store.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.ExternalID == "" {
		return sub, fmt.Errorf("%w: %d", ErrNotUploaded, id)
	}

	doc, remoteErr := s.client.GetDoc(ctx, sub.ExternalID)
	if remoteErr == nil {
		sub.StatusCode = string(doc.Status.Status)
		sub.ErrorResponse = ""
		if doc.Status.Status == compilatio.StatusComplete {
			if score, err := strconv.ParseFloat(doc.Status.Indice, 64); err == nil {
				sub.SimilarityScore = score
			}
			url, err := s.client.GetReportURL(ctx, sub.ExternalID)
			if err != nil {
				remoteErr = err
			} else {
				sub.ReportURL = url
			}
		}
	}
	if remoteErr != nil {
		sub.ErrorResponse = remoteErr.Error()
	}
	if err := s.store.UpdateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to update submission: %w", err)
	}
	if remoteErr != nil {
		return sub, fmt.Errorf("refresh %d: %w", id, remoteErr)
	}
	return sub, nil
}

// StartAnalysis queues the analysis of a recorded submission.
func (s *Service) StartAnalysis(ctx context.Context, id int64) (*models.Submission, error) {
	sub, err := s.store.GetSubmission(ctx, id)
	if err != nil {
		return nil, err
	}
	if sub.ExternalID == "" {
		return sub, fmt.Errorf("%w: %d", ErrNotUploaded, id)
	}
	if err := s.client.StartAnalysis(ctx, sub.ExternalID); err != nil {
		return sub, err
	}
	sub.StatusCode = string(compilatio.StatusInQueue)
	sub.ErrorResponse = ""
	if err := s.store.UpdateSubmission(ctx, sub); err != nil {
		return nil, fmt.Errorf("failed to update submission: %w", err)
	}
	return sub, nil
}

// SyncResult summarizes one SyncPending run.
type SyncResult struct {
	RunID     string `json:"run_id"`
	Checked   int    `json:"checked"`
	Completed int    `json:"completed"`
	Failed    int    `json:"failed"`
}

// SyncPending refreshes every uploaded submission whose analysis is not final. Failures
// of individual submissions are counted and logged, not returned.
func (s *Service) SyncPending(ctx context.Context) (SyncResult, error) {
	result := SyncResult{RunID: uuid.NewString()}
	pending, err := s.store.ListPending(ctx)
	if err != nil {
		return result, fmt.Errorf("list pending: %w", err)
	}
	for _, p := range pending {
		if err := ctx.Err(); err != nil {
			return result, err
		}
		result.Checked++
		sub, err := s.Refresh(ctx, p.ID)
		if err != nil {
			result.Failed++
			s.logger.Warn("failed to refresh submission",
				zap.String("run_id", result.RunID), zap.Int64("id", p.ID), zap.Error(err))
			continue
		}
		if sub.StatusCode == string(compilatio.StatusComplete) {
			result.Completed++
		}
	}
	s.logger.Debug("sync finished",
		zap.String("run_id", result.RunID),
		zap.Int("checked", result.Checked),
		zap.Int("completed", result.Completed),
		zap.Int("failed", result.Failed),
	)
	return result, nil
}

func extensionAllowed(ext string, allowed []string) bool {
	extNorm := strings.ToLower(strings.TrimPrefix(ext, "."))
	for _, a := range allowed {
		if strings.ToLower(strings.TrimPrefix(a, ".")) == extNorm {
			return true
		}
	}
	return false
}
