// Package privacy answers data-protection requests for submissions sent to Compilatio:
// which personal data is kept, where it lives, how to export it and how to erase it
// locally and remotely.
package privacy

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/compilatio/internal/models"
	"github.com/hyperjump/compilatio/internal/storage"
)

// exportLimit bounds how many ledger rows a single export reads.
const exportLimit = 100000

// Store is the part of the ledger the provider reads and purges.
type Store interface {
	ModulesForUser(ctx context.Context, userID int64) ([]int64, error)
	UsersInModule(ctx context.Context, cm int64) ([]int64, error)
	ListSubmissions(ctx context.Context, filter storage.Filter, offset, limit int) ([]*models.Submission, error)
	ExternalIDs(ctx context.Context, cm int64, userIDs []int64) ([]string, error)
	DeleteSubmissions(ctx context.Context, cm int64, userIDs []int64) (int64, error)
}

// Remote removes documents from the Compilatio account.
type Remote interface {
	SetIndexingState(ctx context.Context, id string, indexed bool) error
	DeleteDoc(ctx context.Context, id string) error
}

// Provider handles privacy requests.
type Provider struct {
	store  Store
	remote Remote
	logger *zap.Logger
	now    func() time.Time
}

// Option configures a Provider.
type Option func(*Provider)

// WithLogger sets the logger used to report remote failures.
func WithLogger(l *zap.Logger) Option {
	return func(p *Provider) { p.logger = l }
}

// NewProvider returns a Provider. remote may be nil when no API key is configured; remote
// documents are then left untouched.
func NewProvider(store Store, remote Remote, opts ...Option) *Provider {
	p := &Provider{
		store:  store,
		remote: remote,
		logger: zap.NewNop(),
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Metadata returns the personal data declaration.
func (p *Provider) Metadata() []Item {
	return Metadata()
}

// ContextsForUser returns the module contexts in which userID has submissions.
func (p *Provider) ContextsForUser(ctx context.Context, userID int64) ([]models.Context, error) {
	if userID <= 0 {
		return nil, nil
	}
	cms, err := p.store.ModulesForUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("contexts for user %d: %w", userID, err)
	}
	contexts := make([]models.Context, 0, len(cms))
	for _, cm := range cms {
		contexts = append(contexts, models.ModuleContext(cm))
	}
	return contexts, nil
}

// UsersInContext returns the users with submissions in a module context.
func (p *Provider) UsersInContext(ctx context.Context, c models.Context) ([]int64, error) {
	if !c.IsModule() {
		return nil, nil
	}
	users, err := p.store.UsersInModule(ctx, c.InstanceID)
	if err != nil {
		return nil, fmt.Errorf("users in module %d: %w", c.InstanceID, err)
	}
	return users, nil
}

// Export is the data exported for one user in one context.
type Export struct {
	ExportID    string               `json:"export_id"`
	ExportedAt  time.Time            `json:"exported_at"`
	UserID      int64                `json:"userid"`
	Context     models.Context       `json:"context"`
	Submissions []*models.Submission `json:"plagiarism_compilatio_files"`
}

// Export collects the submissions of userID in a module context. It returns nil when
// there is nothing to export for that user or context.
func (p *Provider) Export(ctx context.Context, userID int64, c models.Context) (*Export, error) {
	if userID <= 0 || !c.IsModule() {
		return nil, nil
	}
	subs, err := p.store.ListSubmissions(ctx, storage.Filter{CM: c.InstanceID, UserID: userID}, 0, exportLimit)
	if err != nil {
		return nil, fmt.Errorf("export user %d: %w", userID, err)
	}
	if subs == nil {
		subs = []*models.Submission{}
	}
	return &Export{
		ExportID:    uuid.NewString(),
		ExportedAt:  p.now().UTC(),
		UserID:      userID,
		Context:     c,
		Submissions: subs,
	}, nil
}

// ExportUserData writes the export of userID in c to w as JSON. Nothing is written
// when the request is ignored.
func (p *Provider) ExportUserData(ctx context.Context, userID int64, c models.Context, w io.Writer) error {
	export, err := p.Export(ctx, userID, c)
	if err != nil || export == nil {
		return err
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(export)
}

// DeleteForContext erases every submission of a module context.
func (p *Provider) DeleteForContext(ctx context.Context, c models.Context) error {
	if !c.IsModule() {
		return nil
	}
	return p.purge(ctx, c.InstanceID, nil)
}

// DeleteForUser erases the submissions of userID in a module context.
func (p *Provider) DeleteForUser(ctx context.Context, userID int64, c models.Context) error {
	if userID <= 0 || !c.IsModule() {
		return nil
	}
	return p.purge(ctx, c.InstanceID, []int64{userID})
}

// DeleteForUsers erases the submissions of several users in a module context.
func (p *Provider) DeleteForUsers(ctx context.Context, c models.Context, userIDs []int64) error {
	if !c.IsModule() {
		return nil
	}
	approved := make([]int64, 0, len(userIDs))
	for _, id := range userIDs {
		if id > 0 {
			approved = append(approved, id)
		}
	}
	if len(approved) == 0 {
		return nil
	}
	return p.purge(ctx, c.InstanceID, approved)
}

// purge removes remote documents first, then local records. Remote failures are logged
// and never block the local deletion.
func (p *Provider) purge(ctx context.Context, cm int64, userIDs []int64) error {
	if p.remote != nil {
		ids, err := p.store.ExternalIDs(ctx, cm, userIDs)
		if err != nil {
			return fmt.Errorf("purge module %d: %w", cm, err)
		}
		for _, id := range ids {
			if err := p.remote.SetIndexingState(ctx, id, false); err != nil {
				p.logger.Warn("failed to unindex remote document",
					zap.String("externalid", id), zap.Int64("cm", cm), zap.Error(err))
			}
			if err := p.remote.DeleteDoc(ctx, id); err != nil {
				p.logger.Warn("failed to delete remote document",
					zap.String("externalid", id), zap.Int64("cm", cm), zap.Error(err))
			}
		}
	}
	n, err := p.store.DeleteSubmissions(ctx, cm, userIDs)
	if err != nil {
		return fmt.Errorf("purge module %d: %w", cm, err)
	}
	p.logger.Info("purged submissions",
		zap.Int64("cm", cm), zap.Int64s("users", userIDs), zap.Int64("deleted", n))
	return nil
}
