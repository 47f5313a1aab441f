package marketplace

import (
	"context"
	"encoding/json"
	"strings"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

var StageProviderProfileSQL = `UPDATE "providers" AS "prv"
SET
	"has_pending_changes" = TRUE,
	"pending_profile" = ?,
	"original_profile" = ?,
	"pending_submitted_at" = ?
WHERE
	"prv"."deleted_at" IS NULL
AND "prv"."has_pending_changes" = FALSE
AND (
	"prv"."id" = ?
) RETURNING *;`

var ResolveProviderProfileSQL = `UPDATE "providers" AS "prv"
SET
	"fname" = ?,
	"sname" = ?,
	"oname" = ?,
	"full_name" = ?,
	"city" = ?,
	"region" = ?,
	"category" = ?,
	"bio" = ?,
	"skills" = ?,
	"experience" = ?,
	"hourly_rate" = ?,
	"availability" = ?,
	"phone" = ?,
	"whatsapp" = ?,
	"email" = ?,
	"profile_pic" = ?,
	"sample_work" = ?,
	"last_approved_at" = ?,
	"has_pending_changes" = FALSE,
	"pending_profile" = NULL,
	"original_profile" = NULL,
	"pending_submitted_at" = NULL
WHERE
	"prv"."deleted_at" IS NULL
AND "prv"."has_pending_changes" = TRUE
AND (
	"prv"."id" = ?
) RETURNING *;`

var SetProviderApprovalSQL = `UPDATE "providers" AS "prv"
SET
	"is_approved" = ?,
	"last_approved_at" = ?
WHERE
	"prv"."deleted_at" IS NULL
AND (
	"prv"."id" = ?
) RETURNING *;`

var BulkApproveProvidersSQL = `UPDATE "providers" AS "prv"
SET
	"is_approved" = TRUE
WHERE
	"prv"."deleted_at" IS NULL
AND "prv"."id" IN (?);`

var SetProviderSampleWorkSQL = `UPDATE "providers" AS "prv"
SET
	"sample_work" = ?
WHERE
	"prv"."deleted_at" IS NULL
AND (
	"prv"."id" = ?
) RETURNING *;`

var SetProviderRatingSQL = `UPDATE "providers" AS "prv"
SET
	"average_rating" = ?,
	"reviews_count" = ?
WHERE
	"prv"."deleted_at" IS NULL
AND (
	"prv"."id" = ?
) RETURNING *;`

type Providers interface {
	repository.Repository[*Provider]

	RegisterOnce(ctx context.Context, provider *Provider) (*Provider, error)
	GetByUserID(ctx context.Context, userID uuid.UUID) (*Provider, error)
	ListNewest(ctx context.Context) ([]*Provider, error)
	ListNewestAll(ctx context.Context) ([]*Provider, error)
	ListPending(ctx context.Context) ([]*Provider, error)
	Search(ctx context.Context, query string) ([]*Provider, error)

	SaveStagedProfile(ctx context.Context, provider *Provider) (*Provider, error)
	SaveResolvedProfile(ctx context.Context, provider *Provider) (*Provider, error)
	SaveApproval(ctx context.Context, provider *Provider) (*Provider, error)
	BulkApprove(ctx context.Context, ids []uuid.UUID) error
	SaveSampleWork(ctx context.Context, id uuid.UUID, samples []string) (*Provider, error)
	SaveRating(ctx context.Context, id uuid.UUID, average float64, count int) (*Provider, error)
}

type providers struct {
	repository.Repository[*Provider]
	db *bun.DB
}

var (
	_ Providers                        = (*providers)(nil)
	_ repository.Repository[*Provider] = (*providers)(nil)
)

func NewProvidersRepository(db *bun.DB) Providers {
	repo := repository.NewRepository[*Provider](db, repository.ModelHandlers[*Provider]{
		NewRecord: func() *Provider { return &Provider{} },
		GetID: func(p *Provider) uuid.UUID {
			if p == nil {
				return uuid.Nil
			}
			return p.ID
		},
		SetID: func(p *Provider, id uuid.UUID) {
			if p != nil {
				p.ID = id
			}
		},
	})

	return &providers{
		Repository: repo,
		db:         db,
	}
}

// RegisterOnce creates the provider listing, rejecting a second registration
// for the same user.
func (a *providers) RegisterOnce(ctx context.Context, provider *Provider) (*Provider, error) {
	if _, err := a.GetByUserID(ctx, provider.UserID); err == nil {
		return nil, ErrAlreadyRegistered.WithMetadata(map[string]any{
			"user_id": provider.UserID.String(),
		})
	} else if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	if provider.ID == uuid.Nil {
		provider.ID = uuid.New()
	}
	if provider.FullName == "" {
		provider.FullName = provider.Published().FullName()
	}
	if provider.Availability == "" {
		provider.Availability = "flexible"
	}

	return a.Repository.CreateTx(ctx, a.db, provider)
}

func (a *providers) GetByUserID(ctx context.Context, userID uuid.UUID) (*Provider, error) {
	record := &Provider{}
	err := a.db.NewSelect().Model(record).
		Where("?TableAlias.user_id = ?", userID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"user_id": userID.String()})
		}
		return nil, err
	}

	return record, nil
}

// ListNewest returns the public directory: approved, unblocked listings.
func (a *providers) ListNewest(ctx context.Context) ([]*Provider, error) {
	var records []*Provider
	err := a.db.NewSelect().Model(&records).
		Where("?TableAlias.is_approved = TRUE").
		Where("?TableAlias.is_blocked = FALSE").
		Order("created_at DESC").
		Scan(ctx)
	return records, err
}

// ListNewestAll includes unapproved and blocked listings for administration.
func (a *providers) ListNewestAll(ctx context.Context) ([]*Provider, error) {
	var records []*Provider
	err := a.db.NewSelect().Model(&records).
		Order("created_at DESC").
		Scan(ctx)
	return records, err
}

func (a *providers) ListPending(ctx context.Context) ([]*Provider, error) {
	var records []*Provider
	err := a.db.NewSelect().Model(&records).
		Where("?TableAlias.has_pending_changes = TRUE").
		Order("pending_submitted_at ASC").
		Scan(ctx)
	return records, err
}

// Search matches name, category or skills, case-insensitively. Category and
// skills are stored as JSON arrays so the match runs against their text form.
func (a *providers) Search(ctx context.Context, query string) ([]*Provider, error) {
	if query == "" {
		return []*Provider{}, nil
	}

	pattern := "%" + strings.ToLower(query) + "%"

	var records []*Provider
	err := a.db.NewSelect().Model(&records).
		Where("?TableAlias.is_approved = TRUE").
		Where("?TableAlias.is_blocked = FALSE").
		WhereGroup(" AND ", func(q *bun.SelectQuery) *bun.SelectQuery {
			return q.
				Where("LOWER(?TableAlias.fname) LIKE ?", pattern).
				WhereOr("LOWER(?TableAlias.sname) LIKE ?", pattern).
				WhereOr("LOWER(CAST(?TableAlias.category AS TEXT)) LIKE ?", pattern).
				WhereOr("LOWER(CAST(?TableAlias.skills AS TEXT)) LIKE ?", pattern)
		}).
		Scan(ctx)

	return records, err
}

func (a *providers) SaveStagedProfile(ctx context.Context, provider *Provider) (*Provider, error) {
	pending, err := providerProfileJSON(provider.PendingProfile)
	if err != nil {
		return nil, err
	}
	original, err := providerProfileJSON(provider.OriginalProfile)
	if err != nil {
		return nil, err
	}

	res, err := a.Repository.RawTx(ctx, a.db, StageProviderProfileSQL,
		pending,
		original,
		provider.PendingSubmittedAt,
		provider.ID.String(),
	)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, ErrStagingConflict.WithMetadata(map[string]any{"id": provider.ID.String()})
	}

	return res[0], nil
}

func (a *providers) SaveResolvedProfile(ctx context.Context, provider *Provider) (*Provider, error) {
	category, err := json.Marshal(provider.Category)
	if err != nil {
		return nil, err
	}
	skills, err := json.Marshal(provider.Skills)
	if err != nil {
		return nil, err
	}
	samples, err := json.Marshal(provider.SampleWork)
	if err != nil {
		return nil, err
	}

	res, err := a.Repository.RawTx(ctx, a.db, ResolveProviderProfileSQL,
		provider.FirstName,
		provider.Surname,
		provider.OtherName,
		provider.FullName,
		provider.City,
		provider.Region,
		category,
		provider.Bio,
		skills,
		provider.Experience,
		provider.HourlyRate,
		provider.Availability,
		provider.Phone,
		provider.Whatsapp,
		provider.Email,
		provider.ProfilePic,
		samples,
		provider.LastApprovedAt,
		provider.ID.String(),
	)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, ErrStagingConflict.WithMetadata(map[string]any{"id": provider.ID.String()})
	}

	return res[0], nil
}

func (a *providers) SaveApproval(ctx context.Context, provider *Provider) (*Provider, error) {
	res, err := a.Repository.RawTx(ctx, a.db, SetProviderApprovalSQL,
		provider.IsApproved,
		provider.LastApprovedAt,
		provider.ID.String(),
	)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": provider.ID.String()})
	}

	return res[0], nil
}

func (a *providers) BulkApprove(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}

	values := make([]string, 0, len(ids))
	for _, id := range ids {
		values = append(values, id.String())
	}

	_, err := a.db.NewRaw(BulkApproveProvidersSQL, bun.In(values)).Exec(ctx)
	return err
}

// SaveSampleWork replaces the published sample list directly. Sample removal
// does not go through moderation.
func (a *providers) SaveSampleWork(ctx context.Context, id uuid.UUID, samples []string) (*Provider, error) {
	payload, err := json.Marshal(samples)
	if err != nil {
		return nil, err
	}

	res, err := a.Repository.RawTx(ctx, a.db, SetProviderSampleWorkSQL,
		payload,
		id.String(),
	)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return res[0], nil
}

func (a *providers) SaveRating(ctx context.Context, id uuid.UUID, average float64, count int) (*Provider, error) {
	res, err := a.Repository.RawTx(ctx, a.db, SetProviderRatingSQL,
		average,
		count,
		id.String(),
	)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return res[0], nil
}

func providerProfileJSON(p *ProviderProfile) (any, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

// providerApprovalStore adapts the providers repository to the approval
// engine's store contract.
type providerApprovalStore struct {
	providers Providers
}

// NewProviderApprovalStore returns the engine-facing store over the
// providers repository.
func NewProviderApprovalStore(providers Providers) ApprovalStore[*Provider] {
	return providerApprovalStore{providers: providers}
}

func (s providerApprovalStore) GetByID(ctx context.Context, id uuid.UUID) (*Provider, error) {
	return s.providers.GetByID(ctx, id.String())
}

func (s providerApprovalStore) SaveStaged(ctx context.Context, record *Provider) (*Provider, error) {
	return s.providers.SaveStagedProfile(ctx, record)
}

func (s providerApprovalStore) SaveResolved(ctx context.Context, record *Provider) (*Provider, error) {
	return s.providers.SaveResolvedProfile(ctx, record)
}

func (s providerApprovalStore) SaveApproval(ctx context.Context, record *Provider) (*Provider, error) {
	return s.providers.SaveApproval(ctx, record)
}
