package marketplace

import (
	"context"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type Tasks interface {
	repository.Repository[*Task]

	ListByClient(ctx context.Context, clientID uuid.UUID) ([]*Task, error)
	ListAll(ctx context.Context) ([]*Task, error)
	CompletedBetween(ctx context.Context, taskID, clientID, workerID uuid.UUID) (*Task, error)
	DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error)
}

type tasks struct {
	repository.Repository[*Task]
	db *bun.DB
}

var _ Tasks = (*tasks)(nil)

func NewTasksRepository(db *bun.DB) Tasks {
	repo := repository.NewRepository[*Task](db, repository.ModelHandlers[*Task]{
		NewRecord: func() *Task { return &Task{} },
		GetID: func(t *Task) uuid.UUID {
			if t == nil {
				return uuid.Nil
			}
			return t.ID
		},
		SetID: func(t *Task, id uuid.UUID) {
			if t != nil {
				t.ID = id
			}
		},
	})

	return &tasks{Repository: repo, db: db}
}

func (a *tasks) ListByClient(ctx context.Context, clientID uuid.UUID) ([]*Task, error) {
	var records []*Task
	err := a.db.NewSelect().Model(&records).
		Where("?TableAlias.client_id = ?", clientID.String()).
		Order("created_at DESC").
		Scan(ctx)
	return records, err
}

func (a *tasks) ListAll(ctx context.Context) ([]*Task, error) {
	var records []*Task
	err := a.db.NewSelect().Model(&records).
		Order("created_at DESC").
		Scan(ctx)
	return records, err
}

// CompletedBetween finds the completed task linking a client and a worker.
// Reviews hang off this lookup: no completed task, no review.
func (a *tasks) CompletedBetween(ctx context.Context, taskID, clientID, workerID uuid.UUID) (*Task, error) {
	record := &Task{}
	err := a.db.NewSelect().Model(record).
		Where("?TableAlias.id = ?", taskID.String()).
		Where("?TableAlias.client_id = ?", clientID.String()).
		Where("?TableAlias.worker_id = ?", workerID.String()).
		Where("?TableAlias.status = ?", TaskStatusCompleted).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound().
				WithMetadata(map[string]any{"task_id": taskID.String()})
		}
		return nil, err
	}

	return record, nil
}

func (a *tasks) DeleteByIDs(ctx context.Context, ids []uuid.UUID) (int64, error) {
	if len(ids) == 0 {
		return 0, nil
	}

	values := make([]string, 0, len(ids))
	for _, id := range ids {
		values = append(values, id.String())
	}

	res, err := a.db.NewDelete().Model((*Task)(nil)).
		Where("?TableAlias.id IN (?)", bun.In(values)).
		Exec(ctx)
	if err != nil {
		return 0, err
	}

	return res.RowsAffected()
}

type Reviews interface {
	repository.Repository[*Review]

	ExistsForTask(ctx context.Context, taskID uuid.UUID) (bool, error)
	ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*Review, error)
	WorkerRating(ctx context.Context, workerID uuid.UUID) (float64, int, error)
}

type reviews struct {
	repository.Repository[*Review]
	db *bun.DB
}

var _ Reviews = (*reviews)(nil)

func NewReviewsRepository(db *bun.DB) Reviews {
	repo := repository.NewRepository[*Review](db, repository.ModelHandlers[*Review]{
		NewRecord: func() *Review { return &Review{} },
		GetID: func(r *Review) uuid.UUID {
			if r == nil {
				return uuid.Nil
			}
			return r.ID
		},
		SetID: func(r *Review, id uuid.UUID) {
			if r != nil {
				r.ID = id
			}
		},
	})

	return &reviews{Repository: repo, db: db}
}

func (a *reviews) ExistsForTask(ctx context.Context, taskID uuid.UUID) (bool, error) {
	count, err := a.db.NewSelect().Model((*Review)(nil)).
		Where("?TableAlias.task_id = ?", taskID.String()).
		Count(ctx)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

func (a *reviews) ListByWorker(ctx context.Context, workerID uuid.UUID) ([]*Review, error) {
	var records []*Review
	err := a.db.NewSelect().Model(&records).
		Relation("Client").
		Where("?TableAlias.worker_id = ?", workerID.String()).
		Order("rvw.created_at DESC").
		Scan(ctx)
	return records, err
}

// WorkerRating recomputes the average rating and review count for a worker.
func (a *reviews) WorkerRating(ctx context.Context, workerID uuid.UUID) (float64, int, error) {
	var result struct {
		Average float64 `bun:"average"`
		Count   int     `bun:"count"`
	}

	err := a.db.NewSelect().Model((*Review)(nil)).
		ColumnExpr("COALESCE(AVG(rating), 0) AS average").
		ColumnExpr("COUNT(*) AS count").
		Where("?TableAlias.worker_id = ?", workerID.String()).
		Scan(ctx, &result)
	if err != nil {
		return 0, 0, err
	}

	return result.Average, result.Count, nil
}

type SavedTasks interface {
	repository.Repository[*SavedTask]

	Toggle(ctx context.Context, userID, taskID uuid.UUID) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*SavedTask, error)
	CountByUser(ctx context.Context, userID uuid.UUID) (int, error)
	RemoveForUser(ctx context.Context, userID, taskID uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

type savedTasks struct {
	repository.Repository[*SavedTask]
	db *bun.DB
}

var _ SavedTasks = (*savedTasks)(nil)

func NewSavedTasksRepository(db *bun.DB) SavedTasks {
	repo := repository.NewRepository[*SavedTask](db, repository.ModelHandlers[*SavedTask]{
		NewRecord: func() *SavedTask { return &SavedTask{} },
		GetID: func(s *SavedTask) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *SavedTask, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
	})

	return &savedTasks{Repository: repo, db: db}
}

// Toggle saves the task for the user, or removes it when already saved.
// Returns whether the task ended up saved.
func (a *savedTasks) Toggle(ctx context.Context, userID, taskID uuid.UUID) (bool, error) {
	existing := &SavedTask{}
	err := a.db.NewSelect().Model(existing).
		Where("?TableAlias.user_id = ?", userID.String()).
		Where("?TableAlias.task_id = ?", taskID.String()).
		Limit(1).
		Scan(ctx)

	if err == nil {
		_, err = a.db.NewDelete().Model((*SavedTask)(nil)).
			Where("?TableAlias.id = ?", existing.ID.String()).
			Exec(ctx)
		return false, err
	}

	if !repository.IsRecordNotFound(err) {
		return false, err
	}

	record := &SavedTask{
		ID:     uuid.New(),
		UserID: userID,
		TaskID: taskID,
	}
	_, err = a.Repository.CreateTx(ctx, a.db, record)
	return err == nil, err
}

func (a *savedTasks) ListByUser(ctx context.Context, userID uuid.UUID) ([]*SavedTask, error) {
	var records []*SavedTask
	err := a.db.NewSelect().Model(&records).
		Relation("Task").
		Where("?TableAlias.user_id = ?", userID.String()).
		Order("stk.created_at DESC").
		Scan(ctx)
	return records, err
}

func (a *savedTasks) CountByUser(ctx context.Context, userID uuid.UUID) (int, error) {
	return a.db.NewSelect().Model((*SavedTask)(nil)).
		Where("?TableAlias.user_id = ?", userID.String()).
		Count(ctx)
}

func (a *savedTasks) RemoveForUser(ctx context.Context, userID, taskID uuid.UUID) error {
	_, err := a.db.NewDelete().Model((*SavedTask)(nil)).
		Where("?TableAlias.user_id = ?", userID.String()).
		Where("?TableAlias.task_id = ?", taskID.String()).
		Exec(ctx)
	return err
}

func (a *savedTasks) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := a.db.NewDelete().Model((*SavedTask)(nil)).
		Where("?TableAlias.user_id = ?", userID.String()).
		Exec(ctx)
	return err
}

type SavedProviders interface {
	repository.Repository[*SavedProvider]

	Toggle(ctx context.Context, userID, providerID uuid.UUID) (bool, error)
	ListByUser(ctx context.Context, userID uuid.UUID) ([]*SavedProvider, error)
	RemoveForUser(ctx context.Context, userID, providerID uuid.UUID) error
	DeleteByUser(ctx context.Context, userID uuid.UUID) error
}

type savedProviders struct {
	repository.Repository[*SavedProvider]
	db *bun.DB
}

var _ SavedProviders = (*savedProviders)(nil)

func NewSavedProvidersRepository(db *bun.DB) SavedProviders {
	repo := repository.NewRepository[*SavedProvider](db, repository.ModelHandlers[*SavedProvider]{
		NewRecord: func() *SavedProvider { return &SavedProvider{} },
		GetID: func(s *SavedProvider) uuid.UUID {
			if s == nil {
				return uuid.Nil
			}
			return s.ID
		},
		SetID: func(s *SavedProvider, id uuid.UUID) {
			if s != nil {
				s.ID = id
			}
		},
	})

	return &savedProviders{Repository: repo, db: db}
}

func (a *savedProviders) Toggle(ctx context.Context, userID, providerID uuid.UUID) (bool, error) {
	existing := &SavedProvider{}
	err := a.db.NewSelect().Model(existing).
		Where("?TableAlias.user_id = ?", userID.String()).
		Where("?TableAlias.provider_id = ?", providerID.String()).
		Limit(1).
		Scan(ctx)

	if err == nil {
		_, err = a.db.NewDelete().Model((*SavedProvider)(nil)).
			Where("?TableAlias.id = ?", existing.ID.String()).
			Exec(ctx)
		return false, err
	}

	if !repository.IsRecordNotFound(err) {
		return false, err
	}

	record := &SavedProvider{
		ID:         uuid.New(),
		UserID:     userID,
		ProviderID: providerID,
	}
	_, err = a.Repository.CreateTx(ctx, a.db, record)
	return err == nil, err
}

func (a *savedProviders) ListByUser(ctx context.Context, userID uuid.UUID) ([]*SavedProvider, error) {
	var records []*SavedProvider
	err := a.db.NewSelect().Model(&records).
		Relation("Provider").
		Where("?TableAlias.user_id = ?", userID.String()).
		Order("spr.created_at DESC").
		Scan(ctx)
	return records, err
}

func (a *savedProviders) RemoveForUser(ctx context.Context, userID, providerID uuid.UUID) error {
	_, err := a.db.NewDelete().Model((*SavedProvider)(nil)).
		Where("?TableAlias.user_id = ?", userID.String()).
		Where("?TableAlias.provider_id = ?", providerID.String()).
		Exec(ctx)
	return err
}

func (a *savedProviders) DeleteByUser(ctx context.Context, userID uuid.UUID) error {
	_, err := a.db.NewDelete().Model((*SavedProvider)(nil)).
		Where("?TableAlias.user_id = ?", userID.String()).
		Exec(ctx)
	return err
}

type FeaturedProviders interface {
	repository.Repository[*FeaturedProvider]

	ListActive(ctx context.Context, now time.Time) ([]*FeaturedProvider, error)
	ListAll(ctx context.Context) ([]*FeaturedProvider, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error
}

type featuredProviders struct {
	repository.Repository[*FeaturedProvider]
	db *bun.DB
}

var _ FeaturedProviders = (*featuredProviders)(nil)

func NewFeaturedProvidersRepository(db *bun.DB) FeaturedProviders {
	repo := repository.NewRepository[*FeaturedProvider](db, repository.ModelHandlers[*FeaturedProvider]{
		NewRecord: func() *FeaturedProvider { return &FeaturedProvider{} },
		GetID: func(f *FeaturedProvider) uuid.UUID {
			if f == nil {
				return uuid.Nil
			}
			return f.ID
		},
		SetID: func(f *FeaturedProvider, id uuid.UUID) {
			if f != nil {
				f.ID = id
			}
		},
	})

	return &featuredProviders{Repository: repo, db: db}
}

func (a *featuredProviders) ListActive(ctx context.Context, now time.Time) ([]*FeaturedProvider, error) {
	var records []*FeaturedProvider
	err := a.db.NewSelect().Model(&records).
		Where("?TableAlias.is_active = TRUE").
		Where("?TableAlias.expires_at > ?", now).
		Order("sort_order ASC").
		Scan(ctx)
	return records, err
}

func (a *featuredProviders) ListAll(ctx context.Context) ([]*FeaturedProvider, error) {
	var records []*FeaturedProvider
	err := a.db.NewSelect().Model(&records).
		Order("sort_order ASC").
		Scan(ctx)
	return records, err
}

func (a *featuredProviders) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res, err := a.db.NewDelete().Model((*FeaturedProvider)(nil)).
		Where("?TableAlias.id = ?", id.String()).
		Exec(ctx)
	if err != nil {
		return err
	}

	if count, err := res.RowsAffected(); err == nil && count == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return nil
}
