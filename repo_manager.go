package marketplace

import (
	"context"
	"database/sql"
	"errors"
	"log"

	"github.com/goliatone/go-repository-bun"
	"github.com/uptrace/bun"
)

// RepositoryManager exposes all repositories
type RepositoryManager interface {
	repository.Validator
	repository.TransactionManager
	Users() Users
	Providers() Providers
	Tasks() Tasks
	Reviews() Reviews
	SavedTasks() SavedTasks
	SavedProviders() SavedProviders
	FeaturedProviders() FeaturedProviders
}

type mngr struct {
	db                *bun.DB
	users             Users
	providers         Providers
	tasks             Tasks
	reviews           Reviews
	savedTasks        SavedTasks
	savedProviders    SavedProviders
	featuredProviders FeaturedProviders
}

func NewRepositoryManager(db *bun.DB) RepositoryManager {
	return &mngr{
		db:                db,
		users:             NewUsersRepository(db),
		providers:         NewProvidersRepository(db),
		tasks:             NewTasksRepository(db),
		reviews:           NewReviewsRepository(db),
		savedTasks:        NewSavedTasksRepository(db),
		savedProviders:    NewSavedProvidersRepository(db),
		featuredProviders: NewFeaturedProvidersRepository(db),
	}
}

func (m mngr) Validate() error {
	if m.users == nil {
		return errors.New("repository users should be initialized")
	}

	if m.providers == nil {
		return errors.New("repository providers should be initialized")
	}

	if m.tasks == nil {
		return errors.New("repository tasks should be initialized")
	}

	if m.reviews == nil {
		return errors.New("repository reviews should be initialized")
	}

	if m.savedTasks == nil {
		return errors.New("repository savedTasks should be initialized")
	}

	if m.savedProviders == nil {
		return errors.New("repository savedProviders should be initialized")
	}

	if m.featuredProviders == nil {
		return errors.New("repository featuredProviders should be initialized")
	}

	return nil
}

func (m mngr) MustValidate() {
	if err := m.Validate(); err != nil {
		log.Panic(err)
	}
}

func (m mngr) RunInTx(ctx context.Context, opts *sql.TxOptions, f func(ctx context.Context, tx bun.Tx) error) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
		return m.db.RunInTx(ctx, opts, f)
	}
}

func (m mngr) Users() Users {
	return m.users
}

func (m mngr) Providers() Providers {
	return m.providers
}

func (m mngr) Tasks() Tasks {
	return m.tasks
}

func (m mngr) Reviews() Reviews {
	return m.reviews
}

func (m mngr) SavedTasks() SavedTasks {
	return m.savedTasks
}

func (m mngr) SavedProviders() SavedProviders {
	return m.savedProviders
}

func (m mngr) FeaturedProviders() FeaturedProviders {
	return m.featuredProviders
}
