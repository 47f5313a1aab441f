package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"net/mail"
	"strings"
	"time"

	"github.com/goliatone/go-repository-bun"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Raw statements for the moderation workflow. The staging and resolve updates
// are deliberately conditional on has_pending_changes so two racing writers
// cannot both win; zero matched rows means the other writer got there first.
var StageUserProfileSQL = `UPDATE "users" AS "usr"
SET
	"has_pending_changes" = TRUE,
	"pending_profile" = ?,
	"original_profile" = ?,
	"pending_submitted_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND "usr"."has_pending_changes" = FALSE
AND (
	"usr"."id" = ?
) RETURNING *;`

var ResolveUserProfileSQL = `UPDATE "users" AS "usr"
SET
	"name" = ?,
	"fname" = ?,
	"sname" = ?,
	"oname" = ?,
	"email" = ?,
	"phone" = ?,
	"whatsapp" = ?,
	"location" = ?,
	"region" = ?,
	"profile_image" = ?,
	"last_approved_at" = ?,
	"has_pending_changes" = FALSE,
	"pending_profile" = NULL,
	"original_profile" = NULL,
	"pending_submitted_at" = NULL
WHERE
	"usr"."deleted_at" IS NULL
AND "usr"."has_pending_changes" = TRUE
AND (
	"usr"."id" = ?
) RETURNING *;`

var SetUserApprovalSQL = `UPDATE "users" AS "usr"
SET
	"is_approved" = ?,
	"last_approved_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var SetUserVerificationSQL = `UPDATE "users" AS "usr"
SET
	"is_email_verified" = ?,
	"verification_token" = ?,
	"verification_expiry" = ?,
	"is_approved" = ?,
	"last_approved_at" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var ResetUserPasswordSQL = `UPDATE "users" AS "usr"
SET
	"password_hash" = ?,
	"reset_token" = NULL,
	"reset_token_expiry" = NULL
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var SetUserRatingSQL = `UPDATE "users" AS "usr"
SET
	"average_rating" = ?,
	"reviews_count" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

var SetUserBlockedSQL = `UPDATE "users" AS "usr"
SET
	"is_blocked" = ?
WHERE
	"usr"."deleted_at" IS NULL
AND (
	"usr"."id" = ?
) RETURNING *;`

type Users interface {
	repository.Repository[*User]

	TrackAttemptedLogin(ctx context.Context, user *User) error
	TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) error
	TrackSuccessfulLogin(ctx context.Context, user *User) error
	TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error

	Register(ctx context.Context, user *User) (*User, error)
	RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error)
	GetOrCreate(ctx context.Context, record *User) (*User, error)
	GetOrCreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error)
	Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error)
	CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error)

	SaveStagedProfile(ctx context.Context, user *User) (*User, error)
	SaveResolvedProfile(ctx context.Context, user *User) (*User, error)
	SaveApproval(ctx context.Context, user *User) (*User, error)
	SaveVerification(ctx context.Context, user *User) (*User, error)
	GetByVerificationToken(ctx context.Context, token string) (*User, error)
	GetByResetToken(ctx context.Context, token string) (*User, error)
	SetResetToken(ctx context.Context, id uuid.UUID, token string, expiry *time.Time) error
	SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) (*User, error)
	SaveRating(ctx context.Context, id uuid.UUID, average float64, count int) (*User, error)

	ListAll(ctx context.Context) ([]*User, error)
	ListPending(ctx context.Context) ([]*User, error)
	DeleteByID(ctx context.Context, id uuid.UUID) error

	ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error
	ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error
}

type users struct {
	repository.Repository[*User]
	db *bun.DB
}

var (
	_ Users                        = (*users)(nil)
	_ repository.Repository[*User] = (*users)(nil)
)

func NewUsersRepository(db *bun.DB) Users {
	repo := repository.NewRepository[*User](db, repository.ModelHandlers[*User]{
		NewRecord: func() *User { return &User{} },
		GetID: func(u *User) uuid.UUID {
			if u == nil {
				return uuid.Nil
			}
			return u.ID
		},
		SetID: func(u *User, id uuid.UUID) {
			if u != nil {
				u.ID = id
			}
		},
		GetIdentifier: func() string {
			return "email"
		},
	})

	return &users{
		Repository: repo,
		db:         db,
	}
}

func (a *users) Register(ctx context.Context, user *User) (*User, error) {
	return a.RegisterTx(ctx, a.db, user)
}

func (a *users) RegisterTx(ctx context.Context, tx bun.IDB, user *User) (*User, error) {
	return a.CreateTx(ctx, tx, user)
}

func (a *users) GetByIdentifier(ctx context.Context, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	return a.GetByIdentifierTx(ctx, a.db, identifier, criteria...)
}

func (a *users) GetByIdentifierTx(ctx context.Context, tx bun.IDB, identifier string, criteria ...repository.SelectCriteria) (*User, error) {
	options := resolveUserIdentifier(identifier)
	if len(options) == 0 {
		options = []identifierOption{
			{
				column: "id",
				value:  strings.TrimSpace(identifier),
			},
		}
	}

	for _, opt := range options {
		record := &User{}
		q := tx.NewSelect().Model(record)

		for _, c := range criteria {
			q.Apply(c)
		}

		err := q.
			Where(fmt.Sprintf("?TableAlias.%s = ?", opt.column), opt.value).
			Limit(1).
			Scan(ctx)

		if err != nil {
			if repository.IsRecordNotFound(err) {
				continue
			}
			return nil, err
		}

		return record, nil
	}

	return nil, repository.NewRecordNotFound().
		WithMetadata(map[string]any{
			"identifier": identifier,
		})
}

func (a *users) Create(ctx context.Context, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	return a.CreateTx(ctx, a.db, record, criteria...)
}

func (a *users) CreateTx(ctx context.Context, tx bun.IDB, record *User, criteria ...repository.InsertCriteria) (*User, error) {
	prepareUserDefaults(record)
	return a.Repository.CreateTx(ctx, tx, record, criteria...)
}

func (a *users) GetOrCreate(ctx context.Context, record *User) (*User, error) {
	return a.GetOrCreateTx(ctx, a.db, record)
}

func (a *users) GetOrCreateTx(ctx context.Context, tx bun.IDB, record *User) (*User, error) {
	identifier := record.Email
	if record.ID != uuid.Nil {
		identifier = record.ID.String()
	}

	user, err := a.Repository.GetByIdentifierTx(ctx, tx, identifier)
	if err == nil {
		return user, nil
	}

	if !repository.IsRecordNotFound(err) {
		return nil, err
	}

	return a.CreateTx(ctx, tx, record)
}

func (a *users) SaveStagedProfile(ctx context.Context, user *User) (*User, error) {
	pending, err := profileJSON(user.PendingProfile)
	if err != nil {
		return nil, err
	}
	original, err := profileJSON(user.OriginalProfile)
	if err != nil {
		return nil, err
	}

	res, err := a.Repository.RawTx(ctx, a.db, StageUserProfileSQL,
		pending,
		original,
		user.PendingSubmittedAt,
		user.ID.String(),
	)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, ErrStagingConflict.WithMetadata(map[string]any{"id": user.ID.String()})
	}

	return res[0], nil
}

func (a *users) SaveResolvedProfile(ctx context.Context, user *User) (*User, error) {
	res, err := a.Repository.RawTx(ctx, a.db, ResolveUserProfileSQL,
		user.Name,
		user.FirstName,
		user.Surname,
		user.OtherName,
		user.Email,
		user.Phone,
		user.Whatsapp,
		user.Location,
		user.Region,
		user.ProfileImage,
		user.LastApprovedAt,
		user.ID.String(),
	)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, ErrStagingConflict.WithMetadata(map[string]any{"id": user.ID.String()})
	}

	return res[0], nil
}

func (a *users) SaveApproval(ctx context.Context, user *User) (*User, error) {
	res, err := a.Repository.RawTx(ctx, a.db, SetUserApprovalSQL,
		user.IsApproved,
		user.LastApprovedAt,
		user.ID.String(),
	)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": user.ID.String()})
	}

	return res[0], nil
}

func (a *users) SaveVerification(ctx context.Context, user *User) (*User, error) {
	res, err := a.Repository.RawTx(ctx, a.db, SetUserVerificationSQL,
		user.IsEmailVerified,
		user.VerificationToken,
		user.VerificationExpiry,
		user.IsApproved,
		user.LastApprovedAt,
		user.ID.String(),
	)
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": user.ID.String()})
	}

	return res[0], nil
}

func (a *users) GetByVerificationToken(ctx context.Context, token string) (*User, error) {
	return a.getByTokenColumn(ctx, "verification_token", token)
}

func (a *users) GetByResetToken(ctx context.Context, token string) (*User, error) {
	return a.getByTokenColumn(ctx, "reset_token", token)
}

func (a *users) getByTokenColumn(ctx context.Context, column, token string) (*User, error) {
	if token == "" {
		return nil, repository.NewRecordNotFound()
	}

	record := &User{}
	err := a.db.NewSelect().Model(record).
		Where(fmt.Sprintf("?TableAlias.%s = ?", column), token).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			return nil, repository.NewRecordNotFound()
		}
		return nil, err
	}

	return record, nil
}

func (a *users) SetResetToken(ctx context.Context, id uuid.UUID, token string, expiry *time.Time) error {
	_, err := a.db.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"reset_token" = ?,
			"reset_token_expiry" = ?
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, token, expiry, id.String()).Exec(ctx)

	return err
}

func (a *users) SetBlocked(ctx context.Context, id uuid.UUID, blocked bool) (*User, error) {
	res, err := a.Repository.RawTx(ctx, a.db, SetUserBlockedSQL, blocked, id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return res[0], nil
}

func (a *users) ListAll(ctx context.Context) ([]*User, error) {
	var records []*User
	err := a.db.NewSelect().Model(&records).
		Order("created_at DESC").
		Scan(ctx)
	return records, err
}

func (a *users) ListPending(ctx context.Context) ([]*User, error) {
	var records []*User
	err := a.db.NewSelect().Model(&records).
		Where("?TableAlias.has_pending_changes = TRUE").
		Order("pending_submitted_at ASC").
		Scan(ctx)
	return records, err
}

func (a *users) DeleteByID(ctx context.Context, id uuid.UUID) error {
	res, err := a.db.NewDelete().Model((*User)(nil)).
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

func (a *users) SaveRating(ctx context.Context, id uuid.UUID, average float64, count int) (*User, error) {
	res, err := a.Repository.RawTx(ctx, a.db, SetUserRatingSQL, average, count, id.String())
	if err != nil {
		return nil, err
	}

	if len(res) == 0 {
		return nil, repository.NewRecordNotFound().
			WithMetadata(map[string]any{"id": id.String()})
	}

	return res[0], nil
}

func (a *users) ResetPassword(ctx context.Context, id uuid.UUID, passwordHash string) error {
	return a.ResetPasswordTx(ctx, a.db, id, passwordHash)
}

func (a *users) ResetPasswordTx(ctx context.Context, tx bun.IDB, id uuid.UUID, passwordHash string) error {
	res, err := a.Repository.RawTx(ctx, tx, ResetUserPasswordSQL, passwordHash, id.String())
	if err != nil {
		return err
	}

	if len(res) == 0 {
		return repository.NewRecordNotFound().
			WithMetadata(map[string]any{
				"id": id.String(),
			})
	}

	return nil
}

func (a *users) TrackSuccessfulLogin(ctx context.Context, user *User) error {
	return a.TrackSuccessfulLoginTx(ctx, a.db, user)
}

func (a *users) TrackSuccessfulLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	// NOTE: Updating using the ORM fails due to a bug, it wont reset
	// login_attempt_at, login_attempts fields.
	loggedInAt := time.Now()
	_, err := tx.NewRaw(`
		UPDATE "users" AS "usr"
		SET
			"loggedin_at" = ?,
			"login_attempt_at" = NULL,
			"login_attempts" = 0
		WHERE
			("usr".id = ?)
			AND "usr"."deleted_at" IS NULL;
	`, loggedInAt, user.ID).Exec(ctx)

	return err
}

func (a *users) TrackAttemptedLogin(ctx context.Context, user *User) error {
	return a.TrackAttemptedLoginTx(ctx, a.db, user)
}

func (a *users) TrackAttemptedLoginTx(ctx context.Context, tx bun.IDB, user *User) error {
	criteria := []repository.UpdateCriteria{
		repository.UpdateByID(user.ID.String()),
	}

	record := &User{}
	record.ID = user.ID
	record.LoginAttempts = user.LoginAttempts + 1
	now := time.Now()
	record.LoginAttemptAt = &now

	_, err := a.Repository.UpdateTx(ctx, tx, record, criteria...)

	return err
}

func prepareUserDefaults(record *User) {
	if record == nil {
		return
	}

	if record.Role == "" {
		record.Role = RoleUser
	}

	if record.UserType == "" {
		record.UserType = TypeClient
	}

	if record.ID == uuid.Nil {
		record.ID = uuid.New()
	}
}

func profileJSON(p *ProfileData) (any, error) {
	if p == nil {
		return nil, nil
	}
	return json.Marshal(p)
}

type identifierOption struct {
	column string
	value  string
}

func resolveUserIdentifier(identifier string) []identifierOption {
	trimmed := strings.TrimSpace(identifier)
	if trimmed == "" {
		return nil
	}

	options := make([]identifierOption, 0, 2)

	if isUUID(trimmed) {
		options = append(options, identifierOption{
			column: "id",
			value:  trimmed,
		})
	}

	if isEmail(trimmed) {
		options = append(options, identifierOption{
			column: "email",
			value:  trimmed,
		})
	}

	return options
}

func isEmail(email string) bool {
	_, err := mail.ParseAddress(email)
	return err == nil
}

func isUUID(identifier string) bool {
	_, err := uuid.Parse(identifier)
	return err == nil
}

// userApprovalStore adapts the users repository to the approval engine's
// store contracts.
type userApprovalStore struct {
	users Users
}

// NewUserApprovalStore returns the engine-facing store over the users repository.
func NewUserApprovalStore(users Users) VerificationStore[*User] {
	return userApprovalStore{users: users}
}

func (s userApprovalStore) GetByID(ctx context.Context, id uuid.UUID) (*User, error) {
	return s.users.GetByIdentifier(ctx, id.String())
}

func (s userApprovalStore) SaveStaged(ctx context.Context, record *User) (*User, error) {
	return s.users.SaveStagedProfile(ctx, record)
}

func (s userApprovalStore) SaveResolved(ctx context.Context, record *User) (*User, error) {
	return s.users.SaveResolvedProfile(ctx, record)
}

func (s userApprovalStore) SaveApproval(ctx context.Context, record *User) (*User, error) {
	return s.users.SaveApproval(ctx, record)
}

func (s userApprovalStore) SaveVerification(ctx context.Context, record *User) (*User, error) {
	return s.users.SaveVerification(ctx, record)
}

func (s userApprovalStore) GetByVerificationToken(ctx context.Context, token string) (*User, error) {
	return s.users.GetByVerificationToken(ctx, token)
}
