package marketplace

import (
	"context"
	"strings"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
	"github.com/goliatone/hashid/pkg/hashid"
	"github.com/uptrace/bun"
)

type RegisterUserMessage struct {
	Name      string `json:"name"`
	FirstName string `json:"fname"`
	Surname   string `json:"sname"`
	Email     string `json:"email"`
	Phone     string `json:"phone"`
	Password  string `json:"password"`
	UserType  string `json:"user_type"`
	UseHashid bool
	OnResponse func(user *User)
}

func (e RegisterUserMessage) Type() string { return "user.register" }

// RegisterUserHandler creates the account, mints a verification token and
// hands the token to the mailer. The account starts unverified and
// unapproved, which keeps it out of login until the email round trip
// completes.
type RegisterUserHandler struct {
	repo     RepositoryManager
	verifier *VerifyEngine[ProfileData, *User]
	mailer   Mailer
	logger   Logger
}

func NewRegisterUserHandler(repo RepositoryManager, verifier *VerifyEngine[ProfileData, *User], mailer Mailer, logger Logger) *RegisterUserHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &RegisterUserHandler{
		repo:     repo,
		verifier: verifier,
		mailer:   mailer,
		logger:   logger,
	}
}

func (h *RegisterUserHandler) Execute(ctx context.Context, event RegisterUserMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during user registration",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *RegisterUserHandler) execute(ctx context.Context, event RegisterUserMessage) error {
	user := &User{}
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	email := strings.ToLower(strings.TrimSpace(event.Email))

	err := h.repo.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if existing, err := h.repo.Users().GetByIdentifierTx(ctx, tx, email); err == nil && existing != nil {
			return ErrAlreadyRegistered.WithMetadata(map[string]any{"email": email})
		} else if err != nil && !repository.IsRecordNotFound(err) {
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to check for existing account")
		}

		hash, err := HashPassword(event.Password)
		if err != nil {
			var richErr *goerrors.Error
			if goerrors.As(err, &richErr) {
				return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
			}
			return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
		}

		user.PasswordHash = hash
		user.Email = email
		user.Phone = event.Phone
		user.Name = getDisplayName(event.Name, event.FirstName, event.Surname, email)
		user.FirstName = event.FirstName
		user.Surname = event.Surname
		if t := UserType(event.UserType); t.IsValid() && t != TypeAdmin {
			user.UserType = t
		}
		if event.UseHashid {
			if id, err := hashid.NewUUID(email); err == nil {
				user.ID = id
			}
		}

		if user, err = h.repo.Users().CreateTx(ctx, tx, user); err != nil {
			return goerrors.Wrap(err, goerrors.CategoryConflict, "could not create user")
		}

		return nil
	})

	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return richErr
		}

		return goerrors.Wrap(err, goerrors.CategoryInternal, "user registration transaction failed")
	}

	token, err := h.verifier.IssueVerificationToken(ctx, user.ID)
	if err != nil {
		return err
	}

	if h.mailer != nil {
		if err := h.mailer.SendVerification(ctx, user.Email, user.Name, token); err != nil {
			// the account exists and the token can be resent, do not fail the signup
			h.logger.Error("failed to send verification email to %s: %v", user.Email, err)
		}
	}

	if event.OnResponse != nil {
		event.OnResponse(user)
	}

	return nil
}

func getDisplayName(name, first, last, email string) string {
	if name != "" {
		return name
	}

	if full := strings.TrimSpace(first + " " + last); full != "" {
		return full
	}

	if strings.Contains(email, "@") {
		return strings.Split(email, "@")[0]
	}

	return email
}
