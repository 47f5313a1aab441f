package marketplace

import (
	"context"
	"crypto/subtle"
	"time"

	goerrors "github.com/goliatone/go-errors"
)

type FinalizePasswordResetMessage struct {
	Token    string `json:"token"`
	Password string `json:"password"`
}

func (p FinalizePasswordResetMessage) Type() string { return "user.password_reset_finalize" }

// FinalizePasswordResetHandler exchanges a reset token for a new password.
// Unknown and expired tokens fail with the same error.
type FinalizePasswordResetHandler struct {
	repo   RepositoryManager
	sink   ActivitySink
	logger Logger
	now    func() time.Time
}

func NewFinalizePasswordResetHandler(repo RepositoryManager, sink ActivitySink, logger Logger) *FinalizePasswordResetHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &FinalizePasswordResetHandler{
		repo:   repo,
		sink:   normalizeActivitySink(sink),
		logger: logger,
		now:    time.Now,
	}
}

func (h *FinalizePasswordResetHandler) Execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *FinalizePasswordResetHandler) execute(ctx context.Context, event FinalizePasswordResetMessage) error {
	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	if event.Token == "" {
		return ErrInvalidOrExpiredToken
	}

	user, err := h.repo.Users().GetByResetToken(ctx, event.Token)
	if err != nil {
		return ErrInvalidOrExpiredToken
	}

	if subtle.ConstantTimeCompare([]byte(user.ResetToken), []byte(event.Token)) != 1 {
		return ErrInvalidOrExpiredToken
	}

	if user.ResetTokenExpiry == nil || h.now().After(*user.ResetTokenExpiry) {
		return ErrInvalidOrExpiredToken
	}

	hash, err := HashPassword(event.Password)
	if err != nil {
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) {
			return goerrors.Wrap(richErr, goerrors.CategoryValidation, "invalid password provided")
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to hash password")
	}

	if err := h.repo.Users().ResetPassword(ctx, user.ID, hash); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to update password")
	}

	if err := h.sink.Record(ctx, ActivityEvent{
		EventType:  ActivityEventPasswordReset,
		RecordID:   user.ID.String(),
		OccurredAt: h.now(),
	}); err != nil {
		h.logger.Error("password reset activity sink error: %v", err)
	}

	return nil
}
