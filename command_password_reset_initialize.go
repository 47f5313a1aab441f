package marketplace

import (
	"context"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-repository-bun"
)

// PasswordResetTokenTTL keeps reset links short lived.
const PasswordResetTokenTTL = 10 * time.Minute

type InitializePasswordResetMessage struct {
	Email      string `json:"email" example:"pepe.rone@example.com" doc:"Account email."`
	OnResponse func(resp *InitializePasswordResetResponse)
}

func (p InitializePasswordResetMessage) Type() string { return "user.password_reset" }

type InitializePasswordResetResponse struct {
	Email   string
	Success bool
}

// InitializePasswordResetHandler stores a short lived reset token on the
// account and mails the link. Unknown emails succeed silently so the
// endpoint cannot be used to probe which addresses exist.
type InitializePasswordResetHandler struct {
	repo   RepositoryManager
	mailer Mailer
	sink   ActivitySink
	logger Logger
	now    func() time.Time
}

func NewInitializePasswordResetHandler(repo RepositoryManager, mailer Mailer, sink ActivitySink, logger Logger) *InitializePasswordResetHandler {
	if logger == nil {
		logger = defLogger{}
	}
	return &InitializePasswordResetHandler{
		repo:   repo,
		mailer: mailer,
		sink:   normalizeActivitySink(sink),
		logger: logger,
		now:    time.Now,
	}
}

func (h *InitializePasswordResetHandler) Execute(ctx context.Context, event InitializePasswordResetMessage) error {
	select {
	case <-ctx.Done():
		return goerrors.Wrap(
			ctx.Err(),
			goerrors.CategoryOperation,
			"context cancelled during password reset initialization",
		)
	default:
		return h.execute(ctx, event)
	}
}

func (h *InitializePasswordResetHandler) execute(ctx context.Context, event InitializePasswordResetMessage) error {
	resp := &InitializePasswordResetResponse{Email: event.Email}

	ctx, cancel := context.WithTimeout(ctx, time.Second*10)
	defer cancel()

	user, err := h.repo.Users().GetByIdentifier(ctx, event.Email)
	if err != nil {
		if repository.IsRecordNotFound(err) {
			resp.Success = true
			if event.OnResponse != nil {
				event.OnResponse(resp)
			}
			return nil
		}
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to retrieve user for password reset")
	}

	token, err := generateToken()
	if err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "unable to generate reset token")
	}

	expiry := h.now().Add(PasswordResetTokenTTL)
	if err := h.repo.Users().SetResetToken(ctx, user.ID, token, &expiry); err != nil {
		return goerrors.Wrap(err, goerrors.CategoryInternal, "failed to store reset token")
	}

	if h.mailer != nil {
		if err := h.mailer.SendPasswordReset(ctx, user.Email, user.Name, token); err != nil {
			h.logger.Error("failed to send password reset email to %s: %v", user.Email, err)
		}
	}

	if err := h.sink.Record(ctx, ActivityEvent{
		EventType:  ActivityEventPasswordResetIssued,
		RecordID:   user.ID.String(),
		OccurredAt: h.now(),
	}); err != nil {
		h.logger.Error("password reset activity sink error: %v", err)
	}

	resp.Success = true
	if event.OnResponse != nil {
		event.OnResponse(resp)
	}

	return nil
}
