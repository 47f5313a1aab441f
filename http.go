package marketplace

import (
	"strings"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/gofiber/fiber/v2"
	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-print"
)

// PrincipalLocalKey is where auth middleware stores the resolved principal
// on the fiber context.
const PrincipalLocalKey = "principal"

// PrincipalFromFiber returns the principal the auth middleware resolved, or
// nil when the route is unprotected.
func PrincipalFromFiber(c *fiber.Ctx) *Principal {
	if p, ok := c.Locals(PrincipalLocalKey).(*Principal); ok {
		return p
	}
	return nil
}

// WriteError translates domain errors into JSON responses. Validation and
// moderation failures keep their text codes so clients can branch on them.
func WriteError(c *fiber.Ctx, logger Logger, err error) error {
	if logger == nil {
		logger = defLogger{}
	}

	// unverified accounts get a hint so the client can offer a resend
	if goerrors.Is(err, ErrAccountNotVerified) {
		body := fiber.Map{
			"message":           "Please verify your email before logging in",
			"needsVerification": true,
		}
		var richErr *goerrors.Error
		if goerrors.As(err, &richErr) && richErr.Metadata != nil {
			if email, ok := richErr.Metadata["email"].(string); ok {
				body["email"] = email
			}
		}
		return c.Status(fiber.StatusForbidden).JSON(body)
	}

	status := statusForError(err)

	body := fiber.Map{"message": messageForError(err)}
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.TextCode != "" {
		body["code"] = richErr.TextCode
	}

	if status >= fiber.StatusInternalServerError {
		if richErr != nil && richErr.Metadata != nil {
			logger.Error("http error: %v details: %s", err, print.MaybePrettyJSON(richErr.Metadata))
		} else {
			logger.Error("http error: %v", err)
		}
		body["message"] = "Internal server error"
	}

	return c.Status(status).JSON(body)
}

func statusForError(err error) int {
	switch {
	case goerrors.Is(err, ErrMismatchedHashAndPassword),
		goerrors.Is(err, ErrTooManyLoginAttempts),
		goerrors.Is(err, ErrTokenExpired),
		goerrors.Is(err, ErrTokenMalformed),
		goerrors.Is(err, ErrNoToken):
		return fiber.StatusUnauthorized
	case goerrors.Is(err, ErrAccountBlocked),
		goerrors.Is(err, ErrNotApproved),
		goerrors.Is(err, ErrForbidden),
		goerrors.Is(err, ErrReviewNotAllowed):
		return fiber.StatusForbidden
	case goerrors.Is(err, ErrIdentityNotFound),
		goerrors.Is(err, ErrPrincipalNotFound):
		return fiber.StatusNotFound
	case goerrors.Is(err, ErrChangesAlreadyPending),
		goerrors.Is(err, ErrNoPendingChange),
		goerrors.Is(err, ErrStagingConflict),
		goerrors.Is(err, ErrAlreadyRegistered),
		goerrors.Is(err, ErrDuplicateReview):
		return fiber.StatusConflict
	case goerrors.Is(err, ErrInvalidOrExpiredToken),
		goerrors.Is(err, ErrPasswordTooShort),
		goerrors.Is(err, ErrNoEmptyString),
		goerrors.Is(err, ErrUnsupportedFileType),
		goerrors.Is(err, ErrFileTooLarge):
		return fiber.StatusBadRequest
	}

	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) {
		switch richErr.Category {
		case goerrors.CategoryAuth:
			return fiber.StatusUnauthorized
		case goerrors.CategoryAuthz:
			return fiber.StatusForbidden
		case goerrors.CategoryNotFound:
			return fiber.StatusNotFound
		case goerrors.CategoryConflict:
			return fiber.StatusConflict
		case goerrors.CategoryValidation, goerrors.CategoryBadInput:
			return fiber.StatusBadRequest
		case goerrors.CategoryRateLimit:
			return fiber.StatusTooManyRequests
		}
	}

	if goerrors.IsNotFound(err) {
		return fiber.StatusNotFound
	}

	return fiber.StatusInternalServerError
}

func messageForError(err error) string {
	var richErr *goerrors.Error
	if goerrors.As(err, &richErr) && richErr.Message != "" {
		return richErr.Message
	}
	return err.Error()
}

// FormatValidationErrorToMap flattens ozzo validation errors into a
// field-to-message map for JSON responses.
func FormatValidationErrorToMap(err error) map[string]string {
	out := map[string]string{}

	if verrs, ok := err.(validation.Errors); ok {
		for field, ferr := range verrs {
			out[field] = ferr.Error()
		}
		return out
	}

	if err != nil {
		out["error"] = err.Error()
	}

	return out
}

// WriteValidationError reports payload validation failures with the field map.
func WriteValidationError(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"message":    "Validation failed",
		"validation": FormatValidationErrorToMap(err),
	})
}

func bearerHeader(c *fiber.Ctx) string {
	return strings.TrimSpace(c.Get(fiber.HeaderAuthorization))
}

// requireUsable gates actions on account standing: blocked accounts are
// always out, the rest need a verified email or an admin approval.
func requireUsable(principal *Principal) error {
	if principal == nil || principal.User == nil {
		return ErrNoToken
	}

	user := principal.User
	if user.Blocked() {
		return ErrAccountBlocked.WithMetadata(map[string]any{"id": user.ID.String()})
	}

	if !user.Usable() {
		return ErrAccountNotVerified.WithMetadata(map[string]any{
			"needs_verification": true,
			"email":              user.Email,
		})
	}

	return nil
}
