package marketplace

import (
	"errors"
	"strings"

	goerrors "github.com/goliatone/go-errors"
)

const (
	textCodeNotApproved       = "ACCOUNT_NOT_APPROVED"
	textCodeNotVerified       = "ACCOUNT_NOT_VERIFIED"
	textCodeBlocked           = "ACCOUNT_BLOCKED"
	textCodeChangesPending    = "CHANGES_ALREADY_PENDING"
	textCodeNoPendingChange   = "NO_PENDING_CHANGE"
	textCodeInvalidToken      = "INVALID_OR_EXPIRED_TOKEN"
	textCodeStagingConflict   = "STAGING_CONFLICT"
	textCodeAlreadyRegistered = "ALREADY_REGISTERED"
	textCodeDuplicateReview   = "DUPLICATE_REVIEW"
	textCodeReviewNotAllowed  = "REVIEW_NOT_ALLOWED"
)

// ErrNotApproved is returned when an operation requires an approved account.
var ErrNotApproved = goerrors.New("account is not approved", goerrors.CategoryAuthz).
	WithTextCode(textCodeNotApproved).
	WithCode(goerrors.CodeForbidden)

// ErrAccountNotVerified is returned on login when neither verification gate
// is open. Handlers translate it into the needs-verification payload.
var ErrAccountNotVerified = goerrors.New("account is not verified", goerrors.CategoryAuthz).
	WithTextCode(textCodeNotVerified).
	WithCode(goerrors.CodeForbidden)

// ErrAccountBlocked is returned for blocked accounts on any gated operation.
var ErrAccountBlocked = goerrors.New("account is blocked", goerrors.CategoryAuthz).
	WithTextCode(textCodeBlocked).
	WithCode(goerrors.CodeForbidden)

// ErrChangesAlreadyPending rejects a second staged edit while one awaits review.
var ErrChangesAlreadyPending = goerrors.New("changes already pending review", goerrors.CategoryConflict).
	WithTextCode(textCodeChangesPending).
	WithCode(goerrors.CodeConflict)

// ErrNoPendingChange is returned when a decision targets a clean record.
var ErrNoPendingChange = goerrors.New("no pending change to decide", goerrors.CategoryConflict).
	WithTextCode(textCodeNoPendingChange).
	WithCode(goerrors.CodeConflict)

// ErrInvalidOrExpiredToken is the single redemption failure. Missing, unknown
// and expired tokens all surface this same error so callers cannot probe
// token state.
var ErrInvalidOrExpiredToken = goerrors.New("invalid or expired token", goerrors.CategoryAuth).
	WithTextCode(textCodeInvalidToken).
	WithCode(goerrors.CodeBadRequest)

// ErrStagingConflict is returned when a conditional update finds the record's
// pending flag changed underneath it.
var ErrStagingConflict = goerrors.New("record changed concurrently", goerrors.CategoryConflict).
	WithTextCode(textCodeStagingConflict).
	WithCode(goerrors.CodeConflict)

// ErrAlreadyRegistered rejects a second provider profile for the same user.
var ErrAlreadyRegistered = goerrors.New("already registered as a provider", goerrors.CategoryConflict).
	WithTextCode(textCodeAlreadyRegistered).
	WithCode(goerrors.CodeConflict)

// ErrDuplicateReview rejects a second review by the same author for the same worker.
var ErrDuplicateReview = goerrors.New("you already reviewed this provider", goerrors.CategoryConflict).
	WithTextCode(textCodeDuplicateReview).
	WithCode(goerrors.CodeConflict)

// ErrReviewNotAllowed is returned when no completed task links the two parties.
var ErrReviewNotAllowed = goerrors.New("no completed task with this provider", goerrors.CategoryAuthz).
	WithTextCode(textCodeReviewNotAllowed).
	WithCode(goerrors.CodeForbidden)

// ErrTooManyLoginAttempts is returned when the cooldown window is active.
var ErrTooManyLoginAttempts = goerrors.New("too many login attempts", goerrors.CategoryAuth).
	WithTextCode("TOO_MANY_LOGIN_ATTEMPTS").
	WithCode(goerrors.CodeUnauthorized)

// ErrIdentityNotFound is the error we return for non found identities
var ErrIdentityNotFound = errors.New("identity not found")

// ErrUnableToFindSession is the error when our request has no bearer token
var ErrUnableToFindSession = errors.New("unable to find session")

// ErrUnableToDecodeSession unable to decode JWT from the request
var ErrUnableToDecodeSession = errors.New("unable to decode session")

// ErrUnableToMapClaims unable to get claims from token
var ErrUnableToMapClaims = errors.New("unable to map claims")

// ErrUnableToParseData parse error
var ErrUnableToParseData = errors.New("unable to parse data")

// IsTokenExpiredError will check for expired tokens
func IsTokenExpiredError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is expired")
}

// IsMalformedError will check for error message
func IsMalformedError(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "token is malformed") ||
		strings.Contains(err.Error(), "missing or malformed JWT")
}
