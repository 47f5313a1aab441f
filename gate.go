package marketplace

import (
	"context"
	"strings"

	goerrors "github.com/goliatone/go-errors"
	"github.com/google/uuid"
)

// ErrNoToken is returned when the request carries no bearer token.
var ErrNoToken = goerrors.New("missing or malformed JWT", goerrors.CategoryAuth).
	WithTextCode("NO_TOKEN").
	WithCode(goerrors.CodeUnauthorized)

// ErrPrincipalNotFound is returned when a valid token points at no account.
var ErrPrincipalNotFound = goerrors.New("principal not found", goerrors.CategoryAuth).
	WithTextCode("PRINCIPAL_NOT_FOUND").
	WithCode(goerrors.CodeUnauthorized)

// ErrForbidden is returned when the principal lacks the required role.
var ErrForbidden = goerrors.New("insufficient permissions", goerrors.CategoryAuthz).
	WithTextCode("FORBIDDEN").
	WithCode(goerrors.CodeForbidden)

// Principal is an authenticated caller: the validated claims plus the live
// account record they resolve to.
type Principal struct {
	User   *User
	Claims AuthClaims
}

// ID returns the principal's account id.
func (p *Principal) ID() uuid.UUID {
	if p == nil || p.User == nil {
		return uuid.Nil
	}
	return p.User.ID
}

// IsAdmin applies the dual admin check against the live record, not the
// token, so a demotion takes effect without waiting for token expiry.
func (p *Principal) IsAdmin() bool {
	if p == nil || p.User == nil {
		return false
	}
	return p.User.IsAdministrator()
}

// PrincipalStore resolves user ids to live records.
type PrincipalStore interface {
	GetByID(ctx context.Context, id uuid.UUID) (*User, error)
}

// Gate authenticates bearer tokens and enforces role requirements.
type Gate struct {
	validator TokenValidator
	store     PrincipalStore
	scheme    string
	logger    Logger
}

// GateOption customizes gate construction.
type GateOption func(*Gate)

// WithGateLogger overrides the gate's logger.
func WithGateLogger(logger Logger) GateOption {
	return func(g *Gate) {
		if logger != nil {
			g.logger = logger
		}
	}
}

// WithGateAuthScheme overrides the expected Authorization scheme.
func WithGateAuthScheme(scheme string) GateOption {
	return func(g *Gate) {
		if scheme != "" {
			g.scheme = scheme
		}
	}
}

// NewGate returns a gate backed by the given validator and store.
func NewGate(validator TokenValidator, store PrincipalStore, opts ...GateOption) *Gate {
	g := &Gate{
		validator: validator,
		store:     store,
		scheme:    "Bearer",
		logger:    defLogger{},
	}
	for _, opt := range opts {
		if opt != nil {
			opt(g)
		}
	}
	return g
}

// Authenticate validates the Authorization header value and resolves it to a
// Principal. Blocked accounts never authenticate.
func (g *Gate) Authenticate(ctx context.Context, header string) (*Principal, error) {
	raw, err := g.extractToken(header)
	if err != nil {
		return nil, err
	}

	claims, err := g.validator.Validate(raw)
	if err != nil {
		if IsTokenExpiredError(err) {
			return nil, ErrTokenExpired
		}
		return nil, err
	}

	id, err := uuid.Parse(claims.UserID())
	if err != nil {
		g.logger.Debug("gate rejects token with non-uuid subject: %s", claims.UserID())
		return nil, ErrTokenMalformed
	}

	user, err := g.store.GetByID(ctx, id)
	if err != nil {
		if goerrors.IsNotFound(err) {
			return nil, ErrPrincipalNotFound.WithMetadata(map[string]any{"id": id.String()})
		}
		return nil, err
	}

	if user.Blocked() {
		return nil, ErrAccountBlocked
	}

	return &Principal{User: user, Claims: claims}, nil
}

// RequireRole ensures the principal satisfies the role requirement. Asking
// for the admin role passes when either admin marker is set on the record;
// any other role uses the role hierarchy.
func (g *Gate) RequireRole(principal *Principal, role UserRole) error {
	if principal == nil || principal.User == nil {
		return ErrPrincipalNotFound
	}

	if role == RoleAdmin {
		if principal.IsAdmin() {
			return nil
		}
		return ErrForbidden.WithMetadata(map[string]any{
			"required": string(role),
		})
	}

	if principal.User.Role.IsAtLeast(role) {
		return nil
	}

	return ErrForbidden.WithMetadata(map[string]any{
		"required": string(role),
		"role":     string(principal.User.Role),
	})
}

func (g *Gate) extractToken(header string) (string, error) {
	header = strings.TrimSpace(header)
	if header == "" {
		return "", ErrNoToken
	}

	prefix := g.scheme + " "
	if len(header) <= len(prefix) || !strings.EqualFold(header[:len(prefix)], prefix) {
		return "", ErrNoToken
	}

	token := strings.TrimSpace(header[len(prefix):])
	if token == "" {
		return "", ErrNoToken
	}

	return token, nil
}
