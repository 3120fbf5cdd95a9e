package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/vovakirdan/supportchat-server/internal/store"
)

var (
	// ErrTokenRequired is returned when tokens are mandatory and none was sent.
	ErrTokenRequired = errors.New("token required")
	// ErrInvalidToken is returned when a token fails validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrMissingUser is returned when no user id was supplied.
	ErrMissingUser = errors.New("user id is required")
	// ErrInvalidRole is returned for unknown role strings.
	ErrInvalidRole = errors.New("invalid role")
	// ErrIdentityMismatch is returned when the claimed user differs from the token subject.
	ErrIdentityMismatch = errors.New("user id does not match token")
)

// Credentials is what a client presents when it authenticates a channel.
type Credentials struct {
	UserID string
	Role   string
	Token  string
}

// Identity is a verified user bound to a channel.
type Identity struct {
	UserID string
	Role   store.Role
}

// Service verifies client credentials and resolves roles from profile records.
type Service struct {
	profiles     store.ProfileStore
	jwtConfig    *JWTConfig
	requireToken bool
}

// NewService creates a new authentication service. jwtConfig may be nil when
// tokens are not used; requireToken is then ignored.
func NewService(profiles store.ProfileStore, jwtConfig *JWTConfig, requireToken bool) *Service {
	if jwtConfig != nil && len(jwtConfig.Secret) == 0 {
		jwtConfig = nil
	}
	return &Service{
		profiles:     profiles,
		jwtConfig:    jwtConfig,
		requireToken: requireToken && jwtConfig != nil,
	}
}

// Authenticate turns credentials into an Identity.
//
// With a token, the token subject is the user and its role claim is used
// unless a profile record exists. Without a token (only when tokens are not
// required) the client-supplied user id is trusted. A stored profile role
// always wins over a claimed one.
func (s *Service) Authenticate(ctx context.Context, creds Credentials) (Identity, error) {
	userID := strings.TrimSpace(creds.UserID)
	role := store.Role(strings.TrimSpace(creds.Role))

	switch {
	case creds.Token != "":
		claims, err := s.ValidateToken(creds.Token)
		if err != nil {
			return Identity{}, err
		}
		if userID != "" && userID != claims.UserID {
			return Identity{}, ErrIdentityMismatch
		}
		userID = claims.UserID
		if claims.Role != "" {
			role = store.Role(claims.Role)
		}
	case s.requireToken:
		return Identity{}, ErrTokenRequired
	}

	if userID == "" {
		return Identity{}, ErrMissingUser
	}

	resolved, err := s.ResolveRole(ctx, userID, role)
	if err != nil {
		return Identity{}, err
	}

	return Identity{UserID: userID, Role: resolved}, nil
}

// ResolveRole returns the stored role for userID, falling back to claimed
// when there is no profile. An empty fallback means customer.
func (s *Service) ResolveRole(ctx context.Context, userID string, claimed store.Role) (store.Role, error) {
	if s.profiles != nil {
		profile, err := s.profiles.GetProfile(ctx, userID)
		switch {
		case err == nil:
			claimed = profile.Role
		case errors.Is(err, store.ErrNotFound):
		default:
			return "", fmt.Errorf("resolve role: %w", err)
		}
	}

	if claimed == "" {
		claimed = store.RoleCustomer
	}
	if !claimed.Valid() {
		return "", fmt.Errorf("%w: %q", ErrInvalidRole, claimed)
	}
	return claimed, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	if s.jwtConfig == nil {
		return nil, fmt.Errorf("%w: tokens are not configured", ErrInvalidToken)
	}
	claims, err := ValidateToken(s.jwtConfig, tokenString)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return claims, nil
}

// IssueToken mints a token for local development and tests.
func (s *Service) IssueToken(userID string, role store.Role) (string, error) {
	if s.jwtConfig == nil {
		return "", fmt.Errorf("%w: tokens are not configured", ErrInvalidToken)
	}
	return GenerateToken(s.jwtConfig, userID, string(role))
}
