// Package service holds the business logic between the HTTP handlers and
// the repositories.
package service

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/identware/identity-service/internal/cache"
	"github.com/identware/identity-service/internal/domain"
	"github.com/identware/identity-service/internal/event"
	"github.com/identware/identity-service/internal/repository"
	"github.com/identware/identity-service/internal/token"
	errs "github.com/identware/identity-service/pkg/errors"
	"github.com/identware/identity-service/pkg/logger"
)

// SessionCache is the slice of the cache client the auth service uses.
type SessionCache interface {
	Blacklist(ctx context.Context, token string, ttl time.Duration) error
	IsBlacklisted(ctx context.Context, token string) (bool, error)
	CacheSession(ctx context.Context, s *domain.Session, ttl time.Duration) error
	GetSession(ctx context.Context, userID string) (*domain.Session, error)
	InvalidateSession(ctx context.Context, userID string) error
}

// AuthConfig carries the tunables of the session layer.
type AuthConfig struct {
	SessionTTL      time.Duration
	ResetTokenTTL   time.Duration
	VerificationTTL time.Duration
	DefaultRole     string
	BcryptCost      int
}

// AuthService implements registration, login, token rotation, and the
// authentication gate.
type AuthService struct {
	users    repository.UserRepository
	roles    repository.RoleRepository
	ledger   repository.RefreshTokenRepository
	sessions SessionCache
	tokens   *token.Manager
	events   event.Publisher
	cfg      AuthConfig
	logger   *slog.Logger
}

// NewAuthService wires the auth service.
func NewAuthService(
	users repository.UserRepository,
	roles repository.RoleRepository,
	ledger repository.RefreshTokenRepository,
	sessions SessionCache,
	tokens *token.Manager,
	events event.Publisher,
	cfg AuthConfig,
	log *slog.Logger,
) *AuthService {
	if cfg.BcryptCost == 0 {
		cfg.BcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{
		users:    users,
		roles:    roles,
		ledger:   ledger,
		sessions: sessions,
		tokens:   tokens,
		events:   events,
		cfg:      cfg,
		logger:   log,
	}
}

// RegisterInput is the payload for Register.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
}

// Register creates an unverified identity under the default role and
// publishes the verification event. No tokens are issued until the email is
// verified.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (*domain.User, error) {
	email := normalizeEmail(in.Email)
	if err := validatePassword(in.Password); err != nil {
		return nil, errs.InvalidInput(err.Error())
	}

	role, err := s.roles.GetByName(ctx, s.cfg.DefaultRole)
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("load default role: %w", err))
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.cfg.BcryptCost)
	if err != nil {
		return nil, errs.Internal(fmt.Errorf("hash password: %w", err))
	}

	verifyTok, err := randomToken(32)
	if err != nil {
		return nil, errs.Internal(err)
	}
	verifyExpires := time.Now().Add(s.cfg.VerificationTTL)

	user := &domain.User{
		ID:                  uuid.New().String(),
		Email:               email,
		PasswordHash:        string(hash),
		FirstName:           strings.TrimSpace(in.FirstName),
		LastName:            strings.TrimSpace(in.LastName),
		RoleID:              role.ID,
		Role:                role,
		IsActive:            true,
		EmailVerified:       false,
		VerificationToken:   verifyTok,
		VerificationExpires: &verifyExpires,
		Provider:            domain.ProviderLocal,
	}

	if err := s.users.Create(ctx, user); err != nil {
		return nil, err
	}

	// Publishing is best-effort: the identity exists either way, and the
	// notifier retries from the topic.
	if err := s.events.UserRegistered(ctx, event.UserRegistered{
		UserID:            user.ID,
		Email:             user.Email,
		FirstName:         user.FirstName,
		VerificationToken: verifyTok,
	}); err != nil {
		logger.FromContext(ctx).Error("publish user registered event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return user, nil
}

// Login checks credentials and issues a token pair. All credential failures
// return the same 401 so responses do not reveal which accounts exist.
func (s *AuthService) Login(ctx context.Context, email, password string) (*domain.User, *domain.TokenPair, error) {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, nil, errs.Unauthorized("invalid email or password")
		}
		return nil, nil, errs.Internal(err)
	}

	if !user.IsActive {
		return nil, nil, errs.Forbidden("account deactivated")
	}
	if !user.EmailVerified {
		return nil, nil, errs.Unauthorized("email not verified")
	}
	if user.PasswordHash == "" {
		// External identity with no credentials.
		return nil, nil, errs.Unauthorized("invalid email or password")
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, nil, errs.Unauthorized("invalid email or password")
	}

	pair, err := s.issueTokens(ctx, user)
	if err != nil {
		return nil, nil, err
	}
	return user, pair, nil
}

// VerifyEmail consumes a verification token. Unknown, expired, and already
// consumed tokens are indistinguishable to the caller.
func (s *AuthService) VerifyEmail(ctx context.Context, verificationToken string) error {
	userID, err := s.users.VerifyEmail(ctx, verificationToken)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.InvalidInput("invalid or expired verification token")
		}
		return errs.Internal(err)
	}

	if user, err := s.users.GetByID(ctx, userID); err == nil {
		if err := s.events.EmailVerified(ctx, event.EmailVerified{
			UserID: user.ID,
			Email:  user.Email,
		}); err != nil {
			logger.FromContext(ctx).Error("publish email verified event",
				slog.String("user_id", userID),
				slog.String("error", err.Error()),
			)
		}
	}
	return nil
}

// ForgotPassword issues a reset token for a known email and does nothing for
// an unknown one. Both paths return success so responses do not reveal which
// accounts exist.
func (s *AuthService) ForgotPassword(ctx context.Context, email string) error {
	user, err := s.users.GetByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil
		}
		return errs.Internal(err)
	}

	selector, err := randomToken(8)
	if err != nil {
		return errs.Internal(err)
	}
	secret, err := randomToken(32)
	if err != nil {
		return errs.Internal(err)
	}

	expires := time.Now().Add(s.cfg.ResetTokenTTL)
	if err := s.users.SetResetToken(ctx, user.ID, selector, hashToken(secret), expires); err != nil {
		return errs.Internal(err)
	}

	// Best-effort for the same reason as above, and so a broken broker
	// cannot be used to probe which emails are registered.
	if err := s.events.PasswordResetIssued(ctx, event.PasswordResetIssued{
		UserID:     user.ID,
		Email:      user.Email,
		ResetToken: selector + "." + secret,
	}); err != nil {
		logger.FromContext(ctx).Error("publish password reset event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// ResetPassword consumes a selector.secret reset token, sets the new
// password, and revokes every outstanding session for the identity.
func (s *AuthService) ResetPassword(ctx context.Context, resetToken, newPassword string) error {
	invalid := errs.InvalidInput("invalid or expired reset token")

	selector, secret, ok := strings.Cut(resetToken, ".")
	if !ok || selector == "" || secret == "" {
		return invalid
	}
	if err := validatePassword(newPassword); err != nil {
		return errs.InvalidInput(err.Error())
	}

	user, err := s.users.GetByResetSelector(ctx, selector)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return invalid
		}
		return errs.Internal(err)
	}

	if subtle.ConstantTimeCompare([]byte(hashToken(secret)), []byte(user.ResetSecretHash)) != 1 {
		return invalid
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return errs.Internal(fmt.Errorf("hash password: %w", err))
	}

	updated, err := s.users.ResetPassword(ctx, user.ID, selector, string(hash))
	if err != nil {
		return errs.Internal(err)
	}
	if !updated {
		// Another request consumed the token between lookup and update.
		return invalid
	}

	s.revokeChain(ctx, user.ID)

	if err := s.events.PasswordChanged(ctx, event.PasswordChanged{
		UserID: user.ID,
		Email:  user.Email,
	}); err != nil {
		logger.FromContext(ctx).Error("publish password changed event",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// Refresh rotates a refresh token: the presented token is revoked and a new
// pair is issued in its place. Any ledger anomaly, a missing row, a revoked
// row, or losing the revoke race, is treated as theft and revokes the
// identity's entire chain.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*domain.TokenPair, error) {
	claims, err := s.tokens.VerifyRefreshToken(refreshToken)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, errs.TokenExpired("refresh token expired").WithStatus(http.StatusForbidden)
		}
		return nil, errs.TokenMalformed("invalid refresh token").WithStatus(http.StatusForbidden)
	}

	tokenHash := hashToken(refreshToken)
	record, err := s.ledger.GetByHash(ctx, tokenHash)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			// Verified signature with no ledger row: the row was reclaimed
			// or the ledger was tampered with. Fail the whole chain.
			s.revokeChain(ctx, claims.UserID)
			return nil, errs.TokenRevoked("refresh token revoked").WithStatus(http.StatusForbidden)
		}
		return nil, errs.Internal(err)
	}

	if record.Revoked() {
		logger.FromContext(ctx).Warn("refresh token replay detected",
			slog.String("user_id", record.UserID),
		)
		s.revokeChain(ctx, record.UserID)
		return nil, errs.TokenRevoked("refresh token revoked").WithStatus(http.StatusForbidden)
	}
	if record.Expired(time.Now()) {
		return nil, errs.TokenExpired("refresh token expired").WithStatus(http.StatusForbidden)
	}

	rotated, err := s.ledger.Revoke(ctx, tokenHash)
	if err != nil {
		return nil, errs.Internal(err)
	}
	if !rotated {
		// Lost a rotation race: someone else presented this token first.
		logger.FromContext(ctx).Warn("concurrent refresh rotation detected",
			slog.String("user_id", record.UserID),
		)
		s.revokeChain(ctx, record.UserID)
		return nil, errs.TokenRevoked("refresh token revoked").WithStatus(http.StatusForbidden)
	}

	user, err := s.users.GetByID(ctx, record.UserID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.Unauthorized("user no longer exists")
		}
		return nil, errs.Internal(err)
	}
	if !user.IsActive {
		s.revokeChain(ctx, user.ID)
		return nil, errs.Forbidden("account deactivated")
	}

	return s.issueTokens(ctx, user)
}

// Logout blacklists the presented access token for its remaining lifetime,
// revokes the refresh chain, and drops the session snapshot.
func (s *AuthService) Logout(ctx context.Context, userID, accessToken string) error {
	if claims, err := s.tokens.VerifyAccessToken(accessToken); err == nil {
		ttl := time.Until(claims.ExpiresAt.Time)
		if err := s.sessions.Blacklist(ctx, accessToken, ttl); err != nil {
			return errs.Internal(err)
		}
	}

	if _, err := s.ledger.RevokeAllForUser(ctx, userID); err != nil {
		return errs.Internal(err)
	}
	if err := s.sessions.InvalidateSession(ctx, userID); err != nil {
		logger.FromContext(ctx).Error("invalidate session on logout",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// ChangePassword verifies the current password, stores the new hash, and
// revokes every refresh token so stolen sessions die with the old password.
func (s *AuthService) ChangePassword(ctx context.Context, userID, currentPassword, newPassword string) error {
	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return errs.Unauthorized("user no longer exists")
		}
		return errs.Internal(err)
	}

	if user.PasswordHash == "" ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(currentPassword)) != nil {
		return errs.Unauthorized("current password is incorrect")
	}
	if err := validatePassword(newPassword); err != nil {
		return errs.InvalidInput(err.Error())
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(newPassword), s.cfg.BcryptCost)
	if err != nil {
		return errs.Internal(fmt.Errorf("hash password: %w", err))
	}
	if err := s.users.UpdatePassword(ctx, userID, string(hash)); err != nil {
		return errs.Internal(err)
	}

	s.revokeChain(ctx, userID)

	if err := s.events.PasswordChanged(ctx, event.PasswordChanged{
		UserID: user.ID,
		Email:  user.Email,
	}); err != nil {
		logger.FromContext(ctx).Error("publish password changed event",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	return nil
}

// Authenticate is the request gate: verify the access token, check the
// blacklist, then resolve the session snapshot (cache first, store on miss).
func (s *AuthService) Authenticate(ctx context.Context, accessToken string) (*domain.Session, error) {
	claims, err := s.tokens.VerifyAccessToken(accessToken)
	if err != nil {
		if errors.Is(err, token.ErrExpired) {
			return nil, errs.TokenExpired("access token expired")
		}
		return nil, errs.TokenMalformed("invalid access token")
	}

	blacklisted, err := s.sessions.IsBlacklisted(ctx, accessToken)
	if err != nil {
		// Fail closed: with the blacklist unreadable, a revoked token
		// cannot be told apart from a live one.
		return nil, errs.Internal(err)
	}
	if blacklisted {
		return nil, errs.TokenRevoked("token has been revoked")
	}

	sess, err := s.sessions.GetSession(ctx, claims.UserID)
	if err == nil {
		if !sess.IsActive {
			return nil, errs.Forbidden("account deactivated")
		}
		return sess, nil
	}
	if !errors.Is(err, cache.ErrMiss) {
		logger.FromContext(ctx).Warn("session cache read failed, falling back to store",
			slog.String("error", err.Error()),
		)
	}

	user, err := s.users.GetByID(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, errs.ErrNotFound) {
			return nil, errs.Unauthorized("user no longer exists")
		}
		return nil, errs.Internal(err)
	}
	if !user.IsActive {
		return nil, errs.Forbidden("account deactivated")
	}

	sess = domain.NewSession(user)
	if err := s.sessions.CacheSession(ctx, sess, s.cfg.SessionTTL); err != nil {
		logger.FromContext(ctx).Warn("cache session snapshot",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}
	return sess, nil
}

// issueTokens mints a pair, records the refresh hash in the ledger, and
// warms the session snapshot.
func (s *AuthService) issueTokens(ctx context.Context, user *domain.User) (*domain.TokenPair, error) {
	roleName := ""
	if user.Role != nil {
		roleName = user.Role.Name
	}

	access, accessExpires, err := s.tokens.GenerateAccessToken(user.ID, user.Email, roleName)
	if err != nil {
		return nil, errs.Internal(err)
	}
	refresh, refreshExpires, err := s.tokens.GenerateRefreshToken(user.ID)
	if err != nil {
		return nil, errs.Internal(err)
	}

	if err := s.ledger.Create(ctx, user.ID, hashToken(refresh), refreshExpires); err != nil {
		return nil, errs.Internal(err)
	}

	sess := domain.NewSession(user)
	if err := s.sessions.CacheSession(ctx, sess, s.cfg.SessionTTL); err != nil {
		logger.FromContext(ctx).Warn("warm session snapshot",
			slog.String("user_id", user.ID),
			slog.String("error", err.Error()),
		)
	}

	return &domain.TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresAt:    accessExpires,
	}, nil
}

// revokeChain force-invalidates everything the identity holds. Errors are
// logged, not returned: the caller is already on a denial path.
func (s *AuthService) revokeChain(ctx context.Context, userID string) {
	if _, err := s.ledger.RevokeAllForUser(ctx, userID); err != nil {
		logger.FromContext(ctx).Error("revoke refresh chain",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
	if err := s.sessions.InvalidateSession(ctx, userID); err != nil {
		logger.FromContext(ctx).Error("invalidate session",
			slog.String("user_id", userID),
			slog.String("error", err.Error()),
		)
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// validatePassword enforces the password policy: at least 8 characters with
// an upper-case letter, a lower-case letter, and a digit.
func validatePassword(password string) error {
	if len(password) < 8 {
		return fmt.Errorf("password must be at least 8 characters")
	}
	var hasUpper, hasLower, hasDigit bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			hasUpper = true
		case unicode.IsLower(r):
			hasLower = true
		case unicode.IsDigit(r):
			hasDigit = true
		}
	}
	if !hasUpper || !hasLower || !hasDigit {
		return fmt.Errorf("password must contain upper and lower case letters and a digit")
	}
	return nil
}

// hashToken returns the hex SHA-256 of a token. Refresh tokens and reset
// secrets are stored only in this form.
func hashToken(tok string) string {
	sum := sha256.Sum256([]byte(tok))
	return hex.EncodeToString(sum[:])
}

// randomToken returns n random bytes hex-encoded.
func randomToken(n int) (string, error) {
	buf := make([]byte, n)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate token: %w", err)
	}
	return hex.EncodeToString(buf), nil
}
