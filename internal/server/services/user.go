// Package services contains server-side business logic. UserService owns
// registration, login and the refresh-token lifecycle. It knows nothing
// about HTTP.
package services

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/dmitrijs2005/estately/internal/common"
	"github.com/dmitrijs2005/estately/internal/dbx"
	"github.com/dmitrijs2005/estately/internal/logging"
	"github.com/dmitrijs2005/estately/internal/server/auth"
	"github.com/dmitrijs2005/estately/internal/server/models"
	"github.com/dmitrijs2005/estately/internal/server/repositories/repomanager"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "github.com/dmitrijs2005/estately/internal/server/services"

// RegisterInput carries the fields of a new account. Password is the
// plaintext password; it never leaves the service.
type RegisterInput struct {
	Email     string
	Password  string
	FirstName string
	LastName  string
	Phone     string
	// Role defaults to auth.DefaultRole.
	Role auth.Role
}

// AuthResult is returned by every operation that starts or rotates a session.
type AuthResult struct {
	User   *auth.Identity
	Tokens *auth.TokenPair
}

// UserService provides authentication-related operations.
type UserService struct {
	db          *sql.DB
	repomanager repomanager.RepositoryManager
	codec       *auth.Codec
	hasher      *auth.Hasher
	log         logging.Logger
	tracer      trace.Tracer
	now         func() time.Time
}

type Option func(*UserService)

// WithClock overrides the clock used for session expiry checks.
func WithClock(now func() time.Time) Option {
	return func(s *UserService) { s.now = now }
}

// NewUserService constructs a UserService. db may be nil when m does not
// need a database (the in-memory manager).
func NewUserService(db *sql.DB, m repomanager.RepositoryManager, codec *auth.Codec, hasher *auth.Hasher, log logging.Logger, opts ...Option) *UserService {
	if log == nil {
		log = logging.Nop()
	}
	s := &UserService{
		db:          db,
		repomanager: m,
		codec:       codec,
		hasher:      hasher,
		log:         log,
		tracer:      otel.Tracer(tracerName),
		now:         time.Now,
	}
	for _, o := range opts {
		o(s)
	}
	return s
}

// SelfAssignable reports whether users may pick role for themselves.
// Brokers are appointed out of band.
func SelfAssignable(role auth.Role) bool {
	return role == auth.RoleBuyer || role == auth.RoleSeller
}

// Register creates an account and its first session in one transaction.
func (s *UserService) Register(ctx context.Context, in RegisterInput) (res *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Register")
	defer func() { endSpan(span, err) }()

	if in.Role == "" {
		in.Role = auth.DefaultRole
	}
	email := common.NormalizeEmail(in.Email)
	if email == "" || len(in.Password) < MinPasswordLength || len(in.Password) > auth.MaxPasswordBytes ||
		!SelfAssignable(in.Role) {
		return nil, common.ErrValidation
	}

	hash, err := s.hasher.Hash(ctx, in.Password)
	if errors.Is(err, auth.ErrPasswordTooLong) {
		return nil, common.ErrValidation
	}
	if err != nil {
		return nil, s.internal(ctx, "hash password", err)
	}

	user := &models.User{
		Email:        email,
		PasswordHash: &hash,
		FirstName:    in.FirstName,
		LastName:     in.LastName,
		Phone:        in.Phone,
		Role:         string(in.Role),
	}

	err = s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		created, err := s.repomanager.Users(tx).Create(ctx, user)
		if err != nil {
			return err
		}
		pair, err := s.startSession(ctx, tx, created)
		if err != nil {
			return err
		}
		res = &AuthResult{User: toIdentity(created), Tokens: pair}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorAlreadyExists) {
			return nil, common.ErrorAlreadyExists
		}
		return nil, s.internal(ctx, "register", err)
	}

	span.SetAttributes(attribute.String("user.id", res.User.ID))
	s.log.Info(ctx, "user registered", "user_id", res.User.ID, "role", res.User.Role)
	return res, nil
}

// Login checks the credentials and starts a new session, replacing any
// previous one. Every credential mismatch yields common.ErrInvalidCredentials.
func (s *UserService) Login(ctx context.Context, email, password string) (res *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Login")
	defer func() { endSpan(span, err) }()

	user, err := s.repomanager.Users(s.conn()).GetByEmail(ctx, common.NormalizeEmail(email))
	if err != nil && !errors.Is(err, common.ErrorNotFound) {
		return nil, s.internal(ctx, "load user", err)
	}

	if user == nil || user.PasswordHash == nil {
		if err := s.hasher.CompareDummy(ctx, password); err != nil {
			return nil, err
		}
		return nil, common.ErrInvalidCredentials
	}

	ok, err := s.hasher.Compare(ctx, *user.PasswordHash, password)
	if err != nil {
		return nil, err
	}
	if !ok {
		s.log.Info(ctx, "login rejected", "user_id", user.ID)
		return nil, common.ErrInvalidCredentials
	}

	pair, err := s.startSession(ctx, s.conn(), user)
	if err != nil {
		return nil, s.internal(ctx, "start session", err)
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	s.log.Info(ctx, "user logged in", "user_id", user.ID)
	return &AuthResult{User: toIdentity(user), Tokens: pair}, nil
}

// Refresh exchanges a refresh token for a new token pair and rotates the
// stored session. The previous refresh token stops working immediately.
//
// Of two concurrent refreshes presenting the same token only one succeeds;
// the other gets common.ErrInvalidRefreshToken. A login that lands between
// the read and the rotation wins, and the refresh fails the same way.
func (s *UserService) Refresh(ctx context.Context, refreshToken string) (res *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Refresh")
	defer func() { endSpan(span, err) }()

	if refreshToken == "" {
		return nil, common.ErrRefreshRequired
	}

	claims, err := s.codec.Verify(refreshToken, auth.KindRefresh)
	if err != nil {
		if errors.Is(err, auth.ErrTokenExpired) {
			return nil, common.ErrRefreshExpired
		}
		return nil, common.ErrInvalidRefreshToken
	}

	conn := s.conn()
	user, err := s.repomanager.Users(conn).GetByID(ctx, claims.Subject)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, s.internal(ctx, "load user", err)
	}

	sessions := s.repomanager.Sessions(conn)
	session, err := sessions.Get(ctx, user.ID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			s.log.Warn(ctx, "refresh without session", "user_id", user.ID)
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, s.internal(ctx, "load session", err)
	}

	digest := common.DigestToken(refreshToken)
	if !common.DigestsEqual(digest, session.TokenDigest) {
		s.log.Warn(ctx, "refresh token does not match session", "user_id", user.ID)
		return nil, common.ErrInvalidRefreshToken
	}
	if session.Expired(s.now()) {
		return nil, common.ErrRefreshExpired
	}

	pair, err := s.codec.Issue(user.ID, user.Email, auth.Role(user.Role))
	if err != nil {
		return nil, s.internal(ctx, "issue tokens", err)
	}

	err = sessions.Rotate(ctx, user.ID, digest, common.DigestToken(pair.RefreshToken), pair.RefreshExpiresAt)
	if err != nil {
		if errors.Is(err, common.ErrorConflict) {
			s.log.Warn(ctx, "refresh lost rotation race", "user_id", user.ID)
			return nil, common.ErrInvalidRefreshToken
		}
		return nil, s.internal(ctx, "rotate session", err)
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	s.log.Debug(ctx, "session rotated", "user_id", user.ID)
	return &AuthResult{User: toIdentity(user), Tokens: pair}, nil
}

// Logout drops the user's session. Calling it twice is fine.
func (s *UserService) Logout(ctx context.Context, userID string) (err error) {
	ctx, span := s.tracer.Start(ctx, "UserService.Logout", trace.WithAttributes(attribute.String("user.id", userID)))
	defer func() { endSpan(span, err) }()

	if err := s.repomanager.Sessions(s.conn()).Clear(ctx, userID); err != nil {
		return s.internal(ctx, "clear session", err)
	}
	s.log.Info(ctx, "user logged out", "user_id", userID)
	return nil
}

// Authenticate verifies an access token and resolves its subject to an
// identity. Token failures are returned as auth.ErrTokenExpired,
// auth.ErrTokenInvalid or auth.ErrTokenKind; a vanished subject as
// common.ErrorNotFound.
func (s *UserService) Authenticate(ctx context.Context, accessToken string) (*auth.Identity, error) {
	claims, err := s.codec.Verify(accessToken, auth.KindAccess)
	if err != nil {
		return nil, err
	}
	return s.CurrentUser(ctx, claims.Subject)
}

// CurrentUser returns the identity of userID or common.ErrorNotFound.
func (s *UserService) CurrentUser(ctx context.Context, userID string) (*auth.Identity, error) {
	user, err := s.repomanager.Users(s.conn()).GetByID(ctx, userID)
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(ctx, "load user", err)
	}
	return toIdentity(user), nil
}

// LookupUser returns another account's profile. Callers gate it by role.
func (s *UserService) LookupUser(ctx context.Context, id string) (ident *auth.Identity, err error) {
	ctx, span := s.tracer.Start(ctx, "UserService.LookupUser", trace.WithAttributes(attribute.String("target.id", id)))
	defer func() { endSpan(span, err) }()

	return s.CurrentUser(ctx, id)
}

// ChangeRole persists a new role and starts a fresh session, since the role
// is embedded in every token. Tokens issued before the change keep their old
// role until they expire; the old refresh token stops working at once.
func (s *UserService) ChangeRole(ctx context.Context, userID string, role auth.Role) (res *AuthResult, err error) {
	ctx, span := s.tracer.Start(ctx, "UserService.ChangeRole",
		trace.WithAttributes(attribute.String("user.id", userID), attribute.String("role", string(role))))
	defer func() { endSpan(span, err) }()

	if !SelfAssignable(role) {
		return nil, common.ErrValidation
	}

	err = s.withTx(ctx, func(ctx context.Context, tx dbx.DBTX) error {
		users := s.repomanager.Users(tx)
		if err := users.UpdateRole(ctx, userID, string(role)); err != nil {
			return err
		}
		user, err := users.GetByID(ctx, userID)
		if err != nil {
			return err
		}
		pair, err := s.startSession(ctx, tx, user)
		if err != nil {
			return err
		}
		res = &AuthResult{User: toIdentity(user), Tokens: pair}
		return nil
	})
	if err != nil {
		if errors.Is(err, common.ErrorNotFound) {
			return nil, common.ErrorNotFound
		}
		return nil, s.internal(ctx, "change role", err)
	}

	s.log.Info(ctx, "role changed", "user_id", userID, "role", role)
	return res, nil
}

// Ping reports whether the stores behind the service are reachable.
func (s *UserService) Ping(ctx context.Context) error {
	return s.repomanager.Ping(ctx)
}

// --- helpers below ---

// MinPasswordLength is the shortest password accepted at registration.
const MinPasswordLength = 8

func (s *UserService) startSession(ctx context.Context, tx dbx.DBTX, user *models.User) (*auth.TokenPair, error) {
	pair, err := s.codec.Issue(user.ID, user.Email, auth.Role(user.Role))
	if err != nil {
		return nil, err
	}
	digest := common.DigestToken(pair.RefreshToken)
	if err := s.repomanager.Sessions(tx).Save(ctx, user.ID, digest, pair.RefreshExpiresAt); err != nil {
		return nil, err
	}
	return pair, nil
}

// conn returns the DBTX for non-transactional calls. A nil *sql.DB must not
// be boxed into a non-nil interface.
func (s *UserService) conn() dbx.DBTX {
	if s.db == nil {
		return nil
	}
	return s.db
}

func (s *UserService) withTx(ctx context.Context, fn func(ctx context.Context, tx dbx.DBTX) error) error {
	if s.db == nil {
		return fn(ctx, nil)
	}
	return dbx.WithTx(ctx, s.db, nil, fn)
}

// internal logs err and hides it behind common.ErrorInternal. Context
// cancellation passes through unchanged.
func (s *UserService) internal(ctx context.Context, op string, err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	s.log.Error(ctx, "operation failed", "op", op, "error", err)
	return common.ErrorInternal
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

func toIdentity(u *models.User) *auth.Identity {
	return &auth.Identity{
		ID:            u.ID,
		Email:         u.Email,
		FirstName:     u.FirstName,
		LastName:      u.LastName,
		Phone:         u.Phone,
		Role:          auth.Role(u.Role),
		EmailVerified: u.EmailVerified,
		CreatedAt:     u.CreatedAt,
	}
}
