package account

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/medilocker/medilocker/internal/platform/apperror"
	"github.com/medilocker/medilocker/internal/platform/auth"
	"github.com/medilocker/medilocker/internal/platform/db"
	"github.com/medilocker/medilocker/internal/platform/kv"
	"github.com/medilocker/medilocker/internal/platform/notification"
	"github.com/medilocker/medilocker/internal/platform/password"
	"github.com/medilocker/medilocker/internal/platform/validate"
)

const (
	verificationTTL = 24 * time.Hour
	resetTTL        = time.Hour
)

type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(encoded, password string) error
}

type TokenIssuer interface {
	Issue(id auth.Identity) (*auth.TokenPair, error)
	VerifyRefresh(token string) (auth.Identity, error)
}

// Mailer sends templated email without failing the caller.
type Mailer interface {
	EmailBestEffort(ctx context.Context, templateID, to string, data map[string]string)
}

// PatientBootstrapper creates the primary profile of a new patient account.
type PatientBootstrapper interface {
	CreatePrimary(ctx context.Context, adminID uuid.UUID, fullName, phone string) error
}

type Service struct {
	repo        Repository
	tx          db.TxRunner
	hasher      PasswordHasher
	tokens      TokenIssuer
	oneTime     kv.TokenStore
	mailer      Mailer
	patients    PatientBootstrapper
	frontendURL string
	logger      zerolog.Logger
	now         func() time.Time
}

func NewService(repo Repository, tx db.TxRunner, hasher PasswordHasher, tokens TokenIssuer, oneTime kv.TokenStore,
	mailer Mailer, patients PatientBootstrapper, frontendURL string, logger zerolog.Logger) *Service {
	return &Service{
		repo:        repo,
		tx:          tx,
		hasher:      hasher,
		tokens:      tokens,
		oneTime:     oneTime,
		mailer:      mailer,
		patients:    patients,
		frontendURL: strings.TrimRight(frontendURL, "/"),
		logger:      logger,
		now:         time.Now,
	}
}

func (s *Service) Register(ctx context.Context, req RegisterRequest) (*Session, error) {
	req.Email = validate.NormalizeEmail(req.Email)
	var v validate.Errors
	v.Required("email", req.Email)
	v.Email("email", req.Email)
	v.MinLength("password", req.Password, minPasswordLength)
	v.Required("userType", req.UserType)
	v.OneOf("userType", req.UserType, auth.UserTypePatient, auth.UserTypeHospital)
	if err := v.Err(); err != nil {
		return nil, err
	}

	if _, err := s.repo.GetByEmail(ctx, req.Email); err == nil {
		return nil, apperror.Wrap(http.StatusConflict, ErrEmailTaken)
	} else if !errors.Is(err, ErrNotFound) {
		return nil, err
	}

	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return nil, err
	}
	a := &Admin{
		Email:         req.Email,
		PasswordHash:  hash,
		Phone:         strings.TrimSpace(req.Phone),
		UserType:      req.UserType,
		AccountStatus: StatusActive,
	}

	err = s.tx.WithTx(ctx, func(ctx context.Context) error {
		if err := s.repo.Create(ctx, a); err != nil {
			return err
		}
		if a.UserType != auth.UserTypePatient {
			return nil
		}
		name := strings.TrimSpace(req.FullName)
		if name == "" {
			name, _, _ = strings.Cut(a.Email, "@")
		}
		return s.patients.CreatePrimary(ctx, a.ID, name, a.Phone)
	})
	if err != nil {
		return nil, err
	}

	s.sendVerification(ctx, a, req.FullName)

	pair, err := s.tokens.Issue(a.Identity())
	if err != nil {
		return nil, err
	}
	return &Session{Admin: a, TokenPair: pair}, nil
}

func (s *Service) sendVerification(ctx context.Context, a *Admin, name string) {
	token, err := s.oneTime.Issue(ctx, kv.PurposeEmailVerification, a.ID.String(), verificationTTL)
	if err != nil {
		s.logger.Warn().Err(err).Str("admin_id", a.ID.String()).Msg("issue verification token")
		return
	}
	if name == "" {
		name = a.Email
	}
	s.mailer.EmailBestEffort(ctx, notification.TemplateEmailVerification, a.Email, map[string]string{
		"name":        name,
		"verify_link": s.frontendURL + "/verify-email?token=" + url.QueryEscape(token),
	})
}

func (s *Service) Login(ctx context.Context, req LoginRequest) (*Session, error) {
	a, err := s.repo.GetByEmail(ctx, validate.NormalizeEmail(req.Email))
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.Wrap(http.StatusUnauthorized, ErrInvalidCredentials)
	}
	if err != nil {
		return nil, err
	}
	if err := s.hasher.Verify(a.PasswordHash, req.Password); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return nil, apperror.Wrap(http.StatusUnauthorized, ErrInvalidCredentials)
		}
		return nil, err
	}
	if !a.IsActive() {
		return nil, apperror.Wrap(http.StatusForbidden, ErrAccountInactive)
	}

	now := s.now().UTC()
	if err := s.repo.UpdateLastLogin(ctx, a.ID, now); err != nil {
		return nil, err
	}
	a.LastLogin = &now

	pair, err := s.tokens.Issue(a.Identity())
	if err != nil {
		return nil, err
	}
	return &Session{Admin: a, TokenPair: pair}, nil
}

// Refresh re-reads the account so suspended or deleted accounts cannot
// keep extending their session.
func (s *Service) Refresh(ctx context.Context, refreshToken string) (*Session, error) {
	id, err := s.tokens.VerifyRefresh(refreshToken)
	if err != nil {
		return nil, apperror.Unauthorized("invalid or expired refresh token")
	}
	a, err := s.repo.GetByID(ctx, id.AdminID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.Unauthorized("account no longer exists")
	}
	if err != nil {
		return nil, err
	}
	if !a.IsActive() {
		return nil, apperror.Wrap(http.StatusForbidden, ErrAccountInactive)
	}
	pair, err := s.tokens.Issue(a.Identity())
	if err != nil {
		return nil, err
	}
	return &Session{Admin: a, TokenPair: pair}, nil
}

// ForgotPassword never reports whether the email is registered.
func (s *Service) ForgotPassword(ctx context.Context, email string) error {
	a, err := s.repo.GetByEmail(ctx, validate.NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	if !a.IsActive() {
		return nil
	}
	token, err := s.oneTime.Issue(ctx, kv.PurposePasswordReset, a.ID.String(), resetTTL)
	if err != nil {
		s.logger.Error().Err(err).Str("admin_id", a.ID.String()).Msg("issue password reset token")
		return nil
	}
	s.mailer.EmailBestEffort(ctx, notification.TemplatePasswordReset, a.Email, map[string]string{
		"reset_link": s.frontendURL + "/reset-password?token=" + url.QueryEscape(token),
	})
	return nil
}

func (s *Service) ResetPassword(ctx context.Context, req ResetPasswordRequest) error {
	var v validate.Errors
	v.Required("token", req.Token)
	v.MinLength("password", req.Password, minPasswordLength)
	if err := v.Err(); err != nil {
		return err
	}

	adminID, err := s.consume(ctx, kv.PurposePasswordReset, req.Token)
	if err != nil {
		return err
	}
	hash, err := s.hasher.Hash(req.Password)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, adminID, hash); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperror.Wrap(http.StatusBadRequest, ErrInvalidToken)
		}
		return err
	}
	return nil
}

func (s *Service) VerifyEmail(ctx context.Context, token string) error {
	if strings.TrimSpace(token) == "" {
		var v validate.Errors
		v.Required("token", token)
		return v.Err()
	}
	adminID, err := s.consume(ctx, kv.PurposeEmailVerification, token)
	if err != nil {
		return err
	}
	if err := s.repo.MarkEmailVerified(ctx, adminID); err != nil {
		if errors.Is(err, ErrNotFound) {
			return apperror.Wrap(http.StatusBadRequest, ErrInvalidToken)
		}
		return err
	}
	return nil
}

func (s *Service) consume(ctx context.Context, purpose, token string) (uuid.UUID, error) {
	subject, err := s.oneTime.Consume(ctx, purpose, token)
	if errors.Is(err, kv.ErrTokenInvalid) {
		return uuid.Nil, apperror.Wrap(http.StatusBadRequest, ErrInvalidToken)
	}
	if err != nil {
		return uuid.Nil, err
	}
	adminID, err := uuid.Parse(subject)
	if err != nil {
		return uuid.Nil, apperror.Wrap(http.StatusBadRequest, ErrInvalidToken)
	}
	return adminID, nil
}

func (s *Service) Me(ctx context.Context, adminID uuid.UUID) (*Admin, error) {
	a, err := s.repo.GetByID(ctx, adminID)
	if errors.Is(err, ErrNotFound) {
		return nil, apperror.Wrap(http.StatusNotFound, ErrNotFound)
	}
	return a, err
}

// FindActiveHospital returns the active hospital-type account registered
// under email, or ErrNotHospital.
func (s *Service) FindActiveHospital(ctx context.Context, email string) (*Admin, error) {
	a, err := s.repo.GetByEmail(ctx, validate.NormalizeEmail(email))
	if errors.Is(err, ErrNotFound) {
		return nil, ErrNotHospital
	}
	if err != nil {
		return nil, err
	}
	if a.UserType != auth.UserTypeHospital || !a.IsActive() {
		return nil, ErrNotHospital
	}
	return a, nil
}
