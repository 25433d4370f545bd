package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// User types carried in tokens and stored on admins.
const (
	UserTypePatient  = "patient"
	UserTypeHospital = "hospital"
)

const (
	tokenTypeAccess  = "access"
	tokenTypeRefresh = "refresh"
)

var ErrWrongTokenType = errors.New("token type mismatch")

// Identity is the authenticated admin attached to a request.
type Identity struct {
	AdminID  uuid.UUID
	Email    string
	UserType string
}

func (i Identity) IsPatient() bool  { return i.UserType == UserTypePatient }
func (i Identity) IsHospital() bool { return i.UserType == UserTypeHospital }

type Claims struct {
	jwt.RegisteredClaims
	AdminID   string `json:"adminId"`
	Email     string `json:"email"`
	UserType  string `json:"userType"`
	TokenType string `json:"typ"`
}

// TokenPair is returned by login, register and refresh.
type TokenPair struct {
	AccessToken  string `json:"accessToken"`
	RefreshToken string `json:"refreshToken"`
	ExpiresIn    int64  `json:"expiresIn"`
}

type TokenConfig struct {
	Issuer        string
	AccessSecret  []byte
	RefreshSecret []byte
	AccessTTL     time.Duration
	RefreshTTL    time.Duration
}

// TokenIssuer signs and verifies HS256 access and refresh tokens. The two
// kinds use different secrets so a refresh token never passes as access.
type TokenIssuer struct {
	cfg TokenConfig
	now func() time.Time
}

func NewTokenIssuer(cfg TokenConfig) *TokenIssuer {
	return &TokenIssuer{cfg: cfg, now: time.Now}
}

func (t *TokenIssuer) Issue(id Identity) (*TokenPair, error) {
	access, err := t.sign(id, tokenTypeAccess, t.cfg.AccessSecret, t.cfg.AccessTTL)
	if err != nil {
		return nil, fmt.Errorf("sign access token: %w", err)
	}
	refresh, err := t.sign(id, tokenTypeRefresh, t.cfg.RefreshSecret, t.cfg.RefreshTTL)
	if err != nil {
		return nil, fmt.Errorf("sign refresh token: %w", err)
	}
	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		ExpiresIn:    int64(t.cfg.AccessTTL.Seconds()),
	}, nil
}

func (t *TokenIssuer) sign(id Identity, typ string, secret []byte, ttl time.Duration) (string, error) {
	now := t.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    t.cfg.Issuer,
			Subject:   id.AdminID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		AdminID:   id.AdminID.String(),
		Email:     id.Email,
		UserType:  id.UserType,
		TokenType: typ,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(secret)
}

func (t *TokenIssuer) VerifyAccess(token string) (Identity, error) {
	return t.verify(token, tokenTypeAccess, t.cfg.AccessSecret)
}

func (t *TokenIssuer) VerifyRefresh(token string) (Identity, error) {
	return t.verify(token, tokenTypeRefresh, t.cfg.RefreshSecret)
}

func (t *TokenIssuer) verify(tokenStr, typ string, secret []byte) (Identity, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(t.now),
	}
	if t.cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(t.cfg.Issuer))
	}

	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(*jwt.Token) (interface{}, error) {
		return secret, nil
	}, opts...)
	if err != nil {
		return Identity{}, err
	}
	if !token.Valid {
		return Identity{}, jwt.ErrTokenUnverifiable
	}
	if claims.TokenType != typ {
		return Identity{}, fmt.Errorf("%w: %w", jwt.ErrTokenInvalidClaims, ErrWrongTokenType)
	}

	adminID, err := uuid.Parse(claims.AdminID)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: adminId: %v", jwt.ErrTokenInvalidClaims, err)
	}
	return Identity{AdminID: adminID, Email: claims.Email, UserType: claims.UserType}, nil
}
