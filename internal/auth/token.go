package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	jwt "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/spec-kit/user-service/internal/domain"
)

// RefreshTokenTTL is fixed; it is not configurable.
const RefreshTokenTTL = 7 * 24 * time.Hour

// ErrInvalidToken is the only error token verification returns. Signature,
// issuer, audience, expiry and usage failures are deliberately indistinguishable.
var ErrInvalidToken = errors.New("invalid token")

// TokenUse separates access, refresh and verification tokens signed by the same key.
type TokenUse string

const (
	TokenUseAccess       TokenUse = "access"
	TokenUseRefresh      TokenUse = "refresh"
	TokenUseVerification TokenUse = "verify_email"
)

// Claims describes the JWT payload. Role is only present on access tokens.
type Claims struct {
	Role domain.Role `json:"role,omitempty"`
	Use  TokenUse    `json:"token_use"`
	jwt.RegisteredClaims
}

// TokenManagerConfig carries the non-key token parameters.
type TokenManagerConfig struct {
	Issuer          string
	Audience        string
	AccessTTL       time.Duration
	VerificationTTL time.Duration
}

// TokenManager issues and validates RS256 tokens. Keys are loaded once and never mutated.
type TokenManager struct {
	privateKey      *rsa.PrivateKey
	publicKey       *rsa.PublicKey
	issuer          string
	audience        string
	accessTTL       time.Duration
	verificationTTL time.Duration
	now             func() time.Time
}

// LoadKeyPair reads PEM encoded RSA keys from disk.
func LoadKeyPair(privatePath, publicPath string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	privPEM, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("read private key: %w", err)
	}
	pubPEM, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read public key: %w", err)
	}
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse private key: %w", err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse public key: %w", err)
	}
	return priv, pub, nil
}

// NewTokenManager builds a new manager.
func NewTokenManager(priv *rsa.PrivateKey, pub *rsa.PublicKey, cfg TokenManagerConfig) (*TokenManager, error) {
	if priv == nil || pub == nil {
		return nil, errors.New("token manager requires a key pair")
	}
	if cfg.AccessTTL <= 0 {
		cfg.AccessTTL = 15 * time.Minute
	}
	if cfg.VerificationTTL <= 0 {
		cfg.VerificationTTL = 24 * time.Hour
	}
	return &TokenManager{
		privateKey:      priv,
		publicKey:       pub,
		issuer:          cfg.Issuer,
		audience:        cfg.Audience,
		accessTTL:       cfg.AccessTTL,
		verificationTTL: cfg.VerificationTTL,
		now:             time.Now,
	}, nil
}

// AccessTTL returns the configured access token lifetime.
func (tm *TokenManager) AccessTTL() time.Duration {
	return tm.accessTTL
}

// IssueAccessToken signs a short-lived token carrying the user's role.
func (tm *TokenManager) IssueAccessToken(user *domain.User) (string, error) {
	return tm.sign(user.ID, user.Role, TokenUseAccess, tm.accessTTL)
}

// IssueRefreshToken signs a 7 day token. It never carries a role.
func (tm *TokenManager) IssueRefreshToken(user *domain.User) (string, error) {
	return tm.sign(user.ID, "", TokenUseRefresh, RefreshTokenTTL)
}

// IssueVerificationToken signs an email verification token for the user.
func (tm *TokenManager) IssueVerificationToken(user *domain.User) (string, error) {
	return tm.sign(user.ID, "", TokenUseVerification, tm.verificationTTL)
}

// IssuePair issues an access and refresh token for the user.
func (tm *TokenManager) IssuePair(user *domain.User) (*domain.TokenPair, error) {
	access, err := tm.IssueAccessToken(user)
	if err != nil {
		return nil, err
	}
	refresh, err := tm.IssueRefreshToken(user)
	if err != nil {
		return nil, err
	}
	return &domain.TokenPair{
		AccessToken:  access,
		TokenType:    "Bearer",
		ExpiresIn:    int64(tm.accessTTL / time.Second),
		RefreshToken: refresh,
	}, nil
}

func (tm *TokenManager) sign(subject string, role domain.Role, use TokenUse, ttl time.Duration) (string, error) {
	now := tm.now()
	claims := &Claims{
		Role: role,
		Use:  use,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   subject,
			Issuer:    tm.issuer,
			Audience:  jwt.ClaimStrings{tm.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	return token.SignedString(tm.privateKey)
}

// Verify checks signature, issuer, audience and expiry.
func (tm *TokenManager) Verify(tokenStr string) (*Claims, error) {
	parsed, err := jwt.ParseWithClaims(tokenStr, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		return tm.publicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(tm.issuer),
		jwt.WithAudience(tm.audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(tm.now),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}

	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyAccess accepts only access tokens with a known role. Anything else
// fails closed.
func (tm *TokenManager) VerifyAccess(tokenStr string) (*Claims, error) {
	claims, err := tm.Verify(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Use != TokenUseAccess || !claims.Role.Valid() {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyRefresh accepts only role-less refresh tokens.
func (tm *TokenManager) VerifyRefresh(tokenStr string) (*Claims, error) {
	claims, err := tm.Verify(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Use != TokenUseRefresh || claims.Role != "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// VerifyVerification accepts only email verification tokens.
func (tm *TokenManager) VerifyVerification(tokenStr string) (*Claims, error) {
	claims, err := tm.Verify(tokenStr)
	if err != nil {
		return nil, err
	}
	if claims.Use != TokenUseVerification || claims.Role != "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// RemainingTTL returns how long the claims stay valid.
func (tm *TokenManager) RemainingTTL(claims *Claims) time.Duration {
	if claims == nil || claims.ExpiresAt == nil {
		return 0
	}
	remaining := claims.ExpiresAt.Time.Sub(tm.now())
	if remaining < 0 {
		return 0
	}
	return remaining
}
