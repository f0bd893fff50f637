package auth

import (
	"crypto/rsa"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"os"
	"slices"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

type TokenKind string

const (
	AccessToken  TokenKind = "access"
	RefreshToken TokenKind = "refresh"
)

// RoleAdmin may trigger dataset refreshes.
const RoleAdmin = "admin"

var ErrInvalidToken = errors.New("invalid token")

// Claims is the payload of both access and refresh tokens.
type Claims struct {
	jwt.RegisteredClaims
	Kind       TokenKind `json:"typ"`
	Version    int       `json:"ver"`
	AuthMethod string    `json:"auth_method"`
	Roles      []string  `json:"roles,omitempty"`
}

func (c *Claims) HasRole(role string) bool {
	return c != nil && slices.Contains(c.Roles, role)
}

type JWTManager struct {
	privateKey *rsa.PrivateKey
	publicKey  *rsa.PublicKey
	issuer     string
}

type TokenPair struct {
	AccessToken  string
	RefreshToken string
	AccessExp    time.Time
	RefreshExp   time.Time
	RefreshJTI   string
}

// NewJWTManager reads an RS256 key pair from PEM files.
func NewJWTManager(privatePath, publicPath, issuer string) (*JWTManager, error) {
	privPem, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, fmt.Errorf("read private key: %w", err)
	}
	privKey, err := jwt.ParseRSAPrivateKeyFromPEM(privPem)
	if err != nil {
		return nil, fmt.Errorf("parse private key: %w", err)
	}

	pubPem, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, fmt.Errorf("read public key: %w", err)
	}
	pubKey, err := jwt.ParseRSAPublicKeyFromPEM(pubPem)
	if err != nil {
		return nil, fmt.Errorf("parse public key: %w", err)
	}

	return &JWTManager{privateKey: privKey, publicKey: pubKey, issuer: issuer}, nil
}

// NewJWTManagerFromKey builds a manager around an in-memory key.
func NewJWTManagerFromKey(key *rsa.PrivateKey, issuer string) *JWTManager {
	return &JWTManager{privateKey: key, publicKey: &key.PublicKey, issuer: issuer}
}

func (m *JWTManager) sign(subject string, kind TokenKind, ttl time.Duration, version int, authMethod string, roles []string) (string, string, time.Time, error) {
	now := time.Now().UTC()
	exp := now.Add(ttl)
	jti := uuid.NewString()

	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    m.issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        jti,
		},
		Kind:       kind,
		Version:    version,
		AuthMethod: authMethod,
		Roles:      roles,
	}

	tokenStr, err := jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(m.privateKey)
	if err != nil {
		return "", "", time.Time{}, err
	}
	return tokenStr, jti, exp, nil
}

// GenerateTokenPair creates an access and a refresh token for subject.
func (m *JWTManager) GenerateTokenPair(subject string, accessTTL, refreshTTL time.Duration, version int, authMethod string, roles []string) (*TokenPair, error) {
	access, _, accessExp, err := m.sign(subject, AccessToken, accessTTL, version, authMethod, roles)
	if err != nil {
		return nil, err
	}
	refresh, refreshJTI, refreshExp, err := m.sign(subject, RefreshToken, refreshTTL, version, authMethod, roles)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		AccessToken:  access,
		RefreshToken: refresh,
		AccessExp:    accessExp,
		RefreshExp:   refreshExp,
		RefreshJTI:   refreshJTI,
	}, nil
}

// Verify checks the RS256 signature, issuer, expiry and token kind.
func (m *JWTManager) Verify(tokenStr string, kind TokenKind) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenStr, claims, func(token *jwt.Token) (interface{}, error) {
		return m.publicKey, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodRS256.Alg()}),
		jwt.WithIssuer(m.issuer),
		jwt.WithLeeway(5*time.Second),
	)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}
	if claims.Kind != kind {
		return nil, fmt.Errorf("%w: expected %s token, got %q", ErrInvalidToken, kind, claims.Kind)
	}
	return claims, nil
}

// HashToken produces SHA256 hex of the token for storage
func HashToken(token string) string {
	h := sha256.Sum256([]byte(token))
	return hex.EncodeToString(h[:])
}
