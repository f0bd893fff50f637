package services

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net"
	"strings"
	"time"

	"sipeta-bknd/internal/auth"
	"sipeta-bknd/internal/config"
	"sipeta-bknd/internal/logger"
	"sipeta-bknd/internal/models"

	"github.com/go-ldap/ldap/v3"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrSessionNotFound    = errors.New("session not found or revoked")
)

// maxSessions is the number of live refresh tokens kept per operator.
const maxSessions = 2

// defaultRole is granted to operators provisioned from LDAP.
const defaultRole = "viewer"

type AuthService struct {
	db   *bun.DB
	jwt  *auth.JWTManager
	cfg  *config.Config
	logr *logger.Logger
}

func NewAuthService(db *bun.DB, jwt *auth.JWTManager, cfg *config.Config, logr *logger.Logger) *AuthService {
	return &AuthService{db: db, jwt: jwt, cfg: cfg, logr: logr}
}

// HashPassword uses bcrypt
func HashPassword(password string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(b), err
}

func ComparePassword(hash, password string) error {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
}

type OperatorInfo struct {
	ID       string   `json:"id"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	Provider string   `json:"provider"`
	Roles    []string `json:"roles"`
}

func operatorInfo(op *models.Operator) *OperatorInfo {
	return &OperatorInfo{
		ID:       op.ID.String(),
		Email:    op.Email,
		Name:     op.Name,
		Provider: op.Provider,
		Roles:    op.Roles,
	}
}

// CreateOperator adds a local account. Used by the inspect CLI to seed the
// first admin.
func (s *AuthService) CreateOperator(ctx context.Context, email, name, password string, roles []string) (*OperatorInfo, error) {
	hash, err := HashPassword(password)
	if err != nil {
		return nil, err
	}
	op := models.Operator{
		Email:        strings.ToLower(strings.TrimSpace(email)),
		Name:         name,
		PasswordHash: hash,
		Roles:        roles,
		Provider:     "local",
	}
	if _, err := s.db.NewInsert().Model(&op).Returning("*").Exec(ctx); err != nil {
		return nil, fmt.Errorf("create operator: %w", err)
	}
	return operatorInfo(&op), nil
}

// LoginLocal checks a bcrypt password and opens a session.
func (s *AuthService) LoginLocal(ctx context.Context, email, password, deviceInfo string) (*auth.TokenPair, *OperatorInfo, error) {
	var op models.Operator
	err := s.db.NewSelect().Model(&op).Where("email = ?", strings.ToLower(strings.TrimSpace(email))).Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil, ErrInvalidCredentials
		}
		return nil, nil, err
	}
	if op.PasswordHash == "" {
		return nil, nil, fmt.Errorf("account not configured for local login")
	}
	if err := ComparePassword(op.PasswordHash, password); err != nil {
		return nil, nil, ErrInvalidCredentials
	}

	pair, err := s.openSession(ctx, &op, "local", deviceInfo)
	if err != nil {
		return nil, nil, err
	}
	return pair, operatorInfo(&op), nil
}

// ldapUsername strips the configured "@domain" suffix, case-insensitively.
func ldapUsername(user, domain string) string {
	user = strings.TrimSpace(user)
	if domain == "" {
		return user
	}
	suffix := "@" + strings.ToLower(domain)
	if strings.HasSuffix(strings.ToLower(user), suffix) {
		return user[:len(user)-len(suffix)]
	}
	return user
}

// LoginLDAP binds as the user, reads the directory entry and provisions
// an operator record on first login.
func (s *AuthService) LoginLDAP(ctx context.Context, ldapUser, ldapPass, deviceInfo string) (*auth.TokenPair, *OperatorInfo, error) {
	username := ldapUsername(ldapUser, s.cfg.LDAPUserDomain)
	if username == "" || ldapPass == "" {
		return nil, nil, ErrInvalidCredentials
	}

	l, err := ldap.DialURL(s.cfg.LDAPServer, ldap.DialWithDialer(&net.Dialer{Timeout: 10 * time.Second}))
	if err != nil {
		s.logr.Error("LDAP dial failed", zap.Error(err), zap.String("server", s.cfg.LDAPServer))
		return nil, nil, fmt.Errorf("ldap connection failed")
	}
	defer func() {
		if closeErr := l.Close(); closeErr != nil {
			s.logr.Debug("LDAP close error", zap.Error(closeErr))
		}
	}()
	l.SetTimeout(30 * time.Second)

	bindDN := username
	if s.cfg.LDAPUserDomain != "" {
		bindDN = fmt.Sprintf("%s@%s", username, strings.ToUpper(s.cfg.LDAPUserDomain))
	}
	if err = l.Bind(bindDN, ldapPass); err != nil {
		s.logr.Warn("LDAP bind failed", zap.String("username", username))
		return nil, nil, ErrInvalidCredentials
	}

	sr, err := l.Search(ldap.NewSearchRequest(
		s.cfg.LDAPBaseDN,
		ldap.ScopeWholeSubtree,
		ldap.NeverDerefAliases,
		0, 0, false,
		fmt.Sprintf("(sAMAccountName=%s)", ldap.EscapeFilter(username)),
		[]string{"cn", "mail", "displayName"},
		nil,
	))
	if err != nil {
		s.logr.Error("LDAP search failed", zap.Error(err), zap.String("username", username))
		return nil, nil, fmt.Errorf("user lookup failed")
	}
	if len(sr.Entries) == 0 {
		s.logr.Warn("LDAP: no entry found", zap.String("username", username))
		return nil, nil, fmt.Errorf("user not found in directory")
	}

	entry := sr.Entries[0]
	mail := strings.ToLower(entry.GetAttributeValue("mail"))
	if mail == "" {
		return nil, nil, fmt.Errorf("user account missing email")
	}
	name := entry.GetAttributeValue("displayName")
	if name == "" {
		name = entry.GetAttributeValue("cn")
	}
	if name == "" {
		name = username
	}

	op, err := s.provisionLDAP(ctx, mail, name)
	if err != nil {
		return nil, nil, err
	}

	pair, err := s.openSession(ctx, op, "ldap", deviceInfo)
	if err != nil {
		return nil, nil, err
	}
	s.logr.Info("LDAP login successful", zap.String("operator_id", op.ID.String()), zap.String("email", mail))
	return pair, operatorInfo(op), nil
}

func (s *AuthService) provisionLDAP(ctx context.Context, mail, name string) (*models.Operator, error) {
	var op models.Operator
	err := s.db.NewSelect().Model(&op).Where("email = ?", mail).Scan(ctx)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		op = models.Operator{Email: mail, Provider: "ldap", Name: name, Roles: []string{defaultRole}}
		if _, err := s.db.NewInsert().Model(&op).Returning("*").Exec(ctx); err != nil {
			s.logr.Error("failed to create operator", zap.Error(err), zap.String("email", mail))
			return nil, fmt.Errorf("failed to create operator account")
		}
		s.logr.Info("created LDAP operator", zap.String("email", mail), zap.String("id", op.ID.String()))
	case err != nil:
		return nil, fmt.Errorf("load operator: %w", err)
	case op.Provider != "ldap":
		op.Provider = "ldap"
		_, _ = s.db.NewUpdate().Model(&op).Column("provider").WherePK().Exec(ctx)
	}
	return &op, nil
}

func (s *AuthService) openSession(ctx context.Context, op *models.Operator, method, deviceInfo string) (*auth.TokenPair, error) {
	now := time.Now().UTC()
	op.LastLoginAt = &now
	_, _ = s.db.NewUpdate().Model(op).Column("last_login_at").WherePK().Exec(ctx)

	pair, err := s.jwt.GenerateTokenPair(op.ID.String(), s.cfg.AccessTokenTTL, s.cfg.RefreshTokenTTL, op.TokenVersion, method, op.Roles)
	if err != nil {
		return nil, fmt.Errorf("generate tokens: %w", err)
	}
	if err := s.storeSession(ctx, op.ID, pair, deviceInfo); err != nil {
		s.logr.Error("failed to store session", zap.Error(err), zap.String("operator_id", op.ID.String()))
		return nil, fmt.Errorf("failed to store session")
	}
	return pair, nil
}

// storeSession saves the refresh token hash and keeps at most maxSessions
// live sessions per operator, dropping the oldest.
func (s *AuthService) storeSession(ctx context.Context, operatorID uuid.UUID, pair *auth.TokenPair, deviceInfo string) error {
	_, _ = s.db.NewDelete().Model((*models.OperatorSession)(nil)).
		Where("operator_id = ? AND expires_at < now()", operatorID).
		Exec(ctx)

	count, err := s.db.NewSelect().Model((*models.OperatorSession)(nil)).
		Where("operator_id = ? AND revoked = false AND expires_at > now()", operatorID).
		Count(ctx)
	if err == nil && count >= maxSessions {
		_, _ = s.db.NewDelete().Model((*models.OperatorSession)(nil)).
			Where("id IN (?)", s.db.NewSelect().Model((*models.OperatorSession)(nil)).
				Column("id").
				Where("operator_id = ? AND revoked = false AND expires_at > now()", operatorID).
				Order("created_at ASC").
				Limit(count-maxSessions+1)).
			Exec(ctx)
	}

	sess := models.OperatorSession{
		OperatorID: operatorID,
		JTI:        pair.RefreshJTI,
		TokenHash:  auth.HashToken(pair.RefreshToken),
		DeviceInfo: &deviceInfo,
		CreatedAt:  time.Now().UTC(),
		ExpiresAt:  pair.RefreshExp,
	}
	_, err = s.db.NewInsert().Model(&sess).Exec(ctx)
	return err
}

// Refresh rotates a refresh token: the presented one is revoked and a new
// pair is issued.
func (s *AuthService) Refresh(ctx context.Context, refreshToken, deviceInfo string) (*auth.TokenPair, error) {
	claims, err := s.jwt.Verify(refreshToken, auth.RefreshToken)
	if err != nil {
		return nil, err
	}

	var sess models.OperatorSession
	err = s.db.NewSelect().Model(&sess).
		Where("jti = ? AND token_hash = ? AND revoked = false AND expires_at > now()", claims.ID, auth.HashToken(refreshToken)).
		Scan(ctx)
	if err != nil {
		return nil, ErrSessionNotFound
	}

	var op models.Operator
	if err := s.db.NewSelect().Model(&op).Where("id = ?", sess.OperatorID).Scan(ctx); err != nil {
		return nil, fmt.Errorf("operator not found")
	}

	sess.Revoked = true
	_, _ = s.db.NewUpdate().Model(&sess).Column("revoked").WherePK().Exec(ctx)

	pair, err := s.jwt.GenerateTokenPair(op.ID.String(), s.cfg.AccessTokenTTL, s.cfg.RefreshTokenTTL, op.TokenVersion, "refresh", op.Roles)
	if err != nil {
		return nil, err
	}
	if err := s.storeSession(ctx, op.ID, pair, deviceInfo); err != nil {
		return nil, err
	}
	return pair, nil
}

// Logout revokes the session behind a refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.jwt.Verify(refreshToken, auth.RefreshToken)
	if err != nil {
		return err
	}
	_, err = s.db.NewUpdate().Model((*models.OperatorSession)(nil)).
		Set("revoked = true").
		Where("jti = ?", claims.ID).
		Exec(ctx)
	return err
}

func (s *AuthService) CheckTokenVersion(ctx context.Context, operatorID string, tokenVersion int) (bool, error) {
	id, err := uuid.Parse(operatorID)
	if err != nil {
		return false, nil
	}
	var op models.Operator
	err = s.db.NewSelect().Model(&op).Column("token_version").Where("id = ?", id).Scan(ctx)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return op.TokenVersion == tokenVersion, nil
}
