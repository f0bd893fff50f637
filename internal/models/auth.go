package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// Operator is an account allowed to administer the map service.
type Operator struct {
	bun.BaseModel `bun:"table:operators,alias:op"`
	ID            uuid.UUID  `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	Email         string     `bun:"email,unique,notnull" json:"email"`
	PasswordHash  string     `bun:"password_hash" json:"-"`
	TokenVersion  int        `bun:"token_version,notnull,default:0" json:"token_version"`
	Roles         []string   `bun:"roles,array" json:"roles"`
	Provider      string     `bun:"provider,notnull,default:'local'" json:"provider"`
	Name          string     `bun:"name" json:"name"`
	CreatedAt     time.Time  `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	LastLoginAt   *time.Time `bun:"last_login_at" json:"last_login_at"`
}

// OperatorSession is a stored refresh token, kept only as a hash.
type OperatorSession struct {
	bun.BaseModel `bun:"table:operator_sessions,alias:os"`
	ID            uuid.UUID `bun:"id,pk,type:uuid,default:gen_random_uuid()" json:"id"`
	OperatorID    uuid.UUID `bun:"operator_id,type:uuid,notnull" json:"operator_id"`
	JTI           string    `bun:"jti,notnull" json:"jti"`
	TokenHash     string    `bun:"token_hash,notnull" json:"-"`
	DeviceInfo    *string   `bun:"device_info" json:"device_info"`
	Revoked       bool      `bun:"revoked,notnull,default:false" json:"revoked"`
	CreatedAt     time.Time `bun:"created_at,notnull,default:current_timestamp" json:"created_at"`
	ExpiresAt     time.Time `bun:"expires_at,notnull" json:"expires_at"`
}
