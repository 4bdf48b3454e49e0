package entity

import (
	"time"

	"github.com/uptrace/bun"
)

// User is a marketplace account. Buyers and sellers share the same record;
// admin authority is resolved from configuration, never stored here.
type User struct {
	bun.BaseModel `bun:"table:users,alias:u"`

	ID           int64      `bun:",pk,autoincrement" json:"id"`
	Name         string     `bun:"name" json:"name"`
	Email        string     `bun:"email" json:"email"`
	PasswordHash string     `bun:"password_hash" json:"-"`
	OTP          string     `bun:"otp" json:"-"`
	OTPExpiresAt *time.Time `bun:"otp_expires_at,nullzero" json:"-"`
	IsVerified   bool       `bun:"is_verified" json:"is_verified"`
	CreatedAt    time.Time  `bun:"created_at,nullzero,notnull,default:CURRENT_TIMESTAMP" json:"created_at"`
	UpdatedAt    time.Time  `bun:"updated_at,nullzero" json:"updated_at"`
}
