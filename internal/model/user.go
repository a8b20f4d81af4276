package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// User is a messaging-platform account. ID is the platform's user id.
type User struct {
	ID          int64           `db:"tg_id" json:"user_id"`
	Balance     decimal.Decimal `db:"balance" json:"balance"`
	ReferrerID  *int64          `db:"referrer_id" json:"referrer_id"`
	Activated   bool            `db:"activated" json:"activated"`
	Phone       *string         `db:"phone" json:"phone"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
	LastBonusAt *time.Time      `db:"last_bonus_at" json:"last_bonus_at"`
	Banned      bool            `db:"banned" json:"banned"`
}

// HasPhone reports whether a non-empty phone is attached.
func (u *User) HasPhone() bool {
	return u.Phone != nil && *u.Phone != ""
}
