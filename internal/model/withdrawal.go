package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Withdrawal is a cash-out request waiting for, or past, admin review.
type Withdrawal struct {
	ID         int64           `db:"id" json:"id"`
	UserID     int64           `db:"tg_id" json:"user_id"`
	Method     string          `db:"method" json:"method"`
	Details    string          `db:"details" json:"details"`
	Amount     decimal.Decimal `db:"amount" json:"amount"`
	Status     Status          `db:"status" json:"status"`
	CreatedAt  time.Time       `db:"created_at" json:"created_at"`
	ReviewedAt *time.Time      `db:"reviewed_at" json:"reviewed_at"`
}
