package model

type Stats struct {
	TotalUsers         int64 `db:"total_users" json:"total_users"`
	ActivatedUsers     int64 `db:"activated_users" json:"activated_users"`
	WithPhone          int64 `db:"with_phone" json:"with_phone"`
	BannedUsers        int64 `db:"banned_users" json:"banned_users"`
	New24h             int64 `db:"new_24h" json:"new_24h"`
	PendingWithdrawals int64 `db:"pending_withdrawals" json:"pending_withdrawals"`
	PendingSubmissions int64 `db:"pending_submissions" json:"pending_submissions"`
}

type ReferrerCount struct {
	ReferrerID int64 `db:"referrer_id" json:"referrer_id"`
	Count      int64 `db:"cnt" json:"activated_referrals"`
}
