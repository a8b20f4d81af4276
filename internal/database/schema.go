package database

// Steps is the ordered schema history. Never reorder or edit a released step;
// append a new one instead.
func Steps() []Step {
	return []Step{
		{Version: "0001_create_users", Apply: Exec(`
			CREATE TABLE IF NOT EXISTS users (
				tg_id BIGINT PRIMARY KEY,
				balance NUMERIC(18, 2) NOT NULL DEFAULT 0,
				referrer_id BIGINT,
				activated BOOLEAN NOT NULL DEFAULT FALSE,
				phone TEXT,
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
				last_bonus_at TIMESTAMPTZ,
				banned BOOLEAN NOT NULL DEFAULT FALSE
			);
		`)},

		// users tables created before these fields existed
		{Version: "0002_users_referrer_id", Apply: AddColumn("users", "referrer_id", "BIGINT")},
		{Version: "0003_users_activated", Apply: AddColumn("users", "activated", "BOOLEAN NOT NULL DEFAULT FALSE")},
		{Version: "0004_users_phone", Apply: AddColumn("users", "phone", "TEXT")},
		{Version: "0005_users_created_at", Apply: AddColumn("users", "created_at", "TIMESTAMPTZ NOT NULL DEFAULT NOW()")},
		{Version: "0006_users_last_bonus_at", Apply: AddColumn("users", "last_bonus_at", "TIMESTAMPTZ")},
		{Version: "0007_users_banned", Apply: AddColumn("users", "banned", "BOOLEAN NOT NULL DEFAULT FALSE")},
		{Version: "0008_users_balance", Apply: AddColumn("users", "balance", "NUMERIC(18, 2) NOT NULL DEFAULT 0")},

		{Version: "0009_users_indexes", Apply: Exec(`
			CREATE UNIQUE INDEX IF NOT EXISTS users_phone_key ON users (phone)
				WHERE phone IS NOT NULL AND phone <> '';
			CREATE INDEX IF NOT EXISTS users_referrer_activated_idx ON users (referrer_id)
				WHERE activated AND referrer_id IS NOT NULL;
			CREATE INDEX IF NOT EXISTS users_created_at_idx ON users (created_at);
		`)},

		{Version: "0010_create_withdrawals", Apply: Exec(`
			CREATE TABLE IF NOT EXISTS withdrawals (
				id BIGSERIAL PRIMARY KEY,
				tg_id BIGINT NOT NULL REFERENCES users (tg_id),
				method TEXT NOT NULL,
				details TEXT NOT NULL,
				amount NUMERIC(18, 2) NOT NULL,
				status TEXT NOT NULL DEFAULT 'new',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS withdrawals_new_idx ON withdrawals (id) WHERE status = 'new';
		`)},

		{Version: "0011_create_task_submissions", Apply: Exec(`
			CREATE TABLE IF NOT EXISTS task_submissions (
				id BIGSERIAL PRIMARY KEY,
				tg_id BIGINT NOT NULL REFERENCES users (tg_id),
				task_id TEXT NOT NULL,
				status TEXT NOT NULL DEFAULT 'pending',
				proof_file_id TEXT NOT NULL DEFAULT '',
				proof_caption TEXT NOT NULL DEFAULT '',
				created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
			);
			CREATE INDEX IF NOT EXISTS task_submissions_owner_task_idx ON task_submissions (tg_id, task_id, id DESC);
			CREATE INDEX IF NOT EXISTS task_submissions_pending_idx ON task_submissions (id) WHERE status = 'pending';
		`)},

		{Version: "0012_withdrawals_reviewed_at", Apply: AddColumn("withdrawals", "reviewed_at", "TIMESTAMPTZ")},
		{Version: "0013_task_submissions_reviewed_at", Apply: AddColumn("task_submissions", "reviewed_at", "TIMESTAMPTZ")},

		{Version: "0014_status_checks", Apply: Exec(`
			ALTER TABLE withdrawals DROP CONSTRAINT IF EXISTS withdrawals_status_check;
			ALTER TABLE withdrawals ADD CONSTRAINT withdrawals_status_check
				CHECK (status IN ('new', 'approved', 'rejected'));
			ALTER TABLE task_submissions DROP CONSTRAINT IF EXISTS task_submissions_status_check;
			ALTER TABLE task_submissions ADD CONSTRAINT task_submissions_status_check
				CHECK (status IN ('pending', 'approved', 'rejected'));
		`)},
	}
}
