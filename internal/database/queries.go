package database

import (
	"database/sql"
	"time"
)

func (db *PgLedgerRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (display_name, email, password_hash, created_at) "+
			"VALUES ($1, $2, $3, $4) RETURNING id, display_name, email",
		params.DisplayName,
		params.EmailAddress,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.DisplayName,
		&u.EmailAddress,
	)

	return u, err
}

func (db *PgLedgerRepository) UpdateAccount(params UpdateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"UPDATE accounts SET display_name = $2, password_hash = $3, updated_at = $4 "+
			"WHERE id = $1 RETURNING id, display_name, email",
		params.UserId,
		params.DisplayName,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.DisplayName,
		&u.EmailAddress,
	)

	return u, err
}

func (db *PgLedgerRepository) GetAccountById(id int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, display_name, email, created_at, updated_at FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		id,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.DisplayName,
		&user.EmailAddress,
		&user.CreatedAt,
		&user.UpdatedAt,
	)

	return user, err
}

func (db *PgLedgerRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, display_name, email, password_hash FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.DisplayName,
		&user.EmailAddress,
		&user.PasswordHash,
	)

	return user, err
}

// CreateLike records a one-directional like. Re-recording the same like is
// a no-op so the broker can replay the call after a failure.
func (db *PgLedgerRepository) CreateLike(fromAccountId, toAccountId int) error {
	_, err := db.conn.Exec(
		"INSERT INTO likes (from_account_id, to_account_id, created_at) "+
			"VALUES ($1, $2, $3) ON CONFLICT (from_account_id, to_account_id) DO NOTHING",
		fromAccountId,
		toAccountId,
		time.Now().UTC(),
	)

	return err
}

func (db *PgLedgerRepository) LikeExists(fromAccountId, toAccountId int) bool {
	row := db.conn.QueryRow(
		"SELECT EXISTS (SELECT 1 FROM likes WHERE from_account_id = $1 AND to_account_id = $2)",
		fromAccountId,
		toAccountId,
	)

	var exists bool
	if err := row.Scan(&exists); err != nil {
		return false
	}

	return exists
}

// CreateMatch persists a match between two accounts. The pair is stored in
// normalized (low, high) order and guarded by a unique constraint, so
// creating the same match twice returns the existing row.
func (db *PgLedgerRepository) CreateMatch(accountA, accountB int) (Match, error) {
	low, high := normalizePair(accountA, accountB)

	_, err := db.conn.Exec(
		"INSERT INTO matches (account_a, account_b, created_at) "+
			"VALUES ($1, $2, $3) ON CONFLICT (account_a, account_b) DO NOTHING",
		low,
		high,
		time.Now().UTC(),
	)
	if err != nil {
		return Match{}, err
	}

	return db.GetMatchByAccounts(low, high)
}

func (db *PgLedgerRepository) GetMatchByAccounts(accountA, accountB int) (Match, error) {
	low, high := normalizePair(accountA, accountB)

	row := db.conn.QueryRow(
		"SELECT id, account_a, account_b, created_at FROM matches "+
			"WHERE account_a = $1 AND account_b = $2 LIMIT 1",
		low,
		high,
	)

	var m Match
	err := row.Scan(
		&m.Id,
		&m.AccountA,
		&m.AccountB,
		&m.CreatedAt,
	)
	if err == sql.ErrNoRows {
		return Match{}, err
	}

	return m, err
}

func normalizePair(a, b int) (int, int) {
	if a > b {
		return b, a
	}
	return a, b
}
