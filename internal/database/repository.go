package database

// LedgerRepository is the persistence boundary the realtime broker depends
// on: account lookup for admission, plus the social ledger used to resolve
// mutual likes into matches. Like and match writes are idempotent so the
// broker can safely retry them.
type LedgerRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (User, error)
	UpdateAccount(params UpdateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	CreateLike(fromAccountId, toAccountId int) error
	LikeExists(fromAccountId, toAccountId int) bool
	CreateMatch(accountA, accountB int) (Match, error)
	GetMatchByAccounts(accountA, accountB int) (Match, error)
}
