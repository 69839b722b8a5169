package database

import "time"

type User struct {
	Id           int
	DisplayName  string
	EmailAddress string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

type Like struct {
	Id            int
	FromAccountId int
	ToAccountId   int
	CreatedAt     time.Time
}

type Match struct {
	Id        int
	AccountA  int
	AccountB  int
	CreatedAt time.Time
}

type CreateAccountParams struct {
	DisplayName  string
	EmailAddress string
	PasswordHash string
}

type UpdateAccountParams struct {
	UserId       int
	DisplayName  string
	PasswordHash string
}
