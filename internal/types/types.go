package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	DisplayName  string    `json:"display_name"`
	EmailAddress string    `json:"email_address,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

type Match struct {
	Id        int       `json:"id"`
	UserAId   int       `json:"user_a_id"`
	UserBId   int       `json:"user_b_id"`
	CreatedAt time.Time `json:"created_at,omitempty"`
}
