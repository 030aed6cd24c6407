package account

import "time"

type Account struct {
	ID           int64     `db:"id" json:"-"`
	Login        string    `db:"login" json:"login"`
	PasswordHash string    `db:"password_hash" json:"-"`
	CreatedAt    time.Time `db:"created_at" json:"-"`
}
