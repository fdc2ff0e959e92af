// Package testmodels holds the fixture types shared by the scanner and module tests.
package testmodels

import (
	"context"
	"reflect"
	"time"

	"github.com/xraph/batis/orm"
	"github.com/xraph/batis/scan"
)

// User is a row of the users table.
type User struct {
	ID    int64  `db:"id"`
	Name  string `db:"name"`
	Email string `db:"email"`
	Created time.Time
}

// Account is a second aliasable row type.
type Account struct {
	ID     int64
	UserID int64 `db:"user_id"`
	Kind   string
}

// UserMapper is a mapper over the users table.
type UserMapper struct {
	CreateTable func(ctx context.Context) error                                 `sql:"CREATE TABLE IF NOT EXISTS users (id INTEGER PRIMARY KEY, name TEXT NOT NULL, email TEXT NOT NULL DEFAULT '')"`
	Insert      func(ctx context.Context, name, email string) (int64, error)    `sql:"INSERT INTO users (name, email) VALUES (?, ?)"`
	FindByID    func(ctx context.Context, id int64) (*User, error)              `sql:"SELECT id, name, email FROM users WHERE id = ?"`
	FindAll     func(ctx context.Context) ([]User, error)                       `sql:"SELECT id, name, email FROM users ORDER BY id"`
	Count       func(ctx context.Context) (int64, error)                        `sql:"SELECT COUNT(*) FROM users"`
	Rename      func(ctx context.Context, name string, id int64) (int64, error) `sql:"UPDATE users SET name = ? WHERE id = ?"`
}

// AccountMapper is a second mapper, used to check namespace scans.
type AccountMapper struct {
	FindByUser func(ctx context.Context, userID int64) ([]Account, error) `sql:"SELECT id, user_id, kind FROM accounts WHERE user_id = ?"`
}

// AuditInterceptor counts the statements it sees.
type AuditInterceptor struct {
	Seen []string
}

// Intercept implements orm.Interceptor.
func (a *AuditInterceptor) Intercept(ctx context.Context, inv *orm.Invocation, next orm.Handler) (any, error) {
	a.Seen = append(a.Seen, inv.StatementID)

	return next(ctx, inv)
}

// Types returns every exported type of the package.
func Types() []reflect.Type {
	return []reflect.Type{
		reflect.TypeOf(User{}),
		reflect.TypeOf(Account{}),
		reflect.TypeOf(UserMapper{}),
		reflect.TypeOf(AccountMapper{}),
		reflect.TypeOf(AuditInterceptor{}),
	}
}

// Register adds every exported type of the package to c.
func Register(c *scan.Catalog) error {
	return c.Register(Types()...)
}
