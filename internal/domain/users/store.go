package users

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// Dialect selects placeholder and insert syntax
type Dialect int

const (
	Postgres Dialect = iota
	MySQL
)

// DialectFor maps a database/sql driver name to a dialect
func DialectFor(driver string) Dialect {
	if strings.EqualFold(driver, "mysql") {
		return MySQL
	}
	return Postgres
}

func (d Dialect) String() string {
	if d == MySQL {
		return "mysql"
	}
	return "postgres"
}

type queries struct {
	list   string
	get    string
	insert string
}

var dialectQueries = map[Dialect]queries{
	Postgres: {
		list:   "SELECT id, name, email FROM users ORDER BY id",
		get:    "SELECT id, name, email FROM users WHERE id = $1",
		insert: "INSERT INTO users (name, email) VALUES ($1, $2) RETURNING id",
	},
	MySQL: {
		list:   "SELECT id, name, email FROM users ORDER BY id",
		get:    "SELECT id, name, email FROM users WHERE id = ?",
		insert: "INSERT INTO users (name, email) VALUES (?, ?)",
	},
}

// Store reads and writes users
type Store struct {
	db      *sql.DB
	dialect Dialect
	q       queries
}

// NewStore creates a store over db. Pass a db opened through sqltrace to
// get a span per statement.
func NewStore(db *sql.DB, dialect Dialect) *Store {
	return &Store{db: db, dialect: dialect, q: dialectQueries[dialect]}
}

// Dialect returns the store's SQL dialect
func (s *Store) Dialect() Dialect { return s.dialect }

// List returns all users ordered by ID
func (s *Store) List(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, s.q.list)
	if err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	defer rows.Close()

	users := make([]User, 0)
	for rows.Next() {
		var u User
		if err := rows.Scan(&u.ID, &u.Name, &u.Email); err != nil {
			return nil, fmt.Errorf("scan user: %w", err)
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list users: %w", err)
	}
	return users, nil
}

// Get returns the user with id, or ErrNotFound
func (s *Store) Get(ctx context.Context, id int64) (User, error) {
	var u User
	err := s.db.QueryRowContext(ctx, s.q.get, id).Scan(&u.ID, &u.Name, &u.Email)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return User{}, ErrNotFound
	case err != nil:
		return User{}, fmt.Errorf("get user %d: %w", id, err)
	}
	return u, nil
}

// Create inserts a user and returns it with its assigned ID
func (s *Store) Create(ctx context.Context, name, email string) (User, error) {
	u := User{Name: name, Email: email}

	if s.dialect == MySQL {
		res, err := s.db.ExecContext(ctx, s.q.insert, name, email)
		if err != nil {
			return User{}, fmt.Errorf("create user: %w", err)
		}
		if u.ID, err = res.LastInsertId(); err != nil {
			return User{}, fmt.Errorf("create user: %w", err)
		}
		return u, nil
	}

	if err := s.db.QueryRowContext(ctx, s.q.insert, name, email).Scan(&u.ID); err != nil {
		return User{}, fmt.Errorf("create user: %w", err)
	}
	return u, nil
}
