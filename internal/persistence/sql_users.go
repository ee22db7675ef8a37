package persistence

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/petrijr/formflow/pkg/api"
)

// SQLUserStore is a UserStore backed by two tables:
//
//	users(id, email UNIQUE)
//	user_subscriptions(user_id, list_id) PRIMARY KEY (user_id, list_id)
type SQLUserStore struct {
	db      *sql.DB
	dialect Dialect
}

// Ensure SQLUserStore implements UserStore.
var _ api.UserStore = (*SQLUserStore)(nil)

// NewSQLUserStore initializes the required schema in the given database
// and returns a new SQLUserStore.
func NewSQLUserStore(ctx context.Context, db *sql.DB, dialect Dialect) (*SQLUserStore, error) {
	s := &SQLUserStore{db: db, dialect: dialect}
	if err := s.initSchema(ctx); err != nil {
		return nil, err
	}
	return s, nil
}

func (s *SQLUserStore) initSchema(ctx context.Context) error {
	stmts := []string{
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS users (
			id %s,
			email %s NOT NULL UNIQUE
		)`, s.dialect.AutoIncrementPK, s.dialect.KeyText),
		fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS user_subscriptions (
			user_id BIGINT NOT NULL,
			list_id %s NOT NULL,
			PRIMARY KEY (user_id, list_id)
		)`, s.dialect.KeyText),
	}
	for _, stmt := range stmts {
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return err
		}
	}
	return nil
}

func (s *SQLUserStore) CreateOrGetUser(ctx context.Context, email string) (int64, error) {
	id, err := s.findUser(ctx, email)
	if err == nil {
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return 0, err
	}

	rows := NewSQLRowStore(s.db, s.dialect)
	id, insertErr := rows.InsertRow(ctx, "users", "id", map[string]any{"email": email})
	if insertErr == nil {
		return id, nil
	}

	// A concurrent request may have created the same user in between.
	if id, err := s.findUser(ctx, email); err == nil {
		return id, nil
	}
	return 0, insertErr
}

func (s *SQLUserStore) findUser(ctx context.Context, email string) (int64, error) {
	var id int64
	err := s.db.QueryRowContext(ctx,
		"SELECT id FROM users WHERE email = "+s.dialect.Placeholder(1), email).Scan(&id)
	return id, err
}

func (s *SQLUserStore) SubscribeUser(ctx context.Context, userID int64, listID string) error {
	var one int
	err := s.db.QueryRowContext(ctx,
		"SELECT 1 FROM user_subscriptions WHERE user_id = "+s.dialect.Placeholder(1)+
			" AND list_id = "+s.dialect.Placeholder(2),
		userID, listID,
	).Scan(&one)
	if err == nil {
		return nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return err
	}

	_, err = s.db.ExecContext(ctx,
		"INSERT INTO user_subscriptions (user_id, list_id) VALUES ("+s.dialect.Placeholders(1, 2)+")",
		userID, listID,
	)
	return err
}

// Subscriptions returns the list ids a user is subscribed to.
func (s *SQLUserStore) Subscriptions(ctx context.Context, userID int64) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT list_id FROM user_subscriptions WHERE user_id = "+s.dialect.Placeholder(1)+" ORDER BY list_id",
		userID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var lists []string
	for rows.Next() {
		var l string
		if err := rows.Scan(&l); err != nil {
			return nil, err
		}
		lists = append(lists, l)
	}
	return lists, rows.Err()
}
