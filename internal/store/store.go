// Package store is the durable record of groups and messages and the single
// source of truth for message ordering. The auto-increment message id is the
// order key; callers must never rely on wall-clock timestamps, which may
// collide.
package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"groupcast/internal/model"
)

var (
	// ErrUnknownGroup means the target group does not exist.
	ErrUnknownGroup = errors.New("unknown group")
	// ErrStoreUnavailable means the backing store could not be reached or
	// failed while committing. Transient; not retried here.
	ErrStoreUnavailable = errors.New("store unavailable")
)

// Store is the persistence contract consumed by the pipeline and handlers.
type Store interface {
	CreateGroup(ctx context.Context, name string) (model.Group, error)
	Groups(ctx context.Context) ([]model.Group, error)
	AppendMessage(ctx context.Context, groupID, senderName, text string, anonymous bool) (model.Message, error)
	Messages(ctx context.Context, groupID string) ([]model.Message, error)
}

// SQL implements Store on top of database/sql.
type SQL struct {
	db  *sql.DB
	log zerolog.Logger
}

func NewSQL(db *sql.DB, log zerolog.Logger) *SQL {
	return &SQL{db: db, log: log.With().Str("component", "store").Logger()}
}

// CreateGroup inserts a new group with a generated id.
func (s *SQL) CreateGroup(ctx context.Context, name string) (model.Group, error) {
	g := model.Group{
		ID:        uuid.NewString(),
		Name:      name,
		CreatedAt: time.Now().UTC(),
	}

	_, err := s.db.ExecContext(ctx,
		"INSERT INTO groups (id, name, created_at) VALUES (?, ?, ?)",
		g.ID, g.Name, g.CreatedAt)
	if err != nil {
		return model.Group{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	s.log.Info().Str("group_id", g.ID).Str("name", g.Name).Msg("group created")
	return g, nil
}

// Groups returns all groups, newest first.
func (s *SQL) Groups(ctx context.Context) ([]model.Group, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, created_at FROM groups ORDER BY created_at DESC")
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var groups []model.Group
	for rows.Next() {
		var g model.Group
		if err := rows.Scan(&g.ID, &g.Name, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		groups = append(groups, g)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if groups == nil {
		groups = []model.Group{}
	}
	return groups, nil
}

// AppendMessage commits one message row and returns it with the assigned id.
// The whole operation runs in a transaction: either a fully-formed row is
// committed, or nothing is. The group-existence check shares the transaction
// so ErrUnknownGroup is reported deterministically even when the schema
// carries no foreign key.
func (s *SQL) AppendMessage(ctx context.Context, groupID, senderName, text string, anonymous bool) (model.Message, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return model.Message{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	defer tx.Rollback()

	var exists bool
	err = tx.QueryRowContext(ctx,
		"SELECT EXISTS(SELECT 1 FROM groups WHERE id = ?)", groupID).Scan(&exists)
	if err != nil {
		return model.Message{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	if !exists {
		return model.Message{}, ErrUnknownGroup
	}

	msg := model.Message{
		GroupID:     groupID,
		SenderName:  senderName,
		Message:     text,
		IsAnonymous: anonymous,
		CreatedAt:   time.Now().UTC(),
	}

	result, err := tx.ExecContext(ctx,
		"INSERT INTO messages (group_id, sender_name, message, is_anonymous, created_at) VALUES (?, ?, ?, ?, ?)",
		msg.GroupID, msg.SenderName, msg.Message, msg.IsAnonymous, msg.CreatedAt)
	if err != nil {
		return model.Message{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	msg.ID, err = result.LastInsertId()
	if err != nil {
		return model.Message{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if err := tx.Commit(); err != nil {
		return model.Message{}, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	s.log.Debug().Int64("message_id", msg.ID).Str("group_id", groupID).Msg("message committed")
	return msg, nil
}

// Messages returns the full history of a group ordered by id ascending.
// An unknown group yields an empty history.
func (s *SQL) Messages(ctx context.Context, groupID string) ([]model.Message, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT id, sender_name, message, is_anonymous, created_at FROM messages WHERE group_id = ? ORDER BY id ASC",
		groupID)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var msgs []model.Message
	for rows.Next() {
		msg := model.Message{GroupID: groupID}
		if err := rows.Scan(&msg.ID, &msg.SenderName, &msg.Message, &msg.IsAnonymous, &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
		}
		msgs = append(msgs, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrStoreUnavailable, err)
	}

	if msgs == nil {
		msgs = []model.Message{}
	}
	return msgs, nil
}
