package store

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"
)

// Tests run against SQLite through the same database/sql code paths the
// MariaDB driver uses in production, so no external database is needed.
const testSchema = `
CREATE TABLE groups (
	id TEXT PRIMARY KEY,
	name TEXT NOT NULL,
	created_at TIMESTAMP NOT NULL
);
CREATE TABLE messages (
	id INTEGER PRIMARY KEY AUTOINCREMENT,
	group_id TEXT NOT NULL REFERENCES groups(id),
	sender_name TEXT NOT NULL,
	message TEXT NOT NULL,
	is_anonymous BOOLEAN NOT NULL,
	created_at TIMESTAMP NOT NULL
);
`

func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := sql.Open("sqlite", filepath.Join(t.TempDir(), "groupcast.db"))
	require.NoError(t, err)
	// SQLite prefers a single writer.
	db.SetMaxOpenConns(1)

	_, err = db.Exec(testSchema)
	require.NoError(t, err)

	t.Cleanup(func() { db.Close() })
	return db
}

func newTestStore(t *testing.T) (*SQL, *sql.DB) {
	db := setupTestDB(t)
	return NewSQL(db, zerolog.Nop()), db
}

func TestCreateGroup(t *testing.T) {
	req := require.New(t)
	s, _ := newTestStore(t)

	g, err := s.CreateGroup(context.Background(), "general")
	req.NoError(err)
	req.NotEmpty(g.ID)
	req.Equal("general", g.Name)
	req.False(g.CreatedAt.IsZero())

	groups, err := s.Groups(context.Background())
	req.NoError(err)
	req.Len(groups, 1)
	req.Equal(g.ID, groups[0].ID)
}

func TestGroupsNewestFirst(t *testing.T) {
	req := require.New(t)
	s, db := newTestStore(t)

	base := time.Now().UTC().Add(-time.Hour)
	for i, name := range []string{"oldest", "middle", "newest"} {
		_, err := db.Exec("INSERT INTO groups (id, name, created_at) VALUES (?, ?, ?)",
			fmt.Sprintf("g-%d", i), name, base.Add(time.Duration(i)*time.Minute))
		req.NoError(err)
	}

	groups, err := s.Groups(context.Background())
	req.NoError(err)
	req.Len(groups, 3)
	req.Equal("newest", groups[0].Name)
	req.Equal("middle", groups[1].Name)
	req.Equal("oldest", groups[2].Name)
}

func TestGroupsEmpty(t *testing.T) {
	req := require.New(t)
	s, _ := newTestStore(t)

	groups, err := s.Groups(context.Background())
	req.NoError(err)
	req.NotNil(groups)
	req.Empty(groups)
}

func TestAppendMessageUnknownGroup(t *testing.T) {
	req := require.New(t)
	s, db := newTestStore(t)

	_, err := s.AppendMessage(context.Background(), "no-such-group", "Alice", "hi", false)
	req.ErrorIs(err, ErrUnknownGroup)

	// nothing may have been committed
	var count int
	req.NoError(db.QueryRow("SELECT COUNT(*) FROM messages").Scan(&count))
	req.Zero(count)
}

func TestAppendMessageAssignsIncreasingIDs(t *testing.T) {
	req := require.New(t)
	s, _ := newTestStore(t)

	g, err := s.CreateGroup(context.Background(), "general")
	req.NoError(err)

	var lastID int64
	for i := 0; i < 5; i++ {
		msg, err := s.AppendMessage(context.Background(), g.ID, "Alice", fmt.Sprintf("message %d", i), false)
		req.NoError(err)
		req.Greater(msg.ID, lastID, "ids must be strictly increasing")
		req.Equal(g.ID, msg.GroupID)
		lastID = msg.ID
	}
}

func TestAppendMessageRoundTrip(t *testing.T) {
	req := require.New(t)
	s, _ := newTestStore(t)

	g, err := s.CreateGroup(context.Background(), "general")
	req.NoError(err)

	sent, err := s.AppendMessage(context.Background(), g.ID, "Alice", "hello there", true)
	req.NoError(err)

	msgs, err := s.Messages(context.Background(), g.ID)
	req.NoError(err)
	req.Len(msgs, 1)
	req.Equal(sent.ID, msgs[0].ID)
	req.Equal("Alice", msgs[0].SenderName)
	req.Equal("hello there", msgs[0].Message)
	req.True(msgs[0].IsAnonymous)
	req.WithinDuration(sent.CreatedAt, msgs[0].CreatedAt, time.Second)
}

func TestMessagesOrderedByID(t *testing.T) {
	req := require.New(t)
	s, _ := newTestStore(t)

	g, err := s.CreateGroup(context.Background(), "general")
	req.NoError(err)

	// identical timestamps must not disturb id ordering
	for i := 0; i < 10; i++ {
		_, err := s.AppendMessage(context.Background(), g.ID, "Alice", fmt.Sprintf("message %d", i), false)
		req.NoError(err)
	}

	msgs, err := s.Messages(context.Background(), g.ID)
	req.NoError(err)
	req.Len(msgs, 10)
	for i := 1; i < len(msgs); i++ {
		req.Greater(msgs[i].ID, msgs[i-1].ID)
	}
}

func TestMessagesScopedToGroup(t *testing.T) {
	req := require.New(t)
	s, _ := newTestStore(t)

	g1, err := s.CreateGroup(context.Background(), "one")
	req.NoError(err)
	g2, err := s.CreateGroup(context.Background(), "two")
	req.NoError(err)

	_, err = s.AppendMessage(context.Background(), g1.ID, "Alice", "for one", false)
	req.NoError(err)
	_, err = s.AppendMessage(context.Background(), g2.ID, "Bob", "for two", false)
	req.NoError(err)

	msgs, err := s.Messages(context.Background(), g1.ID)
	req.NoError(err)
	req.Len(msgs, 1)
	req.Equal("for one", msgs[0].Message)
}

func TestMessagesUnknownGroupIsEmpty(t *testing.T) {
	req := require.New(t)
	s, _ := newTestStore(t)

	msgs, err := s.Messages(context.Background(), "no-such-group")
	req.NoError(err)
	req.NotNil(msgs)
	req.Empty(msgs)
}

func TestStoreUnavailableAfterClose(t *testing.T) {
	req := require.New(t)
	s, db := newTestStore(t)

	g, err := s.CreateGroup(context.Background(), "general")
	req.NoError(err)

	req.NoError(db.Close())

	_, err = s.AppendMessage(context.Background(), g.ID, "Alice", "hi", false)
	req.ErrorIs(err, ErrStoreUnavailable)

	_, err = s.Groups(context.Background())
	req.ErrorIs(err, ErrStoreUnavailable)
}

func TestConcurrentAppendsGetDistinctIDs(t *testing.T) {
	req := require.New(t)
	s, _ := newTestStore(t)

	g, err := s.CreateGroup(context.Background(), "general")
	req.NoError(err)

	const n = 10
	ids := make(chan int64, n)
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			msg, err := s.AppendMessage(context.Background(), g.ID, "Alice", fmt.Sprintf("concurrent %d", i), false)
			if err != nil {
				t.Errorf("concurrent append failed: %v", err)
				return
			}
			ids <- msg.ID
		}(i)
	}
	wg.Wait()
	close(ids)

	seen := make(map[int64]bool)
	for id := range ids {
		req.False(seen[id], "duplicate id %d", id)
		seen[id] = true
	}
	req.Len(seen, n)
}
