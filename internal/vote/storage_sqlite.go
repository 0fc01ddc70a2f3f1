package vote

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/we-are-mortensen/meet-artist-vote-app/internal/poll"
)

// OpenSQLite opens a modernc sqlite database. A single connection is kept so
// ":memory:" databases survive between calls.
func OpenSQLite(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS polls (
    id TEXT PRIMARY KEY,
    question TEXT NOT NULL DEFAULT '',
    status TEXT NOT NULL DEFAULT 'voting',
    round INTEGER NOT NULL DEFAULT 1,
    options_source TEXT NOT NULL,
    correct_option_id TEXT NOT NULL DEFAULT '',
    options TEXT NOT NULL,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);

CREATE TABLE IF NOT EXISTS poll_votes (
    poll_id TEXT NOT NULL,
    voter_id TEXT NOT NULL,
    selected_option_id TEXT NOT NULL,
    cast_at INTEGER NOT NULL,
    UNIQUE (poll_id, voter_id)
);

CREATE INDEX IF NOT EXISTS idx_poll_votes_poll_cast ON poll_votes(poll_id, cast_at);
`

func MigrateSQLite(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("migrate sqlite: %w", err)
	}
	return nil
}

type SQLiteStore struct {
	db *sql.DB
}

func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db}
}

func (s *SQLiteStore) SaveVote(ctx context.Context, pollID string, v poll.Vote) error {
	_, err := s.db.ExecContext(ctx, `
        INSERT INTO poll_votes(poll_id, voter_id, selected_option_id, cast_at)
        VALUES(?,?,?,?)
        ON CONFLICT (poll_id, voter_id) DO UPDATE
        SET selected_option_id = excluded.selected_option_id, cast_at = excluded.cast_at
    `, pollID, v.VoterID, v.SelectedOptionID, v.Timestamp)
	if err != nil {
		return fmt.Errorf("save vote: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadVotes(ctx context.Context, pollID string) ([]poll.Vote, error) {
	rows, err := s.db.QueryContext(ctx, `
        SELECT voter_id, selected_option_id, cast_at
        FROM poll_votes
        WHERE poll_id = ?
        ORDER BY cast_at ASC
    `, pollID)
	if err != nil {
		return nil, fmt.Errorf("load votes: %w", err)
	}
	defer rows.Close()

	votes := make([]poll.Vote, 0)
	for rows.Next() {
		var v poll.Vote
		if err := rows.Scan(&v.VoterID, &v.SelectedOptionID, &v.Timestamp); err != nil {
			return nil, fmt.Errorf("load votes: %w", err)
		}
		votes = append(votes, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("load votes: %w", err)
	}
	return votes, nil
}

func (s *SQLiteStore) SavePoll(ctx context.Context, state poll.PollState) error {
	options, err := json.Marshal(state.Options)
	if err != nil {
		return fmt.Errorf("save poll: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
        INSERT INTO polls(id, question, status, round, options_source, correct_option_id, options)
        VALUES(?,?,?,?,?,?,?)
        ON CONFLICT (id) DO NOTHING
    `, state.PollID, state.Question, string(state.Status), state.Round,
		string(state.OptionsSource), state.CorrectOptionID, string(options))
	if err != nil {
		return fmt.Errorf("save poll: %w", err)
	}
	return nil
}

func (s *SQLiteStore) LoadPoll(ctx context.Context, pollID string) (*poll.PollState, error) {
	var (
		state   poll.PollState
		status  string
		source  string
		options string
	)
	err := s.db.QueryRowContext(ctx, `
        SELECT id, question, status, round, options_source, correct_option_id, options
        FROM polls WHERE id = ?
    `, pollID).Scan(&state.PollID, &state.Question, &status, &state.Round, &source, &state.CorrectOptionID, &options)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, poll.ErrPollNotFound
		}
		return nil, fmt.Errorf("load poll: %w", err)
	}
	if err := json.Unmarshal([]byte(options), &state.Options); err != nil {
		return nil, fmt.Errorf("load poll options: %w", err)
	}
	state.Status = poll.Status(status)
	state.OptionsSource = poll.OptionsSource(source)
	state.Votes = []poll.Vote{}
	return &state, nil
}

func (s *SQLiteStore) UpdatePollStatus(ctx context.Context, pollID string, status poll.Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE polls SET status = ?, updated_at = CURRENT_TIMESTAMP WHERE id = ?`, string(status), pollID)
	if err != nil {
		return fmt.Errorf("update poll status: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update poll status: %w", err)
	}
	if n == 0 {
		return poll.ErrPollNotFound
	}
	return nil
}
