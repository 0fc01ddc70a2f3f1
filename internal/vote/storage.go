package vote

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/we-are-mortensen/meet-artist-vote-app/internal/poll"
)

// Store persists poll definitions and votes. A vote is upserted per
// (poll, voter), so the latest vote of a voter replaces the earlier one.
type Store interface {
	SaveVote(ctx context.Context, pollID string, v poll.Vote) error
	// LoadVotes returns the votes of pollID by ascending timestamp.
	LoadVotes(ctx context.Context, pollID string) ([]poll.Vote, error)
	SavePoll(ctx context.Context, state poll.PollState) error
	// LoadPoll returns the poll definition without its votes.
	LoadPoll(ctx context.Context, pollID string) (*poll.PollState, error)
	UpdatePollStatus(ctx context.Context, pollID string, status poll.Status) error
}

// DB is implemented by *pgxpool.Pool and by pgxmock.
type DB interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

type PostgresStore struct {
	db DB
}

func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func AutoMigrate(ctx context.Context, db DB) error {
	if _, err := db.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS polls(
            id TEXT PRIMARY KEY,
            question TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'voting',
            round INT NOT NULL DEFAULT 1,
            options_source TEXT NOT NULL,
            correct_option_id TEXT NOT NULL DEFAULT '',
            options JSONB NOT NULL,
            created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
        )
    `); err != nil {
		return fmt.Errorf("migrate polls: %w", err)
	}

	if _, err := db.Exec(ctx, `
        CREATE TABLE IF NOT EXISTS poll_votes(
            poll_id TEXT NOT NULL REFERENCES polls(id) ON DELETE CASCADE,
            voter_id TEXT NOT NULL,
            selected_option_id TEXT NOT NULL,
            cast_at BIGINT NOT NULL,
            UNIQUE(poll_id, voter_id)
        )
    `); err != nil {
		return fmt.Errorf("migrate poll_votes: %w", err)
	}

	if _, err := db.Exec(ctx, `CREATE INDEX IF NOT EXISTS idx_poll_votes_poll_cast ON poll_votes(poll_id, cast_at)`); err != nil {
		return fmt.Errorf("migrate poll_votes index: %w", err)
	}
	return nil
}

func (s *PostgresStore) SaveVote(ctx context.Context, pollID string, v poll.Vote) error {
	_, err := s.db.Exec(ctx, `
        INSERT INTO poll_votes(poll_id, voter_id, selected_option_id, cast_at)
        VALUES($1,$2,$3,$4)
        ON CONFLICT (poll_id, voter_id) DO UPDATE
        SET selected_option_id = EXCLUDED.selected_option_id, cast_at = EXCLUDED.cast_at
    `, pollID, v.VoterID, v.SelectedOptionID, v.Timestamp)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23503" {
			return poll.ErrPollNotFound
		}
		return fmt.Errorf("save vote: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadVotes(ctx context.Context, pollID string) ([]poll.Vote, error) {
	rows, err := s.db.Query(ctx, `
        SELECT voter_id, selected_option_id, cast_at
        FROM poll_votes
        WHERE poll_id = $1
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

func (s *PostgresStore) SavePoll(ctx context.Context, state poll.PollState) error {
	options, err := json.Marshal(state.Options)
	if err != nil {
		return fmt.Errorf("save poll: %w", err)
	}
	_, err = s.db.Exec(ctx, `
        INSERT INTO polls(id, question, status, round, options_source, correct_option_id, options)
        VALUES($1,$2,$3,$4,$5,$6,$7)
        ON CONFLICT (id) DO NOTHING
    `, state.PollID, state.Question, string(state.Status), state.Round,
		string(state.OptionsSource), state.CorrectOptionID, string(options))
	if err != nil {
		return fmt.Errorf("save poll: %w", err)
	}
	return nil
}

func (s *PostgresStore) LoadPoll(ctx context.Context, pollID string) (*poll.PollState, error) {
	var (
		state   poll.PollState
		status  string
		source  string
		options []byte
	)
	err := s.db.QueryRow(ctx, `
        SELECT id, question, status, round, options_source, correct_option_id, options
        FROM polls WHERE id = $1
    `, pollID).Scan(&state.PollID, &state.Question, &status, &state.Round, &source, &state.CorrectOptionID, &options)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, poll.ErrPollNotFound
		}
		return nil, fmt.Errorf("load poll: %w", err)
	}
	if err := json.Unmarshal(options, &state.Options); err != nil {
		return nil, fmt.Errorf("load poll options: %w", err)
	}
	state.Status = poll.Status(status)
	state.OptionsSource = poll.OptionsSource(source)
	state.Votes = []poll.Vote{}
	return &state, nil
}

func (s *PostgresStore) UpdatePollStatus(ctx context.Context, pollID string, status poll.Status) error {
	res, err := s.db.Exec(ctx, `UPDATE polls SET status = $1, updated_at = now() WHERE id = $2`, string(status), pollID)
	if err != nil {
		return fmt.Errorf("update poll status: %w", err)
	}
	if res.RowsAffected() == 0 {
		return poll.ErrPollNotFound
	}
	return nil
}
