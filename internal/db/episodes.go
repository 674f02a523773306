package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"sync"
	"time"

	"github.com/banshee-data/semlog/internal/events"
	"github.com/banshee-data/semlog/internal/monitoring"
)

// ErrEpisodeNotFound is returned when an episode id has no row.
var ErrEpisodeNotFound = errors.New("episode not found")

// Episode is one logged run.
type Episode struct {
	EpisodeID  string     `json:"episode_id"`
	TaskID     string     `json:"task_id"`
	StartedAt  time.Time  `json:"started_at"`
	FinishedAt *time.Time `json:"finished_at,omitempty"`
	EventCount int        `json:"event_count"`
}

// BeginEpisode inserts the episode row. Beginning an existing episode again
// is an error.
func (db *DB) BeginEpisode(ctx context.Context, episodeID, taskID string, startedAt time.Time) error {
	_, err := db.ExecContext(ctx,
		`INSERT INTO episodes (episode_id, task_id, started_at) VALUES (?, ?, ?)`,
		episodeID, taskID, startedAt.UTC())
	if err != nil {
		return fmt.Errorf("failed to begin episode %s: %w", episodeID, err)
	}
	return nil
}

// FinishEpisode stamps finished_at and stores the number of events logged.
func (db *DB) FinishEpisode(ctx context.Context, episodeID string, finishedAt time.Time) error {
	res, err := db.ExecContext(ctx,
		`UPDATE episodes
		SET finished_at = ?,
			event_count = (SELECT COUNT(*) FROM events WHERE episode_id = ?)
		WHERE episode_id = ?`,
		finishedAt.UTC(), episodeID, episodeID)
	if err != nil {
		return fmt.Errorf("failed to finish episode %s: %w", episodeID, err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("%w: %s", ErrEpisodeNotFound, episodeID)
	}
	return nil
}

const episodeColumns = `episode_id, task_id, started_at, finished_at, event_count`

func scanEpisode(row interface{ Scan(...any) error }) (Episode, error) {
	var (
		e        Episode
		finished sql.NullTime
	)
	if err := row.Scan(&e.EpisodeID, &e.TaskID, &e.StartedAt, &finished, &e.EventCount); err != nil {
		return Episode{}, err
	}
	if finished.Valid {
		t := finished.Time
		e.FinishedAt = &t
	}
	return e, nil
}

// Episodes lists episodes, most recent first.
func (db *DB) Episodes(ctx context.Context) ([]Episode, error) {
	rows, err := db.QueryContext(ctx, `SELECT `+episodeColumns+` FROM episodes ORDER BY started_at DESC, episode_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Episode
	for rows.Next() {
		e, err := scanEpisode(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

// Episode returns one episode.
func (db *DB) Episode(ctx context.Context, episodeID string) (Episode, error) {
	row := db.QueryRowContext(ctx, `SELECT `+episodeColumns+` FROM episodes WHERE episode_id = ?`, episodeID)
	e, err := scanEpisode(row)
	if errors.Is(err, sql.ErrNoRows) {
		return Episode{}, fmt.Errorf("%w: %s", ErrEpisodeNotFound, episodeID)
	}
	return e, err
}

// InsertEvent stores one semantic event. Participants and properties are
// kept as JSON; the pair id is stored as text since it may exceed int64.
func (db *DB) InsertEvent(ctx context.Context, ev events.Event) error {
	participants, err := json.Marshal(ev.Participants)
	if err != nil {
		return fmt.Errorf("failed to encode participants: %w", err)
	}
	props := ev.Properties
	if props == nil {
		props = map[string]string{}
	}
	properties, err := json.Marshal(props)
	if err != nil {
		return fmt.Errorf("failed to encode properties: %w", err)
	}

	_, err = db.ExecContext(ctx,
		`INSERT INTO events (
			event_id, episode_id, kind, owl_class, start_time, end_time,
			pair_id, participants, properties
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		ev.ID, ev.EpisodeID, string(ev.Kind), ev.OWLClass(), ev.Start, ev.End,
		strconv.FormatUint(ev.PairID, 10), string(participants), string(properties),
	)
	if err != nil {
		return fmt.Errorf("failed to insert event %s: %w", ev.ID, err)
	}
	return nil
}

// EpisodeEvents returns the events of an episode ordered by start time.
func (db *DB) EpisodeEvents(ctx context.Context, episodeID string) ([]events.Event, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT event_id, episode_id, kind, start_time, end_time, pair_id, participants, properties
		FROM events WHERE episode_id = ?
		ORDER BY start_time, end_time, kind`, episodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []events.Event
	for rows.Next() {
		var (
			ev                 events.Event
			kind, pair         string
			participants, prop string
		)
		if err := rows.Scan(&ev.ID, &ev.EpisodeID, &kind, &ev.Start, &ev.End, &pair, &participants, &prop); err != nil {
			return nil, err
		}
		ev.Kind = events.Kind(kind)
		if ev.PairID, err = strconv.ParseUint(pair, 10, 64); err != nil {
			return nil, fmt.Errorf("event %s: bad pair id %q: %w", ev.ID, pair, err)
		}
		if err := json.Unmarshal([]byte(participants), &ev.Participants); err != nil {
			return nil, fmt.Errorf("event %s: bad participants: %w", ev.ID, err)
		}
		if err := json.Unmarshal([]byte(prop), &ev.Properties); err != nil {
			return nil, fmt.Errorf("event %s: bad properties: %w", ev.ID, err)
		}
		if len(ev.Properties) == 0 {
			ev.Properties = nil
		}
		out = append(out, ev)
	}
	return out, rows.Err()
}

// EventSink stores every delivered event under one episode. Insert failures
// are logged and kept; Err returns the first one.
type EventSink struct {
	db        *DB
	episodeID string

	mu      sync.Mutex
	err     error
	written int
}

// Sink returns an events.Sink writing into episodeID.
func (db *DB) Sink(episodeID string) *EventSink {
	return &EventSink{db: db, episodeID: episodeID}
}

// OnSemanticEvent implements events.Sink.
func (s *EventSink) OnSemanticEvent(ev events.Event) {
	if ev.EpisodeID == "" {
		ev.EpisodeID = s.episodeID
	}
	err := s.db.InsertEvent(context.Background(), ev)

	s.mu.Lock()
	defer s.mu.Unlock()
	if err != nil {
		monitoring.Errorf("event sink %s: %v", s.episodeID, err)
		if s.err == nil {
			s.err = err
		}
		return
	}
	s.written++
}

// Written returns the number of stored events.
func (s *EventSink) Written() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.written
}

// Err returns the first insert failure.
func (s *EventSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

// Close stamps the episode as finished and reports the first insert failure.
func (s *EventSink) Close() error {
	if err := s.db.FinishEpisode(context.Background(), s.episodeID, time.Now()); err != nil {
		return err
	}
	return s.Err()
}
