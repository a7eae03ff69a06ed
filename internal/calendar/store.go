// Package calendar implements the per-agent event store. Each agent owns
// one Store pointed at its own SQLite file; the agent's tools wrap its
// methods.
package calendar

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

var (
	// ErrConflict is returned by Book when the requested interval
	// overlaps an existing event. A normal negative result, not a fault.
	ErrConflict = errors.New("time slot is no longer available")
	// ErrNotFound is returned by Cancel for an unknown event id.
	ErrNotFound = errors.New("event not found")
)

// Event is one calendar entry. Times are "HH:MM", dates "YYYY-MM-DD";
// the interval [Start,End) is half-open.
type Event struct {
	ID        string   `json:"event_id"`
	Date      string   `json:"date"`
	Start     string   `json:"start_time"`
	End       string   `json:"end_time"`
	Title     string   `json:"title"`
	Location  string   `json:"location,omitempty"`
	Attendees []string `json:"attendees,omitempty"`
	Category  string   `json:"category,omitempty"`
	Recurring string   `json:"recurring,omitempty"`
	Notes     string   `json:"notes,omitempty"`
}

// Slot is a free interval within the working-day window.
type Slot struct {
	Start string `json:"start_time"`
	End   string `json:"end_time"`
}

// Booking is the input to Book.
type Booking struct {
	Title     string
	Date      string
	Start     string
	End       string
	Location  string
	Attendees []string
	Category  string
	Notes     string
}

// Default working-day window for free-slot queries.
const (
	DayStart = "09:00"
	DayEnd   = "17:00"
)

// Store is a SQLite-backed calendar. Reads are safe for concurrent use;
// bookings are serialized so two racing bookings cannot both take the
// same interval.
type Store struct {
	db     *sql.DB
	bookMu sync.Mutex
}

// Open creates or opens the calendar database at path.
func Open(path string) (*Store, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create calendar directory: %w", err)
		}
	}

	dsn := path + "?_journal=WAL&_sync=NORMAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open calendar database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping calendar database: %w", err)
	}

	s := &Store{db: db}
	if err := s.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize calendar schema: %w", err)
	}
	return s, nil
}

func (s *Store) initSchema() error {
	query := `
	PRAGMA busy_timeout = 5000;
	CREATE TABLE IF NOT EXISTS events (
		event_id   TEXT PRIMARY KEY,
		date       TEXT NOT NULL,
		start_time TEXT NOT NULL,
		end_time   TEXT NOT NULL,
		title      TEXT NOT NULL,
		location   TEXT NOT NULL DEFAULT '',
		attendees  TEXT NOT NULL DEFAULT '',
		category   TEXT NOT NULL DEFAULT 'work',
		recurring  TEXT NOT NULL DEFAULT 'none',
		notes      TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_events_date ON events(date);
	`
	if _, err := s.db.Exec(query); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	return nil
}

// Close releases the underlying database handle.
func (s *Store) Close() error {
	return s.db.Close()
}

// Events returns all events on a date, ordered by start time.
func (s *Store) Events(ctx context.Context, date string) ([]Event, error) {
	if _, err := parseDate(date); err != nil {
		return nil, err
	}
	return s.queryEvents(ctx,
		`SELECT event_id, date, start_time, end_time, title, location, attendees, category, recurring, notes
		 FROM events WHERE date = ? ORDER BY start_time`, date)
}

// EventsRange returns all events with start <= date <= end, inclusive.
func (s *Store) EventsRange(ctx context.Context, start, end string) ([]Event, error) {
	if _, err := parseDate(start); err != nil {
		return nil, err
	}
	if _, err := parseDate(end); err != nil {
		return nil, err
	}
	return s.queryEvents(ctx,
		`SELECT event_id, date, start_time, end_time, title, location, attendees, category, recurring, notes
		 FROM events WHERE date >= ? AND date <= ? ORDER BY date, start_time`, start, end)
}

func (s *Store) queryEvents(ctx context.Context, query string, args ...any) ([]Event, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var attendees string
		if err := rows.Scan(&e.ID, &e.Date, &e.Start, &e.End, &e.Title,
			&e.Location, &attendees, &e.Category, &e.Recurring, &e.Notes); err != nil {
			return nil, fmt.Errorf("scan event row: %w", err)
		}
		if attendees != "" {
			e.Attendees = strings.Split(attendees, ";")
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

// IsAvailable reports whether [start,end) on date overlaps no existing event.
func (s *Store) IsAvailable(ctx context.Context, date, start, end string) (bool, error) {
	startMin, endMin, err := parseInterval(start, end)
	if err != nil {
		return false, err
	}
	events, err := s.Events(ctx, date)
	if err != nil {
		return false, err
	}
	for _, e := range events {
		evStart, evEnd, err := parseInterval(e.Start, e.End)
		if err != nil {
			return false, fmt.Errorf("stored event %s: %w", e.ID, err)
		}
		if startMin < evEnd && endMin > evStart {
			return false, nil
		}
	}
	return true, nil
}

// FreeSlots finds the gaps of at least durationMinutes within the default
// working-day window, ordered by start time.
func (s *Store) FreeSlots(ctx context.Context, date string, durationMinutes int) ([]Slot, error) {
	return s.FreeSlotsWindow(ctx, date, durationMinutes, DayStart, DayEnd)
}

// FreeSlotsWindow is FreeSlots with an explicit day window [dayStart,dayEnd).
func (s *Store) FreeSlotsWindow(ctx context.Context, date string, durationMinutes int, dayStart, dayEnd string) ([]Slot, error) {
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %d", durationMinutes)
	}
	windowStart, windowEnd, err := parseInterval(dayStart, dayEnd)
	if err != nil {
		return nil, err
	}

	events, err := s.Events(ctx, date)
	if err != nil {
		return nil, err
	}

	type interval struct{ start, end int }
	busy := make([]interval, 0, len(events))
	for _, e := range events {
		evStart, evEnd, err := parseInterval(e.Start, e.End)
		if err != nil {
			return nil, fmt.Errorf("stored event %s: %w", e.ID, err)
		}
		busy = append(busy, interval{evStart, evEnd})
	}
	sort.Slice(busy, func(i, j int) bool { return busy[i].start < busy[j].start })

	var free []Slot
	cursor := windowStart
	for _, b := range busy {
		if cursor+durationMinutes <= b.start {
			free = append(free, Slot{Start: formatClock(cursor), End: formatClock(b.start)})
		}
		if b.end > cursor {
			cursor = b.end
		}
	}
	if cursor+durationMinutes <= windowEnd {
		free = append(free, Slot{Start: formatClock(cursor), End: formatClock(windowEnd)})
	}
	return free, nil
}

// Book creates a new event if the interval is free. A conflicting booking
// returns ErrConflict. The check-then-insert is a single serialized step.
func (s *Store) Book(ctx context.Context, b Booking) (*Event, error) {
	if _, err := parseDate(b.Date); err != nil {
		return nil, err
	}
	startMin, endMin, err := parseInterval(b.Start, b.End)
	if err != nil {
		return nil, err
	}
	if endMin <= startMin {
		return nil, fmt.Errorf("end %s must be after start %s", b.End, b.Start)
	}

	s.bookMu.Lock()
	defer s.bookMu.Unlock()

	available, err := s.IsAvailable(ctx, b.Date, b.Start, b.End)
	if err != nil {
		return nil, err
	}
	if !available {
		return nil, ErrConflict
	}

	category := b.Category
	if category == "" {
		category = "work"
	}
	event := Event{
		ID:        "evt_" + strings.ReplaceAll(uuid.New().String(), "-", "")[:8],
		Date:      b.Date,
		Start:     b.Start,
		End:       b.End,
		Title:     b.Title,
		Location:  b.Location,
		Attendees: b.Attendees,
		Category:  category,
		Recurring: "none",
		Notes:     b.Notes,
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO events (event_id, date, start_time, end_time, title, location, attendees, category, recurring, notes)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		event.ID, event.Date, event.Start, event.End, event.Title,
		event.Location, strings.Join(event.Attendees, ";"), event.Category, event.Recurring, event.Notes)
	if err != nil {
		return nil, fmt.Errorf("insert event: %w", err)
	}
	return &event, nil
}

// Cancel removes an event by id.
func (s *Store) Cancel(ctx context.Context, eventID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM events WHERE event_id = ?`, eventID)
	if err != nil {
		return fmt.Errorf("delete event: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func parseDate(date string) (time.Time, error) {
	t, err := time.Parse("2006-01-02", date)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q, want YYYY-MM-DD", date)
	}
	return t, nil
}

// parseClock converts "HH:MM" to minutes since midnight.
func parseClock(clock string) (int, error) {
	t, err := time.Parse("15:04", clock)
	if err != nil {
		return 0, fmt.Errorf("invalid time %q, want HH:MM", clock)
	}
	return t.Hour()*60 + t.Minute(), nil
}

func parseInterval(start, end string) (int, int, error) {
	startMin, err := parseClock(start)
	if err != nil {
		return 0, 0, err
	}
	endMin, err := parseClock(end)
	if err != nil {
		return 0, 0, err
	}
	return startMin, endMin, nil
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
