package store

import (
	"context"
	"fmt"
	"time"

	"github.com/PrismoFinance/bounties/internal/event"
)

const eventSequence = "events"

// AppendEvent assigns the next global event id and writes the event.
// The returned event carries its id.
func (t *Tx) AppendEvent(ctx context.Context, e event.Event) (event.Event, error) {
	data, err := event.EncodeData(e.Data)
	if err != nil {
		return event.Event{}, fmt.Errorf("append event: %w", err)
	}
	id, err := t.NextSequence(ctx, eventSequence)
	if err != nil {
		return event.Event{}, fmt.Errorf("append event: %w", err)
	}
	e.ID = id
	_, err = t.tx.ExecContext(ctx, `
		INSERT INTO events (id, resource_id, timestamp, height, kind, data)
		VALUES (?, ?, ?, ?, ?, ?)
	`, e.ID, e.ResourceID, e.Timestamp.UnixNano(), e.Height, string(e.Data.Kind()), string(data))
	if err != nil {
		return event.Event{}, fmt.Errorf("append event: %w", err)
	}
	return e, nil
}

// ListEvents returns events in global id order.
func (t *Tx) ListEvents(ctx context.Context, opts ListOptions) ([]event.Event, error) {
	page, suffix, args := opts.pageClause("id")
	query := fmt.Sprintf(`
		SELECT id, resource_id, timestamp, height, kind, data FROM events %s %s
	`, where(page), suffix)
	return t.queryEvents(ctx, query, args...)
}

// ListEventsByResource returns the events of one vault in id order.
func (t *Tx) ListEventsByResource(ctx context.Context, resourceID uint64, opts ListOptions) ([]event.Event, error) {
	page, suffix, pageArgs := opts.pageClause("id")
	args := append([]any{resourceID}, pageArgs...)
	query := fmt.Sprintf(`
		SELECT id, resource_id, timestamp, height, kind, data FROM events %s %s
	`, where("resource_id = ?", page), suffix)
	return t.queryEvents(ctx, query, args...)
}

// MaxHeight returns the highest height recorded on any event, or zero.
func (t *Tx) MaxHeight(ctx context.Context) (int64, error) {
	var height int64
	if err := t.tx.QueryRowContext(ctx, `SELECT COALESCE(MAX(height), 0) FROM events`).Scan(&height); err != nil {
		return 0, fmt.Errorf("max height: %w", err)
	}
	return height, nil
}

func (t *Tx) queryEvents(ctx context.Context, query string, args ...any) ([]event.Event, error) {
	rows, err := t.tx.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	events := []event.Event{}
	for rows.Next() {
		var (
			e    event.Event
			ts   int64
			kind string
			data string
		)
		if err := rows.Scan(&e.ID, &e.ResourceID, &ts, &e.Height, &kind, &data); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Timestamp = time.Unix(0, ts).UTC()
		e.Data, err = event.DecodeData(event.Kind(kind), []byte(data))
		if err != nil {
			return nil, fmt.Errorf("event %d: %w", e.ID, err)
		}
		events = append(events, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate events: %w", err)
	}
	return events, nil
}
