// Package events publishes lifecycle notifications to a Redis stream.
// Consumers (notification fan-out, analytics) read the stream with their
// own consumer groups; the engine only ever appends.
package events

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

type EventType string

const (
	EventDiscussionCreated   EventType = "discussion.created"
	EventDiscussionArchived  EventType = "discussion.archived"
	EventRoundStarted        EventType = "round.started"
	EventRoundRegulated      EventType = "round.regulated"
	EventRoundClosed         EventType = "round.closed"
	EventVotingOpened        EventType = "voting.opened"
	EventVotingResolved      EventType = "voting.resolved"
	EventResponseAccepted    EventType = "response.accepted"
	EventResponseEdited      EventType = "response.edited"
	EventDeadlineChanged     EventType = "deadline.changed"
	EventParticipantRemoved  EventType = "participant.removed"
	EventParticipantRejoined EventType = "participant.rejoined"
	EventParticipantBarred   EventType = "participant.barred"
	EventVoteRecorded        EventType = "vote.recorded"
	EventInviteEarned        EventType = "invite.earned"
	EventInviteReset         EventType = "invite.reset"
)

// Event is one lifecycle notification. DiscussionID is always set; the
// remaining fields are present when the event concerns them.
type Event struct {
	Type         EventType
	DiscussionID int64
	RoundID      int64
	RoundNumber  int
	UserID       int64
	Detail       string
	At           time.Time
}

type Emitter interface {
	Emit(ctx context.Context, e Event) error
	Close() error
}

type redisEmitter struct {
	client *redis.Client
	stream string
	logger *slog.Logger
}

func NewRedisEmitter(client *redis.Client, stream string, logger *slog.Logger) Emitter {
	if logger == nil {
		logger = slog.Default()
	}
	return &redisEmitter{
		client: client,
		stream: stream,
		logger: logger,
	}
}

func (p *redisEmitter) Emit(ctx context.Context, e Event) error {
	if e.At.IsZero() {
		e.At = time.Now()
	}

	fields := map[string]any{
		"type":          string(e.Type),
		"discussion_id": e.DiscussionID,
		"at":            e.At.Format(time.RFC3339Nano),
	}
	if e.RoundID != 0 {
		fields["round_id"] = e.RoundID
	}
	if e.RoundNumber != 0 {
		fields["round_number"] = e.RoundNumber
	}
	if e.UserID != 0 {
		fields["user_id"] = e.UserID
	}
	if e.Detail != "" {
		fields["detail"] = e.Detail
	}

	if err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: p.stream,
		Values: fields,
	}).Err(); err != nil {
		return fmt.Errorf("emit event: %w", err)
	}

	p.logger.InfoContext(ctx, "event emitted", "type", e.Type, "discussion_id", e.DiscussionID, "round_number", e.RoundNumber)
	return nil
}

func (p *redisEmitter) Close() error {
	return p.client.Close()
}

// NopEmitter discards events. Used when Redis is not configured and in tests
// that do not assert on the stream.
type NopEmitter struct{}

func (NopEmitter) Emit(context.Context, Event) error { return nil }
func (NopEmitter) Close() error                      { return nil }
