// Package queue publishes annotation events to a Redis stream so other
// processes can follow a session as it happens.
package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	// StreamEvents is the Redis stream annotation events are pushed to.
	StreamEvents = "annotation_events"
	// GroupFollowers is the consumer group for event readers.
	GroupFollowers = "annotation_followers"

	// MaxLen caps the stream; older events are trimmed approximately.
	MaxLen = 100000
)

// Event types.
const (
	EventCommit   = "commit"
	EventAutoFill = "autofill"
	EventDrop     = "drop"
	EventRestore  = "restore"
	EventResolved = "resolved"
)

// Event is one store mutation made during a session.
type Event struct {
	Session   string    `json:"session"`
	Annotator string    `json:"annotator"`
	Type      string    `json:"type"`
	RecordID  string    `json:"record_id"`
	Task      string    `json:"task,omitempty"`
	Value     string    `json:"value,omitempty"`
	User      string    `json:"user,omitempty"`
	At        time.Time `json:"at"`
}

func (e Event) values() map[string]any {
	payload, _ := json.Marshal(e)
	return map[string]any{
		"session":   e.Session,
		"annotator": e.Annotator,
		"type":      e.Type,
		"record_id": e.RecordID,
		"task":      e.Task,
		"value":     e.Value,
		"user":      e.User,
		"at":        e.At.UTC().Format(time.RFC3339Nano),
		"payload":   string(payload),
	}
}

func eventFromValues(values map[string]any) Event {
	e := Event{
		Session:   getString(values, "session"),
		Annotator: getString(values, "annotator"),
		Type:      getString(values, "type"),
		RecordID:  getString(values, "record_id"),
		Task:      getString(values, "task"),
		Value:     getString(values, "value"),
		User:      getString(values, "user"),
	}
	if at, err := time.Parse(time.RFC3339Nano, getString(values, "at")); err == nil {
		e.At = at
	}
	return e
}

// Queue wraps the Redis client used for the event stream.
type Queue struct {
	client *redis.Client
}

// New creates a Queue from a Redis client.
func New(client *redis.Client) *Queue {
	return &Queue{client: client}
}

// ConnectRedis creates a Redis client from a URL.
func ConnectRedis(redisURL string) (*redis.Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	return redis.NewClient(opts), nil
}

// EnsureStream creates the follower group if it doesn't exist.
func (q *Queue) EnsureStream(ctx context.Context) error {
	err := q.client.XGroupCreateMkStream(ctx, StreamEvents, GroupFollowers, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return fmt.Errorf("create group %s on %s: %w", GroupFollowers, StreamEvents, err)
	}
	return nil
}

// Publish adds an event to the stream.
func (q *Queue) Publish(ctx context.Context, e Event) (string, error) {
	id, err := q.client.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamEvents,
		MaxLen: MaxLen,
		Approx: true,
		Values: e.values(),
	}).Result()
	if err != nil {
		return "", fmt.Errorf("publish %s event: %w", e.Type, err)
	}
	return id, nil
}

// ReadBlock bounds how long Read waits for an event.
const ReadBlock = 5 * time.Second

// Read reads one event for consumer, waiting up to ReadBlock. A nil event
// with a nil error means nothing arrived in time.
func (q *Queue) Read(ctx context.Context, consumer string) (*Event, string, error) {
	streams, err := q.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    GroupFollowers,
		Consumer: consumer,
		Streams:  []string{StreamEvents, ">"},
		Count:    1,
		Block:    ReadBlock,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, "", nil
	}
	if err != nil {
		return nil, "", fmt.Errorf("read event: %w", err)
	}
	for _, stream := range streams {
		for _, msg := range stream.Messages {
			e := eventFromValues(msg.Values)
			return &e, msg.ID, nil
		}
	}
	return nil, "", nil
}

// Ack acknowledges an event.
func (q *Queue) Ack(ctx context.Context, msgID string) error {
	return q.client.XAck(ctx, StreamEvents, GroupFollowers, msgID).Err()
}

// Status returns the stream length and the follower group's pending count.
func (q *Queue) Status(ctx context.Context) (length, pending int64, err error) {
	length, err = q.client.XLen(ctx, StreamEvents).Result()
	if err != nil {
		return 0, 0, err
	}
	summary, err := q.client.XPending(ctx, StreamEvents, GroupFollowers).Result()
	if err != nil {
		if strings.HasPrefix(err.Error(), "NOGROUP") {
			return length, 0, nil
		}
		return 0, 0, err
	}
	return length, summary.Count, nil
}

func getString(values map[string]any, key string) string {
	if v, ok := values[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
