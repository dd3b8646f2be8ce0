package queue

import (
	"context"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/sbenjam1n/annotate/internal/engine"
	"github.com/sbenjam1n/annotate/internal/task"
)

// Sink accepts events. *Queue is the production Sink.
type Sink interface {
	Publish(ctx context.Context, e Event) (string, error)
}

// Publisher turns engine notifications into stream events. Publish failures
// are logged and never interrupt the session.
type Publisher struct {
	ctx       context.Context
	sink      Sink
	session   string
	annotator string
	user      string

	Now func() time.Time

	failed int
}

var _ engine.Observer = (*Publisher)(nil)

// NewPublisher starts a new session id for annotator.
func NewPublisher(ctx context.Context, sink Sink, annotator, user string) *Publisher {
	return &Publisher{
		ctx:       ctx,
		sink:      sink,
		session:   uuid.NewString(),
		annotator: annotator,
		user:      user,
		Now:       time.Now,
	}
}

// Session is the id stamped on every event.
func (p *Publisher) Session() string { return p.session }

// Failed is the number of events that could not be published.
func (p *Publisher) Failed() int { return p.failed }

func (p *Publisher) publish(typ, id, taskName, value string) {
	_, err := p.sink.Publish(p.ctx, Event{
		Session:   p.session,
		Annotator: p.annotator,
		Type:      typ,
		RecordID:  id,
		Task:      taskName,
		Value:     value,
		User:      p.user,
		At:        p.Now(),
	})
	if err != nil {
		p.failed++
		// first failure only; a down Redis would otherwise log every keystroke
		if p.failed == 1 {
			log.Printf("warning: annotation events not published: %v", err)
		}
	}
}

func (p *Publisher) Committed(id, taskName string, v task.Value) {
	p.publish(EventCommit, id, taskName, v.Format())
}

func (p *Publisher) AutoFilled(id, taskName string, v task.Value) {
	p.publish(EventAutoFill, id, taskName, v.Format())
}

func (p *Publisher) Dropped(id string) { p.publish(EventDrop, id, "", "") }

func (p *Publisher) Restored(id string) { p.publish(EventRestore, id, "", "") }

func (p *Publisher) Resolved(id string) { p.publish(EventResolved, id, "", "") }
