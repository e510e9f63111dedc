// Package pipeline is the single choke point both ingress paths funnel
// through: it validates an incoming message, persists it, and only then
// requests fan-out. Persistence commit happens-before any delivery, so a
// message is never visible to a subscriber unless it is durable.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"

	"groupcast/internal/directory"
	"groupcast/internal/model"
	"groupcast/internal/store"
)

// ErrInvalidMessage means the submission was rejected before any I/O:
// empty text or missing target group.
var ErrInvalidMessage = errors.New("invalid message")

// Deliverer pushes a committed message to one connection, best effort.
type Deliverer interface {
	Deliver(connID string, msg model.Message)
}

type submission struct {
	GroupID string `validate:"required"`
	Text    string `validate:"required"`
}

// Pipeline validates, persists and fans out. Both front-door adapters must
// call Submit and never the store directly.
type Pipeline struct {
	store     store.Store
	directory *directory.Directory
	deliverer Deliverer
	validate  *validator.Validate
	log       zerolog.Logger

	mu         sync.Mutex
	groupLocks map[string]*sync.Mutex
}

func New(st store.Store, dir *directory.Directory, d Deliverer, log zerolog.Logger) *Pipeline {
	return &Pipeline{
		store:      st,
		directory:  dir,
		deliverer:  d,
		validate:   validator.New(),
		log:        log.With().Str("component", "pipeline").Logger(),
		groupLocks: make(map[string]*sync.Mutex),
	}
}

func (p *Pipeline) groupLock(groupID string) *sync.Mutex {
	p.mu.Lock()
	defer p.mu.Unlock()
	l, ok := p.groupLocks[groupID]
	if !ok {
		l = &sync.Mutex{}
		p.groupLocks[groupID] = l
	}
	return l
}

// Submit accepts one message. Steps, in order, none skippable:
// validate, commit, fan out to the subscriber snapshot taken after commit.
// A persistence failure is returned unchanged and skips fan-out entirely;
// retrying is the caller's decision.
//
// Submits for the same group are serialized across commit and fan-out, so
// deliveries are enqueued in persisted id order and every connection
// observes a group's messages in that order.
func (p *Pipeline) Submit(ctx context.Context, groupID, senderName, text string, anonymous bool) (model.Message, error) {
	if err := p.validate.Struct(submission{GroupID: groupID, Text: text}); err != nil {
		return model.Message{}, fmt.Errorf("%w: %v", ErrInvalidMessage, err)
	}

	if senderName == "" {
		senderName = model.AnonymousSender
	}

	// The group lock spans commit and fan-out: a submitter may not enqueue
	// deliveries while another submitter for the same group sits between
	// its own commit and its own fan-out. Without this, a connection could
	// observe id=2 before id=1.
	lock := p.groupLock(groupID)
	lock.Lock()
	defer lock.Unlock()

	msg, err := p.store.AppendMessage(ctx, groupID, senderName, text, anonymous)
	if err != nil {
		return model.Message{}, err
	}

	subscribers := p.directory.SubscribersOf(groupID)
	for _, connID := range subscribers {
		p.deliverer.Deliver(connID, msg)
	}

	p.log.Debug().Int64("message_id", msg.ID).Str("group_id", groupID).Int("subscribers", len(subscribers)).Msg("message fanned out")
	return msg, nil
}
