// Package services – ToyService
//
// ToyService covers both sides of a toy: parents pair toys with children and
// pick the active child, toys (authenticated by API key) send heartbeats and
// questions. A question is answered and then recorded atomically: messages,
// audit rows, analytics counters and the weekly summary commit together.
package services

import (
	"context"
	"errors"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"gorm.io/gorm"

	"github.com/tbourn/go-toy-backend/internal/domain"
	"github.com/tbourn/go-toy-backend/internal/events"
	"github.com/tbourn/go-toy-backend/internal/repo"
)

// Pairing outcomes.
const (
	PairStatusPaired        = "paired"
	PairStatusAlreadyPaired = "already_paired"
)

// DefaultMaxQuestionRunes caps question length when MaxQuestionRunes is unset.
const DefaultMaxQuestionRunes = 2000

// DefaultPublishTimeout bounds how long an ask waits on the event sink.
const DefaultPublishTimeout = 2 * time.Second

// AskInput is one question from a toy.
type AskInput struct {
	ToyUUID        string
	Question       string
	IdempotencyKey string
}

// AskResult is the answer to a question. Replayed is set when the result was
// served from an earlier request with the same Idempotency-Key.
type AskResult struct {
	ConversationID string `json:"conversation_id"`
	Answer         string `json:"answer"`
	Replayed       bool   `json:"-"`
}

// ToyService implements toy pairing and the toy-facing endpoints.
type ToyService struct {
	DB        *gorm.DB
	Answerer  Answerer
	Publisher events.Publisher

	IdempotencyTTL   time.Duration
	MaxQuestionRunes int

	// PublishTimeout bounds event publishing after an ask. Defaults to
	// DefaultPublishTimeout.
	PublishTimeout time.Duration

	// Now is the service clock. Defaults to time.Now.
	Now func() time.Time
}

// NewToyService wires a ToyService with the stub answerer and no event sink.
func NewToyService(db *gorm.DB, idempotencyTTL time.Duration) *ToyService {
	return &ToyService{
		DB:               db,
		Answerer:         StubAnswerer{},
		Publisher:        events.Noop{},
		IdempotencyTTL:   idempotencyTTL,
		MaxQuestionRunes: DefaultMaxQuestionRunes,
		Now:              time.Now,
	}
}

func (s *ToyService) now() time.Time {
	if s.Now == nil {
		return time.Now().UTC()
	}
	return s.Now().UTC()
}

// Pair links one of the parent's children to a toy. Pairing the same child
// and toy twice reports PairStatusAlreadyPaired and changes nothing.
func (s *ToyService) Pair(ctx context.Context, parentID, toyUUID, childID string) (string, error) {
	ctx, span := otel.Tracer("services/ToyService").Start(ctx, "Pair",
		trace.WithAttributes(
			attribute.String("toy.uuid", toyUUID),
			attribute.String("child.id", childID),
		))
	defer span.End()

	status := PairStatusPaired
	now := s.now()
	err := s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		child, err := repo.GetOwnedChild(ctx, tx, childID, parentID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrChildNotOwned
		}
		if err != nil {
			return err
		}
		toy, err := repo.GetToyByUUID(ctx, tx, toyUUID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrToyNotFound
		}
		if err != nil {
			return err
		}
		if child.ToyID != nil && *child.ToyID == toy.ID {
			status = PairStatusAlreadyPaired
			return nil
		}
		if err := repo.PairChild(ctx, tx, child.ID, toy.ID); err != nil {
			return err
		}
		return repo.MarkToySeen(ctx, tx, toy.ID, now)
	})
	if err != nil {
		return "", err
	}
	zerolog.Ctx(ctx).Info().Str("toy_uuid", toyUUID).Str("child_id", childID).Str("status", status).Msg("toy paired")
	return status, nil
}

// SetActiveChild makes childID the child speaking through the toy. The child
// must belong to the parent, the toy must be paired with one of the parent's
// children, and the child itself must be paired with this toy.
func (s *ToyService) SetActiveChild(ctx context.Context, parentID, toyUUID, childID string) error {
	ctx, span := otel.Tracer("services/ToyService").Start(ctx, "SetActiveChild",
		trace.WithAttributes(
			attribute.String("toy.uuid", toyUUID),
			attribute.String("child.id", childID),
		))
	defer span.End()

	return s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		child, err := repo.GetOwnedChild(ctx, tx, childID, parentID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrChildNotOwned
		}
		if err != nil {
			return err
		}
		toy, err := repo.GetToyForParent(ctx, tx, toyUUID, parentID)
		if errors.Is(err, repo.ErrNotFound) {
			return ErrToyNotFound
		}
		if err != nil {
			return err
		}
		if child.ToyID == nil || *child.ToyID != toy.ID {
			return ErrChildNotPaired
		}
		err = repo.SetActiveChild(ctx, tx, toy.ID, child.ID)
		if errors.Is(err, repo.ErrNotPaired) {
			return ErrChildNotPaired
		}
		return err
	})
}

// Heartbeat records that the toy is alive.
func (s *ToyService) Heartbeat(ctx context.Context, toyUUID string) error {
	toy, err := repo.GetToyByUUID(ctx, s.DB, toyUUID)
	if errors.Is(err, repo.ErrNotFound) {
		return ErrInvalidToy
	}
	if err != nil {
		return err
	}
	return repo.MarkToySeen(ctx, s.DB, toy.ID, s.now())
}

// RegisterToy adds a device to the fleet. A blank ToyUUID gets a fresh one.
func (s *ToyService) RegisterToy(ctx context.Context, toyUUID, modelNo, firmware string) (*domain.Toy, error) {
	toyUUID = strings.TrimSpace(toyUUID)
	if toyUUID == "" {
		toyUUID = uuid.NewString()
	}
	t := &domain.Toy{
		ID:              uuid.NewString(),
		ToyUUID:         toyUUID,
		ModelNo:         strings.TrimSpace(modelNo),
		FirmwareVersion: strings.TrimSpace(firmware),
		RegisteredAt:    s.now(),
	}
	if err := repo.CreateToy(ctx, s.DB, t); err != nil {
		if errors.Is(err, repo.ErrDuplicate) {
			return nil, ErrToyExists
		}
		return nil, err
	}
	return t, nil
}

// Ask answers a question for the toy's active child and records the
// exchange. With an IdempotencyKey, a retry inside IdempotencyTTL replays
// the first answer without recording anything.
func (s *ToyService) Ask(ctx context.Context, in AskInput) (*AskResult, error) {
	ctx, span := otel.Tracer("services/ToyService").Start(ctx, "Ask",
		trace.WithAttributes(attribute.String("toy.uuid", in.ToyUUID)))
	defer span.End()

	question := strings.TrimSpace(in.Question)
	if question == "" {
		return nil, ErrEmptyQuestion
	}
	maxRunes := s.MaxQuestionRunes
	if maxRunes <= 0 {
		maxRunes = DefaultMaxQuestionRunes
	}
	if utf8.RuneCountInString(question) > maxRunes {
		return nil, ErrQuestionTooLong
	}

	now := s.now()
	if res, ok := s.replay(ctx, in.ToyUUID, in.IdempotencyKey, now); ok {
		return res, nil
	}

	toy, err := repo.GetToyByUUID(ctx, s.DB, in.ToyUUID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrInvalidToy
	}
	if err != nil {
		return nil, err
	}
	if !toy.IsActive {
		return nil, ErrInvalidToy
	}
	if toy.ActiveChildID == nil {
		return nil, ErrNoActiveChild
	}
	child, err := repo.GetChild(ctx, s.DB, *toy.ActiveChildID)
	if errors.Is(err, repo.ErrNotFound) {
		return nil, ErrNoActiveChild
	}
	if err != nil {
		return nil, err
	}
	if child.ToyID == nil || *child.ToyID != toy.ID {
		return nil, ErrNoActiveChild
	}

	answer, model, err := s.answerer().Answer(ctx, child.ID, question)
	if err != nil {
		return nil, err
	}

	var convID string
	err = s.DB.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		// Pairing may have changed while the answer was produced.
		ok, err := repo.IsActivePairing(ctx, tx, toy.ID, child.ID)
		if err != nil {
			return err
		}
		if !ok {
			return ErrNoActiveChild
		}
		convID, err = s.record(ctx, tx, toy, child, question, answer, model, now)
		if err != nil {
			return err
		}
		if in.IdempotencyKey != "" {
			_, err = repo.SaveIdempotency(ctx, tx, toy.ToyUUID, in.IdempotencyKey, convID, answer, 200, s.IdempotencyTTL, now)
		}
		return err
	})
	if errors.Is(err, repo.ErrDuplicate) {
		// A concurrent request with the same key committed first.
		if res, ok := s.replay(ctx, in.ToyUUID, in.IdempotencyKey, now); ok {
			return res, nil
		}
	}
	if err != nil {
		return nil, err
	}

	toyQuestions.Inc()
	s.publish(ctx, events.InteractionLogged{
		ConversationID: convID,
		ChildID:        child.ID,
		ToyUUID:        toy.ToyUUID,
		Question:       question,
		Answer:         answer,
		WeekStart:      weekStart(now),
		OccurredAt:     now,
	})
	return &AskResult{ConversationID: convID, Answer: answer}, nil
}

// record writes one question/answer exchange inside tx and returns the
// conversation it was appended to.
func (s *ToyService) record(ctx context.Context, tx *gorm.DB, toy *domain.Toy, child *domain.Child, question, answer, model string, now time.Time) (string, error) {
	conv, err := repo.CurrentConversation(ctx, tx, child.ID)
	if errors.Is(err, repo.ErrNotFound) {
		conv, err = repo.CreateConversation(ctx, tx, child.ID, now)
	}
	if err != nil {
		return "", err
	}
	if err := repo.TouchConversation(ctx, tx, conv.ID, now); err != nil {
		return "", err
	}

	seq, err := repo.NextSeq(ctx, tx, conv.ID)
	if err != nil {
		return "", err
	}
	if _, err := repo.CreateMessage(ctx, tx, conv.ID, domain.MessageRoleUser, question, seq, now); err != nil {
		return "", err
	}
	if _, err := repo.CreateMessage(ctx, tx, conv.ID, domain.MessageRoleAssistant, answer, seq+1, now); err != nil {
		return "", err
	}

	for _, m := range []*domain.MessageLog{
		{Role: domain.MessageRoleUser, Content: question},
		{Role: domain.MessageRoleAssistant, Content: answer, ModelUsed: model},
	} {
		m.ChildID, m.ToyID, m.ConversationID = &child.ID, &toy.ID, &conv.ID
		m.CreatedAt = now
		if err := repo.CreateMessageLog(ctx, tx, m); err != nil {
			return "", err
		}
	}

	if err := repo.RecordQuestion(ctx, tx, child.ID, now); err != nil {
		return "", err
	}
	if err := repo.BumpWeeklySummary(ctx, tx, child.ID, now); err != nil {
		return "", err
	}
	return conv.ID, nil
}

func (s *ToyService) replay(ctx context.Context, toyUUID, key string, now time.Time) (*AskResult, bool) {
	if key == "" {
		return nil, false
	}
	rec, err := repo.GetIdempotency(ctx, s.DB, toyUUID, key, now)
	if err != nil {
		return nil, false
	}
	return &AskResult{ConversationID: rec.ConversationID, Answer: rec.Answer, Replayed: true}, true
}

func (s *ToyService) answerer() Answerer {
	if s.Answerer == nil {
		return StubAnswerer{}
	}
	return s.Answerer
}

// publish emits an event after commit. Delivery failures are logged only.
func (s *ToyService) publish(ctx context.Context, ev events.InteractionLogged) {
	if s.Publisher == nil {
		return
	}
	timeout := s.PublishTimeout
	if timeout <= 0 {
		timeout = DefaultPublishTimeout
	}
	// The exchange is committed; a client hanging up must not drop the event.
	ctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), timeout)
	defer cancel()
	if err := s.Publisher.PublishInteraction(ctx, ev); err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("conversation_id", ev.ConversationID).Msg("publish interaction failed")
	}
}

func weekStart(t time.Time) time.Time {
	start, _ := domain.WeekBounds(t)
	return start
}
