package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"agora.app/rounds/common/id"
	"agora.app/rounds/common/logger"
	"agora.app/rounds/internal/events"
	"agora.app/rounds/internal/model"
	"agora.app/rounds/internal/store"
)

var (
	ErrTopicEmpty      = errors.New("topic is empty")
	ErrDelegateInvalid = errors.New("delegate must be an active participant")
	ErrNotInitiator    = errors.New("only the initiator can do this")
)

// DiscussionService creates discussions and manages membership.
type DiscussionService interface {
	Create(ctx context.Context, topic string, initiatorUserID int64, invitedUserIDs []int64) (*model.Discussion, error)
	Get(ctx context.Context, discussionID int64) (*DiscussionView, error)
	Join(ctx context.Context, discussionID, userID int64) (*model.Participant, error)
	SetDelegate(ctx context.Context, discussionID, initiatorUserID, delegateUserID int64) error
	Participants(ctx context.Context, discussionID int64) ([]model.Participant, error)
}

// DiscussionView is the read projection of a discussion and its current round.
// ApprovalHolder is the user holding delegated approval authority; nil once a
// removed initiator left it vacant.
type DiscussionView struct {
	Discussion     model.Discussion `json:"discussion"`
	CurrentRound   model.Round      `json:"current_round"`
	ActiveCount    int              `json:"active_count"`
	ApprovalHolder *int64           `json:"approval_holder,omitempty"`
}

type discussionService struct {
	tx TxRunner
	lifecycle
}

func NewDiscussionService(tx TxRunner, lc lifecycle) DiscussionService {
	return &discussionService{tx: tx, lifecycle: lc}
}

func (s *discussionService) Create(ctx context.Context, topic string, initiatorUserID int64, invitedUserIDs []int64) (*model.Discussion, error) {
	topic = strings.TrimSpace(topic)
	if topic == "" {
		return nil, ErrTopicEmpty
	}
	if len(invitedUserIDs)+1 > s.cfg.DefaultParticipantCap {
		return nil, ErrParticipantCapReached
	}

	now := s.now()
	d := &model.Discussion{
		ID:                id.New(),
		Topic:             topic,
		Status:            model.DiscussionStatusActive,
		InitiatorID:       initiatorUserID,
		MaxResponseLength: s.cfg.DefaultMaxResponseLength,
		PacingMultiplier:  s.cfg.DefaultPacingMultiplier,
		MinResponseTime:   s.cfg.DefaultMinResponseTime,
		ParticipantCap:    s.cfg.DefaultParticipantCap,
		CreatedAt:         now,
	}

	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		if err := stores.Discussions().Create(ctx, d); err != nil {
			return fmt.Errorf("creating discussion: %w", err)
		}

		if err := stores.Participants().Create(ctx, &model.Participant{
			ID:           id.New(),
			DiscussionID: d.ID,
			UserID:       initiatorUserID,
			Role:         model.RoleInitiator,
			JoinedAt:     now,
		}); err != nil {
			return fmt.Errorf("creating initiator: %w", err)
		}

		seen := map[int64]bool{initiatorUserID: true}
		for _, uid := range invitedUserIDs {
			if seen[uid] {
				continue
			}
			seen[uid] = true
			if err := stores.Participants().Create(ctx, &model.Participant{
				ID:           id.New(),
				DiscussionID: d.ID,
				UserID:       uid,
				Role:         model.RoleActive,
				JoinedAt:     now,
			}); err != nil {
				return fmt.Errorf("creating participant: %w", err)
			}
		}

		// Round one starts unregulated; deadlines begin once enough
		// responses establish a pace.
		if err := stores.Rounds().Create(ctx, &model.Round{
			ID:           id.New(),
			DiscussionID: d.ID,
			Number:       1,
			Phase:        model.PhaseFreeForm,
			StartedAt:    now,
		}); err != nil {
			return fmt.Errorf("creating round: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{DiscussionID: &d.ID})
	slog.InfoContext(ctx, "discussion created", "topic", topic, "invited", len(invitedUserIDs))

	if err := s.emitter.Emit(ctx, events.Event{
		Type:         events.EventDiscussionCreated,
		DiscussionID: d.ID,
		UserID:       initiatorUserID,
	}); err != nil {
		slog.WarnContext(ctx, "emitting discussion created", "error", err)
	}
	return d, nil
}

func (s *discussionService) Get(ctx context.Context, discussionID int64) (*DiscussionView, error) {
	var out *DiscussionView
	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		d, err := stores.Discussions().GetByID(ctx, discussionID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrDiscussionNotFound
			}
			return fmt.Errorf("getting discussion: %w", err)
		}
		r, err := currentRound(ctx, stores, discussionID)
		if err != nil {
			return err
		}
		active, err := stores.Participants().CountActive(ctx, discussionID)
		if err != nil {
			return fmt.Errorf("counting active participants: %w", err)
		}
		initiator, err := stores.Participants().GetByDiscussionAndUser(ctx, discussionID, d.InitiatorID)
		if err != nil {
			return fmt.Errorf("getting initiator: %w", err)
		}
		out = &DiscussionView{
			Discussion:     *d,
			CurrentRound:   *r,
			ActiveCount:    active,
			ApprovalHolder: d.ApprovalHolder(initiator.Role),
		}
		return nil
	})
	return out, err
}

func (s *discussionService) Join(ctx context.Context, discussionID, userID int64) (*model.Participant, error) {
	var out *model.Participant
	err := s.tx.WithDiscussion(ctx, discussionID, func(stores StoreProvider) error {
		d, err := s.loadActive(ctx, stores, discussionID)
		if err != nil {
			return err
		}

		if _, err := stores.Participants().GetByDiscussionAndUser(ctx, discussionID, userID); err == nil {
			return ErrAlreadyParticipant
		} else if !errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("checking participant: %w", err)
		}

		all, err := stores.Participants().ListByDiscussion(ctx, discussionID)
		if err != nil {
			return fmt.Errorf("listing participants: %w", err)
		}
		if len(all) >= d.ParticipantCap {
			return ErrParticipantCapReached
		}

		p := &model.Participant{
			ID:           id.New(),
			DiscussionID: discussionID,
			UserID:       userID,
			Role:         model.RoleActive,
			JoinedAt:     s.now(),
		}
		if err := stores.Participants().Create(ctx, p); err != nil {
			return fmt.Errorf("creating participant: %w", err)
		}

		slog.InfoContext(ctx, "participant joined", "discussion_id", discussionID, "user_id", userID)
		out = p
		return nil
	})
	return out, err
}

func (s *discussionService) SetDelegate(ctx context.Context, discussionID, initiatorUserID, delegateUserID int64) error {
	return s.tx.WithDiscussion(ctx, discussionID, func(stores StoreProvider) error {
		d, err := s.loadActive(ctx, stores, discussionID)
		if err != nil {
			return err
		}
		if d.InitiatorID != initiatorUserID {
			return ErrNotInitiator
		}

		delegate, err := stores.Participants().GetByDiscussionAndUser(ctx, discussionID, delegateUserID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrDelegateInvalid
			}
			return fmt.Errorf("getting delegate: %w", err)
		}
		if !delegate.Role.IsActive() {
			return ErrDelegateInvalid
		}

		if err := stores.Discussions().SetDelegate(ctx, discussionID, &delegateUserID); err != nil {
			return fmt.Errorf("setting delegate: %w", err)
		}
		slog.InfoContext(ctx, "delegate set", "discussion_id", discussionID, "delegate_user_id", delegateUserID)
		return nil
	})
}

func (s *discussionService) Participants(ctx context.Context, discussionID int64) ([]model.Participant, error) {
	var out []model.Participant
	err := s.tx.WithTx(ctx, func(stores StoreProvider) error {
		if _, err := stores.Discussions().GetByID(ctx, discussionID); err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return ErrDiscussionNotFound
			}
			return fmt.Errorf("getting discussion: %w", err)
		}
		var err error
		out, err = stores.Participants().ListByDiscussion(ctx, discussionID)
		if err != nil {
			return fmt.Errorf("listing participants: %w", err)
		}
		return nil
	})
	return out, err
}
