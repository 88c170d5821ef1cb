package dto

import (
	"time"

	"agora.app/rounds/internal/model"
)

type CreateDiscussionRequest struct {
	Topic          string  `json:"topic" binding:"required,min=1,max=500"`
	InvitedUserIDs []int64 `json:"invited_user_ids" binding:"omitempty,dive,gt=0"`
}

type DiscussionResponse struct {
	ID                int64      `json:"id,string"`
	Topic             string     `json:"topic"`
	Status            string     `json:"status"`
	ArchiveReason     *string    `json:"archive_reason,omitempty"`
	InitiatorID       int64      `json:"initiator_id,string"`
	DelegateID        *int64     `json:"delegate_id,omitempty"`
	MaxResponseLength int        `json:"max_response_length"`
	PacingMultiplier  float64    `json:"pacing_multiplier"`
	MinResponseTime   float64    `json:"min_response_minutes"`
	ParticipantCap    int        `json:"participant_cap"`
	CreatedAt         time.Time  `json:"created_at"`
	ArchivedAt        *time.Time `json:"archived_at,omitempty"`
}

func ToDiscussionResponse(d *model.Discussion) *DiscussionResponse {
	resp := &DiscussionResponse{
		ID:                d.ID,
		Topic:             d.Topic,
		Status:            string(d.Status),
		InitiatorID:       d.InitiatorID,
		DelegateID:        d.DelegateID,
		MaxResponseLength: d.MaxResponseLength,
		PacingMultiplier:  d.PacingMultiplier,
		MinResponseTime:   d.MinResponseTime,
		ParticipantCap:    d.ParticipantCap,
		CreatedAt:         d.CreatedAt,
		ArchivedAt:        d.ArchivedAt,
	}
	if d.ArchiveReason != nil {
		reason := string(*d.ArchiveReason)
		resp.ArchiveReason = &reason
	}
	return resp
}

type ParticipantResponse struct {
	ID            int64      `json:"id,string"`
	UserID        int64      `json:"user_id,string"`
	Role          string     `json:"role"`
	ObserverCause *string    `json:"observer_cause,omitempty"`
	ObserverSince *time.Time `json:"observer_since,omitempty"`
	TimesRemoved  int        `json:"times_removed"`
	HasEverPosted bool       `json:"has_ever_posted"`
	JoinedAt      time.Time  `json:"joined_at"`
}

func ToParticipantResponse(p *model.Participant) *ParticipantResponse {
	resp := &ParticipantResponse{
		ID:            p.ID,
		UserID:        p.UserID,
		Role:          string(p.Role),
		ObserverSince: p.ObserverSince,
		TimesRemoved:  p.TimesRemoved,
		HasEverPosted: p.HasEverPosted,
		JoinedAt:      p.JoinedAt,
	}
	if p.ObserverCause != nil {
		cause := string(*p.ObserverCause)
		resp.ObserverCause = &cause
	}
	return resp
}

type ResponseBody struct {
	ID            int64      `json:"id,string"`
	RoundID       int64      `json:"round_id,string"`
	ParticipantID int64      `json:"participant_id,string"`
	Content       string     `json:"content"`
	ContentLength int        `json:"content_length"`
	EditCount     int        `json:"edit_count"`
	Locked        bool       `json:"locked"`
	CreatedAt     time.Time  `json:"created_at"`
	EditedAt      *time.Time `json:"edited_at,omitempty"`
}

func ToResponseBody(r *model.Response) *ResponseBody {
	return &ResponseBody{
		ID:            r.ID,
		RoundID:       r.RoundID,
		ParticipantID: r.ParticipantID,
		Content:       r.Content,
		ContentLength: r.ContentLength,
		EditCount:     r.EditCount,
		Locked:        r.Locked,
		CreatedAt:     r.CreatedAt,
		EditedAt:      r.EditedAt,
	}
}
