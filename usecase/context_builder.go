package usecase

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	"go.uber.org/zap"

	"github.com/centralrestaurante/amigo-central/domain"
	"github.com/centralrestaurante/amigo-central/utils/log"
)

const anonymousClientName = "client"

// PromptBuilder produces the fixed system instruction of a new conversation.
type PromptBuilder interface {
	BuildSystemPrompt(ctx context.Context, userID int64) (string, error)
}

type PromptVariant string

const (
	ReturningClient PromptVariant = "returning"
	NewClient       PromptVariant = "new"
)

// ClientContext is everything the assistant is told about the diner.
type ClientContext struct {
	Variant     PromptVariant
	ClientID    int64
	ClientName  string
	Experiences []domain.Experience
	Profile     domain.DietaryProfile
	ProfileJSON string
	HistoryJSON string
}

type visit struct {
	Date         string `json:"date"`
	ExperienceID int64  `json:"experience_id"`
	PartySize    int    `json:"party_size"`
	Status       string `json:"status"`
}

type ContextBuilder struct {
	store domain.Store
}

var _ PromptBuilder = (*ContextBuilder)(nil)

func NewContextBuilder(store domain.Store) *ContextBuilder {
	return &ContextBuilder{store: store}
}

func (b *ContextBuilder) BuildSystemPrompt(ctx context.Context, userID int64) (string, error) {
	cc, err := b.ClientContext(ctx, userID)
	if err != nil {
		return "", err
	}
	return RenderSystemPrompt(cc)
}

// ClientContext gathers the catalog, user, profile and completed visits.
// A catalog read failure degrades to an empty catalog.
func (b *ContextBuilder) ClientContext(ctx context.Context, userID int64) (*ClientContext, error) {
	logger := log.WithCtx(ctx)

	experiences, err := b.store.ListExperiences(ctx, true)
	if err != nil {
		logger.Warn("failed to load experiences, using an empty catalog", zap.Error(err))
		experiences = nil
	}

	cc := &ClientContext{
		Variant:     NewClient,
		ClientID:    userID,
		ClientName:  anonymousClientName,
		Experiences: experiences,
		HistoryJSON: "[]",
	}

	user, err := b.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load user %d: %w", userID, err)
	}
	if user == nil {
		logger.Info("no user record, using the generic client name")
		return cc, nil
	}
	cc.ClientName = user.Name

	stored, err := b.store.GetPreferenceProfile(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("load preference profile: %w", err)
	}
	if stored == nil {
		return cc, nil
	}
	profile, err := domain.ParseDietaryProfile(stored.Document)
	if err != nil {
		logger.Warn("stored dietary profile is unreadable, treating client as new", zap.Error(err))
		return cc, nil
	}
	if profile.IsEmpty() {
		return cc, nil
	}

	completed := domain.ReservationCompleted
	history, err := b.store.ListReservations(ctx, domain.FindReservation{UserID: &userID, Status: &completed})
	if err != nil {
		return nil, fmt.Errorf("load reservation history: %w", err)
	}
	visits := make([]visit, 0, len(history))
	for _, r := range history {
		visits = append(visits, visit{
			Date:         r.ScheduledAt.Format("2006-01-02T15:04:05"),
			ExperienceID: r.ExperienceID,
			PartySize:    r.PartySize,
			Status:       string(r.Status),
		})
	}
	historyJSON, err := json.Marshal(visits)
	if err != nil {
		return nil, err
	}
	profileJSON, err := profile.Document()
	if err != nil {
		return nil, err
	}

	cc.Variant = ReturningClient
	cc.Profile = profile
	cc.ProfileJSON = profileJSON
	cc.HistoryJSON = string(historyJSON)
	return cc, nil
}

// RenderSystemPrompt picks the instruction variant for cc.
func RenderSystemPrompt(cc *ClientContext) (string, error) {
	tmpl := newClientPrompt
	if cc.Variant == ReturningClient {
		tmpl = returningClientPrompt
	}
	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, cc); err != nil {
		return "", fmt.Errorf("render %s prompt: %w", cc.Variant, err)
	}
	return buf.String(), nil
}
