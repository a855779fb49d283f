package usecase

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/centralrestaurante/amigo-central/domain"
)

func TestContextBuilderNewClient(t *testing.T) {
	s := newTestStore(t)
	userID := newTestUser(t, s, "Ana")
	b := NewContextBuilder(s)

	cc, err := b.ClientContext(context.Background(), userID)
	require.NoError(t, err)
	assert.Equal(t, NewClient, cc.Variant)

	prompt, err := b.BuildSystemPrompt(context.Background(), userID)
	require.NoError(t, err)
	assert.Contains(t, prompt, FabricationGuard)
	assert.Contains(t, prompt, "You are talking with Ana")
	assert.Contains(t, prompt, "does NOT have a saved dietary profile")
	assert.Contains(t, prompt, "'sensory profile'")
	assert.Contains(t, prompt, "Name: Theobromas Lab")
	assert.Contains(t, prompt, "Price: S/ 1,200.00")
	assert.NotContains(t, prompt, "ALREADY HAS")
}

func TestContextBuilderReturningClient(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID := newTestUser(t, s, "Ana")
	_, err := s.UpsertPreferenceProfile(ctx, userID, `{"allergies":["nuts"],"restrictions":[],"dislikes":[],"likes":["cacao"]}`)
	require.NoError(t, err)

	when := time.Date(2025, 3, 1, 20, 0, 0, 0, time.UTC)
	_, err = s.CreateReservation(ctx, &domain.Reservation{
		UserID: &userID, Name: "Ana", PartySize: 2, ExperienceID: 3, ScheduledAt: when, Status: domain.ReservationCompleted,
	})
	require.NoError(t, err)
	_, err = s.CreateReservation(ctx, &domain.Reservation{
		UserID: &userID, Name: "Ana", PartySize: 6, ExperienceID: 2, ScheduledAt: when.AddDate(1, 0, 0),
	})
	require.NoError(t, err)

	b := NewContextBuilder(s)
	cc, err := b.ClientContext(ctx, userID)
	require.NoError(t, err)
	assert.Equal(t, ReturningClient, cc.Variant)
	assert.Equal(t, []string{"nuts"}, cc.Profile.Allergies)
	assert.Contains(t, cc.HistoryJSON, `"experience_id":3`)
	assert.NotContains(t, cc.HistoryJSON, `"experience_id":2`)

	prompt, err := RenderSystemPrompt(cc)
	require.NoError(t, err)
	assert.Contains(t, prompt, FabricationGuard)
	assert.Contains(t, prompt, "ALREADY HAS a saved dietary profile")
	assert.Contains(t, prompt, `"allergies":["nuts"]`)
	assert.Contains(t, prompt, "COMPLETE, UPDATED profile")
	assert.NotContains(t, prompt, "does NOT have")
}

func TestContextBuilderEmptyDocumentIsNewClient(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()
	userID := newTestUser(t, s, "Ana")

	for _, doc := range []string{"", `{"allergies":[],"likes":[]}`, "not json"} {
		_, err := s.UpsertPreferenceProfile(ctx, userID, doc)
		require.NoError(t, err)

		cc, err := NewContextBuilder(s).ClientContext(ctx, userID)
		require.NoError(t, err)
		assert.Equal(t, NewClient, cc.Variant, doc)
	}
}

func TestContextBuilderUnknownUserFallsBackToGenericName(t *testing.T) {
	s := newTestStore(t)

	prompt, err := NewContextBuilder(s).BuildSystemPrompt(context.Background(), 404)
	require.NoError(t, err)
	assert.Contains(t, prompt, "You are talking with client (ID: 404)")
	assert.Contains(t, prompt, "does NOT have")
}

func TestContextBuilderEmptyCatalog(t *testing.T) {
	s := newTestStore(t)
	userID := newTestUser(t, s, "Ana")
	faulty := &faultyStore{Store: s, listExperiencesErr: errors.New("connection reset")}

	prompt, err := NewContextBuilder(faulty).BuildSystemPrompt(context.Background(), userID)
	require.NoError(t, err)
	assert.Contains(t, prompt, FabricationGuard)
	assert.Contains(t, prompt, "no experiences are available")
	assert.NotContains(t, prompt, "Theobromas")
}
