package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExperiencePriceLabel(t *testing.T) {
	cases := map[int64]string{
		0:         "S/ 0.00",
		35000:     "S/ 350.00",
		120000:    "S/ 1,200.00",
		123456789: "S/ 1,234,567.89",
	}
	for cents, want := range cases {
		assert.Equal(t, want, Experience{PriceCents: cents}.PriceLabel())
	}
}

func TestDietaryProfileNormalize(t *testing.T) {
	p := DietaryProfile{
		Allergies: []string{" nuts ", "Nuts", "", "shellfish"},
	}.Normalize()

	assert.Equal(t, []string{"nuts", "shellfish"}, p.Allergies)
	assert.NotNil(t, p.Likes)
	assert.Empty(t, p.Likes)
}

func TestDietaryProfileIsEmpty(t *testing.T) {
	assert.True(t, DietaryProfile{}.IsEmpty())
	assert.True(t, DietaryProfile{Likes: []string{"  "}}.Normalize().IsEmpty())
	assert.False(t, DietaryProfile{Dislikes: []string{"cilantro"}}.IsEmpty())
}

func TestParseDietaryProfile(t *testing.T) {
	p, err := ParseDietaryProfile(`{"allergies":["nuts"],"likes":["cacao"]}`)
	require.NoError(t, err)
	assert.Equal(t, []string{"nuts"}, p.Allergies)
	assert.Equal(t, []string{"cacao"}, p.Likes)
	assert.Empty(t, p.Restrictions)

	empty, err := ParseDietaryProfile("")
	require.NoError(t, err)
	assert.True(t, empty.IsEmpty())

	_, err = ParseDietaryProfile("not json")
	assert.Error(t, err)
}

func TestDietaryProfileDocumentHasFourLists(t *testing.T) {
	doc, err := DietaryProfile{Allergies: []string{"nuts"}}.Document()
	require.NoError(t, err)
	assert.JSONEq(t, `{"allergies":["nuts"],"restrictions":[],"dislikes":[],"likes":[]}`, doc)
}

func TestToolOutcomeAsMap(t *testing.T) {
	m := ToolOutcome{Status: OutcomeSuccess, Message: "ok", ReservationID: 7}.AsMap()
	assert.Equal(t, "success", m["status"])
	assert.Equal(t, int64(7), m["reservation_id"])
	_, hasUser := m["user_id"]
	assert.False(t, hasUser)
}
