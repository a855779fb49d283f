package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/centralrestaurante/amigo-central/domain"
	"github.com/centralrestaurante/amigo-central/utils/log"
)

const CreateReservationToolName = "create_reservation"

var reservationLayouts = []string{
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
}

type createReservationArgs struct {
	ReservationName        string `json:"reservation_name"`
	PartySize              int    `json:"party_size"`
	ExperienceID           *int64 `json:"experience_id"`
	When                   string `json:"when"`
	AdditionalRestrictions string `json:"additional_restrictions"`
}

// CreateReservationTool books an experience for the caller.
type CreateReservationTool struct {
	store    domain.Store
	location *time.Location
}

// NewCreateReservationTool reads datetimes without an offset in loc.
func NewCreateReservationTool(store domain.Store, loc *time.Location) *CreateReservationTool {
	if loc == nil {
		loc = time.UTC
	}
	return &CreateReservationTool{store: store, location: loc}
}

func (t *CreateReservationTool) Declaration() domain.ToolDeclaration {
	return domain.ToolDeclaration{
		Name:        CreateReservationToolName,
		Description: "Saves a new reservation in the database for the logged-in user.",
		Parameters: &domain.Schema{
			Type:     domain.TypeObject,
			Required: []string{"reservation_name", "party_size", "experience_id", "when"},
			Properties: map[string]*domain.Schema{
				"reservation_name": {
					Type:        domain.TypeString,
					Description: "Name the reservation is under (can be the user's own name).",
				},
				"party_size": {
					Type:        domain.TypeInteger,
					Description: "Total number of people in the reservation.",
				},
				"experience_id": {
					Type:        domain.TypeInteger,
					Description: "The id of the chosen experience; valid experience ids are 1, 2, or 3.",
				},
				"when": {
					Type:        domain.TypeString,
					Description: "Date and time of the reservation in ISO 8601 format (YYYY-MM-DDTHH:MM:SS).",
				},
				"additional_restrictions": {
					Type:        domain.TypeString,
					Description: "Notes or restrictions that apply to THIS reservation only.",
				},
			},
		},
	}
}

func (t *CreateReservationTool) Handle(ctx context.Context, userID int64, args map[string]any) (domain.ToolOutcome, error) {
	logger := log.WithCtx(ctx).With(zap.String("tool", CreateReservationToolName))

	if userID <= 0 {
		return domain.ErrorOutcome("internal error: the user could not be identified"), nil
	}

	var in createReservationArgs
	if err := decodeArgs(args, &in); err != nil {
		return invalidArguments(CreateReservationToolName, err), nil
	}
	if in.ExperienceID == nil {
		return domain.ErrorOutcome("the field 'experience_id' is required"), nil
	}

	experienceID := *in.ExperienceID
	experience, err := t.store.GetExperience(ctx, experienceID)
	if err != nil {
		return domain.ErrorOutcome(fmt.Sprintf("could not look up experience %d: %v", experienceID, err)), nil
	}
	if experience == nil || !experience.Active {
		return domain.ErrorOutcome(fmt.Sprintf(
			"experience id %d is not valid. Valid ids are %s. Please ask the user again.",
			experienceID, t.validIDs(ctx))), nil
	}

	if strings.TrimSpace(in.ReservationName) == "" {
		return domain.ErrorOutcome("the field 'reservation_name' is required"), nil
	}
	if in.PartySize < 1 {
		return domain.ErrorOutcome("the field 'party_size' must be at least 1"), nil
	}

	when, err := t.parseWhen(in.When)
	if err != nil {
		return domain.ToolOutcome{}, err
	}

	reservation, err := t.store.CreateReservation(ctx, &domain.Reservation{
		UserID:       &userID,
		Name:         strings.TrimSpace(in.ReservationName),
		PartySize:    in.PartySize,
		ExperienceID: experienceID,
		Restrictions: strings.TrimSpace(in.AdditionalRestrictions),
		ScheduledAt:  when,
		Status:       domain.ReservationPending,
	})
	if err != nil {
		logger.Error("failed to create reservation", zap.Error(err))
		return domain.ErrorOutcome(fmt.Sprintf("could not create the reservation: %v", err)), nil
	}

	logger.Info("reservation created",
		zap.Int64("reservation_id", reservation.ID),
		zap.Int64("experience_id", experienceID),
		zap.Int("party_size", in.PartySize),
		zap.Time("when", when))
	return domain.ToolOutcome{
		Status:        domain.OutcomeSuccess,
		Message:       fmt.Sprintf("Reservation created successfully. Reservation id: %d.", reservation.ID),
		ReservationID: reservation.ID,
	}, nil
}

// parseWhen accepts ISO-8601 with or without seconds and offset.
func (t *CreateReservationTool) parseWhen(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	if ts, err := time.Parse(time.RFC3339, s); err == nil {
		return ts, nil
	}
	for _, layout := range reservationLayouts {
		if ts, err := time.ParseInLocation(layout, s, t.location); err == nil {
			return ts, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid isoformat string: %q", s)
}

// validIDs renders the active catalog ids as "1, 2 or 3".
func (t *CreateReservationTool) validIDs(ctx context.Context) string {
	list, err := t.store.ListExperiences(ctx, true)
	if err != nil || len(list) == 0 {
		return "1, 2 or 3"
	}
	ids := make([]string, 0, len(list))
	for _, e := range list {
		ids = append(ids, strconv.FormatInt(e.ID, 10))
	}
	if len(ids) == 1 {
		return ids[0]
	}
	return strings.Join(ids[:len(ids)-1], ", ") + " or " + ids[len(ids)-1]
}
