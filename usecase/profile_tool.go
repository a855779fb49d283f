package usecase

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/centralrestaurante/amigo-central/domain"
	"github.com/centralrestaurante/amigo-central/utils/log"
)

const SaveProfileToolName = "save_dietary_profile"

type saveProfileArgs struct {
	Profile domain.DietaryProfile `json:"profile"`
}

// SaveProfileTool replaces the caller's dietary profile.
type SaveProfileTool struct {
	store domain.Store
}

func NewSaveProfileTool(store domain.Store) *SaveProfileTool {
	return &SaveProfileTool{store: store}
}

func (t *SaveProfileTool) Declaration() domain.ToolDeclaration {
	list := func(desc string) *domain.Schema {
		return &domain.Schema{
			Type:        domain.TypeArray,
			Description: desc,
			Items:       &domain.Schema{Type: domain.TypeString},
		}
	}
	return domain.ToolDeclaration{
		Name: SaveProfileToolName,
		Description: "Saves or updates the dietary profile (allergies, restrictions, dislikes, likes) of the " +
			"logged-in user. Always send the COMPLETE, up-to-date profile: it replaces the stored one.",
		Parameters: &domain.Schema{
			Type:     domain.TypeObject,
			Required: []string{"profile"},
			Properties: map[string]*domain.Schema{
				"profile": {
					Type:        domain.TypeObject,
					Description: "The full dietary profile of the user.",
					Properties: map[string]*domain.Schema{
						"allergies":    list("Allergies stated by the user (e.g. 'nuts', 'shellfish')."),
						"restrictions": list("Dietary restrictions (e.g. 'vegan', 'gluten free')."),
						"dislikes":     list("Ingredients the user does not like."),
						"likes":        list("Ingredients or flavours the user likes."),
					},
				},
			},
		},
	}
}

func (t *SaveProfileTool) Handle(ctx context.Context, userID int64, args map[string]any) (domain.ToolOutcome, error) {
	logger := log.WithCtx(ctx).With(zap.String("tool", SaveProfileToolName))

	var in saveProfileArgs
	if err := decodeArgs(args, &in); err != nil {
		return invalidArguments(SaveProfileToolName, err), nil
	}

	user, err := t.store.GetUser(ctx, userID)
	if err != nil {
		return domain.ErrorOutcome(fmt.Sprintf("could not load user %d: %v", userID, err)), nil
	}
	if user == nil {
		return domain.ErrorOutcome(fmt.Sprintf("critical error: user %d does not exist", userID)), nil
	}

	profile := in.Profile.Normalize()
	if profile.IsEmpty() {
		logger.Info("empty dietary profile, nothing saved")
		return domain.InfoOutcome("The profile was not saved because no preference data was provided."), nil
	}

	document, err := profile.Document()
	if err != nil {
		return domain.ToolOutcome{}, err
	}
	if _, err := t.store.UpsertPreferenceProfile(ctx, userID, document); err != nil {
		logger.Error("failed to save dietary profile", zap.Error(err))
		return domain.ErrorOutcome(fmt.Sprintf("could not save the dietary profile: %v", err)), nil
	}

	logger.Info("dietary profile saved",
		zap.Int("allergies", len(profile.Allergies)),
		zap.Int("restrictions", len(profile.Restrictions)))
	return domain.ToolOutcome{
		Status:  domain.OutcomeSuccess,
		Message: fmt.Sprintf("Dietary profile saved for user %d.", userID),
		UserID:  userID,
	}, nil
}
