package llm

import (
	"context"
	"strings"

	"github.com/pkg/errors"
	"google.golang.org/genai"

	"github.com/centralrestaurante/amigo-central/domain"
)

const DefaultModel = "gemini-2.5-flash"

type GeminiClient struct {
	client *genai.Client
	model  string
}

var _ domain.Llm = (*GeminiClient)(nil)

func NewGeminiClient(ctx context.Context, apiKey, model string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, errors.New("google api key is required")
	}
	if model == "" {
		model = DefaultModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, errors.Wrap(err, "creating genai client")
	}

	return &GeminiClient{client: client, model: model}, nil
}

// StartChat opens a provider chat whose system instruction and tools are
// fixed from here on.
func (g *GeminiClient) StartChat(ctx context.Context, systemInstruction string, tools []domain.ToolDeclaration) (domain.ChatSession, error) {
	config := &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{
			Role:  genai.RoleUser,
			Parts: []*genai.Part{{Text: systemInstruction}},
		},
	}
	if len(tools) > 0 {
		config.Tools = []*genai.Tool{{FunctionDeclarations: toFunctionDeclarations(tools)}}
	}

	chat, err := g.client.Chats.Create(ctx, g.model, config, nil)
	if err != nil {
		return nil, errors.Wrap(err, "creating chat")
	}

	return &GeminiChatSession{chat: chat}, nil
}

type GeminiChatSession struct {
	chat *genai.Chat
}

// SendMessage implements domain.ChatSession.
func (g *GeminiChatSession) SendMessage(ctx context.Context, text string) (domain.ModelTurn, error) {
	resp, err := g.chat.SendMessage(ctx, genai.Part{Text: text})
	if err != nil {
		return domain.ModelTurn{}, errors.Wrap(err, "send message")
	}
	return turnFromResponse(resp), nil
}

// SendFunctionResults answers every function call of the previous turn in a
// single message.
func (g *GeminiChatSession) SendFunctionResults(ctx context.Context, results []domain.FunctionResult) (domain.ModelTurn, error) {
	resp, err := g.chat.SendMessage(ctx, functionResponseParts(results)...)
	if err != nil {
		return domain.ModelTurn{}, errors.Wrap(err, "send function results")
	}
	return turnFromResponse(resp), nil
}

func (g *GeminiChatSession) History() ([]domain.ChatMessage, error) {
	return historyFromContents(g.chat.History(false)), nil
}

func functionResponseParts(results []domain.FunctionResult) []genai.Part {
	parts := make([]genai.Part, 0, len(results))
	for _, r := range results {
		parts = append(parts, genai.Part{
			FunctionResponse: &genai.FunctionResponse{
				ID:       r.CallID,
				Name:     r.Name,
				Response: r.Outcome.AsMap(),
			},
		})
	}
	return parts
}

func turnFromResponse(resp *genai.GenerateContentResponse) domain.ModelTurn {
	var turn domain.ModelTurn
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return turn
	}

	var text strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if part == nil {
			continue
		}
		if fc := part.FunctionCall; fc != nil {
			args := fc.Args
			if args == nil {
				args = map[string]any{}
			}
			turn.FunctionCalls = append(turn.FunctionCalls, domain.FunctionCall{
				ID:   fc.ID,
				Name: fc.Name,
				Args: args,
			})
			continue
		}
		if part.Thought {
			continue
		}
		text.WriteString(part.Text)
	}
	turn.Text = strings.TrimSpace(text.String())
	return turn
}

func historyFromContents(contents []*genai.Content) []domain.ChatMessage {
	history := make([]domain.ChatMessage, 0, len(contents))
	for _, c := range contents {
		if c == nil {
			continue
		}
		var content strings.Builder
		for _, p := range c.Parts {
			if p != nil && p.FunctionCall == nil && p.FunctionResponse == nil {
				content.WriteString(p.Text)
			}
		}
		if content.Len() == 0 {
			continue
		}
		role := domain.AssistantRole
		if c.Role == genai.RoleUser {
			role = domain.UserRole
		}
		history = append(history, domain.ChatMessage{
			Role:    role,
			Content: content.String(),
		})
	}
	return history
}

func toFunctionDeclarations(tools []domain.ToolDeclaration) []*genai.FunctionDeclaration {
	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, t := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:        t.Name,
			Description: t.Description,
			Parameters:  toSchema(t.Parameters),
		})
	}
	return decls
}

var schemaTypes = map[domain.SchemaType]genai.Type{
	domain.TypeObject:  genai.TypeObject,
	domain.TypeArray:   genai.TypeArray,
	domain.TypeString:  genai.TypeString,
	domain.TypeInteger: genai.TypeInteger,
	domain.TypeNumber:  genai.TypeNumber,
	domain.TypeBoolean: genai.TypeBoolean,
}

func toSchema(s *domain.Schema) *genai.Schema {
	if s == nil {
		return nil
	}
	out := &genai.Schema{
		Type:        schemaTypes[s.Type],
		Description: s.Description,
		Required:    s.Required,
		Items:       toSchema(s.Items),
	}
	if len(s.Properties) > 0 {
		out.Properties = make(map[string]*genai.Schema, len(s.Properties))
		for name, prop := range s.Properties {
			out.Properties[name] = toSchema(prop)
		}
	}
	return out
}
