// Package domaintest provides in-memory fakes of the domain ports for tests.
package domaintest

import (
	"context"
	"errors"
	"sync"

	"github.com/centralrestaurante/amigo-central/domain"
)

// ErrScriptExhausted is returned by ScriptedChat when it runs out of turns.
var ErrScriptExhausted = errors.New("scripted chat has no more turns")

// ScriptedChat replays a fixed list of model turns and records what it was
// sent. When Loop is set it is returned forever once Turns run out.
type ScriptedChat struct {
	mu sync.Mutex

	Turns []domain.ModelTurn
	Loop  *domain.ModelTurn
	Err   error

	Messages []string
	Results  [][]domain.FunctionResult
}

var _ domain.ChatSession = (*ScriptedChat)(nil)

func NewScriptedChat(turns ...domain.ModelTurn) *ScriptedChat {
	return &ScriptedChat{Turns: turns}
}

func (c *ScriptedChat) next() (domain.ModelTurn, error) {
	if c.Err != nil {
		return domain.ModelTurn{}, c.Err
	}
	if len(c.Turns) > 0 {
		t := c.Turns[0]
		c.Turns = c.Turns[1:]
		return t, nil
	}
	if c.Loop != nil {
		return *c.Loop, nil
	}
	return domain.ModelTurn{}, ErrScriptExhausted
}

func (c *ScriptedChat) SendMessage(ctx context.Context, text string) (domain.ModelTurn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return domain.ModelTurn{}, err
	}
	c.Messages = append(c.Messages, text)
	return c.next()
}

func (c *ScriptedChat) SendFunctionResults(ctx context.Context, results []domain.FunctionResult) (domain.ModelTurn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := ctx.Err(); err != nil {
		return domain.ModelTurn{}, err
	}
	c.Results = append(c.Results, results)
	return c.next()
}

func (c *ScriptedChat) History() ([]domain.ChatMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	history := make([]domain.ChatMessage, 0, len(c.Messages))
	for _, m := range c.Messages {
		history = append(history, domain.ChatMessage{Role: domain.UserRole, Content: m})
	}
	return history, nil
}

// LastResults returns the function results of the most recent tool round.
func (c *ScriptedChat) LastResults() []domain.FunctionResult {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.Results) == 0 {
		return nil
	}
	return c.Results[len(c.Results)-1]
}

// Llm hands out chats built by NewChat and records every StartChat.
type Llm struct {
	mu sync.Mutex

	NewChat  func() domain.ChatSession
	Err      error
	Prompts  []string
	Tools    [][]domain.ToolDeclaration
	Sessions []domain.ChatSession
}

var _ domain.Llm = (*Llm)(nil)

func (l *Llm) StartChat(_ context.Context, systemInstruction string, tools []domain.ToolDeclaration) (domain.ChatSession, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.Err != nil {
		return nil, l.Err
	}
	l.Prompts = append(l.Prompts, systemInstruction)
	l.Tools = append(l.Tools, tools)

	var chat domain.ChatSession
	if l.NewChat != nil {
		chat = l.NewChat()
	} else {
		chat = NewScriptedChat()
	}
	l.Sessions = append(l.Sessions, chat)
	return chat, nil
}

func (l *Llm) StartCount() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.Prompts)
}

// Text builds a text-only model turn.
func Text(s string) domain.ModelTurn {
	return domain.ModelTurn{Text: s}
}

// Call builds a model turn with one function call.
func Call(name string, args map[string]any) domain.ModelTurn {
	return domain.ModelTurn{FunctionCalls: []domain.FunctionCall{{ID: name + "-call", Name: name, Args: args}}}
}
