package domain

import "context"

// Llm abstracts any chat/LLM provider able to call tools.
type Llm interface {
	// StartChat opens a conversation bound to a system instruction and a
	// tool schema. Neither can change for the lifetime of the session.
	StartChat(ctx context.Context, systemInstruction string, tools []ToolDeclaration) (ChatSession, error)
}

// ChatSession holds the provider-side dialogue history.
type ChatSession interface {
	SendMessage(ctx context.Context, text string) (ModelTurn, error)
	SendFunctionResults(ctx context.Context, results []FunctionResult) (ModelTurn, error)
	History() ([]ChatMessage, error)
}

// ModelTurn is one reply of the model: plain text, function calls, or both.
type ModelTurn struct {
	Text          string
	FunctionCalls []FunctionCall
}

// HasFunctionCalls reports whether the model asked for local execution.
func (t ModelTurn) HasFunctionCalls() bool {
	return len(t.FunctionCalls) > 0
}

type FunctionCall struct {
	ID   string
	Name string
	Args map[string]any
}

// FunctionResult is fed back into the session after a tool ran.
type FunctionResult struct {
	CallID  string
	Name    string
	Outcome ToolOutcome
}

type ChatMessage struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

type Role string

const (
	UserRole      Role = "user"
	AssistantRole Role = "assistant"
	SystemRole    Role = "system"
)

// SchemaType mirrors the OpenAPI subset understood by function-calling APIs.
type SchemaType string

const (
	TypeObject  SchemaType = "object"
	TypeArray   SchemaType = "array"
	TypeString  SchemaType = "string"
	TypeInteger SchemaType = "integer"
	TypeNumber  SchemaType = "number"
	TypeBoolean SchemaType = "boolean"
)

type Schema struct {
	Type        SchemaType
	Description string
	Properties  map[string]*Schema
	Items       *Schema
	Required    []string
}

// ToolDeclaration is what the model sees of a callable tool.
type ToolDeclaration struct {
	Name        string
	Description string
	Parameters  *Schema
}
