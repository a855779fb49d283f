package usecase

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/centralrestaurante/amigo-central/domain"
	"github.com/centralrestaurante/amigo-central/utils/log"
)

const (
	DefaultMaxToolIterations = 8

	// FallbackReply replaces an empty terminal model turn.
	FallbackReply = "I had trouble processing the response. Please try again."
)

// ExecutedCall records one tool call of a turn.
type ExecutedCall struct {
	Name    string
	Outcome domain.ToolOutcome
}

type TurnResult struct {
	Reply      string
	Executed   []ExecutedCall
	Iterations int
	Fallback   bool
}

// Dispatcher drives one user message through the model until it answers
// with text, executing the tools it asks for along the way.
type Dispatcher struct {
	tools         *ToolRegistry
	maxIterations int
	metrics       domain.Metrics
	now           func() time.Time
}

func NewDispatcher(tools *ToolRegistry, maxIterations int, metrics domain.Metrics) *Dispatcher {
	if maxIterations <= 0 {
		maxIterations = DefaultMaxToolIterations
	}
	if metrics == nil {
		metrics = domain.NopMetrics{}
	}
	return &Dispatcher{
		tools:         tools,
		maxIterations: maxIterations,
		metrics:       metrics,
		now:           time.Now,
	}
}

// Run sends message and loops AWAIT_MODEL -> TOOL_CALL until FINAL_TEXT.
// The caller must hold the conversation lock.
func (d *Dispatcher) Run(ctx context.Context, chat domain.ChatSession, userID int64, message string) (*TurnResult, error) {
	logger := log.WithCtx(ctx)
	result := &TurnResult{}

	turn, err := d.callModel(ctx, func(ctx context.Context) (domain.ModelTurn, error) {
		return chat.SendMessage(ctx, message)
	})
	if err != nil {
		return nil, err
	}

	for turn.HasFunctionCalls() {
		if result.Iterations >= d.maxIterations {
			logger.Warn("tool loop exhausted", zap.Int("iterations", result.Iterations))
			return nil, ErrToolLoopExhausted
		}
		result.Iterations++

		handlers := make([]ToolHandler, len(turn.FunctionCalls))
		for i, call := range turn.FunctionCalls {
			h, ok := d.tools.Lookup(call.Name)
			if !ok {
				logger.Warn("model called an unknown tool", zap.String("tool", call.Name))
				return nil, fmt.Errorf("%w: %s", ErrUnknownTool, call.Name)
			}
			handlers[i] = h
		}

		results := make([]domain.FunctionResult, 0, len(turn.FunctionCalls))
		for i, call := range turn.FunctionCalls {
			outcome := d.execute(ctx, handlers[i], userID, call)
			result.Executed = append(result.Executed, ExecutedCall{Name: call.Name, Outcome: outcome})
			results = append(results, domain.FunctionResult{
				CallID:  call.ID,
				Name:    call.Name,
				Outcome: outcome,
			})
		}

		turn, err = d.callModel(ctx, func(ctx context.Context) (domain.ModelTurn, error) {
			return chat.SendFunctionResults(ctx, results)
		})
		if err != nil {
			return nil, err
		}
	}

	result.Reply = turn.Text
	if result.Reply == "" {
		logger.Warn("model returned an empty final turn, using fallback reply")
		result.Reply = FallbackReply
		result.Fallback = true
	}
	return result, nil
}

func (d *Dispatcher) callModel(ctx context.Context, call func(context.Context) (domain.ModelTurn, error)) (domain.ModelTurn, error) {
	start := d.now()
	turn, err := call(ctx)
	elapsed := d.now().Sub(start)
	d.metrics.ObserveModelCall(elapsed, err)
	if err != nil {
		log.WithCtx(ctx).Error("model call failed", zap.Duration("elapsed", elapsed), zap.Error(err))
		return domain.ModelTurn{}, fmt.Errorf("%w: %w", ErrModelUnavailable, err)
	}
	log.WithCtx(ctx).Debug("model replied",
		zap.Duration("elapsed", elapsed),
		zap.Int("function_calls", len(turn.FunctionCalls)))
	return turn, nil
}

// execute runs one handler. Handler errors and panics become error outcomes
// so the model can recover.
func (d *Dispatcher) execute(ctx context.Context, h ToolHandler, userID int64, call domain.FunctionCall) (outcome domain.ToolOutcome) {
	start := d.now()
	logger := log.WithCtx(ctx).With(zap.String("tool", call.Name), zap.String("call_id", call.ID))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("tool panicked", zap.Any("panic", r), zap.Stack("stack"))
			outcome = domain.ErrorOutcome(fmt.Sprintf("%s failed: %v", call.Name, r))
		}
		elapsed := d.now().Sub(start)
		d.metrics.ObserveToolCall(call.Name, outcome.Status, elapsed)
		logger.Info("tool executed",
			zap.String("status", string(outcome.Status)),
			zap.Duration("elapsed", elapsed))
	}()

	args := call.Args
	if args == nil {
		args = map[string]any{}
	}
	out, err := h.Handle(ctx, userID, args)
	if err != nil {
		logger.Error("tool failed", zap.Error(err))
		return domain.ErrorOutcome(fmt.Sprintf("%s failed: %v", call.Name, err))
	}
	if out.Status == "" {
		out.Status = domain.OutcomeSuccess
	}
	return out
}
