// Package orchestrator runs the tool-calling conversation loop: it carries
// the session history, submits it to the model with the tool catalog, executes
// the tool invocations the model requests, and feeds the results back until
// the model answers in plain text.
package orchestrator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/davidh/jarvis/internal/toolbelt"
	"github.com/davidh/jarvis/internal/tools"
)

// DefaultMaxIterations bounds model round-trips within a single turn. A turn
// that has not produced a text answer by then is stuck in a tool loop.
const DefaultMaxIterations = 10

// ErrTurnBudgetExceeded is returned when a turn exhausts its model
// round-trips without reaching a text answer.
var ErrTurnBudgetExceeded = errors.New("turn exceeded maximum tool iterations")

// Model is the inference surface the orchestrator talks to. Satisfied by
// toolbelt.AnthropicClient.
type Model interface {
	Chat(ctx context.Context, req *toolbelt.AnthropicChatRequest) (*toolbelt.AnthropicChatResponse, error)
}

// Recorder persists conversation transcripts. Persistence is best-effort: a
// failed write is logged, never surfaced to the turn. Source carries the
// conversation origin so reactor sessions are not filed as interactive ones.
type Recorder interface {
	RecordMessage(sessionID, source, role, content string) error
}

// Orchestrator drives conversations against a model and a tool executor.
type Orchestrator struct {
	model         Model
	executor      *tools.Executor
	promptCfg     PromptConfig
	recorder      Recorder
	maxIterations int
	now           func() time.Time
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithMaxIterations overrides the per-turn model round-trip budget.
func WithMaxIterations(n int) Option {
	return func(o *Orchestrator) {
		if n > 0 {
			o.maxIterations = n
		}
	}
}

// WithRecorder attaches transcript persistence.
func WithRecorder(r Recorder) Option {
	return func(o *Orchestrator) {
		o.recorder = r
	}
}

// WithClock overrides the time source, used by tests for a stable prompt.
func WithClock(now func() time.Time) Option {
	return func(o *Orchestrator) {
		o.now = now
	}
}

// New creates an Orchestrator.
func New(model Model, executor *tools.Executor, promptCfg PromptConfig, opts ...Option) (*Orchestrator, error) {
	if model == nil {
		return nil, errors.New("model is required")
	}
	if executor == nil {
		return nil, errors.New("executor is required")
	}
	if promptCfg.Location == nil {
		return nil, errors.New("prompt location is required")
	}

	o := &Orchestrator{
		model:         model,
		executor:      executor,
		promptCfg:     promptCfg,
		maxIterations: DefaultMaxIterations,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o, nil
}

// ProcessTurn appends the user input to the conversation and runs the loop
// until the model answers in text or the iteration budget runs out. Sensitive
// tool invocations are routed through the gate; a denial produces a
// cancellation result and the tool is never invoked.
func (o *Orchestrator) ProcessTurn(ctx context.Context, conv *Conversation, userInput string, gate Gate) (string, error) {
	if gate == nil {
		gate = SilentGate{}
	}

	conv.Append(toolbelt.AnthropicMessage{Role: "user", Content: userInput})
	o.record(conv, "user", userInput)

	system := SystemPrompt(o.promptCfg, o.now())
	catalog := o.executor.Tools()

	for i := 0; i < o.maxIterations; i++ {
		resp, err := o.model.Chat(ctx, &toolbelt.AnthropicChatRequest{
			System:   system,
			Messages: conv.Messages(),
			Tools:    catalog.ToAnthropicFormat(),
		})
		if err != nil {
			return "", fmt.Errorf("model call failed: %w", err)
		}

		if !resp.HasToolUse() {
			text := resp.Text()
			conv.Append(toolbelt.AnthropicMessage{Role: "assistant", Content: text})
			o.record(conv, "assistant", text)
			return text, nil
		}

		// The assistant message must carry the full response content,
		// tool_use blocks included, before any results are appended.
		conv.Append(toolbelt.AnthropicMessage{Role: "assistant", Content: resp.NormalizedContent()})
		o.recordBlocks(conv, "assistant", resp.NormalizedContent())

		results := o.runToolBatch(ctx, resp.ToolUseBlocks(), gate)
		conv.Append(toolbelt.AnthropicMessage{Role: "user", Content: results})
		o.recordResults(conv, results)
	}

	return "", ErrTurnBudgetExceeded
}

// runToolBatch executes every tool_use block in a response and returns the
// tool_result blocks in the same order. One failing invocation does not stop
// the rest of the batch.
func (o *Orchestrator) runToolBatch(ctx context.Context, blocks []toolbelt.AnthropicContentBlock, gate Gate) []toolbelt.ContentBlock {
	results := make([]toolbelt.ContentBlock, 0, len(blocks))

	for _, block := range blocks {
		result := o.runTool(ctx, block, gate)
		results = append(results, toolbelt.ContentBlock{
			Type:      "tool_result",
			ToolUseID: block.ID,
			Content:   result.Output,
			IsError:   result.IsError,
		})
	}
	return results
}

func (o *Orchestrator) runTool(ctx context.Context, block toolbelt.AnthropicContentBlock, gate Gate) tools.Result {
	tool := o.executor.Tools().Get(block.Name)
	if tool == nil {
		return tools.ErrorResult("unknown tool: %s", block.Name)
	}

	if tool.Sensitive {
		decision := gate.Confirm(ctx, *tool, block.Input)
		if !decision.Approved {
			log.Printf("tool %s declined: %s", block.Name, decision.Reason)
			return tools.CancelledResult(decision.Reason)
		}
	}

	log.Printf("executing tool %s", block.Name)
	return o.executor.Execute(ctx, block.Name, block.Input)
}

// --- Transcript persistence ---

func (o *Orchestrator) record(conv *Conversation, role, content string) {
	if o.recorder == nil {
		return
	}
	if err := o.recorder.RecordMessage(conv.ID(), conv.Source(), role, content); err != nil {
		log.Printf("failed to record message: %v", err)
	}
}

func (o *Orchestrator) recordBlocks(conv *Conversation, role string, blocks []toolbelt.AnthropicContentBlock) {
	if o.recorder == nil {
		return
	}
	b, err := json.Marshal(blocks)
	if err != nil {
		log.Printf("failed to encode transcript blocks: %v", err)
		return
	}
	o.record(conv, role, string(b))
}

func (o *Orchestrator) recordResults(conv *Conversation, results []toolbelt.ContentBlock) {
	if o.recorder == nil {
		return
	}
	b, err := json.Marshal(results)
	if err != nil {
		log.Printf("failed to encode tool results: %v", err)
		return
	}
	o.record(conv, "user", string(b))
}
