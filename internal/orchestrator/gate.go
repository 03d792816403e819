package orchestrator

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/davidh/jarvis/internal/tools"
)

// Decision is the outcome of a confirmation check for a sensitive tool.
type Decision struct {
	Approved bool
	Reason   string
}

// Gate decides whether a sensitive tool invocation may proceed. Non-sensitive
// tools are never routed through the gate.
type Gate interface {
	Confirm(ctx context.Context, tool tools.Tool, input map[string]any) Decision
}

// SilentGate approves every invocation. Used by the email reactor, which has
// no human on the other end to ask.
type SilentGate struct{}

// Confirm always approves.
func (SilentGate) Confirm(_ context.Context, _ tools.Tool, _ map[string]any) Decision {
	return Decision{Approved: true}
}

// InteractiveGate prompts a human on the terminal before each sensitive tool
// runs. Only an exact "yes" approves; any other reply declines, so a typo
// fails safe.
type InteractiveGate struct {
	in  *bufio.Reader
	out io.Writer
}

// NewInteractiveGate creates a gate reading confirmations from in and writing
// prompts to out.
func NewInteractiveGate(in io.Reader, out io.Writer) *InteractiveGate {
	return &InteractiveGate{
		in:  bufio.NewReader(in),
		out: out,
	}
}

// NewInteractiveGateBuffered creates a gate over an existing buffered reader,
// so the gate and a surrounding input loop can share one stdin without
// swallowing each other's lines.
func NewInteractiveGateBuffered(in *bufio.Reader, out io.Writer) *InteractiveGate {
	return &InteractiveGate{in: in, out: out}
}

// Confirm shows the tool name and its arguments, then blocks for a reply.
func (g *InteractiveGate) Confirm(_ context.Context, tool tools.Tool, input map[string]any) Decision {
	args, err := json.MarshalIndent(input, "", "  ")
	if err != nil {
		args = []byte(fmt.Sprintf("%v", input))
	}

	fmt.Fprintf(g.out, "\nAbout to run %s with:\n%s\nProceed? (yes/no): ", tool.Name, args)

	line, err := g.in.ReadString('\n')
	if err != nil && line == "" {
		return Decision{Approved: false, Reason: "user declined"}
	}
	if strings.TrimSpace(line) == "yes" {
		return Decision{Approved: true}
	}
	return Decision{Approved: false, Reason: "user declined"}
}
