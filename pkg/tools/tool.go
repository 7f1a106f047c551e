// Package tools defines the function-calling surface exposed to the live
// model: tool declarations, typed argument decoding, and the dispatcher
// that turns a batch of model tool calls into a correlated batch of
// results.
package tools

import "fmt"

// Tool represents a function that the assistant can invoke mid-conversation.
// Tools let the model act on the outside world: toggling the camera, saving
// memories, identifying people and voices.
type Tool struct {
	// Name is the unique identifier for the tool (e.g. "rememberThis").
	Name string `json:"name"`

	// Description explains what the tool does, helping the model decide
	// when to use it.
	Description string `json:"description"`

	// Parameters defines the JSON schema for the tool's arguments.
	Parameters map[string]any `json:"parameters,omitempty"`

	// Handler is called when the model invokes this tool. It receives the
	// parsed arguments and returns a short acknowledgement string the
	// model continues from. Side effects that outlive the call (uploads,
	// persistence) must run after the acknowledgement, not before it.
	Handler func(args map[string]any) (string, error) `json:"-"`
}

// Call is one invocation of a tool requested by the model.
type Call struct {
	// ID correlates the call with its result.
	ID string

	// Name is the tool being invoked.
	Name string

	// Arguments contains the parsed arguments from the model.
	Arguments map[string]any
}

// Result is the outcome of one tool invocation.
type Result struct {
	// CallID matches the Call.ID this result corresponds to.
	CallID string

	// Name echoes the tool name for the wire response.
	Name string

	// Output is the string sent back to the model.
	Output string
}

// Registry holds the set of tools offered to the model for a session.
type Registry struct {
	order []string
	tools map[string]Tool
}

// NewRegistry builds a registry from the given tools. Registration order is
// preserved in Declarations.
func NewRegistry(ts ...Tool) *Registry {
	r := &Registry{tools: make(map[string]Tool, len(ts))}
	for _, t := range ts {
		r.Register(t)
	}
	return r
}

// Register adds or replaces a tool by name.
func (r *Registry) Register(t Tool) {
	if _, ok := r.tools[t.Name]; !ok {
		r.order = append(r.order, t.Name)
	}
	r.tools[t.Name] = t
}

// Lookup returns the tool registered under name.
func (r *Registry) Lookup(name string) (Tool, bool) {
	t, ok := r.tools[name]
	return t, ok
}

// Declarations returns the tools in registration order, for the session
// setup message.
func (r *Registry) Declarations() []Tool {
	out := make([]Tool, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.tools[name])
	}
	return out
}

// Dispatch runs every call in the batch and returns exactly one result per
// call, in call order. A call naming an unregistered tool yields a
// "Function not found" result; a handler error yields an "Error: ..."
// result. The batch always completes, so the model never waits on a
// partial response.
func (r *Registry) Dispatch(calls []Call) []Result {
	results := make([]Result, 0, len(calls))
	for _, call := range calls {
		results = append(results, Result{
			CallID: call.ID,
			Name:   call.Name,
			Output: r.run(call),
		})
	}
	return results
}

func (r *Registry) run(call Call) string {
	tool, ok := r.tools[call.Name]
	if !ok || tool.Handler == nil {
		return "Function not found"
	}
	out, err := tool.Handler(call.Arguments)
	if err != nil {
		return fmt.Sprintf("Error: %v", err)
	}
	return out
}
