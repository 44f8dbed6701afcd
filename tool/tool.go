package tool

import (
	"context"
	"fmt"
	"reflect"

	"github.com/casualjim/athene/model"
	"github.com/casualjim/athene/pkg/stdx"
	"github.com/fogfish/opts"
	json "github.com/goccy/go-json"
	"github.com/invopop/jsonschema"
	"github.com/tidwall/gjson"
)

// Tool is one capability the model may invoke.
type Tool interface {
	// Name is the identifier the model calls the tool by.
	Name() string
	// Definition advertises the tool to the model.
	Definition() model.ToolDefinition
	// ApprovalPrompt renders the permission request for a call: what the
	// tool is about to do, and the model's stated justification (usually
	// lifted out of the arguments).
	ApprovalPrompt(args json.RawMessage) (what, justification string)
	// Execute runs the call. A *Error return is a reportable failure whose
	// text goes back to the model; any other error is treated the same with
	// ExecutionError semantics.
	Execute(ctx context.Context, args json.RawMessage) (string, error)
}

var typedReflector = jsonschema.Reflector{
	AllowAdditionalProperties: true,
	DoNotReference:            true,
}

// Func is a Tool built from a plain Go function by New.
type Func struct {
	name        string
	description string
	schema      *jsonschema.Schema
	prompt      func(args json.RawMessage) (string, string)
	run         func(ctx context.Context, args json.RawMessage) (string, error)
}

var _ Tool = (*Func)(nil)

// Option mutates a Func under construction.
type Option = opts.Option[Func]

// WithApprovalPrompt replaces the default approval rendering.
func WithApprovalPrompt(fn func(args json.RawMessage) (what, justification string)) Option {
	return opts.Type[Func](func(f *Func) error {
		f.prompt = fn
		return nil
	})
}

// WithSchema replaces the reflected parameter schema, for the rare tool
// whose argument shape can't be expressed as a Go struct.
func WithSchema(schema *jsonschema.Schema) Option {
	return opts.Type[Func](func(f *Func) error {
		f.schema = schema
		return nil
	})
}

// New builds a Tool from a typed function. The parameter schema is reflected
// from T; arguments are decoded into T before fn runs, and arguments that
// fail to decode produce an InvalidInput failure without invoking fn.
func New[T any](name, description string, fn func(ctx context.Context, args T) (string, error), options ...Option) (*Func, error) {
	if name == "" {
		return nil, fmt.Errorf("tool needs a name")
	}
	if fn == nil {
		return nil, fmt.Errorf("tool %s needs a function", name)
	}

	f := &Func{
		name:        name,
		description: description,
		schema:      reflectSchema[T](),
		prompt:      defaultPrompt(name),
	}
	f.run = func(ctx context.Context, raw json.RawMessage) (string, error) {
		var args T
		if len(raw) > 0 {
			if err := json.Unmarshal(raw, &args); err != nil {
				return "", Invalidf("decode %s arguments: %v", name, err)
			}
		}
		return fn(ctx, args)
	}

	if err := opts.Apply(f, options); err != nil {
		return nil, err
	}
	return f, nil
}

// Must is New with a panic instead of an error return, for tools assembled
// at program start.
func Must[T any](name, description string, fn func(ctx context.Context, args T) (string, error), options ...Option) *Func {
	return stdx.Must1(New(name, description, fn, options...))
}

func (f *Func) Name() string { return f.name }

func (f *Func) Definition() model.ToolDefinition {
	return model.ToolDefinition{
		Name:        f.name,
		Description: f.description,
		Parameters:  f.schema,
	}
}

func (f *Func) ApprovalPrompt(args json.RawMessage) (string, string) {
	return f.prompt(args)
}

func (f *Func) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	return f.run(ctx, args)
}

// defaultPrompt renders "name(arguments)" and lifts a top-level
// "justification" argument when the call carries one.
func defaultPrompt(name string) func(json.RawMessage) (string, string) {
	return func(args json.RawMessage) (string, string) {
		if len(args) == 0 {
			return name + "()", ""
		}
		what := fmt.Sprintf("%s(%s)", name, string(args))
		justification := gjson.GetBytes(args, "justification").String()
		return what, justification
	}
}

func reflectSchema[T any]() *jsonschema.Schema {
	schema := typedReflector.ReflectFromType(reflect.TypeFor[T]())
	schema.Version = ""
	return schema
}
