// Package cel adapts cel-go into a ruleset.Guard compiler for the
// sandbox.when DSL form. A guard expression sees a single "args" map built
// from the same request fields a script callback receives, so
// `args.uid == 0` guards a rule the same way a callback would inspect
// args.uid, without needing a stored closure.
package cel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"time"

	"github.com/google/cel-go/cel"
	"github.com/google/cel-go/common/types"
	"github.com/google/cel-go/common/types/ref"
	"github.com/google/cel-go/ext"
)

// maxExpressionLength bounds a guard expression's source length.
const maxExpressionLength = 1024

// maxCostBudget is the CEL runtime cost limit, guarding against a
// pathological expression turning a single authorization check into an
// unbounded computation.
const maxCostBudget = 100_000

// maxNestingDepth bounds parenthesis/bracket/brace nesting.
const maxNestingDepth = 50

// evalTimeout bounds a single guard evaluation; a kernel authorization
// hook cannot block indefinitely on a misbehaving expression.
const evalTimeout = 5 * time.Second

const interruptCheckFreq = 100

// Evaluator compiles and evaluates CEL expressions against the request
// args map used by sandbox.when guards.
type Evaluator struct {
	env *cel.Env
}

// NewGuardEnvironment builds the CEL environment guard expressions run
// against: a single "args" map carrying whatever fields the dispatching
// scope populated (proc/vnode/cred fields flattened into one map), plus a
// small set of helpers useful for path and network guards.
func NewGuardEnvironment() (*cel.Env, error) {
	return cel.NewEnv(
		ext.Strings(),
		ext.Sets(),

		cel.Variable("args", cel.MapType(cel.StringType, cel.DynType)),

		// glob: shell-style pattern match, e.g. glob("/usr/bin/*", args.name).
		cel.Function("glob",
			cel.Overload("glob_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(pattern, name ref.Val) ref.Val {
					matched, _ := filepath.Match(pattern.Value().(string), name.Value().(string))
					return types.Bool(matched)
				}),
			),
		),

		// ip_in_cidr: args.address in cidr, e.g. ip_in_cidr(args.address, "10.0.0.0/8").
		cel.Function("ip_in_cidr",
			cel.Overload("ip_in_cidr_string_string",
				[]*cel.Type{cel.StringType, cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(ipVal, cidrVal ref.Val) ref.Val {
					ip := net.ParseIP(ipVal.Value().(string))
					if ip == nil {
						return types.Bool(false)
					}
					_, network, err := net.ParseCIDR(cidrVal.Value().(string))
					if err != nil {
						return types.Bool(false)
					}
					return types.Bool(network.Contains(ip))
				}),
			),
		),

		// has_arg reports whether key is present in args, for guards that
		// need to distinguish a missing field from a zero-valued one.
		cel.Function("has_arg",
			cel.Overload("has_arg_map_string",
				[]*cel.Type{cel.MapType(cel.StringType, cel.DynType), cel.StringType},
				cel.BoolType,
				cel.BinaryBinding(func(mapVal, keyVal ref.Val) ref.Val {
					m, ok := mapVal.Value().(map[string]any)
					if !ok {
						return types.Bool(false)
					}
					_, found := m[keyVal.Value().(string)]
					return types.Bool(found)
				}),
			),
		),
	)
}

// NewEvaluator builds an Evaluator over NewGuardEnvironment.
func NewEvaluator() (*Evaluator, error) {
	env, err := NewGuardEnvironment()
	if err != nil {
		return nil, fmt.Errorf("cel: building guard environment: %w", err)
	}
	return &Evaluator{env: env}, nil
}

// Compile parses and type-checks expr, returning a runnable program.
func (e *Evaluator) Compile(expr string) (cel.Program, error) {
	ast, issues := e.env.Compile(expr)
	if issues != nil && issues.Err() != nil {
		return nil, fmt.Errorf("compilation failed: %w", issues.Err())
	}

	prg, err := e.env.Program(ast,
		cel.EvalOptions(cel.OptOptimize),
		cel.CostLimit(maxCostBudget),
		cel.InterruptCheckFrequency(interruptCheckFreq),
	)
	if err != nil {
		return nil, fmt.Errorf("program creation failed: %w", err)
	}
	return prg, nil
}

func validateNesting(expr string) error {
	var depth, maxDepth int
	for _, ch := range expr {
		switch ch {
		case '(', '[', '{':
			depth++
			if depth > maxDepth {
				maxDepth = depth
			}
		case ')', ']', '}':
			depth--
		}
	}
	if maxDepth > maxNestingDepth {
		return fmt.Errorf("expression nesting too deep: %d levels (max %d)", maxDepth, maxNestingDepth)
	}
	return nil
}

// ValidateExpression checks expr is syntactically valid and within the
// length and nesting limits before it is ever compiled into a Guard.
func (e *Evaluator) ValidateExpression(expr string) error {
	if expr == "" {
		return errors.New("expression is empty")
	}
	if len(expr) > maxExpressionLength {
		return fmt.Errorf("expression too long: %d characters (max %d)", len(expr), maxExpressionLength)
	}
	if err := validateNesting(expr); err != nil {
		return err
	}
	if _, err := e.Compile(expr); err != nil {
		return fmt.Errorf("invalid CEL expression: %w", err)
	}
	return nil
}

// Evaluate runs prg against args, requiring a boolean result.
func (e *Evaluator) Evaluate(prg cel.Program, args map[string]any) (bool, error) {
	ctx, cancel := context.WithTimeout(context.Background(), evalTimeout)
	defer cancel()

	result, _, err := prg.ContextEval(ctx, BuildActivation(args))
	if err != nil {
		return false, fmt.Errorf("evaluation failed: %w", err)
	}
	b, ok := result.Value().(bool)
	if !ok {
		return false, fmt.Errorf("expression did not return a boolean, got %T", result.Value())
	}
	return b, nil
}

// BuildActivation wraps a request's field map as the "args" variable a
// guard expression sees. A nil map is normalized to empty so expressions
// referencing args never see a CEL "no such key" on an absent field map.
func BuildActivation(args map[string]any) map[string]any {
	if args == nil {
		args = map[string]any{}
	}
	return map[string]any{"args": args}
}
