package cel

import (
	"github.com/google/cel-go/cel"

	"github.com/Sentinel-Gate/Sentinelgate/internal/domain/ruleset"
)

// guard implements ruleset.Guard over a compiled CEL program, the
// evaluated form of a sandbox.when(rule, expr) statement.
type guard struct {
	eval *Evaluator
	prg  cel.Program
}

func (g *guard) Eval(args map[string]any) (bool, error) {
	return g.eval.Evaluate(g.prg, args)
}

// Compiler turns sandbox.when guard expression source into ruleset.Guard
// values, implementing script.GuardCompiler.
type Compiler struct {
	eval *Evaluator
}

// NewCompiler builds a Compiler over a fresh guard environment.
func NewCompiler() (*Compiler, error) {
	eval, err := NewEvaluator()
	if err != nil {
		return nil, err
	}
	return &Compiler{eval: eval}, nil
}

// Compile validates and compiles expr into a ruleset.Guard.
func (c *Compiler) Compile(expr string) (ruleset.Guard, error) {
	if err := c.eval.ValidateExpression(expr); err != nil {
		return nil, err
	}
	prg, err := c.eval.Compile(expr)
	if err != nil {
		return nil, err
	}
	return &guard{eval: c.eval, prg: prg}, nil
}
