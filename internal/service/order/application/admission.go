package application

import (
	"fmt"

	"github.com/google/cel-go/cel"
)

// CELAdmission 用一条 CEL 表达式决定请求能否下单，可用变量：product_id、quantity。
// 例如 "quantity <= 100 && product_id != 13"。
type CELAdmission struct {
	expr    string
	program cel.Program
}

// NewCELAdmission 编译表达式，表达式必须返回 bool。
func NewCELAdmission(expr string) (*CELAdmission, error) {
	env, err := cel.NewEnv(
		cel.Variable("product_id", cel.IntType),
		cel.Variable("quantity", cel.IntType),
	)
	if err != nil {
		return nil, fmt.Errorf("create cel env: %w", err)
	}

	ast, iss := env.Compile(expr)
	if iss != nil && iss.Err() != nil {
		return nil, fmt.Errorf("compile admission rule %q: %w", expr, iss.Err())
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("admission rule %q must return bool, got %s", expr, ast.OutputType())
	}

	program, err := env.Program(ast)
	if err != nil {
		return nil, fmt.Errorf("build admission program: %w", err)
	}
	return &CELAdmission{expr: expr, program: program}, nil
}

func (a *CELAdmission) Admit(productID int64, quantity int) (bool, error) {
	out, _, err := a.program.Eval(map[string]any{
		"product_id": productID,
		"quantity":   int64(quantity),
	})
	if err != nil {
		return false, fmt.Errorf("evaluate admission rule %q: %w", a.expr, err)
	}
	allowed, ok := out.Value().(bool)
	if !ok {
		return false, fmt.Errorf("admission rule %q returned %T", a.expr, out.Value())
	}
	return allowed, nil
}
