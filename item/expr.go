package item

import (
	"fmt"
	"sync"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// whereCache holds compiled where expressions keyed by source so a query
// evaluated against many items compiles once.
var whereCache sync.Map // string -> *vm.Program

// matchWhere evaluates a where expression against the item's fields.
// The item's data is the expression environment, with the id bound as "id".
func matchWhere(src string, i *Item) (bool, error) {
	program, err := compileWhere(src)
	if err != nil {
		return false, err
	}
	env := make(map[string]any, len(i.Data)+1)
	for k, v := range i.Data {
		env[k] = v
	}
	env["id"] = i.ID
	out, err := expr.Run(program, env)
	if err != nil {
		return false, fmt.Errorf("where expression %q: %w", src, err)
	}
	ok, isBool := out.(bool)
	if !isBool {
		return false, fmt.Errorf("where expression %q: result is %T, not bool", src, out)
	}
	return ok, nil
}

func compileWhere(src string) (*vm.Program, error) {
	if cached, ok := whereCache.Load(src); ok {
		return cached.(*vm.Program), nil
	}
	program, err := expr.Compile(src, expr.AllowUndefinedVariables(), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("where expression %q: %w", src, err)
	}
	whereCache.Store(src, program)
	return program, nil
}
