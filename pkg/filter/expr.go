package filter

// Op joins two filter results.
type Op int

const (
	OpOr Op = iota + 1
	OpAnd
)

// precedence is higher for operators that bind tighter.
func (o Op) precedence() int {
	return int(o)
}

type symbol struct {
	filter Filter
	op     Op
}

// Expr is a validated filter expression stored in reverse polish notation.
// The zero value and nil match everything.
type Expr struct {
	symbols []symbol
}

func newExpr(symbols []symbol) (*Expr, error) {
	depth := 0
	for _, s := range symbols {
		if s.filter != nil {
			depth++
			continue
		}
		if depth < 2 {
			return nil, syntaxErrorf("invalid filter expression")
		}
		depth--
	}
	if len(symbols) > 0 && depth != 1 {
		return nil, syntaxErrorf("invalid filter expression")
	}
	return &Expr{symbols: symbols}, nil
}

// All combines filters so that every one of them has to match.
func All(filters ...Filter) *Expr {
	symbols := make([]symbol, 0, 2*len(filters))
	for i, f := range filters {
		symbols = append(symbols, symbol{filter: f})
		if i > 0 {
			symbols = append(symbols, symbol{op: OpAnd})
		}
	}
	return &Expr{symbols: symbols}
}

// And returns an expression matching when both e and other match.
func (e *Expr) And(other *Expr) *Expr {
	if e.Empty() {
		return other
	}
	if other.Empty() {
		return e
	}
	symbols := make([]symbol, 0, len(e.symbols)+len(other.symbols)+1)
	symbols = append(symbols, e.symbols...)
	symbols = append(symbols, other.symbols...)
	symbols = append(symbols, symbol{op: OpAnd})
	return &Expr{symbols: symbols}
}

// Empty reports whether the expression has no filters.
func (e *Expr) Empty() bool {
	return e == nil || len(e.symbols) == 0
}

// Matches evaluates the expression against t. It implements Filter.
func (e *Expr) Matches(t Tags) bool {
	if e.Empty() {
		return true
	}

	// Expressions are validated on construction, so the stack never
	// underflows here.
	stack := make([]bool, 0, len(e.symbols))
	for _, s := range e.symbols {
		if s.filter != nil {
			stack = append(stack, s.filter.Matches(t))
			continue
		}
		n := len(stack)
		lhs, rhs := stack[n-2], stack[n-1]
		stack = stack[:n-2]
		if s.op == OpAnd {
			stack = append(stack, lhs && rhs)
		} else {
			stack = append(stack, lhs || rhs)
		}
	}
	return stack[0]
}
