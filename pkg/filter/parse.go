package filter

import (
	"strings"
	"unicode"
)

type tokenKind int

const (
	tokFilter tokenKind = iota
	tokOp
	tokOpen
	tokClose
)

type token struct {
	kind tokenKind
	op   Op

	tag        string
	comparator string
	pattern    string
}

// Parse compiles a filter expression such as
//
//	artist=="Daft Punk" & (album==Discovery | genre!=house)
//
// Each term is tag==regex or tag!=regex. & binds tighter than |.
// Patterns run to the next whitespace, parenthesis or operator unless quoted;
// inside quotes \" and \\ are escapes. An empty expression matches everything.
func Parse(s string) (*Expr, error) {
	tokens, err := tokenize(s)
	if err != nil {
		return nil, err
	}

	rpn, err := toRPN(tokens)
	if err != nil {
		return nil, err
	}

	symbols := make([]symbol, 0, len(rpn))
	for _, t := range rpn {
		switch t.kind {
		case tokOp:
			symbols = append(symbols, symbol{op: t.op})
		case tokFilter:
			f, err := NewRegex(t.tag, t.pattern, t.comparator == "!=")
			if err != nil {
				return nil, err
			}
			symbols = append(symbols, symbol{filter: f})
		}
	}

	return newExpr(symbols)
}

type scanner struct {
	runes []rune
	pos   int
}

func (s *scanner) peek() (rune, bool) {
	if s.pos >= len(s.runes) {
		return 0, false
	}
	return s.runes[s.pos], true
}

func (s *scanner) next() (rune, bool) {
	r, ok := s.peek()
	if ok {
		s.pos++
	}
	return r, ok
}

func tokenize(in string) ([]token, error) {
	s := &scanner{runes: []rune(in)}
	var tokens []token
	for {
		r, ok := s.peek()
		if !ok {
			return tokens, nil
		}
		switch {
		case unicode.IsSpace(r):
			s.pos++
		case r == '(':
			s.pos++
			tokens = append(tokens, token{kind: tokOpen})
		case r == ')':
			s.pos++
			tokens = append(tokens, token{kind: tokClose})
		case r == '&':
			s.pos++
			tokens = append(tokens, token{kind: tokOp, op: OpAnd})
		case r == '|':
			s.pos++
			tokens = append(tokens, token{kind: tokOp, op: OpOr})
		default:
			t, err := scanTerm(s)
			if err != nil {
				return nil, err
			}
			tokens = append(tokens, t)
		}
	}
}

func scanTerm(s *scanner) (token, error) {
	var tag strings.Builder
	for {
		r, ok := s.peek()
		if !ok {
			return token{}, syntaxErrorf("incomplete filter")
		}
		if r == '=' || r == '!' {
			break
		}
		if !unicode.IsLetter(r) && !unicode.IsDigit(r) {
			return token{}, syntaxErrorf("tag must be alphanumeric")
		}
		tag.WriteRune(r)
		s.pos++
	}
	if tag.Len() == 0 {
		return token{}, syntaxErrorf("tag must be alphanumeric")
	}

	first, _ := s.next()
	second, ok := s.next()
	if !ok {
		return token{}, syntaxErrorf("incomplete filter")
	}
	if second != '=' {
		return token{}, syntaxErrorf("invalid comparator")
	}
	comparator := string([]rune{first, second})

	pattern, err := scanPattern(s)
	if err != nil {
		return token{}, err
	}

	return token{kind: tokFilter, tag: tag.String(), comparator: comparator, pattern: pattern}, nil
}

func scanPattern(s *scanner) (string, error) {
	var b strings.Builder
	r, ok := s.peek()
	if !ok {
		return "", nil
	}

	if r != '"' {
		for {
			r, ok := s.peek()
			if !ok || unicode.IsSpace(r) || r == ')' || r == '(' || r == '&' || r == '|' {
				return b.String(), nil
			}
			b.WriteRune(r)
			s.pos++
		}
	}

	s.pos++
	for {
		r, ok := s.next()
		if !ok {
			return "", syntaxErrorf("unclosed double quote")
		}
		switch r {
		case '"':
			return b.String(), nil
		case '\\':
			esc, ok := s.next()
			if !ok {
				return "", syntaxErrorf("unclosed double quote")
			}
			if esc != '"' && esc != '\\' {
				b.WriteRune('\\')
			}
			b.WriteRune(esc)
		default:
			b.WriteRune(r)
		}
	}
}

// toRPN is Dijkstra's shunting-yard over the token stream.
func toRPN(infix []token) ([]token, error) {
	var out, ops []token
	for i, t := range infix {
		switch t.kind {
		case tokFilter:
			out = append(out, t)
		case tokOp:
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				if top.kind != tokOp || top.op.precedence() < t.op.precedence() {
					break
				}
				out = append(out, top)
				ops = ops[:len(ops)-1]
			}
			ops = append(ops, t)
		case tokOpen:
			ops = append(ops, t)
		case tokClose:
			if i > 0 && infix[i-1].kind == tokOpen {
				return nil, syntaxErrorf("empty parentheses")
			}
			matched := false
			for len(ops) > 0 {
				top := ops[len(ops)-1]
				ops = ops[:len(ops)-1]
				if top.kind == tokOpen {
					matched = true
					break
				}
				out = append(out, top)
			}
			if !matched {
				return nil, syntaxErrorf("mismatched parentheses")
			}
		}
	}
	for len(ops) > 0 {
		top := ops[len(ops)-1]
		ops = ops[:len(ops)-1]
		if top.kind == tokOpen {
			return nil, syntaxErrorf("mismatched parentheses")
		}
		out = append(out, top)
	}
	return out, nil
}
