package syntax

import "strings"

// ParsePostfix reads the postfix token format: an identifier pushes a
// variable, `\` pops a body and then a variable and pushes the abstraction,
// and `@` pops an argument and then a function and pushes the application.
// Exactly one term must remain.
//
//	x x \      is  \x. x
//	f x @ y @  is  f x y
func ParsePostfix(src string) (Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}

	var stack []Expr
	pop := func(tok token) (Expr, error) {
		if len(stack) == 0 {
			return nil, errorf(tok.pos, "stack underflow at %s", describe(tok))
		}
		e := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		return e, nil
	}

	for _, tok := range toks {
		switch tok.kind {
		case tokNewline:
		case tokEOF:
			if len(stack) != 1 {
				return nil, errorf(tok.pos, "expected one term, %d left on the stack", len(stack))
			}
			return stack[0], nil
		case tokIdent:
			stack = append(stack, Var{Name: tok.text})
		case tokLambda:
			body, err := pop(tok)
			if err != nil {
				return nil, err
			}
			param, err := pop(tok)
			if err != nil {
				return nil, err
			}
			v, ok := param.(Var)
			if !ok {
				return nil, errorf(tok.pos, "abstraction parameter is not a variable: %s", param)
			}
			stack = append(stack, Lam{Param: v.Name, Body: body})
		case tokApply:
			arg, err := pop(tok)
			if err != nil {
				return nil, err
			}
			fun, err := pop(tok)
			if err != nil {
				return nil, err
			}
			stack = append(stack, App{Fun: fun, Arg: arg})
		default:
			return nil, errorf(tok.pos, "unexpected %s in postfix input", describe(tok))
		}
	}

	// lex always ends with tokEOF
	return nil, nil
}

// FormatPostfix writes e in the postfix token format. Lets are desugared.
func FormatPostfix(e Expr) string {
	var parts []string
	var walk func(Expr)
	walk = func(e Expr) {
		switch e := e.(type) {
		case Var:
			parts = append(parts, e.Name)
		case Lam:
			parts = append(parts, e.Param)
			walk(e.Body)
			parts = append(parts, `\`)
		case App:
			walk(e.Fun)
			walk(e.Arg)
			parts = append(parts, "@")
		case Let:
			walk(Desugar(e))
		}
	}
	walk(e)
	return strings.Join(parts, " ")
}
