package syntax

// Parse reads a single term. Newlines are insignificant.
//
//	term   = lambda | let | app
//	lambda = ("\" | "λ") ident {ident} "." term
//	let    = "let" ident "=" term "in" term
//	app    = atom {atom} [lambda | let]
//	atom   = ident | "(" term ")"
func Parse(src string) (Expr, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: dropNewlines(toks)}
	e, err := p.term()
	if err != nil {
		return nil, err
	}
	if tok := p.peek(); tok.kind != tokEOF {
		return nil, errorf(tok.pos, "unexpected %s after term", describe(tok))
	}
	return e, nil
}

// ParseProgram reads definitions of the form `name = term` and one main
// term, separated by newlines or semicolons. Without a main term, a
// definition named main is used.
func ParseProgram(src string) (*Program, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}

	p := &parser{toks: toks}
	prog := &Program{}

	for {
		p.skipSeparators()
		tok := p.peek()
		if tok.kind == tokEOF {
			break
		}

		if tok.kind == tokIdent && p.peekAt(1).kind == tokEquals {
			p.next()
			p.next()
			value, err := p.term()
			if err != nil {
				return nil, err
			}
			prog.Definitions = append(prog.Definitions, Definition{Name: tok.text, Value: value})
		} else {
			if prog.Main != nil {
				return nil, errorf(tok.pos, "program has more than one main term")
			}
			main, err := p.term()
			if err != nil {
				return nil, err
			}
			prog.Main = main
		}

		if next := p.peek(); next.kind != tokEOF && next.kind != tokNewline && next.kind != tokSemi {
			return nil, errorf(next.pos, "unexpected %s", describe(next))
		}
	}

	if prog.Main == nil {
		for _, d := range prog.Definitions {
			if d.Name == "main" {
				prog.Main = Var{Name: "main"}
			}
		}
	}
	if prog.Main == nil {
		return nil, errorf(p.peek().pos, "program has no main term")
	}
	return prog, nil
}

type parser struct {
	toks []token
	pos  int
}

func (p *parser) peek() token {
	return p.peekAt(0)
}

func (p *parser) peekAt(n int) token {
	if p.pos+n >= len(p.toks) {
		return p.toks[len(p.toks)-1]
	}
	return p.toks[p.pos+n]
}

func (p *parser) next() token {
	tok := p.peek()
	if p.pos < len(p.toks)-1 {
		p.pos++
	}
	return tok
}

func (p *parser) expect(kind tokenKind) (token, error) {
	tok := p.next()
	if tok.kind != kind {
		return tok, errorf(tok.pos, "expected %s, found %s", kind, describe(tok))
	}
	return tok, nil
}

func (p *parser) skipSeparators() {
	for {
		switch p.peek().kind {
		case tokNewline, tokSemi:
			p.next()
		default:
			return
		}
	}
}

func (p *parser) term() (Expr, error) {
	switch p.peek().kind {
	case tokLambda:
		return p.lambda()
	case tokLet:
		return p.let()
	default:
		return p.app()
	}
}

func (p *parser) lambda() (Expr, error) {
	p.next()

	var params []string
	for p.peek().kind == tokIdent {
		params = append(params, p.next().text)
	}
	if len(params) == 0 {
		tok := p.peek()
		return nil, errorf(tok.pos, "expected parameter, found %s", describe(tok))
	}
	if _, err := p.expect(tokDot); err != nil {
		return nil, err
	}

	body, err := p.term()
	if err != nil {
		return nil, err
	}
	for i := len(params) - 1; i >= 0; i-- {
		body = Lam{Param: params[i], Body: body}
	}
	return body, nil
}

func (p *parser) let() (Expr, error) {
	p.next()

	name, err := p.expect(tokIdent)
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokEquals); err != nil {
		return nil, err
	}
	value, err := p.term()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(tokIn); err != nil {
		return nil, err
	}
	body, err := p.term()
	if err != nil {
		return nil, err
	}
	return Let{Name: name.text, Value: value, Body: body}, nil
}

func (p *parser) app() (Expr, error) {
	f, err := p.atom()
	if err != nil {
		return nil, err
	}

	for {
		switch p.peek().kind {
		case tokIdent, tokLParen:
			arg, err := p.atom()
			if err != nil {
				return nil, err
			}
			f = App{Fun: f, Arg: arg}
		case tokLambda, tokLet:
			// A trailing binder extends as far right as possible.
			arg, err := p.term()
			if err != nil {
				return nil, err
			}
			return App{Fun: f, Arg: arg}, nil
		default:
			return f, nil
		}
	}
}

func (p *parser) atom() (Expr, error) {
	tok := p.next()
	switch tok.kind {
	case tokIdent:
		return Var{Name: tok.text}, nil
	case tokLParen:
		e, err := p.term()
		if err != nil {
			return nil, err
		}
		if _, err := p.expect(tokRParen); err != nil {
			return nil, err
		}
		return e, nil
	default:
		return nil, errorf(tok.pos, "expected term, found %s", describe(tok))
	}
}

func dropNewlines(toks []token) []token {
	out := toks[:0:0]
	for _, t := range toks {
		if t.kind != tokNewline {
			out = append(out, t)
		}
	}
	return out
}

func describe(tok token) string {
	if tok.kind == tokIdent {
		return "identifier " + tok.text
	}
	return tok.kind.String()
}
