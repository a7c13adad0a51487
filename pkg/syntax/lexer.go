package syntax

import (
	"unicode"
	"unicode/utf8"
)

type tokenKind uint8

const (
	tokEOF tokenKind = iota
	tokIdent
	tokLambda
	tokDot
	tokLParen
	tokRParen
	tokEquals
	tokSemi
	tokNewline
	tokLet
	tokIn
	tokApply
)

var tokenNames = [...]string{
	tokEOF:     "end of input",
	tokIdent:   "identifier",
	tokLambda:  `"\"`,
	tokDot:     `"."`,
	tokLParen:  `"("`,
	tokRParen:  `")"`,
	tokEquals:  `"="`,
	tokSemi:    `";"`,
	tokNewline: "newline",
	tokLet:     `"let"`,
	tokIn:      `"in"`,
	tokApply:   `"@"`,
}

func (k tokenKind) String() string {
	return tokenNames[k]
}

type token struct {
	kind tokenKind
	text string
	pos  Pos
}

// lex splits src into tokens. Newlines are only reported outside
// parentheses, where they separate program statements. A '#' starts a
// comment that runs to the end of the line.
func lex(src string) ([]token, error) {
	var (
		toks  []token
		depth int
		line  = 1
		col   = 1
	)

	for i := 0; i < len(src); {
		r, size := utf8.DecodeRuneInString(src[i:])
		pos := Pos{Line: line, Col: col}

		advance := func(n int) {
			i += n
			col++
		}

		switch {
		case r == '\n':
			if depth == 0 {
				toks = append(toks, token{kind: tokNewline, pos: pos})
			}
			i += size
			line++
			col = 1
			continue

		case unicode.IsSpace(r):
			advance(size)
			continue

		case r == '#':
			for i < len(src) && src[i] != '\n' {
				i++
			}
			continue

		case r == '\\' || r == 'λ':
			toks = append(toks, token{kind: tokLambda, text: string(r), pos: pos})
			advance(size)
			continue

		case r == '.':
			toks = append(toks, token{kind: tokDot, text: ".", pos: pos})
		case r == '(':
			depth++
			toks = append(toks, token{kind: tokLParen, text: "(", pos: pos})
		case r == ')':
			if depth > 0 {
				depth--
			}
			toks = append(toks, token{kind: tokRParen, text: ")", pos: pos})
		case r == '=':
			toks = append(toks, token{kind: tokEquals, text: "=", pos: pos})
		case r == ';':
			toks = append(toks, token{kind: tokSemi, text: ";", pos: pos})
		case r == '@':
			toks = append(toks, token{kind: tokApply, text: "@", pos: pos})

		case isIdentRune(r):
			start := i
			for i < len(src) {
				r, size := utf8.DecodeRuneInString(src[i:])
				if !isIdentRune(r) {
					break
				}
				i += size
				col++
			}
			text := src[start:i]
			kind := tokIdent
			switch text {
			case "let":
				kind = tokLet
			case "in":
				kind = tokIn
			}
			toks = append(toks, token{kind: kind, text: text, pos: pos})
			continue

		default:
			return nil, errorf(pos, "unexpected character %q", r)
		}

		advance(size)
	}

	toks = append(toks, token{kind: tokEOF, pos: Pos{Line: line, Col: col}})
	return toks, nil
}

func isIdentRune(r rune) bool {
	if r == 'λ' {
		return false
	}
	return r == '_' || r == '\'' || unicode.IsLetter(r) || unicode.IsDigit(r)
}
