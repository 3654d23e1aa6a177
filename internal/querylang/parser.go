// Package querylang parses the textual condition syntax into condition trees.
//
// Grammar (EBNF):
//
//	query      = or_expr EOF
//	or_expr    = and_expr ( "OR" and_expr )*
//	and_expr   = unary_expr ( "AND" unary_expr )*
//	unary_expr = "NOT" unary_expr | primary
//	primary    = "(" or_expr ")" | "TRUE" | "FALSE" | call | comparison
//	comparison = field ( cmp_op value | [ "NOT" ] "IN" list )
//	call       = "STARTS_WITH" "(" field "," ( value | list ) [ "," INT ] ")"
//	           | "LEVENSHTEIN_MATCH" "(" field "," value "," INT
//	             [ "," BOOL [ "," INT [ "," value ] ] ] ")"
//	cmp_op     = "==" | "=" | "!=" | "<" | "<=" | ">" | ">="
//	list       = "[" value ( "," value )* "]"
//	field      = WORD | "`" any "`"
//	value      = STRING | WORD
//
// Precedence (highest to lowest):
//  1. Parentheses
//  2. NOT (prefix, right-associative)
//  3. AND
//  4. OR
//
// The parser builds the tree literally: NOT NOT x stays a double negation
// and nothing is reordered. Optimization is the compiler's job.
package querylang

import (
	"strconv"
	"strings"

	"sieve/internal/condition"
)

const (
	funcStartsWith  = "STARTS_WITH"
	funcLevenshtein = "LEVENSHTEIN_MATCH"
)

type parser struct {
	lex *Lexer
	cur Token
}

// Parse parses a condition string into a condition tree.
func Parse(input string) (condition.Expr, error) {
	p := &parser{lex: NewLexer(input)}

	// Prime the parser with the first token.
	if err := p.advance(); err != nil {
		return nil, err
	}

	if p.cur.Kind == TokEOF {
		return nil, newParseError(0, ErrEmptyQuery, "empty query")
	}

	expr, err := p.parseOrExpr()
	if err != nil {
		return nil, err
	}

	// Ensure we consumed all input.
	if p.cur.Kind != TokEOF {
		return nil, newParseError(p.cur.Pos, ErrUnexpectedToken, "unexpected token: %s", p.cur.Lit)
	}

	return expr, nil
}

// advance moves to the next token.
func (p *parser) advance() error {
	tok, err := p.lex.Next()
	if err != nil {
		return err
	}
	p.cur = tok
	return nil
}

// expect consumes a token of the given kind or fails.
func (p *parser) expect(kind TokenKind, what string) (Token, error) {
	tok := p.cur
	if tok.Kind != kind {
		if tok.Kind == TokEOF {
			return tok, newParseError(tok.Pos, ErrUnexpectedEOF, "expected %s, got end of query", what)
		}
		return tok, newParseError(tok.Pos, ErrUnexpectedToken, "expected %s, got %s", what, describe(tok))
	}
	return tok, p.advance()
}

// parseOrExpr parses: or_expr = and_expr ( "OR" and_expr )*
func (p *parser) parseOrExpr() (condition.Expr, error) {
	left, err := p.parseAndExpr()
	if err != nil {
		return nil, err
	}

	for p.cur.Kind == TokOr {
		if err := p.advance(); err != nil {
			return nil, err
		}

		right, err := p.parseAndExpr()
		if err != nil {
			return nil, err
		}

		left = condition.NewOr(left, right)
	}

	return left, nil
}

// parseAndExpr parses: and_expr = unary_expr ( "AND" unary_expr )*
func (p *parser) parseAndExpr() (condition.Expr, error) {
	left, err := p.parseUnaryExpr()
	if err != nil {
		return nil, err
	}

	for p.cur.Kind == TokAnd {
		if err := p.advance(); err != nil {
			return nil, err
		}

		right, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}

		left = condition.NewAnd(left, right)
	}

	return left, nil
}

// parseUnaryExpr parses: unary_expr = "NOT" unary_expr | primary
func (p *parser) parseUnaryExpr() (condition.Expr, error) {
	if p.cur.Kind == TokNot {
		pos := p.cur.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}

		if p.cur.Kind == TokEOF {
			return nil, newParseError(pos, ErrUnexpectedEOF, "expected expression after NOT")
		}
		if p.cur.Kind == TokOr || p.cur.Kind == TokAnd || p.cur.Kind == TokRParen {
			return nil, newParseError(p.cur.Pos, ErrUnexpectedToken, "expected expression after NOT, got %s", p.cur.Kind)
		}

		term, err := p.parseUnaryExpr()
		if err != nil {
			return nil, err
		}

		return condition.NewNot(term), nil
	}

	return p.parsePrimary()
}

// parsePrimary parses: primary = "(" or_expr ")" | "TRUE" | "FALSE" | call | comparison
func (p *parser) parsePrimary() (condition.Expr, error) {
	switch p.cur.Kind {
	case TokLParen:
		openPos := p.cur.Pos
		if err := p.advance(); err != nil {
			return nil, err
		}

		if p.cur.Kind == TokRParen {
			return nil, newParseError(openPos, ErrEmptyQuery, "empty parentheses")
		}

		expr, err := p.parseOrExpr()
		if err != nil {
			return nil, err
		}

		if p.cur.Kind != TokRParen {
			return nil, newParseError(openPos, ErrUnmatchedParen, "unmatched opening parenthesis")
		}
		if err := p.advance(); err != nil {
			return nil, err
		}
		return expr, nil

	case TokTrue:
		return condition.All(), p.advance()
	case TokFalse:
		return condition.Empty(), p.advance()
	case TokEOF:
		return nil, newParseError(p.cur.Pos, ErrUnexpectedEOF, "unexpected end of query")
	case TokOr, TokAnd, TokIn:
		return nil, newParseError(p.cur.Pos, ErrUnexpectedToken, "unexpected keyword %s", p.cur.Lit)
	case TokRParen:
		return nil, newParseError(p.cur.Pos, ErrUnmatchedParen, "unexpected closing parenthesis")
	case TokWord:
		next, err := p.lex.Peek()
		if err != nil {
			return nil, err
		}
		if next.Kind == TokLParen {
			return p.parseCall()
		}
	}

	return p.parseComparison()
}

// parseComparison parses: comparison = field ( cmp_op value | [ "NOT" ] "IN" list )
func (p *parser) parseComparison() (condition.Expr, error) {
	field, err := p.parseField()
	if err != nil {
		return nil, err
	}

	switch {
	case p.cur.Kind.isComparison():
		op := comparisonOp(p.cur.Kind)
		if err := p.advance(); err != nil {
			return nil, err
		}
		value, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		return condition.Compare(field, op, value), nil

	case p.cur.Kind == TokIn:
		if err := p.advance(); err != nil {
			return nil, err
		}
		values, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return &condition.Predicate{Field: field, Op: condition.OpIn, Values: values}, nil

	case p.cur.Kind == TokNot:
		if err := p.advance(); err != nil {
			return nil, err
		}
		if _, err := p.expect(TokIn, "IN after NOT"); err != nil {
			return nil, err
		}
		values, err := p.parseList()
		if err != nil {
			return nil, err
		}
		return condition.NewNot(&condition.Predicate{Field: field, Op: condition.OpIn, Values: values}), nil
	}

	if p.cur.Kind == TokEOF {
		return nil, newParseError(p.cur.Pos, ErrUnexpectedEOF, "expected operator after %s", field)
	}
	return nil, newParseError(p.cur.Pos, ErrUnexpectedToken, "expected operator after %s, got %s", field, describe(p.cur))
}

func comparisonOp(kind TokenKind) condition.Op {
	switch kind {
	case TokNe:
		return condition.OpNe
	case TokLt:
		return condition.OpLt
	case TokLe:
		return condition.OpLe
	case TokGt:
		return condition.OpGt
	case TokGe:
		return condition.OpGe
	default:
		return condition.OpEq
	}
}

// parseField parses: field = WORD | "`" any "`"
func (p *parser) parseField() (string, error) {
	switch p.cur.Kind {
	case TokWord, TokField:
		field := p.cur.Lit
		if field == "" {
			return "", newParseError(p.cur.Pos, ErrInvalidArgument, "empty field name")
		}
		return field, p.advance()
	case TokEOF:
		return "", newParseError(p.cur.Pos, ErrUnexpectedEOF, "expected field, got end of query")
	default:
		return "", newParseError(p.cur.Pos, ErrUnexpectedToken, "expected field, got %s", describe(p.cur))
	}
}

// parseValue parses: value = STRING | WORD
func (p *parser) parseValue() (string, error) {
	switch p.cur.Kind {
	case TokString, TokWord:
		v := p.cur.Lit
		return v, p.advance()
	case TokEOF:
		return "", newParseError(p.cur.Pos, ErrUnexpectedEOF, "expected value, got end of query")
	default:
		return "", newParseError(p.cur.Pos, ErrUnexpectedToken, "expected value, got %s", describe(p.cur))
	}
}

// parseList parses: list = "[" value ( "," value )* "]"
func (p *parser) parseList() ([]string, error) {
	open, err := p.expect(TokLBracket, "'['")
	if err != nil {
		return nil, err
	}
	if p.cur.Kind == TokRBracket {
		return nil, newParseError(open.Pos, ErrInvalidArgument, "empty list")
	}

	var values []string
	for {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		values = append(values, v)

		if p.cur.Kind == TokComma {
			if err := p.advance(); err != nil {
				return nil, err
			}
			continue
		}
		if _, err := p.expect(TokRBracket, "',' or ']'"); err != nil {
			return nil, err
		}
		return values, nil
	}
}

// parseCall parses a function call predicate. The current token is the
// function name and the next one is "(".
func (p *parser) parseCall() (condition.Expr, error) {
	name := p.cur
	if err := p.advance(); err != nil {
		return nil, err
	}
	if _, err := p.expect(TokLParen, "'('"); err != nil {
		return nil, err
	}

	var pred *condition.Predicate
	var err error
	switch strings.ToUpper(name.Lit) {
	case funcStartsWith:
		pred, err = p.parseStartsWithArgs()
	case funcLevenshtein:
		pred, err = p.parseLevenshteinArgs()
	default:
		return nil, newParseError(name.Pos, ErrUnknownFunction, "unknown function %s", name.Lit)
	}
	if err != nil {
		return nil, err
	}

	if _, err := p.expect(TokRParen, "')'"); err != nil {
		return nil, err
	}
	if err := condition.Validate(pred); err != nil {
		return nil, newParseError(name.Pos, ErrInvalidArgument, "%s: %v", strings.ToUpper(name.Lit), err)
	}
	return pred, nil
}

// parseStartsWithArgs parses: field "," ( value | list ) [ "," INT ]
func (p *parser) parseStartsWithArgs() (*condition.Predicate, error) {
	field, err := p.parseField()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokComma, "','"); err != nil {
		return nil, err
	}

	pred := &condition.Predicate{Field: field, Op: condition.OpStartsWith}
	if p.cur.Kind == TokLBracket {
		if pred.Values, err = p.parseList(); err != nil {
			return nil, err
		}
	} else {
		v, err := p.parseValue()
		if err != nil {
			return nil, err
		}
		pred.Values = []string{v}
	}

	if p.cur.Kind == TokComma {
		if err := p.advance(); err != nil {
			return nil, err
		}
		if pred.MinMatch, err = p.parseInt("min match count"); err != nil {
			return nil, err
		}
	}
	return pred, nil
}

// parseLevenshteinArgs parses:
// field "," value "," INT [ "," BOOL [ "," INT [ "," value ] ] ]
func (p *parser) parseLevenshteinArgs() (*condition.Predicate, error) {
	field, err := p.parseField()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokComma, "','"); err != nil {
		return nil, err
	}
	term, err := p.parseValue()
	if err != nil {
		return nil, err
	}
	if _, err := p.expect(TokComma, "','"); err != nil {
		return nil, err
	}

	opts := condition.FuzzyOptions{
		WithTranspositions: true,
		MaxTerms:           condition.DefaultLevenshteinTermsLimit,
	}
	if opts.MaxDistance, err = p.parseInt("max distance"); err != nil {
		return nil, err
	}

	// Optional trailing arguments, in order.
	for i := 0; p.cur.Kind == TokComma && i < 3; i++ {
		if err := p.advance(); err != nil {
			return nil, err
		}
		switch i {
		case 0:
			opts.WithTranspositions, err = p.parseBool("transpositions flag")
		case 1:
			opts.MaxTerms, err = p.parseInt("max terms")
		case 2:
			opts.Prefix, err = p.parseValue()
		}
		if err != nil {
			return nil, err
		}
	}

	return condition.Levenshtein(field, term, opts), nil
}

func (p *parser) parseInt(what string) (int, error) {
	tok := p.cur
	if tok.Kind != TokWord {
		return 0, newParseError(tok.Pos, ErrInvalidArgument, "expected %s, got %s", what, describe(tok))
	}
	n, err := strconv.Atoi(tok.Lit)
	if err != nil {
		return 0, newParseError(tok.Pos, ErrInvalidArgument, "%s must be an integer, got %q", what, tok.Lit)
	}
	return n, p.advance()
}

func (p *parser) parseBool(what string) (bool, error) {
	switch p.cur.Kind {
	case TokTrue:
		return true, p.advance()
	case TokFalse:
		return false, p.advance()
	default:
		return false, newParseError(p.cur.Pos, ErrInvalidArgument, "expected %s (true or false), got %s", what, describe(p.cur))
	}
}

// describe renders a token for error messages.
func describe(tok Token) string {
	switch tok.Kind {
	case TokEOF:
		return "end of query"
	case TokString:
		return strconv.Quote(tok.Lit)
	default:
		return tok.Lit
	}
}
