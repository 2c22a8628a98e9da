package rewrite

import (
	"errors"
	"fmt"
	"io"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/tdewolff/parse/v2"
	"github.com/tdewolff/parse/v2/js"
)

// The bundler emits its stylesheet href lookup with a tiny, fixed subset of
// JS: literals, object maps indexed by chunkId, string concatenation,
// fallbacks with || and calls of small arrow functions. This file evaluates
// exactly that subset; anything else is an error.

const maxCallDepth = 32

var errUnsupported = errors.New("unsupported syntax")

type token struct {
	tt   js.TokenType
	text string
}

var eofToken = token{tt: js.ErrorToken}

// tokenStream pulls tokens from the lexer lazily, so parsing a prefix of a
// large file never lexes the rest of it.
type tokenStream struct {
	lexer *js.Lexer
	buf   []token
	pos   int
	done  bool
	err   error
}

func newTokenStream(src string) *tokenStream {
	return &tokenStream{lexer: js.NewLexer(parse.NewInputString(src))}
}

func (s *tokenStream) fill(n int) {
	for !s.done && len(s.buf) < s.pos+n {
		tt, data := s.lexer.Next()
		switch tt {
		case js.ErrorToken:
			if err := s.lexer.Err(); err != nil && err != io.EOF {
				s.err = err
			}
			s.done = true
		case js.WhitespaceToken, js.LineTerminatorToken, js.CommentToken, js.CommentLineTerminatorToken:
		default:
			s.buf = append(s.buf, token{tt: tt, text: string(data)})
		}
	}
}

func (s *tokenStream) peek(i int) token {
	s.fill(i + 1)
	if s.pos+i < len(s.buf) {
		return s.buf[s.pos+i]
	}
	return eofToken
}

func (s *tokenStream) next() token {
	t := s.peek(0)
	if s.pos < len(s.buf) {
		s.pos++
	}
	return t
}

type parser struct {
	s *tokenStream
}

func newParser(src string) *parser {
	return &parser{s: newTokenStream(src)}
}

func (p *parser) fail(t token, expected string) error {
	if p.s.err != nil {
		return p.s.err
	}
	if t.tt == js.ErrorToken {
		return fmt.Errorf("unexpected end of input, expected %s", expected)
	}
	return fmt.Errorf("unexpected %q, expected %s", t.text, expected)
}

func (p *parser) expect(tt js.TokenType, expected string) error {
	t := p.s.next()
	if t.tt != tt {
		return p.fail(t, expected)
	}
	return nil
}

// end accepts optional semicolons followed by the end of input.
func (p *parser) end() error {
	for p.s.peek(0).tt == js.SemicolonToken {
		p.s.next()
	}
	if t := p.s.peek(0); t.tt != js.ErrorToken || p.s.err != nil {
		return p.fail(t, "end of statement")
	}
	return nil
}

func (p *parser) parseExpression() (node, error) {
	test, err := p.parseLogical()
	if err != nil {
		return nil, err
	}
	if p.s.peek(0).tt != js.QuestionToken {
		return test, nil
	}
	p.s.next()
	yes, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.expect(js.ColonToken, ":"); err != nil {
		return nil, err
	}
	no, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &condNode{test: test, yes: yes, no: no}, nil
}

func (p *parser) parseLogical() (node, error) {
	left, err := p.parseAnd()
	if err != nil {
		return nil, err
	}
	for {
		tt := p.s.peek(0).tt
		if tt != js.OrToken && tt != js.NullishToken {
			return left, nil
		}
		p.s.next()
		right, err := p.parseAnd()
		if err != nil {
			return nil, err
		}
		left = &logicalNode{op: tt, left: left, right: right}
	}
}

func (p *parser) parseAnd() (node, error) {
	left, err := p.parseEquality()
	if err != nil {
		return nil, err
	}
	for p.s.peek(0).tt == js.AndToken {
		p.s.next()
		right, err := p.parseEquality()
		if err != nil {
			return nil, err
		}
		left = &logicalNode{op: js.AndToken, left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseEquality() (node, error) {
	left, err := p.parseAdditive()
	if err != nil {
		return nil, err
	}
	for {
		tt := p.s.peek(0).tt
		switch tt {
		case js.EqEqEqToken, js.NotEqEqToken, js.EqEqToken, js.NotEqToken:
		default:
			return left, nil
		}
		p.s.next()
		right, err := p.parseAdditive()
		if err != nil {
			return nil, err
		}
		left = &equalityNode{op: tt, left: left, right: right}
	}
}

func (p *parser) parseAdditive() (node, error) {
	left, err := p.parseUnary()
	if err != nil {
		return nil, err
	}
	for p.s.peek(0).tt == js.AddToken {
		p.s.next()
		right, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		left = &addNode{left: left, right: right}
	}
	return left, nil
}

func (p *parser) parseUnary() (node, error) {
	if p.s.peek(0).tt == js.NotToken {
		p.s.next()
		operand, err := p.parseUnary()
		if err != nil {
			return nil, err
		}
		return &notNode{operand: operand}, nil
	}
	return p.parsePostfix()
}

func (p *parser) parsePostfix() (node, error) {
	n, err := p.parsePrimary()
	if err != nil {
		return nil, err
	}
	for {
		switch p.s.peek(0).tt {
		case js.DotToken:
			p.s.next()
			t := p.s.next()
			if !js.IsIdentifierName(t.tt) {
				return nil, p.fail(t, "property name")
			}
			n = &memberNode{object: n, property: &literalNode{v: t.text}}
		case js.OpenBracketToken:
			p.s.next()
			prop, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			if err := p.expect(js.CloseBracketToken, "]"); err != nil {
				return nil, err
			}
			n = &memberNode{object: n, property: prop}
		case js.OpenParenToken:
			p.s.next()
			args, err := p.parseList(js.CloseParenToken, ")")
			if err != nil {
				return nil, err
			}
			n = &callNode{callee: n, args: args}
		default:
			return n, nil
		}
	}
}

// parseList parses comma separated expressions up to and including closing.
func (p *parser) parseList(closing js.TokenType, expected string) ([]node, error) {
	var list []node
	for {
		if p.s.peek(0).tt == closing {
			p.s.next()
			return list, nil
		}
		n, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		list = append(list, n)
		switch t := p.s.next(); t.tt {
		case js.CommaToken:
		case closing:
			return list, nil
		default:
			return nil, p.fail(t, ", or "+expected)
		}
	}
}

func (p *parser) parsePrimary() (node, error) {
	t := p.s.peek(0)
	switch {
	case t.tt == js.StringToken:
		p.s.next()
		s, err := unquoteString(t.text)
		if err != nil {
			return nil, err
		}
		return &literalNode{v: s}, nil
	case t.tt == js.TemplateToken:
		p.s.next()
		s, err := unquoteString(t.text)
		if err != nil {
			return nil, err
		}
		return &literalNode{v: s}, nil
	case js.IsNumeric(t.tt):
		p.s.next()
		f, err := parseNumber(t.text)
		if err != nil {
			return nil, err
		}
		return &literalNode{v: f}, nil
	case t.tt == js.TrueToken:
		p.s.next()
		return &literalNode{v: true}, nil
	case t.tt == js.FalseToken:
		p.s.next()
		return &literalNode{v: false}, nil
	case t.tt == js.NullToken:
		p.s.next()
		return &literalNode{v: nil}, nil
	case t.tt == js.FunctionToken:
		return p.parseFunction()
	case js.IsIdentifier(t.tt):
		p.s.next()
		if p.s.peek(0).tt == js.ArrowToken {
			p.s.next()
			return p.parseArrowBody([]string{t.text})
		}
		return &identNode{name: t.text}, nil
	case t.tt == js.OpenParenToken:
		if params, ok := p.arrowParams(); ok {
			return p.parseArrowBody(params)
		}
		p.s.next()
		n, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		if err := p.expect(js.CloseParenToken, ")"); err != nil {
			return nil, err
		}
		return n, nil
	case t.tt == js.OpenBraceToken:
		return p.parseObject()
	case t.tt == js.OpenBracketToken:
		p.s.next()
		elems, err := p.parseList(js.CloseBracketToken, "]")
		if err != nil {
			return nil, err
		}
		return &arrayNode{elems: elems}, nil
	}
	return nil, p.fail(t, "expression")
}

// arrowParams looks ahead for "(a, b) =>" and consumes it when found.
func (p *parser) arrowParams() ([]string, bool) {
	var params []string
	i := 1
	for {
		t := p.s.peek(i)
		if t.tt == js.CloseParenToken {
			break
		}
		if !js.IsIdentifier(t.tt) {
			return nil, false
		}
		params = append(params, t.text)
		i++
		switch p.s.peek(i).tt {
		case js.CommaToken:
			i++
		case js.CloseParenToken:
		default:
			return nil, false
		}
	}
	if p.s.peek(i+1).tt != js.ArrowToken {
		return nil, false
	}
	for j := 0; j < i+2; j++ {
		p.s.next()
	}
	return params, true
}

func (p *parser) parseArrowBody(params []string) (node, error) {
	if p.s.peek(0).tt == js.OpenBraceToken {
		body, err := p.parseBlock()
		if err != nil {
			return nil, err
		}
		return &funcNode{params: params, body: body}, nil
	}
	body, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return &funcNode{params: params, body: body}, nil
}

func (p *parser) parseFunction() (node, error) {
	p.s.next()
	if js.IsIdentifier(p.s.peek(0).tt) {
		p.s.next()
	}
	if err := p.expect(js.OpenParenToken, "("); err != nil {
		return nil, err
	}
	var params []string
	for {
		t := p.s.next()
		if t.tt == js.CloseParenToken {
			break
		}
		if !js.IsIdentifier(t.tt) {
			return nil, p.fail(t, "parameter name")
		}
		params = append(params, t.text)
		if p.s.peek(0).tt == js.CommaToken {
			p.s.next()
		}
	}
	body, err := p.parseBlock()
	if err != nil {
		return nil, err
	}
	return &funcNode{params: params, body: body}, nil
}

// parseBlock only accepts `{ return expr; }`, optionally with empty statements.
func (p *parser) parseBlock() (node, error) {
	if err := p.expect(js.OpenBraceToken, "{"); err != nil {
		return nil, err
	}
	var body node = &literalNode{v: undefined}
	for {
		t := p.s.next()
		switch t.tt {
		case js.SemicolonToken:
		case js.CloseBraceToken:
			return body, nil
		case js.ReturnToken:
			n, err := p.parseExpression()
			if err != nil {
				return nil, err
			}
			body = n
		default:
			return nil, fmt.Errorf("%w: statement %q in function body", errUnsupported, t.text)
		}
	}
}

func (p *parser) parseObject() (node, error) {
	p.s.next()
	obj := &objectNode{}
	for {
		t := p.s.next()
		var key string
		switch {
		case t.tt == js.CloseBraceToken:
			return obj, nil
		case t.tt == js.StringToken:
			s, err := unquoteString(t.text)
			if err != nil {
				return nil, err
			}
			key = s
		case js.IsNumeric(t.tt):
			f, err := parseNumber(t.text)
			if err != nil {
				return nil, err
			}
			key = numberToString(f)
		case js.IsIdentifierName(t.tt):
			key = t.text
		default:
			return nil, p.fail(t, "property key")
		}
		if err := p.expect(js.ColonToken, ":"); err != nil {
			return nil, err
		}
		v, err := p.parseExpression()
		if err != nil {
			return nil, err
		}
		obj.keys = append(obj.keys, key)
		obj.values = append(obj.values, v)

		switch t := p.s.next(); t.tt {
		case js.CommaToken:
		case js.CloseBraceToken:
			return obj, nil
		default:
			return nil, p.fail(t, ", or }")
		}
	}
}

// parseVarStatement parses `var <name> = <expr>;` and returns the expression.
func parseVarStatement(src, name string) (node, error) {
	p := newParser(src)
	switch t := p.s.next(); t.tt {
	case js.VarToken, js.LetToken, js.ConstToken:
	default:
		return nil, p.fail(t, "var")
	}
	if t := p.s.next(); t.text != name {
		return nil, p.fail(t, name)
	}
	if err := p.expect(js.EqToken, "="); err != nil {
		return nil, err
	}
	n, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	return n, p.end()
}

// parseLeadingExpression parses one expression at the start of src and
// ignores whatever follows it.
func parseLeadingExpression(src string) (node, error) {
	p := newParser(src)
	n, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if p.s.err != nil {
		return nil, p.s.err
	}
	return n, nil
}

// evalExpression evaluates src, a complete expression, in sc.
func evalExpression(src string, sc *scope) (value, error) {
	p := newParser(src)
	n, err := p.parseExpression()
	if err != nil {
		return nil, err
	}
	if err := p.end(); err != nil {
		return nil, err
	}
	return n.eval(sc)
}

func unquoteString(lit string) (string, error) {
	if len(lit) < 2 {
		return "", fmt.Errorf("invalid string literal %q", lit)
	}
	body := lit[1 : len(lit)-1]
	if !strings.Contains(body, `\`) {
		return body, nil
	}

	var sb strings.Builder
	for i := 0; i < len(body); i++ {
		c := body[i]
		if c != '\\' {
			sb.WriteByte(c)
			continue
		}
		i++
		if i >= len(body) {
			return "", fmt.Errorf("invalid escape in %q", lit)
		}
		switch c = body[i]; c {
		case 'n':
			sb.WriteByte('\n')
		case 'r':
			sb.WriteByte('\r')
		case 't':
			sb.WriteByte('\t')
		case 'b':
			sb.WriteByte('\b')
		case 'f':
			sb.WriteByte('\f')
		case 'v':
			sb.WriteByte('\v')
		case '0':
			sb.WriteByte(0)
		case '\n':
		case '\r':
			if i+1 < len(body) && body[i+1] == '\n' {
				i++
			}
		case 'x':
			if i+2 >= len(body) {
				return "", fmt.Errorf("invalid escape in %q", lit)
			}
			n, err := strconv.ParseUint(body[i+1:i+3], 16, 8)
			if err != nil {
				return "", fmt.Errorf("invalid escape in %q", lit)
			}
			sb.WriteRune(rune(n))
			i += 2
		case 'u':
			var hex string
			if i+1 < len(body) && body[i+1] == '{' {
				end := strings.IndexByte(body[i:], '}')
				if end < 0 {
					return "", fmt.Errorf("invalid escape in %q", lit)
				}
				hex = body[i+2 : i+end]
				i += end
			} else {
				if i+4 >= len(body) {
					return "", fmt.Errorf("invalid escape in %q", lit)
				}
				hex = body[i+1 : i+5]
				i += 4
			}
			n, err := strconv.ParseUint(hex, 16, 32)
			if err != nil || !utf8.ValidRune(rune(n)) {
				return "", fmt.Errorf("invalid escape in %q", lit)
			}
			sb.WriteRune(rune(n))
		default:
			sb.WriteByte(c)
		}
	}
	return sb.String(), nil
}

func parseNumber(lit string) (float64, error) {
	lit = strings.ReplaceAll(lit, "_", "")
	lit = strings.TrimSuffix(lit, "n")
	if len(lit) > 2 && lit[0] == '0' {
		base := 0
		switch lit[1] {
		case 'x', 'X':
			base = 16
		case 'o', 'O':
			base = 8
		case 'b', 'B':
			base = 2
		}
		if base != 0 {
			n, err := strconv.ParseUint(lit[2:], base, 64)
			return float64(n), err
		}
	}
	return strconv.ParseFloat(lit, 64)
}

// values

type value interface{}

type undefinedValue struct{}

var undefined = undefinedValue{}

type object struct {
	keys  []string
	props map[string]value
}

func newObject() *object {
	return &object{props: make(map[string]value)}
}

func (o *object) set(k string, v value) {
	if _, ok := o.props[k]; !ok {
		o.keys = append(o.keys, k)
	}
	o.props[k] = v
}

// ownKeys follows Object.keys: array indexes ascending, then insertion order.
func (o *object) ownKeys() []string {
	var indexes, named []string
	for _, k := range o.keys {
		if _, ok := arrayIndex(k); ok {
			indexes = append(indexes, k)
		} else {
			named = append(named, k)
		}
	}
	sortObjectKeys(indexes)
	return append(indexes, named...)
}

type array []value

type function struct {
	params  []string
	body    node
	closure *scope
}

type scope struct {
	vars   map[string]value
	parent *scope
	depth  int
}

func newScope(parent *scope) *scope {
	sc := &scope{vars: make(map[string]value), parent: parent}
	if parent != nil {
		sc.depth = parent.depth
	}
	return sc
}

func (s *scope) lookup(name string) (value, bool) {
	for sc := s; sc != nil; sc = sc.parent {
		if v, ok := sc.vars[name]; ok {
			return v, true
		}
	}
	return nil, false
}

func numberToString(f float64) string {
	switch {
	case math.IsNaN(f):
		return "NaN"
	case math.IsInf(f, 1):
		return "Infinity"
	case math.IsInf(f, -1):
		return "-Infinity"
	case f == math.Trunc(f) && math.Abs(f) < 1e21:
		return strconv.FormatFloat(f, 'f', -1, 64)
	}
	return strconv.FormatFloat(f, 'g', -1, 64)
}

func toString(v value) string {
	switch v := v.(type) {
	case string:
		return v
	case float64:
		return numberToString(v)
	case bool:
		return strconv.FormatBool(v)
	case nil:
		return "null"
	case undefinedValue:
		return "undefined"
	case *object:
		return "[object Object]"
	case array:
		parts := make([]string, len(v))
		for i, e := range v {
			switch e.(type) {
			case nil, undefinedValue:
			default:
				parts[i] = toString(e)
			}
		}
		return strings.Join(parts, ",")
	case *function:
		return "function"
	}
	return fmt.Sprint(v)
}

func toNumber(v value) float64 {
	switch v := v.(type) {
	case float64:
		return v
	case bool:
		if v {
			return 1
		}
		return 0
	case nil:
		return 0
	case string:
		s := strings.TrimSpace(v)
		if s == "" {
			return 0
		}
		f, err := parseNumber(s)
		if err != nil {
			return math.NaN()
		}
		return f
	}
	return math.NaN()
}

func truthy(v value) bool {
	switch v := v.(type) {
	case string:
		return v != ""
	case float64:
		return v != 0 && !math.IsNaN(v)
	case bool:
		return v
	case nil, undefinedValue:
		return false
	}
	return true
}

func strictEquals(a, b value) bool {
	switch a := a.(type) {
	case string, bool, nil, undefinedValue:
		return a == b
	case float64:
		bf, ok := b.(float64)
		return ok && a == bf
	case *object:
		bo, ok := b.(*object)
		return ok && a == bo
	case *function:
		bf, ok := b.(*function)
		return ok && a == bf
	}
	return false
}

func looseEquals(a, b value) bool {
	nullish := func(v value) bool {
		switch v.(type) {
		case nil, undefinedValue:
			return true
		}
		return false
	}
	if nullish(a) || nullish(b) {
		return nullish(a) && nullish(b)
	}
	_, as := a.(string)
	_, bs := b.(string)
	if as && bs {
		return a == b
	}
	switch a.(type) {
	case *object, *function, array:
		return strictEquals(a, b)
	}
	return toNumber(a) == toNumber(b)
}

func getProperty(v value, key string) (value, error) {
	switch v := v.(type) {
	case *object:
		if p, ok := v.props[key]; ok {
			return p, nil
		}
		return undefined, nil
	case array:
		if key == "length" {
			return float64(len(v)), nil
		}
		if i, ok := arrayIndex(key); ok && int(i) < len(v) {
			return v[i], nil
		}
		return undefined, nil
	case string:
		if key == "length" {
			return float64(len(v)), nil
		}
		if i, ok := arrayIndex(key); ok && int(i) < len(v) {
			return v[i : i+1], nil
		}
		return undefined, nil
	case nil, undefinedValue:
		return nil, fmt.Errorf("cannot read property %q of %s", key, toString(v))
	}
	return undefined, nil
}

// nodes

type node interface {
	eval(sc *scope) (value, error)
}

type literalNode struct{ v value }

func (n *literalNode) eval(*scope) (value, error) { return n.v, nil }

type identNode struct{ name string }

func (n *identNode) eval(sc *scope) (value, error) {
	if v, ok := sc.lookup(n.name); ok {
		return v, nil
	}
	if n.name == "undefined" {
		return undefined, nil
	}
	return nil, fmt.Errorf("%s is not defined", n.name)
}

type memberNode struct {
	object   node
	property node
}

func (n *memberNode) eval(sc *scope) (value, error) {
	obj, err := n.object.eval(sc)
	if err != nil {
		return nil, err
	}
	key, err := n.property.eval(sc)
	if err != nil {
		return nil, err
	}
	return getProperty(obj, toString(key))
}

type callNode struct {
	callee node
	args   []node
}

func (n *callNode) eval(sc *scope) (value, error) {
	callee, err := n.callee.eval(sc)
	if err != nil {
		return nil, err
	}
	fn, ok := callee.(*function)
	if !ok {
		return nil, fmt.Errorf("%s is not a function", toString(callee))
	}
	if sc.depth >= maxCallDepth {
		return nil, errors.New("maximum call depth exceeded")
	}

	local := newScope(fn.closure)
	local.depth = sc.depth + 1
	for i, name := range fn.params {
		var arg value = undefined
		if i < len(n.args) {
			if arg, err = n.args[i].eval(sc); err != nil {
				return nil, err
			}
		}
		local.vars[name] = arg
	}
	return fn.body.eval(local)
}

type funcNode struct {
	params []string
	body   node
}

func (n *funcNode) eval(sc *scope) (value, error) {
	return &function{params: n.params, body: n.body, closure: sc}, nil
}

type objectNode struct {
	keys   []string
	values []node
}

func (n *objectNode) eval(sc *scope) (value, error) {
	obj := newObject()
	for i, k := range n.keys {
		v, err := n.values[i].eval(sc)
		if err != nil {
			return nil, err
		}
		obj.set(k, v)
	}
	return obj, nil
}

type arrayNode struct{ elems []node }

func (n *arrayNode) eval(sc *scope) (value, error) {
	arr := make(array, len(n.elems))
	for i, e := range n.elems {
		v, err := e.eval(sc)
		if err != nil {
			return nil, err
		}
		arr[i] = v
	}
	return arr, nil
}

type addNode struct{ left, right node }

func (n *addNode) eval(sc *scope) (value, error) {
	l, err := n.left.eval(sc)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(sc)
	if err != nil {
		return nil, err
	}
	if isNumberLike(l) && isNumberLike(r) {
		return toNumber(l) + toNumber(r), nil
	}
	return toString(l) + toString(r), nil
}

func isNumberLike(v value) bool {
	switch v.(type) {
	case float64, bool, nil, undefinedValue:
		return true
	}
	return false
}

type logicalNode struct {
	op          js.TokenType
	left, right node
}

func (n *logicalNode) eval(sc *scope) (value, error) {
	l, err := n.left.eval(sc)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case js.OrToken:
		if truthy(l) {
			return l, nil
		}
	case js.AndToken:
		if !truthy(l) {
			return l, nil
		}
	case js.NullishToken:
		switch l.(type) {
		case nil, undefinedValue:
		default:
			return l, nil
		}
	}
	return n.right.eval(sc)
}

type equalityNode struct {
	op          js.TokenType
	left, right node
}

func (n *equalityNode) eval(sc *scope) (value, error) {
	l, err := n.left.eval(sc)
	if err != nil {
		return nil, err
	}
	r, err := n.right.eval(sc)
	if err != nil {
		return nil, err
	}
	switch n.op {
	case js.EqEqEqToken:
		return strictEquals(l, r), nil
	case js.NotEqEqToken:
		return !strictEquals(l, r), nil
	case js.EqEqToken:
		return looseEquals(l, r), nil
	}
	return !looseEquals(l, r), nil
}

type notNode struct{ operand node }

func (n *notNode) eval(sc *scope) (value, error) {
	v, err := n.operand.eval(sc)
	if err != nil {
		return nil, err
	}
	return !truthy(v), nil
}

type condNode struct{ test, yes, no node }

func (n *condNode) eval(sc *scope) (value, error) {
	t, err := n.test.eval(sc)
	if err != nil {
		return nil, err
	}
	if truthy(t) {
		return n.yes.eval(sc)
	}
	return n.no.eval(sc)
}
