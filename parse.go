package varcalc

import (
	"io"
	"slices"
	"strings"
)

// Expr    = Binary | Unary
// Binary  = Expr binop Expr
// Unary   = ('-' | '!' | '~') Unary | Postfix
// Postfix = Primary { '!' }
// Primary = num | name | Call | '(' Expr ')'
// Call    = funcname '(' [ Expr { ',' Expr } ] ')'

// Expr is a parsed expression that can be evaluated with a context. An Expr
// is immutable, so it is safe to evaluate concurrently.
type Expr struct {
	// n is the root node of the expression.
	n *node
	// names is the list of variable names used in the expression.
	names []string
}

// Parse parses an expression so it can be evaluated with a context. The given
// options are applied in order.
func Parse(src io.RuneScanner, opts ...ParseOption) (*Expr, error) {
	toks, err := tokenize(src)
	if err != nil {
		return nil, err
	}
	p := parsectx{
		names: make(map[string]bool),
	}
	for _, opt := range opts {
		p = opt.parseOption(p)
	}
	if p.funcs == nil {
		p.funcs = globalfuncs
	} else if !p.nodefaults {
		// Only set default functions that aren't already set.
		for k, v := range globalfuncs {
			if _, ok := p.funcs[k]; !ok {
				p.funcs[k] = v
			}
		}
	}
	scan := &tokens{toks: toks}
	n, err := parseterm(scan, &p, exprprec)
	if err != nil {
		return nil, err
	}
	if tok := scan.next(); tok.kind != tokenEOF {
		return nil, itShouldNotHaveEndedThisWay(tok)
	}
	ex := Expr{
		n:     n,
		names: make([]string, 0, len(p.names)),
	}
	for k := range p.names {
		ex.names = append(ex.names, k)
	}
	slices.Sort(ex.names)
	return &ex, nil
}

// ParseString is a shortcut to parse an expression from a string.
func ParseString(src string, opts ...ParseOption) (*Expr, error) {
	return Parse(strings.NewReader(src), opts...)
}

// tokens is a cursor over scanned tokens. Once the cursor reaches the EOF
// token, it stays there.
type tokens struct {
	toks []lexToken
	i    int
}

func (t *tokens) peek() lexToken {
	return t.toks[t.i]
}

func (t *tokens) next() lexToken {
	tok := t.toks[t.i]
	if tok.kind != tokenEOF {
		t.i++
	}
	return tok
}

// parseterm parses binary operations binding more tightly than until. It
// leaves the first token it does not consume as the next token.
func parseterm(scan *tokens, p *parsectx, until operator) (*node, error) {
	n, err := parseunary(scan, p)
	if err != nil {
		return nil, err
	}
	for {
		tok := scan.peek()
		if tok.kind != tokenOp {
			// End of expression, or something the caller will reject.
			return n, nil
		}
		prec := binop(tok.text)
		if prec.op == nodeNone {
			return nil, &OperatorError{Col: tok.pos, Operator: tok.text, Unary: false}
		}
		if !prec.moreBinding(until) {
			return n, nil
		}
		scan.next()
		rhs, err := parseterm(scan, p, prec)
		if err != nil {
			return nil, err
		}
		n = &node{kind: prec.op, left: n, right: rhs}
	}
}

// parseunary parses prefix operators, then an operand with any postfix
// factorials. Postfix operators bind more tightly than prefix ones, so -3! is
// -(3!).
func parseunary(scan *tokens, p *parsectx) (*node, error) {
	tok := scan.next()
	if tok.kind == tokenOp {
		prec := unop(tok.text)
		if prec.op == nodeNone {
			return nil, &OperatorError{Col: tok.pos, Operator: tok.text, Unary: true}
		}
		rhs, err := parseunary(scan, p)
		if err != nil {
			return nil, err
		}
		return &node{kind: prec.op, left: rhs}, nil
	}
	n, err := parseprimary(scan, p, tok)
	if err != nil {
		return nil, err
	}
	for {
		tok := scan.peek()
		if tok.kind != tokenOp || tok.text != "!" {
			return n, nil
		}
		scan.next()
		n = &node{kind: nodeFact, left: n}
	}
}

// parseprimary parses a number, name, call, or parenthesized expression
// beginning with tok.
func parseprimary(scan *tokens, p *parsectx, tok lexToken) (*node, error) {
	switch tok.kind {
	case tokenNum:
		return &node{kind: nodeNum, name: tok.text, val: tok.val}, nil
	case tokenIdent:
		if scan.peek().kind == tokenOpen {
			return parsecall(scan, p, tok)
		}
		if !isReserved(tok.text) {
			p.names[tok.text] = true
		}
		return &node{kind: nodeName, name: tok.text}, nil
	case tokenOpen:
		n, err := parseterm(scan, p, exprprec)
		if err != nil {
			return nil, err
		}
		end := scan.next()
		if end.kind != tokenClose {
			return nil, itShouldNotHaveEndedThisWay(end)
		}
		return n, nil
	case tokenClose:
		return nil, &EmptyExpressionError{Col: tok.pos, End: tok.text}
	case tokenSep:
		return nil, &SeparatorError{Col: tok.pos, Sep: tok.text}
	case tokenEOF:
		return nil, &EmptyExpressionError{Col: tok.pos, End: ""}
	default:
		panic("varcalc: unknown token: " + tok.String())
	}
}

// parsecall parses the argument list of a call to the function named by
// name. The next token is the open paren.
func parsecall(scan *tokens, p *parsectx, name lexToken) (*node, error) {
	open := scan.next()
	fn := p.funcs[name.text]
	if fn == nil {
		return nil, &FuncError{Col: name.pos, Func: name.text}
	}
	var args []*node
	if scan.peek().kind == tokenClose {
		scan.next()
	} else {
	loop:
		for {
			arg, err := parseterm(scan, p, exprprec)
			if err != nil {
				return nil, err
			}
			args = append(args, arg)
			end := scan.next()
			switch end.kind {
			case tokenSep:
				continue
			case tokenClose:
				break loop
			default:
				return nil, itShouldNotHaveEndedThisWay(end)
			}
		}
	}
	if !fn.CanCall(len(args)) {
		return nil, &CallError{Col: open.pos, Func: name.text, Len: len(args)}
	}
	return &node{kind: nodeCall, name: name.text, fn: fn, args: args}, nil
}

// itShouldNotHaveEndedThisWay returns an error appropriate for an unexpected
// token at the end of a subexpression.
func itShouldNotHaveEndedThisWay(tok lexToken) error {
	switch tok.kind {
	case tokenEOF:
		// Unexpected EOF implies an open paren that was not closed.
		return &BracketError{Col: tok.pos, Left: "(", Right: ""}
	case tokenClose:
		return &BracketError{Col: tok.pos, Left: "", Right: tok.text}
	case tokenSep:
		// Separator outside a function call.
		return &SeparatorError{Col: tok.pos, Sep: tok.text}
	default:
		return &TrailingError{Col: tok.pos, Text: tok.text}
	}
}

// Vars returns the variable names used when evaluating the expression. The
// reserved constants are not included.
func (e *Expr) Vars() []string {
	return slices.Clone(e.names)
}

// String creates a string representation of the parsed expression with every
// subexpression in parentheses.
func (e *Expr) String() string {
	return e.n.String()
}

type operator struct {
	// prec is the precedence value. Higher is more binding.
	prec int8
	// right indicates right-associativity.
	right bool
	// op is the node kind to use when this operator is selected.
	op nodeKind
}

func (p operator) moreBinding(than operator) bool {
	if p.prec != than.prec {
		return p.prec > than.prec
	}
	return p.right
}

// binop gets a binary operator for a token string. If there is no such binary
// operator, then the result has an op of nodeNone.
func binop(text string) operator {
	switch text {
	case "||":
		return operator{1, false, nodeLOr}
	case "&&":
		return operator{2, false, nodeLAnd}
	case "|":
		return operator{3, false, nodeOr}
	case "xor":
		return operator{4, false, nodeXor}
	case "xnor":
		return operator{4, false, nodeXnor}
	case "&":
		return operator{5, false, nodeAnd}
	case "==":
		return operator{6, false, nodeEq}
	case "!=":
		return operator{6, false, nodeNe}
	case "<":
		return operator{7, false, nodeLt}
	case "<=":
		return operator{7, false, nodeLe}
	case ">":
		return operator{7, false, nodeGt}
	case ">=":
		return operator{7, false, nodeGe}
	case "<<":
		return operator{8, false, nodeShl}
	case ">>":
		return operator{8, false, nodeShr}
	case ">>>":
		return operator{8, false, nodeUshr}
	case "+":
		return operator{9, false, nodeAdd}
	case "-":
		return operator{9, false, nodeSub}
	case "*":
		return operator{10, false, nodeMul}
	case "/":
		return operator{10, false, nodeDiv}
	case "^":
		return operator{11, true, nodePow}
	default:
		return operator{}
	}
}

// unop gets a prefix operator for a token string. If there is no such prefix
// operator, then the result has an op of nodeNone.
func unop(text string) operator {
	switch text {
	case "-":
		return operator{12, true, nodeNeg}
	case "!":
		return operator{12, true, nodeNot}
	case "~":
		return operator{12, true, nodeCpl}
	default:
		return operator{}
	}
}

// exprprec is the precedence required to parse an entire subexpression.
var exprprec = operator{-128, true, nodeNone}
