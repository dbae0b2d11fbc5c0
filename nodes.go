package varcalc

import (
	"strconv"
	"strings"
)

// node is a node in the abstract syntax tree of an expression. Nodes are never
// modified after parsing finishes.
type node struct {
	kind nodeKind

	// name is the variable or function name for nodeName and nodeCall, or the
	// literal text for nodeNum.
	name string
	// val is the value of a nodeNum.
	val float64
	fn  Func

	left  *node
	right *node
	// args are the arguments of a nodeCall, in order.
	args []*node
}

type nodeKind int8

const (
	nodeNone nodeKind = iota

	nodeNum  // val
	nodeName // lookup(name)
	nodeCall // fn(args...)

	nodeNeg  // -left
	nodeNot  // !left, logical
	nodeCpl  // ~left, bitwise
	nodeFact // left!

	nodeAdd
	nodeSub
	nodeMul
	nodeDiv
	nodePow

	nodeEq
	nodeNe
	nodeLt
	nodeLe
	nodeGt
	nodeGe

	nodeShl
	nodeShr
	nodeUshr

	nodeAnd
	nodeXor
	nodeXnor
	nodeOr

	nodeLAnd // short-circuit
	nodeLOr  // short-circuit
)

var nodeNames = [...]string{
	nodeNone: "None",
	nodeNum:  "Num",
	nodeName: "Name",
	nodeCall: "Call",
	nodeNeg:  "Neg",
	nodeNot:  "Not",
	nodeCpl:  "Cpl",
	nodeFact: "Fact",
	nodeAdd:  "Add",
	nodeSub:  "Sub",
	nodeMul:  "Mul",
	nodeDiv:  "Div",
	nodePow:  "Pow",
	nodeEq:   "Eq",
	nodeNe:   "Ne",
	nodeLt:   "Lt",
	nodeLe:   "Le",
	nodeGt:   "Gt",
	nodeGe:   "Ge",
	nodeShl:  "Shl",
	nodeShr:  "Shr",
	nodeUshr: "Ushr",
	nodeAnd:  "And",
	nodeXor:  "Xor",
	nodeXnor: "Xnor",
	nodeOr:   "Or",
	nodeLAnd: "LAnd",
	nodeLOr:  "LOr",
}

func (k nodeKind) String() string {
	if k < 0 || int(k) >= len(nodeNames) {
		return "nodeKind(" + strconv.Itoa(int(k)) + ")"
	}
	return nodeNames[k]
}

// nodeOps maps unary and binary node kinds to the operator text that produces
// them.
var nodeOps = map[nodeKind]string{
	nodeNeg:  "-",
	nodeNot:  "!",
	nodeCpl:  "~",
	nodeFact: "!",
	nodeAdd:  "+",
	nodeSub:  "-",
	nodeMul:  "*",
	nodeDiv:  "/",
	nodePow:  "^",
	nodeEq:   "==",
	nodeNe:   "!=",
	nodeLt:   "<",
	nodeLe:   "<=",
	nodeGt:   ">",
	nodeGe:   ">=",
	nodeShl:  "<<",
	nodeShr:  ">>",
	nodeUshr: ">>>",
	nodeAnd:  "&",
	nodeXor:  "xor",
	nodeXnor: "xnor",
	nodeOr:   "|",
	nodeLAnd: "&&",
	nodeLOr:  "||",
}

func (n *node) String() string {
	var b strings.Builder
	n.fmt(&b)
	return b.String()
}

// fmt writes the node with every subexpression in parentheses, so that the
// output parses to the same tree.
func (n *node) fmt(b *strings.Builder) {
	b.WriteByte('(')
	defer b.WriteByte(')')
	switch n.kind {
	case nodeNone:
		// Invalid nodes use invalid characters.
		b.WriteByte('$')
		if n.left != nil {
			n.left.fmt(b)
		}
		b.WriteByte('#')
		if n.right != nil {
			n.right.fmt(b)
		}
		b.WriteByte('$')
	case nodeNum, nodeName:
		b.WriteString(n.name)
	case nodeCall:
		b.WriteString(n.name)
		b.WriteByte('(')
		for i, arg := range n.args {
			if i > 0 {
				b.WriteString(", ")
			}
			arg.fmt(b)
		}
		b.WriteByte(')')
	case nodeNeg, nodeNot, nodeCpl:
		b.WriteString(nodeOps[n.kind])
		n.left.fmt(b)
	case nodeFact:
		n.left.fmt(b)
		b.WriteByte('!')
	default:
		op, ok := nodeOps[n.kind]
		if !ok {
			panic("varcalc: invalid node kind " + n.kind.String() + " after writing " + b.String())
		}
		n.left.fmt(b)
		b.WriteByte(' ')
		b.WriteString(op)
		b.WriteByte(' ')
		n.right.fmt(b)
	}
}
