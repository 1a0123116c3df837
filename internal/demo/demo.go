// Package demo is a toy host database built on the public ember engine: a
// tiny arithmetic expression-graph evaluator standing in for the
// out-of-scope "calc evaluator" example acknowledged in spec.md §1. It
// exercises every ingredient kind end to end — SourceText is an input,
// Parse is a tracked function producing a Tree tracked struct, Eval is a
// tracked function reading that tree, and diagnostics are pushed through an
// Accumulated[Diagnostic] channel.
package demo

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/emberdb/ember/internal/accumulator"
	"github.com/emberdb/ember/internal/engine"
	"github.com/emberdb/ember/internal/function"
	"github.com/emberdb/ember/internal/ids"
	"github.com/emberdb/ember/internal/input"
	"github.com/emberdb/ember/internal/revision"
	"github.com/emberdb/ember/internal/trackedstruct"
)

// NodeKind classifies one Tree node: either a leaf literal or a binary
// operation over two child expressions.
type NodeKind int

const (
	Literal NodeKind = iota
	Add
	Sub
	Mul
)

// Fields is the tracked-struct payload for one parsed expression node.
// Identity is the structural shape of the parse (operator + operand
// sources), so re-parsing the same text reproduces the same tree ids.
type Fields struct {
	Kind  NodeKind
	Value int64 // only meaningful when Kind == Literal
	Left  ids.Id
	Right ids.Id
	HasL  bool
	HasR  bool
}

// Diagnostic is pushed to the accumulator while parsing or evaluating.
type Diagnostic struct {
	Message string
}

// Database is the demo host: one SourceText input keyed by a small integer
// document id, a Parse tracked function producing Tree tracked structs, and
// an Eval tracked function over them.
type Database struct {
	db *engine.Database

	sourceText *input.Ingredient[string]
	tree       *trackedstruct.Ingredient[Fields]
	parse      *function.Ingredient[int, ids.Id]
	eval       *function.Ingredient[int, int64]
	diagnostic *accumulator.Accumulator[Diagnostic]
}

// New constructs an empty demo database with every ingredient registered.
func New() *Database {
	d := &Database{db: engine.New(), diagnostic: accumulator.New[Diagnostic]()}
	reg := d.db.Registry()

	d.sourceText = input.New[string](reg)
	d.tree = trackedstruct.New[Fields](reg, hashFields, equalFields)

	d.parse = function.New(reg, d.doParse, func(a, b ids.Id) bool { return a == b }, revision.High)
	d.eval = function.New(reg, d.doEval, func(a, b int64) bool { return a == b }, revision.Low)
	d.tree.Subscribe(d.eval)

	return d
}

// SetSource sets the source text for document docID, bumping the revision.
// Must be called on the writer handle (i.e. not a snapshot).
func (d *Database) SetSource(docID int, text string) {
	d.db.NewRevision()
	d.sourceText.Set(d.db, ids.IdFromIndex(uint32(docID)), text, revision.Low)
}

// Eval returns the evaluated integer value of docID's parsed expression,
// recomputing or reusing cached work exactly as spec.md §4.7 describes.
func (d *Database) Eval(docID int) int64 {
	return d.eval.Fetch(d.db, docID)
}

// Diagnostics returns every diagnostic pushed while computing docID's
// value: Eval's own pushes first, then Parse's (the accumulator walk visits
// the root query before its dependencies).
func (d *Database) Diagnostics(docID int) []Diagnostic {
	return accumulator.Accumulated(d.db, d.diagnostic, d.eval, docID)
}

// Snapshot returns an independent reader handle sharing this database's
// state, per spec.md §4.10/§5.
func (d *Database) Snapshot() *Database {
	return &Database{
		db:         d.db.Snapshot(),
		sourceText: d.sourceText,
		tree:       d.tree,
		parse:      d.parse,
		eval:       d.eval,
		diagnostic: d.diagnostic,
	}
}

// Close releases a reader snapshot obtained from Snapshot.
func (d *Database) Close() { d.db.Close() }

// SetEventHook installs the observer invoked for every engine.Event.
func (d *Database) SetEventHook(h engine.EventHook) { d.db.SetEventHook(h) }

func (d *Database) doParse(db *engine.Database, docID int) ids.Id {
	d.diagnostic.Clear(db)
	text := d.sourceText.Get(db, ids.IdFromIndex(uint32(docID)))
	root, err := parseExpr(strings.TrimSpace(text))
	if err != nil {
		d.diagnostic.Push(db, Diagnostic{Message: fmt.Sprintf("parse error: %v", err)})
		return d.tree.New(db, Fields{Kind: Literal, Value: 0}, revision.Low)
	}
	return d.buildTree(db, root)
}

func (d *Database) buildTree(db *engine.Database, n *exprNode) ids.Id {
	switch n.op {
	case "":
		return d.tree.New(db, Fields{Kind: Literal, Value: n.value}, revision.Low)
	default:
		left := d.buildTree(db, n.left)
		right := d.buildTree(db, n.right)
		kind := map[string]NodeKind{"+": Add, "-": Sub, "*": Mul}[n.op]
		return d.tree.New(db, Fields{Kind: kind, Left: left, Right: right, HasL: true, HasR: true}, revision.Low)
	}
}

func (d *Database) doEval(db *engine.Database, docID int) int64 {
	d.diagnostic.Clear(db)
	root := d.parse.Fetch(db, docID)
	d.diagnostic.Push(db, Diagnostic{Message: fmt.Sprintf("evaluating document %d", docID)})
	return d.evalNode(db, root)
}

func (d *Database) evalNode(db *engine.Database, id ids.Id) int64 {
	f := d.tree.Field(db, id)
	switch f.Kind {
	case Literal:
		return f.Value
	case Add:
		return d.evalNode(db, f.Left) + d.evalNode(db, f.Right)
	case Sub:
		return d.evalNode(db, f.Left) - d.evalNode(db, f.Right)
	case Mul:
		return d.evalNode(db, f.Left) * d.evalNode(db, f.Right)
	default:
		return 0
	}
}

func hashFields(f Fields) uint64 {
	h := uint64(14695981039346656037)
	mix := func(v uint64) {
		h ^= v
		h *= 1099511628211
	}
	mix(uint64(f.Kind))
	mix(uint64(f.Value))
	mix(uint64(f.Left.Index()))
	mix(uint64(f.Right.Index()))
	return h
}

func equalFields(a, b Fields) bool {
	return a.Kind == b.Kind && a.Value == b.Value && a.Left == b.Left && a.Right == b.Right
}

// exprNode is an intermediate parse result, never stored — only its
// translation into Fields via buildTree is tracked.
type exprNode struct {
	op          string
	value       int64
	left, right *exprNode
}

// parseExpr parses a minimal left-associative +,-,* grammar over integer
// literals, e.g. "1 + 2 * 3". No parentheses, no precedence beyond
// left-to-right evaluation — enough to exercise Parse/Tree/Eval, not a
// general expression parser.
func parseExpr(text string) (*exprNode, error) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil, fmt.Errorf("empty expression")
	}
	n, err := parseLiteral(tokens[0])
	if err != nil {
		return nil, err
	}
	tokens = tokens[1:]
	for len(tokens) >= 2 {
		op := tokens[0]
		if op != "+" && op != "-" && op != "*" {
			return nil, fmt.Errorf("unexpected token %q", op)
		}
		rhs, err := parseLiteral(tokens[1])
		if err != nil {
			return nil, err
		}
		n = &exprNode{op: op, left: n, right: rhs}
		tokens = tokens[2:]
	}
	if len(tokens) != 0 {
		return nil, fmt.Errorf("trailing token %q", tokens[0])
	}
	return n, nil
}

func parseLiteral(tok string) (*exprNode, error) {
	v, err := strconv.ParseInt(tok, 10, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid literal %q: %w", tok, err)
	}
	return &exprNode{value: v}, nil
}
