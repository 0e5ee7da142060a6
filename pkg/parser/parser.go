package parser

import (
	"context"
	"errors"
	"fmt"

	sitter "github.com/smacker/go-tree-sitter"
	"github.com/smacker/go-tree-sitter/python"
)

// ErrParse is returned when source text cannot be turned into a usable tree.
var ErrParse = errors.New("parse failure")

// Node is the read-only view of a syntax node the analyzers depend on.
type Node interface {
	// Kind returns the grammar type of the node, e.g. "function_definition".
	Kind() string
	// ChildCount returns the number of children, named and anonymous.
	ChildCount() int
	// Child returns the i-th child, or nil when out of range.
	Child(i int) Node
	StartByte() uint32
	EndByte() uint32
	// StartLine and EndLine are 1-based.
	StartLine() uint32
	EndLine() uint32
}

// Tree is a parsed source unit.
type Tree interface {
	Root() Node
	Source() []byte
	// Text returns the source slice covered by node.
	Text(node Node) string
	Close()
}

// Parser wraps tree-sitter for Python parsing.
// A Parser is not safe for concurrent use; create one per goroutine.
type Parser struct {
	parser *sitter.Parser
	strict bool
}

// Option configures a Parser.
type Option func(*Parser)

// WithRejectSyntaxErrors makes Parse fail when the tree contains ERROR nodes.
// By default tree-sitter recovers from syntax errors and the partial tree is used.
func WithRejectSyntaxErrors(reject bool) Option {
	return func(p *Parser) {
		p.strict = reject
	}
}

// ParseResult contains the parsed AST and metadata.
type ParseResult struct {
	Tree    *sitter.Tree
	Content []byte
	Path    string
}

// New creates a new parser instance.
func New(opts ...Option) *Parser {
	p := &Parser{
		parser: sitter.NewParser(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.parser.SetLanguage(python.GetLanguage())
	return p
}

// Parse parses Python source. path is informational and may be empty.
func (p *Parser) Parse(ctx context.Context, source []byte, path string) (*ParseResult, error) {
	tree, err := p.parser.ParseCtx(ctx, nil, source)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrParse, displayPath(path), err)
	}
	if tree == nil {
		return nil, fmt.Errorf("%w: %s: no tree produced", ErrParse, displayPath(path))
	}

	if p.strict {
		if root := tree.RootNode(); root != nil && root.HasError() {
			line := firstErrorLine(root)
			tree.Close()
			return nil, fmt.Errorf("%w: %s: syntax error near line %d", ErrParse, displayPath(path), line)
		}
	}

	return &ParseResult{
		Tree:    tree,
		Content: source,
		Path:    path,
	}, nil
}

// Close releases parser resources.
func (p *Parser) Close() {
	p.parser.Close()
}

// Root implements Tree.
func (r *ParseResult) Root() Node {
	return wrap(r.Tree.RootNode())
}

// Source implements Tree.
func (r *ParseResult) Source() []byte {
	return r.Content
}

// Text implements Tree.
func (r *ParseResult) Text(node Node) string {
	return GetNodeText(node, r.Content)
}

// Close releases the underlying tree-sitter tree.
func (r *ParseResult) Close() {
	if r.Tree != nil {
		r.Tree.Close()
	}
}

// sitterNode adapts *sitter.Node to Node.
type sitterNode struct {
	n *sitter.Node
}

func wrap(n *sitter.Node) Node {
	if n == nil {
		return nil
	}
	return sitterNode{n: n}
}

func (s sitterNode) Kind() string      { return s.n.Type() }
func (s sitterNode) ChildCount() int   { return int(s.n.ChildCount()) }
func (s sitterNode) StartByte() uint32 { return s.n.StartByte() }
func (s sitterNode) EndByte() uint32   { return s.n.EndByte() }
func (s sitterNode) StartLine() uint32 { return s.n.StartPoint().Row + 1 }
func (s sitterNode) EndLine() uint32   { return s.n.EndPoint().Row + 1 }

func (s sitterNode) Child(i int) Node {
	if i < 0 || i >= int(s.n.ChildCount()) {
		return nil
	}
	return wrap(s.n.Child(i))
}

// NodeVisitor is a function that visits AST nodes. Returning false skips the
// node's children.
type NodeVisitor func(node Node) bool

// Walk traverses the tree in pre-order calling visitor for each node.
// It uses an explicit stack so deeply nested input cannot exhaust the goroutine stack.
func Walk(root Node, visitor NodeVisitor) {
	if root == nil {
		return
	}
	stack := []Node{root}
	for len(stack) > 0 {
		node := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if !visitor(node) {
			continue
		}
		// Push in reverse so children pop in source order.
		for i := node.ChildCount() - 1; i >= 0; i-- {
			if child := node.Child(i); child != nil {
				stack = append(stack, child)
			}
		}
	}
}

// GetNodeText extracts the source text for a node.
// Returns empty string if node is nil or byte offsets are out of bounds.
func GetNodeText(node Node, source []byte) string {
	if node == nil {
		return ""
	}
	start := node.StartByte()
	end := node.EndByte()
	if start > end || end > uint32(len(source)) {
		return ""
	}
	return string(source[start:end])
}

func firstErrorLine(root *sitter.Node) uint32 {
	var line uint32
	Walk(wrap(root), func(n Node) bool {
		if line != 0 {
			return false
		}
		if n.Kind() == "ERROR" {
			line = n.StartLine()
			return false
		}
		return true
	})
	if line == 0 {
		line = 1
	}
	return line
}

func displayPath(path string) string {
	if path == "" {
		return "<source>"
	}
	return path
}
