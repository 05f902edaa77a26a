package driver

import (
	"fmt"
	"io"
	"strings"

	mldriver "github.com/nihei9/maleeni/driver"
	"github.com/treelang/treelang/spec"
)

// Node is a concrete syntax tree node. A node with a non-empty Text is a
// token; everything else is a rule node.
type Node struct {
	KindName string
	Text     string
	Row      int
	Col      int
	Children []*Node
}

// String renders the tree in its parenthesized form, like
// (expression (sum (expression (variable)) (expression (variable)))).
// Token nodes are omitted, so a rule that matched only tokens renders as
// (rule-name).
func (n *Node) String() string {
	var b strings.Builder
	n.writeTo(&b)
	return b.String()
}

func (n *Node) writeTo(b *strings.Builder) {
	fmt.Fprintf(b, "(%v", n.KindName)
	for _, c := range n.Children {
		if c == nil || c.Text != "" {
			continue
		}
		b.WriteString(" ")
		c.writeTo(b)
	}
	b.WriteString(")")
}

func PrintTree(w io.Writer, node *Node) {
	printTree(w, node, "", "")
}

func printTree(w io.Writer, node *Node, ruledLine string, childRuledLinePrefix string) {
	if node == nil {
		return
	}

	if node.Text != "" {
		fmt.Fprintf(w, "%v%v %#v\n", ruledLine, node.KindName, node.Text)
	} else {
		fmt.Fprintf(w, "%v%v\n", ruledLine, node.KindName)
	}

	num := len(node.Children)
	for i, child := range node.Children {
		var line string
		if num > 1 && i < num-1 {
			line = "├─ "
		} else {
			line = "└─ "
		}

		var prefix string
		if i >= num-1 {
			prefix = "   "
		} else {
			prefix = "│  "
		}

		printTree(w, child, childRuledLinePrefix+line, childRuledLinePrefix+prefix)
	}
}

type SyntaxError struct {
	Row               int
	Col               int
	Message           string
	Token             *mldriver.Token
	ExpectedTerminals []string
}

type ParserOption func(p *Parser) error

// DisableTree makes the parser check the syntax only, without building a
// tree.
func DisableTree() ParserOption {
	return func(p *Parser) error {
		p.makeTree = false
		return nil
	}
}

type Parser struct {
	lang       *spec.CompiledLanguage
	lex        *mldriver.Lexer
	residue    []byte
	stateStack []int
	semStack   []*Node
	tree       *Node
	makeTree   bool
	synErrs    []*SyntaxError
}

func NewParser(lang *spec.CompiledLanguage, src io.Reader, opts ...ParserOption) (*Parser, error) {
	p := &Parser{
		lang:       lang,
		stateStack: []int{},
		makeTree:   true,
	}

	for _, opt := range opts {
		err := opt(p)
		if err != nil {
			return nil, err
		}
	}

	err := p.Reset(src)
	if err != nil {
		return nil, err
	}

	return p, nil
}

// Reset replaces the input and discards every parse result, so the same
// parser can run again over a new source.
func (p *Parser) Reset(src io.Reader) error {
	// A language whose rules contain no tokens at all has no lexical
	// specification; the only valid input is then the empty one, so the
	// source is read up front and anything in it becomes an invalid token.
	if p.lang.LexicalSpecification.Maleeni.Spec != nil {
		lex, err := mldriver.NewLexer(mldriver.NewLexSpec(p.lang.LexicalSpecification.Maleeni.Spec), src)
		if err != nil {
			return err
		}
		p.lex = lex
		p.residue = nil
	} else {
		p.lex = nil
		residue, err := io.ReadAll(src)
		if err != nil {
			return err
		}
		p.residue = residue
	}

	p.stateStack = p.stateStack[:0]
	p.semStack = p.semStack[:0]
	p.tree = nil
	p.synErrs = nil

	return nil
}

func (p *Parser) Parse() error {
	tab := p.lang.ParseTable
	p.push(tab.InitialState)
	tok, err := p.nextToken()
	if err != nil {
		return err
	}

	for {
		term := p.tokenToTerminal(tok)
		act, err := tab.LookupAction(p.top(), term)
		if err != nil {
			return err
		}

		switch {
		case act < 0: // Shift
			nextState := act * -1

			// A shift back into the current state marks an extra
			// terminal: the token is consumed in place.
			if nextState == p.top() && p.isExtra(term) {
				tok, err = p.nextToken()
				if err != nil {
					return err
				}
				continue
			}

			p.shift(nextState)
			p.actOnShift(term, tok)

			tok, err = p.nextToken()
			if err != nil {
				return err
			}
		case act > 0: // Reduce
			prodNum := act

			accepted := p.reduce(prodNum)
			if accepted {
				p.actOnAccepting()

				return nil
			}

			p.actOnReduction(prodNum)
		default: // Error
			p.synErrs = append(p.synErrs, &SyntaxError{
				Row:               tok.Row,
				Col:               tok.Col,
				Message:           "unexpected token",
				Token:             tok,
				ExpectedTerminals: p.searchLookahead(p.top()),
			})

			return nil
		}
	}
}

func (p *Parser) nextToken() (*mldriver.Token, error) {
	if p.lex == nil {
		if len(p.residue) > 0 {
			tok := &mldriver.Token{
				Invalid: true,
				Lexeme:  p.residue,
			}
			p.residue = nil
			return tok, nil
		}
		return &mldriver.Token{
			EOF: true,
		}, nil
	}

	// An invalid token's kind ID is 0, and the action table has no entry for
	// the kind ID 0, so invalid input surfaces as an ordinary syntax error.
	return p.lex.Next()
}

func (p *Parser) tokenToTerminal(tok *mldriver.Token) int {
	if tok.EOF {
		return p.lang.ParseTable.EOFSymbol
	}

	// An invalid token maps to terminal 0 no matter where it came from; a
	// lexer-less language has an empty kind mapping.
	if tok.Invalid {
		return 0
	}

	return p.lang.LexicalSpecification.Maleeni.KindToTerminal[tok.KindID]
}

func (p *Parser) isExtra(term int) bool {
	for _, e := range p.lang.ParseTable.ExtraSymbols {
		if e == term {
			return true
		}
	}
	return false
}

func (p *Parser) shift(nextState int) {
	p.push(nextState)
}

func (p *Parser) reduce(prodNum int) bool {
	tab := p.lang.ParseTable
	lhs := tab.LHSSymbols[prodNum]
	if lhs == tab.LHSSymbols[tab.StartProduction] {
		return true
	}
	n := tab.AlternativeSymbolCounts[prodNum]
	p.pop(n)
	nextState, _ := tab.LookupGoTo(p.top(), lhs)
	p.push(nextState)
	return false
}

func (p *Parser) actOnShift(term int, tok *mldriver.Token) {
	if !p.makeTree {
		return
	}

	p.semStack = append(p.semStack, &Node{
		KindName: p.lang.ParseTable.Terminals[term],
		Text:     string(tok.Lexeme),
		Row:      tok.Row,
		Col:      tok.Col,
	})
}

func (p *Parser) actOnReduction(prodNum int) {
	if !p.makeTree {
		return
	}

	tab := p.lang.ParseTable
	lhs := tab.LHSSymbols[prodNum]

	// When an alternative is empty, `n` is 0 and `handle` is an empty slice.
	n := tab.AlternativeSymbolCounts[prodNum]
	handle := p.semStack[len(p.semStack)-n:]

	children := make([]*Node, len(handle))
	copy(children, handle)

	p.semStack = p.semStack[:len(p.semStack)-n]
	p.semStack = append(p.semStack, &Node{
		KindName: tab.NonTerminals[lhs],
		Children: children,
	})
}

func (p *Parser) actOnAccepting() {
	if !p.makeTree {
		return
	}

	p.tree = p.semStack[len(p.semStack)-1]
}

func (p *Parser) top() int {
	return p.stateStack[len(p.stateStack)-1]
}

func (p *Parser) push(state int) {
	p.stateStack = append(p.stateStack, state)
}

func (p *Parser) pop(n int) {
	p.stateStack = p.stateStack[:len(p.stateStack)-n]
}

// Tree returns the concrete syntax tree of the last Parse. Its root is the
// grammar's first rule. The tree is nil when parsing failed or when the
// parser was built with DisableTree.
func (p *Parser) Tree() *Node {
	return p.tree
}

func (p *Parser) SyntaxErrors() []*SyntaxError {
	return p.synErrs
}

func (p *Parser) searchLookahead(state int) []string {
	kinds := []string{}
	tab := p.lang.ParseTable
	for term := 0; term < tab.TerminalCount; term++ {
		act, err := tab.LookupAction(state, term)
		if err != nil || act == 0 {
			continue
		}

		// Extras are acceptable anywhere, so they say nothing useful about
		// what the parser expected.
		if p.isExtra(term) {
			continue
		}

		kinds = append(kinds, tab.Terminals[term])
	}

	return kinds
}
