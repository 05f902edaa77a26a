package spec

// Associativity represents the associativity of a precedence-annotated rule.
type Associativity string

const (
	AssocNone  = Associativity("")
	AssocLeft  = Associativity("left")
	AssocRight = Associativity("right")
)

// Rule is a node of a grammar rule tree. The set of variants is closed:
// BlankRule, SymbolRule, StringRule, PatternRule, ChoiceRule, SeqRule, and
// PrecRule. Every consumer must handle all of them exhaustively.
type Rule interface {
	ruleNode()
}

// BlankRule matches the empty string.
type BlankRule struct {
}

// SymbolRule refers to another named rule.
type SymbolRule struct {
	Name string
}

// StringRule matches a literal string exactly.
type StringRule struct {
	Value string
}

// PatternRule matches a regular expression.
type PatternRule struct {
	Value string
}

// ChoiceRule matches any one of its members.
type ChoiceRule struct {
	Members []Rule
}

// SeqRule matches all of its members in order.
type SeqRule struct {
	Members []Rule
}

// PrecRule annotates its content with a precedence value and, optionally,
// an associativity. The annotation is consulted when the compiler resolves
// conflicts between competing productions; it never changes what the
// content matches.
type PrecRule struct {
	Assoc   Associativity
	Value   int
	Content Rule
}

func (r *BlankRule) ruleNode()   {}
func (r *SymbolRule) ruleNode()  {}
func (r *StringRule) ruleNode()  {}
func (r *PatternRule) ruleNode() {}
func (r *ChoiceRule) ruleNode()  {}
func (r *SeqRule) ruleNode()     {}
func (r *PrecRule) ruleNode()    {}

var (
	_ Rule = &BlankRule{}
	_ Rule = &SymbolRule{}
	_ Rule = &StringRule{}
	_ Rule = &PatternRule{}
	_ Rule = &ChoiceRule{}
	_ Rule = &SeqRule{}
	_ Rule = &PrecRule{}
)

// NamedRule is one rule declaration. The declaration order of named rules is
// significant: the first declared rule is the start rule, and symbol and
// state numbering follow declaration order.
type NamedRule struct {
	Name string
	Rule Rule
}

// Grammar is a parsed grammar description.
type Grammar struct {
	Name string

	// Rules holds the named rules in declaration order.
	Rules []*NamedRule

	// Extras are rules allowed to appear anywhere between tokens, like
	// whitespace and comments. Each extra must denote a single token.
	Extras []Rule

	// Conflicts holds the declared conflict groups. Each group is a set of
	// rule names the grammar author has pre-approved as ambiguous.
	Conflicts [][]string
}
