package grammar

import (
	"fmt"

	verr "github.com/treelang/treelang/error"
	"github.com/treelang/treelang/spec"
)

type assocType string

const (
	assocTypeNil   = assocType("")
	assocTypeLeft  = assocType("left")
	assocTypeRight = assocType("right")
)

type precAndAssoc struct {
	prodPrec  map[productionNum]int
	prodAssoc map[productionNum]assocType
}

// productionPredence returns the precedence of a production. Productions
// without an annotation have precedence 0.
func (pa *precAndAssoc) productionPredence(prod productionNum) int {
	return pa.prodPrec[prod]
}

func (pa *precAndAssoc) productionAssociativity(prod productionNum) assocType {
	assoc, ok := pa.prodAssoc[prod]
	if !ok {
		return assocTypeNil
	}
	return assoc
}

type terminalKind string

const (
	terminalKindString  = terminalKind("string")
	terminalKindPattern = terminalKind("pattern")
)

type terminalPattern struct {
	kind  terminalKind
	value string
}

// Grammar is a context-free grammar in the normalized form the table
// generator works on. Every alternative of every rule has become a
// production over bit-packed symbols, and the precedence annotations have
// been pushed down onto the productions they enclose.
type Grammar struct {
	name                 string
	symbolTable          *symbolTable
	productionSet        *productionSet
	augmentedStartSymbol symbol
	startSymbol          symbol
	termPatterns         map[symbol]*terminalPattern
	extraTerms           []symbol
	conflictGroups       []map[symbol]struct{}
	precAndAssoc         *precAndAssoc
}

// GrammarBuilder normalizes a grammar description into a Grammar.
type GrammarBuilder struct {
	Desc *spec.Grammar

	errs verr.SpecErrors
}

func (b *GrammarBuilder) Build() (*Grammar, error) {
	if b.Desc.Name == "" {
		return nil, semErrNoGrammarName
	}
	if len(b.Desc.Rules) == 0 {
		return nil, semErrNoProduction
	}

	symTab := newSymbolTable()
	ruleSyms := map[string]symbol{}
	for _, rule := range b.Desc.Rules {
		if _, defined := ruleSyms[rule.Name]; defined {
			b.errs = append(b.errs, &verr.SpecError{
				Cause:  semErrDuplicateName,
				Detail: rule.Name,
			})
			continue
		}
		sym, err := symTab.registerNonTerminalSymbol(rule.Name)
		if err != nil {
			return nil, err
		}
		ruleSyms[rule.Name] = sym
	}
	if len(b.errs) > 0 {
		return nil, b.errs
	}

	startRule := b.Desc.Rules[0]
	augStartText := fmt.Sprintf("%v'", startRule.Name)
	augStartSym, err := symTab.registerStartSymbol(augStartText)
	if err != nil {
		return nil, err
	}

	prods := newProductionSet()
	pa := &precAndAssoc{
		prodPrec:  map[productionNum]int{},
		prodAssoc: map[productionNum]assocType{},
	}
	termPatterns := map[symbol]*terminalPattern{}

	startProd, err := newProduction(augStartSym, []symbol{ruleSyms[startRule.Name]})
	if err != nil {
		return nil, err
	}
	prods.append(startProd)

	for _, rule := range b.Desc.Rules {
		alts, err := b.flattenRule(rule.Rule)
		if err != nil {
			return nil, err
		}
		lhsSym := ruleSyms[rule.Name]
		for _, alt := range alts {
			rhs := make([]symbol, len(alt.elems))
			incomplete := false
			for i, elem := range alt.elems {
				sym, err := b.elementSymbol(elem, symTab, ruleSyms, termPatterns)
				if err != nil {
					specErr, ok := err.(*verr.SpecError)
					if !ok {
						return nil, err
					}
					b.errs = append(b.errs, specErr)
					incomplete = true
					continue
				}
				rhs[i] = sym
			}
			if incomplete {
				continue
			}
			prod, err := newProduction(lhsSym, rhs)
			if err != nil {
				return nil, err
			}
			if _, ok := prods.findByID(prod.id); ok {
				// A duplicate alternative collapses into one production and
				// keeps the first annotation.
				continue
			}
			prods.append(prod)
			if alt.annotated {
				pa.prodPrec[prod.num] = alt.prec
				switch alt.assoc {
				case spec.AssocLeft:
					pa.prodAssoc[prod.num] = assocTypeLeft
				case spec.AssocRight:
					pa.prodAssoc[prod.num] = assocTypeRight
				}
			}
		}
	}
	if len(b.errs) > 0 {
		return nil, b.errs
	}

	extraTerms, err := b.buildExtras(symTab, ruleSyms, prods, termPatterns)
	if err != nil {
		return nil, err
	}

	conflictGroups, err := b.buildConflicts(ruleSyms)
	if err != nil {
		return nil, err
	}

	return &Grammar{
		name:                 b.Desc.Name,
		symbolTable:          symTab,
		productionSet:        prods,
		augmentedStartSymbol: augStartSym,
		startSymbol:          ruleSyms[startRule.Name],
		termPatterns:         termPatterns,
		extraTerms:           extraTerms,
		conflictGroups:       conflictGroups,
		precAndAssoc:         pa,
	}, nil
}

type flatElement struct {
	// name is non-empty for a reference to another rule.
	name string

	// pattern is non-nil for a token element.
	pattern *terminalPattern
}

type flatAlternative struct {
	elems     []flatElement
	prec      int
	assoc     spec.Associativity
	annotated bool
}

// flattenRule rewrites a rule body into a set of alternatives each of which
// is a plain sequence of elements. Choices multiply out, sequences
// concatenate, and a precedence wrapper annotates every alternative it
// encloses that has no annotation yet. The innermost wrapper around an
// alternative wins.
func (b *GrammarBuilder) flattenRule(rule spec.Rule) ([]*flatAlternative, error) {
	switch r := rule.(type) {
	case *spec.BlankRule:
		return []*flatAlternative{{}}, nil
	case *spec.SymbolRule:
		return []*flatAlternative{
			{elems: []flatElement{{name: r.Name}}},
		}, nil
	case *spec.StringRule:
		if r.Value == "" {
			return nil, semErrEmptyString
		}
		return []*flatAlternative{
			{elems: []flatElement{{pattern: &terminalPattern{kind: terminalKindString, value: r.Value}}}},
		}, nil
	case *spec.PatternRule:
		if r.Value == "" {
			return nil, semErrEmptyPattern
		}
		return []*flatAlternative{
			{elems: []flatElement{{pattern: &terminalPattern{kind: terminalKindPattern, value: r.Value}}}},
		}, nil
	case *spec.ChoiceRule:
		var alts []*flatAlternative
		for _, member := range r.Members {
			memberAlts, err := b.flattenRule(member)
			if err != nil {
				return nil, err
			}
			alts = append(alts, memberAlts...)
		}
		return alts, nil
	case *spec.SeqRule:
		// A single-member sequence is transparent, so the member's own
		// annotations survive. A longer sequence yields fresh, unannotated
		// alternatives.
		if len(r.Members) == 1 {
			return b.flattenRule(r.Members[0])
		}
		alts := []*flatAlternative{{}}
		for _, member := range r.Members {
			memberAlts, err := b.flattenRule(member)
			if err != nil {
				return nil, err
			}
			var next []*flatAlternative
			for _, head := range alts {
				for _, tail := range memberAlts {
					elems := make([]flatElement, 0, len(head.elems)+len(tail.elems))
					elems = append(elems, head.elems...)
					elems = append(elems, tail.elems...)
					next = append(next, &flatAlternative{elems: elems})
				}
			}
			alts = next
		}
		return alts, nil
	case *spec.PrecRule:
		alts, err := b.flattenRule(r.Content)
		if err != nil {
			return nil, err
		}
		for _, alt := range alts {
			if alt.annotated {
				continue
			}
			alt.prec = r.Value
			alt.assoc = r.Assoc
			alt.annotated = true
		}
		return alts, nil
	default:
		return nil, fmt.Errorf("unknown rule type: %T", rule)
	}
}

func (b *GrammarBuilder) elementSymbol(elem flatElement, symTab *symbolTable, ruleSyms map[string]symbol, termPatterns map[symbol]*terminalPattern) (symbol, error) {
	if elem.name != "" {
		sym, ok := ruleSyms[elem.name]
		if !ok {
			return symbolNil, &verr.SpecError{
				Cause:  semErrUndefinedSym,
				Detail: elem.name,
			}
		}
		return sym, nil
	}
	return registerTerminal(symTab, termPatterns, elem.pattern)
}

func registerTerminal(symTab *symbolTable, termPatterns map[symbol]*terminalPattern, pat *terminalPattern) (symbol, error) {
	text := terminalText(pat)
	sym, err := symTab.registerTerminalSymbol(text)
	if err != nil {
		return symbolNil, err
	}
	if _, ok := termPatterns[sym]; !ok {
		termPatterns[sym] = pat
	}
	return sym, nil
}

// terminalText is the display form of a token: strings render quoted and
// patterns render between slashes. The same form appears in conflict
// messages and reports.
func terminalText(pat *terminalPattern) string {
	if pat.kind == terminalKindString {
		return fmt.Sprintf("'%v'", pat.value)
	}
	return fmt.Sprintf("/%v/", pat.value)
}

func (b *GrammarBuilder) buildExtras(symTab *symbolTable, ruleSyms map[string]symbol, prods *productionSet, termPatterns map[symbol]*terminalPattern) ([]symbol, error) {
	var extras []symbol
	for _, extra := range b.Desc.Extras {
		switch r := extra.(type) {
		case *spec.StringRule:
			if r.Value == "" {
				return nil, semErrEmptyString
			}
			sym, err := registerTerminal(symTab, termPatterns, &terminalPattern{kind: terminalKindString, value: r.Value})
			if err != nil {
				return nil, err
			}
			extras = append(extras, sym)
		case *spec.PatternRule:
			if r.Value == "" {
				return nil, semErrEmptyPattern
			}
			sym, err := registerTerminal(symTab, termPatterns, &terminalPattern{kind: terminalKindPattern, value: r.Value})
			if err != nil {
				return nil, err
			}
			extras = append(extras, sym)
		case *spec.SymbolRule:
			ruleSym, ok := ruleSyms[r.Name]
			if !ok {
				return nil, &verr.SpecError{
					Cause:  semErrUndefinedSym,
					Detail: r.Name,
				}
			}
			term, ok := singleTerminalOf(ruleSym, prods)
			if !ok {
				return nil, &verr.SpecError{
					Cause:  semErrInvalidExtra,
					Detail: r.Name,
				}
			}
			extras = append(extras, term)
		default:
			return nil, semErrInvalidExtra
		}
	}
	return extras, nil
}

// singleTerminalOf reports whether a rule denotes exactly one token, which
// is the shape an extra referenced by name must have.
func singleTerminalOf(ruleSym symbol, prods *productionSet) (symbol, bool) {
	ruleProds, ok := prods.findByLHS(ruleSym)
	if !ok || len(ruleProds) != 1 {
		return symbolNil, false
	}
	prod := ruleProds[0]
	if prod.rhsLen != 1 || !prod.rhs[0].isTerminal() {
		return symbolNil, false
	}
	return prod.rhs[0], true
}

func (b *GrammarBuilder) buildConflicts(ruleSyms map[string]symbol) ([]map[symbol]struct{}, error) {
	var groups []map[symbol]struct{}
	for _, names := range b.Desc.Conflicts {
		group := map[symbol]struct{}{}
		for _, name := range names {
			sym, ok := ruleSyms[name]
			if !ok {
				return nil, &verr.SpecError{
					Cause:  semErrInvalidConflict,
					Detail: name,
				}
			}
			group[sym] = struct{}{}
		}
		groups = append(groups, group)
	}
	return groups, nil
}
