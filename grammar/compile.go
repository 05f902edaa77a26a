package grammar

import (
	"fmt"
	"sort"
	"strings"

	mlcompiler "github.com/nihei9/maleeni/compiler"
	mlspec "github.com/nihei9/maleeni/spec"
	"github.com/treelang/treelang/compressor"
	"github.com/treelang/treelang/spec"
)

type compileConfig struct {
	isReportingEnabled   bool
	isCompressionEnabled bool
}

type CompileOption func(config *compileConfig)

// EnableReporting makes Compile return a Report describing the terminals,
// the productions, and every state of the generated automaton.
func EnableReporting() CompileOption {
	return func(config *compileConfig) {
		config.isReportingEnabled = true
	}
}

// EnableTableCompression makes Compile emit the action and goto tables in
// their compressed representation.
func EnableTableCompression() CompileOption {
	return func(config *compileConfig) {
		config.isCompressionEnabled = true
	}
}

// Compile turns a normalized grammar into a language descriptor. It returns
// either a descriptor or exactly one error; an unresolved ambiguity comes
// back as a *ConflictError.
func Compile(gram *Grammar, opts ...CompileOption) (*spec.CompiledLanguage, *spec.Report, error) {
	config := &compileConfig{}
	for _, opt := range opts {
		opt(config)
	}

	lexSpec, kindName2Sym := genLexSpec(gram)

	var mlSpec *mlspec.CompiledLexSpec
	kind2Term := []int{}
	term2Kind := make([]int, gram.symbolTable.termNum.Int())
	if len(lexSpec.Entries) > 0 {
		compiled, err, cErrs := mlcompiler.Compile(lexSpec, mlcompiler.CompressionLevel(mlcompiler.CompressionLevelMax))
		if err != nil {
			if len(cErrs) > 0 {
				var b strings.Builder
				writeLexCompileError(&b, cErrs[0])
				for _, cerr := range cErrs[1:] {
					fmt.Fprintf(&b, "\n")
					writeLexCompileError(&b, cerr)
				}
				return nil, nil, fmt.Errorf(b.String())
			}
			return nil, nil, err
		}
		mlSpec = compiled

		kind2Term = make([]int, len(compiled.KindNames))
		for i, k := range compiled.KindNames {
			if k == mlspec.LexKindNameNil {
				kind2Term[mlspec.LexKindIDNil] = symbolNil.num().Int()
				term2Kind[symbolNil.num()] = mlspec.LexKindIDNil.Int()
				continue
			}

			sym, ok := kindName2Sym[k.String()]
			if !ok {
				return nil, nil, fmt.Errorf("terminal symbol '%v' was not found in a symbol table", k)
			}
			kind2Term[i] = sym.num().Int()
			term2Kind[sym.num()] = i
		}
	}

	terms := gram.symbolTable.terminalTexts()
	nonTerms, err := gram.symbolTable.nonTerminalTexts()
	if err != nil {
		return nil, nil, err
	}

	firstSet, err := genFirstSet(gram.productionSet)
	if err != nil {
		return nil, nil, err
	}

	lr0, err := genLR0Automaton(gram.productionSet, gram.augmentedStartSymbol)
	if err != nil {
		return nil, nil, err
	}

	var tab *ParsingTable
	var report *spec.Report
	{
		lalr1, err := genLALR1Automaton(lr0, gram.productionSet, firstSet)
		if err != nil {
			return nil, nil, err
		}

		b := &lrTableBuilder{
			automaton:      lalr1.lr0Automaton,
			prods:          gram.productionSet,
			termCount:      len(terms),
			nonTermCount:   len(nonTerms),
			symTab:         gram.symbolTable,
			precAndAssoc:   gram.precAndAssoc,
			first:          firstSet,
			conflictGroups: gram.conflictGroups,
			extraTerms:     gram.extraTerms,
		}
		tab, err = b.build()
		if err != nil {
			return nil, nil, err
		}

		if config.isReportingEnabled {
			report, err = b.genReport(tab, gram)
			if err != nil {
				return nil, nil, err
			}
		}
	}

	action := make([]int, len(tab.actionTable))
	for i, e := range tab.actionTable {
		action[i] = int(e)
	}
	goTo := make([]int, len(tab.goToTable))
	for i, e := range tab.goToTable {
		goTo[i] = int(e)
	}

	var conflictActions []*spec.ConflictAction
	{
		positions := make([]int, 0, len(tab.conflictActions))
		for pos := range tab.conflictActions {
			positions = append(positions, pos)
		}
		sort.Ints(positions)
		for _, pos := range positions {
			entries := tab.conflictActions[pos]
			actions := make([]int, len(entries))
			for i, e := range entries {
				actions[i] = int(e)
			}
			conflictActions = append(conflictActions, &spec.ConflictAction{
				State:    pos / tab.terminalCount,
				Terminal: pos % tab.terminalCount,
				Actions:  actions,
			})
		}
	}

	lhsSyms := make([]int, len(gram.productionSet.getAllProductions())+1)
	altSymCounts := make([]int, len(gram.productionSet.getAllProductions())+1)
	for _, p := range gram.productionSet.getAllProductions() {
		lhsSyms[p.num] = p.lhs.num().Int()
		altSymCounts[p.num] = p.rhsLen
	}

	extras := make([]int, len(gram.extraTerms))
	for i, sym := range gram.extraTerms {
		extras[i] = sym.num().Int()
	}

	ptab := &spec.ParseTable{
		ConflictActions:         conflictActions,
		StateCount:              tab.stateCount,
		InitialState:            tab.InitialState.Int(),
		StartProduction:         productionNumStart.Int(),
		LHSSymbols:              lhsSyms,
		AlternativeSymbolCounts: altSymCounts,
		Terminals:               terms,
		TerminalCount:           tab.terminalCount,
		NonTerminals:            nonTerms,
		NonTerminalCount:        tab.nonTerminalCount,
		EOFSymbol:               symbolEOF.num().Int(),
		ExtraSymbols:            extras,
	}
	if config.isCompressionEnabled {
		compAction, err := compressTable(action, tab.terminalCount)
		if err != nil {
			return nil, nil, err
		}
		compGoTo, err := compressTable(goTo, tab.nonTerminalCount)
		if err != nil {
			return nil, nil, err
		}
		ptab.CompressedAction = compAction
		ptab.CompressedGoTo = compGoTo
	} else {
		ptab.Action = action
		ptab.GoTo = goTo
	}

	return &spec.CompiledLanguage{
		Name: gram.name,
		LexicalSpecification: &spec.LexicalSpecification{
			Lexer: "maleeni",
			Maleeni: &spec.Maleeni{
				Spec:           mlSpec,
				KindToTerminal: kind2Term,
				TerminalToKind: term2Kind,
			},
		},
		ParseTable: ptab,
	}, report, nil
}

// genLexSpec derives a lexical specification from the registered terminals.
// Literal strings are escaped so they match verbatim. Lexical kinds get
// anonymous names because terminals have no user-facing names of their own;
// the returned map ties the kind names back to their symbols.
func genLexSpec(gram *Grammar) (*mlspec.LexSpec, map[string]symbol) {
	entries := []*mlspec.LexEntry{}
	kindName2Sym := map[string]symbol{}
	for _, sym := range gram.symbolTable.terminalSymbols() {
		if sym.isEOF() {
			continue
		}
		pat, ok := gram.termPatterns[sym]
		if !ok {
			continue
		}

		pattern := pat.value
		if pat.kind == terminalKindString {
			pattern = mlspec.EscapePattern(pat.value)
		}

		kind := fmt.Sprintf("x_%v", sym.num().Int())
		kindName2Sym[kind] = sym
		entries = append(entries, &mlspec.LexEntry{
			Kind:    mlspec.LexKindName(kind),
			Pattern: mlspec.LexPattern(pattern),
		})
	}
	return &mlspec.LexSpec{
		Name:    gram.name,
		Entries: entries,
	}, kindName2Sym
}

// compressTable applies unique-entries deduplication and then row
// displacement, which is the same stacking the lexer's transition tables
// get.
func compressTable(entries []int, colCount int) (*spec.UniqueEntriesTable, error) {
	orig, err := compressor.NewOriginalTable(entries, colCount)
	if err != nil {
		return nil, err
	}
	uniq := compressor.NewUniqueEntriesTable()
	if err := uniq.Compress(orig); err != nil {
		return nil, err
	}

	uniqOrig, err := compressor.NewOriginalTable(uniq.UniqueEntries, uniq.OriginalColCount)
	if err != nil {
		return nil, err
	}
	rd := compressor.NewRowDisplacementTable(0)
	if err := rd.Compress(uniqOrig); err != nil {
		return nil, err
	}

	return &spec.UniqueEntriesTable{
		UniqueEntries: &spec.RowDisplacementTable{
			OriginalRowCount: rd.OriginalRowCount,
			OriginalColCount: rd.OriginalColCount,
			EmptyValue:       rd.EmptyValue,
			Entries:          rd.Entries,
			Bounds:           rd.Bounds,
			RowDisplacement:  rd.RowDisplacement,
		},
		RowNums:          uniq.RowNums,
		OriginalRowCount: uniq.OriginalRowCount,
		OriginalColCount: uniq.OriginalColCount,
	}, nil
}

func writeLexCompileError(b *strings.Builder, cErr *mlcompiler.CompileError) {
	fmt.Fprintf(b, "%v: %v", cErr.Kind, cErr.Cause)
	if cErr.Detail != "" {
		fmt.Fprintf(b, ": %v", cErr.Detail)
	}
}
