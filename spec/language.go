package spec

import (
	"fmt"

	mlspec "github.com/nihei9/maleeni/spec"
)

// CompiledLanguage is the language descriptor consumable by a parsing engine.
// It is immutable once built and safe for unsynchronized concurrent reads.
type CompiledLanguage struct {
	Name                 string                `json:"name"`
	LexicalSpecification *LexicalSpecification `json:"lexical_specification"`
	ParseTable           *ParseTable           `json:"parse_table"`
}

type LexicalSpecification struct {
	Lexer   string   `json:"lexer"`
	Maleeni *Maleeni `json:"maleeni"`
}

type Maleeni struct {
	Spec *mlspec.CompiledLexSpec `json:"spec"`

	// KindToTerminal maps a lexical kind ID to a terminal symbol number,
	// and TerminalToKind the other way around.
	KindToTerminal []int `json:"kind_to_terminal"`
	TerminalToKind []int `json:"terminal_to_kind"`
}

// ConflictAction lists every admissible action for a cell whose ambiguity
// the grammar author approved via a declared conflict group. The first
// entry always equals the cell's primary action.
type ConflictAction struct {
	State    int   `json:"state"`
	Terminal int   `json:"terminal"`
	Actions  []int `json:"actions"`
}

// ParseTable is the parse table in its portable form. An action entry is
// interpreted the way the grammar package encodes it: a negative value is a
// shift to state -v, a positive value is a reduce by production v, and 0
// means no action.
type ParseTable struct {
	Action           []int               `json:"action,omitempty"`
	CompressedAction *UniqueEntriesTable `json:"compressed_action,omitempty"`
	GoTo             []int               `json:"goto,omitempty"`
	CompressedGoTo   *UniqueEntriesTable `json:"compressed_goto,omitempty"`

	ConflictActions []*ConflictAction `json:"conflict_actions,omitempty"`

	StateCount      int `json:"state_count"`
	InitialState    int `json:"initial_state"`
	StartProduction int `json:"start_production"`

	LHSSymbols              []int `json:"lhs_symbols"`
	AlternativeSymbolCounts []int `json:"alternative_symbol_counts"`

	Terminals        []string `json:"terminals"`
	TerminalCount    int      `json:"terminal_count"`
	NonTerminals     []string `json:"non_terminals"`
	NonTerminalCount int      `json:"non_terminal_count"`
	EOFSymbol        int      `json:"eof_symbol"`

	// ExtraSymbols lists the terminals that may appear anywhere between
	// tokens. A parser consumes them in place; they never take part in a
	// reduction.
	ExtraSymbols []int `json:"extra_symbols,omitempty"`
}

// LookupAction returns the action entry for a state and a terminal,
// transparently reading through the compressed representation when the
// descriptor was emitted with table compression enabled.
func (t *ParseTable) LookupAction(state int, terminal int) (int, error) {
	if t.CompressedAction != nil {
		return t.CompressedAction.Lookup(state, terminal)
	}
	pos := state*t.TerminalCount + terminal
	if pos < 0 || pos >= len(t.Action) {
		return 0, fmt.Errorf("action table indexes are out of range: state: %v, terminal: %v", state, terminal)
	}
	return t.Action[pos], nil
}

// LookupGoTo returns the goto entry for a state and a non-terminal.
// An entry of 0 means no transition.
func (t *ParseTable) LookupGoTo(state int, nonTerminal int) (int, error) {
	if t.CompressedGoTo != nil {
		return t.CompressedGoTo.Lookup(state, nonTerminal)
	}
	pos := state*t.NonTerminalCount + nonTerminal
	if pos < 0 || pos >= len(t.GoTo) {
		return 0, fmt.Errorf("goto table indexes are out of range: state: %v, non-terminal: %v", state, nonTerminal)
	}
	return t.GoTo[pos], nil
}

// LookupConflictActions returns every admissible action for a cell, or nil
// when the cell is deterministic.
func (t *ParseTable) LookupConflictActions(state int, terminal int) []int {
	for _, c := range t.ConflictActions {
		if c.State == state && c.Terminal == terminal {
			return c.Actions
		}
	}
	return nil
}

// UniqueEntriesTable and RowDisplacementTable mirror the compressor
// package's representations so a compressed table can round-trip through
// JSON and still be queried without decompressing it first.
type UniqueEntriesTable struct {
	UniqueEntries    *RowDisplacementTable `json:"unique_entries,omitempty"`
	RawUniqueEntries []int                 `json:"raw_unique_entries,omitempty"`
	RowNums          []int                 `json:"row_nums"`
	OriginalRowCount int                   `json:"original_row_count"`
	OriginalColCount int                   `json:"original_col_count"`
}

func (t *UniqueEntriesTable) Lookup(row int, col int) (int, error) {
	if row < 0 || row >= t.OriginalRowCount || col < 0 || col >= t.OriginalColCount {
		return 0, fmt.Errorf("indexes are out of range: [%v, %v]", row, col)
	}
	if t.UniqueEntries != nil {
		return t.UniqueEntries.Lookup(t.RowNums[row], col)
	}
	return t.RawUniqueEntries[t.RowNums[row]*t.OriginalColCount+col], nil
}

type RowDisplacementTable struct {
	OriginalRowCount int   `json:"original_row_count"`
	OriginalColCount int   `json:"original_col_count"`
	EmptyValue       int   `json:"empty_value"`
	Entries          []int `json:"entries"`
	Bounds           []int `json:"bounds"`
	RowDisplacement  []int `json:"row_displacement"`
}

func (t *RowDisplacementTable) Lookup(row int, col int) (int, error) {
	if row < 0 || row >= t.OriginalRowCount || col < 0 || col >= t.OriginalColCount {
		return t.EmptyValue, fmt.Errorf("indexes are out of range: [%v, %v]", row, col)
	}
	d := t.RowDisplacement[row]
	if t.Bounds[d+col] != row {
		return t.EmptyValue, nil
	}
	return t.Entries[d+col], nil
}
