package grammar

import (
	"fmt"
	"sort"
	"strings"

	"github.com/emirpasic/gods/sets/linkedhashset"
)

// ConflictError is an ambiguity the resolution policy could not settle and
// that no declared conflict group covers. The fields hold the parts of the
// diagnostic; Error renders them in the canonical layout, so callers can
// surface the text verbatim.
type ConflictError struct {
	// SymbolSequence is the shortest symbol path from the initial state to
	// the conflicting state.
	SymbolSequence []string

	// LookAhead is the terminal on which the actions collide.
	LookAhead string

	Interpretations []string
	Resolutions     []string
}

func (e *ConflictError) Error() string {
	var b strings.Builder

	b.WriteString("Unresolved conflict for symbol sequence:\n\n")
	seq := make([]string, 0, len(e.SymbolSequence)+3)
	seq = append(seq, e.SymbolSequence...)
	seq = append(seq, "•", e.LookAhead, "…")
	fmt.Fprintf(&b, "  %v\n\n", strings.Join(seq, "  "))

	b.WriteString("Possible interpretations:")
	for _, interp := range e.Interpretations {
		fmt.Fprintf(&b, "\n\n  %v", interp)
	}

	b.WriteString("\n\nPossible resolutions:")
	for _, res := range e.Resolutions {
		fmt.Fprintf(&b, "\n\n  %v", res)
	}

	return b.String()
}

// conflictParticipant is a kernel item taking part in a conflicted cell,
// together with its production.
type conflictParticipant struct {
	item *lrItem
	prod *production
}

// settleConflict settles an action-table cell that holds more than one
// candidate action. Precedence and associativity are tried first; failing
// that, a declared conflict group covering all participating rules keeps
// every action in the cell; anything else is a ConflictError.
func (b *lrTableBuilder) settleConflict(ptab *ParsingTable, state *lrState, t symbol, nextState stateNum, hasShift bool, reduces []*production) error {
	var shiftParts []*conflictParticipant
	if hasShift {
		parts, err := b.shiftParticipants(state, t)
		if err != nil {
			return err
		}
		shiftParts = parts
	}

	var reduceParts []*conflictParticipant
	for _, prod := range reduces {
		item, err := b.reducibleItem(state, prod)
		if err != nil {
			return err
		}
		reduceParts = append(reduceParts, &conflictParticipant{
			item: item,
			prod: prod,
		})
	}

	entry, method, ok := b.resolveCell(shiftParts, nextState, hasShift, reduces)
	if ok {
		ptab.writeAction(state.num.Int(), t.num().Int(), entry)
		b.recordConflicts(state.num, t, nextState, hasShift, reduces, method)
		return nil
	}

	parts := make([]*conflictParticipant, 0, len(reduceParts)+len(shiftParts))
	parts = append(parts, reduceParts...)
	parts = append(parts, shiftParts...)

	if b.matchesConflictGroup(parts) {
		actions := make([]actionEntry, 0, len(reduces)+1)
		if hasShift {
			actions = append(actions, newShiftActionEntry(nextState))
		}
		for _, prod := range reduces {
			actions = append(actions, newReduceActionEntry(prod.num))
		}
		pos := state.num.Int()*ptab.terminalCount + t.num().Int()
		ptab.writeAction(state.num.Int(), t.num().Int(), actions[0])
		ptab.conflictActions[pos] = actions
		b.recordConflicts(state.num, t, nextState, hasShift, reduces, ResolvedByConflictGroup)
		return nil
	}

	return b.newConflictError(state, t, shiftParts, reduceParts)
}

// shiftParticipants returns the kernel items that are in the middle of a
// production able to continue with the terminal t. Items the closure added
// at dot 0 stay out: their production has consumed nothing yet, so it
// contributes no precedence of its own.
func (b *lrTableBuilder) shiftParticipants(state *lrState, t symbol) ([]*conflictParticipant, error) {
	var parts []*conflictParticipant
	for _, item := range state.items {
		if item.reducible {
			continue
		}
		prod, ok := b.prods.findByID(item.prod)
		if !ok {
			return nil, fmt.Errorf("production not found: %v", item.prod)
		}
		fst, err := b.first.find(prod, item.dot)
		if err != nil {
			return nil, err
		}
		if _, ok := fst.symbols[t]; !ok {
			continue
		}
		parts = append(parts, &conflictParticipant{
			item: item,
			prod: prod,
		})
	}
	return parts, nil
}

// resolveCell applies the precedence policy. A strictly higher precedence
// wins; on equal precedence a shift/reduce falls back to the reduce
// production's associativity: left keeps the reduce, right keeps the shift,
// and no associativity leaves the cell unresolved. Every in-progress item
// must agree on the outcome.
func (b *lrTableBuilder) resolveCell(shiftParts []*conflictParticipant, nextState stateNum, hasShift bool, reduces []*production) (actionEntry, conflictResolutionMethod, bool) {
	winner := reduces[0]
	method := ResolvedByPrec
	if len(reduces) > 1 {
		maxPrec := b.precAndAssoc.productionPredence(winner.num)
		dup := false
		for _, p := range reduces[1:] {
			prec := b.precAndAssoc.productionPredence(p.num)
			switch {
			case prec > maxPrec:
				maxPrec = prec
				winner = p
				dup = false
			case prec == maxPrec:
				dup = true
			}
		}
		if dup {
			return actionEntryEmpty, 0, false
		}
	}

	if !hasShift {
		return newReduceActionEntry(winner.num), method, true
	}

	if len(shiftParts) == 0 {
		return actionEntryEmpty, 0, false
	}

	reducePrec := b.precAndAssoc.productionPredence(winner.num)
	reduceAssoc := b.precAndAssoc.productionAssociativity(winner.num)

	const (
		outcomeShift  = 1
		outcomeReduce = -1
	)
	outcome := 0
	for _, part := range shiftParts {
		shiftPrec := b.precAndAssoc.productionPredence(part.prod.num)

		var o int
		var m conflictResolutionMethod
		switch {
		case shiftPrec > reducePrec:
			o, m = outcomeShift, ResolvedByPrec
		case shiftPrec < reducePrec:
			o, m = outcomeReduce, ResolvedByPrec
		default:
			switch reduceAssoc {
			case assocTypeLeft:
				o, m = outcomeReduce, ResolvedByAssoc
			case assocTypeRight:
				o, m = outcomeShift, ResolvedByAssoc
			default:
				return actionEntryEmpty, 0, false
			}
		}

		if outcome == 0 {
			outcome = o
			method = m
		} else if outcome != o {
			return actionEntryEmpty, 0, false
		}
	}

	if outcome == outcomeShift {
		return newShiftActionEntry(nextState), method, true
	}
	return newReduceActionEntry(winner.num), method, true
}

func (b *lrTableBuilder) matchesConflictGroup(parts []*conflictParticipant) bool {
	lhsSet := map[symbol]struct{}{}
	for _, part := range parts {
		lhsSet[part.prod.lhs] = struct{}{}
	}
	for _, group := range b.conflictGroups {
		if len(group) != len(lhsSet) {
			continue
		}
		matched := true
		for sym := range lhsSet {
			if _, ok := group[sym]; !ok {
				matched = false
				break
			}
		}
		if matched {
			return true
		}
	}
	return false
}

func (b *lrTableBuilder) recordConflicts(state stateNum, t symbol, nextState stateNum, hasShift bool, reduces []*production, method conflictResolutionMethod) {
	if hasShift {
		for _, prod := range reduces {
			b.conflicts = append(b.conflicts, &shiftReduceConflict{
				state:      state,
				sym:        t,
				nextState:  nextState,
				prodNum:    prod.num,
				resolvedBy: method,
			})
		}
	}
	for i := 0; i < len(reduces); i++ {
		for j := i + 1; j < len(reduces); j++ {
			b.conflicts = append(b.conflicts, &reduceReduceConflict{
				state:      state,
				sym:        t,
				prodNum1:   reduces[i].num,
				prodNum2:   reduces[j].num,
				resolvedBy: method,
			})
		}
	}
}

func (b *lrTableBuilder) newConflictError(state *lrState, t symbol, shiftParts []*conflictParticipant, reduceParts []*conflictParticipant) error {
	prefix, err := b.symbolPathTo(state)
	if err != nil {
		return err
	}
	laText, err := b.displayText(t)
	if err != nil {
		return err
	}

	var interps []string
	for _, part := range reduceParts {
		interp, err := b.renderReduceInterpretation(prefix, part.prod, laText)
		if err != nil {
			return err
		}
		interps = append(interps, interp)
	}
	for _, part := range shiftParts {
		interp, err := b.renderShiftInterpretation(prefix, part.prod, part.item.dot)
		if err != nil {
			return err
		}
		interps = append(interps, interp)
	}

	allNames := linkedhashset.New()
	prodNums := map[productionNum]struct{}{}
	for _, part := range append(append([]*conflictParticipant{}, reduceParts...), shiftParts...) {
		name, ok := b.symTab.toText(part.prod.lhs)
		if !ok {
			return fmt.Errorf("symbol not found: %v", part.prod.lhs)
		}
		allNames.Add(name)
		prodNums[part.prod.num] = struct{}{}
	}
	reduceNames := linkedhashset.New()
	for _, part := range reduceParts {
		name, ok := b.symTab.toText(part.prod.lhs)
		if !ok {
			return fmt.Errorf("symbol not found: %v", part.prod.lhs)
		}
		reduceNames.Add(name)
	}

	var resolutions []string
	if len(prodNums) > 1 {
		resolutions = append(resolutions, fmt.Sprintf("Use different precedences in the rules:  %v", joinNameSet(allNames)))
	}
	if len(shiftParts) > 0 && len(reduceParts) > 0 {
		resolutions = append(resolutions, fmt.Sprintf("Specify left or right associativity in the rules:  %v", joinNameSet(reduceNames)))
	}
	resolutions = append(resolutions, fmt.Sprintf("Add a conflict for the rules:  %v", joinNameSet(allNames)))

	return &ConflictError{
		SymbolSequence:  prefix,
		LookAhead:       laText,
		Interpretations: interps,
		Resolutions:     resolutions,
	}
}

func joinNameSet(set *linkedhashset.Set) string {
	names := make([]string, 0, set.Size())
	for _, v := range set.Values() {
		names = append(names, v.(string))
	}
	return strings.Join(names, "  ")
}

func (b *lrTableBuilder) renderReduceInterpretation(prefix []string, prod *production, laText string) (string, error) {
	paren, err := b.renderDottedProduction(prod, prod.rhsLen)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(prefix)+4)
	parts = append(parts, prefix[:len(prefix)-prod.rhsLen]...)
	parts = append(parts, paren, "•", laText, "…")
	return strings.Join(parts, "  "), nil
}

func (b *lrTableBuilder) renderShiftInterpretation(prefix []string, prod *production, dot int) (string, error) {
	paren, err := b.renderDottedProduction(prod, dot)
	if err != nil {
		return "", err
	}
	parts := make([]string, 0, len(prefix)+1)
	parts = append(parts, prefix[:len(prefix)-dot]...)
	parts = append(parts, paren)
	return strings.Join(parts, "  "), nil
}

// renderDottedProduction renders a production like
// (math_operation  expression  •  '+'  expression). A dot at the end of the
// RHS is omitted, which is the reduce-interpretation form.
func (b *lrTableBuilder) renderDottedProduction(prod *production, dot int) (string, error) {
	lhs, ok := b.symTab.toText(prod.lhs)
	if !ok {
		return "", fmt.Errorf("symbol not found: %v", prod.lhs)
	}
	parts := []string{lhs}
	for i, sym := range prod.rhs {
		if i == dot {
			parts = append(parts, "•")
		}
		text, err := b.displayText(sym)
		if err != nil {
			return "", err
		}
		parts = append(parts, text)
	}
	return fmt.Sprintf("(%v)", strings.Join(parts, "  ")), nil
}

var displayEscaper = strings.NewReplacer(
	"\n", `\n`,
	"\r", `\r`,
	"\t", `\t`,
)

func (b *lrTableBuilder) displayText(sym symbol) (string, error) {
	text, ok := b.symTab.toText(sym)
	if !ok {
		return "", fmt.Errorf("symbol not found: %v", sym)
	}
	return displayEscaper.Replace(text), nil
}

// symbolPathTo returns the symbols along a shortest path from the initial
// state to the given state. Ties break on symbol order, so the same grammar
// always yields the same prefix.
func (b *lrTableBuilder) symbolPathTo(target *lrState) ([]string, error) {
	type edge struct {
		from kernelID
		sym  symbol
	}

	prev := map[kernelID]edge{}
	visited := map[kernelID]struct{}{
		b.automaton.initialState: {},
	}
	queue := []kernelID{b.automaton.initialState}

	for len(queue) > 0 && queue[0] != target.id {
		id := queue[0]
		queue = queue[1:]
		state := b.automaton.states[id]

		syms := make([]symbol, 0, len(state.next))
		for sym := range state.next {
			syms = append(syms, sym)
		}
		sort.Slice(syms, func(i, j int) bool {
			return syms[i] < syms[j]
		})

		for _, sym := range syms {
			next := state.next[sym]
			if _, ok := visited[next]; ok {
				continue
			}
			visited[next] = struct{}{}
			prev[next] = edge{from: id, sym: sym}
			queue = append(queue, next)
		}
	}

	if target.id == b.automaton.initialState {
		return nil, nil
	}
	if _, ok := prev[target.id]; !ok {
		return nil, fmt.Errorf("state %v is unreachable from the initial state", target.num)
	}

	var path []symbol
	for id := target.id; id != b.automaton.initialState; {
		e := prev[id]
		path = append(path, e.sym)
		id = e.from
	}
	for i, j := 0, len(path)-1; i < j; i, j = i+1, j-1 {
		path[i], path[j] = path[j], path[i]
	}

	texts := make([]string, len(path))
	for i, sym := range path {
		text, err := b.displayText(sym)
		if err != nil {
			return nil, err
		}
		texts[i] = text
	}
	return texts, nil
}
