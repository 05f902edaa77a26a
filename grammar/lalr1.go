package grammar

import "fmt"

// itemAddress locates a kernel item within an automaton.
type itemAddress struct {
	kernelID kernelID
	itemID   lrItemID
}

// propagation records that the look-ahead symbols of src flow into every
// item in dests whenever src gains a new symbol.
type propagation struct {
	src   *itemAddress
	dests []*itemAddress
}

type lalr1Automaton struct {
	*lr0Automaton
}

// genLALR1Automaton attaches LALR(1) look-ahead sets to the kernel items of
// an LR(0) automaton. Symbols that a closure determines directly are merged
// into the target items on the spot; symbols that depend on a kernel item's
// own look-ahead set are deferred to propagation edges and resolved by a
// fixpoint afterwards.
func genLALR1Automaton(lr0 *lr0Automaton, prods *productionSet, first *firstSet) (*lalr1Automaton, error) {
	// The initial item [S' → ・S] always has the look-ahead set {<EOF>}.
	iniState := lr0.states[lr0.initialState]
	iniState.items[0].lookAhead.symbols = map[symbol]struct{}{
		symbolEOF: {},
	}

	var props []*propagation
	for _, state := range lr0.states {
		for _, kItem := range state.items {
			items, err := genLALR1Closure(kItem, prods, first)
			if err != nil {
				return nil, err
			}

			// A kernel item always propagates its look-ahead symbols to the
			// item its dotted symbol shifts into.
			kItem.lookAhead.propagation = true

			var dests []*itemAddress
			for _, item := range items {
				if item.reducible {
					p, ok := prods.findByID(item.prod)
					if !ok {
						return nil, fmt.Errorf("production not found: %v", item.prod)
					}
					if !p.isEmpty() {
						continue
					}

					// An item with an empty production appears only in a
					// closure, so its look-ahead set lives in the state's
					// emptyProdItems instead of a successor state.
					reducibleItem := findItem(state, item.id)
					if reducibleItem == nil {
						return nil, fmt.Errorf("reducible item not found: %v", item.id)
					}
					mergeLookAhead(reducibleItem, item.lookAhead.symbols)

					dests = append(dests, &itemAddress{
						kernelID: state.id,
						itemID:   item.id,
					})

					continue
				}

				nextItemID, err := shiftedItemID(item, prods)
				if err != nil {
					return nil, err
				}
				nextKID := state.next[item.dottedSymbol]

				if item.lookAhead.propagation {
					dests = append(dests, &itemAddress{
						kernelID: nextKID,
						itemID:   nextItemID,
					})
					continue
				}

				nextItem := findItem(lr0.states[nextKID], nextItemID)
				if nextItem == nil {
					return nil, fmt.Errorf("item not found: %v", nextItemID)
				}
				mergeLookAhead(nextItem, item.lookAhead.symbols)
			}
			if len(dests) == 0 {
				continue
			}

			props = append(props, &propagation{
				src: &itemAddress{
					kernelID: state.id,
					itemID:   kItem.id,
				},
				dests: dests,
			})
		}
	}

	err := propagateLookAhead(lr0, props)
	if err != nil {
		return nil, fmt.Errorf("failed to propagate look-ahead symbols: %v", err)
	}

	return &lalr1Automaton{
		lr0Automaton: lr0,
	}, nil
}

// genLALR1Closure generates the LALR(1) closure of a kernel item. Every
// generated item carries either a single look-ahead symbol or the
// propagation mark, never both, so the caller can tell spontaneously
// generated symbols apart from ones that must flow from the kernel item.
func genLALR1Closure(srcItem *lrItem, prods *productionSet, first *firstSet) ([]*lrItem, error) {
	items := []*lrItem{srcItem}
	knownItems := map[lrItemID]map[symbol]struct{}{}
	knownPropItems := map[lrItemID]struct{}{}
	unchecked := []*lrItem{srcItem}
	for len(unchecked) > 0 {
		var next []*lrItem
		for _, item := range unchecked {
			if item.dottedSymbol.isNil() || item.dottedSymbol.isTerminal() {
				continue
			}

			p, ok := prods.findByID(item.prod)
			if !ok {
				return nil, fmt.Errorf("production not found: %v", item.prod)
			}

			fst, err := first.find(p, item.dot+1)
			if err != nil {
				return nil, err
			}

			lookAheads := make([]symbol, 0, len(fst.symbols)+len(item.lookAhead.symbols))
			for s := range fst.symbols {
				lookAheads = append(lookAheads, s)
			}
			if fst.empty {
				// When FIRST of the rest of the production contains ε, the
				// look-ahead symbols of the item itself follow the dotted
				// symbol as well.
				for a := range item.lookAhead.symbols {
					lookAheads = append(lookAheads, a)
				}
			}

			ps, _ := prods.findByLHS(item.dottedSymbol)
			for _, prod := range ps {
				for _, a := range lookAheads {
					newItem, err := newLR0Item(prod, 0)
					if err != nil {
						return nil, err
					}
					if syms, ok := knownItems[newItem.id]; ok {
						if _, ok := syms[a]; ok {
							continue
						}
					}

					newItem.lookAhead.symbols = map[symbol]struct{}{
						a: {},
					}

					items = append(items, newItem)
					if knownItems[newItem.id] == nil {
						knownItems[newItem.id] = map[symbol]struct{}{}
					}
					knownItems[newItem.id][a] = struct{}{}
					next = append(next, newItem)
				}

				if fst.empty {
					newItem, err := newLR0Item(prod, 0)
					if err != nil {
						return nil, err
					}
					if _, ok := knownPropItems[newItem.id]; ok {
						continue
					}

					newItem.lookAhead.propagation = true

					items = append(items, newItem)
					knownPropItems[newItem.id] = struct{}{}
					next = append(next, newItem)
				}
			}
		}
		unchecked = next
	}

	return items, nil
}

// propagateLookAhead flows look-ahead symbols along the propagation edges
// until no set grows anymore. The edge sets never change during the
// fixpoint, so termination follows from the look-ahead sets only growing.
func propagateLookAhead(lr0 *lr0Automaton, props []*propagation) error {
	for {
		changed := false
		for _, prop := range props {
			srcState, ok := lr0.states[prop.src.kernelID]
			if !ok {
				return fmt.Errorf("source state not found: %v", prop.src.kernelID)
			}
			srcItem := findItem(srcState, prop.src.itemID)
			if srcItem == nil {
				return fmt.Errorf("source item not found: %v", prop.src.itemID)
			}

			for _, dest := range prop.dests {
				destState, ok := lr0.states[dest.kernelID]
				if !ok {
					return fmt.Errorf("destination state not found: %v", dest.kernelID)
				}
				destItem := findItem(destState, dest.itemID)
				if destItem == nil {
					return fmt.Errorf("destination item not found: %v", dest.itemID)
				}

				if mergeLookAhead(destItem, srcItem.lookAhead.symbols) {
					changed = true
				}
			}
		}
		if !changed {
			break
		}
	}

	return nil
}

// findItem looks an item up by its ID among a state's kernel items and its
// empty-production items.
func findItem(state *lrState, id lrItemID) *lrItem {
	for _, item := range state.items {
		if item.id == id {
			return item
		}
	}
	for _, item := range state.emptyProdItems {
		if item.id == id {
			return item
		}
	}
	return nil
}

// mergeLookAhead adds the symbols to the item's look-ahead set and reports
// whether the set grew.
func mergeLookAhead(item *lrItem, syms map[symbol]struct{}) bool {
	changed := false
	for a := range syms {
		if _, ok := item.lookAhead.symbols[a]; ok {
			continue
		}
		if item.lookAhead.symbols == nil {
			item.lookAhead.symbols = map[symbol]struct{}{}
		}
		item.lookAhead.symbols[a] = struct{}{}
		changed = true
	}
	return changed
}

// shiftedItemID computes the ID of the item the dotted symbol shifts into.
func shiftedItemID(item *lrItem, prods *productionSet) (lrItemID, error) {
	p, ok := prods.findByID(item.prod)
	if !ok {
		return lrItemID{}, fmt.Errorf("production not found: %v", item.prod)
	}
	shifted, err := newLR0Item(p, item.dot+1)
	if err != nil {
		return lrItemID{}, fmt.Errorf("failed to generate an item ID: %v", err)
	}
	return shifted.id, nil
}
