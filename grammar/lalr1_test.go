package grammar

import (
	"testing"
)

func TestGenLR0Automaton(t *testing.T) {
	src := `{
    "name": "test",
    "rules": {
        "first_rule": {
            "type": "SEQ",
            "members": [
                {"type": "STRING", "value": "a"},
                {"type": "STRING", "value": "b"}
            ]
        }
    }
}`
	gram := mustBuildGrammar(t, src)

	automaton, err := genLR0Automaton(gram.productionSet, gram.augmentedStartSymbol)
	if err != nil {
		t.Fatal(err)
	}

	// 0: first_rule' → ・first_rule
	// 1: first_rule → 'a'・'b'
	// 2: first_rule' → first_rule・
	// 3: first_rule → 'a' 'b'・
	if len(automaton.states) != 4 {
		t.Fatalf("unexpected state count; want: 4, got: %v", len(automaton.states))
	}

	initial := automaton.states[automaton.initialState]
	if initial.num != stateNumInitial {
		t.Fatalf("unexpected initial state number; want: %v, got: %v", stateNumInitial, initial.num)
	}
	if len(initial.items) != 1 || initial.items[0].dot != 0 {
		t.Fatalf("unexpected initial kernel: %+v", initial.items)
	}

	// State numbering only depends on the grammar.
	again, err := genLR0Automaton(gram.productionSet, gram.augmentedStartSymbol)
	if err != nil {
		t.Fatal(err)
	}
	for id, state := range automaton.states {
		other, ok := again.states[id]
		if !ok {
			t.Fatalf("state %v is missing from the second run", state.num)
		}
		if other.num != state.num {
			t.Fatalf("state numbering differs between runs; %v vs %v", state.num, other.num)
		}
	}
}

func TestGenLALR1Automaton(t *testing.T) {
	src := `{
    "name": "test",
    "rules": {
        "first_rule": {
            "type": "CHOICE",
            "members": [
                {
                    "type": "SEQ",
                    "members": [
                        {"type": "SYMBOL", "name": "first_rule"},
                        {"type": "STRING", "value": "+"},
                        {"type": "SYMBOL", "name": "first_rule"}
                    ]
                },
                {"type": "STRING", "value": "a"}
            ]
        }
    }
}`
	gram := mustBuildGrammar(t, src)

	fst, err := genFirstSet(gram.productionSet)
	if err != nil {
		t.Fatal(err)
	}
	lr0, err := genLR0Automaton(gram.productionSet, gram.augmentedStartSymbol)
	if err != nil {
		t.Fatal(err)
	}
	lalr1, err := genLALR1Automaton(lr0, gram.productionSet, fst)
	if err != nil {
		t.Fatal(err)
	}

	plus, ok := gram.symbolTable.toSymbol("'+'")
	if !ok {
		t.Fatalf("symbol not found: '+'")
	}

	// Every reducible item must carry a lookahead, and first_rule → 'a'・
	// must be reducible both at the end of the input and before another
	// operator.
	checked := false
	for _, state := range lalr1.states {
		for _, item := range state.items {
			if !item.reducible {
				continue
			}
			if len(item.lookAhead.symbols) == 0 {
				t.Fatalf("reducible item in state %v has no lookahead", state.num)
			}

			prod, ok := gram.productionSet.findByID(item.prod)
			if !ok {
				t.Fatal("production not found")
			}
			if prod.rhsLen != 1 || !prod.rhs[0].isTerminal() {
				continue
			}

			checked = true
			if _, ok := item.lookAhead.symbols[symbolEOF]; !ok {
				t.Fatalf("lookahead of first_rule → 'a'・ is missing <eof>")
			}
			if _, ok := item.lookAhead.symbols[plus]; !ok {
				t.Fatalf("lookahead of first_rule → 'a'・ is missing '+'")
			}
		}
	}
	if !checked {
		t.Fatalf("the state of first_rule → 'a'・ was not visited")
	}
}
