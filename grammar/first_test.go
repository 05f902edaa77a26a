package grammar

import (
	"testing"
)

type firstTest struct {
	lhs     string
	alt     int
	dot     int
	symbols []string
	empty   bool
}

func TestGenFirstSet(t *testing.T) {
	tests := []struct {
		caption string
		src     string
		first   []firstTest
	}{
		{
			caption: "a terminal starts its own FIRST set",
			src: `{
    "name": "test",
    "rules": {
        "first_rule": {
            "type": "CHOICE",
            "members": [
                {
                    "type": "SEQ",
                    "members": [
                        {"type": "STRING", "value": "a"},
                        {"type": "SYMBOL", "name": "first_rule"}
                    ]
                },
                {"type": "STRING", "value": "b"}
            ]
        }
    }
}`,
			first: []firstTest{
				{lhs: "first_rule", alt: 0, dot: 0, symbols: []string{"'a'"}},
				{lhs: "first_rule", alt: 0, dot: 1, symbols: []string{"'a'", "'b'"}},
				{lhs: "first_rule", alt: 1, dot: 0, symbols: []string{"'b'"}},
			},
		},
		{
			caption: "an empty production propagates the following symbol",
			src: `{
    "name": "test",
    "rules": {
        "first_rule": {
            "type": "SEQ",
            "members": [
                {"type": "SYMBOL", "name": "opt"},
                {"type": "STRING", "value": "y"}
            ]
        },
        "opt": {
            "type": "CHOICE",
            "members": [
                {"type": "BLANK"},
                {"type": "STRING", "value": "x"}
            ]
        }
    }
}`,
			first: []firstTest{
				{lhs: "first_rule", alt: 0, dot: 0, symbols: []string{"'x'", "'y'"}},
				{lhs: "opt", alt: 0, dot: 0, empty: true},
				{lhs: "opt", alt: 1, dot: 0, symbols: []string{"'x'"}},
			},
		},
		{
			caption: "a dot past the end of the RHS yields the empty entry",
			src: `{
    "name": "test",
    "rules": {
        "first_rule": {"type": "STRING", "value": "a"}
    }
}`,
			first: []firstTest{
				{lhs: "first_rule", alt: 0, dot: 1, empty: true},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			gram := mustBuildGrammar(t, tt.src)
			fst, err := genFirstSet(gram.productionSet)
			if err != nil {
				t.Fatal(err)
			}

			for _, ft := range tt.first {
				lhs, ok := gram.symbolTable.toSymbol(ft.lhs)
				if !ok {
					t.Fatalf("rule not found: %v", ft.lhs)
				}
				prods, ok := gram.productionSet.findByLHS(lhs)
				if !ok || ft.alt >= len(prods) {
					t.Fatalf("alternative #%v of %v not found", ft.alt, ft.lhs)
				}

				entry, err := fst.find(prods[ft.alt], ft.dot)
				if err != nil {
					t.Fatal(err)
				}
				if entry.empty != ft.empty {
					t.Fatalf("unexpected empty flag of %v #%v dot %v; want: %v, got: %v", ft.lhs, ft.alt, ft.dot, ft.empty, entry.empty)
				}
				if len(entry.symbols) != len(ft.symbols) {
					t.Fatalf("unexpected FIRST of %v #%v dot %v; want: %v, got: %v symbols", ft.lhs, ft.alt, ft.dot, ft.symbols, len(entry.symbols))
				}
				for _, text := range ft.symbols {
					sym, ok := gram.symbolTable.toSymbol(text)
					if !ok {
						t.Fatalf("symbol not found: %v", text)
					}
					if _, ok := entry.symbols[sym]; !ok {
						t.Fatalf("FIRST of %v #%v dot %v is missing %v", ft.lhs, ft.alt, ft.dot, text)
					}
				}
			}
		})
	}
}
