package grammar

import (
	"errors"
	"strings"
	"testing"

	verr "github.com/treelang/treelang/error"
	"github.com/treelang/treelang/spec"
)

func buildGrammar(t *testing.T, src string) (*Grammar, error) {
	t.Helper()

	desc, err := spec.Parse(strings.NewReader(src))
	if err != nil {
		t.Fatal(err)
	}
	b := GrammarBuilder{
		Desc: desc,
	}
	return b.Build()
}

func mustBuildGrammar(t *testing.T, src string) *Grammar {
	t.Helper()

	gram, err := buildGrammar(t, src)
	if err != nil {
		t.Fatal(err)
	}
	return gram
}

// prodRHSTexts returns the RHS of each production of a rule in flattening
// order, each rendered as its display texts.
func prodRHSTexts(t *testing.T, gram *Grammar, ruleName string) [][]string {
	t.Helper()

	lhs, ok := gram.symbolTable.toSymbol(ruleName)
	if !ok {
		t.Fatalf("rule not found: %v", ruleName)
	}
	prods, ok := gram.productionSet.findByLHS(lhs)
	if !ok {
		t.Fatalf("rule has no productions: %v", ruleName)
	}
	var rhss [][]string
	for _, prod := range prods {
		rhs := make([]string, len(prod.rhs))
		for i, sym := range prod.rhs {
			text, ok := gram.symbolTable.toText(sym)
			if !ok {
				t.Fatalf("symbol not found: %v", sym)
			}
			rhs[i] = text
		}
		rhss = append(rhss, rhs)
	}
	return rhss
}

func TestGrammarBuilder_Flattening(t *testing.T) {
	tests := []struct {
		caption string
		src     string
		rule    string
		rhss    [][]string
	}{
		{
			caption: "a choice multiplies out into parallel alternatives",
			src: `{
    "name": "test",
    "rules": {
        "first_rule": {
            "type": "CHOICE",
            "members": [
                {"type": "STRING", "value": "a"},
                {"type": "STRING", "value": "b"}
            ]
        }
    }
}`,
			rule: "first_rule",
			rhss: [][]string{
				{"'a'"},
				{"'b'"},
			},
		},
		{
			caption: "a sequence concatenates its members",
			src: `{
    "name": "test",
    "rules": {
        "first_rule": {
            "type": "SEQ",
            "members": [
                {"type": "STRING", "value": "a"},
                {"type": "PATTERN", "value": "[0-9]+"},
                {"type": "STRING", "value": "b"}
            ]
        }
    }
}`,
			rule: "first_rule",
			rhss: [][]string{
				{"'a'", "/[0-9]+/", "'b'"},
			},
		},
		{
			caption: "a choice nested in a sequence yields the cartesian product",
			src: `{
    "name": "test",
    "rules": {
        "first_rule": {
            "type": "SEQ",
            "members": [
                {
                    "type": "CHOICE",
                    "members": [
                        {"type": "STRING", "value": "a"},
                        {"type": "STRING", "value": "b"}
                    ]
                },
                {
                    "type": "CHOICE",
                    "members": [
                        {"type": "STRING", "value": "c"},
                        {"type": "STRING", "value": "d"}
                    ]
                }
            ]
        }
    }
}`,
			rule: "first_rule",
			rhss: [][]string{
				{"'a'", "'c'"},
				{"'a'", "'d'"},
				{"'b'", "'c'"},
				{"'b'", "'d'"},
			},
		},
		{
			caption: "a blank rule becomes an empty production",
			src: `{
    "name": "test",
    "rules": {
        "first_rule": {
            "type": "CHOICE",
            "members": [
                {"type": "BLANK"},
                {"type": "STRING", "value": "a"}
            ]
        }
    }
}`,
			rule: "first_rule",
			rhss: [][]string{
				{},
				{"'a'"},
			},
		},
		{
			caption: "duplicate alternatives collapse into one production",
			src: `{
    "name": "test",
    "rules": {
        "first_rule": {
            "type": "CHOICE",
            "members": [
                {"type": "STRING", "value": "a"},
                {"type": "STRING", "value": "a"}
            ]
        }
    }
}`,
			rule: "first_rule",
			rhss: [][]string{
				{"'a'"},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			gram := mustBuildGrammar(t, tt.src)
			rhss := prodRHSTexts(t, gram, tt.rule)
			if len(rhss) != len(tt.rhss) {
				t.Fatalf("unexpected alternative count; want: %v, got: %v", len(tt.rhss), len(rhss))
			}
			for i, expected := range tt.rhss {
				if len(rhss[i]) != len(expected) {
					t.Fatalf("unexpected RHS #%v; want: %v, got: %v", i, expected, rhss[i])
				}
				for j, text := range expected {
					if rhss[i][j] != text {
						t.Fatalf("unexpected RHS #%v; want: %v, got: %v", i, expected, rhss[i])
					}
				}
			}
		})
	}
}

func TestGrammarBuilder_PrecedenceAnnotations(t *testing.T) {
	src := `{
    "name": "test",
    "rules": {
        "first_rule": {
            "type": "PREC_LEFT",
            "value": 3,
            "content": {
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
                    {
                        "type": "PREC_RIGHT",
                        "value": 7,
                        "content": {
                            "type": "SEQ",
                            "members": [
                                {"type": "SYMBOL", "name": "first_rule"},
                                {"type": "STRING", "value": "^"},
                                {"type": "SYMBOL", "name": "first_rule"}
                            ]
                        }
                    },
                    {"type": "STRING", "value": "a"}
                ]
            }
        }
    }
}`
	gram := mustBuildGrammar(t, src)

	lhs, _ := gram.symbolTable.toSymbol("first_rule")
	prods, _ := gram.productionSet.findByLHS(lhs)
	if len(prods) != 3 {
		t.Fatalf("unexpected production count; want: 3, got: %v", len(prods))
	}

	// The outer wrapper annotates the '+' alternative and the plain token.
	// The '^' alternative keeps its inner annotation.
	pa := gram.precAndAssoc
	tests := []struct {
		prod  *production
		prec  int
		assoc assocType
	}{
		{prods[0], 3, assocTypeLeft},
		{prods[1], 7, assocTypeRight},
		{prods[2], 3, assocTypeLeft},
	}
	for i, tt := range tests {
		if prec := pa.productionPredence(tt.prod.num); prec != tt.prec {
			t.Fatalf("unexpected precedence of production #%v; want: %v, got: %v", i, tt.prec, prec)
		}
		if assoc := pa.productionAssociativity(tt.prod.num); assoc != tt.assoc {
			t.Fatalf("unexpected associativity of production #%v; want: %v, got: %v", i, tt.assoc, assoc)
		}
	}
}

func TestGrammarBuilder_SingleMemberSeqIsTransparent(t *testing.T) {
	src := `{
    "name": "test",
    "rules": {
        "first_rule": {
            "type": "SEQ",
            "members": [
                {
                    "type": "PREC",
                    "value": 5,
                    "content": {"type": "STRING", "value": "a"}
                }
            ]
        }
    }
}`
	gram := mustBuildGrammar(t, src)

	lhs, _ := gram.symbolTable.toSymbol("first_rule")
	prods, _ := gram.productionSet.findByLHS(lhs)
	if len(prods) != 1 {
		t.Fatalf("unexpected production count; want: 1, got: %v", len(prods))
	}
	if prec := gram.precAndAssoc.productionPredence(prods[0].num); prec != 5 {
		t.Fatalf("unexpected precedence; want: 5, got: %v", prec)
	}
}

func TestGrammarBuilder_Extras(t *testing.T) {
	t.Run("patterns, strings, and single-token rules are valid extras", func(t *testing.T) {
		src := `{
    "name": "test",
    "extras": [
        {"type": "PATTERN", "value": "[ ]+"},
        {"type": "SYMBOL", "name": "comment"}
    ],
    "rules": {
        "first_rule": {"type": "STRING", "value": "a"},
        "comment": {"type": "PATTERN", "value": "#.*"}
    }
}`
		gram := mustBuildGrammar(t, src)
		if len(gram.extraTerms) != 2 {
			t.Fatalf("unexpected extra count; want: 2, got: %v", len(gram.extraTerms))
		}
		for i, sym := range gram.extraTerms {
			if !sym.isTerminal() {
				t.Fatalf("extra #%v is not a terminal", i)
			}
		}
	})

	t.Run("an extra referencing a multi-alternative rule is an error", func(t *testing.T) {
		src := `{
    "name": "test",
    "extras": [
        {"type": "SYMBOL", "name": "second_rule"}
    ],
    "rules": {
        "first_rule": {"type": "STRING", "value": "a"},
        "second_rule": {
            "type": "CHOICE",
            "members": [
                {"type": "STRING", "value": "b"},
                {"type": "STRING", "value": "c"}
            ]
        }
    }
}`
		_, err := buildGrammar(t, src)
		if err == nil {
			t.Fatalf("an expected error didn't occur")
		}
		var specErr *verr.SpecError
		if !errors.As(err, &specErr) || !errors.Is(specErr.Cause, semErrInvalidExtra) {
			t.Fatalf("unexpected error: %v", err)
		}
	})
}

func TestGrammarBuilder_Errors(t *testing.T) {
	tests := []struct {
		caption string
		src     string
		cause   error
	}{
		{
			caption: "a SYMBOL rule must reference a defined rule",
			src: `{
    "name": "test",
    "rules": {
        "first_rule": {"type": "SYMBOL", "name": "missing_rule"}
    }
}`,
			cause: semErrUndefinedSym,
		},
		{
			caption: "a string rule must not be empty",
			src: `{
    "name": "test",
    "rules": {
        "first_rule": {"type": "STRING", "value": ""}
    }
}`,
			cause: semErrEmptyString,
		},
		{
			caption: "a pattern rule must not be empty",
			src: `{
    "name": "test",
    "rules": {
        "first_rule": {"type": "PATTERN", "value": ""}
    }
}`,
			cause: semErrEmptyPattern,
		},
		{
			caption: "two rules must not share a name",
			src: `{
    "name": "test",
    "rules": {
        "first_rule": {"type": "STRING", "value": "a"},
        "first_rule": {"type": "STRING", "value": "b"}
    }
}`,
			cause: semErrDuplicateName,
		},
		{
			caption: "a conflict must reference defined rules",
			src: `{
    "name": "test",
    "conflicts": [
        ["first_rule", "missing_rule"]
    ],
    "rules": {
        "first_rule": {"type": "STRING", "value": "a"}
    }
}`,
			cause: semErrInvalidConflict,
		},
	}
	for _, tt := range tests {
		t.Run(tt.caption, func(t *testing.T) {
			_, err := buildGrammar(t, tt.src)
			if err == nil {
				t.Fatalf("an expected error didn't occur")
			}
			if !errors.Is(err, tt.cause) {
				var specErr *verr.SpecError
				if errors.As(err, &specErr) && errors.Is(specErr.Cause, tt.cause) {
					return
				}
				specErrs, ok := err.(verr.SpecErrors)
				if ok {
					for _, e := range specErrs {
						if errors.Is(e.Cause, tt.cause) {
							return
						}
					}
				}
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestGrammarBuilder_StartRule(t *testing.T) {
	src := `{
    "name": "test",
    "rules": {
        "first_rule": {"type": "SYMBOL", "name": "second_rule"},
        "second_rule": {"type": "STRING", "value": "a"}
    }
}`
	gram := mustBuildGrammar(t, src)

	startText, ok := gram.symbolTable.toText(gram.startSymbol)
	if !ok || startText != "first_rule" {
		t.Fatalf("unexpected start symbol; want: first_rule, got: %v", startText)
	}
	augText, ok := gram.symbolTable.toText(gram.augmentedStartSymbol)
	if !ok || augText != "first_rule'" {
		t.Fatalf("unexpected augmented start symbol; want: first_rule', got: %v", augText)
	}

	prods, ok := gram.productionSet.findByLHS(gram.augmentedStartSymbol)
	if !ok || len(prods) != 1 {
		t.Fatalf("the augmented start symbol must have exactly one production")
	}
	if prods[0].rhsLen != 1 || prods[0].rhs[0] != gram.startSymbol {
		t.Fatalf("unexpected start production RHS: %v", prods[0].rhs)
	}
}
