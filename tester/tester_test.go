package tester

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/treelang/treelang/grammar"
	"github.com/treelang/treelang/spec"
)

func TestParseTestCases(t *testing.T) {
	t.Run("a corpus may contain multiple cases", func(t *testing.T) {
		corpus := `===
sum of two variables
===
a + b
---
(expression (sum
    (expression (variable))
    (expression (variable))))
===
a lone number
===
42
---
(expression (number))
`

		cases, err := ParseTestCases(strings.NewReader(corpus))
		require.NoError(t, err)
		require.Len(t, cases, 2)

		assert.Equal(t, "sum of two variables", cases[0].Name)
		assert.Equal(t, "a + b", string(cases[0].Source))
		assert.Equal(t, "(expression (sum (expression (variable)) (expression (variable))))",
			normalizeTree(cases[0].Expected))

		assert.Equal(t, "a lone number", cases[1].Name)
		assert.Equal(t, "42", string(cases[1].Source))
		assert.Equal(t, "(expression (number))", normalizeTree(cases[1].Expected))
	})

	t.Run("a source may span multiple lines", func(t *testing.T) {
		corpus := `===
multi-line source
===
a +
b
---
(expression)
`

		cases, err := ParseTestCases(strings.NewReader(corpus))
		require.NoError(t, err)
		require.Len(t, cases, 1)
		assert.Equal(t, "a +\nb", string(cases[0].Source))
	})

	t.Run("an empty source is allowed", func(t *testing.T) {
		corpus := `===
blank input
===
---
(first_rule)
`

		cases, err := ParseTestCases(strings.NewReader(corpus))
		require.NoError(t, err)
		require.Len(t, cases, 1)
		assert.Equal(t, "", string(cases[0].Source))
	})

	t.Run("a corpus without any case is an error", func(t *testing.T) {
		_, err := ParseTestCases(strings.NewReader("\n\n"))
		assert.Error(t, err)
	})

	t.Run("a case without a name is an error", func(t *testing.T) {
		corpus := `===
===
a
---
(expression)
`

		_, err := ParseTestCases(strings.NewReader(corpus))
		assert.Error(t, err)
	})

	t.Run("a case without an expected tree is an error", func(t *testing.T) {
		corpus := `===
missing tree
===
a
---
`

		_, err := ParseTestCases(strings.NewReader(corpus))
		assert.Error(t, err)
	})
}

func TestListTestCases(t *testing.T) {
	dir := t.TempDir()

	writeCorpus := func(name, content string) string {
		t.Helper()
		path := filepath.Join(dir, name)
		err := os.WriteFile(path, []byte(content), 0o600)
		require.NoError(t, err)
		return path
	}

	writeCorpus("ok.txt", `===
a variable
===
a
---
(expression (variable))
`)
	writeCorpus("broken.txt", `===
===
a
---
(expression)
`)

	cases := ListTestCases(dir)
	require.Len(t, cases, 2)

	var okCount, errCount int
	for _, c := range cases {
		if c.Error != nil {
			errCount++
			continue
		}
		okCount++
		assert.NotNil(t, c.TestCase)
		assert.NotEmpty(t, c.FilePath)
	}
	assert.Equal(t, 1, okCount)
	assert.Equal(t, 1, errCount)

	t.Run("a missing path yields a single error entry", func(t *testing.T) {
		cs := ListTestCases(filepath.Join(dir, "no-such-file"))
		require.Len(t, cs, 1)
		assert.Error(t, cs[0].Error)
	})
}

func TestTesterRun(t *testing.T) {
	grammarSrc := `{
    "name": "arithmetic",

    "extras": [
        {"type": "PATTERN", "value": "[ ]+"}
    ],

    "rules": {
        "expression": {
            "type": "CHOICE",
            "members": [
                {"type": "SYMBOL", "name": "sum"},
                {"type": "SYMBOL", "name": "variable"}
            ]
        },

        "sum": {
            "type": "PREC_LEFT",
            "value": 1,
            "content": {
                "type": "SEQ",
                "members": [
                    {"type": "SYMBOL", "name": "expression"},
                    {"type": "STRING", "value": "+"},
                    {"type": "SYMBOL", "name": "expression"}
                ]
            }
        },

        "variable": {"type": "PATTERN", "value": "[a-zA-Z]+"}
    }
}`

	desc, err := spec.Parse(strings.NewReader(grammarSrc))
	require.NoError(t, err)
	b := grammar.GrammarBuilder{
		Desc: desc,
	}
	gram, err := b.Build()
	require.NoError(t, err)
	lang, _, err := grammar.Compile(gram)
	require.NoError(t, err)

	corpus := `===
a matching tree passes
===
a + b
---
(expression (sum
    (expression (variable))
    (expression (variable))))
===
a mismatching tree fails
===
a + b
---
(expression (variable))
===
a syntax error fails
===
a +
---
(expression (sum (expression (variable)) (expression (variable))))
`

	cases, err := ParseTestCases(strings.NewReader(corpus))
	require.NoError(t, err)
	var cs []*TestCaseWithMetadata
	for _, c := range cases {
		cs = append(cs, &TestCaseWithMetadata{
			TestCase: c,
			FilePath: "corpus.txt",
		})
	}

	tester := &Tester{
		Language: lang,
		Cases:    cs,
	}
	rs := tester.Run()
	require.Len(t, rs, 3)

	assert.NoError(t, rs[0].Error)
	assert.Contains(t, rs[0].String(), "Passed")

	require.Error(t, rs[1].Error)
	assert.Equal(t, "(expression (sum (expression (variable)) (expression (variable))))", rs[1].Actual)
	assert.Equal(t, "(expression (variable))", rs[1].Expected)
	assert.Contains(t, rs[1].String(), "Failed")

	require.Error(t, rs[2].Error)
	assert.Contains(t, rs[2].Error.Error(), "syntax error")
}

func TestNormalizeTree(t *testing.T) {
	assert.Equal(t,
		"(a (b) (c))",
		normalizeTree("  (a\n    (b)\n    (c))\n"),
	)
}
