package tester

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/treelang/treelang/driver"
	"github.com/treelang/treelang/spec"
)

// TestCase is one corpus entry: a named source text and the parenthesized
// tree the parser is expected to produce for it.
type TestCase struct {
	Name     string
	Source   []byte
	Expected string
}

// ParseTestCases reads a corpus. A corpus holds any number of cases of the
// form:
//
//	===
//	case name
//	===
//	source text
//	---
//	(expected tree)
func ParseTestCases(r io.Reader) ([]*TestCase, error) {
	const (
		caseDelim   = "==="
		outputDelim = "---"
	)

	var cases []*TestCase
	var c *TestCase
	var srcLines, expLines []string
	inName := false
	inSource := false

	flush := func() {
		if c == nil {
			return
		}
		c.Source = []byte(strings.Join(srcLines, "\n"))
		c.Expected = strings.Join(expLines, "\n")
		cases = append(cases, c)
		c = nil
		srcLines = nil
		expLines = nil
	}

	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := scanner.Text()
		switch {
		case strings.TrimSpace(line) == caseDelim:
			if inName {
				// The second delimiter closes the name block and opens the
				// source block.
				inName = false
				inSource = true
				continue
			}
			flush()
			c = &TestCase{}
			inName = true
		case inName:
			c.Name = strings.TrimSpace(line)
		case strings.TrimSpace(line) == outputDelim && inSource:
			inSource = false
		case inSource:
			srcLines = append(srcLines, line)
		case c != nil:
			expLines = append(expLines, line)
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, err
	}
	flush()

	if len(cases) == 0 {
		return nil, fmt.Errorf("a corpus must contain at least one test case")
	}
	for _, c := range cases {
		if c.Name == "" {
			return nil, fmt.Errorf("a test case must have a name")
		}
		if strings.TrimSpace(c.Expected) == "" {
			return nil, fmt.Errorf("a test case must have an expected tree: %v", c.Name)
		}
	}

	return cases, nil
}

type TestCaseWithMetadata struct {
	TestCase *TestCase
	FilePath string
	Error    error
}

// ListTestCases collects the test cases under a path. A directory is walked
// recursively; a file may hold any number of cases.
func ListTestCases(testPath string) []*TestCaseWithMetadata {
	fi, err := os.Stat(testPath)
	if err != nil {
		return []*TestCaseWithMetadata{
			{
				FilePath: testPath,
				Error:    err,
			},
		}
	}
	if !fi.IsDir() {
		cs, err := parseTestCaseFile(testPath)
		if err != nil {
			return []*TestCaseWithMetadata{
				{
					FilePath: testPath,
					Error:    err,
				},
			}
		}
		var cases []*TestCaseWithMetadata
		for _, c := range cs {
			cases = append(cases, &TestCaseWithMetadata{
				TestCase: c,
				FilePath: testPath,
			})
		}
		return cases
	}

	es, err := os.ReadDir(testPath)
	if err != nil {
		return []*TestCaseWithMetadata{
			{
				FilePath: testPath,
				Error:    err,
			},
		}
	}
	var cases []*TestCaseWithMetadata
	for _, e := range es {
		cs := ListTestCases(filepath.Join(testPath, e.Name()))
		cases = append(cases, cs...)
	}
	return cases
}

func parseTestCaseFile(testCasePath string) ([]*TestCase, error) {
	f, err := os.Open(testCasePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ParseTestCases(f)
}

type TestResult struct {
	TestCasePath string
	CaseName     string
	Error        error
	Expected     string
	Actual       string
}

func (r *TestResult) String() string {
	if r.Error != nil {
		const indent = "    "

		msgLines := strings.Split(r.Error.Error(), "\n")
		msg := fmt.Sprintf("Failed %v: %v:\n%v%v", r.TestCasePath, r.CaseName, indent, strings.Join(msgLines, "\n"+indent))
		if r.Expected == "" {
			return msg
		}
		return fmt.Sprintf("%v\n%vexpected: %v\n%vactual:   %v", msg, indent, r.Expected, indent, r.Actual)
	}
	return fmt.Sprintf("Passed %v: %v", r.TestCasePath, r.CaseName)
}

type Tester struct {
	Language *spec.CompiledLanguage
	Cases    []*TestCaseWithMetadata
}

func (t *Tester) Run() []*TestResult {
	var rs []*TestResult
	for _, c := range t.Cases {
		rs = append(rs, runTest(t.Language, c))
	}
	return rs
}

func runTest(lang *spec.CompiledLanguage, c *TestCaseWithMetadata) *TestResult {
	if c.Error != nil {
		return &TestResult{
			TestCasePath: c.FilePath,
			Error:        c.Error,
		}
	}

	p, err := driver.NewParser(lang, bytes.NewReader(c.TestCase.Source))
	if err != nil {
		return &TestResult{
			TestCasePath: c.FilePath,
			CaseName:     c.TestCase.Name,
			Error:        err,
		}
	}

	err = p.Parse()
	if err != nil {
		return &TestResult{
			TestCasePath: c.FilePath,
			CaseName:     c.TestCase.Name,
			Error:        err,
		}
	}

	if synErrs := p.SyntaxErrors(); len(synErrs) > 0 {
		return &TestResult{
			TestCasePath: c.FilePath,
			CaseName:     c.TestCase.Name,
			Error:        fmt.Errorf("syntax error: row: %v, col: %v", synErrs[0].Row, synErrs[0].Col),
		}
	}
	if p.Tree() == nil {
		return &TestResult{
			TestCasePath: c.FilePath,
			CaseName:     c.TestCase.Name,
			Error:        fmt.Errorf("parse tree was not generated"),
		}
	}

	expected := normalizeTree(c.TestCase.Expected)
	actual := normalizeTree(p.Tree().String())
	if expected != actual {
		return &TestResult{
			TestCasePath: c.FilePath,
			CaseName:     c.TestCase.Name,
			Error:        fmt.Errorf("tree mismatch"),
			Expected:     expected,
			Actual:       actual,
		}
	}
	return &TestResult{
		TestCasePath: c.FilePath,
		CaseName:     c.TestCase.Name,
	}
}

// normalizeTree collapses all whitespace runs so that an expected tree can
// be written across multiple lines.
func normalizeTree(tree string) string {
	return strings.Join(strings.Fields(tree), " ")
}
