package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
	"github.com/treelang/treelang/grammar"
	"github.com/treelang/treelang/spec"
)

func init() {
	cmd := &cobra.Command{
		Use:     "describe <report file path>",
		Short:   "Print a compilation report in a readable format",
		Example: `  treelang describe my_language-report.json`,
		Args:    cobra.ExactArgs(1),
		RunE:    runDescribe,
	}
	rootCmd.AddCommand(cmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
	report, err := readReport(args[0])
	if err != nil {
		return err
	}

	return writeReport(os.Stdout, report)
}

func readReport(path string) (*spec.Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("Cannot open the report %s: %w", path, err)
	}
	defer f.Close()

	d, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}

	report := &spec.Report{}
	err = json.Unmarshal(d, report)
	if err != nil {
		return nil, err
	}

	return report, nil
}

const reportTemplate = `# Conflicts

{{ printConflictSummary . }}

# Terminals

{{ range slice .Terminals 1 -}}
{{ printTerminal . }}
{{ end }}
# Productions

{{ range slice .Productions 1 -}}
{{ printProduction . }}
{{ end }}
# States
{{ range .States }}
## State {{ .Number }}

{{ range .Kernel -}}
{{ printItem . }}
{{ end }}
{{ range .Shift -}}
{{ printShift . }}
{{ end -}}
{{ range .Reduce -}}
{{ printReduce . }}
{{ end -}}
{{ range .GoTo -}}
{{ printGoTo . }}
{{ end }}
{{ range .SRConflict -}}
{{ printSRConflict . }}
{{ end -}}
{{ range .RRConflict -}}
{{ printRRConflict . }}
{{ end -}}
{{ end }}`

func writeReport(w io.Writer, report *spec.Report) error {
	termName := func(sym int) string {
		return report.Terminals[sym].Name
	}

	nonTermName := func(sym int) string {
		return report.NonTerminals[sym].Name
	}

	prodName := func(prod int) string {
		return nonTermName(report.Productions[prod].LHS)
	}

	fns := template.FuncMap{
		"printConflictSummary": func(report *spec.Report) string {
			var byPrecCount int
			var byAssocCount int
			var byGroupCount int
			for _, s := range report.States {
				for _, c := range s.SRConflict {
					switch c.ResolvedBy {
					case grammar.ResolvedByPrec.Int():
						byPrecCount++
					case grammar.ResolvedByAssoc.Int():
						byAssocCount++
					case grammar.ResolvedByConflictGroup.Int():
						byGroupCount++
					}
				}
				for _, c := range s.RRConflict {
					switch c.ResolvedBy {
					case grammar.ResolvedByPrec.Int():
						byPrecCount++
					case grammar.ResolvedByConflictGroup.Int():
						byGroupCount++
					}
				}
			}

			if byPrecCount == 0 && byAssocCount == 0 && byGroupCount == 0 {
				return "No conflict"
			}

			var b strings.Builder
			if byPrecCount > 0 {
				fmt.Fprintf(&b, "%v resolved by precedence.\n", pluralConflicts(byPrecCount))
			}
			if byAssocCount > 0 {
				fmt.Fprintf(&b, "%v resolved by associativity.\n", pluralConflicts(byAssocCount))
			}
			if byGroupCount > 0 {
				fmt.Fprintf(&b, "%v retained by a declared conflict.\n", pluralConflicts(byGroupCount))
			}
			return strings.TrimSuffix(b.String(), "\n")
		},
		"printTerminal": func(term *spec.Terminal) string {
			if term.Kind != "" {
				return fmt.Sprintf("%4v %v %v", term.Number, term.Kind, term.Name)
			}
			return fmt.Sprintf("%4v %v", term.Number, term.Name)
		},
		"printProduction": func(prod *spec.Production) string {
			var prec string
			if prod.Precedence != 0 {
				prec = fmt.Sprintf("%2v", prod.Precedence)
			} else {
				prec = " -"
			}

			var assoc string
			if prod.Associativity != "" {
				assoc = prod.Associativity
			} else {
				assoc = "-"
			}

			var b strings.Builder
			fmt.Fprintf(&b, "%v →", nonTermName(prod.LHS))
			if len(prod.RHS) > 0 {
				for _, e := range prod.RHS {
					if e > 0 {
						fmt.Fprintf(&b, " %v", termName(e))
					} else {
						fmt.Fprintf(&b, " %v", nonTermName(e*-1))
					}
				}
			} else {
				fmt.Fprintf(&b, " ε")
			}

			return fmt.Sprintf("%4v %v %v %v", prod.Number, prec, assoc, b.String())
		},
		"printItem": func(item *spec.Item) string {
			prod := report.Productions[item.Production]

			var b strings.Builder
			fmt.Fprintf(&b, "%v →", nonTermName(prod.LHS))
			for i, e := range prod.RHS {
				if i == item.Dot {
					fmt.Fprintf(&b, " ・")
				}
				if e > 0 {
					fmt.Fprintf(&b, " %v", termName(e))
				} else {
					fmt.Fprintf(&b, " %v", nonTermName(e*-1))
				}
			}
			if item.Dot >= len(prod.RHS) {
				fmt.Fprintf(&b, " ・")
			}

			return fmt.Sprintf("%4v %v", prod.Number, b.String())
		},
		"printShift": func(tran *spec.Transition) string {
			return fmt.Sprintf("shift  %4v on %v", tran.State, termName(tran.Symbol))
		},
		"printReduce": func(reduce *spec.Reduce) string {
			var b strings.Builder
			{
				fmt.Fprintf(&b, "%v", termName(reduce.LookAhead[0]))
				for _, a := range reduce.LookAhead[1:] {
					fmt.Fprintf(&b, ", %v", termName(a))
				}
			}
			return fmt.Sprintf("reduce %4v on %v", reduce.Production, b.String())
		},
		"printGoTo": func(tran *spec.Transition) string {
			return fmt.Sprintf("goto   %4v on %v", tran.State, nonTermName(tran.Symbol))
		},
		"printSRConflict": func(sr *spec.SRConflict) string {
			var adopted string
			switch {
			case sr.AdoptedState != nil:
				adopted = fmt.Sprintf("shift %v", *sr.AdoptedState)
			case sr.AdoptedProduction != nil:
				adopted = fmt.Sprintf("reduce %v", *sr.AdoptedProduction)
			}
			var resolvedBy string
			switch sr.ResolvedBy {
			case grammar.ResolvedByPrec.Int():
				if sr.AdoptedState != nil {
					resolvedBy = fmt.Sprintf("the shifted rules have higher precedence than rule %v", prodName(sr.Production))
				} else {
					resolvedBy = fmt.Sprintf("rule %v has higher precedence than the shifted rules", prodName(sr.Production))
				}
			case grammar.ResolvedByAssoc.Int():
				if sr.AdoptedState != nil {
					resolvedBy = fmt.Sprintf("rule %v is right associative", prodName(sr.Production))
				} else {
					resolvedBy = fmt.Sprintf("rule %v is left associative", prodName(sr.Production))
				}
			case grammar.ResolvedByConflictGroup.Int():
				resolvedBy = "a declared conflict retains every action"
			default:
				resolvedBy = "?" // This is a bug.
			}
			return fmt.Sprintf("shift/reduce conflict (shift %v, reduce %v) on %v: %v adopted because %v", sr.State, sr.Production, termName(sr.Symbol), adopted, resolvedBy)
		},
		"printRRConflict": func(rr *spec.RRConflict) string {
			var resolvedBy string
			switch rr.ResolvedBy {
			case grammar.ResolvedByPrec.Int():
				resolvedBy = fmt.Sprintf("rule %v has the highest precedence", prodName(rr.AdoptedProduction))
			case grammar.ResolvedByConflictGroup.Int():
				resolvedBy = "a declared conflict retains every action"
			default:
				resolvedBy = "?" // This is a bug.
			}
			return fmt.Sprintf("reduce/reduce conflict (%v, %v) on %v: reduce %v adopted because %v", rr.Production1, rr.Production2, termName(rr.Symbol), rr.AdoptedProduction, resolvedBy)
		},
	}

	tmpl, err := template.New("").Funcs(fns).Parse(reportTemplate)
	if err != nil {
		return err
	}

	return tmpl.Execute(w, report)
}

func pluralConflicts(n int) string {
	if n == 1 {
		return "1 conflict"
	}
	return fmt.Sprintf("%v conflicts", n)
}
