package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"runtime/debug"

	"github.com/spf13/cobra"
	"github.com/treelang/treelang/driver"
	"github.com/treelang/treelang/spec"
)

var parseFlags = struct {
	source    *string
	onlyParse *bool
}{}

func init() {
	cmd := &cobra.Command{
		Use:     "parse <compiled language file path>",
		Short:   "Parse a text stream",
		Example: `  cat src | treelang parse my_language.json`,
		Args:    cobra.ExactArgs(1),
		RunE:    runParse,
	}
	parseFlags.source = cmd.Flags().StringP("source", "s", "", "source file path (default stdin)")
	parseFlags.onlyParse = cmd.Flags().Bool("only-parse", false, "when this option is enabled, the parser doesn't build a syntax tree")
	rootCmd.AddCommand(cmd)
}

func runParse(cmd *cobra.Command, args []string) (retErr error) {
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		err, ok := v.(error)
		if !ok {
			retErr = fmt.Errorf("an unexpected error occurred: %v", v)
		} else {
			retErr = err
		}
		fmt.Fprintf(os.Stderr, "%v:\n%v", retErr, string(debug.Stack()))
	}()

	lang, err := readCompiledLanguage(args[0])
	if err != nil {
		return fmt.Errorf("Cannot read the compiled language: %w", err)
	}

	var src io.Reader = os.Stdin
	if *parseFlags.source != "" {
		f, err := os.Open(*parseFlags.source)
		if err != nil {
			return fmt.Errorf("Cannot open the source file %s: %w", *parseFlags.source, err)
		}
		defer f.Close()
		src = f
	}

	var opts []driver.ParserOption
	if *parseFlags.onlyParse {
		opts = append(opts, driver.DisableTree())
	}

	p, err := driver.NewParser(lang, src, opts...)
	if err != nil {
		return err
	}

	err = p.Parse()
	if err != nil {
		return err
	}

	synErrs := p.SyntaxErrors()
	for _, synErr := range synErrs {
		tok := synErr.Token

		var msg string
		switch {
		case tok.EOF:
			msg = "<eof>"
		case tok.Invalid:
			msg = fmt.Sprintf("'%v' (<invalid>)", string(tok.Lexeme))
		default:
			msg = fmt.Sprintf("'%v'", string(tok.Lexeme))
		}

		fmt.Fprintf(os.Stderr, "%v:%v: %v: %v", synErr.Row+1, synErr.Col+1, synErr.Message, msg)
		if len(synErr.ExpectedTerminals) > 0 {
			fmt.Fprintf(os.Stderr, "; expected: %v", synErr.ExpectedTerminals[0])
			for _, t := range synErr.ExpectedTerminals[1:] {
				fmt.Fprintf(os.Stderr, ", %v", t)
			}
		}
		fmt.Fprintf(os.Stderr, "\n")
	}
	if len(synErrs) > 0 {
		return fmt.Errorf("Syntax error")
	}

	if !*parseFlags.onlyParse {
		driver.PrintTree(os.Stdout, p.Tree())
	}

	return nil
}

func readCompiledLanguage(path string) (*spec.CompiledLanguage, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	data, err := io.ReadAll(f)
	if err != nil {
		return nil, err
	}
	lang := &spec.CompiledLanguage{}
	err = json.Unmarshal(data, lang)
	if err != nil {
		return nil, err
	}
	return lang, nil
}
