package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	verr "github.com/treelang/treelang/error"
	"github.com/treelang/treelang/grammar"
	"github.com/treelang/treelang/spec"
)

var compileFlags = struct {
	output   *string
	compress *bool
}{}

func init() {
	cmd := &cobra.Command{
		Use:     "compile <grammar file path>",
		Short:   "Compile a grammar into a parsing table",
		Example: `  treelang compile grammar.json -o my_language.json`,
		Args:    cobra.MaximumNArgs(1),
		RunE:    runCompile,
	}
	compileFlags.output = cmd.Flags().StringP("output", "o", "", "output file path (default stdout)")
	compileFlags.compress = cmd.Flags().Bool("compress", false, "compress the parsing table")
	rootCmd.AddCommand(cmd)
}

func runCompile(cmd *cobra.Command, args []string) (retErr error) {
	var grmPath string
	if len(args) > 0 {
		grmPath = args[0]
	}
	defer func() {
		specErrs, ok := retErr.(verr.SpecErrors)
		if !ok {
			return
		}
		sourceName := grmPath
		if sourceName == "" {
			sourceName = "stdin"
		}
		for _, err := range specErrs {
			err.SourceName = sourceName
		}
	}()

	g, err := readGrammar(grmPath)
	if err != nil {
		return err
	}

	opts := []grammar.CompileOption{
		grammar.EnableReporting(),
	}
	if *compileFlags.compress {
		opts = append(opts, grammar.EnableTableCompression())
	}

	lang, report, err := grammar.Compile(g, opts...)
	if err != nil {
		return err
	}

	err = writeCompiledLanguageAndReport(lang, report, *compileFlags.output)
	if err != nil {
		return fmt.Errorf("Cannot write the output files: %w", err)
	}

	var resolvedCount int
	for _, s := range report.States {
		resolvedCount += len(s.SRConflict) + len(s.RRConflict)
	}
	if resolvedCount == 1 {
		fmt.Fprintf(os.Stderr, "1 conflict resolved\n")
	} else if resolvedCount > 1 {
		fmt.Fprintf(os.Stderr, "%v conflicts resolved\n", resolvedCount)
	}

	return nil
}

func readGrammar(path string) (*grammar.Grammar, error) {
	var src io.Reader
	if path != "" {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("Cannot open the grammar file %s: %w", path, err)
		}
		defer f.Close()
		src = f
	} else {
		src = os.Stdin
	}

	desc, err := spec.Parse(src)
	if err != nil {
		return nil, err
	}

	b := grammar.GrammarBuilder{
		Desc: desc,
	}
	return b.Build()
}

// writeCompiledLanguageAndReport writes a compiled language and a report to files located at a specified path.
// This function selects one of the following output methods depending on how the path is specified.
//
//  1. When the path is a directory path, the compiled language and the report go to
//     <path>/<grammar-name>.json and <path>/<grammar-name>-report.json, respectively.
//  2. When the path is a file path or a non-existent path, the path names the compiled language file,
//     and the report goes to <grammar-name>-report.json in the same directory.
//  3. When the path is an empty string, the compiled language goes to stdout and the report to
//     <current-directory>/<grammar-name>-report.json.
func writeCompiledLanguageAndReport(lang *spec.CompiledLanguage, report *spec.Report, path string) error {
	langPath, reportPath, err := makeOutputFilePaths(lang.Name, path)
	if err != nil {
		return err
	}

	{
		var langW io.Writer
		if langPath != "" {
			langFile, err := os.OpenFile(langPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
			if err != nil {
				return err
			}
			defer langFile.Close()
			langW = langFile
		} else {
			langW = os.Stdout
		}

		b, err := json.Marshal(lang)
		if err != nil {
			return err
		}
		fmt.Fprintf(langW, "%v\n", string(b))
	}

	{
		reportFile, err := os.OpenFile(reportPath, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0644)
		if err != nil {
			return err
		}
		defer reportFile.Close()

		b, err := json.Marshal(report)
		if err != nil {
			return err
		}
		fmt.Fprintf(reportFile, "%v\n", string(b))
	}

	return nil
}

func makeOutputFilePaths(gramName string, path string) (string, string, error) {
	reportFileName := gramName + "-report.json"

	if path == "" {
		wd, err := os.Getwd()
		if err != nil {
			return "", "", err
		}
		return "", filepath.Join(wd, reportFileName), nil
	}

	fi, err := os.Stat(path)
	if err != nil && !os.IsNotExist(err) {
		return "", "", err
	}
	if os.IsNotExist(err) || !fi.IsDir() {
		dir, _ := filepath.Split(path)
		return path, filepath.Join(dir, reportFileName), nil
	}

	return filepath.Join(path, gramName+".json"), filepath.Join(path, reportFileName), nil
}
