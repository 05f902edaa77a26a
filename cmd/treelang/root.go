package main

import (
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "treelang",
	Short: "Generate a portable parsing table from a declarative grammar",
	Long: `treelang compiles a grammar written as declarative rule expressions into
a portable LALR parsing table, and runs a parser driven by that table.
The compiler detects every shift/reduce and reduce/reduce conflict the
grammar produces and either resolves it from the precedence and
associativity the rules declare or reports it with the interpretations
that caused it.`,
	SilenceErrors: true,
	SilenceUsage:  true,
}

func Execute() error {
	return rootCmd.Execute()
}
