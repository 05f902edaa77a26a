package grammar

type SemanticError struct {
	message string
}

func newSemanticError(message string) *SemanticError {
	return &SemanticError{
		message: message,
	}
}

func (e *SemanticError) Error() string {
	return e.message
}

var (
	semErrNoGrammarName   = newSemanticError("name must be specified")
	semErrNoProduction    = newSemanticError("a grammar needs at least one rule")
	semErrUndefinedSym    = newSemanticError("undefined symbol")
	semErrDuplicateName   = newSemanticError("duplicate rule name")
	semErrEmptyString     = newSemanticError("a string rule must not be empty")
	semErrEmptyPattern    = newSemanticError("a pattern rule must not be empty")
	semErrInvalidExtra    = newSemanticError("an extra must be a single token")
	semErrInvalidConflict = newSemanticError("a conflict must reference defined rules")
)
