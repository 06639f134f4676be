package grammar

import (
	"gitlab.com/tozd/go/errors"
)

var (
	// ErrUnresolvedReference is returned when an include points at a repository entry or
	// foreign grammar that does not exist.
	ErrUnresolvedReference = errors.Base("unresolved reference")

	// ErrUnrecognisedGrammar is returned by a Store lookup miss.
	ErrUnrecognisedGrammar = errors.Base("unrecognised grammar")

	// ErrMalformedGrammar is returned when a grammar document does not have the structure of a
	// grammar: a missing scopeName, a rule list that is not a list, an unknown rule shape.
	ErrMalformedGrammar = errors.Base("malformed grammar")

	// ErrInvalidRegex is returned the first time a rule's regular expression fails to compile.
	ErrInvalidRegex = errors.Base("invalid regex")
)
