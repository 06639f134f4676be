/*
Package semtok turns tokenizer output into editor semantic tokens.

Scopes are mapped to a small set of kinds by dot-prefix, innermost scope first:

	Scope prefix                 Kind
	------------                 ----
	comment                      comment
	string                       string
	constant.numeric             number
	keyword.operator             operator
	keyword, storage.modifier    keyword
	entity.name.function         function
	support.function             function
	variable                     variable
	entity.name.type, storage.type,
	support.type, support.class  type

Tokens with no mapped scope (plain text, punctuation) produce nothing. Adjacent tokens of the
same kind on one line are merged, so a block comment's delimiters and body come out as a
single entry.

	lines, err := tokenizer.New(g, store).Tokenize(ctx, src)
	if err != nil {
	    return err
	}
	data := semtok.Encode(semtok.FromLines(lines))
*/
package semtok
