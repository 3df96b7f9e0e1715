// Package command classifies free-text mentions into bot commands.
package command

import "strings"

// Kind identifies the command a mention asks for.
type Kind int

const (
	// Unrecognized mentions are ignored without a reply.
	Unrecognized Kind = iota
	// Add registers a new location for the daily posts.
	Add
	// Show replies with the current chart for a location.
	Show
)

// String returns the command keyword, or "unrecognized".
func (k Kind) String() string {
	switch k {
	case Add:
		return "add"
	case Show:
		return "show"
	default:
		return "unrecognized"
	}
}

// keywords in precedence order: a message containing both is an Add.
var keywords = []Kind{Add, Show}

// Command is a classified mention.
type Command struct {
	Kind  Kind
	Query string // Tokens after the keyword, lower-cased and joined by single spaces.
}

// Parse classifies text. The text is lower-cased and split on whitespace; the
// first keyword found (add before show) decides the kind and every token after
// its first occurrence forms the query. A keyword in last position gives an
// empty query.
func Parse(text string) Command {
	tokens := strings.Fields(strings.ToLower(text))

	for _, kind := range keywords {
		keyword := kind.String()
		for i, tok := range tokens {
			if tok == keyword {
				return Command{Kind: kind, Query: strings.Join(tokens[i+1:], " ")}
			}
		}
	}

	return Command{Kind: Unrecognized}
}
