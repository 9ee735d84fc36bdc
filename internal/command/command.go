// Package command classifies chat utterances into structured assistant
// actions. Anything that does not match a known pattern falls through to the
// language model.
package command

import (
	"regexp"
	"strconv"
	"strings"
)

// Kind identifies the action a parsed utterance maps to.
type Kind string

const (
	// KindChat means the text carries no structured action and should be
	// answered by the model.
	KindChat Kind = "chat"

	KindAddItem    Kind = "add_item"
	KindRemoveItem Kind = "remove_item"
	KindQueryStock Kind = "query_stock"
	KindListItems  Kind = "list_items"
)

// Command is a classified utterance.
type Command struct {
	Kind     Kind
	ItemName string
	Quantity int64
}

var (
	addPattern    = regexp.MustCompile(`(?i)^(?:add|bought|got|put)\s+(?:(\d+)\s+)?(.+?)(?:\s+to\s+(?:the\s+)?(?:inventory|list|pantry))?[.!?]*$`)
	removePattern = regexp.MustCompile(`(?i)^(?:remove|used|finished|take)\s+(?:(\d+)\s+)?(.+?)(?:\s+from\s+(?:the\s+)?(?:inventory|list|pantry))?[.!?]*$`)
	queryPattern  = regexp.MustCompile(`(?i)^(?:how\s+(?:much|many)\s+(.+?)\s+(?:do\s+(?:i|we)\s+have|(?:is|are)\s+(?:there|left))|do\s+(?:i|we)\s+have\s+(?:any\s+)?(.+?))[?.!]*$`)
	listPattern   = regexp.MustCompile(`(?i)^(?:list|show|what(?:'s|\s+is)\s+in)\s+(?:my\s+|the\s+)?(?:inventory|pantry|items|stock)[?.!]*$`)
)

// Parse classifies text. The zero quantity on add/remove defaults to one.
func Parse(text string) Command {
	text = strings.TrimSpace(text)

	if listPattern.MatchString(text) {
		return Command{Kind: KindListItems}
	}

	if m := queryPattern.FindStringSubmatch(text); m != nil {
		name := m[1]
		if name == "" {
			name = m[2]
		}
		return Command{Kind: KindQueryStock, ItemName: normalizeName(name)}
	}

	if m := addPattern.FindStringSubmatch(text); m != nil {
		return Command{Kind: KindAddItem, ItemName: normalizeName(m[2]), Quantity: parseQuantity(m[1])}
	}

	if m := removePattern.FindStringSubmatch(text); m != nil {
		return Command{Kind: KindRemoveItem, ItemName: normalizeName(m[2]), Quantity: parseQuantity(m[1])}
	}

	return Command{Kind: KindChat}
}

func parseQuantity(s string) int64 {
	if s == "" {
		return 1
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 1 {
		return 1
	}
	return n
}

func normalizeName(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
