package derive

import "github.com/kailas-cloud/esmap/internal/mapping"

// Keyword is a method-name operator such as LessThan or Containing.
type Keyword int

const (
	// KwSimple is plain equality; it is also the fallback when a part
	// carries no explicit keyword.
	KwSimple Keyword = iota
	KwNot
	KwContaining
	KwNotContaining
	KwStartingWith
	KwEndingWith
	KwGreaterThan
	KwGreaterThanEqual
	KwLessThan
	KwLessThanEqual
	KwBetween
	KwIn
	KwNotIn
	KwExists
	KwIsNull
	KwIsNotNull
	KwEmpty
	KwNotEmpty
	KwTrue
	KwFalse
	KwWithin
	KwNear
)

// Keyword spellings as hump sequences, longest first so that
// GreaterThanEqual wins over GreaterThan.
var keywordTable = []struct {
	humps []string
	kw    Keyword
}{
	{[]string{"Greater", "Than", "Equal"}, KwGreaterThanEqual},
	{[]string{"Less", "Than", "Equal"}, KwLessThanEqual},
	{[]string{"Is", "Not", "Null"}, KwIsNotNull},
	{[]string{"Is", "Not", "Empty"}, KwNotEmpty},
	{[]string{"Not", "Containing"}, KwNotContaining},
	{[]string{"Greater", "Than"}, KwGreaterThan},
	{[]string{"Less", "Than"}, KwLessThan},
	{[]string{"Starting", "With"}, KwStartingWith},
	{[]string{"Starts", "With"}, KwStartingWith},
	{[]string{"Ending", "With"}, KwEndingWith},
	{[]string{"Ends", "With"}, KwEndingWith},
	{[]string{"Is", "Null"}, KwIsNull},
	{[]string{"Is", "Empty"}, KwEmpty},
	{[]string{"Not", "Null"}, KwIsNotNull},
	{[]string{"Not", "Empty"}, KwNotEmpty},
	{[]string{"Not", "In"}, KwNotIn},
	{[]string{"Containing"}, KwContaining},
	{[]string{"Contains"}, KwContaining},
	{[]string{"Between"}, KwBetween},
	{[]string{"Exists"}, KwExists},
	{[]string{"Within"}, KwWithin},
	{[]string{"Near"}, KwNear},
	{[]string{"Empty"}, KwEmpty},
	{[]string{"True"}, KwTrue},
	{[]string{"False"}, KwFalse},
	{[]string{"Not"}, KwNot},
	{[]string{"In"}, KwIn},
	{[]string{"Is"}, KwSimple},
	{[]string{"Equals"}, KwSimple},
}

// matchKeyword strips the longest trailing keyword from the hump list.
// Returns KwSimple and the input unchanged when nothing matches.
func matchKeyword(humps []string) (Keyword, []string) {
	for _, entry := range keywordTable {
		n := len(entry.humps)
		if n >= len(humps) {
			continue // a keyword may not consume the whole part
		}
		tail := humps[len(humps)-n:]
		match := true
		for i := range tail {
			if tail[i] != entry.humps[i] {
				match = false
				break
			}
		}
		if match {
			return entry.kw, humps[:len(humps)-n]
		}
	}
	return KwSimple, humps
}

// arity is the number of call arguments the keyword consumes for the
// given property. Geo properties under Within and Near take a center
// point plus a distance.
func (k Keyword) arity(p *mapping.Property) int {
	switch k {
	case KwExists, KwIsNull, KwIsNotNull, KwEmpty, KwNotEmpty, KwTrue, KwFalse:
		return 0
	case KwBetween:
		return 2
	case KwWithin, KwNear:
		return 2
	default:
		return 1
	}
}
