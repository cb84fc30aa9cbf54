package filter

import (
	"github.com/papercomputeco/jukebox/pkg/tagkey"
)

// Comparator orders songs by one tag.
type Comparator struct {
	Tag        tagkey.Key
	Descending bool
}

// NewComparator parses a comparator; order is "ascending" (the default when
// empty) or "descending".
func NewComparator(tag, order string) (Comparator, error) {
	key, err := tagkey.Parse(tag)
	if err != nil {
		return Comparator{}, err
	}

	switch order {
	case "", "ascending":
		return Comparator{Tag: key}, nil
	case "descending":
		return Comparator{Tag: key, Descending: true}, nil
	default:
		return Comparator{}, syntaxErrorf("`order` must be 'ascending' or 'descending'")
	}
}

// Compare orders lhs and rhs. A song carrying the tag sorts after one that
// does not.
func (c Comparator) Compare(lhs, rhs Tags) int {
	l, lok := lhs.Get(c.Tag)
	r, rok := rhs.Get(c.Tag)

	var ord int
	switch {
	case lok && rok:
		ord = c.Tag.CompareValues(l, r)
	case lok:
		ord = 1
	case rok:
		ord = -1
	}

	if c.Descending {
		return -ord
	}
	return ord
}

// Chain compares by each comparator in turn until one is decisive.
func Chain(comparators []Comparator) func(lhs, rhs Tags) int {
	return func(lhs, rhs Tags) int {
		for _, c := range comparators {
			if ord := c.Compare(lhs, rhs); ord != 0 {
				return ord
			}
		}
		return 0
	}
}
