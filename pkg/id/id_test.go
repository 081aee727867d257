package id

import (
	"sort"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewIsUniqueAndSortable(t *testing.T) {
	t.Parallel()

	const n = 1000
	ids := make([]string, n)
	for i := range ids {
		ids[i] = New()
	}

	seen := make(map[string]struct{}, n)
	for _, s := range ids {
		assert.Len(t, s, 26)
		seen[s] = struct{}{}
	}
	assert.Len(t, seen, n, "ids must be unique")

	// Generation order matches lexicographic order.
	assert.True(t, sort.StringsAreSorted(ids))
}

func TestPrefixes(t *testing.T) {
	t.Parallel()

	assert.True(t, strings.HasPrefix(Order(), "ORD-"))
	assert.True(t, strings.HasPrefix(Fill(), "FIL-"))
}
