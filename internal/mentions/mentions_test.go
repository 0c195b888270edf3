package mentions

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtract(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"empty", "", []string{}},
		{"none", "no mentions here", []string{}},
		{"single", "hello @bob", []string{"bob"}},
		{"order kept", "@zed then @amy", []string{"zed", "amy"}},
		{"repeats kept", "hi @B @B", []string{"B", "B"}},
		{"punctuation boundary", "thanks @ann_1, and @joe!", []string{"ann_1", "joe"}},
		{"bare at sign", "mail me @ home", []string{}},
		{"email like", "a@b.com", []string{"b"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Extract(tt.text)
			assert.Equal(t, tt.want, got)
			for _, n := range got {
				assert.False(t, strings.Contains(n, "@"))
			}
		})
	}
}

func TestUnique(t *testing.T) {
	assert.Equal(t, []string{"b", "a"}, Unique([]string{"b", "a", "b", "a"}))
	assert.Equal(t, []string{}, Unique(nil))
}

func TestDiff(t *testing.T) {
	added, removed := Diff("@a @b hi", "@b @c @c")
	assert.Equal(t, []string{"c"}, added)
	assert.Equal(t, []string{"a"}, removed)

	added, removed = Diff("@B hi", "hi")
	assert.Empty(t, added)
	assert.Equal(t, []string{"B"}, removed)

	// case sensitive
	added, removed = Diff("@bob", "@Bob")
	assert.Equal(t, []string{"Bob"}, added)
	assert.Equal(t, []string{"bob"}, removed)
}

func TestDiffDisjoint(t *testing.T) {
	pairs := [][2]string{
		{"", "@x"},
		{"@x @y", "@y @x"},
		{"@a @b @c", "@c @d"},
	}
	for _, p := range pairs {
		added, removed := Diff(p[0], p[1])
		for _, a := range added {
			assert.NotContains(t, removed, a)
		}
	}
}
