package normalize

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKey(t *testing.T) {
	n := New("en")

	tests := []struct {
		name       string
		raw        string
		entityType string
		want       string
	}{
		{"empty", "", "person", ""},
		{"lowercases", "Dana Cohen", "person", "dana cohen"},
		{"collapses whitespace", "  Dana \t  Cohen\n", "person", "dana cohen"},
		{"trims punctuation", "\"Acme Corp.\"", "organization", "acme corp"},
		{"possessive", "Dana's", "person", "dana"},
		{"curly possessive", "Acme’s", "organization", "acme"},
		{"possessive kept for topics", "Let's", "topic", "let's"},
		{"keeps symbols", "C#", "technology", "c#"},
		{"keeps inner dots", "Node.js", "technology", "node.js"},
		{"keeps leading dot of a name", ".NET", "technology", ".net"},
		{"leading dot inside brackets", "(.NET)", "technology", ".net"},
		{"drops leading ellipsis", "...Atlas", "project", "atlas"},
		{"drops trailing dot", "Acme Inc.", "organization", "acme inc"},
		{"nfkc", "ＡＰＩ", "technology", "api"},
		{"punctuation only", "...", "other", ""},
		{"hebrew untouched", "דני כהן", "person", "דני כהן"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, n.Key(tt.raw, tt.entityType))
		})
	}
}

func TestKey_Deterministic(t *testing.T) {
	n := New("en")
	assert.Equal(t, n.Key("PostgreSQL", "technology"), n.Key("postgresql", "technology"))
	assert.Equal(t, n.Key("Tel  Aviv", "location"), n.Key("tel aviv", "location"))
}

func TestKey_TurkishDotlessI(t *testing.T) {
	tr := New("tr-TR")
	assert.Equal(t, "tr", tr.Language())
	assert.Equal(t, "ırmak", tr.Key("IRMAK", "location"))
	assert.Equal(t, "istanbul", tr.Key("İSTANBUL", "location"))

	en := New("en")
	assert.Equal(t, "irmak", en.Key("IRMAK", "location"))
}

func TestKey_ConcurrentUse(t *testing.T) {
	n := New("en")
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.Equal(t, "anthropic", n.Key("Anthropic", "organization"))
		}()
	}
	wg.Wait()
}

func TestDisplay(t *testing.T) {
	assert.Equal(t, "Dana Cohen", Display("  Dana   Cohen "))
}
