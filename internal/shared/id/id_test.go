package id

import (
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerate(t *testing.T) {
	gen := NewGenerator()

	id1 := gen.Generate()
	id2 := gen.Generate()

	assert.NotEqual(t, id1.String(), id2.String())
	assert.Len(t, gen.GenerateString(), 26)
}

func TestGenerateWithPrefix(t *testing.T) {
	gen := NewGenerator()

	for _, prefix := range []string{SessionPrefix, RequestPrefix} {
		id := gen.GenerateWithPrefix(prefix)
		require.True(t, strings.HasPrefix(id, prefix+"_"), id)

		gotPrefix, raw, err := Split(id)
		require.NoError(t, err)
		assert.Equal(t, prefix, gotPrefix)
		assert.Len(t, raw.String(), 26)
	}
}

func TestTypedIDGeneration(t *testing.T) {
	assert.True(t, strings.HasPrefix(NewSessionID().String(), "term_"))
	assert.True(t, strings.HasPrefix(NewRequestID().String(), "req_"))
}

func TestSplitRejectsMalformed(t *testing.T) {
	_, _, err := Split("nounderscore")
	assert.Error(t, err)

	_, _, err = Split("term_notaulid")
	assert.Error(t, err)
}

func TestParseSessionID(t *testing.T) {
	sessionID := NewSessionID()
	parsed, err := ParseSessionID(sessionID.String())
	require.NoError(t, err)
	assert.Equal(t, sessionID, parsed)

	for _, bad := range []string{"", "term_1", NewRequestID().String(), "term-" + NewGenerator().GenerateString()} {
		_, err := ParseSessionID(bad)
		assert.Error(t, err, bad)
	}
}

func TestMonotonicWithinMillisecond(t *testing.T) {
	gen := NewGenerator()

	ids := make([]string, 500)
	for i := range ids {
		ids[i] = gen.GenerateWithPrefix(SessionPrefix)
	}

	assert.True(t, sort.StringsAreSorted(ids), "ids must sort in creation order")
}

func TestConcurrentGeneration(t *testing.T) {
	gen := NewGenerator()

	const goroutines = 50
	const idsPerGoroutine = 100

	var wg sync.WaitGroup
	idChan := make(chan string, goroutines*idsPerGoroutine)

	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < idsPerGoroutine; j++ {
				idChan <- gen.GenerateString()
			}
		}()
	}

	wg.Wait()
	close(idChan)

	seen := make(map[string]bool)
	for id := range idChan {
		assert.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Len(t, seen, goroutines*idsPerGoroutine)
}

func TestDefaultGenerator(t *testing.T) {
	assert.Same(t, Default(), Default())
}

func BenchmarkGenerateWithPrefix(b *testing.B) {
	gen := NewGenerator()

	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = gen.GenerateWithPrefix(SessionPrefix)
	}
}
