package sheetcode

import (
	"bytes"
	"context"
	"errors"
	"regexp"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var codePattern = regexp.MustCompile(`^XTRI-[A-Z2-9]{6}$`)

type fakeChecker struct {
	mu       sync.Mutex
	existing map[string]bool
	calls    int
	err      error
	always   bool
}

func (f *fakeChecker) SheetCodeExists(_ context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return false, f.err
	}
	if f.always {
		return true, nil
	}
	return f.existing[code], nil
}

type fakeClaimer struct {
	held map[string]bool
}

func (f *fakeClaimer) Claim(_ context.Context, code string) (bool, error) {
	if f.held[code] {
		return false, nil
	}
	f.held[code] = true
	return true, nil
}

// repeat returns a reader yielding each block in turn, Length bytes per code.
func repeat(blocks ...[]byte) *bytes.Reader {
	var buf []byte
	for _, b := range blocks {
		buf = append(buf, b...)
	}
	return bytes.NewReader(buf)
}

func TestAlphabet(t *testing.T) {
	assert.Len(t, Alphabet, 32)
	for _, ambiguous := range "0O1I" {
		assert.NotContains(t, Alphabet, string(ambiguous))
	}
	seen := map[rune]bool{}
	for _, r := range Alphabet {
		assert.False(t, seen[r], "duplicate symbol %q", r)
		seen[r] = true
	}
}

func TestGenerator_Generate(t *testing.T) {
	g := NewGenerator(nil)
	for i := 0; i < 200; i++ {
		code, err := g.Generate()
		require.NoError(t, err)
		assert.Regexp(t, codePattern, code)
		assert.True(t, Valid(code))
	}
}

func TestGenerator_GenerateMapsBytesOntoAlphabet(t *testing.T) {
	g := NewGenerator(nil, WithRandom(repeat([]byte{0, 1, 31, 32, 255, 64})))
	code, err := g.Generate()
	require.NoError(t, err)
	assert.Equal(t, "XTRI-AB9A9A", code)
}

func TestGenerator_GenerateRandomFailure(t *testing.T) {
	g := NewGenerator(nil, WithRandom(bytes.NewReader([]byte{1, 2})))
	_, err := g.Generate()
	require.Error(t, err)
}

func TestValid(t *testing.T) {
	tests := []struct {
		code string
		want bool
	}{
		{"XTRI-7K9M3Q", true},
		{"XTRI-ABCDEF", true},
		{"XTRI-ABCDE0", false},
		{"XTRI-ABCDEO", false},
		{"XTRI-ABCDEI", false},
		{"XTRI-ABCDE", false},
		{"XTRI-ABCDEFG", false},
		{"ABCD-ABCDEF", false},
		{"xtri-abcdef", false},
		{"", false},
	}
	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, Valid(tt.code))
		})
	}
}

func TestGenerator_GenerateUnique(t *testing.T) {
	ctx := context.Background()

	t.Run("returns requested count of distinct valid codes", func(t *testing.T) {
		checker := &fakeChecker{existing: map[string]bool{}}
		g := NewGenerator(checker)

		codes, err := g.GenerateUnique(ctx, 500)
		require.NoError(t, err)
		require.Len(t, codes, 500)

		seen := map[string]bool{}
		for _, c := range codes {
			assert.True(t, Valid(c))
			assert.False(t, seen[c], "duplicate code %s", c)
			seen[c] = true
		}
	})

	t.Run("zero count", func(t *testing.T) {
		codes, err := NewGenerator(&fakeChecker{}).GenerateUnique(ctx, 0)
		require.NoError(t, err)
		assert.Empty(t, codes)
	})

	t.Run("skips codes already in the store", func(t *testing.T) {
		// first candidate collides with the store, second is free
		checker := &fakeChecker{existing: map[string]bool{"XTRI-AAAAAA": true}}
		g := NewGenerator(checker, WithRandom(repeat(
			[]byte{0, 0, 0, 0, 0, 0},
			[]byte{1, 1, 1, 1, 1, 1},
		)))

		codes, err := g.GenerateUnique(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"XTRI-BBBBBB"}, codes)
		assert.Equal(t, 2, checker.calls)
	})

	t.Run("skips duplicates within the call without a store round-trip", func(t *testing.T) {
		checker := &fakeChecker{existing: map[string]bool{}}
		g := NewGenerator(checker, WithRandom(repeat(
			[]byte{2, 2, 2, 2, 2, 2},
			[]byte{2, 2, 2, 2, 2, 2},
			[]byte{3, 3, 3, 3, 3, 3},
		)))

		codes, err := g.GenerateUnique(ctx, 2)
		require.NoError(t, err)
		assert.Equal(t, []string{"XTRI-CCCCCC", "XTRI-DDDDDD"}, codes)
		assert.Equal(t, 2, checker.calls)
	})

	t.Run("never returns pre-seeded codes across many calls", func(t *testing.T) {
		existing := map[string]bool{}
		seed := NewGenerator(nil)
		for i := 0; i < 1000; i++ {
			c, err := seed.Generate()
			require.NoError(t, err)
			existing[c] = true
		}
		checker := &fakeChecker{existing: existing}
		g := NewGenerator(checker)

		all := map[string]bool{}
		for call := 0; call < 10; call++ {
			codes, err := g.GenerateUnique(ctx, 50)
			require.NoError(t, err)
			for _, c := range codes {
				assert.False(t, existing[c])
				assert.False(t, all[c])
				all[c] = true
			}
		}
		assert.Len(t, all, 500)
	})

	t.Run("bounds total attempts at three times the count", func(t *testing.T) {
		checker := &fakeChecker{always: true}
		g := NewGenerator(checker)

		_, err := g.GenerateUnique(ctx, 4)
		require.Error(t, err)
		assert.True(t, errors.Is(err, ErrGenerationExhausted))

		var exhausted *ExhaustedError
		require.ErrorAs(t, err, &exhausted)
		assert.Equal(t, 4, exhausted.Requested)
		assert.Equal(t, 0, exhausted.Generated)
		assert.Equal(t, 12, exhausted.Attempts)
		assert.Equal(t, 12, checker.calls)
	})

	t.Run("store errors consume the budget and surface", func(t *testing.T) {
		storeErr := errors.New("connection refused")
		checker := &fakeChecker{err: storeErr}
		g := NewGenerator(checker)

		_, err := g.GenerateUnique(ctx, 2)
		require.Error(t, err)
		assert.ErrorIs(t, err, ErrGenerationExhausted)
		assert.ErrorIs(t, err, storeErr)
		assert.Contains(t, err.Error(), "connection refused")
		assert.Equal(t, 6, checker.calls)
	})

	t.Run("claimed candidates count as collisions", func(t *testing.T) {
		claimer := &fakeClaimer{held: map[string]bool{"XTRI-AAAAAA": true}}
		checker := &fakeChecker{existing: map[string]bool{}}
		g := NewGenerator(checker, WithClaimer(claimer), WithRandom(repeat(
			[]byte{0, 0, 0, 0, 0, 0},
			[]byte{4, 4, 4, 4, 4, 4},
		)))

		codes, err := g.GenerateUnique(ctx, 1)
		require.NoError(t, err)
		assert.Equal(t, []string{"XTRI-EEEEEE"}, codes)
		assert.Equal(t, 1, checker.calls)
		assert.True(t, claimer.held["XTRI-EEEEEE"])
	})

	t.Run("cancelled context stops generation", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()
		_, err := NewGenerator(&fakeChecker{}).GenerateUnique(cctx, 3)
		assert.ErrorIs(t, err, context.Canceled)
	})
}
