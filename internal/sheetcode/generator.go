// Package sheetcode mints the human-readable identifiers printed on answer
// sheets and embedded in their QR codes.
package sheetcode

import (
	"context"
	"crypto/rand"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
)

const (
	// Prefix starts every sheet code.
	Prefix = "XTRI-"
	// Length is the number of random symbols after the prefix.
	Length = 6
	// Alphabet has 32 symbols and omits 0, O, 1 and I.
	Alphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	// AttemptFactor bounds the total attempts of one GenerateUnique call to
	// AttemptFactor x count.
	AttemptFactor = 3
)

// ErrGenerationExhausted is matched by every *ExhaustedError.
var ErrGenerationExhausted = errors.New("sheet code generation exhausted")

// ExhaustedError reports a GenerateUnique call that ran out of attempts.
type ExhaustedError struct {
	Requested int
	Generated int
	Attempts  int
	LastErr   error
}

func (e *ExhaustedError) Error() string {
	msg := fmt.Sprintf("sheet code generation exhausted: %d of %d codes after %d attempts",
		e.Generated, e.Requested, e.Attempts)
	if e.LastErr != nil {
		msg += ": last error: " + e.LastErr.Error()
	}
	return msg
}

func (e *ExhaustedError) Is(target error) bool {
	return target == ErrGenerationExhausted
}

func (e *ExhaustedError) Unwrap() error {
	return e.LastErr
}

// Checker reports whether a code is already persisted.
type Checker interface {
	SheetCodeExists(ctx context.Context, code string) (bool, error)
}

// Claimer reserves a candidate so that concurrent generators do not hand out
// the same code before either has been written. Claim returns false when the
// candidate is already held elsewhere.
type Claimer interface {
	Claim(ctx context.Context, code string) (bool, error)
}

// Generator produces sheet codes.
type Generator struct {
	checker Checker
	claimer Claimer
	random  io.Reader
	logger  *slog.Logger
}

// Option configures a Generator.
type Option func(*Generator)

// WithClaimer adds a cross-process reservation step before the store check.
func WithClaimer(c Claimer) Option {
	return func(g *Generator) { g.claimer = c }
}

// WithRandom replaces the entropy source. Tests use it for reproducible runs.
func WithRandom(r io.Reader) Option {
	return func(g *Generator) { g.random = r }
}

// WithLogger sets the logger used for retry diagnostics.
func WithLogger(l *slog.Logger) Option {
	return func(g *Generator) { g.logger = l }
}

// NewGenerator returns a generator that verifies candidates against checker.
// A nil checker skips the store round-trip and only enforces in-call
// uniqueness, which is what offline tooling wants.
func NewGenerator(checker Checker, opts ...Option) *Generator {
	g := &Generator{
		checker: checker,
		random:  rand.Reader,
		logger:  slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Generate returns one syntactically valid code. Uniqueness is not checked.
func (g *Generator) Generate() (string, error) {
	var buf [Length]byte
	if _, err := io.ReadFull(g.random, buf[:]); err != nil {
		return "", fmt.Errorf("read random bytes: %w", err)
	}

	var sb strings.Builder
	sb.Grow(len(Prefix) + Length)
	sb.WriteString(Prefix)
	for _, b := range buf {
		// 256 is a multiple of 32, so the modulo is unbiased.
		sb.WriteByte(Alphabet[int(b)%len(Alphabet)])
	}
	return sb.String(), nil
}

// GenerateUnique returns exactly count codes that are valid, unique within the
// call and absent from the store at the time of the check. The call makes at
// most AttemptFactor x count attempts in total, not per code; running out
// returns an *ExhaustedError.
//
// The store check is an optimization. Two callers can still race between the
// check and the insert, so the store's unique constraint stays authoritative
// and callers must treat a duplicate-key failure on insert as retryable.
func (g *Generator) GenerateUnique(ctx context.Context, count int) ([]string, error) {
	if count <= 0 {
		return []string{}, nil
	}

	maxAttempts := AttemptFactor * count
	codes := make([]string, 0, count)
	seen := make(map[string]struct{}, count)

	var attempts int
	var lastErr error
	for len(codes) < count && attempts < maxAttempts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		attempts++

		code, err := g.Generate()
		if err != nil {
			return nil, err
		}
		if _, dup := seen[code]; dup {
			continue
		}

		ok, err := g.available(ctx, code)
		if err != nil {
			lastErr = err
			g.logger.WarnContext(ctx, "Sheet code availability check failed",
				"attempt", attempts,
				"error", err)
			continue
		}
		if !ok {
			g.logger.DebugContext(ctx, "Sheet code collision", "code", code, "attempt", attempts)
			continue
		}

		seen[code] = struct{}{}
		codes = append(codes, code)
	}

	if len(codes) < count {
		return nil, &ExhaustedError{
			Requested: count,
			Generated: len(codes),
			Attempts:  attempts,
			LastErr:   lastErr,
		}
	}
	return codes, nil
}

func (g *Generator) available(ctx context.Context, code string) (bool, error) {
	if g.claimer != nil {
		claimed, err := g.claimer.Claim(ctx, code)
		if err != nil {
			return false, fmt.Errorf("claim sheet code: %w", err)
		}
		if !claimed {
			return false, nil
		}
	}
	if g.checker == nil {
		return true, nil
	}
	exists, err := g.checker.SheetCodeExists(ctx, code)
	if err != nil {
		return false, fmt.Errorf("check sheet code: %w", err)
	}
	return !exists, nil
}

// Valid reports whether code has the prefix, the right length and only
// alphabet symbols.
func Valid(code string) bool {
	if len(code) != len(Prefix)+Length || !strings.HasPrefix(code, Prefix) {
		return false
	}
	for _, r := range code[len(Prefix):] {
		if !strings.ContainsRune(Alphabet, r) {
			return false
		}
	}
	return true
}
