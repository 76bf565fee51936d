package certificate

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
	"regexp"
	"strings"
	"time"

	"github.com/pkg/errors"
)

const (
	codePrefix       = "TYP-"
	codeAlphabet     = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
	codeSuffixLength = 4
	legacyDigits     = 6
	// MaxCodeAttempts bounds how often a fresh code is drawn before giving up
	MaxCodeAttempts = 40
)

var (
	modernCodePattern = regexp.MustCompile(`^TYP-\d{8}-[A-Z0-9]{4}$`)
	legacyCodePattern = regexp.MustCompile(`^TYP-\d{4}-\d{6}$`)
)

// ErrCodeSpaceExhausted is returned if no unused code could be found
var ErrCodeSpaceExhausted = errors.New("could not find an unused certificate code")

// IsModernCode reports whether code has the form TYP-YYYYMMDD-XXXX
func IsModernCode(code string) bool {
	return modernCodePattern.MatchString(code)
}

// IsLegacyCode reports whether code has the form TYP-YYYY-NNNNNN
func IsLegacyCode(code string) bool {
	return legacyCodePattern.MatchString(code)
}

// NormalizeCode trims and upper-cases raw and reports whether the result is
// an acceptable certificate code. Legacy codes are only accepted if
// allowLegacy is set.
func NormalizeCode(raw string, allowLegacy bool) (string, bool) {
	code := strings.ToUpper(strings.TrimSpace(raw))
	if IsModernCode(code) {
		return code, true
	}
	if allowLegacy && IsLegacyCode(code) {
		return code, true
	}
	return code, false
}

// CodeChecker tells whether a code is already in use
type CodeChecker interface {
	CodeExists(ctx context.Context, code string) (bool, error)
}

// CodeGenerator draws random, unused certificate codes
type CodeGenerator struct {
	store CodeChecker
	now   func() time.Time
	rand  io.Reader
}

// NewCodeGenerator creates a CodeGenerator checking codes against store
func NewCodeGenerator(store CodeChecker) *CodeGenerator {
	return &CodeGenerator{
		store: store,
		now:   time.Now,
		rand:  rand.Reader,
	}
}

// randomChars returns n characters drawn uniformly from alphabet
func (g *CodeGenerator) randomChars(alphabet string, n int) (string, error) {
	// largest multiple of len(alphabet) that fits into a byte; bytes above are
	// rejected to keep the distribution uniform
	limit := byte(256 - 256%len(alphabet))
	out := make([]byte, 0, n)
	buf := make([]byte, n*2)
	for len(out) < n {
		if _, err := io.ReadFull(g.rand, buf); err != nil {
			return "", errors.WithStack(err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, alphabet[int(b)%len(alphabet)])
			if len(out) == n {
				break
			}
		}
	}
	return string(out), nil
}

func (g *CodeGenerator) modernCandidate() (string, error) {
	suffix, err := g.randomChars(codeAlphabet, codeSuffixLength)
	if err != nil {
		return "", err
	}
	return codePrefix + g.now().UTC().Format("20060102") + "-" + suffix, nil
}

func (g *CodeGenerator) legacyCandidate() (string, error) {
	digits, err := g.randomChars(codeAlphabet[:10], legacyDigits)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s%04d-%s", codePrefix, g.now().UTC().Year(), digits), nil
}

func (g *CodeGenerator) generate(ctx context.Context, candidate func() (string, error)) (string, error) {
	for i := 0; i < MaxCodeAttempts; i++ {
		code, err := candidate()
		if err != nil {
			return "", err
		}
		exists, err := g.store.CodeExists(ctx, code)
		if err != nil {
			return "", err
		}
		if !exists {
			return code, nil
		}
	}
	return "", ErrCodeSpaceExhausted
}

// Modern returns an unused code of the form TYP-YYYYMMDD-XXXX
func (g *CodeGenerator) Modern(ctx context.Context) (string, error) {
	return g.generate(ctx, g.modernCandidate)
}

// Legacy returns an unused code of the form TYP-YYYY-NNNNNN. It is only used
// for databases that still enforce the old code format.
func (g *CodeGenerator) Legacy(ctx context.Context) (string, error) {
	return g.generate(ctx, g.legacyCandidate)
}
