package metadata

import (
	"encoding/binary"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	DefaultShortCodePrefix string = "FF"
	shortCodeSuffixLength  int    = 4
)

// ShortCode is the human-scannable identifier printed under a QR image:
// a fixed prefix, a time-based token and a random suffix.
type ShortCode struct {
	prefix string
	token  string
	suffix string
}

func (s ShortCode) String() string {
	return s.prefix + "-" + s.token + "-" + s.suffix
}

type ShortCodeGenerator struct {
	prefix  string
	now     func() time.Time
	entropy func() uint32
}

func NewShortCodeGenerator(prefix string) *ShortCodeGenerator {
	if prefix == "" {
		prefix = DefaultShortCodePrefix
	}

	return &ShortCodeGenerator{
		prefix: strings.ToUpper(prefix),
		now:    time.Now,
		entropy: func() uint32 {
			id := uuid.New()
			return binary.BigEndian.Uint32(id[:4])
		},
	}
}

// WithClock replaces the time source. Tests only.
func (g *ShortCodeGenerator) WithClock(now func() time.Time) *ShortCodeGenerator {
	g.now = now
	return g
}

// WithEntropy replaces the random source. Tests only.
func (g *ShortCodeGenerator) WithEntropy(entropy func() uint32) *ShortCodeGenerator {
	g.entropy = entropy
	return g
}

func (g *ShortCodeGenerator) Next() ShortCode {
	token := strconv.FormatInt(g.now().UnixMilli(), 36)

	space := uint32(1)
	for i := 0; i < shortCodeSuffixLength; i++ {
		space *= 36
	}
	suffix := strconv.FormatUint(uint64(g.entropy()%space), 36)
	suffix = strings.Repeat("0", shortCodeSuffixLength-len(suffix)) + suffix

	return ShortCode{
		prefix: g.prefix,
		token:  strings.ToUpper(token),
		suffix: strings.ToUpper(suffix),
	}
}

// NewBatchCode formats a production batch code from a database sequence value.
func NewBatchCode(t time.Time, seq int64) string {
	return fmt.Sprintf("PB-%s-%04d", t.UTC().Format("20060102"), seq)
}
