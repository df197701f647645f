package room

import (
	"context"
	"fmt"
	"math/rand/v2"
	"strings"

	"github.com/verte-zerg/typerace/internal/store"
)

// Join codes avoid visually ambiguous characters (0/O, 1/I).
const (
	codeAlphabet    = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"
	codeLength      = 6
	codeAttempts    = 12
	fallbackPrefix  = 4
	fallbackSuffixN = 100
)

// NormalizeCode trims and upper-cases a join code.
func NormalizeCode(code string) string {
	return strings.ToUpper(strings.TrimSpace(code))
}

func randomCode() string {
	var b strings.Builder
	for i := 0; i < codeLength; i++ {
		b.WriteByte(codeAlphabet[rand.IntN(len(codeAlphabet))])
	}
	return b.String()
}

// allocateCode draws random codes a bounded number of times, then falls back
// to a random prefix with a clock-derived two-digit suffix.
func (s *Service) allocateCode(ctx context.Context, tx *store.Tx) (string, error) {
	for i := 0; i < codeAttempts; i++ {
		code := s.drawCode()
		taken, err := tx.JoinCodeTaken(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	prefix := s.drawCode()[:fallbackPrefix]
	start := int(s.clock.Now().UnixMilli() % fallbackSuffixN)
	for i := 0; i < fallbackSuffixN; i++ {
		code := fmt.Sprintf("%s%02d", prefix, (start+i)%fallbackSuffixN)
		taken, err := tx.JoinCodeTaken(ctx, code)
		if err != nil {
			return "", err
		}
		if !taken {
			return code, nil
		}
	}
	return "", conflict(ReasonNoJoinCode)
}
