package executor

import (
	"fmt"
	"regexp"

	"github.com/mohammed-shakir/spacetime-gateway/internal/core/model"
)

// Best-effort textual guard, not a parser: the executor's contract is
// read-only, so any query text carrying a mutating keyword is rejected
// before it goes on the wire.
var mutatingKeyword = regexp.MustCompile(`(?i)\b(insert|update|delete|drop|alter|exec)\b`)

// CheckReadOnly rejects query text containing a mutating keyword,
// regardless of casing.
func CheckReadOnly(queryText string) error {
	if m := mutatingKeyword.FindString(queryText); m != "" {
		return fmt.Errorf("keyword %q: %w", m, model.ErrForbiddenStatement)
	}
	return nil
}
