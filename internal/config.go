package internal

import (
	"chat-realtime/errors"
	"fmt"
	"strings"

	"github.com/samber/lo"
)

func CharacterRune(str string) (rune, error) {
	r := []rune(str)
	if len(r) != 1 {
		return 0, fmt.Errorf("%w: MODERATION_CHARACTER_REPLACEMENT got %q", errors.ErrInvalidCharacter, str)
	}
	return r[0], nil
}

// SplitList turns a comma separated variable into its trimmed, non-empty items.
func SplitList(str string) []string {
	return lo.Compact(lo.Map(strings.Split(str, ","), func(item string, _ int) string {
		return strings.TrimSpace(item)
	}))
}
