package domain

import "slices"

type Reaction string

var allowedReactions = []Reaction{"👍", "❤️", "😂", "😮", "😢", "🙏"}

// IsAllowed reports whether r belongs to the fixed reaction set.
func (r Reaction) IsAllowed() bool {
	return slices.Contains(allowedReactions, r)
}

func AllowedReactions() []Reaction {
	return slices.Clone(allowedReactions)
}
