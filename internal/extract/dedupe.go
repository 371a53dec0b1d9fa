package extract

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/ppiankov/claimroot/internal/model"
)

// DedupeByAuthor keeps the first candidate seen for each author handle
func DedupeByAuthor(candidates []model.Candidate) []model.Candidate {
	return dedupeFirst(candidates, func(c model.Candidate) string {
		return c.AuthorHandle
	})
}

// DedupeByAddress keeps the first claim seen for each resolved address
func DedupeByAddress(claims []model.ResolvedClaim) []model.ResolvedClaim {
	return dedupeFirst(claims, func(c model.ResolvedClaim) common.Address {
		return c.Address
	})
}

// dedupeFirst drops every element whose key was already seen earlier in items
func dedupeFirst[T any, K comparable](items []T, key func(T) K) []T {
	seen := make(map[K]bool, len(items))
	unique := make([]T, 0, len(items))

	for _, item := range items {
		k := key(item)
		if !seen[k] {
			seen[k] = true
			unique = append(unique, item)
		}
	}

	return unique
}
