package model

import (
	"math/big"

	"github.com/ethereum/go-ethereum/common"
)

// EngagementKind classifies how an account engaged with the conversation
type EngagementKind string

const (
	EngagementReply EngagementKind = "reply" // Reply inside the conversation thread
	EngagementQuote EngagementKind = "quote" // Quote tweet of the conversation root
)

// EngagementRecord is one collected reply or quote. Records are consumed
// in the order they were collected; that order decides duplicate winners.
type EngagementRecord struct {
	ID           string         `json:"id"`
	AuthorID     string         `json:"author_id"`
	AuthorHandle string         `json:"author_handle"`
	Text         string         `json:"text"`
	Kind         EngagementKind `json:"kind,omitempty"`
}

// Candidate is a raw address or name token pulled out of a record
type Candidate struct {
	AuthorHandle string `json:"author_handle"`
	Token        string `json:"token"`
}

// ResolvedClaim is a candidate whose token resolved to a concrete address
type ResolvedClaim struct {
	AuthorHandle string         `json:"author_handle"`
	Address      common.Address `json:"address"`
}

// IndexedClaim is a claim with its position in the commitment and its amount
type IndexedClaim struct {
	Index   uint64
	Address common.Address
	Amount  *big.Int
}
