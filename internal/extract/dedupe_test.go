package extract

import (
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/go-cmp/cmp"
	"github.com/leanovate/gopter"
	"github.com/leanovate/gopter/gen"
	"github.com/leanovate/gopter/prop"
	"github.com/ppiankov/claimroot/internal/model"
)

func TestDedupeByAuthor_FirstWins(t *testing.T) {
	in := []model.Candidate{
		{AuthorHandle: "alice", Token: "first.eth"},
		{AuthorHandle: "bob", Token: "bob.eth"},
		{AuthorHandle: "alice", Token: "second.eth"},
	}
	want := []model.Candidate{
		{AuthorHandle: "alice", Token: "first.eth"},
		{AuthorHandle: "bob", Token: "bob.eth"},
	}

	if diff := cmp.Diff(want, DedupeByAuthor(in)); diff != "" {
		t.Errorf("DedupeByAuthor mismatch (-want +got):\n%s", diff)
	}
}

func TestDedupeByAuthor_Empty(t *testing.T) {
	if got := DedupeByAuthor(nil); len(got) != 0 {
		t.Errorf("expected empty output, got %v", got)
	}
}

func TestDedupeByAddress_DifferentAuthorsSameAddress(t *testing.T) {
	addr := common.HexToAddress(checksummed)
	other := common.HexToAddress("0xfB6916095ca1df60bB79Ce92cE3Ea74c37c5d359")

	in := []model.ResolvedClaim{
		{AuthorHandle: "alice", Address: addr},
		{AuthorHandle: "bob", Address: addr},
		{AuthorHandle: "carol", Address: other},
	}
	want := []model.ResolvedClaim{
		{AuthorHandle: "alice", Address: addr},
		{AuthorHandle: "carol", Address: other},
	}

	if diff := cmp.Diff(want, DedupeByAddress(in)); diff != "" {
		t.Errorf("DedupeByAddress mismatch (-want +got):\n%s", diff)
	}
}

func TestDedupe_Properties(t *testing.T) {
	parameters := gopter.DefaultTestParameters()
	parameters.MinSuccessfulTests = 200
	properties := gopter.NewProperties(parameters)

	handles := []string{"a", "b", "c", "d", "e"}

	properties.Property("no two candidates share an author handle", prop.ForAll(
		func(picks []int) bool {
			names := make([]string, len(picks))
			in := make([]model.Candidate, len(picks))
			for i, p := range picks {
				names[i] = handles[p]
				in[i] = model.Candidate{AuthorHandle: names[i], Token: names[i] + ".eth"}
			}
			seen := make(map[string]bool)
			for _, c := range DedupeByAuthor(in) {
				if seen[c.AuthorHandle] {
					return false
				}
				seen[c.AuthorHandle] = true
			}
			return len(seen) == len(distinct(names))
		},
		gen.SliceOf(gen.IntRange(0, len(handles)-1)),
	))

	properties.Property("no two claims share an address and first occurrence survives", prop.ForAll(
		func(bytesIdx []uint8) bool {
			in := make([]model.ResolvedClaim, len(bytesIdx))
			for i, b := range bytesIdx {
				in[i] = model.ResolvedClaim{
					AuthorHandle: string(rune('a' + i%26)),
					Address:      common.BytesToAddress([]byte{b % 7}),
				}
			}
			out := DedupeByAddress(in)
			seen := make(map[common.Address]bool)
			for _, c := range out {
				if seen[c.Address] {
					return false
				}
				seen[c.Address] = true
			}
			// The survivor for each address is its first occurrence in the input
			for _, c := range out {
				for _, orig := range in {
					if orig.Address == c.Address {
						if orig != c {
							return false
						}
						break
					}
				}
			}
			return true
		},
		gen.SliceOf(gen.UInt8()),
	))

	properties.TestingRun(t)
}

func distinct(items []string) map[string]bool {
	set := make(map[string]bool)
	for _, s := range items {
		set[s] = true
	}
	return set
}
