package encoding

import (
	"hash"

	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/holiman/uint256"
	"golang.org/x/crypto/sha3"
)

// BalanceHashLayout is the input layout of the balance hash.
var BalanceHashLayout = Layout{
	{Name: "transferred_amount", Kind: KindUint256},
	{Name: "locked_amount", Kind: KindUint256},
	{Name: "locksroot", Kind: KindBytes32},
}

// BalanceHash computes keccak256(transferred_amount || locked_amount || locksroot).
func BalanceHash(transferredAmount, lockedAmount *uint256.Int, locksroot common.Hash) (common.Hash, error) {
	packed, err := BalanceHashLayout.Encode(Values{
		"transferred_amount": transferredAmount,
		"locked_amount":      lockedAmount,
		"locksroot":          locksroot,
	})
	if err != nil {
		return common.Hash{}, err
	}
	return crypto.Keccak256Hash(packed), nil
}

// SequenceHasher folds a nested, variable-length structure into one 32 byte
// digest. Every sequence must be preceded by its length via WriteLength so
// that different nestings never produce the same byte stream.
type SequenceHasher struct {
	h hash.Hash
}

func NewSequenceHasher() *SequenceHasher {
	return &SequenceHasher{h: sha3.NewLegacyKeccak256()}
}

func (s *SequenceHasher) WriteLength(n int) {
	s.WriteUint256(uint256.NewInt(uint64(n)))
}

func (s *SequenceHasher) WriteUint256(v *uint256.Int) {
	word := v.Bytes32()
	_, _ = s.h.Write(word[:])
}

func (s *SequenceHasher) WriteAddress(addr common.Address) {
	_, _ = s.h.Write(addr.Bytes())
}

func (s *SequenceHasher) Sum() common.Hash {
	return common.BytesToHash(s.h.Sum(nil))
}
