package messages

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/raiden-network/raiden-libs-go/pkg/encoding"
)

var balanceProofLayout = encoding.Layout{
	{Name: keyBalanceHash, Kind: encoding.KindBytes32},
	{Name: keyNonce, Kind: encoding.KindUint256},
	{Name: keyAdditionalHash, Kind: encoding.KindBytes32},
	{Name: keyChannelIdentifier, Kind: encoding.KindBytes32},
	{Name: keyTokenNetworkAddress, Kind: encoding.KindAddress},
	{Name: keyChainID, Kind: encoding.KindUint256},
}

type BalanceMode int

const (
	// BalanceModeDerived computes balance_hash from the transferred and
	// locked amounts.
	BalanceModeDerived BalanceMode = iota
	// BalanceModeDirect carries a precomputed balance_hash.
	BalanceModeDirect
)

func (m BalanceMode) String() string {
	switch m {
	case BalanceModeDerived:
		return "derived"
	case BalanceModeDirect:
		return "direct"
	default:
		return fmt.Sprintf("BalanceMode(%d)", int(m))
	}
}

// BalanceData selects how a balance proof obtains its balance hash. It is
// implemented only by DerivedBalance and DirectBalance.
type BalanceData interface {
	balanceMode() BalanceMode
}

type DerivedBalance struct {
	TransferredAmount *uint256.Int
	// LockedAmount defaults to zero when nil.
	LockedAmount *uint256.Int
}

func (DerivedBalance) balanceMode() BalanceMode { return BalanceModeDerived }

type DirectBalance struct {
	BalanceHash common.Hash
	// LockedAmount defaults to zero when nil.
	LockedAmount *uint256.Int
}

func (DirectBalance) balanceMode() BalanceMode { return BalanceModeDirect }

// BalanceProofParams are the producer-side inputs of NewBalanceProof. Hash
// and address fields use their 0x hex wire form; Locksroot and
// AdditionalHash default to the zero hash when empty.
type BalanceProofParams struct {
	ChannelIdentifier   string
	TokenNetworkAddress string
	ChainID             *uint256.Int
	Nonce               *uint256.Int
	Locksroot           string
	AdditionalHash      string
	Balance             BalanceData

	// Signature is an already produced signature in wire form. Leave empty
	// for an unsigned proof.
	Signature string
}

// BalanceProof is a participant's signed claim about the balance of one
// side of a channel.
type BalanceProof struct {
	channelIdentifier   common.Hash
	tokenNetworkAddress common.Address
	chainID             *uint256.Int
	nonce               *uint256.Int
	locksroot           common.Hash
	additionalHash      common.Hash

	mode              BalanceMode
	transferredAmount *uint256.Int
	lockedAmount      *uint256.Int
	balanceHash       common.Hash

	signature signatureSlot
}

func NewBalanceProof(params BalanceProofParams) (*BalanceProof, error) {
	channelID, err := parseHash(keyChannelIdentifier, params.ChannelIdentifier)
	if err != nil {
		return nil, err
	}
	tokenNetwork, err := parseAddress(keyTokenNetworkAddress, params.TokenNetworkAddress)
	if err != nil {
		return nil, err
	}
	chainID, err := requireUint(keyChainID, params.ChainID)
	if err != nil {
		return nil, err
	}
	nonce, err := requireUint(keyNonce, params.Nonce)
	if err != nil {
		return nil, err
	}
	locksroot, err := parseOptionalHash(keyLocksroot, params.Locksroot)
	if err != nil {
		return nil, err
	}
	additionalHash, err := parseOptionalHash(keyAdditionalHash, params.AdditionalHash)
	if err != nil {
		return nil, err
	}

	bp := &BalanceProof{
		channelIdentifier:   channelID,
		tokenNetworkAddress: tokenNetwork,
		chainID:             chainID,
		nonce:               nonce,
		locksroot:           locksroot,
		additionalHash:      additionalHash,
		signature:           signatureSlot{value: params.Signature},
	}

	switch balance := params.Balance.(type) {
	case DerivedBalance:
		err = bp.setDerived(balance)
	case *DerivedBalance:
		if balance == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, keyTransferredAmount)
		}
		err = bp.setDerived(*balance)
	case DirectBalance:
		bp.setDirect(balance)
	case *DirectBalance:
		if balance == nil {
			return nil, fmt.Errorf("%w: %s", ErrMissingField, keyBalanceHash)
		}
		bp.setDirect(*balance)
	default:
		return nil, fmt.Errorf("%w: %s or %s", ErrMissingField, keyTransferredAmount, keyBalanceHash)
	}
	if err != nil {
		return nil, err
	}
	return bp, nil
}

func (bp *BalanceProof) setDerived(balance DerivedBalance) error {
	transferred, err := requireUint(keyTransferredAmount, balance.TransferredAmount)
	if err != nil {
		return err
	}
	locked := uintOrZero(balance.LockedAmount)
	hash, err := encoding.BalanceHash(transferred, locked, bp.locksroot)
	if err != nil {
		return err
	}
	bp.mode = BalanceModeDerived
	bp.transferredAmount = transferred
	bp.lockedAmount = locked
	bp.balanceHash = hash
	return nil
}

func (bp *BalanceProof) setDirect(balance DirectBalance) {
	bp.mode = BalanceModeDirect
	bp.lockedAmount = uintOrZero(balance.LockedAmount)
	bp.balanceHash = balance.BalanceHash
}

func (bp *BalanceProof) Type() MessageType { return MessageTypeBalanceProof }

func (bp *BalanceProof) ChannelIdentifier() common.Hash { return bp.channelIdentifier }
func (bp *BalanceProof) TokenNetworkAddress() common.Address { return bp.tokenNetworkAddress }
func (bp *BalanceProof) ChainID() *uint256.Int { return bp.chainID.Clone() }
func (bp *BalanceProof) Nonce() *uint256.Int { return bp.nonce.Clone() }
func (bp *BalanceProof) Locksroot() common.Hash { return bp.locksroot }
func (bp *BalanceProof) AdditionalHash() common.Hash { return bp.additionalHash }
func (bp *BalanceProof) Mode() BalanceMode { return bp.mode }
func (bp *BalanceProof) BalanceHash() common.Hash { return bp.balanceHash }
func (bp *BalanceProof) LockedAmount() *uint256.Int { return bp.lockedAmount.Clone() }

// TransferredAmount is only known in derived mode.
func (bp *BalanceProof) TransferredAmount() (*uint256.Int, error) {
	if bp.mode != BalanceModeDerived {
		return nil, fmt.Errorf("%w: %s is not available for a balance proof built from a balance hash", ErrMissingField, keyTransferredAmount)
	}
	return bp.transferredAmount.Clone(), nil
}

// Balance returns the construction-time balance data.
func (bp *BalanceProof) Balance() BalanceData {
	if bp.mode == BalanceModeDerived {
		return DerivedBalance{TransferredAmount: bp.transferredAmount.Clone(), LockedAmount: bp.lockedAmount.Clone()}
	}
	return DirectBalance{BalanceHash: bp.balanceHash, LockedAmount: bp.lockedAmount.Clone()}
}

func (bp *BalanceProof) Signature() string { return bp.signature.get() }
func (bp *BalanceProof) IsSigned() bool { return bp.signature.get() != "" }

// SetSignature assigns the participant's signature. It may be called once.
func (bp *BalanceProof) SetSignature(sig []byte) error { return bp.signature.set(sig) }

func (bp *BalanceProof) SigningBytes() ([]byte, error) { return bp.SerializeBin() }

// Signer recovers the participant that signed the proof.
func (bp *BalanceProof) Signer() (common.Address, error) { return RecoverSigner(bp) }

func (bp *BalanceProof) SerializeBin() ([]byte, error) {
	return balanceProofLayout.Encode(encoding.Values{
		keyBalanceHash:         bp.balanceHash,
		keyNonce:               bp.nonce,
		keyAdditionalHash:      bp.additionalHash,
		keyChannelIdentifier:   bp.channelIdentifier,
		keyTokenNetworkAddress: bp.tokenNetworkAddress,
		keyChainID:             bp.chainID,
	})
}

func (bp *BalanceProof) SerializeData() Payload {
	payload := Payload{keyMessageType: string(MessageTypeBalanceProof)}
	bp.writeFields(payload)
	if sig := bp.signature.get(); sig != "" {
		payload[keySignature] = sig
	}
	return payload
}

func (bp *BalanceProof) SerializeFull() ([]byte, error) { return serializeFull(bp) }

// writeFields emits the proof's fields without the type tag or signature.
func (bp *BalanceProof) writeFields(payload Payload) {
	payload[keyChannelIdentifier] = bp.channelIdentifier.Hex()
	payload[keyTokenNetworkAddress] = bp.tokenNetworkAddress.Hex()
	payload[keyChainID] = uintValue(bp.chainID)
	payload[keyNonce] = uintValue(bp.nonce)
	payload[keyLocksroot] = bp.locksroot.Hex()
	payload[keyAdditionalHash] = bp.additionalHash.Hex()
	payload[keyBalanceHash] = bp.balanceHash.Hex()
	payload[keyLockedAmount] = uintValue(bp.lockedAmount)
	if bp.mode == BalanceModeDerived {
		payload[keyTransferredAmount] = uintValue(bp.transferredAmount)
	}
}

func deserializeBalanceProof(p Payload) (*BalanceProof, error) {
	params := BalanceProofParams{}
	var err error

	if params.ChannelIdentifier, err = p.readString(keyChannelIdentifier); err != nil {
		return nil, err
	}
	if params.TokenNetworkAddress, err = p.readString(keyTokenNetworkAddress); err != nil {
		return nil, err
	}
	if params.ChainID, err = p.readUint(keyChainID); err != nil {
		return nil, err
	}
	if params.Nonce, err = p.readUint(keyNonce); err != nil {
		return nil, err
	}
	if params.Locksroot, err = p.readOptionalString(keyLocksroot); err != nil {
		return nil, err
	}
	if params.AdditionalHash, err = p.readOptionalString(keyAdditionalHash); err != nil {
		return nil, err
	}
	if params.Signature, err = p.readSignature(keySignature); err != nil {
		return nil, err
	}

	locked, err := p.readOptionalUint(keyLockedAmount)
	if err != nil {
		return nil, err
	}
	transferred, err := p.readOptionalUint(keyTransferredAmount)
	if err != nil {
		return nil, err
	}

	var claimedHash *common.Hash
	if p.has(keyBalanceHash) {
		raw, err := p.readString(keyBalanceHash)
		if err != nil {
			return nil, err
		}
		h, err := parseHash(keyBalanceHash, raw)
		if err != nil {
			return nil, err
		}
		claimedHash = &h
	}

	switch {
	case transferred != nil:
		params.Balance = DerivedBalance{TransferredAmount: transferred, LockedAmount: locked}
	case claimedHash != nil:
		params.Balance = DirectBalance{BalanceHash: *claimedHash, LockedAmount: locked}
	default:
		return nil, fmt.Errorf("%w: %s or %s", ErrMissingField, keyTransferredAmount, keyBalanceHash)
	}

	bp, err := NewBalanceProof(params)
	if err != nil {
		return nil, err
	}
	if transferred != nil && claimedHash != nil && *claimedHash != bp.balanceHash {
		return nil, fmt.Errorf("%w: payload has %s, amounts give %s", ErrBalanceHashMismatch, claimedHash.Hex(), bp.balanceHash.Hex())
	}
	return bp, nil
}
