package messages

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/raiden-network/raiden-libs-go/pkg/encoding"
)

var feeInfoLayout = encoding.Layout{
	{Name: keyTokenNetworkAddress, Kind: encoding.KindAddress},
	{Name: keyChainID, Kind: encoding.KindUint256},
	{Name: keyChannelIdentifier, Kind: encoding.KindBytes32},
	{Name: keyNonce, Kind: encoding.KindUint256},
	{Name: keyRelativeFee, Kind: encoding.KindUint256},
}

type FeeInfoParams struct {
	TokenNetworkAddress string
	ChainID             *uint256.Int
	ChannelIdentifier   string
	Nonce               *uint256.Int
	RelativeFee         *uint256.Int
	Signature           string
}

// FeeInfo advertises the relative fee a participant charges for mediating
// through one channel.
type FeeInfo struct {
	tokenNetworkAddress common.Address
	chainID             *uint256.Int
	channelIdentifier   common.Hash
	nonce               *uint256.Int
	relativeFee         *uint256.Int

	signature signatureSlot
}

func NewFeeInfo(params FeeInfoParams) (*FeeInfo, error) {
	tokenNetwork, err := parseAddress(keyTokenNetworkAddress, params.TokenNetworkAddress)
	if err != nil {
		return nil, err
	}
	channelID, err := parseHash(keyChannelIdentifier, params.ChannelIdentifier)
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
	relativeFee, err := requireUint(keyRelativeFee, params.RelativeFee)
	if err != nil {
		return nil, err
	}
	return &FeeInfo{
		tokenNetworkAddress: tokenNetwork,
		chainID:             chainID,
		channelIdentifier:   channelID,
		nonce:               nonce,
		relativeFee:         relativeFee,
		signature:           signatureSlot{value: params.Signature},
	}, nil
}

func (f *FeeInfo) Type() MessageType { return MessageTypeFeeInfo }

func (f *FeeInfo) TokenNetworkAddress() common.Address { return f.tokenNetworkAddress }
func (f *FeeInfo) ChainID() *uint256.Int { return f.chainID.Clone() }
func (f *FeeInfo) ChannelIdentifier() common.Hash { return f.channelIdentifier }
func (f *FeeInfo) Nonce() *uint256.Int { return f.nonce.Clone() }
func (f *FeeInfo) RelativeFee() *uint256.Int { return f.relativeFee.Clone() }

func (f *FeeInfo) Signature() string { return f.signature.get() }
func (f *FeeInfo) SetSignature(sig []byte) error { return f.signature.set(sig) }
func (f *FeeInfo) SigningBytes() ([]byte, error) { return f.SerializeBin() }
func (f *FeeInfo) Signer() (common.Address, error) { return RecoverSigner(f) }

func (f *FeeInfo) SerializeBin() ([]byte, error) {
	return feeInfoLayout.Encode(encoding.Values{
		keyTokenNetworkAddress: f.tokenNetworkAddress,
		keyChainID:             f.chainID,
		keyChannelIdentifier:   f.channelIdentifier,
		keyNonce:               f.nonce,
		keyRelativeFee:         f.relativeFee,
	})
}

func (f *FeeInfo) SerializeData() Payload {
	payload := Payload{
		keyMessageType:         string(MessageTypeFeeInfo),
		keyTokenNetworkAddress: f.tokenNetworkAddress.Hex(),
		keyChainID:             uintValue(f.chainID),
		keyChannelIdentifier:   f.channelIdentifier.Hex(),
		keyNonce:               uintValue(f.nonce),
		keyRelativeFee:         uintValue(f.relativeFee),
	}
	if sig := f.signature.get(); sig != "" {
		payload[keySignature] = sig
	}
	return payload
}

func (f *FeeInfo) SerializeFull() ([]byte, error) { return serializeFull(f) }

func deserializeFeeInfo(p Payload) (*FeeInfo, error) {
	params := FeeInfoParams{}
	var err error

	if params.TokenNetworkAddress, err = p.readString(keyTokenNetworkAddress); err != nil {
		return nil, err
	}
	if params.ChainID, err = p.readUint(keyChainID); err != nil {
		return nil, err
	}
	if params.ChannelIdentifier, err = p.readString(keyChannelIdentifier); err != nil {
		return nil, err
	}
	if params.Nonce, err = p.readUint(keyNonce); err != nil {
		return nil, err
	}
	if params.RelativeFee, err = p.readUint(keyRelativeFee); err != nil {
		return nil, err
	}
	if params.Signature, err = p.readSignature(keySignature); err != nil {
		return nil, err
	}
	return NewFeeInfo(params)
}
