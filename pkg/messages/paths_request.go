package messages

import (
	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/raiden-network/raiden-libs-go/pkg/encoding"
)

var pathsRequestLayout = encoding.Layout{
	{Name: keyTokenNetworkAddress, Kind: encoding.KindAddress},
	{Name: keySourceAddress, Kind: encoding.KindAddress},
	{Name: keyTargetAddress, Kind: encoding.KindAddress},
	{Name: keyValue, Kind: encoding.KindUint256},
	{Name: keyNumPaths, Kind: encoding.KindUint256},
	{Name: keyChainID, Kind: encoding.KindUint256},
	{Name: keyNonce, Kind: encoding.KindUint256},
}

type PathsRequestParams struct {
	TokenNetworkAddress string
	SourceAddress       string
	TargetAddress       string
	Value               *uint256.Int
	NumPaths            *uint256.Int
	ChainID             *uint256.Int
	Nonce               *uint256.Int
	Signature           string
}

// PathsRequest asks a path-finding service for up to NumPaths routes able to
// carry Value from source to target.
type PathsRequest struct {
	tokenNetworkAddress common.Address
	sourceAddress       common.Address
	targetAddress       common.Address
	value               *uint256.Int
	numPaths            *uint256.Int
	chainID             *uint256.Int
	nonce               *uint256.Int

	signature signatureSlot
}

func NewPathsRequest(params PathsRequestParams) (*PathsRequest, error) {
	tokenNetwork, err := parseAddress(keyTokenNetworkAddress, params.TokenNetworkAddress)
	if err != nil {
		return nil, err
	}
	source, err := parseAddress(keySourceAddress, params.SourceAddress)
	if err != nil {
		return nil, err
	}
	target, err := parseAddress(keyTargetAddress, params.TargetAddress)
	if err != nil {
		return nil, err
	}
	value, err := requireUint(keyValue, params.Value)
	if err != nil {
		return nil, err
	}
	numPaths, err := requireUint(keyNumPaths, params.NumPaths)
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
	return &PathsRequest{
		tokenNetworkAddress: tokenNetwork,
		sourceAddress:       source,
		targetAddress:       target,
		value:               value,
		numPaths:            numPaths,
		chainID:             chainID,
		nonce:               nonce,
		signature:           signatureSlot{value: params.Signature},
	}, nil
}

func (r *PathsRequest) Type() MessageType { return MessageTypePathsRequest }

func (r *PathsRequest) TokenNetworkAddress() common.Address { return r.tokenNetworkAddress }
func (r *PathsRequest) SourceAddress() common.Address { return r.sourceAddress }
func (r *PathsRequest) TargetAddress() common.Address { return r.targetAddress }
func (r *PathsRequest) Value() *uint256.Int { return r.value.Clone() }
func (r *PathsRequest) NumPaths() *uint256.Int { return r.numPaths.Clone() }
func (r *PathsRequest) ChainID() *uint256.Int { return r.chainID.Clone() }
func (r *PathsRequest) Nonce() *uint256.Int { return r.nonce.Clone() }

func (r *PathsRequest) Signature() string { return r.signature.get() }
func (r *PathsRequest) SetSignature(sig []byte) error { return r.signature.set(sig) }
func (r *PathsRequest) SigningBytes() ([]byte, error) { return r.SerializeBin() }
func (r *PathsRequest) Signer() (common.Address, error) { return RecoverSigner(r) }

func (r *PathsRequest) SerializeBin() ([]byte, error) {
	return pathsRequestLayout.Encode(encoding.Values{
		keyTokenNetworkAddress: r.tokenNetworkAddress,
		keySourceAddress:       r.sourceAddress,
		keyTargetAddress:       r.targetAddress,
		keyValue:               r.value,
		keyNumPaths:            r.numPaths,
		keyChainID:             r.chainID,
		keyNonce:               r.nonce,
	})
}

func (r *PathsRequest) SerializeData() Payload {
	payload := Payload{
		keyMessageType:         string(MessageTypePathsRequest),
		keyTokenNetworkAddress: r.tokenNetworkAddress.Hex(),
		keySourceAddress:       r.sourceAddress.Hex(),
		keyTargetAddress:       r.targetAddress.Hex(),
		keyValue:               uintValue(r.value),
		keyNumPaths:            uintValue(r.numPaths),
		keyChainID:             uintValue(r.chainID),
		keyNonce:               uintValue(r.nonce),
	}
	if sig := r.signature.get(); sig != "" {
		payload[keySignature] = sig
	}
	return payload
}

func (r *PathsRequest) SerializeFull() ([]byte, error) { return serializeFull(r) }

func deserializePathsRequest(p Payload) (*PathsRequest, error) {
	params := PathsRequestParams{}
	var err error

	if params.TokenNetworkAddress, err = p.readString(keyTokenNetworkAddress); err != nil {
		return nil, err
	}
	if params.SourceAddress, err = p.readString(keySourceAddress); err != nil {
		return nil, err
	}
	if params.TargetAddress, err = p.readString(keyTargetAddress); err != nil {
		return nil, err
	}
	if params.Value, err = p.readUint(keyValue); err != nil {
		return nil, err
	}
	if params.NumPaths, err = p.readUint(keyNumPaths); err != nil {
		return nil, err
	}
	if params.ChainID, err = p.readUint(keyChainID); err != nil {
		return nil, err
	}
	if params.Nonce, err = p.readUint(keyNonce); err != nil {
		return nil, err
	}
	if params.Signature, err = p.readSignature(keySignature); err != nil {
		return nil, err
	}
	return NewPathsRequest(params)
}
