package messages

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/raiden-network/raiden-libs-go/pkg/encoding"
)

const keyPathsAndFeesHash = "paths_and_fees_hash"

var pathsReplyLayout = encoding.Layout{
	{Name: keyTokenNetworkAddress, Kind: encoding.KindAddress},
	{Name: keyTargetAddress, Kind: encoding.KindAddress},
	{Name: keyValue, Kind: encoding.KindUint256},
	{Name: keyChainID, Kind: encoding.KindUint256},
	{Name: keyNonce, Kind: encoding.KindUint256},
	{Name: keyPathsAndFeesHash, Kind: encoding.KindBytes32},
}

// PathsAndFee is one group of routes sharing an estimated fee. Order of
// paths and of hops within a path is significant.
type PathsAndFee struct {
	EstimatedFee *uint256.Int
	Paths        [][]common.Address
}

type PathsAndFeeParams struct {
	EstimatedFee *uint256.Int
	Paths        [][]string
}

type PathsReplyParams struct {
	TokenNetworkAddress string
	TargetAddress       string
	Value               *uint256.Int
	ChainID             *uint256.Int
	Nonce               *uint256.Int
	PathsAndFees        []PathsAndFeeParams
	Signature           string
}

// PathsReply answers a PathsRequest with the routes found.
type PathsReply struct {
	tokenNetworkAddress common.Address
	targetAddress       common.Address
	value               *uint256.Int
	chainID             *uint256.Int
	nonce               *uint256.Int
	pathsAndFees        []PathsAndFee

	signature signatureSlot
}

func NewPathsReply(params PathsReplyParams) (*PathsReply, error) {
	tokenNetwork, err := parseAddress(keyTokenNetworkAddress, params.TokenNetworkAddress)
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
	chainID, err := requireUint(keyChainID, params.ChainID)
	if err != nil {
		return nil, err
	}
	nonce, err := requireUint(keyNonce, params.Nonce)
	if err != nil {
		return nil, err
	}

	groups := make([]PathsAndFee, 0, len(params.PathsAndFees))
	for i, group := range params.PathsAndFees {
		fee, err := requireUint(fmt.Sprintf("%s[%d].%s", keyPathsAndFees, i, keyEstimatedFee), group.EstimatedFee)
		if err != nil {
			return nil, err
		}
		paths := make([][]common.Address, 0, len(group.Paths))
		for j, path := range group.Paths {
			hops := make([]common.Address, 0, len(path))
			for k, hop := range path {
				addr, err := parseAddress(fmt.Sprintf("%s[%d].%s[%d][%d]", keyPathsAndFees, i, keyPaths, j, k), hop)
				if err != nil {
					return nil, err
				}
				hops = append(hops, addr)
			}
			paths = append(paths, hops)
		}
		groups = append(groups, PathsAndFee{EstimatedFee: fee, Paths: paths})
	}

	return &PathsReply{
		tokenNetworkAddress: tokenNetwork,
		targetAddress:       target,
		value:               value,
		chainID:             chainID,
		nonce:               nonce,
		pathsAndFees:        groups,
		signature:           signatureSlot{value: params.Signature},
	}, nil
}

func (r *PathsReply) Type() MessageType { return MessageTypePathsReply }

func (r *PathsReply) TokenNetworkAddress() common.Address { return r.tokenNetworkAddress }
func (r *PathsReply) TargetAddress() common.Address { return r.targetAddress }
func (r *PathsReply) Value() *uint256.Int { return r.value.Clone() }
func (r *PathsReply) ChainID() *uint256.Int { return r.chainID.Clone() }
func (r *PathsReply) Nonce() *uint256.Int { return r.nonce.Clone() }

// PathsAndFees returns a deep copy of the route groups.
func (r *PathsReply) PathsAndFees() []PathsAndFee {
	out := make([]PathsAndFee, len(r.pathsAndFees))
	for i, group := range r.pathsAndFees {
		paths := make([][]common.Address, len(group.Paths))
		for j, path := range group.Paths {
			paths[j] = append([]common.Address(nil), path...)
		}
		out[i] = PathsAndFee{EstimatedFee: group.EstimatedFee.Clone(), Paths: paths}
	}
	return out
}

// PathsAndFeesHash folds the nested route groups into the digest used by
// the canonical encoding.
func (r *PathsReply) PathsAndFeesHash() common.Hash {
	h := encoding.NewSequenceHasher()
	h.WriteLength(len(r.pathsAndFees))
	for _, group := range r.pathsAndFees {
		h.WriteUint256(group.EstimatedFee)
		h.WriteLength(len(group.Paths))
		for _, path := range group.Paths {
			h.WriteLength(len(path))
			for _, hop := range path {
				h.WriteAddress(hop)
			}
		}
	}
	return h.Sum()
}

func (r *PathsReply) Signature() string { return r.signature.get() }
func (r *PathsReply) SetSignature(sig []byte) error { return r.signature.set(sig) }
func (r *PathsReply) SigningBytes() ([]byte, error) { return r.SerializeBin() }
func (r *PathsReply) Signer() (common.Address, error) { return RecoverSigner(r) }

func (r *PathsReply) SerializeBin() ([]byte, error) {
	return pathsReplyLayout.Encode(encoding.Values{
		keyTokenNetworkAddress: r.tokenNetworkAddress,
		keyTargetAddress:       r.targetAddress,
		keyValue:               r.value,
		keyChainID:             r.chainID,
		keyNonce:               r.nonce,
		keyPathsAndFeesHash:    r.PathsAndFeesHash(),
	})
}

func (r *PathsReply) SerializeData() Payload {
	groups := make([]any, 0, len(r.pathsAndFees))
	for _, group := range r.pathsAndFees {
		paths := make([]any, 0, len(group.Paths))
		for _, path := range group.Paths {
			hops := make([]any, 0, len(path))
			for _, hop := range path {
				hops = append(hops, hop.Hex())
			}
			paths = append(paths, hops)
		}
		groups = append(groups, map[string]any{
			keyEstimatedFee: uintValue(group.EstimatedFee),
			keyPaths:        paths,
		})
	}

	payload := Payload{
		keyMessageType:         string(MessageTypePathsReply),
		keyTokenNetworkAddress: r.tokenNetworkAddress.Hex(),
		keyTargetAddress:       r.targetAddress.Hex(),
		keyValue:               uintValue(r.value),
		keyChainID:             uintValue(r.chainID),
		keyNonce:               uintValue(r.nonce),
		keyPathsAndFees:        groups,
	}
	if sig := r.signature.get(); sig != "" {
		payload[keySignature] = sig
	}
	return payload
}

func (r *PathsReply) SerializeFull() ([]byte, error) { return serializeFull(r) }

func deserializePathsReply(p Payload) (*PathsReply, error) {
	params := PathsReplyParams{}
	var err error

	if params.TokenNetworkAddress, err = p.readString(keyTokenNetworkAddress); err != nil {
		return nil, err
	}
	if params.TargetAddress, err = p.readString(keyTargetAddress); err != nil {
		return nil, err
	}
	if params.Value, err = p.readUint(keyValue); err != nil {
		return nil, err
	}
	if params.ChainID, err = p.readUint(keyChainID); err != nil {
		return nil, err
	}
	if params.Nonce, err = p.readUint(keyNonce); err != nil {
		return nil, err
	}
	if params.PathsAndFees, err = readPathsAndFees(p); err != nil {
		return nil, err
	}
	if params.Signature, err = p.readSignature(keySignature); err != nil {
		return nil, err
	}
	return NewPathsReply(params)
}

func readPathsAndFees(p Payload) ([]PathsAndFeeParams, error) {
	raw, err := p.lookup(keyPathsAndFees)
	if err != nil {
		return nil, err
	}

	var groups []map[string]any
	switch v := raw.(type) {
	case []map[string]any:
		groups = v
	case []Payload:
		for _, g := range v {
			groups = append(groups, g)
		}
	case []any:
		for i, item := range v {
			switch g := item.(type) {
			case map[string]any:
				groups = append(groups, g)
			case Payload:
				groups = append(groups, g)
			default:
				return nil, fmt.Errorf("%w: %s[%d] must be an object, got %T", ErrEncoding, keyPathsAndFees, i, item)
			}
		}
	default:
		return nil, fmt.Errorf("%w: %s must be a list, got %T", ErrEncoding, keyPathsAndFees, raw)
	}

	out := make([]PathsAndFeeParams, 0, len(groups))
	for i, group := range groups {
		entry := Payload(group)
		fee, err := entry.readUint(keyEstimatedFee)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", keyPathsAndFees, i, err)
		}
		paths, err := readPaths(entry)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", keyPathsAndFees, i, err)
		}
		out = append(out, PathsAndFeeParams{EstimatedFee: fee, Paths: paths})
	}
	return out, nil
}

func readPaths(group Payload) ([][]string, error) {
	raw, err := group.lookup(keyPaths)
	if err != nil {
		return nil, err
	}
	switch v := raw.(type) {
	case [][]string:
		out := make([][]string, len(v))
		for i, path := range v {
			out[i] = append([]string(nil), path...)
		}
		return out, nil
	case []any:
		out := make([][]string, 0, len(v))
		for i, item := range v {
			path, err := readPath(item)
			if err != nil {
				return nil, fmt.Errorf("%s[%d]: %w", keyPaths, i, err)
			}
			out = append(out, path)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: %s must be a list, got %T", ErrEncoding, keyPaths, raw)
	}
}

func readPath(item any) ([]string, error) {
	switch v := item.(type) {
	case []string:
		return append([]string(nil), v...), nil
	case []any:
		out := make([]string, 0, len(v))
		for _, hop := range v {
			s, ok := hop.(string)
			if !ok {
				return nil, fmt.Errorf("%w: path entry of type %T", ErrInvalidAddress, hop)
			}
			out = append(out, s)
		}
		return out, nil
	default:
		return nil, fmt.Errorf("%w: path must be a list, got %T", ErrEncoding, item)
	}
}
