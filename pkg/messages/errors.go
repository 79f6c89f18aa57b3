package messages

import (
	"errors"

	"github.com/raiden-network/raiden-libs-go/pkg/address"
	"github.com/raiden-network/raiden-libs-go/pkg/encoding"
)

var (
	ErrUnknownMessageType   = errors.New("unknown message type")
	ErrMessageType          = errors.New("message type mismatch")
	ErrAlreadySigned        = errors.New("signature already set")
	ErrBalanceHashMismatch  = errors.New("balance hash does not match transferred and locked amounts")
	ErrUnsignedBalanceProof = errors.New("balance proof must be signed")

	ErrInvalidAddress = address.ErrInvalidAddress
	ErrInvalidHex     = address.ErrInvalidHex
	ErrMissingField   = encoding.ErrMissingField
	ErrEncoding       = encoding.ErrEncoding
)
