package messages

import (
	"context"
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/raiden-network/raiden-libs-go/pkg/encoding"
	"github.com/raiden-network/raiden-libs-go/pkg/signer"
)

// SigningDomain is one canonical byte string together with the signature
// bound to it. A message can expose more than one domain.
type SigningDomain interface {
	SigningBytes() ([]byte, error)
	Signature() string
	SetSignature(sig []byte) error
}

// Sign signs the domain's canonical bytes with s and stores the signature.
func Sign(ctx context.Context, s signer.ISigner, d SigningDomain) error {
	if d.Signature() != "" {
		return ErrAlreadySigned
	}
	data, err := d.SigningBytes()
	if err != nil {
		return fmt.Errorf("failed to encode signing bytes: %w", err)
	}
	sig, err := s.SignMessage(ctx, data)
	if err != nil {
		return fmt.Errorf("failed to sign: %w", err)
	}
	return d.SetSignature(sig)
}

// RecoverSigner recomputes the canonical bytes and recovers the address that
// signed them. Nothing is cached.
func RecoverSigner(d SigningDomain) (common.Address, error) {
	sig, err := signer.DecodeSignature(d.Signature())
	if err != nil {
		return common.Address{}, err
	}
	data, err := d.SigningBytes()
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to encode signing bytes: %w", err)
	}
	return signer.RecoverAddress(data, sig)
}

// VerifySigner reports whether expected signed the domain. A different
// signer is a false result, not an error; errors mean recovery itself was
// impossible.
func VerifySigner(d SigningDomain, expected common.Address) (bool, error) {
	recovered, err := RecoverSigner(d)
	if err != nil {
		return false, err
	}
	return recovered == expected, nil
}

// signatureSlot holds a signature in wire form and allows exactly one
// assignment.
type signatureSlot struct {
	value string
}

func (s *signatureSlot) get() string {
	return s.value
}

func (s *signatureSlot) set(sig []byte) error {
	if s.value != "" {
		return ErrAlreadySigned
	}
	if len(sig) != encoding.SignatureLength {
		return fmt.Errorf("%w: signature must be %d bytes, got %d", ErrEncoding, encoding.SignatureLength, len(sig))
	}
	s.value = signer.EncodeSignature(sig)
	return nil
}

// Domains returns every signing domain of m keyed by the payload field that
// carries its signature.
func Domains(m Message) map[string]SigningDomain {
	switch msg := m.(type) {
	case *MonitorRequest:
		bp := msg.BalanceProof()
		return map[string]SigningDomain{
			keySignature:            bp,
			keyNonClosingSignature:  msg.NonClosingDomain(),
			keyRewardProofSignature: msg.RewardProofDomain(),
		}
	case SigningDomain:
		return map[string]SigningDomain{keySignature: msg}
	default:
		return nil
	}
}
