package awsKmsSigner

import (
	"context"
	cryptoEcdsa "crypto/ecdsa"
	"encoding/asn1"
	"fmt"
	"math/big"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/kms"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/raiden-network/raiden-libs-go/pkg/signer"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var (
	oidECPublicKey = asn1.ObjectIdentifier{1, 2, 840, 10045, 2, 1}
	oidSecp256k1   = asn1.ObjectIdentifier{1, 3, 132, 0, 10}
)

// fakeKMS signs locally and answers with the same DER encodings KMS uses.
type fakeKMS struct {
	key     *cryptoEcdsa.PrivateKey
	highS   bool
	signErr error
}

func (f *fakeKMS) GetPublicKey(_ context.Context, _ *kms.GetPublicKeyInput, _ ...func(*kms.Options)) (*kms.GetPublicKeyOutput, error) {
	pub := crypto.FromECDSAPub(&f.key.PublicKey)
	der, err := asn1.Marshal(asn1EcPublicKey{
		EcPublicKeyInfo: asn1EcPublicKeyInfo{Algorithm: oidECPublicKey, Parameters: oidSecp256k1},
		PublicKey:       asn1.BitString{Bytes: pub, BitLength: len(pub) * 8},
	})
	if err != nil {
		return nil, err
	}
	return &kms.GetPublicKeyOutput{PublicKey: der}, nil
}

func (f *fakeKMS) Sign(_ context.Context, params *kms.SignInput, _ ...func(*kms.Options)) (*kms.SignOutput, error) {
	if f.signErr != nil {
		return nil, f.signErr
	}
	sig, err := crypto.Sign(params.Message, f.key)
	if err != nil {
		return nil, err
	}
	r := new(big.Int).SetBytes(sig[:32])
	s := new(big.Int).SetBytes(sig[32:64])
	if f.highS {
		s = new(big.Int).Sub(secp256k1N, s)
	}
	der, err := asn1.Marshal(struct{ R, S *big.Int }{r, s})
	if err != nil {
		return nil, err
	}
	return &kms.SignOutput{Signature: der}, nil
}

func newFakeSigner(t *testing.T, fake *fakeKMS) *AWSKMSSigner {
	t.Helper()
	s, err := NewAWSKMSSigner(context.Background(), fake, "test-key", zap.NewNop())
	require.NoError(t, err)
	return s
}

func TestAWSKMSSigner_Address(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	s := newFakeSigner(t, &fakeKMS{key: key})
	assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), s.GetAddress())
}

func TestAWSKMSSigner_SignMessage(t *testing.T) {
	for _, highS := range []bool{false, true} {
		t.Run(fmt.Sprintf("highS=%v", highS), func(t *testing.T) {
			key, err := crypto.GenerateKey()
			require.NoError(t, err)
			s := newFakeSigner(t, &fakeKMS{key: key, highS: highS})

			data := []byte("reward proof bytes")
			sig, err := s.SignMessage(context.Background(), data)
			require.NoError(t, err)
			require.Len(t, sig, signer.SignatureLength)
			assert.Contains(t, []byte{27, 28}, sig[64])

			sValue := new(big.Int).SetBytes(sig[32:64])
			assert.LessOrEqual(t, sValue.Cmp(secp256k1HalfN), 0)

			recovered, err := signer.RecoverAddress(data, sig)
			require.NoError(t, err)
			assert.Equal(t, s.GetAddress(), recovered)
		})
	}
}

func TestAWSKMSSigner_Errors(t *testing.T) {
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	_, err = NewAWSKMSSigner(context.Background(), &fakeKMS{key: key}, "", zap.NewNop())
	require.Error(t, err)

	s := newFakeSigner(t, &fakeKMS{key: key, signErr: fmt.Errorf("throttled")})
	_, err = s.SignMessage(context.Background(), []byte("data"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "throttled")
}

func TestParseECDSAPublicKey_Invalid(t *testing.T) {
	_, err := parseECDSAPublicKey([]byte{0x01, 0x02})
	require.Error(t, err)
}
