package messages

import (
	"fmt"

	"github.com/ethereum/go-ethereum/common"
	"github.com/holiman/uint256"
	"github.com/raiden-network/raiden-libs-go/pkg/encoding"
)

var rewardProofLayout = encoding.Layout{
	{Name: keyNonClosingSignature, Kind: encoding.KindSignature},
	{Name: keyRewardAmount, Kind: encoding.KindUint192},
	{Name: keyMonitorAddress, Kind: encoding.KindAddress},
}

type MonitorRequestParams struct {
	// NonClosingSignature defaults to the balance proof's signature.
	NonClosingSignature  string
	RewardProofSignature string
	RewardAmount         *uint256.Int
	MonitorAddress       string
}

// MonitorRequest asks a monitoring service to submit a balance proof on the
// participant's behalf in exchange for RewardAmount. It carries two
// independent signatures: the participant's signature on the balance proof
// and the reward sender's signature on the reward proof.
type MonitorRequest struct {
	balanceProof        BalanceProof
	nonClosingSignature string
	rewardAmount        *uint256.Int
	monitorAddress      common.Address

	rewardProofSignature signatureSlot
}

// NewMonitorRequest wraps a copy of bp, which must already be signed.
func NewMonitorRequest(bp *BalanceProof, params MonitorRequestParams) (*MonitorRequest, error) {
	if bp == nil {
		return nil, fmt.Errorf("%w: balance_proof", ErrMissingField)
	}
	if !bp.IsSigned() {
		return nil, ErrUnsignedBalanceProof
	}

	nonClosing := params.NonClosingSignature
	if nonClosing == "" {
		nonClosing = bp.Signature()
	}
	if _, err := decodeFixedSignature(keyNonClosingSignature, nonClosing); err != nil {
		return nil, err
	}

	reward, err := requireUint(keyRewardAmount, params.RewardAmount)
	if err != nil {
		return nil, err
	}
	if reward.BitLen() > 192 {
		return nil, fmt.Errorf("%w: %s %s exceeds 192 bits", ErrEncoding, keyRewardAmount, reward.Dec())
	}

	monitor, err := parseAddress(keyMonitorAddress, params.MonitorAddress)
	if err != nil {
		return nil, err
	}

	return &MonitorRequest{
		balanceProof:         *bp,
		nonClosingSignature:  nonClosing,
		rewardAmount:         reward,
		monitorAddress:       monitor,
		rewardProofSignature: signatureSlot{value: params.RewardProofSignature},
	}, nil
}

func (m *MonitorRequest) Type() MessageType { return MessageTypeMonitorRequest }

// BalanceProof returns a copy of the embedded balance proof.
func (m *MonitorRequest) BalanceProof() *BalanceProof {
	bp := m.balanceProof
	return &bp
}

func (m *MonitorRequest) ChainID() *uint256.Int { return m.balanceProof.ChainID() }
func (m *MonitorRequest) NonClosingSignature() string { return m.nonClosingSignature }
func (m *MonitorRequest) RewardAmount() *uint256.Int { return m.rewardAmount.Clone() }
func (m *MonitorRequest) MonitorAddress() common.Address { return m.monitorAddress }
func (m *MonitorRequest) RewardProofSignature() string { return m.rewardProofSignature.get() }

// RewardProofBytes is the canonical encoding signed by the reward sender.
func (m *MonitorRequest) RewardProofBytes() ([]byte, error) {
	nonClosing, err := decodeFixedSignature(keyNonClosingSignature, m.nonClosingSignature)
	if err != nil {
		return nil, err
	}
	return rewardProofLayout.Encode(encoding.Values{
		keyNonClosingSignature: nonClosing,
		keyRewardAmount:        m.rewardAmount,
		keyMonitorAddress:      m.monitorAddress,
	})
}

// RewardProofDomain is the signing domain of the reward proof. Sign it to
// set reward_proof_signature.
func (m *MonitorRequest) RewardProofDomain() SigningDomain {
	return rewardProofDomain{m: m}
}

// NonClosingDomain binds non_closing_signature to the balance proof bytes.
func (m *MonitorRequest) NonClosingDomain() SigningDomain {
	return nonClosingDomain{m: m}
}

// RewardProofSigner recovers the reward sender from the current reward
// proof fields on every call.
func (m *MonitorRequest) RewardProofSigner() (common.Address, error) {
	return RecoverSigner(m.RewardProofDomain())
}

// NonClosingSigner recovers the participant that produced
// non_closing_signature over the balance proof.
func (m *MonitorRequest) NonClosingSigner() (common.Address, error) {
	return RecoverSigner(m.NonClosingDomain())
}

// SerializeBin returns the reward proof bytes; the balance proof's own
// bytes are available through BalanceProof().SerializeBin().
func (m *MonitorRequest) SerializeBin() ([]byte, error) { return m.RewardProofBytes() }

// SerializeData flattens the balance proof fields next to the monitoring
// fields. The balance proof's signature is emitted as signature.
func (m *MonitorRequest) SerializeData() Payload {
	payload := Payload{keyMessageType: string(MessageTypeMonitorRequest)}
	m.balanceProof.writeFields(payload)
	payload[keySignature] = m.balanceProof.Signature()
	payload[keyNonClosingSignature] = m.nonClosingSignature
	payload[keyRewardAmount] = uintValue(m.rewardAmount)
	payload[keyMonitorAddress] = m.monitorAddress.Hex()
	if sig := m.rewardProofSignature.get(); sig != "" {
		payload[keyRewardProofSignature] = sig
	}
	return payload
}

func (m *MonitorRequest) SerializeFull() ([]byte, error) { return serializeFull(m) }

type rewardProofDomain struct {
	m *MonitorRequest
}

func (d rewardProofDomain) SigningBytes() ([]byte, error) { return d.m.RewardProofBytes() }
func (d rewardProofDomain) Signature() string { return d.m.rewardProofSignature.get() }
func (d rewardProofDomain) SetSignature(sig []byte) error { return d.m.rewardProofSignature.set(sig) }

type nonClosingDomain struct {
	m *MonitorRequest
}

func (d nonClosingDomain) SigningBytes() ([]byte, error) { return d.m.balanceProof.SerializeBin() }
func (d nonClosingDomain) Signature() string { return d.m.nonClosingSignature }

// SetSignature always fails: non_closing_signature is fixed at construction.
func (d nonClosingDomain) SetSignature([]byte) error { return ErrAlreadySigned }

func deserializeMonitorRequest(p Payload) (*MonitorRequest, error) {
	bp, err := deserializeBalanceProof(p)
	if err != nil {
		return nil, fmt.Errorf("balance proof: %w", err)
	}

	params := MonitorRequestParams{}
	if params.NonClosingSignature, err = p.readSignature(keyNonClosingSignature); err != nil {
		return nil, err
	}
	if params.RewardProofSignature, err = p.readSignature(keyRewardProofSignature); err != nil {
		return nil, err
	}
	if params.RewardAmount, err = p.readUint(keyRewardAmount); err != nil {
		return nil, err
	}
	if params.MonitorAddress, err = p.readString(keyMonitorAddress); err != nil {
		return nil, err
	}
	return NewMonitorRequest(bp, params)
}
