package messages

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testMessages(t *testing.T) []Message {
	t.Helper()
	ctx := context.Background()

	signedBP, _ := newSignedBalanceProof(t)

	directBP, err := NewBalanceProof(BalanceProofParams{
		ChannelIdentifier:   testChannelID,
		TokenNetworkAddress: testTokenNetwork,
		ChainID:             u(1),
		Nonce:               u(2),
		AdditionalHash:      common.BigToHash(u(9).ToBig()).Hex(),
		Balance:             DirectBalance{BalanceHash: common.BigToHash(u(5).ToBig()), LockedAmount: u(4)},
	})
	require.NoError(t, err)

	feeInfo, err := NewFeeInfo(FeeInfoParams{
		TokenNetworkAddress: testTokenNetwork,
		ChainID:             u(1),
		ChannelIdentifier:   testChannelID,
		Nonce:               u(1),
		RelativeFee:         u(10000),
	})
	require.NoError(t, err)
	require.NoError(t, Sign(ctx, newTestSigner(t), feeInfo))

	pathsRequest, err := NewPathsRequest(PathsRequestParams{
		TokenNetworkAddress: testTokenNetwork,
		SourceAddress:       randomAddress(t),
		TargetAddress:       randomAddress(t),
		Value:               u(1000),
		NumPaths:            u(3),
		ChainID:             u(1),
		Nonce:               u(1),
	})
	require.NoError(t, err)

	pathsReply, err := NewPathsReply(PathsReplyParams{
		TokenNetworkAddress: testTokenNetwork,
		TargetAddress:       randomAddress(t),
		Value:               u(1000),
		ChainID:             u(1),
		Nonce:               u(1),
		PathsAndFees: []PathsAndFeeParams{
			{EstimatedFee: u(10000), Paths: [][]string{{randomAddress(t), randomAddress(t)}}},
			{EstimatedFee: u(20000), Paths: [][]string{{randomAddress(t)}, {randomAddress(t), randomAddress(t), randomAddress(t)}}},
		},
	})
	require.NoError(t, err)
	require.NoError(t, Sign(ctx, newTestSigner(t), pathsReply))

	monitorRequest, err := NewMonitorRequest(signedBP, MonitorRequestParams{
		RewardAmount:   u(1),
		MonitorAddress: randomAddress(t),
	})
	require.NoError(t, err)
	require.NoError(t, Sign(ctx, newTestSigner(t), monitorRequest.RewardProofDomain()))

	return []Message{signedBP, directBP, feeInfo, pathsRequest, pathsReply, monitorRequest}
}

func TestDeserialize_RoundTrip(t *testing.T) {
	for _, m := range testMessages(t) {
		t.Run(m.Type().String(), func(t *testing.T) {
			payload := m.SerializeData()
			assert.Equal(t, m.Type().String(), payload[keyMessageType])

			decoded, err := Deserialize(payload)
			require.NoError(t, err)
			assert.Equal(t, m, decoded)
			assert.Equal(t, payload, decoded.SerializeData())

			full, err := m.SerializeFull()
			require.NoError(t, err)
			fromBytes, err := DeserializeBytes(full)
			require.NoError(t, err)
			assert.Equal(t, m, fromBytes)

			wantBin, err := m.SerializeBin()
			require.NoError(t, err)
			gotBin, err := decoded.SerializeBin()
			require.NoError(t, err)
			assert.Equal(t, wantBin, gotBin)
		})
	}
}

func TestDeserializeAs_RequiredType(t *testing.T) {
	for _, m := range testMessages(t) {
		t.Run(m.Type().String(), func(t *testing.T) {
			decoded, err := DeserializeAs(m.SerializeData(), m.Type())
			require.NoError(t, err)
			assert.Equal(t, m.Type(), decoded.Type())

			for _, other := range MessageTypes() {
				if other == m.Type() {
					continue
				}
				_, err := DeserializeAs(m.SerializeData(), other)
				assert.ErrorIs(t, err, ErrMessageType)
				assert.NotErrorIs(t, err, ErrUnknownMessageType)
			}
		})
	}
}

func TestDeserializeTo(t *testing.T) {
	msgs := testMessages(t)
	feeInfo := msgs[2]

	typed, err := DeserializeTo[*FeeInfo](feeInfo.SerializeData())
	require.NoError(t, err)
	assert.Equal(t, feeInfo, typed)

	_, err = DeserializeTo[*BalanceProof](feeInfo.SerializeData())
	assert.ErrorIs(t, err, ErrMessageType)

	full, err := feeInfo.SerializeFull()
	require.NoError(t, err)
	_, err = DeserializeBytesAs(full, MessageTypeFeeInfo)
	require.NoError(t, err)
	_, err = DeserializeBytesAs(full, MessageTypePathsReply)
	assert.ErrorIs(t, err, ErrMessageType)
}

func TestDeserialize_Tag(t *testing.T) {
	payload := testMessages(t)[2].SerializeData()

	missing := Payload{}
	for k, v := range payload {
		missing[k] = v
	}
	delete(missing, keyMessageType)
	_, err := Deserialize(missing)
	assert.ErrorIs(t, err, ErrMissingField)

	payload[keyMessageType] = "Unknown"
	_, err = Deserialize(payload)
	assert.ErrorIs(t, err, ErrUnknownMessageType)
	assert.NotErrorIs(t, err, ErrMessageType)

	payload[keyMessageType] = 5
	_, err = Deserialize(payload)
	assert.ErrorIs(t, err, ErrUnknownMessageType)

	_, err = DeserializeBytes([]byte("not json"))
	assert.Error(t, err)
	_, err = DeserializeBytes([]byte("null"))
	assert.Error(t, err)
}

func TestDeserialize_DoesNotModifyPayload(t *testing.T) {
	payload := testMessages(t)[2].SerializeData()
	_, err := Deserialize(payload)
	require.NoError(t, err)
	assert.Equal(t, MessageTypeFeeInfo.String(), payload[keyMessageType])
}

func TestSerializeBin_LayoutSizes(t *testing.T) {
	want := map[MessageType]int{
		MessageTypeBalanceProof:   180,
		MessageTypeFeeInfo:        148,
		MessageTypePathsRequest:   188,
		MessageTypePathsReply:     168,
		MessageTypeMonitorRequest: 117,
	}
	for _, m := range testMessages(t) {
		data, err := m.SerializeBin()
		require.NoError(t, err)
		assert.Len(t, data, want[m.Type()], m.Type().String())
	}
}

func TestFeeInfo_PayloadScenario(t *testing.T) {
	payload := Payload{
		"message_type":          "FeeInfo",
		"token_network_address": testTokenNetwork,
		"chain_id":              json.Number("1"),
		"channel_identifier":    testChannelID,
		"nonce":                 json.Number("1"),
		"relative_fee":          json.Number("10000"),
		"signature":             "signature",
	}

	decoded, err := Deserialize(payload)
	require.NoError(t, err)
	require.IsType(t, &FeeInfo{}, decoded)
	assert.Equal(t, payload, decoded.SerializeData())

	feeInfo := decoded.(*FeeInfo)
	assert.Equal(t, uint64(10000), feeInfo.RelativeFee().Uint64())
	assert.Equal(t, "signature", feeInfo.Signature())
}

func TestFeeInfo_JSONText(t *testing.T) {
	text := `{"message_type":"FeeInfo","token_network_address":"` + testTokenNetwork + `",` +
		`"chain_id":1,"channel_identifier":"` + testChannelID + `","nonce":1,` +
		`"relative_fee":10000,"signature":"signature"}`

	decoded, err := DeserializeBytes([]byte(text))
	require.NoError(t, err)

	full, err := decoded.SerializeFull()
	require.NoError(t, err)
	assert.JSONEq(t, text, string(full))
}

func TestFeeInfo_GoIntegers(t *testing.T) {
	payload := Payload{
		"message_type":          "FeeInfo",
		"token_network_address": testTokenNetwork,
		"chain_id":              1,
		"channel_identifier":    testChannelID,
		"nonce":                 uint64(1),
		"relative_fee":          float64(10000),
	}
	decoded, err := DeserializeTo[*FeeInfo](payload)
	require.NoError(t, err)
	assert.Equal(t, json.Number("10000"), decoded.SerializeData()[keyRelativeFee])
	assert.Empty(t, decoded.Signature())
}

func TestPathsReply_NestedOrder(t *testing.T) {
	addrA, addrB := randomAddress(t), randomAddress(t)
	payload := Payload{
		"message_type":          "PathsReply",
		"token_network_address": testTokenNetwork,
		"target_address":        testTokenNetwork,
		"value":                 json.Number("1000"),
		"chain_id":              json.Number("1"),
		"nonce":                 json.Number("1"),
		"paths_and_fees": []any{
			map[string]any{
				"estimated_fee": json.Number("10000"),
				"paths":         []any{[]any{addrA, addrB}},
			},
		},
		"signature": "signature",
	}

	decoded, err := DeserializeTo[*PathsReply](payload)
	require.NoError(t, err)
	assert.Equal(t, payload, decoded.SerializeData())

	groups := decoded.PathsAndFees()
	require.Len(t, groups, 1)
	require.Len(t, groups[0].Paths, 1)
	assert.Equal(t, []common.Address{common.HexToAddress(addrA), common.HexToAddress(addrB)}, groups[0].Paths[0])

	swapped := Payload{}
	for k, v := range payload {
		swapped[k] = v
	}
	swapped["paths_and_fees"] = []any{
		map[string]any{
			"estimated_fee": json.Number("10000"),
			"paths":         []any{[]any{addrB, addrA}},
		},
	}
	reordered, err := DeserializeTo[*PathsReply](swapped)
	require.NoError(t, err)
	assert.NotEqual(t, decoded.PathsAndFeesHash(), reordered.PathsAndFeesHash())

	wantBin, err := decoded.SerializeBin()
	require.NoError(t, err)
	gotBin, err := reordered.SerializeBin()
	require.NoError(t, err)
	assert.NotEqual(t, wantBin, gotBin)
}

func TestPathsReply_TypedPaths(t *testing.T) {
	addrA := randomAddress(t)
	payload := testMessages(t)[4].SerializeData()
	payload[keyPathsAndFees] = []map[string]any{
		{keyEstimatedFee: 5, keyPaths: [][]string{{addrA}}},
	}
	decoded, err := DeserializeTo[*PathsReply](payload)
	require.NoError(t, err)
	assert.Equal(t, common.HexToAddress(addrA), decoded.PathsAndFees()[0].Paths[0][0])
}

func TestPathsReply_GroupingIsHashed(t *testing.T) {
	a, b := randomAddress(t), randomAddress(t)
	build := func(paths [][]string) *PathsReply {
		r, err := NewPathsReply(PathsReplyParams{
			TokenNetworkAddress: testTokenNetwork,
			TargetAddress:       testTokenNetwork,
			Value:               u(1),
			ChainID:             u(1),
			Nonce:               u(1),
			PathsAndFees:        []PathsAndFeeParams{{EstimatedFee: u(1), Paths: paths}},
		})
		require.NoError(t, err)
		return r
	}
	joined := build([][]string{{a, b}})
	split := build([][]string{{a}, {b}})
	assert.NotEqual(t, joined.PathsAndFeesHash(), split.PathsAndFeesHash())
}

func TestPathsReply_InvalidHop(t *testing.T) {
	payload := testMessages(t)[4].SerializeData()
	payload[keyPathsAndFees] = []any{
		map[string]any{keyEstimatedFee: json.Number("1"), keyPaths: []any{[]any{"0x82dd0e0eA3E84D00Cc119c46Ee220609"}}},
	}
	_, err := Deserialize(payload)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	payload[keyPathsAndFees] = []any{
		map[string]any{keyEstimatedFee: json.Number("1"), keyPaths: []any{[]any{7}}},
	}
	_, err = Deserialize(payload)
	assert.ErrorIs(t, err, ErrInvalidAddress)

	payload[keyPathsAndFees] = "nope"
	_, err = Deserialize(payload)
	assert.ErrorIs(t, err, ErrEncoding)
}

func TestPathsRequest_Signing(t *testing.T) {
	msg := testMessages(t)[3].(*PathsRequest)
	s := newTestSigner(t)
	require.NoError(t, Sign(context.Background(), s, msg))

	decoded, err := DeserializeTo[*PathsRequest](msg.SerializeData())
	require.NoError(t, err)
	recovered, err := decoded.Signer()
	require.NoError(t, err)
	assert.Equal(t, s.GetAddress(), recovered)
}

func TestMessageTypes(t *testing.T) {
	assert.Equal(t, []MessageType{
		MessageTypeBalanceProof,
		MessageTypeFeeInfo,
		MessageTypeMonitorRequest,
		MessageTypePathsReply,
		MessageTypePathsRequest,
	}, MessageTypes())
	assert.True(t, IsRegistered(MessageTypeFeeInfo))
	assert.False(t, IsRegistered("Ping"))
}
