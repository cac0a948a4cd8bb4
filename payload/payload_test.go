package payload

import (
	"strings"
	"testing"

	fuzz "github.com/google/gofuzz"
	"github.com/holiman/uint256"
	werrors "github.com/mezonai/simplewallet/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testPubKey = "02a1633cafcc01ebfb6d78e39f687a1f0995c62fc95f51ead10a02ee0be551b5dc"

func TestDecode_Scenarios(t *testing.T) {
	req, err := Decode([]byte("deposit,50"))
	require.NoError(t, err)
	assert.Equal(t, &Request{Action: ActionDeposit, Amount: "50"}, req)
	assert.False(t, req.HasCounterparty())

	req, err = Decode([]byte("transfer,10," + testPubKey))
	require.NoError(t, err)
	assert.Equal(t, &Request{Action: ActionTransfer, Amount: "10", Counterparty: testPubKey}, req)

	_, err = Decode([]byte("bogus"))
	require.Error(t, err)
	assert.True(t, werrors.HasCode(err, werrors.ErrCodeMalformedRequest))
}

func TestDecode_WrongFieldCount(t *testing.T) {
	for _, raw := range []string{"", "deposit", "a,b,c,d", "transfer,1,k,extra,more"} {
		_, err := Decode([]byte(raw))
		assert.Truef(t, werrors.HasCode(err, werrors.ErrCodeMalformedRequest), "payload %q", raw)
	}
}

func TestDecode_EmptyField(t *testing.T) {
	for _, raw := range []string{"deposit,50,", ",50", "deposit,", "transfer,,"+testPubKey, ","} {
		_, err := Decode([]byte(raw))
		assert.Truef(t, werrors.HasCode(err, werrors.ErrCodeMalformedRequest), "payload %q", raw)
	}
}

func TestEncode_Format(t *testing.T) {
	b, err := Encode(ActionWithdraw, uint256.NewInt(40), "")
	require.NoError(t, err)
	assert.Equal(t, "withdraw,40", string(b))

	b, err = Encode(ActionTransfer, uint256.NewInt(60), testPubKey)
	require.NoError(t, err)
	assert.Equal(t, "transfer,60,"+testPubKey, string(b))
}

func TestEncode_Rejects(t *testing.T) {
	tests := []struct {
		name         string
		action       Action
		amount       *uint256.Int
		counterparty string
	}{
		{"transfer without counterparty", ActionTransfer, uint256.NewInt(1), ""},
		{"deposit with counterparty", ActionDeposit, uint256.NewInt(1), testPubKey},
		{"comma in counterparty", ActionTransfer, uint256.NewInt(1), "a,b"},
		{"comma in action", Action("dep,osit"), uint256.NewInt(1), ""},
		{"empty action", Action(""), uint256.NewInt(1), ""},
		{"nil amount", ActionDeposit, nil, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Encode(tt.action, tt.amount, tt.counterparty)
			assert.True(t, werrors.HasCode(err, werrors.ErrCodeMalformedRequest))
		})
	}
}

func TestRoundTrip_AllInputs(t *testing.T) {
	f := fuzz.New().NilChance(0)
	actions := []Action{ActionDeposit, ActionWithdraw, ActionTransfer}
	for i := 0; i < 300; i++ {
		var n uint64
		var key string
		f.Fuzz(&n)
		f.Fuzz(&key)
		key = strings.ReplaceAll(key, ",", "")
		action := actions[i%len(actions)]

		counterparty := ""
		if action == ActionTransfer {
			if key == "" {
				key = testPubKey
			}
			counterparty = key
		}

		amount := uint256.NewInt(n)
		encoded, err := Encode(action, amount, counterparty)
		require.NoError(t, err)

		decoded, err := Decode(encoded)
		require.NoError(t, err)
		assert.Equal(t, action, decoded.Action)
		assert.Equal(t, amount.Dec(), decoded.Amount)
		assert.Equal(t, counterparty, decoded.Counterparty)
	}
}

func TestParseAmount(t *testing.T) {
	v, err := ParseAmount("100")
	require.NoError(t, err)
	assert.Equal(t, uint64(100), v.Uint64())

	for _, raw := range []string{"0", "-5", "abc", "", "1.5", " 3", "+4", "0x10"} {
		_, err := ParseAmount(raw)
		assert.Truef(t, werrors.HasCode(err, werrors.ErrCodeMalformedRequest), "amount %q", raw)
	}
}

func TestAction_Known(t *testing.T) {
	assert.True(t, ActionBalance.Known())
	assert.False(t, Action("magic").Known())
	assert.False(t, Action("").Known())
	assert.True(t, ActionTransfer.Mutating())
	assert.False(t, ActionBalance.Mutating())
}
