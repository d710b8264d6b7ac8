package fixcodec

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeDecodeRoundTrip(t *testing.T) {
	var m Message
	m.Set(35, "D")
	m.Set(55, "BTC-USD")
	m.Set(38, "100")

	raw := Encode(m)
	decoded, err := Decode(raw)
	require.NoError(t, err)

	v, ok := decoded.Get(35)
	require.True(t, ok)
	assert.Equal(t, "D", v)

	v, ok = decoded.Get(55)
	require.True(t, ok)
	assert.Equal(t, "BTC-USD", v)

	v, ok = decoded.Get(38)
	require.True(t, ok)
	assert.Equal(t, "100", v)

	_, ok = decoded.Get(8)
	assert.False(t, ok, "the begin-string framing field is not a payload field")
}

func TestDecodeRejectsCorruptedChecksum(t *testing.T) {
	var m Message
	m.Set(35, "D")
	raw := Encode(m)
	raw[len(raw)-2] = '9' // corrupt a checksum digit

	_, err := Decode(raw)
	assert.Error(t, err)
}

func TestSetOverwritesExistingTag(t *testing.T) {
	var m Message
	m.Set(55, "BTC-USD")
	m.Set(55, "ETH-USD")

	require.Len(t, m.Fields, 1)
	v, _ := m.Get(55)
	assert.Equal(t, "ETH-USD", v)
}

func TestEncodeStartsWithBeginString(t *testing.T) {
	raw := Encode(Message{})
	assert.Contains(t, string(raw), "8=FIX.HFT.1")
}
