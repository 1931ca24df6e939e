package transport

import (
	"testing"

	"github.com/opd-ai/kadnode/identifier"
	"github.com/stretchr/testify/require"
)

func TestMessageRoundTrip(t *testing.T) {
	self, err := identifier.Random()
	require.NoError(t, err)

	token, err := newToken()
	require.NoError(t, err)

	msg := &Message{
		Type:    Request,
		Token:   token,
		Sender:  self,
		Method:  "find_node",
		Payload: []byte("arbitrary payload bytes"),
	}

	data, err := msg.Serialize()
	require.NoError(t, err)

	parsed, err := ParseMessage(data)
	require.NoError(t, err)

	require.Equal(t, msg.Type, parsed.Type)
	require.Equal(t, msg.Token, parsed.Token)
	require.True(t, msg.Sender.Equal(parsed.Sender))
	require.Equal(t, msg.Method, parsed.Method)
	require.Equal(t, msg.Payload, parsed.Payload)
}

func TestMessageRoundTripEmptyPayload(t *testing.T) {
	self, err := identifier.Random()
	require.NoError(t, err)
	token, err := newToken()
	require.NoError(t, err)

	msg := &Message{Type: Response, Token: token, Sender: self, Method: "ping"}
	data, err := msg.Serialize()
	require.NoError(t, err)

	parsed, err := ParseMessage(data)
	require.NoError(t, err)
	require.Empty(t, parsed.Payload)
}

func TestSerializeRejectsOversizedMethodName(t *testing.T) {
	msg := &Message{Method: "this_method_name_is_far_too_long_for_the_wire"}
	_, err := msg.Serialize()
	require.Error(t, err)
}

func TestParseMessageRejectsShortBuffer(t *testing.T) {
	_, err := ParseMessage([]byte{0x00, 0x01, 0x02})
	require.Error(t, err)
}

func TestParseMessageRejectsUnknownType(t *testing.T) {
	self, err := identifier.Random()
	require.NoError(t, err)
	token, err := newToken()
	require.NoError(t, err)

	msg := &Message{Type: 0x02, Token: token, Sender: self, Method: "ping"}
	data, err := msg.Serialize()
	require.NoError(t, err)

	_, err = ParseMessage(data)
	require.Error(t, err)
}

func TestTokensAreDistinct(t *testing.T) {
	a, err := newToken()
	require.NoError(t, err)
	b, err := newToken()
	require.NoError(t, err)
	require.NotEqual(t, a, b)
}
