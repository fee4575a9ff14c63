package kvform

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Encode_PreservesOrder(t *testing.T) {
	pairs := []Pair{
		{Key: "mode", Value: "id_res"},
		{Key: "identity", Value: "http://example.com/alice"},
		{Key: "sig", Value: "abc123=="},
	}
	got, err := Encode(pairs)
	require.NoError(t, err)
	assert.Equal(t, "mode:id_res\nidentity:http://example.com/alice\nsig:abc123==\n", got)
}

func Test_Encode_RejectsColonInKey(t *testing.T) {
	_, err := Encode([]Pair{{Key: "bad:key", Value: "x"}})
	assert.Error(t, err)
}

func Test_Encode_RejectsNewlineInValue(t *testing.T) {
	_, err := Encode([]Pair{{Key: "mode", Value: "id_res\nmode:cancel"}})
	assert.Error(t, err)
}

func Test_Decode_SkipsLinesWithoutColon(t *testing.T) {
	text := "mode:id_res\n\nnot-a-pair\nassoc_handle:h1\n"
	got := Decode(text)
	assert.Equal(t, []Pair{
		{Key: "mode", Value: "id_res"},
		{Key: "assoc_handle", Value: "h1"},
	}, got)
}

func Test_Decode_TrimsWhitespace(t *testing.T) {
	got := Decode("mode :  id_res  \n")
	require.Len(t, got, 1)
	assert.Equal(t, "mode", got[0].Key)
	assert.Equal(t, "id_res", got[0].Value)
}

func Test_Map_LastValueWins(t *testing.T) {
	m := Map("mode:id_res\nmode:cancel\n")
	assert.Equal(t, "cancel", m["mode"])
}

func Test_EncodeDecode_RoundTrip(t *testing.T) {
	pairs := []Pair{
		{Key: "assoc_type", Value: "HMAC-SHA1"},
		{Key: "session_type", Value: "DH-SHA1"},
	}
	text, err := Encode(pairs)
	require.NoError(t, err)
	assert.Equal(t, pairs, Decode(text))
}
