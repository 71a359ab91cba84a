package kafka

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncode(t *testing.T) {
	msg, err := Encode(Event{Key: "run-1", Value: map[string]int{"words": 4}})
	require.NoError(t, err)
	assert.Equal(t, []byte("run-1"), msg.Key)

	var got map[string]int
	require.NoError(t, json.Unmarshal(msg.Value, &got))
	assert.Equal(t, 4, got["words"])
	assert.False(t, msg.Time.IsZero())
}

func TestEncodeRejectsUnmarshalable(t *testing.T) {
	_, err := Encode(Event{Key: "k", Value: make(chan int)})
	assert.Error(t, err)
}
