package events_test

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agentstation/feedsync/pkg/events"
)

func TestEventPreservesPayload(t *testing.T) {
	in := `{"id":"evt-1","title":"Port closure","threatLevel":"high","location":{"lat":1.5,"lng":-2}}`

	var e events.Event
	require.NoError(t, json.Unmarshal([]byte(in), &e))
	assert.Equal(t, "evt-1", e.ID)
	assert.Equal(t, "Port closure", e.String("title"))
	assert.Equal(t, "high", e.String("threatLevel"))
	assert.Empty(t, e.String("missing"))

	var loc struct {
		Lat float64 `json:"lat"`
		Lng float64 `json:"lng"`
	}
	require.NoError(t, e.Decode("location", &loc))
	assert.Equal(t, 1.5, loc.Lat)

	out, err := json.Marshal(e)
	require.NoError(t, err)
	assert.JSONEq(t, in, string(out))
}

func TestEventNumericID(t *testing.T) {
	var e events.Event
	require.NoError(t, json.Unmarshal([]byte(`{"id":42,"title":"x"}`), &e))
	assert.Equal(t, "42", e.ID)
}

func TestEventInvalidID(t *testing.T) {
	var e events.Event
	err := json.Unmarshal([]byte(`{"id":{"nested":true}}`), &e)
	assert.Error(t, err)
}

func TestEventMissingID(t *testing.T) {
	var e events.Event
	require.NoError(t, json.Unmarshal([]byte(`{"title":"no id"}`), &e))
	assert.Empty(t, e.ID)
}

func TestDecodeMissingField(t *testing.T) {
	e, err := events.New("a", nil)
	require.NoError(t, err)
	var v string
	assert.Error(t, e.Decode("title", &v))
}
