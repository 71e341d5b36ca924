package pubsub

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
)

func TestNew_WithoutProjectLogsOnly(t *testing.T) {
	c, err := New(context.Background(), "")
	require.NoError(t, err)
	defer c.Close()

	require.NoError(t, c.SendMessage(EventMatchClosedOut, MatchClosedOut{MatchID: "m1"}))
	assert.Error(t, c.SendMessage(EventMatchClosedOut, make(chan int)), "unencodable payloads still fail")
}

func TestProcessMessage_RoundTripsPayload(t *testing.T) {
	want := HoleResultSynced{
		TripID:     "trip-1",
		MatchID:    "m1",
		EventID:    "e1",
		HoleNumber: 7,
		Winner:     "teamA",
		Kind:       "result",
		Timestamp:  time.Date(2025, 9, 28, 9, 0, 0, 0, time.UTC),
	}
	data, err := msgpack.Marshal(want)
	require.NoError(t, err)

	var got HoleResultSynced
	require.NoError(t, (&noopClient{}).ProcessMessage(data, &got))
	assert.Equal(t, want.EventID, got.EventID)
	assert.Equal(t, want.HoleNumber, got.HoleNumber)
	assert.True(t, want.Timestamp.Equal(got.Timestamp))

	assert.Error(t, (&noopClient{}).ProcessMessage([]byte{0xc1}, &got))
}

func TestMock_RecordsTopics(t *testing.T) {
	m := NewMock()
	require.NoError(t, m.SendMessage(EventHoleResultSynced, HoleResultSynced{}))
	require.NoError(t, m.SendMessage(EventTripClinched, TripClinched{}))
	assert.Equal(t, []EventType{EventHoleResultSynced, EventTripClinched}, m.Topics())

	m.Reset()
	assert.Empty(t, m.Topics())
}
