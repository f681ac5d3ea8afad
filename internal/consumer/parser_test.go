package consumer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const validRSVP = `{
	"rsvp_id": 1658874690,
	"mtime": 1489925471000,
	"response": "yes",
	"event": {
		"event_id": "239174106",
		"event_name": "Go meetup",
		"event_url": "https://www.meetup.com/golang-berlin/events/239174106/",
		"time": 1490205600000
	},
	"venue": {"lat": 52.52, "lon": 13.405, "venue_name": "Betahaus"},
	"group": {"group_id": 42, "group_urlname": "golang-berlin", "group_city": "Berlin"}
}`

func TestRSVPParser_Parse_Success(t *testing.T) {
	parser := NewRSVPParser()

	ev, err := parser.Parse([]byte(validRSVP))

	require.NoError(t, err)
	assert.Equal(t, int64(1658874690), ev.RSVPID)
	assert.Equal(t, int64(1489925471000), ev.ResponseTime)
	assert.Equal(t, "yes", ev.Response)
	assert.Equal(t, "239174106", ev.EventID)
	assert.Equal(t, "Go meetup", ev.EventName)
	require.NotNil(t, ev.EventTime)
	assert.Equal(t, int64(1490205600000), *ev.EventTime)
	require.NotNil(t, ev.Venue)
	assert.Equal(t, 52.52, ev.Venue.Lat)
	require.NotNil(t, ev.Group)
	assert.Equal(t, "golang-berlin", ev.Group.URLName)
	assert.Equal(t, int64(42), ev.Group.ID)
}

func TestRSVPParser_Parse_OptionalFieldsAbsent(t *testing.T) {
	parser := NewRSVPParser()

	ev, err := parser.Parse([]byte(`{
		"rsvp_id": 1, "mtime": 2, "response": "no",
		"event": {"event_id": "e1", "event_name": "n", "event_url": "u"}
	}`))

	require.NoError(t, err)
	assert.Nil(t, ev.EventTime)
	assert.Nil(t, ev.Venue)
	assert.Nil(t, ev.Group)
	assert.Equal(t, "no", ev.Response)
}

func TestRSVPParser_Parse_Malformed(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"invalid json", `{"rsvp_id": `},
		{"missing rsvp_id", `{"mtime": 2, "response": "yes", "event": {"event_id": "e1", "event_name": "n", "event_url": "u"}}`},
		{"missing mtime", `{"rsvp_id": 1, "response": "yes", "event": {"event_id": "e1", "event_name": "n", "event_url": "u"}}`},
		{"missing response", `{"rsvp_id": 1, "mtime": 2, "event": {"event_id": "e1", "event_name": "n", "event_url": "u"}}`},
		{"missing event", `{"rsvp_id": 1, "mtime": 2, "response": "yes"}`},
		{"empty event id", `{"rsvp_id": 1, "mtime": 2, "response": "yes", "event": {"event_id": "", "event_name": "n", "event_url": "u"}}`},
		{"missing event url", `{"rsvp_id": 1, "mtime": 2, "response": "yes", "event": {"event_id": "e1", "event_name": "n"}}`},
		{"venue without lon", `{"rsvp_id": 1, "mtime": 2, "response": "yes", "event": {"event_id": "e1", "event_name": "n", "event_url": "u"}, "venue": {"lat": 1.5}}`},
		{"wrong type", `{"rsvp_id": "one", "mtime": 2, "response": "yes", "event": {"event_id": "e1", "event_name": "n", "event_url": "u"}}`},
	}

	parser := NewRSVPParser()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ev, err := parser.Parse([]byte(tt.body))
			assert.Error(t, err)
			assert.Nil(t, ev)
		})
	}
}
