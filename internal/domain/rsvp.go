package domain

import "time"

// Venue holds the coordinates of the place an event happens at
type Venue struct {
	Lat float64
	Lon float64
}

// Group identifies the Meetup group organizing an event
type Group struct {
	ID      int64
	URLName string
}

// RawEvent is a single RSVP notification as delivered by the stream
type RawEvent struct {
	RSVPID       int64
	Response     string
	ResponseTime int64
	EventID      string
	EventName    string
	EventURL     string
	EventTime    *int64
	Venue        *Venue
	Group        *Group
}

// Record is an RSVP projected into the persisted schema.
// Attributes is nil until enrichment has been attempted.
type Record struct {
	EventID        string   `ch:"event_id"`
	Name           string   `ch:"name"`
	URL            string   `ch:"url"`
	EventTimestamp *int64   `ch:"event_timestamp"`
	Lat            *float64 `ch:"lat"`
	Lon            *float64 `ch:"lon"`
	RSVPID         int64    `ch:"rsvp_id"`
	Response       uint8    `ch:"response"`
	RSVPTimestamp  int64    `ch:"rsvp_timestamp"`

	Attributes *Attributes

	ProcessedAt time.Time `ch:"processed_at"`
	Version     uint64    `ch:"version"`
}

// NewRecord projects a raw event into a record without attributes
func NewRecord(ev *RawEvent) *Record {
	rec := &Record{
		EventID:        ev.EventID,
		Name:           ev.EventName,
		URL:            ev.EventURL,
		EventTimestamp: ev.EventTime,
		RSVPID:         ev.RSVPID,
		RSVPTimestamp:  ev.ResponseTime,
	}
	if ev.Response == "yes" {
		rec.Response = 1
	}
	if ev.Venue != nil {
		lat, lon := ev.Venue.Lat, ev.Venue.Lon
		rec.Lat = &lat
		rec.Lon = &lon
	}
	return rec
}

// Attach replaces the record's attribute set as a whole
func (r *Record) Attach(attrs Attributes) {
	a := attrs
	r.Attributes = &a
}

// Enriched reports whether enrichment has been attempted for the record
func (r *Record) Enriched() bool {
	return r.Attributes != nil
}
