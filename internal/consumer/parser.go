package consumer

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/profiq/meetup-analysis-kinetica/internal/domain"
)

// rsvpMessage is the wire shape of a Meetup RSVP notification
type rsvpMessage struct {
	RSVPID   *int64      `json:"rsvp_id" validate:"required"`
	Mtime    *int64      `json:"mtime" validate:"required"`
	Response *string     `json:"response" validate:"required"`
	Event    *eventField `json:"event" validate:"required"`
	Venue    *venueField `json:"venue"`
	Group    *groupField `json:"group"`
}

type eventField struct {
	EventID   *string `json:"event_id" validate:"required,min=1"`
	EventName *string `json:"event_name" validate:"required"`
	EventURL  *string `json:"event_url" validate:"required"`
	Time      *int64  `json:"time"`
}

type venueField struct {
	Lat *float64 `json:"lat" validate:"required"`
	Lon *float64 `json:"lon" validate:"required"`
}

type groupField struct {
	GroupID      int64  `json:"group_id"`
	GroupURLName string `json:"group_urlname"`
}

// RSVPParser decodes and validates RSVP messages
type RSVPParser struct {
	validate *validator.Validate
}

// NewRSVPParser creates a new RSVP parser
func NewRSVPParser() *RSVPParser {
	return &RSVPParser{validate: validator.New()}
}

// Parse decodes a message body. Missing required fields are an error for
// this message only.
func (p *RSVPParser) Parse(body []byte) (*domain.RawEvent, error) {
	var msg rsvpMessage
	if err := json.Unmarshal(body, &msg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message body: %w", err)
	}

	if err := p.validate.Struct(&msg); err != nil {
		return nil, fmt.Errorf("invalid rsvp message: %w", err)
	}

	ev := &domain.RawEvent{
		RSVPID:       *msg.RSVPID,
		Response:     *msg.Response,
		ResponseTime: *msg.Mtime,
		EventID:      *msg.Event.EventID,
		EventName:    *msg.Event.EventName,
		EventURL:     *msg.Event.EventURL,
		EventTime:    msg.Event.Time,
	}

	if msg.Venue != nil {
		ev.Venue = &domain.Venue{Lat: *msg.Venue.Lat, Lon: *msg.Venue.Lon}
	}
	if msg.Group != nil && msg.Group.GroupURLName != "" {
		ev.Group = &domain.Group{ID: msg.Group.GroupID, URLName: msg.Group.GroupURLName}
	}

	return ev, nil
}
