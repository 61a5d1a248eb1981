// Package calcom adapts the scheduling tools to the Cal.com v1 REST API.
// The API key travels in the apiKey query parameter.
package calcom

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"voicecal-mcp/internal/upstream"
)

// DefaultBaseURL is the public Cal.com API host.
const DefaultBaseURL = "https://api.cal.com"

// Client is a minimal Cal.com v1 client.
type Client struct {
	api *upstream.Client
}

// NewClient returns a client for baseURL authenticated with apiKey.
func NewClient(baseURL, apiKey string, opts ...upstream.Option) *Client {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	opts = append([]upstream.Option{upstream.WithQuery("apiKey", apiKey)}, opts...)
	return &Client{api: upstream.New("calcom", baseURL, opts...)}
}

// SlotQuery selects the availability window of an event type.
type SlotQuery struct {
	EventTypeID string
	Start       string // RFC 3339
	End         string // RFC 3339
	TimeZone    string
}

// Slots fetches the open slots for q.
func (c *Client) Slots(ctx context.Context, q SlotQuery) (*Availability, error) {
	params := url.Values{}
	params.Set("eventTypeId", q.EventTypeID)
	params.Set("startTime", q.Start)
	params.Set("endTime", q.End)
	params.Set("timeZone", q.TimeZone)

	raw, err := c.api.JSON(ctx, upstream.Request{Method: http.MethodGet, Path: "/v1/slots", Query: params})
	if err != nil {
		return nil, err
	}
	return parseAvailability(raw)
}

// EventType is the subset of an event type the adapter uses.
type EventType struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Slug   string `json:"slug"`
	Length int    `json:"length"` // minutes
}

// EventType fetches a single event type.
func (c *Client) EventType(ctx context.Context, id string) (*EventType, error) {
	raw, err := c.api.JSON(ctx, upstream.Request{
		Method: http.MethodGet,
		Path:   "/v1/event-types/" + url.PathEscape(id),
	})
	if err != nil {
		return nil, err
	}
	var body struct {
		EventType *EventType `json:"event_type"`
	}
	if err := json.Unmarshal(raw, &body); err != nil || body.EventType == nil {
		return nil, fmt.Errorf("event type %s: %w", id, upstream.ErrUnexpectedShape)
	}
	return body.EventType, nil
}

// Booking is the v1 create-booking payload.
type Booking struct {
	EventTypeID int               `json:"eventTypeId"`
	Start       string            `json:"start"`
	End         string            `json:"end,omitempty"`
	Responses   Responses         `json:"responses"`
	TimeZone    string            `json:"timeZone"`
	Language    string            `json:"language"`
	Metadata    map[string]string `json:"metadata"`
}

// Responses are the attendee answers of a booking.
type Responses struct {
	Name     string   `json:"name"`
	Email    string   `json:"email"`
	Notes    string   `json:"notes"`
	Location Location `json:"location"`
}

// Location selects the meeting location integration.
type Location struct {
	Value       string `json:"value"`
	OptionValue string `json:"optionValue"`
}

// CreateBooking books b and returns the upstream booking object.
func (c *Client) CreateBooking(ctx context.Context, b Booking) (map[string]any, error) {
	raw, err := c.api.JSON(ctx, upstream.Request{Method: http.MethodPost, Path: "/v1/bookings", Body: b})
	if err != nil {
		return nil, err
	}
	return upstream.DecodeObject(raw)
}
