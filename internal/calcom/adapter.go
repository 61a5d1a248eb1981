package calcom

import (
	"context"
	"log/slog"
	"net/mail"
	"strconv"
	"time"

	"voicecal-mcp/internal/cache"
	"voicecal-mcp/internal/mcp"
)

const dateLayout = "2006-01-02"

// defaultWindow is the slot search span when end_date is omitted.
const defaultWindow = 7 * 24 * time.Hour

// SlotsResult is the payload of get_available_slots.
type SlotsResult struct {
	AvailableSlots *Availability `json:"available_slots"`
	Message        string        `json:"message"`
}

// BookingResult is the payload of book_meeting.
type BookingResult struct {
	Booking map[string]any `json:"booking"`
	Message string         `json:"message"`
}

// Adapter serves the scheduling tools.
type Adapter struct {
	client   *Client
	events   *cache.Cache[*EventType]
	eventTTL time.Duration
	language string
	logger   *slog.Logger
	now      func() time.Time
}

// AdapterOption configures an Adapter.
type AdapterOption func(*Adapter)

// WithEventTypeTTL sets how long event type lookups are cached. Zero
// disables caching.
func WithEventTypeTTL(d time.Duration) AdapterOption {
	return func(a *Adapter) { a.eventTTL = d }
}

// WithLanguage sets the booking language sent to Cal.com.
func WithLanguage(lang string) AdapterOption {
	return func(a *Adapter) {
		if lang != "" {
			a.language = lang
		}
	}
}

// WithLogger sets the adapter logger.
func WithLogger(l *slog.Logger) AdapterOption {
	return func(a *Adapter) { a.logger = l }
}

// NewAdapter returns the scheduling adapter over client.
func NewAdapter(client *Client, opts ...AdapterOption) *Adapter {
	a := &Adapter{
		client:   client,
		events:   cache.New[*EventType](),
		eventTTL: 10 * time.Minute,
		language: "en",
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	if a.logger == nil {
		a.logger = slog.Default()
	}
	return a
}

// Call implements mcp.Adapter.
func (a *Adapter) Call(ctx context.Context, name mcp.ToolName, args mcp.Args) (any, error) {
	switch name {
	case mcp.GetAvailableSlots:
		return a.availableSlots(ctx, args)
	case mcp.BookMeeting:
		return a.bookMeeting(ctx, args)
	default:
		return nil, mcp.Errorf(mcp.KindUnknownTool, "unknown scheduling tool: %s", name)
	}
}

func (a *Adapter) availableSlots(ctx context.Context, args mcp.Args) (any, error) {
	if err := args.Require("event_type_id"); err != nil {
		return nil, err
	}
	tz, loc, err := location(args.Get("timezone"))
	if err != nil {
		return nil, err
	}

	today := midnight(a.now().In(loc))
	start := today
	if s := args.Get("start_date"); s != "" {
		if start, err = parseBound(s, loc, false); err != nil {
			return nil, err
		}
	}
	end := start.Add(defaultWindow)
	if s := args.Get("end_date"); s != "" {
		if end, err = parseBound(s, loc, true); err != nil {
			return nil, err
		}
	}
	if end.Before(start) {
		return nil, mcp.Errorf(mcp.KindValidation, "end_date must not be before start_date")
	}

	avail, err := a.client.Slots(ctx, SlotQuery{
		EventTypeID: args.Get("event_type_id"),
		Start:       start.UTC().Format(time.RFC3339),
		End:         end.UTC().Format(time.RFC3339),
		TimeZone:    tz,
	})
	if err != nil {
		return nil, mcp.Wrap(mcp.KindUpstream, err, "failed to get available slots")
	}
	a.logger.Debug("slots retrieved", "event_type_id", args.Get("event_type_id"),
		"days", avail.Days(), "slots", avail.Count())
	return SlotsResult{AvailableSlots: avail, Message: "Available slots retrieved successfully"}, nil
}

func (a *Adapter) bookMeeting(ctx context.Context, args mcp.Args) (any, error) {
	if err := args.Require("event_type_id", "start_time", "name", "email"); err != nil {
		return nil, err
	}
	id, err := strconv.Atoi(args.Get("event_type_id"))
	if err != nil {
		return nil, mcp.Errorf(mcp.KindValidation, "event_type_id must be numeric, got %q", args.Get("event_type_id"))
	}
	start, err := time.Parse(time.RFC3339, args.Get("start_time"))
	if err != nil {
		return nil, mcp.Errorf(mcp.KindValidation, "start_time must be RFC 3339, got %q", args.Get("start_time"))
	}
	var end time.Time
	if s := args.Get("end_time"); s != "" {
		if end, err = time.Parse(time.RFC3339, s); err != nil {
			return nil, mcp.Errorf(mcp.KindValidation, "end_time must be RFC 3339, got %q", s)
		}
		if !end.After(start) {
			return nil, mcp.Errorf(mcp.KindValidation, "end_time must be after start_time")
		}
	}
	if _, err := mail.ParseAddress(args.Get("email")); err != nil {
		return nil, mcp.Errorf(mcp.KindValidation, "invalid email %q", args.Get("email"))
	}
	tz, _, err := location(args.Get("timezone"))
	if err != nil {
		return nil, err
	}

	if end.IsZero() {
		if et := a.eventType(ctx, id); et != nil && et.Length > 0 {
			end = start.Add(time.Duration(et.Length) * time.Minute)
		}
	}

	b := Booking{
		EventTypeID: id,
		Start:       start.UTC().Format(time.RFC3339),
		Responses: Responses{
			Name:     args.Get("name"),
			Email:    args.Get("email"),
			Notes:    args.Get("notes"),
			Location: Location{Value: "integrations:daily"},
		},
		TimeZone: tz,
		Language: a.language,
		Metadata: map[string]string{},
	}
	if !end.IsZero() {
		b.End = end.UTC().Format(time.RFC3339)
	}

	booking, err := a.client.CreateBooking(ctx, b)
	if err != nil {
		return nil, mcp.Wrap(mcp.KindUpstream, err, "failed to book meeting")
	}
	return BookingResult{Booking: booking, Message: "Meeting booked successfully"}, nil
}

// eventType returns the cached or freshly fetched event type. Lookup
// failures are logged and yield nil; the booking proceeds without it.
func (a *Adapter) eventType(ctx context.Context, id int) *EventType {
	key := strconv.Itoa(id)
	if et, ok := a.events.Get(key); ok {
		return et
	}
	et, err := a.client.EventType(ctx, key)
	if err != nil {
		a.logger.Warn("event type lookup failed", "event_type_id", id, "error", err)
		return nil
	}
	a.events.Set(key, et, a.eventTTL)
	return et
}

func location(name string) (string, *time.Location, error) {
	if name == "" {
		name = "UTC"
	}
	loc, err := time.LoadLocation(name)
	if err != nil {
		return "", nil, mcp.Errorf(mcp.KindValidation, "unknown timezone %q", name)
	}
	return name, loc, nil
}

// parseBound reads a YYYY-MM-DD day or an RFC 3339 instant. Days resolve
// to their first second, or their last when endOfDay is set.
func parseBound(s string, loc *time.Location, endOfDay bool) (time.Time, error) {
	if t, err := time.ParseInLocation(dateLayout, s, loc); err == nil {
		if endOfDay {
			return t.AddDate(0, 0, 1).Add(-time.Second), nil
		}
		return t, nil
	}
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.In(loc), nil
	}
	return time.Time{}, mcp.Errorf(mcp.KindValidation, "invalid date %q: expected YYYY-MM-DD or RFC 3339", s)
}

func midnight(t time.Time) time.Time {
	y, m, d := t.Date()
	return time.Date(y, m, d, 0, 0, 0, 0, t.Location())
}
