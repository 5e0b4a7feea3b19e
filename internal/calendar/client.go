// Package calendar talks to the interviewers' Google calendars: free/busy
// lookups and interview events.
package calendar

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	gcal "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/metrics"
	"github.com/LonghornRacingElectric/recruiting-site-2026-sub000/internal/slots"
)

// Invite is the interview event written to the system's calendar.
type Invite struct {
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Timezone    string
	Attendees   []string
}

// Client wraps the Calendar v3 API. Every call is bounded by timeout.
type Client struct {
	svc     *gcal.Service
	timeout time.Duration
}

// New builds a Client. opts typically carry option.WithCredentialsFile.
func New(ctx context.Context, timeout time.Duration, opts ...option.ClientOption) (*Client, error) {
	opts = append([]option.ClientOption{option.WithScopes(gcal.CalendarScope)}, opts...)
	svc, err := gcal.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("calendar.NewService: %w", err)
	}
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{svc: svc, timeout: timeout}, nil
}

// Busy returns the busy intervals of every calendar in ids within [from, to).
// A calendar reporting an error fails the whole call: a partial view could
// double-book an interviewer.
func (c *Client) Busy(ctx context.Context, ids []string, from, to time.Time) ([]slots.Interval, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	start := time.Now()

	req := &gcal.FreeBusyRequest{
		TimeMin: from.UTC().Format(time.RFC3339),
		TimeMax: to.UTC().Format(time.RFC3339),
	}
	for _, id := range ids {
		req.Items = append(req.Items, &gcal.FreeBusyRequestItem{Id: id})
	}
	resp, err := c.svc.Freebusy.Query(req).Context(ctx).Do()
	observe("freebusy", start, err)
	if err != nil {
		return nil, fmt.Errorf("freebusy query: %w", err)
	}

	var busy []slots.Interval
	for id, cal := range resp.Calendars {
		if len(cal.Errors) > 0 {
			return nil, fmt.Errorf("freebusy %s: %s", id, cal.Errors[0].Reason)
		}
		for _, p := range cal.Busy {
			s, err := time.Parse(time.RFC3339, p.Start)
			if err != nil {
				return nil, fmt.Errorf("freebusy %s: start %q: %w", id, p.Start, err)
			}
			e, err := time.Parse(time.RFC3339, p.End)
			if err != nil {
				return nil, fmt.Errorf("freebusy %s: end %q: %w", id, p.End, err)
			}
			busy = append(busy, slots.Interval{Start: s, End: e})
		}
	}
	return busy, nil
}

// CreateEvent inserts inv into calendarID and returns the event id.
// Attendees get the invitation email from the calendar provider.
func (c *Client) CreateEvent(ctx context.Context, calendarID string, inv Invite) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	start := time.Now()

	ev := &gcal.Event{
		Summary:     inv.Summary,
		Description: inv.Description,
		Start:       &gcal.EventDateTime{DateTime: inv.Start.Format(time.RFC3339), TimeZone: inv.Timezone},
		End:         &gcal.EventDateTime{DateTime: inv.End.Format(time.RFC3339), TimeZone: inv.Timezone},
	}
	for _, a := range inv.Attendees {
		ev.Attendees = append(ev.Attendees, &gcal.EventAttendee{Email: a})
	}
	created, err := c.svc.Events.Insert(calendarID, ev).SendUpdates("all").Context(ctx).Do()
	observe("insert", start, err)
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return created.Id, nil
}

// DeleteEvent removes an event. An event that is already gone is not an error.
func (c *Client) DeleteEvent(ctx context.Context, calendarID, eventID string) error {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()
	start := time.Now()

	err := c.svc.Events.Delete(calendarID, eventID).SendUpdates("all").Context(ctx).Do()
	if isGone(err) {
		err = nil
	}
	observe("delete", start, err)
	if err != nil {
		return fmt.Errorf("delete event %s: %w", eventID, err)
	}
	return nil
}

func isGone(err error) bool {
	var gerr *googleapi.Error
	if errors.As(err, &gerr) {
		return gerr.Code == http.StatusNotFound || gerr.Code == http.StatusGone
	}
	return false
}

func observe(op string, start time.Time, err error) {
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	metrics.CalendarCallDuration.WithLabelValues(op, outcome).Observe(time.Since(start).Seconds())
}
