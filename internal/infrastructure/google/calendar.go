package google

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"DailyBriefing/internal/apperr"
	"DailyBriefing/internal/domain"
	"DailyBriefing/internal/infrastructure/upstream"
	"DailyBriefing/internal/ports"
)

const (
	untitledEvent = "no title"
	maxPages      = 10
)

// CalendarOptions wires credentials and endpoints for the Calendar client.
type CalendarOptions struct {
	Credentials Credentials
	CalendarID  string
	TokenURL    string
	APIBaseURL  string
	HTTPClient  *http.Client
	Logger      *slog.Logger
}

// Calendar reads today's events from Google Calendar.
type Calendar struct {
	calendarID string
	baseURL    string
	client     *http.Client
	tokens     *tokenSource
	logger     *slog.Logger
}

var _ ports.CalendarSource = (*Calendar)(nil)

// NewCalendar builds the adapter. Missing credentials surface on Fetch, not here.
func NewCalendar(opts CalendarOptions) *Calendar {
	client := opts.HTTPClient
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	calendarID := opts.CalendarID
	if calendarID == "" {
		calendarID = "primary"
	}
	return &Calendar{
		calendarID: calendarID,
		baseURL:    strings.TrimSuffix(opts.APIBaseURL, "/"),
		client:     client,
		tokens:     newTokenSource(opts.Credentials, opts.TokenURL, client),
		logger:     opts.Logger,
	}
}

type eventTime struct {
	DateTime string `json:"dateTime"`
	Date     string `json:"date"`
}

type eventItem struct {
	ID       string    `json:"id"`
	Summary  string    `json:"summary"`
	Location string    `json:"location"`
	Status   string    `json:"status"`
	Start    eventTime `json:"start"`
	End      eventTime `json:"end"`
}

type eventsPage struct {
	Items         []eventItem `json:"items"`
	NextPageToken string      `json:"nextPageToken"`
}

// Fetch returns events overlapping [timeMin, timeMax], clipped to the window and ordered by start.
func (c *Calendar) Fetch(ctx context.Context, timeMin, timeMax string) ([]domain.CalendarEvent, error) {
	if missing := c.tokens.creds.missing(); len(missing) > 0 {
		return nil, apperr.Configuration("credential_missing", "google calendar credentials missing: %s", strings.Join(missing, ", "))
	}

	windowMin, err := NormalizeDate(timeMin)
	if err != nil {
		return nil, fmt.Errorf("timeMin: %w", err)
	}
	windowMax, err := NormalizeDate(timeMax)
	if err != nil {
		return nil, fmt.Errorf("timeMax: %w", err)
	}
	if windowMax.Before(windowMin) {
		return nil, apperr.Validation("invalid_window", "timeMax %s is before timeMin %s", timeMax, timeMin)
	}

	token, err := c.tokens.AccessToken(ctx)
	if err != nil {
		return nil, err
	}

	var items []eventItem
	pageToken := ""
	for page := 0; page < maxPages; page++ {
		result, err := c.fetchPage(ctx, token, windowMin, windowMax, pageToken)
		if err != nil {
			return nil, err
		}
		items = append(items, result.Items...)
		if result.NextPageToken == "" {
			break
		}
		pageToken = result.NextPageToken
	}

	events := make([]domain.CalendarEvent, 0, len(items))
	for _, item := range items {
		if item.Status == "cancelled" {
			continue
		}
		event, err := toEvent(item)
		if err != nil {
			return nil, fmt.Errorf("event %s: %w", item.ID, err)
		}
		clipped, ok := clip(event, windowMin, windowMax)
		if !ok {
			continue
		}
		events = append(events, clipped)
	}

	sort.SliceStable(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})

	c.debug("calendar events fetched", "count", len(events), "time_min", FormatInstant(windowMin), "time_max", FormatInstant(windowMax))
	return events, nil
}

func (c *Calendar) fetchPage(ctx context.Context, token string, windowMin, windowMax time.Time, pageToken string) (eventsPage, error) {
	endpoint := fmt.Sprintf("%s/calendars/%s/events", c.baseURL, url.PathEscape(c.calendarID))
	query := url.Values{}
	query.Set("timeMin", FormatInstant(windowMin))
	query.Set("timeMax", FormatInstant(windowMax))
	query.Set("singleEvents", "true")
	query.Set("orderBy", "startTime")
	query.Set("maxResults", "250")
	if pageToken != "" {
		query.Set("pageToken", pageToken)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+query.Encode(), nil)
	if err != nil {
		return eventsPage{}, fmt.Errorf("new events request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return eventsPage{}, apperr.Upstream("calendar_unreachable", fmt.Errorf("request events: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return eventsPage{}, upstream.StatusError("google calendar", "calendar_status", resp)
	}

	var page eventsPage
	if err := json.NewDecoder(resp.Body).Decode(&page); err != nil {
		return eventsPage{}, apperr.Upstream("calendar_decode", fmt.Errorf("decode events: %w", err))
	}
	return page, nil
}

func toEvent(item eventItem) (domain.CalendarEvent, error) {
	allDay := item.Start.DateTime == "" && item.Start.Date != ""

	start, err := NormalizeDate(firstNonEmpty(item.Start.DateTime, item.Start.Date))
	if err != nil {
		return domain.CalendarEvent{}, fmt.Errorf("start: %w", err)
	}

	var end time.Time
	if raw := firstNonEmpty(item.End.DateTime, item.End.Date); raw != "" {
		end, err = NormalizeDate(raw)
		if err != nil {
			return domain.CalendarEvent{}, fmt.Errorf("end: %w", err)
		}
	} else if allDay {
		end = start.Add(24 * time.Hour)
	} else {
		end = start
	}

	title := strings.TrimSpace(item.Summary)
	if title == "" {
		title = untitledEvent
	}

	return domain.CalendarEvent{
		ID:       item.ID,
		Title:    title,
		Start:    start,
		End:      end,
		Location: strings.TrimSpace(item.Location),
		AllDay:   allDay,
	}, nil
}

// clip bounds the event to the window; events entirely outside it are dropped.
func clip(event domain.CalendarEvent, windowMin, windowMax time.Time) (domain.CalendarEvent, bool) {
	if event.End.Before(windowMin) || event.Start.After(windowMax) {
		return event, false
	}
	if event.Start.Before(windowMin) {
		event.Start = windowMin
	}
	if event.End.After(windowMax) {
		event.End = windowMax
	}
	if event.End.Before(event.Start) {
		event.End = event.Start
	}
	return event, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (c *Calendar) debug(msg string, args ...any) {
	if c.logger != nil {
		c.logger.Debug(msg, args...)
	}
}
