package toolbelt

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Default API base URLs; overridable in config for tests.
const (
	defaultCalendarBaseURL = "https://www.googleapis.com/calendar/v3"
	defaultGmailBaseURL    = "https://gmail.googleapis.com/gmail/v1"
	defaultTasksBaseURL    = "https://tasks.googleapis.com/tasks/v1"
)

// ErrEventNotFound is returned when the calendar backend reports 404 for an
// event ID. Kept distinct from other backend failures so the tool layer can
// tell the model the event vanished rather than that the system is broken.
var ErrEventNotFound = errors.New("event not found")

// errNotFound marks a 404 from any backend. Only the calendar event paths
// translate it to ErrEventNotFound; a vanished message or task surfaces as an
// ordinary backend error.
var errNotFound = errors.New("resource not found (status 404)")

// GoogleClient calls the Google Calendar, Gmail and Tasks REST APIs on behalf
// of the delegated assistant account. The backend is the source of truth for
// every read; nothing is cached here.
type GoogleClient struct {
	accessToken string
	calendarID  string
	taskListID  string
	senderName  string

	calendarBase string
	gmailBase    string
	tasksBase    string

	httpClient *http.Client
}

// NewGoogleClient creates a new Google API client.
// Returns nil if no access token is configured.
func NewGoogleClient(config *GoogleConfig) *GoogleClient {
	if config == nil || config.AccessToken == "" {
		return nil
	}

	c := &GoogleClient{
		accessToken:  config.AccessToken,
		calendarID:   config.CalendarID,
		taskListID:   config.TaskListID,
		senderName:   config.SenderName,
		calendarBase: strings.TrimSuffix(config.CalendarBaseURL, "/"),
		gmailBase:    strings.TrimSuffix(config.GmailBaseURL, "/"),
		tasksBase:    strings.TrimSuffix(config.TasksBaseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
	if c.calendarID == "" {
		c.calendarID = "primary"
	}
	if c.taskListID == "" {
		c.taskListID = "@default"
	}
	if c.calendarBase == "" {
		c.calendarBase = defaultCalendarBaseURL
	}
	if c.gmailBase == "" {
		c.gmailBase = defaultGmailBaseURL
	}
	if c.tasksBase == "" {
		c.tasksBase = defaultTasksBaseURL
	}
	return c
}

// SenderName returns the configured signature name for outgoing mail.
func (c *GoogleClient) SenderName() string {
	return c.senderName
}

// TaskListID returns the configured default task list.
func (c *GoogleClient) TaskListID() string {
	return c.taskListID
}

// --- Types ---

// EventTime is a calendar timestamp. DateTime carries an explicit UTC offset;
// Date is used by all-day events only.
type EventTime struct {
	DateTime string `json:"dateTime,omitempty"`
	Date     string `json:"date,omitempty"`
	TimeZone string `json:"timeZone,omitempty"`
}

// Value returns the usable timestamp, preferring DateTime over Date.
func (t EventTime) Value() string {
	if t.DateTime != "" {
		return t.DateTime
	}
	return t.Date
}

// Attendee is a guest on a calendar event.
type Attendee struct {
	Email          string `json:"email"`
	ResponseStatus string `json:"responseStatus,omitempty"`
}

// Event represents a calendar event.
type Event struct {
	ID        string     `json:"id,omitempty"`
	Status    string     `json:"status,omitempty"`
	Summary   string     `json:"summary,omitempty"`
	Start     EventTime  `json:"start,omitempty"`
	End       EventTime  `json:"end,omitempty"`
	Attendees []Attendee `json:"attendees,omitempty"`
}

type eventList struct {
	Items []Event `json:"items"`
}

// MessageRef identifies a mail message without its content.
type MessageRef struct {
	ID       string `json:"id"`
	ThreadID string `json:"threadId,omitempty"`
}

type messageList struct {
	Messages []MessageRef `json:"messages"`
}

// Message is a fully resolved mail message.
type Message struct {
	ID      string `json:"id"`
	From    string `json:"from"`
	ReplyTo string `json:"replyTo,omitempty"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

type gmailHeader struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

type gmailBody struct {
	Data string `json:"data"`
}

type gmailPart struct {
	MimeType string      `json:"mimeType"`
	Headers  []gmailHeader `json:"headers"`
	Body     gmailBody   `json:"body"`
	Parts    []gmailPart `json:"parts"`
}

type gmailMessage struct {
	ID      string    `json:"id"`
	Snippet string    `json:"snippet"`
	Payload gmailPart `json:"payload"`
}

type sendMessageRequest struct {
	Raw string `json:"raw"`
}

type modifyMessageRequest struct {
	RemoveLabelIDs []string `json:"removeLabelIds,omitempty"`
	AddLabelIDs    []string `json:"addLabelIds,omitempty"`
}

// Task represents a Google Tasks item.
type Task struct {
	ID     string `json:"id,omitempty"`
	Title  string `json:"title"`
	Status string `json:"status,omitempty"` // "needsAction" or "completed"
	Due    string `json:"due,omitempty"`
}

type taskItems struct {
	Items []Task `json:"items"`
}

// Profile describes the delegated Gmail account.
type Profile struct {
	EmailAddress string `json:"emailAddress"`
	HistoryID    string `json:"historyId"`
}

// googleErrorResponse is the standard Google API error envelope
type googleErrorResponse struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// --- HTTP helpers ---

func (c *GoogleClient) doRequest(ctx context.Context, method, reqURL string, body any) ([]byte, error) {
	var reqBody io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal request body: %w", err)
		}
		reqBody = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, reqURL, reqBody)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.accessToken)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= 400 {
		if resp.StatusCode == http.StatusNotFound {
			return nil, errNotFound
		}
		var errResp googleErrorResponse
		if err := json.Unmarshal(data, &errResp); err == nil && errResp.Error.Message != "" {
			return nil, fmt.Errorf("google API error (status %d): %s", resp.StatusCode, errResp.Error.Message)
		}
		return nil, fmt.Errorf("google API error (status %d): %s", resp.StatusCode, string(data))
	}

	return data, nil
}

// --- Calendar operations ---

// ListEvents returns all events overlapping [timeMin, timeMax].
// Both bounds are RFC3339 timestamps with an explicit UTC offset.
func (c *GoogleClient) ListEvents(ctx context.Context, timeMin, timeMax string) ([]Event, error) {
	q := url.Values{}
	q.Set("timeMin", timeMin)
	q.Set("timeMax", timeMax)
	q.Set("singleEvents", "true")
	q.Set("orderBy", "startTime")

	reqURL := fmt.Sprintf("%s/calendars/%s/events?%s", c.calendarBase, url.PathEscape(c.calendarID), q.Encode())
	data, err := c.doRequest(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list events: %w", err)
	}

	var list eventList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse event list: %w", err)
	}
	return list.Items, nil
}

// GetEvent fetches a single event by ID.
func (c *GoogleClient) GetEvent(ctx context.Context, eventID string) (*Event, error) {
	reqURL := fmt.Sprintf("%s/calendars/%s/events/%s", c.calendarBase, url.PathEscape(c.calendarID), url.PathEscape(eventID))
	data, err := c.doRequest(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		return nil, fmt.Errorf("failed to parse event: %w", err)
	}
	return &event, nil
}

// CreateEvent inserts a new event into the primary calendar.
func (c *GoogleClient) CreateEvent(ctx context.Context, event *Event) (*Event, error) {
	reqURL := fmt.Sprintf("%s/calendars/%s/events", c.calendarBase, url.PathEscape(c.calendarID))
	data, err := c.doRequest(ctx, http.MethodPost, reqURL, event)
	if err != nil {
		return nil, fmt.Errorf("failed to create event: %w", err)
	}

	var created Event
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("failed to parse created event: %w", err)
	}
	return &created, nil
}

// UpdateEvent replaces an event. Callers are expected to fetch the current
// event first and merge, so omitted fields keep their prior values.
func (c *GoogleClient) UpdateEvent(ctx context.Context, eventID string, event *Event) (*Event, error) {
	reqURL := fmt.Sprintf("%s/calendars/%s/events/%s", c.calendarBase, url.PathEscape(c.calendarID), url.PathEscape(eventID))
	data, err := c.doRequest(ctx, http.MethodPut, reqURL, event)
	if err != nil {
		if errors.Is(err, errNotFound) {
			return nil, ErrEventNotFound
		}
		return nil, err
	}

	var updated Event
	if err := json.Unmarshal(data, &updated); err != nil {
		return nil, fmt.Errorf("failed to parse updated event: %w", err)
	}
	return &updated, nil
}

// DeleteEvent removes an event from the primary calendar.
func (c *GoogleClient) DeleteEvent(ctx context.Context, eventID string) error {
	reqURL := fmt.Sprintf("%s/calendars/%s/events/%s", c.calendarBase, url.PathEscape(c.calendarID), url.PathEscape(eventID))
	_, err := c.doRequest(ctx, http.MethodDelete, reqURL, nil)
	if errors.Is(err, errNotFound) {
		return ErrEventNotFound
	}
	return err
}

// --- Gmail operations ---

// ListMessages returns message references matching a Gmail search query.
func (c *GoogleClient) ListMessages(ctx context.Context, query string, maxResults int) ([]MessageRef, error) {
	if maxResults <= 0 {
		maxResults = 10
	}
	q := url.Values{}
	if query != "" {
		q.Set("q", query)
	}
	q.Set("maxResults", strconv.Itoa(maxResults))

	reqURL := fmt.Sprintf("%s/users/me/messages?%s", c.gmailBase, q.Encode())
	data, err := c.doRequest(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list messages: %w", err)
	}

	var list messageList
	if err := json.Unmarshal(data, &list); err != nil {
		return nil, fmt.Errorf("failed to parse message list: %w", err)
	}
	return list.Messages, nil
}

// GetMessage fetches a message and resolves its From/Reply-To/Subject headers
// and plain-text body.
func (c *GoogleClient) GetMessage(ctx context.Context, messageID string) (*Message, error) {
	reqURL := fmt.Sprintf("%s/users/me/messages/%s?format=full", c.gmailBase, url.PathEscape(messageID))
	data, err := c.doRequest(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get message: %w", err)
	}

	var raw gmailMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse message: %w", err)
	}

	msg := &Message{ID: raw.ID}
	for _, h := range raw.Payload.Headers {
		switch strings.ToLower(h.Name) {
		case "from":
			msg.From = h.Value
		case "reply-to":
			msg.ReplyTo = h.Value
		case "subject":
			msg.Subject = h.Value
		}
	}

	msg.Body = extractPlainText(raw.Payload)
	if msg.Body == "" {
		msg.Body = raw.Snippet
	}
	return msg, nil
}

// extractPlainText walks the MIME tree for the first text/plain part.
func extractPlainText(part gmailPart) string {
	if strings.HasPrefix(part.MimeType, "text/plain") && part.Body.Data != "" {
		decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(strings.TrimRight(part.Body.Data, "="))
		if err != nil {
			return ""
		}
		return string(decoded)
	}
	for _, p := range part.Parts {
		if text := extractPlainText(p); text != "" {
			return text
		}
	}
	return ""
}

// SendMessage sends a plain-text email from the delegated account.
// Returns the backend-assigned message ID.
func (c *GoogleClient) SendMessage(ctx context.Context, to, subject, body string) (string, error) {
	rfc822 := fmt.Sprintf("To: %s\r\nSubject: %s\r\nContent-Type: text/plain; charset=\"UTF-8\"\r\n\r\n%s", to, subject, body)
	req := sendMessageRequest{
		Raw: base64.URLEncoding.EncodeToString([]byte(rfc822)),
	}

	reqURL := fmt.Sprintf("%s/users/me/messages/send", c.gmailBase)
	data, err := c.doRequest(ctx, http.MethodPost, reqURL, req)
	if err != nil {
		return "", fmt.Errorf("failed to send message: %w", err)
	}

	var ref MessageRef
	if err := json.Unmarshal(data, &ref); err != nil {
		return "", fmt.Errorf("failed to parse send response: %w", err)
	}
	return ref.ID, nil
}

// MarkMessageRead clears the UNREAD label so the poller will not reprocess
// the message on its next cycle.
func (c *GoogleClient) MarkMessageRead(ctx context.Context, messageID string) error {
	req := modifyMessageRequest{RemoveLabelIDs: []string{"UNREAD"}}
	reqURL := fmt.Sprintf("%s/users/me/messages/%s/modify", c.gmailBase, url.PathEscape(messageID))
	if _, err := c.doRequest(ctx, http.MethodPost, reqURL, req); err != nil {
		return fmt.Errorf("failed to mark message read: %w", err)
	}
	return nil
}

// GetProfile returns the delegated account profile, including the current
// Gmail history ID used as the webhook high-water mark.
func (c *GoogleClient) GetProfile(ctx context.Context) (*Profile, error) {
	reqURL := fmt.Sprintf("%s/users/me/profile", c.gmailBase)
	data, err := c.doRequest(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get profile: %w", err)
	}

	var profile Profile
	if err := json.Unmarshal(data, &profile); err != nil {
		return nil, fmt.Errorf("failed to parse profile: %w", err)
	}
	return &profile, nil
}

// Ping verifies the Google connection with a cheap profile read.
func (c *GoogleClient) Ping(ctx context.Context) error {
	_, err := c.GetProfile(ctx)
	return err
}

// --- Tasks operations ---

// ListTasks returns all tasks in a task list, completed ones included.
func (c *GoogleClient) ListTasks(ctx context.Context, listID string) ([]Task, error) {
	if listID == "" {
		listID = c.taskListID
	}
	reqURL := fmt.Sprintf("%s/lists/%s/tasks?showCompleted=true", c.tasksBase, url.PathEscape(listID))
	data, err := c.doRequest(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to list tasks: %w", err)
	}

	var items taskItems
	if err := json.Unmarshal(data, &items); err != nil {
		return nil, fmt.Errorf("failed to parse task list: %w", err)
	}
	return items.Items, nil
}

// AddTask inserts a new task into a task list.
func (c *GoogleClient) AddTask(ctx context.Context, title, listID string) (*Task, error) {
	if listID == "" {
		listID = c.taskListID
	}
	reqURL := fmt.Sprintf("%s/lists/%s/tasks", c.tasksBase, url.PathEscape(listID))
	data, err := c.doRequest(ctx, http.MethodPost, reqURL, &Task{Title: title})
	if err != nil {
		return nil, fmt.Errorf("failed to add task: %w", err)
	}

	var created Task
	if err := json.Unmarshal(data, &created); err != nil {
		return nil, fmt.Errorf("failed to parse created task: %w", err)
	}
	return &created, nil
}

// CompleteTask fetches a task, flips its status to completed and writes it
// back, mirroring the read-modify-write the Tasks API requires.
func (c *GoogleClient) CompleteTask(ctx context.Context, taskID, listID string) (*Task, error) {
	if listID == "" {
		listID = c.taskListID
	}
	getURL := fmt.Sprintf("%s/lists/%s/tasks/%s", c.tasksBase, url.PathEscape(listID), url.PathEscape(taskID))
	data, err := c.doRequest(ctx, http.MethodGet, getURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get task: %w", err)
	}

	var task Task
	if err := json.Unmarshal(data, &task); err != nil {
		return nil, fmt.Errorf("failed to parse task: %w", err)
	}

	task.Status = "completed"
	data, err = c.doRequest(ctx, http.MethodPut, getURL, &task)
	if err != nil {
		return nil, fmt.Errorf("failed to update task: %w", err)
	}

	var updated Task
	if err := json.Unmarshal(data, &updated); err != nil {
		return nil, fmt.Errorf("failed to parse updated task: %w", err)
	}
	return &updated, nil
}
