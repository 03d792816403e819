package toolbelt

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestGoogleClient(t *testing.T, handler http.Handler) *GoogleClient {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewGoogleClient(&GoogleConfig{
		AccessToken:     "test-token",
		SenderName:      "Jarvis",
		CalendarBaseURL: server.URL,
		GmailBaseURL:    server.URL,
		TasksBaseURL:    server.URL,
	})
}

func TestGoogleClientDefaults(t *testing.T) {
	c := NewGoogleClient(&GoogleConfig{AccessToken: "tok"})
	if c.calendarID != "primary" {
		t.Errorf("expected primary calendar, got %q", c.calendarID)
	}
	if c.taskListID != "@default" {
		t.Errorf("expected @default task list, got %q", c.taskListID)
	}
}

func TestGetEventNotFound(t *testing.T) {
	client := newTestGoogleClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
	}))

	_, err := client.GetEvent(context.Background(), "missing")
	if !errors.Is(err, ErrEventNotFound) {
		t.Errorf("expected ErrEventNotFound from get, got %v", err)
	}
	if _, err := client.UpdateEvent(context.Background(), "missing", &Event{}); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("expected ErrEventNotFound from update, got %v", err)
	}
	if err := client.DeleteEvent(context.Background(), "missing"); !errors.Is(err, ErrEventNotFound) {
		t.Errorf("expected ErrEventNotFound from delete, got %v", err)
	}
}

func TestMailAndTask404AreNotEventNotFound(t *testing.T) {
	client := newTestGoogleClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"error":{"code":404,"message":"Not Found"}}`))
	}))

	if _, err := client.GetMessage(context.Background(), "gone"); err == nil || errors.Is(err, ErrEventNotFound) {
		t.Errorf("vanished message must not report a missing event, got %v", err)
	}
	if _, err := client.CompleteTask(context.Background(), "gone", ""); err == nil || errors.Is(err, ErrEventNotFound) {
		t.Errorf("vanished task must not report a missing event, got %v", err)
	}
}

func TestListEventsSendsAuthAndParams(t *testing.T) {
	var gotAuth, gotQuery string
	client := newTestGoogleClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotQuery = r.URL.RawQuery
		json.NewEncoder(w).Encode(eventList{Items: []Event{{ID: "e1", Summary: "Sync"}}})
	}))

	events, err := client.ListEvents(context.Background(), "2025-09-02T00:00:00+03:00", "2025-09-03T00:00:00+03:00")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(events) != 1 || events[0].ID != "e1" {
		t.Errorf("unexpected events: %+v", events)
	}
	if gotAuth != "Bearer test-token" {
		t.Errorf("unexpected auth header: %q", gotAuth)
	}
	for _, want := range []string{"singleEvents=true", "orderBy=startTime"} {
		if !strings.Contains(gotQuery, want) {
			t.Errorf("query missing %q: %s", want, gotQuery)
		}
	}
}

func TestGetMessageExtractsPlainText(t *testing.T) {
	body := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte("Can we move to 3pm?"))
	client := newTestGoogleClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(gmailMessage{
			ID: "m1",
			Payload: gmailPart{
				MimeType: "multipart/alternative",
				Headers: []gmailHeader{
					{Name: "From", Value: "Mahmoud <mahmoud@example.com>"},
					{Name: "Subject", Value: "Reschedule"},
				},
				Parts: []gmailPart{
					{MimeType: "text/plain; charset=UTF-8", Body: gmailBody{Data: body}},
					{MimeType: "text/html", Body: gmailBody{Data: "aWdub3JlZA"}},
				},
			},
		})
	}))

	msg, err := client.GetMessage(context.Background(), "m1")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if msg.From != "Mahmoud <mahmoud@example.com>" {
		t.Errorf("unexpected from: %q", msg.From)
	}
	if msg.Subject != "Reschedule" {
		t.Errorf("unexpected subject: %q", msg.Subject)
	}
	if msg.Body != "Can we move to 3pm?" {
		t.Errorf("unexpected body: %q", msg.Body)
	}
}

func TestSendMessageEncodesRFC822(t *testing.T) {
	var raw string
	client := newTestGoogleClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req sendMessageRequest
		json.NewDecoder(r.Body).Decode(&req)
		raw = req.Raw
		json.NewEncoder(w).Encode(MessageRef{ID: "sent-1"})
	}))

	id, err := client.SendMessage(context.Background(), "mahmoud@example.com", "Hello", "Hi there")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if id != "sent-1" {
		t.Errorf("unexpected id: %q", id)
	}

	decoded, err := base64.URLEncoding.DecodeString(raw)
	if err != nil {
		t.Fatalf("raw is not base64url: %v", err)
	}
	for _, want := range []string{"To: mahmoud@example.com", "Subject: Hello", "Hi there"} {
		if !strings.Contains(string(decoded), want) {
			t.Errorf("rfc822 message missing %q:\n%s", want, decoded)
		}
	}
}

func TestMarkMessageReadRemovesUnreadLabel(t *testing.T) {
	var gotPath string
	var req modifyMessageRequest
	client := newTestGoogleClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewDecoder(r.Body).Decode(&req)
		w.Write([]byte(`{}`))
	}))

	if err := client.MarkMessageRead(context.Background(), "m1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.HasSuffix(gotPath, "/users/me/messages/m1/modify") {
		t.Errorf("unexpected path: %s", gotPath)
	}
	if len(req.RemoveLabelIDs) != 1 || req.RemoveLabelIDs[0] != "UNREAD" {
		t.Errorf("unexpected labels: %+v", req.RemoveLabelIDs)
	}
}

func TestCompleteTaskReadModifyWrite(t *testing.T) {
	var putBody Task
	client := newTestGoogleClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.Method {
		case http.MethodGet:
			json.NewEncoder(w).Encode(Task{ID: "t1", Title: "buy milk", Status: "needsAction"})
		case http.MethodPut:
			json.NewDecoder(r.Body).Decode(&putBody)
			json.NewEncoder(w).Encode(putBody)
		}
	}))

	task, err := client.CompleteTask(context.Background(), "t1", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if putBody.Status != "completed" {
		t.Errorf("write did not flip status: %+v", putBody)
	}
	if task.Title != "buy milk" {
		t.Errorf("title lost in round trip: %+v", task)
	}
}

func TestGoogleAPIErrorMessage(t *testing.T) {
	client := newTestGoogleClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		w.Write([]byte(`{"error":{"code":403,"message":"insufficient scope"}}`))
	}))

	_, err := client.ListEvents(context.Background(), "2025-09-02T00:00:00+03:00", "2025-09-03T00:00:00+03:00")
	if err == nil || !strings.Contains(err.Error(), "insufficient scope") {
		t.Errorf("expected backend message in error, got %v", err)
	}
}
