package notifications

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

type captureTransport struct {
	req  *http.Request
	body []byte

	status       int
	responseBody string
}

func (t *captureTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	t.req = req
	t.body, _ = io.ReadAll(req.Body)
	_ = req.Body.Close()
	status, body := t.status, t.responseBody
	if status == 0 {
		status, body = http.StatusOK, `{}`
	}
	return &http.Response{
		StatusCode: status,
		Body:       io.NopCloser(strings.NewReader(body)),
		Header:     make(http.Header),
	}, nil
}

func TestFCMSenderSend_NotificationIncludesAPNSAlert(t *testing.T) {
	rt := &captureTransport{}
	sender := &FCMSender{
		projectID:   "pid",
		tokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "token"}),
		client:      &http.Client{Transport: rt},
	}

	err := sender.Send(context.Background(), "fcm-token-1", Message{
		Data: map[string]string{"kind": "HELP_OFFERED"},
		Notification: &Notification{
			Title: "SkillSwap",
			Body:  "User Bob has offered to help with your request: ladder",
		},
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(rt.body, &payload); err != nil {
		t.Fatalf("unmarshal request body: %v", err)
	}
	message, _ := payload["message"].(map[string]any)
	if message == nil {
		t.Fatalf("missing message payload")
	}

	notification, _ := message["notification"].(map[string]any)
	if notification == nil {
		t.Fatalf("missing notification payload")
	}
	if notification["title"] != "SkillSwap" {
		t.Fatalf("unexpected notification title: %v", notification["title"])
	}

	apns, _ := message["apns"].(map[string]any)
	if apns == nil {
		t.Fatalf("missing apns payload")
	}
	headers, _ := apns["headers"].(map[string]any)
	if headers == nil {
		t.Fatalf("missing apns headers")
	}
	if headers["apns-push-type"] != "alert" {
		t.Fatalf("unexpected apns-push-type: %v", headers["apns-push-type"])
	}
	if headers["apns-priority"] != "10" {
		t.Fatalf("unexpected apns-priority: %v", headers["apns-priority"])
	}
}

func TestFCMSenderSend_DataOnlyOmitsNotificationAndAPNS(t *testing.T) {
	rt := &captureTransport{}
	sender := &FCMSender{
		projectID:   "pid",
		tokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "token"}),
		client:      &http.Client{Transport: rt},
	}

	err := sender.Send(context.Background(), "fcm-token-1", Message{
		Data: map[string]string{"kind": "HELP_OFFERED"},
	})
	if err != nil {
		t.Fatalf("Send returned error: %v", err)
	}

	var payload map[string]any
	if err := json.Unmarshal(rt.body, &payload); err != nil {
		t.Fatalf("unmarshal request body: %v", err)
	}
	message, _ := payload["message"].(map[string]any)
	if message == nil {
		t.Fatalf("missing message payload")
	}
	if _, ok := message["notification"]; ok {
		t.Fatalf("expected notification to be omitted for data-only")
	}
	if _, ok := message["apns"]; ok {
		t.Fatalf("expected apns to be omitted for data-only")
	}
}

func TestFCMSenderSend_UnregisteredTokenIsInvalid(t *testing.T) {
	rt := &captureTransport{
		status:       http.StatusNotFound,
		responseBody: `{"error":{"status":"NOT_FOUND","message":"Requested entity was not found.","details":[{"@type":"type.googleapis.com/google.firebase.fcm.v1.FcmError","errorCode":"UNREGISTERED"}]}}`,
	}
	sender := &FCMSender{
		projectID:   "pid",
		tokenSource: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: "token"}),
		client:      &http.Client{Transport: rt},
	}

	err := sender.Send(context.Background(), "stale", Message{Data: map[string]string{"kind": "NEW_REQUEST"}})
	if !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
	if got := rt.req.Header.Get("Authorization"); got != "Bearer token" {
		t.Fatalf("unexpected Authorization header %q", got)
	}
	if !strings.HasSuffix(rt.req.URL.Path, "/projects/pid/messages:send") {
		t.Fatalf("unexpected url %s", rt.req.URL)
	}
}
