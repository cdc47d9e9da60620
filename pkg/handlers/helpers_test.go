package handlers

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"dental-ops-backend/pkg/config"
	"dental-ops-backend/pkg/database"
)

func testConfig() *config.Config {
	return &config.Config{
		Environment:  "test",
		JWTSecret:    "test-secret-at-least-32-characters!!",
		PracticeName: "Bright Smile Dental",
		PracticePhone: "(555) 010-0100",
		BaseURL:      "https://dental.example.com",
	}
}

func testDB(t *testing.T) database.DatabaseInterface {
	t.Helper()
	return database.NewLocalDatabaseAt(t.TempDir())
}

type sentEmail struct {
	To      string
	Subject string
	HTML    string
}

type sentSMS struct {
	To   string
	Body string
}

// fakeNotifier 记录外发调用，供断言使用
type fakeNotifier struct {
	mu        sync.Mutex
	emails    []sentEmail
	sms       []sentSMS
	failEmail bool
}

func (f *fakeNotifier) SendEmail(to, subject, html string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failEmail {
		return "", errors.New("email provider unavailable")
	}
	f.emails = append(f.emails, sentEmail{To: to, Subject: subject, HTML: html})
	return "em_test_123", nil
}

func (f *fakeNotifier) SendSMS(to, body string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sms = append(f.sms, sentSMS{To: to, Body: body})
	return "SM_test_456", nil
}

func (f *fakeNotifier) EmailEnabled() bool { return true }
func (f *fakeNotifier) SMSEnabled() bool   { return true }

func (f *fakeNotifier) emailCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.emails)
}

// doJSON 向指定handler发一个JSON请求并解析响应体
func doJSON(t *testing.T, router http.Handler, method, target string, body interface{}) (*httptest.ResponseRecorder, map[string]interface{}) {
	t.Helper()

	var reader *bytes.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)

	var parsed map[string]interface{}
	if rec.Body.Len() > 0 {
		_ = json.Unmarshal(rec.Body.Bytes(), &parsed)
	}
	return rec, parsed
}
