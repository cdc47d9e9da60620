package services

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"dental-ops-backend/pkg/config"
)

// ErrNotConfigured 渠道未配置。调用方按跳过处理，不算失败。
var ErrNotConfigured = errors.New("channel not configured")

// Notifier 外发渠道。handlers 依赖该接口，测试中注入假实现。
type Notifier interface {
	// SendEmail 发送邮件，返回渠道侧消息ID
	SendEmail(to, subject, html string) (string, error)
	// SendSMS 发送短信，返回渠道侧消息ID
	SendSMS(to, body string) (string, error)
	EmailEnabled() bool
	SMSEnabled() bool
}

// HTTPNotifier Resend邮件 + Twilio短信
type HTTPNotifier struct {
	resendAPIKey     string
	twilioAccountSID string
	twilioAuthToken  string
	twilioFromNumber string
	fromEmail        string
	httpClient       *http.Client
}

// NewHTTPNotifier 创建外发服务
func NewHTTPNotifier(cfg *config.Config) *HTTPNotifier {
	return &HTTPNotifier{
		resendAPIKey:     cfg.ResendAPIKey,
		twilioAccountSID: cfg.TwilioAccountSID,
		twilioAuthToken:  cfg.TwilioAuthToken,
		twilioFromNumber: cfg.TwilioFromNumber,
		fromEmail:        fmt.Sprintf("%s <noreply@notifications.local>", cfg.PracticeName),
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// EmailEnabled 是否配置了邮件发送
func (n *HTTPNotifier) EmailEnabled() bool {
	return n.resendAPIKey != ""
}

// SMSEnabled 是否配置了短信发送
func (n *HTTPNotifier) SMSEnabled() bool {
	return n.twilioAccountSID != "" && n.twilioAuthToken != "" && n.twilioFromNumber != ""
}

// SendEmail 通过 Resend 发送邮件
func (n *HTTPNotifier) SendEmail(to, subject, html string) (string, error) {
	if !n.EmailEnabled() {
		fmt.Printf("⚠️  [Resend] Not configured - email not sent: to=%s subject=%q\n", to, subject)
		return "", ErrNotConfigured
	}

	payload := map[string]interface{}{
		"from":    n.fromEmail,
		"to":      []string{to},
		"subject": subject,
		"html":    html,
	}
	jsonData, err := json.Marshal(payload)
	if err != nil {
		return "", fmt.Errorf("failed to marshal email payload: %w", err)
	}

	req, err := http.NewRequest("POST", "https://api.resend.com/emails", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", fmt.Errorf("failed to create email request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+n.resendAPIKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send email: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read email response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("email API failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		ID string `json:"id"`
	}
	_ = json.Unmarshal(respBody, &parsed)
	return parsed.ID, nil
}

// SendSMS 通过 Twilio 发送短信
func (n *HTTPNotifier) SendSMS(to, body string) (string, error) {
	if !n.SMSEnabled() {
		preview := body
		if len(preview) > 50 {
			preview = preview[:50]
		}
		fmt.Printf("⚠️  [Twilio] Not configured - SMS not sent: to=%s body=%q\n", to, preview)
		return "", ErrNotConfigured
	}

	form := url.Values{}
	form.Set("To", to)
	form.Set("From", n.twilioFromNumber)
	form.Set("Body", body)

	endpoint := fmt.Sprintf("https://api.twilio.com/2010-04-01/Accounts/%s/Messages.json", n.twilioAccountSID)
	req, err := http.NewRequest("POST", endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to create SMS request: %w", err)
	}
	req.SetBasicAuth(n.twilioAccountSID, n.twilioAuthToken)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to send SMS: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("failed to read SMS response: %w", err)
	}
	if resp.StatusCode >= 400 {
		return "", fmt.Errorf("SMS API failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed struct {
		SID string `json:"sid"`
	}
	_ = json.Unmarshal(respBody, &parsed)
	return parsed.SID, nil
}

// ================= Email templates =================

// LeadResponseEmail 线索回复邮件
func LeadResponseEmail(practiceName, patientName, responseBody string) (subject, html string) {
	subject = fmt.Sprintf("Thank you for contacting %s", practiceName)
	html = fmt.Sprintf(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: #0891b2; color: white; padding: 20px; border-radius: 8px 8px 0 0;">
    <h1 style="margin: 0; font-size: 24px;">%s</h1>
  </div>
  <div style="padding: 24px; border: 1px solid #e2e8f0; border-top: none; border-radius: 0 0 8px 8px;">
    <p>Hi %s,</p>
    %s
  </div>
</div>`, practiceName, patientName, paragraphs(responseBody))
	return subject, html
}

// RecallEmail 患者召回邮件
func RecallEmail(practiceName, patientName, messageBody string) (subject, html string) {
	subject = fmt.Sprintf("We miss you at %s!", practiceName)
	html = fmt.Sprintf(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: #0891b2; color: white; padding: 20px; border-radius: 8px 8px 0 0;">
    <h1 style="margin: 0; font-size: 24px;">%s</h1>
    <p style="margin: 4px 0 0; opacity: 0.9;">Time for your next visit</p>
  </div>
  <div style="padding: 24px; border: 1px solid #e2e8f0; border-top: none; border-radius: 0 0 8px 8px;">
    <p>Hi %s,</p>
    %s
  </div>
</div>`, practiceName, patientName, paragraphs(messageBody))
	return subject, html
}

// OfferLetterEmail offer签署邀请邮件
func OfferLetterEmail(practiceName, candidateName, jobTitle, signURL string) (subject, html string) {
	subject = fmt.Sprintf("Your offer letter from %s", practiceName)
	html = fmt.Sprintf(`
<div style="font-family: Arial, sans-serif; max-width: 600px; margin: 0 auto;">
  <div style="background: #0891b2; color: white; padding: 20px; border-radius: 8px 8px 0 0;">
    <h1 style="margin: 0; font-size: 24px;">%s</h1>
    <p style="margin: 4px 0 0; opacity: 0.9;">Offer of Employment</p>
  </div>
  <div style="padding: 24px; border: 1px solid #e2e8f0; border-top: none; border-radius: 0 0 8px 8px;">
    <p>Hi %s,</p>
    <p>We're excited to offer you the position of <strong>%s</strong> at %s!</p>
    <p>Please review and sign your offer letter using the secure link below:</p>
    <p style="margin: 24px 0;">
      <a href="%s" style="background: #0891b2; color: white; padding: 12px 24px; border-radius: 8px; text-decoration: none;">Review &amp; Sign Offer</a>
    </p>
    <p style="color: #64748b; font-size: 12px;">This link is unique to you. Please don't share it.</p>
  </div>
</div>`, practiceName, candidateName, jobTitle, practiceName, signURL)
	return subject, html
}

// paragraphs 把纯文本按空行包成<p>段落
func paragraphs(text string) string {
	var b strings.Builder
	for _, part := range strings.Split(text, "\n\n") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		b.WriteString("<p>")
		b.WriteString(strings.ReplaceAll(part, "\n", "<br>"))
		b.WriteString("</p>\n    ")
	}
	return strings.TrimSpace(b.String())
}
