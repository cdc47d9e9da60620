package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"dental-ops-backend/pkg/config"
)

// DraftResult AI草稿结果
type DraftResult struct {
	Content    string  `json:"content"`
	Model      string  `json:"model"`
	Confidence float64 `json:"confidence"`
}

// LeadDraftParams 线索回复草稿的输入
type LeadDraftParams struct {
	PatientName string
	Inquiry     string
	Message     string
	Source      string
	Urgency     string
}

// RecallDraftParams 召回消息草稿的输入
type RecallDraftParams struct {
	PatientName string
	LastVisit   string
}

// AIService 调用 OpenAI 兼容接口生成草稿；未配置API key时退回模板。
// 所有草稿都进入审批队列，生成失败不阻断主流程。
type AIService struct {
	apiKey          string
	model           string
	practiceName    string
	practicePhone   string
	practiceWebsite string
	httpClient      *http.Client
}

// NewAIService 创建AI服务
func NewAIService(cfg *config.Config) *AIService {
	return &AIService{
		apiKey:          cfg.OpenAIAPIKey,
		model:           cfg.OpenAIModel,
		practiceName:    cfg.PracticeName,
		practicePhone:   cfg.PracticePhone,
		practiceWebsite: cfg.PracticeWebsite,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

// systemPrompt 诊所背景提示词
func (s *AIService) systemPrompt() string {
	prompt := fmt.Sprintf(`You are an AI assistant for %s, a dental practice.`, s.practiceName)
	if s.practicePhone != "" {
		prompt += fmt.Sprintf(" Phone: %s.", s.practicePhone)
	}
	if s.practiceWebsite != "" {
		prompt += fmt.Sprintf(" Website: %s.", s.practiceWebsite)
	}
	prompt += `
You are professional, warm, and helpful. You prioritize patient care and comfort.
Always encourage patients to schedule appointments. Never provide medical diagnosis.
When unsure, recommend the patient call the office directly.`
	return prompt
}

// DraftLeadResponse 为新线索生成回复草稿
func (s *AIService) DraftLeadResponse(p LeadDraftParams) (*DraftResult, error) {
	userPrompt := fmt.Sprintf(`Generate a response to a new patient inquiry.

Patient: %s
Inquiry Type: %s
Source: %s
Urgency: %s
Message: %s

Write a warm, professional response that:
1. Addresses their specific question/concern
2. Provides relevant information about our services
3. Encourages them to schedule an appointment
4. Includes a call-to-action

Keep it concise (under 150 words). Write in a natural, conversational tone.`,
		p.PatientName, p.Inquiry, p.Source, p.Urgency, p.Message)

	if s.apiKey == "" {
		return s.templateLeadResponse(p), nil
	}

	content, model, err := s.chatCompletion(userPrompt)
	if err != nil {
		// API失败时退回模板，草稿仍需人工审批
		fmt.Printf("⚠️  AI draft failed, falling back to template: %v\n", err)
		return s.templateLeadResponse(p), nil
	}
	return &DraftResult{Content: content, Model: model, Confidence: 0.85}, nil
}

// DraftRecallMessage 为久未到访的患者生成召回消息草稿
func (s *AIService) DraftRecallMessage(p RecallDraftParams) (*DraftResult, error) {
	userPrompt := fmt.Sprintf(`Generate a friendly recall message for a dental patient who is overdue for a checkup.

Patient: %s
Last Visit: %s

Write a short, warm message (under 100 words) reminding them it's time for their
regular cleaning and checkup, and inviting them to schedule an appointment.`,
		p.PatientName, p.LastVisit)

	if s.apiKey == "" {
		return s.templateRecallMessage(p), nil
	}

	content, model, err := s.chatCompletion(userPrompt)
	if err != nil {
		fmt.Printf("⚠️  AI draft failed, falling back to template: %v\n", err)
		return s.templateRecallMessage(p), nil
	}
	return &DraftResult{Content: content, Model: model, Confidence: 0.85}, nil
}

// templateLeadResponse 无AI时的固定模板
func (s *AIService) templateLeadResponse(p LeadDraftParams) *DraftResult {
	content := fmt.Sprintf(`Hi %s,

Thank you for reaching out to %s! We received your inquiry and would love to help.

One of our team members will follow up with you shortly to answer your questions and find a convenient time for your visit.`,
		p.PatientName, s.practiceName)
	if s.practicePhone != "" {
		content += fmt.Sprintf("\n\nIf you'd like to speak with us sooner, give us a call at %s.", s.practicePhone)
	}
	content += fmt.Sprintf("\n\nWarm regards,\nThe %s Team", s.practiceName)

	return &DraftResult{Content: content, Model: "template", Confidence: 0.5}
}

// templateRecallMessage 无AI时的固定模板
func (s *AIService) templateRecallMessage(p RecallDraftParams) *DraftResult {
	content := fmt.Sprintf(`Hi %s,

It's been a while since your last visit to %s (last seen %s). Regular checkups keep your smile healthy, and we'd love to see you again!`,
		p.PatientName, s.practiceName, p.LastVisit)
	if s.practicePhone != "" {
		content += fmt.Sprintf("\n\nCall us at %s to schedule your next appointment.", s.practicePhone)
	}
	content += fmt.Sprintf("\n\nWarm regards,\nThe %s Team", s.practiceName)

	return &DraftResult{Content: content, Model: "template", Confidence: 0.5}
}

// chat completions 请求/响应结构

type chatRequest struct {
	Model     string        `json:"model"`
	Messages  []chatMessage `json:"messages"`
	MaxTokens int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatResponse struct {
	Model   string `json:"model"`
	Choices []struct {
		Message chatMessage `json:"message"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

// chatCompletion 调用 OpenAI 兼容的 chat completions 接口
func (s *AIService) chatCompletion(userPrompt string) (content, model string, err error) {
	reqBody := chatRequest{
		Model: s.model,
		Messages: []chatMessage{
			{Role: "system", Content: s.systemPrompt()},
			{Role: "user", Content: userPrompt},
		},
		MaxTokens: 500,
	}

	jsonData, err := json.Marshal(reqBody)
	if err != nil {
		return "", "", fmt.Errorf("failed to marshal chat request: %w", err)
	}

	req, err := http.NewRequest("POST", "https://api.openai.com/v1/chat/completions", bytes.NewBuffer(jsonData))
	if err != nil {
		return "", "", fmt.Errorf("failed to create chat request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+s.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", "", fmt.Errorf("failed to send chat request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", "", fmt.Errorf("failed to read chat response: %w", err)
	}

	if resp.StatusCode >= 400 {
		return "", "", fmt.Errorf("chat API failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var parsed chatResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return "", "", fmt.Errorf("failed to parse chat response: %w", err)
	}
	if parsed.Error != nil {
		return "", "", fmt.Errorf("chat API error: %s", parsed.Error.Message)
	}
	if len(parsed.Choices) == 0 {
		return "", "", fmt.Errorf("chat API returned no choices")
	}

	return parsed.Choices[0].Message.Content, parsed.Model, nil
}
