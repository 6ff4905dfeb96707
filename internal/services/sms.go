package services

import (
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"time"
)

var smsHTTPClient = &http.Client{Timeout: 15 * time.Second}

const smsGatewayURL = "https://api.mobizon.kz/service/message/sendsmsmessage"

// SMSService delivers verification codes through the SMS gateway.
type SMSService struct {
	apiKey string
	sender string
	dryRun bool
}

// NewSMSService creates an SMSService. In dry-run mode (or without an API
// key) codes are logged instead of sent, which keeps local development and
// tests off the paid gateway.
func NewSMSService(apiKey, sender string, dryRun bool) *SMSService {
	return &SMSService{apiKey: apiKey, sender: sender, dryRun: dryRun}
}

type smsSendResponse struct {
	Code int `json:"code"`
	Data struct {
		MessageID string `json:"messageId"`
	} `json:"data"`
}

// SendCode sends a verification code to the phone number.
func (s *SMSService) SendCode(phone, code string) error {
	if s.dryRun || s.apiKey == "" {
		log.Printf("[SMS] dry-run to=%s code=%s", phone, code)
		return nil
	}

	form := url.Values{
		"apiKey":    {s.apiKey},
		"recipient": {phone},
		"text":      {fmt.Sprintf("Uslugi: код подтверждения %s", code)},
	}
	if s.sender != "" {
		form.Set("from", s.sender)
	}

	resp, err := smsHTTPClient.PostForm(smsGatewayURL, form)
	if err != nil {
		return fmt.Errorf("send SMS request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read SMS response: %w", err)
	}

	var result smsSendResponse
	if err := json.Unmarshal(body, &result); err != nil {
		return fmt.Errorf("parse SMS response: %w", err)
	}
	if result.Code != 0 {
		return fmt.Errorf("sms gateway returned error code %d", result.Code)
	}

	return nil
}
