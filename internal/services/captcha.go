package services

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"net/url"
	"time"
)

var captchaHTTPClient = &http.Client{Timeout: 10 * time.Second}

// ErrCaptchaFailed is returned when the token is missing, rejected, or the
// verification service cannot be reached. All of these deny the request.
var ErrCaptchaFailed = errors.New("captcha verification failed")

// CaptchaService verifies submitted CAPTCHA tokens against a third-party
// endpoint using a shared secret.
type CaptchaService struct {
	secret    string
	verifyURL string
	minScore  float64
	disabled  bool
}

// NewCaptchaService creates a CaptchaService. Disabled mode skips
// verification entirely and is intended for local development only.
func NewCaptchaService(secret, verifyURL string, minScore float64, disabled bool) *CaptchaService {
	return &CaptchaService{
		secret:    secret,
		verifyURL: verifyURL,
		minScore:  minScore,
		disabled:  disabled,
	}
}

type captchaVerifyResponse struct {
	Success    bool     `json:"success"`
	Score      float64  `json:"score"`
	ErrorCodes []string `json:"error-codes"`
}

// Verify checks the token with the verification endpoint. The token passes
// only when the response reports success and a score at or above the
// configured threshold. Network and decode failures fail closed.
func (s *CaptchaService) Verify(token, remoteIP string) error {
	if s.disabled {
		return nil
	}

	if token == "" {
		return ErrCaptchaFailed
	}

	form := url.Values{
		"secret":   {s.secret},
		"response": {token},
	}
	if remoteIP != "" && remoteIP != "unknown" {
		form.Set("remoteip", remoteIP)
	}

	resp, err := captchaHTTPClient.PostForm(s.verifyURL, form)
	if err != nil {
		log.Printf("[Captcha] verification request failed: %v", err)
		return ErrCaptchaFailed
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Captcha] unexpected status: %d", resp.StatusCode)
		return ErrCaptchaFailed
	}

	var result captchaVerifyResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		log.Printf("[Captcha] decode response failed: %v", err)
		return ErrCaptchaFailed
	}

	if !result.Success {
		return fmt.Errorf("%w: %v", ErrCaptchaFailed, result.ErrorCodes)
	}
	if result.Score < s.minScore {
		return fmt.Errorf("%w: score %.2f below threshold", ErrCaptchaFailed, result.Score)
	}

	return nil
}
