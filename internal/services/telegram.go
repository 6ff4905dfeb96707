package services

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"time"
)

var telegramHTTPClient = &http.Client{Timeout: 15 * time.Second}

// TelegramService handles sending notifications to Telegram.
type TelegramService struct {
	botToken    string
	adminChatID string
	baseURL     string
}

// NewTelegramService creates a new TelegramService.
func NewTelegramService(botToken, adminChatID string) *TelegramService {
	return &TelegramService{
		botToken:    botToken,
		adminChatID: adminChatID,
		baseURL:     "https://api.telegram.org",
	}
}

// AdminChatID returns the configured admin chat.
func (s *TelegramService) AdminChatID() string {
	return s.adminChatID
}

type telegramMessage struct {
	ChatID    string `json:"chat_id"`
	Text      string `json:"text"`
	ParseMode string `json:"parse_mode"`
}

// SendMessage sends a message to the specified chat.
func (s *TelegramService) SendMessage(chatID, text string) error {
	if s.botToken == "" {
		log.Println("[Telegram] Bot token not configured")
		return nil
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", s.baseURL, s.botToken)

	msg := telegramMessage{
		ChatID:    chatID,
		Text:      text,
		ParseMode: "HTML",
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return err
	}

	resp, err := telegramHTTPClient.Post(url, "application/json", bytes.NewReader(body))
	if err != nil {
		log.Printf("[Telegram] Failed to send message: %v", err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		log.Printf("[Telegram] Unexpected status: %d", resp.StatusCode)
		return fmt.Errorf("telegram returned status %d", resp.StatusCode)
	}

	return nil
}

// SendToAdmin sends a message to the admin chat.
func (s *TelegramService) SendToAdmin(text string) error {
	if s.adminChatID == "" {
		log.Println("[Telegram] Admin chat ID not configured")
		return nil
	}
	return s.SendMessage(s.adminChatID, text)
}

// FormatBookingAlert renders an admin message for a new booking.
func FormatBookingAlert(providerName, userName, userPhone string, scheduledAt time.Time, price float64, currency string) string {
	if currency == "" {
		currency = "UZS"
	}
	return fmt.Sprintf(
		"<b>Новая запись</b>\n\nУслуга: %s\nКлиент: %s (%s)\nВремя: %s\nЦена: %.0f %s",
		providerName, userName, userPhone,
		scheduledAt.Format("2006-01-02 15:04"),
		price, currency,
	)
}

// FormatReviewAlert renders an admin message for a freshly published review.
func FormatReviewAlert(providerName, authorName string, rating int) string {
	return fmt.Sprintf(
		"<b>Новый отзыв</b>\n\nУслуга: %s\nАвтор: %s\nОценка: %d/5",
		providerName, authorName, rating,
	)
}
