package services

import (
	"log"
	"time"

	"gorm.io/gorm"

	"github.com/example/uslugi/internal/models"
)

const (
	notifierBatchSize  = 20
	notifierMaxRetries = 3
)

// Notifier is a database-backed dispatch queue for outbound notifications.
// Producers enqueue rows; a ticker-driven loop delivers due pending rows via
// Telegram, retrying failures with a growing delay up to three attempts.
type Notifier struct {
	db       *gorm.DB
	telegram *TelegramService
	interval time.Duration
	stop     chan struct{}
	done     chan struct{}
}

// NewNotifier builds a notifier polling at the given interval.
func NewNotifier(db *gorm.DB, telegram *TelegramService, interval time.Duration) *Notifier {
	return &Notifier{
		db:       db,
		telegram: telegram,
		interval: interval,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Enqueue stores a notification for delivery at or after the given time.
// An empty chatID targets the admin chat.
func (n *Notifier) Enqueue(kind, chatID, text string, at time.Time) error {
	notification := models.Notification{
		Kind:        kind,
		ChatID:      chatID,
		Text:        text,
		Status:      models.NotificationStatusPending,
		ScheduledAt: at,
	}
	return n.db.Create(&notification).Error
}

// EnqueueAdmin stores an admin-chat notification for immediate delivery.
func (n *Notifier) EnqueueAdmin(kind, text string) error {
	return n.Enqueue(kind, "", text, time.Now())
}

// Start launches the dispatch loop.
func (n *Notifier) Start() {
	go func() {
		defer close(n.done)
		ticker := time.NewTicker(n.interval)
		defer ticker.Stop()

		for {
			select {
			case <-n.stop:
				return
			case <-ticker.C:
				n.DispatchDue(time.Now())
			}
		}
	}()
}

// Stop terminates the dispatch loop and waits for it to exit.
func (n *Notifier) Stop() {
	close(n.stop)
	<-n.done
}

// DispatchDue delivers pending notifications whose scheduled time has
// arrived and returns how many were sent.
func (n *Notifier) DispatchDue(now time.Time) int {
	var pending []models.Notification
	err := n.db.Where("status = ? AND scheduled_at <= ?", models.NotificationStatusPending, now).
		Order("scheduled_at ASC").
		Limit(notifierBatchSize).
		Find(&pending).Error
	if err != nil {
		log.Printf("[Notifier] fetch pending failed: %v", err)
		return 0
	}

	sent := 0
	for i := range pending {
		if n.deliver(&pending[i], now) {
			sent++
		}
	}
	return sent
}

func (n *Notifier) deliver(notification *models.Notification, now time.Time) bool {
	var err error
	if notification.ChatID == "" {
		err = n.telegram.SendToAdmin(notification.Text)
	} else {
		err = n.telegram.SendMessage(notification.ChatID, notification.Text)
	}

	notification.Attempts++

	if err == nil {
		sentAt := now
		notification.Status = models.NotificationStatusSent
		notification.SentAt = &sentAt
		notification.LastError = ""
	} else {
		notification.LastError = err.Error()
		if notification.Attempts >= notifierMaxRetries {
			notification.Status = models.NotificationStatusFailed
		} else {
			// Back off: retry in attempts*1m.
			notification.ScheduledAt = now.Add(time.Duration(notification.Attempts) * time.Minute)
		}
	}

	if saveErr := n.db.Save(notification).Error; saveErr != nil {
		log.Printf("[Notifier] save notification %s failed: %v", notification.ID, saveErr)
	}

	return err == nil
}
