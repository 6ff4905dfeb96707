package services

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"github.com/example/uslugi/internal/models"
)

func newTestNotifier(t *testing.T, db *gorm.DB, status int) *Notifier {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(status)
		w.Write([]byte(`{"ok": true}`))
	}))
	t.Cleanup(server.Close)

	telegram := NewTelegramService("test-token", "admin-chat")
	telegram.baseURL = server.URL

	return NewNotifier(db, telegram, time.Minute)
}

func TestDispatchDueSendsPending(t *testing.T) {
	db := newTestDB(t)
	notifier := newTestNotifier(t, db, http.StatusOK)

	require.NoError(t, notifier.EnqueueAdmin("booking_created", "new booking"))
	require.NoError(t, notifier.Enqueue("reminder", "chat-1", "see you tomorrow", time.Now().Add(time.Hour)))

	sent := notifier.DispatchDue(time.Now())
	assert.Equal(t, 1, sent, "future notifications stay queued")

	var notifications []models.Notification
	require.NoError(t, db.Order("created_at ASC").Find(&notifications).Error)
	require.Len(t, notifications, 2)

	assert.Equal(t, models.NotificationStatusSent, notifications[0].Status)
	assert.NotNil(t, notifications[0].SentAt)
	assert.Equal(t, models.NotificationStatusPending, notifications[1].Status)
}

func TestDispatchDueRetriesThenFails(t *testing.T) {
	db := newTestDB(t)
	notifier := newTestNotifier(t, db, http.StatusInternalServerError)

	require.NoError(t, notifier.EnqueueAdmin("booking_created", "new booking"))

	// First two failures re-schedule with backoff; the third gives up.
	for attempt := 1; attempt <= 3; attempt++ {
		sent := notifier.DispatchDue(time.Now().Add(time.Duration(attempt) * 10 * time.Minute))
		assert.Equal(t, 0, sent)
	}

	var notification models.Notification
	require.NoError(t, db.First(&notification).Error)
	assert.Equal(t, models.NotificationStatusFailed, notification.Status)
	assert.Equal(t, 3, notification.Attempts)
	assert.NotEmpty(t, notification.LastError)
}
