package infrastructure

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/yourusername/mediahub-go/internal/domain"
	"go.uber.org/zap"
)

func TestNotificationService_DisabledIsNoop(t *testing.T) {
	n := NewNotificationService(&domain.NotificationConfig{Enabled: false, Method: "osascript"}, zap.NewNop())
	assert.NoError(t, n.Send("t", "m"))

	task := domain.NewDownloadTask("jellyfin_1", "1", "/tmp/a.mp4")
	task.Title = "Inception"
	n.NotifyDownloadCompleted(task)
}

func TestNotificationService_UnknownMethod(t *testing.T) {
	n := NewNotificationService(&domain.NotificationConfig{Enabled: true, Method: "pager"}, zap.NewNop())
	assert.NoError(t, n.Send("t", "m"))
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", truncateString("abc", 5))
	assert.Equal(t, "abcde...", truncateString("abcdefgh", 5))
}

func TestDisplayName(t *testing.T) {
	task := domain.NewDownloadTask("jellyfin_1", "1", "/tmp/a.mp4")
	assert.Equal(t, "jellyfin_1", displayName(task))
	task.Title = "Heat"
	assert.Equal(t, "Heat", displayName(task))
}

func TestCommandLine(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want string
	}{
		{"plain", []string{"Done", "Heat"}, "notify-send Done Heat"},
		{"spaces", []string{"Download Completed", "Saved: Heat"}, "notify-send 'Download Completed' 'Saved: Heat'"},
		{"single quote", []string{"it's"}, `notify-send 'it'"'"'s'`},
		{"dollar", []string{"$HOME"}, "notify-send '$HOME'"},
		{"empty", []string{""}, "notify-send ''"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, commandLine("notify-send", tt.args...))
		})
	}
}
