package infrastructure

import (
	"fmt"
	"os/exec"
	"strings"

	"github.com/yourusername/mediahub-go/internal/domain"
	"go.uber.org/zap"
)

// NotificationService handles sending notifications
type NotificationService struct {
	config *domain.NotificationConfig
	logger *zap.Logger
}

// NewNotificationService creates a new notification service
func NewNotificationService(config *domain.NotificationConfig, logger *zap.Logger) *NotificationService {
	return &NotificationService{
		config: config,
		logger: logger,
	}
}

// Send sends a notification
func (n *NotificationService) Send(title, message string) error {
	if !n.config.Enabled {
		n.logger.Debug("Notifications disabled, skipping",
			zap.String("title", title),
			zap.String("message", message))
		return nil
	}

	switch n.config.Method {
	case "osascript":
		return n.sendOSAScript(title, message)
	case "notify-send":
		return n.sendNotifySend(title, message)
	default:
		n.logger.Warn("Unknown notification method", zap.String("method", n.config.Method))
		return nil
	}
}

// sendOSAScript sends notification using macOS osascript
func (n *NotificationService) sendOSAScript(title, message string) error {
	script := fmt.Sprintf(`display notification %q with title %q`, message, title)
	if n.config.Sound {
		script += ` sound name "Glass"`
	}
	return n.exec("osascript", "-e", script)
}

// sendNotifySend sends notification using Linux notify-send
func (n *NotificationService) sendNotifySend(title, message string) error {
	return n.exec("notify-send", title, message)
}

func (n *NotificationService) exec(binary string, args ...string) error {
	line := commandLine(binary, args...)
	if err := exec.Command(binary, args...).Run(); err != nil {
		n.logger.Error("Failed to send notification",
			zap.String("command", line),
			zap.Error(err))
		return err
	}
	n.logger.Debug("Notification sent", zap.String("command", line))
	return nil
}

// commandLine renders a command for logs, single-quoting arguments the
// shell would otherwise split or expand.
func commandLine(binary string, args ...string) string {
	parts := make([]string, 0, len(args)+1)
	parts = append(parts, quoteArg(binary))
	for _, a := range args {
		parts = append(parts, quoteArg(a))
	}
	return strings.Join(parts, " ")
}

func quoteArg(s string) string {
	if s == "" {
		return "''"
	}
	if !strings.ContainsAny(s, " \t\n\r'\"$`\\!*?[](){}|;<>&~#%") {
		return s
	}
	return "'" + strings.ReplaceAll(s, "'", `'"'"'`) + "'"
}

// NotifyDownloadStarted sends notification when a transfer starts
func (n *NotificationService) NotifyDownloadStarted(task *domain.DownloadTask) {
	n.Send("Download Started", fmt.Sprintf("Downloading: %s", truncateString(displayName(task), 40)))
}

// NotifyDownloadCompleted sends notification when a transfer completes
func (n *NotificationService) NotifyDownloadCompleted(task *domain.DownloadTask) {
	n.Send("Download Completed", fmt.Sprintf("Saved: %s", truncateString(displayName(task), 40)))
}

// NotifyDownloadFailed sends notification when a transfer fails
func (n *NotificationService) NotifyDownloadFailed(task *domain.DownloadTask) {
	n.Send("Download Failed", fmt.Sprintf("%s: %s",
		truncateString(displayName(task), 30),
		truncateString(task.ErrorMessage, 60)))
}

func displayName(task *domain.DownloadTask) string {
	if task.Title != "" {
		return task.Title
	}
	return task.MediaID
}

// truncateString truncates a string to the specified length
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}

