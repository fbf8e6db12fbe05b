package notification

import (
	"context"
	"log"
	"os/exec"
	"time"
)

const (
	maxBodyRunes = 200
	sendTimeout  = 3 * time.Second
)

// Notify shows a desktop notification via notify-send. Without a
// notification daemon the message is only logged.
func Notify(title, message string) {
	send("normal", title, message)
}

// ShowBlockingError reports a fatal condition before the UI exists.
func ShowBlockingError(title, message string) {
	send("critical", title, message)
}

var lookPath = exec.LookPath

func send(urgency, title, message string) {
	body := Truncate(message, maxBodyRunes)
	log.Printf("Notification: %s: %s", title, body)
	bin, err := lookPath("notify-send")
	if err != nil {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
	defer cancel()
	cmd := exec.CommandContext(ctx, bin, "-a", "LLM Assistant", "-u", urgency, title, body)
	if err := cmd.Run(); err != nil {
		log.Printf("Notification: notify-send failed: %v", err)
	}
}

// Truncate shortens text to max runes, appending "..." when cut.
func Truncate(text string, max int) string {
	r := []rune(text)
	if len(r) <= max {
		return text
	}
	return string(r[:max]) + "..."
}
