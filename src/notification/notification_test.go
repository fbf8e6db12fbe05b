package notification

import (
	"bytes"
	"errors"
	"log"
	"os"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", Truncate("short", 10))
	assert.Equal(t, "abc...", Truncate("abcdef", 3))
	assert.Equal(t, "äöü...", Truncate("äöüß", 3))
}

func TestNotifyFallsBackToLog(t *testing.T) {
	orig := lookPath
	lookPath = func(string) (string, error) { return "", errors.New("not found") }
	defer func() { lookPath = orig }()

	var buf bytes.Buffer
	log.SetOutput(&buf)
	defer log.SetOutput(os.Stderr)

	Notify("Translation", strings.Repeat("x", 300))
	out := buf.String()
	assert.Contains(t, out, "Notification: Translation: ")
	assert.Contains(t, out, strings.Repeat("x", 200)+"...")
}
