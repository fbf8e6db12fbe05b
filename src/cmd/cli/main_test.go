package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"llm-assistant/src/hotkey"
	"llm-assistant/src/operation"
)

// fakeAPI streams answer for every chat completion request.
func fakeAPI(t *testing.T, answer string) string {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-file", r.Header.Get("Authorization"))
		var req struct {
			Stream bool `json:"stream"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)
		if !req.Stream {
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"choices":[{"message":{"content":%q}}]}`, answer)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, word := range strings.SplitAfter(answer, " ") {
			fmt.Fprintf(w, "data: {\"choices\":[{\"delta\":{\"content\":%q}}]}\n\n", word)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
	t.Cleanup(srv.Close)

	dir := t.TempDir()
	keyPath := filepath.Join(dir, "key")
	require.NoError(t, os.WriteFile(keyPath, []byte("sk-file\n"), 0o600))
	t.Setenv("XDG_CONFIG_HOME", dir)
	t.Setenv("API_URL", srv.URL)
	t.Setenv("API_KEY", "")
	t.Setenv("ENABLE_FILE_LOGGING", "")
	t.Setenv("LLM_MAX_ATTEMPTS", "1")
	return keyPath
}

func TestRunTextOperation(t *testing.T) {
	keyPath := fakeAPI(t, "Hallo schöne Welt")

	var out bytes.Buffer
	err := runWithArgs([]string{"llm-assistant-cli", "run", "1", "--text", "Hello nice world", "--api-key-path", keyPath}, strings.NewReader(""), &out)
	require.NoError(t, err)
	assert.Equal(t, "Hallo schöne Welt", out.String())
}

func TestRunTextFromStdinAsJSON(t *testing.T) {
	keyPath := fakeAPI(t, "A short explanation")

	var out bytes.Buffer
	args := normalizeLegacyArgs([]string{"llm-assistant-cli", "run", "explain-clipboard", "-text", "-", "-json", "-api-key-path=" + keyPath})
	require.NoError(t, runWithArgs(args, strings.NewReader("some text"), &out))

	var result RunResult
	require.NoError(t, json.Unmarshal(out.Bytes(), &result))
	assert.Equal(t, "explain-clipboard", result.Operation)
	assert.Equal(t, "A short explanation", result.Text)
	assert.Equal(t, "text", result.Source)
	assert.Equal(t, 19, result.CharCount)
	assert.NotEmpty(t, result.Timestamp)
}

func TestRunRejectsBadInput(t *testing.T) {
	keyPath := fakeAPI(t, "unused")

	err := runWithArgs([]string{"llm-assistant-cli", "run", "9"}, strings.NewReader(""), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown operation")

	notPNG := filepath.Join(t.TempDir(), "shot.png")
	require.NoError(t, os.WriteFile(notPNG, []byte("GIF89a"), 0o600))
	err = runWithArgs([]string{"llm-assistant-cli", "run", "ocr-translate", "--file", notPNG, "--api-key-path", keyPath}, strings.NewReader(""), &bytes.Buffer{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not a valid PNG")

	err = runWithArgs([]string{"llm-assistant-cli", "run"}, strings.NewReader(""), &bytes.Buffer{})
	assert.Error(t, err)
}

func TestPNGValidation(t *testing.T) {
	tests := []struct {
		name    string
		data    []byte
		wantErr bool
	}{
		{"ValidPNG", []byte{0x89, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a, 0x00}, false},
		{"InvalidMagic", []byte{0x00, 'P', 'N', 'G', 0x0d, 0x0a, 0x1a, 0x0a}, true},
		{"TooShort", []byte{0x89, 'P', 'N', 'G'}, true},
		{"Empty", []byte{}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validatePNG(tt.data)
			assert.Equal(t, tt.wantErr, err != nil, "validatePNG() error = %v", err)
		})
	}
}

func TestReadInput(t *testing.T) {
	data, err := readInput("-", strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, []byte("abc"), data)

	_, err = readInput("-", strings.NewReader(""))
	assert.ErrorContains(t, err, "empty")

	_, err = readInput("-", bytes.NewReader(make([]byte, maxFileSize+1)))
	assert.ErrorContains(t, err, "maximum size")

	_, err = readInput(filepath.Join(t.TempDir(), "missing.png"), nil)
	assert.ErrorContains(t, err, "failed to read file")
}

func TestNormalizeLegacyArgs(t *testing.T) {
	tests := []struct {
		name string
		in   []string
		want []string
	}{
		{"empty", []string{}, []string{}},
		{"single dash", []string{"cli", "run", "1", "-json", "-v"}, []string{"cli", "run", "1", "--json", "-v"}},
		{"with value", []string{"cli", "run", "2", "-api-key-path=/k"}, []string{"cli", "run", "2", "--api-key-path=/k"}},
		{"already double", []string{"cli", "--file", "x.png"}, []string{"cli", "--file", "x.png"}},
		{"stdin marker untouched", []string{"cli", "-text", "-"}, []string{"cli", "--text", "-"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalizeLegacyArgs(tt.in))
		})
	}
}

func TestListOperations(t *testing.T) {
	mods, err := hotkey.ParseModifiers("Ctrl+Alt")
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, listOperations(&out, mods))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, len(operation.All())+1)
	assert.Contains(t, lines[0], "HOTKEY")
	for i, op := range operation.All() {
		assert.Contains(t, lines[i+1], string(op.ID))
		assert.Contains(t, lines[i+1], op.Chord(mods).String())
	}
	assert.Contains(t, out.String(), "ocr > translate")
}

func TestSourceName(t *testing.T) {
	ocr, _ := operation.Lookup(operation.OCRTranslate)
	translate, _ := operation.Lookup(operation.TranslateClipboard)

	assert.Equal(t, "shot.png", sourceName(ocr, cliOptions{filePath: "shot.png"}))
	assert.Equal(t, "screen", sourceName(ocr, cliOptions{}))
	assert.Equal(t, "text", sourceName(translate, cliOptions{text: "x"}))
	assert.Equal(t, "clipboard", sourceName(translate, cliOptions{}))
}
