package transcription

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const defaultLemonfoxURL = "https://api.lemonfox.ai/v1/audio/transcriptions"

// Lemonfox transcribes through the Lemonfox Whisper endpoint, which answers
// with WebVTT.
type Lemonfox struct {
	apiKey   string
	url      string
	language string
	client   *http.Client
}

func NewLemonfox(apiKey, url, language string) *Lemonfox {
	if url == "" {
		url = defaultLemonfoxURL
	}
	return &Lemonfox{
		apiKey:   apiKey,
		url:      url,
		language: lemonfoxLanguage(language),
		client:   &http.Client{Timeout: 10 * time.Minute},
	}
}

func (l *Lemonfox) Transcribe(ctx context.Context, audioPath string) ([]Segment, error) {
	vtt, err := l.request(ctx, audioPath)
	if err != nil {
		return nil, err
	}
	return ParseVTT(vtt)
}

func (l *Lemonfox) request(ctx context.Context, audioPath string) (string, error) {
	file, err := os.Open(audioPath)
	if err != nil {
		return "", fmt.Errorf("error reading file: %w", err)
	}
	defer file.Close()

	body := &bytes.Buffer{}
	writer := multipart.NewWriter(body)

	part, err := writer.CreateFormFile("file", filepath.Base(audioPath))
	if err != nil {
		return "", fmt.Errorf("error creating form file: %w", err)
	}
	if _, err := io.Copy(part, file); err != nil {
		return "", fmt.Errorf("error copying file data: %w", err)
	}

	if l.language != "" {
		writer.WriteField("language", l.language)
	}
	writer.WriteField("response_format", "vtt")
	if err := writer.Close(); err != nil {
		return "", fmt.Errorf("error closing form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.url, body)
	if err != nil {
		return "", fmt.Errorf("error creating request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+l.apiKey)
	req.Header.Set("Content-Type", writer.FormDataContentType())

	resp, err := l.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("error sending request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("error reading response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, respBody)
	}

	return string(respBody), nil
}

// lemonfoxLanguage maps ISO codes to the language names Lemonfox expects.
func lemonfoxLanguage(code string) string {
	switch code {
	case "en":
		return "english"
	case "de":
		return "german"
	case "fr":
		return "french"
	case "es":
		return "spanish"
	default:
		return code
	}
}
