package selector

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rs/zerolog"
	"github.com/sashabaranov/go-openai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"jamesfarrell.me/vidextract/internal/analysis"
)

func TestParseMoments(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    int
		wantErr bool
	}{
		{
			name:    "valid",
			content: `{"moments":[{"shot_numbers":[0,1],"start_time":0,"end_time":8,"description":"people talk"},{"shot_numbers":[2],"start_time":"14.5","end_time":15.5,"description":"explosion"}]}`,
			want:    2,
		},
		{name: "empty moments", content: `{"moments":[]}`, want: 0},
		{name: "fenced", content: "```json\n{\"moments\":[{\"start_time\":1,\"end_time\":2,\"description\":\"x\"}]}\n```", want: 1},
		{name: "not json", content: `Here are the moments: none`, wantErr: true},
		{name: "missing key", content: `{"events":[]}`, wantErr: true},
		{name: "top-level array", content: `[{"start_time":1}]`, wantErr: true},
		{name: "moments not array", content: `{"moments":"none"}`, wantErr: true},
		{name: "moment not object", content: `{"moments":[1,2]}`, wantErr: true},
		{name: "null moment", content: `{"moments":[null]}`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseMoments(tt.content)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Len(t, got, tt.want)
		})
	}
}

func TestParseMomentsKeepsLooseFields(t *testing.T) {
	got, err := ParseMoments(`{"moments":[{"shot_numbers":[1,2.5,"3",4],"start_time":"12.5","end_time":14,"summary":"s"}]}`)
	require.NoError(t, err)
	require.Len(t, got, 1)

	m := got[0]
	assert.Equal(t, []int{1, 4}, m.ShotNumbers)
	assert.Equal(t, "12.5", m.StartTime)
	assert.Equal(t, 14.0, m.EndTime)
	assert.Nil(t, m.Description)
	assert.Equal(t, "s", m.Summary)
}

func testDoc(t *testing.T) *analysis.Document {
	t.Helper()
	doc, err := analysis.Assemble("clip.mp4", []float64{1.5}, [][]string{{"dog"}}, nil, nil, nil)
	require.NoError(t, err)
	return doc
}

func TestBuildPrompt(t *testing.T) {
	prompt, err := BuildPrompt(testDoc(t))
	require.NoError(t, err)

	assert.True(t, strings.HasSuffix(prompt, `{"video_name":"clip.mp4","number_of_shots":1,"shots":[{"index":0,"time":1.5,"objects":["dog"],"caption":null}],"sound_events":[],"transcript":[]}`))
}

func newSelector(t *testing.T, status int, content string) (*Selector, *openai.ChatCompletionRequest) {
	t.Helper()
	var got openai.ChatCompletionRequest

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.Header().Set("Content-Type", "application/json")
		if status != http.StatusOK {
			w.WriteHeader(status)
			_, _ = w.Write([]byte(`{"error":{"message":"upstream down","type":"server_error"}}`))
			return
		}
		body, _ := json.Marshal(map[string]any{
			"id":     "chatcmpl-1",
			"object": "chat.completion",
			"choices": []map[string]any{{
				"index":         0,
				"finish_reason": "stop",
				"message":       map[string]any{"role": "assistant", "content": content},
			}},
		})
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)

	cfg := openai.DefaultConfig("test")
	cfg.BaseURL = srv.URL + "/v1"
	return New(openai.NewClientWithConfig(cfg), "", zerolog.Nop()), &got
}

func TestSelect(t *testing.T) {
	s, req := newSelector(t, http.StatusOK, `{"moments":[{"shot_numbers":[0],"start_time":1.0,"end_time":2.0,"description":"a dog barks"}]}`)

	moments, err := s.Select(context.Background(), testDoc(t))
	require.NoError(t, err)
	require.Len(t, moments, 1)
	assert.Equal(t, "a dog barks", moments[0].Description)

	assert.Equal(t, openai.GPT4oMini, req.Model)
	require.NotNil(t, req.ResponseFormat)
	assert.Equal(t, openai.ChatCompletionResponseFormatTypeJSONObject, req.ResponseFormat.Type)
}

func TestSelectMalformedIsEmpty(t *testing.T) {
	s, _ := newSelector(t, http.StatusOK, `I could not find anything interesting.`)

	moments, err := s.Select(context.Background(), testDoc(t))
	require.NoError(t, err)
	assert.NotNil(t, moments)
	assert.Empty(t, moments)
}

func TestSelectUpstreamErrorIsEmpty(t *testing.T) {
	s, _ := newSelector(t, http.StatusBadGateway, "")

	moments, err := s.Select(context.Background(), testDoc(t))
	require.NoError(t, err)
	assert.Empty(t, moments)
}

func TestSelectCancelled(t *testing.T) {
	s, _ := newSelector(t, http.StatusOK, `{"moments":[]}`)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := s.Select(ctx, testDoc(t))
	assert.ErrorIs(t, err, context.Canceled)
}
