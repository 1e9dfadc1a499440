package mood

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func analyzeHandler(t *testing.T, status int, body any) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/analyze", r.URL.Path)

		// multipart の image パートが届いていること
		require.NoError(t, r.ParseMultipartForm(1<<20))
		_, _, err := r.FormFile("image")
		require.NoError(t, err)

		w.WriteHeader(status)
		if body != nil {
			_ = json.NewEncoder(w).Encode(body)
		}
	}
}

func TestInferNormalizesResult(t *testing.T) {
	srv := httptest.NewServer(analyzeHandler(t, http.StatusOK, map[string]any{
		"dominant": "happy",
		"emotions": map[string]float64{
			"happy":    96.4,
			"neutral":  2.1,
			"sad":      0.9,
			"angry":    0.4,
			"surprise": 0.2,
		},
	}))
	defer srv.Close()

	c := NewClient(srv.URL, 5*time.Second)
	res, err := c.Infer(context.Background(), []byte("img"), "image/jpeg")
	require.NoError(t, err)

	assert.Equal(t, LabelHappy, res.Label)
	assert.InDelta(t, 0.964, res.Confidence, 1e-9)
	assert.Equal(t, "very Happy", res.Display)

	// 上位3件・確率降順・0..1
	require.Len(t, res.Top, 3)
	assert.Equal(t, "happy", res.Top[0].Name)
	assert.Equal(t, "neutral", res.Top[1].Name)
	assert.Equal(t, "sad", res.Top[2].Name)
	for i := 1; i < len(res.Top); i++ {
		assert.GreaterOrEqual(t, res.Top[i-1].Probability, res.Top[i].Probability)
	}
	for _, e := range res.Top {
		assert.GreaterOrEqual(t, e.Probability, 0.0)
		assert.LessOrEqual(t, e.Probability, 1.0)
	}
}

func TestInferMapsServiceEmotionNames(t *testing.T) {
	cases := []struct {
		dominant string
		want     Label
	}{
		{"disgust", LabelDisgusted},
		{"fear", LabelFearful},
		{"surprise", LabelSurprised},
		{"neutral", LabelNeutral},
		{"contempt", LabelUnclear}, // 閉集合にない感情名
	}
	for _, tc := range cases {
		t.Run(tc.dominant, func(t *testing.T) {
			srv := httptest.NewServer(analyzeHandler(t, http.StatusOK, map[string]any{
				"dominant": tc.dominant,
				"emotions": map[string]float64{tc.dominant: 80.0, "neutral": 10.0},
			}))
			defer srv.Close()

			res, err := NewClient(srv.URL, 5*time.Second).Infer(context.Background(), []byte("img"), "image/jpeg")
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Label)
			assert.NotEmpty(t, res.Display)
		})
	}
}

func TestInferEmptyImageRejectedWithoutCall(t *testing.T) {
	called := false
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 5*time.Second).Infer(context.Background(), nil, "image/jpeg")
	var ie *InferError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, KindInvalidImage, ie.Kind)
	assert.False(t, called, "empty image must not hit the network")
}

func TestInferServerErrorIsUnavailable(t *testing.T) {
	srv := httptest.NewServer(analyzeHandler(t, http.StatusInternalServerError, nil))
	defer srv.Close()

	_, err := NewClient(srv.URL, 5*time.Second).Infer(context.Background(), []byte("img"), "image/jpeg")
	var ie *InferError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, KindUnavailable, ie.Kind)
}

func TestInferRejectedImageIsInvalid(t *testing.T) {
	srv := httptest.NewServer(analyzeHandler(t, http.StatusUnprocessableEntity, nil))
	defer srv.Close()

	_, err := NewClient(srv.URL, 5*time.Second).Infer(context.Background(), []byte("not-a-face"), "image/jpeg")
	var ie *InferError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, KindInvalidImage, ie.Kind)
}

func TestInferTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 20*time.Millisecond).Infer(context.Background(), []byte("img"), "image/jpeg")
	var ie *InferError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, KindTimeout, ie.Kind)
}

func TestInferConnectionRefusedIsUnavailable(t *testing.T) {
	// 誰も聞いていないポート
	_, err := NewClient("http://127.0.0.1:1", 1*time.Second).Infer(context.Background(), []byte("img"), "image/jpeg")
	var ie *InferError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, KindUnavailable, ie.Kind)
}

func TestInferMalformedResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("not json"))
	}))
	defer srv.Close()

	_, err := NewClient(srv.URL, 5*time.Second).Infer(context.Background(), []byte("img"), "image/jpeg")
	var ie *InferError
	require.ErrorAs(t, err, &ie)
	assert.Equal(t, KindUnavailable, ie.Kind)
}

func TestIntensityPrefix(t *testing.T) {
	cases := []struct {
		confidence float64
		want       string
	}{
		{0.95, "very "},
		{0.75, "quite "},
		{0.55, "somewhat "},
		{0.30, "slightly "},
	}
	for _, tc := range cases {
		assert.Equal(t, tc.want, intensity(tc.confidence))
	}
}
