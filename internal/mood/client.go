package mood

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sort"
	"time"
)

// ===== ラベル定義 =====

// Label は呼び出し側に公開する気分カテゴリ（閉集合）。
// 推論失敗・未知の感情名は LabelUnclear に正規化し、空文字は返さない。
type Label string

const (
	LabelAngry     Label = "angry"
	LabelDisgusted Label = "disgusted"
	LabelFearful   Label = "fearful"
	LabelHappy     Label = "happy"
	LabelSad       Label = "sad"
	LabelSurprised Label = "surprised"
	LabelNeutral   Label = "neutral"
	LabelUnclear   Label = "unclear"
)

// 推論サービス側（DeepFace互換）の感情名 → 公開ラベル
var labelAliases = map[string]Label{
	"angry":     LabelAngry,
	"disgust":   LabelDisgusted,
	"disgusted": LabelDisgusted,
	"fear":      LabelFearful,
	"fearful":   LabelFearful,
	"happy":     LabelHappy,
	"sad":       LabelSad,
	"surprise":  LabelSurprised,
	"surprised": LabelSurprised,
	"neutral":   LabelNeutral,
}

func normalizeLabel(name string) Label {
	if l, ok := labelAliases[name]; ok {
		return l
	}
	return LabelUnclear
}

var displayNames = map[Label]string{
	LabelAngry:     "Very Angry",
	LabelDisgusted: "Disgusted",
	LabelFearful:   "Fearful",
	LabelHappy:     "Happy",
	LabelSad:       "Sad",
	LabelSurprised: "Surprised",
	LabelNeutral:   "Neutral",
	LabelUnclear:   "Mood Unclear",
}

// confidence（0..1）に応じた強度接頭辞
func intensity(confidence float64) string {
	switch {
	case confidence > 0.9:
		return "very "
	case confidence > 0.7:
		return "quite "
	case confidence > 0.5:
		return "somewhat "
	default:
		return "slightly "
	}
}

// ===== 結果モデル =====

type Emotion struct {
	Name        string  `json:"emotion"`
	Probability float64 `json:"probability"` // 0..1
}

// Result は1回の推論の正規化済み結果。
type Result struct {
	Label      Label     `json:"label"`
	Confidence float64   `json:"confidence"` // dominant の確率（0..1）
	Top        []Emotion `json:"top_emotions"`
	Display    string    `json:"display"` // 例: "quite Happy"
}

// ===== エラーモデル =====

type Kind string

const (
	KindUnavailable  Kind = "UNAVAILABLE"
	KindInvalidImage Kind = "INVALID_IMAGE"
	KindTimeout      Kind = "TIMEOUT"
)

type InferError struct {
	Kind    Kind
	Message string
}

func (e *InferError) Error() string { return fmt.Sprintf("mood inference %s: %s", e.Kind, e.Message) }

func errUnavailable(msg string) error { return &InferError{Kind: KindUnavailable, Message: msg} }
func errInvalidImage(msg string) error {
	return &InferError{Kind: KindInvalidImage, Message: msg}
}
func errTimeout(msg string) error { return &InferError{Kind: KindTimeout, Message: msg} }

// ===== クライアント =====

const (
	analyzePath = "/analyze"
	topN        = 3
)

// Inferer は State Machine 側が依存する境界。セッション状態には一切触れない。
type Inferer interface {
	Infer(ctx context.Context, image []byte, contentType string) (*Result, error)
}

type Client struct {
	baseURL string
	http    *http.Client
}

func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		baseURL: baseURL,
		http:    &http.Client{Timeout: timeout},
	}
}

// 推論サービスのレスポンス（DeepFace互換: 確率はパーセント値）
type analyzeResponse struct {
	Dominant string             `json:"dominant"`
	Emotions map[string]float64 `json:"emotions"`
}

func (c *Client) Infer(ctx context.Context, image []byte, contentType string) (*Result, error) {
	// 空画像は外部呼び出し前に弾く
	if len(image) == 0 {
		return nil, errInvalidImage("empty image payload")
	}
	if contentType == "" {
		contentType = "application/octet-stream"
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="image"; filename="capture"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	if err != nil {
		return nil, errUnavailable(err.Error())
	}
	if _, err := part.Write(image); err != nil {
		return nil, errUnavailable(err.Error())
	}
	if err := mw.Close(); err != nil {
		return nil, errUnavailable(err.Error())
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+analyzePath, &body)
	if err != nil {
		return nil, errUnavailable(err.Error())
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || isClientTimeout(err) {
			return nil, errTimeout("mood service did not respond in time")
		}
		return nil, errUnavailable(err.Error())
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode >= 500:
		return nil, errUnavailable(fmt.Sprintf("mood service returned %d", resp.StatusCode))
	case resp.StatusCode >= 400:
		// サービス側で顔検出・デコードに失敗したケース
		return nil, errInvalidImage(fmt.Sprintf("mood service rejected image (%d)", resp.StatusCode))
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, errUnavailable(err.Error())
	}
	var ar analyzeResponse
	if err := json.Unmarshal(raw, &ar); err != nil {
		return nil, errUnavailable("mood service returned malformed response")
	}
	return normalize(ar)
}

func isClientTimeout(err error) bool {
	type timeouter interface{ Timeout() bool }
	var t timeouter
	if errors.As(err, &t) {
		return t.Timeout()
	}
	return false
}

// normalize: パーセント値を 0..1 に丸め、確率降順の上位 topN を抽出する。
// 合計が1になる保証はない（マルチラベルの信頼度として扱う）。
func normalize(ar analyzeResponse) (*Result, error) {
	if len(ar.Emotions) == 0 {
		return nil, errUnavailable("mood service returned no emotions")
	}

	all := make([]Emotion, 0, len(ar.Emotions))
	for name, pct := range ar.Emotions {
		all = append(all, Emotion{Name: name, Probability: clamp01(pct / 100)})
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].Probability != all[j].Probability {
			return all[i].Probability > all[j].Probability
		}
		return all[i].Name < all[j].Name
	})
	if len(all) > topN {
		all = all[:topN]
	}

	dominant := ar.Dominant
	if dominant == "" {
		dominant = all[0].Name
	}
	label := normalizeLabel(dominant)
	confidence := all[0].Probability
	for _, e := range all {
		if e.Name == dominant {
			confidence = e.Probability
			break
		}
	}

	display := displayNames[label]
	if label != LabelUnclear {
		display = intensity(confidence) + display
	}

	return &Result{
		Label:      label,
		Confidence: confidence,
		Top:        all,
		Display:    display,
	}, nil
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
