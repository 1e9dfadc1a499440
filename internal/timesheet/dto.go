package timesheet

import "facialtimesheet-backend/internal/mood"

const (
	DateLayout  = "2006-01-02"
	ClockLayout = "15:04"

	// multipart の画像パート上限
	MaxImageBytes = 8 << 20
)

// チェックイン/チェックアウト成功時のレスポンス
type TransitionResponse struct {
	State      State        `json:"state"`
	CheckInAt  *string      `json:"check_in_at,omitempty"`  // RFC3339
	CheckOutAt *string      `json:"check_out_at,omitempty"` // RFC3339
	Mood       *mood.Result `json:"mood,omitempty"`
}

// 状態のみ変わる操作（begin/cancel/reset）のレスポンス
type StateResponse struct {
	State State `json:"state"`
}

// GET /timesheet/session
type SessionResponse struct {
	State      State   `json:"state"`
	CheckInAt  *string `json:"check_in_at,omitempty"`
	CheckOutAt *string `json:"check_out_at,omitempty"`
	Mood       *string `json:"mood,omitempty"` // 最後に成功した推論のラベル
}

// GET /timesheet の1行
type RecordResponse struct {
	RecordULID string  `json:"record_id"`
	Date       string  `json:"date"`     // YYYY-MM-DD
	CheckIn    string  `json:"checkIn"`  // HH:MM
	CheckOut   *string `json:"checkOut"` // HH:MM or null
	Status     string  `json:"status"`   // Open | Closed
	Mood       string  `json:"mood"`
}
