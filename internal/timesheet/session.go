package timesheet

import (
	"sync"
	"time"

	"facialtimesheet-backend/internal/mood"
)

// ===== セッション（ユーザ単位の状態機械） =====
//
// 遷移: NotCheckedIn → CheckedIn → CheckingOut → Done →（reset）→ NotCheckedIn
//
// mu は推論呼び出し〜ストア書き込みを含む遷移全体で保持する。
// これで「ユーザごとに同時実行は最大1件」「途中状態は外から観測されない」を満たす。
// 別ユーザのセッションは独立して進む。
type session struct {
	mu sync.Mutex

	userID     string
	state      State
	checkInAt  time.Time
	checkOutAt time.Time
	lastMood   *mood.Result

	// チェックイン時に確保したオープンなレコードのID。
	// 日付をまたいでも check-out はこのレコードを閉じる（DESIGN.md 参照）。
	recordID int64
}

// registry: ユーザID → セッション。生成のみをガードし、
// 遷移の直列化は各セッションの mu が担う。
type registry struct {
	mu     sync.Mutex
	byUser map[string]*session
}

func newRegistry() *registry {
	return &registry{byUser: make(map[string]*session)}
}

func (r *registry) get(userID string) *session {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.byUser[userID]
	if !ok {
		s = &session{userID: userID, state: StateNotCheckedIn}
		r.byUser[userID] = s
	}
	return s
}

// snapshot: ロック保持中に呼ぶこと
func (s *session) snapshot() SessionResponse {
	resp := SessionResponse{State: s.state}
	if s.state != StateNotCheckedIn {
		t := s.checkInAt.Format(time.RFC3339)
		resp.CheckInAt = &t
	}
	if s.state == StateDone {
		t := s.checkOutAt.Format(time.RFC3339)
		resp.CheckOutAt = &t
	}
	if s.lastMood != nil {
		l := string(s.lastMood.Label)
		resp.Mood = &l
	}
	return resp
}
