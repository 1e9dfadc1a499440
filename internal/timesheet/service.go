package timesheet

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"time"

	"github.com/oklog/ulid/v2"

	"facialtimesheet-backend/internal/mood"
)

// ===== インターフェース群 =====

type Clock interface {
	Now() time.Time
}

type realClock struct{}

func (realClock) Now() time.Time { return time.Now() }

type IDGen interface {
	New() (string, error)
}

type ulidGen struct{}

func (ulidGen) New() (string, error) {
	t := time.Now().UTC()
	entropy := ulid.Monotonic(rand.Reader, 0)
	id, err := ulid.New(ulid.Timestamp(t), entropy)
	if err != nil {
		return "", err
	}
	return id.String(), nil
}

// RecordStore は勤怠レコードの永続化境界。永続行の書き込みはストアのみが行う。
type RecordStore interface {
	UpsertCheckIn(ctx context.Context, userID, recordULID string, checkIn time.Time, moodLabel string) (int64, error)
	ApplyCheckOut(ctx context.Context, recordID int64, checkOut time.Time, moodLabel string) error
	ListFor(ctx context.Context, userID string) ([]Record, error)
}

// ===== Service本体 =====

type Service struct {
	store    RecordStore
	mood     mood.Inferer
	sessions *registry
	clock    Clock
	id       IDGen
}

func NewService(db *sql.DB, inferer mood.Inferer) *Service {
	return &Service{
		store:    NewStore(db),
		mood:     inferer,
		sessions: newRegistry(),
		clock:    realClock{},
		id:       ulidGen{},
	}
}

// CheckIn: NotCheckedIn からのみ許可。
// 推論 → レコード作成 → 状態遷移の順で、どこかで失敗したら状態は変えない。
func (s *Service) CheckIn(ctx context.Context, userID string, image []byte, contentType string) (*TransitionResponse, error) {
	sess := s.sessions.get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state != StateNotCheckedIn {
		return nil, ErrTransition("check-in not allowed from state " + string(sess.state))
	}

	res, err := s.mood.Infer(ctx, image, contentType)
	if err != nil {
		return nil, fromInferError(err)
	}

	recordULID, err := s.id.New()
	if err != nil {
		return nil, ErrInternal(err.Error())
	}

	now := s.clock.Now().UTC()
	recordID, err := s.store.UpsertCheckIn(ctx, userID, recordULID, now, string(res.Label))
	if err != nil {
		return nil, ErrStore("could not persist check-in: " + err.Error())
	}

	sess.state = StateCheckedIn
	sess.checkInAt = now
	sess.checkOutAt = time.Time{}
	sess.lastMood = res
	sess.recordID = recordID

	at := now.Format(time.RFC3339)
	return &TransitionResponse{State: StateCheckedIn, CheckInAt: &at, Mood: res}, nil
}

// BeginCheckOut: CheckedIn → CheckingOut の純粋な状態遷移（I/Oなし）
func (s *Service) BeginCheckOut(userID string) (*StateResponse, error) {
	sess := s.sessions.get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state != StateCheckedIn {
		return nil, ErrTransition("begin check-out not allowed from state " + string(sess.state))
	}
	sess.state = StateCheckingOut
	return &StateResponse{State: StateCheckingOut}, nil
}

// CancelCheckOut: CheckingOut → CheckedIn。副作用なし。
// 画像送信が進行中（=ロック保持中）の場合は待たずに拒否する。
func (s *Service) CancelCheckOut(userID string) (*StateResponse, error) {
	sess := s.sessions.get(userID)
	if !sess.mu.TryLock() {
		return nil, ErrTransition("a check-out submission is in flight; cancel rejected")
	}
	defer sess.mu.Unlock()

	if sess.state != StateCheckingOut {
		return nil, ErrTransition("cancel check-out not allowed from state " + string(sess.state))
	}
	sess.state = StateCheckedIn
	return &StateResponse{State: StateCheckedIn}, nil
}

// CheckOut: CheckingOut からのみ許可。失敗時は CheckingOut に留まる
// （呼び出し側は再試行またはキャンセルできる）。
func (s *Service) CheckOut(ctx context.Context, userID string, image []byte, contentType string) (*TransitionResponse, error) {
	sess := s.sessions.get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state != StateCheckingOut {
		return nil, ErrTransition("check-out not allowed from state " + string(sess.state))
	}

	res, err := s.mood.Infer(ctx, image, contentType)
	if err != nil {
		return nil, fromInferError(err)
	}

	now := s.clock.Now().UTC()
	// チェックイン時に確保したレコードを閉じる（日付をまたいでも同じ行）
	if err := s.store.ApplyCheckOut(ctx, sess.recordID, now, string(res.Label)); err != nil {
		switch {
		case errors.Is(err, ErrRecordClosed):
			// 行は既に閉じられている（例: 取り残し整理で別経路から閉じた）。
			// 永続側の意図は満たされているのでセッションを追従させて完了扱い。
			sess.state = StateDone
			sess.checkOutAt = now
			sess.lastMood = res
			at := now.Format(time.RFC3339)
			return &TransitionResponse{State: StateDone, CheckOutAt: &at, Mood: res}, nil
		case errors.Is(err, ErrRecordNotFound):
			// 行が消えておりこのサイクルは続行不能。CheckingOut に取り残さず
			// Done へ落とし、reset で次のサイクルを始められるようにする。
			sess.state = StateDone
			sess.checkOutAt = now
			return nil, ErrNotFound("open attendance record not found")
		default:
			return nil, ErrStore("could not persist check-out: " + err.Error())
		}
	}

	sess.state = StateDone
	sess.checkOutAt = now
	sess.lastMood = res

	at := now.Format(time.RFC3339)
	return &TransitionResponse{State: StateDone, CheckOutAt: &at, Mood: res}, nil
}

// ResetSession: Done からのみ。新しいサイクルを開始できる状態に戻す。
func (s *Service) ResetSession(userID string) (*StateResponse, error) {
	sess := s.sessions.get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()

	if sess.state != StateDone {
		return nil, ErrTransition("reset not allowed from state " + string(sess.state))
	}
	sess.state = StateNotCheckedIn
	sess.checkInAt = time.Time{}
	sess.checkOutAt = time.Time{}
	sess.recordID = 0
	return &StateResponse{State: StateNotCheckedIn}, nil
}

// Current: 現在のセッション状態のスナップショット
func (s *Service) Current(userID string) SessionResponse {
	sess := s.sessions.get(userID)
	sess.mu.Lock()
	defer sess.mu.Unlock()
	return sess.snapshot()
}

// History: 読み取り専用。状態機械には触れずストアへ委譲する。
func (s *Service) History(ctx context.Context, userID string) ([]RecordResponse, error) {
	if userID == "" {
		return nil, ErrInvalid("user_id is required")
	}
	records, err := s.store.ListFor(ctx, userID)
	if err != nil {
		return nil, ErrStore("could not read attendance records: " + err.Error())
	}
	out := make([]RecordResponse, 0, len(records))
	for i := 0; i < len(records); i++ {
		out = append(out, records[i].toDTO())
	}
	return out, nil
}
