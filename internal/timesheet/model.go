package timesheet

import "time"

// ===== セッション状態 =====

type State string

const (
	StateNotCheckedIn State = "not_checked_in"
	StateCheckedIn    State = "checked_in"
	StateCheckingOut  State = "checking_out"
	StateDone         State = "done"
)

// ===== 勤怠レコード =====

const (
	StatusOpen   = "Open"
	StatusClosed = "Closed"
)

// DB行に対応（スキャン用）
type recordRow struct {
	RecordID   int64
	RecordULID string
	UserID     string
	AttendedOn string // DATE → "YYYY-MM-DD"
	CheckIn    time.Time
	CheckOut   *time.Time
	Status     string
	Mood       string
}

// Service ↔ Store で使うモデル
type Record struct {
	RecordID   int64
	RecordULID string
	UserID     string
	AttendedOn string
	CheckIn    time.Time
	CheckOut   *time.Time
	Status     string
	Mood       string
}

func (r recordRow) toModel() Record {
	m := Record{
		RecordID:   r.RecordID,
		RecordULID: r.RecordULID,
		UserID:     r.UserID,
		AttendedOn: r.AttendedOn,
		CheckIn:    r.CheckIn.UTC(),
		Status:     r.Status,
		Mood:       r.Mood,
	}
	if r.CheckOut != nil {
		t := r.CheckOut.UTC()
		m.CheckOut = &t
	}
	return m
}

func (r Record) toDTO() RecordResponse {
	resp := RecordResponse{
		RecordULID: r.RecordULID,
		Date:       r.AttendedOn,
		CheckIn:    r.CheckIn.Format(ClockLayout),
		Status:     r.Status,
		Mood:       r.Mood,
	}
	if r.CheckOut != nil {
		s := r.CheckOut.Format(ClockLayout)
		resp.CheckOut = &s
	}
	return resp
}
