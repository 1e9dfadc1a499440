package timesheet

import (
	"context"
	"database/sql"
	"errors"
	"time"

	platformdb "facialtimesheet-backend/internal/platform/db"
)

var (
	ErrRecordNotFound = errors.New("record not found")
	ErrRecordClosed   = errors.New("record already closed")
)

type Store struct{ db *sql.DB }

func NewStore(db *sql.DB) *Store { return &Store{db: db} }

// UpsertCheckIn: user_id + attended_on（UNIQUE）でINSERTまたは再オープン。
// 同日2サイクル目のチェックインは既存行を再オープンする
// （check_in は初回のまま、check_out/status/mood を巻き戻す）。
// Open 行はユーザごとに最大1行。別日の Open 行が残っていれば
// 同一Txで閉じてから挿入する。返り値は確定行の record_id。
func (s *Store) UpsertCheckIn(ctx context.Context, userID, recordULID string, checkIn time.Time, moodLabel string) (int64, error) {
	attendedOn := checkIn.UTC().Format(DateLayout)

	var id int64
	err := platformdb.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx platformdb.DBTX) error {
		// 再起動等でセッションが失われると前日以前の Open 行は誰にも
		// 閉じられない。新しいチェックイン時刻で閉じて取り残しを解消する。
		if _, err := tx.ExecContext(ctx, `
		UPDATE timesheet_records
		SET check_out = ?, status = 'Closed'
		WHERE user_id = ? AND status = 'Open' AND attended_on <> ?`,
			checkIn.UTC(), userID, attendedOn); err != nil {
			return err
		}

		const q = `
		INSERT INTO timesheet_records (record_ulid, user_id, attended_on, check_in, check_out, status, mood)
		VALUES (?, ?, ?, ?, NULL, 'Open', ?)
		ON DUPLICATE KEY UPDATE
		check_out = NULL,
		status    = 'Open',
		mood      = VALUES(mood)`

		if _, err := tx.ExecContext(ctx, q, recordULID, userID, attendedOn, checkIn.UTC(), moodLabel); err != nil {
			return err
		}

		// 最終行を取得（UNIQUEキーで）
		err := tx.QueryRowContext(ctx, `
		SELECT record_id FROM timesheet_records
		WHERE user_id = ? AND attended_on = ?`,
			userID, attendedOn,
		).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return errors.New("inserted but not found")
		}
		return err
	})
	if err != nil {
		return 0, err
	}
	return id, nil
}

// ApplyCheckOut: record_id の行を行ロック付きトランザクションで閉じる。
// チェックアウトと再チェックインの競合でロストアップデートを起こさないため
// SELECT ... FOR UPDATE で直列化する。
func (s *Store) ApplyCheckOut(ctx context.Context, recordID int64, checkOut time.Time, moodLabel string) error {
	return platformdb.RunInTx(ctx, s.db, nil, func(ctx context.Context, tx platformdb.DBTX) error {
		var status string
		err := tx.QueryRowContext(ctx, `
		SELECT status FROM timesheet_records
		WHERE record_id = ?
		FOR UPDATE`, recordID,
		).Scan(&status)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRecordNotFound
		}
		if err != nil {
			return err
		}
		if status != StatusOpen {
			return ErrRecordClosed
		}

		_, err = tx.ExecContext(ctx, `
		UPDATE timesheet_records
		SET check_out = ?, status = 'Closed', mood = ?
		WHERE record_id = ?`,
			checkOut.UTC(), moodLabel, recordID)
		return err
	})
}

// ListFor: ユーザの全レコードを日付昇順で返す（読み取り専用Tx）
func (s *Store) ListFor(ctx context.Context, userID string) ([]Record, error) {
	var out []Record
	err := platformdb.ReadOnly(ctx, s.db, func(ctx context.Context, tx platformdb.DBTX) error {
		rows, err := tx.QueryContext(ctx, `
		SELECT record_id, record_ulid, user_id,
		       DATE_FORMAT(attended_on, '%Y-%m-%d') AS attended_on,
		       check_in, check_out, status, mood
		FROM timesheet_records
		WHERE user_id = ?
		ORDER BY attended_on ASC, check_in ASC, record_id ASC`, userID)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			var r recordRow
			var checkOut sql.NullTime
			if err := rows.Scan(&r.RecordID, &r.RecordULID, &r.UserID, &r.AttendedOn, &r.CheckIn, &checkOut, &r.Status, &r.Mood); err != nil {
				return err
			}
			if checkOut.Valid {
				t := checkOut.Time
				r.CheckOut = &t
			}
			out = append(out, r.toModel())
		}
		return rows.Err()
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}
