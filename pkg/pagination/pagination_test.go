package pagination

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/angelmondragon/visitrewards-backend/pkg/db/dbtest"
	"github.com/angelmondragon/visitrewards-backend/pkg/db/models"
)

func TestCursorRoundTripAndLimits(t *testing.T) {
	at := time.Date(2026, 3, 1, 12, 30, 0, 123, time.UTC)
	id := uuid.New()
	cursor, err := ParseCursor(EncodeCursor(Cursor{At: at, ID: id}))
	if err != nil {
		t.Fatalf("parse cursor: %v", err)
	}
	if !cursor.At.Equal(at) || cursor.ID != id {
		t.Fatalf("cursor mismatch %+v", cursor)
	}

	if c, err := ParseCursor("  "); err != nil || c != nil {
		t.Fatalf("expected nil cursor for blank input")
	}
	if _, err := ParseCursor("not-base64!"); err == nil {
		t.Fatalf("expected decode error")
	}

	if NormalizeLimit(0) != DefaultLimit || NormalizeLimit(1000) != MaxLimit || LimitWithBuffer(10) != 11 {
		t.Fatalf("unexpected limit normalization")
	}
}

func TestPageTrimsBufferRow(t *testing.T) {
	base := time.Date(2026, 3, 1, 0, 0, 0, 0, time.UTC)
	rows := make([]Cursor, 3)
	for i := range rows {
		rows[i] = Cursor{At: base.Add(-time.Duration(i) * time.Minute), ID: uuid.New()}
	}
	key := func(c Cursor) Cursor { return c }

	page, next := Page(rows, 2, key)
	if len(page) != 2 || next == nil || next.ID != rows[1].ID {
		t.Fatalf("unexpected page %d next %+v", len(page), next)
	}

	page, next = Page(rows[:2], 2, key)
	if len(page) != 2 || next != nil {
		t.Fatalf("expected final page without cursor")
	}
}

func TestKeysetWalksNewestFirst(t *testing.T) {
	conn := dbtest.Open(t)
	membershipID := uuid.New()
	base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
	for i := 0; i < 3; i++ {
		row := &models.VisitRecord{MembershipID: membershipID, AccumulatedAfter: i + 1, RedeemableAfter: i + 1, RecordedAt: base.Add(time.Duration(i) * time.Hour)}
		if err := conn.Create(row).Error; err != nil {
			t.Fatalf("seed visit: %v", err)
		}
	}

	var first []models.VisitRecord
	if err := conn.Scopes(Keyset("recorded_at", nil, 2)).Find(&first).Error; err != nil {
		t.Fatalf("first page: %v", err)
	}
	if len(first) != 3 || first[0].AccumulatedAfter != 3 {
		t.Fatalf("expected buffered newest-first rows, got %d", len(first))
	}

	page, next := Page(first, 2, func(v models.VisitRecord) Cursor { return Cursor{At: v.RecordedAt, ID: v.ID} })
	if len(page) != 2 || next == nil {
		t.Fatalf("expected a next cursor")
	}

	var rest []models.VisitRecord
	if err := conn.Scopes(Keyset("recorded_at", next, 2)).Find(&rest).Error; err != nil {
		t.Fatalf("second page: %v", err)
	}
	if len(rest) != 1 || rest[0].AccumulatedAfter != 1 {
		t.Fatalf("expected the oldest visit only, got %+v", rest)
	}
}
