package repo

import (
	"errors"
	"testing"
	"time"
)

func TestIdempotency_SaveGetExpire(t *testing.T) {
	db := newRepoDB(t)

	if _, err := GetIdempotency(ctxBG, db, "  ", "k", t0); !errors.Is(err, ErrNotFound) {
		t.Fatalf("blank toy should be not found, got %v", err)
	}

	rec, err := SaveIdempotency(ctxBG, db, "toy-1", "k1", "conv-1", "Answer to: hi", 200, time.Hour, t0)
	if err != nil {
		t.Fatalf("save: %v", err)
	}
	got, err := GetIdempotency(ctxBG, db, "toy-1", "k1", t0.Add(time.Minute))
	if err != nil || got.ID != rec.ID || got.Answer != "Answer to: hi" {
		t.Fatalf("get: %+v (%v)", got, err)
	}

	if _, err := SaveIdempotency(ctxBG, db, "toy-1", "k1", "conv-2", "x", 200, time.Hour, t0); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("live key should be duplicate, got %v", err)
	}

	later := t0.Add(2 * time.Hour)
	if _, err := GetIdempotency(ctxBG, db, "toy-1", "k1", later); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expired record should be not found, got %v", err)
	}
	if _, err := SaveIdempotency(ctxBG, db, "toy-1", "k1", "conv-3", "y", 200, time.Hour, later); err != nil {
		t.Fatalf("expired key should be replaceable: %v", err)
	}
	if _, err := SaveIdempotency(ctxBG, db, "toy-2", "k1", "conv-4", "z", 200, time.Hour, t0); err != nil {
		t.Fatalf("same key for another toy should be allowed: %v", err)
	}
}
