package repo

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/tbourn/go-toy-backend/internal/domain"
)

func TestCreateToy_DuplicateUUID(t *testing.T) {
	db := newRepoDB(t)
	toy := seedToy(t, db)

	dup := &domain.Toy{ID: uuid.NewString(), ToyUUID: toy.ToyUUID, RegisteredAt: t0}
	if err := CreateToy(ctxBG, db, dup); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got %v", err)
	}
}

func TestGetToyForParent_RequiresPairedChild(t *testing.T) {
	db := newRepoDB(t)
	p := seedParent(t, db, "p@example.com")
	other := seedParent(t, db, "o@example.com")
	c, _ := CreateChild(ctxBG, db, p.ID, "Ada", 6, t0)
	toy := seedToy(t, db)

	if _, err := GetToyForParent(ctxBG, db, toy.ToyUUID, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("unpaired toy should be not found, got %v", err)
	}
	if err := PairChild(ctxBG, db, c.ID, toy.ID); err != nil {
		t.Fatalf("pair: %v", err)
	}
	if got, err := GetToyForParent(ctxBG, db, toy.ToyUUID, p.ID); err != nil || got.ID != toy.ID {
		t.Fatalf("paired toy lookup failed: %v", err)
	}
	if _, err := GetToyForParent(ctxBG, db, toy.ToyUUID, other.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("other parent should not see the toy, got %v", err)
	}
}

func TestActiveChild_ResolutionAndRepair(t *testing.T) {
	db := newRepoDB(t)
	p := seedParent(t, db, "p@example.com")
	c, _ := CreateChild(ctxBG, db, p.ID, "Ada", 6, t0)
	toyA := seedToy(t, db)
	toyB := seedToy(t, db)

	if _, _, err := GetActiveChildForParent(ctxBG, db, toyA.ToyUUID, p.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("no active child yet, got %v", err)
	}

	_ = PairChild(ctxBG, db, c.ID, toyA.ID)
	if err := SetActiveChild(ctxBG, db, toyA.ID, c.ID); err != nil {
		t.Fatalf("SetActiveChild: %v", err)
	}
	gotToy, gotChild, err := GetActiveChildForParent(ctxBG, db, toyA.ToyUUID, p.ID)
	if err != nil || gotToy.ID != toyA.ID || gotChild.ID != c.ID {
		t.Fatalf("active child resolution failed: %v", err)
	}

	// Moving the child to another toy clears the old toy's pointer.
	if err := PairChild(ctxBG, db, c.ID, toyB.ID); err != nil {
		t.Fatalf("re-pair: %v", err)
	}
	reloaded, _ := GetToyByUUID(ctxBG, db, toyA.ToyUUID)
	if reloaded.ActiveChildID != nil {
		t.Fatalf("old toy should lose its active child")
	}
	if err := PairChild(ctxBG, db, "missing", toyB.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestMarkToySeen(t *testing.T) {
	db := newRepoDB(t)
	toy := seedToy(t, db)

	seen := t0.Add(5 * time.Minute)
	if err := MarkToySeen(ctxBG, db, toy.ID, seen); err != nil {
		t.Fatalf("MarkToySeen: %v", err)
	}
	got, _ := GetToyByUUID(ctxBG, db, toy.ToyUUID)
	if !got.IsActive || got.LastSeen == nil || !got.LastSeen.Equal(seen) {
		t.Fatalf("unexpected toy state: %+v", got)
	}
	if err := MarkToySeen(ctxBG, db, "missing", seen); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := SetActiveChild(ctxBG, db, "missing", "x"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestSetActiveChild_RequiresPairing(t *testing.T) {
	db := newRepoDB(t)
	p := seedParent(t, db, "pair@example.com")
	toyA, toyB := seedToy(t, db), seedToy(t, db)
	c, err := CreateChild(ctxBG, db, p.ID, "Ada", 6, t0)
	if err != nil {
		t.Fatalf("seed child: %v", err)
	}

	if err := SetActiveChild(ctxBG, db, toyA.ID, c.ID); !errors.Is(err, ErrNotPaired) {
		t.Fatalf("unpaired child: want ErrNotPaired, got %v", err)
	}
	if err := PairChild(ctxBG, db, c.ID, toyB.ID); err != nil {
		t.Fatalf("pair: %v", err)
	}
	if err := SetActiveChild(ctxBG, db, toyA.ID, c.ID); !errors.Is(err, ErrNotPaired) {
		t.Fatalf("child of another toy: want ErrNotPaired, got %v", err)
	}
	if err := SetActiveChild(ctxBG, db, toyB.ID, c.ID); err != nil {
		t.Fatalf("paired child: %v", err)
	}
	got, _ := GetToyByUUID(ctxBG, db, toyA.ToyUUID)
	if got.ActiveChildID != nil {
		t.Fatalf("toy A must not point at B's child")
	}
}

func TestIsActivePairing(t *testing.T) {
	db := newRepoDB(t)
	p := seedParent(t, db, "active@example.com")
	toyA, toyB := seedToy(t, db), seedToy(t, db)
	c, err := CreateChild(ctxBG, db, p.ID, "Ada", 6, t0)
	if err != nil {
		t.Fatalf("seed child: %v", err)
	}

	if ok, err := IsActivePairing(ctxBG, db, toyA.ID, c.ID); err != nil || ok {
		t.Fatalf("no active child: ok=%v err=%v", ok, err)
	}
	if err := PairChild(ctxBG, db, c.ID, toyA.ID); err != nil {
		t.Fatalf("pair: %v", err)
	}
	if ok, _ := IsActivePairing(ctxBG, db, toyA.ID, c.ID); ok {
		t.Fatal("paired but not active")
	}
	if err := SetActiveChild(ctxBG, db, toyA.ID, c.ID); err != nil {
		t.Fatalf("set active: %v", err)
	}
	if ok, err := IsActivePairing(ctxBG, db, toyA.ID, c.ID); err != nil || !ok {
		t.Fatalf("active pairing: ok=%v err=%v", ok, err)
	}

	if err := PairChild(ctxBG, db, c.ID, toyB.ID); err != nil {
		t.Fatalf("re-pair: %v", err)
	}
	if ok, _ := IsActivePairing(ctxBG, db, toyA.ID, c.ID); ok {
		t.Fatal("child moved to another toy")
	}
	if ok, _ := IsActivePairing(ctxBG, db, toyB.ID, c.ID); ok {
		t.Fatal("re-pairing does not make the child active")
	}
}
