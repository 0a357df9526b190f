package services

import (
	"errors"
	"testing"
	"time"

	"github.com/tbourn/go-toy-backend/internal/repo"
)

func TestValidatePage(t *testing.T) {
	cases := []struct {
		limit, offset int
		ok            bool
	}{
		{50, 0, true},
		{1, 0, true},
		{500, 10, true},
		{0, 0, false},
		{501, 0, false},
		{10, -1, false},
	}
	for _, tc := range cases {
		err := ValidatePage(tc.limit, tc.offset)
		if tc.ok != (err == nil) {
			t.Errorf("ValidatePage(%d,%d) = %v", tc.limit, tc.offset, err)
		}
		if err != nil && !errors.Is(err, ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	}
}

func TestAdminMessages_Views(t *testing.T) {
	f := newToyFixture(t)
	f.ready(t)
	for _, q := range []string{"a", "b", "c"} {
		if _, err := f.svc.Ask(ctxBG, AskInput{ToyUUID: f.toy.ToyUUID, Question: q}); err != nil {
			t.Fatalf("ask: %v", err)
		}
		f.clk.Advance(time.Second)
	}
	admin := &AdminService{DB: f.svc.DB}

	all, err := admin.Messages(ctxBG, DefaultAuditLimit, 0)
	if err != nil || all.Total != 6 || len(all.Items) != 6 {
		t.Fatalf("all = %+v (%v)", all, err)
	}
	if all.Items[0].Content != "Answer to: c" && all.Items[0].Content != "c" {
		t.Fatalf("newest first expected, got %q", all.Items[0].Content)
	}

	page, _ := admin.ChildMessages(ctxBG, f.child.ID, 2, 2)
	if page.Total != 6 || len(page.Items) != 2 || page.Limit != 2 || page.Offset != 2 {
		t.Fatalf("child page = %+v", page)
	}

	byToy, _ := admin.ToyMessages(ctxBG, f.toy.ToyUUID, 50, 0)
	if byToy.Total != 6 {
		t.Fatalf("toy total = %d", byToy.Total)
	}
	none, err := admin.ToyMessages(ctxBG, "unknown", 50, 0)
	if err != nil || none.Total != 0 || none.Items == nil {
		t.Fatalf("unknown toy = %+v (%v)", none, err)
	}
	if _, err := admin.Messages(ctxBG, 0, 0); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("bad limit: %v", err)
	}
}

func TestDeactivateParent(t *testing.T) {
	f := newAuthFixture(t)
	p := f.signup(t, "pat@example.com")
	pair, _ := f.svc.Login(ctxBG, "pat@example.com", "long-enough-pw", "")
	admin := &AdminService{DB: f.db, Auth: f.svc, Now: f.clk.Now}

	if err := admin.DeactivateParent(ctxBG, p.ID); err != nil {
		t.Fatalf("deactivate: %v", err)
	}
	got, _ := repo.GetParent(ctxBG, f.db, p.ID)
	if got.IsActive || got.TokenVersion != 2 {
		t.Fatalf("parent = %+v", got)
	}
	if _, err := f.guard.ResolveParent(ctxBG, pair.AccessToken); err == nil {
		t.Fatal("access token must stop working")
	}
	if _, err := f.svc.Refresh(ctxBG, pair.RefreshToken, ""); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("refresh: %v", err)
	}
	if _, err := f.svc.Login(ctxBG, "pat@example.com", "long-enough-pw", ""); !errors.Is(err, ErrInactiveAccount) {
		t.Fatalf("login: %v", err)
	}
	if err := admin.DeactivateParent(ctxBG, "missing"); !errors.Is(err, ErrParentNotFound) {
		t.Fatalf("missing: %v", err)
	}
}
