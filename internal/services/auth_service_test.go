package services

import (
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/tbourn/go-toy-backend/internal/auth"
	"github.com/tbourn/go-toy-backend/internal/domain"
	"github.com/tbourn/go-toy-backend/internal/repo"
)

func TestSignup_NormalizesAndHashes(t *testing.T) {
	f := newAuthFixture(t)

	p := f.signup(t, "  Ada.Parent@Example.COM ")
	if p.Email != "ada.parent@example.com" {
		t.Fatalf("email = %q", p.Email)
	}
	if p.PasswordHash == "long-enough-pw" || !auth.VerifyPassword(p.PasswordHash, "long-enough-pw") {
		t.Fatalf("password not hashed correctly")
	}
	if p.Role != domain.RoleParent || p.TokenVersion != 1 || !p.IsActive {
		t.Fatalf("unexpected defaults: %+v", p)
	}
}

func TestSignup_Validation(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "taken@example.com")

	cases := []struct {
		name string
		in   SignupInput
		want error
	}{
		{"duplicate email any case", SignupInput{Name: "X", Email: "TAKEN@example.com", Password: "long-enough-pw"}, ErrEmailTaken},
		{"short password", SignupInput{Name: "X", Email: "a@b.c", Password: "short"}, auth.ErrPasswordTooShort},
		{"long password", SignupInput{Name: "X", Email: "a@b.c", Password: strings.Repeat("p", 73)}, auth.ErrPasswordTooLong},
		{"blank name", SignupInput{Name: " ", Email: "a@b.c", Password: "long-enough-pw"}, ErrInvalidInput},
		{"bad email", SignupInput{Name: "X", Email: "nope", Password: "long-enough-pw"}, ErrInvalidInput},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := f.svc.Signup(ctxBG, tc.in); !errors.Is(err, tc.want) {
				t.Fatalf("got %v, want %v", err, tc.want)
			}
		})
	}
}

func TestLogin_RoundTripAndFailures(t *testing.T) {
	f := newAuthFixture(t)
	p := f.signup(t, "pat@example.com")

	pair, err := f.svc.Login(ctxBG, "PAT@example.com", "long-enough-pw", "ua")
	if err != nil {
		t.Fatalf("login: %v", err)
	}
	if pair.TokenType != "bearer" || pair.ExpiresIn != 900 || pair.AccessToken == "" || pair.RefreshToken == "" {
		t.Fatalf("pair = %+v", pair)
	}
	got, err := f.guard.ResolveParent(ctxBG, pair.AccessToken)
	if err != nil || got.ID != p.ID {
		t.Fatalf("resolve: %v", err)
	}

	if _, err := f.svc.Login(ctxBG, "pat@example.com", "wrong-password", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("wrong password: %v", err)
	}
	if _, err := f.svc.Login(ctxBG, "ghost@example.com", "long-enough-pw", ""); !errors.Is(err, ErrInvalidCredentials) {
		t.Fatalf("unknown email: %v", err)
	}

	_ = repo.SetParentActive(ctxBG, f.db, p.ID, false, f.clk.Now())
	if _, err := f.svc.Login(ctxBG, "pat@example.com", "long-enough-pw", ""); !errors.Is(err, ErrInactiveAccount) {
		t.Fatalf("inactive: %v", err)
	}
}

func TestRefresh_SingleUse(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "pat@example.com")
	first, _ := f.svc.Login(ctxBG, "pat@example.com", "long-enough-pw", "")

	second, err := f.svc.Refresh(ctxBG, first.RefreshToken, "")
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Fatal("refresh token must rotate")
	}
	if _, err := f.svc.Refresh(ctxBG, first.RefreshToken, ""); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("reuse should fail, got %v", err)
	}
	if _, err := f.svc.Refresh(ctxBG, second.RefreshToken, ""); err != nil {
		t.Fatalf("rotated token should work: %v", err)
	}
	if _, err := f.svc.Refresh(ctxBG, "  ", ""); !errors.Is(err, ErrInvalidRefreshToken) {
		t.Fatalf("blank token: %v", err)
	}
}

func TestRefresh_ConcurrentConsumersOneWins(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "pat@example.com")
	pair, _ := f.svc.Login(ctxBG, "pat@example.com", "long-enough-pw", "")

	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if _, err := f.svc.Refresh(ctxBG, pair.RefreshToken, ""); err == nil {
				mu.Lock()
				wins++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if wins != 1 {
		t.Fatalf("wins = %d, want exactly 1", wins)
	}
}

func TestRefresh_ExpiredIsDeleted(t *testing.T) {
	f := newAuthFixture(t)
	f.signup(t, "pat@example.com")
	pair, _ := f.svc.Login(ctxBG, "pat@example.com", "long-enough-pw", "")

	f.clk.Advance(25 * time.Hour)
	if _, err := f.svc.Refresh(ctxBG, pair.RefreshToken, ""); !errors.Is(err, ErrExpiredRefreshToken) {
		t.Fatalf("expected ErrExpiredRefreshToken, got %v", err)
	}
	if _, err := repo.FindRefreshToken(ctxBG, f.db, f.svc.Hasher.Hash(pair.RefreshToken)); !errors.Is(err, repo.ErrNotFound) {
		t.Fatalf("expired row should be deleted, got %v", err)
	}
}

func TestRefresh_InactiveOwner(t *testing.T) {
	f := newAuthFixture(t)
	p := f.signup(t, "pat@example.com")
	pair, _ := f.svc.Login(ctxBG, "pat@example.com", "long-enough-pw", "")

	_ = repo.SetParentActive(ctxBG, f.db, p.ID, false, f.clk.Now())
	if _, err := f.svc.Refresh(ctxBG, pair.RefreshToken, ""); !errors.Is(err, ErrInactiveAccount) {
		t.Fatalf("expected ErrInactiveAccount, got %v", err)
	}
}

func TestLogout_RevokesEverything(t *testing.T) {
	f := newAuthFixture(t)
	p := f.signup(t, "pat@example.com")
	a, _ := f.svc.Login(ctxBG, "pat@example.com", "long-enough-pw", "")
	b, _ := f.svc.Login(ctxBG, "pat@example.com", "long-enough-pw", "")

	if err := f.svc.Logout(ctxBG, p.ID); err != nil {
		t.Fatalf("logout: %v", err)
	}
	for _, pair := range []*TokenPair{a, b} {
		if _, err := f.guard.ResolveParent(ctxBG, pair.AccessToken); !errors.Is(err, ErrRevokedToken) {
			t.Fatalf("access token should be revoked, got %v", err)
		}
		if _, err := f.svc.Refresh(ctxBG, pair.RefreshToken, ""); !errors.Is(err, ErrInvalidRefreshToken) {
			t.Fatalf("refresh token should be gone, got %v", err)
		}
	}

	fresh, err := f.svc.Login(ctxBG, "pat@example.com", "long-enough-pw", "")
	if err != nil {
		t.Fatalf("login after logout: %v", err)
	}
	if _, err := f.guard.ResolveParent(ctxBG, fresh.AccessToken); err != nil {
		t.Fatalf("new token should work: %v", err)
	}
	if err := f.svc.Logout(ctxBG, "missing"); !errors.Is(err, ErrParentNotFound) {
		t.Fatalf("expected ErrParentNotFound, got %v", err)
	}
}

func TestResolveParent_Failures(t *testing.T) {
	f := newAuthFixture(t)
	p := f.signup(t, "pat@example.com")
	pair, _ := f.svc.Login(ctxBG, "pat@example.com", "long-enough-pw", "")

	if _, err := f.guard.ResolveParent(ctxBG, ""); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("missing: %v", err)
	}
	if _, err := f.guard.ResolveParent(ctxBG, "garbage"); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("garbage: %v", err)
	}
	ghost, _ := f.svc.Issuer.Issue("ghost", domain.RoleParent, 1)
	if _, err := f.guard.ResolveParent(ctxBG, ghost); !errors.Is(err, auth.ErrInvalidToken) {
		t.Fatalf("unknown subject: %v", err)
	}

	_ = repo.SetParentActive(ctxBG, f.db, p.ID, false, f.clk.Now())
	if _, err := f.guard.ResolveParent(ctxBG, pair.AccessToken); !errors.Is(err, ErrInactiveAccount) {
		t.Fatalf("inactive: %v", err)
	}

	_ = repo.SetParentActive(ctxBG, f.db, p.ID, true, f.clk.Now())
	f.clk.Advance(16 * time.Minute)
	if _, err := f.guard.ResolveParent(ctxBG, pair.AccessToken); !errors.Is(err, auth.ErrExpiredToken) {
		t.Fatalf("expired: %v", err)
	}
}

func TestAPIKey_CreateResolveRevoke(t *testing.T) {
	f := newAuthFixture(t)

	raw, k, err := f.svc.CreateAPIKey(ctxBG, " factory ")
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if k.Owner != "factory" || raw == "" || k.KeyHash == raw {
		t.Fatalf("key = %+v raw=%q", k, raw)
	}

	got, err := f.guard.ResolveAPIKey(ctxBG, raw)
	if err != nil || got.ID != k.ID {
		t.Fatalf("resolve: %v", err)
	}
	if _, err := f.guard.ResolveAPIKey(ctxBG, ""); !errors.Is(err, ErrMissingCredential) {
		t.Fatalf("missing: %v", err)
	}
	if _, err := f.guard.ResolveAPIKey(ctxBG, raw+"x"); !errors.Is(err, ErrInvalidCredential) {
		t.Fatalf("invalid: %v", err)
	}

	if _, err := f.svc.RevokeAPIKey(ctxBG, k.ID); err != nil {
		t.Fatalf("revoke: %v", err)
	}
	if _, err := f.guard.ResolveAPIKey(ctxBG, raw); !errors.Is(err, ErrRevokedCredential) {
		t.Fatalf("revoked: %v", err)
	}
	if _, err := f.svc.RevokeAPIKey(ctxBG, "missing"); !errors.Is(err, ErrAPIKeyNotFound) {
		t.Fatalf("missing key: %v", err)
	}
}

func TestBootstrapAdmin(t *testing.T) {
	f := newAuthFixture(t)
	p := f.signup(t, "boss@example.com")

	if err := f.svc.BootstrapAdmin(ctxBG, "BOSS@example.com"); err != nil {
		t.Fatalf("bootstrap: %v", err)
	}
	got, _ := repo.GetParent(ctxBG, f.db, p.ID)
	if !got.IsAdmin() || RequireAdmin(got) != nil {
		t.Fatalf("expected admin, got role %q", got.Role)
	}
	if err := f.svc.BootstrapAdmin(ctxBG, "nobody@example.com"); !errors.Is(err, ErrParentNotFound) {
		t.Fatalf("expected ErrParentNotFound, got %v", err)
	}
	if err := RequireAdmin(&domain.Parent{Role: domain.RoleParent}); !errors.Is(err, ErrAdminOnly) {
		t.Fatalf("expected ErrAdminOnly, got %v", err)
	}
}
