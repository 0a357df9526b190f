package handlers

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/tbourn/go-toy-backend/internal/auth"
	"github.com/tbourn/go-toy-backend/internal/domain"
	"github.com/tbourn/go-toy-backend/internal/services"
)

func authRouter(svc stubAuthSvc) *gin.Engine {
	h := New(svc, nil, nil, nil)
	r := newEngine()
	r.POST("/auth/signup", h.Signup)
	r.POST("/auth/login", h.Login)
	r.POST("/auth/refresh", h.Refresh)
	r.POST("/auth/logout", asParent(), h.Logout)
	r.GET("/auth/me", asParent(), h.Me)
	r.GET("/auth/me-anon", h.Me)
	r.POST("/auth/apikey/create", asParent(), h.CreateAPIKey)
	r.POST("/auth/apikey/:id/revoke", asParent(), h.RevokeAPIKey)
	return r
}

func TestSignup_CreatedAndErrors(t *testing.T) {
	var got services.SignupInput
	svc := stubAuthSvc{signup: func(_ context.Context, in services.SignupInput) (*domain.Parent, error) {
		got = in
		switch in.Email {
		case "dup@example.com":
			return nil, services.ErrEmailTaken
		case "short@example.com":
			return nil, auth.ErrPasswordTooShort
		}
		return &domain.Parent{ID: testParentID, Email: in.Email}, nil
	}}
	r := authRouter(svc)

	w := do(r, http.MethodPost, "/auth/signup", gin.H{"name": "Maria", "email": "maria@example.com", "password": "0123456789"}, nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status=%d body=%s", w.Code, w.Body.String())
	}
	var resp SignupResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if resp.ID != testParentID || resp.Email != "maria@example.com" || got.Name != "Maria" {
		t.Fatalf("unexpected: %+v in=%+v", resp, got)
	}

	wantErr(t, do(r, http.MethodPost, "/auth/signup", gin.H{"name": "M", "email": "dup@example.com", "password": "0123456789"}, nil),
		http.StatusBadRequest, ErrCodeValidation)
	wantErr(t, do(r, http.MethodPost, "/auth/signup", gin.H{"name": "M", "email": "short@example.com", "password": "x"}, nil),
		http.StatusBadRequest, ErrCodeValidation)
	wantErr(t, do(r, http.MethodPost, "/auth/signup", gin.H{"email": "x@example.com"}, nil),
		http.StatusBadRequest, ErrCodeBadRequest)
}

func TestLogin_PassesUserAgentAndMapsErrors(t *testing.T) {
	var ua string
	svc := stubAuthSvc{login: func(_ context.Context, email, _ string, userAgent string) (*services.TokenPair, error) {
		ua = userAgent
		switch email {
		case "bad@example.com":
			return nil, services.ErrInvalidCredentials
		case "off@example.com":
			return nil, services.ErrInactiveAccount
		}
		return &services.TokenPair{AccessToken: "a", RefreshToken: "r", TokenType: "bearer", ExpiresIn: 900}, nil
	}}
	r := authRouter(svc)

	w := do(r, http.MethodPost, "/auth/login", gin.H{"email": "ok@example.com", "password": "pw"}, map[string]string{"User-Agent": "toy-app/1"})
	if w.Code != http.StatusOK || ua != "toy-app/1" {
		t.Fatalf("status=%d ua=%q", w.Code, ua)
	}
	var pair services.TokenPair
	_ = json.Unmarshal(w.Body.Bytes(), &pair)
	if pair.AccessToken != "a" || pair.RefreshToken != "r" || pair.ExpiresIn != 900 {
		t.Fatalf("pair=%+v", pair)
	}

	wantErr(t, do(r, http.MethodPost, "/auth/login", gin.H{"email": "bad@example.com", "password": "pw"}, nil),
		http.StatusUnauthorized, ErrCodeUnauthorized)
	wantErr(t, do(r, http.MethodPost, "/auth/login", gin.H{"email": "off@example.com", "password": "pw"}, nil),
		http.StatusForbidden, ErrCodeForbidden)
}

func TestRefresh_InactiveOwnerIsUnauthorized(t *testing.T) {
	svc := stubAuthSvc{refresh: func(_ context.Context, raw, _ string) (*services.TokenPair, error) {
		switch raw {
		case "used":
			return nil, services.ErrInvalidRefreshToken
		case "old":
			return nil, services.ErrExpiredRefreshToken
		case "disabled":
			return nil, services.ErrInactiveAccount
		}
		return &services.TokenPair{AccessToken: "a2", RefreshToken: "r2"}, nil
	}}
	r := authRouter(svc)

	if w := do(r, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": " fresh "}, nil); w.Code != http.StatusOK {
		t.Fatalf("status=%d", w.Code)
	}
	for _, raw := range []string{"used", "old", "disabled"} {
		wantErr(t, do(r, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": raw}, nil),
			http.StatusUnauthorized, ErrCodeUnauthorized)
	}
	wantErr(t, do(r, http.MethodPost, "/auth/refresh", gin.H{"refresh_token": "  "}, nil),
		http.StatusBadRequest, ErrCodeBadRequest)
}

func TestLogoutAndMe(t *testing.T) {
	var loggedOut string
	r := authRouter(stubAuthSvc{logout: func(_ context.Context, id string) error {
		loggedOut = id
		return nil
	}})

	w := do(r, http.MethodPost, "/auth/logout", nil, nil)
	if w.Code != http.StatusOK || loggedOut != testParentID {
		t.Fatalf("status=%d id=%q", w.Code, loggedOut)
	}
	var st StatusResponse
	_ = json.Unmarshal(w.Body.Bytes(), &st)
	if st.Status != "logged_out" {
		t.Fatalf("status body=%+v", st)
	}

	w = do(r, http.MethodGet, "/auth/me", nil, nil)
	var p domain.Parent
	_ = json.Unmarshal(w.Body.Bytes(), &p)
	if w.Code != http.StatusOK || p.ID != testParentID {
		t.Fatalf("me status=%d body=%s", w.Code, w.Body.String())
	}

	wantErr(t, do(r, http.MethodGet, "/auth/me-anon", nil, nil), http.StatusUnauthorized, ErrCodeUnauthorized)
}

func TestAPIKeys_CreateAndRevoke(t *testing.T) {
	keyID := "5e0c9d0a-95a4-4a8e-8b0f-41a8d2a4f7c3"
	svc := stubAuthSvc{
		createKey: func(_ context.Context, owner string) (string, *domain.APIKey, error) {
			return "raw-key", &domain.APIKey{ID: keyID, Owner: owner}, nil
		},
		revokeKey: func(_ context.Context, id string) (*domain.APIKey, error) {
			if id != keyID {
				return nil, services.ErrAPIKeyNotFound
			}
			return &domain.APIKey{ID: id, Revoked: true}, nil
		},
	}
	r := authRouter(svc)

	w := do(r, http.MethodPost, "/auth/apikey/create", gin.H{"owner": "fleet"}, nil)
	var resp CreateAPIKeyResponse
	_ = json.Unmarshal(w.Body.Bytes(), &resp)
	if w.Code != http.StatusOK || resp.APIKey != "raw-key" || resp.Owner != "fleet" || resp.ID != keyID {
		t.Fatalf("status=%d resp=%+v", w.Code, resp)
	}
	wantErr(t, do(r, http.MethodPost, "/auth/apikey/create", gin.H{}, nil), http.StatusBadRequest, ErrCodeBadRequest)

	if w := do(r, http.MethodPost, fmt.Sprintf("/auth/apikey/%s/revoke", keyID), nil, nil); w.Code != http.StatusOK {
		t.Fatalf("revoke status=%d", w.Code)
	}
	wantErr(t, do(r, http.MethodPost, "/auth/apikey/"+testChildID+"/revoke", nil, nil), http.StatusNotFound, ErrCodeNotFound)
	wantErr(t, do(r, http.MethodPost, "/auth/apikey/nope/revoke", nil, nil), http.StatusBadRequest, ErrCodeBadRequest)
}
