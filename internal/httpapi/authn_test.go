package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestExtractBearerToken(t *testing.T) {
	cases := []struct {
		header string
		want   string
		ok     bool
	}{
		{"Bearer abc", "abc", true},
		{"bearer  abc ", "abc", true},
		{"", "", false},
		{"Basic abc", "", false},
		{"Bearer ", "", false},
		{"Bear", "", false},
	}
	for _, tc := range cases {
		got, err := extractBearerToken(tc.header)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("%q: expected %q, got %q (%v)", tc.header, tc.want, got, err)
		}
		if !tc.ok && err == nil {
			t.Fatalf("%q: expected error", tc.header)
		}
	}
}

func TestUnauthorizedSetsChallenge(t *testing.T) {
	rr := httptest.NewRecorder()
	unauthorized(rr, httptest.NewRequest(http.MethodGet, "/v1/me", nil), "missing bearer token")
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}
	if got := rr.Header().Get("WWW-Authenticate"); got == "" {
		t.Fatalf("expected WWW-Authenticate header set")
	}
}

func TestDeactivatedActorLosesSession(t *testing.T) {
	c := newTestAPI(t, nil)
	sentinel := c.login("sentinel@bureau.example")
	citizen := c.login("citizen@bureau.example")

	expectStatus(t, c.do(http.MethodGet, "/v1/me", citizen, nil), http.StatusOK, nil)
	expectStatus(t, c.do(http.MethodPost, "/v1/actors/act-citizen/deactivate", sentinel, nil), http.StatusOK, nil)
	expectStatus(t, c.do(http.MethodGet, "/v1/me", citizen, nil), http.StatusUnauthorized, nil)
}

func TestImpersonationEndsWhenTargetIsDeactivated(t *testing.T) {
	c := newTestAPI(t, nil)
	impersonator := c.login("sentinel@bureau.example")
	admin := c.login("sentinel@bureau.example")

	expectStatus(t, c.do(http.MethodPost, "/v1/session/impersonate", impersonator, map[string]string{"actor_id": "act-citizen"}), http.StatusOK, nil)
	expectStatus(t, c.do(http.MethodPost, "/v1/actors/act-citizen/deactivate", admin, nil), http.StatusOK, nil)

	var me meResponse
	expectStatus(t, c.do(http.MethodGet, "/v1/me", impersonator, nil), http.StatusOK, &me)
	if me.Impersonating || me.Actor.ID != "act-sentinel" {
		t.Fatalf("expected the master's own identity, got %+v", me)
	}

	// The fallback is stored, so stopping explicitly is a no-op.
	expectStatus(t, c.do(http.MethodDelete, "/v1/session/impersonate", impersonator, nil), http.StatusOK, &me)
	if me.Impersonating || me.Actor.ID != "act-sentinel" {
		t.Fatalf("expected normal session, got %+v", me)
	}
}
