package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.uber.org/zap"

	"github.com/commonweal/volunteerhub/internal/app/system/apperr"
)

const testKey = "0123456789abcdef0123456789abcdef"

func newTestJWT(t *testing.T) *JWT {
	t.Helper()
	j, err := NewJWT(testKey, "volunteerhub-test", time.Hour)
	if err != nil {
		t.Fatalf("NewJWT: %v", err)
	}
	return j
}

func TestNewJWTRejectsShortKey(t *testing.T) {
	if _, err := NewJWT("short", "iss", time.Hour); err == nil {
		t.Fatal("expected error for short key")
	}
}

func TestIssueVerifyRoundTrip(t *testing.T) {
	j := newTestJWT(t)
	want := Identity{
		UserID:    primitive.NewObjectID(),
		SubjectID: "ext-subject-1",
		Email:     "vol@example.org",
		Name:      "Sam Volunteer",
	}

	tok, exp, err := j.Issue(want)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if !exp.After(time.Now()) {
		t.Errorf("expiry %v is not in the future", exp)
	}

	got, err := j.Verify(tok)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if got != want {
		t.Errorf("identity = %+v, want %+v", got, want)
	}
}

func TestVerifyExpiredToken(t *testing.T) {
	j := newTestJWT(t)
	j.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	tok, _, err := j.Issue(Identity{UserID: primitive.NewObjectID(), Email: "x@example.org"})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	j.now = time.Now
	_, err = j.Verify(tok)
	if err == nil {
		t.Fatal("expected error for expired token")
	}
	if !apperr.Is(err, apperr.Unauthenticated) {
		t.Errorf("error kind = %d, want Unauthenticated", apperr.KindOf(err))
	}
}

func TestVerifyWrongKey(t *testing.T) {
	j := newTestJWT(t)
	other, _ := NewJWT("ffffffffffffffffffffffffffffffff", "volunteerhub-test", time.Hour)
	tok, _, err := other.Issue(Identity{UserID: primitive.NewObjectID()})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if _, err := j.Verify(tok); err == nil {
		t.Fatal("expected error for token signed with different key")
	}
}

func TestVerifyWrongIssuer(t *testing.T) {
	other, _ := NewJWT(testKey, "someone-else", time.Hour)
	tok, _, err := other.Issue(Identity{UserID: primitive.NewObjectID()})
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	j := newTestJWT(t)
	if _, err := j.Verify(tok); err == nil {
		t.Fatal("expected error for wrong issuer")
	}
}

func TestMiddleware(t *testing.T) {
	j := newTestJWT(t)
	id := Identity{UserID: primitive.NewObjectID(), SubjectID: "s", Email: "a@b.org"}
	tok, _, err := j.Issue(id)
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}

	var got Identity
	var found bool
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got, found = CurrentIdentity(r)
	})
	h := Middleware(j, zap.NewNop())(inner)

	// valid token
	r := httptest.NewRequest("GET", "/api/users/profile", nil)
	r.Header.Set("Authorization", "Bearer "+tok)
	h.ServeHTTP(httptest.NewRecorder(), r)
	if !found || got != id {
		t.Errorf("identity = %+v found=%v", got, found)
	}

	// no token passes through anonymous
	found = false
	h.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/api/events", nil))
	if found {
		t.Error("anonymous request carried an identity")
	}

	// garbage token is rejected
	rec := httptest.NewRecorder()
	r = httptest.NewRequest("GET", "/api/users/profile", nil)
	r.Header.Set("Authorization", "Bearer not-a-token")
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("garbage token status = %d, want 401", rec.Code)
	}
}

func TestRequireIdentity(t *testing.T) {
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	h := RequireIdentity(inner)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest("GET", "/api/users/profile", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d, want 401", rec.Code)
	}

	rec = httptest.NewRecorder()
	r := WithIdentity(httptest.NewRequest("GET", "/api/users/profile", nil), Identity{UserID: primitive.NewObjectID()})
	h.ServeHTTP(rec, r)
	if rec.Code != http.StatusNoContent {
		t.Errorf("authenticated status = %d, want 204", rec.Code)
	}
}

func TestBearerToken(t *testing.T) {
	tests := []struct {
		header string
		want   string
	}{
		{"", ""},
		{"Bearer abc", "abc"},
		{"bearer abc", "abc"},
		{"Basic abc", ""},
		{"Bearer", ""},
		{"Bearer  abc ", "abc"},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "/", nil)
		if tt.header != "" {
			r.Header.Set("Authorization", tt.header)
		}
		if got := bearerToken(r); got != tt.want {
			t.Errorf("bearerToken(%q) = %q, want %q", tt.header, got, tt.want)
		}
	}
}
