package controlapi

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"

	"github.com/xkmonitor/core/internal/events"
	"github.com/xkmonitor/core/internal/models"
	"github.com/xkmonitor/core/internal/wishlist"
)

func wishlistEntry(teachingClassID string) models.WishlistEntry {
	return models.WishlistEntry{Record: models.TeachingClassRecord{ID: models.CourseID{TeachingClassID: teachingClassID}}}
}

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestServer(authToken string) (*Server, *int32) {
	var startCalls, stopCalls int32
	wl := wishlist.New()
	srv := New(wl, events.NewBroadcaster(), authToken,
		func() { startCalls++ },
		func() { stopCalls++ },
	)
	return srv, &startCalls
}

func TestAddWishlistThenSnapshot(t *testing.T) {
	srv, _ := newTestServer("")

	body, _ := json.Marshal(map[string]any{
		"teaching_class_id": "tc-1",
		"course_number":     "CS101",
		"course_type":       2,
	})
	req := httptest.NewRequest(http.MethodPost, "/wishlist", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("POST /wishlist = %d, want 201: %s", rec.Code, rec.Body.String())
	}

	rec2 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec2, httptest.NewRequest(http.MethodGet, "/wishlist", nil))
	if rec2.Code != http.StatusOK {
		t.Fatalf("GET /wishlist = %d, want 200", rec2.Code)
	}
	if !bytes.Contains(rec2.Body.Bytes(), []byte("tc-1")) {
		t.Fatalf("snapshot body missing tc-1: %s", rec2.Body.String())
	}
}

func TestRemoveWishlistEntry(t *testing.T) {
	srv, _ := newTestServer("")
	srv.wishlist.Add(wishlistEntry("tc-2"))

	req := httptest.NewRequest(http.MethodDelete, "/wishlist/tc-2", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("DELETE /wishlist/tc-2 = %d, want 200", rec.Code)
	}
	if srv.wishlist.Contains("tc-2") {
		t.Fatal("tc-2 still present after DELETE")
	}
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer("")
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("GET /healthz = %d, want 200", rec.Code)
	}
}

func TestAuthRejectsMissingAndWrongToken(t *testing.T) {
	srv, _ := newTestServer("secret")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wishlist", nil))
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("no Authorization header: got %d, want 401", rec.Code)
	}

	req := httptest.NewRequest(http.MethodGet, "/wishlist", nil)
	req.Header.Set("Authorization", "Bearer garbage")
	rec2 := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec2, req)
	if rec2.Code != http.StatusUnauthorized {
		t.Fatalf("garbage token: got %d, want 401", rec2.Code)
	}
}

func TestAuthAcceptsIssuedToken(t *testing.T) {
	srv, _ := newTestServer("secret")

	token, err := srv.IssueToken(1000000000 /* 1s in ns, long enough for this test */)
	if err != nil {
		t.Fatalf("IssueToken: %v", err)
	}

	req := httptest.NewRequest(http.MethodGet, "/wishlist", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("valid issued token: got %d, want 200: %s", rec.Code, rec.Body.String())
	}
}

func TestEngineStart(t *testing.T) {
	srv, starts := newTestServer("")

	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/engine/start", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("POST /engine/start = %d, want 200", rec.Code)
	}
	if *starts != 1 {
		t.Fatalf("startFn called %d times, want 1", *starts)
	}
}
