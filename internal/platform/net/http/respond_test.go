package http_test

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	perr "thoughtsd/internal/platform/errors"
	phttp "thoughtsd/internal/platform/net/http"

	chimw "github.com/go-chi/chi/v5/middleware"
)

// serve runs h behind chi's RequestID middleware so envelopes carry an id
func serve(h http.HandlerFunc, path string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	chimw.RequestID(h).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, path, nil))
	return rec
}

func TestJSON(t *testing.T) {
	rec := httptest.NewRecorder()
	phttp.JSON(rec, http.StatusTeapot, map[string]any{"k": "v"})
	if rec.Code != http.StatusTeapot {
		t.Fatalf("JSON status: expected 418, got %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct == "" {
		t.Fatalf("expected content-type set")
	}
}

func TestRespondOK(t *testing.T) {
	rec := serve(func(w http.ResponseWriter, r *http.Request) {
		phttp.RespondOK(w, r, map[string]string{"a": "b"})
	}, "/x")
	if rec.Code != http.StatusOK {
		t.Fatalf("RespondOK code: %d", rec.Code)
	}
	var env phttp.Envelope
	if err := json.Unmarshal(rec.Body.Bytes(), &env); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if env.StatusCode != 200 || env.RequestID == "" || env.Data == nil {
		t.Fatalf("bad envelope: %+v", env)
	}
}

func TestRespondError(t *testing.T) {
	rec := serve(func(w http.ResponseWriter, r *http.Request) {
		phttp.RespondError(w, r, perr.Unavailablef("buffer closed"))
	}, "/err")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("RespondError code: %d", rec.Code)
	}
	var env phttp.Envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	if env.Code != perr.ErrorCodeUnavailable || env.Error != "buffer closed" {
		t.Fatalf("bad error envelope: %+v", env)
	}
}

func TestHandle(t *testing.T) {
	ok := phttp.Handle(func(*http.Request) (any, error) { return "hello", nil })
	rec := serve(ok, "/ok")
	var env phttp.Envelope
	_ = json.Unmarshal(rec.Body.Bytes(), &env)
	if s, _ := env.Data.(string); rec.Code != 200 || s != "hello" {
		t.Fatalf("unexpected ok response: %d %+v", rec.Code, env)
	}

	gen := phttp.Handle(func(*http.Request) (any, error) { return nil, errors.New("boom") })
	rec = serve(gen, "/gen")
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 for generic error, got %d", rec.Code)
	}

	nf := phttp.Handle(func(*http.Request) (any, error) { return nil, perr.ErrNotFound })
	rec = serve(nf, "/nf")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}
