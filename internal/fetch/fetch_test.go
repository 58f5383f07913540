package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"go.uber.org/zap"
)

func canon(raw string) (string, error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	u.Fragment = ""
	return u.String(), nil
}

func noRedirectClient() *http.Client {
	return &http.Client{
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

func TestFetchSimplePage(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.Write([]byte("<html><body>hi</body></html>"))
	}))
	defer srv.Close()

	result, err := Fetch(context.Background(), noRedirectClient(), srv.URL, "test-agent/1.0", canon, zap.NewNop())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if result.StatusCode != 200 {
		t.Errorf("StatusCode = %d, want 200", result.StatusCode)
	}
	if string(result.Body) == "" {
		t.Error("expected non-empty body")
	}
}

func TestFetchHTTPErrorNotRetried(t *testing.T) {
	calls := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), noRedirectClient(), srv.URL, "test-agent/1.0", canon, zap.NewNop())
	if err == nil {
		t.Fatal("expected error for 404")
	}
	fe, ok := err.(*Error)
	if !ok || fe.Kind != KindHTTPError {
		t.Fatalf("expected http-error, got %v", err)
	}
	if calls != 1 {
		t.Errorf("expected exactly 1 call (no retry on http-error), got %d", calls)
	}
}

func TestFetchContentTypeSkipped(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte("%PDF"))
	}))
	defer srv.Close()

	_, err := Fetch(context.Background(), noRedirectClient(), srv.URL, "test-agent/1.0", canon, zap.NewNop())
	fe, ok := err.(*Error)
	if !ok || fe.Kind != KindContentSkipped {
		t.Fatalf("expected content-skipped, got %v", err)
	}
}

func TestFetchFollowsRedirect(t *testing.T) {
	var targetURL string
	mux := http.NewServeMux()
	mux.HandleFunc("/start", func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, targetURL, http.StatusFound)
	})
	mux.HandleFunc("/final", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte("<html>final</html>"))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()
	targetURL = srv.URL + "/final"

	result, err := Fetch(context.Background(), noRedirectClient(), srv.URL+"/start", "test-agent/1.0", canon, zap.NewNop())
	if err != nil {
		t.Fatalf("Fetch error: %v", err)
	}
	if result.EffectiveURL != targetURL {
		t.Errorf("EffectiveURL = %q, want %q", result.EffectiveURL, targetURL)
	}
}

func TestFetchRedirectLoopReturnsLastResponse(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/a", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		http.Redirect(w, r, "/b", http.StatusFound)
	})
	mux.HandleFunc("/b", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		http.Redirect(w, r, "/a", http.StatusFound)
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := Fetch(context.Background(), noRedirectClient(), srv.URL+"/a", "test-agent/1.0", canon, zap.NewNop())
	if err != nil {
		t.Fatalf("expected redirect loop to resolve without error, got %v", err)
	}
}

func TestFetchRedirectExceeded(t *testing.T) {
	mux := http.NewServeMux()
	for i := 0; i < 10; i++ {
		i := i
		mux.HandleFunc("/hop"+string(rune('0'+i)), func(w http.ResponseWriter, r *http.Request) {
			next := "/hop" + string(rune('0'+i+1))
			http.Redirect(w, r, next, http.StatusFound)
		})
	}
	srv := httptest.NewServer(mux)
	defer srv.Close()

	_, err := Fetch(context.Background(), noRedirectClient(), srv.URL+"/hop0", "test-agent/1.0", canon, zap.NewNop())
	fe, ok := err.(*Error)
	if !ok || fe.Kind != KindRedirectExceeded {
		t.Fatalf("expected redirect-exceeded, got %v", err)
	}
}
