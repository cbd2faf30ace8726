package distance

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	return NewClient(ClientConfig{
		APIKey:        "test-key",
		BaseURL:       server.URL,
		Timeout:       time.Second,
		RatePerSecond: 1000,
		Burst:         1000,
	})
}

func TestLegDistance_Success(t *testing.T) {
	var gotOrigin, gotDestination string
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotOrigin = r.URL.Query().Get("origins")
		gotDestination = r.URL.Query().Get("destinations")
		w.Write([]byte(`{"status":"OK","rows":[{"elements":[{"status":"OK","distance":{"value":47000},"duration":{"value":3600}}]}]}`))
	})

	meters, err := client.LegDistance(context.Background(), "Storgatan 1, Stockholm", "Avenyn 2, Göteborg")
	if err != nil {
		t.Fatalf("Expected success, got %v", err)
	}
	if meters != 47000 {
		t.Errorf("Expected 47000 meters, got %d", meters)
	}
	if gotOrigin != "Storgatan 1, Stockholm" {
		t.Errorf("Expected origin to be passed through, got %q", gotOrigin)
	}
	if gotDestination != "Avenyn 2, Göteborg" {
		t.Errorf("Expected destination to be passed through, got %q", gotDestination)
	}
}

func TestLegDistance_MissingAPIKey(t *testing.T) {
	client := NewClient(ClientConfig{BaseURL: "http://localhost:0"})

	_, err := client.LegDistance(context.Background(), "a", "b")
	if !errors.Is(err, ErrMissingAPIKey) {
		t.Errorf("Expected ErrMissingAPIKey, got %v", err)
	}
}

func TestLegDistance_Classification(t *testing.T) {
	tests := []struct {
		name       string
		handler    http.HandlerFunc
		wantKind   UpstreamKind
		wantStatus string
	}{
		{
			name: "http 429 is quota",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusTooManyRequests)
			},
			wantKind:   KindQuota,
			wantStatus: "HTTP_429",
		},
		{
			name: "http 500 is generic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusInternalServerError)
			},
			wantKind:   KindGeneric,
			wantStatus: "HTTP_500",
		},
		{
			name: "envelope over query limit is quota",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status":"OVER_QUERY_LIMIT","error_message":"quota exceeded"}`))
			},
			wantKind:   KindQuota,
			wantStatus: "OVER_QUERY_LIMIT",
		},
		{
			name: "envelope request denied is generic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status":"REQUEST_DENIED","error_message":"bad key"}`))
			},
			wantKind:   KindGeneric,
			wantStatus: "REQUEST_DENIED",
		},
		{
			name: "element not found is generic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status":"OK","rows":[{"elements":[{"status":"NOT_FOUND"}]}]}`))
			},
			wantKind:   KindGeneric,
			wantStatus: "NOT_FOUND",
		},
		{
			name: "ok element with missing distance is a failure",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status":"OK","rows":[{"elements":[{"status":"OK","duration":{"value":60}}]}]}`))
			},
			wantKind:   KindGeneric,
			wantStatus: "MISSING_DISTANCE",
		},
		{
			name: "malformed payload is generic",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status": not json`))
			},
			wantKind:   KindGeneric,
			wantStatus: "MALFORMED",
		},
		{
			name: "empty matrix is a failure",
			handler: func(w http.ResponseWriter, r *http.Request) {
				w.Write([]byte(`{"status":"OK","rows":[]}`))
			},
			wantKind:   KindGeneric,
			wantStatus: "EMPTY_MATRIX",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := newTestClient(t, tt.handler)

			_, err := client.LegDistance(context.Background(), "a b c", "d e f")
			var uerr *UpstreamError
			if !errors.As(err, &uerr) {
				t.Fatalf("Expected *UpstreamError, got %v", err)
			}
			if uerr.Kind != tt.wantKind {
				t.Errorf("Expected kind %s, got %s", tt.wantKind, uerr.Kind)
			}
			if uerr.Status != tt.wantStatus {
				t.Errorf("Expected status %q, got %q", tt.wantStatus, uerr.Status)
			}
		})
	}
}

func TestLegDistance_Timeout(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := client.LegDistance(ctx, "a b c", "d e f")
	var uerr *UpstreamError
	if !errors.As(err, &uerr) {
		t.Fatalf("Expected *UpstreamError, got %v", err)
	}
	if uerr.Kind != KindTimeout {
		t.Errorf("Expected timeout kind, got %s", uerr.Kind)
	}
}

func TestLegDistance_ZeroDistanceIsValid(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"status":"OK","rows":[{"elements":[{"status":"OK","distance":{"value":0}}]}]}`))
	})

	meters, err := client.LegDistance(context.Background(), "a b c", "a b c")
	if err != nil {
		t.Fatalf("Expected a present zero distance to succeed, got %v", err)
	}
	if meters != 0 {
		t.Errorf("Expected 0 meters, got %d", meters)
	}
}
