package feed

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hack3rvirus/parcel-tracker/pkg/core"
)

func TestNewClient(t *testing.T) {
	c := NewClient("http://localhost:8000", "secret123")

	if c == nil {
		t.Fatal("NewClient returned nil")
	}
	if c.baseURL != "http://localhost:8000" {
		t.Errorf("expected baseURL=http://localhost:8000, got %s", c.baseURL)
	}
	if c.apiKey != "secret123" {
		t.Errorf("expected apiKey=secret123, got %s", c.apiKey)
	}
	if c.httpClient == nil {
		t.Error("httpClient is nil")
	}
}

func TestNewClient_TrimsTrailingSlash(t *testing.T) {
	c := NewClient("http://localhost:8000/", "secret")
	if c.baseURL != "http://localhost:8000" {
		t.Errorf("expected trailing slash trimmed, got %s", c.baseURL)
	}
}

func TestHealthcheck_Success(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/healthcheck" {
			t.Errorf("expected path /healthcheck, got %s", r.URL.Path)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	if err := c.Healthcheck(context.Background()); err != nil {
		t.Errorf("Healthcheck failed: %v", err)
	}
}

func TestHealthcheck_ServerDown(t *testing.T) {
	c := NewClient("http://localhost:59999", "") // unlikely to be listening
	if err := c.Healthcheck(context.Background()); err == nil {
		t.Error("expected error for unreachable server")
	}
}

func TestFetchParcels(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/parcels" {
			t.Errorf("expected path /parcels, got %s", r.URL.Path)
		}
		if auth := r.Header.Get("Authorization"); auth != "Bearer token123" {
			t.Errorf("expected bearer token, got %q", auth)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `[
			{"tracking_id":"RD001","status":"In Transit","location":{"lat":40.7,"lng":-74.0}},
			{"tracking_id":"RD002","status":"Delivered"}
		]`)
	}))
	defer server.Close()

	c := NewClient(server.URL, "token123")
	parcels, err := c.FetchParcels(context.Background())
	if err != nil {
		t.Fatalf("FetchParcels: %v", err)
	}

	if len(parcels) != 2 {
		t.Fatalf("expected 2 parcels, got %d", len(parcels))
	}
	if parcels[0].TrackingID != "RD001" {
		t.Errorf("expected tracking id RD001, got %s", parcels[0].TrackingID)
	}
	if parcels[0].Location == nil || parcels[0].Location.Lat != 40.7 {
		t.Errorf("expected parsed location, got %+v", parcels[0].Location)
	}
	if parcels[1].Location != nil {
		t.Errorf("expected nil location for RD002, got %+v", parcels[1].Location)
	}
}

func TestFetchParcel(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/parcels/RD001" {
			t.Errorf("expected path /parcels/RD001, got %s", r.URL.Path)
		}
		io.WriteString(w, `{"tracking_id":"RD001","status":"Out for Delivery"}`)
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	p, err := c.FetchParcel(context.Background(), "RD001")
	if err != nil {
		t.Fatalf("FetchParcel: %v", err)
	}
	if p.Status != "Out for Delivery" {
		t.Errorf("expected status 'Out for Delivery', got %q", p.Status)
	}
}

func TestFetchDrivers(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/drivers" {
			t.Errorf("expected path /drivers, got %s", r.URL.Path)
		}
		io.WriteString(w, `[{"id":"d1","name":"John Smith","status":"active"}]`)
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	drivers, err := c.FetchDrivers(context.Background())
	if err != nil {
		t.Fatalf("FetchDrivers: %v", err)
	}
	if len(drivers) != 1 || drivers[0].ID != "d1" {
		t.Fatalf("unexpected drivers: %+v", drivers)
	}
}

func TestUpdateParcelLocation(t *testing.T) {
	var got map[string]core.GeoPoint
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("expected PUT, got %s", r.Method)
		}
		if r.URL.Path != "/parcels/RD001" {
			t.Errorf("expected path /parcels/RD001, got %s", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	err := c.UpdateParcelLocation(context.Background(), "RD001", core.GeoPoint{Lat: 40.7128, Lng: -74.0060})
	if err != nil {
		t.Fatalf("UpdateParcelLocation: %v", err)
	}

	loc, ok := got["location"]
	if !ok {
		t.Fatal("expected 'location' key in request body")
	}
	if loc.Lat != 40.7128 || loc.Lng != -74.0060 {
		t.Errorf("unexpected location payload: %+v", loc)
	}
}

func TestUpdateParcelStatus(t *testing.T) {
	var got map[string]string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode body: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	if err := c.UpdateParcelStatus(context.Background(), "RD001", "delivered"); err != nil {
		t.Fatalf("UpdateParcelStatus: %v", err)
	}
	if got["status"] != "delivered" {
		t.Errorf("expected status payload 'delivered', got %q", got["status"])
	}
}

func TestUpdateParcelStatus_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	c := NewClient(server.URL, "")
	if err := c.UpdateParcelStatus(context.Background(), "RD001", "delivered"); err == nil {
		t.Error("expected error on 500 response")
	}
}

func TestFetchParcels_ContextCanceled(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	c := NewClient(server.URL, "")
	if _, err := c.FetchParcels(ctx); err == nil {
		t.Error("expected error for canceled context")
	}
}
