package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"insightbot/internal/domain"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	client, err := NewClient(Options{BaseURL: srv.URL, ServiceKey: "service-key"})
	if err != nil {
		t.Fatalf("NewClient returned error: %v", err)
	}
	return client, srv
}

func TestNewClientRequiresCredentials(t *testing.T) {
	if _, err := NewClient(Options{BaseURL: "https://example.supabase.co"}); !errors.Is(err, ErrMissingCredentials) {
		t.Fatalf("err = %v, want ErrMissingCredentials", err)
	}
}

func TestActiveBindingForChannelDecodesEmbeddedTenant(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/rest/v1/slack_channels" {
			t.Errorf("path = %q", r.URL.Path)
		}
		if got := r.Header.Get("apikey"); got != "service-key" {
			t.Errorf("apikey header = %q", got)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer service-key" {
			t.Errorf("Authorization header = %q", got)
		}
		q := r.URL.Query()
		if q.Get("channel_id") != "eq.C123" {
			t.Errorf("channel_id filter = %q", q.Get("channel_id"))
		}
		if q.Get("is_active") != "eq.true" {
			t.Errorf("is_active filter = %q", q.Get("is_active"))
		}
		fmt.Fprint(w, `[{"channel_id":"C123","client_id":"uuid-1","is_active":true,"clients":{"id":"uuid-1","name":"Acme Ltd","slug":"acme"}}]`)
	})

	binding, err := client.ActiveBindingForChannel(context.Background(), "C123")
	if err != nil {
		t.Fatalf("ActiveBindingForChannel returned error: %v", err)
	}
	if binding.Tenant == nil || binding.Tenant.Slug != "acme" {
		t.Fatalf("embedded tenant not decoded: %#v", binding.Tenant)
	}
}

func TestActiveBindingForChannelNotConfigured(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `[]`)
	})

	if _, err := client.ActiveBindingForChannel(context.Background(), "C404"); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("err = %v, want ErrNotConfigured", err)
	}
}

func TestUpsertChunksAtFiveHundredRows(t *testing.T) {
	var sizes []int
	var conflicts []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %q", r.Method)
		}
		if got := r.Header.Get("Prefer"); got != "return=minimal,resolution=merge-duplicates" {
			t.Errorf("Prefer header = %q", got)
		}
		conflicts = append(conflicts, r.URL.Query().Get("on_conflict"))
		var rows []domain.TrafficDaily
		if err := json.NewDecoder(r.Body).Decode(&rows); err != nil {
			t.Errorf("decode body: %v", err)
		}
		sizes = append(sizes, len(rows))
		w.WriteHeader(http.StatusCreated)
	})

	rows := make([]domain.TrafficDaily, 1201)
	for i := range rows {
		rows[i] = domain.TrafficDaily{ClientID: "uuid-1", Date: fmt.Sprintf("2026-%02d-%02d", i%12+1, i%28+1)}
	}
	if err := client.UpsertTrafficDaily(context.Background(), rows); err != nil {
		t.Fatalf("UpsertTrafficDaily returned error: %v", err)
	}

	wantSizes := []int{500, 500, 201}
	if len(sizes) != len(wantSizes) {
		t.Fatalf("got %d calls, want %d (sizes %v)", len(sizes), len(wantSizes), sizes)
	}
	for i, want := range wantSizes {
		if sizes[i] != want {
			t.Fatalf("chunk %d size = %d, want %d", i, sizes[i], want)
		}
		if conflicts[i] != "client_id,event_date" {
			t.Fatalf("chunk %d on_conflict = %q", i, conflicts[i])
		}
	}
}

func TestUpsertRejectsUnknownTable(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if err := Upsert(context.Background(), client, "mystery_table", []domain.Tenant{{}}); err == nil {
		t.Fatal("expected error for unregistered table")
	}
}

func TestMarkReportSentPatchesFilteredRow(t *testing.T) {
	var gotMethod, gotFilter string
	var gotFields map[string]any
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotFilter = r.URL.Query().Get("channel_id")
		_ = json.NewDecoder(r.Body).Decode(&gotFields)
		w.WriteHeader(http.StatusNoContent)
	})

	sentAt := time.Date(2026, 8, 26, 9, 0, 0, 0, time.UTC)
	if err := client.MarkReportSent(context.Background(), "C123", sentAt); err != nil {
		t.Fatalf("MarkReportSent returned error: %v", err)
	}
	if gotMethod != http.MethodPatch {
		t.Fatalf("method = %q, want PATCH", gotMethod)
	}
	if gotFilter != "eq.C123" {
		t.Fatalf("filter = %q", gotFilter)
	}
	if gotFields["last_report_sent"] != "2026-08-26T09:00:00Z" {
		t.Fatalf("last_report_sent = %v", gotFields["last_report_sent"])
	}
}

func TestErrorsCarryStatusAndBody(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		fmt.Fprint(w, `{"message":"JWT expired"}`)
	})

	_, err := client.ActiveTenants(context.Background())
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "401") || !strings.Contains(err.Error(), "JWT expired") {
		t.Fatalf("error missing status/body: %v", err)
	}
}

func TestMetricFetchesBoundTheWindow(t *testing.T) {
	var paths []string
	var limits []string
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		paths = append(paths, r.URL.Path)
		limits = append(limits, r.URL.Query().Get("limit"))
		fmt.Fprint(w, `[]`)
	})

	ctx := context.Background()
	if _, err := client.SearchDaily(ctx, "uuid-1"); err != nil {
		t.Fatalf("SearchDaily: %v", err)
	}
	if _, err := client.TrafficDaily(ctx, "uuid-1"); err != nil {
		t.Fatalf("TrafficDaily: %v", err)
	}
	if _, err := client.Attribution(ctx, "uuid-1"); err != nil {
		t.Fatalf("Attribution: %v", err)
	}

	wantLimits := []string{"90", "90", "500"}
	for i, want := range wantLimits {
		if limits[i] != want {
			t.Fatalf("fetch %s limit = %q, want %q", paths[i], limits[i], want)
		}
	}
}
