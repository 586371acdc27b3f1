package lexsdk

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAdvanceSendsEvidenceAndAuth(t *testing.T) {
	var gotPath, gotKey string
	var gotBody map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("X-Api-Key")
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &gotBody)
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"previous_stage":{"stage_name":"reception","status":"completed"},"current_stage":{"stage_name":"planning","status":"in_progress"}}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	c.APIKey = "k"
	res, err := c.Advance(context.Background(), "case 1", true, map[string]bool{"case.registered": true})
	if err != nil {
		t.Fatalf("advance: %v", err)
	}
	if gotPath != "/v1/cases/case 1/workflow/advance" {
		t.Fatalf("unexpected path %q", gotPath)
	}
	if gotKey != "k" {
		t.Fatalf("api key header not sent")
	}
	if gotBody["require_complete"] != true {
		t.Fatalf("unexpected body %v", gotBody)
	}
	if res.CurrentStage == nil || res.CurrentStage.StageName != "planning" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestErrorEnvelopeCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusConflict)
		io.WriteString(w, `{"error":{"code":"already_initialized","message":"workflow already initialized"}}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).InitializeWorkflow(context.Background(), "case-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !IsCode(err, "already_initialized") {
		t.Fatalf("expected already_initialized, got %v", err)
	}
}

func TestCurrentStageNone(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"current":null}`)
	}))
	defer srv.Close()
	cur, err := New(srv.URL).CurrentStage(context.Background(), "case-1")
	if err != nil {
		t.Fatalf("current: %v", err)
	}
	if cur != nil {
		t.Fatalf("expected nil, got %+v", cur)
	}
}
