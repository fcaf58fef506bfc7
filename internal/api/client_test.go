package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"qcping/internal/model"
)

func TestClient_ErrorIncludesBody(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"nope"}`))
	}))
	defer s.Close()

	c := NewClient(s.URL)
	_, err := c.SubmitQuality(context.Background(), QualityRequest{MessageID: "m1"})
	if err == nil {
		t.Fatalf("expected error")
	}
	got := err.Error()
	if got == "" || got[len(got)-1] == '\n' {
		t.Fatalf("unexpected error string: %q", got)
	}
	if want := "400"; !strings.Contains(got, want) {
		t.Fatalf("error missing status: %q", got)
	}
	if want := `"error":"nope"`; !strings.Contains(got, want) {
		t.Fatalf("error missing body: %q", got)
	}
}

func TestClient_SubmitQuality(t *testing.T) {
	t.Parallel()

	var got QualityRequest
	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/quality" {
			t.Errorf("unexpected %s %s", r.Method, r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("decode: %v", err)
		}
		_ = json.NewEncoder(w).Encode(QualityResponse{Stored: len(got.Records)})
	}))
	defer s.Close()

	req := QualityRequest{
		MessageID: "m1",
		Username:  "qcping",
		Group:     "QC",
		Records: []model.Quality{{
			WaveformID: model.StreamID{Network: "GE", Station: "APE", Channel: "BHZ"},
			Parameter:  model.ParameterPing,
			Value:      12,
			Created:    time.Unix(10, 0).UTC(),
		}},
	}
	resp, err := NewClient(s.URL+"/").SubmitQuality(context.Background(), req)
	if err != nil {
		t.Fatalf("SubmitQuality: %v", err)
	}
	if resp.Stored != 1 {
		t.Fatalf("stored=%d", resp.Stored)
	}
	if got.Group != "QC" || len(got.Records) != 1 || got.Records[0].WaveformID.Station != "APE" {
		t.Fatalf("server got %+v", got)
	}
}

func TestClient_Health(t *testing.T) {
	t.Parallel()

	s := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer s.Close()

	resp, err := NewClient(s.URL).Health(context.Background())
	if err != nil {
		t.Fatalf("Health: %v", err)
	}
	if resp.Status != "ok" {
		t.Fatalf("status=%q", resp.Status)
	}
}
