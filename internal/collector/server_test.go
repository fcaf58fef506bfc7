package collector

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"qcping/internal/api"
	"qcping/internal/config"
	"qcping/internal/metrics"
	"qcping/internal/model"
	"qcping/internal/transport"
)

func request(records ...model.Quality) api.QualityRequest {
	return api.QualityRequest{MessageID: "m1", Username: "qcping", Group: "QC", Records: records}
}

func record(station string) model.Quality {
	return model.Quality{
		WaveformID: model.StreamID{Network: "GE", Station: station, Channel: "BHZ"},
		CreatorID:  model.CreatorID,
		Type:       model.QualityType,
		Parameter:  model.ParameterPing,
		Value:      7,
		Created:    time.Unix(50, 0).UTC(),
	}
}

func TestHandleQuality(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		body       string
		wantStatus int
		wantRows   int
	}{
		{name: "valid", body: mustJSON(t, request(record("APE"), record("BKB"))), wantStatus: http.StatusOK, wantRows: 2},
		{name: "no records", body: mustJSON(t, request()), wantStatus: http.StatusBadRequest},
		{name: "missing station", body: mustJSON(t, request(record(""))), wantStatus: http.StatusBadRequest},
		{name: "bad json", body: "{", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			path := filepath.Join(t.TempDir(), "quality.csv")
			s := NewServer("127.0.0.1:0", path, nil)

			e := echo.New()
			req := httptest.NewRequest(http.MethodPost, "/quality", strings.NewReader(tt.body))
			req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
			rec := httptest.NewRecorder()
			c := e.NewContext(req, rec)

			require.NoError(t, s.HandleQuality(c))
			assert.Equal(t, tt.wantStatus, rec.Code, rec.Body.String())
			assert.Equal(t, tt.wantRows, s.Stored())

			if tt.wantRows > 0 {
				items, err := metrics.ReadCSV(path)
				require.NoError(t, err)
				assert.Len(t, items, tt.wantRows)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	t.Parallel()

	s := NewServer("127.0.0.1:0", filepath.Join(t.TempDir(), "q.csv"), nil)
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHTTPSinkToCollector(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "quality.csv")
	srv := httptest.NewServer(NewServer("", path, nil).Handler())
	defer srv.Close()

	sink := transport.NewHTTPSink(api.NewClient(srv.URL), config.MessagingConfig{Username: "qcping", Group: "QC"})

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sink.Send(context.Background(), record("APE")))
		}()
	}
	wg.Wait()

	items, err := metrics.ReadCSV(path)
	require.NoError(t, err)
	assert.Len(t, items, 8)
}

func TestListenAndServe_StopsOnCancel(t *testing.T) {
	t.Parallel()

	ctx, cancel := context.WithCancel(context.Background())
	s := NewServer("127.0.0.1:0", filepath.Join(t.TempDir(), "q.csv"), nil)

	done := make(chan error, 1)
	go func() { done <- s.ListenAndServe(ctx) }()
	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("server did not stop")
	}
}

func mustJSON(t *testing.T, v any) string {
	t.Helper()
	var buf bytes.Buffer
	require.NoError(t, json.NewEncoder(&buf).Encode(v))
	return buf.String()
}
