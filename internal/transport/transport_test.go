package transport

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"qcping/internal/api"
	"qcping/internal/config"
	"qcping/internal/metrics"
	"qcping/internal/model"
)

var messaging = config.MessagingConfig{Username: "qcping", Group: "QC"}

func sample() model.Quality {
	at := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)
	return model.Quality{
		WaveformID:   model.StreamID{Network: "GE", Station: "APE", Location: "", Channel: "BHZ"},
		CreatorID:    model.CreatorID,
		Created:      at,
		Start:        at.Add(-20 * time.Millisecond),
		End:          at,
		Type:         model.QualityType,
		Parameter:    model.ParameterPortStatus,
		Value:        18000,
		WindowLength: 0.02,
	}
}

type failingSink struct{ err error }

func (s failingSink) Send(context.Context, model.Quality) error { return s.err }

type recordingSink struct {
	mu  sync.Mutex
	got []model.Quality
}

func (s *recordingSink) Send(_ context.Context, q model.Quality) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.got = append(s.got, q)
	return nil
}

type fakePublisher struct {
	channel string
	payload []byte
	err     error
	closed  bool
}

func (p *fakePublisher) Publish(_ context.Context, channel string, message interface{}) *redis.IntCmd {
	p.channel = channel
	p.payload, _ = message.([]byte)
	return redis.NewIntResult(1, p.err)
}

func (p *fakePublisher) Close() error {
	p.closed = true
	return nil
}

func TestMulti_ContinuesPastFailure(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.WarnLevel)
	rec := &recordingSink{}
	m := NewMulti(zap.New(core), failingSink{err: errors.New("a")}, rec, failingSink{err: errors.New("b")})

	err := m.Send(context.Background(), sample())
	require.Error(t, err)
	assert.Len(t, rec.got, 1)
	assert.Equal(t, 2, logs.FilterMessage("sink failed").Len())
	assert.Contains(t, err.Error(), "a")
	assert.Contains(t, err.Error(), "b")
}

func TestLogSink(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	require.NoError(t, NewLogSink(zap.New(core)).Send(context.Background(), sample()))

	entries := logs.FilterMessage("quality").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "GE.APE..BHZ", entries[0].ContextMap()["stream"])
	assert.Equal(t, "portstatus", entries[0].ContextMap()["parameter"])
}

func TestCSVSink_ConcurrentAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "quality.csv")
	sink := NewCSVSink(path)

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, sink.Send(context.Background(), sample()))
		}()
	}
	wg.Wait()

	items, err := metrics.ReadCSV(path)
	require.NoError(t, err)
	assert.Len(t, items, 10)
}

func TestHTTPSink_PostsEnvelope(t *testing.T) {
	t.Parallel()

	var got api.QualityRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		_ = json.NewEncoder(w).Encode(api.QualityResponse{Stored: 1})
	}))
	defer srv.Close()

	sink := NewHTTPSink(api.NewClient(srv.URL), messaging)
	require.NoError(t, sink.Send(context.Background(), sample()))

	assert.NotEmpty(t, got.MessageID)
	assert.Equal(t, "qcping", got.Username)
	assert.Equal(t, "QC", got.Group)
	require.Len(t, got.Records, 1)
	assert.Equal(t, 18000.0, got.Records[0].Value)
}

func TestHTTPSink_ServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	err := NewHTTPSink(api.NewClient(srv.URL), messaging).Send(context.Background(), sample())
	assert.ErrorContains(t, err, "503")
}

func TestRedisSink_PublishesMsgpack(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{}
	sink := NewRedisSink(pub, "QC", messaging)
	require.NoError(t, sink.Send(context.Background(), sample()))
	assert.Equal(t, "QC", pub.channel)

	var env api.QualityRequest
	require.NoError(t, msgpack.Unmarshal(pub.payload, &env))
	assert.Equal(t, "QC", env.Group)
	require.Len(t, env.Records, 1)
	assert.Equal(t, "APE", env.Records[0].WaveformID.Station)
	assert.True(t, env.Records[0].Created.Equal(sample().Created))
	assert.Nil(t, env.Records[0].LowerUncertainty)

	require.NoError(t, NewMulti(nil, sink).Close())
	assert.True(t, pub.closed)
}

func TestRedisSink_PublishError(t *testing.T) {
	t.Parallel()

	pub := &fakePublisher{err: errors.New("connection refused")}
	err := NewRedisSink(pub, "QC", messaging).Send(context.Background(), sample())
	assert.ErrorContains(t, err, "connection refused")
}

func TestBuild(t *testing.T) {
	t.Parallel()

	m, err := Build(nil, messaging, nil)
	require.NoError(t, err)
	assert.Equal(t, 1, m.Len())

	m, err = Build([]config.SinkConfig{
		{Type: config.SinkLog},
		{Type: config.SinkCSV, Path: filepath.Join(t.TempDir(), "q.csv")},
		{Type: config.SinkHTTP, URL: "http://127.0.0.1:1"},
		{Type: config.SinkRedis, Addr: "127.0.0.1:1"},
	}, messaging, nil)
	require.NoError(t, err)
	assert.Equal(t, 4, m.Len())
	assert.NoError(t, m.Close())

	_, err = Build([]config.SinkConfig{{Type: "kafka"}}, messaging, nil)
	assert.ErrorIs(t, err, config.ErrConfiguration)
}

func TestMulti_CheckHTTPSink(t *testing.T) {
	t.Parallel()

	healthy := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/health", r.URL.Path)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	}))
	defer healthy.Close()

	m := NewMulti(nil, NewLogSink(zap.NewNop()), NewHTTPSink(api.NewClient(healthy.URL), messaging))
	require.NoError(t, m.Check(context.Background()))

	down := NewMulti(nil, NewHTTPSink(api.NewClient("http://127.0.0.1:1"), messaging))
	assert.ErrorContains(t, down.Check(context.Background()), "http sink")
}
