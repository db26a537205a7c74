package arclight

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/klauspost/compress/gzip"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/arclight-ai/arclight-go/internal/event"
)

const testProjectID = "9a1b2c3d-4e5f-4a6b-8c7d-0e1f2a3b4c5d"

// fakeIngest collects rows posted to the ingestion endpoint.
type fakeIngest struct {
	mu     sync.Mutex
	rows   []map[string]any
	status int
}

func (f *fakeIngest) handler(t *testing.T) http.HandlerFunc {
	return func(w http.ResponseWriter, req *http.Request) {
		zr, err := gzip.NewReader(req.Body)
		require.NoError(t, err)
		body, err := io.ReadAll(zr)
		require.NoError(t, err)

		var payload struct {
			Rows []map[string]any `json:"rows"`
		}
		require.NoError(t, sonic.Unmarshal(body, &payload))

		f.mu.Lock()
		f.rows = append(f.rows, payload.Rows...)
		f.mu.Unlock()

		status := f.status
		if status == 0 {
			status = http.StatusOK
		}
		w.WriteHeader(status)
	}
}

func (f *fakeIngest) allRows() []map[string]any {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]map[string]any(nil), f.rows...)
}

func newTestClient(t *testing.T, ingest *fakeIngest) *Client {
	t.Helper()

	srv := httptest.NewServer(ingest.handler(t))
	t.Cleanup(srv.Close)

	client, err := New(
		WithProject(testProjectID),
		WithAppURL(srv.URL),
		WithAPIKey("test-key"),
		WithFlushInterval(time.Minute), // flush explicitly in tests
		WithRetryBudget(0),
		WithMetricsRegistry(prometheus.NewRegistry()),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = client.Close(ctx)
	})
	return client
}

func TestNewRequiresContainer(t *testing.T) {
	_, err := New(WithMetricsRegistry(prometheus.NewRegistry()))
	assert.Error(t, err)
}

func TestSpanLifecycleDelivery(t *testing.T) {
	ingest := &fakeIngest{}
	client := newTestClient(t, ingest)

	_, span := client.StartSpan(context.Background(), "answer-question")
	require.NoError(t, span.Log(Fields{"input": "what is up"}))
	require.NoError(t, span.Log(Fields{"output": "not much"}))
	span.End()

	require.NoError(t, client.Flush(context.Background()))

	rows := ingest.allRows()
	require.Len(t, rows, 1, "all span events collapse into one row")

	row := rows[0]
	assert.Equal(t, testProjectID, row["project_id"])
	assert.Equal(t, "what is up", row["input"])
	assert.Equal(t, "not much", row["output"])
	assert.Equal(t, span.SpanID(), row["span_id"])
	assert.Equal(t, span.SpanID(), row["root_span_id"], "a uuid-scheme root is self-referential")
	assert.NotContains(t, row, "span_parents")

	attrs, ok := row["span_attributes"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "answer-question", attrs["name"])

	metrics, ok := row["metrics"].(map[string]any)
	require.True(t, ok)
	assert.Contains(t, metrics, "start")
	assert.Contains(t, metrics, "end")

	assert.Equal(t, uint64(0), client.DropCount())
}

func TestChildSpanParentage(t *testing.T) {
	ingest := &fakeIngest{}
	client := newTestClient(t, ingest)

	ctx, parent := client.StartSpan(context.Background(), "parent")
	_, child := client.StartSpan(ctx, "child")
	child.End()
	parent.End()

	require.NoError(t, client.Flush(context.Background()))

	rows := ingest.allRows()
	require.Len(t, rows, 2)

	var childRow map[string]any
	for _, row := range rows {
		if row["span_id"] == child.SpanID() {
			childRow = row
		}
	}
	require.NotNil(t, childRow)

	assert.Equal(t, parent.RootSpanID(), childRow["root_span_id"])
	assert.Equal(t, []any{parent.SpanID()}, childRow["span_parents"],
		"child records its parent as sole parent")
}

func TestExportResumeUnifiesTrace(t *testing.T) {
	ingest := &fakeIngest{}
	client := newTestClient(t, ingest)

	_, origin := client.StartSpan(context.Background(), "origin")
	handle, err := origin.Export()
	require.NoError(t, err)
	origin.End()

	// "another process" resumes from the opaque handle
	ctx, resumed, err := client.ContextWithResumedSpan(context.Background(), handle)
	require.NoError(t, err)
	assert.Equal(t, origin.SpanID(), resumed.SpanID())
	assert.Equal(t, origin.RootSpanID(), resumed.RootSpanID())

	_, continuation := client.StartSpan(ctx, "continuation")
	continuation.End()

	assert.Equal(t, origin.RootSpanID(), continuation.RootSpanID(),
		"resumed work shares the originating trace id")

	require.NoError(t, client.Flush(context.Background()))

	var contRow map[string]any
	for _, row := range ingest.allRows() {
		if row["span_id"] == continuation.SpanID() {
			contRow = row
		}
	}
	require.NotNil(t, contRow)
	assert.Equal(t, []any{origin.SpanID()}, contRow["span_parents"],
		"the originating span is the sole parent after resume")
}

func TestResumeRejectsMalformedHandle(t *testing.T) {
	ingest := &fakeIngest{}
	client := newTestClient(t, ingest)

	_, err := client.ResumeSpan("not a handle")
	assert.Error(t, err)
}

func TestLogValidatesMetadata(t *testing.T) {
	ingest := &fakeIngest{}
	client := newTestClient(t, ingest)

	err := client.Log(Fields{"metadata": "not-an-object"})
	require.ErrorIs(t, err, event.ErrInvalidMetadata)

	require.NoError(t, client.Flush(context.Background()))
	assert.Empty(t, ingest.allRows(), "rejected events never reach the queue")
}

func TestDropCountOnPermanentFailure(t *testing.T) {
	ingest := &fakeIngest{status: http.StatusBadRequest}
	client := newTestClient(t, ingest)

	require.NoError(t, client.Log(Fields{"input": "hi"}))
	require.NoError(t, client.Flush(context.Background()))

	assert.Equal(t, uint64(1), client.DropCount())
}

func TestCurrentSpan(t *testing.T) {
	ingest := &fakeIngest{}
	client := newTestClient(t, ingest)

	assert.Nil(t, CurrentSpan(context.Background()))

	ctx, span := client.StartSpan(context.Background(), "op")
	assert.Same(t, span, CurrentSpan(ctx))
}
