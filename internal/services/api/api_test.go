package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"finewatch/internal/core/entity"
	perr "finewatch/internal/platform/errors"
	nethttp "finewatch/internal/platform/net/http"
	quardom "finewatch/internal/services/quarantine/domain"
	rolldom "finewatch/internal/services/rollup/domain"
)

type fakeReader struct {
	records map[string]rolldom.Record
}

func (f *fakeReader) Get(_ context.Context, t entity.Type, slug, bucket string) (rolldom.Record, error) {
	if bucket == "" {
		bucket = rolldom.BucketAll
	}
	rec, ok := f.records[string(t)+"/"+slug+"/"+bucket]
	if !ok {
		return rolldom.Record{}, perr.ErrNotFound
	}
	return rec, nil
}

type fakeQuery struct {
	rows []quardom.Row
}

func (f *fakeQuery) Recent(_ context.Context, datasetKey string, _ int) ([]quardom.Row, error) {
	if datasetKey == "" {
		return f.rows, nil
	}
	var out []quardom.Row
	for _, r := range f.rows {
		if r.DatasetKey == datasetKey {
			out = append(out, r)
		}
	}
	return out, nil
}

func newTestServer(t *testing.T) (*httptest.Server, *fakeReader, *fakeQuery) {
	t.Helper()
	reader := &fakeReader{records: map[string]rolldom.Record{}}
	query := &fakeQuery{}

	mux := chi.NewRouter()
	New(Deps{Rollups: reader, Quarantine: query}).MountRoutes(nethttp.AdaptChi(mux))

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, reader, query
}

func getEnvelope(t *testing.T, url string) (int, nethttp.Envelope) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("get %s: %v", url, err)
	}
	defer resp.Body.Close()
	var env nethttp.Envelope
	if err := json.NewDecoder(resp.Body).Decode(&env); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return resp.StatusCode, env
}

func TestHealthz(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	status, _ := getEnvelope(t, srv.URL+"/healthz")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
}

func TestRollupLookup(t *testing.T) {
	t.Parallel()

	srv, reader, _ := newTestServer(t)
	reader.records["company/acme-corp/all"] = rolldom.Record{
		EntityType:   entity.TypeCompany,
		Slug:         "acme-corp",
		Bucket:       rolldom.BucketAll,
		EventCount:   3,
		PenaltyTotal: 4200,
	}

	status, env := getEnvelope(t, srv.URL+"/v1/entities/acme-corp/rollup")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	data, _ := json.Marshal(env.Data)
	var rec rolldom.Record
	if err := json.Unmarshal(data, &rec); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	if rec.EventCount != 3 || rec.PenaltyTotal != 4200 {
		t.Fatalf("record: %+v", rec)
	}
}

func TestRollupNotFound(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	status, env := getEnvelope(t, srv.URL+"/v1/entities/nobody/rollup")
	if status != http.StatusNotFound {
		t.Fatalf("status = %d", status)
	}
	if env.Code != perr.ErrorCodeNotFound {
		t.Fatalf("code = %v", env.Code)
	}
}

func TestRollupRejectsBadType(t *testing.T) {
	t.Parallel()

	srv, _, _ := newTestServer(t)
	status, _ := getEnvelope(t, srv.URL+"/v1/entities/acme-corp/rollup?type=galaxy")
	if status != http.StatusUnprocessableEntity {
		t.Fatalf("status = %d", status)
	}
}

func TestQuarantineFeed(t *testing.T) {
	t.Parallel()

	srv, _, query := newTestServer(t)
	query.rows = []quardom.Row{
		{Identity: "a", DatasetKey: "osha_v1", Reason: "UNRESOLVED_COMPANY", QuarantinedAt: time.Now()},
		{Identity: "b", DatasetKey: "epa_v1", Reason: "MISSING_DATE", QuarantinedAt: time.Now()},
	}

	status, env := getEnvelope(t, srv.URL+"/v1/quarantine?dataset=osha_v1")
	if status != http.StatusOK {
		t.Fatalf("status = %d", status)
	}
	m, ok := env.Data.(map[string]any)
	if !ok {
		t.Fatalf("data: %T", env.Data)
	}
	if int(m["count"].(float64)) != 1 {
		t.Fatalf("count: %v", m["count"])
	}
}
