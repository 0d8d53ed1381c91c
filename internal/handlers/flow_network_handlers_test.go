package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"math"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"flownetwork-platform/internal/models"
	"flownetwork-platform/internal/repository"
	"flownetwork-platform/internal/services"
	"flownetwork-platform/pkg/logging"
	"flownetwork-platform/pkg/metrics"
)

const testCaseUUID = "5f0c2b1a-3e4d-4f6a-8b7c-9d0e1f2a3b4c"

var testKey = repository.EnsembleKey{CaseUUID: testCaseUUID, Ensemble: "iter-0"}

type failingCatalog struct{}

func (failingCatalog) ListEnsembles(ctx context.Context) ([]*repository.EnsembleInfo, error) {
	return nil, errors.New("connection reset")
}

func (failingCatalog) HealthCheck(ctx context.Context) error {
	return errors.New("connection reset")
}

func day(month time.Month) time.Time {
	return time.Date(2021, month, 1, 0, 0, 0, 0, time.UTC)
}

// seedStore stores FIELD -> OP_1 with OP_1 producing from January to March; WBHP
// has no sample in February
func seedStore(t *testing.T) *repository.MemoryStore {
	t.Helper()
	ctx := context.Background()
	store := repository.NewMemoryStore()
	vfp := 4
	require.NoError(t, store.UpsertEnsemble(ctx, testKey))
	require.NoError(t, store.ReplaceGroupTree(ctx, testKey, 0, []models.GroupTreeRow{
		{Date: day(time.January), Child: "FIELD", Keyword: models.KeywordGruptree},
		{Date: day(time.January), Child: "OP_1", Parent: "FIELD", Keyword: models.KeywordWelspecs, VFPTable: &vfp},
	}))

	values := map[string]float64{
		"FOPR": 100, "FGPR": 1000, "FWPR": 10, "FWIR": 0, "FGIR": 0, "GPR:FIELD": 150,
		"WOPR:OP_1": 100, "WGPR:OP_1": 1000, "WWPR:OP_1": 10, "WSTAT:OP_1": 1,
		"WTHP:OP_1": 50, "WBHP:OP_1": 200, "WMCTL:OP_1": 1,
	}
	var samples []models.SummarySample
	for _, m := range []time.Month{time.January, time.February, time.March} {
		for name, v := range values {
			if name == "WBHP:OP_1" && m == time.February {
				continue
			}
			v := v
			samples = append(samples, models.SummarySample{Date: day(m), VectorName: name, Value: &v})
		}
	}
	require.NoError(t, store.WriteSummarySamples(ctx, testKey, 0, samples))
	return store
}

func newTestRouter(t *testing.T, catalog EnsembleCatalog, store *repository.MemoryStore) (*mux.Router, *metrics.Collector) {
	t.Helper()
	logger := logging.NewStructuredLogger("handlers-test", "test", logging.DebugLevel)
	logger.SetOutput(io.Discard)
	m := metrics.NewCollectorWithRegistry("test", prometheus.NewRegistry())

	svc := services.NewFlowNetworkService(
		services.NewStoreSourceFactory(store, store, store),
		services.FlowNetworkDefaults{TerminalNode: "FIELD", TreeType: models.TreeTypeGruptree},
		logger, m,
	)
	router := mux.NewRouter()
	router.Use(RequestMiddleware(logger, m))
	NewFlowNetworkHandler(svc, catalog, logger, m).RegisterRoutes(router)
	return router, m
}

func get(router http.Handler, target string) *httptest.ResponseRecorder {
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func TestGetFlowNetwork(t *testing.T) {
	store := seedStore(t)
	router, m := newTestRouter(t, store, store)

	rec := get(router, "/api/flow-network?case_uuid="+testCaseUUID+"&ensemble_name=iter-0&realization=0")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))

	var body struct {
		EdgeMetadataList []models.FlowNetworkMetadata `json:"edge_metadata_list"`
		NodeMetadataList []models.FlowNetworkMetadata `json:"node_metadata_list"`
		DatedNetworks    []struct {
			Dates   []string               `json:"dates"`
			Network map[string]interface{} `json:"network"`
		} `json:"dated_networks"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))

	assert.Len(t, body.EdgeMetadataList, 3)
	assert.Equal(t, "Oil Rate", body.EdgeMetadataList[0].Label)
	require.Len(t, body.DatedNetworks, 1)
	assert.Equal(t, []string{"2021-01-01", "2021-02-01", "2021-03-01"}, body.DatedNetworks[0].Dates)

	root := body.DatedNetworks[0].Network
	assert.Equal(t, "FIELD", root["node_label"])
	assert.Equal(t, "Group", root["node_type"])

	children := root["children"].([]interface{})
	require.Len(t, children, 1)
	well := children[0].(map[string]interface{})
	assert.Equal(t, "VFP 4", well["edge_label"])
	bhp := well["node_data"].(map[string]interface{})["bhp"].([]interface{})
	assert.Equal(t, []interface{}{200.0, nil, 200.0}, bhp, "missing sample is null")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIRequestsTotal.WithLabelValues("/api/flow-network", "GET", "200")))
}

func TestGetFlowNetwork_ErrorStatus(t *testing.T) {
	base := "/api/flow-network?case_uuid=" + testCaseUUID
	tests := []struct {
		name     string
		target   string
		wantCode int
		wantKind string
	}{
		{"malformed case uuid", "/api/flow-network?case_uuid=abc&ensemble_name=iter-0", http.StatusBadRequest, "bad_request"},
		{"missing ensemble name", base, http.StatusBadRequest, "bad_request"},
		{"non-numeric realization", base + "&ensemble_name=iter-0&realization=one", http.StatusBadRequest, "bad_request"},
		{"unknown frequency", base + "&ensemble_name=iter-0&resampling_frequency=HOURLY", http.StatusBadRequest, "bad_request"},
		{"unknown node type", base + "&ensemble_name=iter-0&node_type_set=prod,observer", http.StatusBadRequest, "bad_request"},
		{"statistics mode", base + "&ensemble_name=iter-0&mode=statistics", http.StatusBadRequest, "bad_request"},
		{"unknown ensemble", base + "&ensemble_name=pred", http.StatusNotFound, "no_data"},
		{"unknown terminal node", base + "&ensemble_name=iter-0&terminal_node=PLAT", http.StatusUnprocessableEntity, "invalid_configuration"},
		{"branprop tree has no rows", base + "&ensemble_name=iter-0&tree_type=BRANPROP", http.StatusUnprocessableEntity, "invalid_configuration"},
	}

	store := seedStore(t)
	router, _ := newTestRouter(t, store, store)
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := get(router, tt.target)
			require.Equal(t, tt.wantCode, rec.Code, rec.Body.String())

			var resp ErrorResponse
			require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
			assert.Equal(t, tt.wantCode, resp.Code)
			assert.Equal(t, tt.wantKind, resp.Kind)
			assert.NotEmpty(t, resp.Message)
		})
	}
}

func TestListEnsembles(t *testing.T) {
	store := seedStore(t)
	router, _ := newTestRouter(t, store, store)

	rec := get(router, "/api/ensembles")
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Data  []repository.EnsembleInfo `json:"data"`
		Total int                       `json:"total"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	require.Equal(t, 1, body.Total)
	assert.Equal(t, "iter-0", body.Data[0].EnsembleName)
	assert.Equal(t, []int{0}, body.Data[0].Realizations)
}

func TestCatalogFailures(t *testing.T) {
	router, m := newTestRouter(t, failingCatalog{}, repository.NewMemoryStore())

	rec := get(router, "/api/ensembles")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "connection reset")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.APIErrorsTotal.WithLabelValues("internal_error", "/api/ensembles")))

	rec = get(router, "/health")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), "unhealthy")
}

func TestHealthCheck(t *testing.T) {
	router, _ := newTestRouter(t, repository.NewMemoryStore(), repository.NewMemoryStore())

	rec := get(router, "/health")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"status":"healthy"`)
}

func TestRequestMiddleware_KeepsValidRequestID(t *testing.T) {
	router, m := newTestRouter(t, repository.NewMemoryStore(), repository.NewMemoryStore())
	id := "0f8fad5b-d9cb-469f-a165-70867728950e"

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set(RequestIDHeader, id)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.Equal(t, id, rec.Header().Get(RequestIDHeader))

	req.Header.Set(RequestIDHeader, "not-an-id")
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	assert.NotEqual(t, "not-an-id", rec.Header().Get(RequestIDHeader))

	assert.Equal(t, 0.0, testutil.ToFloat64(m.ActiveConnections))
}

func TestNullableSeries(t *testing.T) {
	out := nullableSeries(map[models.Quantity][]float64{
		models.QuantityPressure: {1.5, math.NaN(), math.Inf(1)},
	})
	series := out[models.QuantityPressure]
	require.Len(t, series, 3)
	assert.Equal(t, 1.5, *series[0])
	assert.Nil(t, series[1])
	assert.Nil(t, series[2])
}

func TestOpenAPISpec(t *testing.T) {
	router, _ := newTestRouter(t, repository.NewMemoryStore(), repository.NewMemoryStore())

	rec := get(router, "/api/docs/openapi.json")
	require.Equal(t, http.StatusOK, rec.Code)

	var spec map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &spec))
	assert.Contains(t, spec["paths"], "/api/flow-network")

	rec = get(router, "/api/docs")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "swagger-ui")
}
