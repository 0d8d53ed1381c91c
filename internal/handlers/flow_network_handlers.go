package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"

	"flownetwork-platform/internal/models"
	"flownetwork-platform/internal/repository"
	"flownetwork-platform/internal/services"
	"flownetwork-platform/pkg/logging"
	"flownetwork-platform/pkg/metrics"
)

// EnsembleCatalog lists stored ensembles and reports store health
type EnsembleCatalog interface {
	ListEnsembles(ctx context.Context) ([]*repository.EnsembleInfo, error)
	HealthCheck(ctx context.Context) error
}

// FlowNetworkHandler handles flow network API endpoints
type FlowNetworkHandler struct {
	flowService *services.FlowNetworkService
	catalog     EnsembleCatalog
	logger      *logging.StructuredLogger
	metrics     *metrics.Collector
}

// NewFlowNetworkHandler creates a new flow network handler
func NewFlowNetworkHandler(
	flowService *services.FlowNetworkService,
	catalog EnsembleCatalog,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *FlowNetworkHandler {
	return &FlowNetworkHandler{
		flowService: flowService,
		catalog:     catalog,
		logger:      logger,
		metrics:     metricsCollector,
	}
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
	Kind    string `json:"kind,omitempty"`
}

// NetworkNodeResponse is a network node with absent samples rendered as null
type NetworkNodeResponse struct {
	NodeLabel string                         `json:"node_label"`
	NodeType  models.NodeKind                `json:"node_type"`
	EdgeLabel string                         `json:"edge_label"`
	NodeData  map[models.Quantity][]*float64 `json:"node_data"`
	EdgeData  map[models.Quantity][]*float64 `json:"edge_data"`
	Children  []*NetworkNodeResponse         `json:"children"`
}

// DatedNetworkResponse is one dated flow network
type DatedNetworkResponse struct {
	Dates   []string             `json:"dates"`
	Network *NetworkNodeResponse `json:"network"`
}

// FlowNetworkDataResponse is the body of GET /api/flow-network
type FlowNetworkDataResponse struct {
	EdgeMetadataList []models.FlowNetworkMetadata `json:"edge_metadata_list"`
	NodeMetadataList []models.FlowNetworkMetadata `json:"node_metadata_list"`
	DatedNetworks    []DatedNetworkResponse       `json:"dated_networks"`
	SkippedDates     []string                     `json:"skipped_dates"`
}

// GetFlowNetwork handles GET /api/flow-network
func (h *FlowNetworkHandler) GetFlowNetwork(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/flow-network").Observe(duration.Seconds())
	}()

	req, err := parseFlowNetworkRequest(r)
	if err != nil {
		h.sendServiceError(w, r, "/api/flow-network", err)
		return
	}

	resp, err := h.flowService.GetFlowNetwork(ctx, req)
	if err != nil {
		h.sendServiceError(w, r, "/api/flow-network", err)
		return
	}

	h.metrics.RecordAPIRequest("/api/flow-network", "GET", "200")
	h.sendJSON(w, NewFlowNetworkDataResponse(resp), http.StatusOK)
}

// ListEnsembles handles GET /api/ensembles
func (h *FlowNetworkHandler) ListEnsembles(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	startTime := time.Now()

	defer func() {
		duration := time.Since(startTime)
		h.metrics.APIRequestDuration.WithLabelValues("/api/ensembles").Observe(duration.Seconds())
	}()

	ensembles, err := h.catalog.ListEnsembles(ctx)
	if err != nil {
		h.logger.Error(ctx, "[API_LIST_ENSEMBLES_ERROR] Failed to list ensembles", logging.Fields{}, err)
		h.metrics.RecordAPIError("internal_error", "/api/ensembles")
		h.sendError(w, r, "failed to list ensembles", http.StatusInternalServerError, "")
		return
	}
	if ensembles == nil {
		ensembles = []*repository.EnsembleInfo{}
	}

	h.metrics.RecordAPIRequest("/api/ensembles", "GET", "200")
	h.sendJSON(w, map[string]interface{}{"data": ensembles, "total": len(ensembles)}, http.StatusOK)
}

// HealthCheck handles GET /health
func (h *FlowNetworkHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()

	status := map[string]string{
		"status":    "healthy",
		"timestamp": time.Now().UTC().Format(time.RFC3339),
	}
	code := http.StatusOK
	if err := h.catalog.HealthCheck(ctx); err != nil {
		h.logger.Warn(ctx, "[HEALTH_CHECK] Store health check failed", logging.Fields{"error": err.Error()})
		status["status"] = "unhealthy"
		code = http.StatusServiceUnavailable
	}

	h.logger.Debug(ctx, "[HEALTH_CHECK] Health check requested", logging.Fields{"status": status["status"]})
	h.sendJSON(w, status, code)
}

// parseFlowNetworkRequest reads the query parameters of GET /api/flow-network
func parseFlowNetworkRequest(r *http.Request) (services.FlowNetworkRequest, error) {
	q := r.URL.Query()

	caseUUID, err := uuid.Parse(q.Get("case_uuid"))
	if err != nil {
		return services.FlowNetworkRequest{}, &models.ValidationError{Field: "case_uuid", Value: q.Get("case_uuid"), Message: "must be a UUID"}
	}

	req := services.FlowNetworkRequest{
		CaseUUID:            caseUUID.String(),
		EnsembleName:        q.Get("ensemble_name"),
		TerminalNode:        strings.TrimSpace(q.Get("terminal_node")),
		ExcludeWellPrefixes: splitList(q, "exclude_well_prefixes"),
		ExcludeWellSuffixes: splitList(q, "exclude_well_suffixes"),
	}

	if v := q.Get("realization"); v != "" {
		real, err := strconv.Atoi(v)
		if err != nil {
			return req, &models.ValidationError{Field: "realization", Value: v, Message: "must be an integer"}
		}
		req.Realization = real
	}
	if v := q.Get("resampling_frequency"); v != "" {
		if req.Frequency, err = models.ParseFrequency(v); err != nil {
			return req, err
		}
	}
	if v := q.Get("tree_type"); v != "" {
		if req.TreeType, err = models.ParseTreeType(v); err != nil {
			return req, err
		}
	}
	if v := q.Get("node_type_set"); v != "" {
		if req.NodeTypes, err = models.ParseNodeTypeSet(v); err != nil {
			return req, err
		}
	}
	switch mode := models.AssemblyMode(strings.ToLower(q.Get("mode"))); mode {
	case "":
	case models.ModeSingleRealization, models.ModeStatistics:
		req.Mode = mode
	default:
		return req, &models.ValidationError{Field: "mode", Value: string(mode), Message: "mode must be single_realization or statistics"}
	}
	return req, nil
}

// splitList reads a parameter given either repeated or comma separated
func splitList(q url.Values, name string) []string {
	values, ok := q[name]
	if !ok {
		return nil
	}
	out := make([]string, 0, len(values))
	for _, v := range values {
		for _, part := range strings.Split(v, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// NewFlowNetworkDataResponse converts a service response to its JSON form
func NewFlowNetworkDataResponse(resp *services.FlowNetworkResponse) FlowNetworkDataResponse {
	dated := make([]DatedNetworkResponse, len(resp.DatedNetworks))
	for i, d := range resp.DatedNetworks {
		dated[i] = DatedNetworkResponse{Dates: d.Dates, Network: toNodeResponse(d.Network)}
	}
	return FlowNetworkDataResponse{
		EdgeMetadataList: resp.EdgeMetadataList,
		NodeMetadataList: resp.NodeMetadataList,
		DatedNetworks:    dated,
		SkippedDates:     resp.SkippedDates,
	}
}

func toNodeResponse(node *models.NetworkNode) *NetworkNodeResponse {
	if node == nil {
		return nil
	}
	out := &NetworkNodeResponse{
		NodeLabel: node.Label,
		NodeType:  node.Kind,
		EdgeLabel: node.EdgeLabel,
		NodeData:  nullableSeries(node.NodeData),
		EdgeData:  nullableSeries(node.EdgeData),
		Children:  make([]*NetworkNodeResponse, len(node.Children)),
	}
	for i, child := range node.Children {
		out.Children[i] = toNodeResponse(child)
	}
	return out
}

// nullableSeries maps NaN samples to nil so they encode as null
func nullableSeries(data map[models.Quantity][]float64) map[models.Quantity][]*float64 {
	out := make(map[models.Quantity][]*float64, len(data))
	for q, values := range data {
		series := make([]*float64, len(values))
		for i := range values {
			if !math.IsNaN(values[i]) && !math.IsInf(values[i], 0) {
				v := values[i]
				series[i] = &v
			}
		}
		out[q] = series
	}
	return out
}

// statusForError maps an error kind to an HTTP status
func statusForError(err error) (int, models.ErrorKind) {
	if errors.Is(err, context.DeadlineExceeded) {
		return http.StatusGatewayTimeout, models.KindInternal
	}
	var kinded models.KindedError
	if !errors.As(err, &kinded) {
		return http.StatusInternalServerError, models.KindInternal
	}
	switch kinded.Kind() {
	case models.KindNoData:
		return http.StatusNotFound, models.KindNoData
	case models.KindInvalidConfiguration:
		return http.StatusUnprocessableEntity, models.KindInvalidConfiguration
	case models.KindBadRequest:
		return http.StatusBadRequest, models.KindBadRequest
	}
	return http.StatusInternalServerError, models.KindInternal
}

func (h *FlowNetworkHandler) sendServiceError(w http.ResponseWriter, r *http.Request, endpoint string, err error) {
	status, kind := statusForError(err)
	h.metrics.RecordAPIError(string(kind), endpoint)

	message := err.Error()
	if status >= http.StatusInternalServerError {
		h.logger.Error(r.Context(), "[API_FLOW_NETWORK_ERROR] Failed to assemble flow network", logging.Fields{
			"endpoint": endpoint,
			"query":    r.URL.RawQuery,
		}, err)
		message = "failed to assemble flow network"
	}
	h.sendError(w, r, message, status, kind)
}

// sendJSON sends a JSON response
func (h *FlowNetworkHandler) sendJSON(w http.ResponseWriter, data interface{}, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(data)
}

// sendError sends an error response
func (h *FlowNetworkHandler) sendError(w http.ResponseWriter, r *http.Request, message string, statusCode int, kind models.ErrorKind) {
	h.metrics.RecordAPIRequest(r.URL.Path, r.Method, strconv.Itoa(statusCode))

	response := ErrorResponse{
		Error:   http.StatusText(statusCode),
		Message: message,
		Code:    statusCode,
		Kind:    string(kind),
	}

	h.sendJSON(w, response, statusCode)
}

// RegisterRoutes registers all flow network API routes
func (h *FlowNetworkHandler) RegisterRoutes(router *mux.Router) {
	router.HandleFunc("/api/flow-network", h.GetFlowNetwork).Methods("GET")
	router.HandleFunc("/api/ensembles", h.ListEnsembles).Methods("GET")
	router.HandleFunc("/api/docs", SwaggerUI).Methods("GET")
	router.HandleFunc(openAPIPath, OpenAPISpec).Methods("GET")
	router.HandleFunc("/health", h.HealthCheck).Methods("GET")
}
