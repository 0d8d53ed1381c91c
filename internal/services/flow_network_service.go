package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"

	"flownetwork-platform/internal/flownetwork"
	"flownetwork-platform/internal/models"
	"flownetwork-platform/internal/repository"
	"flownetwork-platform/pkg/logging"
	"flownetwork-platform/pkg/metrics"
)

var requestValidator = validator.New()

// SourceFactory binds the upstream stores to one ensemble
type SourceFactory interface {
	Sources(ctx context.Context, key repository.EnsembleKey) (flownetwork.Sources, error)
}

// StoreSourceFactory builds ensemble sources from a group tree store and a summary store
type StoreSourceFactory struct {
	Ensembles repository.EnsembleStore
	Trees     repository.GroupTreeStore
	Summaries repository.SummaryStore
}

// NewStoreSourceFactory creates a source factory over the given stores
func NewStoreSourceFactory(ensembles repository.EnsembleStore, trees repository.GroupTreeStore, summaries repository.SummaryStore) *StoreSourceFactory {
	return &StoreSourceFactory{Ensembles: ensembles, Trees: trees, Summaries: summaries}
}

// Sources returns the engine sources of one ensemble. An unregistered ensemble is a NoDataError.
func (f *StoreSourceFactory) Sources(ctx context.Context, key repository.EnsembleKey) (flownetwork.Sources, error) {
	exists, err := f.Ensembles.EnsembleExists(ctx, key)
	if err != nil {
		return flownetwork.Sources{}, err
	}
	if !exists {
		return flownetwork.Sources{}, &models.NoDataError{Resource: "ensemble", ID: key.String()}
	}

	s := repository.NewEnsembleSources(key, f.Trees, f.Summaries)
	return flownetwork.Sources{GroupTrees: s, Catalog: s, Summaries: s}, nil
}

// FlowNetworkRequest selects the ensemble, realization and shaping options of one assembly
type FlowNetworkRequest struct {
	CaseUUID            string `validate:"required,uuid"`
	EnsembleName        string `validate:"required,max=128"`
	Realization         int    `validate:"min=0"`
	Mode                models.AssemblyMode
	TreeType            models.TreeType
	TerminalNode        string `validate:"omitempty,max=64"`
	Frequency           models.Frequency
	NodeTypes           models.NodeTypeSet
	ExcludeWellPrefixes []string
	ExcludeWellSuffixes []string
}

// FlowNetworkResponse is the assembled flow network data of one realization
type FlowNetworkResponse struct {
	EdgeMetadataList []models.FlowNetworkMetadata `json:"edge_metadata_list"`
	NodeMetadataList []models.FlowNetworkMetadata `json:"node_metadata_list"`
	DatedNetworks    []models.DatedFlowNetwork    `json:"dated_networks"`
	SkippedDates     []string                     `json:"skipped_dates"`
}

// FlowNetworkDefaults are applied to request fields left empty
type FlowNetworkDefaults struct {
	TerminalNode        string
	TreeType            models.TreeType
	Frequency           models.Frequency
	ExcludeWellPrefixes []string
	ExcludeWellSuffixes []string
	RequestTimeout      time.Duration
}

// FlowNetworkService assembles dated flow networks, one assembler per request
type FlowNetworkService struct {
	sources  SourceFactory
	defaults FlowNetworkDefaults
	logger   *logging.StructuredLogger
	metrics  *metrics.Collector
}

// NewFlowNetworkService creates a new flow network service
func NewFlowNetworkService(
	sources SourceFactory,
	defaults FlowNetworkDefaults,
	logger *logging.StructuredLogger,
	metricsCollector *metrics.Collector,
) *FlowNetworkService {
	return &FlowNetworkService{
		sources:  sources,
		defaults: defaults,
		logger:   logger,
		metrics:  metricsCollector,
	}
}

// GetFlowNetwork fetches the realization's data and builds its dated networks
func (s *FlowNetworkService) GetFlowNetwork(ctx context.Context, req FlowNetworkRequest) (*FlowNetworkResponse, error) {
	if err := requestValidator.Struct(req); err != nil {
		return nil, requestValidationError(err)
	}
	opts := s.options(req)

	if s.defaults.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.defaults.RequestTimeout)
		defer cancel()
	}
	ctx = logging.WithCaseUUID(ctx, req.CaseUUID)

	s.logger.Info(ctx, "[FLOWNET_START] Assembling flow network", logging.Fields{
		"ensemble":      req.EnsembleName,
		"realization":   opts.Realization,
		"tree_type":     string(opts.TreeType),
		"terminal_node": opts.TerminalNode,
		"frequency":     string(opts.Frequency),
	})

	key := repository.EnsembleKey{CaseUUID: req.CaseUUID, Ensemble: req.EnsembleName}
	timer := s.metrics.NewTimer(s.metrics.AssemblyDuration.WithLabelValues("fetch_and_initialize"))
	sources, err := s.sources.Sources(ctx, key)
	if err != nil {
		s.recordFailure(ctx, "fetch_and_initialize", err)
		return nil, err
	}
	assembler := flownetwork.NewAssembler(sources, opts, s.logger)
	if err := assembler.FetchAndInitialize(ctx); err != nil {
		s.recordFailure(ctx, "fetch_and_initialize", err)
		return nil, err
	}
	timer.ObserveDuration()

	timer = s.metrics.NewTimer(s.metrics.AssemblyDuration.WithLabelValues("build"))
	result, err := assembler.CreateDatedNetworksAndMetadataLists(ctx)
	if err != nil {
		s.recordFailure(ctx, "build", err)
		return nil, err
	}
	duration := timer.ObserveDuration()

	fetched := 0
	if binding := assembler.Binding(); binding != nil {
		fetched = len(binding.AllVectors)
	}
	s.metrics.RecordAssembly(len(result.DatedNetworks), len(result.SkippedDates), fetched)

	s.logger.Info(ctx, "[FLOWNET_COMPLETE] Flow network assembled", logging.Fields{
		"ensemble":       req.EnsembleName,
		"realization":    opts.Realization,
		"networks":       len(result.DatedNetworks),
		"skipped_dates":  len(result.SkippedDates),
		"edge_options":   len(result.EdgeMetadata),
		"build_duration": duration.Milliseconds(),
	})

	skipped := make([]string, len(result.SkippedDates))
	for i, d := range result.SkippedDates {
		skipped[i] = d.Format(models.DateLayout)
	}
	return &FlowNetworkResponse{
		EdgeMetadataList: result.EdgeMetadata,
		NodeMetadataList: result.NodeMetadata,
		DatedNetworks:    result.DatedNetworks,
		SkippedDates:     skipped,
	}, nil
}

func (s *FlowNetworkService) options(req FlowNetworkRequest) flownetwork.Options {
	opts := flownetwork.Options{
		Mode:                req.Mode,
		Realization:         req.Realization,
		TreeType:            req.TreeType,
		TerminalNode:        req.TerminalNode,
		ExcludeWellPrefixes: req.ExcludeWellPrefixes,
		ExcludeWellSuffixes: req.ExcludeWellSuffixes,
		NodeTypes:           req.NodeTypes,
		Frequency:           req.Frequency,
	}
	if opts.TreeType == "" {
		opts.TreeType = s.defaults.TreeType
	}
	if opts.TerminalNode == "" {
		opts.TerminalNode = s.defaults.TerminalNode
	}
	if opts.Frequency == models.FrequencyRaw {
		opts.Frequency = s.defaults.Frequency
	}
	if opts.ExcludeWellPrefixes == nil {
		opts.ExcludeWellPrefixes = s.defaults.ExcludeWellPrefixes
	}
	if opts.ExcludeWellSuffixes == nil {
		opts.ExcludeWellSuffixes = s.defaults.ExcludeWellSuffixes
	}
	return opts
}

func (s *FlowNetworkService) recordFailure(ctx context.Context, phase string, err error) {
	kind := string(models.KindInternal)
	var kinded models.KindedError
	if errors.As(err, &kinded) {
		kind = string(kinded.Kind())
	}
	s.metrics.RecordAssemblyError(kind)

	fields := logging.Fields{"phase": phase, "kind": kind}
	if kind == string(models.KindInternal) {
		s.logger.Error(ctx, "[FLOWNET_ERROR] Flow network assembly failed", fields, err)
		return
	}
	s.logger.Warn(ctx, "[FLOWNET_REJECTED] Flow network assembly rejected: "+err.Error(), fields)
}

func requestValidationError(err error) error {
	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return &models.ValidationError{Message: err.Error()}
	}

	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		messages = append(messages, fmt.Sprintf("%s failed on %s", toSnakeCase(fe.Field()), fe.Tag()))
	}
	first := validationErrors[0]
	return &models.ValidationError{
		Field:   toSnakeCase(first.Field()),
		Value:   fmt.Sprint(first.Value()),
		Message: strings.Join(messages, "; "),
	}
}

func toSnakeCase(s string) string {
	var b strings.Builder
	for i, r := range s {
		if r >= 'A' && r <= 'Z' {
			if i > 0 && !(s[i-1] >= 'A' && s[i-1] <= 'Z') {
				b.WriteByte('_')
			}
			r += 'a' - 'A'
		}
		b.WriteRune(r)
	}
	return b.String()
}
