package flownetwork

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"flownetwork-platform/internal/models"
	"flownetwork-platform/pkg/logging"
)

// GroupTreeSource delivers the raw group tree table of a realization
type GroupTreeSource interface {
	GetGroupTreeTable(ctx context.Context, realization int) (*models.GroupTreeTable, error)
}

// SummaryCatalog lists the summary vectors available in the ensemble
type SummaryCatalog interface {
	GetAvailableVectorNames(ctx context.Context) ([]string, error)
}

// SummarySource delivers resampled summary vectors of a single realization
type SummarySource interface {
	GetSingleRealVectorsTable(ctx context.Context, vectorNames []string, frequency models.Frequency, realization int) (*models.SummaryTable, error)
}

// Sources bundles the upstream collaborators of one ensemble
type Sources struct {
	GroupTrees GroupTreeSource
	Catalog    SummaryCatalog
	Summaries  SummarySource
}

// Options configures one assembly
type Options struct {
	Mode                models.AssemblyMode
	Realization         int
	TreeType            models.TreeType
	TerminalNode        string
	ExcludeWellPrefixes []string
	ExcludeWellSuffixes []string
	NodeTypes           models.NodeTypeSet
	Frequency           models.Frequency
}

type assemblerState int

const (
	stateUnconfigured assemblerState = iota
	stateInitialized
	stateBuilt
)

// Result is the output of one build: the dated networks and the selectable quantities
type Result struct {
	DatedNetworks []models.DatedFlowNetwork
	EdgeMetadata  []models.FlowNetworkMetadata
	NodeMetadata  []models.FlowNetworkMetadata
	SkippedDates  []time.Time
}

// Assembler turns a realization's group tree and summary vectors into dated flow
// networks. It is single-use: create one per request, call FetchAndInitialize, then
// CreateDatedNetworksAndMetadataLists. Not safe for concurrent use.
type Assembler struct {
	sources Sources
	opts    Options
	logger  *logging.StructuredLogger

	state           assemblerState
	table           *models.GroupTreeTable
	summary         *models.SummaryTable
	classifications map[string]models.NodeClassification
	network         models.NetworkClassification
	binding         *SummaryBinding
}

// NewAssembler creates an assembler in the unconfigured state
func NewAssembler(sources Sources, opts Options, logger *logging.StructuredLogger) *Assembler {
	if opts.Mode == "" {
		opts.Mode = models.ModeSingleRealization
	}
	if opts.TerminalNode == "" {
		opts.TerminalNode = FieldNodeName
	}
	if opts.TreeType == "" {
		opts.TreeType = models.TreeTypeGruptree
	}
	if opts.NodeTypes == nil {
		opts.NodeTypes = models.AllNodeTypes()
	}
	return &Assembler{
		sources: sources,
		opts:    opts,
		logger:  logger,
	}
}

// FetchAndInitialize fetches the group tree and the vector catalog concurrently,
// filters and classifies the tree, fetches every needed summary vector in one call
// and binds nodes to vectors
func (a *Assembler) FetchAndInitialize(ctx context.Context) error {
	if a.opts.Mode != models.ModeSingleRealization {
		return &models.UnsupportedModeError{Mode: a.opts.Mode}
	}

	start := time.Now()
	var (
		table      *models.GroupTreeTable
		vectorList []string
	)
	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		vectorList, err = a.sources.Catalog.GetAvailableVectorNames(gCtx)
		if err != nil {
			return fmt.Errorf("failed to get available vector names: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		table, err = a.sources.GroupTrees.GetGroupTreeTable(gCtx, a.opts.Realization)
		if err != nil {
			return fmt.Errorf("failed to get group tree table: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return err
	}

	available := make(map[string]bool, len(vectorList))
	for _, v := range vectorList {
		available[v] = true
	}

	filter, err := NewGroupTreeFilter(table, a.opts.TreeType)
	if err != nil {
		return err
	}
	filtered, err := filter.Filter(a.opts.TerminalNode, a.opts.ExcludeWellPrefixes, a.opts.ExcludeWellSuffixes)
	if err != nil {
		return err
	}

	requested := IntersectAvailable(CandidateVectors(filtered), available)
	if err := CheckInjectionDependencies(requested, available); err != nil {
		return err
	}

	summary, err := a.sources.Summaries.GetSingleRealVectorsTable(ctx, requested, a.opts.Frequency, a.opts.Realization)
	if err != nil {
		return fmt.Errorf("failed to get summary vectors: %w", err)
	}

	classifications, err := ClassifyNodes(filtered, filter.Wells(), summary, a.opts.TreeType)
	if err != nil {
		return err
	}
	network := ClassifyNetwork(a.opts.TerminalNode, classifications, summary)

	pruned := FilterByNodeTypes(filtered, classifications, a.opts.NodeTypes, a.opts.TerminalNode)
	binding, err := BindSummaryVectors(pruned, classifications, network, available)
	if err != nil {
		return err
	}

	a.table = pruned
	a.summary = summary
	a.classifications = classifications
	a.network = network
	a.binding = binding
	a.state = stateInitialized

	a.logger.Debug(ctx, "[ASSEMBLER_INIT] Flow network assembler initialized", logging.Fields{
		"realization":         a.opts.Realization,
		"tree_type":           string(a.opts.TreeType),
		"terminal_node":       a.opts.TerminalNode,
		"nodes":               len(binding.WorkingData),
		"fetched_vectors":     len(requested),
		"bound_vectors":       len(binding.AllVectors),
		"has_water_injection": network.HasWaterInjection,
		"has_gas_injection":   network.HasGasInjection,
		"duration_ms":         time.Since(start).Milliseconds(),
	})
	return nil
}

// CreateDatedNetworksAndMetadataLists builds one network per non-empty validity window
// and the selectable edge and node quantities
func (a *Assembler) CreateDatedNetworksAndMetadataLists(ctx context.Context) (*Result, error) {
	if a.state == stateUnconfigured {
		return nil, &models.NotInitializedError{Operation: "CreateDatedNetworksAndMetadataLists"}
	}

	seg := SegmentTimeWindows(a.table, a.summary)
	for _, skipped := range seg.Skipped {
		a.logger.Warn(ctx, "[ASSEMBLER_EMPTY_WINDOW] No summary samples in tree validity window", logging.Fields{
			"tree_date":   skipped.Format(models.DateLayout),
			"realization": a.opts.Realization,
		})
	}

	dated := make([]models.DatedFlowNetwork, 0, len(seg.Windows))
	for _, window := range seg.Windows {
		root, err := BuildNetwork(window.Rows, a.binding.WorkingData, window.Summary, a.opts.TerminalNode, window.TreeDate)
		if err != nil {
			return nil, err
		}
		dated = append(dated, models.DatedFlowNetwork{
			Dates:   window.DateStrings(),
			Network: root,
		})
	}
	a.state = stateBuilt

	return &Result{
		DatedNetworks: dated,
		EdgeMetadata:  a.edgeMetadata(),
		NodeMetadata:  nodeMetadata(),
		SkippedDates:  seg.Skipped,
	}, nil
}

// NetworkClassification returns the tree-wide classification after initialization
func (a *Assembler) NetworkClassification() models.NetworkClassification {
	return a.network
}

// Classifications returns the per-node classification after initialization
func (a *Assembler) Classifications() map[string]models.NodeClassification {
	return a.classifications
}

// Binding returns the node to vector binding after initialization
func (a *Assembler) Binding() *SummaryBinding {
	return a.binding
}

func (a *Assembler) edgeMetadata() []models.FlowNetworkMetadata {
	anyProducer := false
	for name := range a.binding.WorkingData {
		if a.classifications[name].IsProducer {
			anyProducer = true
			break
		}
	}

	out := make([]models.FlowNetworkMetadata, 0, 5)
	if anyProducer && a.opts.NodeTypes[models.NodeTypeProducer] {
		for _, q := range productionRates {
			out = append(out, models.MetadataFor(q))
		}
	}
	if a.opts.NodeTypes[models.NodeTypeInjector] {
		if a.network.HasWaterInjection {
			out = append(out, models.MetadataFor(models.QuantityWaterInjRate))
		}
		if a.network.HasGasInjection {
			out = append(out, models.MetadataFor(models.QuantityGasInjRate))
		}
	}
	return out
}

func nodeMetadata() []models.FlowNetworkMetadata {
	return []models.FlowNetworkMetadata{
		models.MetadataFor(models.QuantityPressure),
		models.MetadataFor(models.QuantityBHP),
		models.MetadataFor(models.QuantityWMCTL),
	}
}
