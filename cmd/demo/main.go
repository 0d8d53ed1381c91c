package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/google/uuid"

	"flownetwork-platform/internal/handlers"
	"flownetwork-platform/internal/models"
	"flownetwork-platform/internal/repository"
	"flownetwork-platform/internal/services"
	"flownetwork-platform/pkg/logging"
	"flownetwork-platform/pkg/metrics"
)

// demo assembles flow networks from an ensemble export without any database
func main() {
	dataDir := flag.String("data-dir", "./ensemble_data", "Ensemble export directory with realization-<n> subdirectories")
	realization := flag.Int("realization", 0, "Realization to assemble")
	terminalNode := flag.String("terminal-node", "FIELD", "Root node of the networks")
	treeType := flag.String("tree-type", "GRUPTREE", "Group routing dialect: GRUPTREE or BRANPROP")
	frequency := flag.String("frequency", "", "Resampling frequency: DAILY, WEEKLY, MONTHLY, QUARTERLY or YEARLY")
	nodeTypes := flag.String("node-types", "prod,inj,other", "Comma separated node types to keep")
	jsonOut := flag.Bool("json", false, "Print the API response body instead of the tree outline")
	flag.Parse()

	fmt.Fprintln(os.Stderr, strings.Repeat("═", 64))
	fmt.Fprintln(os.Stderr, "FLOW NETWORK PLATFORM - ASSEMBLY DEMONSTRATION")
	fmt.Fprintln(os.Stderr, strings.Repeat("═", 64))

	logger := logging.NewStructuredLogger("demo", "1.0.0", logging.WarnLevel)
	metricsCollector := metrics.NewCollector("flownetwork_demo")
	ctx := context.Background()

	parsedTreeType, err := models.ParseTreeType(*treeType)
	exitOnError("invalid tree type", err)
	parsedFrequency, err := models.ParseFrequency(*frequency)
	exitOnError("invalid frequency", err)
	parsedNodeTypes, err := models.ParseNodeTypeSet(*nodeTypes)
	exitOnError("invalid node types", err)

	store := repository.NewMemoryStore()
	key := repository.EnsembleKey{CaseUUID: uuid.NewString(), Ensemble: "demo"}

	result, err := services.NewIngestionService(store, store, logger, metricsCollector).
		IngestDirectory(ctx, key, *dataDir, 5000)
	exitOnError("failed to load ensemble", err)
	fmt.Fprintf(os.Stderr, "Loaded %d realizations (%d failed), %d group tree rows, %d summary samples\n\n",
		result.TotalRealizations, result.FailedRealizations, result.GroupTreeRows, result.SummarySamples)
	for _, msg := range result.Errors {
		fmt.Fprintf(os.Stderr, "  - %s\n", msg)
	}

	flowService := services.NewFlowNetworkService(
		services.NewStoreSourceFactory(store, store, store),
		services.FlowNetworkDefaults{},
		logger,
		metricsCollector,
	)
	resp, err := flowService.GetFlowNetwork(ctx, services.FlowNetworkRequest{
		CaseUUID:     key.CaseUUID,
		EnsembleName: key.Ensemble,
		Realization:  *realization,
		TreeType:     parsedTreeType,
		TerminalNode: *terminalNode,
		Frequency:    parsedFrequency,
		NodeTypes:    parsedNodeTypes,
	})
	exitOnError("failed to assemble flow network", err)

	if *jsonOut {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		exitOnError("failed to encode response", enc.Encode(handlers.NewFlowNetworkDataResponse(resp)))
		return
	}

	fmt.Printf("Edge quantities: %s\n", metadataKeys(resp.EdgeMetadataList))
	fmt.Printf("Node quantities: %s\n", metadataKeys(resp.NodeMetadataList))
	if len(resp.SkippedDates) > 0 {
		fmt.Printf("Tree dates without samples: %s\n", strings.Join(resp.SkippedDates, ", "))
	}
	for _, dated := range resp.DatedNetworks {
		fmt.Println()
		fmt.Println(strings.Repeat("─", 64))
		fmt.Printf("%s .. %s (%d dates)\n", dated.Dates[0], dated.Dates[len(dated.Dates)-1], len(dated.Dates))
		fmt.Println(strings.Repeat("─", 64))
		printNode(dated.Network, 0)
	}
}

func printNode(node *models.NetworkNode, depth int) {
	line := fmt.Sprintf("%s%s [%s]", strings.Repeat("  ", depth), node.Label, node.Kind)
	if node.EdgeLabel != "" {
		line += " " + node.EdgeLabel
	}
	if oil, ok := node.EdgeData[models.QuantityOilRate]; ok && len(oil) > 0 {
		line += fmt.Sprintf("  oil rate %.2f", oil[len(oil)-1])
	}
	fmt.Println(line)
	for _, child := range node.Children {
		printNode(child, depth+1)
	}
}

func metadataKeys(list []models.FlowNetworkMetadata) string {
	keys := make([]string, len(list))
	for i, m := range list {
		keys[i] = m.Key
	}
	return strings.Join(keys, ", ")
}

func exitOnError(message string, err error) {
	if err == nil {
		return
	}
	fmt.Fprintf(os.Stderr, "%s: %v\n", message, err)
	os.Exit(1)
}
