package flownetwork

import (
	"sort"
	"strings"

	"flownetwork-platform/internal/models"
)

// SummaryBinding is the result of binding every node to its summary vectors
type SummaryBinding struct {
	WorkingData map[string]models.StaticNodeWorkingData
	AllVectors  []string
	EdgeVectors []string
	NodeVectors []string
}

// CandidateVectors returns every vector any node of the table could need: all
// quantities of its naming family, WSTAT for wells, and the field-level aggregates.
// The result is sorted.
func CandidateVectors(table *models.GroupTreeTable) []string {
	set := map[string]bool{
		FieldOilRate:      true,
		FieldGasRate:      true,
		FieldWaterRate:    true,
		FieldWaterInjRate: true,
		FieldGasInjRate:   true,
	}
	for _, row := range table.Rows {
		for _, q := range models.AllQuantities {
			if name, err := ResolveVectorName(q, row.Child, row.Keyword); err == nil {
				set[name] = true
			}
		}
		if row.Keyword == models.KeywordWelspecs {
			set[WellStatusVectorName(row.Child)] = true
		}
	}
	return sortedKeys(set)
}

// IntersectAvailable keeps the vectors present in the available set, preserving order
func IntersectAvailable(vectors []string, available map[string]bool) []string {
	out := make([]string, 0, len(vectors))
	for _, v := range vectors {
		if available[v] {
			out = append(out, v)
		}
	}
	return out
}

// CheckInjectionDependencies verifies that requesting any well or group injection
// vector is backed by the field-level aggregate it is judged against
func CheckInjectionDependencies(requested []string, available map[string]bool) error {
	var missing []string
	if hasAnyPrefix(requested, "WWIR:", "GWIR:") && !available[FieldWaterInjRate] {
		missing = append(missing, FieldWaterInjRate)
	}
	if hasAnyPrefix(requested, "WGIR:", "GGIR:") && !available[FieldGasInjRate] {
		missing = append(missing, FieldGasInjRate)
	}
	if len(missing) > 0 {
		return &models.MissingVectorsError{Context: "required to determine network injection", Vectors: missing}
	}
	return nil
}

func hasAnyPrefix(names []string, prefixes ...string) bool {
	for _, name := range names {
		for _, p := range prefixes {
			if strings.HasPrefix(name, p) {
				return true
			}
		}
	}
	return false
}

// BindSummaryVectors resolves, for every distinct (node, keyword) pair of the table,
// the vectors of its relevant quantities and accumulates the network-wide vector sets
func BindSummaryVectors(
	table *models.GroupTreeTable,
	classifications map[string]models.NodeClassification,
	network models.NetworkClassification,
	available map[string]bool,
) (*SummaryBinding, error) {
	working := make(map[string]models.StaticNodeWorkingData)
	all := make(map[string]bool)
	edges := make(map[string]bool)
	nodeVecs := make(map[string]bool)
	type nodeKey struct {
		name    string
		keyword models.Keyword
	}
	seen := make(map[nodeKey]bool)

	for _, row := range table.Rows {
		key := nodeKey{row.Child, row.Keyword}
		if seen[key] {
			continue
		}
		seen[key] = true

		classification, ok := classifications[row.Child]
		if !ok {
			return nil, &models.InternalConsistencyError{Message: "node has no classification", Nodes: []string{row.Child}}
		}

		data, ok := working[row.Child]
		if !ok {
			data = models.StaticNodeWorkingData{
				NodeName:           row.Child,
				Classification:     classification,
				SummaryVectorsInfo: make(map[string]models.SummaryVectorInfo),
			}
		}

		isTerminal := row.Child == network.TerminalNodeName
		isWell := row.Keyword == models.KeywordWelspecs
		for _, q := range RelevantQuantities(classification, isTerminal, network, isWell) {
			if !SupportsQuantity(q, row.Child, row.Keyword) {
				continue
			}
			name, err := ResolveVectorName(q, row.Child, row.Keyword)
			if err != nil {
				return nil, err
			}
			info := models.SummaryVectorInfo{Quantity: q, EdgeOrNode: models.EdgeOrNodeOf(q)}
			data.SummaryVectorsInfo[name] = info
			all[name] = true
			if info.EdgeOrNode == models.Edge {
				edges[name] = true
			} else {
				nodeVecs[name] = true
			}
		}
		working[row.Child] = data
	}

	var missing []string
	for name := range edges {
		if !available[name] {
			missing = append(missing, name)
		}
	}
	if len(missing) > 0 {
		sort.Strings(missing)
		return nil, &models.MissingVectorsError{Context: "for edges in the flow network", Vectors: missing}
	}

	nodeNames := table.NodeNames()
	if len(nodeNames) != len(working) {
		return nil, &models.InternalConsistencyError{Message: "working data does not cover the node set"}
	}
	for _, name := range nodeNames {
		if _, ok := working[name]; !ok {
			return nil, &models.InternalConsistencyError{Message: "node without working data", Nodes: []string{name}}
		}
	}

	return &SummaryBinding{
		WorkingData: working,
		AllVectors:  sortedKeys(all),
		EdgeVectors: sortedKeys(edges),
		NodeVectors: sortedKeys(nodeVecs),
	}, nil
}
