package flownetwork

import (
	"math"
	"time"

	"flownetwork-platform/internal/models"
)

type flatNode struct {
	parent string
	node   *models.NetworkNode
}

// BuildNetwork builds the recursive network of one tree snapshot. Nodes are first
// created without children in a flat map keyed by name, then linked to their parent
// in row order. The root is the terminal node.
func BuildNetwork(
	rows []models.GroupTreeRow,
	workingData map[string]models.StaticNodeWorkingData,
	summary *models.SummaryTable,
	terminalNode string,
	date time.Time,
) (*models.NetworkNode, error) {
	flat := make(map[string]*flatNode, len(rows))
	order := make([]string, 0, len(rows))

	for _, row := range rows {
		kind := models.NodeKindGroup
		if row.Keyword == models.KeywordWelspecs {
			kind = models.NodeKindWell
		}
		node := &models.NetworkNode{
			Label:     row.Child,
			Kind:      kind,
			EdgeLabel: models.EdgeLabel(row.VFPTable),
			NodeData:  make(map[models.Quantity][]float64),
			EdgeData:  make(map[models.Quantity][]float64),
			Children:  []*models.NetworkNode{},
		}
		for vector, info := range workingData[row.Child].SummaryVectorsInfo {
			values := windowValues(summary, vector)
			if info.EdgeOrNode == models.Edge {
				node.EdgeData[info.Quantity] = values
			} else {
				node.NodeData[info.Quantity] = values
			}
		}
		if _, dup := flat[row.Child]; !dup {
			order = append(order, row.Child)
		}
		flat[row.Child] = &flatNode{parent: row.Parent, node: node}
	}

	root, ok := flat[terminalNode]
	if !ok {
		return nil, &models.MissingTerminalNodeError{Node: terminalNode, Date: date}
	}

	for _, name := range order {
		if name == terminalNode {
			continue
		}
		entry := flat[name]
		if parent, ok := flat[entry.parent]; ok {
			parent.node.Children = append(parent.node.Children, entry.node)
		}
	}
	return root.node, nil
}

// windowValues returns the column over the window rounded to two decimals, or a
// NaN placeholder when the vector was not fetched
func windowValues(summary *models.SummaryTable, vector string) []float64 {
	values := make([]float64, summary.Len())
	column, ok := summary.Column(vector)
	if !ok {
		for i := range values {
			values[i] = math.NaN()
		}
		return values
	}
	for i, v := range column {
		values[i] = roundTo2(v)
	}
	return values
}

func roundTo2(v float64) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	return math.Round(v*100) / 100
}
