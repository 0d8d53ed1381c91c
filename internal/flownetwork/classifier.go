package flownetwork

import (
	"sort"

	"flownetwork-platform/internal/models"
)

var (
	productionRates = []models.Quantity{models.QuantityOilRate, models.QuantityGasRate, models.QuantityWaterRate}
	injectionRates  = []models.Quantity{models.QuantityWaterInjRate, models.QuantityGasInjRate}
)

// ClassifyNodes classifies every CHILD node of the table as producer, injector or other.
//
// Leaves are classified from evidence: wells from their WSTAT codes, group leaves from
// the sign of their summed rate vectors. Parents are then classified frontier by frontier:
// a parent is ready once all of its children are classified and becomes the OR of them.
// Nodes never reached indicate a cycle or a dangling node and fail the request.
func ClassifyNodes(table *models.GroupTreeTable, wells []string, summary *models.SummaryTable, treeType models.TreeType) (map[string]models.NodeClassification, error) {
	isWell := make(map[string]bool, len(wells))
	for _, w := range wells {
		isWell[w] = true
	}

	nodes := make(map[string]bool)
	keywords := make(map[string]models.Keyword)
	for _, row := range table.Rows {
		if row.Parent == row.Child {
			return nil, &models.InternalConsistencyError{Message: "node is its own parent", Nodes: []string{row.Child}}
		}
		nodes[row.Child] = true
		keywords[row.Child] = row.Keyword
	}

	// children per parent over the union of all dates, restricted to known nodes
	children := make(map[string]map[string]bool)
	parents := make(map[string]map[string]bool)
	for _, row := range table.Rows {
		if !nodes[row.Parent] {
			continue
		}
		if children[row.Parent] == nil {
			children[row.Parent] = make(map[string]bool)
		}
		children[row.Parent][row.Child] = true
		if parents[row.Child] == nil {
			parents[row.Child] = make(map[string]bool)
		}
		parents[row.Child][row.Parent] = true
	}

	classified := make(map[string]models.NodeClassification, len(nodes))
	pending := make(map[string]int, len(children))
	for parent, kids := range children {
		pending[parent] = len(kids)
	}

	var frontier []string
	for _, name := range sortedKeys(nodes) {
		if _, isParent := children[name]; isParent {
			continue
		}
		if isWell[name] {
			classified[name] = classifyWellLeaf(name, summary)
		} else {
			classified[name] = classifyGroupLeaf(name, keywords[name], summary, treeType)
		}
		frontier = append(frontier, name)
	}

	for len(frontier) > 0 {
		ready := make(map[string]bool)
		for _, child := range frontier {
			for parent := range parents[child] {
				pending[parent]--
				if pending[parent] == 0 {
					ready[parent] = true
				}
			}
		}
		frontier = frontier[:0]
		for _, parent := range sortedKeys(ready) {
			var c models.NodeClassification
			for child := range children[parent] {
				c = c.Or(classified[child])
			}
			classified[parent] = c
			frontier = append(frontier, parent)
		}
	}

	if len(classified) != len(nodes) {
		var unclassified []string
		for name := range nodes {
			if _, ok := classified[name]; !ok {
				unclassified = append(unclassified, name)
			}
		}
		sort.Strings(unclassified)
		return nil, &models.InternalConsistencyError{Message: "nodes left unclassified", Nodes: unclassified}
	}
	return classified, nil
}

func classifyWellLeaf(well string, summary *models.SummaryTable) models.NodeClassification {
	status := WellStatusVectorName(well)
	c := models.NodeClassification{
		IsProducer: summary.Contains(status, wellStatusProducer),
		IsInjector: summary.Contains(status, wellStatusInjector),
	}
	c.IsOther = !c.IsProducer && !c.IsInjector
	return c
}

func classifyGroupLeaf(group string, keyword models.Keyword, summary *models.SummaryTable, treeType models.TreeType) models.NodeClassification {
	c := models.NodeClassification{
		IsProducer: sumQuantities(group, keyword, productionRates, summary) > 0,
	}
	if treeType == models.TreeTypeGruptree {
		c.IsInjector = sumQuantities(group, keyword, injectionRates, summary) > 0
	}
	c.IsOther = !c.IsProducer && !c.IsInjector
	return c
}

func sumQuantities(node string, keyword models.Keyword, quantities []models.Quantity, summary *models.SummaryTable) float64 {
	total := 0.0
	for _, q := range quantities {
		name, err := ResolveVectorName(q, node, keyword)
		if err != nil {
			continue
		}
		total += summary.Sum(name)
	}
	return total
}

// ClassifyNetwork derives the tree-wide injection facts from the terminal node and the
// field-level injection rates
func ClassifyNetwork(terminalNode string, classifications map[string]models.NodeClassification, summary *models.SummaryTable) models.NetworkClassification {
	terminal := classifications[terminalNode]
	return models.NetworkClassification{
		TerminalNodeName:  terminalNode,
		HasWaterInjection: terminal.IsInjector && summary.Sum(FieldWaterInjRate) > 0,
		HasGasInjection:   terminal.IsInjector && summary.Sum(FieldGasInjRate) > 0,
	}
}

// FilterByNodeTypes keeps the rows whose child matches one of the selected node types.
// The terminal node is always kept.
func FilterByNodeTypes(table *models.GroupTreeTable, classifications map[string]models.NodeClassification, types models.NodeTypeSet, terminalNode string) *models.GroupTreeTable {
	if len(types) == 0 || (types[models.NodeTypeProducer] && types[models.NodeTypeInjector] && types[models.NodeTypeOther]) {
		return table
	}
	rows := make([]models.GroupTreeRow, 0, len(table.Rows))
	for _, row := range table.Rows {
		if row.Child == terminalNode || classifications[row.Child].Matches(types) {
			rows = append(rows, row)
		}
	}
	return table.WithRows(rows)
}
