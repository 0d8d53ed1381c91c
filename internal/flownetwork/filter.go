package flownetwork

import (
	"sort"
	"strings"

	"flownetwork-platform/internal/models"
)

// GroupTreeFilter holds a schema-checked group tree restricted to one dialect
type GroupTreeFilter struct {
	table    *models.GroupTreeTable
	treeType models.TreeType
	wells    []string
	groups   []string
}

// NewGroupTreeFilter validates the table and drops rows of the dialect not requested.
// WELSPECS rows are always kept.
func NewGroupTreeFilter(table *models.GroupTreeTable, treeType models.TreeType) (*GroupTreeFilter, error) {
	if err := ValidateGroupTreeSchema(table); err != nil {
		return nil, err
	}

	wanted := treeType.Keyword()
	found := false
	rows := make([]models.GroupTreeRow, 0, len(table.Rows))
	for _, row := range table.Rows {
		if row.Keyword == wanted {
			found = true
		}
		if row.Keyword == models.KeywordWelspecs || row.Keyword == wanted {
			rows = append(rows, row)
		}
	}
	if !found {
		return nil, &models.SchemaError{Message: "tree type " + string(treeType) + " does not occur in the group tree"}
	}

	f := &GroupTreeFilter{
		table:    table.WithRows(rows),
		treeType: treeType,
	}
	f.wells, f.groups = splitNodeNames(rows)
	return f, nil
}

// ValidateGroupTreeSchema checks required columns and keyword values
func ValidateGroupTreeSchema(table *models.GroupTreeTable) error {
	if table == nil {
		return &models.SchemaError{MissingColumns: models.RequiredGroupTreeColumns}
	}
	var missing []string
	for _, col := range models.RequiredGroupTreeColumns {
		if !table.HasColumn(col) {
			missing = append(missing, col)
		}
	}
	if len(missing) > 0 {
		return &models.SchemaError{MissingColumns: missing}
	}
	for _, row := range table.Rows {
		if !row.Keyword.Valid() {
			return &models.SchemaError{Message: "unknown keyword " + string(row.Keyword) + " for node " + row.Child}
		}
	}
	return nil
}

func splitNodeNames(rows []models.GroupTreeRow) (wells, groups []string) {
	wellSet := make(map[string]bool)
	groupSet := make(map[string]bool)
	for _, row := range rows {
		if row.Keyword == models.KeywordWelspecs {
			wellSet[row.Child] = true
		} else {
			groupSet[row.Child] = true
		}
	}
	return sortedKeys(wellSet), sortedKeys(groupSet)
}

// Table returns the dialect-filtered table
func (f *GroupTreeFilter) Table() *models.GroupTreeTable {
	return f.table
}

// TreeType returns the selected dialect
func (f *GroupTreeFilter) TreeType() models.TreeType {
	return f.treeType
}

// Wells returns the sorted distinct well node names
func (f *GroupTreeFilter) Wells() []string {
	return f.wells
}

// Groups returns the sorted distinct group node names
func (f *GroupTreeFilter) Groups() []string {
	return f.groups
}

// IsWell reports whether the node is a well node
func (f *GroupTreeFilter) IsWell(name string) bool {
	i := sort.SearchStrings(f.wells, name)
	return i < len(f.wells) && f.wells[i] == name
}

// Filter restricts the table to the branch below terminalNode and removes wells
// whose name starts with one of the prefixes or ends with one of the suffixes.
func (f *GroupTreeFilter) Filter(terminalNode string, excludePrefixes, excludeSuffixes []string) (*models.GroupTreeTable, error) {
	rows := f.table.Rows

	if terminalNode != "" {
		branch, ok := branchNodes(rows, terminalNode)
		if !ok {
			return nil, &models.MissingTerminalNodeError{Node: terminalNode}
		}
		kept := make([]models.GroupTreeRow, 0, len(rows))
		for _, row := range rows {
			if branch[row.Child] {
				kept = append(kept, row)
			}
		}
		rows = kept
	}

	if len(excludePrefixes) > 0 || len(excludeSuffixes) > 0 {
		kept := make([]models.GroupTreeRow, 0, len(rows))
		for _, row := range rows {
			if row.Keyword == models.KeywordWelspecs && isExcludedWell(row.Child, excludePrefixes, excludeSuffixes) {
				continue
			}
			kept = append(kept, row)
		}
		rows = kept
	}

	return f.table.WithRows(rows), nil
}

// branchNodes collects the terminal node and everything reachable downward from it.
// Upstream guarantees an acyclic edge list; nodes already in the branch are not expanded again.
func branchNodes(rows []models.GroupTreeRow, terminalNode string) (map[string]bool, bool) {
	children := make(map[string][]string)
	present := false
	for _, row := range rows {
		if row.Child == terminalNode || row.Parent == terminalNode {
			present = true
		}
		children[row.Parent] = append(children[row.Parent], row.Child)
	}
	if !present {
		return nil, false
	}

	branch := map[string]bool{terminalNode: true}
	frontier := []string{terminalNode}
	for len(frontier) > 0 {
		var next []string
		for _, parent := range frontier {
			for _, child := range children[parent] {
				if !branch[child] {
					branch[child] = true
					next = append(next, child)
				}
			}
		}
		frontier = next
	}
	return branch, true
}

func isExcludedWell(name string, prefixes, suffixes []string) bool {
	for _, p := range prefixes {
		if p != "" && strings.HasPrefix(name, p) {
			return true
		}
	}
	for _, s := range suffixes {
		if s != "" && strings.HasSuffix(name, s) {
			return true
		}
	}
	return false
}

func sortedKeys(set map[string]bool) []string {
	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
