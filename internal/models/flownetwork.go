package models

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"time"
)

// DateLayout is the date format used for dated networks and API parameters
const DateLayout = "2006-01-02"

// Group tree column names delivered by the data platform
const (
	ColumnDate     = "DATE"
	ColumnChild    = "CHILD"
	ColumnParent   = "PARENT"
	ColumnKeyword  = "KEYWORD"
	ColumnVFPTable = "VFP_TABLE"
)

// RequiredGroupTreeColumns lists the columns every group tree table must carry
var RequiredGroupTreeColumns = []string{ColumnDate, ColumnChild, ColumnParent, ColumnKeyword}

// Keyword identifies the record family a group tree edge comes from
type Keyword string

const (
	KeywordWelspecs Keyword = "WELSPECS"
	KeywordGruptree Keyword = "GRUPTREE"
	KeywordBranprop Keyword = "BRANPROP"
)

// Valid reports whether k is one of the known keywords
func (k Keyword) Valid() bool {
	switch k {
	case KeywordWelspecs, KeywordGruptree, KeywordBranprop:
		return true
	}
	return false
}

// TreeType selects one of the two mutually exclusive group routing dialects
type TreeType string

const (
	TreeTypeGruptree TreeType = "GRUPTREE"
	TreeTypeBranprop TreeType = "BRANPROP"
)

// Keyword returns the group tree keyword carrying this dialect
func (t TreeType) Keyword() Keyword {
	return Keyword(t)
}

// ParseTreeType parses a tree type, case-insensitively
func ParseTreeType(s string) (TreeType, error) {
	switch TreeType(strings.ToUpper(strings.TrimSpace(s))) {
	case TreeTypeGruptree:
		return TreeTypeGruptree, nil
	case TreeTypeBranprop:
		return TreeTypeBranprop, nil
	}
	return "", &ValidationError{Field: "tree_type", Value: s, Message: "tree type must be GRUPTREE or BRANPROP"}
}

// NodeKind is the rendered kind of a network node
type NodeKind string

const (
	NodeKindWell  NodeKind = "Well"
	NodeKindGroup NodeKind = "Group"
)

// NodeType is a user-selectable node class used to prune the network
type NodeType string

const (
	NodeTypeProducer NodeType = "prod"
	NodeTypeInjector NodeType = "inj"
	NodeTypeOther    NodeType = "other"
)

// NodeTypeSet is a set of node classes
type NodeTypeSet map[NodeType]bool

// AllNodeTypes returns a set selecting every node class
func AllNodeTypes() NodeTypeSet {
	return NodeTypeSet{NodeTypeProducer: true, NodeTypeInjector: true, NodeTypeOther: true}
}

// ParseNodeTypeSet parses a comma separated list such as "prod,inj"
func ParseNodeTypeSet(s string) (NodeTypeSet, error) {
	if strings.TrimSpace(s) == "" {
		return AllNodeTypes(), nil
	}
	set := NodeTypeSet{}
	for _, part := range strings.Split(s, ",") {
		nt := NodeType(strings.ToLower(strings.TrimSpace(part)))
		switch nt {
		case NodeTypeProducer, NodeTypeInjector, NodeTypeOther:
			set[nt] = true
		default:
			return nil, &ValidationError{Field: "node_type_set", Value: part, Message: "node type must be one of prod, inj, other"}
		}
	}
	return set, nil
}

// Frequency is the resampling frequency requested from the summary source.
// The zero value means raw sample dates.
type Frequency string

const (
	FrequencyRaw       Frequency = ""
	FrequencyDaily     Frequency = "DAILY"
	FrequencyWeekly    Frequency = "WEEKLY"
	FrequencyMonthly   Frequency = "MONTHLY"
	FrequencyQuarterly Frequency = "QUARTERLY"
	FrequencyYearly    Frequency = "YEARLY"
)

// ParseFrequency parses a resampling frequency, case-insensitively
func ParseFrequency(s string) (Frequency, error) {
	f := Frequency(strings.ToUpper(strings.TrimSpace(s)))
	switch f {
	case FrequencyRaw, FrequencyDaily, FrequencyWeekly, FrequencyMonthly, FrequencyQuarterly, FrequencyYearly:
		return f, nil
	}
	return "", &ValidationError{Field: "resampling_frequency", Value: s, Message: "unknown resampling frequency"}
}

// AssemblyMode selects single realization or statistical assembly
type AssemblyMode string

const (
	ModeSingleRealization AssemblyMode = "single_realization"
	ModeStatistics        AssemblyMode = "statistics"
)

// Quantity is a physical quantity drawn on a network edge or node
type Quantity string

const (
	QuantityOilRate      Quantity = "oilrate"
	QuantityGasRate      Quantity = "gasrate"
	QuantityWaterRate    Quantity = "waterrate"
	QuantityWaterInjRate Quantity = "waterinjrate"
	QuantityGasInjRate   Quantity = "gasinjrate"
	QuantityPressure     Quantity = "pressure"
	QuantityBHP          Quantity = "bhp"
	QuantityWMCTL        Quantity = "wmctl"
)

// AllQuantities lists every quantity in display order
var AllQuantities = []Quantity{
	QuantityOilRate,
	QuantityGasRate,
	QuantityWaterRate,
	QuantityWaterInjRate,
	QuantityGasInjRate,
	QuantityPressure,
	QuantityBHP,
	QuantityWMCTL,
}

var quantityLabels = map[Quantity]string{
	QuantityOilRate:      "Oil Rate",
	QuantityGasRate:      "Gas Rate",
	QuantityWaterRate:    "Water Rate",
	QuantityWaterInjRate: "Water Inj Rate",
	QuantityGasInjRate:   "Gas Inj Rate",
	QuantityPressure:     "Pressure",
	QuantityBHP:          "BHP",
	QuantityWMCTL:        "WMCTL",
}

// Label returns the human readable name of the quantity
func (q Quantity) Label() string {
	if l, ok := quantityLabels[q]; ok {
		return l
	}
	return string(q)
}

// IsRate reports whether the quantity is a flow rate
func (q Quantity) IsRate() bool {
	switch q {
	case QuantityOilRate, QuantityGasRate, QuantityWaterRate, QuantityWaterInjRate, QuantityGasInjRate:
		return true
	}
	return false
}

// EdgeOrNode tells whether a quantity is drawn on the edge feeding a node or on the node itself
type EdgeOrNode string

const (
	Edge EdgeOrNode = "edge"
	Node EdgeOrNode = "node"
)

// EdgeOrNodeOf returns where the quantity belongs: rates go on edges, the rest on nodes
func EdgeOrNodeOf(q Quantity) EdgeOrNode {
	if q.IsRate() {
		return Edge
	}
	return Node
}

// GroupTreeRow is one parent/child edge of the group tree valid at Date
type GroupTreeRow struct {
	Date     time.Time `json:"date" db:"date"`
	Child    string    `json:"child" db:"child"`
	Parent   string    `json:"parent" db:"parent"`
	Keyword  Keyword   `json:"keyword" db:"keyword"`
	VFPTable *int      `json:"vfp_table,omitempty" db:"vfp_table"`
}

// GroupTreeTable is the edge list of the group tree over time.
// Columns holds the column names delivered by the source.
type GroupTreeTable struct {
	Columns []string
	Rows    []GroupTreeRow
}

// HasColumn reports whether the table was delivered with the named column
func (t *GroupTreeTable) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Dates returns the distinct row dates in ascending order
func (t *GroupTreeTable) Dates() []time.Time {
	seen := make(map[time.Time]bool)
	dates := make([]time.Time, 0)
	for _, row := range t.Rows {
		if !seen[row.Date] {
			seen[row.Date] = true
			dates = append(dates, row.Date)
		}
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates
}

// NodeNames returns the distinct CHILD names in first-seen order
func (t *GroupTreeTable) NodeNames() []string {
	seen := make(map[string]bool)
	names := make([]string, 0)
	for _, row := range t.Rows {
		if !seen[row.Child] {
			seen[row.Child] = true
			names = append(names, row.Child)
		}
	}
	return names
}

// WithRows returns a table with the same columns and the given rows
func (t *GroupTreeTable) WithRows(rows []GroupTreeRow) *GroupTreeTable {
	return &GroupTreeTable{Columns: t.Columns, Rows: rows}
}

// SummarySample is one value of one summary vector at one date (long format)
type SummarySample struct {
	Date       time.Time `json:"date" db:"date"`
	VectorName string    `json:"vector_name" db:"vector_name"`
	Value      *float64  `json:"value" db:"value"`
}

// SummaryTable holds summary vectors of a single realization in wide format.
// Dates are ascending, one entry per sample date; every column has len(Dates) values
// and missing samples are NaN.
type SummaryTable struct {
	Dates   []time.Time
	Columns map[string][]float64
}

// NewSummaryTable creates an empty table over the given dates
func NewSummaryTable(dates []time.Time) *SummaryTable {
	return &SummaryTable{Dates: dates, Columns: make(map[string][]float64)}
}

// Len returns the number of sample dates
func (s *SummaryTable) Len() int {
	return len(s.Dates)
}

// Column returns the values of a vector
func (s *SummaryTable) Column(name string) ([]float64, bool) {
	values, ok := s.Columns[name]
	return values, ok
}

// Sum returns the sum of a column ignoring NaN; absent columns sum to zero
func (s *SummaryTable) Sum(name string) float64 {
	total := 0.0
	for _, v := range s.Columns[name] {
		if !math.IsNaN(v) {
			total += v
		}
	}
	return total
}

// Contains reports whether any sample of the column equals value
func (s *SummaryTable) Contains(name string, value float64) bool {
	for _, v := range s.Columns[name] {
		if v == value {
			return true
		}
	}
	return false
}

// Slice returns the rows in [from, to) as a new table sharing no column storage
func (s *SummaryTable) Slice(from, to int) *SummaryTable {
	dates := make([]time.Time, to-from)
	copy(dates, s.Dates[from:to])
	out := NewSummaryTable(dates)
	for name, values := range s.Columns {
		col := make([]float64, to-from)
		copy(col, values[from:to])
		out.Columns[name] = col
	}
	return out
}

// VectorNames returns the column names in sorted order
func (s *SummaryTable) VectorNames() []string {
	names := make([]string, 0, len(s.Columns))
	for name := range s.Columns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// NodeClassification tells whether a node is a producer, an injector or neither.
// At least one flag is set.
type NodeClassification struct {
	IsProducer bool `json:"is_producer"`
	IsInjector bool `json:"is_injector"`
	IsOther    bool `json:"is_other"`
}

// Or merges two classifications flag by flag
func (c NodeClassification) Or(other NodeClassification) NodeClassification {
	return NodeClassification{
		IsProducer: c.IsProducer || other.IsProducer,
		IsInjector: c.IsInjector || other.IsInjector,
		IsOther:    c.IsOther || other.IsOther,
	}
}

// Matches reports whether the classification intersects the selected node types
func (c NodeClassification) Matches(types NodeTypeSet) bool {
	return (c.IsProducer && types[NodeTypeProducer]) ||
		(c.IsInjector && types[NodeTypeInjector]) ||
		(c.IsOther && types[NodeTypeOther])
}

// NetworkClassification holds tree-wide injection facts
type NetworkClassification struct {
	TerminalNodeName  string `json:"terminal_node_name"`
	HasWaterInjection bool   `json:"has_water_injection"`
	HasGasInjection   bool   `json:"has_gas_injection"`
}

// SummaryVectorInfo describes what a bound summary vector carries
type SummaryVectorInfo struct {
	Quantity   Quantity   `json:"quantity"`
	EdgeOrNode EdgeOrNode `json:"edge_or_node"`
}

// StaticNodeWorkingData is everything about a node that does not depend on the date
type StaticNodeWorkingData struct {
	NodeName           string                       `json:"node_name"`
	Classification     NodeClassification           `json:"classification"`
	SummaryVectorsInfo map[string]SummaryVectorInfo `json:"summary_vectors_info"`
}

// NetworkNode is one node of a dated flow network. A node owns its children.
type NetworkNode struct {
	Label     string                 `json:"node_label"`
	Kind      NodeKind               `json:"node_type"`
	EdgeLabel string                 `json:"edge_label"`
	NodeData  map[Quantity][]float64 `json:"node_data"`
	EdgeData  map[Quantity][]float64 `json:"edge_data"`
	Children  []*NetworkNode         `json:"children"`
}

// DatedFlowNetwork is the network valid over one window of sample dates
type DatedFlowNetwork struct {
	Dates   []string     `json:"dates"`
	Network *NetworkNode `json:"network"`
}

// FlowNetworkMetadata is a selectable quantity option for the frontend
type FlowNetworkMetadata struct {
	Key   string `json:"key"`
	Label string `json:"label"`
}

// MetadataFor builds the metadata entry of a quantity
func MetadataFor(q Quantity) FlowNetworkMetadata {
	return FlowNetworkMetadata{Key: string(q), Label: q.Label()}
}

// VFPTableNone is the sentinel VFP table number meaning no table
const VFPTableNone = 9999

// EdgeLabel renders the VFP table number of an edge. A nil number and the
// sentinel 9999 yield an empty label.
func EdgeLabel(vfpTable *int) string {
	if vfpTable == nil || *vfpTable == VFPTableNone {
		return ""
	}
	return fmt.Sprintf("VFP %d", *vfpTable)
}
