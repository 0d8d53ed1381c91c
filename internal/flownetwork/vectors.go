package flownetwork

import (
	"flownetwork-platform/internal/models"
)

// FieldNodeName is the conventional name of the field-level group
const FieldNodeName = "FIELD"

// Field-level aggregate vectors
const (
	FieldOilRate      = "FOPR"
	FieldGasRate      = "FGPR"
	FieldWaterRate    = "FWPR"
	FieldWaterInjRate = "FWIR"
	FieldGasInjRate   = "FGIR"
)

// WellStatusPrefix names the well status vector; codes 1 and 2 mean producer and injector
const WellStatusPrefix = "WSTAT"

const (
	wellStatusProducer = 1.0
	wellStatusInjector = 2.0
)

// nodeFamily selects a row of the naming table
type nodeFamily int

const (
	familyField nodeFamily = iota
	familyGruptreeGroup
	familyBranpropGroup
	familyWell
	numFamilies
)

// vectorTemplate is a vector name mnemonic; withNode appends ":<node name>"
type vectorTemplate struct {
	mnemonic string
	withNode bool
}

// vectorNaming is the closed lookup table of vector templates. An empty mnemonic
// means the family has no vector for that quantity.
var vectorNaming = [numFamilies]map[models.Quantity]vectorTemplate{
	familyField: {
		models.QuantityOilRate:      {FieldOilRate, false},
		models.QuantityGasRate:      {FieldGasRate, false},
		models.QuantityWaterRate:    {FieldWaterRate, false},
		models.QuantityWaterInjRate: {FieldWaterInjRate, false},
		models.QuantityGasInjRate:   {FieldGasInjRate, false},
		models.QuantityPressure:     {"GPR", true},
	},
	familyGruptreeGroup: {
		models.QuantityOilRate:      {"GOPR", true},
		models.QuantityGasRate:      {"GGPR", true},
		models.QuantityWaterRate:    {"GWPR", true},
		models.QuantityWaterInjRate: {"GWIR", true},
		models.QuantityGasInjRate:   {"GGIR", true},
		models.QuantityPressure:     {"GPR", true},
	},
	// Network branches carry no injection of their own.
	familyBranpropGroup: {
		models.QuantityOilRate:   {"GOPRNB", true},
		models.QuantityGasRate:   {"GGPRNB", true},
		models.QuantityWaterRate: {"GWPRNB", true},
		models.QuantityPressure:  {"GPR", true},
	},
	familyWell: {
		models.QuantityOilRate:      {"WOPR", true},
		models.QuantityGasRate:      {"WGPR", true},
		models.QuantityWaterRate:    {"WWPR", true},
		models.QuantityWaterInjRate: {"WWIR", true},
		models.QuantityGasInjRate:   {"WGIR", true},
		models.QuantityPressure:     {"WTHP", true},
		models.QuantityBHP:          {"WBHP", true},
		models.QuantityWMCTL:        {"WMCTL", true},
	},
}

func familyOf(nodeName string, keyword models.Keyword) nodeFamily {
	switch {
	case keyword == models.KeywordWelspecs:
		return familyWell
	case nodeName == FieldNodeName:
		return familyField
	case keyword == models.KeywordBranprop:
		return familyBranpropGroup
	default:
		return familyGruptreeGroup
	}
}

// ResolveVectorName builds the summary vector name of a quantity on a node
func ResolveVectorName(quantity models.Quantity, nodeName string, keyword models.Keyword) (string, error) {
	tmpl, ok := vectorNaming[familyOf(nodeName, keyword)][quantity]
	if !ok {
		return "", &models.UnsupportedQuantityError{Quantity: quantity, Node: nodeName, Keyword: keyword}
	}
	if !tmpl.withNode {
		return tmpl.mnemonic, nil
	}
	return tmpl.mnemonic + ":" + nodeName, nil
}

// SupportsQuantity reports whether the naming table has a vector for the quantity on the node
func SupportsQuantity(quantity models.Quantity, nodeName string, keyword models.Keyword) bool {
	_, ok := vectorNaming[familyOf(nodeName, keyword)][quantity]
	return ok
}

// WellStatusVectorName returns the well status vector of a well
func WellStatusVectorName(well string) string {
	return WellStatusPrefix + ":" + well
}

// RelevantQuantities returns the quantities worth drawing for a node, in display order.
// Pressure always applies; BHP and control mode only for wells; rates only below the
// terminal node, gated by the node's flags and by whether the network injects at all.
func RelevantQuantities(classification models.NodeClassification, isTerminal bool, network models.NetworkClassification, isWell bool) []models.Quantity {
	quantities := make([]models.Quantity, 0, len(models.AllQuantities))

	if !isTerminal {
		if classification.IsProducer {
			quantities = append(quantities, models.QuantityOilRate, models.QuantityGasRate, models.QuantityWaterRate)
		}
		if classification.IsInjector && network.HasWaterInjection {
			quantities = append(quantities, models.QuantityWaterInjRate)
		}
		if classification.IsInjector && network.HasGasInjection {
			quantities = append(quantities, models.QuantityGasInjRate)
		}
	}

	quantities = append(quantities, models.QuantityPressure)
	if isWell {
		quantities = append(quantities, models.QuantityBHP, models.QuantityWMCTL)
	}
	return quantities
}
