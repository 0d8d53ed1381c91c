package models

import (
	"fmt"
	"strings"
	"time"
)

// ErrorKind classifies failures for callers that render either "no data"
// or "invalid configuration" messaging
type ErrorKind string

const (
	KindNoData               ErrorKind = "no_data"
	KindInvalidConfiguration ErrorKind = "invalid_configuration"
	KindBadRequest           ErrorKind = "bad_request"
	KindInternal             ErrorKind = "internal"
)

// KindedError is implemented by every typed error of the platform
type KindedError interface {
	error
	Kind() ErrorKind
	IsTransient() bool
}

// ValidationError represents an invalid request or input value
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	if e.Field == "" {
		return e.Message
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// Kind reports a bad request
func (e *ValidationError) Kind() ErrorKind {
	return KindBadRequest
}

// NoDataError is returned when the data platform has nothing for the request
type NoDataError struct {
	Resource string
	ID       string
}

func (e *NoDataError) Error() string {
	return fmt.Sprintf("no %s found for %s", e.Resource, e.ID)
}

// IsTransient returns false as missing data does not appear on retry
func (e *NoDataError) IsTransient() bool {
	return false
}

// Kind reports missing data
func (e *NoDataError) Kind() ErrorKind {
	return KindNoData
}

// SchemaError is returned when a group tree table lacks required columns or values
type SchemaError struct {
	MissingColumns []string
	Message        string
}

func (e *SchemaError) Error() string {
	if len(e.MissingColumns) > 0 {
		return fmt.Sprintf("group tree table is missing required columns: %s", strings.Join(e.MissingColumns, ", "))
	}
	return "invalid group tree table: " + e.Message
}

// IsTransient returns false as the table shape is fixed
func (e *SchemaError) IsTransient() bool {
	return false
}

// Kind reports an invalid configuration
func (e *SchemaError) Kind() ErrorKind {
	return KindInvalidConfiguration
}

// MissingTerminalNodeError is returned when the terminal node is absent from the tree.
// Date is zero when the node is absent from every date.
type MissingTerminalNodeError struct {
	Node string
	Date time.Time
}

func (e *MissingTerminalNodeError) Error() string {
	if e.Date.IsZero() {
		return fmt.Sprintf("terminal node %q not found in group tree", e.Node)
	}
	return fmt.Sprintf("terminal node %q not found in group tree at %s", e.Node, e.Date.Format(DateLayout))
}

// IsTransient returns false as the tree does not change between retries
func (e *MissingTerminalNodeError) IsTransient() bool {
	return false
}

// Kind reports an invalid configuration
func (e *MissingTerminalNodeError) Kind() ErrorKind {
	return KindInvalidConfiguration
}

// InternalConsistencyError signals a broken invariant between engine stages
type InternalConsistencyError struct {
	Message string
	Nodes   []string
}

func (e *InternalConsistencyError) Error() string {
	if len(e.Nodes) == 0 {
		return "internal consistency error: " + e.Message
	}
	return fmt.Sprintf("internal consistency error: %s: %s", e.Message, strings.Join(e.Nodes, ", "))
}

// IsTransient returns false
func (e *InternalConsistencyError) IsTransient() bool {
	return false
}

// Kind reports an internal failure
func (e *InternalConsistencyError) Kind() ErrorKind {
	return KindInternal
}

// MissingVectorsError lists summary vectors that are required but not available
type MissingVectorsError struct {
	Context string
	Vectors []string
}

func (e *MissingVectorsError) Error() string {
	if e.Context == "" {
		return "missing summary vectors: " + strings.Join(e.Vectors, ", ")
	}
	return fmt.Sprintf("missing summary vectors %s: %s", e.Context, strings.Join(e.Vectors, ", "))
}

// IsTransient returns false as the vector catalog is fixed per ensemble
func (e *MissingVectorsError) IsTransient() bool {
	return false
}

// Kind reports an invalid configuration
func (e *MissingVectorsError) Kind() ErrorKind {
	return KindInvalidConfiguration
}

// UnsupportedModeError is returned for assembly modes other than single realization
type UnsupportedModeError struct {
	Mode AssemblyMode
}

func (e *UnsupportedModeError) Error() string {
	return fmt.Sprintf("flow network assembly mode %q is not supported", e.Mode)
}

// IsTransient returns false as the mode is never supported
func (e *UnsupportedModeError) IsTransient() bool {
	return false
}

// Kind reports a bad request
func (e *UnsupportedModeError) Kind() ErrorKind {
	return KindBadRequest
}

// NotInitializedError is returned when building before fetching
type NotInitializedError struct {
	Operation string
}

func (e *NotInitializedError) Error() string {
	return fmt.Sprintf("%s called before fetch and initialize", e.Operation)
}

// IsTransient returns false
func (e *NotInitializedError) IsTransient() bool {
	return false
}

// Kind reports an internal failure
func (e *NotInitializedError) Kind() ErrorKind {
	return KindInternal
}

// UnsupportedQuantityError is returned when no vector exists for a quantity on a node family
type UnsupportedQuantityError struct {
	Quantity Quantity
	Node     string
	Keyword  Keyword
}

func (e *UnsupportedQuantityError) Error() string {
	return fmt.Sprintf("no summary vector for %s on node %q with keyword %s", e.Quantity, e.Node, e.Keyword)
}

// IsTransient returns false
func (e *UnsupportedQuantityError) IsTransient() bool {
	return false
}

// Kind reports an internal failure
func (e *UnsupportedQuantityError) Kind() ErrorKind {
	return KindInternal
}
