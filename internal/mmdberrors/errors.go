package mmdberrors

import (
	"fmt"
	"reflect"
)

// InvalidDatabaseError is returned when the database contains invalid data
// and cannot be parsed.
type InvalidDatabaseError struct {
	message string
}

func NewOffsetError() InvalidDatabaseError {
	return InvalidDatabaseError{"unexpected end of database"}
}

func NewInvalidDatabaseError(format string, args ...any) InvalidDatabaseError {
	return InvalidDatabaseError{fmt.Sprintf(format, args...)}
}

func (e InvalidDatabaseError) Error() string {
	return e.message
}

// InvalidMetadataError is returned when the metadata section is missing,
// truncated, or describes a database this package does not know how to
// read.
type InvalidMetadataError struct {
	message string
}

func NewInvalidMetadataError(format string, args ...any) InvalidMetadataError {
	return InvalidMetadataError{fmt.Sprintf(format, args...)}
}

func (e InvalidMetadataError) Error() string {
	return e.message
}

// InvalidNodeNumberError is returned by ReadNode when asked to read a node
// index that is not less than the tree's node count.
type InvalidNodeNumberError struct {
	Index     uint
	NodeCount uint
}

func NewInvalidNodeNumberError(index, nodeCount uint) InvalidNodeNumberError {
	return InvalidNodeNumberError{Index: index, NodeCount: nodeCount}
}

func (e InvalidNodeNumberError) Error() string {
	return fmt.Sprintf("node number %d is out of bounds for a tree with %d nodes", e.Index, e.NodeCount)
}

// InvalidLookupPathError is returned when a lookup path step's type does not
// match the kind of container found at that point in the data section (e.g.
// an integer index against a map, or a string key against an array).
type InvalidLookupPathError struct {
	Step any
}

func NewInvalidLookupPathError(step any) InvalidLookupPathError {
	return InvalidLookupPathError{Step: step}
}

func (e InvalidLookupPathError) Error() string {
	return fmt.Sprintf("invalid lookup path step: %#v", e.Step)
}

// LookupPathDoesNotMatchError is returned when a lookup path step names a
// map key that does not exist, or an array index that is out of range.
type LookupPathDoesNotMatchError struct {
	Step any
}

func NewLookupPathDoesNotMatchError(step any) LookupPathDoesNotMatchError {
	return LookupPathDoesNotMatchError{Step: step}
}

func (e LookupPathDoesNotMatchError) Error() string {
	return fmt.Sprintf("lookup path does not match data: %#v", e.Step)
}

// IPVersionMismatchError is returned when an IPv6 address is looked up in a
// database that only supports IPv4.
type IPVersionMismatchError struct {
	Address string
}

func NewIPVersionMismatchError(address string) IPVersionMismatchError {
	return IPVersionMismatchError{Address: address}
}

func (e IPVersionMismatchError) Error() string {
	return fmt.Sprintf(
		"error looking up '%s': you attempted to look up an IPv6 address in an IPv4-only database",
		e.Address,
	)
}

type CacheTypeError struct {
	Type  string
	Value any
}

func NewCacheTypeStrError(value any, expType string) CacheTypeError {
	return CacheTypeError{
		Type:  expType,
		Value: value,
	}
}

func (e CacheTypeError) Error() string {
	return fmt.Sprintf("mmdbcore: expected %s type in cache but found %T", e.Type, e.Value)
}

// UnmarshalTypeError is returned when the value in the database cannot be
// assigned to the specified data type.
type UnmarshalTypeError struct {
	Type  reflect.Type
	Value string
}

func NewUnmarshalTypeStrError(value string, rType reflect.Type) UnmarshalTypeError {
	return UnmarshalTypeError{
		Type:  rType,
		Value: value,
	}
}

func NewUnmarshalTypeError(value any, rType reflect.Type) UnmarshalTypeError {
	return NewUnmarshalTypeStrError(fmt.Sprintf("%v (%T)", value, value), rType)
}

func (e UnmarshalTypeError) Error() string {
	return fmt.Sprintf("mmdbcore: cannot unmarshal %s into type %s", e.Value, e.Type)
}
