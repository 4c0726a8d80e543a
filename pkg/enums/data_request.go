package enums

import "fmt"

// DataRequestType classifies a customer privacy request.
type DataRequestType string

const (
	DataRequestTypeExport  DataRequestType = "export"
	DataRequestTypeErasure DataRequestType = "erasure"
)

var validDataRequestTypes = []DataRequestType{
	DataRequestTypeExport,
	DataRequestTypeErasure,
}

// String implements fmt.Stringer.
func (d DataRequestType) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DataRequestType.
func (d DataRequestType) IsValid() bool {
	for _, candidate := range validDataRequestTypes {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDataRequestType converts raw input into a DataRequestType.
func ParseDataRequestType(value string) (DataRequestType, error) {
	for _, candidate := range validDataRequestTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid data request type %q", value)
}

// DataRequestStatus tracks processing of a privacy request.
type DataRequestStatus string

const (
	DataRequestStatusPending   DataRequestStatus = "pending"
	DataRequestStatusCompleted DataRequestStatus = "completed"
	DataRequestStatusRejected  DataRequestStatus = "rejected"
)

var validDataRequestStatuses = []DataRequestStatus{
	DataRequestStatusPending,
	DataRequestStatusCompleted,
	DataRequestStatusRejected,
}

// String implements fmt.Stringer.
func (d DataRequestStatus) String() string {
	return string(d)
}

// IsValid reports whether the value is a known DataRequestStatus.
func (d DataRequestStatus) IsValid() bool {
	for _, candidate := range validDataRequestStatuses {
		if candidate == d {
			return true
		}
	}
	return false
}

// ParseDataRequestStatus converts raw input into a DataRequestStatus.
func ParseDataRequestStatus(value string) (DataRequestStatus, error) {
	for _, candidate := range validDataRequestStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid data request status %q", value)
}
