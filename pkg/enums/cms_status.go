package enums

import "fmt"

// CMSStatus tracks visibility of a CMS content entry.
type CMSStatus string

const (
	CMSStatusDraft     CMSStatus = "draft"
	CMSStatusScheduled CMSStatus = "scheduled"
	CMSStatusPublished CMSStatus = "published"
	CMSStatusArchived  CMSStatus = "archived"
)

var validCMSStatuses = []CMSStatus{
	CMSStatusDraft,
	CMSStatusScheduled,
	CMSStatusPublished,
	CMSStatusArchived,
}

// String implements fmt.Stringer.
func (c CMSStatus) String() string {
	return string(c)
}

// IsValid reports whether the value is a known CMSStatus.
func (c CMSStatus) IsValid() bool {
	for _, candidate := range validCMSStatuses {
		if candidate == c {
			return true
		}
	}
	return false
}

// ParseCMSStatus converts raw input into a CMSStatus.
func ParseCMSStatus(value string) (CMSStatus, error) {
	for _, candidate := range validCMSStatuses {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid cms status %q", value)
}
