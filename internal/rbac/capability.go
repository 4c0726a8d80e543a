package rbac

import (
	"fmt"
	"sort"
	"strings"
)

// Capability names a single permitted admin action group.
type Capability string

const (
	CapCatalogWrite   Capability = "catalog.write"
	CapOrdersRead     Capability = "orders.read"
	CapOrdersWrite    Capability = "orders.write"
	CapCMSWrite       Capability = "cms.write"
	CapCampaignsWrite Capability = "campaigns.write"
	CapTrafficRead    Capability = "traffic.read"
	CapAuditRead      Capability = "audit.read"
	CapAuditWrite     Capability = "audit.write"
	CapPrivacyWrite   Capability = "privacy.write"
	CapRolesWrite     Capability = "roles.write"
	CapAdminsWrite    Capability = "admins.write"
)

var knownCapabilities = map[Capability]struct{}{
	CapCatalogWrite:   {},
	CapOrdersRead:     {},
	CapOrdersWrite:    {},
	CapCMSWrite:       {},
	CapCampaignsWrite: {},
	CapTrafficRead:    {},
	CapAuditRead:      {},
	CapAuditWrite:     {},
	CapPrivacyWrite:   {},
	CapRolesWrite:     {},
	CapAdminsWrite:    {},
}

// ParseCapability converts raw input into a known Capability.
func ParseCapability(value string) (Capability, error) {
	c := Capability(strings.ToLower(strings.TrimSpace(value)))
	if _, ok := knownCapabilities[c]; !ok {
		return "", fmt.Errorf("unknown capability %q", value)
	}
	return c, nil
}

// AllCapabilities lists every known capability in sorted order.
func AllCapabilities() []Capability {
	caps := make([]Capability, 0, len(knownCapabilities))
	for c := range knownCapabilities {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// Set is a tagged capability set. The super variant grants everything and is
// carried explicitly rather than as a wildcard entry in the list.
type Set struct {
	super bool
	caps  map[Capability]struct{}
}

// NewSet builds a plain capability set.
func NewSet(caps ...Capability) Set {
	set := Set{caps: make(map[Capability]struct{}, len(caps))}
	for _, c := range caps {
		set.caps[c] = struct{}{}
	}
	return set
}

// SuperAdminSet builds the set that passes every check.
func SuperAdminSet() Set {
	return Set{super: true}
}

// ParseSet validates and collects raw capability strings.
func ParseSet(values []string) (Set, error) {
	caps := make([]Capability, 0, len(values))
	for _, value := range values {
		c, err := ParseCapability(value)
		if err != nil {
			return Set{}, err
		}
		caps = append(caps, c)
	}
	return NewSet(caps...), nil
}

// IsSuper reports whether the set is the super-admin variant.
func (s Set) IsSuper() bool {
	return s.super
}

// Has reports whether the capability is granted.
func (s Set) Has(c Capability) bool {
	if s.super {
		return true
	}
	_, ok := s.caps[c]
	return ok
}

// Union merges two sets. Super absorbs everything.
func (s Set) Union(other Set) Set {
	if s.super || other.super {
		return SuperAdminSet()
	}
	merged := make(map[Capability]struct{}, len(s.caps)+len(other.caps))
	for c := range s.caps {
		merged[c] = struct{}{}
	}
	for c := range other.caps {
		merged[c] = struct{}{}
	}
	return Set{caps: merged}
}

// List returns the granted capabilities sorted by name. Empty for the super
// variant, which is reported through IsSuper instead.
func (s Set) List() []Capability {
	if s.super {
		return nil
	}
	caps := make([]Capability, 0, len(s.caps))
	for c := range s.caps {
		caps = append(caps, c)
	}
	sort.Slice(caps, func(i, j int) bool { return caps[i] < caps[j] })
	return caps
}

// Strings returns the sorted capability names for persistence.
func (s Set) Strings() []string {
	caps := s.List()
	out := make([]string, 0, len(caps))
	for _, c := range caps {
		out = append(out, string(c))
	}
	return out
}
