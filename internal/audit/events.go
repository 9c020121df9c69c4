// Package audit provides the organization-scoped, append-only audit trail.
package audit

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// PayloadKind tags the variant carried by a Payload.
type PayloadKind string

const (
	PayloadKindOrgSwitch  PayloadKind = "org_switch"
	PayloadKindMembership PayloadKind = "membership"
	PayloadKindCredential PayloadKind = "credential"
	PayloadKindGeneric    PayloadKind = "generic"
)

// OrgSwitchValues records the organization pointer of an active-org switch.
type OrgSwitchValues struct {
	OrgID   uuid.UUID `json:"org_id"`
	OrgSlug string    `json:"org_slug,omitempty"`
}

// MembershipValues records a membership's role state.
type MembershipValues struct {
	OrgID  uuid.UUID `json:"org_id"`
	UserID uuid.UUID `json:"user_id"`
	Role   string    `json:"role"`
}

// CredentialValues records provider-credential metadata. Secret material
// never enters the audit trail; only identifying metadata is logged.
type CredentialValues struct {
	Provider string `json:"provider"`
	Name     string `json:"name"`
}

// Payload is a closed set of tagged audit payload variants with a generic
// free-form fallback, so the trail is machine-verifiable for the actions
// that matter while still accepting one-off events.
type Payload struct {
	Kind       PayloadKind       `json:"kind"`
	OrgSwitch  *OrgSwitchValues  `json:"org_switch,omitempty"`
	Membership *MembershipValues `json:"membership,omitempty"`
	Credential *CredentialValues `json:"credential,omitempty"`
	Generic    map[string]any    `json:"generic,omitempty"`
}

// NewOrgSwitchPayload builds an org-switch payload.
func NewOrgSwitchPayload(orgID uuid.UUID, slug string) *Payload {
	return &Payload{
		Kind:      PayloadKindOrgSwitch,
		OrgSwitch: &OrgSwitchValues{OrgID: orgID, OrgSlug: slug},
	}
}

// NewMembershipPayload builds a membership payload.
func NewMembershipPayload(orgID, userID uuid.UUID, role string) *Payload {
	return &Payload{
		Kind:       PayloadKindMembership,
		Membership: &MembershipValues{OrgID: orgID, UserID: userID, Role: role},
	}
}

// NewCredentialPayload builds a credential-metadata payload.
func NewCredentialPayload(provider, name string) *Payload {
	return &Payload{
		Kind:       PayloadKindCredential,
		Credential: &CredentialValues{Provider: provider, Name: name},
	}
}

// NewGenericPayload builds a free-form payload for events outside the closed
// set.
func NewGenericPayload(values map[string]any) *Payload {
	return &Payload{Kind: PayloadKindGeneric, Generic: values}
}

// Marshal serializes the payload for storage. A nil payload marshals to nil
// so optional old/new values stay NULL in the store.
func (p *Payload) Marshal() (json.RawMessage, error) {
	if p == nil {
		return nil, nil
	}
	data, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("marshal audit payload: %w", err)
	}
	return data, nil
}
