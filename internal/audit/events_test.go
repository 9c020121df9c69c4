package audit

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/google/uuid"
)

func TestPayloadMarshalNil(t *testing.T) {
	var p *Payload
	data, err := p.Marshal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if data != nil {
		t.Fatalf("nil payload should marshal to nil, got %s", data)
	}
}

func TestPayloadRoundTrip(t *testing.T) {
	orgID := uuid.New()
	data, err := NewOrgSwitchPayload(orgID, "acme").Marshal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	var decoded Payload
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("failed to unmarshal: %v", err)
	}
	if decoded.Kind != PayloadKindOrgSwitch {
		t.Fatalf("expected kind org_switch, got %s", decoded.Kind)
	}
	if decoded.OrgSwitch == nil || decoded.OrgSwitch.OrgID != orgID {
		t.Fatal("org switch values not preserved")
	}
}

func TestCredentialPayloadCarriesNoSecretFields(t *testing.T) {
	data, err := NewCredentialPayload("aws", "prod-us-east-1").Marshal()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if strings.Contains(string(data), "secret") {
		t.Fatalf("credential payload must carry metadata only, got %s", data)
	}
}
