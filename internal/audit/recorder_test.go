package audit

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/crewdeskhq/crewdesk/internal/db"
	"github.com/crewdeskhq/crewdesk/internal/models"
	"github.com/crewdeskhq/crewdesk/internal/tenant"
)

type mockAuditStore struct {
	created   []*models.AuditLog
	byID      map[uuid.UUID]*models.AuditLog
	createErr error
}

func (m *mockAuditStore) CreateAuditLog(_ context.Context, entry *models.AuditLog) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, entry)
	return nil
}

func (m *mockAuditStore) GetAuditLogsByOrgID(_ context.Context, orgID uuid.UUID, _ db.AuditLogFilter) ([]*models.AuditLog, error) {
	var out []*models.AuditLog
	for _, l := range m.created {
		if l.OrgID != nil && *l.OrgID == orgID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (m *mockAuditStore) GetAuditLogByID(_ context.Context, id uuid.UUID) (*models.AuditLog, error) {
	if l, ok := m.byID[id]; ok {
		return l, nil
	}
	return nil, db.ErrNotFound
}

func (m *mockAuditStore) CountAuditLogsByOrgID(_ context.Context, orgID uuid.UUID, _ db.AuditLogFilter) (int64, error) {
	logs, _ := m.GetAuditLogsByOrgID(context.Background(), orgID, db.AuditLogFilter{})
	return int64(len(logs)), nil
}

func testOrgContext() *tenant.OrgContext {
	return &tenant.OrgContext{
		UserID:  uuid.New(),
		OrgID:   uuid.New(),
		OrgRole: models.OrgRoleMember,
	}
}

func TestRecordRequiresOrgContext(t *testing.T) {
	store := &mockAuditStore{}
	recorder := NewRecorder(store, zerolog.Nop())

	t.Run("nil context", func(t *testing.T) {
		err := recorder.Record(context.Background(), nil, Entry{Action: models.AuditActionCreate, Resource: "organization"})
		if !errors.Is(err, ErrNoTenantContext) {
			t.Fatalf("expected ErrNoTenantContext, got %v", err)
		}
	})

	t.Run("zero org ID", func(t *testing.T) {
		orgCtx := &tenant.OrgContext{UserID: uuid.New()}
		err := recorder.Record(context.Background(), orgCtx, Entry{Action: models.AuditActionCreate, Resource: "organization"})
		if !errors.Is(err, ErrNoTenantContext) {
			t.Fatalf("expected ErrNoTenantContext, got %v", err)
		}
	})

	if len(store.created) != 0 {
		t.Fatalf("no records should be written without org context, got %d", len(store.created))
	}
}

func TestRecordStampsOrgAndUser(t *testing.T) {
	store := &mockAuditStore{}
	recorder := NewRecorder(store, zerolog.Nop())
	orgCtx := testOrgContext()

	resourceID := uuid.New()
	err := recorder.Record(context.Background(), orgCtx, Entry{
		Action:     models.AuditActionOrgSwitch,
		Resource:   "organization",
		ResourceID: &resourceID,
		NewValues:  NewOrgSwitchPayload(orgCtx.OrgID, "acme"),
		IPAddress:  "203.0.113.7",
		UserAgent:  "test-agent",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if len(store.created) != 1 {
		t.Fatalf("expected 1 record, got %d", len(store.created))
	}
	entry := store.created[0]
	if entry.OrgID == nil || *entry.OrgID != orgCtx.OrgID {
		t.Fatal("record not stamped with the resolved org")
	}
	if entry.UserID == nil || *entry.UserID != orgCtx.UserID {
		t.Fatal("record not stamped with the acting user")
	}
	if entry.ResourceID == nil || *entry.ResourceID != resourceID {
		t.Fatal("record missing resource ID")
	}
	if entry.IPAddress != "203.0.113.7" {
		t.Fatalf("unexpected IP address %q", entry.IPAddress)
	}

	var payload Payload
	if err := json.Unmarshal(entry.NewValues, &payload); err != nil {
		t.Fatalf("failed to unmarshal new values: %v", err)
	}
	if payload.OrgSwitch == nil || payload.OrgSwitch.OrgSlug != "acme" {
		t.Fatal("org switch payload not preserved")
	}
}

func TestRecordSwallowsStoreFailure(t *testing.T) {
	store := &mockAuditStore{createErr: errors.New("connection refused")}
	recorder := NewRecorder(store, zerolog.Nop())

	err := recorder.Record(context.Background(), testOrgContext(), Entry{
		Action:   models.AuditActionCreate,
		Resource: "provider_credential",
	})
	if err != nil {
		t.Fatalf("store failure must not surface to the caller, got %v", err)
	}
}

func TestRecordSystem(t *testing.T) {
	store := &mockAuditStore{}
	recorder := NewRecorder(store, zerolog.Nop())

	userID := uuid.New()
	recorder.RecordSystem(context.Background(), &userID, Entry{
		Action:   models.AuditActionLogin,
		Resource: "session",
	})

	if len(store.created) != 1 {
		t.Fatalf("expected 1 record, got %d", len(store.created))
	}
	entry := store.created[0]
	if entry.OrgID != nil {
		t.Fatal("system records must not carry an org")
	}
	if entry.Category != "system" {
		t.Fatalf("expected system category, got %q", entry.Category)
	}
	if !entry.IsSystemEvent() {
		t.Fatal("expected IsSystemEvent to be true")
	}
	if entry.UserID == nil || *entry.UserID != userID {
		t.Fatal("record not stamped with the acting user")
	}
}

func TestGetRejectsCrossTenantReads(t *testing.T) {
	orgCtx := testOrgContext()
	otherOrg := uuid.New()

	ownID := uuid.New()
	foreignID := uuid.New()
	systemID := uuid.New()

	own := models.NewAuditLog(orgCtx.OrgID, models.AuditActionCreate, "organization")
	own.ID = ownID
	foreign := models.NewAuditLog(otherOrg, models.AuditActionCreate, "organization")
	foreign.ID = foreignID
	system := models.NewSystemAuditLog(models.AuditActionLogin, "session")
	system.ID = systemID

	store := &mockAuditStore{byID: map[uuid.UUID]*models.AuditLog{
		ownID:     own,
		foreignID: foreign,
		systemID:  system,
	}}
	recorder := NewRecorder(store, zerolog.Nop())

	t.Run("own record", func(t *testing.T) {
		entry, err := recorder.Get(context.Background(), orgCtx, ownID)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if entry.ID != ownID {
			t.Fatal("wrong record returned")
		}
	})

	t.Run("foreign record", func(t *testing.T) {
		_, err := recorder.Get(context.Background(), orgCtx, foreignID)
		if !errors.Is(err, db.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for a foreign record, got %v", err)
		}
	})

	t.Run("system record", func(t *testing.T) {
		_, err := recorder.Get(context.Background(), orgCtx, systemID)
		if !errors.Is(err, db.ErrNotFound) {
			t.Fatalf("expected ErrNotFound for a system record, got %v", err)
		}
	})
}

func TestLogsRequireOrgContext(t *testing.T) {
	recorder := NewRecorder(&mockAuditStore{}, zerolog.Nop())

	if _, err := recorder.Logs(context.Background(), nil, db.AuditLogFilter{}); !errors.Is(err, ErrNoTenantContext) {
		t.Fatalf("expected ErrNoTenantContext, got %v", err)
	}
	if _, err := recorder.Count(context.Background(), nil, db.AuditLogFilter{}); !errors.Is(err, ErrNoTenantContext) {
		t.Fatalf("expected ErrNoTenantContext, got %v", err)
	}
	if _, err := recorder.Get(context.Background(), nil, uuid.New()); !errors.Is(err, ErrNoTenantContext) {
		t.Fatalf("expected ErrNoTenantContext, got %v", err)
	}
}
