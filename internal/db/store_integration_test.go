//go:build integration

package db

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/exec"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/crewdeskhq/crewdesk/internal/models"
)

var testDB *DB

func TestMain(m *testing.M) {
	if !dockerAvailable() {
		fmt.Println("Docker is not available, skipping integration tests")
		os.Exit(0)
	}

	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:15-alpine",
		postgres.WithDatabase("crewdesk_test"),
		postgres.WithUsername("test"),
		postgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		log.Fatalf("failed to start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		pgContainer.Terminate(ctx)
		log.Fatalf("failed to get connection string: %v", err)
	}

	logger := zerolog.New(zerolog.NewConsoleWriter())
	cfg := DefaultConfig(connStr)
	cfg.MaxConns = 5
	cfg.MinConns = 1

	testDB, err = New(ctx, cfg, logger)
	if err != nil {
		pgContainer.Terminate(ctx)
		log.Fatalf("failed to connect to database: %v", err)
	}

	if err := testDB.Migrate(ctx); err != nil {
		testDB.Close()
		pgContainer.Terminate(ctx)
		log.Fatalf("failed to run migrations: %v", err)
	}

	code := m.Run()

	testDB.Close()
	pgContainer.Terminate(ctx)

	os.Exit(code)
}

// dockerAvailable returns true if a Docker daemon is reachable.
func dockerAvailable() bool {
	cmd := exec.Command("docker", "info")
	return cmd.Run() == nil
}

// setupTestDB returns the shared test database after cleaning all tables.
func setupTestDB(t *testing.T) *DB {
	t.Helper()
	cleanTables(t, testDB)
	return testDB
}

// cleanTables truncates all user tables between tests for isolation.
func cleanTables(t *testing.T, db *DB) {
	t.Helper()
	ctx := context.Background()
	_, err := db.Pool.Exec(ctx, `
		DO $$ DECLARE r RECORD;
		BEGIN
			FOR r IN (SELECT tablename FROM pg_tables WHERE schemaname = 'public' AND tablename != 'schema_migrations') LOOP
				EXECUTE 'TRUNCATE TABLE ' || quote_ident(r.tablename) || ' CASCADE';
			END LOOP;
		END $$;
	`)
	require.NoError(t, err)
}

// createTestOrg creates and persists a test organization.
func createTestOrg(t *testing.T, db *DB, name, slug string) *models.Organization {
	t.Helper()
	org := models.NewOrganization(name, slug)
	err := db.CreateOrganization(context.Background(), org)
	require.NoError(t, err)
	return org
}

// createTestUser creates and persists a test user.
func createTestUser(t *testing.T, db *DB, email string) *models.User {
	t.Helper()
	user := models.NewUser(email, "Test User", "$2a$12$placeholderplaceholderplace")
	err := db.CreateUser(context.Background(), user)
	require.NoError(t, err)
	return user
}

func TestUserCRUD(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	user := createTestUser(t, db, "crud@example.com")

	byID, err := db.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.Equal(t, user.Email, byID.Email)

	byEmail, err := db.GetUserByEmail(ctx, "crud@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	_, err = db.GetUserByEmail(ctx, "missing@example.com")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActiveOrgPreference(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	org := createTestOrg(t, db, "Acme", "acme")
	user := createTestUser(t, db, "pref@example.com")
	require.NoError(t, db.CreateMembership(ctx, models.NewOrgMembership(user.ID, org.ID, models.OrgRoleOwner)))

	// Unset by default.
	pref, err := db.GetUserActiveOrgID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, pref)

	require.NoError(t, db.SetUserActiveOrgID(ctx, user.ID, org.ID))

	pref, err = db.GetUserActiveOrgID(ctx, user.ID)
	require.NoError(t, err)
	require.NotNil(t, pref)
	assert.Equal(t, org.ID, *pref)

	// Unknown user surfaces ErrNotFound.
	err = db.SetUserActiveOrgID(ctx, uuid.New(), org.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestActiveOrgClearsOnOrgDelete(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	org := createTestOrg(t, db, "Doomed", "doomed")
	user := createTestUser(t, db, "doomed@example.com")
	require.NoError(t, db.CreateMembership(ctx, models.NewOrgMembership(user.ID, org.ID, models.OrgRoleOwner)))
	require.NoError(t, db.SetUserActiveOrgID(ctx, user.ID, org.ID))

	require.NoError(t, db.DeleteOrganization(ctx, org.ID))

	// ON DELETE SET NULL clears the dangling preference.
	pref, err := db.GetUserActiveOrgID(ctx, user.ID)
	require.NoError(t, err)
	assert.Nil(t, pref)
}

func TestMembershipQueries(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	orgA := createTestOrg(t, db, "Org A", "org-a")
	orgB := createTestOrg(t, db, "Org B", "org-b")
	user := createTestUser(t, db, "member@example.com")

	first := models.NewOrgMembership(user.ID, orgA.ID, models.OrgRoleOwner)
	first.JoinedAt = time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.CreateMembership(ctx, first))

	second := models.NewOrgMembership(user.ID, orgB.ID, models.OrgRoleMember)
	second.JoinedAt = time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	require.NoError(t, db.CreateMembership(ctx, second))

	memberships, err := db.GetMembershipsByUserID(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, memberships, 2)
	assert.Equal(t, orgA.ID, memberships[0].OrgID, "memberships must be ordered by joined_at ascending")

	m, err := db.GetMembershipByUserAndOrg(ctx, user.ID, orgB.ID)
	require.NoError(t, err)
	assert.Equal(t, models.OrgRoleMember, m.Role)

	_, err = db.GetMembershipByUserAndOrg(ctx, user.ID, uuid.New())
	assert.ErrorIs(t, err, ErrNotFound)

	withOrgs, err := db.GetUserOrganizations(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, withOrgs, 2)
	assert.Equal(t, "org-a", withOrgs[0].OrgSlug)
}

func TestAuditLogScoping(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	orgA := createTestOrg(t, db, "Org A", "org-a")
	orgB := createTestOrg(t, db, "Org B", "org-b")
	user := createTestUser(t, db, "audit@example.com")

	entryA := models.NewAuditLog(orgA.ID, models.AuditActionCreate, "provider_credential").WithUser(user.ID)
	require.NoError(t, db.CreateAuditLog(ctx, entryA))
	entryB := models.NewAuditLog(orgB.ID, models.AuditActionDelete, "provider_credential").WithUser(user.ID)
	require.NoError(t, db.CreateAuditLog(ctx, entryB))
	system := models.NewSystemAuditLog(models.AuditActionLogin, "session").WithUser(user.ID)
	require.NoError(t, db.CreateAuditLog(ctx, system))

	logsA, err := db.GetAuditLogsByOrgID(ctx, orgA.ID, AuditLogFilter{Limit: 50})
	require.NoError(t, err)
	require.Len(t, logsA, 1)
	assert.Equal(t, models.AuditActionCreate, logsA[0].Action)

	count, err := db.CountAuditLogsByOrgID(ctx, orgB.ID, AuditLogFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)

	filtered, err := db.GetAuditLogsByOrgID(ctx, orgA.ID, AuditLogFilter{Action: "delete", Limit: 50})
	require.NoError(t, err)
	assert.Empty(t, filtered)

	fetched, err := db.GetAuditLogByID(ctx, system.ID)
	require.NoError(t, err)
	assert.Nil(t, fetched.OrgID)
	assert.True(t, fetched.IsSystemEvent())
}

func TestCleanupAuditLogs(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	org := createTestOrg(t, db, "Org A", "org-a")

	old := models.NewAuditLog(org.ID, models.AuditActionCreate, "organization")
	require.NoError(t, db.CreateAuditLog(ctx, old))
	_, err := db.Pool.Exec(ctx, `UPDATE audit_logs SET created_at = now() - interval '400 days' WHERE id = $1`, old.ID)
	require.NoError(t, err)

	recent := models.NewAuditLog(org.ID, models.AuditActionCreate, "organization")
	require.NoError(t, db.CreateAuditLog(ctx, recent))

	deleted, err := db.CleanupAuditLogs(ctx, 365)
	require.NoError(t, err)
	assert.Equal(t, int64(1), deleted)

	count, err := db.CountAuditLogsByOrgID(ctx, org.ID, AuditLogFilter{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
}

func TestProviderCredentialScoping(t *testing.T) {
	db := setupTestDB(t)
	ctx := context.Background()

	orgA := createTestOrg(t, db, "Org A", "org-a")
	orgB := createTestOrg(t, db, "Org B", "org-b")
	user := createTestUser(t, db, "creds@example.com")

	cred := models.NewProviderCredential(orgA.ID, "aws", "prod", []byte(`{"ciphertext":"x","iv":"y","auth_tag":"z"}`), user.ID)
	require.NoError(t, db.CreateProviderCredential(ctx, cred))

	// Visible inside its own org.
	got, err := db.GetProviderCredentialByID(ctx, orgA.ID, cred.ID)
	require.NoError(t, err)
	assert.Equal(t, "prod", got.Name)

	// Invisible from another org, even with the right ID.
	_, err = db.GetProviderCredentialByID(ctx, orgB.ID, cred.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// Cross-org delete does nothing.
	err = db.DeleteProviderCredential(ctx, orgB.ID, cred.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	listA, err := db.GetProviderCredentialsByOrgID(ctx, orgA.ID)
	require.NoError(t, err)
	assert.Len(t, listA, 1)

	listB, err := db.GetProviderCredentialsByOrgID(ctx, orgB.ID)
	require.NoError(t, err)
	assert.Empty(t, listB)

	require.NoError(t, db.UpdateProviderCredentialSecret(ctx, orgA.ID, cred.ID, []byte(`{"ciphertext":"new","iv":"y","auth_tag":"z"}`)))
	require.NoError(t, db.DeleteProviderCredential(ctx, orgA.ID, cred.ID))
	_, err = db.GetProviderCredentialByID(ctx, orgA.ID, cred.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
