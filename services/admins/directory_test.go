package admins

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tech-arch1tect/ledgersite/testutils"
)

func TestNormalizeEmail(t *testing.T) {
	assert.Equal(t, "admin@test.com", NormalizeEmail("  Admin@Test.COM \t"))
	assert.Equal(t, "", NormalizeEmail("   "))
}

func TestDirectory_LookupByEmail(t *testing.T) {
	db := testutils.SetupTestDB(t, &Admin{})
	dir := NewDirectory(db, nil)
	ctx := context.Background()

	require.NoError(t, db.Create(&Admin{Email: "admin@test.com", Name: "Avery Ledger"}).Error)

	t.Run("finds by normalized email", func(t *testing.T) {
		admin, err := dir.LookupByEmail(ctx, " ADMIN@test.com ")

		require.NoError(t, err)
		assert.Equal(t, "admin@test.com", admin.Email)
		assert.Equal(t, "Avery Ledger", admin.Name)
		assert.NotZero(t, admin.ID)
	})

	t.Run("unknown email", func(t *testing.T) {
		admin, err := dir.LookupByEmail(ctx, "nobody@test.com")

		assert.Nil(t, admin)
		assert.ErrorIs(t, err, ErrAdminNotFound)
	})

	t.Run("database failure is wrapped", func(t *testing.T) {
		broken := testutils.SetupTestDB(t)
		admin, err := NewDirectory(broken, nil).LookupByEmail(ctx, "admin@test.com")

		assert.Nil(t, admin)
		require.Error(t, err)
		assert.NotErrorIs(t, err, ErrAdminNotFound)
		assert.Contains(t, err.Error(), "failed to look up administrator")
	})
}

func TestDirectory_FindByID(t *testing.T) {
	db := testutils.SetupTestDB(t, &Admin{})
	dir := NewDirectory(db, nil)

	created := &Admin{Email: "partner@test.com", Name: "Partner"}
	require.NoError(t, db.Create(created).Error)

	admin, err := dir.FindByID(context.Background(), created.ID)
	require.NoError(t, err)
	assert.Equal(t, "partner@test.com", admin.Email)

	_, err = dir.FindByID(context.Background(), created.ID+100)
	assert.ErrorIs(t, err, ErrAdminNotFound)
}

func TestDirectory_EnsureSeed(t *testing.T) {
	db := testutils.SetupTestDB(t, &Admin{})
	dir := NewDirectory(db, nil)
	ctx := context.Background()

	first, err := dir.EnsureSeed(ctx, " Owner@Ledger.test", "Owner")
	require.NoError(t, err)
	assert.Equal(t, "owner@ledger.test", first.Email)

	second, err := dir.EnsureSeed(ctx, "owner@ledger.test", "Managing Partner")
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, "Managing Partner", second.Name)

	var count int64
	require.NoError(t, db.Model(&Admin{}).Count(&count).Error)
	assert.Equal(t, int64(1), count)

	_, err = dir.EnsureSeed(ctx, "  ", "Nobody")
	assert.ErrorIs(t, err, ErrInvalidEmail)
}
