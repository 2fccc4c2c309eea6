package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestBaseModelBeforeCreateGeneratesID(t *testing.T) {
	var base BaseModel
	require.NoError(t, base.BeforeCreate(nil))
	require.NotEmpty(t, base.ID)

	existing := BaseModel{ID: "fixed"}
	require.NoError(t, existing.BeforeCreate(nil))
	require.Equal(t, "fixed", existing.ID)
}

func TestParseRole(t *testing.T) {
	role, err := ParseRole(" role_exporter ")
	require.NoError(t, err)
	require.Equal(t, RoleExporter, role)

	role, err = ParseRole("")
	require.NoError(t, err)
	require.Equal(t, RoleLocal, role)

	_, err = ParseRole("ROLE_SUPERUSER")
	require.Error(t, err)
}

func TestRoleSelfRegistrable(t *testing.T) {
	require.True(t, RoleExporter.SelfRegistrable())
	require.True(t, RoleLocal.SelfRegistrable())
	require.False(t, RoleAdmin.SelfRegistrable())
	require.False(t, Role("ROLE_X").Valid())
}

func TestUserApplyDefaults(t *testing.T) {
	user := User{Email: "  Kenji@Example.JP "}
	user.ApplyDefaults()

	require.Equal(t, "kenji@example.jp", user.Email)
	require.Equal(t, "UTC", user.Timezone)
	require.Equal(t, "en", user.Language)
	require.Equal(t, "USD", user.PreferredCurrency)
}

func TestSessionIsValidAt(t *testing.T) {
	now := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	session := Session{IsActive: true, ExpiresAt: now.Add(time.Minute)}

	require.True(t, session.IsValidAt(now))
	require.False(t, session.IsValidAt(now.Add(time.Minute)))

	session.IsActive = false
	require.False(t, session.IsValidAt(now))
}

func TestExpenseShareLookup(t *testing.T) {
	expense := Expense{
		ExporterID: "exporter-1",
		Shares: []ExpenseShare{
			{UserID: "local-1", Status: SharePending},
		},
	}

	require.Equal(t, "exporter-1", expense.OwnerID())
	require.True(t, expense.IsSharedWith("local-1"))
	require.False(t, expense.IsSharedWith("local-2"))
	require.Equal(t, SharePending, expense.ShareFor("local-1").Status)
}

func TestCacheEntryExpired(t *testing.T) {
	now := time.Now()
	require.False(t, (&CacheEntry{}).Expired(now))
	require.True(t, (&CacheEntry{ExpiresAt: now}).Expired(now))
	require.False(t, (&CacheEntry{ExpiresAt: now.Add(time.Second)}).Expired(now))
}

func TestPartAdjustInventory(t *testing.T) {
	now := time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC)
	part := Part{Inventory: PartInventory{Quantity: 5, MinimumStock: 2}}

	require.NoError(t, part.AdjustInventory(InventorySubtract, 8, now))
	require.Zero(t, part.Inventory.Quantity)
	require.Nil(t, part.Inventory.LastRestocked)
	require.True(t, part.LowStock())

	require.NoError(t, part.AdjustInventory(InventoryAdd, 4, now))
	require.Equal(t, 4, part.Inventory.Quantity)
	require.Equal(t, now, *part.Inventory.LastRestocked)

	require.NoError(t, part.AdjustInventory(InventorySet, 10, now.Add(time.Hour)))
	require.Equal(t, 10, part.Inventory.Quantity)
	require.Equal(t, now.Add(time.Hour), *part.Inventory.LastRestocked)

	require.ErrorIs(t, part.AdjustInventory("double", 1, now), ErrInvalidInventoryOperation)
	require.ErrorIs(t, part.AdjustInventory(InventoryAdd, -1, now), ErrInvalidInventoryOperation)
}

func TestPartApplyPricing(t *testing.T) {
	part := Part{Pricing: PartPricing{Cost: 12000, Markup: 15}}
	part.ApplyPricing()
	require.Equal(t, 13800.0, part.Pricing.SellingPrice)
}

func TestShipmentAddTrackingEventStampsArrivalOnce(t *testing.T) {
	arrived := time.Date(2024, 7, 2, 0, 0, 0, 0, time.UTC)
	shipment := Shipment{Status: ShipmentPending}

	shipment.AddTrackingEvent(TrackingEvent{Status: ShipmentInTransit, Location: "Yokohama", Timestamp: arrived.Add(-72 * time.Hour)})
	require.Equal(t, ShipmentInTransit, shipment.Status)
	require.Nil(t, shipment.Schedule.ActualArrival)

	shipment.AddTrackingEvent(TrackingEvent{Status: ShipmentDelivered, Location: "Colombo", Timestamp: arrived})
	shipment.AddTrackingEvent(TrackingEvent{Status: ShipmentDelivered, Timestamp: arrived.Add(time.Hour)})
	require.Len(t, shipment.Tracking, 3)
	require.Equal(t, arrived, *shipment.Schedule.ActualArrival)
}

func TestExporterProfileUpsertDocumentReplacesSameType(t *testing.T) {
	var profile ExporterProfile
	profile.ApplyDefaults()
	require.Equal(t, "Japan", profile.Address.Country)
	require.Equal(t, CurrencyJPY, profile.PreferredCurrency)
	require.Equal(t, BusinessVehicleExporter, profile.BusinessType)

	profile.UpsertDocument(VerificationDocument{Type: DocumentExportLicense, URL: "https://files.example.jp/a.pdf"})
	profile.UpsertDocument(VerificationDocument{Type: DocumentTaxCertificate, URL: "https://files.example.jp/b.pdf"})
	profile.UpsertDocument(VerificationDocument{Type: DocumentExportLicense, URL: "https://files.example.jp/c.pdf"})

	require.Len(t, profile.Documents, 2)
	require.Equal(t, "https://files.example.jp/c.pdf", profile.Documents[0].URL)
}
