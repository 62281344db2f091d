package model_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mireska/ashfall/server/model"
	"github.com/mireska/ashfall/server/testutil"
)

func TestAutoMigrate_InsertAndQuery(t *testing.T) {
	db := testutil.SetupTestDB(t)

	// Account
	acc := &model.Account{Username: "test_user", PasswordHash: "hash", Status: 1}
	require.NoError(t, db.Create(acc).Error)
	assert.Greater(t, acc.ID, int64(0))

	var found model.Account
	require.NoError(t, db.First(&found, acc.ID).Error)
	assert.Equal(t, "test_user", found.Username)

	// Character
	char := &model.Character{
		AccountID: acc.ID,
		Name:      "Drifter",
		Health:    100, Stamina: 100, Hunger: 80, Thirst: 65,
		ZoneID: "coast",
	}
	require.NoError(t, db.Create(char).Error)
	assert.Greater(t, char.ID, int64(0))

	// InventoryItem
	inv := &model.InventoryItem{CharID: char.ID, DefID: "berries", Qty: 3}
	require.NoError(t, db.Create(inv).Error)

	equipped := &model.InventoryItem{
		CharID: char.ID, DefID: "rifle", Qty: 1,
		Equipped: true, Slot: "primary_weapon",
	}
	require.NoError(t, db.Create(equipped).Error)

	var stacks []model.InventoryItem
	require.NoError(t, db.Where("char_id = ?", char.ID).Find(&stacks).Error)
	assert.Len(t, stacks, 2)

	// AuditLog
	al := &model.AuditLog{
		TraceID: "trace-001", Action: "login",
		CreatedAt: time.Now(),
	}
	require.NoError(t, db.Create(al).Error)
}

func TestCharacter_VitalsRoundTrip(t *testing.T) {
	db := testutil.SetupTestDB(t)

	char := &model.Character{
		AccountID: 1, Name: "Scout",
		Health: 37.5, Stamina: 90, Hunger: 12.25, Thirst: 0,
		ZoneID: "coast", PosX: 14.5, PosY: -3, Yaw: 180,
	}
	require.NoError(t, db.Create(char).Error)

	var got model.Character
	require.NoError(t, db.First(&got, char.ID).Error)
	assert.Equal(t, 37.5, got.Health)
	assert.Equal(t, 12.25, got.Hunger)
	assert.Equal(t, 0.0, got.Thirst)
	assert.Equal(t, 14.5, got.PosX)
}
