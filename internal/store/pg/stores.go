package pg

import (
	"database/sql"

	"github.com/nextlevelbuilder/agentcore/internal/store"
)

// Stores assembles the Postgres-backed implementation of every
// internal/store interface, following the existing per-entity-file
// layout (internal/store/pg/sessions.go).
func Stores(db *sql.DB) *store.Stores {
	return &store.Stores{
		Threads:     NewThreadStore(db),
		Messages:    NewMessageStore(db),
		Deliveries:  NewDeliveryStore(db),
		Agents:      NewAgentStore(db),
		Permissions: NewPermissionStore(db),
		Schedules:   NewScheduleStore(db),
		Dispatches:  NewDispatchStore(db),
		Patches:     NewPatchStore(db),
		SystemState: NewSystemStateStore(db),
	}
}
