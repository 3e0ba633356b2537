package postgresql

import (
	"database/sql"
	"log/slog"

	"github.com/ojmachado/leadflow/pkg/persistence/sqlbase"
)

// NewMigrationManagerForPersistence builds the migration manager with this
// package's schema.
func NewMigrationManagerForPersistence(logger *slog.Logger, db *sql.DB) *sqlbase.MigrationManager {
	return sqlbase.NewMigrationManager(logger, db, migrations())
}

func migrations() map[int]string {
	return map[int]string{
		1: `
			CREATE TABLE funnels (
				id UUID PRIMARY KEY,
				name VARCHAR(255) NOT NULL,
				trigger VARCHAR(255) NOT NULL,
				is_active BOOLEAN NOT NULL DEFAULT false,
				nodes JSONB NOT NULL DEFAULT '[]',
				start_node_id VARCHAR(255)
			);

			CREATE INDEX idx_funnels_trigger ON funnels(trigger);
			CREATE INDEX idx_funnels_is_active ON funnels(is_active);

			CREATE TABLE funnel_executions (
				id UUID PRIMARY KEY,
				funnel_id UUID NOT NULL,
				lead_id UUID NOT NULL,
				current_node_id VARCHAR(255),
				status VARCHAR(50) NOT NULL CHECK (status IN ('waiting', 'completed')),
				next_run_at TIMESTAMP WITH TIME ZONE NOT NULL,
				history JSONB NOT NULL DEFAULT '[]',
				context JSONB NOT NULL DEFAULT '{}'
			);

			CREATE INDEX idx_funnel_executions_status ON funnel_executions(status);
			CREATE INDEX idx_funnel_executions_next_run_at ON funnel_executions(next_run_at);
			CREATE INDEX idx_funnel_executions_funnel_lead ON funnel_executions(funnel_id, lead_id);

			CREATE TABLE leads (
				id UUID PRIMARY KEY,
				email VARCHAR(255) NOT NULL UNIQUE,
				name VARCHAR(255) NOT NULL DEFAULT '',
				phone VARCHAR(64) NOT NULL DEFAULT '',
				external_id VARCHAR(255),
				source VARCHAR(255),
				status VARCHAR(50) NOT NULL DEFAULT 'active',
				pipeline_stage VARCHAR(50),
				tags JSONB NOT NULL DEFAULT '[]',
				created_at TIMESTAMP WITH TIME ZONE NOT NULL
			);

			CREATE INDEX idx_leads_status ON leads(status);

			CREATE TABLE message_templates (
				id UUID PRIMARY KEY,
				title VARCHAR(255) NOT NULL,
				content TEXT NOT NULL,
				type VARCHAR(50) NOT NULL DEFAULT 'text'
			);
		`,
	}
}
