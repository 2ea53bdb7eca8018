package entdriver

import (
	"context"
	"fmt"

	"entgo.io/ent/dialect"
	"entgo.io/ent/dialect/sql/schema"
	"entgo.io/ent/schema/field"
)

const (
	tableMessages     = "messages"
	tableInteractions = "interactions"
	tableAgentData    = "agent_data"

	keySize = 255
)

func checkDialect(d string) error {
	switch d {
	case dialect.SQLite, dialect.Postgres:
		return nil
	default:
		return fmt.Errorf("unsupported dialect: %s", d)
	}
}

func idColumn(name string) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeString, Size: keySize}
}

func textColumn(name string) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeString, Size: 2147483647}
}

// optionalText is a text column that defaults to the empty string.
func optionalText(name string) *schema.Column {
	c := textColumn(name)
	c.Default = ""
	return c
}

func jsonColumn(name string, nullable bool) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeJSON, Nullable: nullable}
}

func timeColumn(name string, nullable bool) *schema.Column {
	return &schema.Column{Name: name, Type: field.TypeTime, Nullable: nullable}
}

// tables describes the record schema. agent_data is keyed by
// (conversation_id, agent_id, data_type), which the upsert's ON CONFLICT
// clause relies on.
func tables() []*schema.Table {
	messages := schema.NewTable(tableMessages).
		AddPrimary(idColumn("id")).
		AddColumn(idColumn("conversation_id")).
		AddColumn(optionalText("agent_id")).
		AddColumn(textColumn("role")).
		AddColumn(textColumn("content")).
		AddColumn(optionalText("tool_name")).
		AddColumn(optionalText("status")).
		AddColumn(jsonColumn("metadata", true)).
		AddColumn(timeColumn("created_at", false))
	messages.AddIndex("messages_conversation_id", false, []string{"conversation_id", "created_at"})

	interactions := schema.NewTable(tableInteractions).
		AddPrimary(idColumn("id")).
		AddColumn(idColumn("conversation_id")).
		AddColumn(optionalText("agent_id")).
		AddColumn(textColumn("action_type")).
		AddColumn(optionalText("from_agent")).
		AddColumn(optionalText("reason")).
		AddColumn(jsonColumn("state_snapshot", true)).
		AddColumn(timeColumn("created_at", false))
	interactions.AddIndex("interactions_conversation_id", false, []string{"conversation_id", "created_at"})

	agentData := schema.NewTable(tableAgentData).
		AddPrimary(idColumn("conversation_id")).
		AddPrimary(idColumn("agent_id")).
		AddPrimary(idColumn("data_type")).
		AddColumn(jsonColumn("data", false)).
		AddColumn(timeColumn("expires_at", true)).
		AddColumn(timeColumn("updated_at", false))
	agentData.AddIndex("agent_data_expires_at", false, []string{"expires_at"})

	return []*schema.Table{messages, interactions, agentData}
}

// migrate creates missing tables, columns and indexes. Existing rows are
// left alone.
func (ed *EntDriver) migrate(ctx context.Context) error {
	if err := checkDialect(ed.dialect); err != nil {
		return err
	}
	m, err := schema.NewMigrate(ed.drv)
	if err != nil {
		return err
	}
	return m.Create(ctx, tables()...)
}
