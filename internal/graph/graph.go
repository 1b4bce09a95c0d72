// Package graph projects organization memberships and relationships into a
// property graph for network analysis. The relational store stays the source
// of truth; projection failures never fail the originating request.
package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"

	"bureau.org/internal/config"
	"bureau.org/internal/domain"
)

// Sink receives membership and relationship changes.
type Sink interface {
	UpsertMembership(ctx context.Context, m domain.Membership) error
	RemoveMembership(ctx context.Context, id string) error
	UpsertRelationship(ctx context.Context, r domain.OrgRelationship) error
	RemoveRelationship(ctx context.Context, id string) error
}

// Nop is the sink used when no graph database is configured.
type Nop struct{}

func (Nop) UpsertMembership(context.Context, domain.Membership) error        { return nil }
func (Nop) RemoveMembership(context.Context, string) error                   { return nil }
func (Nop) UpsertRelationship(context.Context, domain.OrgRelationship) error { return nil }
func (Nop) RemoveRelationship(context.Context, string) error                 { return nil }

// Executor runs one write query.
type Executor func(ctx context.Context, cypher string, params map[string]any) error

// Neo4jSink writes the projection with Cypher MERGE/DELETE statements.
type Neo4jSink struct {
	exec  Executor
	close func(context.Context) error
}

// Connect opens a driver for cfg and verifies connectivity.
func Connect(ctx context.Context, cfg config.Neo4jConfig) (*Neo4jSink, error) {
	driver, err := neo4j.NewDriverWithContext(cfg.URI, neo4j.BasicAuth(cfg.User, cfg.Password, ""))
	if err != nil {
		return nil, fmt.Errorf("create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		_ = driver.Close(ctx)
		return nil, fmt.Errorf("%w: neo4j: %v", domain.ErrBackendUnavailable, err)
	}
	database := cfg.Database
	exec := func(ctx context.Context, cypher string, params map[string]any) error {
		_, err := neo4j.ExecuteQuery(ctx, driver, cypher, params,
			neo4j.EagerResultTransformer,
			neo4j.ExecuteQueryWithDatabase(database),
			neo4j.ExecuteQueryWithWritersRouting())
		return err
	}
	return &Neo4jSink{exec: exec, close: driver.Close}, nil
}

// NewSink builds a sink over an arbitrary executor.
func NewSink(exec Executor) *Neo4jSink {
	return &Neo4jSink{exec: exec}
}

// Close releases the driver.
func (s *Neo4jSink) Close(ctx context.Context) error {
	if s.close == nil {
		return nil
	}
	return s.close(ctx)
}

const (
	upsertMembershipCypher = `
MERGE (p:Person {id: $person_id})
MERGE (o:Organization {id: $org_id})
MERGE (p)-[m:MEMBER_OF {id: $id}]->(o)
SET m.role = $role, m.active = $active, m.since = $since, m.until = $until, m.updated_at = $updated_at`

	removeMembershipCypher = `MATCH ()-[m:MEMBER_OF {id: $id}]->() DELETE m`

	upsertRelationshipCypher = `
MERGE (a:Organization {id: $source_id})
MERGE (b:Organization {id: $target_id})
MERGE (a)-[r:RELATED_TO {id: $id}]->(b)
SET r.type = $type, r.since = $since, r.until = $until, r.updated_at = $updated_at`

	removeRelationshipCypher = `MATCH ()-[r:RELATED_TO {id: $id}]->() DELETE r`
)

func (s *Neo4jSink) UpsertMembership(ctx context.Context, m domain.Membership) error {
	return s.run(ctx, upsertMembershipCypher, map[string]any{
		"id":         m.ID,
		"person_id":  m.PersonID,
		"org_id":     m.OrganizationID,
		"role":       m.Role,
		"active":     m.IsActive,
		"since":      optionalTime(m.StartDate),
		"until":      optionalTime(m.EndDate),
		"updated_at": m.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Neo4jSink) RemoveMembership(ctx context.Context, id string) error {
	return s.run(ctx, removeMembershipCypher, map[string]any{"id": id})
}

func (s *Neo4jSink) UpsertRelationship(ctx context.Context, r domain.OrgRelationship) error {
	return s.run(ctx, upsertRelationshipCypher, map[string]any{
		"id":         r.ID,
		"source_id":  r.SourceOrgID,
		"target_id":  r.TargetOrgID,
		"type":       string(r.Type),
		"since":      optionalTime(r.StartDate),
		"until":      optionalTime(r.EndDate),
		"updated_at": r.UpdatedAt.UTC().Format(time.RFC3339),
	})
}

func (s *Neo4jSink) RemoveRelationship(ctx context.Context, id string) error {
	return s.run(ctx, removeRelationshipCypher, map[string]any{"id": id})
}

func (s *Neo4jSink) run(ctx context.Context, cypher string, params map[string]any) error {
	if err := s.exec(ctx, cypher, params); err != nil {
		return fmt.Errorf("graph projection: %w", err)
	}
	return nil
}

func optionalTime(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC().Format(time.RFC3339)
}
