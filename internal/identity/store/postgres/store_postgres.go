// Package postgres provides the PostgreSQL identity store.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"carebridge/internal/identity/models"
	"carebridge/internal/identity/store"
	id "carebridge/pkg/domain"
	"carebridge/pkg/platform/sentinel"
	"carebridge/pkg/requestcontext"
)

// Store persists identities and follower sets in PostgreSQL.
//
// Follower sets live in their own table keyed (owner_id, relation, peer_id):
// AddToSet maps to INSERT ... ON CONFLICT DO NOTHING and RemoveFromSet to a
// plain DELETE, so concurrent relationship edits converge without any
// read-modify-write of the owning row.
type Store struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Store)(nil)

func New(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Schema is the DDL this store expects. Applied by EnsureSchema in dev and
// integration tests; production migrations live with the deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS identities (
	id UUID PRIMARY KEY,
	role TEXT NOT NULL,
	username TEXT,
	email TEXT,
	organization_name TEXT,
	organization_id UUID,
	department TEXT,
	licence INT NOT NULL DEFAULT 0,
	first_name TEXT,
	last_name TEXT,
	display_name TEXT,
	avatar TEXT,
	job_title TEXT,
	phone_number TEXT,
	subscription_expires_at TIMESTAMPTZ,
	created_date TIMESTAMPTZ NOT NULL,
	updated_date TIMESTAMPTZ
);
CREATE UNIQUE INDEX IF NOT EXISTS identities_username_key ON identities (LOWER(username)) WHERE username IS NOT NULL;
CREATE UNIQUE INDEX IF NOT EXISTS identities_email_key ON identities (LOWER(email)) WHERE email IS NOT NULL;
CREATE INDEX IF NOT EXISTS identities_org_role_idx ON identities (organization_id, role);

CREATE TABLE IF NOT EXISTS follower_sets (
	owner_id UUID NOT NULL REFERENCES identities (id) ON DELETE CASCADE,
	relation TEXT NOT NULL,
	peer_id UUID NOT NULL,
	PRIMARY KEY (owner_id, relation, peer_id)
);
`

func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, Schema); err != nil {
		return fmt.Errorf("ensure identity schema: %w", err)
	}
	return nil
}

const identityColumns = `
	id, role, username, email, organization_name, organization_id, department, licence,
	first_name, last_name, display_name, avatar, job_title, phone_number,
	subscription_expires_at, created_date, updated_date
`

func (s *Store) Create(ctx context.Context, identity *models.Identity) error {
	identity.Followers.Normalize()

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin create identity: %w", err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		INSERT INTO identities (`+identityColumns+`)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17)
	`,
		uuidOf(identity.ID), identity.Role,
		nullable(identity.Username), nullable(identity.Email),
		nullable(identity.OrganizationName), nullableID(identity.OrganizationID),
		nullable(identity.Department), identity.Licence,
		nullable(identity.Profile.FirstName), nullable(identity.Profile.LastName),
		nullable(identity.Profile.Name), nullable(identity.Profile.Avatar),
		nullable(identity.Profile.JobTitle), nullable(identity.Profile.PhoneNumber),
		identity.SubscriptionExpiresAt, identity.CreatedDate, identity.UpdatedDate,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert identity: %w", err)
	}

	for rel, peers := range identity.Followers {
		for _, peer := range peers {
			if _, err := tx.Exec(ctx, `
				INSERT INTO follower_sets (owner_id, relation, peer_id)
				VALUES ($1, $2, $3)
				ON CONFLICT DO NOTHING
			`, uuidOf(identity.ID), rel, uuidOf(peer)); err != nil {
				return fmt.Errorf("insert follower edge: %w", err)
			}
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit create identity: %w", err)
	}
	return nil
}

func (s *Store) FindByID(ctx context.Context, identityID id.IdentityID) (*models.Identity, error) {
	return s.findOne(ctx, `WHERE id = $1`, uuidOf(identityID))
}

func (s *Store) FindByUsername(ctx context.Context, username string) (*models.Identity, error) {
	return s.findOne(ctx, `WHERE LOWER(username) = LOWER($1)`, username)
}

func (s *Store) FindByEmail(ctx context.Context, email string) (*models.Identity, error) {
	return s.findOne(ctx, `WHERE LOWER(email) = LOWER($1)`, email)
}

func (s *Store) findOne(ctx context.Context, where string, arg any) (*models.Identity, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+identityColumns+` FROM identities `+where, arg)
	identity, err := scanIdentity(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, sentinel.ErrNotFound
		}
		return nil, fmt.Errorf("find identity: %w", err)
	}
	if err := s.loadFollowers(ctx, identity); err != nil {
		return nil, err
	}
	return identity, nil
}

func (s *Store) List(ctx context.Context, filter store.Filter) ([]*models.Identity, error) {
	query := `SELECT ` + identityColumns + ` FROM identities WHERE 1=1`
	args := []any{}
	if filter.Role != "" {
		args = append(args, filter.Role)
		query += fmt.Sprintf(" AND role = $%d", len(args))
	}
	if !filter.OrganizationID.IsNil() {
		args = append(args, uuidOf(filter.OrganizationID))
		query += fmt.Sprintf(" AND organization_id = $%d", len(args))
	}
	query += " ORDER BY created_date"

	rows, err := s.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list identities: %w", err)
	}
	defer rows.Close()

	var out []*models.Identity
	for rows.Next() {
		identity, err := scanIdentity(rows)
		if err != nil {
			return nil, fmt.Errorf("scan identity: %w", err)
		}
		out = append(out, identity)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("list identities: %w", rows.Err())
	}
	for _, identity := range out {
		if err := s.loadFollowers(ctx, identity); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) Update(ctx context.Context, identityID id.IdentityID, patch store.Patch) error {
	sets := []string{"updated_date = $1"}
	args := []any{requestcontext.Now(ctx)}
	add := func(expr string, v any) {
		args = append(args, v)
		sets = append(sets, fmt.Sprintf(expr, len(args)))
	}

	if patch.Department != nil {
		add("department = $%d", nullable(*patch.Department))
	}
	if patch.Licence != nil {
		add("licence = $%d", *patch.Licence)
	}
	if patch.Profile != nil {
		add("first_name = $%d", nullable(patch.Profile.FirstName))
		add("last_name = $%d", nullable(patch.Profile.LastName))
		add("display_name = $%d", nullable(patch.Profile.Name))
		add("avatar = $%d", nullable(patch.Profile.Avatar))
		add("job_title = $%d", nullable(patch.Profile.JobTitle))
		add("phone_number = $%d", nullable(patch.Profile.PhoneNumber))
	}
	if patch.SubscriptionExpiresAt != nil {
		add("subscription_expires_at = $%d", *patch.SubscriptionExpiresAt)
	}

	args = append(args, uuidOf(identityID))
	query := fmt.Sprintf("UPDATE identities SET %s WHERE id = $%d",
		joinSets(sets), len(args))

	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("update identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) Delete(ctx context.Context, identityID id.IdentityID) error {
	tag, err := s.pool.Exec(ctx, `DELETE FROM identities WHERE id = $1`, uuidOf(identityID))
	if err != nil {
		return fmt.Errorf("delete identity: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}

func (s *Store) AddToSet(ctx context.Context, owner id.IdentityID, rel models.RelationName, peers []id.IdentityID) error {
	batch := &pgx.Batch{}
	for _, peer := range peers {
		batch.Queue(`
			INSERT INTO follower_sets (owner_id, relation, peer_id)
			SELECT $1, $2, $3 WHERE EXISTS (SELECT 1 FROM identities WHERE id = $1)
			ON CONFLICT DO NOTHING
		`, uuidOf(owner), rel, uuidOf(peer))
	}
	batch.Queue(`UPDATE identities SET updated_date = $2 WHERE id = $1`, uuidOf(owner), requestcontext.Now(ctx))

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("add to follower set: %w", err)
	}
	return nil
}

func (s *Store) RemoveFromSet(ctx context.Context, owner id.IdentityID, rel models.RelationName, peers []id.IdentityID) error {
	ids := make([]string, len(peers))
	for i, peer := range peers {
		ids[i] = peer.String()
	}
	batch := &pgx.Batch{}
	batch.Queue(`
		DELETE FROM follower_sets
		WHERE owner_id = $1 AND relation = $2 AND peer_id = ANY($3::uuid[])
	`, uuidOf(owner), rel, ids)
	batch.Queue(`UPDATE identities SET updated_date = $2 WHERE id = $1`, uuidOf(owner), requestcontext.Now(ctx))

	if err := s.pool.SendBatch(ctx, batch).Close(); err != nil {
		return fmt.Errorf("remove from follower set: %w", err)
	}
	return nil
}

func (s *Store) CountByOrganization(ctx context.Context, orgID id.IdentityID, role models.Role) (int, error) {
	var count int
	err := s.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM identities WHERE organization_id = $1 AND role = $2
	`, uuidOf(orgID), role).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count by organization: %w", err)
	}
	return count, nil
}

func (s *Store) loadFollowers(ctx context.Context, identity *models.Identity) error {
	rows, err := s.pool.Query(ctx, `
		SELECT relation, peer_id FROM follower_sets WHERE owner_id = $1 ORDER BY relation, peer_id
	`, uuidOf(identity.ID))
	if err != nil {
		return fmt.Errorf("load followers: %w", err)
	}
	defer rows.Close()

	followers := models.Followers{}
	for rows.Next() {
		var rel models.RelationName
		var peer string
		if err := rows.Scan(&rel, &peer); err != nil {
			return fmt.Errorf("scan follower edge: %w", err)
		}
		peerID, err := id.ParseIdentityID(peer)
		if err != nil {
			return fmt.Errorf("parse follower edge: %w", err)
		}
		followers.Add(rel, peerID)
	}
	if rows.Err() != nil {
		return fmt.Errorf("load followers: %w", rows.Err())
	}
	identity.Followers = followers
	return nil
}

func scanIdentity(row pgx.Row) (*models.Identity, error) {
	var (
		identity                                                  models.Identity
		identityID                                                string
		username, email, orgName, department, orgID               *string
		firstName, lastName, displayName, avatar, jobTitle, phone *string
	)
	err := row.Scan(
		&identityID, &identity.Role, &username, &email, &orgName, &orgID,
		&department, &identity.Licence,
		&firstName, &lastName, &displayName, &avatar, &jobTitle, &phone,
		&identity.SubscriptionExpiresAt, &identity.CreatedDate, &identity.UpdatedDate,
	)
	if err != nil {
		return nil, err
	}
	parsed, err := id.ParseIdentityID(identityID)
	if err != nil {
		return nil, err
	}
	identity.ID = parsed
	identity.Username = deref(username)
	identity.Email = deref(email)
	identity.OrganizationName = deref(orgName)
	identity.Department = deref(department)
	identity.Profile = models.Profile{
		FirstName:   deref(firstName),
		LastName:    deref(lastName),
		Name:        deref(displayName),
		Avatar:      deref(avatar),
		JobTitle:    deref(jobTitle),
		PhoneNumber: deref(phone),
	}
	if orgID != nil {
		parsedOrg, err := id.ParseIdentityID(*orgID)
		if err != nil {
			return nil, err
		}
		identity.OrganizationID = parsedOrg
	}
	return &identity, nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func uuidOf(identityID id.IdentityID) string {
	return identityID.String()
}

func nullable(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func nullableID(identityID id.IdentityID) *string {
	if identityID.IsNil() {
		return nil
	}
	s := identityID.String()
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func joinSets(sets []string) string {
	out := sets[0]
	for _, s := range sets[1:] {
		out += ", " + s
	}
	return out
}
