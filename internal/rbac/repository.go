package rbac

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/aloha-social/aloha/internal/platform/db"
	"github.com/aloha-social/aloha/internal/shared"
)

// Repository defines persistence for the permission graph: permissions, groups
// and the two assignment relations.
type Repository interface {
	CreatePermission(ctx context.Context, name, description string) (Permission, error)
	GetPermission(ctx context.Context, id uuid.UUID) (Permission, error)
	ListPermissions(ctx context.Context, limit, offset int) ([]Permission, int, error)
	UpdatePermissionDescription(ctx context.Context, id uuid.UUID, description string) (Permission, error)
	DeletePermissions(ctx context.Context, ids []uuid.UUID) error

	CreateGroup(ctx context.Context, name string) (Group, error)
	GetGroup(ctx context.Context, id uuid.UUID) (Group, error)
	ListGroups(ctx context.Context, limit, offset int) ([]Group, int, error)
	DeleteGroups(ctx context.Context, ids []uuid.UUID) error

	GrantToUser(ctx context.Context, userID, permissionID uuid.UUID) error
	RevokeFromUser(ctx context.Context, userID, permissionID uuid.UUID) error
	GrantToGroup(ctx context.Context, groupID, permissionID uuid.UUID) error
	RevokeFromGroup(ctx context.Context, groupID, permissionID uuid.UUID) error
	ListUserGrants(ctx context.Context, limit, offset int) ([]UserPermission, int, error)
	ListGroupGrants(ctx context.Context, limit, offset int) ([]GroupPermission, int, error)

	EffectivePermissionNames(ctx context.Context, userID uuid.UUID) ([]string, error)
}

type pgUUID = pgtype.UUID

type dbtx interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// PGRepository implements Repository using PostgreSQL.
type PGRepository struct {
	db   dbtx
	pool *pgxpool.Pool
}

// NewRepository constructs a PostgreSQL repository.
func NewRepository(pool *pgxpool.Pool) *PGRepository {
	return &PGRepository{db: pool, pool: pool}
}

// CreatePermission inserts a new permission.
func (r *PGRepository) CreatePermission(ctx context.Context, name, description string) (Permission, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO permissions (id, name, description) VALUES ($1, $2, $3)
		 RETURNING id, name, description, created_at`,
		shared.PGUUID(uuid.New()), name, description)
	return scanPermission(row)
}

// GetPermission fetches a permission by id.
func (r *PGRepository) GetPermission(ctx context.Context, id uuid.UUID) (Permission, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, name, description, created_at FROM permissions WHERE id = $1`,
		shared.PGUUID(id))
	return scanPermission(row)
}

// ListPermissions returns a page of permissions ordered by name plus the total count.
func (r *PGRepository) ListPermissions(ctx context.Context, limit, offset int) ([]Permission, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM permissions`).Scan(&total); err != nil {
		return nil, 0, mapPGError(err)
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, name, description, created_at FROM permissions ORDER BY name LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, mapPGError(err)
	}
	defer rows.Close()

	var perms []Permission
	for rows.Next() {
		perm, err := scanPermission(rows)
		if err != nil {
			return nil, 0, err
		}
		perms = append(perms, perm)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapPGError(err)
	}
	return perms, total, nil
}

// UpdatePermissionDescription updates the only mutable field of a permission.
func (r *PGRepository) UpdatePermissionDescription(ctx context.Context, id uuid.UUID, description string) (Permission, error) {
	row := r.db.QueryRow(ctx,
		`UPDATE permissions SET description = $2 WHERE id = $1
		 RETURNING id, name, description, created_at`,
		shared.PGUUID(id), description)
	return scanPermission(row)
}

// DeletePermissions removes permissions and every assignment row referencing
// them in one transaction. A concurrent resolver never sees a half-deleted
// permission.
func (r *PGRepository) DeletePermissions(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	pgIDs := pgUUIDs(ids)
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `DELETE FROM user_permissions WHERE permission_id = ANY($1)`, pgIDs); err != nil {
			return mapPGError(err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM group_permissions WHERE permission_id = ANY($1)`, pgIDs); err != nil {
			return mapPGError(err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM permissions WHERE id = ANY($1)`, pgIDs)
		if err != nil {
			return mapPGError(err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// CreateGroup inserts a new group.
func (r *PGRepository) CreateGroup(ctx context.Context, name string) (Group, error) {
	row := r.db.QueryRow(ctx,
		`INSERT INTO user_groups (id, group_name) VALUES ($1, $2)
		 RETURNING id, group_name, created_at`,
		shared.PGUUID(uuid.New()), name)
	return scanGroup(row)
}

// GetGroup fetches a group by id.
func (r *PGRepository) GetGroup(ctx context.Context, id uuid.UUID) (Group, error) {
	row := r.db.QueryRow(ctx,
		`SELECT id, group_name, created_at FROM user_groups WHERE id = $1`,
		shared.PGUUID(id))
	return scanGroup(row)
}

// ListGroups returns a page of groups ordered by name plus the total count.
func (r *PGRepository) ListGroups(ctx context.Context, limit, offset int) ([]Group, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM user_groups`).Scan(&total); err != nil {
		return nil, 0, mapPGError(err)
	}
	rows, err := r.db.Query(ctx,
		`SELECT id, group_name, created_at FROM user_groups ORDER BY group_name LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, mapPGError(err)
	}
	defer rows.Close()

	var groups []Group
	for rows.Next() {
		group, err := scanGroup(rows)
		if err != nil {
			return nil, 0, err
		}
		groups = append(groups, group)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapPGError(err)
	}
	return groups, total, nil
}

// DeleteGroups nulls the group reference on member users, removes the groups'
// permission assignments and deletes the group rows, all in one transaction.
func (r *PGRepository) DeleteGroups(ctx context.Context, ids []uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	pgIDs := pgUUIDs(ids)
	return db.WithTx(ctx, r.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, `UPDATE users SET user_group_id = NULL WHERE user_group_id = ANY($1)`, pgIDs); err != nil {
			return mapPGError(err)
		}
		if _, err := tx.Exec(ctx, `DELETE FROM group_permissions WHERE group_id = ANY($1)`, pgIDs); err != nil {
			return mapPGError(err)
		}
		tag, err := tx.Exec(ctx, `DELETE FROM user_groups WHERE id = ANY($1)`, pgIDs)
		if err != nil {
			return mapPGError(err)
		}
		if tag.RowsAffected() == 0 {
			return shared.ErrNotFound
		}
		return nil
	})
}

// GrantToUser assigns a permission directly to a user. Granting an already
// held permission is a no-op.
func (r *PGRepository) GrantToUser(ctx context.Context, userID, permissionID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO user_permissions (user_id, permission_id) VALUES ($1, $2)
		 ON CONFLICT (user_id, permission_id) DO NOTHING`,
		shared.PGUUID(userID), shared.PGUUID(permissionID))
	return mapPGError(err)
}

// RevokeFromUser removes a direct grant. Revoking an absent grant is a no-op.
func (r *PGRepository) RevokeFromUser(ctx context.Context, userID, permissionID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM user_permissions WHERE user_id = $1 AND permission_id = $2`,
		shared.PGUUID(userID), shared.PGUUID(permissionID))
	return mapPGError(err)
}

// GrantToGroup assigns a permission to a group. Idempotent.
func (r *PGRepository) GrantToGroup(ctx context.Context, groupID, permissionID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`INSERT INTO group_permissions (group_id, permission_id) VALUES ($1, $2)
		 ON CONFLICT (group_id, permission_id) DO NOTHING`,
		shared.PGUUID(groupID), shared.PGUUID(permissionID))
	return mapPGError(err)
}

// RevokeFromGroup removes a group grant. Revoking an absent grant is a no-op.
func (r *PGRepository) RevokeFromGroup(ctx context.Context, groupID, permissionID uuid.UUID) error {
	_, err := r.db.Exec(ctx,
		`DELETE FROM group_permissions WHERE group_id = $1 AND permission_id = $2`,
		shared.PGUUID(groupID), shared.PGUUID(permissionID))
	return mapPGError(err)
}

// ListUserGrants returns a page of direct user-permission assignments.
func (r *PGRepository) ListUserGrants(ctx context.Context, limit, offset int) ([]UserPermission, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM user_permissions`).Scan(&total); err != nil {
		return nil, 0, mapPGError(err)
	}
	rows, err := r.db.Query(ctx,
		`SELECT user_id, permission_id, created_at FROM user_permissions
		 ORDER BY created_at LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, mapPGError(err)
	}
	defer rows.Close()

	var grants []UserPermission
	for rows.Next() {
		var (
			userID, permID pgUUID
			grant          UserPermission
		)
		if err := rows.Scan(&userID, &permID, &grant.CreatedAt); err != nil {
			return nil, 0, mapPGError(err)
		}
		grant.UserID = shared.UUIDFromPG(userID)
		grant.PermissionID = shared.UUIDFromPG(permID)
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapPGError(err)
	}
	return grants, total, nil
}

// ListGroupGrants returns a page of group-permission assignments.
func (r *PGRepository) ListGroupGrants(ctx context.Context, limit, offset int) ([]GroupPermission, int, error) {
	var total int
	if err := r.db.QueryRow(ctx, `SELECT COUNT(*) FROM group_permissions`).Scan(&total); err != nil {
		return nil, 0, mapPGError(err)
	}
	rows, err := r.db.Query(ctx,
		`SELECT group_id, permission_id, created_at FROM group_permissions
		 ORDER BY created_at LIMIT $1 OFFSET $2`,
		limit, offset)
	if err != nil {
		return nil, 0, mapPGError(err)
	}
	defer rows.Close()

	var grants []GroupPermission
	for rows.Next() {
		var (
			groupID, permID pgUUID
			grant           GroupPermission
		)
		if err := rows.Scan(&groupID, &permID, &grant.CreatedAt); err != nil {
			return nil, 0, mapPGError(err)
		}
		grant.GroupID = shared.UUIDFromPG(groupID)
		grant.PermissionID = shared.UUIDFromPG(permID)
		grants = append(grants, grant)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, mapPGError(err)
	}
	return grants, total, nil
}

// EffectivePermissionNames returns the deduplicated union of the user's direct
// grants and the grants of the user's group, reflecting graph state at call time.
func (r *PGRepository) EffectivePermissionNames(ctx context.Context, userID uuid.UUID) ([]string, error) {
	rows, err := r.db.Query(ctx,
		`SELECT p.name FROM permissions p
		   JOIN user_permissions up ON up.permission_id = p.id
		  WHERE up.user_id = $1
		 UNION
		 SELECT p.name FROM permissions p
		   JOIN group_permissions gp ON gp.permission_id = p.id
		   JOIN users u ON u.user_group_id = gp.group_id
		  WHERE u.id = $1`,
		shared.PGUUID(userID))
	if err != nil {
		return nil, mapPGError(err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, mapPGError(err)
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		return nil, mapPGError(err)
	}
	return names, nil
}

var _ Repository = (*PGRepository)(nil)

func scanPermission(row pgx.Row) (Permission, error) {
	var (
		id   pgUUID
		perm Permission
	)
	if err := row.Scan(&id, &perm.Name, &perm.Description, &perm.CreatedAt); err != nil {
		return Permission{}, mapPGError(err)
	}
	perm.ID = shared.UUIDFromPG(id)
	return perm, nil
}

func scanGroup(row pgx.Row) (Group, error) {
	var (
		id    pgUUID
		group Group
	)
	if err := row.Scan(&id, &group.Name, &group.CreatedAt); err != nil {
		return Group{}, mapPGError(err)
	}
	group.ID = shared.UUIDFromPG(id)
	return group, nil
}

func pgUUIDs(ids []uuid.UUID) []pgUUID {
	out := make([]pgUUID, len(ids))
	for i, id := range ids {
		out[i] = shared.PGUUID(id)
	}
	return out
}

// mapPGError folds store-level failures into the shared taxonomy: uniqueness
// and referential violations become ErrConstraintViolation, missing rows
// ErrNotFound, anything else a retryable ErrStoreUnavailable.
func mapPGError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, pgx.ErrNoRows) {
		return shared.ErrNotFound
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505", "23503":
			return fmt.Errorf("%w: %s", shared.ErrConstraintViolation, pgErr.ConstraintName)
		}
	}
	return fmt.Errorf("%w: %v", shared.ErrStoreUnavailable, err)
}
