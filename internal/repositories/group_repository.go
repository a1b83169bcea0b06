package repositories

import (
	"context"
	"database/sql"
	"errors"
	"sort"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"chat-backend/internal/models"
)

var ErrGroupNotFound = errors.New("group not found")

// GroupRepository abstracts group persistence, including the per-member
// unread counters.
type GroupRepository interface {
	CreateGroup(ctx context.Context, creatorID int, name string, memberIDs []int) (models.Group, error)
	GetGroup(ctx context.Context, groupID int) (models.Group, error)
	ListGroupsForUser(ctx context.Context, userID int) ([]models.Group, error)
	IsMember(ctx context.Context, groupID, userID int) (bool, error)
	UpdateGroup(ctx context.Context, groupID int, name, avatar string) error
	AddMembers(ctx context.Context, groupID int, memberIDs []int) error
	RemoveMembers(ctx context.Context, groupID int, memberIDs []int) error
	DeleteGroup(ctx context.Context, groupID int) error
	IncrementUnread(ctx context.Context, groupID int, memberIDs []int) error
	ResetUnread(ctx context.Context, groupID, userID int) error
	UnreadCounts(ctx context.Context, groupID int) (models.UnreadCounts, error)
}

// GroupRepo is a sqlx implementation of GroupRepository.
type GroupRepo struct {
	db *sqlx.DB
}

// NewGroupRepo constructs a GroupRepo.
func NewGroupRepo(db *sqlx.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

// CreateGroup creates a group and its members atomically. The creator is
// always included and duplicates are collapsed.
func (r *GroupRepo) CreateGroup(ctx context.Context, creatorID int, name string, memberIDs []int) (models.Group, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return models.Group{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var group models.Group
	if err = tx.QueryRowxContext(ctx, `INSERT INTO groups (name, creator_id) VALUES ($1, $2)
        RETURNING id, name, creator_id, avatar, created_at`, name, creatorID).
		StructScan(&group); err != nil {
		return models.Group{}, err
	}

	memberSet := map[int]struct{}{creatorID: {}}
	for _, id := range memberIDs {
		memberSet[id] = struct{}{}
	}
	ids := make([]int, 0, len(memberSet))
	for id := range memberSet {
		ids = append(ids, id)
	}
	sort.Ints(ids)

	for _, id := range ids {
		if _, err = tx.ExecContext(ctx, `INSERT INTO group_members (group_id, user_id) VALUES ($1, $2)`, group.ID, id); err != nil {
			return models.Group{}, err
		}
	}

	if err = tx.Commit(); err != nil {
		return models.Group{}, err
	}
	group.Members = ids
	return group, nil
}

// GetGroup fetches a group with its member set.
func (r *GroupRepo) GetGroup(ctx context.Context, groupID int) (models.Group, error) {
	var group models.Group
	err := r.db.GetContext(ctx, &group, `SELECT id, name, creator_id, avatar, created_at FROM groups WHERE id=$1`, groupID)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Group{}, ErrGroupNotFound
	}
	if err != nil {
		return models.Group{}, err
	}

	if err := r.db.SelectContext(ctx, &group.Members, `SELECT user_id FROM group_members WHERE group_id=$1 ORDER BY user_id`, groupID); err != nil {
		return models.Group{}, err
	}
	return group, nil
}

// ListGroupsForUser returns groups that include the user, members attached.
func (r *GroupRepo) ListGroupsForUser(ctx context.Context, userID int) ([]models.Group, error) {
	var groups []models.Group
	err := r.db.SelectContext(ctx, &groups, `SELECT g.id, g.name, g.creator_id, g.avatar, g.created_at
        FROM groups g INNER JOIN group_members gm ON gm.group_id = g.id
        WHERE gm.user_id=$1 ORDER BY g.created_at DESC`, userID)
	if err != nil {
		return nil, err
	}

	for i := range groups {
		if err := r.db.SelectContext(ctx, &groups[i].Members, `SELECT user_id FROM group_members WHERE group_id=$1 ORDER BY user_id`, groups[i].ID); err != nil {
			return nil, err
		}
	}
	return groups, nil
}

// IsMember checks membership.
func (r *GroupRepo) IsMember(ctx context.Context, groupID, userID int) (bool, error) {
	var exists bool
	err := r.db.GetContext(ctx, &exists, `SELECT EXISTS(SELECT 1 FROM group_members WHERE group_id=$1 AND user_id=$2)`, groupID, userID)
	return exists, err
}

// UpdateGroup renames the group and/or replaces its avatar. Empty values
// leave the current ones in place.
func (r *GroupRepo) UpdateGroup(ctx context.Context, groupID int, name, avatar string) error {
	res, err := r.db.ExecContext(ctx, `UPDATE groups SET
        name = CASE WHEN $2 <> '' THEN $2 ELSE name END,
        avatar = CASE WHEN $3 <> '' THEN $3 ELSE avatar END
        WHERE id=$1`, groupID, name, avatar)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// AddMembers inserts new members, ignoring ones already present.
func (r *GroupRepo) AddMembers(ctx context.Context, groupID int, memberIDs []int) error {
	if len(memberIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO group_members (group_id, user_id)
        SELECT $1, unnest($2::int[]) ON CONFLICT DO NOTHING`, groupID, pq.Array(memberIDs))
	return err
}

// RemoveMembers drops members from the group. The creator row is never
// removed.
func (r *GroupRepo) RemoveMembers(ctx context.Context, groupID int, memberIDs []int) error {
	if len(memberIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `DELETE FROM group_members
        WHERE group_id=$1 AND user_id = ANY($2::int[])
        AND user_id <> (SELECT creator_id FROM groups WHERE id=$1)`, groupID, pq.Array(memberIDs))
	return err
}

// DeleteGroup removes the group; members, counters and messages cascade.
func (r *GroupRepo) DeleteGroup(ctx context.Context, groupID int) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM groups WHERE id=$1`, groupID)
	if err != nil {
		return err
	}
	count, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if count == 0 {
		return ErrGroupNotFound
	}
	return nil
}

// IncrementUnread bumps each listed member's counter by one in a single
// atomic upsert, never via read-modify-write.
func (r *GroupRepo) IncrementUnread(ctx context.Context, groupID int, memberIDs []int) error {
	if len(memberIDs) == 0 {
		return nil
	}
	_, err := r.db.ExecContext(ctx, `INSERT INTO group_unread (group_id, user_id, unread)
        SELECT $1, unnest($2::int[]), 1
        ON CONFLICT (group_id, user_id) DO UPDATE SET unread = group_unread.unread + 1`,
		groupID, pq.Array(memberIDs))
	return err
}

// ResetUnread zeroes a member's counter.
func (r *GroupRepo) ResetUnread(ctx context.Context, groupID, userID int) error {
	_, err := r.db.ExecContext(ctx, `INSERT INTO group_unread (group_id, user_id, unread) VALUES ($1, $2, 0)
        ON CONFLICT (group_id, user_id) DO UPDATE SET unread = 0`, groupID, userID)
	return err
}

// UnreadCounts loads the group's counter map; members without an entry read
// as zero through models.UnreadCounts.
func (r *GroupRepo) UnreadCounts(ctx context.Context, groupID int) (models.UnreadCounts, error) {
	rows, err := r.db.QueryxContext(ctx, `SELECT user_id, unread FROM group_unread WHERE group_id=$1`, groupID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := models.UnreadCounts{}
	for rows.Next() {
		var userID, unread int
		if err := rows.Scan(&userID, &unread); err != nil {
			return nil, err
		}
		counts[userID] = unread
	}
	return counts, rows.Err()
}
