package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"vistream/models"
)

// FamilyRepository persists the family aggregate: families, members, invites.
// Capacity-affecting writes run inside caller-managed transactions so the
// check-then-act sequence in the family service is serialized by the database.
type FamilyRepository struct {
	db *sql.DB
}

// NewFamilyRepository constructs a family repository.
func NewFamilyRepository(db *sql.DB) *FamilyRepository {
	return &FamilyRepository{db: db}
}

// BeginTx opens a write transaction. The connection is configured with
// _txlock=immediate, so the database write lock is taken here, not at the
// first write.
func (r *FamilyRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

const familyColumns = "id, owner_id, max_members, created_at"
const inviteColumns = "id, family_id, token, email, status, expires_at, created_at, used_by, used_at"
const memberColumns = "id, family_id, user_id, joined_at"

// GetByOwner fetches the family owned by the given user; nil when absent.
func (r *FamilyRepository) GetByOwner(ctx context.Context, ownerID string) (*models.Family, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+familyColumns+` FROM families WHERE owner_id = ?`, ownerID)
	return scanFamilyRow(row)
}

// GetByOwnerTx is GetByOwner inside a transaction.
func (r *FamilyRepository) GetByOwnerTx(tx *sql.Tx, ownerID string) (*models.Family, error) {
	row := tx.QueryRow(`SELECT `+familyColumns+` FROM families WHERE owner_id = ?`, ownerID)
	return scanFamilyRow(row)
}

// GetByIDTx fetches a family by id inside a transaction; nil when absent.
func (r *FamilyRepository) GetByIDTx(tx *sql.Tx, id string) (*models.Family, error) {
	row := tx.QueryRow(`SELECT `+familyColumns+` FROM families WHERE id = ?`, id)
	return scanFamilyRow(row)
}

// InsertTx creates a family row inside a transaction.
func (r *FamilyRepository) InsertTx(tx *sql.Tx, f models.Family) error {
	_, err := tx.Exec(
		`INSERT INTO families (`+familyColumns+`) VALUES (?, ?, ?, ?)`,
		f.ID, f.OwnerID, f.MaxMembers, formatTime(f.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("insert family: %w", err)
	}
	return nil
}

// CountsTx returns the active member count and pending, unexpired invite
// count for a family, read inside the transaction that will act on them.
func (r *FamilyRepository) CountsTx(tx *sql.Tx, familyID string, now time.Time) (members, pendingInvites int, err error) {
	row := tx.QueryRow(`SELECT COUNT(1) FROM family_members WHERE family_id = ?`, familyID)
	if err := row.Scan(&members); err != nil {
		return 0, 0, fmt.Errorf("count members: %w", err)
	}

	row = tx.QueryRow(
		`SELECT COUNT(1) FROM family_invites WHERE family_id = ? AND status = ? AND expires_at > ?`,
		familyID, models.InviteStatusPending, formatTime(now),
	)
	if err := row.Scan(&pendingInvites); err != nil {
		return 0, 0, fmt.Errorf("count pending invites: %w", err)
	}
	return members, pendingInvites, nil
}

// Counts is CountsTx outside a transaction, for display purposes.
func (r *FamilyRepository) Counts(ctx context.Context, familyID string, now time.Time) (members, pendingInvites int, err error) {
	row := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM family_members WHERE family_id = ?`, familyID)
	if err := row.Scan(&members); err != nil {
		return 0, 0, fmt.Errorf("count members: %w", err)
	}

	row = r.db.QueryRowContext(
		ctx,
		`SELECT COUNT(1) FROM family_invites WHERE family_id = ? AND status = ? AND expires_at > ?`,
		familyID, models.InviteStatusPending, formatTime(now),
	)
	if err := row.Scan(&pendingInvites); err != nil {
		return 0, 0, fmt.Errorf("count pending invites: %w", err)
	}
	return members, pendingInvites, nil
}

// InsertInviteTx creates an invite row inside a transaction.
func (r *FamilyRepository) InsertInviteTx(tx *sql.Tx, inv models.FamilyInvite) error {
	_, err := tx.Exec(
		`INSERT INTO family_invites (`+inviteColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID,
		inv.FamilyID,
		inv.Token,
		nullableString(inv.Email),
		inv.Status,
		formatTime(inv.ExpiresAt),
		formatTime(inv.CreatedAt),
		nullableString(inv.UsedBy),
		nullableTime(inv.UsedAt),
	)
	if err != nil {
		return fmt.Errorf("insert invite: %w", err)
	}
	return nil
}

// GetInviteByTokenTx fetches an invite by token inside a transaction; nil
// when absent.
func (r *FamilyRepository) GetInviteByTokenTx(tx *sql.Tx, token string) (*models.FamilyInvite, error) {
	row := tx.QueryRow(`SELECT `+inviteColumns+` FROM family_invites WHERE token = ?`, token)
	return scanInviteRow(row)
}

// GetInvite fetches an invite by id; nil when absent.
func (r *FamilyRepository) GetInvite(ctx context.Context, id string) (*models.FamilyInvite, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+inviteColumns+` FROM family_invites WHERE id = ?`, id)
	return scanInviteRow(row)
}

// MarkInviteAcceptedTx transitions an invite to accepted inside a transaction.
func (r *FamilyRepository) MarkInviteAcceptedTx(tx *sql.Tx, inviteID, usedBy string, usedAt time.Time) error {
	_, err := tx.Exec(
		`UPDATE family_invites SET status = ?, used_by = ?, used_at = ? WHERE id = ?`,
		models.InviteStatusAccepted,
		usedBy,
		formatTime(usedAt),
		inviteID,
	)
	if err != nil {
		return fmt.Errorf("mark invite accepted: %w", err)
	}
	return nil
}

// RevokePendingInvite flips an invite to revoked only while it is still
// pending, reporting whether the row was updated. The status guard lives in
// the UPDATE itself so a concurrent acceptance cannot be overwritten.
func (r *FamilyRepository) RevokePendingInvite(ctx context.Context, inviteID string) (bool, error) {
	res, err := r.db.ExecContext(
		ctx,
		`UPDATE family_invites SET status = ? WHERE id = ? AND status = ?`,
		models.InviteStatusRevoked,
		inviteID,
		models.InviteStatusPending,
	)
	if err != nil {
		return false, fmt.Errorf("revoke invite: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("revoke invite: %w", err)
	}
	return affected > 0, nil
}

// InsertMemberTx creates a member row inside a transaction.
func (r *FamilyRepository) InsertMemberTx(tx *sql.Tx, m models.FamilyMember) error {
	_, err := tx.Exec(
		`INSERT INTO family_members (`+memberColumns+`) VALUES (?, ?, ?, ?)`,
		m.ID, m.FamilyID, m.UserID, formatTime(m.JoinedAt),
	)
	if err != nil {
		return fmt.Errorf("insert member: %w", err)
	}
	return nil
}

// MemberExistsTx reports whether a user already occupies a slot in the family.
func (r *FamilyRepository) MemberExistsTx(tx *sql.Tx, familyID, userID string) (bool, error) {
	var count int
	row := tx.QueryRow(`SELECT COUNT(1) FROM family_members WHERE family_id = ? AND user_id = ?`, familyID, userID)
	if err := row.Scan(&count); err != nil {
		return false, fmt.Errorf("check membership: %w", err)
	}
	return count > 0, nil
}

// ListMembers returns the family's members ordered by join time.
func (r *FamilyRepository) ListMembers(ctx context.Context, familyID string) ([]models.FamilyMember, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+memberColumns+` FROM family_members WHERE family_id = ? ORDER BY joined_at`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	var members []models.FamilyMember
	for rows.Next() {
		var (
			m         models.FamilyMember
			joinedRaw string
		)
		if err := rows.Scan(&m.ID, &m.FamilyID, &m.UserID, &joinedRaw); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		if t, err := parseTimeString(joinedRaw); err == nil {
			m.JoinedAt = t
		}
		members = append(members, m)
	}
	return members, rows.Err()
}

// ListInvites returns the family's invites ordered by creation time.
func (r *FamilyRepository) ListInvites(ctx context.Context, familyID string) ([]models.FamilyInvite, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+inviteColumns+` FROM family_invites WHERE family_id = ? ORDER BY created_at`,
		familyID,
	)
	if err != nil {
		return nil, fmt.Errorf("list invites: %w", err)
	}
	defer rows.Close()

	var invites []models.FamilyInvite
	for rows.Next() {
		inv, err := scanInvite(rows)
		if err != nil {
			return nil, err
		}
		invites = append(invites, *inv)
	}
	return invites, rows.Err()
}

// DeleteCascadeTx removes a family with all its members and invites inside a
// transaction. Explicit deletes rather than relying on foreign key cascades
// keep the operation visible and countable.
func (r *FamilyRepository) DeleteCascadeTx(tx *sql.Tx, familyID string) error {
	if _, err := tx.Exec(`DELETE FROM family_invites WHERE family_id = ?`, familyID); err != nil {
		return fmt.Errorf("delete family invites: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM family_members WHERE family_id = ?`, familyID); err != nil {
		return fmt.Errorf("delete family members: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM families WHERE id = ?`, familyID); err != nil {
		return fmt.Errorf("delete family: %w", err)
	}
	return nil
}

// ExpirePendingInvites flips pending invites whose expiry has passed to
// expired, returning the number affected.
func (r *FamilyRepository) ExpirePendingInvites(ctx context.Context, now time.Time) (int64, error) {
	res, err := r.db.ExecContext(
		ctx,
		`UPDATE family_invites SET status = ? WHERE status = ? AND expires_at <= ?`,
		models.InviteStatusExpired,
		models.InviteStatusPending,
		formatTime(now),
	)
	if err != nil {
		return 0, fmt.Errorf("expire pending invites: %w", err)
	}
	return res.RowsAffected()
}

func scanFamilyRow(row *sql.Row) (*models.Family, error) {
	var (
		f          models.Family
		createdRaw string
	)
	err := row.Scan(&f.ID, &f.OwnerID, &f.MaxMembers, &createdRaw)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("scan family: %w", err)
	}
	if t, err := parseTimeString(createdRaw); err == nil {
		f.CreatedAt = t
	}
	return &f, nil
}

func scanInviteRow(row *sql.Row) (*models.FamilyInvite, error) {
	inv, err := scanInvite(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return inv, nil
}

func scanInvite(scanner interface{ Scan(dest ...any) error }) (*models.FamilyInvite, error) {
	var (
		inv        models.FamilyInvite
		email      sql.NullString
		usedBy     sql.NullString
		usedRaw    sql.NullString
		expiresRaw string
		createdRaw string
	)
	if err := scanner.Scan(&inv.ID, &inv.FamilyID, &inv.Token, &email, &inv.Status, &expiresRaw, &createdRaw, &usedBy, &usedRaw); err != nil {
		return nil, err
	}
	inv.Email = email.String
	inv.UsedBy = usedBy.String
	if t, err := parseTimeString(expiresRaw); err == nil {
		inv.ExpiresAt = t
	}
	if t, err := parseTimeString(createdRaw); err == nil {
		inv.CreatedAt = t
	}
	if usedRaw.Valid {
		if t, err := parseTimeString(usedRaw.String); err == nil {
			inv.UsedAt = &t
		}
	}
	return &inv, nil
}
