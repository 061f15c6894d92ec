// Package postgres provides the PostgreSQL-backed device authorization
// repository. State transitions are conditional updates so at most one
// concurrent writer wins any given transition.
package postgres

import (
	"context"
	"database/sql"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/database"
	"github.com/devtrackhq/devtrack-auth/internal/dtauthd/deviceauth"
)

const authColumns = `
	id, device_code, user_code, device_name, device_type, device_identifier,
	owner_id, owner_email, status, active, expires_at, token_claimed_at,
	last_seen_at, created_at, updated_at
`

type Repository struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewRepository creates a PostgreSQL device authorization repository.
func NewRepository(db *sql.DB, logger *slog.Logger) deviceauth.Repository {
	return &Repository{db: db, logger: logger}
}

func (r *Repository) Create(ctx context.Context, auth *deviceauth.DeviceAuthorization) error {
	const op = "DeviceAuthRepository.Create"

	err := database.RunInTx(ctx, r.db, nil, func(tx *database.Tx) error {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO device_authorizations (
				id, device_code, user_code, device_name, device_type,
				device_identifier, status, active, expires_at,
				created_at, updated_at
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
			auth.ID,
			auth.DeviceCode,
			auth.UserCode,
			auth.DeviceName,
			auth.DeviceType,
			auth.DeviceIdentifier,
			auth.Status,
			auth.Active,
			auth.ExpiresAt,
			auth.CreatedAt,
			auth.UpdatedAt,
		)
		return err
	})

	if err != nil {
		return database.MapError(err, op)
	}
	return nil
}

func (r *Repository) FindByDeviceCode(ctx context.Context, deviceCode string) (*deviceauth.DeviceAuthorization, error) {
	const op = "DeviceAuthRepository.FindByDeviceCode"

	row := r.db.QueryRowContext(ctx, `
		SELECT `+authColumns+`
		FROM device_authorizations
		WHERE device_code = $1
	`, deviceCode)

	auth, err := scanAuth(row)
	if err != nil {
		return nil, database.MapError(err, op)
	}
	return auth, nil
}

func (r *Repository) FindByID(ctx context.Context, id uuid.UUID) (*deviceauth.DeviceAuthorization, error) {
	const op = "DeviceAuthRepository.FindByID"

	row := r.db.QueryRowContext(ctx, `
		SELECT `+authColumns+`
		FROM device_authorizations
		WHERE id = $1
	`, id)

	auth, err := scanAuth(row)
	if err != nil {
		return nil, database.MapError(err, op)
	}
	return auth, nil
}

func (r *Repository) ListActiveByOwner(ctx context.Context, ownerID uuid.UUID) ([]deviceauth.DeviceAuthorization, error) {
	const op = "DeviceAuthRepository.ListActiveByOwner"

	rows, err := r.db.QueryContext(ctx, `
		SELECT `+authColumns+`
		FROM device_authorizations
		WHERE owner_id = $1 AND status = 'approved'
		ORDER BY created_at DESC
	`, ownerID)
	if err != nil {
		return nil, database.MapError(err, op)
	}
	defer rows.Close()

	var devices []deviceauth.DeviceAuthorization
	for rows.Next() {
		auth, err := scanAuth(rows)
		if err != nil {
			return nil, database.MapError(err, op)
		}
		devices = append(devices, *auth)
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError(err, op)
	}

	return devices, nil
}

func (r *Repository) HasActiveByOwner(ctx context.Context, ownerID uuid.UUID) (bool, error) {
	const op = "DeviceAuthRepository.HasActiveByOwner"

	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM device_authorizations
			WHERE owner_id = $1 AND status = 'approved'
		)
	`, ownerID).Scan(&exists)
	if err != nil {
		return false, database.MapError(err, op)
	}
	return exists, nil
}

func (r *Repository) Approve(ctx context.Context, deviceCode string, ownerID uuid.UUID, ownerEmail string) (*deviceauth.DeviceAuthorization, error) {
	const op = "DeviceAuthRepository.Approve"

	row := r.db.QueryRowContext(ctx, `
		UPDATE device_authorizations
		SET owner_id = $2,
		    owner_email = $3,
		    status = 'approved',
		    active = TRUE,
		    updated_at = NOW()
		WHERE device_code = $1 AND status = 'pending'
		RETURNING `+authColumns+`
	`, deviceCode, ownerID, ownerEmail)

	auth, err := scanAuth(row)
	if err != nil {
		return nil, database.MapError(err, op)
	}
	return auth, nil
}

func (r *Repository) ClaimToken(ctx context.Context, deviceCode string, claimedAt time.Time) (*deviceauth.DeviceAuthorization, error) {
	const op = "DeviceAuthRepository.ClaimToken"

	row := r.db.QueryRowContext(ctx, `
		UPDATE device_authorizations
		SET token_claimed_at = $2,
		    updated_at = NOW()
		WHERE device_code = $1
		  AND status = 'approved'
		  AND token_claimed_at IS NULL
		RETURNING `+authColumns+`
	`, deviceCode, claimedAt)

	auth, err := scanAuth(row)
	if err != nil {
		return nil, database.MapError(err, op)
	}
	return auth, nil
}

func (r *Repository) MarkExpired(ctx context.Context, deviceCode string) error {
	const op = "DeviceAuthRepository.MarkExpired"

	_, err := r.db.ExecContext(ctx, `
		UPDATE device_authorizations
		SET status = 'expired',
		    active = FALSE,
		    updated_at = NOW()
		WHERE device_code = $1 AND status = 'pending'
	`, deviceCode)
	if err != nil {
		return database.MapError(err, op)
	}
	return nil
}

func (r *Repository) Revoke(ctx context.Context, id uuid.UUID, ownerID uuid.UUID) error {
	const op = "DeviceAuthRepository.Revoke"

	result, err := r.db.ExecContext(ctx, `
		UPDATE device_authorizations
		SET status = 'revoked',
		    active = FALSE,
		    updated_at = NOW()
		WHERE id = $1 AND owner_id = $2 AND status = 'approved'
	`, id, ownerID)
	if err != nil {
		return database.MapError(err, op)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return database.MapError(err, op)
	}
	if affected == 0 {
		return database.MapError(sql.ErrNoRows, op)
	}
	return nil
}

func (r *Repository) TouchLastSeen(ctx context.Context, ownerID uuid.UUID, seenAt time.Time) error {
	const op = "DeviceAuthRepository.TouchLastSeen"

	_, err := r.db.ExecContext(ctx, `
		UPDATE device_authorizations
		SET last_seen_at = $2
		WHERE owner_id = $1 AND status = 'approved'
	`, ownerID, seenAt)
	if err != nil {
		return database.MapError(err, op)
	}
	return nil
}

func (r *Repository) DeleteExpiredBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	const op = "DeviceAuthRepository.DeleteExpiredBefore"

	result, err := r.db.ExecContext(ctx, `
		DELETE FROM device_authorizations
		WHERE expires_at < $1
	`, cutoff)
	if err != nil {
		return 0, database.MapError(err, op)
	}

	count, err := result.RowsAffected()
	if err != nil {
		return 0, database.MapError(err, op)
	}
	return count, nil
}

func (r *Repository) CountByStatus(ctx context.Context) (map[deviceauth.Status]int64, error) {
	const op = "DeviceAuthRepository.CountByStatus"

	rows, err := r.db.QueryContext(ctx, `
		SELECT status, COUNT(*)
		FROM device_authorizations
		GROUP BY status
	`)
	if err != nil {
		return nil, database.MapError(err, op)
	}
	defer rows.Close()

	counts := make(map[deviceauth.Status]int64)
	for rows.Next() {
		var status deviceauth.Status
		var count int64
		if err := rows.Scan(&status, &count); err != nil {
			return nil, database.MapError(err, op)
		}
		counts[status] = count
	}
	if err := rows.Err(); err != nil {
		return nil, database.MapError(err, op)
	}

	return counts, nil
}

// scanner covers both sql.Row and sql.Rows.
type scanner interface {
	Scan(dest ...interface{}) error
}

func scanAuth(row scanner) (*deviceauth.DeviceAuthorization, error) {
	var auth deviceauth.DeviceAuthorization
	var ownerEmail sql.NullString

	err := row.Scan(
		&auth.ID,
		&auth.DeviceCode,
		&auth.UserCode,
		&auth.DeviceName,
		&auth.DeviceType,
		&auth.DeviceIdentifier,
		&auth.OwnerID,
		&ownerEmail,
		&auth.Status,
		&auth.Active,
		&auth.ExpiresAt,
		&auth.TokenClaimedAt,
		&auth.LastSeenAt,
		&auth.CreatedAt,
		&auth.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	auth.OwnerEmail = ownerEmail.String
	return &auth, nil
}
