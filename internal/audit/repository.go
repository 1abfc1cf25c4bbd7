package audit

import (
	"context"
	"database/sql"
	"fmt"

	"booking-platform/pkg/utils"
)

// PostgresRepo appends audit events to Postgres. Insert-only.
type PostgresRepo struct {
	pool *sql.DB
}

func NewPostgresRepo(pool *sql.DB) *PostgresRepo {
	return &PostgresRepo{pool: pool}
}

func (r *PostgresRepo) Append(ctx context.Context, e Event) error {
	const q = `
		INSERT INTO audit_events (
			id, type, actor_user_id, actor_role, ip_address,
			booking_id, wallet_id, capture_id, message, metadata, created_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

	_, err := utils.DB(ctx, r.pool).ExecContext(ctx, q,
		e.ID, e.Type, e.ActorUserID, e.ActorRole, e.IPAddress,
		e.BookingID, e.WalletID, e.CaptureID, e.Message, e.Metadata, e.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("append audit event: %w", err)
	}
	return nil
}
