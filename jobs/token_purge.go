package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	jobmetrics "github.com/trialdesk/trialdesk/internal/jobs"
)

// revokedRetention keeps revoked rows around long enough for incident review.
const revokedRetention = 30 * 24 * time.Hour

// PurgeRefreshTokens deletes refresh token rows that can never be redeemed
// again: expired tokens, and revoked tokens past the retention window.
func PurgeRefreshTokens(ctx context.Context, pool *pgxpool.Pool, metrics *jobmetrics.Metrics, logger *slog.Logger) error {
	if pool == nil {
		return nil
	}
	tracker := metrics.Track("token_purge")

	cutoff := time.Now().UTC().Add(-revokedRetention)
	tag, err := pool.Exec(ctx,
		`DELETE FROM refresh_tokens
		 WHERE expires_at < NOW()
		    OR (revoked_at IS NOT NULL AND revoked_at < $1)`,
		cutoff,
	)
	if err != nil {
		if logger != nil {
			logger.Error("purge refresh tokens", slog.Any("error", err))
		}
		return tracker.End(err)
	}

	purged := tag.RowsAffected()
	metrics.AddPurgedTokens(int(purged))
	if logger != nil {
		logger.Info("purged refresh tokens",
			slog.String("job", "token_purge"),
			slog.Int64("rows", purged),
		)
	}
	return tracker.End(nil)
}
