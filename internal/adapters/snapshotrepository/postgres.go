package snapshotrepository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/Amund211/gamegate/internal/domain"
	"github.com/Amund211/gamegate/internal/reporting"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
)

type Postgres struct {
	db      *sqlx.DB
	schema  string
	tracer  trace.Tracer
	nowFunc func() time.Time
}

func NewPostgres(db *sqlx.DB, schema string, nowFunc func() time.Time) *Postgres {
	return &Postgres{
		db:      db,
		schema:  schema,
		tracer:  otel.Tracer("gamegate/snapshotrepository/postgres"),
		nowFunc: nowFunc,
	}
}

type dbRecord struct {
	Completed        bool `json:"completed"`
	TotalCoinsEarned int  `json:"totalCoinsEarned"`
	TotalLevels      int  `json:"totalLevels"`
	ReplayUnlocked   bool `json:"replayUnlocked"`
}

type dbSnapshot struct {
	Records  []byte    `db:"records"`
	StoredAt time.Time `db:"stored_at"`
}

func (p *Postgres) StoreSnapshot(ctx context.Context, userID string, catalogKey string, records map[string]domain.ProgressRecord) error {
	ctx, span := p.tracer.Start(ctx, "Postgres.StoreSnapshot")
	defer span.End()

	if userID == "" || catalogKey == "" {
		err := fmt.Errorf("userID and catalogKey must be set")
		reporting.Report(ctx, err)
		return err
	}

	encoded := make(map[string]dbRecord, len(records))
	for gameID, record := range records {
		encoded[gameID] = dbRecord{
			Completed:        record.Completed,
			TotalCoinsEarned: record.TotalCoinsEarned,
			TotalLevels:      record.TotalLevels,
			ReplayUnlocked:   record.ReplayUnlocked,
		}
	}
	data, err := json.Marshal(encoded)
	if err != nil {
		err := fmt.Errorf("failed to marshal snapshot: %w", err)
		reporting.Report(ctx, err)
		return err
	}

	_, err = p.db.ExecContext(
		ctx,
		fmt.Sprintf(`INSERT INTO %s.progress_snapshots
		(user_id, catalog_key, records, stored_at, game_count)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (user_id, catalog_key)
		DO UPDATE SET
			records = EXCLUDED.records,
			stored_at = EXCLUDED.stored_at,
			game_count = EXCLUDED.game_count`,
			pq.QuoteIdentifier(p.schema)),
		userID,
		catalogKey,
		data,
		p.nowFunc(),
		len(records),
	)
	if err != nil {
		err := fmt.Errorf("failed to store snapshot: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"catalogKey": catalogKey,
		})
		return err
	}

	return nil
}

func (p *Postgres) GetSnapshot(ctx context.Context, userID string, catalogKey string) (Snapshot, error) {
	ctx, span := p.tracer.Start(ctx, "Postgres.GetSnapshot")
	defer span.End()

	var row dbSnapshot
	err := p.db.GetContext(
		ctx,
		&row,
		fmt.Sprintf(
			"SELECT records, stored_at FROM %s.progress_snapshots WHERE user_id = $1 AND catalog_key = $2",
			pq.QuoteIdentifier(p.schema),
		),
		userID,
		catalogKey,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return Snapshot{}, domain.ErrSnapshotNotFound
	}
	if err != nil {
		err := fmt.Errorf("failed to get snapshot: %w", err)
		reporting.Report(ctx, err, map[string]string{
			"catalogKey": catalogKey,
		})
		return Snapshot{}, err
	}

	var decoded map[string]dbRecord
	if err := json.Unmarshal(row.Records, &decoded); err != nil {
		err := fmt.Errorf("failed to unmarshal snapshot: %w", err)
		reporting.Report(ctx, err)
		return Snapshot{}, err
	}

	records := make(map[string]domain.ProgressRecord, len(decoded))
	for gameID, record := range decoded {
		records[gameID] = domain.ProgressRecord{
			Completed:        record.Completed,
			TotalCoinsEarned: record.TotalCoinsEarned,
			TotalLevels:      record.TotalLevels,
			ReplayUnlocked:   record.ReplayUnlocked,
		}
	}

	return Snapshot{
		Records:  records,
		StoredAt: row.StoredAt,
	}, nil
}
