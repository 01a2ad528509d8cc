package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	stderrors "errors"
	"time"

	"github.com/lib/pq"

	"github.com/Meridian-Network/marketplace_layer/internal/app/domain/admin"
	"github.com/Meridian-Network/marketplace_layer/internal/app/domain/ask"
	"github.com/Meridian-Network/marketplace_layer/internal/app/domain/service"
	"github.com/Meridian-Network/marketplace_layer/internal/app/storage"
	"github.com/Meridian-Network/marketplace_layer/internal/errors"
)

// Store implements the storage interfaces backed by PostgreSQL.
type Store struct {
	db *sql.DB
}

var _ storage.ConfigStore = (*Store)(nil)
var _ storage.ServiceStore = (*Store)(nil)
var _ storage.AskStore = (*Store)(nil)

// New creates a Store using the provided database handle.
func New(db *sql.DB) *Store {
	return &Store{db: db}
}

// EnsureSchema creates the marketplace tables when they do not exist yet.
func (s *Store) EnsureSchema(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS marketplace_config (
			singleton  BOOLEAN PRIMARY KEY DEFAULT TRUE CHECK (singleton),
			admin      TEXT NOT NULL,
			royalty_fee_basis_points INTEGER NOT NULL,
			initialized BOOLEAN NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS marketplace_services (
			asset_id        TEXT PRIMARY KEY,
			original_vendor TEXT NOT NULL,
			current_vendor  TEXT NOT NULL,
			price           BIGINT NOT NULL,
			soulbound       BOOLEAN NOT NULL,
			agreements      JSONB,
			created_at      TIMESTAMPTZ NOT NULL,
			updated_at      TIMESTAMPTZ NOT NULL
		);
		CREATE TABLE IF NOT EXISTS marketplace_asks (
			asset_id   TEXT PRIMARY KEY,
			asker      TEXT NOT NULL,
			ask_price  BIGINT NOT NULL,
			escrow     BIGINT NOT NULL,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL
		);
	`)
	return err
}

// --- ConfigStore ------------------------------------------------------------

func (s *Store) CreateConfig(ctx context.Context, cfg admin.Config) (admin.Config, error) {
	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO marketplace_config (singleton, admin, royalty_fee_basis_points, initialized, created_at, updated_at)
		VALUES (TRUE, $1, $2, $3, $4, $5)
	`, cfg.Admin, int(cfg.RoyaltyFeeBasisPoints), cfg.Initialized, cfg.CreatedAt, cfg.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return admin.Config{}, errors.ErrAlreadyExists
		}
		return admin.Config{}, err
	}
	return cfg, nil
}

func (s *Store) UpdateConfig(ctx context.Context, cfg admin.Config) (admin.Config, error) {
	cfg.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE marketplace_config
		SET admin = $1, royalty_fee_basis_points = $2, initialized = $3, updated_at = $4
		WHERE singleton
	`, cfg.Admin, int(cfg.RoyaltyFeeBasisPoints), cfg.Initialized, cfg.UpdatedAt)
	if err != nil {
		return admin.Config{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return admin.Config{}, errors.NotFound("config", "singleton")
	}
	return cfg, nil
}

func (s *Store) GetConfig(ctx context.Context) (admin.Config, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT admin, royalty_fee_basis_points, initialized, created_at, updated_at
		FROM marketplace_config
		WHERE singleton
	`)

	var (
		cfg admin.Config
		bps int
	)
	if err := row.Scan(&cfg.Admin, &bps, &cfg.Initialized, &cfg.CreatedAt, &cfg.UpdatedAt); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return admin.Config{}, errors.NotFound("config", "singleton")
		}
		return admin.Config{}, err
	}
	cfg.RoyaltyFeeBasisPoints = uint16(bps)
	return cfg, nil
}

// --- ServiceStore -----------------------------------------------------------

func (s *Store) CreateService(ctx context.Context, rec service.Record) (service.Record, error) {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	agreementsJSON, err := json.Marshal(rec.Agreements)
	if err != nil {
		return service.Record{}, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO marketplace_services (asset_id, original_vendor, current_vendor, price, soulbound, agreements, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
	`, rec.AssetID, rec.OriginalVendor, rec.CurrentVendor, int64(rec.Price), rec.Soulbound, agreementsJSON, rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return service.Record{}, errors.ErrAlreadyExists
		}
		return service.Record{}, err
	}
	return rec, nil
}

func (s *Store) UpdateService(ctx context.Context, rec service.Record) (service.Record, error) {
	rec.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE marketplace_services
		SET current_vendor = $2, price = $3, updated_at = $4
		WHERE asset_id = $1
	`, rec.AssetID, rec.CurrentVendor, int64(rec.Price), rec.UpdatedAt)
	if err != nil {
		return service.Record{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return service.Record{}, errors.NotFound("service", rec.AssetID)
	}
	return rec, nil
}

func (s *Store) GetService(ctx context.Context, assetID string) (service.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT asset_id, original_vendor, current_vendor, price, soulbound, agreements, created_at, updated_at
		FROM marketplace_services
		WHERE asset_id = $1
	`, assetID)
	return scanService(row)
}

func (s *Store) ListServices(ctx context.Context) ([]service.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT asset_id, original_vendor, current_vendor, price, soulbound, agreements, created_at, updated_at
		FROM marketplace_services
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []service.Record
	for rows.Next() {
		rec, err := scanService(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, rec)
	}
	return result, rows.Err()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanService(row scanner) (service.Record, error) {
	var (
		rec           service.Record
		price         int64
		agreementsRaw []byte
	)
	err := row.Scan(&rec.AssetID, &rec.OriginalVendor, &rec.CurrentVendor, &price, &rec.Soulbound, &agreementsRaw, &rec.CreatedAt, &rec.UpdatedAt)
	if err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return service.Record{}, errors.ErrNotFound
		}
		return service.Record{}, err
	}
	rec.Price = uint64(price)
	if len(agreementsRaw) > 0 {
		_ = json.Unmarshal(agreementsRaw, &rec.Agreements)
	}
	return rec, nil
}

// --- AskStore ---------------------------------------------------------------

func (s *Store) CreateAsk(ctx context.Context, rec ask.Record) (ask.Record, error) {
	now := time.Now().UTC()
	rec.CreatedAt = now
	rec.UpdatedAt = now

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO marketplace_asks (asset_id, asker, ask_price, escrow, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, rec.AssetID, rec.Asker, int64(rec.AskPrice), int64(rec.Escrow), rec.CreatedAt, rec.UpdatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return ask.Record{}, errors.ErrAlreadyExists
		}
		return ask.Record{}, err
	}
	return rec, nil
}

func (s *Store) UpdateAsk(ctx context.Context, rec ask.Record) (ask.Record, error) {
	rec.UpdatedAt = time.Now().UTC()

	result, err := s.db.ExecContext(ctx, `
		UPDATE marketplace_asks
		SET asker = $2, ask_price = $3, escrow = $4, updated_at = $5
		WHERE asset_id = $1
	`, rec.AssetID, rec.Asker, int64(rec.AskPrice), int64(rec.Escrow), rec.UpdatedAt)
	if err != nil {
		return ask.Record{}, err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return ask.Record{}, errors.NotFound("ask", rec.AssetID)
	}
	return rec, nil
}

func (s *Store) GetAsk(ctx context.Context, assetID string) (ask.Record, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT asset_id, asker, ask_price, escrow, created_at, updated_at
		FROM marketplace_asks
		WHERE asset_id = $1
	`, assetID)

	var (
		rec      ask.Record
		price    int64
		escrowed int64
	)
	if err := row.Scan(&rec.AssetID, &rec.Asker, &price, &escrowed, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
		if stderrors.Is(err, sql.ErrNoRows) {
			return ask.Record{}, errors.NotFound("ask", assetID)
		}
		return ask.Record{}, err
	}
	rec.AskPrice = uint64(price)
	rec.Escrow = uint64(escrowed)
	return rec, nil
}

func (s *Store) DeleteAsk(ctx context.Context, assetID string) error {
	result, err := s.db.ExecContext(ctx, `
		DELETE FROM marketplace_asks WHERE asset_id = $1
	`, assetID)
	if err != nil {
		return err
	}
	if rows, _ := result.RowsAffected(); rows == 0 {
		return errors.NotFound("ask", assetID)
	}
	return nil
}

func (s *Store) ListAsks(ctx context.Context) ([]ask.Record, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT asset_id, asker, ask_price, escrow, created_at, updated_at
		FROM marketplace_asks
		ORDER BY created_at
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var result []ask.Record
	for rows.Next() {
		var (
			rec      ask.Record
			price    int64
			escrowed int64
		)
		if err := rows.Scan(&rec.AssetID, &rec.Asker, &price, &escrowed, &rec.CreatedAt, &rec.UpdatedAt); err != nil {
			return nil, err
		}
		rec.AskPrice = uint64(price)
		rec.Escrow = uint64(escrowed)
		result = append(result, rec)
	}
	return result, rows.Err()
}

// isUniqueViolation reports a PostgreSQL unique_violation (SQLSTATE 23505).
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if stderrors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	return false
}
