package store

import (
	"context"
	"time"

	"main/internal/errors"
	"main/internal/model"
	"main/internal/model/enum"
	"main/pkg/exception"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// Store persists credentials, trade logs and the per-day context entities.
type Store struct {
	db *gorm.DB
}

// New wraps a gorm connection.
func New(db *gorm.DB) *Store {
	return &Store{db: db}
}

// Migrate creates missing tables. Schema ownership sits outside the
// engine; this only covers fresh development databases.
func (s *Store) Migrate() error {
	return s.db.AutoMigrate(&BrokerKeyRow{}, &TradeLogRow{}, &DailyLevelRow{}, &DailyAssetRow{})
}

// ActiveCredentials lists credentials still trading today.
func (s *Store) ActiveCredentials(ctx context.Context) ([]model.Credential, error) {
	var rows []BrokerKeyRow
	if err := s.db.WithContext(ctx).Where("status = ?", true).Find(&rows).Error; err != nil {
		return nil, errors.Wrap(err, "list active credentials")
	}

	creds := make([]model.Credential, 0, len(rows))
	for _, row := range rows {
		creds = append(creds, credentialFromRow(row))
	}
	return creds, nil
}

// Credential loads one credential by id.
func (s *Store) Credential(ctx context.Context, id string) (model.Credential, error) {
	var row BrokerKeyRow
	err := s.db.WithContext(ctx).First(&row, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Credential{}, exception.ErrCredentialMissing
	}
	if err != nil {
		return model.Credential{}, errors.Wrap(err, "load credential")
	}
	return credentialFromRow(row), nil
}

// Deactivate parks a credential for the rest of the day. Monotonic: the
// engine never reactivates.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	err := s.db.WithContext(ctx).
		Model(&BrokerKeyRow{}).
		Where("id = ?", id).
		Update("status", false).Error
	return errors.Wrap(err, "deactivate credential")
}

// SaveBalance records a balance fetched from the broker so later ticks can
// size without another funds query.
func (s *Store) SaveBalance(ctx context.Context, id string, balance float64) error {
	err := s.db.WithContext(ctx).
		Model(&BrokerKeyRow{}).
		Where("id = ?", id).
		Update("balance", balance).Error
	return errors.Wrap(err, "save balance")
}

// OpenPosition returns the credential's entry-state trade, if any. No row
// means flat.
func (s *Store) OpenPosition(ctx context.Context, credentialID string) (model.Position, bool, error) {
	var row TradeLogRow
	err := s.db.WithContext(ctx).
		Where("broker_key_id = ? AND type = ?", credentialID, enum.PositionStateEntry.String()).
		Order("created_at DESC").
		First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Position{}, false, nil
	}
	if err != nil {
		return model.Position{}, false, errors.Wrap(err, "load open position")
	}
	return positionFromRow(row), true, nil
}

// RecordEntry writes the entry leg of a new position.
func (s *Store) RecordEntry(ctx context.Context, pos model.Position) error {
	row := TradeLogRow{
		ID:            uuid.New().String(),
		BrokerKeyID:   pos.CredentialID,
		Exchange:      pos.Contract.Exchange,
		TradingSymbol: pos.Contract.TradingSymbol,
		SymbolToken:   pos.Contract.Token,
		LotSize:       pos.Contract.LotSize,
		Direction:     pos.Side.String(),
		Quantity:      pos.Quantity,
		Type:          enum.PositionStateEntry.String(),
	}
	return errors.Wrap(s.db.WithContext(ctx).Create(&row).Error, "record entry")
}

// MarkExit flips a recorded entry to its exit state.
func (s *Store) MarkExit(ctx context.Context, positionID string) error {
	err := s.db.WithContext(ctx).
		Model(&TradeLogRow{}).
		Where("id = ?", positionID).
		Update("type", enum.PositionStateExit.String()).Error
	return errors.Wrap(err, "mark exit")
}

// LevelsFor loads the pivot levels for a trading day.
func (s *Store) LevelsFor(ctx context.Context, day time.Time) (model.LevelSet, error) {
	var row DailyLevelRow
	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	err := s.db.WithContext(ctx).First(&row, "for_day = ?", midnight).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.LevelSet{}, exception.ErrNoLevels
	}
	if err != nil {
		return model.LevelSet{}, errors.Wrap(err, "load daily levels")
	}

	return model.LevelSet{
		BC: row.BC, TC: row.TC,
		R1: row.R1, R2: row.R2, R3: row.R3, R4: row.R4,
		S1: row.S1, S2: row.S2, S3: row.S3, S4: row.S4,
		Buffer: row.Buffer,
	}, nil
}

// AssetFor loads the underlying scheduled for a weekday.
func (s *Store) AssetFor(ctx context.Context, weekday time.Weekday) (model.Asset, error) {
	var row DailyAssetRow
	err := s.db.WithContext(ctx).First(&row, "day = ?", weekday.String()).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return model.Asset{}, exception.ErrNoAsset
	}
	if err != nil {
		return model.Asset{}, errors.Wrap(err, "load daily asset")
	}
	return model.Asset{ID: row.AssetID, Name: row.Name, Token: row.Token}, nil
}

func credentialFromRow(row BrokerKeyRow) model.Credential {
	return model.Credential{
		ID:          row.ID,
		AccessToken: row.Token,
		APIKey:      row.APIKey,
		Balance:     row.Balance,
		Active:      row.Status,
	}
}

func positionFromRow(row TradeLogRow) model.Position {
	side := enum.OptionSideCE
	if row.Direction == enum.OptionSidePE.String() {
		side = enum.OptionSidePE
	}
	return model.Position{
		ID:           row.ID,
		CredentialID: row.BrokerKeyID,
		Contract: model.Contract{
			Exchange:      row.Exchange,
			TradingSymbol: row.TradingSymbol,
			Token:         row.SymbolToken,
			LotSize:       row.LotSize,
		},
		Side:     side,
		Quantity: row.Quantity,
		State:    enum.PositionStateEntry,
	}
}
