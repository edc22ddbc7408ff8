// Package journal persists routed decisions and fills to a SQL database.
package journal

import (
	"context"

	"github.com/yanun0323/errors"
	"github.com/yanun0323/logs"
	"gorm.io/gorm"

	"hft/internal/schema"
	"hft/pkg/conn"
	"hft/pkg/exception"
)

const defaultListLimit = 100

type Store struct {
	db     *gorm.DB
	closer func() error
}

// NewStore wraps an open gorm handle. The caller keeps ownership of db.
func NewStore(db *gorm.DB) *Store {
	return &Store{db: db, closer: func() error { return nil }}
}

// Open connects to PostgreSQL with dsn and migrates the schema.
func Open(ctx context.Context, dsn string) (*Store, error) {
	client, err := conn.New(conn.Option{ConnString: dsn})
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}

	s := &Store{db: client.DB(), closer: client.Close}
	if err := s.AutoMigrate(ctx); err != nil {
		_ = client.Close()
		return nil, err
	}
	logs.Info("trade journal connected")
	return s, nil
}

func (s *Store) AutoMigrate(ctx context.Context) error {
	if err := s.db.WithContext(ctx).AutoMigrate(&DecisionModel{}, &FillModel{}); err != nil {
		return errors.Wrap(exception.ErrDatabase, "migrate journal").With("error", err)
	}
	return nil
}

func (s *Store) SaveDecision(ctx context.Context, pred schema.Prediction, decision schema.RouteDecision) error {
	model := &DecisionModel{}
	model.FromDomain(pred, decision)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrap(exception.ErrDatabase, "save decision").With("symbol", pred.Symbol, "error", err)
	}
	return nil
}

func (s *Store) SaveFill(ctx context.Context, fill schema.Fill) error {
	model := &FillModel{}
	model.FromDomain(fill)
	if err := s.db.WithContext(ctx).Create(model).Error; err != nil {
		return errors.Wrap(exception.ErrDatabase, "save fill").With("client_id", fill.ClientID, "error", err)
	}
	return nil
}

// ListFills returns the newest fills first. An empty symbol matches every
// symbol; a non-positive limit means 100.
func (s *Store) ListFills(ctx context.Context, symbol string, limit int) ([]schema.Fill, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := s.db.WithContext(ctx).Model(&FillModel{})
	if symbol != "" {
		query = query.Where("symbol = ?", symbol)
	}

	var models []FillModel
	if err := query.Order("timestamp_ns DESC").Order("id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, errors.Wrap(exception.ErrDatabase, "list fills").With("symbol", symbol, "error", err)
	}

	out := make([]schema.Fill, len(models))
	for i := range models {
		out[i] = models[i].ToDomain()
	}
	return out, nil
}

// ListDecisions returns the newest decisions for symbol first.
func (s *Store) ListDecisions(ctx context.Context, symbol string, limit int) ([]schema.RouteDecision, error) {
	if limit <= 0 {
		limit = defaultListLimit
	}

	query := s.db.WithContext(ctx).Model(&DecisionModel{})
	if symbol != "" {
		query = query.Where("symbol = ?", symbol)
	}

	var models []DecisionModel
	if err := query.Order("timestamp_ns DESC").Order("id DESC").Limit(limit).Find(&models).Error; err != nil {
		return nil, errors.Wrap(exception.ErrDatabase, "list decisions").With("symbol", symbol, "error", err)
	}

	out := make([]schema.RouteDecision, len(models))
	for i := range models {
		_, out[i] = models[i].ToDomain()
	}
	return out, nil
}

func (s *Store) Close() error {
	return s.closer()
}
