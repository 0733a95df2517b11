package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/rocketscienceinc/tictactoe-gym/internal/training"
)

const qtableKeyPrefix = "qtable:"

var ErrQTableNotFound = errors.New("q-table not found")

type QTableRepository interface {
	CreateOrUpdate(ctx context.Context, name string, table *training.QTable) error
	GetByName(ctx context.Context, name string) (*training.QTable, error)
	DeleteByName(ctx context.Context, name string) error
}

type dbQTable struct {
	client *redis.Client
}

func NewQTableRepository(client *redis.Client) QTableRepository {
	return &dbQTable{
		client: client,
	}
}

func (that *dbQTable) CreateOrUpdate(ctx context.Context, name string, table *training.QTable) error {
	tableJSON, err := json.Marshal(table.Snapshot())
	if err != nil {
		return fmt.Errorf("could not marshal q-table: %w", err)
	}

	err = that.client.Set(ctx, qtableKeyPrefix+name, tableJSON, 0).Err()
	if err != nil {
		return fmt.Errorf("failed to set q-table: %w", err)
	}

	return nil
}

func (that *dbQTable) GetByName(ctx context.Context, name string) (*training.QTable, error) {
	response, err := that.client.Get(ctx, qtableKeyPrefix+name).Result()

	if errors.Is(err, redis.Nil) {
		return nil, ErrQTableNotFound
	}

	if err != nil {
		return nil, fmt.Errorf("%w by name", err)
	}

	var snapshot training.Snapshot
	if err = json.Unmarshal([]byte(response), &snapshot); err != nil {
		return nil, fmt.Errorf("failed to unmarshal q-table: %w", err)
	}

	table, err := training.FromSnapshot(snapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to restore q-table %q: %w", name, err)
	}

	return table, nil
}

// DeleteByName - returns ErrQTableNotFound when nothing was stored under name.
func (that *dbQTable) DeleteByName(ctx context.Context, name string) error {
	deleted, err := that.client.Del(ctx, qtableKeyPrefix+name).Result()
	if err != nil {
		return fmt.Errorf("failed to delete q-table by name: %w", err)
	}

	if deleted == 0 {
		return ErrQTableNotFound
	}

	return nil
}
