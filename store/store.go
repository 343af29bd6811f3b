// Package store persists imported properties. Every backend guarantees that
// Insert never overwrites an existing id: a collision surfaces as ErrDuplicate.
package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/AnTengye/auctionhub/backend/config"
	"github.com/AnTengye/auctionhub/backend/model"
)

var (
	ErrDuplicate = errors.New("property already exists")
	ErrNotFound  = errors.New("property not found")
)

// PropertyStore is the persistence port used by the importer and the admin handlers.
type PropertyStore interface {
	Exists(ctx context.Context, id string) (bool, error)
	Insert(ctx context.Context, p *model.Property) error
	Get(ctx context.Context, id string) (*model.Property, error)
	List(ctx context.Context, limit int) ([]*model.Property, error)
	Delete(ctx context.Context, id string) error
	Count(ctx context.Context) (int, error)
	Close() error
}

// Open builds the store selected by cfg.Driver.
func Open(ctx context.Context, cfg *config.StoreConfig) (PropertyStore, error) {
	switch cfg.Driver {
	case "", "memory":
		return NewMemoryStore(cfg.MaxProperties), nil
	case "sqlite", "sqlite3":
		return OpenSQLStore(ctx, "sqlite3", cfg.DSN)
	case "postgres", "pgx":
		return OpenSQLStore(ctx, cfg.Driver, cfg.DSN)
	case "dynamodb":
		return NewDynamoStoreFromConfig(ctx, cfg)
	default:
		return nil, fmt.Errorf("unknown store driver %q", cfg.Driver)
	}
}
