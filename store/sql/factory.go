package sqlstore

import (
	"fmt"

	persistence "github.com/goliatone/go-persistence-bun"
	"github.com/uptrace/bun"

	"github.com/goliatone/go-inventory-sync/core"
)

type RepositoryFactory struct {
	db *bun.DB

	connectionStore *ConnectionStore
	credentialStore *CredentialStore
	inventoryStore  *InventoryStore
	syncStatusStore *SyncStatusStore
}

func NewRepositoryFactory() *RepositoryFactory {
	return &RepositoryFactory{}
}

func NewRepositoryFactoryFromPersistence(client *persistence.Client) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(client); err != nil {
		return nil, err
	}
	return factory, nil
}

func NewRepositoryFactoryFromDB(db *bun.DB) (*RepositoryFactory, error) {
	factory := NewRepositoryFactory()
	if _, err := factory.BuildStores(db); err != nil {
		return nil, err
	}
	return factory, nil
}

func (f *RepositoryFactory) BuildStores(persistenceClient any) (core.StoreProvider, error) {
	if f == nil {
		return nil, fmt.Errorf("sqlstore: repository factory is nil")
	}
	if f.db == nil {
		db, err := resolveBunDB(persistenceClient)
		if err != nil {
			return nil, err
		}
		f.db = db
	}
	if f.connectionStore != nil && f.credentialStore != nil {
		return f, nil
	}
	if err := f.initStores(); err != nil {
		return nil, err
	}
	return f, nil
}

func (f *RepositoryFactory) ConnectionStore() core.ConnectionStore {
	if f == nil {
		return nil
	}
	return f.connectionStore
}

func (f *RepositoryFactory) CredentialStore() core.CredentialStore {
	if f == nil {
		return nil
	}
	return f.credentialStore
}

func (f *RepositoryFactory) InventoryStore() core.InventoryStore {
	if f == nil {
		return nil
	}
	return f.inventoryStore
}

func (f *RepositoryFactory) SyncStatusStore() core.SyncStatusStore {
	if f == nil {
		return nil
	}
	return f.syncStatusStore
}

func (f *RepositoryFactory) DB() *bun.DB {
	if f == nil {
		return nil
	}
	return f.db
}

func (f *RepositoryFactory) initStores() error {
	connectionStore, err := NewConnectionStore(f.db)
	if err != nil {
		return err
	}
	f.connectionStore = connectionStore

	credentialStore, err := NewCredentialStore(f.db)
	if err != nil {
		return err
	}
	f.credentialStore = credentialStore

	inventoryStore, err := NewInventoryStore(f.db)
	if err != nil {
		return err
	}
	f.inventoryStore = inventoryStore

	syncStatusStore, err := NewSyncStatusStore(f.db)
	if err != nil {
		return err
	}
	f.syncStatusStore = syncStatusStore

	return nil
}

func resolveBunDB(candidate any) (*bun.DB, error) {
	switch typed := candidate.(type) {
	case nil:
		return nil, fmt.Errorf("sqlstore: persistence client is required")
	case *bun.DB:
		return typed, nil
	case interface{ DB() *bun.DB }:
		db := typed.DB()
		if db == nil {
			return nil, fmt.Errorf("sqlstore: persistence client returned nil bun db")
		}
		return db, nil
	default:
		return nil, fmt.Errorf("sqlstore: unsupported persistence client type %T", candidate)
	}
}
