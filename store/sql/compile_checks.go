package sqlstore

import "github.com/goliatone/go-inventory-sync/core"

var (
	_ core.ConnectionStore        = (*ConnectionStore)(nil)
	_ core.CredentialStore        = (*CredentialStore)(nil)
	_ core.InventoryStore         = (*InventoryStore)(nil)
	_ core.SyncStatusStore        = (*SyncStatusStore)(nil)
	_ core.StoreProvider          = (*RepositoryFactory)(nil)
	_ core.RepositoryStoreFactory = (*RepositoryFactory)(nil)
)
