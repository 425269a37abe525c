package iocache

import (
	"fmt"
	"os"
	"sync"

	"github.com/huangsam/codegrade/internal/contract"
	"github.com/huangsam/codegrade/schema"
)

// Global Manager instance for main logic.
var (
	Manager   = &StoreManager{}
	initOnce  sync.Once
	closeOnce sync.Once
)

// StoreManager holds the process-wide store.
type StoreManager struct {
	sync.RWMutex // Protects the store pointer during initialization
	store        contract.Store
}

// GetStore returns the initialized store, or nil before InitStore.
func (mgr *StoreManager) GetStore() contract.Store {
	mgr.RLock()
	defer mgr.RUnlock()
	return mgr.store
}

// GetDBFilePath returns the path to the SQLite DB file.
func GetDBFilePath() string {
	return contract.GetStoreDBFilePath()
}

// InitStore initializes the global store exactly once.
func InitStore(backend schema.DatabaseBackend, connStr string) error {
	var initErr error
	initOnce.Do(func() {
		store, err := NewStore(backend, connStr)
		if err != nil {
			initErr = fmt.Errorf("failed to initialize store: %w", err)
			return
		}
		Manager.Lock()
		defer Manager.Unlock()
		Manager.store = store
	})
	return initErr
}

// CloseStore should be called on application shutdown.
func CloseStore() {
	closeOnce.Do(func() {
		Manager.Lock()
		defer Manager.Unlock()
		if Manager.store != nil {
			_ = Manager.store.Close()
		}
	})
}

// ClearStore removes all stored data for the specified backend.
// For SQLite, it deletes the database file.
// For MySQL and PostgreSQL, it drops the store tables and the migration history.
func ClearStore(backend schema.DatabaseBackend, connStr string) error {
	switch backend {
	case schema.SQLiteBackend:
		dbFilePath := connStr
		if dbFilePath == "" {
			dbFilePath = GetDBFilePath()
		}
		// Remove the file; ignore if it doesn't exist
		if err := os.Remove(dbFilePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove SQLite database file %s: %w", dbFilePath, err)
		}
		return nil

	case schema.MySQLBackend, schema.PostgreSQLBackend:
		db, err := openDB(backend, connStr)
		if err != nil {
			return err
		}
		defer func() { _ = db.Close() }()
		for _, table := range []string{analysesTable, repositoriesTable, "schema_migrations"} {
			query := fmt.Sprintf("DROP TABLE IF EXISTS %s", quoteTableName(table, backend))
			if _, err := db.Exec(query); err != nil {
				return fmt.Errorf("failed to drop table %s: %w", table, err)
			}
		}
		return nil

	default:
		return fmt.Errorf("unsupported backend for clearing: %s", backend)
	}
}
