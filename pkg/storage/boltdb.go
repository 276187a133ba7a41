package storage

import (
	"encoding/json"
	"fmt"
	"path/filepath"

	"github.com/cuemby/catalogd/pkg/types"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketNamespaces    = []byte("namespaces")
	bucketTables        = []byte("tables")
	bucketTablets       = []byte("tablets")
	bucketUDTypes       = []byte("udtypes")
	bucketRoles         = []byte("roles")
	bucketClusterConfig = []byte("cluster_config")

	clusterConfigKey = []byte("singleton")
)

// BoltStore implements Store on top of go.etcd.io/bbolt, one bucket per
// entity kind.
type BoltStore struct {
	db *bolt.DB
}

// NewBoltStore opens (creating if absent) a BoltDB file under dataDir.
func NewBoltStore(dataDir string) (*BoltStore, error) {
	dbPath := filepath.Join(dataDir, "catalog.db")

	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		buckets := [][]byte{
			bucketNamespaces,
			bucketTables,
			bucketTablets,
			bucketUDTypes,
			bucketRoles,
			bucketClusterConfig,
		}
		for _, bucket := range buckets {
			if _, err := tx.CreateBucketIfNotExists(bucket); err != nil {
				return fmt.Errorf("failed to create bucket %s: %w", bucket, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStore{db: db}, nil
}

// Close closes the underlying database.
func (s *BoltStore) Close() error {
	return s.db.Close()
}

func put(db *bolt.DB, bucket []byte, key string, v any) error {
	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		data, err := json.Marshal(v)
		if err != nil {
			return err
		}
		return b.Put([]byte(key), data)
	})
}

func del(db *bolt.DB, bucket []byte, key string) error {
	return db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.Delete([]byte(key))
	})
}

func visit[T any](db *bolt.DB, bucket []byte, v Visitor[T]) error {
	return db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucket)
		return b.ForEach(func(_, data []byte) error {
			var item T
			if err := json.Unmarshal(data, &item); err != nil {
				return err
			}
			return v(&item)
		})
	})
}

// Namespaces

func (s *BoltStore) AddNamespace(ns *types.Namespace) error    { return put(s.db, bucketNamespaces, ns.ID, ns) }
func (s *BoltStore) UpdateNamespace(ns *types.Namespace) error { return put(s.db, bucketNamespaces, ns.ID, ns) }
func (s *BoltStore) DeleteNamespace(id string) error           { return del(s.db, bucketNamespaces, id) }
func (s *BoltStore) VisitNamespaces(v Visitor[types.Namespace]) error {
	return visit(s.db, bucketNamespaces, v)
}

// Tables

func (s *BoltStore) AddTable(t *types.Table) error { return put(s.db, bucketTables, t.ID, t) }
func (s *BoltStore) AddTables(ts []*types.Table) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTables)
		for _, t := range ts {
			data, err := json.Marshal(t)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(t.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}
func (s *BoltStore) UpdateTable(t *types.Table) error   { return put(s.db, bucketTables, t.ID, t) }
func (s *BoltStore) UpdateTables(ts []*types.Table) error { return s.AddTables(ts) }
func (s *BoltStore) DeleteTable(id string) error        { return del(s.db, bucketTables, id) }
func (s *BoltStore) VisitTables(v Visitor[types.Table]) error {
	return visit(s.db, bucketTables, v)
}

// Tablets

func (s *BoltStore) AddTablet(t *types.Tablet) error { return put(s.db, bucketTablets, t.ID, t) }
func (s *BoltStore) AddTablets(ts []*types.Tablet) error {
	return s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketTablets)
		for _, t := range ts {
			data, err := json.Marshal(t)
			if err != nil {
				return err
			}
			if err := b.Put([]byte(t.ID), data); err != nil {
				return err
			}
		}
		return nil
	})
}
func (s *BoltStore) UpdateTablet(t *types.Tablet) error    { return put(s.db, bucketTablets, t.ID, t) }
func (s *BoltStore) UpdateTablets(ts []*types.Tablet) error { return s.AddTablets(ts) }
func (s *BoltStore) DeleteTablet(id string) error          { return del(s.db, bucketTablets, id) }
func (s *BoltStore) VisitTablets(v Visitor[types.Tablet]) error {
	return visit(s.db, bucketTablets, v)
}

// UDTypes

func (s *BoltStore) AddUDType(u *types.UDType) error    { return put(s.db, bucketUDTypes, u.ID, u) }
func (s *BoltStore) UpdateUDType(u *types.UDType) error { return put(s.db, bucketUDTypes, u.ID, u) }
func (s *BoltStore) DeleteUDType(id string) error       { return del(s.db, bucketUDTypes, id) }
func (s *BoltStore) VisitUDTypes(v Visitor[types.UDType]) error {
	return visit(s.db, bucketUDTypes, v)
}

// Roles

func (s *BoltStore) AddRole(r *types.Role) error    { return put(s.db, bucketRoles, r.Name, r) }
func (s *BoltStore) UpdateRole(r *types.Role) error { return put(s.db, bucketRoles, r.Name, r) }
func (s *BoltStore) DeleteRole(name string) error   { return del(s.db, bucketRoles, name) }
func (s *BoltStore) VisitRoles(v Visitor[types.Role]) error {
	return visit(s.db, bucketRoles, v)
}

// ClusterConfig

func (s *BoltStore) PutClusterConfig(c *types.ClusterConfig) error {
	return put(s.db, bucketClusterConfig, string(clusterConfigKey), c)
}

func (s *BoltStore) VisitClusterConfig(v Visitor[types.ClusterConfig]) error {
	return s.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(bucketClusterConfig)
		data := b.Get(clusterConfigKey)
		if data == nil {
			return nil
		}
		var cfg types.ClusterConfig
		if err := json.Unmarshal(data, &cfg); err != nil {
			return err
		}
		return v(&cfg)
	})
}
