package catalog

import (
	"sync"
	"time"

	"github.com/cuemby/catalogd/pkg/cowe"
	"github.com/cuemby/catalogd/pkg/types"
)

// deletionRecord is the in-progress deletion record kept in
// deletedTabletIndex while a replica's deletion has been
// requested but not yet acknowledged.
type deletionRecord struct {
	ServerID     string
	TabletID     string
	CASOpIDIndex int64
	RequestedAt  time.Time
}

// registry is the Entity Registry (ER): the set of in-memory indices
// guarded by a single reader-writer lock. Readers take shared access;
// insertions, removals, and renames take exclusive access.
type registry struct {
	mu sync.RWMutex

	tablesByID         map[string]*cowe.Entity[types.Table]
	tablesByNamespace  map[string]*cowe.Entity[types.Table] // key: namespaceID + "\x00" + name
	tabletsByID        map[string]*cowe.Entity[types.Tablet]
	tabletIDsByTable    map[string][]string // tableID -> tablet ids, insertion order

	namespacesByID   map[string]*cowe.Entity[types.Namespace]
	namespacesByName map[string]*cowe.Entity[types.Namespace]

	udtsByID        map[string]*cowe.Entity[types.UDType]
	udtsByNamespace map[string]*cowe.Entity[types.UDType] // key: namespaceID + "\x00" + name

	rolesByName map[string]*cowe.Entity[types.Role]

	clusterConfig *cowe.Entity[types.ClusterConfig]

	deletedTabletIndex map[string]deletionRecord // key: serverID + "\x00" + tabletID
}

func newRegistry() *registry {
	return &registry{
		tablesByID:         make(map[string]*cowe.Entity[types.Table]),
		tablesByNamespace:  make(map[string]*cowe.Entity[types.Table]),
		tabletsByID:        make(map[string]*cowe.Entity[types.Tablet]),
		tabletIDsByTable:    make(map[string][]string),
		namespacesByID:     make(map[string]*cowe.Entity[types.Namespace]),
		namespacesByName:   make(map[string]*cowe.Entity[types.Namespace]),
		udtsByID:           make(map[string]*cowe.Entity[types.UDType]),
		udtsByNamespace:    make(map[string]*cowe.Entity[types.UDType]),
		rolesByName:        make(map[string]*cowe.Entity[types.Role]),
		deletedTabletIndex: make(map[string]deletionRecord),
	}
}

func tableKey(namespaceID, name string) string { return namespaceID + "\x00" + name }
func udtKey(namespaceID, name string) string   { return namespaceID + "\x00" + name }
func deletionKey(serverID, tabletID string) string { return serverID + "\x00" + tabletID }

// clear empties every index, for use by the Loader at the start of a
// rebuild.
func (r *registry) clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.tablesByID = make(map[string]*cowe.Entity[types.Table])
	r.tablesByNamespace = make(map[string]*cowe.Entity[types.Table])
	r.tabletsByID = make(map[string]*cowe.Entity[types.Tablet])
	r.tabletIDsByTable = make(map[string][]string)
	r.namespacesByID = make(map[string]*cowe.Entity[types.Namespace])
	r.namespacesByName = make(map[string]*cowe.Entity[types.Namespace])
	r.udtsByID = make(map[string]*cowe.Entity[types.UDType])
	r.udtsByNamespace = make(map[string]*cowe.Entity[types.UDType])
	r.rolesByName = make(map[string]*cowe.Entity[types.Role])
	r.clusterConfig = nil
	r.deletedTabletIndex = make(map[string]deletionRecord)
}
