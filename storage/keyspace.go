package storage

// Keyspace partitions a Database into logical sub-stores by name prefix.
// Managers never share a keyspace: each one writes under its own name, so
// a single embedded store per chain can back every manager.
type Keyspace struct {
	db     Database
	prefix []byte
}

// NewKeyspace returns a keyspace rooted at name within db.
func NewKeyspace(db Database, name string) Keyspace {
	prefix := make([]byte, 0, len(name)+1)
	prefix = append(prefix, name...)
	prefix = append(prefix, '/')
	return Keyspace{db: db, prefix: prefix}
}

// Key builds a full database key from the given parts.
func (ks Keyspace) Key(parts ...[]byte) []byte {
	size := len(ks.prefix)
	for _, p := range parts {
		size += len(p)
	}
	key := make([]byte, 0, size)
	key = append(key, ks.prefix...)
	for _, p := range parts {
		key = append(key, p...)
	}
	return key
}

func (ks Keyspace) Put(value []byte, parts ...[]byte) error {
	return ks.db.Put(ks.Key(parts...), value)
}

func (ks Keyspace) Get(parts ...[]byte) ([]byte, error) {
	return ks.db.Get(ks.Key(parts...))
}

func (ks Keyspace) Has(parts ...[]byte) (bool, error) {
	return ks.db.Has(ks.Key(parts...))
}

func (ks Keyspace) Delete(parts ...[]byte) error {
	return ks.db.Delete(ks.Key(parts...))
}

// Iterate walks every entry under the keyspace (optionally narrowed by
// extra prefix parts). fn receives keys with the keyspace prefix stripped.
func (ks Keyspace) Iterate(fn func(key, value []byte) error, parts ...[]byte) error {
	prefix := ks.Key(parts...)
	skip := len(ks.prefix)
	return ks.db.Iterate(prefix, func(key, value []byte) error {
		return fn(key[skip:], value)
	})
}
