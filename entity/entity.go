// Package entity defines the account and contract identities that appear on
// the wire. Registered entities are referenced by their compact rank; rank
// zero is the sentinel meaning "unregistered, a literal 32-byte key follows".
package entity

// KeyLength is the byte length of every entity identity.
const KeyLength = 32

// Key is a 32-byte identity: an x-only public key for accounts, a
// content-derived identifier for contracts.
type Key = [32]byte

// Account is a user of the system. Rank zero means the account is not (yet)
// registered with the registry.
type Account struct {
	Key  Key
	Rank uint64
}

// NewRegisteredAccount returns an account referenced by its rank.
func NewRegisteredAccount(key Key, rank uint64) Account {
	return Account{Key: key, Rank: rank}
}

// NewUnregisteredAccount returns an account identified only by its key.
func NewUnregisteredAccount(key Key) Account {
	return Account{Key: key}
}

// Registered reports whether the account holds a registry rank.
func (a Account) Registered() bool {
	return a.Rank != 0
}

// Contract is a deployed program. MethodCount is carried so decoders can
// size method indices against it; it is zero for unregistered contracts.
type Contract struct {
	ID          Key
	Rank        uint64
	MethodCount uint8
}

// NewRegisteredContract returns a contract referenced by its rank.
func NewRegisteredContract(id Key, rank uint64, methodCount uint8) Contract {
	return Contract{ID: id, Rank: rank, MethodCount: methodCount}
}

// NewUndeployedContract returns a contract identified only by its id.
func NewUndeployedContract(id Key) Contract {
	return Contract{ID: id}
}

// Registered reports whether the contract holds a registry rank.
func (c Contract) Registered() bool {
	return c.Rank != 0
}

// Registry resolves wire ranks back to entities and answers registration
// queries during decoding. The registry manager implements it.
type Registry interface {
	AccountByRank(rank uint64) (Account, bool)
	ContractByRank(rank uint64) (Contract, bool)
	IsAccountRegistered(key Key) bool
	IsContractRegistered(id Key) bool
}
