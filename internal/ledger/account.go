package ledger

import "fmt"

// Account is one ledger account: an address plus keyed storage.
//
// Accounts are owned by the Ledger that created them. Mutations go through
// the Ledger's lock; callers holding an *Account from AccountHandle.Borrow
// must only use it within the single mutating operation that borrowed it.
type Account struct {
	ledger  *Ledger
	address Address
}

// Address returns the account's address.
func (a *Account) Address() Address {
	return a.address
}

// Occupied reports whether a value is stored at path.
func (a *Account) Occupied(path Path) bool {
	a.ledger.mu.Lock()
	defer a.ledger.mu.Unlock()
	_, ok := a.ledger.storage[storageKey{a.address, path}]
	return ok
}

// Save stores value at path. Fails if the path is already occupied;
// installs never silently overwrite.
func (a *Account) Save(path Path, value any) error {
	if path.IsZero() {
		return fmt.Errorf("save: zero path")
	}
	a.ledger.mu.Lock()
	defer a.ledger.mu.Unlock()
	key := storageKey{a.address, path}
	if _, ok := a.ledger.storage[key]; ok {
		return fmt.Errorf("save: path %s already occupied in account %s", path, a.address)
	}
	a.ledger.storage[key] = value
	return nil
}

// Load returns the value stored at path, or (nil, false) if the path
// is unoccupied.
func (a *Account) Load(path Path) (any, bool) {
	a.ledger.mu.Lock()
	defer a.ledger.mu.Unlock()
	v, ok := a.ledger.storage[storageKey{a.address, path}]
	return v, ok
}

// Remove deletes and returns the value at path.
// Returns (nil, false) if the path was unoccupied.
func (a *Account) Remove(path Path) (any, bool) {
	a.ledger.mu.Lock()
	defer a.ledger.mu.Unlock()
	key := storageKey{a.address, path}
	v, ok := a.ledger.storage[key]
	if ok {
		delete(a.ledger.storage, key)
	}
	return v, ok
}
