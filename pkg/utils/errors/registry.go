package errors

import (
	"fmt"
	"sync"
)

var (
	errnoRegistry = make(map[int]*Errno)
	registryMu    sync.RWMutex
)

// Register records e in the registry and returns it.
// Panics if the code is already taken, so duplicate codes fail at init.
func Register(e *Errno) *Errno {
	registryMu.Lock()
	defer registryMu.Unlock()

	if existing, ok := errnoRegistry[e.Code]; ok {
		panic(fmt.Sprintf("errno code %d already registered: %s", e.Code, existing.MessageEN))
	}
	errnoRegistry[e.Code] = e
	return e
}

// Lookup returns the registered Errno for the given code.
func Lookup(code int) (*Errno, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	e, ok := errnoRegistry[code]
	return e, ok
}

// RegistrySize returns the number of registered error codes.
func RegistrySize() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(errnoRegistry)
}

// NewRequestErr creates and registers a request/validation error (HTTP 400).
func NewRequestErr(service, sequence int, en, zh string) *Errno {
	return Register(New(MakeCode(service, CategoryRequest, sequence), StatusForCategory(CategoryRequest), en, zh))
}

// NewResourceErr creates and registers a not-found error (HTTP 404).
func NewResourceErr(service, sequence int, en, zh string) *Errno {
	return Register(New(MakeCode(service, CategoryResource, sequence), StatusForCategory(CategoryResource), en, zh))
}

// NewInternalErr creates and registers an internal/upstream error (HTTP 500).
func NewInternalErr(service, sequence int, en, zh string) *Errno {
	return Register(New(MakeCode(service, CategoryInternal, sequence), StatusForCategory(CategoryInternal), en, zh))
}
