package scan

import (
	"fmt"
	"reflect"
	"sort"
	"sync"

	"golang.org/x/mod/module"
)

// Catalog is a runtime index of named types grouped by package path.
// It implements Scanner over the registered types.
type Catalog struct {
	packages map[string][]reflect.Type // package path -> types
	types    map[string]reflect.Type   // qualified name -> type
	mu       sync.RWMutex
}

var defaultCatalog = NewCatalog()

// NewCatalog creates an empty catalog.
func NewCatalog() *Catalog {
	return &Catalog{
		packages: make(map[string][]reflect.Type),
		types:    make(map[string]reflect.Type),
	}
}

// Default returns the process-wide catalog used by Register.
func Default() *Catalog {
	return defaultCatalog
}

// Register adds types to the default catalog. It panics on an invalid type,
// which is only expected from init functions.
func Register(types ...reflect.Type) {
	if err := defaultCatalog.Register(types...); err != nil {
		panic(err)
	}
}

// Register adds named types to the catalog. Pointer types are recorded as
// their element type. Registering a type twice is a no-op.
func (c *Catalog) Register(types ...reflect.Type) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, t := range types {
		if t == nil {
			return fmt.Errorf("scan: cannot register nil type")
		}

		for t.Kind() == reflect.Pointer {
			t = t.Elem()
		}

		if t.Name() == "" || t.PkgPath() == "" {
			return fmt.Errorf("scan: cannot register unnamed or predeclared type %s", t)
		}

		name := qualifiedName(t)
		if _, exists := c.types[name]; exists {
			continue
		}

		c.types[name] = t
		c.packages[t.PkgPath()] = append(c.packages[t.PkgPath()], t)
	}

	return nil
}

// Lookup returns the registered type with the given package path and name.
func (c *Catalog) Lookup(pkgPath, name string) (reflect.Type, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	t, ok := c.types[pkgPath+"."+name]

	return t, ok
}

// Len returns the number of registered types.
func (c *Catalog) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()

	return len(c.types)
}

// Scan implements Scanner. The result is sorted by qualified name.
func (c *Catalog) Scan(test Predicate, namespace string) ([]reflect.Type, error) {
	if test == nil {
		return nil, NewScanError(namespace, "predicate is nil", nil)
	}

	if err := CheckNamespace(namespace); err != nil {
		return nil, err
	}

	c.mu.RLock()
	var found []reflect.Type
	for pkgPath, types := range c.packages {
		if !inNamespace(pkgPath, namespace) {
			continue
		}

		for _, t := range types {
			if test(t) {
				found = append(found, t)
			}
		}
	}
	c.mu.RUnlock()

	sortTypes(found)

	return found, nil
}

// CheckNamespace validates that namespace is a well-formed import path.
func CheckNamespace(namespace string) error {
	if namespace == "" {
		return NewScanError(namespace, "namespace is empty", nil)
	}

	if err := module.CheckImportPath(namespace); err != nil {
		return NewScanError(namespace, "malformed namespace", err)
	}

	return nil
}

func sortTypes(types []reflect.Type) {
	sort.Slice(types, func(i, j int) bool {
		return qualifiedName(types[i]) < qualifiedName(types[j])
	})
}
