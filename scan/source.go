package scan

import (
	"errors"
	"go/types"
	"reflect"

	"golang.org/x/tools/go/packages"
)

// sourceLoadMode is the minimum information needed to list a package's types.
const sourceLoadMode = packages.NeedName | packages.NeedTypes

// SourceScanner discovers the exported types of a namespace from source with
// go/packages and loads each of them from a Catalog. A type that exists in
// source but was never registered cannot be loaded and fails the scan.
type SourceScanner struct {
	catalog *Catalog
	dir     string
}

// NewSourceScanner creates a scanner that resolves namespaces relative to dir
// (the module directory; empty means the current directory). A nil catalog
// means the default catalog.
func NewSourceScanner(catalog *Catalog, dir string) *SourceScanner {
	if catalog == nil {
		catalog = defaultCatalog
	}

	return &SourceScanner{
		catalog: catalog,
		dir:     dir,
	}
}

// Scan implements Scanner.
func (s *SourceScanner) Scan(test Predicate, namespace string) ([]reflect.Type, error) {
	if test == nil {
		return nil, NewScanError(namespace, "predicate is nil", nil)
	}

	if err := CheckNamespace(namespace); err != nil {
		return nil, err
	}

	cfg := &packages.Config{
		Mode: sourceLoadMode,
		Dir:  s.dir,
	}

	pkgs, err := packages.Load(cfg, namespace+"/...")
	if err != nil {
		return nil, NewScanError(namespace, "failed to load packages", err)
	}

	if len(pkgs) == 0 {
		return nil, NewScanError(namespace, "no package matches", nil)
	}

	var loadErrs []error
	for _, pkg := range pkgs {
		for _, e := range pkg.Errors {
			loadErrs = append(loadErrs, e)
		}
	}
	if len(loadErrs) > 0 {
		return nil, NewScanError(namespace, "package errors", errors.Join(loadErrs...))
	}

	var found []reflect.Type
	for _, pkg := range pkgs {
		scope := pkg.Types.Scope()
		for _, name := range scope.Names() {
			typeName, ok := scope.Lookup(name).(*types.TypeName)
			if !ok || !typeName.Exported() || typeName.IsAlias() {
				continue
			}

			// Uninstantiated generic types have no runtime representation.
			if named, ok := typeName.Type().(*types.Named); ok && named.TypeParams().Len() > 0 {
				continue
			}

			t, ok := s.catalog.Lookup(pkg.PkgPath, name)
			if !ok {
				return nil, NewLoadError(namespace, pkg.PkgPath+"."+name)
			}

			if test(t) {
				found = append(found, t)
			}
		}
	}

	sortTypes(found)

	return found, nil
}
