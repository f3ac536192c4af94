package merge

import (
	"fmt"

	"github.com/robert-at-pretension-io/xlate-vreg/internal/amap"
	"github.com/robert-at-pretension-io/xlate-vreg/internal/config"
)

// Definitions is the connection-definition table
type Definitions interface {
	Lookup(name string) (config.Connection, bool)
}

// UnresolvedError reports an address-map connection with no definition
type UnresolvedError struct {
	Name   string
	Source string
}

func (e *UnresolvedError) Error() string {
	return fmt.Sprintf("'%s' not defined in %s", e.Name, e.Source)
}

// Resolve copies the source file and prefix of every connection into the
// address map and returns the entries in ascending address order. The first
// connection without a definition stops the merge.
func Resolve(m *amap.Map, defs Definitions, source string) ([]amap.Entry, error) {
	for _, e := range m.Entries() {
		def, ok := defs.Lookup(e.Name)
		if !ok {
			return nil, &UnresolvedError{Name: e.Name, Source: source}
		}
		m.Update(e.Address, func(entry *amap.Entry) {
			entry.SourceFile = def.File
			entry.Prefix = def.Prefix
		})
	}
	return m.Entries(), nil
}

// Omitted reports whether an entry produces no output
func Omitted(e amap.Entry) bool {
	return e.SourceFile == "" || e.SourceFile == config.OmitFile
}
