package soymail

import (
	"sort"
	"sync"
)

// DocumentType binds a document name to its template and subject line.
type DocumentType struct {
	Name     string // e.g. "order_confirmation"
	Template string // store name, e.g. "orders/confirmation"
	Subject  string // message id in the "subject" context; defaults to Name
	Tag      string // delivery tag; defaults to Name
}

// BuiltinDocumentTypes are registered on every new Generator.
var BuiltinDocumentTypes = []DocumentType{
	{Name: "order_confirmation", Template: "orders/confirmation"},
	{Name: "shipping_update", Template: "shipping/update"},
	{Name: "password_reset", Template: "account/password_reset"},
	{Name: "welcome", Template: "account/welcome"},
}

type documentTypes struct {
	mu    sync.RWMutex
	types map[string]DocumentType
}

func newDocumentTypes() *documentTypes {
	return &documentTypes{types: make(map[string]DocumentType)}
}

// RegisterDocumentType adds or replaces a document type.
func (g *Generator) RegisterDocumentType(dt DocumentType) {
	if dt.Subject == "" {
		dt.Subject = dt.Name
	}
	if dt.Tag == "" {
		dt.Tag = dt.Name
	}
	g.types.mu.Lock()
	g.types.types[dt.Name] = dt
	g.types.mu.Unlock()
}

// DocumentType returns the named document type.
func (g *Generator) DocumentType(name string) (DocumentType, bool) {
	g.types.mu.RLock()
	defer g.types.mu.RUnlock()
	var dt, ok = g.types.types[name]
	return dt, ok
}

// DocumentTypes returns the registered document types, sorted by name.
func (g *Generator) DocumentTypes() []DocumentType {
	g.types.mu.RLock()
	var list = make([]DocumentType, 0, len(g.types.types))
	for _, dt := range g.types.types {
		list = append(list, dt)
	}
	g.types.mu.RUnlock()
	sort.Slice(list, func(i, j int) bool { return list[i].Name < list[j].Name })
	return list
}
