package session

import (
	"sync"

	"github.com/walteh/rulesls/pkg/ast"
	"github.com/walteh/rulesls/pkg/parser"
	"github.com/walteh/rulesls/pkg/workspace"
)

// Document is the last parse of an open file.
type Document struct {
	URI     string
	Content string
	Tree    *ast.Document
	Errors  []*parser.Error
}

// DocumentManager keeps one Document per file, keyed by path so that the
// different spellings of a file URI share an entry.
type DocumentManager struct {
	store *sync.Map // map[string]*Document
}

func NewDocumentManager() *DocumentManager {
	return &DocumentManager{
		store: &sync.Map{},
	}
}

func normalizeURI(uri string) string {
	return workspace.URIToPath(uri)
}

func (m *DocumentManager) Get(uri string) (*Document, bool) {
	content, ok := m.store.Load(normalizeURI(uri))
	if !ok {
		return nil, false
	}
	doc, ok := content.(*Document)
	return doc, ok
}

func (m *DocumentManager) Store(doc *Document) {
	m.store.Store(normalizeURI(doc.URI), doc)
}

func (m *DocumentManager) Delete(uri string) {
	m.store.Delete(normalizeURI(uri))
}
