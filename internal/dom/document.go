// Package dom is a small document model over golang.org/x/net/html. It
// provides element lookup, containment, and listener dispatch with bubbling
// so page logic can run host-side against the same tree the webview shows.
package dom

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"
	"sync/atomic"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Listener handles a dispatched event.
type Listener func(*Event)

type registration struct {
	target  *html.Node
	typ     EventType
	fn      Listener
	removed atomic.Bool
}

// Document owns an HTML tree and the listeners attached to it.
//
// Lock order: callers holding their own lock may call into Document, but
// listeners run with no Document lock held, so a listener may take its own
// lock and then call back into Document.
type Document struct {
	treeMu sync.RWMutex
	root   *html.Node

	listenerMu sync.Mutex
	listeners  []*registration
}

// New wraps an existing tree.
func New(root *html.Node) *Document {
	return &Document{root: root}
}

// Parse reads an HTML document.
func Parse(r io.Reader) (*Document, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	return New(root), nil
}

// ParseString is Parse for an in-memory document.
func ParseString(s string) (*Document, error) {
	return Parse(strings.NewReader(s))
}

// Root returns the document node.
func (d *Document) Root() *html.Node {
	return d.root
}

// Update runs fn with exclusive access to the tree.
func (d *Document) Update(fn func()) {
	d.treeMu.Lock()
	defer d.treeMu.Unlock()
	fn()
}

// View runs fn with shared read access to the tree.
func (d *Document) View(fn func()) {
	d.treeMu.RLock()
	defer d.treeMu.RUnlock()
	fn()
}

// GetElementByID returns the first element whose id attribute equals id.
func (d *Document) GetElementByID(id string) *html.Node {
	d.treeMu.RLock()
	defer d.treeMu.RUnlock()
	return FindByID(d.root, id)
}

// Contains reports whether node is ancestor or one of its descendants.
func (d *Document) Contains(ancestor, node *html.Node) bool {
	d.treeMu.RLock()
	defer d.treeMu.RUnlock()
	return Contains(ancestor, node)
}

// InnerHTML serializes the children of n.
func (d *Document) InnerHTML(n *html.Node) (string, error) {
	d.treeMu.RLock()
	defer d.treeMu.RUnlock()
	return InnerHTML(n)
}

// HTML serializes the whole document.
func (d *Document) HTML() (string, error) {
	d.treeMu.RLock()
	defer d.treeMu.RUnlock()
	var buf bytes.Buffer
	if err := html.Render(&buf, d.root); err != nil {
		return "", fmt.Errorf("render document: %w", err)
	}
	return buf.String(), nil
}

// AddEventListener registers fn for events of typ delivered to target or
// bubbling through it. A nil target registers a document-level listener,
// which runs after every element on the propagation path.
// The returned function removes the listener and is safe to call repeatedly.
func (d *Document) AddEventListener(target *html.Node, typ EventType, fn Listener) (remove func()) {
	reg := &registration{target: target, typ: typ, fn: fn}
	d.listenerMu.Lock()
	d.listeners = append(d.listeners, reg)
	d.listenerMu.Unlock()

	return func() {
		if !reg.removed.CompareAndSwap(false, true) {
			return
		}
		d.listenerMu.Lock()
		defer d.listenerMu.Unlock()
		for i, candidate := range d.listeners {
			if candidate == reg {
				d.listeners = append(d.listeners[:i], d.listeners[i+1:]...)
				return
			}
		}
	}
}

// ListenerCount returns the number of registered listeners.
func (d *Document) ListenerCount() int {
	d.listenerMu.Lock()
	defer d.listenerMu.Unlock()
	return len(d.listeners)
}

// Dispatch delivers ev along the propagation path: the target, each of its
// ancestors, then document-level listeners. Listeners registered during
// dispatch are not invoked for ev; listeners removed during dispatch are
// skipped. StopPropagation ends dispatch after the current node.
func (d *Document) Dispatch(ev *Event) *Event {
	d.listenerMu.Lock()
	snapshot := make([]*registration, 0, len(d.listeners))
	for _, reg := range d.listeners {
		if reg.typ == ev.Type {
			snapshot = append(snapshot, reg)
		}
	}
	d.listenerMu.Unlock()
	if len(snapshot) == 0 {
		return ev
	}

	var path []*html.Node
	d.View(func() {
		for n := ev.Target; n != nil; n = n.Parent {
			path = append(path, n)
		}
	})
	path = append(path, nil)

	for _, node := range path {
		invoked := false
		for _, reg := range snapshot {
			if reg.target != node || reg.removed.Load() {
				continue
			}
			ev.currentTarget = node
			reg.fn(ev)
			invoked = true
		}
		if invoked && ev.propagationStopped {
			break
		}
	}
	ev.currentTarget = nil
	return ev
}

// FindByID walks the tree under root for an element with the given id.
func FindByID(root *html.Node, id string) *html.Node {
	if root == nil || id == "" {
		return nil
	}
	if root.Type == html.ElementNode && Attr(root, "id") == id {
		return root
	}
	for c := root.FirstChild; c != nil; c = c.NextSibling {
		if found := FindByID(c, id); found != nil {
			return found
		}
	}
	return nil
}

// Contains reports whether node is ancestor or lies beneath it.
func Contains(ancestor, node *html.Node) bool {
	if ancestor == nil {
		return false
	}
	for n := node; n != nil; n = n.Parent {
		if n == ancestor {
			return true
		}
	}
	return false
}

// TopAncestor returns the outermost ancestor of n, or n itself.
func TopAncestor(n *html.Node) *html.Node {
	for n != nil && n.Parent != nil {
		n = n.Parent
	}
	return n
}

// RemoveChildren detaches every child of n.
func RemoveChildren(n *html.Node) {
	for c := n.FirstChild; c != nil; c = n.FirstChild {
		n.RemoveChild(c)
	}
}

// Detach removes n from its parent, if any.
func Detach(n *html.Node) {
	if n != nil && n.Parent != nil {
		n.Parent.RemoveChild(n)
	}
}

// InnerHTML serializes the children of n without locking.
func InnerHTML(n *html.Node) (string, error) {
	if n == nil {
		return "", nil
	}
	var buf bytes.Buffer
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if err := html.Render(&buf, c); err != nil {
			return "", fmt.Errorf("render fragment: %w", err)
		}
	}
	return buf.String(), nil
}

// TextContent concatenates the text nodes beneath n.
func TextContent(n *html.Node) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(node *html.Node) {
		if node.Type == html.TextNode {
			b.WriteString(node.Data)
		}
		for c := node.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	if n != nil {
		walk(n)
	}
	return b.String()
}

// NewElement creates a detached element with the given attributes, given as
// key/value pairs.
func NewElement(a atom.Atom, attrs ...string) *html.Node {
	n := &html.Node{Type: html.ElementNode, DataAtom: a, Data: a.String()}
	for i := 0; i+1 < len(attrs); i += 2 {
		n.Attr = append(n.Attr, html.Attribute{Key: attrs[i], Val: attrs[i+1]})
	}
	return n
}

// NewText creates a detached text node.
func NewText(s string) *html.Node {
	return &html.Node{Type: html.TextNode, Data: s}
}
