package form

import (
	"fmt"
	"io"
	"sync"
)

// Source yields the current value of an input element.
type Source interface {
	Value() (string, error)
}

// Sink receives the outcome string of a submission.
type Sink interface {
	SetText(text string)
}

// Field is a text element that can be read as an input and written as an
// output. It is safe for concurrent use.
type Field struct {
	mu   sync.RWMutex
	text string
}

func NewField(text string) *Field {
	return &Field{text: text}
}

func (f *Field) Value() (string, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.text, nil
}

func (f *Field) SetText(text string) {
	f.mu.Lock()
	f.text = text
	f.mu.Unlock()
}

// Text returns the current content without the error return of Value.
func (f *Field) Text() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.text
}

// Document holds named elements, looked up once when a form is built.
type Document struct {
	mu       sync.RWMutex
	elements map[string]*Field
}

func NewDocument() *Document {
	return &Document{elements: map[string]*Field{}}
}

// Add registers f under id, replacing any element with the same id.
func (d *Document) Add(id string, f *Field) *Field {
	d.mu.Lock()
	d.elements[id] = f
	d.mu.Unlock()
	return f
}

// Element returns the element registered under id.
func (d *Document) Element(id string) (*Field, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	f, ok := d.elements[id]
	if !ok {
		return nil, fmt.Errorf("element %q not found", id)
	}
	return f, nil
}

// WriterSink prints every outcome on its own line.
type WriterSink struct {
	mu sync.Mutex
	w  io.Writer
}

func NewWriterSink(w io.Writer) *WriterSink {
	return &WriterSink{w: w}
}

func (s *WriterSink) SetText(text string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, _ = fmt.Fprintln(s.w, text)
}

// StaticSource is a Source with a fixed value.
type StaticSource string

func (s StaticSource) Value() (string, error) { return string(s), nil }
