package engine

import "errors"

var (
	// ErrUnknownFormat is returned when no registered handler accepts a file
	ErrUnknownFormat = errors.New("no document handler recognizes the file")

	// ErrPageRange is returned when a page number is outside the document
	ErrPageRange = errors.New("page number out of range")

	// ErrNeedsPassword is returned by operations on a locked document
	ErrNeedsPassword = errors.New("document is locked")

	// ErrUnresolvedLink is returned when a link has no destination page
	ErrUnresolvedLink = errors.New("link has no destination in this document")
)

// DocumentHandler opens one family of file formats.
type DocumentHandler interface {
	// Name identifies the handler in logs
	Name() string

	// Extensions lists the lower case file extensions the handler accepts
	// when content sniffing is inconclusive.
	Extensions() []string

	// Recognize reports whether the leading bytes of a file belong to the
	// handler's format.
	Recognize(header []byte) bool

	// Open opens the document at path
	Open(ctx *Context, path string) (Document, error)
}

// Document is an open document. Documents are not safe for concurrent use.
type Document interface {
	// CountPages returns the number of pages
	CountPages() (int, error)

	// NeedsPassword reports whether the document is locked
	NeedsPassword() bool

	// AuthenticatePassword tries to unlock the document and reports success.
	AuthenticatePassword(password string) bool

	// LoadPage loads the page with the given zero based number
	LoadPage(number int) (Page, error)

	// LoadOutline returns the first top level outline entry, or nil when
	// the document has no outline.
	LoadOutline() (*Outline, error)

	// ResolveLink returns the zero based page number a link URI points at.
	ResolveLink(uri string) (int, error)

	// Drop releases the document
	Drop()
}

// Page is a loaded page.
type Page interface {
	// Bound returns the page rectangle in page space, origin top left
	Bound() Rect

	// Run sends the page contents to dev. ctm maps page space to device space.
	Run(dev Device, ctm Matrix) error

	// Drop releases the page
	Drop()
}

// TextLayer is implemented by pages that carry their own text extraction.
type TextLayer interface {
	TextPage() (*TextPage, error)
}

// Outline is an entry of a document outline. Entries form a linked tree:
// Next points at the following sibling and Down at the first child.
type Outline struct {
	Title string
	URI   string
	Next  *Outline
	Down  *Outline
}

// NewTextPageFromPage extracts the structured text of a page. Pages with
// their own text layer are asked first; otherwise the page is run through
// a text device.
func NewTextPageFromPage(page Page) (*TextPage, error) {
	if tl, ok := page.(TextLayer); ok {
		tp, err := tl.TextPage()
		if err == nil && tp != nil {
			return tp, nil
		}
	}

	dev := NewTextDevice(page.Bound())
	defer dev.Drop()
	if err := page.Run(dev, Identity); err != nil {
		return nil, err
	}
	if err := dev.Close(); err != nil {
		return nil, err
	}
	return dev.TextPage(), nil
}
