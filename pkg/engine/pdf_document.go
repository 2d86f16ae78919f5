package engine

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
)

var disableConfigDir sync.Once

type pdfHandler struct{}

// PDFHandler returns the handler for PDF documents
func PDFHandler() DocumentHandler { return pdfHandler{} }

func (pdfHandler) Name() string { return "pdf" }

func (pdfHandler) Extensions() []string { return []string{"pdf"} }

// Recognize looks for the %PDF- marker, which may be preceded by junk.
func (pdfHandler) Recognize(header []byte) bool {
	return bytes.Contains(header, []byte("%PDF-"))
}

func (pdfHandler) Open(ctx *Context, path string) (Document, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open file: %w", err)
	}

	doc := &pdfDocument{ctx: ctx, path: path, raw: raw}
	err = doc.read("")
	if isPasswordError(err) {
		doc.locked = true
		return doc, nil
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// pdfDocument is a PDF read by pdfcpu. Until a password is accepted an
// encrypted document stays locked and only NeedsPassword and
// AuthenticatePassword may be used.
type pdfDocument struct {
	ctx      *Context
	path     string
	raw      []byte
	password string
	locked   bool

	pdf      *model.Context
	objs     objects
	pageRefs map[int]int // page object number -> page index

	text    *textLayers
	dropped bool
}

func isPasswordError(err error) bool {
	if err == nil {
		return false
	}
	return errors.Is(err, pdfcpu.ErrWrongPassword) ||
		strings.Contains(strings.ToLower(err.Error()), "password")
}

// read parses the file with the given password
func (d *pdfDocument) read(password string) (err error) {
	disableConfigDir.Do(func() { model.ConfigPath = "disable" })

	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("failed to read PDF context: %v", r)
		}
	}()

	conf := model.NewDefaultConfiguration()
	conf.UserPW = password
	conf.OwnerPW = password

	pdf, err := api.ReadContext(bytes.NewReader(d.raw), conf)
	if err != nil {
		return fmt.Errorf("failed to read PDF context: %w", err)
	}
	if err := pdf.EnsurePageCount(); err != nil {
		return fmt.Errorf("failed to count pages: %w", err)
	}

	d.pdf = pdf
	d.objs = objects{ctx: pdf}
	d.password = password
	d.pageRefs = make(map[int]int, pdf.PageCount)
	for i := 1; i <= pdf.PageCount; i++ {
		_, ref, _, err := pdf.PageDict(i, false)
		if err != nil || ref == nil {
			continue
		}
		d.pageRefs[int(ref.ObjectNumber)] = i - 1
	}
	d.text = newTextLayers(d.raw, password)
	return nil
}

func (d *pdfDocument) check() {
	if d.dropped {
		panic("engine: use of dropped document")
	}
}

func (d *pdfDocument) NeedsPassword() bool {
	d.check()
	return d.locked
}

func (d *pdfDocument) AuthenticatePassword(password string) bool {
	d.check()
	if !d.locked {
		return true
	}
	if err := d.read(password); err != nil {
		if !isPasswordError(err) {
			d.ctx.Warnf("pdf: %v", err)
		}
		return false
	}
	d.locked = false
	return true
}

func (d *pdfDocument) CountPages() (int, error) {
	d.check()
	if d.locked {
		return 0, ErrNeedsPassword
	}
	return d.pdf.PageCount, nil
}

func (d *pdfDocument) LoadPage(number int) (Page, error) {
	d.check()
	if d.locked {
		return nil, ErrNeedsPassword
	}
	if number < 0 || number >= d.pdf.PageCount {
		return nil, fmt.Errorf("page %d of %d: %w", number, d.pdf.PageCount, ErrPageRange)
	}
	return d.loadPage(number)
}

func (d *pdfDocument) Drop() {
	if d.dropped {
		return
	}
	d.ctx.StoreForget(d)
	d.pdf = nil
	d.raw = nil
	d.text = nil
	d.dropped = true
}
