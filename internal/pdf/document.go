package pdf

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"

	pdferrors "github.com/a3tai/pdf-forensics/internal/pdf/errors"
)

// ErrEncrypted is joined into the open error of a document whose trailer
// carries an Encrypt dictionary that could not be opened with the empty
// password
var ErrEncrypted = errors.New("document is encrypted")

// Document is an opened PDF container. A Document belongs to a single scan
// and is not safe for concurrent use.
type Document struct {
	path   string
	file   *os.File
	reader *pdf.Reader
}

// Info holds the raw document-information strings. Absent entries are empty.
type Info struct {
	Title        string
	Subject      string
	Keywords     string
	CreationDate string
	ModDate      string
}

// Open opens the PDF at path. Every failure, including a panic inside the
// parser on hostile input, is returned as a DocumentOpen error.
func Open(path string) (doc *Document, err error) {
	defer func() {
		if r := recover(); r != nil {
			doc = nil
			err = pdferrors.New(pdferrors.ErrorTypeDocumentOpen, "PDF parser panicked").
				WithContext(fmt.Sprint(r)).
				WithFile(path)
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		if encryptedContainer(path, err) {
			err = fmt.Errorf("%w: %w", ErrEncrypted, err)
		}
		return nil, pdferrors.Wrap(pdferrors.ErrorTypeDocumentOpen, "failed to open PDF", err).WithFile(path)
	}

	return &Document{
		path:   path,
		file:   f,
		reader: reader,
	}, nil
}

// encryptedContainer decides whether a failed open was caused by
// encryption. ledongthuc reports a wrong empty password directly; for
// schemes it does not support, pdfcpu reads the cross-reference table and
// either decrypts with the empty password or rejects it.
func encryptedContainer(path string, openErr error) (encrypted bool) {
	if errors.Is(openErr, pdf.ErrInvalidPassword) {
		return true
	}

	defer func() {
		if recover() != nil {
			encrypted = false
		}
	}()

	f, err := os.Open(path)
	if err != nil {
		return false
	}
	defer f.Close()

	conf := model.NewDefaultConfiguration()
	conf.ValidationMode = model.ValidationRelaxed

	ctx, err := api.ReadContext(f, conf)
	if err != nil {
		return errors.Is(err, pdfcpu.ErrWrongPassword)
	}
	return ctx.Encrypt != nil
}

// Close releases the underlying file
func (d *Document) Close() error {
	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	return err
}

// Path returns the path the document was opened from
func (d *Document) Path() string {
	return d.path
}

// NumPage returns the number of pages in the page tree
func (d *Document) NumPage() int {
	return d.reader.NumPage()
}

// Encrypted reports whether the trailer carries an Encrypt dictionary
func (d *Document) Encrypted() (encrypted bool) {
	defer func() {
		if recover() != nil {
			encrypted = false
		}
	}()

	return !d.reader.Trailer().Key("Encrypt").IsNull()
}

// Info reads the trailer Info dictionary. Text fields are decoded to UTF-8;
// the date fields are returned byte-for-byte so they can be compared
// without normalization.
func (d *Document) Info() (info Info) {
	defer func() {
		// A malformed Info dictionary yields whatever was read before the failure
		_ = recover()
	}()

	dict := d.reader.Trailer().Key("Info")
	if dict.IsNull() {
		return info
	}

	info.Title = textValue(dict.Key("Title"))
	info.Subject = textValue(dict.Key("Subject"))
	info.Keywords = textValue(dict.Key("Keywords"))
	info.CreationDate = rawValue(dict.Key("CreationDate"))
	info.ModDate = rawValue(dict.Key("ModDate"))

	return info
}

func textValue(v pdf.Value) string {
	if v.Kind() != pdf.String {
		return ""
	}
	return strings.TrimSpace(v.Text())
}

func rawValue(v pdf.Value) string {
	if v.Kind() != pdf.String {
		return ""
	}
	return v.RawString()
}
