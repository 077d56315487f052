package pdf

import (
	"fmt"
	"iter"
	"strings"

	"github.com/ledongthuc/pdf"

	pdferrors "github.com/a3tai/pdf-forensics/internal/pdf/errors"
)

// BlockType tags a content block on a page
type BlockType int

const (
	BlockText BlockType = iota
	BlockImage
	BlockOther
)

// String returns a string representation of the BlockType
func (bt BlockType) String() string {
	switch bt {
	case BlockText:
		return "text"
	case BlockImage:
		return "image"
	default:
		return "other"
	}
}

// BlockRecord is one content block. Text is only set for text blocks.
type BlockRecord struct {
	Type BlockType
	Text string
}

// PageRecord is the decoded content of one page
type PageRecord struct {
	Index  int // 0-based
	Text   string
	Blocks []BlockRecord
}

// Pages returns a lazy sequence of page records in page order.
//
// The sequence can be ranged over once; further ranges yield nothing. A page
// that cannot be decoded yields a record holding only its index together
// with a PageDecode error, and the walk moves on to the next page.
func (d *Document) Pages() iter.Seq2[PageRecord, error] {
	consumed := false

	return func(yield func(PageRecord, error) bool) {
		if consumed {
			return
		}
		consumed = true

		for index := 0; index < d.reader.NumPage(); index++ {
			if !yield(d.decodePage(index)) {
				return
			}
		}
	}
}

// decodePage extracts the text blob and blocks of the page at index
func (d *Document) decodePage(index int) (rec PageRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			rec = PageRecord{Index: index}
			err = d.pageError(index, "page decoding panicked", nil).WithContext(fmt.Sprint(r))
		}
	}()

	page := d.reader.Page(index + 1)
	if page.V.IsNull() {
		return PageRecord{Index: index}, d.pageError(index, "page object is missing", nil)
	}

	text, err := page.GetPlainText(nil)
	if err != nil {
		return PageRecord{Index: index}, d.pageError(index, "failed to extract page text", err)
	}

	rows, err := page.GetTextByRow()
	if err != nil {
		return PageRecord{Index: index}, d.pageError(index, "failed to extract text rows", err)
	}

	blocks := make([]BlockRecord, 0, len(rows))
	for _, row := range rows {
		var builder strings.Builder
		for _, word := range row.Content {
			builder.WriteString(word.S)
		}
		blocks = append(blocks, BlockRecord{Type: BlockText, Text: builder.String()})
	}
	blocks = append(blocks, xObjectBlocks(page)...)

	return PageRecord{
		Index:  index,
		Text:   text,
		Blocks: blocks,
	}, nil
}

// xObjectBlocks returns one block per XObject referenced from the page resources
func xObjectBlocks(page pdf.Page) []BlockRecord {
	xObjects := page.Resources().Key("XObject")
	if xObjects.Kind() != pdf.Dict {
		return nil
	}

	var blocks []BlockRecord
	for _, key := range xObjects.Keys() {
		obj := xObjects.Key(key)
		if obj.IsNull() {
			continue
		}

		blockType := BlockOther
		if obj.Key("Subtype").Name() == "Image" {
			blockType = BlockImage
		}
		blocks = append(blocks, BlockRecord{Type: blockType})
	}

	return blocks
}

func (d *Document) pageError(index int, message string, cause error) *pdferrors.PDFError {
	return pdferrors.Wrap(pdferrors.ErrorTypePageDecode, message, cause).
		WithFile(d.path).
		WithPage(index + 1)
}
