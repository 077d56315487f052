package scan

import (
	"bytes"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"testing/iotest"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pdferrors "github.com/a3tai/pdf-forensics/internal/pdf/errors"
	"github.com/a3tai/pdf-forensics/internal/pdf/pdftest"
)

func TestHashReader_KnownDigest(t *testing.T) {
	sum, size, err := HashReader(strings.NewReader("abc"))
	require.NoError(t, err)
	assert.Equal(t, "ba7816bf8f01cfea414140de5dae2223b00361a396177a9cb410ff61f20015ad", sum)
	assert.Equal(t, int64(3), size)
}

func TestHashFile_Deterministic(t *testing.T) {
	content := bytes.Repeat([]byte("chain of custody "), 10000) // larger than one chunk
	path := pdftest.WriteBytes(t, t.TempDir(), "big.pdf", content)

	first, size, err := HashFile(path)
	require.NoError(t, err)
	second, _, err := HashFile(path)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, int64(len(content)), size)

	fromReader, _, err := HashReader(bytes.NewReader(content))
	require.NoError(t, err)
	assert.Equal(t, first, fromReader)
}

func TestHashReader_OneByteReads(t *testing.T) {
	whole, _, err := HashReader(strings.NewReader("streamed in tiny pieces"))
	require.NoError(t, err)
	pieces, _, err := HashReader(iotest.OneByteReader(strings.NewReader("streamed in tiny pieces")))
	require.NoError(t, err)
	assert.Equal(t, whole, pieces)
}

func TestHashReader_Error(t *testing.T) {
	_, _, err := HashReader(iotest.ErrReader(errors.New("disk gone")))
	assert.EqualError(t, err, "disk gone")
}

func TestHashFile_Missing(t *testing.T) {
	_, _, err := HashFile(filepath.Join(t.TempDir(), "nope.pdf"))
	require.Error(t, err)
	assert.True(t, errors.Is(err, pdferrors.ErrIO))
}
