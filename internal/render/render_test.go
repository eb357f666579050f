package render

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakePdfToPPM writes a stand-in pdftoppm that records its arguments and
// creates the expected output PNG.
func fakePdfToPPM(t *testing.T) (binPath, argsFile string) {
	t.Helper()
	dir := t.TempDir()
	binPath = filepath.Join(dir, "pdftoppm")
	argsFile = filepath.Join(dir, "args.txt")

	script := "#!/bin/sh\n" +
		"echo \"$@\" > " + argsFile + "\n" +
		"for last; do :; done\n" +
		"echo fake-png > \"$last.png\"\n"
	require.NoError(t, os.WriteFile(binPath, []byte(script), 0755))
	return binPath, argsFile
}

func testDoc(t *testing.T, binPath string) *PopplerDocument {
	t.Helper()
	return &PopplerDocument{
		path:       "/data/scan.pdf",
		dims:       []types.Dim{{Width: 612, Height: 792}, {Width: 595, Height: 842}},
		dpi:        300,
		binPath:    binPath,
		tempParent: t.TempDir(),
	}
}

func TestPageCountAndPointSize(t *testing.T) {
	d := testDoc(t, "pdftoppm")
	assert.Equal(t, 2, d.PageCount())

	w, h := d.PagePointSize(1)
	assert.Equal(t, 595.0, w)
	assert.Equal(t, 842.0, h)

	w, h = d.PagePointSize(5)
	assert.Zero(t, w)
	assert.Zero(t, h)
}

func TestRenderPage(t *testing.T) {
	bin, argsFile := fakePdfToPPM(t)
	d := testDoc(t, bin)
	defer d.Cleanup()

	path, err := d.RenderPage(context.Background(), 1)
	require.NoError(t, err)
	assert.FileExists(t, path)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "page_1_"))
	assert.True(t, strings.HasSuffix(path, ".png"))

	args, err := os.ReadFile(argsFile)
	require.NoError(t, err)
	// Page 1 (zero-based) is poppler page 2, rendered as a single file.
	assert.Contains(t, string(args), "-png")
	assert.Contains(t, string(args), "-r 300")
	assert.Contains(t, string(args), "-f 2 -l 2")
	assert.Contains(t, string(args), "-singlefile")
	assert.Contains(t, string(args), "/data/scan.pdf")
}

func TestRenderPage_OutOfRange(t *testing.T) {
	d := testDoc(t, "pdftoppm")
	_, err := d.RenderPage(context.Background(), 2)
	assert.Error(t, err)
	_, err = d.RenderPage(context.Background(), -1)
	assert.Error(t, err)
}

func TestRenderPage_BinaryFailure(t *testing.T) {
	dir := t.TempDir()
	bin := filepath.Join(dir, "pdftoppm")
	require.NoError(t, os.WriteFile(bin, []byte("#!/bin/sh\necho boom >&2\nexit 1\n"), 0755))

	d := testDoc(t, bin)
	defer d.Cleanup()

	_, err := d.RenderPage(context.Background(), 0)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestCleanup_RemovesTempDir(t *testing.T) {
	bin, _ := fakePdfToPPM(t)
	d := testDoc(t, bin)

	path, err := d.RenderPage(context.Background(), 0)
	require.NoError(t, err)
	tempDir := filepath.Dir(path)

	d.Cleanup()
	assert.NoDirExists(t, tempDir)

	// Second call is a no-op.
	d.Cleanup()
}

func TestPageFileName_Deterministic(t *testing.T) {
	a := pageFileName("/data/scan.pdf", 3)
	b := pageFileName("/data/scan.pdf", 3)
	c := pageFileName("/data/other.pdf", 3)

	assert.Equal(t, a, b)
	assert.NotEqual(t, a, c)
	assert.True(t, strings.HasPrefix(a, "page_3_"))
	// page_<idx>_<8 hex chars>.png
	assert.Len(t, a, len("page_3_")+8+len(".png"))
}

func TestPixelSize(t *testing.T) {
	// US Letter at 300 DPI.
	w, h := PixelSize(612, 792, 300)
	assert.Equal(t, 2550, w)
	assert.Equal(t, 3300, h)

	// 72 DPI is identity.
	w, h = PixelSize(612, 792, 72)
	assert.Equal(t, 612, w)
	assert.Equal(t, 792, h)
}
