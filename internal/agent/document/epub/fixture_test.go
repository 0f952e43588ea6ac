package epub

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"sort"
	"strings"
	"testing"

	"github.com/feichai0017/book-reader/internal/models"
	"github.com/feichai0017/book-reader/pkg/logger"
)

const testContainer = `<?xml version="1.0"?>
<container version="1.0" xmlns="urn:oasis:names:tc:opendocument:xmlns:container">
  <rootfiles>
    <rootfile full-path="%s" media-type="application/oebps-package+xml"/>
  </rootfiles>
</container>`

// manifestEntry is one <item> of a test package document.
type manifestEntry struct {
	id, href, mediaType, properties string
}

type testBook struct {
	opfPath  string
	metadata string
	manifest []manifestEntry
	spine    []string
	files    map[string]string
}

func (b testBook) opf() string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>
<package xmlns="http://www.idpf.org/2007/opf" version="3.0" unique-identifier="uid">
  <metadata xmlns:dc="http://purl.org/dc/elements/1.1/">`)
	sb.WriteString(b.metadata)
	sb.WriteString("</metadata>\n  <manifest>\n")
	for _, m := range b.manifest {
		fmt.Fprintf(&sb, `    <item id="%s" href="%s" media-type="%s"`, m.id, m.href, m.mediaType)
		if m.properties != "" {
			fmt.Fprintf(&sb, ` properties="%s"`, m.properties)
		}
		sb.WriteString("/>\n")
	}
	sb.WriteString("  </manifest>\n  <spine>\n")
	for _, id := range b.spine {
		fmt.Fprintf(&sb, `    <itemref idref="%s"/>`+"\n", id)
	}
	sb.WriteString("  </spine>\n</package>")
	return sb.String()
}

// build zips the book in memory, mimetype first.
func (b testBook) build(t *testing.T) *models.SourceFile {
	t.Helper()
	if b.opfPath == "" {
		b.opfPath = "OEBPS/content.opf"
	}

	files := map[string]string{
		"META-INF/container.xml": fmt.Sprintf(testContainer, b.opfPath),
		b.opfPath:                b.opf(),
	}
	for name, content := range b.files {
		files[name] = content
	}

	buf := new(bytes.Buffer)
	zw := zip.NewWriter(buf)
	writeEntry(t, zw, "mimetype", "application/epub+zip")

	names := make([]string, 0, len(files))
	for name := range files {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		writeEntry(t, zw, name, files[name])
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("close zip writer: %v", err)
	}
	return models.NewSourceFile("book.epub", models.Epub, buf.Bytes())
}

func writeEntry(t *testing.T, zw *zip.Writer, name, content string) {
	t.Helper()
	fw, err := zw.Create(name)
	if err != nil {
		t.Fatalf("create %s: %v", name, err)
	}
	if _, err := io.WriteString(fw, content); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
}

func xhtml(body string) string {
	return `<?xml version="1.0" encoding="UTF-8"?>
<!DOCTYPE html>
<html xmlns="http://www.w3.org/1999/xhtml" xmlns:xlink="http://www.w3.org/1999/xlink">
<head><title>t</title><style>p { color: red; }</style></head>
<body>` + body + `</body>
</html>`
}

func newTestProcessor() *Processor {
	return NewProcessor(logger.NewNop())
}
