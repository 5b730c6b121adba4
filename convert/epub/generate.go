package epub

import (
	"archive/zip"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	fixzip "github.com/hidez8891/zip"
	"go.uber.org/zap"

	"d2e/common"
	"d2e/config"
	"d2e/nav"
)

const (
	mimetypeContent = "application/epub+zip"
	oebpsDir        = "OEBPS"
	imagesDir       = "images"
)

// Generate lays the book out as an EPUB 3 container at outputPath. The
// archive is staged in workDir and moved into place only when complete.
func Generate(book *Book, outputPath, workDir string, cfg *config.DocumentConfig, log *zap.Logger) error {
	log.Info("Generating EPUB", zap.String("output", outputPath))

	_, tmpName := filepath.Split(outputPath)
	tmpName = filepath.Join(workDir, tmpName)

	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	f, err := os.Create(tmpName)
	if err != nil {
		return fmt.Errorf("unable to create output file: %w", err)
	}
	defer f.Close()

	zw := zip.NewWriter(f)
	defer zw.Close()

	if err := writeMimetype(zw); err != nil {
		return fmt.Errorf("unable to write mimetype: %w", err)
	}
	if err := writeContainer(zw); err != nil {
		return fmt.Errorf("unable to write container: %w", err)
	}

	if err := writeFrontMatter(zw, book, log); err != nil {
		return fmt.Errorf("unable to write generated pages: %w", err)
	}

	for _, ch := range book.Chapters {
		page := wrapXHTML(ch.Title, ch.HTML)
		if err := writeDataToZip(zw, path.Join(oebpsDir, ch.Filename()), []byte(page)); err != nil {
			return fmt.Errorf("unable to write chapter %s: %w", ch.ID, err)
		}
	}

	for _, img := range book.Images {
		if err := writeDataToZip(zw, path.Join(oebpsDir, imagesDir, img.Name), img.Data); err != nil {
			return fmt.Errorf("unable to write image %s: %w", img.Name, err)
		}
	}

	if book.Cover != nil {
		if err := writeDataToZip(zw, path.Join(oebpsDir, imagesDir, book.Cover.Name), book.Cover.Data); err != nil {
			return fmt.Errorf("unable to write cover image: %w", err)
		}
		if err := writeCoverPage(zw, book, cfg); err != nil {
			return fmt.Errorf("unable to write cover page: %w", err)
		}
	}

	if err := writeDataToZip(zw, path.Join(oebpsDir, "stylesheet.css"), []byte(book.CSS)); err != nil {
		return fmt.Errorf("unable to write stylesheet: %w", err)
	}

	identifier := resolveIdentifier(book, log)

	if err := writeOPF(zw, book, cfg, identifier, log); err != nil {
		return fmt.Errorf("unable to write OPF: %w", err)
	}
	if err := writeNav(zw, book); err != nil {
		return fmt.Errorf("unable to write NAV: %w", err)
	}
	if err := writeNCX(zw, book, identifier); err != nil {
		return fmt.Errorf("unable to write NCX: %w", err)
	}

	// make sure buffers are flushed before continuing
	if err := zw.Close(); err != nil {
		return fmt.Errorf("unable to close output archive: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("unable to finalize output file: %w", err)
	}
	defer os.Remove(tmpName)

	if cfg.FixZip {
		return copyZipWithoutDataDescriptors(tmpName, outputPath)
	}
	return copyFile(tmpName, outputPath)
}

// resolveIdentifier picks the package identifier: a valid ISBN wins, then a
// user supplied UUID, then a freshly generated one.
func resolveIdentifier(book *Book, log *zap.Logger) string {
	if isbn, err := common.NormalizeISBN(book.Meta.ISBN); err != nil {
		log.Warn("Ignoring invalid ISBN", zap.String("isbn", book.Meta.ISBN), zap.Error(err))
	} else if isbn != "" {
		return "urn:isbn:" + isbn
	}
	if book.Meta.UUID != "" {
		return "urn:uuid:" + book.Meta.UUID
	}
	return "urn:uuid:" + uuid.Must(uuid.NewV7()).String()
}

func writeMimetype(zw *zip.Writer) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   "mimetype",
		Method: zip.Store,
	})
	if err != nil {
		return err
	}
	_, err = io.WriteString(w, mimetypeContent)
	return err
}

func writeContainer(zw *zip.Writer) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	container := doc.CreateElement("container")
	container.CreateAttr("version", "1.0")
	container.CreateAttr("xmlns", "urn:oasis:names:tc:opendocument:xmlns:container")

	rootfiles := container.CreateElement("rootfiles")
	rootfile := rootfiles.CreateElement("rootfile")
	rootfile.CreateAttr("full-path", path.Join(oebpsDir, "content.opf"))
	rootfile.CreateAttr("media-type", "application/oebps-package+xml")

	return writeXMLToZip(zw, "META-INF/container.xml", doc)
}

func writeOPF(zw *zip.Writer, book *Book, cfg *config.DocumentConfig, identifier string, log *zap.Logger) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	pkg := doc.CreateElement("package")
	pkg.CreateAttr("xmlns", "http://www.idpf.org/2007/opf")
	pkg.CreateAttr("version", "3.0")
	pkg.CreateAttr("unique-identifier", "BookId")

	metadata := pkg.CreateElement("metadata")
	metadata.CreateAttr("xmlns:dc", "http://purl.org/dc/elements/1.1/")
	metadata.CreateAttr("xmlns:opf", "http://www.idpf.org/2007/opf")

	title := book.Title()
	if book.Meta.Transliterate {
		title = slug.Make(title)
	}
	dcTitle := metadata.CreateElement("dc:title")
	dcTitle.CreateAttr("id", "title")
	dcTitle.SetText(title)
	if book.Meta.TitleSort != "" {
		sortMeta := metadata.CreateElement("meta")
		sortMeta.CreateAttr("refines", "#title")
		sortMeta.CreateAttr("property", "file-as")
		sortMeta.SetText(book.Meta.TitleSort)

		sortMeta = metadata.CreateElement("meta")
		sortMeta.CreateAttr("name", "calibre:title_sort")
		sortMeta.CreateAttr("content", book.Meta.TitleSort)
	}

	dcIdentifier := metadata.CreateElement("dc:identifier")
	dcIdentifier.CreateAttr("id", "BookId")
	dcIdentifier.SetText(identifier)

	metadata.CreateElement("dc:language").SetText(book.Meta.Language)

	if book.Meta.Author != "" {
		author := book.Meta.Author
		if book.Meta.Transliterate {
			author = slug.Make(author)
		}
		dcCreator := metadata.CreateElement("dc:creator")
		dcCreator.CreateAttr("id", "creator0")
		dcCreator.SetText(author)

		roleMeta := metadata.CreateElement("meta")
		roleMeta.CreateAttr("refines", "#creator0")
		roleMeta.CreateAttr("property", "role")
		roleMeta.CreateAttr("scheme", "marc:relators")
		roleMeta.SetText("aut")

		if book.Meta.AuthorSort != "" {
			sortMeta := metadata.CreateElement("meta")
			sortMeta.CreateAttr("refines", "#creator0")
			sortMeta.CreateAttr("property", "file-as")
			sortMeta.SetText(book.Meta.AuthorSort)

			sortMeta = metadata.CreateElement("meta")
			sortMeta.CreateAttr("name", "calibre:author_sort")
			sortMeta.CreateAttr("content", book.Meta.AuthorSort)
		}
	}

	if book.Meta.Publisher != "" {
		metadata.CreateElement("dc:publisher").SetText(book.Meta.Publisher)
	}
	if book.Meta.Date != "" {
		metadata.CreateElement("dc:date").SetText(book.Meta.Date)
	}
	if book.Meta.Description != "" {
		metadata.CreateElement("dc:description").SetText(book.Meta.Description)
	}
	for _, subject := range book.Meta.Subjects {
		metadata.CreateElement("dc:subject").SetText(subject)
	}
	// keywords land in dc:subject as well, readers treat both the same way
	for _, keyword := range book.Meta.Keywords {
		metadata.CreateElement("dc:subject").SetText(keyword)
	}

	if book.Meta.Series != "" {
		// keep series metadata readable by library managers
		meta := metadata.CreateElement("meta")
		meta.CreateAttr("name", "calibre:series")
		meta.CreateAttr("content", book.Meta.Series)
		if book.Meta.SeriesIndex > 0 {
			meta = metadata.CreateElement("meta")
			meta.CreateAttr("name", "calibre:series_index")
			meta.CreateAttr("content", strconv.FormatFloat(book.Meta.SeriesIndex, 'f', -1, 64))
		}
	}

	modifiedMeta := metadata.CreateElement("meta")
	modifiedMeta.CreateAttr("property", "dcterms:modified")
	modifiedMeta.SetText(time.Now().UTC().Format("2006-01-02T15:04:05Z"))

	manifest := pkg.CreateElement("manifest")

	navItem := manifest.CreateElement("item")
	navItem.CreateAttr("id", "nav")
	navItem.CreateAttr("href", "nav.xhtml")
	navItem.CreateAttr("media-type", "application/xhtml+xml")
	navItem.CreateAttr("properties", "nav")

	ncxItem := manifest.CreateElement("item")
	ncxItem.CreateAttr("id", "ncx")
	ncxItem.CreateAttr("href", "toc.ncx")
	ncxItem.CreateAttr("media-type", "application/x-dtbncx+xml")

	cssItem := manifest.CreateElement("item")
	cssItem.CreateAttr("id", "stylesheet")
	cssItem.CreateAttr("href", "stylesheet.css")
	cssItem.CreateAttr("media-type", "text/css")

	if book.Cover != nil {
		coverImage := manifest.CreateElement("item")
		coverImage.CreateAttr("id", "book-cover-image")
		coverImage.CreateAttr("href", imagesDir+"/"+book.Cover.Name)
		coverImage.CreateAttr("media-type", book.Cover.MediaType())
		coverImage.CreateAttr("properties", "cover-image")

		coverPage := manifest.CreateElement("item")
		coverPage.CreateAttr("id", "cover-page")
		coverPage.CreateAttr("href", "cover.xhtml")
		coverPage.CreateAttr("media-type", "application/xhtml+xml")
		coverPage.CreateAttr("properties", "svg")
	}

	for _, item := range book.Spine {
		if item.ID == "nav" {
			continue
		}
		el := manifest.CreateElement("item")
		el.CreateAttr("id", item.ID)
		el.CreateAttr("href", item.Filename)
		el.CreateAttr("media-type", "application/xhtml+xml")
	}

	for i, img := range book.Images {
		el := manifest.CreateElement("item")
		el.CreateAttr("id", fmt.Sprintf("img-%d", i))
		el.CreateAttr("href", imagesDir+"/"+img.Name)
		el.CreateAttr("media-type", img.MediaType())
	}

	spine := pkg.CreateElement("spine")
	spine.CreateAttr("toc", "ncx")
	if book.Cover != nil {
		coverRef := spine.CreateElement("itemref")
		coverRef.CreateAttr("idref", "cover-page")
		coverRef.CreateAttr("linear", "no")
	}
	for _, item := range book.Spine {
		itemref := spine.CreateElement("itemref")
		itemref.CreateAttr("idref", item.ID)
		if item.ID == "nav" {
			itemref.CreateAttr("linear", "no")
		}
	}

	return writeXMLToZip(zw, path.Join(oebpsDir, "content.opf"), doc)
}

func writeNav(zw *zip.Writer, book *Book) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	html := doc.CreateElement("html")
	html.CreateAttr("xmlns", "http://www.w3.org/1999/xhtml")
	html.CreateAttr("xmlns:epub", "http://www.idpf.org/2007/ops")

	head := html.CreateElement("head")
	head.CreateElement("meta").CreateAttr("charset", "utf-8")
	head.CreateElement("title").SetText("Table of Contents")

	link := head.CreateElement("link")
	link.CreateAttr("rel", "stylesheet")
	link.CreateAttr("type", "text/css")
	link.CreateAttr("href", "stylesheet.css")

	body := html.CreateElement("body")

	tocNav := body.CreateElement("nav")
	tocNav.CreateAttr("epub:type", "toc")
	tocNav.CreateAttr("id", "toc")
	tocNav.CreateAttr("role", "doc-toc")
	tocNav.CreateElement("h1").SetText("Table of Contents")
	buildNavList(tocNav, book.TOC)

	landmarksNav := body.CreateElement("nav")
	landmarksNav.CreateAttr("epub:type", "landmarks")
	landmarksNav.CreateAttr("id", "landmarks")
	landmarksNav.CreateAttr("hidden", "")
	landmarksNav.CreateElement("h2").SetText("Landmarks")

	ol := landmarksNav.CreateElement("ol")
	if book.Cover != nil {
		li := ol.CreateElement("li")
		a := li.CreateElement("a")
		a.CreateAttr("epub:type", "cover")
		a.CreateAttr("href", "cover.xhtml")
		a.SetText("Cover")
	}
	for _, item := range book.Spine {
		if item.Landmark == "" || item.ID == "nav" {
			continue
		}
		li := ol.CreateElement("li")
		a := li.CreateElement("a")
		a.CreateAttr("epub:type", item.Landmark)
		a.CreateAttr("href", item.Filename)
		a.SetText(item.Title)
	}

	if len(book.PageList) > 0 {
		pageNav := body.CreateElement("nav")
		pageNav.CreateAttr("epub:type", "page-list")
		pageNav.CreateAttr("id", "page-list")
		pageNav.CreateAttr("hidden", "")
		pageNav.CreateElement("h2").SetText("Pages")

		pl := pageNav.CreateElement("ol")
		for _, target := range book.PageList {
			li := pl.CreateElement("li")
			a := li.CreateElement("a")
			a.CreateAttr("href", target.Href)
			a.SetText(target.Label)
		}
	}

	return writeXMLToZip(zw, path.Join(oebpsDir, "nav.xhtml"), doc)
}

func buildNavList(parent *etree.Element, entries []nav.TOCEntry) {
	if len(entries) == 0 {
		return
	}
	ol := parent.CreateElement("ol")
	for _, entry := range entries {
		li := ol.CreateElement("li")
		a := li.CreateElement("a")
		a.CreateAttr("href", entry.Href)
		a.SetText(entry.Title)
		buildNavList(li, entry.Children)
	}
}

func writeNCX(zw *zip.Writer, book *Book, identifier string) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	ncx := doc.CreateElement("ncx")
	ncx.CreateAttr("xmlns", "http://www.daisy.org/z3986/2005/ncx/")
	ncx.CreateAttr("version", "2005-1")

	head := ncx.CreateElement("head")
	metaUID := head.CreateElement("meta")
	metaUID.CreateAttr("name", "dtb:uid")
	metaUID.CreateAttr("content", identifier)

	metaDepth := head.CreateElement("meta")
	metaDepth.CreateAttr("name", "dtb:depth")
	metaDepth.CreateAttr("content", fmt.Sprintf("%d", tocDepth(book.TOC)))

	docTitle := ncx.CreateElement("docTitle")
	docTitle.CreateElement("text").SetText(book.Title())

	navMap := ncx.CreateElement("navMap")
	playOrder := 0
	buildNCXPoints(navMap, book.TOC, &playOrder)

	return writeXMLToZip(zw, path.Join(oebpsDir, "toc.ncx"), doc)
}

func buildNCXPoints(parent *etree.Element, entries []nav.TOCEntry, playOrder *int) {
	for _, entry := range entries {
		*playOrder++
		navPoint := parent.CreateElement("navPoint")
		navPoint.CreateAttr("id", fmt.Sprintf("navpoint-%d", *playOrder))
		navPoint.CreateAttr("playOrder", fmt.Sprintf("%d", *playOrder))

		navLabel := navPoint.CreateElement("navLabel")
		navLabel.CreateElement("text").SetText(entry.Title)

		content := navPoint.CreateElement("content")
		content.CreateAttr("src", entry.Href)

		buildNCXPoints(navPoint, entry.Children, playOrder)
	}
}

func tocDepth(entries []nav.TOCEntry) int {
	depth := 1
	for _, entry := range entries {
		if len(entry.Children) > 0 {
			depth = max(depth, 1+tocDepth(entry.Children))
		}
	}
	return depth
}

func writeCoverPage(zw *zip.Writer, book *Book, cfg *config.DocumentConfig) error {
	doc := etree.NewDocument()
	doc.CreateProcInst("xml", `version="1.0" encoding="UTF-8"`)

	html := doc.CreateElement("html")
	html.CreateAttr("xmlns", "http://www.w3.org/1999/xhtml")

	head := html.CreateElement("head")
	meta := head.CreateElement("meta")
	meta.CreateAttr("http-equiv", "Content-Type")
	meta.CreateAttr("content", "text/html; charset=utf-8")

	style := head.CreateElement("style")
	style.CreateAttr("type", "text/css")

	switch cfg.Images.Cover.Resize {
	case config.ImageResizeModeStretch:
		style.SetText("html, body { margin: 0; padding: 0; width: 100%; height: 100%; } svg { display: block; width: 100%; height: 100%; }")
	default:
		style.SetText("html, body { margin: 0; padding: 0; width: 100%; height: 100%; } svg { display: block; width: auto; height: 100%; margin: 0 auto }")
	}

	head.CreateElement("title").SetText(book.Title())

	body := html.CreateElement("body")
	svg := body.CreateElement("svg")
	svg.CreateAttr("version", "1.1")
	svg.CreateAttr("xmlns", "http://www.w3.org/2000/svg")
	svg.CreateAttr("xmlns:xlink", "http://www.w3.org/1999/xlink")

	w, h := book.CoverDim[0], book.CoverDim[1]
	if w == 0 || h == 0 {
		w, h = cfg.Images.Cover.Width, cfg.Images.Cover.Height
	}

	switch cfg.Images.Cover.Resize {
	case config.ImageResizeModeStretch:
		svg.CreateAttr("viewBox", "0 0 100 100")
		svg.CreateAttr("preserveAspectRatio", "xMidYMid slice")
		img := svg.CreateElement("image")
		img.CreateAttr("x", "0")
		img.CreateAttr("y", "0")
		img.CreateAttr("width", "100")
		img.CreateAttr("height", "100")
		img.CreateAttr("xlink:href", imagesDir+"/"+book.Cover.Name)
	default:
		svg.CreateAttr("viewBox", fmt.Sprintf("0 0 %d %d", w, h))
		svg.CreateAttr("preserveAspectRatio", "xMidYMid meet")
		img := svg.CreateElement("image")
		img.CreateAttr("x", "0")
		img.CreateAttr("y", "0")
		img.CreateAttr("width", fmt.Sprintf("%d", w))
		img.CreateAttr("height", fmt.Sprintf("%d", h))
		img.CreateAttr("xlink:href", imagesDir+"/"+book.Cover.Name)
	}

	return writeXMLToZip(zw, path.Join(oebpsDir, "cover.xhtml"), doc)
}

func writeXMLToZip(zw *zip.Writer, name string, doc *etree.Document) error {
	doc.Indent(2)
	var sb strings.Builder
	if _, err := doc.WriteTo(&sb); err != nil {
		return err
	}
	return writeDataToZip(zw, name, []byte(sb.String()))
}

func writeDataToZip(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.Create(name)
	if err != nil {
		return err
	}
	_, err = w.Write(data)
	return err
}

func copyZipWithoutDataDescriptors(from, to string) error {
	out, err := os.Create(to)
	if err != nil {
		return fmt.Errorf("unable to create target file (%s): %w", to, err)
	}
	defer out.Close()

	r, err := fixzip.OpenReader(from)
	if err != nil {
		return fmt.Errorf("unable to read archive file (%s): %w", from, err)
	}
	defer r.Close()

	w := fixzip.NewWriter(out)
	defer w.Close()

	for _, file := range r.File {
		// unset data descriptor flag, some readers choke on it
		file.Flags &= ^fixzip.FlagDataDescriptor

		if err := w.CopyFile(file); err != nil {
			return fmt.Errorf("unable to write target file (%s): %w", to, err)
		}
	}
	return nil
}

func copyFile(src, dst string) error {
	sourceFile, err := os.Open(src)
	if err != nil {
		return fmt.Errorf("failed to open source file: %w", err)
	}
	defer sourceFile.Close()

	destinationFile, err := os.Create(dst)
	if err != nil {
		return fmt.Errorf("failed to create destination file: %w", err)
	}
	defer destinationFile.Close()

	if _, err = io.Copy(destinationFile, sourceFile); err != nil {
		return fmt.Errorf("failed to copy file contents: %w", err)
	}

	if err = destinationFile.Close(); err != nil {
		return fmt.Errorf("failed to close destination file: %w", err)
	}
	return nil
}
