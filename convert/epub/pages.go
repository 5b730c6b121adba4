package epub

import (
	"archive/zip"
	"embed"
	"fmt"
	"html"
	htmltemplate "html/template"
	"path"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"d2e/figures"
)

//go:embed templates/*.tmpl
var pageTemplates embed.FS

// Bare-bones page bodies used when a packaged template cannot be loaded, the
// build still produces the requested page.
const (
	inlineTitlePage = `<div class="titlepage"><h1>{{.Title}}</h1>{{if .Author}}<p class="author">{{.Author}}</p>{{end}}</div>`

	inlineCopyrightPage = `<div class="copyright"><p>&#169; {{.Year}}{{if .Author}} {{.Author}}{{end}}</p></div>`
)

// pageData feeds the generated title and copyright page templates.
type pageData struct {
	Title       string
	Author      string
	Publisher   string
	Year        string
	ISBN        string
	Series      string
	SeriesIndex string
}

func newPageData(book *Book) pageData {
	year := strconv.Itoa(time.Now().Year())
	if len(book.Meta.Date) >= 4 {
		year = book.Meta.Date[:4]
	}
	var index string
	if book.Meta.SeriesIndex > 0 {
		index = strconv.FormatFloat(book.Meta.SeriesIndex, 'f', -1, 64)
	}
	return pageData{
		Title:       book.Title(),
		Author:      book.Meta.Author,
		Publisher:   book.Meta.Publisher,
		Year:        year,
		ISBN:        book.Meta.ISBN,
		Series:      book.Meta.Series,
		SeriesIndex: index,
	}
}

// writeFrontMatter renders every generated page the spine asks for. Chapters
// are written elsewhere, they are recognized here by their spine IDs.
func writeFrontMatter(zw *zip.Writer, book *Book, log *zap.Logger) error {
	data := newPageData(book)

	for _, item := range book.Spine {
		var body string
		var err error

		switch item.ID {
		case "title":
			body, err = renderPageTemplate("templates/title.xhtml.tmpl", inlineTitlePage, data, log)
		case "copyright":
			body, err = renderPageTemplate("templates/copyright.xhtml.tmpl", inlineCopyrightPage, data, log)
		case "dedication":
			body = textPage("dedication", book.Dedication)
		case "acknowledgements":
			body = textPage("acknowledgements", book.Acknowledgements)
		case "lof":
			body = entryListPage("List of Figures", book.Figures)
		case "lot":
			body = entryListPage("List of Tables", book.Tables)
		default:
			continue
		}
		if err != nil {
			return fmt.Errorf("unable to render %s page: %w", item.ID, err)
		}

		log.Debug("Writing generated page", zap.String("file", item.Filename))
		page := wrapXHTML(item.Title, body)
		if err := writeDataToZip(zw, path.Join(oebpsDir, item.Filename), []byte(page)); err != nil {
			return err
		}
	}
	return nil
}

func renderPageTemplate(name, fallback string, data pageData, log *zap.Logger) (string, error) {
	tmpl, err := htmltemplate.ParseFS(pageTemplates, name)
	if err != nil {
		log.Warn("Packaged page template unavailable, using built-in fallback",
			zap.String("template", name), zap.Error(err))
		tmpl, err = htmltemplate.New(path.Base(name)).Parse(fallback)
		if err != nil {
			return "", err
		}
	}
	var sb strings.Builder
	if err := tmpl.Execute(&sb, data); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// textPage turns plain text into a page, blank lines separate paragraphs.
func textPage(class, text string) string {
	var sb strings.Builder
	sb.WriteString(`<div class="` + class + `">` + "\n")
	for _, para := range strings.Split(text, "\n\n") {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}
		sb.WriteString("<p>" + html.EscapeString(para) + "</p>\n")
	}
	sb.WriteString("</div>\n")
	return sb.String()
}

func entryListPage(title string, entries []figures.Entry) string {
	var sb strings.Builder
	sb.WriteString("<h1>" + html.EscapeString(title) + "</h1>\n<ol class=\"entry-list\">\n")
	for _, e := range entries {
		sb.WriteString(fmt.Sprintf("<li><a href=%q>%s</a></li>\n", e.Href(), html.EscapeString(e.Caption)))
	}
	sb.WriteString("</ol>\n")
	return sb.String()
}

// wrapXHTML produces a complete XHTML document around already serialized body
// markup. Chapter content is trusted, it was produced by our own serializers.
func wrapXHTML(title, body string) string {
	var sb strings.Builder
	sb.WriteString(`<?xml version="1.0" encoding="UTF-8"?>` + "\n")
	sb.WriteString(`<html xmlns="http://www.w3.org/1999/xhtml" xmlns:epub="http://www.idpf.org/2007/ops">` + "\n")
	sb.WriteString("<head>\n")
	sb.WriteString("<title>" + html.EscapeString(title) + "</title>\n")
	sb.WriteString(`<link rel="stylesheet" type="text/css" href="stylesheet.css"/>` + "\n")
	sb.WriteString("</head>\n<body>\n")
	sb.WriteString(body)
	if !strings.HasSuffix(body, "\n") {
		sb.WriteString("\n")
	}
	sb.WriteString("</body>\n</html>\n")
	return sb.String()
}
