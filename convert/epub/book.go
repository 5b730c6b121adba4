// Package epub assembles the output container: package document, navigation,
// generated pages, chapters, images and the stylesheet.
package epub

import (
	"path/filepath"
	"strings"

	"d2e/config"
	"d2e/figures"
	"d2e/nav"
)

// ImageFile is one resource stored under the images directory.
type ImageFile struct {
	Name string
	Data []byte
}

// MediaType derives the manifest media type from the file extension.
func (f ImageFile) MediaType() string {
	switch strings.ToLower(filepath.Ext(f.Name)) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".svg":
		return "image/svg+xml"
	case ".webp":
		return "image/webp"
	default:
		return "application/octet-stream"
	}
}

// Book is everything the conversion pipeline produced for one document,
// ready to be laid out in the container.
type Book struct {
	SrcName  string
	Meta     config.MetadataConfig
	Front    nav.FrontMatter
	Spine    []nav.SpineItem
	TOC      []nav.TOCEntry
	PageList []nav.PageTarget
	Chapters []nav.Chapter
	Figures  []figures.Entry
	Tables   []figures.Entry
	Images   []ImageFile
	Cover    *ImageFile
	CoverDim [2]int
	CSS      string

	// optional plain-text page sources
	Dedication       string
	Acknowledgements string
}

// Title returns the book title, falling back to the source file name.
func (b *Book) Title() string {
	if b.Meta.Title != "" {
		return b.Meta.Title
	}
	return strings.TrimSuffix(filepath.Base(b.SrcName), filepath.Ext(b.SrcName))
}
