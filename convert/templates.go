package convert

import (
	"bytes"
	"fmt"
	"path/filepath"
	"strings"
	"text/template"

	sprig "github.com/go-task/slim-sprig/v3"

	"d2e/config"
)

// Values holds the variables available to output-name template expansion.
type Values struct {
	Context     string
	Title       string
	Author      string
	Series      string
	SeriesIndex float64
	Language    string
	Date        string
	SourceFile  string
}

func expandTemplate(meta config.MetadataConfig, name config.TemplateFieldName, field, srcName string) (string, error) {
	funcMap := sprig.FuncMap()

	tmpl, err := template.New(string(name)).Funcs(funcMap).Parse(field)
	if err != nil {
		return "", fmt.Errorf("unable to parse template field %s: %w", name, err)
	}

	values := Values{
		Context:     string(name),
		Title:       meta.Title,
		Author:      meta.Author,
		Series:      meta.Series,
		SeriesIndex: meta.SeriesIndex,
		Language:    meta.Language,
		Date:        meta.Date,
		SourceFile:  strings.TrimSuffix(filepath.Base(srcName), filepath.Ext(srcName)),
	}

	buf := new(bytes.Buffer)
	if err := tmpl.Execute(buf, values); err != nil {
		return "", err
	}
	return buf.String(), nil
}
