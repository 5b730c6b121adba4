package config

import (
	"bytes"
	_ "embed"
	"fmt"
	"os"

	yaml "gopkg.in/yaml.v3"

	"github.com/rupor-github/gencfg"
)

//go:embed config.yaml.tmpl
var ConfigTmpl []byte

type (
	TemplateFieldName string

	CoverConfig struct {
		ImagePath string          `yaml:"image_path" sanitize:"assure_file_access"`
		Resize    ImageResizeMode `yaml:"resize" validate:"gte=0"`
		Width     int             `yaml:"width" validate:"min=600"`
		Height    int             `yaml:"height" validate:"min=800"`
	}

	ImagesConfig struct {
		RemovePNGTransparency bool        `yaml:"remove_png_transparency"`
		ScaleFactor           float64     `yaml:"scale_factor" validate:"gte=0.0"`
		JPEGQuality           int         `yaml:"jpeg_quality_level" validate:"min=40,max=100"`
		RasterizeSVG          bool        `yaml:"rasterize_svg"`
		Cover                 CoverConfig `yaml:"cover"`
	}

	SplitConfig struct {
		Mode         SplitMode `yaml:"mode" validate:"gte=0"`
		HeadingLevel int       `yaml:"heading_level" validate:"min=1,max=6"`
		TOCDepth     int       `yaml:"toc_depth" validate:"min=1,max=6"`
	}

	ChaptersConfig struct {
		StartMode ChapterStartMode `yaml:"start_mode" validate:"gte=0"`
		// Starts are matched against chunk text in order, first as plain
		// case-insensitive substrings and, failing that, as regular expressions.
		Starts []string `yaml:"starts" validate:"dive,required"`
	}

	FiguresConfig struct {
		FigureLabel   string `yaml:"figure_label" validate:"required"`
		TableLabel    string `yaml:"table_label" validate:"required"`
		InferCaptions bool   `yaml:"infer_captions"`
	}

	PagesConfig struct {
		TitlePage            bool   `yaml:"title"`
		CopyrightPage        bool   `yaml:"copyright"`
		DedicationPath       string `yaml:"dedication_path" sanitize:"assure_file_access"`
		AcknowledgementsPath string `yaml:"acknowledgements_path" sanitize:"assure_file_access"`
		ListOfFigures        bool   `yaml:"list_of_figures"`
		ListOfTables         bool   `yaml:"list_of_tables"`
	}

	MetadataConfig struct {
		Title         string   `yaml:"title"`
		TitleSort     string   `yaml:"title_sort"`
		Author        string   `yaml:"author"`
		AuthorSort    string   `yaml:"author_sort"`
		Language      string   `yaml:"language" validate:"required,bcp47_language_tag"`
		ISBN          string   `yaml:"isbn"`
		UUID          string   `yaml:"uuid" validate:"omitempty,uuid"`
		Publisher     string   `yaml:"publisher"`
		Date          string   `yaml:"date" validate:"omitempty,datetime=2006-01-02"`
		Description   string   `yaml:"description"`
		Subjects      []string `yaml:"subjects" validate:"dive,required"`
		Keywords      []string `yaml:"keywords" validate:"dive,required"`
		Series        string   `yaml:"series"`
		SeriesIndex   float64  `yaml:"series_index" validate:"gte=0"`
		Transliterate bool     `yaml:"transliterate"`
	}

	DocumentConfig struct {
		FixZip                bool           `yaml:"fix_zip"`
		Theme                 string         `yaml:"theme" validate:"required,oneof=serif sans printlike"`
		StylesheetPath        string         `yaml:"stylesheet_path" sanitize:"assure_file_access"`
		StyleMapPath          string         `yaml:"style_map_path" sanitize:"assure_file_access"`
		OutputNameTemplate    string         `yaml:"output_name_template"`
		FileNameTransliterate bool           `yaml:"file_name_transliterate"`
		KeepComments          bool           `yaml:"keep_comments"`
		TextEncoding          string         `yaml:"text_encoding"`
		Split                 SplitConfig    `yaml:"split"`
		Chapters              ChaptersConfig `yaml:"chapters"`
		Images                ImagesConfig   `yaml:"images"`
		Figures               FiguresConfig  `yaml:"figures"`
		Pages                 PagesConfig    `yaml:"pages"`
		Metadata              MetadataConfig `yaml:"metadata"`
	}

	Config struct {
		Version   int            `yaml:"version" validate:"eq=1"`
		Document  DocumentConfig `yaml:"document"`
		Logging   LoggingConfig  `yaml:"logging"`
		Reporting ReporterConfig `yaml:"reporting"`
	}
)

const (
	// NOTE: must match yaml field name above, alternative is to use struct
	// field name and reflection which I want to avoid for now
	OutputNameTemplateFieldName TemplateFieldName = "output_name_template"
	FigureLabelFieldName        TemplateFieldName = "figure_label"
	TableLabelFieldName         TemplateFieldName = "table_label"
)

var requiredOptions = append([]func(*gencfg.ProcessingOptions){},
	gencfg.WithDoNotExpandField(string(OutputNameTemplateFieldName)),
	gencfg.WithDoNotExpandField(string(FigureLabelFieldName)),
	gencfg.WithDoNotExpandField(string(TableLabelFieldName)),
)

func unmarshalConfig(data []byte, cfg *Config, process bool) (*Config, error) {
	// We want to use only fields we defined so we cannot use yaml.Unmarshal
	// directly here
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("failed to decode configuration data: %w", err)
	}
	if process {
		// sanitize and validate what has been loaded
		if err := gencfg.Sanitize(cfg); err != nil {
			return nil, fmt.Errorf("failed to sanitize configuration: %w", err)
		}
		if err := gencfg.Validate(cfg); err != nil {
			return nil, fmt.Errorf("failed to validate configuration: %w", err)
		}
	}
	return cfg, nil
}

// LoadConfiguration reads the configuration from the file at the given path,
// superimposes its values on top of expanded configuration template to provide
// sane defaults and performs validation.
func LoadConfiguration(path string, options ...func(*gencfg.ProcessingOptions)) (*Config, error) {
	haveFile := len(path) > 0

	data, err := gencfg.Process(ConfigTmpl, append(requiredOptions, options...)...)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	cfg, err := unmarshalConfig(data, &Config{}, !haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration template: %w", err)
	}
	if !haveFile {
		return cfg, nil
	}

	// overwrite cfg values with values from the file
	data, err = os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	cfg, err = unmarshalConfig(data, cfg, haveFile)
	if err != nil {
		return nil, fmt.Errorf("failed to process configuration file: %w", err)
	}
	return cfg, nil
}

// Prepare generates configuration file from template and returns it as a byte
// slice.
func Prepare() ([]byte, error) {
	return gencfg.Process(ConfigTmpl, requiredOptions...)
}

func Dump(cfg *Config) ([]byte, error) {
	data, err := yaml.Marshal(*cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config to yaml: %w", err)
	}
	return data, nil
}
