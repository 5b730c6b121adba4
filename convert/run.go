package convert

import (
	"archive/zip"
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"runtime/debug"
	"sort"
	"strings"
	"time"

	"github.com/maruel/natural"
	cli "github.com/urfave/cli/v3"
	"go.uber.org/zap"
	"golang.org/x/text/encoding/ianaindex"

	"d2e/archive"
	"d2e/convert/epub"
	"d2e/state"
)

func Run(ctx context.Context, cmd *cli.Command) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	env := state.EnvFromContext(ctx)
	log := env.Log.Named("convert")

	src := cmd.Args().Get(0)
	if len(src) == 0 {
		return errors.New("no input source has been specified")
	}
	src, err = filepath.Abs(src)
	if err != nil {
		return err
	}

	dst := cmd.Args().Get(1)
	if len(dst) == 0 {
		if dst, err = os.Getwd(); err != nil {
			return fmt.Errorf("unable to get working directory: %w", err)
		}
	}
	if dst, err = filepath.Abs(dst); err != nil {
		return err
	}
	if cmd.Args().Len() > 2 {
		log.Warn("Malformed command line, too many destinations", zap.Strings("ignoring", cmd.Args().Slice()[2:]))
	}

	env.NoDirs, env.Overwrite = cmd.Bool("nodirs"), cmd.Bool("overwrite")

	// Since zip "standard" does not define file name encoding we may need to
	// force archaic code page for old archives
	cp := cmd.String("force-zip-cp")
	if len(cp) > 0 {
		env.CodePage, err = ianaindex.IANA.Encoding(cp)
		if err != nil {
			log.Warn("Unknown character set specification. Ignoring...", zap.String("charset", cp), zap.Error(err))
			env.CodePage = nil
		} else {
			n, _ := ianaindex.IANA.Name(env.CodePage)
			log.Debug("Forcefully converting all non UTF-8 file names in archives", zap.String("charset", n))
		}
	}

	log.Info("Processing starting", zap.String("source", src), zap.String("destination", dst))
	defer func(start time.Time) {
		log.Info("Processing completed", zap.Duration("elapsed", time.Since(start)))
	}(time.Now())

	return process(ctx, src, dst, log)
}

// process determines the input type (directory, archive, or single file) and
// processes accordingly.
func process(ctx context.Context, src, dst string, log *zap.Logger) error {
	fi, err := os.Stat(src)
	if err != nil {
		return fmt.Errorf("input source was not found (%s): %w", src, err)
	}

	if fi.Mode().IsDir() {
		return processDir(ctx, src, dst, log)
	}
	if !fi.Mode().IsRegular() {
		return fmt.Errorf("unexpected path mode for (%s)", src)
	}

	if isArchiveFile(src) {
		return processArchive(ctx, src, "", dst, log)
	}

	if !isSupportedSource(src) {
		return fmt.Errorf("input was not recognized as a supported document (%s)", src)
	}
	return processDocument(ctx, src, filepath.Base(src), dst, log)
}

// processDir walks the directory tree finding supported documents and
// processes them in natural order. One bad document never stops the batch.
func processDir(ctx context.Context, dir, dst string, log *zap.Logger) error {
	var sources []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if cerr := ctx.Err(); cerr != nil {
			return cerr
		}
		if err != nil {
			log.Warn("Skipping path", zap.String("path", path), zap.Error(err))
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}
		if isArchiveFile(path) || isSupportedSource(path) {
			sources = append(sources, path)
		}
		return nil
	})
	if err != nil {
		return err
	}
	if len(sources) == 0 {
		log.Debug("Nothing to process", zap.String("dir", dir))
		return nil
	}

	sort.Slice(sources, func(i, j int) bool { return natural.Less(sources[i], sources[j]) })

	for _, path := range sources {
		if err := ctx.Err(); err != nil {
			return err
		}
		rel := strings.TrimPrefix(strings.TrimPrefix(path, dir), string(filepath.Separator))
		if isArchiveFile(path) {
			if err := processArchive(ctx, path, filepath.Dir(rel), dst, log); err != nil {
				log.Error("Unable to process archive", zap.String("file", path), zap.Error(err))
			}
			continue
		}
		if err := processDocument(ctx, path, rel, dst, log); err != nil {
			log.Error("Unable to process file", zap.String("file", path), zap.Error(err))
		}
	}
	return nil
}

// processArchive extracts supported documents from a zip archive into scratch
// files and processes each. "pathOut" keeps the archive's position relative to
// the walked directory in the output tree.
func processArchive(ctx context.Context, path, pathOut, dst string, log *zap.Logger) error {
	env := state.EnvFromContext(ctx)
	count := 0

	err := archive.Walk(path, "", func(arc string, f *zip.File) error {
		if err := ctx.Err(); err != nil {
			return err
		}

		name := f.FileHeader.Name
		if cp := env.CodePage; cp != nil && f.FileHeader.NonUTF8 {
			// forcing zip file name encoding
			if n, err := cp.NewDecoder().String(name); err == nil {
				name = n
			} else {
				cn, _ := ianaindex.IANA.Name(cp)
				log.Warn("Unable to convert archive name from specified encoding",
					zap.String("charset", cn), zap.String("path", name), zap.Error(err))
			}
		}
		if !isSupportedSource(name) {
			log.Debug("Skipping file, not recognized as a document", zap.String("archive", arc), zap.String("file", name))
			return nil
		}

		count++

		scratch, err := extractArchiveEntry(f, name)
		if err != nil {
			log.Error("Unable to extract file from archive",
				zap.String("archive", arc), zap.String("file", name), zap.Error(err))
			return nil
		}
		defer os.Remove(scratch)

		if err := processDocument(ctx, scratch, filepath.Join(pathOut, name), dst, log); err != nil {
			log.Error("Unable to process file in archive",
				zap.String("archive", arc), zap.String("file", name), zap.Error(err))
		}
		return nil
	})
	if err == nil && count == 0 {
		log.Debug("Nothing to process", zap.String("archive", path))
	}
	return err
}

// extractArchiveEntry writes an archive entry to a scratch file keeping its
// extension, the loaders dispatch on it.
func extractArchiveEntry(f *zip.File, name string) (string, error) {
	r, err := f.Open()
	if err != nil {
		return "", err
	}
	defer r.Close()

	out, err := os.CreateTemp("", "d2e-*"+filepath.Ext(name))
	if err != nil {
		return "", err
	}
	defer out.Close()

	if _, err := io.Copy(out, r); err != nil {
		os.Remove(out.Name())
		return "", err
	}
	return out.Name(), nil
}

// processDocument converts a single document. "srcName" is the source path
// relative to the walked directory or archive (always including the file
// name), "dst" is the destination directory.
func processDocument(ctx context.Context, path, srcName, dst string, log *zap.Logger) (rerr error) {
	env := state.EnvFromContext(ctx)

	var outputName string

	log.Info("Conversion starting", zap.String("from", srcName))
	defer func(start time.Time) {
		// NOTE: some of golang graphic processing libraries are not mature
		// enough, if multiple documents are being processed we do not want to
		// stop.
		if r := recover(); r != nil {
			log.Error("Conversion ended with panic",
				zap.Any("panic", r), zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName), zap.ByteString("stack", debug.Stack()))
			rerr = fmt.Errorf("conversion panic: %v", r)
		} else {
			log.Info("Conversion completed", zap.Duration("elapsed", time.Since(start)), zap.String("to", outputName))
		}
	}(time.Now())

	scratch, err := os.MkdirTemp("", "d2e-work-")
	if err != nil {
		return fmt.Errorf("unable to create scratch directory: %w", err)
	}
	defer os.RemoveAll(scratch)

	src, err := loadSource(path, scratch, env, log)
	if err != nil {
		return fmt.Errorf("unable to parse source (%s): %w", srcName, err)
	}

	book, err := buildBook(src, srcName, env, log)
	if err != nil {
		return fmt.Errorf("unable to build document (%s): %w", srcName, err)
	}

	outputName = buildOutputPath(book.Meta, srcName, dst, env)

	if _, err := os.Stat(outputName); err == nil {
		if !env.Overwrite {
			return fmt.Errorf("output file already exists: %s", outputName)
		}
		log.Warn("Overwriting existing file", zap.String("file", outputName))
		if err = os.Remove(outputName); err != nil {
			return err
		}
	} else if !os.IsNotExist(err) {
		return err
	} else if err := os.MkdirAll(filepath.Dir(outputName), 0755); err != nil {
		return fmt.Errorf("unable to create output directory: %w", err)
	}

	if err := epub.Generate(book, outputName, scratch, &env.Cfg.Document, log); err != nil {
		return fmt.Errorf("unable to generate output: %w", err)
	}

	// Store conversion result for debugging
	if env.Rpt != nil {
		env.Rpt.Store("result-"+filepath.Base(outputName), outputName)
	}

	return nil
}
