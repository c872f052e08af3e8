package fileprocessor

import (
	"archive/zip"
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"textcorrector/pkg/correction"
	"textcorrector/pkg/logger"
	"textcorrector/pkg/officecrypto"
	"textcorrector/pkg/textextractor"
)

// ErrEncrypted is returned when a password-protected file is passed without
// being decrypted first.
var ErrEncrypted = errors.New("document is password protected")

// Corrector corrects a batch of paragraph texts from one document part.
type Corrector interface {
	CorrectTexts(ctx context.Context, part string, texts []string) ([]correction.Result, error)
}

// Change records one corrected paragraph.
type Change struct {
	Part      string
	Paragraph int
	InTable   bool
	Original  string
	Corrected string
	Ranges    []correction.Range
}

type FileProcessor struct {
	extractor *textextractor.Extractor
	logger    *logger.Logger
}

func NewFileProcessor() *FileProcessor {
	return NewFileProcessorWithLogger(logger.NewLogger(100))
}

// NewFileProcessorWithLogger creates a new FileProcessor instance with a given logger.
func NewFileProcessorWithLogger(log *logger.Logger) *FileProcessor {
	return &FileProcessor{
		extractor: textextractor.NewExtractor(textextractor.ExtractorConfig{}),
		logger:    log,
	}
}

// SetExtractorConfig updates the configuration for the text extractor.
func (fp *FileProcessor) SetExtractorConfig(config textextractor.ExtractorConfig) {
	fp.extractor = textextractor.NewExtractor(config)
}

// ReadDocument reads a docx file. Encrypted containers yield ErrEncrypted
// together with the raw bytes so the caller can decrypt them.
func ReadDocument(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read source file: %w", err)
	}
	if officecrypto.IsCFB(data) {
		return data, ErrEncrypted
	}
	return data, nil
}

// ProcessFile corrects the docx at inputPath and writes the result to outputPath.
func (fp *FileProcessor) ProcessFile(ctx context.Context, inputPath, outputPath string, corr Corrector) ([]Change, error) {
	fp.logger.Infof("Processing file: %s", inputPath)
	data, err := ReadDocument(inputPath)
	if err != nil {
		fp.logger.Errorf("Failed to open source file %s: %v", inputPath, err)
		return nil, err
	}
	return fp.ProcessBytes(ctx, data, outputPath, corr)
}

// ProcessBytes corrects an already loaded (and decrypted) docx package and
// writes the result to outputPath. A partially written output is removed on failure.
func (fp *FileProcessor) ProcessBytes(ctx context.Context, data []byte, outputPath string, corr Corrector) ([]Change, error) {
	if err := os.MkdirAll(filepath.Dir(outputPath), 0755); err != nil {
		fp.logger.Errorf("Failed to create output directory %s: %v", filepath.Dir(outputPath), err)
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}

	var buf bytes.Buffer
	changes, err := fp.Process(ctx, data, &buf, corr)
	if err != nil {
		return nil, err
	}

	if err := os.WriteFile(outputPath, buf.Bytes(), 0644); err != nil {
		fp.logger.Errorf("Failed to write output file %s: %v", outputPath, err)
		_ = os.Remove(outputPath)
		return nil, fmt.Errorf("failed to write output file: %w", err)
	}
	fp.logger.Infof("Wrote %s (%d paragraphs changed)", outputPath, len(changes))
	return changes, nil
}

// Process reads a docx package from data, corrects its document parts and
// writes the new package to w. Entries that carry no body text are copied as is.
func (fp *FileProcessor) Process(ctx context.Context, data []byte, w io.Writer, corr Corrector) ([]Change, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, fmt.Errorf("failed to open docx package: %w", err)
	}

	zw := zip.NewWriter(w)
	var changes []Change
	for _, f := range r.File {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		fp.logger.Tracef("Processing internal file: %s", f.Name)
		partChanges, err := fp.processZipFile(ctx, f, zw, corr)
		if err != nil {
			fp.logger.Errorf("Failed to process internal file %s: %v", f.Name, err)
			return nil, fmt.Errorf("failed to process file %s: %w", f.Name, err)
		}
		changes = append(changes, partChanges...)
	}
	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize docx package: %w", err)
	}
	return changes, nil
}

func (fp *FileProcessor) processZipFile(ctx context.Context, f *zip.File, w *zip.Writer, corr Corrector) ([]Change, error) {
	header := &zip.FileHeader{
		Name:     f.Name,
		Method:   f.Method,
		Modified: f.Modified,
	}

	if !textextractor.IsDocumentPart(f.Name) {
		// 非正文条目直接复制压缩数据
		return nil, w.Copy(f)
	}

	content, err := readZipFile(f)
	if err != nil {
		return nil, err
	}

	paragraphs := fp.extractor.Extract(content)
	texts := make([]string, len(paragraphs))
	for i, p := range paragraphs {
		texts[i] = p.Text
	}
	results, err := corr.CorrectTexts(ctx, f.Name, texts)
	if err != nil {
		return nil, fmt.Errorf("correction failed for %s: %w", f.Name, err)
	}
	if len(results) != len(paragraphs) {
		return nil, fmt.Errorf("corrector returned %d results for %d paragraphs", len(results), len(paragraphs))
	}

	corrected := make([]string, len(results))
	var changes []Change
	for i, res := range results {
		corrected[i] = res.Text
		if !res.Changed() {
			continue
		}
		changes = append(changes, Change{
			Part:      f.Name,
			Paragraph: paragraphs[i].Index,
			InTable:   paragraphs[i].InTable,
			Original:  paragraphs[i].Text,
			Corrected: res.Text,
			Ranges:    res.Ranges,
		})
	}

	newContent, err := fp.extractor.Apply(content, paragraphs, corrected)
	if err != nil {
		return nil, fmt.Errorf("replacement failed for %s: %w", f.Name, err)
	}

	zf, err := w.CreateHeader(header)
	if err != nil {
		return nil, fmt.Errorf("failed to create zip entry for %s: %w", f.Name, err)
	}
	if _, err := io.WriteString(zf, newContent); err != nil {
		return nil, fmt.Errorf("failed to write content for %s to zip: %w", f.Name, err)
	}
	fp.logger.Debugf("%s: %d of %d paragraphs changed", f.Name, len(changes), len(paragraphs))
	return changes, nil
}

func readZipFile(f *zip.File) (string, error) {
	rc, err := f.Open()
	if err != nil {
		return "", fmt.Errorf("failed to open file in zip %s: %w", f.Name, err)
	}
	defer rc.Close()
	data, err := io.ReadAll(rc)
	if err != nil {
		return "", fmt.Errorf("failed to read content of %s: %w", f.Name, err)
	}
	return string(data), nil
}

// ExtractText returns the plain text of every document part in data, with
// word/document.xml first and the other parts in name order.
func ExtractText(data []byte) (string, error) {
	r, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("failed to open docx package: %w", err)
	}

	var parts []*zip.File
	for _, f := range r.File {
		if textextractor.IsDocumentPart(f.Name) {
			parts = append(parts, f)
		}
	}
	sort.SliceStable(parts, func(i, j int) bool {
		if (parts[i].Name == "word/document.xml") != (parts[j].Name == "word/document.xml") {
			return parts[i].Name == "word/document.xml"
		}
		return parts[i].Name < parts[j].Name
	})

	var out bytes.Buffer
	for _, f := range parts {
		content, err := readZipFile(f)
		if err != nil {
			return "", err
		}
		text := textextractor.PlainText(content)
		if text == "" {
			continue
		}
		if out.Len() > 0 {
			out.WriteByte('\n')
		}
		out.WriteString(text)
	}
	return out.String(), nil
}
