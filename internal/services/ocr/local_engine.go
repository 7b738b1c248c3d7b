package ocr

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/models"
)

const localEngineID = "local"

// localConfidence is reported for pdfcpu content extraction. Embedded text
// layers are exact when present, but scanned documents yield nothing, so the
// score stays below the cloud engine's.
const localConfidence = 0.60

// LocalEngine extracts the embedded text layer of a PDF with pdfcpu. It
// handles digitally produced documents without any network dependency and is
// the fallback when the cloud processor is unreachable.
type LocalEngine struct {
	logger  arbor.ILogger
	tempDir string
}

// NewLocalEngine creates the local text-layer engine
func NewLocalEngine(logger arbor.ILogger) *LocalEngine {
	tempDir := filepath.Join(os.TempDir(), "berkas-ocr")
	os.MkdirAll(tempDir, 0755)
	return &LocalEngine{logger: logger, tempDir: tempDir}
}

func (e *LocalEngine) ID() string {
	return localEngineID
}

// Process extracts per-page text content. Images are not supported locally.
func (e *LocalEngine) Process(ctx context.Context, path string) (*models.OCRResult, error) {
	if mimeTypeFor(path) != "application/pdf" {
		return nil, models.NewProcessError(models.ErrKindUnsupportedType, "ocr.local",
			fmt.Errorf("local engine cannot process %s", filepath.Ext(path)))
	}

	start := time.Now()
	pageCount, err := api.PageCountFile(path)
	if err != nil {
		return nil, models.NewProcessError(models.ErrKindExtractorParse, "ocr.local",
			fmt.Errorf("failed to read PDF: %w", err))
	}

	outDir := filepath.Join(e.tempDir, fmt.Sprintf("extract_%d_%d", os.Getpid(), start.UnixNano()))
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, models.NewProcessError(models.ErrKindResource, "ocr.local", err)
	}
	defer os.RemoveAll(outDir)

	conf := model.NewDefaultConfiguration()
	if err := api.ExtractContentFile(path, outDir, nil, conf); err != nil {
		return nil, models.NewProcessError(models.ErrKindExtractorParse, "ocr.local",
			fmt.Errorf("failed to extract PDF content: %w", err))
	}

	pageTexts := make(map[int]string)
	files, _ := os.ReadDir(outDir)
	for _, file := range files {
		if file.IsDir() {
			continue
		}
		content, err := os.ReadFile(filepath.Join(outDir, file.Name()))
		if err != nil {
			continue
		}
		var pageNum int
		if _, err := fmt.Sscanf(file.Name(), "Content_page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(content)
		} else if _, err := fmt.Sscanf(file.Name(), "page_%d", &pageNum); err == nil {
			pageTexts[pageNum] = string(content)
		}
	}

	result := &models.OCRResult{
		EngineID:   localEngineID,
		Confidence: localConfidence,
	}
	var text strings.Builder
	for pageNum := 1; pageNum <= pageCount; pageNum++ {
		pageText := pageTexts[pageNum]
		result.Pages = append(result.Pages, models.OCRPage{
			PageNumber: pageNum,
			Text:       pageText,
		})
		if pageNum > 1 {
			text.WriteString("\n\n")
		}
		text.WriteString(pageText)
	}
	result.Text = text.String()
	result.ProcessingTimeMs = time.Since(start).Milliseconds()

	if strings.TrimSpace(result.Text) == "" {
		// Scanned document without a text layer
		return nil, models.NewProcessError(models.ErrKindExtractorParse, "ocr.local",
			fmt.Errorf("no text layer in %s", filepath.Base(path)))
	}

	e.logger.Debug().
		Str("file", filepath.Base(path)).
		Int("pages", pageCount).
		Int64("duration_ms", result.ProcessingTimeMs).
		Msg("Local text extraction completed")

	return result, nil
}
