// -----------------------------------------------------------------------
// PDF Chunker Service - Split large PDFs into overlapping page windows
// Uses pdfcpu for Go-native PDF processing
// -----------------------------------------------------------------------

package pdf

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/pdfcpu/pdfcpu/pkg/api"
	"github.com/pdfcpu/pdfcpu/pkg/pdfcpu/model"
	"github.com/ternarybob/arbor"

	"github.com/arvetta/berkas/internal/common"
	"github.com/arvetta/berkas/internal/models"
)

// Chunk is one extracted page window of a source PDF
type Chunk struct {
	Index     int    // 0-based position in the chunk sequence
	Path      string // Chunk PDF on disk
	StartPage int    // 1-based, inclusive
	EndPage   int    // 1-based, inclusive
}

// Chunker splits oversized PDFs into overlapping page windows so each window
// fits the OCR and extraction context limits. The last page of a window is
// repeated as the first page of the next one, so rows that straddle a page
// boundary are seen whole by at least one window.
type Chunker struct {
	config  common.ChunkerConfig
	logger  arbor.ILogger
	tempDir string
}

// NewChunker creates a new PDF chunker service
func NewChunker(config common.ChunkerConfig, logger arbor.ILogger) *Chunker {
	tempDir := config.TempDir
	if tempDir == "" {
		tempDir = filepath.Join(os.TempDir(), "berkas-chunks")
	}
	os.MkdirAll(tempDir, 0755)

	return &Chunker{
		config:  config,
		logger:  logger,
		tempDir: tempDir,
	}
}

// CountPages returns the page count of a PDF without loading page content
func (c *Chunker) CountPages(path string) (int, error) {
	count, err := api.PageCountFile(path)
	if err != nil {
		return 0, fmt.Errorf("failed to count pages in %s: %w", filepath.Base(path), err)
	}
	return count, nil
}

// ShouldChunk reports whether a document of the given page count goes through
// the chunked path
func (c *Chunker) ShouldChunk(pageCount int) bool {
	threshold := c.config.PageThreshold
	if threshold <= 0 {
		threshold = 10
	}
	return pageCount > threshold
}

// Windows computes the 1-based page windows for a document of pageCount pages
func (c *Chunker) Windows(pageCount int) [][2]int {
	size := c.config.ChunkSize
	if size <= 0 {
		size = 8
	}
	overlap := c.config.ChunkOverlap
	if overlap < 0 || overlap >= size {
		overlap = 1
	}

	var windows [][2]int
	start := 1
	for start <= pageCount {
		end := start + size - 1
		if end > pageCount {
			end = pageCount
		}
		windows = append(windows, [2]int{start, end})
		if end == pageCount {
			break
		}
		start = end - overlap + 1
	}
	return windows
}

// Chunk splits the PDF at path into overlapping page-window PDFs under a
// per-file scratch directory. Callers own Cleanup.
func (c *Chunker) Chunk(path, fileID string) ([]Chunk, error) {
	pageCount, err := c.CountPages(path)
	if err != nil {
		return nil, err
	}

	outDir := c.chunkDir(fileID)
	if err := os.MkdirAll(outDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create chunk directory: %w", err)
	}

	conf := model.NewDefaultConfiguration()
	windows := c.Windows(pageCount)
	chunks := make([]Chunk, 0, len(windows))

	for i, w := range windows {
		outFile := filepath.Join(outDir, fmt.Sprintf("chunk_%03d.pdf", i))
		selection := []string{fmt.Sprintf("%d-%d", w[0], w[1])}
		if err := api.TrimFile(path, outFile, selection, conf); err != nil {
			c.Cleanup(fileID)
			return nil, fmt.Errorf("failed to extract pages %d-%d: %w", w[0], w[1], err)
		}
		chunks = append(chunks, Chunk{
			Index:     i,
			Path:      outFile,
			StartPage: w[0],
			EndPage:   w[1],
		})
	}

	c.logger.Debug().
		Str("file_id", fileID).
		Int("page_count", pageCount).
		Int("chunk_count", len(chunks)).
		Msg("Split PDF into chunks")

	return chunks, nil
}

// MergeResults combines per-chunk OCR results into one document-level result.
// Chunk pages are renumbered to absolute document pages; where the overlap
// page was processed twice, the first occurrence wins.
func (c *Chunker) MergeResults(chunks []Chunk, results []*models.OCRResult) (*models.OCRResult, error) {
	if len(chunks) != len(results) {
		return nil, fmt.Errorf("chunk/result count mismatch: %d chunks, %d results", len(chunks), len(results))
	}

	merged := &models.OCRResult{}
	seen := make(map[int]bool)
	var confidenceSum float64
	var confidenceCount int

	for i, result := range results {
		if result == nil {
			return nil, fmt.Errorf("missing OCR result for chunk %d", i)
		}
		if result.EngineID != "" {
			merged.EngineID = result.EngineID
		}
		merged.ProcessingTimeMs += result.ProcessingTimeMs
		if result.Confidence > 0 {
			confidenceSum += result.Confidence
			confidenceCount++
		}

		for j, page := range result.Pages {
			absolute := chunks[i].StartPage + j
			if seen[absolute] {
				continue
			}
			seen[absolute] = true
			page.PageNumber = absolute
			merged.Pages = append(merged.Pages, page)
		}
	}

	sort.Slice(merged.Pages, func(a, b int) bool {
		return merged.Pages[a].PageNumber < merged.Pages[b].PageNumber
	})

	var text strings.Builder
	for i, page := range merged.Pages {
		if i > 0 {
			text.WriteString("\n\n")
		}
		text.WriteString(page.Text)
	}
	merged.Text = text.String()

	if confidenceCount > 0 {
		merged.Confidence = confidenceSum / float64(confidenceCount)
	}
	return merged, nil
}

// Cleanup removes the scratch directory for a file. Safe to call more than
// once and for files that were never chunked. Chunk files for a large batch
// can hold tens of megabytes, so nudge the runtime after dropping them.
func (c *Chunker) Cleanup(fileID string) {
	dir := c.chunkDir(fileID)
	if err := os.RemoveAll(dir); err != nil {
		c.logger.Warn().Err(err).Str("file_id", fileID).Msg("Failed to remove chunk directory")
		return
	}
	runtime.GC()
}

func (c *Chunker) chunkDir(fileID string) string {
	return filepath.Join(c.tempDir, fileID)
}
