package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ternarybob/arbor"
	"golang.org/x/oauth2/google"

	"github.com/arvetta/berkas/internal/common"
	"github.com/arvetta/berkas/internal/models"
)

const (
	cloudEngineID   = "cloud"
	cloudAuthScope  = "https://www.googleapis.com/auth/cloud-platform"
	defaultEndpoint = "https://documentai.googleapis.com"
)

// CloudEngine runs OCR against a Document AI processor over REST. Requests
// authenticate with a service-account key file when configured; without one
// the default HTTP client is used, which suits emulator endpoints in tests.
type CloudEngine struct {
	config common.OCRConfig
	client *http.Client
	logger arbor.ILogger
}

// NewCloudEngine creates the cloud OCR engine
func NewCloudEngine(config common.OCRConfig, logger arbor.ILogger) (*CloudEngine, error) {
	timeout := common.Duration(config.Timeout, 10*time.Minute)

	client := &http.Client{Timeout: timeout}
	if config.CredentialsPath != "" {
		data, err := os.ReadFile(config.CredentialsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read OCR credentials: %w", err)
		}
		jwtConfig, err := google.JWTConfigFromJSON(data, cloudAuthScope)
		if err != nil {
			return nil, fmt.Errorf("failed to parse OCR credentials: %w", err)
		}
		client = jwtConfig.Client(context.Background())
		client.Timeout = timeout
	}

	return &CloudEngine{
		config: config,
		client: client,
		logger: logger,
	}, nil
}

func (e *CloudEngine) ID() string {
	return cloudEngineID
}

// processRequest is the Document AI process call body
type processRequest struct {
	RawDocument rawDocument `json:"rawDocument"`
}

type rawDocument struct {
	Content  string `json:"content"` // base64
	MimeType string `json:"mimeType"`
}

// processResponse mirrors the subset of the Document AI response we consume
type processResponse struct {
	Document struct {
		Text  string `json:"text"`
		Pages []struct {
			PageNumber int          `json:"pageNumber"`
			Layout     docAILayout  `json:"layout"`
			Blocks     []docAIBlock `json:"blocks"`
			Tables     []docAITable `json:"tables"`
		} `json:"pages"`
	} `json:"document"`
	Error *struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

type docAILayout struct {
	TextAnchor struct {
		TextSegments []struct {
			StartIndex string `json:"startIndex"`
			EndIndex   string `json:"endIndex"`
		} `json:"textSegments"`
	} `json:"textAnchor"`
	Confidence float64 `json:"confidence"`
}

type docAIBlock struct {
	Layout docAILayout `json:"layout"`
}

type docAITable struct {
	HeaderRows []docAITableRow `json:"headerRows"`
	BodyRows   []docAITableRow `json:"bodyRows"`
}

type docAITableRow struct {
	Cells []struct {
		Layout docAILayout `json:"layout"`
	} `json:"cells"`
}

// Process sends the file to the configured processor and normalizes the
// response into the uniform OCR result.
func (e *CloudEngine) Process(ctx context.Context, path string) (*models.OCRResult, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, models.NewProcessError(models.ErrKindResource, "ocr.cloud", err)
	}

	body, err := json.Marshal(processRequest{
		RawDocument: rawDocument{
			Content:  base64.StdEncoding.EncodeToString(content),
			MimeType: mimeTypeFor(path),
		},
	})
	if err != nil {
		return nil, models.NewProcessError(models.ErrKindInternal, "ocr.cloud", err)
	}

	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.processURL(), bytes.NewReader(body))
	if err != nil {
		return nil, models.NewProcessError(models.ErrKindInternal, "ocr.cloud", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, models.NewProcessError(models.ErrKindCancelled, "ocr.cloud", ctx.Err())
		}
		return nil, models.NewProcessError(models.ErrKindUpstreamTransient, "ocr.cloud", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, models.NewProcessError(models.ErrKindUpstreamTransient, "ocr.cloud", err)
	}

	if resp.StatusCode != http.StatusOK {
		kind := models.ErrKindUpstreamPermanent
		if resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500 {
			kind = models.ErrKindUpstreamTransient
		}
		return nil, models.NewProcessError(kind, "ocr.cloud",
			fmt.Errorf("processor returned %d: %s", resp.StatusCode, truncate(string(respBody), 300)))
	}

	var parsed processResponse
	if err := json.Unmarshal(respBody, &parsed); err != nil {
		return nil, models.NewProcessError(models.ErrKindExtractorParse, "ocr.cloud", err)
	}
	if parsed.Error != nil {
		return nil, models.NewProcessError(models.ErrKindUpstreamPermanent, "ocr.cloud",
			fmt.Errorf("processor error %d: %s", parsed.Error.Code, parsed.Error.Message))
	}

	result := e.toOCRResult(&parsed)
	result.ProcessingTimeMs = time.Since(start).Milliseconds()

	e.logger.Debug().
		Str("file", filepath.Base(path)).
		Int("pages", result.PageCount()).
		Int64("duration_ms", result.ProcessingTimeMs).
		Msg("Cloud OCR completed")

	return result, nil
}

func (e *CloudEngine) processURL() string {
	endpoint := e.config.Endpoint
	if endpoint == "" {
		endpoint = defaultEndpoint
	}
	return fmt.Sprintf("%s/v1/projects/%s/locations/us/processors/%s:process",
		strings.TrimRight(endpoint, "/"), e.config.Project, e.config.ProcessorID)
}

// toOCRResult resolves text anchors against the document text and flattens
// pages, blocks and tables into the uniform result.
func (e *CloudEngine) toOCRResult(resp *processResponse) *models.OCRResult {
	docText := resp.Document.Text
	result := &models.OCRResult{
		Text:     docText,
		EngineID: cloudEngineID,
	}

	var confidenceSum float64
	for _, page := range resp.Document.Pages {
		p := models.OCRPage{
			PageNumber: page.PageNumber,
			Text:       anchorText(docText, page.Layout),
		}
		confidenceSum += page.Layout.Confidence

		for _, block := range page.Blocks {
			p.Blocks = append(p.Blocks, models.OCRBlock{
				Text:       anchorText(docText, block.Layout),
				Confidence: block.Layout.Confidence,
			})
		}
		for _, table := range page.Tables {
			t := models.OCRTable{}
			for _, row := range append(table.HeaderRows, table.BodyRows...) {
				cells := make([]string, 0, len(row.Cells))
				for _, cell := range row.Cells {
					cells = append(cells, strings.TrimSpace(anchorText(docText, cell.Layout)))
				}
				t.Rows = append(t.Rows, cells)
			}
			p.Tables = append(p.Tables, t)
		}
		result.Pages = append(result.Pages, p)
	}

	if len(resp.Document.Pages) > 0 {
		result.Confidence = confidenceSum / float64(len(resp.Document.Pages))
	}
	return result
}

// anchorText extracts the text segments a layout anchor points at. Document
// AI encodes segment offsets as decimal strings.
func anchorText(docText string, layout docAILayout) string {
	var b strings.Builder
	for _, seg := range layout.TextAnchor.TextSegments {
		start := parseOffset(seg.StartIndex)
		end := parseOffset(seg.EndIndex)
		if start < 0 || end > len(docText) || start >= end {
			continue
		}
		b.WriteString(docText[start:end])
	}
	return b.String()
}

func parseOffset(s string) int {
	if s == "" {
		return 0
	}
	n := 0
	for _, r := range s {
		if r < '0' || r > '9' {
			return -1
		}
		n = n*10 + int(r-'0')
	}
	return n
}

func mimeTypeFor(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".png":
		return "image/png"
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".tif", ".tiff":
		return "image/tiff"
	default:
		return "application/pdf"
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
