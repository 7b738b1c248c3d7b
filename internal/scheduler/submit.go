package scheduler

import (
	"archive/zip"
	"bytes"
	"fmt"
	"io"
	"path"
	"strings"

	"github.com/arvetta/berkas/internal/models"
)

// FileUpload is one file in a submission
type FileUpload struct {
	Filename string              `validate:"required"`
	DocType  models.DocumentType `validate:"required"`
	Data     []byte              `validate:"required"`
}

// SubmitRequest describes a batch submission: either direct file uploads or
// a single zip archive, not both.
type SubmitRequest struct {
	OwnerID     string `validate:"required"`
	Files       []FileUpload
	Archive     []byte
	ArchiveName string
}

// expandArchive turns a zip into file uploads. Entries live under a
// top-level directory naming their document type (faktur_pajak/scan1.pdf).
// Any entry violating the archive allow-list rejects the whole submission
// before a batch row exists.
func (s *Service) expandArchive(data []byte) ([]FileUpload, error) {
	reader, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return nil, models.NewProcessError(models.ErrKindValidation, "scheduler.submit",
			fmt.Errorf("unreadable archive: %w", err))
	}

	allowed := make(map[models.DocumentType]bool)
	for _, t := range s.config.Scheduler.ArchiveAllowedTypes {
		allowed[models.DocumentType(t)] = true
	}

	var uploads []FileUpload
	for _, entry := range reader.File {
		if entry.FileInfo().IsDir() {
			continue
		}
		name := path.Clean(entry.Name)
		if strings.HasPrefix(name, "..") || path.IsAbs(name) {
			return nil, models.NewProcessError(models.ErrKindValidation, "scheduler.submit",
				fmt.Errorf("archive entry escapes root: %s", entry.Name))
		}
		// Hidden bookkeeping files some archivers add
		base := path.Base(name)
		if strings.HasPrefix(base, ".") || strings.HasPrefix(name, "__MACOSX/") {
			continue
		}

		dir, _ := path.Split(name)
		docType := models.DocumentType(strings.Trim(dir, "/"))
		if dir == "" || !models.IsKnownDocumentType(docType) {
			return nil, models.NewProcessError(models.ErrKindValidation, "scheduler.submit",
				fmt.Errorf("archive entry %s has no document type directory", entry.Name))
		}
		if !allowed[docType] {
			return nil, models.NewProcessError(models.ErrKindValidation, "scheduler.submit",
				fmt.Errorf("archive_type_not_allowed: %s", docType))
		}

		if int64(entry.UncompressedSize64) > s.config.Scheduler.MaxFileBytes {
			return nil, models.NewProcessError(models.ErrKindValidation, "scheduler.submit",
				fmt.Errorf("archive entry %s exceeds the per-file size cap", entry.Name))
		}

		rc, err := entry.Open()
		if err != nil {
			return nil, models.NewProcessError(models.ErrKindValidation, "scheduler.submit",
				fmt.Errorf("failed to open archive entry %s: %w", entry.Name, err))
		}
		content, err := io.ReadAll(io.LimitReader(rc, s.config.Scheduler.MaxFileBytes+1))
		rc.Close()
		if err != nil {
			return nil, models.NewProcessError(models.ErrKindValidation, "scheduler.submit",
				fmt.Errorf("failed to read archive entry %s: %w", entry.Name, err))
		}
		if int64(len(content)) > s.config.Scheduler.MaxFileBytes {
			return nil, models.NewProcessError(models.ErrKindValidation, "scheduler.submit",
				fmt.Errorf("archive entry %s exceeds the per-file size cap", entry.Name))
		}

		uploads = append(uploads, FileUpload{
			Filename: base,
			DocType:  docType,
			Data:     content,
		})
	}

	if len(uploads) == 0 {
		return nil, models.NewProcessError(models.ErrKindValidation, "scheduler.submit",
			fmt.Errorf("archive contains no files"))
	}
	if len(uploads) > s.config.Scheduler.MaxArchiveFiles {
		return nil, models.NewProcessError(models.ErrKindValidation, "scheduler.submit",
			fmt.Errorf("archive expands to %d files, cap is %d", len(uploads), s.config.Scheduler.MaxArchiveFiles))
	}
	return uploads, nil
}

// admit applies the direct-upload admission rules
func (s *Service) admit(uploads []FileUpload, fromArchive bool) error {
	if len(uploads) == 0 {
		return models.NewProcessError(models.ErrKindValidation, "scheduler.submit",
			fmt.Errorf("no files in submission"))
	}
	if !fromArchive && len(uploads) > s.config.Scheduler.MaxFilesPerBatch {
		return models.NewProcessError(models.ErrKindValidation, "scheduler.submit",
			fmt.Errorf("%d files exceeds the batch cap of %d", len(uploads), s.config.Scheduler.MaxFilesPerBatch))
	}
	for _, u := range uploads {
		if !models.IsKnownDocumentType(u.DocType) {
			return models.NewProcessError(models.ErrKindValidation, "scheduler.submit",
				fmt.Errorf("unknown document type %q for %s", u.DocType, u.Filename))
		}
		if int64(len(u.Data)) > s.config.Scheduler.MaxFileBytes {
			return models.NewProcessError(models.ErrKindValidation, "scheduler.submit",
				fmt.Errorf("%s exceeds the per-file size cap", u.Filename))
		}
	}
	return nil
}
