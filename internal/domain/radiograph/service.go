package radiograph

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"net/http"
	"path"
	"sort"
	"strconv"
	"strings"

	"github.com/rs/zerolog"

	"github.com/orthovision/portal/internal/domain/dentition"
	"github.com/orthovision/portal/internal/platform/blobstore"
	"github.com/orthovision/portal/internal/platform/overlayimg"
)

var (
	ErrNotFound     = errors.New("radiograph not found")
	ErrEmptyUpload  = errors.New("no file was uploaded")
	ErrInvalidImage = errors.New("the file is not a supported X-ray image")
)

// MinImageSide is the smallest width or height accepted for analysis.
const MinImageSide = 64

type Service struct {
	repo      Repository
	analyzer  Analyzer
	images    blobstore.BlobStore
	publicURL string
	logger    zerolog.Logger
}

// NewService wires the radiograph workflow. publicURL is the portal's own
// base URL; stored images are published under publicURL/images/.
func NewService(repo Repository, analyzer Analyzer, images blobstore.BlobStore, publicURL string, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		analyzer:  analyzer,
		images:    images,
		publicURL: strings.TrimRight(publicURL, "/"),
		logger:    logger.With().Str("component", "radiograph").Logger(),
	}
}

// History returns the patient's radiographs, newest first.
func (s *Service) History(ctx context.Context, patientID string) ([]*Radiograph, error) {
	if patientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}
	list, err := s.repo.List(ctx, patientID)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(list, func(i, j int) bool {
		a, b := list[i], list[j]
		if !a.CreatedAt.Equal(b.CreatedAt) {
			return a.CreatedAt.After(b.CreatedAt)
		}
		return idLess(b.ID, a.ID)
	})
	return list, nil
}

// idLess orders numeric ids numerically and anything else lexically.
func idLess(a, b string) bool {
	na, errA := strconv.Atoi(a)
	nb, errB := strconv.Atoi(b)
	if errA == nil && errB == nil {
		return na < nb
	}
	return a < b
}

// Get returns one radiograph of the patient.
func (s *Service) Get(ctx context.Context, patientID, id string) (*Radiograph, error) {
	list, err := s.repo.List(ctx, patientID)
	if err != nil {
		return nil, err
	}
	for _, r := range list {
		if r.ID == id {
			return r, nil
		}
	}
	return nil, ErrNotFound
}

// ReportFor returns the report of one radiograph in the analysis service's
// wire shape.
func (s *Service) ReportFor(ctx context.Context, patientID, id string) (json.RawMessage, error) {
	rec, err := s.Get(ctx, patientID, id)
	if err != nil {
		return nil, err
	}
	if len(rec.RawReport) > 0 {
		return rec.RawReport, nil
	}
	return json.Marshal(rec.Report)
}

// Analyze sends an X-ray to the analysis service, publishes the annotated
// image, and records it with its report against the patient.
func (s *Service) Analyze(ctx context.Context, up Upload) (*Radiograph, error) {
	if up.PatientID == "" {
		return nil, fmt.Errorf("patient_id is required")
	}
	if len(up.Data) == 0 {
		return nil, ErrEmptyUpload
	}
	info, err := overlayimg.DecodeConfig(up.Data)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidImage, err)
	}
	if info.Width < MinImageSide || info.Height < MinImageSide {
		return nil, fmt.Errorf("%w: %dx%d is too small", ErrInvalidImage, info.Width, info.Height)
	}
	if up.FileName == "" {
		up.FileName = "radiograph." + info.Format
	}

	log := s.logger.With().Str("patient_id", up.PatientID).Str("file", up.FileName).Logger()
	log.Info().Str("format", info.Format).Int("width", info.Width).Int("height", info.Height).Msg("analysing radiograph")

	annotated, contentType, err := s.analyzer.Analyze(ctx, up.FileName, up.Data)
	if err != nil {
		return nil, err
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = http.DetectContentType(annotated)
	}

	meta := blobstore.BlobMetadata{
		FileName:    "annotated-" + path.Base(up.FileName),
		ContentType: contentType,
		PatientID:   up.PatientID,
		CreatedBy:   up.UploadedBy,
	}
	if ai, err := overlayimg.DecodeConfig(annotated); err == nil {
		meta.Width, meta.Height = ai.Width, ai.Height
	}
	stored, err := s.images.Upload(ctx, meta, bytes.NewReader(annotated))
	if err != nil {
		return nil, fmt.Errorf("store annotated image: %w", err)
	}

	raw, err := s.analyzer.LatestReport(ctx)
	if err != nil {
		s.discard(ctx, stored.ID)
		return nil, err
	}

	rec := &Radiograph{
		PatientID: up.PatientID,
		ImageURL:  s.ImageURL(stored.ID),
		CreatedAt: stored.CreatedAt,
		RawReport: raw,
	}
	if len(raw) > 0 {
		if rep, err := dentition.DecodeReport(raw); err == nil {
			rec.Report = rep
		} else {
			log.Warn().Err(err).Msg("report is not a tooth map; recording it without findings")
		}
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		s.discard(ctx, stored.ID)
		return nil, err
	}
	log.Info().Str("radiograph_id", rec.ID).Int("findings", rec.Findings()).Msg("radiograph recorded")
	return rec, nil
}

func (s *Service) discard(ctx context.Context, imageID string) {
	if err := s.images.Delete(ctx, imageID); err != nil && !errors.Is(err, blobstore.ErrBlobNotFound) {
		s.logger.Warn().Err(err).Str("image_id", imageID).Msg("discard annotated image")
	}
}

// ImageURL is the public address of a stored image.
func (s *Service) ImageURL(imageID string) string {
	return s.publicURL + "/images/" + imageID
}

// DownloadURL is where the annotated image of r can be saved from. Images
// this portal stored are served as an attachment.
func (s *Service) DownloadURL(r *Radiograph) string {
	if id, ok := s.storedImageID(r.ImageURL); ok {
		return "/images/" + id + "?download=1"
	}
	return r.ImageURL
}

// storedImageID returns the blob id behind one of this portal's image URLs.
func (s *Service) storedImageID(url string) (string, bool) {
	prefix := s.publicURL + "/images/"
	if !strings.HasPrefix(url, prefix) {
		return "", false
	}
	id := strings.TrimPrefix(url, prefix)
	return id, id != "" && !strings.Contains(id, "/")
}

// BaseImage loads the annotated image of r when this portal stored it.
// Images hosted elsewhere return nil without error.
func (s *Service) BaseImage(ctx context.Context, r *Radiograph) (image.Image, error) {
	id, ok := s.storedImageID(r.ImageURL)
	if !ok {
		return nil, nil
	}
	rc, _, err := s.images.Download(ctx, id)
	if err != nil {
		if errors.Is(err, blobstore.ErrBlobNotFound) {
			return nil, nil
		}
		return nil, err
	}
	defer rc.Close()

	var buf bytes.Buffer
	if _, err := buf.ReadFrom(rc); err != nil {
		return nil, fmt.Errorf("read image %s: %w", id, err)
	}
	img, _, err := overlayimg.Decode(buf.Bytes(), 1)
	if err != nil {
		return nil, err
	}
	return img, nil
}
