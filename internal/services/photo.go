package services

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"github.com/disintegration/imaging"
	"github.com/rwcarlsen/goexif/exif"

	"github.com/AnshRaj112/rockhunter-backend/internal/models"
)

const (
	MaxPhotoBytes = 10 << 20
	PhotoMaxSide  = 600
	PhotoQuality  = 60
	PhotoFolder   = "rockhunter/rocks"
)

var (
	ErrNotAnImage    = errors.New("Please select an image file")
	ErrPhotoTooLarge = errors.New("Image must be smaller than 10MB")
)

// PhotoUploader hosts processed images. CloudinaryService implements it.
type PhotoUploader interface {
	Upload(ctx context.Context, data []byte, folder string) (string, error)
}

type Location struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type ProcessedPhoto struct {
	// URL is the hosted image, or DataURL when hosting is off or failed.
	URL     string    `json:"url"`
	DataURL string    `json:"-"`
	Hosted  bool      `json:"hosted"`
	Width   int       `json:"width"`
	Height  int       `json:"height"`
	Bytes   int       `json:"bytes"`
	// Location is the EXIF GPS position, offered as the pin location.
	Location *Location `json:"location,omitempty"`
}

// PhotoProcessor shrinks uploaded photos to map-popup size.
type PhotoProcessor struct {
	uploader PhotoUploader
	folder   string
	logger   *slog.Logger
}

// NewPhotoProcessor returns a processor; uploader may be nil.
func NewPhotoProcessor(uploader PhotoUploader, logger *slog.Logger) *PhotoProcessor {
	if logger == nil {
		logger = slog.Default()
	}
	return &PhotoProcessor{uploader: uploader, folder: PhotoFolder, logger: logger}
}

// Process validates, orients, resizes and re-encodes one image.
func (p *PhotoProcessor) Process(ctx context.Context, r io.Reader, contentType string) (ProcessedPhoto, error) {
	if !strings.HasPrefix(strings.ToLower(contentType), "image/") {
		return ProcessedPhoto{}, ErrNotAnImage
	}

	data, err := io.ReadAll(io.LimitReader(r, MaxPhotoBytes+1))
	if err != nil {
		return ProcessedPhoto{}, fmt.Errorf("read photo: %w", err)
	}
	if len(data) > MaxPhotoBytes {
		return ProcessedPhoto{}, ErrPhotoTooLarge
	}

	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return ProcessedPhoto{}, fmt.Errorf("%w: %v", ErrNotAnImage, err)
	}
	img = imaging.Fit(img, PhotoMaxSide, PhotoMaxSide, imaging.Lanczos)

	var buf bytes.Buffer
	if err := imaging.Encode(&buf, img, imaging.JPEG, imaging.JPEGQuality(PhotoQuality)); err != nil {
		return ProcessedPhoto{}, fmt.Errorf("encode photo: %w", err)
	}

	bounds := img.Bounds()
	out := ProcessedPhoto{
		DataURL:  "data:image/jpeg;base64," + base64.StdEncoding.EncodeToString(buf.Bytes()),
		Width:    bounds.Dx(),
		Height:   bounds.Dy(),
		Bytes:    buf.Len(),
		Location: gpsLocation(data),
	}
	out.URL = out.DataURL

	if p.uploader != nil {
		url, err := p.uploader.Upload(ctx, buf.Bytes(), p.folder)
		if err != nil {
			p.logger.Warn("photo upload failed, using inline image", "err", err)
		} else {
			out.URL = url
			out.Hosted = true
		}
	}
	return out, nil
}

// gpsLocation reads the EXIF GPS tags, if any.
func gpsLocation(data []byte) *Location {
	x, err := exif.Decode(bytes.NewReader(data))
	if err != nil {
		return nil
	}
	lat, lng, err := x.LatLong()
	if err != nil || !models.ValidCoordinates(lat, lng) {
		return nil
	}
	return &Location{Lat: lat, Lng: lng}
}
