package server

import (
	"errors"
	"net/http"

	"github.com/gabriel-vasile/mimetype"
	"github.com/gin-gonic/gin"

	"github.com/Skryldev/image-api/core"
	apperrors "github.com/Skryldev/image-api/errors"
	"github.com/Skryldev/image-api/pipeline"
	"github.com/Skryldev/image-api/utils"
)

// multipartSlack is the allowance for form fields and part headers on top of
// the image limit.
const multipartSlack = 1 << 20

// upload is a received image with the format sniffed from its bytes.
type upload struct {
	data   []byte
	format core.Format
}

func (u upload) contentType() string { return u.format.ContentType() }
func (u upload) filename() string    { return u.format.Filename() }

// readImage reads the "image" part, enforcing the size limit and the
// media-type allowlist.
func (s *Server) readImage(c *gin.Context) (upload, error) {
	max := s.deps.MaxUploadBytes
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, max+multipartSlack)

	fh, err := c.FormFile("image")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			return upload{}, tooLarge()
		}
		return upload{}, apperrors.Validation(apperrors.CodeMissingImage, "upload", "image file is required")
	}
	if fh.Size > max {
		return upload{}, tooLarge()
	}

	f, err := fh.Open()
	if err != nil {
		return upload{}, apperrors.Wrap(apperrors.CategoryInput, "upload.open", err)
	}
	defer f.Close()

	data, err := utils.ReadAll(c.Request.Context(), f, s.deps.ChunkSize, max)
	if errors.Is(err, utils.ErrTooLarge) {
		return upload{}, tooLarge()
	}
	if err != nil {
		return upload{}, apperrors.Wrap(apperrors.CategoryInput, "upload.read", err)
	}
	if len(data) == 0 {
		return upload{}, apperrors.Validation(apperrors.CodeMissingImage, "upload", "image file is required")
	}

	mt := mimetype.Detect(data)
	format := core.FormatFromContentType(mt.String())
	if !s.allowed[mt.String()] || format == core.FormatUnknown {
		return upload{}, apperrors.Validation(apperrors.CodeUnsupportedMedia, "upload", "Unsupported image format")
	}
	return upload{data: data, format: format}, nil
}

func tooLarge() error {
	return apperrors.Validation(apperrors.CodePayloadTooLarge, "upload", "Image exceeds the upload size limit")
}

// formParams collects the non-file form fields as raw operation params.
func formParams(c *gin.Context) pipeline.RawParams {
	raw := pipeline.RawParams{}
	if c.Request.MultipartForm == nil {
		return raw
	}
	for k, vs := range c.Request.MultipartForm.Value {
		if len(vs) > 0 {
			raw[k] = vs[0]
		}
	}
	return raw
}
