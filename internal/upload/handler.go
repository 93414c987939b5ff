package upload

import (
	"errors"
	"io"
	"log"
	"mime"
	"net/http"
	"time"

	chiMiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/imageupload/service/internal/middleware"
	"github.com/imageupload/service/internal/response"
)

// fileField is the multipart form field carrying the image.
const fileField = "file"

// multipartOverhead is the body allowance on top of the file size ceiling for
// boundaries, part headers and small extra fields.
const multipartOverhead = 1 << 20

var errNoFile = errors.New("file is required")

// Handler holds HTTP handlers for upload endpoints.
type Handler struct {
	svc     *Service
	maxSize int64
}

// NewHandler creates a new upload Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{svc: svc, maxSize: svc.validator.MaxSize()}
}

type uploadResponse struct {
	ID         int64  `json:"id"          example:"17"`
	Filename   string `json:"filename"    example:"photo.png"`
	URL        string `json:"url"         example:"https://acct.blob.core.windows.net/uploads/5f0c8a3e-6f1e-4a0e-9f43-2b8d3c1c7a11.png"`
	Size       int64  `json:"size"        example:"2000"`
	UploadedAt string `json:"uploaded_at" example:"2026-10-19T09:41:07.123456Z"`
}

type fileResponse struct {
	ID               int64  `json:"id"                example:"17"`
	OriginalFilename string `json:"original_filename" example:"photo.png"`
	FileURL          string `json:"file_url"          example:"https://acct.blob.core.windows.net/uploads/5f0c8a3e-6f1e-4a0e-9f43-2b8d3c1c7a11.png"`
	FileSize         int64  `json:"file_size"         example:"2000"`
	ContentType      string `json:"content_type"      example:"image/png"`
	UploadedAt       string `json:"uploaded_at"       example:"2026-10-19T09:41:07.123456Z"`
}

// Upload godoc
//
//	@Summary		Upload an image
//	@Description	Validates the image (type, extension, size, integrity), stores it in blob storage and records its metadata.
//	@Tags			files
//	@Accept			multipart/form-data
//	@Produce		json
//	@Security		BearerAuth
//	@Param			file	formData	file	true	"Image to upload"
//	@Success		201		{object}	uploadResponse
//	@Failure		400		{object}	response.ErrorBody
//	@Failure		401		{object}	response.ErrorBody
//	@Failure		500		{object}	response.ErrorBody
//	@Router			/upload [post]
func (h *Handler) Upload(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Not authenticated")
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, 2*h.maxSize+multipartOverhead)
	filename, contentType, data, err := h.readFile(r)
	if err != nil {
		var maxErr *http.MaxBytesError
		switch {
		case errors.As(err, &maxErr):
			response.BadRequest(w, sizeLimitReason(h.maxSize))
		case errors.Is(err, errNoFile):
			response.BadRequest(w, "file is required")
		default:
			response.BadRequest(w, "invalid multipart body")
		}
		return
	}

	rec, err := h.svc.Upload(r.Context(), userID, filename, contentType, data)
	if err != nil {
		if IsValidation(err) {
			response.BadRequest(w, err.Error())
			return
		}
		log.Printf("upload: failed user=%s request_id=%s: %v", userID, chiMiddleware.GetReqID(r.Context()), err)
		response.InternalError(w, "Failed to upload file: "+err.Error())
		return
	}

	response.Created(w, uploadResponse{
		ID:         rec.ID,
		Filename:   rec.OriginalFilename,
		URL:        rec.FileURL,
		Size:       rec.FileSize,
		UploadedAt: formatTime(rec.UploadedAt),
	})
}

// ListFiles godoc
//
//	@Summary		List my files
//	@Description	Returns every upload of the authenticated user, most recent first.
//	@Tags			files
//	@Produce		json
//	@Security		BearerAuth
//	@Success		200	{array}		fileResponse
//	@Failure		401	{object}	response.ErrorBody
//	@Failure		500	{object}	response.ErrorBody
//	@Router			/files [get]
func (h *Handler) ListFiles(w http.ResponseWriter, r *http.Request) {
	userID, ok := middleware.UserID(r.Context())
	if !ok {
		response.Unauthorized(w, "Not authenticated")
		return
	}

	records, err := h.svc.ListFiles(r.Context(), userID)
	if err != nil {
		log.Printf("upload: list failed user=%s request_id=%s: %v", userID, chiMiddleware.GetReqID(r.Context()), err)
		response.InternalError(w, "Failed to list files")
		return
	}

	items := make([]fileResponse, 0, len(records))
	for _, rec := range records {
		items = append(items, fileResponse{
			ID:               rec.ID,
			OriginalFilename: rec.OriginalFilename,
			FileURL:          rec.FileURL,
			FileSize:         rec.FileSize,
			ContentType:      rec.ContentType,
			UploadedAt:       formatTime(rec.UploadedAt),
		})
	}
	response.OK(w, items)
}

// readFile streams the multipart body and returns the first part named "file".
// At most maxSize+1 bytes of the file are read so oversized uploads stay bounded
// and are still reported by the validator.
func (h *Handler) readFile(r *http.Request) (filename, contentType string, data []byte, err error) {
	mr, err := r.MultipartReader()
	if err != nil {
		return "", "", nil, err
	}

	for {
		part, err := mr.NextPart()
		if errors.Is(err, io.EOF) {
			return "", "", nil, errNoFile
		}
		if err != nil {
			return "", "", nil, err
		}

		if part.FormName() != fileField || part.FileName() == "" {
			part.Close()
			continue
		}

		data, err = io.ReadAll(io.LimitReader(part, h.maxSize+1))
		part.Close()
		if err != nil {
			return "", "", nil, err
		}
		return part.FileName(), partContentType(part.Header.Get("Content-Type")), data, nil
	}
}

// partContentType drops parameters such as charset from a part's Content-Type.
// A malformed parameter list still yields the media type.
func partContentType(v string) string {
	if v == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(v)
	if err != nil && !errors.Is(err, mime.ErrInvalidMediaParameter) {
		return v
	}
	return mediaType
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}
