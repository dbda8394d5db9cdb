package server

import (
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	txerrors "github.com/textscan/ocr-server/internal/errors"
	"github.com/textscan/ocr-server/internal/processor"
	"github.com/textscan/ocr-server/internal/queue"
)

// processingOptions are the per-request knobs shared by the sync and async
// ingest endpoints.
type processingOptions struct {
	MinConfidence float64
	Preprocess    bool
	Quick         bool
	Annotate      bool
}

func parseProcessingOptions(c *gin.Context) processingOptions {
	opts := processingOptions{
		MinConfidence: -1, // use the configured default
		Preprocess:    true,
	}

	if v := c.PostForm("min_confidence"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f >= 0 && f <= 1 {
			opts.MinConfidence = f
		}
	}
	if v := c.PostForm("preprocessing"); v != "" {
		opts.Preprocess = v == "true" || v == "1"
	}
	if v := c.PostForm("quick_mode"); v != "" {
		opts.Quick = v == "true" || v == "1"
	}
	if v := c.PostForm("annotate"); v != "" {
		opts.Annotate = v == "true" || v == "1"
	}

	return opts
}

// readUpload pulls one multipart file into memory, enforcing the size limit.
func (s *Server) readUpload(c *gin.Context, field string) (string, []byte, bool) {
	fileHeader, err := c.FormFile(field)
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(txerrors.ErrorInvalidInput, "missing file upload"))
		return "", nil, false
	}

	if fileHeader.Size > s.cfg.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, errorBody(txerrors.ErrorInvalidInput, "upload exceeds size limit"))
		return "", nil, false
	}

	f, err := fileHeader.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(txerrors.ErrorInvalidInput, "unreadable upload"))
		return "", nil, false
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, s.cfg.MaxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(txerrors.ErrorInvalidInput, "unreadable upload"))
		return "", nil, false
	}
	if int64(len(data)) > s.cfg.MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, errorBody(txerrors.ErrorInvalidInput, "upload exceeds size limit"))
		return "", nil, false
	}

	return fileHeader.Filename, data, true
}

func readMultipartFile(fh *multipart.FileHeader, maxSize int64) ([]byte, error) {
	if fh.Size > maxSize {
		return nil, fmt.Errorf("upload exceeds size limit")
	}

	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("unreadable upload")
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, maxSize+1))
	if err != nil {
		return nil, fmt.Errorf("unreadable upload")
	}
	if int64(len(data)) > maxSize {
		return nil, fmt.Errorf("upload exceeds size limit")
	}
	return data, nil
}

func (s *Server) handleOCR(c *gin.Context) {
	filename, data, ok := s.readUpload(c, "file")
	if !ok {
		return
	}
	opts := parseProcessingOptions(c)

	result, err := s.deps.Processor.Process(c.Request.Context(), &processor.Request{
		Filename:      filename,
		Data:          data,
		MinConfidence: opts.MinConfidence,
		Preprocess:    opts.Preprocess,
		Quick:         opts.Quick,
		Annotate:      opts.Annotate,
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

// batchItem is one per-file outcome in a batch response.
type batchItem struct {
	Filename string            `json:"filename"`
	OK       bool              `json:"ok"`
	Result   *processor.Result `json:"result,omitempty"`
	Error    *errorPayload     `json:"error,omitempty"`
}

func (s *Server) handleOCRBatch(c *gin.Context) {
	form, err := c.MultipartForm()
	if err != nil {
		c.JSON(http.StatusBadRequest, errorBody(txerrors.ErrorInvalidInput, "invalid multipart form"))
		return
	}

	files := form.File["files"]
	if len(files) == 0 {
		c.JSON(http.StatusBadRequest, errorBody(txerrors.ErrorInvalidInput, "no files uploaded"))
		return
	}

	opts := parseProcessingOptions(c)

	items := make([]batchItem, 0, len(files))
	succeeded := 0
	for _, fh := range files {
		item := batchItem{Filename: fh.Filename}

		data, readErr := readMultipartFile(fh, s.cfg.MaxUploadSize)
		if readErr != nil {
			item.Error = &errorPayload{Code: string(txerrors.ErrorInvalidInput), Message: readErr.Error()}
			items = append(items, item)
			continue
		}

		result, procErr := s.deps.Processor.Process(c.Request.Context(), &processor.Request{
			Filename:      fh.Filename,
			Data:          data,
			MinConfidence: opts.MinConfidence,
			Preprocess:    opts.Preprocess,
			Quick:         opts.Quick,
			Annotate:      opts.Annotate,
		})
		if procErr != nil {
			code := txerrors.CodeOf(procErr)
			if code == "" {
				code = txerrors.ErrorEngineFailure
			}
			item.Error = &errorPayload{Code: string(code), Message: procErr.Error()}
		} else {
			item.OK = true
			item.Result = result
			succeeded++
		}
		items = append(items, item)
	}

	c.JSON(http.StatusOK, gin.H{
		"total":     len(items),
		"succeeded": succeeded,
		"failed":    len(items) - succeeded,
		"results":   items,
	})
}

func (s *Server) handleCreateJob(c *gin.Context) {
	if s.deps.Jobs == nil || s.deps.Producer == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody(txerrors.ErrorStorageFailure, "async processing is not configured"))
		return
	}

	filename, data, ok := s.readUpload(c, "file")
	if !ok {
		return
	}
	opts := parseProcessingOptions(c)

	jobID := uuid.NewString()
	ctx := c.Request.Context()

	if err := s.deps.Jobs.Create(ctx, jobID, filename); err != nil {
		s.logger.Error("failed to create job record", "job", jobID, "error", err)
		c.JSON(http.StatusServiceUnavailable, errorBody(txerrors.ErrorStorageFailure, "failed to register job"))
		return
	}

	err := s.deps.Producer.Enqueue(ctx, &queue.TaskPayload{
		JobID:         jobID,
		Filename:      filename,
		Image:         data,
		MinConfidence: opts.MinConfidence,
		Preprocess:    opts.Preprocess,
		Quick:         opts.Quick,
		Annotate:      opts.Annotate,
	})
	if err != nil {
		s.logger.Error("failed to enqueue job", "job", jobID, "error", err)
		c.JSON(http.StatusServiceUnavailable, errorBody(txerrors.ErrorStorageFailure, "failed to enqueue job"))
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"job_id": jobID, "status": queue.StatusPending})
}

func (s *Server) handleGetJob(c *gin.Context) {
	if s.deps.Jobs == nil {
		c.JSON(http.StatusServiceUnavailable, errorBody(txerrors.ErrorStorageFailure, "async processing is not configured"))
		return
	}

	job, err := s.deps.Jobs.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, errorBody(txerrors.ErrorStorageFailure, "failed to read job"))
		return
	}
	if job == nil {
		c.JSON(http.StatusNotFound, errorBody(txerrors.ErrorNotFound, "job not found"))
		return
	}

	c.JSON(http.StatusOK, job)
}

func (s *Server) handleHistoryList(c *gin.Context) {
	limit := 0
	if v := c.Query("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}

	entries, err := s.deps.History.List(c.Request.Context(), limit)
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, errorBody(txerrors.ErrorStorageFailure, "failed to list history"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"entries": entries, "count": len(entries)})
}

func (s *Server) handleHistoryGet(c *gin.Context) {
	entry, err := s.deps.History.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, errorBody(txerrors.ErrorStorageFailure, "failed to read history entry"))
		return
	}
	if entry == nil {
		c.JSON(http.StatusNotFound, errorBody(txerrors.ErrorNotFound, "history entry not found"))
		return
	}

	c.JSON(http.StatusOK, entry)
}

func (s *Server) handleHistoryDelete(c *gin.Context) {
	if err := s.deps.History.Delete(c.Request.Context(), c.Param("id")); err != nil {
		c.JSON(http.StatusServiceUnavailable, errorBody(txerrors.ErrorStorageFailure, "failed to delete history entry"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func (s *Server) handleHistoryClear(c *gin.Context) {
	if err := s.deps.History.Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, errorBody(txerrors.ErrorStorageFailure, "failed to clear history"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func (s *Server) handleCacheStats(c *gin.Context) {
	count, err := s.deps.Cache.Stats(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusServiceUnavailable, errorBody(txerrors.ErrorStorageFailure, "failed to read cache stats"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"entries": count})
}

func (s *Server) handleCacheClear(c *gin.Context) {
	if err := s.deps.Cache.Clear(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, errorBody(txerrors.ErrorStorageFailure, "failed to clear cache"))
		return
	}
	c.JSON(http.StatusOK, gin.H{"cleared": true})
}

func (s *Server) handleRetentionSweep(c *gin.Context) {
	removed := s.deps.Sweeper.Sweep()
	c.JSON(http.StatusOK, gin.H{"removed": removed})
}

func (s *Server) handleUploadArtifact(c *gin.Context) {
	s.serveArtifact(c, s.deps.Artifacts.UploadPath)
}

func (s *Server) handleProcessedArtifact(c *gin.Context) {
	s.serveArtifact(c, s.deps.Artifacts.ProcessedPath)
}

func (s *Server) serveArtifact(c *gin.Context, resolve func(string) (string, bool)) {
	path, ok := resolve(c.Param("name"))
	if !ok {
		c.JSON(http.StatusNotFound, errorBody(txerrors.ErrorNotFound, "artifact not found"))
		return
	}
	// c.File responds 404 on its own when the file vanished between resolve
	// and serve (retention sweep).
	c.File(path)
}

func (s *Server) handleHealth(c *gin.Context) {
	status := gin.H{"status": "ok"}
	healthy := true

	if err := s.deps.DB.Ping(c.Request.Context()); err != nil {
		status["database"] = "unreachable"
		healthy = false
	} else {
		status["database"] = "ok"
	}

	if s.deps.Jobs != nil {
		if err := s.deps.Jobs.Ping(c.Request.Context()); err != nil {
			status["redis"] = "unreachable"
			healthy = false
		} else {
			status["redis"] = "ok"
		}
	} else {
		status["redis"] = "disabled"
	}

	if !healthy {
		status["status"] = "degraded"
		c.JSON(http.StatusServiceUnavailable, status)
		return
	}
	c.JSON(http.StatusOK, status)
}

// errorPayload is the wire form of a processing error.
type errorPayload struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func errorBody(code txerrors.ErrorCode, message string) gin.H {
	return gin.H{"error": errorPayload{Code: string(code), Message: message}}
}

// respondError maps a processing error to an HTTP status.
func (s *Server) respondError(c *gin.Context, err error) {
	code := txerrors.CodeOf(err)
	status := http.StatusInternalServerError

	switch code {
	case txerrors.ErrorInvalidInput:
		status = http.StatusBadRequest
	case txerrors.ErrorEngineFailure:
		status = http.StatusBadGateway
	case txerrors.ErrorStorageFailure:
		status = http.StatusServiceUnavailable
	case txerrors.ErrorNotFound:
		status = http.StatusNotFound
	}

	if code == "" {
		code = txerrors.ErrorEngineFailure
	}
	c.JSON(status, errorBody(code, err.Error()))
}
