// manifold/diving_handlers.go
package main

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/labstack/echo/v4"

	ingestconfig "manifold/internal/config"
	"manifold/internal/ingestpipe/system"
	"manifold/internal/llm"
	"manifold/internal/objectstore"
	"manifold/internal/rag/answer"
)

// divingSystem is the lazily-built ingestion/RAG system backing the
// document-upload and query endpoints. It is built once from
// config.yaml's ingest/rag sections, mirroring the lazy-MCP-handler
// pattern in registerMCPEndpoints.
var (
	divingOnce sync.Once
	divingSys  *system.System
	divingErr  error
)

func getDivingSystem() (*system.System, error) {
	divingOnce.Do(func() {
		cfg, err := ingestconfig.LoadConfig("config.yaml")
		if err != nil {
			divingErr = fmt.Errorf("load ingest config: %w", err)
			return
		}
		provider := llm.Provider(nil)
		if cfg.RAG.Host != "" {
			provider = answer.NewChatClient(cfg.RAG.Host, cfg.RAG.APIKey)
		}
		divingSys, divingErr = system.Build(context.Background(), cfg, provider)
	})
	return divingSys, divingErr
}

// registerDivingEndpoints registers the document-ingestion and RAG-query
// management surface: upload, status polling, queue inspection, history
// cleanup, graph stats and a streaming query endpoint, grounded on the
// same upload/status/query split as original_source's FastAPI routers
// (documents.py, query.py) adapted into this codebase's echo handler style.
func registerDivingEndpoints(api *echo.Group, config *Config) {
	diveGroup := api.Group("/diving")

	diveGroup.POST("/documents", divingUploadHandler(config))
	diveGroup.GET("/documents/:upload_id/status", divingStatusHandler)
	diveGroup.GET("/documents", divingListHandler)
	diveGroup.DELETE("/documents/history", divingClearHistoryHandler)
	diveGroup.GET("/queue", divingQueueStatusHandler)
	diveGroup.GET("/graph/stats", divingGraphStatsHandler)
	diveGroup.POST("/query", divingQueryHandler)
	diveGroup.POST("/query/stream", divingQueryStreamHandler)
}

// divingUploadHandler accepts a document upload, stages it under the
// configured data path and enqueues it for background processing,
// mirroring fileUploadHandler's staging approach but handing the file to
// the ingestion queue instead of just returning its URL.
func divingUploadHandler(config *Config) echo.HandlerFunc {
	return func(c echo.Context) error {
		sys, err := getDivingSystem()
		if err != nil {
			return respondWithError(c, http.StatusServiceUnavailable, fmt.Sprintf("ingestion system unavailable: %v", err))
		}

		file, err := c.FormFile("file")
		if err != nil {
			return respondWithError(c, http.StatusBadRequest, fmt.Sprintf("failed to get uploaded file: %v", err))
		}

		uploadDir := filepath.Join(config.DataPath, "diving", "uploads")
		if err := os.MkdirAll(uploadDir, 0755); err != nil {
			return respondWithError(c, http.StatusInternalServerError, fmt.Sprintf("failed to create upload directory: %v", err))
		}

		filename := generateUniqueFilename(file.Filename)
		dst := filepath.Join(uploadDir, filename)

		src, err := file.Open()
		if err != nil {
			return respondWithError(c, http.StatusInternalServerError, fmt.Sprintf("failed to open uploaded file: %v", err))
		}
		defer src.Close()

		dstFile, err := os.Create(dst)
		if err != nil {
			return respondWithError(c, http.StatusInternalServerError, fmt.Sprintf("failed to create destination file: %v", err))
		}
		defer dstFile.Close()

		if _, err := io.Copy(dstFile, src); err != nil {
			return respondWithError(c, http.StatusInternalServerError, fmt.Sprintf("failed to stage uploaded file: %v", err))
		}

		if sys.Archive != nil {
			archiveDivingUpload(c.Request().Context(), sys, dst, filename)
		}

		uploadID := strings.TrimSuffix(filename, filepath.Ext(filename))
		entry := sys.Queue.Enqueue(uploadID, dst, file.Filename)

		return c.JSON(http.StatusAccepted, map[string]any{
			"upload_id": entry.UploadID,
			"filename":  entry.Filename,
			"status":    entry.Status,
		})
	}
}

// archiveDivingUpload best-effort copies a staged upload into object
// storage for durable retention; a failure here never blocks processing
// since the pipeline still reads from the local staged path.
func archiveDivingUpload(ctx context.Context, sys *system.System, localPath, filename string) {
	f, err := os.Open(localPath)
	if err != nil {
		log.Printf("diving: archive open failed for %s: %v", filename, err)
		return
	}
	defer f.Close()

	if _, err := sys.Archive.Put(ctx, "documents/"+filename, f, objectstore.PutOptions{}); err != nil {
		log.Printf("diving: archive put failed for %s: %v", filename, err)
	}
}

// divingStatusHandler reports one upload's processing state, mirroring
// processor.py's GET /documents/{upload_id}/status.
func divingStatusHandler(c echo.Context) error {
	sys, err := getDivingSystem()
	if err != nil {
		return respondWithError(c, http.StatusServiceUnavailable, fmt.Sprintf("ingestion system unavailable: %v", err))
	}

	uploadID := c.Param("upload_id")
	entry, ok := sys.Status.Get(uploadID)
	if !ok {
		return respondWithError(c, http.StatusNotFound, "upload not found")
	}
	return c.JSON(http.StatusOK, entry)
}

// divingListHandler lists every known upload's status.
func divingListHandler(c echo.Context) error {
	sys, err := getDivingSystem()
	if err != nil {
		return respondWithError(c, http.StatusServiceUnavailable, fmt.Sprintf("ingestion system unavailable: %v", err))
	}
	return c.JSON(http.StatusOK, sys.Status.List())
}

// divingClearHistoryHandler drops completed/failed queue history, mirroring
// DocumentQueue.clear_history.
func divingClearHistoryHandler(c echo.Context) error {
	sys, err := getDivingSystem()
	if err != nil {
		return respondWithError(c, http.StatusServiceUnavailable, fmt.Sprintf("ingestion system unavailable: %v", err))
	}
	sys.Queue.ClearHistory()
	return c.JSON(http.StatusOK, map[string]string{"message": "history cleared"})
}

// divingQueueStatusHandler reports the FIFO queue's current state.
func divingQueueStatusHandler(c echo.Context) error {
	sys, err := getDivingSystem()
	if err != nil {
		return respondWithError(c, http.StatusServiceUnavailable, fmt.Sprintf("ingestion system unavailable: %v", err))
	}
	return c.JSON(http.StatusOK, sys.Queue.Status())
}

// divingGraphStatsHandler reports an entity/relation count snapshot,
// degrading to zero counts on a graph-service error rather than failing the
// request (get_entity_count/get_relation_count in processor.py).
func divingGraphStatsHandler(c echo.Context) error {
	sys, err := getDivingSystem()
	if err != nil {
		return respondWithError(c, http.StatusServiceUnavailable, fmt.Sprintf("ingestion system unavailable: %v", err))
	}
	return c.JSON(http.StatusOK, sys.Stats.Snapshot(c.Request().Context()))
}

type divingQueryRequest struct {
	Question string   `json:"question"`
	GroupIDs []string `json:"group_ids,omitempty"`
}

// divingQueryHandler answers a question over the knowledge graph in one
// shot, mirroring rag.py's rag_query.
func divingQueryHandler(c echo.Context) error {
	sys, err := getDivingSystem()
	if err != nil {
		return respondWithError(c, http.StatusServiceUnavailable, fmt.Sprintf("ingestion system unavailable: %v", err))
	}

	var req divingQueryRequest
	if err := c.Bind(&req); err != nil {
		return respondWithError(c, http.StatusBadRequest, "invalid request body")
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return respondWithError(c, http.StatusBadRequest, "question is required")
	}

	result, err := sys.Answer.Answer(c.Request().Context(), req.Question, req.GroupIDs)
	if err != nil {
		return respondWithError(c, http.StatusInternalServerError, err.Error())
	}
	return c.JSON(http.StatusOK, result)
}

// divingQueryStreamHandler streams an answer's tokens as SSE frames,
// grounded on runReActAgentStreamHandler's SSE write loop (stream_agents.go)
// and rag.py's rag_stream_response.
func divingQueryStreamHandler(c echo.Context) error {
	sys, err := getDivingSystem()
	if err != nil {
		return respondWithError(c, http.StatusServiceUnavailable, fmt.Sprintf("ingestion system unavailable: %v", err))
	}

	var req divingQueryRequest
	if err := c.Bind(&req); err != nil {
		return respondWithError(c, http.StatusBadRequest, "invalid request body")
	}
	req.Question = strings.TrimSpace(req.Question)
	if req.Question == "" {
		return respondWithError(c, http.StatusBadRequest, "question is required")
	}

	c.Response().Header().Set(echo.HeaderContentType, "text/event-stream")
	c.Response().Header().Set("Cache-Control", "no-cache")
	c.Response().Header().Set("Connection", "keep-alive")
	flusher, ok := c.Response().Writer.(http.Flusher)
	if !ok {
		return c.String(http.StatusInternalServerError, "streaming unsupported")
	}

	write := func(data string) {
		for _, ln := range strings.Split(data, "\n") {
			fmt.Fprintf(c.Response(), "data: %s\n", ln)
		}
		fmt.Fprint(c.Response(), "\n")
		flusher.Flush()
	}

	handler := &sseStreamHandler{write: write}
	_, err = sys.Answer.StreamAnswer(c.Request().Context(), req.Question, req.GroupIDs, handler)
	if err != nil {
		write(fmt.Sprintf(`{"error":%q}`, err.Error()))
	}
	write("[[EOF]]")
	return nil
}

// sseStreamHandler adapts llm.StreamHandler onto the SSE write() closure.
type sseStreamHandler struct {
	write func(string)
}

func (h *sseStreamHandler) OnDelta(content string)         { h.write(content) }
func (h *sseStreamHandler) OnToolCall(tc llm.ToolCall)      {}
func (h *sseStreamHandler) OnImage(img llm.GeneratedImage)  {}
func (h *sseStreamHandler) OnThoughtSummary(summary string) {}
