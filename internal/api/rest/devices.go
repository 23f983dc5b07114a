package rest

import (
	"encoding/hex"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/devices"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/ingest"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"github.com/gin-gonic/gin"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// renderJSON encodes with goccy/go-json, like the schema composer.
func renderJSON(c *gin.Context, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		abortWithError(c, fmt.Errorf("failed to encode response: %w", err))
		return
	}
	c.Data(status, "application/json; charset=utf-8", data)
}

func deviceID(c *gin.Context) (uuid.UUID, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest,
			types.NewErrorResponse("INVALID_ID", "invalid device ID", c.Param("id")))
		return uuid.Nil, false
	}
	return id, true
}

// GET /api/v1/devices
func (s *Server) listDevices(c *gin.Context) {
	list, err := s.lm.DeviceManager().List(c.Request.Context())
	if err != nil {
		abortWithError(c, err)
		return
	}
	renderJSON(c, http.StatusOK, gin.H{
		"devices": list,
		"count":   len(list),
	})
}

// POST /api/v1/devices
//
// Accepts multipart uploads (one or more "file" parts) or a raw body named
// by ?filename=.
func (s *Server) importDevices(c *gin.Context) {
	uploads, err := s.readUploads(c)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest,
			types.NewErrorResponse("INVALID_UPLOAD", "Invalid upload", err.Error()))
		return
	}

	manager := s.lm.DeviceManager()
	if len(uploads) == 1 {
		res, err := manager.Import(c.Request.Context(), uploads[0].Filename, uploads[0].Data)
		if err != nil {
			abortWithError(c, err)
			return
		}
		renderJSON(c, http.StatusCreated, res)
		return
	}

	results := manager.ImportBatch(c.Request.Context(), uploads)
	response := make([]gin.H, 0, len(results))
	imported := 0
	for _, r := range results {
		entry := gin.H{"filename": r.Filename}
		if r.Err != nil {
			entry["error"] = errorBody(r.Err)
		} else {
			entry["result"] = r.Result
			imported++
		}
		response = append(response, entry)
	}

	s.logger.Info("Batch import finished",
		zap.Int("files", len(uploads)),
		zap.Int("imported", imported))

	status := http.StatusCreated
	if imported < len(results) {
		status = http.StatusMultiStatus
	}
	renderJSON(c, status, gin.H{
		"results":  response,
		"imported": imported,
		"failed":   len(results) - imported,
	})
}

// readUploads reads at most limit+1 bytes per file; ingest rejects anything
// past the limit.
func (s *Server) readUploads(c *gin.Context) ([]devices.Upload, error) {
	limit := s.cfg.Ingest.MaxDocumentBytes
	if limit <= 0 {
		limit = ingest.DefaultLimits().MaxDocumentBytes
	}

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, err := c.MultipartForm()
		if err != nil {
			return nil, fmt.Errorf("failed to read multipart form: %w", err)
		}
		files := form.File["file"]
		if len(files) == 0 {
			return nil, fmt.Errorf("multipart form has no \"file\" part")
		}
		uploads := make([]devices.Upload, 0, len(files))
		for _, fh := range files {
			data, err := readPart(fh, limit)
			if err != nil {
				return nil, err
			}
			uploads = append(uploads, devices.Upload{Filename: fh.Filename, Data: data})
		}
		return uploads, nil
	}

	filename := c.Query("filename")
	if filename == "" {
		return nil, fmt.Errorf("raw uploads need the filename query parameter")
	}
	data, err := io.ReadAll(io.LimitReader(c.Request.Body, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read body: %w", err)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("empty body")
	}
	return []devices.Upload{{Filename: filename, Data: data}}, nil
}

func readPart(fh *multipart.FileHeader, limit int64) ([]byte, error) {
	f, err := fh.Open()
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", fh.Filename, err)
	}
	defer f.Close()

	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", fh.Filename, err)
	}
	return data, nil
}

// GET /api/v1/devices/:id
func (s *Server) getDevice(c *gin.Context) {
	id, ok := deviceID(c)
	if !ok {
		return
	}
	d, err := s.lm.DeviceManager().Device(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	renderJSON(c, http.StatusOK, d)
}

// GET /api/v1/devices/:id/schema
func (s *Server) getDeviceSchema(c *gin.Context) {
	id, ok := deviceID(c)
	if !ok {
		return
	}
	schema, err := s.lm.DeviceManager().Schema(c.Request.Context(), id)
	if err != nil {
		abortWithError(c, err)
		return
	}
	renderJSON(c, http.StatusOK, schema)
}

// GET /api/v1/devices/:id/assets/:asset
func (s *Server) getDeviceAsset(c *gin.Context) {
	id, ok := deviceID(c)
	if !ok {
		return
	}
	asset, err := s.lm.DeviceManager().Asset(c.Request.Context(), id, c.Param("asset"))
	if err != nil {
		abortWithError(c, err)
		return
	}
	if asset.Data == nil {
		c.AbortWithStatusJSON(http.StatusNotFound,
			types.NewErrorResponse("ASSET_NOT_BUNDLED", "Asset was referenced but not bundled with the document", asset.ID))
		return
	}

	contentType := asset.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.Data(http.StatusOK, contentType, asset.Data)
}

// POST /api/v1/devices/:id/process-data/decode
func (s *Server) decodeProcessData(c *gin.Context) {
	id, ok := deviceID(c)
	if !ok {
		return
	}

	var req struct {
		Direction types.Direction `json:"direction" binding:"required,oneof=input output"`
		BlockID   string          `json:"block_id"`
		Data      string          `json:"data" binding:"required,hexadecimal"`
	}
	if err := c.ShouldBindJSON(&req); err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest,
			types.NewErrorResponse("INVALID_REQUEST", "Invalid request body", err.Error()))
		return
	}
	raw, err := hex.DecodeString(req.Data)
	if err != nil {
		c.AbortWithStatusJSON(http.StatusBadRequest,
			types.NewErrorResponse("INVALID_REQUEST", "data must be an even number of hex digits", err.Error()))
		return
	}

	res, err := s.lm.DeviceManager().DecodeProcessData(c.Request.Context(), id, req.BlockID, req.Direction, raw)
	if err != nil {
		abortWithError(c, err)
		return
	}
	renderJSON(c, http.StatusOK, res)
}

// DELETE /api/v1/devices/:id
func (s *Server) deleteDevice(c *gin.Context) {
	id, ok := deviceID(c)
	if !ok {
		return
	}
	if err := s.lm.DeviceManager().Delete(c.Request.Context(), id); err != nil {
		abortWithError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "device deleted", "id": id.String()})
}
