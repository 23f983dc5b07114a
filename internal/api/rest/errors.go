package rest

import (
	"errors"
	"net/http"

	"github.com/KevinKickass/OpenDeviceCatalog/internal/devices"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/ingest"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/processdata"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/storage"
	"github.com/KevinKickass/OpenDeviceCatalog/internal/types"
	"github.com/gin-gonic/gin"
)

// errorStatus maps domain errors to an HTTP status and API error code.
func errorStatus(err error) (int, string) {
	switch {
	case errors.Is(err, storage.ErrDeviceNotFound):
		return http.StatusNotFound, "DEVICE_NOT_FOUND"
	case errors.Is(err, storage.ErrAssetNotFound):
		return http.StatusNotFound, "ASSET_NOT_FOUND"
	case errors.Is(err, devices.ErrBlockNotFound):
		return http.StatusNotFound, "PROCESS_DATA_NOT_FOUND"
	case errors.Is(err, ingest.ErrUnsupportedExtension):
		return http.StatusUnsupportedMediaType, "UNSUPPORTED_EXTENSION"
	case errors.Is(err, ingest.ErrPayloadTooLarge):
		return http.StatusRequestEntityTooLarge, "PAYLOAD_TOO_LARGE"
	case errors.Is(err, ingest.ErrInvalidEncoding):
		return http.StatusUnprocessableEntity, "INVALID_ENCODING"
	case errors.Is(err, ingest.ErrNoDocument):
		return http.StatusUnprocessableEntity, "NO_DOCUMENT"
	case errors.Is(err, types.ErrUnsupportedFormat):
		return http.StatusUnprocessableEntity, "UNSUPPORTED_FORMAT"
	case errors.Is(err, types.ErrMissingIdentity):
		return http.StatusUnprocessableEntity, "MISSING_IDENTITY"
	case errors.Is(err, types.ErrCyclicTypeReference):
		return http.StatusUnprocessableEntity, "CYCLIC_TYPE_REFERENCE"
	case errors.Is(err, types.ErrMalformedDocument):
		return http.StatusUnprocessableEntity, "MALFORMED_DOCUMENT"
	case errors.Is(err, processdata.ErrShortPayload):
		return http.StatusBadRequest, "SHORT_PAYLOAD"
	}
	return http.StatusInternalServerError, "INTERNAL"
}

func abortWithError(c *gin.Context, err error) {
	status, code := errorStatus(err)
	_ = c.Error(err)
	c.AbortWithStatusJSON(status, types.NewErrorResponse(code, err.Error(), nil))
}

func errorBody(err error) types.ErrorBody {
	_, code := errorStatus(err)
	return types.ErrorBody{Code: code, Message: err.Error()}
}
