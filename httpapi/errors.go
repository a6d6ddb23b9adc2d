package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/go-bumbu/forest"
)

// statusByKind implements spec §7's kind-to-status table. Never matched by
// string-inspecting the error message.
var statusByKind = map[forest.Kind]int{
	forest.KindParentNotFound:        http.StatusBadRequest,
	forest.KindSourceNotFound:        http.StatusBadRequest,
	forest.KindTargetNotFound:        http.StatusBadRequest,
	forest.KindCycleRejected:         http.StatusBadRequest,
	forest.KindDepthExceeded:         http.StatusBadRequest,
	forest.KindLabelEncoding:         http.StatusBadRequest,
	forest.KindLabelTooLarge:         http.StatusBadRequest,
	forest.KindBulkLoadInvalidOrder:  http.StatusBadRequest,
	forest.KindForbiddenInProduction: http.StatusForbidden,
	forest.KindConflictRetry:         http.StatusConflict,
	forest.KindInternal:              http.StatusInternalServerError,
}

func writeError(c *gin.Context, err error) {
	fe, ok := err.(*forest.Error)
	if !ok {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error(), "kind": string(forest.KindInternal)})
		return
	}

	status, ok := statusByKind[fe.Kind]
	if !ok {
		status = http.StatusInternalServerError
	}

	c.JSON(status, gin.H{"error": fe.Msg, "kind": string(fe.Kind)})
}
