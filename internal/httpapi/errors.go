package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"studentattendance/internal/apperr"
)

func statusOf(kind apperr.Kind) int {
	switch kind {
	case apperr.Validation, apperr.Conflict, apperr.Expired:
		return http.StatusBadRequest
	case apperr.Unauthorized:
		return http.StatusUnauthorized
	case apperr.Forbidden:
		return http.StatusForbidden
	case apperr.NotFound:
		return http.StatusNotFound
	}
	return http.StatusInternalServerError
}

// fail renders err with the status of its kind. Internal errors are logged
// and reported without detail.
func fail(c *gin.Context, log logrus.FieldLogger, err error) {
	status := statusOf(apperr.KindOf(err))
	if status == http.StatusInternalServerError {
		log.WithError(err).WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.FullPath(),
		}).Error("request failed")
	}
	c.AbortWithStatusJSON(status, gin.H{"error": apperr.MessageOf(err)})
}

func message(c *gin.Context, status int, msg string) {
	c.JSON(status, gin.H{"message": msg})
}
