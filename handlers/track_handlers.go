package handlers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/rs/zerolog/log"

	"craftfolio/analytics/models"
)

// TrackEvent accepts tracking events from the browser snippet, either a
// single event object or a batch array. Events are validated, sampled and
// queued; nothing here waits on the durable store or on aggregation.
func (h *AnalyticsHandlers) TrackEvent(c *gin.Context) {
	var incoming []models.Event
	if err := c.ShouldBindBodyWith(&incoming, binding.JSON); err != nil {
		// The snippet posts single events as a bare object.
		var single models.Event
		if err := c.ShouldBindBodyWith(&single, binding.JSON); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid request body"})
			return
		}
		incoming = []models.Event{single}
	}
	if len(incoming) == 0 {
		c.JSON(http.StatusAccepted, gin.H{"eventIds": []string{}})
		return
	}

	clientIP := c.ClientIP()
	userAgent := c.Request.UserAgent()
	for i := range incoming {
		incoming[i].IPAddress = clientIP
		if incoming[i].UserAgent == "" {
			incoming[i].UserAgent = userAgent
		}
	}

	ids, err := h.pipeline.Ingest(c.Request.Context(), incoming)
	if err != nil {
		var verr *models.ValidationError
		if errors.As(err, &verr) {
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Error()})
			return
		}
		log.Error().Err(err).Msg("failed to ingest tracking batch")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to record events"})
		return
	}

	c.JSON(http.StatusAccepted, gin.H{"eventIds": ids})
}
