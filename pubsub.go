package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/mmdatafocus/sellerdash_backend/config"
	"github.com/mmdatafocus/sellerdash_backend/utils"
	"github.com/sirupsen/logrus"
)

// PubSubPushEnvelope is the body of a Pub/Sub push delivery.
type PubSubPushEnvelope struct {
	Message struct {
		Data []byte `json:"data,omitempty"`
		ID   string `json:"id"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// OrdersChangedMessage announces that a seller's order documents changed.
type OrdersChangedMessage struct {
	UserId        string `json:"user_id"`
	Source        string `json:"source,omitempty"`
	CorrelationId string `json:"correlation_id,omitempty"`
}

// ordersPubSubHandler reloads the seller's open views. Every delivery is
// acked with 204, including malformed ones, so Pub/Sub never retries.
func (h *handlers) ordersPubSubHandler(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		config.LogError(h.logger, handlersModule, "ordersPubSubHandler", "io.ReadAll", nil, err)
		c.Status(http.StatusNoContent)
		return
	}

	// byte slice unmarshalling handles base64 decoding.
	var envelope PubSubPushEnvelope
	if err := json.Unmarshal(body, &envelope); err != nil {
		config.LogError(h.logger, handlersModule, "ordersPubSubHandler", "Unmarshal body", string(body), err)
		c.Status(http.StatusNoContent)
		return
	}

	var m OrdersChangedMessage
	if err := json.Unmarshal(envelope.Message.Data, &m); err != nil {
		config.LogError(h.logger, handlersModule, "ordersPubSubHandler", "Unmarshal pubsub message", string(envelope.Message.Data), err)
		c.Status(http.StatusNoContent)
		return
	}
	if m.UserId == "" {
		config.LogError(h.logger, handlersModule, "ordersPubSubHandler", "Invalid pubsub message (missing user_id)", m, fmt.Errorf("user_id required"))
		c.Status(http.StatusNoContent)
		return
	}

	correlationId := m.CorrelationId
	if correlationId == "" {
		correlationId = envelope.Message.ID
	}
	ctx := utils.SetCorrelationIdInContext(c.Request.Context(), correlationId)

	reloaded := h.registry.OrdersChanged(ctx, m.UserId)
	h.logger.WithFields(logrus.Fields{
		"user_id":        m.UserId,
		"source":         m.Source,
		"message_id":     envelope.Message.ID,
		"correlation_id": correlationId,
		"reloaded":       reloaded,
	}).Info("orders changed")
	c.Status(http.StatusNoContent)
}
