package server

import (
	"fmt"
	"strconv"

	"github.com/labstack/echo/v4"

	apperrors "github.com/ginger-society/ginger-ws/internal/errors"
	"github.com/ginger-society/ginger-ws/internal/mailer"
	"github.com/ginger-society/ginger-ws/internal/metrics"
	"github.com/ginger-society/ginger-ws/internal/queue"
)

type publishRequest struct {
	Message string `json:"message"`
}

type sendEmailRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Message string `json:"message"`
	ReplyTo string `json:"reply_to"`
}

// handleChannelPublish wraps the message in a broker envelope and publishes
// it to the fanout exchange. Delivery to subscribers happens when the queue
// bridge consumes it back.
func (s *Server) handleChannelPublish(c echo.Context) error {
	channelID := c.Param("channel")

	var req publishRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Message == "" {
		return apperrors.ValidationError("message must not be empty")
	}

	env := queue.Envelope{ChannelID: channelID, Message: req.Message}
	if err := s.publisher.Publish(c.Request().Context(), env); err != nil {
		metrics.PublishesTotal.WithLabelValues("channel", "error").Inc()
		return apperrors.ExternalError("failed to publish message", err).
			WithField("channel", channelID)
	}

	metrics.PublishesTotal.WithLabelValues("channel", "ok").Inc()
	return c.JSON(200, map[string]string{"status": "Message sent"})
}

// handleGroupPublish resolves the group to member ids and publishes the
// message once per member, each member id doubling as a channel name.
// Per-member failures do not abort the loop, the response reports every
// member's outcome in resolution order.
func (s *Server) handleGroupPublish(c echo.Context) error {
	group := c.Param("group")
	ctx := c.Request().Context()

	var req publishRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.Message == "" {
		return apperrors.ValidationError("message must not be empty")
	}

	token := c.Get(ctxRawToken).(string)
	ids, err := s.resolver.GroupMemberIDs(ctx, group, token)
	if err != nil {
		return apperrors.ExternalError("failed to resolve group members", err).
			WithField("group", group)
	}

	results := make([]string, 0, len(ids))
	for _, id := range ids {
		env := queue.Envelope{
			ChannelID: strconv.FormatInt(id, 10),
			Message:   req.Message,
		}
		if err := s.publisher.Publish(ctx, env); err != nil {
			metrics.PublishesTotal.WithLabelValues("group", "error").Inc()
			results = append(results, fmt.Sprintf("Failed to send message for ID: %d: %v", id, err))
			continue
		}
		metrics.PublishesTotal.WithLabelValues("group", "ok").Inc()
		results = append(results, fmt.Sprintf("Message sent for ID: %d", id))
	}

	return c.JSON(200, map[string]any{"results": results})
}

func (s *Server) handleSendEmail(c echo.Context) error {
	var req sendEmailRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.ValidationError("invalid request body")
	}
	if req.To == "" {
		return apperrors.ValidationError("to must not be empty")
	}
	if req.Subject == "" {
		return apperrors.ValidationError("subject must not be empty")
	}
	if req.Message == "" {
		return apperrors.ValidationError("message must not be empty")
	}

	email := mailer.Email{
		To:      req.To,
		Subject: req.Subject,
		Message: req.Message,
		ReplyTo: req.ReplyTo,
	}
	if err := s.mailer.Send(c.Request().Context(), email); err != nil {
		return apperrors.ExternalError("failed to send email", err)
	}

	return c.JSON(200, map[string]string{"status": "Email sent"})
}
