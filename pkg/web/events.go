package web

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"

	"github.com/gofiber/fiber/v3"
	"github.com/valyala/fasthttp"

	"github.com/fera765/flui/pkg/tracker"
)

// StreamExecutionEvents serves the tracked run as server-sent events: one
// data frame per log entry, then a "status" event with the final status.
// A client disconnecting only unsubscribes.
func (h *APIHandlers) StreamExecutionEvents(c fiber.Ctx) error {
	id := c.Params("id")

	ctx, cancel := context.WithCancel(context.Background())

	stream, unsubscribe, err := h.tracker.Subscribe(ctx, id)
	if err != nil {
		cancel()

		return handleServiceError(c, err)
	}

	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Set(fiber.HeaderConnection, "keep-alive")

	c.Response().SetBodyStreamWriter(h.streamEvents(id, stream, func() {
		unsubscribe()
		cancel()
	}))

	return nil
}

// streamEvents writes stream until it closes or the client goes away, then
// calls done.
func (h *APIHandlers) streamEvents(id string, stream <-chan tracker.Event, done func()) fasthttp.StreamWriter {
	return func(w *bufio.Writer) {
		defer done()

		for event := range stream {
			if err := writeEvent(w, event); err != nil {
				h.logger.Debug("event stream closed by client", "automation_id", id, "error", err)
				return
			}
		}
	}
}

func writeEvent(w *bufio.Writer, event tracker.Event) error {
	var (
		name    string
		payload any
	)

	switch event.Type {
	case tracker.EventLog:
		payload = event.Log
	case tracker.EventStatus:
		name, payload = "status", event.Status
	default:
		return nil
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}

	if name != "" {
		if _, err := fmt.Fprintf(w, "event: %s\n", name); err != nil {
			return err
		}
	}

	if _, err := fmt.Fprintf(w, "data: %s\n\n", data); err != nil {
		return err
	}

	return w.Flush()
}
