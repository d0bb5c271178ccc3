package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/sirupsen/logrus"
	"golang.org/x/xerrors"

	"github.com/billybrichards/climate-parser/logging"
	"github.com/billybrichards/climate-parser/manager"
)

const previewLength = 100

// decodePayload reads and validates the body of POST /api/parse.
func (h *HTTPHandler) decodePayload(w http.ResponseWriter, r *http.Request) (string, *apiError) {
	if ct := r.Header.Get("Content-Type"); ct != "" {
		if mt, _, err := mime.ParseMediaType(ct); err != nil || mt != "application/json" {
			return "", validationError("Content-Type must be application/json")
		}
	}

	body := http.MaxBytesReader(w, r.Body, h.cfg.MaxBodyBytes)
	dec := json.NewDecoder(body)
	var payload RequestPayload
	if err := dec.Decode(&payload); err != nil {
		var (
			maxErr  *http.MaxBytesError
			typeErr *json.UnmarshalTypeError
		)
		switch {
		case errors.As(err, &maxErr):
			return "", &apiError{
				status:  http.StatusRequestEntityTooLarge,
				kind:    kindPayloadTooLarge,
				message: fmt.Sprintf("Request body must not exceed %d bytes", h.cfg.MaxBodyBytes),
			}
		case errors.As(err, &typeErr) && typeErr.Field == "text":
			return "", validationError("Field 'text' must be a string")
		case errors.Is(err, io.EOF):
			return "", validationError("Missing required field: text")
		default:
			return "", validationError("Request body must be a JSON object")
		}
	}

	if _, err := dec.Token(); err != io.EOF {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			return "", &apiError{
				status:  http.StatusRequestEntityTooLarge,
				kind:    kindPayloadTooLarge,
				message: fmt.Sprintf("Request body must not exceed %d bytes", h.cfg.MaxBodyBytes),
			}
		}
		return "", validationError("Request body must be a JSON object")
	}

	payload.Text = strings.TrimSpace(payload.Text)
	if err := h.validate.Struct(&payload); err != nil {
		return "", validationError("Missing required field: text")
	}
	if utf8.RuneCountInString(payload.Text) > h.cfg.MaxTextLength {
		return "", validationError(fmt.Sprintf("Field 'text' must not exceed %d characters", h.cfg.MaxTextLength))
	}
	return payload.Text, nil
}

// handleParse relays the caller's project description through the extractor and
// returns the model's JSON object verbatim.
func (h *HTTPHandler) handleParse(w http.ResponseWriter, r *http.Request) {
	text, verr := h.decodePayload(w, r)
	if verr != nil {
		h.logAndReturnError(w, r, verr)
		return
	}

	logger := requestLogger(r).WithField("text_length", len(text))
	logger.Info("parsing project text")
	if logger.Logger.IsLevelEnabled(logrus.DebugLevel) {
		logger.WithField("preview", logging.Truncate(text, previewLength)).Debug("project text preview")
	}

	// A client that disconnects does not cancel the upstream call; the result is
	// simply discarded.
	ctx := context.WithoutCancel(r.Context())

	done := h.tracker.StartUpstream("parse")
	defer done(manager.OutcomeAborted)
	result, err := h.extractor.Parse(ctx, text)
	if err != nil {
		e, outcome := h.upstreamError(r, xerrors.Errorf("parse project text: %w", err))
		done(outcome)
		h.logAndReturnError(w, r, e)
		return
	}
	done(manager.OutcomeOK)

	fields := logrus.Fields{"keys": len(result)}
	if summary, err := result.Summary(); err == nil {
		fields["title"] = summary.Title
		fields["status"] = summary.Status
	} else {
		logger.WithError(err).Debug("result does not match the suggested shape")
	}
	logger.WithFields(fields).Info("project text parsed")

	writeJSON(w, http.StatusOK, result)
}

// handleTestOpenAI runs a connectivity probe against the upstream service.
func (h *HTTPHandler) handleTestOpenAI(w http.ResponseWriter, r *http.Request) {
	done := h.tracker.StartUpstream("probe")
	defer done(manager.OutcomeAborted)
	res, err := h.prober.Probe(context.WithoutCancel(r.Context()))
	if err != nil {
		e, outcome := h.upstreamError(r, xerrors.Errorf("probe upstream: %w", err))
		done(outcome)
		h.logAndReturnError(w, r, e)
		return
	}
	done(manager.OutcomeOK)

	writeJSON(w, http.StatusOK, ProbeResponse{
		Status:      "OK",
		Model:       res.Model,
		Reply:       res.Reply,
		LatencyMS:   res.LatencyMS,
		TotalTokens: res.TotalTokens,
	})
}
