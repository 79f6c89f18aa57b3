package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"

	"github.com/holiman/uint256"
	"github.com/raiden-network/raiden-libs-go/pkg/messages"
	"github.com/raiden-network/raiden-libs-go/pkg/persistence"
)

const maxMessageBytes = 1 << 20

// SubmitResponse is returned by POST /messages
type SubmitResponse struct {
	Key  string               `json:"key"`
	Type messages.MessageType `json:"type"`
	// Signers maps each signature field to the address it recovers to.
	Signers map[string]string `json:"signers,omitempty"`
}

// ListResponse is returned by GET /messages
type ListResponse struct {
	Messages []*persistence.StoredMessage `json:"messages"`
}

type HealthResponse struct {
	Status string `json:"status"`
	Error  string `json:"error,omitempty"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}

// handleSubmitMessage handles POST /messages
func (s *Server) handleSubmitMessage(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err != nil {
		writeError(w, http.StatusRequestEntityTooLarge, fmt.Sprintf("failed to read body: %v", err))
		return
	}

	msg, err := messages.DeserializeBytes(body)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	expected := uint256.NewInt(uint64(s.cfg.ChainID))
	if !msg.ChainID().Eq(expected) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("chain id %s does not match service chain %s", msg.ChainID().Dec(), expected.Dec()))
		return
	}

	signers, err := s.recoverSigners(msg)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := persistence.NewStoredMessage(msg, s.now())
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	existing, err := s.store.LoadMessage(record.Key)
	if err != nil {
		s.logger.Sugar().Errorw("Failed to load message", "key", record.Key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load message")
		return
	}

	status := http.StatusOK
	if existing == nil {
		if err := s.store.SaveMessage(record); err != nil {
			s.logger.Sugar().Errorw("Failed to save message", "key", record.Key, "error", err)
			writeError(w, http.StatusInternalServerError, "failed to save message")
			return
		}
		status = http.StatusCreated
		s.logger.Sugar().Infow("Stored message",
			"request_id", RequestID(r.Context()),
			"key", record.Key,
			"type", record.Type,
		)
	}

	writeJSON(w, status, SubmitResponse{
		Key:     record.Key,
		Type:    record.Type,
		Signers: signers,
	})
}

// recoverSigners recovers every signature the message carries. Signatures
// that fail to recover are an error only when signatures are required.
func (s *Server) recoverSigners(msg messages.Message) (map[string]string, error) {
	domains := messages.Domains(msg)

	names := make([]string, 0, len(domains))
	for name := range domains {
		names = append(names, name)
	}
	sort.Strings(names)

	signers := make(map[string]string, len(domains))
	for _, name := range names {
		d := domains[name]
		if d.Signature() == "" {
			if s.cfg.RequireSignatures && name == "signature" {
				return nil, fmt.Errorf("%w: signature", messages.ErrMissingField)
			}
			continue
		}
		addr, err := messages.RecoverSigner(d)
		if err != nil {
			if s.cfg.RequireSignatures {
				return nil, fmt.Errorf("invalid %s: %w", name, err)
			}
			s.logger.Sugar().Debugw("Ignoring unrecoverable signature", "field", name, "error", err)
			continue
		}
		signers[name] = addr.Hex()
	}
	return signers, nil
}

// handleGetMessage handles GET /messages/{key}
func (s *Server) handleGetMessage(w http.ResponseWriter, r *http.Request) {
	key := r.PathValue("key")
	if _, err := persistence.ParseMessageKey(key); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	record, err := s.store.LoadMessage(key)
	if err != nil {
		s.logger.Sugar().Errorw("Failed to load message", "key", key, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to load message")
		return
	}
	if record == nil {
		writeError(w, http.StatusNotFound, "message not found")
		return
	}

	writeJSON(w, http.StatusOK, record)
}

// handleListMessages handles GET /messages
func (s *Server) handleListMessages(w http.ResponseWriter, r *http.Request) {
	msgType := messages.MessageType(r.URL.Query().Get("type"))
	if msgType != "" && !messages.IsRegistered(msgType) {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("%v: %q", messages.ErrUnknownMessageType, msgType))
		return
	}

	records, err := s.store.ListMessages(msgType)
	if err != nil {
		s.logger.Sugar().Errorw("Failed to list messages", "type", msgType, "error", err)
		writeError(w, http.StatusInternalServerError, "failed to list messages")
		return
	}
	if records == nil {
		records = []*persistence.StoredMessage{}
	}

	writeJSON(w, http.StatusOK, ListResponse{Messages: records})
}

// handleHealth handles GET /health
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	if err := s.store.HealthCheck(); err != nil {
		status := http.StatusServiceUnavailable
		if errors.Is(err, persistence.ErrClosed) {
			status = http.StatusGone
		}
		writeJSON(w, status, HealthResponse{Status: "unhealthy", Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, HealthResponse{Status: "ok"})
}
