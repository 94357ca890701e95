package handlers

import (
	"net/http"

	"go.uber.org/zap"

	"github.com/enrichflow/enrichflow/block"
)

// BlocksHandler serves the block catalog.
type BlocksHandler struct {
	registry *block.Registry
	logger   *zap.Logger
}

// NewBlocksHandler creates the block catalog handler.
func NewBlocksHandler(registry *block.Registry, logger *zap.Logger) *BlocksHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &BlocksHandler{registry: registry, logger: logger}
}

// HandleList serves GET /v1/blocks with every registered block type.
func (h *BlocksHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	keys := h.registry.Types()
	defs := make([]block.Definition, 0, len(keys))
	for _, key := range keys {
		if def, ok := h.registry.Definition(key); ok {
			defs = append(defs, def)
		}
	}
	WriteSuccess(w, defs)
}
