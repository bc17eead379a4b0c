// Package markdown renders crawled HTML into Markdown, either in-process
// or through the external gRPC conversion service.
package markdown

import (
	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/common"
	"github.com/fortai-labs/firmata/internal/interfaces"
)

const (
	ModeGRPC  = "grpc"
	ModeLocal = "local"
)

// New builds the converter selected by cfg.Mode. An empty mode falls back
// to the local converter.
func New(cfg common.MarkdownConfig, logger arbor.ILogger) (interfaces.MarkdownConverter, error) {
	switch cfg.Mode {
	case ModeGRPC:
		return NewGRPCConverter(cfg, logger)
	case ModeLocal, "":
		return NewLocalConverter(logger), nil
	default:
		return nil, common.InvalidInputf("unknown markdown mode: %s", cfg.Mode)
	}
}
