package markdown

import (
	"context"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/ternarybob/arbor"

	"github.com/fortai-labs/firmata/internal/common"
	"github.com/fortai-labs/firmata/internal/interfaces"
	"github.com/fortai-labs/firmata/internal/services/markdown/pb"
)

const convertMethod = "/markdown.MarkdownConverter/ConvertHtmlToMarkdown"

// GRPCConverter sends HTML to the external markdown conversion service.
type GRPCConverter struct {
	conn    *grpc.ClientConn
	timeout time.Duration
	logger  arbor.ILogger
}

var _ interfaces.MarkdownConverter = (*GRPCConverter)(nil)

// NewGRPCConverter connects to the conversion service at cfg.ServiceURL.
// The connection is lazy; the first Convert call triggers the dial.
func NewGRPCConverter(cfg common.MarkdownConfig, logger arbor.ILogger) (*GRPCConverter, error) {
	conn, err := grpc.NewClient(cfg.ServiceURL,
		grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, common.MarkdownError(err)
	}

	timeout := time.Duration(cfg.TimeoutSeconds) * time.Second

	logger.Info().
		Str("service_url", cfg.ServiceURL).
		Dur("timeout", timeout).
		Msg("Using gRPC markdown converter")

	return &GRPCConverter{
		conn:    conn,
		timeout: timeout,
		logger:  logger,
	}, nil
}

func (c *GRPCConverter) Convert(ctx context.Context, htmlContent, url string, metadata map[string]string) (*interfaces.MarkdownResult, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req := &pb.ConversionRequest{
		HtmlContent: htmlContent,
		Url:         url,
		Metadata:    metadata,
	}
	resp := &pb.ConversionResponse{}

	start := time.Now()
	if err := c.conn.Invoke(ctx, convertMethod, req, resp); err != nil {
		return nil, common.MarkdownError(err)
	}

	c.logger.Debug().
		Str("url", url).
		Int("html_bytes", len(htmlContent)).
		Int("markdown_bytes", len(resp.MarkdownContent)).
		Dur("duration", time.Since(start)).
		Msg("Converted HTML to markdown")

	return &interfaces.MarkdownResult{
		Markdown:       resp.MarkdownContent,
		ExtractedLinks: resp.ExtractedLinks,
		Metadata:       resp.Metadata,
	}, nil
}

func (c *GRPCConverter) Close() error {
	return c.conn.Close()
}
