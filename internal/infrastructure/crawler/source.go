package crawler

import (
	"context"
	"fmt"
	"log/slog"

	"NewsCrawler/internal/domain"
	"NewsCrawler/internal/ports"
	"NewsCrawler/internal/scanner"
)

// ChannelSource implements RecordSource via registered crawler channels.
// The standard channel always runs; the wechat channel only when the
// request allows it.
type ChannelSource struct {
	registry *scanner.Registry
	resolver *Resolver
	logger   *slog.Logger
}

var _ ports.RecordSource = (*ChannelSource)(nil)

// NewChannelSource wires the crawler registry with the media-name resolver.
func NewChannelSource(reg *scanner.Registry, resolver *Resolver, logger *slog.Logger) *ChannelSource {
	return &ChannelSource{
		registry: reg,
		resolver: resolver,
		logger:   logger,
	}
}

// Fetch resolves media names to sites and executes each enabled channel,
// aggregating records and per-source failure counts.
func (s *ChannelSource) Fetch(ctx context.Context, params domain.CrawlParams) ([]domain.RawRecord, int, error) {
	if s.registry == nil {
		return nil, 0, fmt.Errorf("crawler registry is not configured")
	}

	sites := s.resolver.Resolve(params.MediaNames)
	s.debug("fetch", "sites", len(sites), "keywords", len(params.Keywords), "wechat", params.AllowWechat)

	req := scanner.Request{
		Keywords:    params.Keywords,
		Sites:       sites,
		StartDate:   params.StartDate,
		EndDate:     params.EndDate,
		UseAdvanced: params.UseAdvanced,
	}

	channels := []string{domain.ChannelStandard}
	if params.AllowWechat {
		channels = append(channels, domain.ChannelWechat)
	}

	var (
		aggregated []domain.RawRecord
		failed     int
	)
	for _, name := range channels {
		crawler, err := s.registry.Resolve(name)
		if err != nil {
			return nil, failed, fmt.Errorf("channel %s: %w", name, err)
		}

		records, channelFailed, err := crawler.Crawl(ctx, req)
		if err != nil {
			return aggregated, failed, fmt.Errorf("crawl channel %s: %w", name, err)
		}
		failed += channelFailed

		for i := range records {
			if records[i].Channel == "" {
				records[i].Channel = name
			}
		}
		s.debug("channel produced records", "channel", name, "count", len(records), "failed_sources", channelFailed)
		aggregated = append(aggregated, records...)
	}

	s.debug("channel source done", "total_records", len(aggregated), "failed_sources", failed)
	return aggregated, failed, nil
}

func (s *ChannelSource) debug(msg string, args ...any) {
	if s.logger != nil {
		s.logger.Debug(msg, args...)
	}
}
