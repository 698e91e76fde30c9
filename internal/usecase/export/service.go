// Package export renders stored analyses as a browser bookmark file.
package export

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/kailas-cloud/stockmarks/internal/domain/bookmark"
	logpkg "github.com/kailas-cloud/stockmarks/internal/logger"
)

// Document is a rendered bookmark file ready for download.
type Document struct {
	FileName    string
	ContentType string
	Body        string
}

// Service exports the stored analyses.
type Service struct {
	analyses AnalysisLister
	linkBase string
	fileName string
}

// New creates an export service. Empty values fall back to the bookmark defaults.
func New(analyses AnalysisLister, linkBase, fileName string) *Service {
	if linkBase == "" {
		linkBase = bookmark.DefaultLinkBase
	}
	if fileName == "" {
		fileName = bookmark.DefaultFileName
	}
	return &Service{analyses: analyses, linkBase: linkBase, fileName: fileName}
}

// Export renders every completed analysis into one document.
func (s *Service) Export(ctx context.Context) (Document, error) {
	list, err := s.analyses.List(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("list analyses: %w", err)
	}

	body, err := Render(list, bookmark.WithLinkBase(s.linkBase))
	if err != nil {
		return Document{}, err
	}

	logpkg.FromContext(ctx).Debug("Bookmarks exported",
		zap.Int("analyses", len(list)),
		zap.Int("bytes", len(body)),
	)
	return Document{
		FileName:    s.fileName,
		ContentType: bookmark.MIMEType + "; charset=utf-8",
		Body:        body,
	}, nil
}
