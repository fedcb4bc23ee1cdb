package bot

import (
	"context"
	"io"
	"net/http"
	"time"

	"github.com/pkg/errors"

	"github.com/iamwavecut/phishguard/internal/content"
)

const FileDownloadTimeout = 30 * time.Second

// NewFileFetcher streams attachments from the bot file endpoint.
// A nil client gets one bounded by FileDownloadTimeout.
func NewFileFetcher(bot Transport, client *http.Client) content.FileFetcher {
	if client == nil {
		client = &http.Client{Timeout: FileDownloadTimeout}
	}
	return func(ctx context.Context, fileID string) (io.ReadCloser, error) {
		link, err := bot.GetFileDirectURL(fileID)
		if err != nil {
			return nil, errors.WithMessage(err, "cant get file url")
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
		if err != nil {
			return nil, errors.WithMessage(err, "cant build file request")
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, errors.WithMessage(err, "cant download file")
		}
		if resp.StatusCode != http.StatusOK {
			_ = resp.Body.Close()
			return nil, errors.Errorf("file download status %d", resp.StatusCode)
		}
		return resp.Body, nil
	}
}
