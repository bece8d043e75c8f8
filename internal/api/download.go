package api

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"time"

	"contractanalyzer/internal/model"
)

// DownloadReport fetches a previously generated report.
func (c *Client) DownloadReport(ctx context.Context, id string, reportType model.ReportType) (*model.Download, error) {
	var path string
	switch reportType {
	case model.ReportRedlined:
		path = "/api/download-redlined-document"
	case model.ReportChangesTable:
		path = "/api/download-changes-table"
	default:
		return nil, fmt.Errorf("unknown report type %q", reportType)
	}
	return c.download(ctx, path, id)
}

// DownloadWordCOM fetches a generated Word track-changes document.
func (c *Client) DownloadWordCOM(ctx context.Context, id string) (*model.Download, error) {
	return c.download(ctx, "/api/download-word-com-redlined", id)
}

func (c *Client) download(ctx context.Context, path, id string) (*model.Download, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	resp, err := c.send(ctx, http.MethodGet, path+"?id="+url.QueryEscape(id), nil, "")
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read download: %w", err)
	}
	if err := checkStatus(resp.StatusCode, data); err != nil {
		return nil, err
	}

	return &model.Download{
		Filename:    filenameFrom(resp.Header.Get("Content-Disposition")),
		ContentType: resp.Header.Get("Content-Type"),
		Body:        data,
		FetchedAt:   time.Now(),
	}, nil
}

// filenameFrom extracts the filename parameter of a Content-Disposition header.
func filenameFrom(disposition string) string {
	if disposition == "" {
		return ""
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil {
		return ""
	}
	return params["filename"]
}
