package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"sync/atomic"

	"contractanalyzer/internal/model"
)

// ProgressFunc receives the bytes written to the request body so far.
type ProgressFunc func(sent, total int64)

// countingReader reports bytes as the HTTP transport pulls them.
type countingReader struct {
	r        io.Reader
	sent     atomic.Int64
	total    int64
	progress ProgressFunc
}

func (cr *countingReader) Read(p []byte) (int, error) {
	n, err := cr.r.Read(p)
	if n > 0 {
		sent := cr.sent.Add(int64(n))
		if cr.progress != nil {
			cr.progress(sent, cr.total)
		}
	}
	return n, err
}

// Upload streams one file as multipart/form-data to the contracts or
// templates upload endpoint. Cancelling ctx aborts the transfer.
func (c *Client) Upload(ctx context.Context, target model.UploadTarget, filename string, r io.Reader, size int64, progress ProgressFunc) (*model.UploadResponse, error) {
	base, err := collectionPath(target)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, c.uploadTimeout)
	defer cancel()

	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)
	body := &countingReader{r: r, total: size, progress: progress}

	written := make(chan error, 1)
	go func() {
		err := writeFilePart(mw, filename, body)
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
		written <- err
	}()

	resp, err := c.send(ctx, http.MethodPost, base+"/upload", pr, mw.FormDataContentType())
	// Unblock the writer if the server answered before reading the whole body.
	pr.Close()
	writeErr := <-written
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read upload response: %w", err)
	}
	if err := checkStatus(resp.StatusCode, data); err != nil {
		return nil, err
	}
	if writeErr != nil {
		return nil, fmt.Errorf("failed to send %s: %w", filename, writeErr)
	}

	var out model.UploadResponse
	if len(data) > 0 {
		if err := json.Unmarshal(data, &out); err != nil {
			return nil, fmt.Errorf("failed to decode upload response: %w", err)
		}
	}
	if out.Error != "" {
		return nil, &Error{StatusCode: resp.StatusCode, Message: out.Error}
	}
	return &out, nil
}

func writeFilePart(mw *multipart.Writer, filename string, r io.Reader) error {
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, r)
	return err
}
