package api

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"sync"
)

// ProgressFunc receives upload progress as a percentage in [0, 100].
type ProgressFunc func(percent float64)

// UploadFile describes the file part of a multipart upload.
//
// Open is called once per attempt so a refresh-and-retry can resend the body.
type UploadFile struct {
	Field       string // form field, defaults to "video"
	Name        string
	ContentType string
	Size        int64
	Open        func() (io.ReadCloser, error)
}

// progress keeps reported percentages monotonic across attempts.
type progress struct {
	mu   sync.Mutex
	last float64
	fn   ProgressFunc
}

func (p *progress) report(pct float64) {
	if p.fn == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if pct > 100 {
		pct = 100
	}
	if pct <= p.last {
		return
	}
	p.last = pct
	p.fn(pct)
}

func (p *progress) done() { p.report(100) }

type countingReader struct {
	r     io.Reader
	read  int64
	total int64
	p     *progress
}

func (c *countingReader) Read(b []byte) (int, error) {
	n, err := c.r.Read(b)
	c.read += int64(n)
	if c.total > 0 && n > 0 {
		pct := float64(c.read) / float64(c.total) * 100
		// 100 is reserved for the moment the whole body has been written.
		if pct >= 100 {
			pct = 99.9
		}
		c.p.report(pct)
	}
	return n, err
}

// Upload streams fields and file as multipart/form-data to POST path with the upload timeout.
//
// onProgress is called with non-decreasing values and receives 100 exactly once, after the
// server accepted the upload and before Upload returns successfully. The envelope data is decoded into out.
func (c *Client) Upload(ctx context.Context, path string, fields map[string]string, file UploadFile, onProgress ProgressFunc, out any) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = &Error{Kind: KindUnknown, Message: fmt.Sprintf("panic during upload: %v", r)}
		}
	}()

	if file.Open == nil {
		return &Error{Kind: KindValidation, Message: "no file to upload"}
	}
	if file.Field == "" {
		file.Field = "video"
	}

	p := &progress{fn: onProgress}
	var (
		mu       sync.Mutex
		writeErr error
	)

	body := func() (io.Reader, string, error) {
		src, err := file.Open()
		if err != nil {
			return nil, "", &Error{Kind: KindValidation, Message: "failed to open upload file", Err: err}
		}

		pr, pw := io.Pipe()
		mw := multipart.NewWriter(pw)
		go func() {
			defer src.Close()
			err := writeMultipart(mw, fields, file, &countingReader{r: src, total: file.Size, p: p})
			if err == nil {
				err = mw.Close()
			}
			mu.Lock()
			writeErr = err
			mu.Unlock()
			pw.CloseWithError(err)
		}()
		return pr, mw.FormDataContentType(), nil
	}

	ro := buildOptions([]RequestOption{WithTimeout(TimeoutUpload)})
	status, err := c.execute(ctx, http.MethodPost, path, ro, body, out)
	if err != nil {
		mu.Lock()
		werr := writeErr
		mu.Unlock()
		if werr != nil && KindOf(err) == KindNetwork {
			return &Error{Kind: KindNetwork, Status: status, Message: "failed to stream upload body", Err: werr}
		}
		return err
	}

	// 100 waits for an accepted response; a rejected attempt may already have written the whole body.
	p.done()
	return nil
}

func writeMultipart(mw *multipart.Writer, fields map[string]string, file UploadFile, src io.Reader) error {
	for k, v := range fields {
		if err := mw.WriteField(k, v); err != nil {
			return err
		}
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name=%q; filename=%q`, file.Field, file.Name))
	ct := file.ContentType
	if ct == "" {
		ct = "application/octet-stream"
	}
	h.Set("Content-Type", ct)

	part, err := mw.CreatePart(h)
	if err != nil {
		return err
	}
	_, err = io.Copy(part, src)
	return err
}
