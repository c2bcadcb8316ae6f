package archive

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
)

// HttpArchive is the http(s):// variant: a directory-listing-free
// fetch-by-URL archive. Listing (for wildcard resolution) depends on the
// server exposing a directory index; ListParser lets callers plug in the
// index format their server actually returns.
type HttpArchive struct {
	*Base
	BaseURL string
	Client  *fasthttp.Client
	ListParser func(body []byte) []string // parses a directory-index response into filenames
}

func NewHttpArchive(base *Base, baseURL string) *HttpArchive {
	return &HttpArchive{
		Base:    base,
		BaseURL: strings.TrimSuffix(baseURL, "/"),
		Client:  &fasthttp.Client{ReadTimeout: DefaultOperationTimeout, WriteTimeout: DefaultOperationTimeout},
	}
}

func (a *HttpArchive) url(path, filename string) string {
	return fmt.Sprintf("%s/%s/%s", a.BaseURL, strings.Trim(path, "/"), filename)
}

func (a *HttpArchive) Connect(_ context.Context) error {
	a.setConnected(true)
	return nil
}

func (a *HttpArchive) Disconnect() error {
	a.setConnected(false)
	return nil
}

func (a *HttpArchive) List(ctx context.Context, path string) ([]string, error) {
	if a.ListParser == nil {
		return nil, cmn.NewConfigError(a.ArchiveName, "archive does not support directory listing")
	}
	body, _, err := a.doGET(ctx, a.url(path, ""))
	if err != nil {
		return nil, err
	}
	return a.ListParser(body), nil
}

func (a *HttpArchive) Fetch(ctx context.Context, path, filename string) (string, error) {
	resolved, err := FetchResolved(a.Base, func(p string) ([]string, error) { return a.List(ctx, p) }, path, filename)
	if err != nil {
		return "", err
	}
	body, status, err := a.doGET(ctx, a.url(path, resolved))
	if err != nil {
		return "", err
	}
	if status == fasthttp.StatusNotFound {
		return "", cmn.NewNotFoundError(path, resolved)
	}
	if status >= 500 {
		return "", cmn.NewRetryableError(a.ArchiveName, fmt.Errorf("http %d", status), time.Now().Add(time.Minute))
	}
	if status >= 400 {
		return "", cmn.NewConfigError(a.ArchiveName, "http %d fetching %s", status, resolved)
	}

	tmp, err := os.CreateTemp("", "gnssfetch-http-*.tmp")
	if err != nil {
		return "", err
	}
	defer tmp.Close()
	if _, err := tmp.Write(body); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}

	if err := ReconnectIfBudgetExceeded(ctx, a.Base, a.Disconnect, a.Connect); err != nil {
		os.Remove(tmp.Name())
		return "", err
	}
	return tmp.Name(), nil
}

func (a *HttpArchive) Store(_ context.Context, _, _, _ string) error {
	return cmn.NewConfigError(a.ArchiveName, "http(s) archive is read-only")
}

func (a *HttpArchive) Exists(ctx context.Context, path, filename string) (bool, error) {
	code, err := a.doHEAD(ctx, a.url(path, filename))
	if err != nil {
		return false, err
	}
	return code == fasthttp.StatusOK, nil
}

func (a *HttpArchive) doGET(ctx context.Context, url string) ([]byte, int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)
	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodGet)

	if err := a.do(ctx, req, resp); err != nil {
		return nil, 0, err
	}
	body := append([]byte(nil), resp.Body()...)
	return body, resp.StatusCode(), nil
}

func (a *HttpArchive) doHEAD(ctx context.Context, url string) (int, error) {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)
	req.SetRequestURI(url)
	req.Header.SetMethod(fasthttp.MethodHead)

	if err := a.do(ctx, req, resp); err != nil {
		return 0, err
	}
	return resp.StatusCode(), nil
}

func (a *HttpArchive) do(ctx context.Context, req *fasthttp.Request, resp *fasthttp.Response) error {
	deadline, hasDeadline := ctx.Deadline()
	var err error
	if hasDeadline {
		err = a.Client.DoDeadline(req, resp, deadline)
	} else {
		err = a.Client.DoTimeout(req, resp, DefaultOperationTimeout)
	}
	if err != nil {
		return cmn.NewRetryableError(a.ArchiveName, err, time.Now().Add(time.Minute))
	}
	return nil
}
