package archive

import (
	"context"
	"os"
	"time"

	"github.com/valyala/fasthttp"

	"github.com/NVIDIA/gnssfetch/internal/cmn"
)

// TokenHttpArchive is the token-authenticated HTTPS variant (§6): it
// exchanges Credentials for a session cookie at LoginURL, then attaches
// that cookie to every subsequent request made through the embedded
// HttpArchive.
type TokenHttpArchive struct {
	*HttpArchive
	LoginURL string
	Creds    *Credentials

	cookie string
}

func NewTokenHttpArchive(base *Base, baseURL, loginURL string, creds *Credentials) *TokenHttpArchive {
	return &TokenHttpArchive{
		HttpArchive: NewHttpArchive(base, baseURL),
		LoginURL:    loginURL,
		Creds:       creds,
	}
}

func (a *TokenHttpArchive) Connect(ctx context.Context) error {
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)

	req.SetRequestURI(a.LoginURL)
	req.Header.SetMethod(fasthttp.MethodPost)
	req.PostArgs().Set("username", a.Creds.Username)
	req.PostArgs().Set("password", a.Creds.Password)

	if err := a.HttpArchive.do(ctx, req, resp); err != nil {
		return err
	}
	if resp.StatusCode() != fasthttp.StatusOK {
		return cmn.NewRetryableError(a.ArchiveName, errStatusf(resp.StatusCode()), time.Now().Add(time.Minute))
	}
	cookie := resp.Header.PeekCookie("session")
	if len(cookie) == 0 {
		return cmn.NewConfigError(a.ArchiveName, "login endpoint did not set a session cookie")
	}
	a.cookie = string(cookie)
	a.setConnected(true)
	return nil
}

func (a *TokenHttpArchive) Disconnect() error {
	a.cookie = ""
	a.setConnected(false)
	return nil
}

// Fetch connects if needed and then fetches through fetchWithCookie,
// which issues its own GET request carrying the session cookie.
func (a *TokenHttpArchive) Fetch(ctx context.Context, path, filename string) (string, error) {
	if !a.isConnected() {
		if err := a.Connect(ctx); err != nil {
			return "", err
		}
	}
	return a.fetchWithCookie(ctx, path, filename)
}

func (a *TokenHttpArchive) fetchWithCookie(ctx context.Context, path, filename string) (string, error) {
	resolved, err := FetchResolved(a.Base, func(p string) ([]string, error) { return a.listWithCookie(ctx, p) }, path, filename)
	if err != nil {
		return "", err
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)
	req.SetRequestURI(a.HttpArchive.url(path, resolved))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetCookie("session", a.cookie)

	if err := a.HttpArchive.do(ctx, req, resp); err != nil {
		return "", err
	}
	if resp.StatusCode() == fasthttp.StatusNotFound {
		return "", cmn.NewNotFoundError(path, resolved)
	}
	if resp.StatusCode() >= 500 {
		return "", cmn.NewRetryableError(a.ArchiveName, errStatusf(resp.StatusCode()), time.Now().Add(time.Minute))
	}
	body := append([]byte(nil), resp.Body()...)
	return writeTempFile("gnssfetch-tokenhttp-*.tmp", body)
}

func (a *TokenHttpArchive) listWithCookie(ctx context.Context, path string) ([]string, error) {
	if a.HttpArchive.ListParser == nil {
		return nil, cmn.NewConfigError(a.ArchiveName, "archive does not support directory listing")
	}
	req := fasthttp.AcquireRequest()
	resp := fasthttp.AcquireResponse()
	defer fasthttp.ReleaseRequest(req)
	defer fasthttp.ReleaseResponse(resp)
	req.SetRequestURI(a.HttpArchive.url(path, ""))
	req.Header.SetMethod(fasthttp.MethodGet)
	req.Header.SetCookie("session", a.cookie)
	if err := a.HttpArchive.do(ctx, req, resp); err != nil {
		return nil, err
	}
	return a.HttpArchive.ListParser(resp.Body()), nil
}

func errStatusf(code int) error {
	return cmn.NewConfigError("http", "unexpected status %d", code)
}

func writeTempFile(pattern string, body []byte) (string, error) {
	f, err := os.CreateTemp("", pattern)
	if err != nil {
		return "", err
	}
	defer f.Close()
	if _, err := f.Write(body); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
