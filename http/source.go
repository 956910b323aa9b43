// Package http provides a blend.ByteSource backed by HTTP range
// requests, so remote .blend files can be indexed and decoded without
// downloading them. Block indexing reads only block headers, which
// keeps the request count proportional to the block count.
package http

import (
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
)

// Source implements random access reads via HTTP range requests.
// It satisfies blend.ByteSource (io.ReaderAt plus Size).
type Source struct {
	url     string
	client  *nethttp.Client
	headers nethttp.Header
	size    int64
}

// Option configures a Source.
type Option func(*Source)

// WithClient sets the HTTP client used for requests.
func WithClient(client *nethttp.Client) Option {
	return func(s *Source) {
		s.client = client
	}
}

// WithHeader sets a header sent on every request.
func WithHeader(key, value string) Option {
	return func(s *Source) {
		if s.headers == nil {
			s.headers = make(nethttp.Header)
		}
		s.headers.Set(key, value)
	}
}

// NewSource creates a Source for the given URL. It probes the remote
// with a HEAD request to learn the content size; the server must
// support range requests.
func NewSource(url string, opts ...Option) (*Source, error) {
	s := &Source{
		url:    url,
		client: nethttp.DefaultClient,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.client == nil {
		s.client = nethttp.DefaultClient
	}

	size, err := s.fetchSize()
	if err != nil {
		return nil, err
	}
	s.size = size
	return s, nil
}

// Size returns the total size of the remote content.
func (s *Source) Size() int64 {
	return s.size
}

// ReadAt reads from the remote at the given offset with a range request.
// Reads past the known content size are clamped and report io.EOF per
// the io.ReaderAt contract.
func (s *Source) ReadAt(p []byte, off int64) (int, error) {
	if len(p) == 0 {
		return 0, nil
	}
	if off < 0 {
		return 0, fmt.Errorf("read at %d: negative offset", off)
	}
	if off >= s.size {
		return 0, io.EOF
	}

	want := int64(len(p))
	if rest := s.size - off; rest < want {
		want = rest
	}

	body, err := s.fetchRange(off, want)
	if err != nil {
		return 0, err
	}
	defer body.Close()

	n, err := io.ReadFull(body, p[:want])
	if err == nil && int64(n) < int64(len(p)) {
		err = io.EOF
	}
	return n, err
}

// fetchRange requests n bytes starting at off and returns the response
// body on a 206. Every other status is an error; a 416 maps to io.EOF.
func (s *Source) fetchRange(off, n int64) (io.ReadCloser, error) {
	req, err := s.newRequest(nethttp.MethodGet)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Range", fmt.Sprintf("bytes=%d-%d", off, off+n-1))

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode == nethttp.StatusPartialContent {
		return resp.Body, nil
	}

	_ = resp.Body.Close()
	switch resp.StatusCode {
	case nethttp.StatusRequestedRangeNotSatisfiable:
		return nil, io.EOF
	case nethttp.StatusOK:
		return nil, errors.New("server does not support range requests")
	default:
		return nil, fmt.Errorf("range request failed: %s", resp.Status)
	}
}

func (s *Source) fetchSize() (int64, error) {
	req, err := s.newRequest(nethttp.MethodHead)
	if err != nil {
		return 0, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("probe %s: %w", s.url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != nethttp.StatusOK {
		return 0, fmt.Errorf("probe %s: %s", s.url, resp.Status)
	}
	if resp.ContentLength < 0 {
		return 0, fmt.Errorf("probe %s: unknown content length", s.url)
	}
	return resp.ContentLength, nil
}

func (s *Source) newRequest(method string) (*nethttp.Request, error) {
	req, err := nethttp.NewRequest(method, s.url, nil)
	if err != nil {
		return nil, err
	}
	for k, vs := range s.headers {
		for _, v := range vs {
			req.Header.Add(k, v)
		}
	}
	return req, nil
}
