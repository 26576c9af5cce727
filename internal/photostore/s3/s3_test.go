package s3

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"testing"

	aws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	awsS3 "github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vbonduro/sitecheck/internal/photostore"
)

// mockRoundTripper is a fake S3 endpoint covering Put, Get, Head and Delete.
type mockRoundTripper struct {
	mu    sync.Mutex
	state map[string]stored
}

type stored struct {
	body        []byte
	contentType string
}

func (m *mockRoundTripper) RoundTrip(req *http.Request) (*http.Response, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	parts := strings.SplitN(strings.TrimPrefix(req.URL.Path, "/"), "/", 2)
	key := ""
	if len(parts) == 2 {
		key = parts[1]
	}
	empty := io.NopCloser(bytes.NewReader(nil))
	switch req.Method {
	case http.MethodPut:
		body, _ := io.ReadAll(req.Body)
		if strings.Contains(req.Header.Get("Content-Encoding"), "aws-chunked") {
			body = decodeChunked(body)
		}
		m.state[key] = stored{body: body, contentType: req.Header.Get("Content-Type")}
		return &http.Response{StatusCode: http.StatusOK, Body: empty, Header: http.Header{"ETag": {"\"etag\""}}}, nil
	case http.MethodHead, http.MethodGet:
		st, ok := m.state[key]
		if !ok {
			return &http.Response{StatusCode: http.StatusNotFound, Body: empty, Header: http.Header{}}, nil
		}
		body := empty
		if req.Method == http.MethodGet {
			body = io.NopCloser(bytes.NewReader(st.body))
		}
		return &http.Response{StatusCode: http.StatusOK, Body: body, Header: http.Header{
			"Content-Length": {strconv.Itoa(len(st.body))},
			"Content-Type":   {st.contentType},
			"ETag":           {"\"etag\""},
		}}, nil
	case http.MethodDelete:
		delete(m.state, key)
		return &http.Response{StatusCode: http.StatusNoContent, Body: empty, Header: http.Header{}}, nil
	}
	return &http.Response{StatusCode: http.StatusNotImplemented, Body: empty, Header: http.Header{}}, nil
}

// decodeChunked unwraps a single aws-chunked data frame.
func decodeChunked(b []byte) []byte {
	header, rest, ok := bytes.Cut(b, []byte("\r\n"))
	if !ok {
		return b
	}
	size, err := strconv.ParseInt(string(bytes.SplitN(header, []byte(";"), 2)[0]), 16, 64)
	if err != nil || int64(len(rest)) < size {
		return b
	}
	return rest[:size]
}

func newMockStore(t *testing.T) (*Store, *mockRoundTripper) {
	t.Helper()
	rt := &mockRoundTripper{state: make(map[string]stored)}
	awsCfg, err := config.LoadDefaultConfig(context.Background(),
		config.WithRegion("us-east-1"),
		config.WithCredentialsProvider(credentials.NewStaticCredentialsProvider("AKIA", "SECRET", "")),
	)
	require.NoError(t, err)
	s := NewFromConfig(awsCfg, Config{Bucket: "photos", Endpoint: "https://mock.s3.local", PathStyle: true},
		func(o *awsS3.Options) { o.HTTPClient = &http.Client{Transport: rt} })
	return s, rt
}

func TestStoreSaveGetDelete(t *testing.T) {
	s, rt := newMockStore(t)
	ctx := context.Background()

	key, err := s.Save(ctx, "prop-1/ev-1", "image/webp", strings.NewReader("fake webp"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(key, "prop-1/ev-1/"), key)
	assert.True(t, strings.HasSuffix(key, ".webp"), key)
	require.Contains(t, rt.state, key)
	assert.Equal(t, "fake webp", string(rt.state[key].body))

	body, contentType, err := s.Get(ctx, key)
	require.NoError(t, err)
	defer body.Close()
	data, err := io.ReadAll(body)
	require.NoError(t, err)
	assert.Equal(t, "fake webp", string(data))
	assert.Equal(t, "image/webp", contentType)

	require.NoError(t, s.Delete(ctx, key))
	assert.NotContains(t, rt.state, key)
}

func TestStoreMissingKeys(t *testing.T) {
	s, _ := newMockStore(t)
	ctx := context.Background()

	_, _, err := s.Get(ctx, "prop-1/missing.jpg")
	assert.ErrorIs(t, err, photostore.ErrNotFound)
	assert.ErrorIs(t, s.Delete(ctx, "prop-1/missing.jpg"), photostore.ErrNotFound)
}

func TestNewRequiresBucket(t *testing.T) {
	_, err := New(context.Background(), Config{})
	assert.ErrorContains(t, err, "bucket")
}

func TestNewFromConfigAppliesEndpoint(t *testing.T) {
	s := NewFromConfig(aws.Config{Region: "eu-west-1"}, Config{Bucket: "b", Endpoint: "http://minio:9000", PathStyle: true})
	opts := s.client.Options()
	assert.True(t, opts.UsePathStyle)
	assert.Equal(t, "http://minio:9000", aws.ToString(opts.BaseEndpoint))
	assert.Equal(t, "b", s.bucket)
}
