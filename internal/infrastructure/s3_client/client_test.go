package s3_client

import (
	"bytes"
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewS3Client_PathStyleEndpoint(t *testing.T) {
	var (
		mu     sync.Mutex
		method string
		path   string
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.Copy(io.Discard, r.Body)
		mu.Lock()
		method, path = r.Method, r.URL.Path
		mu.Unlock()
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	err := NewS3Client(
		context.Background(),
		WithRegion("us-east-1"),
		WithEndpoint(srv.URL, true),
		WithStaticCredentials("display", "secret", ""),
		WithRetry(1, 0),
	)
	require.NoError(t, err)

	_, err = Client().PutObject(context.Background(), &s3.PutObjectInput{
		Bucket: aws.String("racks"),
		Key:    aws.String("history/history.json"),
		Body:   bytes.NewReader([]byte(`{"coolant_temp":[31.5]}`)),
	})
	require.NoError(t, err)

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, http.MethodPut, method)
	assert.Equal(t, "/racks/history/history.json", path)
}
