package publish

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/platinummonkey/pawndoc/pkg/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeS3 struct {
	objects map[string][]byte
	types   map[string]string
	failOn  string
}

func newFakeS3() *fakeS3 {
	return &fakeS3{objects: map[string][]byte{}, types: map[string]string{}}
}

func (f *fakeS3) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	key := aws.ToString(in.Key)
	if key == f.failOn {
		return nil, errors.New("access denied")
	}
	data, err := io.ReadAll(in.Body)
	if err != nil {
		return nil, err
	}
	f.objects[aws.ToString(in.Bucket)+"/"+key] = data
	f.types[key] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func TestKeys(t *testing.T) {
	tests := []struct {
		prefix   string
		manifest string
		file     string
	}{
		{"updater/", "updater/update-p.txt", "updater/plugins/p.smx"},
		{"/a/b", "a/b/update-p.txt", "a/b/plugins/p.smx"},
		{"", "update-p.txt", "plugins/p.smx"},
	}

	for _, tt := range tests {
		t.Run(tt.prefix, func(t *testing.T) {
			p := NewS3PublisherWithClient(newFakeS3(), "bucket", tt.prefix, nil)
			assert.Equal(t, tt.manifest, p.ManifestKey("p"))
			assert.Equal(t, tt.file, p.FileKey("plugins/p.smx"))
		})
	}

	p := NewS3PublisherWithClient(newFakeS3(), "bucket", "x", nil)
	assert.Equal(t, "x/etc/passwd", p.FileKey("../../etc/passwd"))
}

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestPublish(t *testing.T) {
	dir := t.TempDir()
	client := newFakeS3()
	p := NewS3PublisherWithClient(client, "plugins-bucket", "updater", nil)

	keys, err := p.Publish(context.Background(), &Request{
		Name:     "p",
		Manifest: writeFile(t, dir, "update-p.txt", `"Updater" {}`),
		Files: []File{
			{Rel: "plugins/p.smx", Local: writeFile(t, dir, "p.smx", "FFPS")},
			{Rel: "scripting/p.sp", Local: writeFile(t, dir, "p.sp", "// src")},
		},
	})
	require.NoError(t, err)

	assert.Equal(t, []string{"updater/plugins/p.smx", "updater/scripting/p.sp", "updater/update-p.txt"}, keys)
	assert.Equal(t, []byte("FFPS"), client.objects["plugins-bucket/updater/plugins/p.smx"])
	assert.Equal(t, "application/octet-stream", client.types["updater/plugins/p.smx"])
	assert.Equal(t, "text/plain; charset=utf-8", client.types["updater/update-p.txt"])
}

func TestPublish_Failures(t *testing.T) {
	dir := t.TempDir()

	t.Run("file failure skips manifest", func(t *testing.T) {
		client := newFakeS3()
		client.failOn = "u/scripting/p.sp"
		p := NewS3PublisherWithClient(client, "b", "u", nil)

		keys, err := p.Publish(context.Background(), &Request{
			Name:     "p",
			Manifest: writeFile(t, dir, "m.txt", "m"),
			Files: []File{
				{Rel: "plugins/p.smx", Local: writeFile(t, dir, "p.smx", "x")},
				{Rel: "scripting/p.sp", Local: writeFile(t, dir, "p.sp", "x")},
			},
		})
		assert.ErrorIs(t, err, ErrUploadFailed)
		assert.Equal(t, []string{"u/plugins/p.smx"}, keys)
		assert.NotContains(t, client.objects, "b/u/update-p.txt")
	})

	t.Run("manifest failure after files", func(t *testing.T) {
		client := newFakeS3()
		client.failOn = "u/update-p.txt"
		p := NewS3PublisherWithClient(client, "b", "u", nil)

		keys, err := p.Publish(context.Background(), &Request{
			Name:     "p",
			Manifest: writeFile(t, dir, "m.txt", "m"),
			Files:    []File{{Rel: "plugins/p.smx", Local: writeFile(t, dir, "p.smx", "x")}},
		})
		assert.ErrorIs(t, err, ErrUploadFailed)
		assert.Equal(t, []string{"u/plugins/p.smx"}, keys)
	})

	t.Run("missing local file", func(t *testing.T) {
		p := NewS3PublisherWithClient(newFakeS3(), "b", "u", nil)
		_, err := p.Publish(context.Background(), &Request{Name: "p", Manifest: filepath.Join(dir, "nope")})
		assert.ErrorIs(t, err, ErrUploadFailed)
	})

	t.Run("nil request", func(t *testing.T) {
		p := NewS3PublisherWithClient(newFakeS3(), "b", "u", nil)
		_, err := p.Publish(context.Background(), nil)
		assert.Error(t, err)
	})
}

func TestNewS3Publisher(t *testing.T) {
	_, err := NewS3Publisher(context.Background(), config.S3Config{}, nil)
	assert.ErrorIs(t, err, ErrNoBucket)

	p, err := NewS3Publisher(context.Background(), config.S3Config{
		Bucket:       "b",
		Prefix:       "updater/",
		Region:       "us-east-1",
		Endpoint:     "http://localhost:9000",
		AccessKey:    "minio",
		SecretKey:    "minio123",
		UsePathStyle: true,
	}, nil)
	require.NoError(t, err)
	assert.Equal(t, "updater/update-x.txt", p.ManifestKey("x"))
}
