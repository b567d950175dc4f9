package minio

import (
	"context"
	"testing"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/blockfs"
	"github.com/hupe1980/blockfs/blockdev"
)

// TestDevice_Integration requires a running MinIO instance.
// Skip if not available.
func TestDevice_Integration(t *testing.T) {
	endpoint := "localhost:9000"
	accessKey := "minioadmin"
	secretKey := "minioadmin"
	bucket := "test-blockfs"

	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}

	ctx := context.Background()

	// Check if MinIO is reachable
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	exists, err := client.BucketExists(ctx, bucket)
	require.NoError(t, err)
	if !exists {
		require.NoError(t, client.MakeBucket(ctx, bucket, minio.MakeBucketOptions{}))
	}

	dev, err := Create(ctx, client, bucket, "test-volume/", 16)
	require.NoError(t, err)
	assert.Equal(t, 16, dev.BlockCount())

	// unwritten blocks read as zeros
	buf := make([]byte, blockdev.BlockSize)
	require.NoError(t, dev.ReadBlock(5, buf))
	assert.Equal(t, make([]byte, blockdev.BlockSize), buf)

	// a full mount/write/unmount cycle over object storage
	require.NoError(t, blockfs.Format(dev))
	v, err := blockfs.Mount(dev)
	require.NoError(t, err)
	require.NoError(t, v.Create("cloud.txt"))
	fd, err := v.Open("cloud.txt")
	require.NoError(t, err)
	_, err = v.Write(fd, []byte("stored remotely"))
	require.NoError(t, err)
	require.NoError(t, v.Close(fd))
	require.NoError(t, v.Unmount())

	// reopen from the geometry object alone
	dev2, err := Open(ctx, client, bucket, "test-volume/")
	require.NoError(t, err)
	assert.Equal(t, 16, dev2.BlockCount())

	v, err = blockfs.Mount(dev2)
	require.NoError(t, err)
	fd, err = v.Open("cloud.txt")
	require.NoError(t, err)
	got := make([]byte, 15)
	n, err := v.Read(fd, got)
	require.NoError(t, err)
	assert.Equal(t, "stored remotely", string(got[:n]))
	require.NoError(t, v.Unmount())
}

func TestOpenWithoutVolume(t *testing.T) {
	client, err := minio.New("localhost:9000", &minio.Options{
		Creds:  credentials.NewStaticV4("minioadmin", "minioadmin", ""),
		Secure: false,
	})
	if err != nil {
		t.Skipf("MinIO client creation failed: %v", err)
	}
	ctx := context.Background()
	if _, err := client.ListBuckets(ctx); err != nil {
		t.Skipf("MinIO not available: %v", err)
	}

	_, err = Open(ctx, client, "test-blockfs", "no-such-volume/")
	assert.ErrorIs(t, err, ErrNoVolume)
}
