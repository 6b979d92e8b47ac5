package bucket

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeObject struct {
	size     int64
	modified time.Time
}

type fakeStore struct {
	objects      map[string]fakeObject
	puts         []string
	contentTypes map[string]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		objects:      make(map[string]fakeObject),
		contentTypes: make(map[string]string),
	}
}

func (f *fakeStore) HeadObject(_ context.Context, in *s3.HeadObjectInput, _ ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
	o, ok := f.objects[aws.ToString(in.Key)]
	if !ok {
		return nil, &types.NotFound{}
	}
	return &s3.HeadObjectOutput{
		ContentLength: aws.Int64(o.size),
		LastModified:  aws.Time(o.modified),
	}, nil
}

func (f *fakeStore) PutObject(_ context.Context, in *s3.PutObjectInput, _ ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.puts = append(f.puts, aws.ToString(in.Key))
	f.contentTypes[aws.ToString(in.Key)] = aws.ToString(in.ContentType)
	return &s3.PutObjectOutput{}, nil
}

func writeDataset(t *testing.T, dir, rel, content string) string {
	t.Helper()
	path := filepath.Join(dir, rel)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestParseBucketURL(t *testing.T) {
	b, p, err := ParseBucketURL("s3://treaty-maps/atlas")
	require.NoError(t, err)
	assert.Equal(t, "treaty-maps", b)
	assert.Equal(t, "atlas", p)

	b, p, err = ParseBucketURL("treaty-maps")
	require.NoError(t, err)
	assert.Equal(t, "treaty-maps", b)
	assert.Equal(t, "", p)

	_, _, err = ParseBucketURL("s3://")
	assert.Error(t, err)
}

func TestSyncUploadsNewFiles(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, "datasets/ndvi_aoi.tif", "tif bytes")
	writeDataset(t, dir, "processed/fire/perimeters.geojson", `{"type":"FeatureCollection","features":[]}`)

	store := newFakeStore()
	s := &Syncer{store: store, Bucket: "treaty-maps", Prefix: "atlas"}

	res, err := s.Sync(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 2, res.Uploaded)
	assert.Equal(t, 0, res.Skipped)

	assert.Contains(t, store.puts, "atlas/datasets/ndvi_aoi.tif")
	assert.Contains(t, store.puts, "atlas/processed/fire/perimeters.geojson")
	assert.Equal(t, "image/tiff", store.contentTypes["atlas/datasets/ndvi_aoi.tif"])
	assert.Equal(t, "application/geo+json", store.contentTypes["atlas/processed/fire/perimeters.geojson"])
}

func TestSyncSkipsUnchanged(t *testing.T) {
	dir := t.TempDir()
	path := writeDataset(t, dir, "ndvi_aoi.tif", "tif bytes")
	info, err := os.Stat(path)
	require.NoError(t, err)

	store := newFakeStore()
	store.objects["ndvi_aoi.tif"] = fakeObject{
		size:     info.Size(),
		modified: time.Now().Add(time.Hour),
	}
	s := &Syncer{store: store, Bucket: "treaty-maps"}

	res, err := s.Sync(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Uploaded)
	assert.Equal(t, 1, res.Skipped)
	assert.Empty(t, store.puts)
}

func TestSyncReuploadsChangedSize(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, "ndvi_aoi.tif", "tif bytes")

	store := newFakeStore()
	store.objects["ndvi_aoi.tif"] = fakeObject{
		size:     1,
		modified: time.Now().Add(time.Hour),
	}
	s := &Syncer{store: store, Bucket: "treaty-maps"}

	res, err := s.Sync(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Uploaded)
}

func TestSyncReuploadsNewerLocal(t *testing.T) {
	dir := t.TempDir()
	path := writeDataset(t, dir, "ndvi_aoi.tif", "tif bytes")
	info, err := os.Stat(path)
	require.NoError(t, err)

	store := newFakeStore()
	store.objects["ndvi_aoi.tif"] = fakeObject{
		size:     info.Size(),
		modified: time.Now().Add(-24 * time.Hour),
	}
	s := &Syncer{store: store, Bucket: "treaty-maps"}

	res, err := s.Sync(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Uploaded)
}

func TestSyncDryRun(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, "ndvi_aoi.tif", "tif bytes")

	store := newFakeStore()
	s := &Syncer{store: store, Bucket: "treaty-maps", DryRun: true}

	res, err := s.Sync(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Uploaded)
	assert.Empty(t, store.puts)
}

func TestSyncSkipsDotfiles(t *testing.T) {
	dir := t.TempDir()
	writeDataset(t, dir, ".ndvi_aoi.tif.tmp123", "partial write")
	writeDataset(t, dir, ".cache/old.tif", "stale")

	store := newFakeStore()
	s := &Syncer{store: store, Bucket: "treaty-maps"}

	res, err := s.Sync(context.Background(), dir)
	require.NoError(t, err)
	assert.Equal(t, 0, res.Uploaded)
	assert.Equal(t, 0, res.Skipped)
}
