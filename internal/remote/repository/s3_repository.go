package repository

import (
	"context"
	"fmt"
	"io"
	"os"
	"path"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"

	"github.com/clipforge/shorts-engine/internal/remote"
)

type s3Store struct {
	client        *s3.Client
	preSignClient *s3.PresignClient
	bucket        string
}

func NewS3Store(client *s3.Client, preSignClient *s3.PresignClient, bucket string) remote.Store {
	return &s3Store{
		client:        client,
		preSignClient: preSignClient,
		bucket:        bucket,
	}
}

// List returns the objects under a folder prefix, optionally filtered by a
// name substring. Folder entries are synthesized from common prefixes.
func (s *s3Store) List(ctx context.Context, folderID, query string) ([]remote.File, error) {
	prefix := normalizeFolder(folderID)
	delimiter := "/"
	res, err := s.client.ListObjectsV2(ctx, &s3.ListObjectsV2Input{
		Bucket:    &s.bucket,
		Prefix:    &prefix,
		Delimiter: &delimiter,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list objects: %w", err)
	}

	var files []remote.File
	for _, cp := range res.CommonPrefixes {
		name := strings.TrimSuffix(strings.TrimPrefix(*cp.Prefix, prefix), "/")
		if query != "" && !strings.Contains(name, query) {
			continue
		}
		files = append(files, remote.File{ID: *cp.Prefix, Name: name, IsFolder: true})
	}
	for _, obj := range res.Contents {
		name := strings.TrimPrefix(*obj.Key, prefix)
		if name == "" {
			continue // the folder marker itself
		}
		if query != "" && !strings.Contains(name, query) {
			continue
		}
		f := remote.File{ID: *obj.Key, Name: name}
		if obj.Size != nil {
			f.Size = *obj.Size
		}
		if obj.LastModified != nil {
			f.Modified = *obj.LastModified
		}
		files = append(files, f)
	}
	return files, nil
}

func (s *s3Store) Download(ctx context.Context, fileID, localPath string) (string, error) {
	res, err := s.client.GetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &fileID,
	})
	if err != nil {
		return "", fmt.Errorf("failed to download file: %w", err)
	}
	defer res.Body.Close()

	if err := os.MkdirAll(path.Dir(localPath), 0755); err != nil {
		return "", fmt.Errorf("failed to create local dir: %w", err)
	}
	out, err := os.Create(localPath)
	if err != nil {
		return "", fmt.Errorf("failed to create local file: %w", err)
	}
	defer out.Close()

	if _, err := io.Copy(out, res.Body); err != nil {
		return "", fmt.Errorf("failed to write local file: %w", err)
	}
	return localPath, nil
}

func (s *s3Store) Upload(ctx context.Context, localPath, name, parentFolderID string) (*remote.File, error) {
	f, err := os.Open(localPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open local file: %w", err)
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return nil, fmt.Errorf("failed to stat local file: %w", err)
	}

	key := normalizeFolder(parentFolderID) + name
	size := info.Size()
	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        &s.bucket,
		Key:           &key,
		Body:          f,
		ContentLength: &size,
	}); err != nil {
		return nil, fmt.Errorf("failed to upload file: %w", err)
	}

	return &remote.File{ID: key, Name: name, Size: size, Modified: time.Now().UTC()}, nil
}

// CreateFolder writes a zero-byte marker for the prefix. Idempotent: an
// existing folder is returned as-is so re-runs reuse it.
func (s *s3Store) CreateFolder(ctx context.Context, name, parentID string) (*remote.File, error) {
	key := normalizeFolder(parentID) + strings.TrimSuffix(name, "/") + "/"

	if _, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}); err == nil {
		return &remote.File{ID: key, Name: name, IsFolder: true}, nil
	}

	if _, err := s.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket: &s.bucket,
		Key:    &key,
	}); err != nil {
		return nil, fmt.Errorf("failed to create folder: %w", err)
	}
	return &remote.File{ID: key, Name: name, IsFolder: true}, nil
}

func (s *s3Store) PresignGet(ctx context.Context, fileID string) (string, error) {
	req, err := s.preSignClient.PresignGetObject(ctx, &s3.GetObjectInput{
		Bucket: &s.bucket,
		Key:    &fileID,
	}, s3.WithPresignExpires(60*time.Minute))
	if err != nil {
		return "", fmt.Errorf("failed to presign get object: %w", err)
	}
	return req.URL, nil
}

func normalizeFolder(folderID string) string {
	if folderID == "" {
		return ""
	}
	return strings.TrimSuffix(folderID, "/") + "/"
}
