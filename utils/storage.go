package utils

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"cloud.google.com/go/storage"
	"google.golang.org/api/option"
)

const (
	StorageProviderGCS   = "gcs"
	StorageProviderDO    = "do"
	StorageProviderLocal = "local"
)

// MaxOfferFileSizeBytes caps uploaded offer spreadsheets at 10MB.
const MaxOfferFileSizeBytes int64 = 10 * 1024 * 1024

var offerFileExtensions = map[string]bool{
	".xlsx": true,
	".xls":  true,
}

func GetStorageProvider() string {
	provider := strings.TrimSpace(strings.ToLower(os.Getenv("STORAGE_PROVIDER")))
	if provider == "" {
		return StorageProviderGCS
	}
	return provider
}

// getGoogleClient initializes a Google Cloud Storage client.
// Prefer ADC (service account / GOOGLE_APPLICATION_CREDENTIALS). For local
// runs, explicit JSON can be supplied via GCS_CREDENTIALS_JSON.
func getGoogleClient(ctx context.Context) (*storage.Client, error) {
	if credJSON := os.Getenv("GCS_CREDENTIALS_JSON"); strings.TrimSpace(credJSON) != "" {
		return storage.NewClient(ctx, option.WithCredentialsJSON([]byte(credJSON)))
	}
	return storage.NewClient(ctx)
}

// ValidateOfferFile gates an uploaded offer file on size and extension
// before any bytes are parsed.
func ValidateOfferFile(objectKey string, sizeBytes int64) error {
	ext := strings.ToLower(filepath.Ext(objectKey))
	if !offerFileExtensions[ext] {
		return fmt.Errorf("unsupported file extension %q (want .xlsx or .xls)", ext)
	}
	if sizeBytes > MaxOfferFileSizeBytes {
		return fmt.Errorf("file size %d exceeds the %d byte limit", sizeBytes, MaxOfferFileSizeBytes)
	}
	return nil
}

// localObjectPath resolves an object key inside OFFER_FILES_DIR for the
// local provider (dev runs and tests; no cloud credentials needed).
func localObjectPath(objectKey string) (string, error) {
	dir := os.Getenv("OFFER_FILES_DIR")
	if dir == "" {
		return "", errors.New("OFFER_FILES_DIR is required for the local storage provider")
	}
	return filepath.Join(dir, filepath.Clean("/"+objectKey)), nil
}

// DownloadObject fetches an uploaded object from the offers bucket. The read
// is capped at MaxOfferFileSizeBytes+1 so an oversized object is detected
// without buffering it fully.
func DownloadObject(ctx context.Context, objectKey string) ([]byte, error) {
	if GetStorageProvider() == StorageProviderLocal {
		path, err := localObjectPath(objectKey)
		if err != nil {
			return nil, err
		}
		file, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("storage object %q not readable: %w", objectKey, err)
		}
		defer file.Close()
		data, err := io.ReadAll(io.LimitReader(file, MaxOfferFileSizeBytes+1))
		if err != nil {
			return nil, err
		}
		if int64(len(data)) > MaxOfferFileSizeBytes {
			return nil, fmt.Errorf("file size exceeds the %d byte limit", MaxOfferFileSizeBytes)
		}
		return data, nil
	}

	bucketName := os.Getenv("OFFER_FILES_BUCKET")
	if bucketName == "" {
		return nil, errors.New("OFFER_FILES_BUCKET is required")
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return nil, err
	}
	defer client.Close()

	reader, err := client.Bucket(bucketName).Object(objectKey).NewReader(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage object %q not readable: %w", objectKey, err)
	}
	defer reader.Close()

	data, err := io.ReadAll(io.LimitReader(reader, MaxOfferFileSizeBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > MaxOfferFileSizeBytes {
		return nil, fmt.Errorf("file size exceeds the %d byte limit", MaxOfferFileSizeBytes)
	}
	return data, nil
}

// ObjectSize returns the stored size of an object without downloading it.
func ObjectSize(ctx context.Context, objectKey string) (int64, error) {
	if GetStorageProvider() == StorageProviderLocal {
		path, err := localObjectPath(objectKey)
		if err != nil {
			return 0, err
		}
		info, err := os.Stat(path)
		if err != nil {
			return 0, err
		}
		return info.Size(), nil
	}

	bucketName := os.Getenv("OFFER_FILES_BUCKET")
	if bucketName == "" {
		return 0, errors.New("OFFER_FILES_BUCKET is required")
	}

	client, err := getGoogleClient(ctx)
	if err != nil {
		return 0, err
	}
	defer client.Close()

	attrs, err := client.Bucket(bucketName).Object(objectKey).Attrs(ctx)
	if err != nil {
		return 0, err
	}
	return attrs.Size, nil
}
