package configstore

import (
	"fmt"
	"time"

	"github.com/dmitrijs2005/printkeeper/internal/common"
	"github.com/dmitrijs2005/printkeeper/internal/storage"
)

// Storage providers.
const (
	ProviderS3   = "s3"
	ProviderFile = "file"
)

// StorageCredentials locate the shared user directory.
type StorageCredentials struct {
	Provider        string `json:"provider"`
	Endpoint        string `json:"endpoint,omitempty"`
	Region          string `json:"region,omitempty"`
	Bucket          string `json:"bucket,omitempty"`
	AccessKeyID     string `json:"access_key_id,omitempty"`
	SecretAccessKey string `json:"secret_access_key,omitempty"`
	UsePathStyle    bool   `json:"use_path_style,omitempty"`
	LocalDir        string `json:"local_dir,omitempty"`
}

// S3Options converts the credentials for storage.NewS3Backend.
func (c StorageCredentials) S3Options() storage.S3Options {
	return storage.S3Options{
		Endpoint:        c.Endpoint,
		Region:          c.Region,
		Bucket:          c.Bucket,
		AccessKeyID:     c.AccessKeyID,
		SecretAccessKey: c.SecretAccessKey,
		UsePathStyle:    c.UsePathStyle,
	}
}

// Data is the decrypted content of the local configuration file.
type Data struct {
	Storage      StorageCredentials `json:"storage"`
	DirectoryKey string             `json:"directory_key,omitempty"`
	LogKey       string             `json:"log_key,omitempty"`
	CreatedAt    time.Time          `json:"created_at"`
	UpdatedAt    time.Time          `json:"updated_at"`
}

// Validate reports missing credentials as common.ErrConfiguration.
func (d *Data) Validate() error {
	if d == nil {
		return fmt.Errorf("%w: empty configuration", common.ErrConfiguration)
	}
	s := d.Storage
	switch s.Provider {
	case ProviderS3, "":
		var missing []string
		if s.Bucket == "" {
			missing = append(missing, "bucket")
		}
		if s.AccessKeyID == "" {
			missing = append(missing, "access_key_id")
		}
		if s.SecretAccessKey == "" {
			missing = append(missing, "secret_access_key")
		}
		if len(missing) > 0 {
			return fmt.Errorf("%w: storage credentials missing %v", common.ErrConfiguration, missing)
		}
	case ProviderFile:
		if s.LocalDir == "" {
			return fmt.Errorf("%w: file storage needs local_dir", common.ErrConfiguration)
		}
	default:
		return fmt.Errorf("%w: unknown storage provider %q", common.ErrConfiguration, s.Provider)
	}
	return nil
}
