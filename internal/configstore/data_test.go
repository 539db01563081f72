package configstore

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dmitrijs2005/printkeeper/internal/common"
)

func TestData_Validate(t *testing.T) {
	tests := []struct {
		name    string
		data    *Data
		wantErr bool
	}{
		{"nil", nil, true},
		{"s3 complete", sampleData(), false},
		{"default provider is s3", &Data{Storage: StorageCredentials{Bucket: "b", AccessKeyID: "a", SecretAccessKey: "s"}}, false},
		{"s3 missing secret", &Data{Storage: StorageCredentials{Provider: ProviderS3, Bucket: "b", AccessKeyID: "a"}}, true},
		{"file", &Data{Storage: StorageCredentials{Provider: ProviderFile, LocalDir: "/srv/printkeeper"}}, false},
		{"file without dir", &Data{Storage: StorageCredentials{Provider: ProviderFile}}, true},
		{"unknown provider", &Data{Storage: StorageCredentials{Provider: "ftp"}}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.data.Validate()
			if tt.wantErr {
				assert.True(t, errors.Is(err, common.ErrConfiguration))
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestStorageCredentials_S3Options(t *testing.T) {
	o := sampleData().Storage.S3Options()
	assert.Equal(t, "printkeeper", o.Bucket)
	assert.Equal(t, "http://localhost:9000", o.Endpoint)
	assert.True(t, o.UsePathStyle)
}
