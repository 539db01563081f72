package cli

import (
	"context"
	"fmt"
	"strings"

	"github.com/dmitrijs2005/printkeeper/internal/common"
	"github.com/dmitrijs2005/printkeeper/internal/config"
	"github.com/dmitrijs2005/printkeeper/internal/configstore"
)

// setupConfig collects storage credentials and writes the first encrypted
// configuration.
func (a *App) setupConfig(ctx context.Context) (*configstore.Data, error) {
	fmt.Fprintln(a.out, "No configuration found, starting first-time setup")

	provider := a.config.StorageMode
	if provider == config.StorageFromConfig {
		p, err := GetSimpleText(a.reader, "Storage provider (s3/file)", a.out)
		if err != nil {
			return nil, err
		}
		provider = strings.ToLower(p)
	}

	data := &configstore.Data{Storage: configstore.StorageCredentials{Provider: provider}}
	switch provider {
	case configstore.ProviderS3:
		fields := []struct {
			prompt string
			dst    *string
		}{
			{"S3 endpoint (empty for AWS)", &data.Storage.Endpoint},
			{"Region", &data.Storage.Region},
			{"Bucket", &data.Storage.Bucket},
			{"Access key ID", &data.Storage.AccessKeyID},
		}
		for _, f := range fields {
			v, err := GetSimpleText(a.reader, f.prompt, a.out)
			if err != nil {
				return nil, err
			}
			*f.dst = v
		}
		secret, err := GetPassword(a.reader, "Secret access key", a.out)
		if err != nil {
			return nil, err
		}
		data.Storage.SecretAccessKey = secret
		data.Storage.UsePathStyle = data.Storage.Endpoint != ""
	case configstore.ProviderFile:
		dir := a.config.LocalStorageDir
		if dir == "" {
			v, err := GetSimpleText(a.reader, "Local storage directory", a.out)
			if err != nil {
				return nil, err
			}
			dir = v
		}
		data.Storage.LocalDir = dir
	case config.StorageMemory:
		// nothing to store, but the config still carries the master password check
		data.Storage = configstore.StorageCredentials{Provider: configstore.ProviderFile, LocalDir: a.locator.Dir}
	default:
		return nil, fmt.Errorf("%w: unknown storage provider %q", common.ErrConfiguration, provider)
	}

	if err := a.configs.Setup(ctx, data); err != nil {
		return nil, err
	}
	fmt.Fprintln(a.out, "Configuration saved")
	return data, nil
}

// initializeSystem creates the first super_admin. It retries until the
// policy accepts the password or input ends.
func (a *App) initializeSystem(ctx context.Context) error {
	fmt.Fprintln(a.out, "No users yet. Create the administrator account.")
	for {
		username, err := GetSimpleText(a.reader, "Administrator username", a.out)
		if err != nil {
			return err
		}
		password, err := a.newPassword()
		if err != nil {
			return err
		}
		if password == "" {
			continue
		}

		res, err := a.dir.InitializeSystem(ctx, username, password)
		if err != nil {
			return err
		}
		fmt.Fprintln(a.out, res.Message)
		if res.Success {
			return nil
		}
	}
}

// newPassword reads a password twice. It returns "" on mismatch.
func (a *App) newPassword() (string, error) {
	pw, err := GetPassword(a.reader, "Password", a.out)
	if err != nil {
		return "", err
	}
	again, err := GetPassword(a.reader, "Repeat password", a.out)
	if err != nil {
		return "", err
	}
	if pw != again {
		fmt.Fprintln(a.out, "Passwords do not match")
		return "", nil
	}
	return pw, nil
}
