//go:build windows

package credvault

import (
	"github.com/billgraziano/dpapi"
	"github.com/dmitrijs2005/printkeeper/internal/common"
)

// dpapiService protects data with Windows DPAPI in current-user scope.
type dpapiService struct{}

// PlatformService returns the DPAPI-backed SecretService.
func PlatformService() SecretService { return dpapiService{} }

func (dpapiService) IsSupported() bool { return true }

func (dpapiService) Protect(data, entropy []byte) ([]byte, error) {
	bound := bindEntropy(data, entropy)
	defer common.WipeByteArray(bound)
	return dpapi.EncryptBytes(bound)
}

func (dpapiService) Unprotect(data, entropy []byte) ([]byte, error) {
	plain, err := dpapi.DecryptBytes(data)
	if err != nil {
		return nil, err
	}
	return unbindEntropy(plain, entropy)
}
