package cryptox

import (
	"errors"
	"fmt"

	"github.com/fernet/fernet-go"

	"github.com/dmitrijs2005/printkeeper/internal/common"
)

var errInvalidToken = errors.New("invalid token")

// fernetKey decodes k into the sealed token key. The first half signs, the
// second half encrypts.
func (k Key) fernetKey() (*fernet.Key, error) {
	if k == "" {
		return nil, common.ErrKeyNotReady
	}
	fk, err := fernet.DecodeKey(string(k))
	if err != nil {
		return nil, fmt.Errorf("%w: malformed key: %v", common.ErrSecurity, err)
	}
	return fk, nil
}

// verifyToken checks and opens a sealed token. Tokens never expire: config
// files and blobs are read long after they were written.
func verifyToken(k *fernet.Key, token string) ([]byte, error) {
	msg := fernet.VerifyAndDecrypt([]byte(token), 0, []*fernet.Key{k})
	if msg == nil {
		return nil, errInvalidToken
	}
	return msg, nil
}
