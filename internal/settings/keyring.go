package settings

import (
	"errors"

	"github.com/zalando/go-keyring"
)

// Keyring is the subset of OS keyring operations used for the API key.
type Keyring interface {
	Set(service, account, secret string) error
	Get(service, account string) (string, error)
	Delete(service, account string) error
}

// systemKeyring stores secrets in the OS keyring.
type systemKeyring struct{}

func (systemKeyring) Set(service, account, secret string) error {
	return keyring.Set(service, account, secret)
}

func (systemKeyring) Get(service, account string) (string, error) {
	return keyring.Get(service, account)
}

func (systemKeyring) Delete(service, account string) error {
	err := keyring.Delete(service, account)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

// SystemKeyring returns the OS keyring.
func SystemKeyring() Keyring {
	return systemKeyring{}
}
