package cmd

import (
	"fmt"

	"github.com/creativeprojects/refugeemail/cfg"
	"github.com/creativeprojects/refugeemail/lib"
	"github.com/creativeprojects/refugeemail/storage"
	"github.com/creativeprojects/refugeemail/storage/local"
	"github.com/creativeprojects/refugeemail/storage/mdir"
	"github.com/creativeprojects/refugeemail/storage/mem"
	"github.com/creativeprojects/refugeemail/storage/remote"
)

// verify interface
var (
	_ storage.Backend = &remote.Imap{}
	_ storage.Backend = &local.BoltStore{}
	_ storage.Backend = &mdir.Maildir{}
	_ storage.Backend = &mem.Backend{}
)

// NewBackend opens the backend of an account from the configuration file
func NewBackend(account cfg.Account, logger lib.Logger) (storage.Backend, error) {
	var backend storage.Backend
	var err error
	switch account.Type {
	case cfg.IMAP:
		backend, err = remote.NewImap(remote.Config{
			ServerURL:           account.ServerURL,
			Username:            account.Username,
			Password:            account.Password,
			DebugLogger:         logger,
			NoTLS:               account.NoTLS,
			StartTLS:            account.StartTLS,
			SkipTLSVerification: account.SkipTLSVerification,
		})
	case cfg.MAILDIR:
		backend, err = mdir.NewWithLogger(account.Root, logger)
	case cfg.LOCAL:
		backend, err = local.NewBoltStoreWithLogger(account.File, logger)
	case cfg.MEMORY:
		backend = mem.NewWithLogger(logger)
	default:
		return nil, fmt.Errorf("unsupported account type %q", account.Type)
	}
	if err != nil {
		return nil, err
	}
	return backend, nil
}

// accountIdentity returns the server and username identifying an account in the progress files
func accountIdentity(account cfg.Account) (string, string) {
	switch account.Type {
	case cfg.MAILDIR:
		return account.Root, account.Username
	case cfg.LOCAL:
		return account.File, account.Username
	default:
		return account.ServerURL, account.Username
	}
}
