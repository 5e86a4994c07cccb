package cmd

import (
	"fmt"
	"net"
	"sort"
	"strconv"
	"strings"

	"github.com/creativeprojects/refugeemail/cfg"
	"github.com/creativeprojects/refugeemail/lib"
	"github.com/creativeprojects/refugeemail/storage"
	"github.com/creativeprojects/refugeemail/storage/remote"
	"github.com/creativeprojects/refugeemail/term"
	"github.com/spf13/pflag"
)

const (
	defaultSourceHost = "imap.gmail.com"
	defaultPort       = 993
)

type provider struct {
	host string
	port int
}

// Microsoft services don't offer IMAP access to migrate from
var providers = map[string]provider{
	"gmail": {host: "imap.gmail.com", port: 993},
	"yahoo": {host: "imap.mail.yahoo.com", port: 993},
}

// endpointFlags describe one side of a migration: either an account of the configuration file,
// or an IMAP server given on the command line
type endpointFlags struct {
	name     string
	account  string
	provider string
	host     string
	port     int
	username string
	password string
}

// connectionFlags are shared by both sides
type connectionFlags struct {
	tls      bool
	startTLS bool
	insecure bool
	compress bool
}

func addEndpointFlags(flags *pflag.FlagSet, endpoint *endpointFlags, prefix, defaultHost string) {
	flags.StringVar(&endpoint.account, prefix+"account", "", "name of the "+endpoint.name+" account in the configuration file")
	flags.StringVar(&endpoint.provider, prefix+"provider", "", "preset host and port of the "+endpoint.name+" server: "+providerNames())
	flags.StringVar(&endpoint.host, prefix+"host", defaultHost, endpoint.name+" host address")
	flags.IntVar(&endpoint.port, prefix+"port", defaultPort, endpoint.name+" host port")
	flags.StringVar(&endpoint.username, prefix+"username", "", "username of the "+endpoint.name+" account")
	flags.StringVar(&endpoint.password, prefix+"password", "", "password of the "+endpoint.name+" account, prompted for if not given")
}

func addConnectionFlags(flags *pflag.FlagSet, connection *connectionFlags) {
	flags.BoolVar(&connection.tls, "tls", true, "connect to the IMAP servers using TLS")
	flags.BoolVar(&connection.startTLS, "starttls", false, "upgrade the connection to TLS after connecting")
	flags.BoolVar(&connection.insecure, "insecure", false, "skip verification of the servers TLS certificates")
	flags.BoolVar(&connection.compress, "compress", false, "compress the IMAP connections when the servers support it")
}

func providerNames() string {
	names := make([]string, 0, len(providers))
	for name := range providers {
		names = append(names, name)
	}
	sort.Strings(names)
	return strings.Join(names, ", ")
}

// isSet returns true when the endpoint was given on the command line
func (e *endpointFlags) isSet() bool {
	return e.account != "" || e.username != ""
}

// resolve fills in the host and port from the provider preset
func (e *endpointFlags) resolve() error {
	if e.provider == "" {
		return nil
	}
	preset, found := providers[strings.ToLower(e.provider)]
	if !found {
		return fmt.Errorf("unknown %s provider %q, available providers are: %s", e.name, e.provider, providerNames())
	}
	e.host = preset.host
	e.port = preset.port
	return nil
}

func (e *endpointFlags) serverURL() string {
	return net.JoinHostPort(e.host, strconv.Itoa(e.port))
}

// configAccount returns the account from the configuration file
func (e *endpointFlags) configAccount() (cfg.Account, error) {
	if config == nil {
		return cfg.Account{}, fmt.Errorf("%w: %s account not found: %s", lib.ErrMissingParameter, e.name, e.account)
	}
	account, ok := config.Accounts[e.account]
	if !ok {
		return cfg.Account{}, fmt.Errorf("%w: %s account not found: %s", lib.ErrMissingParameter, e.name, e.account)
	}
	return account, nil
}

// identity returns the server and username used to name the progress files, without connecting
func (e *endpointFlags) identity() (string, string, error) {
	if e.account != "" {
		account, err := e.configAccount()
		if err != nil {
			return "", "", err
		}
		serverURL, username := accountIdentity(account)
		return serverURL, username, nil
	}
	err := e.resolve()
	if err != nil {
		return "", "", err
	}
	if e.host == "" || e.username == "" {
		return "", "", fmt.Errorf("%w: %s host and username", lib.ErrMissingParameter, e.name)
	}
	return e.serverURL(), e.username, nil
}

// open connects to the endpoint. The password is prompted for when missing.
func (e *endpointFlags) open(connection connectionFlags, logger lib.Logger) (storage.Backend, error) {
	if e.account != "" {
		account, err := e.configAccount()
		if err != nil {
			return nil, err
		}
		if account.Type == cfg.IMAP && account.Password == "" {
			account.Password, err = term.Password(fmt.Sprintf("Please provide the password of %s on %s: ", account.Username, account.ServerURL))
			if err != nil {
				return nil, err
			}
		}
		return NewBackend(account, logger)
	}
	serverURL, username, err := e.identity()
	if err != nil {
		return nil, err
	}
	password := e.password
	if password == "" {
		password, err = term.Password(fmt.Sprintf("Please provide the %s password of %s: ", e.name, username))
		if err != nil {
			return nil, err
		}
	}
	term.Infof("connecting to %s server %s", e.name, serverURL)
	backend, err := remote.NewImap(remote.Config{
		ServerURL:           serverURL,
		Username:            username,
		Password:            password,
		DebugLogger:         logger,
		NoTLS:               !connection.tls && !connection.startTLS,
		StartTLS:            connection.startTLS,
		SkipTLSVerification: connection.insecure,
		Compress:            connection.compress,
	})
	if err != nil {
		return nil, err
	}
	return backend, nil
}
