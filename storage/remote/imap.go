package remote

import (
	"bytes"
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/creativeprojects/refugeemail/lib"
	"github.com/creativeprojects/refugeemail/mailbox"
	"github.com/emersion/go-imap"
	compress "github.com/emersion/go-imap-compress"
	uidplus "github.com/emersion/go-imap-uidplus"
	"github.com/emersion/go-imap/client"
)

type Config struct {
	ServerURL           string
	Username            string
	Password            string
	DebugLogger         lib.Logger
	NoTLS               bool
	StartTLS            bool
	SkipTLSVerification bool
	Compress            bool
}

type Imap struct {
	client        *client.Client
	uidplusClient *uidplus.Client
	log           lib.Logger
	delimiter     string
	selected      *mailbox.Status
}

func NewImap(cfg Config) (*Imap, error) {
	log := lib.LoggerOrDefault(cfg.DebugLogger)
	if cfg.ServerURL == "" || cfg.Username == "" || cfg.Password == "" {
		return nil, fmt.Errorf("%w: server, username and password are needed to connect to an IMAP server", lib.ErrMissingParameter)
	}

	var imapClient *client.Client
	var err error
	tlsConfig := &tls.Config{
		InsecureSkipVerify: cfg.SkipTLSVerification,
	}
	log.Printf("Connecting to server %s...", cfg.ServerURL)
	if cfg.NoTLS || cfg.StartTLS {
		imapClient, err = client.Dial(cfg.ServerURL)
	} else {
		imapClient, err = client.DialTLS(cfg.ServerURL, tlsConfig)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: cannot connect to server %s: %s", lib.ErrConnection, cfg.ServerURL, err)
	}
	log.Print("Connected")

	if cfg.StartTLS {
		if err := imapClient.StartTLS(tlsConfig); err != nil {
			_ = imapClient.Logout()
			return nil, fmt.Errorf("%w: STARTTLS failed on %s: %s", lib.ErrConnection, cfg.ServerURL, err)
		}
		log.Print("Connection upgraded to TLS")
	}

	if err := imapClient.Login(cfg.Username, cfg.Password); err != nil {
		_ = imapClient.Logout()
		return nil, fmt.Errorf("%w: %s", lib.ErrAuthentication, err)
	}
	log.Printf("Logged in as %s", cfg.Username)

	if caps, err := imapClient.Capability(); err == nil {
		log.Printf("capabilities: %+v", caps)
	}

	if cfg.Compress {
		compressClient := compress.NewClient(imapClient)
		supported, err := compressClient.SupportCompress(compress.Deflate)
		if err == nil && supported {
			err = compressClient.Compress(compress.Deflate)
			if err != nil {
				log.Printf("cannot enable compression: %s", err)
			} else {
				log.Print("Compression enabled")
			}
		} else {
			log.Print("IMAP server does NOT support COMPRESS=DEFLATE extension")
		}
	}

	// try to enable UIDPLUS extension
	uidExt := uidplus.NewClient(imapClient)
	supported, err := uidExt.SupportUidPlus()
	if err != nil || !supported {
		log.Print("IMAP server does NOT support UIDPLUS extension")
		uidExt = nil
	}

	return &Imap{
		client:        imapClient,
		uidplusClient: uidExt,
		log:           log,
	}, nil
}

func (i *Imap) Close() error {
	i.log.Print("Closing connection")
	return i.client.Logout()
}

func (i *Imap) Delimiter() string {
	if i.delimiter == "" {
		_, _ = i.ListMailbox()
	}
	return i.delimiter
}

func (i *Imap) SupportMessageID() bool {
	return i.uidplusClient != nil
}

func (i *Imap) ListMailbox() ([]mailbox.Info, error) {
	mailboxes := make(chan *imap.MailboxInfo, 10)
	done := make(chan error, 1)
	go func() {
		done <- i.client.List("", "*", mailboxes)
	}()

	i.log.Print("Listing mailboxes:")
	info := make([]mailbox.Info, 0, 10)
	for m := range mailboxes {
		i.log.Printf("* %q: %+v (delimiter = %q)", m.Name, m.Attributes, m.Delimiter)
		info = append(info, mailbox.Info{
			Delimiter: m.Delimiter,
			Name:      m.Name,
		})
		// sets the delimiter (if not already set)
		if i.delimiter == "" {
			i.delimiter = m.Delimiter
		}
	}

	if err := <-done; err != nil {
		return nil, wrapError(err)
	}
	return info, nil
}

func (i *Imap) CreateMailbox(info mailbox.Info) error {
	name := info.Name
	mailboxes, err := i.ListMailbox()
	if err != nil {
		return err
	}
	if len(mailboxes) > 0 {
		name = lib.VerifyDelimiter(name, info.Delimiter, i.Delimiter())
		for _, mailbox := range mailboxes {
			if mailbox.Name == name {
				// already existing
				return nil
			}
		}
	}

	i.log.Printf("Creating mailbox %q using delimiter %q", name, i.Delimiter())
	if err := i.client.Create(name); err != nil {
		return fmt.Errorf("cannot create mailbox %q: %w", name, wrapError(err))
	}
	return nil
}

func (i *Imap) DeleteMailbox(info mailbox.Info) error {
	name := lib.VerifyDelimiter(info.Name, info.Delimiter, i.Delimiter())
	i.log.Printf("Deleting mailbox %q using delimiter %q", name, i.Delimiter())
	return i.client.Delete(name)
}

func (i *Imap) SelectMailbox(info mailbox.Info) (*mailbox.Status, error) {
	name := lib.VerifyDelimiter(info.Name, info.Delimiter, i.Delimiter())
	i.log.Printf("Selecting mailbox %q using delimiter %q", name, i.Delimiter())
	// read-only: the migration never changes the source
	status, err := i.client.Select(name, true)
	if err != nil {
		return nil, fmt.Errorf("cannot select mailbox %q: %w", name, wrapError(err))
	}
	i.selected = &mailbox.Status{
		Name:        status.Name,
		Flags:       status.Flags,
		Messages:    status.Messages,
		Unseen:      status.Unseen,
		UidValidity: status.UidValidity,
	}
	return i.selected, nil
}

func (i *Imap) ListMessageIDs(ctx context.Context) ([]mailbox.MessageID, error) {
	if i.selected == nil {
		return nil, lib.ErrNotSelected
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if i.selected.Messages == 0 {
		return []mailbox.MessageID{}, nil
	}
	uids, err := i.client.UidSearch(imap.NewSearchCriteria())
	if err != nil {
		return nil, fmt.Errorf("cannot list messages in %q: %w", i.selected.Name, wrapError(err))
	}
	i.log.Printf("Found %d messages in %q", len(uids), i.selected.Name)
	ids := make([]mailbox.MessageID, len(uids))
	for index, uid := range uids {
		ids[index] = mailbox.NewMessageIDFromUint(uid)
	}
	return ids, nil
}

func (i *Imap) PutMessage(info mailbox.Info, props mailbox.MessageProperties, body io.Reader) (mailbox.MessageID, error) {
	name := lib.VerifyDelimiter(info.Name, info.Delimiter, i.Delimiter())
	buffer := &bytes.Buffer{}
	read, err := buffer.ReadFrom(body)
	if err != nil {
		return mailbox.EmptyMessageID, fmt.Errorf("cannot read message body: %w", err)
	}
	if props.Size > 0 && read != int64(props.Size) {
		return mailbox.EmptyMessageID, fmt.Errorf("message body size advertised as %d bytes but read %d bytes from buffer", props.Size, read)
	}

	// IMAP server cannot accept the recent flag
	flags := lib.StripRecentFlag(props.Flags)

	var uid uint32
	if i.uidplusClient != nil {
		_, uid, err = i.uidplusClient.Append(name, flags, props.InternalDate, buffer)
	} else {
		err = i.client.Append(name, flags, props.InternalDate, buffer)
	}
	if err != nil {
		return mailbox.EmptyMessageID,
			fmt.Errorf("cannot append new message to IMAP server (mailbox=%q size=%d flags=%v): %w",
				name, read, flags, wrapError(err),
			)
	}
	i.log.Printf("Message saved: mailbox=%q uid=%v size=%d flags=%v date=%q", name, uid, read, flags, props.InternalDate)

	return mailbox.NewMessageIDFromUint(uid), nil
}

func (i *Imap) FetchMessages(ctx context.Context, ids []mailbox.MessageID, messages chan *mailbox.Message) error {
	defer close(messages)

	if i.selected == nil {
		return lib.ErrNotSelected
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(ids) == 0 {
		return nil
	}

	seqset := new(imap.SeqSet)
	for _, id := range ids {
		if !id.IsUint() {
			return fmt.Errorf("%w: IMAP message ID must be numeric, found %q", lib.ErrProtocol, id)
		}
		seqset.AddNum(id.AsUint())
	}

	section := &imap.BodySectionName{Peek: true}
	items := []imap.FetchItem{section.FetchItem(), imap.FetchFlags, imap.FetchUid, imap.FetchInternalDate, imap.FetchRFC822Size}
	i.log.Printf("fetching %d messages: %s", len(ids), seqset)

	receiver := make(chan *imap.Message, 10)
	done := make(chan error, 1)
	// fetch messages in the background
	go func() {
		done <- i.client.UidFetch(seqset, items, receiver)
	}()

	wg := sync.WaitGroup{}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for msg := range receiver {
			i.log.Printf("Received IMAP message uid=%d flags=%+v date=%q", msg.Uid, msg.Flags, msg.InternalDate)
			// receive all the messages as they get in
			message := &mailbox.Message{
				MessageProperties: mailbox.MessageProperties{
					Flags:        lib.StripRecentFlag(msg.Flags),
					InternalDate: msg.InternalDate,
					Size:         msg.Size,
				},
				Uid:     mailbox.NewMessageIDFromUint(msg.Uid),
				Mailbox: i.selected.Name,
			}
			if body := msg.GetBody(section); body != nil {
				message.Body = io.NopCloser(body)
			}
			// and transfer them to the output
			messages <- message
		}
	}()
	// will return the error from Fetch when it's finished
	err := <-done
	wg.Wait()
	i.log.Print("All IMAP messages received")
	if err != nil {
		return fmt.Errorf("cannot fetch messages from %q: %w", i.selected.Name, wrapError(err))
	}
	return nil
}

func (i *Imap) UnselectMailbox() error {
	i.selected = nil
	return i.client.Unselect()
}

// wrapError sorts out the errors returned by the server
func wrapError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, client.ErrNotLoggedIn) || errors.Is(err, client.ErrAlreadyLoggedOut) || errors.Is(err, io.EOF) {
		return fmt.Errorf("%w: %s", lib.ErrConnection, err)
	}
	// the status code is not kept in the error returned by the client
	message := strings.ToLower(err.Error())
	if strings.Contains(message, "quota") {
		return fmt.Errorf("%w: %s", lib.ErrQuota, err)
	}
	return fmt.Errorf("%w: %s", lib.ErrProtocol, err)
}
