package cmd

import (
	"context"
	"fmt"

	"github.com/creativeprojects/refugeemail/cfg"
	"github.com/creativeprojects/refugeemail/lib"
	"github.com/creativeprojects/refugeemail/limitio"
	"github.com/creativeprojects/refugeemail/mailbox"
	"github.com/creativeprojects/refugeemail/migrate"
	"github.com/creativeprojects/refugeemail/state"
	"github.com/creativeprojects/refugeemail/storage"
	"github.com/creativeprojects/refugeemail/term"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

const defaultFolder = "INBOX"

type transferFlags struct {
	source      endpointFlags
	destination endpointFlags
	connection  connectionFlags
	folder      string
	target      string
	local       bool
	archiveType string
	archiveDir  string
	stateDir    string
	batchSize   int
	limit       int
	dryRun      bool
}

var (
	migrateFlags = transferFlags{
		source:      endpointFlags{name: "source"},
		destination: endpointFlags{name: "destination"},
	}
	backupFlags = transferFlags{
		source: endpointFlags{name: "source"},
		local:  true,
	}
)

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Copy the messages of a folder to another IMAP account, saving a local copy",
	Long: "\nCopy the messages of a folder to another IMAP account, saving a local copy in an mbox file.\n" +
		"The folder is created on the destination if needed. Messages already done by a previous run are skipped.",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransfer(cmd.Context(), &migrateFlags, migrate.ModeMigrate)
	},
}

var backupCmd = &cobra.Command{
	Use:   "backup",
	Short: "Save the messages of a folder into a local archive",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runTransfer(cmd.Context(), &backupFlags, migrate.ModeBackup)
	},
}

func init() {
	flags := migrateCmd.Flags()
	addEndpointFlags(flags, &migrateFlags.source, "source-", defaultSourceHost)
	addEndpointFlags(flags, &migrateFlags.destination, "dest-", "")
	addConnectionFlags(flags, &migrateFlags.connection)
	addTransferFlags(flags, &migrateFlags)
	flags.StringVar(&migrateFlags.target, "target", "", "name of the folder on the destination, default is the same name as the source folder")
	flags.BoolVar(&migrateFlags.local, "local", true, "save a local copy of every message transferred")
	rootCmd.AddCommand(migrateCmd)

	flags = backupCmd.Flags()
	addEndpointFlags(flags, &backupFlags.source, "source-", defaultSourceHost)
	addConnectionFlags(flags, &backupFlags.connection)
	addTransferFlags(flags, &backupFlags)
	rootCmd.AddCommand(backupCmd)
}

func addTransferFlags(flags *pflag.FlagSet, transfer *transferFlags) {
	flags.StringVarP(&transfer.folder, "folder", "f", defaultFolder, "folder to copy")
	flags.StringVar(&transfer.archiveType, "archive", "", "type of local archive: mbox, maildir or local (default from configuration, or mbox)")
	flags.StringVar(&transfer.archiveDir, "archive-dir", "", "directory of the local archives (default from configuration)")
	flags.StringVar(&transfer.stateDir, "state-dir", "", "directory of the progress files (default from configuration)")
	flags.IntVar(&transfer.batchSize, "batch-size", 0, "number of messages fetched at once (default from configuration, or 10)")
	flags.IntVar(&transfer.limit, "limit", 0, "limit the bandwidth used to send messages to the destination, in KiB/s")
	flags.BoolVar(&transfer.dryRun, "dry-run", false, "only display what would be done")
}

// applyDefaults fills in the values not given on the command line from the configuration file
func (f *transferFlags) applyDefaults(defaults cfg.Migrate) {
	if f.archiveType == "" {
		f.archiveType = string(defaults.ArchiveType)
	}
	if f.archiveDir == "" {
		f.archiveDir = defaults.ArchiveDir
	}
	if f.stateDir == "" {
		f.stateDir = defaults.StateDir
	}
	if f.batchSize == 0 {
		f.batchSize = defaults.BatchSize
	}
}

func runTransfer(ctx context.Context, flags *transferFlags, mode string) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if config != nil {
		flags.applyDefaults(config.Migrate)
	}
	if flags.batchSize < 0 {
		return fmt.Errorf("%w: %d", lib.ErrInvalidBatchSize, flags.batchSize)
	}
	// configuration errors are reported before connecting to any server
	sourceURL, sourceUser, err := flags.source.identity()
	if err != nil {
		return err
	}
	if mode == migrate.ModeMigrate {
		if !flags.destination.isSet() {
			return fmt.Errorf("%w: destination, use --dest-account, or --dest-host and --dest-username", lib.ErrMissingParameter)
		}
		_, _, err = flags.destination.identity()
		if err != nil {
			return err
		}
	}

	logger := debugLogger()
	source, err := flags.source.open(flags.connection, logger)
	if err != nil {
		return fmt.Errorf("cannot open source: %w", err)
	}
	defer source.Close()

	var destination storage.Backend
	if mode == migrate.ModeMigrate {
		destination, err = flags.destination.open(flags.connection, logger)
		if err != nil {
			return fmt.Errorf("cannot open destination: %w", err)
		}
		defer destination.Close()
	}

	folder := mailbox.Info{Name: flags.folder, Delimiter: source.Delimiter()}
	target := mailbox.Info{}
	if flags.target != "" {
		target = mailbox.Info{Name: flags.target, Delimiter: source.Delimiter()}
	}

	progressFile := state.Path(flags.stateDir, sourceURL, sourceUser, folder.Name)
	store, err := state.Load(progressFile)
	if err != nil {
		return err
	}
	term.Debugf("progress file: %s (%d messages already done)", progressFile, store.Len())

	var archive storage.Archive
	if flags.local && !flags.dryRun {
		archiveType := cfg.ArchiveType(flags.archiveType)
		path := archivePath(archiveType, flags.archiveDir, sourceURL, sourceUser, folder.Name)
		archive, err = openArchive(archiveType, path, folder, logger)
		if err != nil {
			return fmt.Errorf("cannot open local archive: %w", err)
		}
		term.Infof("saving a local copy in %s", path)
	}

	var sessionDestination migrate.Destination
	if destination != nil {
		sessionDestination = destination
	}

	action := "Transferred/Saved"
	if mode == migrate.ModeBackup {
		action = "Saved"
	}
	reporter := newProgressReporter(action)
	handler := migrate.NewInterruptHandler(reporter.Confirm)
	defer handler.Stop()

	session, err := migrate.NewSession(migrate.Config{
		Folder:       folder,
		Target:       target,
		BatchSize:    flags.batchSize,
		MetadataFile: state.MetadataPath(flags.stateDir, sourceURL, sourceUser, folder.Name),
		AccountTag:   lib.AccountTag(sourceURL, sourceUser),
		Mode:         mode,
		DryRun:       flags.dryRun,
		Limiter:      limitio.NewLimiter(float64(flags.limit) * 1024),
	}, source, sessionDestination, archive, store,
		migrate.WithReporter(reporter),
		migrate.WithCanceller(handler),
		migrate.WithLogger(logger),
	)
	if err != nil {
		if archive != nil {
			_ = archive.Close()
		}
		return err
	}
	_, err = session.Run(ctx)
	return err
}
