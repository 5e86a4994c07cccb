package cmd

import (
	"strconv"

	"github.com/creativeprojects/refugeemail/state"
	"github.com/creativeprojects/refugeemail/term"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

const dateFormat = "2006-01-02 15:04:05 MST"

var stateFlags = transferFlags{
	source: endpointFlags{name: "source"},
}

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Display the progress of the migration of a source folder",
	RunE:  runState,
}

func init() {
	flags := stateCmd.Flags()
	flags.StringVar(&stateFlags.source.account, "source-account", "", "name of the source account in the configuration file")
	flags.StringVar(&stateFlags.source.provider, "source-provider", "", "preset host and port of the source server: "+providerNames())
	flags.StringVar(&stateFlags.source.host, "source-host", defaultSourceHost, "source host address")
	flags.IntVar(&stateFlags.source.port, "source-port", defaultPort, "source host port")
	flags.StringVar(&stateFlags.source.username, "source-username", "", "username of the source account")
	flags.StringVarP(&stateFlags.folder, "folder", "f", defaultFolder, "source folder")
	flags.StringVar(&stateFlags.stateDir, "state-dir", "", "directory of the progress files (default from configuration)")
	rootCmd.AddCommand(stateCmd)
}

func runState(cmd *cobra.Command, args []string) error {
	if config != nil {
		stateFlags.applyDefaults(config.Migrate)
	}
	serverURL, username, err := stateFlags.source.identity()
	if err != nil {
		return err
	}
	progressFile := state.Path(stateFlags.stateDir, serverURL, username, stateFlags.folder)
	store, err := state.Load(progressFile)
	if err != nil {
		return err
	}
	metadata, err := state.LoadMetadata(state.MetadataPath(stateFlags.stateDir, serverURL, username, stateFlags.folder))
	if err != nil {
		return err
	}

	term.Infof("%s on %s, folder %q", username, serverURL, stateFlags.folder)
	term.Infof("progress file: %s", progressFile)
	if store.Len() == 0 {
		term.Warn("no message migrated yet")
	} else {
		count := store.Count()
		term.Infof("%d messages done: %d archived, %d transferred only, %d empty",
			store.Len(), count[state.KindArchived], count[state.KindTransferred], count[state.KindSkipped])
	}
	if metadata.UidValidity > 0 {
		term.Infof("uid validity of the source folder: %d", metadata.UidValidity)
	}
	if len(metadata.Runs) == 0 {
		return nil
	}
	displayRuns(metadata.Runs)
	return nil
}

func displayRuns(runs []state.Run) {
	table := pterm.DefaultTable.WithBoxed(true).WithHasHeader().WithData(pterm.TableData{
		{"Date", "Action", "Messages", "Done", "Skipped", "Result"},
	})
	for _, run := range runs {
		result := "finished"
		if run.Cancelled {
			result = "cancelled"
		}
		if run.Error != "" {
			result = run.Error
		}
		table.Data = append(table.Data, []string{
			run.Date.Format(dateFormat),
			run.Mode,
			strconv.Itoa(run.Total),
			strconv.Itoa(run.Transferred),
			strconv.Itoa(run.Skipped),
			result,
		})
	}
	_ = table.Render()
}
