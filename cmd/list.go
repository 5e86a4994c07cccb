package cmd

import (
	"strconv"
	"strings"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var (
	listEndpoint   = endpointFlags{name: "account"}
	listConnection connectionFlags
)

var listCmd = &cobra.Command{
	Use:   "list [account]",
	Short: "Display list of mailboxes",
	Long: "\nDisplay the list of mailboxes of an account from the configuration file,\n" +
		"or of the IMAP server given by the flags",
	Args: cobra.MaximumNArgs(1),
	RunE: runList,
}

func init() {
	flags := listCmd.Flags()
	addEndpointFlags(flags, &listEndpoint, "", "")
	addConnectionFlags(flags, &listConnection)
	rootCmd.AddCommand(listCmd)
}

func runList(cmd *cobra.Command, args []string) error {
	if len(args) > 0 {
		listEndpoint.account = args[0]
	}
	backend, err := listEndpoint.open(listConnection, debugLogger())
	if err != nil {
		return err
	}
	defer backend.Close()

	mailboxes, err := backend.ListMailbox()
	if err != nil {
		return err
	}
	table := pterm.DefaultTable.WithHasHeader().WithData(pterm.TableData{
		{"Mailbox", "Messages", "UID Validity", "Flags"},
	})
	for _, mailbox := range mailboxes {
		var messages, uidValidity, flags string
		status, err := backend.SelectMailbox(mailbox)
		if err == nil {
			messages = strconv.FormatUint(uint64(status.Messages), 10)
			uidValidity = strconv.FormatUint(uint64(status.UidValidity), 10)
			flags = displayFlags(status.Flags)
			_ = backend.UnselectMailbox()
		}
		table.Data = append(table.Data, []string{mailbox.Name, messages, uidValidity, flags})
	}
	return table.Render()
}

func displayFlags(source []string) string {
	flags := make([]string, len(source))
	for i, flag := range source {
		flags[i] = strings.TrimPrefix(flag, "\\")
	}
	return strings.Join(flags, ", ")
}
