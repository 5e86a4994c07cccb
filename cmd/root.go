package cmd

import (
	"log"
	"os"

	"github.com/creativeprojects/refugeemail/cfg"
	"github.com/creativeprojects/refugeemail/lib"
	"github.com/creativeprojects/refugeemail/term"
	"github.com/spf13/cobra"
)

const defaultConfigFile = "refugeemail.yaml"

var rootCmd = &cobra.Command{
	Use:   "refugeemail",
	Short: "Migrate email from one IMAP account to another, keeping a local copy",
	Long: "\nMigrate email to places with better human rights.\n" +
		"Messages are read from a source IMAP server and appended to a destination server,\n" +
		"saving a local copy in an mbox file on the way. An interrupted migration resumes where it stopped.",
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	cobra.OnInitialize(initConfig, initLog)
	flag := rootCmd.PersistentFlags()
	flag.StringVarP(&global.configFile, "config", "c", defaultConfigFile, "configuration file")
	flag.BoolVarP(&global.quiet, "quiet", "q", false, "only display warnings and errors")
	flag.BoolVarP(&global.verbose, "verbose", "v", false, "display debugging information")
}

func initConfig() {
	var err error
	// the default configuration file is optional
	mustExist := rootCmd.PersistentFlags().Changed("config")
	config, err = cfg.LoadFromFile(global.configFile, mustExist)
	if err != nil {
		term.Errorf("cannot open or read configuration file: %s", err)
		os.Exit(1)
	}
}

func initLog() {
	switch {
	case global.verbose:
		term.SetLevel(term.LevelDebug)
	case global.quiet:
		term.SetLevel(term.LevelWarn)
	}
}

// debugLogger returns the logger given to the components
func debugLogger() lib.Logger {
	if global.verbose {
		return log.Default()
	}
	return nil
}

func Execute(version, commit, date, builtBy string) {
	setApp(version, commit, date, builtBy)
	rootCmd.Version = versionInfo()
	if err := rootCmd.Execute(); err != nil {
		term.Error(err)
		os.Exit(1)
	}
}
