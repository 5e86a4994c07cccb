package cmd

import (
	"context"
	"fmt"
	"log"
	"os"
	"runtime"
	"strings"
	"time"

	"github.com/creativeprojects/go-selfupdate"
	"github.com/creativeprojects/refugeemail/term"
	"github.com/spf13/cobra"
)

const (
	repositoryOwner = "creativeprojects"
	repositoryName  = "refugeemail"
	checkTimeout    = 30 * time.Second
)

var selfUpdateFlags struct {
	check bool
	yes   bool
}

var selfUpdateCmd = &cobra.Command{
	Use:   "selfupdate",
	Short: "Download the latest release of refugeemail from GitHub and replace the current binary",
	RunE:  runSelfUpdate,
}

var (
	appVersion = ""
	appCommit  = ""
	appDate    = ""
	appBuiltBy = ""
)

func init() {
	flags := selfUpdateCmd.Flags()
	flags.BoolVar(&selfUpdateFlags.check, "check", false, "only check if a new version is available")
	flags.BoolVarP(&selfUpdateFlags.yes, "yes", "y", false, "install the new version without asking")
	rootCmd.AddCommand(selfUpdateCmd)
}

func setApp(version, commit, date, builtBy string) {
	appVersion = version
	appCommit = commit
	appDate = date
	appBuiltBy = builtBy
}

// versionInfo is displayed by --version
func versionInfo() string {
	details := make([]string, 0, 3)
	if appCommit != "" {
		details = append(details, "commit "+appCommit)
	}
	if appDate != "" {
		details = append(details, "built "+appDate)
	}
	if appBuiltBy != "" {
		details = append(details, "by "+appBuiltBy)
	}
	details = append(details, runtime.GOOS+"/"+runtime.GOARCH)
	return fmt.Sprintf("%s (%s)", appVersion, strings.Join(details, ", "))
}

func runSelfUpdate(cmd *cobra.Command, args []string) error {
	if global.verbose {
		selfupdate.SetLogger(log.Default())
	}
	// only filters return an error
	updater, _ := selfupdate.NewUpdater(selfupdate.Config{
		Validator: &selfupdate.ChecksumValidator{UniqueFilename: "checksums.txt"},
	})

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	latest, err := findUpdate(ctx, updater)
	if err != nil || latest == nil {
		return err
	}
	term.Infof("version %s is available (current version is %s)", latest.Version(), appVersion)
	if selfUpdateFlags.check {
		return nil
	}
	if !selfUpdateFlags.yes && !term.Confirm(fmt.Sprintf("Install version %s?", latest.Version()), true) {
		return nil
	}

	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("cannot locate the current binary: %w", err)
	}
	if err := updater.UpdateTo(ctx, latest, exe); err != nil {
		return fmt.Errorf("cannot install version %s: %w", latest.Version(), err)
	}
	term.Infof("updated to version %s", latest.Version())
	return nil
}

// findUpdate returns nil when the current version is the latest
func findUpdate(ctx context.Context, updater *selfupdate.Updater) (*selfupdate.Release, error) {
	ctx, cancel := context.WithTimeout(ctx, checkTimeout)
	defer cancel()

	latest, found, err := updater.DetectLatest(ctx, selfupdate.NewRepositorySlug(repositoryOwner, repositoryName))
	if err != nil {
		return nil, fmt.Errorf("cannot detect the latest version: %w", err)
	}
	if !found {
		return nil, fmt.Errorf("no release found for %s/%s", runtime.GOOS, runtime.GOARCH)
	}
	if latest.LessOrEqual(appVersion) {
		term.Infof("current version %s is the latest", appVersion)
		return nil, nil
	}
	return latest, nil
}
