package state

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/creativeprojects/refugeemail/lib"
)

// Path returns the progress file of a folder on a source account.
// The same account and folder always give the same file.
func Path(dir, serverURL, username, folder string) string {
	return filepath.Join(dir, lib.AccountTag(serverURL, username), lib.EscapeFilename(folder)+".progress.json")
}

// MetadataPath returns the file next to the progress file holding the folder metadata
func MetadataPath(dir, serverURL, username, folder string) string {
	return filepath.Join(dir, lib.AccountTag(serverURL, username), lib.EscapeFilename(folder)+".meta.json")
}

// writeFileAtomic replaces filename with data: readers either see the previous content or the new one
func writeFileAtomic(filename string, data []byte) error {
	dir := filepath.Dir(filename)
	err := os.MkdirAll(dir, 0o700)
	if err != nil {
		return fmt.Errorf("cannot create directory %q: %w", dir, err)
	}
	file, err := os.CreateTemp(dir, filepath.Base(filename)+".*.tmp")
	if err != nil {
		return err
	}
	tempName := file.Name()
	defer func() {
		// no-op once renamed
		_ = os.Remove(tempName)
	}()

	_, err = file.Write(data)
	if err != nil {
		file.Close()
		return err
	}
	err = file.Sync()
	if err != nil {
		file.Close()
		return err
	}
	err = file.Close()
	if err != nil {
		return err
	}
	return os.Rename(tempName, filename)
}
