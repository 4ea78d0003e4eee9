// Package remote stages local fixture files onto an SSH target over
// SFTP before a remote script run.
package remote

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"

	"github.com/pkg/sftp"
	"golang.org/x/crypto/ssh"
)

// Dialer yields an SSH client connection. *spawn.SSHSpawner satisfies it.
type Dialer interface {
	Dial() (*ssh.Client, error)
}

// StageFixtures copies each local file into dir on the remote host,
// creating the directory first. Paths keep only their base name; a
// fixture "testdata/input.json" lands at "<dir>/input.json". An empty
// dir stages into the remote user's home.
func StageFixtures(d Dialer, fixtures []string, dir string, logger *slog.Logger) error {
	if len(fixtures) == 0 {
		return nil
	}
	if logger == nil {
		logger = slog.Default()
	}

	client, err := d.Dial()
	if err != nil {
		return fmt.Errorf("stage fixtures: %w", err)
	}
	defer client.Close()

	sf, err := sftp.NewClient(client)
	if err != nil {
		return fmt.Errorf("stage fixtures: open sftp: %w", err)
	}
	defer sf.Close()

	if dir != "" {
		if err := sf.MkdirAll(dir); err != nil {
			return fmt.Errorf("stage fixtures: mkdir %s: %w", dir, err)
		}
	}

	for _, fixture := range fixtures {
		dst := path.Join(dir, filepath.Base(fixture))
		if err := uploadFile(sf, fixture, dst); err != nil {
			return fmt.Errorf("stage fixture %s: %w", fixture, err)
		}
		logger.Debug("fixture staged", "local", fixture, "remote", dst)
	}
	return nil
}

func uploadFile(sf *sftp.Client, local, remotePath string) error {
	lf, err := os.Open(local)
	if err != nil {
		return err
	}
	defer lf.Close()

	rf, err := sf.OpenFile(remotePath, os.O_CREATE|os.O_TRUNC|os.O_WRONLY)
	if err != nil {
		return err
	}
	if _, err := io.Copy(rf, lf); err != nil {
		rf.Close()
		return err
	}
	return rf.Close()
}
