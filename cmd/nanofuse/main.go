// Command nanofuse mounts a NanoFS image at a mountpoint via FUSE
// (nanofuse.c, spec §1's "userspace-filesystem bridge"). The mount is
// always single-threaded: the engine is not safe for concurrent access
// (spec §5), so there is no flag to opt into multi-threaded dispatch the
// way nanofuse.c exposed one.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jacobsa/fuse"
	"github.com/jacobsa/fuse/fuseutil"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
	"golang.org/x/xerrors"

	"github.com/paulino/nanofs-fuse/device"
	"github.com/paulino/nanofs-fuse/filesystem/nanofs"
	"github.com/paulino/nanofs-fuse/internal/fuseadapter"
)

var log = logrus.New()

var flagReadOnly bool

var rootCmd = &cobra.Command{
	Use:   "nanofuse IMAGE MOUNTPOINT",
	Short: "Mount a NanoFS image over FUSE",
	Args:  cobra.ExactArgs(2),
	RunE:  runMount,
}

func init() {
	rootCmd.Flags().BoolVar(&flagReadOnly, "read-only", false, "mount read-only")
	rootCmd.SilenceUsage = true
}

func runMount(cmd *cobra.Command, args []string) error {
	imagePath, mountpoint := args[0], args[1]

	storage, size, _, err := device.OpenPath(imagePath, flagReadOnly)
	if err != nil {
		return xerrors.Errorf("opening %s: %w", imagePath, err)
	}

	nfs, err := nanofs.Read(storage, size, flagReadOnly)
	if err != nil {
		storage.Close()
		return xerrors.Errorf("reading %s: %w", imagePath, err)
	}

	bridge := fuseadapter.New(nfs)
	server := fuseutil.NewFileSystemServer(bridge)

	// nanofuse.c exposed a -s/single-threaded flag; the engine has no
	// internal locking for concurrent callers to rely on (spec §5), so
	// this bridge never offers anything else.
	mfs, err := fuse.Mount(mountpoint, server, &fuse.MountConfig{
		FSName:   "nanofs",
		ReadOnly: flagReadOnly,
		Options: map[string]string{
			"allow_other": "",
		},
	})
	if err != nil {
		storage.Close()
		return xerrors.Errorf("mounting %s at %s: %w", imagePath, mountpoint, err)
	}
	log.Infof("mounted %s at %s", imagePath, mountpoint)

	var eg errgroup.Group
	eg.Go(func() error {
		return mfs.Join(context.Background())
	})

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	eg.Go(func() error {
		<-sig
		log.Infof("received signal, unmounting %s", mountpoint)
		return fuse.Unmount(mountpoint)
	})

	if err := eg.Wait(); err != nil {
		return xerrors.Errorf("serving %s: %w", mountpoint, err)
	}
	return storage.Close()
}

func main() {
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
