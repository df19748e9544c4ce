// Command mknanofs formats a new NanoFS image file, optionally seeding it
// from a host directory tree (mknanofs.c plus go-diskfs's sync package,
// spec §6 "Creation").
package main

import (
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/paulino/nanofs-fuse/device"
	"github.com/paulino/nanofs-fuse/filesystem/nanofs"
	nsync "github.com/paulino/nanofs-fuse/sync"
)

var log = logrus.New()

var (
	flagSize  string
	flagLabel string
	flagSeed  string
	flagForce bool
)

var rootCmd = &cobra.Command{
	Use:   "mknanofs IMAGE",
	Short: "Format a NanoFS image",
	Long: `mknanofs formats IMAGE as a new, empty NanoFS filesystem: a
superblock, a root directory, and the remainder of the device as one
free-list node (spec §6). Pass --seed to additionally copy a host
directory tree into the freshly formatted image.`,
	Args: cobra.ExactArgs(1),
	RunE: runMknanofs,
}

func init() {
	rootCmd.Flags().StringVarP(&flagSize, "size", "s", "1MiB", "image size, e.g. 512KiB, 16MiB, 1GiB")
	rootCmd.Flags().StringVarP(&flagLabel, "label", "l", "", "volume label, stored in the root directory node")
	rootCmd.Flags().StringVar(&flagSeed, "seed", "", "host directory to copy into the new image")
	rootCmd.Flags().BoolVarP(&flagForce, "force", "f", false, "overwrite IMAGE if it already exists")
	rootCmd.SilenceUsage = true
}

func parseSize(s string) (int64, error) {
	var value float64
	var unit string
	if _, err := fmt.Sscanf(s, "%f%s", &value, &unit); err != nil {
		return 0, fmt.Errorf("invalid size %q: %w", s, err)
	}
	mult := map[string]float64{
		"B": 1, "KiB": 1 << 10, "MiB": 1 << 20, "GiB": 1 << 30,
	}[unit]
	if mult == 0 {
		return 0, fmt.Errorf("invalid size unit %q (want B, KiB, MiB, or GiB)", unit)
	}
	return int64(value * mult), nil
}

func runMknanofs(cmd *cobra.Command, args []string) error {
	imagePath := args[0]
	size, err := parseSize(flagSize)
	if err != nil {
		return err
	}

	if flagForce {
		if err := os.Remove(imagePath); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("removing existing image: %w", err)
		}
	}

	storage, err := device.CreatePath(imagePath, size)
	if err != nil {
		return fmt.Errorf("creating image: %w", err)
	}

	fs, err := nanofs.Create(storage, size, flagLabel)
	if err != nil {
		return fmt.Errorf("formatting image: %w", err)
	}
	log.Infof("formatted %s (%d bytes, label %q)", imagePath, size, flagLabel)

	if flagSeed != "" {
		if err := nsync.CopyFileSystem(os.DirFS(flagSeed), fs); err != nil {
			return fmt.Errorf("seeding from %s: %w", flagSeed, err)
		}
		log.Infof("seeded image from %s", flagSeed)
	}

	free, err := fs.FreeBytes()
	if err == nil {
		log.Infof("%d bytes free", free)
	}
	return nil
}

func main() {
	log.SetFormatter(&logrus.TextFormatter{DisableTimestamp: true})
	if err := rootCmd.Execute(); err != nil {
		log.Error(err)
		os.Exit(1)
	}
}
