package main

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/hupe1980/blockfs"
	"github.com/hupe1980/blockfs/blockdev"
	"github.com/hupe1980/blockfs/image"
)

func main() {
	config, err := loadConfig()
	if err != nil {
		log.Fatal(err)
	}

	imageFlag := &cli.StringFlag{
		Name:    "image",
		Aliases: []string{"i"},
		Usage:   "path to the disk image",
	}

	app := cli.App{
		Name:  "blockfs",
		Usage: "manage blockfs single-volume disk images",
		Commands: []*cli.Command{{
			Name:        "mkfs",
			Description: "create a disk image and format an empty volume onto it",
			Flags: []cli.Flag{imageFlag, &cli.IntFlag{
				Name:  "blocks",
				Usage: "total number of 4096-byte blocks",
				Value: 1024,
			}},
			Action: func(ctx *cli.Context) error {
				path, err := config.imagePath(ctx.String("image"))
				if err != nil {
					return err
				}
				dev, err := blockdev.CreateFile(path, ctx.Int("blocks"))
				if err != nil {
					return err
				}
				if err := blockfs.Format(dev); err != nil {
					_ = dev.Close()
					return err
				}
				return dev.Close()
			},
		}, {
			Name:        "info",
			Description: "print volume geometry and free-space ratios",
			Flags:       []cli.Flag{imageFlag},
			Action: withVolume(config, func(v *blockfs.Volume, ctx *cli.Context) error {
				info, err := v.Info()
				if err != nil {
					return err
				}
				fmt.Printf("total_blk_count=%d\n", info.TotalBlocks)
				fmt.Printf("fat_blk_count=%d\n", info.FATBlocks)
				fmt.Printf("rdir_blk=%d\n", info.DirBlock)
				fmt.Printf("data_blk=%d\n", info.DataStart)
				fmt.Printf("data_blk_count=%d\n", info.DataBlocks)
				fmt.Printf("fat_free_ratio=%d/%d\n", info.FreeBlocks, info.DataBlocks)
				fmt.Printf("rdir_free_ratio=%d/%d\n", info.FreeDirEntries, info.MaxFiles)
				return nil
			}),
		}, {
			Name:        "ls",
			Description: "list files with size and first data block",
			Flags:       []cli.Flag{imageFlag},
			Action: withVolume(config, func(v *blockfs.Volume, ctx *cli.Context) error {
				files, err := v.List()
				if err != nil {
					return err
				}
				for _, f := range files {
					fmt.Printf("file: %s, size: %d, data_blk: %d\n", f.Name, f.Size, f.FirstBlock)
				}
				return nil
			}),
		}, {
			Name:        "cat",
			Description: "write a file's contents to stdout",
			Flags:       []cli.Flag{imageFlag},
			ArgsUsage:   "FILE",
			Action: withVolume(config, func(v *blockfs.Volume, ctx *cli.Context) error {
				return catFile(v, ctx.Args().Get(0), os.Stdout)
			}),
		}, {
			Name:        "put",
			Description: "copy a host file into the volume",
			Flags: []cli.Flag{imageFlag, &cli.StringFlag{
				Name:  "as",
				Usage: "name inside the volume (defaults to the host basename)",
			}},
			ArgsUsage: "HOSTFILE",
			Action: withVolume(config, func(v *blockfs.Volume, ctx *cli.Context) error {
				return putFile(v, ctx.Args().Get(0), ctx.String("as"))
			}),
		}, {
			Name:        "rm",
			Description: "delete a file",
			Flags:       []cli.Flag{imageFlag},
			ArgsUsage:   "FILE",
			Action: withVolume(config, func(v *blockfs.Volume, ctx *cli.Context) error {
				return v.Delete(ctx.Args().Get(0))
			}),
		}, {
			Name:        "fsck",
			Description: "verify allocation chain integrity",
			Flags:       []cli.Flag{imageFlag},
			Action: withVolume(config, func(v *blockfs.Volume, ctx *cli.Context) error {
				if err := v.CheckIntegrity(); err != nil {
					return err
				}
				fmt.Println("clean")
				return nil
			}),
		}, {
			Name:        "export",
			Description: "export the volume as a compressed image stream",
			Flags:       []cli.Flag{imageFlag},
			ArgsUsage:   "OUT",
			Action: func(ctx *cli.Context) error {
				return withDevice(config, ctx, func(dev blockdev.Device) error {
					out, err := os.Create(ctx.Args().Get(0))
					if err != nil {
						return err
					}
					if err := image.Export(dev, out); err != nil {
						_ = out.Close()
						return err
					}
					return out.Close()
				})
			},
		}, {
			Name:        "import",
			Description: "restore a volume from a compressed image stream",
			Flags:       []cli.Flag{imageFlag},
			ArgsUsage:   "IN",
			Action: func(ctx *cli.Context) error {
				return withDevice(config, ctx, func(dev blockdev.Device) error {
					in, err := os.Open(ctx.Args().Get(0))
					if err != nil {
						return err
					}
					defer in.Close()
					return image.Import(dev, in)
				})
			},
		}},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal(err)
	}
}

// withVolume mounts the image around the action and unmounts afterwards, so
// metadata changes are persisted exactly once.
func withVolume(config *Config, fn func(*blockfs.Volume, *cli.Context) error) cli.ActionFunc {
	return func(ctx *cli.Context) error {
		path, err := config.imagePath(ctx.String("image"))
		if err != nil {
			return err
		}
		v, err := blockfs.MountFile(path, blockfs.WithLogger(config.logger()))
		if err != nil {
			return err
		}
		if err := fn(v, ctx); err != nil {
			_ = v.Unmount()
			return err
		}
		return v.Unmount()
	}
}

// withDevice opens the image without mounting, for whole-device operations.
func withDevice(config *Config, ctx *cli.Context, fn func(blockdev.Device) error) error {
	path, err := config.imagePath(ctx.String("image"))
	if err != nil {
		return err
	}
	dev, err := blockdev.OpenFile(path)
	if err != nil {
		return err
	}
	if err := fn(dev); err != nil {
		_ = dev.Close()
		return err
	}
	return dev.Close()
}

func catFile(v *blockfs.Volume, name string, w io.Writer) error {
	if name == "" {
		return fmt.Errorf("missing FILE argument")
	}
	fd, err := v.Open(name)
	if err != nil {
		return err
	}
	defer func() { _ = v.Close(fd) }()

	buf := make([]byte, blockdev.BlockSize)
	for {
		n, err := v.Read(fd, buf)
		if err != nil {
			return err
		}
		if n == 0 {
			return nil
		}
		if _, err := w.Write(buf[:n]); err != nil {
			return err
		}
	}
}

func putFile(v *blockfs.Volume, hostPath, name string) error {
	if hostPath == "" {
		return fmt.Errorf("missing HOSTFILE argument")
	}
	if name == "" {
		name = filepath.Base(hostPath)
	}
	data, err := os.ReadFile(hostPath) //nolint:gosec // G304: path is caller-provided
	if err != nil {
		return err
	}
	if err := v.Create(name); err != nil {
		return err
	}
	fd, err := v.Open(name)
	if err != nil {
		return err
	}
	defer func() { _ = v.Close(fd) }()

	n, err := v.Write(fd, data)
	if err != nil {
		return err
	}
	if n < len(data) {
		return fmt.Errorf("volume full: wrote %d of %d bytes", n, len(data))
	}
	return nil
}
