// Command fatimg inspects and creates FAT disk images. Only the boot sector
// and the geometry derived from it are touched; file data, directories, and
// the FAT tables themselves are left to other tools.
package main

import (
	"fmt"
	"log"
	"os"

	fatfs "github.com/Dicklessgreat/embedded-fatfs"
	"github.com/Dicklessgreat/embedded-fatfs/disks"
	"github.com/urfave/cli/v2"
)

func main() {
	app := cli.App{
		Name:  "fatimg",
		Usage: "Inspect and create FAT disk images",
		Commands: []*cli.Command{
			{
				Name:      "inspect",
				Usage:     "Decode and validate the boot sector of an image",
				Action:    inspectImage,
				ArgsUsage: "IMAGE_FILE",
			},
			{
				Name:      "format",
				Usage:     "Write a fresh boot sector to an image, creating it if needed",
				Action:    formatImage,
				ArgsUsage: "IMAGE_FILE",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "disk",
						Usage: "use a predefined disk profile `SLUG` (see list-disks)",
					},
					&cli.UintFlag{
						Name:  "total-sectors",
						Usage: "volume size in `SECTORS` (ignored when --disk is given)",
					},
					&cli.UintFlag{
						Name:  "sector-size",
						Usage: "sector size in `BYTES`",
						Value: 512,
					},
					&cli.UintFlag{
						Name:  "fat-type",
						Usage: "force FAT variant `N` (12, 16, or 32) instead of deriving it",
					},
					&cli.UintFlag{
						Name:  "cluster-size",
						Usage: "force cluster size in `BYTES` instead of deriving it",
					},
					&cli.StringFlag{
						Name:  "label",
						Usage: "volume `LABEL`, at most 11 characters",
					},
				},
			},
			{
				Name:   "list-disks",
				Usage:  "List the predefined disk profiles",
				Action: listDisks,
			},
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatalf("fatal error: %s", err.Error())
	}
}

func inspectImage(context *cli.Context) error {
	if context.NArg() != 1 {
		return fmt.Errorf("expected exactly one image file argument")
	}

	file, err := os.Open(context.Args().First())
	if err != nil {
		return err
	}
	defer file.Close()

	boot, err := fatfs.DecodeBootSector(file)
	if err != nil {
		return err
	}

	warnings := fatfs.WarningList{}
	err = boot.Validate(&warnings)
	for _, warning := range warnings.Warnings {
		log.Printf("warning: %s", warning.Message)
	}
	if err != nil {
		return err
	}

	bpb := &boot.BPB
	fatType := fatfs.FatTypeFromClusters(bpb.TotalClusters())
	fmt.Printf("OEM name:            %q\n", string(boot.OEMName[:]))
	fmt.Printf("FAT type:            %s\n", fatType)
	fmt.Printf("Bytes per sector:    %d\n", bpb.BytesPerSector)
	fmt.Printf("Sectors per cluster: %d\n", bpb.SectorsPerCluster)
	fmt.Printf("Cluster size:        %d bytes\n", bpb.ClusterSize())
	fmt.Printf("Reserved sectors:    %d\n", bpb.ReservedSectors)
	fmt.Printf("FAT copies:          %d x %d sectors\n", bpb.NumFATs, bpb.SectorsPerFAT())
	fmt.Printf("Root dir sectors:    %d\n", bpb.RootDirSectors())
	fmt.Printf("Total sectors:       %d\n", bpb.TotalSectors())
	fmt.Printf("First data sector:   %d\n", bpb.FirstDataSector())
	fmt.Printf("Total clusters:      %d\n", bpb.TotalClusters())
	if bpb.ExtSignature == 0x29 {
		fmt.Printf("Volume ID:           %08X\n", bpb.VolumeID)
		fmt.Printf("Volume label:        %q\n", string(bpb.VolumeLabel[:]))
	}
	if bpb.IsFat32() {
		fmt.Printf("FSInfo sector:       %d\n", bpb.FSInfoSector())
		fmt.Printf("Backup boot sector:  %d\n", bpb.BackupBootSector())
		fmt.Printf("FAT mirroring:       %t\n", bpb.MirroringEnabled())
	}

	flags := bpb.StatusFlags()
	if flags.Dirty {
		fmt.Println("Volume is marked DIRTY (not cleanly unmounted)")
	}
	if flags.IOError {
		fmt.Println("Volume is marked as having had I/O errors")
	}
	return nil
}

func formatImage(context *cli.Context) error {
	if context.NArg() != 1 {
		return fmt.Errorf("expected exactly one image file argument")
	}

	var options fatfs.FormatVolumeOptions
	if slug := context.String("disk"); slug != "" {
		profile, err := disks.GetDiskProfile(slug)
		if err != nil {
			return err
		}
		options = profile.FormatOptions()
	} else {
		options = fatfs.FormatVolumeOptions{
			TotalSectors:   uint32(context.Uint("total-sectors")),
			BytesPerSector: uint16(context.Uint("sector-size")),
		}
	}
	options.FatType = fatfs.FatType(context.Uint("fat-type"))
	options.BytesPerCluster = uint32(context.Uint("cluster-size"))
	options.VolumeLabel = context.String("label")

	boot, fatType, err := fatfs.FormatBootSector(&options)
	if err != nil {
		return err
	}

	sector, err := boot.Bytes()
	if err != nil {
		return err
	}

	file, err := os.OpenFile(context.Args().First(), os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()

	bpb := &boot.BPB
	err = file.Truncate(int64(bpb.BytesFromSectors(bpb.TotalSectors())))
	if err != nil {
		return err
	}

	_, err = file.WriteAt(sector, 0)
	if err != nil {
		return err
	}
	if bpb.IsFat32() {
		// FAT32 keeps a spare copy of the boot sector for recovery tools.
		backupOffset := int64(bpb.BytesFromSectors(bpb.BackupBootSector()))
		_, err = file.WriteAt(sector, backupOffset)
		if err != nil {
			return err
		}
	}

	fmt.Printf(
		"formatted %s as %s: %d sectors, %d bytes per cluster\n",
		context.Args().First(), fatType, bpb.TotalSectors(), bpb.ClusterSize())
	return nil
}

func listDisks(context *cli.Context) error {
	for slug, profile := range disks.AllDiskProfiles() {
		fmt.Printf(
			"%-10s %s (%d sectors of %d bytes)\n",
			slug, profile.Name, profile.TotalSectors, profile.BytesPerSector)
	}
	return nil
}
