package fatfs

import (
	"fmt"
	"math/bits"
)

const (
	kib uint64 = 1024
	mib uint64 = kib * 1024
	gib uint64 = mib * 1024
)

// FormatVolumeOptions holds the format-time choices for synthesizing a boot
// sector. TotalSectors and BytesPerSector are required; every other field is
// optional and its zero value means "pick the documented default".
type FormatVolumeOptions struct {
	// TotalSectors is the size of the volume being formatted, in sectors.
	TotalSectors uint32
	// BytesPerSector is the sector size of the underlying medium. Must be a
	// power of two between 512 and 4096.
	BytesPerSector uint16

	// FatType forces a FAT variant instead of deriving one from the volume
	// size. Formatting still fails if the resulting cluster count contradicts
	// the choice.
	FatType FatType
	// BytesPerCluster overrides the cluster size heuristic. Must be a power
	// of two no smaller than BytesPerSector.
	BytesPerCluster uint32
	// RootEntryCount is the size of the fixed root directory on FAT12/16
	// volumes; defaults to 512 entries. Ignored (forced to zero) on FAT32.
	RootEntryCount uint16

	// DriveNumber defaults to 0 for FAT12 (floppies) and 0x80 otherwise.
	DriveNumber uint8
	// Media defaults to 0xF8 (fixed disk).
	Media uint8
	// SectorsPerTrack defaults to 0x20.
	SectorsPerTrack uint16
	// NumHeads defaults to 0x40.
	NumHeads uint16
	// VolumeID defaults to 0x12345678.
	VolumeID uint32
	// VolumeLabel is padded with spaces to 11 bytes; defaults to "NO NAME".
	VolumeLabel string
}

// DetermineFatType picks the FAT variant for a volume of the given size using
// fixed thresholds: anything under 4 MiB is FAT12, anything under 512 MiB is
// FAT16, everything else is FAT32.
func DetermineFatType(totalBytes uint64) FatType {
	if totalBytes < 4*mib {
		return Fat12
	}
	if totalBytes < 512*mib {
		return Fat16
	}
	return Fat32
}

// determineBytesPerCluster picks a cluster size for the volume from piecewise
// threshold tables, one per FAT variant, each doubling the cluster size at
// its breakpoint. The result is clamped to [bytesPerSector, 32 KiB] and is
// always a power of two.
func determineBytesPerCluster(totalBytes uint64, fatType FatType, bytesPerSector uint16) uint32 {
	var bytesPerCluster uint32
	switch fatType {
	case Fat12:
		bytesPerCluster = uint32(nextPowerOfTwo(totalBytes) / mib * 512)
	case Fat16:
		if totalBytes <= 16*mib {
			bytesPerCluster = uint32(kib)
		} else if totalBytes <= 128*mib {
			bytesPerCluster = uint32(2 * kib)
		} else {
			bytesPerCluster = uint32(nextPowerOfTwo(totalBytes) / (64 * mib) * kib)
		}
	default:
		if totalBytes <= 260*mib {
			bytesPerCluster = 512
		} else if totalBytes <= 8*gib {
			bytesPerCluster = uint32(4 * kib)
		} else {
			bytesPerCluster = uint32(nextPowerOfTwo(totalBytes) / (2 * gib) * kib)
		}
	}

	const maxClusterSize = uint32(32 * 1024)
	if bytesPerCluster < uint32(bytesPerSector) {
		bytesPerCluster = uint32(bytesPerSector)
	}
	if bytesPerCluster > maxClusterSize {
		bytesPerCluster = maxClusterSize
	}
	return bytesPerCluster
}

// determineSectorsPerFAT estimates the size of one FAT copy in sectors.
//
// This is the approximation used by other FAT formatters, not an exact
// back-solve; slightly oversizing the FAT is harmless, and the cluster-count
// consistency check at the end of FormatBPB is what actually rejects bad
// outcomes. TODO(format): check whether the estimate is always sufficient for
// FAT12, where entries straddle byte boundaries.
func determineSectorsPerFAT(
	totalSectors uint32,
	reservedSectors uint16,
	fats uint8,
	rootDirSectors uint32,
	sectorsPerCluster uint8,
	fatType FatType,
) uint32 {
	tmp1 := totalSectors - (uint32(reservedSectors) + rootDirSectors)
	tmp2 := 256*uint32(sectorsPerCluster) + uint32(fats)
	if fatType == Fat32 {
		tmp2 /= 2
	} else if fatType == Fat12 {
		tmp2 = tmp2 / 3 * 4
	}
	return (tmp1 + tmp2 - 1) / tmp2
}

// FormatBPB derives a complete, internally consistent BPB from the options.
// It fails if the volume is too small to hold its own metadata, or if the
// cluster count of the assembled BPB contradicts the chosen FAT variant.
func FormatBPB(options *FormatVolumeOptions) (*BiosParameterBlock, FatType, error) {
	if options.TotalSectors == 0 {
		return nil, 0, ErrInvalidArgument.WithMessage("TotalSectors is required")
	}
	if !isPowerOfTwo(uint32(options.BytesPerSector)) ||
		options.BytesPerSector < 512 || options.BytesPerSector > 4096 {
		return nil, 0, ErrInvalidArgument.WithMessage(fmt.Sprintf(
			"BytesPerSector must be a power of two in 512-4096, got %d",
			options.BytesPerSector))
	}

	bytesPerSector := options.BytesPerSector
	totalSectors := options.TotalSectors
	totalBytes := uint64(totalSectors) * uint64(bytesPerSector)

	fatType := options.FatType
	if fatType == 0 {
		fatType = DetermineFatType(totalBytes)
	}
	switch fatType {
	case Fat12, Fat16, Fat32:
	default:
		return nil, 0, ErrInvalidArgument.WithMessage(fmt.Sprintf(
			"FatType must be 12, 16, or 32, got %d", fatType))
	}
	isFat32 := fatType == Fat32

	bytesPerCluster := options.BytesPerCluster
	if bytesPerCluster == 0 {
		bytesPerCluster = determineBytesPerCluster(totalBytes, fatType, bytesPerSector)
	}
	if !isPowerOfTwo(bytesPerCluster) || bytesPerCluster < uint32(bytesPerSector) {
		return nil, 0, ErrInvalidArgument.WithMessage(fmt.Sprintf(
			"BytesPerCluster must be a power of two no smaller than the sector size, got %d",
			bytesPerCluster))
	}
	if bytesPerCluster/uint32(bytesPerSector) > 128 {
		return nil, 0, ErrInvalidArgument.WithMessage(fmt.Sprintf(
			"BytesPerCluster %d requires more than 128 sectors per cluster",
			bytesPerCluster))
	}
	sectorsPerCluster := uint8(bytesPerCluster / uint32(bytesPerSector))

	// Most formatters use 32 reserved sectors for FAT32, which wastes space.
	// Four are enough: two boot sectors, one FSInfo sector, one spare.
	var reservedSectors uint16 = 1
	if isFat32 {
		reservedSectors = 4
	}

	var fats uint8 = 2

	var rootEntryCount uint16
	if !isFat32 {
		rootEntryCount = options.RootEntryCount
		if rootEntryCount == 0 {
			rootEntryCount = 512
		}
	}
	rootDirBytes := uint32(rootEntryCount) * DirentSize
	rootDirSectors := (rootDirBytes + uint32(bytesPerSector) - 1) / uint32(bytesPerSector)

	// A volume with less than 8 sectors left over for the FATs and the data
	// region makes little sense.
	if totalSectors <= uint32(reservedSectors)+rootDirSectors+8 {
		return nil, 0, ErrVolumeTooSmall.WithMessage(fmt.Sprintf(
			"%d sectors leave no room for a FAT and data after %d reserved and %d root directory sectors",
			totalSectors, reservedSectors, rootDirSectors))
	}

	sectorsPerFAT := determineSectorsPerFAT(
		totalSectors, reservedSectors, fats, rootDirSectors, sectorsPerCluster, fatType)

	// 0 for floppy disks, 0x80 for hard disks.
	driveNumber := options.DriveNumber
	if driveNumber == 0 && fatType != Fat12 {
		driveNumber = 0x80
	}

	media := options.Media
	if media == 0 {
		media = 0xF8
	}
	sectorsPerTrack := options.SectorsPerTrack
	if sectorsPerTrack == 0 {
		sectorsPerTrack = 0x20
	}
	numHeads := options.NumHeads
	if numHeads == 0 {
		numHeads = 0x40
	}
	volumeID := options.VolumeID
	if volumeID == 0 {
		volumeID = 0x12345678
	}

	label := options.VolumeLabel
	if label == "" {
		label = "NO NAME"
	}
	var volumeLabel [11]byte
	copy(volumeLabel[:], "           ")
	copy(volumeLabel[:], label)

	var totalSectors16 uint16
	var totalSectors32 uint32
	if totalSectors < 0x10000 {
		totalSectors16 = uint16(totalSectors)
	} else {
		totalSectors32 = totalSectors
	}

	var sectorsPerFAT16 uint16
	var fat32 *Fat32Parameters
	if isFat32 {
		fat32 = &Fat32Parameters{
			SectorsPerFAT32:     sectorsPerFAT,
			ExtendedFlags:       0, // mirroring enabled
			FSVersion:           0,
			RootDirFirstCluster: 2,
			FSInfoSector:        1,
			BackupBootSector:    6,
		}
	} else {
		sectorsPerFAT16 = uint16(sectorsPerFAT)
	}

	bpb := BiosParameterBlock{
		BytesPerSector:    bytesPerSector,
		SectorsPerCluster: sectorsPerCluster,
		ReservedSectors:   reservedSectors,
		NumFATs:           fats,
		RootEntryCount:    rootEntryCount,
		TotalSectors16:    totalSectors16,
		Media:             media,
		SectorsPerFAT16:   sectorsPerFAT16,
		SectorsPerTrack:   sectorsPerTrack,
		NumHeads:          numHeads,
		HiddenSectors:     0,
		TotalSectors32:    totalSectors32,
		Fat32:             fat32,
		DriveNumber:       driveNumber,
		ReservedByte:      0,
		ExtSignature:      extendedBootSignature,
		VolumeID:          volumeID,
		VolumeLabel:       volumeLabel,
		FSTypeLabel:       fatType.Label(),
	}

	// The sectors-per-FAT estimate above is only a guess; this re-derivation
	// from the assembled geometry is the authoritative correctness gate.
	if FatTypeFromClusters(bpb.TotalClusters()) != fatType {
		return nil, 0, ErrGeometryMismatch.WithMessage(fmt.Sprintf(
			"%d clusters does not fit %s; try another volume size",
			bpb.TotalClusters(), fatType))
	}

	return &bpb, fatType, nil
}

// bootStub is x86 real-mode code copied from a FAT32 boot sector initialized
// by mkfs.fat. It prints "This is not a bootable disk..." and reboots when a
// key is pressed.
var bootStub = [129]byte{
	0x0E, 0x1F, 0xBE, 0x77, 0x7C, 0xAC, 0x22, 0xC0, 0x74, 0x0B, 0x56, 0xB4, 0x0E, 0xBB, 0x07, 0x00,
	0xCD, 0x10, 0x5E, 0xEB, 0xF0, 0x32, 0xE4, 0xCD, 0x16, 0xCD, 0x19, 0xEB, 0xFE, 0x54, 0x68, 0x69,
	0x73, 0x20, 0x69, 0x73, 0x20, 0x6E, 0x6F, 0x74, 0x20, 0x61, 0x20, 0x62, 0x6F, 0x6F, 0x74, 0x61,
	0x62, 0x6C, 0x65, 0x20, 0x64, 0x69, 0x73, 0x6B, 0x2E, 0x20, 0x20, 0x50, 0x6C, 0x65, 0x61, 0x73,
	0x65, 0x20, 0x69, 0x6E, 0x73, 0x65, 0x72, 0x74, 0x20, 0x61, 0x20, 0x62, 0x6F, 0x6F, 0x74, 0x61,
	0x62, 0x6C, 0x65, 0x20, 0x66, 0x6C, 0x6F, 0x70, 0x70, 0x79, 0x20, 0x61, 0x6E, 0x64, 0x0D, 0x0A,
	0x70, 0x72, 0x65, 0x73, 0x73, 0x20, 0x61, 0x6E, 0x79, 0x20, 0x6B, 0x65, 0x79, 0x20, 0x74, 0x6F,
	0x20, 0x74, 0x72, 0x79, 0x20, 0x61, 0x67, 0x61, 0x69, 0x6E, 0x20, 0x2E, 0x2E, 0x2E, 0x20, 0x0D,
	0x0A,
}

// FormatBootSector derives a BPB for the options and wraps it in a complete
// boot sector with the legacy boot stub, ready to be written to the first
// sector of the medium.
func FormatBootSector(options *FormatVolumeOptions) (*BootSector, FatType, error) {
	bpb, fatType, err := FormatBPB(options)
	if err != nil {
		return nil, 0, err
	}

	boot := BootSector{
		JmpBoot:   [3]byte{0xEB, 0x58, 0x90},
		OEMName:   [8]byte{'M', 'S', 'W', 'I', 'N', '4', '.', '1'},
		BPB:       *bpb,
		Signature: bootSignature,
	}
	copy(boot.BootCode[:], bootStub[:])

	// The stub was taken from a FAT32 sector, where the boot code region
	// starts at offset 0x5A. The short BPB layout puts it at 0x3E instead, so
	// the jump displacement and the absolute address of the message text
	// embedded in the stub both have to be patched.
	if fatType != Fat32 {
		const bootCodeOffset = 0x36 + 8
		boot.JmpBoot[1] = bootCodeOffset - 2

		const messageOffset = 29
		messageAddress := bootCodeOffset + messageOffset + 0x7C00
		boot.BootCode[3] = byte(messageAddress & 0xFF)
		boot.BootCode[4] = byte(messageAddress >> 8)
	}

	return &boot, fatType, nil
}

func nextPowerOfTwo(value uint64) uint64 {
	if value <= 1 {
		return 1
	}
	return 1 << bits.Len64(value-1)
}
