package fatfs

import (
	"encoding/binary"
	"fmt"
	"io"
)

// maximumCompatibilityBytesPerCluster is the largest cluster size that all
// known FAT implementations handle. Larger clusters are legal but trigger a
// compatibility warning during validation.
const maximumCompatibilityBytesPerCluster = 32 * 1024

// extendedBootSignature marks the volume_id/volume_label/fs_type_label fields
// as meaningful. Any other value means those fields hold garbage.
const extendedBootSignature = 0x29

// rawBPBCommon is the on-disk layout of the BPB fields shared by every FAT
// variant, starting at offset 11 of the boot sector. All integers are
// little-endian.
type rawBPBCommon struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntryCount    uint16
	TotalSectors16    uint16
	Media             uint8
	SectorsPerFAT16   uint16
	SectorsPerTrack   uint16
	NumHeads          uint16
	HiddenSectors     uint32
	TotalSectors32    uint32
}

// rawFat32Extension is the on-disk layout of the extra fields a FAT32 BPB
// carries between the common header and the footer.
type rawFat32Extension struct {
	SectorsPerFAT32     uint32
	ExtendedFlags       uint16
	FSVersion           uint16
	RootDirFirstCluster uint32
	FSInfoSector        uint16
	BackupBootSector    uint16
	Reserved            [12]byte
}

// rawBPBFooter is the on-disk layout of the fields that close out the BPB on
// every variant. On FAT12/16 it immediately follows the common header; on
// FAT32 it follows the extension.
type rawBPBFooter struct {
	DriveNumber  uint8
	ReservedByte uint8
	ExtSignature uint8
	VolumeID     uint32
	VolumeLabel  [11]byte
	FSTypeLabel  [8]byte
}

// Fat32Parameters holds the BPB fields that only exist in the FAT32 layout.
type Fat32Parameters struct {
	SectorsPerFAT32 uint32
	ExtendedFlags   uint16
	FSVersion       uint16
	// RootDirFirstCluster is the first cluster of the root directory, which
	// on FAT32 lives in the data region like any other directory.
	RootDirFirstCluster uint32
	FSInfoSector        uint16
	BackupBootSector    uint16
	Reserved            [12]byte
}

// BiosParameterBlock is the decoded geometry header embedded in a FAT boot
// sector.
//
// Which of the two on-disk layouts a BPB uses is not stored in a flag; it is
// structural. A zero SectorsPerFAT16 can only mean FAT32 (the field is
// mandatory and non-zero on FAT12/16), so decoding probes that field and
// selects the layout from it. Fat32 is non-nil exactly when SectorsPerFAT16
// is zero.
type BiosParameterBlock struct {
	BytesPerSector    uint16
	SectorsPerCluster uint8
	ReservedSectors   uint16
	NumFATs           uint8
	RootEntryCount    uint16
	TotalSectors16    uint16
	Media             uint8
	SectorsPerFAT16   uint16
	SectorsPerTrack   uint16
	NumHeads          uint16
	HiddenSectors     uint32
	TotalSectors32    uint32

	// Fat32 holds the extended fields of the FAT32 layout. It is non-nil if
	// and only if SectorsPerFAT16 is zero.
	Fat32 *Fat32Parameters

	DriveNumber uint8
	// ReservedByte is reserved by the BPB layout but reused by operating
	// systems to persist volume status bits; see StatusFlags.
	ReservedByte uint8
	ExtSignature uint8
	VolumeID     uint32
	VolumeLabel  [11]byte
	FSTypeLabel  [8]byte
}

// DecodeBiosParameterBlock reads a BPB from `reader`, which must be
// positioned at offset 11 of the boot sector. It consumes 51 bytes for the
// FAT12/16 layout and 79 for the FAT32 layout, deciding between the two from
// the sectors-per-FAT probe field.
func DecodeBiosParameterBlock(reader io.Reader) (*BiosParameterBlock, error) {
	var common rawBPBCommon
	err := binary.Read(reader, binary.LittleEndian, &common)
	if err != nil {
		return nil, ErrIOFailed.Wrap(err)
	}

	bpb := BiosParameterBlock{
		BytesPerSector:    common.BytesPerSector,
		SectorsPerCluster: common.SectorsPerCluster,
		ReservedSectors:   common.ReservedSectors,
		NumFATs:           common.NumFATs,
		RootEntryCount:    common.RootEntryCount,
		TotalSectors16:    common.TotalSectors16,
		Media:             common.Media,
		SectorsPerFAT16:   common.SectorsPerFAT16,
		SectorsPerTrack:   common.SectorsPerTrack,
		NumHeads:          common.NumHeads,
		HiddenSectors:     common.HiddenSectors,
		TotalSectors32:    common.TotalSectors32,
	}

	if bpb.IsFat32() {
		var extension rawFat32Extension
		err = binary.Read(reader, binary.LittleEndian, &extension)
		if err != nil {
			return nil, ErrIOFailed.Wrap(err)
		}
		bpb.Fat32 = &Fat32Parameters{
			SectorsPerFAT32:     extension.SectorsPerFAT32,
			ExtendedFlags:       extension.ExtendedFlags,
			FSVersion:           extension.FSVersion,
			RootDirFirstCluster: extension.RootDirFirstCluster,
			FSInfoSector:        extension.FSInfoSector,
			BackupBootSector:    extension.BackupBootSector,
			Reserved:            extension.Reserved,
		}
	}

	var footer rawBPBFooter
	err = binary.Read(reader, binary.LittleEndian, &footer)
	if err != nil {
		return nil, ErrIOFailed.Wrap(err)
	}
	bpb.DriveNumber = footer.DriveNumber
	bpb.ReservedByte = footer.ReservedByte
	bpb.ExtSignature = footer.ExtSignature
	bpb.VolumeID = footer.VolumeID
	bpb.VolumeLabel = footer.VolumeLabel
	bpb.FSTypeLabel = footer.FSTypeLabel

	// Without the 0x29 signature the trailing identification fields are
	// defined to be meaningless, so blank them out rather than surface
	// whatever bytes happened to be there.
	if bpb.ExtSignature != extendedBootSignature {
		bpb.VolumeID = 0
		bpb.VolumeLabel = [11]byte{}
		bpb.FSTypeLabel = [8]byte{}
	}

	return &bpb, nil
}

// Encode writes the BPB to `writer` in its on-disk form, mirroring the decode
// branch: 51 bytes for the FAT12/16 layout, 79 for FAT32.
func (bpb *BiosParameterBlock) Encode(writer io.Writer) error {
	// Refuse to serialize a record whose layout probe and FAT32 extension
	// disagree, before any bytes hit the writer.
	if bpb.IsFat32() && bpb.Fat32 == nil {
		return ErrInvalidArgument.WithMessage(
			"SectorsPerFAT16 is zero (FAT32 layout) but no FAT32 parameters are present")
	}
	if !bpb.IsFat32() && bpb.Fat32 != nil {
		return ErrInvalidArgument.WithMessage(
			"SectorsPerFAT16 is non-zero (FAT12/16 layout) but FAT32 parameters are present")
	}

	common := rawBPBCommon{
		BytesPerSector:    bpb.BytesPerSector,
		SectorsPerCluster: bpb.SectorsPerCluster,
		ReservedSectors:   bpb.ReservedSectors,
		NumFATs:           bpb.NumFATs,
		RootEntryCount:    bpb.RootEntryCount,
		TotalSectors16:    bpb.TotalSectors16,
		Media:             bpb.Media,
		SectorsPerFAT16:   bpb.SectorsPerFAT16,
		SectorsPerTrack:   bpb.SectorsPerTrack,
		NumHeads:          bpb.NumHeads,
		HiddenSectors:     bpb.HiddenSectors,
		TotalSectors32:    bpb.TotalSectors32,
	}
	err := binary.Write(writer, binary.LittleEndian, &common)
	if err != nil {
		return ErrIOFailed.Wrap(err)
	}

	if bpb.IsFat32() {
		extension := rawFat32Extension{
			SectorsPerFAT32:     bpb.Fat32.SectorsPerFAT32,
			ExtendedFlags:       bpb.Fat32.ExtendedFlags,
			FSVersion:           bpb.Fat32.FSVersion,
			RootDirFirstCluster: bpb.Fat32.RootDirFirstCluster,
			FSInfoSector:        bpb.Fat32.FSInfoSector,
			BackupBootSector:    bpb.Fat32.BackupBootSector,
			Reserved:            bpb.Fat32.Reserved,
		}
		err = binary.Write(writer, binary.LittleEndian, &extension)
		if err != nil {
			return ErrIOFailed.Wrap(err)
		}
	}

	footer := rawBPBFooter{
		DriveNumber:  bpb.DriveNumber,
		ReservedByte: bpb.ReservedByte,
		ExtSignature: bpb.ExtSignature,
		VolumeID:     bpb.VolumeID,
		VolumeLabel:  bpb.VolumeLabel,
		FSTypeLabel:  bpb.FSTypeLabel,
	}
	err = binary.Write(writer, binary.LittleEndian, &footer)
	if err != nil {
		return ErrIOFailed.Wrap(err)
	}
	return nil
}

// IsFat32 reports whether the BPB uses the FAT32 layout. Because the 16-bit
// sectors-per-FAT field must be zero on FAT32 and non-zero on FAT12/16, this
// single probe is definitive.
func (bpb *BiosParameterBlock) IsFat32() bool {
	return bpb.SectorsPerFAT16 == 0
}

// SectorsPerFAT returns the size of one FAT copy in sectors, regardless of
// which field the variant stores it in.
func (bpb *BiosParameterBlock) SectorsPerFAT() uint32 {
	if bpb.IsFat32() {
		if bpb.Fat32 == nil {
			return 0
		}
		return bpb.Fat32.SectorsPerFAT32
	}
	return uint32(bpb.SectorsPerFAT16)
}

// TotalSectors returns the volume size in sectors from whichever of the two
// total-sector fields is populated.
func (bpb *BiosParameterBlock) TotalSectors() uint32 {
	if bpb.TotalSectors16 == 0 {
		return bpb.TotalSectors32
	}
	return uint32(bpb.TotalSectors16)
}

// ReservedSectorCount returns the number of sectors before the first FAT.
func (bpb *BiosParameterBlock) ReservedSectorCount() uint32 {
	return uint32(bpb.ReservedSectors)
}

// RootDirSectors returns the number of sectors occupied by the fixed root
// directory. On FAT32 the root directory lives in the data region, so this
// is zero.
func (bpb *BiosParameterBlock) RootDirSectors() uint32 {
	rootDirBytes := uint32(bpb.RootEntryCount) * DirentSize
	return (rootDirBytes + uint32(bpb.BytesPerSector) - 1) / uint32(bpb.BytesPerSector)
}

// SectorsPerAllFATs returns the number of sectors occupied by every FAT copy
// together.
func (bpb *BiosParameterBlock) SectorsPerAllFATs() uint32 {
	return uint32(bpb.NumFATs) * bpb.SectorsPerFAT()
}

// FirstDataSector returns the sector where the data region begins: everything
// past the reserved sectors, the FATs, and the fixed root directory.
func (bpb *BiosParameterBlock) FirstDataSector() uint32 {
	return bpb.ReservedSectorCount() + bpb.SectorsPerAllFATs() + bpb.RootDirSectors()
}

// TotalClusters returns the number of clusters in the data region. This is
// the single authoritative cluster count; in particular the FAT variant must
// always be re-derived from it, never taken from the fs_type_label.
func (bpb *BiosParameterBlock) TotalClusters() uint32 {
	dataSectors := bpb.TotalSectors() - bpb.FirstDataSector()
	return dataSectors / uint32(bpb.SectorsPerCluster)
}

// BytesFromSectors converts a sector count to a byte count. Sector counts are
// 32-bit, so byte offsets need the full 64-bit range.
func (bpb *BiosParameterBlock) BytesFromSectors(sectors uint32) uint64 {
	return uint64(sectors) * uint64(bpb.BytesPerSector)
}

// SectorsFromClusters converts a cluster count to a sector count.
func (bpb *BiosParameterBlock) SectorsFromClusters(clusters uint32) uint32 {
	return clusters * uint32(bpb.SectorsPerCluster)
}

// ClusterSize returns the size of one cluster in bytes.
func (bpb *BiosParameterBlock) ClusterSize() uint32 {
	return uint32(bpb.SectorsPerCluster) * uint32(bpb.BytesPerSector)
}

// ClustersFromBytes returns the number of clusters needed to hold `bytes`
// bytes, rounding up.
func (bpb *BiosParameterBlock) ClustersFromBytes(bytes uint64) uint32 {
	clusterSize := uint64(bpb.ClusterSize())
	return uint32((bytes + clusterSize - 1) / clusterSize)
}

// MirroringEnabled reports whether all FAT copies are kept identical. On
// FAT12/16 volumes mirroring is always on.
func (bpb *BiosParameterBlock) MirroringEnabled() bool {
	if bpb.Fat32 == nil {
		return true
	}
	return bpb.Fat32.ExtendedFlags&0x80 == 0
}

// ActiveFAT returns the zero-based index of the active FAT copy. The value is
// only meaningful when mirroring is disabled; otherwise it's defined as 0.
func (bpb *BiosParameterBlock) ActiveFAT() uint16 {
	if bpb.MirroringEnabled() {
		return 0
	}
	return bpb.Fat32.ExtendedFlags & 0x0F
}

// StatusFlags returns the volume status bits stored in the reserved byte.
func (bpb *BiosParameterBlock) StatusFlags() FSStatusFlags {
	return DecodeFSStatusFlags(bpb.ReservedByte)
}

// FSInfoSector returns the sector holding the FAT32 FSInfo structure, or 0
// for other variants. Interpreting the structure itself is out of scope here.
func (bpb *BiosParameterBlock) FSInfoSector() uint32 {
	if bpb.Fat32 == nil {
		return 0
	}
	return uint32(bpb.Fat32.FSInfoSector)
}

// BackupBootSector returns the sector holding the FAT32 backup copy of the
// boot sector, or 0 for other variants.
func (bpb *BiosParameterBlock) BackupBootSector() uint32 {
	if bpb.Fat32 == nil {
		return 0
	}
	return uint32(bpb.Fat32.BackupBootSector)
}

// Validate sanity-checks the BPB against the FAT geometry invariants. The
// first violated invariant aborts with an error; values that are legal but
// known to trip up other implementations are reported to `sink` instead and
// don't affect the result. A nil sink discards the warnings.
func (bpb *BiosParameterBlock) Validate(sink DiagnosticSink) error {
	if !isPowerOfTwo(uint32(bpb.BytesPerSector)) {
		return ErrFileSystemCorrupted.WithMessage(fmt.Sprintf(
			"invalid bytes_per_sector value in BPB: %d is not a power of two",
			bpb.BytesPerSector))
	}
	if bpb.BytesPerSector < 512 || bpb.BytesPerSector > 4096 {
		return ErrFileSystemCorrupted.WithMessage(fmt.Sprintf(
			"invalid bytes_per_sector value in BPB: %d not in 512-4096",
			bpb.BytesPerSector))
	}

	if !isPowerOfTwo(uint32(bpb.SectorsPerCluster)) {
		return ErrFileSystemCorrupted.WithMessage(fmt.Sprintf(
			"invalid sectors_per_cluster value in BPB: %d is not a power of two",
			bpb.SectorsPerCluster))
	}
	if bpb.SectorsPerCluster > 128 {
		return ErrFileSystemCorrupted.WithMessage(fmt.Sprintf(
			"invalid sectors_per_cluster value in BPB: %d exceeds 128",
			bpb.SectorsPerCluster))
	}

	bytesPerCluster := bpb.ClusterSize()
	if bytesPerCluster > maximumCompatibilityBytesPerCluster {
		warnf(sink, WarnOversizedCluster,
			"bytes per cluster %d exceeds %d and may be incompatible with some implementations",
			bytesPerCluster, maximumCompatibilityBytesPerCluster)
	}

	isFat32 := bpb.IsFat32()
	if bpb.ReservedSectors < 1 {
		return ErrFileSystemCorrupted.WithMessage(
			"invalid reserved_sectors value in BPB: must be at least 1")
	}
	if !isFat32 && bpb.ReservedSectors != 1 {
		warnf(sink, WarnNonStandardReservedSectors,
			"reserved_sectors value %d is not 1 and is incompatible with some FAT12/FAT16 implementations",
			bpb.ReservedSectors)
	}

	if bpb.NumFATs == 0 {
		return ErrFileSystemCorrupted.WithMessage(
			"invalid fats value in BPB: must be at least 1")
	}
	if bpb.NumFATs > 2 {
		warnf(sink, WarnExtraFATs,
			"number of FATs %d is greater than 2 and is incompatible with some implementations",
			bpb.NumFATs)
	}

	if isFat32 && bpb.Fat32 == nil {
		return ErrFileSystemCorrupted.WithMessage(
			"SectorsPerFAT16 is zero (FAT32 layout) but no FAT32 parameters are present")
	}
	if !isFat32 && bpb.Fat32 != nil {
		return ErrFileSystemCorrupted.WithMessage(
			"SectorsPerFAT16 is non-zero (FAT12/16 layout) but FAT32 parameters are present")
	}

	if isFat32 && bpb.RootEntryCount != 0 {
		return ErrFileSystemCorrupted.WithMessage(fmt.Sprintf(
			"invalid root_entries value in BPB: must be zero for FAT32, got %d",
			bpb.RootEntryCount))
	}

	if isFat32 && bpb.TotalSectors16 != 0 {
		return ErrFileSystemCorrupted.WithMessage(fmt.Sprintf(
			"invalid total_sectors_16 value in BPB: must be zero for FAT32, got %d",
			bpb.TotalSectors16))
	}

	if (bpb.TotalSectors16 == 0) == (bpb.TotalSectors32 == 0) {
		return ErrFileSystemCorrupted.WithMessage(
			"invalid BPB: exactly one of total_sectors_16 and total_sectors_32 must be non-zero")
	}

	if isFat32 && bpb.Fat32.SectorsPerFAT32 == 0 {
		return ErrFileSystemCorrupted.WithMessage(
			"invalid sectors_per_fat_32 value in BPB: must be non-zero for FAT32")
	}

	if isFat32 && bpb.Fat32.FSVersion != 0 {
		return ErrUnsupportedVersion.WithMessage(fmt.Sprintf(
			"fs_version %d in BPB is not supported", bpb.Fat32.FSVersion))
	}

	if bpb.TotalSectors() <= bpb.FirstDataSector() {
		return ErrVolumeTooSmall.WithMessage(fmt.Sprintf(
			"total_sectors value %d leaves no room past the volume's own metadata (%d sectors)",
			bpb.TotalSectors(), bpb.FirstDataSector()))
	}

	// The layout says FAT32 (or not); the capacity must agree. A BPB whose
	// declared layout and actual cluster count disagree would silently be
	// interpreted two different ways by different code paths.
	totalClusters := bpb.TotalClusters()
	fatType := FatTypeFromClusters(totalClusters)
	if isFat32 != (fatType == Fat32) {
		return ErrFileSystemCorrupted.WithMessage(fmt.Sprintf(
			"FAT32 determination from total number of clusters (%d => %s) contradicts the BPB layout",
			totalClusters, fatType))
	}

	totalFATEntries := bpb.SectorsPerFAT() * uint32(bpb.BytesPerSector) * 8 / fatType.BitsPerFATEntry()
	if totalFATEntries-ReservedFATEntries < totalClusters {
		warnf(sink, WarnUndersizedFAT,
			"FAT has %d usable entries but the volume has %d clusters",
			totalFATEntries-ReservedFATEntries, totalClusters)
	}

	return nil
}

func isPowerOfTwo(value uint32) bool {
	return value != 0 && value&(value-1) == 0
}
