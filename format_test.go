package fatfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDetermineFatType(t *testing.T) {
	assert.Equal(t, Fat12, DetermineFatType(3*mib))
	assert.Equal(t, Fat16, DetermineFatType(4*mib))
	assert.Equal(t, Fat16, DetermineFatType(511*mib))
	assert.Equal(t, Fat32, DetermineFatType(512*mib))
}

func TestDetermineBytesPerClusterFat12(t *testing.T) {
	assert.EqualValues(t, 512, determineBytesPerCluster(1*mib, Fat12, 512))
	assert.EqualValues(t, 1024, determineBytesPerCluster(1*mib+1, Fat12, 512))

	// The cluster size never drops below the sector size.
	assert.EqualValues(t, 4096, determineBytesPerCluster(1*mib, Fat12, 4096))
}

func TestDetermineBytesPerClusterFat16(t *testing.T) {
	assert.EqualValues(t, 1*kib, determineBytesPerCluster(1*mib, Fat16, 512))
	assert.EqualValues(t, 4*kib, determineBytesPerCluster(1*mib, Fat16, 4096))
	assert.EqualValues(t, 1*kib, determineBytesPerCluster(16*mib, Fat16, 512))
	assert.EqualValues(t, 2*kib, determineBytesPerCluster(16*mib+1, Fat16, 512))
	assert.EqualValues(t, 2*kib, determineBytesPerCluster(128*mib, Fat16, 512))
	assert.EqualValues(t, 4*kib, determineBytesPerCluster(128*mib+1, Fat16, 512))
	assert.EqualValues(t, 8*kib, determineBytesPerCluster(512*mib, Fat16, 512))
	assert.EqualValues(t, 16*kib, determineBytesPerCluster(512*mib+1, Fat16, 512))
	assert.EqualValues(t, 16*kib, determineBytesPerCluster(1024*mib, Fat16, 512))
	assert.EqualValues(t, 32*kib, determineBytesPerCluster(1024*mib+1, Fat16, 512))

	// Clamped at the 32 KiB compatibility ceiling.
	assert.EqualValues(t, 32*kib, determineBytesPerCluster(99999*mib, Fat16, 512))
}

func TestDetermineBytesPerClusterFat32(t *testing.T) {
	assert.EqualValues(t, 512, determineBytesPerCluster(260*mib, Fat32, 512))
	assert.EqualValues(t, 4*kib, determineBytesPerCluster(260*mib, Fat32, 4096))
	assert.EqualValues(t, 4*kib, determineBytesPerCluster(260*mib+1, Fat32, 512))
	assert.EqualValues(t, 4*kib, determineBytesPerCluster(8*gib, Fat32, 512))
	assert.EqualValues(t, 8*kib, determineBytesPerCluster(8*gib+1, Fat32, 512))
	assert.EqualValues(t, 16*kib, determineBytesPerCluster(16*gib+1, Fat32, 512))
	assert.EqualValues(t, 32*kib, determineBytesPerCluster(32*gib+1, Fat32, 512))
	assert.EqualValues(t, 32*kib, determineBytesPerCluster(999*gib, Fat32, 512))
}

func TestDetermineSectorsPerFAT(t *testing.T) {
	// 1 MiB volume in 512-byte sectors with a 32-sector root directory.
	assert.EqualValues(t, 6, determineSectorsPerFAT(2048, 1, 2, 32, 1, Fat12))
}

func TestFormatBPBRequiresOptions(t *testing.T) {
	_, _, err := FormatBPB(&FormatVolumeOptions{BytesPerSector: 512})
	require.ErrorIs(t, err, ErrInvalidArgument)

	_, _, err = FormatBPB(&FormatVolumeOptions{TotalSectors: 32768, BytesPerSector: 768})
	require.ErrorIs(t, err, ErrInvalidArgument)
}

func TestFormatBPBVolumeTooSmall(t *testing.T) {
	// The default 512-entry root directory needs 32 sectors, so 40 sectors
	// leave nothing for a FAT and data.
	_, _, err := FormatBPB(&FormatVolumeOptions{TotalSectors: 40, BytesPerSector: 512})
	require.ErrorIs(t, err, ErrVolumeTooSmall)
}

func TestFormatBPBRejectsContradictoryFatType(t *testing.T) {
	// 16 MiB can't hold enough clusters for FAT32; the post-assembly
	// consistency gate must catch it even though every stage before succeeds.
	_, _, err := FormatBPB(&FormatVolumeOptions{
		TotalSectors:   32768,
		BytesPerSector: 512,
		FatType:        Fat32,
	})
	require.ErrorIs(t, err, ErrGeometryMismatch)
}

func TestFormatBPBFat16Defaults(t *testing.T) {
	bpb, fatType, err := FormatBPB(&FormatVolumeOptions{
		TotalSectors:   32768,
		BytesPerSector: 512,
	})
	require.NoError(t, err)
	require.Equal(t, Fat16, fatType)

	assert.EqualValues(t, 1, bpb.ReservedSectors)
	assert.EqualValues(t, 2, bpb.NumFATs)
	assert.EqualValues(t, 512, bpb.RootEntryCount)
	assert.EqualValues(t, 0xF8, bpb.Media)
	assert.EqualValues(t, 0x80, bpb.DriveNumber)
	assert.EqualValues(t, 0x20, bpb.SectorsPerTrack)
	assert.EqualValues(t, 0x40, bpb.NumHeads)
	assert.EqualValues(t, 0x29, bpb.ExtSignature)
	assert.EqualValues(t, 0x12345678, bpb.VolumeID)
	assert.Equal(t, "NO NAME    ", string(bpb.VolumeLabel[:]))
	assert.Equal(t, "FAT16   ", string(bpb.FSTypeLabel[:]))
	assert.Nil(t, bpb.Fat32)

	// The chosen variant must survive re-derivation from the cluster count.
	assert.Equal(t, Fat16, FatTypeFromClusters(bpb.TotalClusters()))
}

func TestFormatBPBFat12UsesFloppyDriveNumber(t *testing.T) {
	bpb, fatType, err := FormatBPB(&FormatVolumeOptions{
		TotalSectors:   2880,
		BytesPerSector: 512,
	})
	require.NoError(t, err)
	require.Equal(t, Fat12, fatType)
	assert.EqualValues(t, 0, bpb.DriveNumber)
}

func TestFormatBPBFat32Defaults(t *testing.T) {
	bpb, fatType, err := FormatBPB(&FormatVolumeOptions{
		TotalSectors:   2097152,
		BytesPerSector: 512,
		VolumeLabel:    "TESTVOLUME",
	})
	require.NoError(t, err)
	require.Equal(t, Fat32, fatType)

	// Two boot sectors, one FSInfo sector, one spare.
	assert.EqualValues(t, 4, bpb.ReservedSectors)
	assert.EqualValues(t, 0, bpb.RootEntryCount)
	assert.EqualValues(t, 0, bpb.TotalSectors16)
	assert.EqualValues(t, 0, bpb.SectorsPerFAT16)
	assert.Equal(t, "TESTVOLUME ", string(bpb.VolumeLabel[:]))

	require.NotNil(t, bpb.Fat32)
	assert.EqualValues(t, 2, bpb.Fat32.RootDirFirstCluster)
	assert.EqualValues(t, 1, bpb.Fat32.FSInfoSector)
	assert.EqualValues(t, 6, bpb.Fat32.BackupBootSector)
	assert.EqualValues(t, 0, bpb.Fat32.ExtendedFlags)

	assert.Equal(t, Fat32, FatTypeFromClusters(bpb.TotalClusters()))
}

func TestFormatBootSectorFat16(t *testing.T) {
	boot, fatType, err := FormatBootSector(&FormatVolumeOptions{
		TotalSectors:   32768,
		BytesPerSector: 512,
	})
	require.NoError(t, err)
	require.Equal(t, Fat16, fatType)

	assert.Equal(t, "MSWIN4.1", string(boot.OEMName[:]))
	assert.Equal(t, [2]byte{0x55, 0xAA}, boot.Signature)

	// The short BPB layout puts the boot code at 0x3E instead of 0x5A, so the
	// jump displacement and the embedded message address are patched.
	assert.Equal(t, [3]byte{0xEB, 0x3C, 0x90}, boot.JmpBoot)
	assert.EqualValues(t, 0x5B, boot.BootCode[3])
	assert.EqualValues(t, 0x7C, boot.BootCode[4])

	warnings := &WarningList{}
	require.NoError(t, boot.Validate(warnings))
	require.Empty(t, warnings.Warnings)
	assert.Equal(t, Fat16, FatTypeFromClusters(boot.BPB.TotalClusters()))
}

func TestFormatBootSectorFat32KeepsStockStub(t *testing.T) {
	boot, fatType, err := FormatBootSector(&FormatVolumeOptions{
		TotalSectors:   2097152,
		BytesPerSector: 512,
	})
	require.NoError(t, err)
	require.Equal(t, Fat32, fatType)

	assert.Equal(t, [3]byte{0xEB, 0x58, 0x90}, boot.JmpBoot)
	assert.Equal(t, bootStub[:], boot.BootCode[:len(bootStub)])

	warnings := &WarningList{}
	require.NoError(t, boot.Validate(warnings))
	require.Empty(t, warnings.Warnings)
}

func TestFormatBootSectorPropagatesErrors(t *testing.T) {
	_, _, err := FormatBootSector(&FormatVolumeOptions{
		TotalSectors:   40,
		BytesPerSector: 512,
	})
	require.ErrorIs(t, err, ErrVolumeTooSmall)
}

func TestNextPowerOfTwo(t *testing.T) {
	assert.EqualValues(t, 1, nextPowerOfTwo(0))
	assert.EqualValues(t, 1, nextPowerOfTwo(1))
	assert.EqualValues(t, 2, nextPowerOfTwo(2))
	assert.EqualValues(t, 4, nextPowerOfTwo(3))
	assert.EqualValues(t, 1024, nextPowerOfTwo(1000))
	assert.EqualValues(t, 1024, nextPowerOfTwo(1024))
}
