package fatfs

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFatTypeFromClusters(t *testing.T) {
	// Thresholds from Microsoft's FAT documentation, v1.03, page 14.
	assert.Equal(t, Fat12, FatTypeFromClusters(0))
	assert.Equal(t, Fat12, FatTypeFromClusters(4084))
	assert.Equal(t, Fat16, FatTypeFromClusters(4085))
	assert.Equal(t, Fat16, FatTypeFromClusters(65524))
	assert.Equal(t, Fat32, FatTypeFromClusters(65525))
}

func TestFatTypeBitsPerFATEntry(t *testing.T) {
	assert.EqualValues(t, 12, Fat12.BitsPerFATEntry())
	assert.EqualValues(t, 16, Fat16.BitsPerFATEntry())
	assert.EqualValues(t, 32, Fat32.BitsPerFATEntry())
}

func TestFatTypeLabel(t *testing.T) {
	l12, l16, l32 := Fat12.Label(), Fat16.Label(), Fat32.Label()
	assert.Equal(t, "FAT12   ", string(l12[:]))
	assert.Equal(t, "FAT16   ", string(l16[:]))
	assert.Equal(t, "FAT32   ", string(l32[:]))
}

func TestFatTypeString(t *testing.T) {
	assert.Equal(t, "FAT16", Fat16.String())
	assert.Equal(t, "FAT??", FatType(0).String())
}
