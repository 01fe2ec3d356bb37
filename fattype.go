package fatfs

// FatType identifies which FAT variant a volume uses. The numeric value is
// the width of a FAT table entry in bits.
type FatType uint8

const (
	Fat12 FatType = 12
	Fat16 FatType = 16
	Fat32 FatType = 32
)

// FatTypeFromClusters determines the FAT variant from the number of clusters
// on the volume. (This is the only proper way to do so; the fs_type_label
// string in the BPB is purely informational and must never be trusted.)
//
// These cluster counts, while odd-looking, are correct. They're taken directly
// from Microsoft's FAT documentation, v1.03, page 14.
func FatTypeFromClusters(totalClusters uint32) FatType {
	if totalClusters < 4085 {
		return Fat12
	}
	if totalClusters < 65525 {
		return Fat16
	}
	return Fat32
}

// BitsPerFATEntry returns the width of a single FAT table entry, in bits.
func (t FatType) BitsPerFATEntry() uint32 {
	return uint32(t)
}

// Label returns the 8-byte fs_type_label tag written into the BPB for this
// variant.
func (t FatType) Label() [8]byte {
	switch t {
	case Fat12:
		return [8]byte{'F', 'A', 'T', '1', '2', ' ', ' ', ' '}
	case Fat16:
		return [8]byte{'F', 'A', 'T', '1', '6', ' ', ' ', ' '}
	default:
		return [8]byte{'F', 'A', 'T', '3', '2', ' ', ' ', ' '}
	}
}

func (t FatType) String() string {
	switch t {
	case Fat12:
		return "FAT12"
	case Fat16:
		return "FAT16"
	case Fat32:
		return "FAT32"
	default:
		return "FAT??"
	}
}
