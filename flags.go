package fatfs

const (
	flagVolumeDirty = 0x01
	flagIOError     = 0x02
)

// FSStatusFlags holds the volume status bits an operating system stores in
// the reserved byte at offset 37 (FAT12/16) or 65 (FAT32) of the boot sector.
type FSStatusFlags struct {
	// Dirty is set while the volume is mounted read-write and cleared on a
	// clean unmount. If it's set on mount, the volume wasn't shut down
	// properly and may need repair.
	Dirty bool

	// IOError is set when a hard I/O error was encountered while the volume
	// was mounted, indicating possible bad sectors.
	IOError bool
}

// DecodeFSStatusFlags unpacks the status bits from the reserved BPB byte.
func DecodeFSStatusFlags(value uint8) FSStatusFlags {
	return FSStatusFlags{
		Dirty:   value&flagVolumeDirty != 0,
		IOError: value&flagIOError != 0,
	}
}

// Encode packs the status flags back into their on-disk byte.
func (flags FSStatusFlags) Encode() uint8 {
	var value uint8
	if flags.Dirty {
		value |= flagVolumeDirty
	}
	if flags.IOError {
		value |= flagIOError
	}
	return value
}
