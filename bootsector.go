package fatfs

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/noxer/bytewriter"
)

// BootSectorSize is the size of the boot sector on disk. The first sector of
// a FAT volume always encodes to exactly this many bytes regardless of the
// BPB layout; a longer BPB just leaves less room for boot code.
const BootSectorSize = 512

const (
	// bootCodeSizeShort is the boot code region length when the BPB uses the
	// short (FAT12/16) layout.
	bootCodeSizeShort = 448
	// bootCodeSizeFat32 is the boot code region length when the BPB uses the
	// FAT32 layout, which consumes 28 more bytes of the sector.
	bootCodeSizeFat32 = 420
)

// bootSignature is the mandatory marker in the last two bytes of the sector.
var bootSignature = [2]byte{0x55, 0xAA}

// BootSector is the decoded first sector of a FAT volume: the BPB plus the
// fixed bytes around it. The BPB it holds is exclusively its own; nothing
// else aliases it.
type BootSector struct {
	JmpBoot [3]byte
	OEMName [8]byte
	BPB     BiosParameterBlock
	// BootCode holds the x86 bootstrap code. Only the first 420 bytes are
	// stored on disk when the BPB uses the FAT32 layout.
	BootCode  [448]byte
	Signature [2]byte
}

// DecodeBootSector reads a full 512-byte boot sector from `reader`,
// delegating the variable-length middle region to the BPB codec.
func DecodeBootSector(reader io.Reader) (*BootSector, error) {
	var boot BootSector
	err := binary.Read(reader, binary.LittleEndian, &boot.JmpBoot)
	if err != nil {
		return nil, ErrIOFailed.Wrap(err)
	}
	err = binary.Read(reader, binary.LittleEndian, &boot.OEMName)
	if err != nil {
		return nil, ErrIOFailed.Wrap(err)
	}

	bpb, err := DecodeBiosParameterBlock(reader)
	if err != nil {
		return nil, err
	}
	boot.BPB = *bpb

	bootCode := boot.BootCode[:boot.bootCodeSize()]
	_, err = io.ReadFull(reader, bootCode)
	if err != nil {
		return nil, ErrIOFailed.Wrap(err)
	}
	err = binary.Read(reader, binary.LittleEndian, &boot.Signature)
	if err != nil {
		return nil, ErrIOFailed.Wrap(err)
	}
	return &boot, nil
}

// Encode writes the boot sector to `writer` in its on-disk form, always
// exactly BootSectorSize bytes.
func (boot *BootSector) Encode(writer io.Writer) error {
	_, err := writer.Write(boot.JmpBoot[:])
	if err != nil {
		return ErrIOFailed.Wrap(err)
	}
	_, err = writer.Write(boot.OEMName[:])
	if err != nil {
		return ErrIOFailed.Wrap(err)
	}

	err = boot.BPB.Encode(writer)
	if err != nil {
		return err
	}

	_, err = writer.Write(boot.BootCode[:boot.bootCodeSize()])
	if err != nil {
		return ErrIOFailed.Wrap(err)
	}
	_, err = writer.Write(boot.Signature[:])
	if err != nil {
		return ErrIOFailed.Wrap(err)
	}
	return nil
}

// Bytes serializes the boot sector into a fresh 512-byte sector buffer.
func (boot *BootSector) Bytes() ([]byte, error) {
	buffer := make([]byte, BootSectorSize)
	err := boot.Encode(bytewriter.New(buffer))
	if err != nil {
		return nil, err
	}
	return buffer, nil
}

// Validate checks the parts of the sector this layer owns and then delegates
// to BPB validation. A missing 0x55AA signature is unconditionally fatal; an
// unusual jump opcode is only reported to `sink`, since nothing but the
// signature and the BPB is load-bearing when the volume isn't booted from.
func (boot *BootSector) Validate(sink DiagnosticSink) error {
	if boot.Signature != bootSignature {
		return ErrInvalidBootSignature.WithMessage(fmt.Sprintf(
			"expected 0x55 0xAA in the last two bytes of the boot sector, got %#02x %#02x",
			boot.Signature[0], boot.Signature[1]))
	}
	if boot.JmpBoot[0] != 0xEB && boot.JmpBoot[0] != 0xE9 {
		warnf(sink, WarnUnknownJumpOpcode,
			"unknown opcode %#02x in the bootjmp boot sector field", boot.JmpBoot[0])
	}
	return boot.BPB.Validate(sink)
}

func (boot *BootSector) bootCodeSize() int {
	if boot.BPB.IsFat32() {
		return bootCodeSizeFat32
	}
	return bootCodeSizeShort
}
