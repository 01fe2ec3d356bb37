package fatfs

import "fmt"

// WarningCode identifies the kind of a compatibility warning.
type WarningCode int

const (
	// WarnOversizedCluster means the effective cluster size exceeds 32 KiB.
	// Many implementations appear to support 64 KiB per cluster, and some may
	// support 128 KiB or larger, but anything above 32 KiB is not as
	// thoroughly tested in the wild.
	WarnOversizedCluster WarningCode = iota + 1

	// WarnNonStandardReservedSectors means a FAT12/16 volume reserves more
	// than one sector. Microsoft's documentation indicates FAT12 and FAT16
	// code exists that presumes the value is exactly 1.
	WarnNonStandardReservedSectors

	// WarnExtraFATs means the volume carries more than two FAT copies. Few
	// implementations support values other than 1 or 2.
	WarnExtraFATs

	// WarnUndersizedFAT means the FAT has fewer usable entries than the
	// volume has clusters.
	WarnUndersizedFAT

	// WarnUnknownJumpOpcode means the first byte of the boot sector is
	// neither a short jump (0xEB) nor a near jump (0xE9).
	WarnUnknownJumpOpcode
)

// Warning is a compatibility diagnostic. Warnings never abort an operation
// and never change its result; they flag values that are legal but known to
// confuse other FAT implementations.
type Warning struct {
	Code    WarningCode
	Message string
}

// DiagnosticSink receives compatibility warnings emitted during validation
// and formatting. A nil sink is always accepted and discards everything.
type DiagnosticSink interface {
	Warn(warning Warning)
}

// WarningList is a DiagnosticSink that collects warnings in the order they
// were emitted.
type WarningList struct {
	Warnings []Warning
}

func (list *WarningList) Warn(warning Warning) {
	list.Warnings = append(list.Warnings, warning)
}

func warnf(sink DiagnosticSink, code WarningCode, format string, v ...any) {
	if sink == nil {
		return
	}
	sink.Warn(Warning{Code: code, Message: fmt.Sprintf(format, v...)})
}
