package fatfs

// ReservedFATEntries is the number of FAT table entries that never map to a
// cluster: entry 0 holds the media descriptor and entry 1 the end-of-chain
// marker. The table layer owns the entry encoding; validation only needs the
// count to tell whether a FAT is large enough for its volume.
const ReservedFATEntries = 2
