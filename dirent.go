package fatfs

// DirentSize is the size of a single raw directory entry, in bytes. The
// directory layer owns the entry format; the geometry layer only needs the
// size to compute how many sectors the fixed root directory occupies on
// FAT12/16 volumes.
const DirentSize = 32
