// Package disks provides predefined geometry profiles for standard FAT media,
// from classic floppy formats up to small fixed disks. A profile supplies the
// sector count and the historically correct media descriptor, CHS values, and
// root directory size for the fatfs formatting engine.
package disks

import (
	_ "embed"
	"fmt"

	fatfs "github.com/Dicklessgreat/embedded-fatfs"
	"github.com/gocarina/gocsv"
)

// DiskProfile describes one standard medium.
type DiskProfile struct {
	Slug string `csv:"slug"`
	Name string `csv:"name"`

	TotalSectors   uint32 `csv:"total_sectors"`
	BytesPerSector uint16 `csv:"bytes_per_sector"`

	// Media is the media descriptor byte historically used for this medium,
	// e.g. 0xF0 for 1.44 MiB floppies and 0xF8 for fixed disks.
	Media           uint8  `csv:"media"`
	SectorsPerTrack uint16 `csv:"sectors_per_track"`
	Heads           uint16 `csv:"heads"`

	// RootEntries is the conventional fixed root directory size for the
	// medium. Zero means the formatter's default (or FAT32, which has none).
	RootEntries uint16 `csv:"root_entries"`
}

// FormatOptions converts the profile into options for the formatting engine.
func (p *DiskProfile) FormatOptions() fatfs.FormatVolumeOptions {
	return fatfs.FormatVolumeOptions{
		TotalSectors:    p.TotalSectors,
		BytesPerSector:  p.BytesPerSector,
		Media:           p.Media,
		SectorsPerTrack: p.SectorsPerTrack,
		NumHeads:        p.Heads,
		RootEntryCount:  p.RootEntries,
	}
}

// https://en.wikipedia.org/wiki/List_of_floppy_disk_formats
//
//go:embed disk-profiles.csv
var diskProfilesRawCSV string
var diskProfiles map[string]DiskProfile

// GetDiskProfile returns the predefined profile with the given slug.
func GetDiskProfile(slug string) (DiskProfile, error) {
	profile, ok := diskProfiles[slug]
	if ok {
		return profile, nil
	}
	return DiskProfile{}, fmt.Errorf("no predefined disk profile exists with slug %q", slug)
}

// AllDiskProfiles returns every predefined profile, keyed by slug.
func AllDiskProfiles() map[string]DiskProfile {
	all := make(map[string]DiskProfile, len(diskProfiles))
	for slug, profile := range diskProfiles {
		all[slug] = profile
	}
	return all
}

func init() {
	var rows []DiskProfile
	err := gocsv.UnmarshalString(diskProfilesRawCSV, &rows)
	if err != nil {
		panic(fmt.Errorf("failed to decode embedded disk profiles: %w", err))
	}

	diskProfiles = make(map[string]DiskProfile, len(rows))
	for i, row := range rows {
		_, exists := diskProfiles[row.Slug]
		if exists {
			panic(fmt.Errorf("duplicate definition for disk %q found on row %d", row.Slug, i+1))
		}
		diskProfiles[row.Slug] = row
	}
}
